package utils

import (
	"context"
	"os"
	"path/filepath"
	"strings"

	getter "github.com/hashicorp/go-getter"
	"golang.org/x/xerrors"
)

// IsRemote reports whether src has to be fetched, e.g. an http(s), s3 or
// git source, rather than read from the local filesystem.
func IsRemote(src string) bool {
	pwd, err := os.Getwd()
	if err != nil {
		return false
	}
	u, err := getter.Detect(src, pwd, getter.Detectors)
	if err != nil {
		return false
	}
	return !strings.HasPrefix(u, "file://")
}

func DownloadToTempDir(ctx context.Context, src string) (string, error) {
	tmpDir, err := os.MkdirTemp("", "dep-risk-analyzer")
	if err != nil {
		return "", xerrors.Errorf("failed to create a temp dir: %w", err)
	}

	// go-getter doesn't allow destination to exist.It needs to be removed once.
	// https://github.com/hashicorp/go-getter/blob/7b99c311a18a8bb679bc7ff3a830a65029afef9b/module_test.go#L18-L28
	if err = os.RemoveAll(tmpDir); err != nil {
		return "", xerrors.Errorf("failed to remove %s: %w", tmpDir, err)
	}

	if err = download(ctx, src, tmpDir, getter.ClientModeDir); err != nil {
		return "", xerrors.Errorf("download error: %w", err)
	}

	return tmpDir, nil
}

// DownloadToTempFile downloads src into a temporary file. The file keeps
// the base name of the source so its extension still says how to read it.
// go-getter decompresses known archive extensions such as .gz on the way.
func DownloadToTempFile(ctx context.Context, src string) (string, error) {
	tmpDir, err := os.MkdirTemp("", "dep-risk-analyzer")
	if err != nil {
		return "", xerrors.Errorf("failed to create a temp dir: %w", err)
	}

	name := filepath.Base(strings.SplitN(src, "?", 2)[0])
	dst := filepath.Join(tmpDir, TrimCompressionExt(name))
	if err = download(ctx, src, dst, getter.ClientModeFile); err != nil {
		return "", xerrors.Errorf("download error: %w", err)
	}

	return dst, nil
}

func download(ctx context.Context, src, dst string, mode getter.ClientMode) error {
	pwd, err := os.Getwd()
	if err != nil {
		return xerrors.Errorf("unable to get the current dir: %w", err)
	}

	// Build the client
	client := &getter.Client{
		Ctx:     ctx,
		Src:     src,
		Dst:     dst,
		Pwd:     pwd,
		Getters: getter.Getters,
		Mode:    mode,
	}

	if err = client.Get(); err != nil {
		return xerrors.Errorf("failed to download: %w", err)
	}

	return nil
}

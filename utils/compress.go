package utils

import (
	"io"
	"path/filepath"
	"strings"

	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zstd"
	"github.com/spf13/afero"
	"golang.org/x/xerrors"
)

const (
	extGzip = ".gz"
	extZstd = ".zst"
)

// TrimCompressionExt strips a .gz or .zst suffix, e.g. "cves.csv.gz" -> "cves.csv".
func TrimCompressionExt(name string) string {
	switch ext := filepath.Ext(name); ext {
	case extGzip, extZstd:
		return strings.TrimSuffix(name, ext)
	}
	return name
}

type readCloser struct {
	io.Reader
	closers []io.Closer
}

func (r readCloser) Close() error {
	var err error
	for _, c := range r.closers {
		if cerr := c.Close(); cerr != nil && err == nil {
			err = cerr
		}
	}
	return err
}

type zstdCloser struct {
	d *zstd.Decoder
}

func (z zstdCloser) Close() error {
	z.d.Close()
	return nil
}

// Open opens a file and decompresses it according to its extension.
func Open(fs afero.Fs, path string) (io.ReadCloser, error) {
	f, err := fs.Open(path)
	if err != nil {
		return nil, xerrors.Errorf("unable to open %s: %w", path, err)
	}

	switch filepath.Ext(path) {
	case extGzip:
		gr, err := gzip.NewReader(f)
		if err != nil {
			f.Close()
			return nil, xerrors.Errorf("gzip reader error (%s): %w", path, err)
		}
		return readCloser{Reader: gr, closers: []io.Closer{gr, f}}, nil
	case extZstd:
		d, err := zstd.NewReader(f)
		if err != nil {
			f.Close()
			return nil, xerrors.Errorf("zstd reader error (%s): %w", path, err)
		}
		return readCloser{Reader: d, closers: []io.Closer{zstdCloser{d}, f}}, nil
	}
	return f, nil
}

type writeCloser struct {
	io.Writer
	closers []io.Closer
}

func (w writeCloser) Close() error {
	var err error
	for _, c := range w.closers {
		if cerr := c.Close(); cerr != nil && err == nil {
			err = cerr
		}
	}
	return err
}

// Create creates a file and compresses what is written to it according to
// its extension. The returned writer must be closed to flush it.
func Create(fs afero.Fs, path string) (io.WriteCloser, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := fs.MkdirAll(dir, 0755); err != nil {
			return nil, xerrors.Errorf("unable to create a directory: %w", err)
		}
	}

	f, err := fs.Create(path)
	if err != nil {
		return nil, xerrors.Errorf("unable to create %s: %w", path, err)
	}

	switch filepath.Ext(path) {
	case extGzip:
		gw := gzip.NewWriter(f)
		return writeCloser{Writer: gw, closers: []io.Closer{gw, f}}, nil
	case extZstd:
		e, err := zstd.NewWriter(f)
		if err != nil {
			f.Close()
			return nil, xerrors.Errorf("zstd writer error (%s): %w", path, err)
		}
		return writeCloser{Writer: e, closers: []io.Closer{e, f}}, nil
	}
	return f, nil
}

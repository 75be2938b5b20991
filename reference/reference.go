package reference

import (
	"context"
	"log"
	"path/filepath"

	"github.com/spf13/afero"
	"golang.org/x/xerrors"

	"github.com/aquasecurity/dep-risk-analyzer/types"
	"github.com/aquasecurity/dep-risk-analyzer/utils"
)

var ErrReferenceNotFound = xerrors.New("reference table not found")

// IsSQLite reports whether path names a SQLite reference table.
func IsSQLite(path string) bool {
	switch filepath.Ext(utils.TrimCompressionExt(path)) {
	case ".db", ".sqlite", ".sqlite3":
		return true
	}
	return false
}

type options struct {
	fs afero.Fs
}

type option func(*options)

// WithFs sets the filesystem local CSV tables are read from. SQLite
// databases and downloads always live on the OS filesystem.
func WithFs(fs afero.Fs) option {
	return func(opts *options) { opts.fs = fs }
}

// Load reads the reference table from src: a local or remote (http(s),
// s3, git...) CSV file, optionally .gz/.zst compressed, or a SQLite
// database. Warnings about dropped cells are logged, not returned.
func Load(ctx context.Context, src string, opts ...option) ([]types.VulnerabilityRecord, error) {
	o := &options{fs: afero.NewOsFs()}
	for _, opt := range opts {
		opt(o)
	}

	fs, path := o.fs, src
	if utils.IsRemote(src) {
		log.Printf("Fetching the reference table from %s", src)
		tmp, err := utils.DownloadToTempFile(ctx, src)
		if err != nil {
			return nil, xerrors.Errorf("unable to fetch %s: %w", src, err)
		}
		fs, path = afero.NewOsFs(), tmp
	} else if IsSQLite(path) {
		fs = afero.NewOsFs()
	}

	if ok, err := afero.Exists(fs, path); err != nil {
		return nil, xerrors.Errorf("unable to stat %s: %w", path, err)
	} else if !ok {
		return nil, xerrors.Errorf("%s: %w", src, ErrReferenceNotFound)
	}

	var table Table
	var err error
	if IsSQLite(path) {
		table, err = loadSQLite(ctx, path)
	} else {
		table, err = loadCSV(fs, path)
	}
	if err != nil {
		return nil, xerrors.Errorf("unable to load the reference table %s: %w", src, err)
	}

	if table.Warnings != nil {
		log.Printf("%d reference rows with dropped cells in %s", len(table.Warnings.Errors), src)
		for _, w := range table.Warnings.Errors {
			log.Printf("  %s", w)
		}
	}
	log.Printf("Loaded %d reference records from %s", len(table.Records), src)
	return table.Records, nil
}

func loadCSV(fs afero.Fs, path string) (Table, error) {
	r, err := utils.Open(fs, path)
	if err != nil {
		return Table{}, err
	}
	defer r.Close()
	return ReadCSV(r)
}

func loadSQLite(ctx context.Context, path string) (Table, error) {
	store, err := NewSQLiteStore(path)
	if err != nil {
		return Table{}, err
	}
	defer store.Close()
	return store.Load(ctx)
}

// Save writes records to path as CSV (optionally compressed) or, for .db
// paths, appends them to a SQLite database.
func Save(ctx context.Context, fs afero.Fs, path string, records []types.VulnerabilityRecord) error {
	if IsSQLite(path) {
		store, err := NewSQLiteStore(path)
		if err != nil {
			return err
		}
		defer store.Close()
		return store.Save(ctx, records)
	}

	w, err := utils.Create(fs, path)
	if err != nil {
		return err
	}
	if err = WriteCSV(w, records); err != nil {
		w.Close()
		return err
	}
	if err = w.Close(); err != nil {
		return xerrors.Errorf("unable to close %s: %w", path, err)
	}
	return nil
}

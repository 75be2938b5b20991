package utils

import (
	"encoding/json"
	"path/filepath"
	"time"

	"github.com/spf13/afero"
	"golang.org/x/xerrors"
)

const (
	lastUpdatedFile = "last_updated.json"
)

// LastUpdatedFilePath is where incremental fetches remember how far they got.
func LastUpdatedFilePath() string {
	return filepath.Join(CacheDir(), lastUpdatedFile)
}

type LastUpdated map[string]time.Time

// GetLastUpdatedDate returns the recorded date of source, or the Unix epoch
// when nothing was recorded yet.
func GetLastUpdatedDate(fs afero.Fs, path, source string) (time.Time, error) {
	lastUpdated, err := getLastUpdatedDate(fs, path)
	if err != nil {
		return time.Time{}, err
	}

	t, ok := lastUpdated[source]
	if !ok {
		return time.Unix(0, 0).UTC(), nil
	}

	return t, nil
}

func getLastUpdatedDate(fs afero.Fs, path string) (LastUpdated, error) {
	lastUpdated := LastUpdated{}
	if ok, err := afero.Exists(fs, path); err != nil {
		return nil, xerrors.Errorf("unable to stat %s: %w", path, err)
	} else if !ok {
		return lastUpdated, nil
	}

	b, err := afero.ReadFile(fs, path)
	if err != nil {
		return nil, xerrors.Errorf("unable to read %s: %w", path, err)
	}

	if err = json.Unmarshal(b, &lastUpdated); err != nil {
		return nil, xerrors.Errorf("failed to decode %s: %w", path, err)
	}

	return lastUpdated, nil
}

func SetLastUpdatedDate(fs afero.Fs, path, source string, lastUpdatedDate time.Time) error {
	lastUpdated, err := getLastUpdatedDate(fs, path)
	if err != nil {
		return xerrors.Errorf("failed to get last updated date: %w", err)
	}
	lastUpdated[source] = lastUpdatedDate

	if err = NewFs(fs).WriteJSON(path, lastUpdated); err != nil {
		return xerrors.Errorf("failed to write last updated date: %w", err)
	}

	return nil
}

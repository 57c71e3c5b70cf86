// Package layout implements the dated folder convention shared by every
// pipeline: input/YYYY-MM-DD/ in, output/YYYY-MM-DD/ out.
package layout

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/revmon-dev/revmon/internal/config"
	"github.com/revmon-dev/revmon/internal/model"
)

// DatedFolder is a child directory whose name is a YYYY-MM-DD date.
type DatedFolder struct {
	Date time.Time
	Path string
}

// Name returns the folder's date as YYYY-MM-DD.
func (d DatedFolder) Name() string { return d.Date.Format(model.DateFormat) }

// ParseDate parses a YYYY-MM-DD string.
func ParseDate(s string) (time.Time, error) {
	return time.Parse(model.DateFormat, s)
}

// DatedFolders returns every dated child directory of root in no particular
// order. Files and non-date names are ignored.
func DatedFolders(root string) ([]DatedFolder, error) {
	entries, err := os.ReadDir(root)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", root, err)
	}

	var folders []DatedFolder
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		date, err := ParseDate(e.Name())
		if err != nil {
			continue
		}
		folders = append(folders, DatedFolder{Date: date, Path: filepath.Join(root, e.Name())})
	}
	return folders, nil
}

// LatestDatedFolder returns the newest dated child directory of root.
func LatestDatedFolder(root string) (DatedFolder, error) {
	if _, err := os.Stat(root); err != nil {
		return DatedFolder{}, fmt.Errorf("missing directory %s: %w", root, err)
	}
	folders, err := DatedFolders(root)
	if err != nil {
		return DatedFolder{}, err
	}
	if len(folders) == 0 {
		return DatedFolder{}, fmt.Errorf("no dated folders found in %s: %w", root, fs.ErrNotExist)
	}

	latest := folders[0]
	for _, f := range folders[1:] {
		if f.Date.After(latest.Date) {
			latest = f
		}
	}
	return latest, nil
}

// RunDate resolves the run date: the RUN_DATE override when set, otherwise
// the newest dated folder under inputRoot.
func RunDate(env config.Env, inputRoot string) (string, error) {
	if env.RunDate != "" {
		if _, err := ParseDate(env.RunDate); err != nil {
			return "", fmt.Errorf("%w: %s must be in YYYY-MM-DD format, got: %s", config.ErrConfig, config.EnvRunDate, env.RunDate)
		}
		return env.RunDate, nil
	}

	latest, err := LatestDatedFolder(inputRoot)
	if err != nil {
		return "", err
	}
	return latest.Name(), nil
}

// InputPath returns <root>/<runDate>/<filename>, which must exist.
func InputPath(root, runDate, filename string) (string, error) {
	path := filepath.Join(root, runDate, filename)
	if _, err := os.Stat(path); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return "", fmt.Errorf("missing input file %s: %w", path, err)
		}
		return "", fmt.Errorf("stat %s: %w", path, err)
	}
	return path, nil
}

// OutputDir creates and returns <root>/<runDate>.
func OutputDir(root, runDate string) (string, error) {
	path := filepath.Join(root, runDate)
	if err := os.MkdirAll(path, 0o755); err != nil {
		return "", fmt.Errorf("creating output dir: %w", err)
	}
	return path, nil
}

package monarch

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/revmon-dev/revmon/internal/config"
	"github.com/revmon-dev/revmon/internal/layout"
	"github.com/revmon-dev/revmon/internal/model"
)

// ImportSuffix marks every Monarch import file written by revmon.
const ImportSuffix = "_import.csv"

// SaveTransactions writes txns to path.
func SaveTransactions(path string, txns []model.Transaction) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("creating %s: %w", path, err)
	}
	defer f.Close()

	if err := WriteTransactions(f, txns); err != nil {
		return fmt.Errorf("writing %s: %w", path, err)
	}
	return f.Close()
}

// SaveBalances writes snaps to path.
func SaveBalances(path string, snaps []model.BalanceSnapshot) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("creating %s: %w", path, err)
	}
	defer f.Close()

	if err := WriteBalances(f, snaps); err != nil {
		return fmt.Errorf("writing %s: %w", path, err)
	}
	return f.Close()
}

// foldersUpTo returns dated folders under root sorted oldest first. When
// runDate is set, folders after it (or, with exclusive, on it) are dropped.
func foldersUpTo(root, runDate string, exclusive bool) ([]layout.DatedFolder, error) {
	folders, err := layout.DatedFolders(root)
	if err != nil {
		return nil, err
	}
	if runDate != "" {
		limit, err := layout.ParseDate(runDate)
		if err != nil {
			return nil, fmt.Errorf("%w: run date must be in YYYY-MM-DD format, got %q", config.ErrConfig, runDate)
		}
		kept := folders[:0]
		for _, f := range folders {
			if f.Date.After(limit) || (exclusive && f.Date.Equal(limit)) {
				continue
			}
			kept = append(kept, f)
		}
		folders = kept
	}
	sort.Slice(folders, func(i, j int) bool { return folders[i].Date.Before(folders[j].Date) })
	return folders, nil
}

// LoadTransactions reads every transaction import in the dated folders under
// outputRoot up to and including runDate (all folders when runDate is "").
//
// Files without the transaction columns, such as balance histories, are
// skipped. Files that fail to parse are skipped with a warning. A row
// exported again in a later folder is counted once: each distinct row
// appears as many times as it does in the folder holding the most copies.
func LoadTransactions(outputRoot, runDate string) ([]model.Transaction, error) {
	folders, err := foldersUpTo(outputRoot, runDate, false)
	if err != nil {
		return nil, fmt.Errorf("scanning %s: %w", outputRoot, err)
	}

	var files []string
	for _, f := range folders {
		matches, err := filepath.Glob(filepath.Join(f.Path, "*"+ImportSuffix))
		if err != nil {
			return nil, fmt.Errorf("listing %s: %w", f.Path, err)
		}
		files = append(files, matches...)
	}
	if len(files) == 0 {
		return nil, fmt.Errorf("no Monarch import files found in %s: %w", outputRoot, fs.ErrNotExist)
	}

	type rowKey string
	maxCount := make(map[rowKey]int)
	firstSeen := make(map[rowKey]model.Transaction)
	var order []rowKey

	valid := 0
	byFolder := make(map[string]map[rowKey]int)
	for _, path := range files {
		txns, err := readTransactionsFile(path)
		if errors.Is(err, ErrMissingColumns) {
			slog.Debug("skipping non-transaction file", "path", path)
			continue
		}
		if err != nil {
			slog.Warn("skipping unreadable import file", "path", path, "error", err)
			continue
		}
		valid++

		folder := filepath.Dir(path)
		counts := byFolder[folder]
		if counts == nil {
			counts = make(map[rowKey]int)
			byFolder[folder] = counts
		}
		for _, txn := range txns {
			k := rowKey(strings.Join(MarshalTransaction(txn), "\x1f"))
			counts[k]++
			if counts[k] > maxCount[k] {
				if maxCount[k] == 0 {
					firstSeen[k] = txn
					order = append(order, k)
				}
				maxCount[k] = counts[k]
			}
		}
	}
	if valid == 0 {
		return nil, fmt.Errorf("no valid Monarch import files found in %s: %w", outputRoot, fs.ErrNotExist)
	}

	var out []model.Transaction
	for _, k := range order {
		for range maxCount[k] {
			out = append(out, firstSeen[k])
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Date.Before(out[j].Date) })
	return out, nil
}

func readTransactionsFile(path string) ([]model.Transaction, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening %s: %w", path, err)
	}
	defer f.Close()
	return ReadTransactions(f)
}

// BalancePoint is the last known balance from a prior balance history.
type BalancePoint struct {
	Value  decimal.Decimal
	Date   time.Time
	Path   string
	Folder string // run date of the folder holding Path
}

// LatestBalance finds the newest balance history named filename in a dated
// folder strictly before runDate and returns the last non-empty value of
// column (Balance or Original Balance) for account (every row when account
// is ""), ordered by Date. found is false when no prior file exists.
func LatestBalance(outputRoot, filename, runDate, column, account string) (point BalancePoint, found bool, err error) {
	value, err := balanceValue(column)
	if err != nil {
		return BalancePoint{}, false, err
	}

	folders, err := foldersUpTo(outputRoot, runDate, true)
	if errors.Is(err, fs.ErrNotExist) {
		return BalancePoint{}, false, nil
	}
	if err != nil {
		return BalancePoint{}, false, fmt.Errorf("scanning %s: %w", outputRoot, err)
	}

	var latest string
	var folder layout.DatedFolder
	for i := len(folders) - 1; i >= 0; i-- {
		path := filepath.Join(folders[i].Path, filename)
		if info, err := os.Stat(path); err == nil && info.Mode().IsRegular() {
			latest, folder = path, folders[i]
			break
		}
	}
	if latest == "" {
		return BalancePoint{}, false, nil
	}

	snaps, err := readBalancesFile(latest)
	if errors.Is(err, ErrMissingColumns) {
		return BalancePoint{}, false, fmt.Errorf("%w: %w", config.ErrConfig, err)
	}
	if err != nil {
		return BalancePoint{}, false, err
	}
	if len(snaps) == 0 {
		return BalancePoint{}, false, fmt.Errorf("%w: %s has no balance rows", config.ErrConfig, latest)
	}

	if account != "" {
		var filtered []model.BalanceSnapshot
		for _, s := range snaps {
			if s.Account == account {
				filtered = append(filtered, s)
			}
		}
		if len(filtered) == 0 {
			return BalancePoint{}, false, fmt.Errorf("%w: no rows found for account '%s' in %s", config.ErrConfig, account, latest)
		}
		snaps = filtered
	}
	sort.SliceStable(snaps, func(i, j int) bool { return snaps[i].Date.Before(snaps[j].Date) })

	for i := len(snaps) - 1; i >= 0; i-- {
		if v, ok := value(snaps[i]); ok {
			return BalancePoint{Value: v, Date: snaps[i].Date, Path: latest, Folder: folder.Name()}, true, nil
		}
	}
	return BalancePoint{}, false, fmt.Errorf("%w: no values found for '%s' in %s", config.ErrConfig, column, latest)
}

// balanceValue selects a balance history column.
func balanceValue(column string) (func(model.BalanceSnapshot) (decimal.Decimal, bool), error) {
	switch column {
	case ColBalance:
		return func(s model.BalanceSnapshot) (decimal.Decimal, bool) { return s.Balance.Decimal, s.Balance.Valid }, nil
	case ColOriginalBalance:
		return func(s model.BalanceSnapshot) (decimal.Decimal, bool) { return s.OriginalBalance, true }, nil
	}
	return nil, fmt.Errorf("%w: unknown balance column '%s'", config.ErrConfig, column)
}

func readBalancesFile(path string) ([]model.BalanceSnapshot, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening %s: %w", path, err)
	}
	defer f.Close()

	snaps, err := ReadBalances(f)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}
	return snaps, nil
}

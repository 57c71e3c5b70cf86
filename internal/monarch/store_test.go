package monarch

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/revmon-dev/revmon/internal/config"
	"github.com/revmon-dev/revmon/internal/model"
)

func writeFile(t *testing.T, path, contents string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(contents), 0o644))
}

const balanceFixture = "Date,Balance,Original Balance,Account\n" +
	"2024-01-01,100,100,Checking\n" +
	"2024-01-02,110,110,Checking\n" +
	"2024-01-02,200,200,Savings\n"

func TestLatestBalance_AccountSpecific(t *testing.T) {
	root := filepath.Join(t.TempDir(), "output")
	writeFile(t, filepath.Join(root, "2024-01-01", "balance.csv"), balanceFixture)
	writeFile(t, filepath.Join(root, "2024-02-01", "balance.csv"),
		"Date,Balance,Original Balance,Account\n2024-02-01,120,120,Checking\n")

	latest, found, err := LatestBalance(root, "balance.csv", "2024-03-01", "Balance", "Checking")
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, "120.00", latest.Value.StringFixed(2))
	assert.Equal(t, date(2024, 2, 1), latest.Date)
	assert.Equal(t, "2024-02-01", latest.Folder)
	assert.Equal(t, filepath.Join(root, "2024-02-01", "balance.csv"), latest.Path)

	prior, found, err := LatestBalance(root, "balance.csv", "2024-02-01", "Balance", "Checking")
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, "110.00", prior.Value.StringFixed(2))
	assert.Equal(t, date(2024, 1, 2), prior.Date)
	assert.Equal(t, "2024-01-01", prior.Folder)
}

func TestLatestBalance_MissingAccount(t *testing.T) {
	root := filepath.Join(t.TempDir(), "output")
	writeFile(t, filepath.Join(root, "2024-01-01", "balance.csv"), balanceFixture)

	_, _, err := LatestBalance(root, "balance.csv", "2024-02-01", "Balance", "Brokerage")
	require.Error(t, err)
	assert.ErrorIs(t, err, config.ErrConfig)
}

func TestLatestBalance_MissingColumn(t *testing.T) {
	root := filepath.Join(t.TempDir(), "output")
	writeFile(t, filepath.Join(root, "2024-01-01", "balance.csv"), balanceFixture)

	_, _, err := LatestBalance(root, "balance.csv", "2024-02-01", "USD Balance", "Checking")
	require.Error(t, err)
	assert.ErrorIs(t, err, config.ErrConfig)
	assert.Contains(t, err.Error(), "USD Balance")
}

func TestLatestBalance_SkipsEmptyValues(t *testing.T) {
	root := filepath.Join(t.TempDir(), "output")
	writeFile(t, filepath.Join(root, "2024-01-01", "balance.csv"),
		"Date,Balance,Original Balance,Account\n"+
			"2024-01-03,,90,Savings\n"+
			"2024-01-01,150,100,Savings\n")

	got, found, err := LatestBalance(root, "balance.csv", "2024-02-01", "Balance", "Savings")
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, "150.00", got.Value.StringFixed(2))

	got, found, err = LatestBalance(root, "balance.csv", "2024-02-01", "Original Balance", "Savings")
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, "90.00", got.Value.StringFixed(2))
	assert.Equal(t, date(2024, 1, 3), got.Date)
}

func TestLatestBalance_SkipsNaN(t *testing.T) {
	root := filepath.Join(t.TempDir(), "output")
	writeFile(t, filepath.Join(root, "2024-01-01", "balance.csv"),
		"Date,Balance,Original Balance,Account\n"+
			"2024-01-01,120.5,100,Savings\n"+
			"2024-01-02,NaN,101,Savings\n")

	got, found, err := LatestBalance(root, "balance.csv", "2024-02-01", ColBalance, "Savings")
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, "120.50", got.Value.StringFixed(2))
	assert.Equal(t, date(2024, 1, 1), got.Date)
}

func TestLatestBalance_MissingAccountColumn(t *testing.T) {
	root := filepath.Join(t.TempDir(), "output")
	writeFile(t, filepath.Join(root, "2024-01-01", "balance.csv"),
		"Date,Balance,Original Balance\n2024-01-01,1,1\n")

	_, _, err := LatestBalance(root, "balance.csv", "2024-02-01", ColBalance, "Checking")
	require.Error(t, err)
	assert.ErrorIs(t, err, config.ErrConfig)
	assert.ErrorIs(t, err, ErrMissingColumns)
	assert.Contains(t, err.Error(), "Account")
}

func TestLatestBalance_NoPriorFile(t *testing.T) {
	root := filepath.Join(t.TempDir(), "output")
	writeFile(t, filepath.Join(root, "2024-02-01", "balance.csv"), balanceFixture)

	_, found, err := LatestBalance(root, "balance.csv", "2024-02-01", "Balance", "Checking")
	require.NoError(t, err)
	assert.False(t, found)

	_, found, err = LatestBalance(filepath.Join(t.TempDir(), "missing"), "balance.csv", "2024-02-01", "Balance", "")
	require.NoError(t, err)
	assert.False(t, found)
}

func TestLoadTransactions(t *testing.T) {
	root := filepath.Join(t.TempDir(), "output")
	writeFile(t, filepath.Join(root, "2024-01-01", "checking_transaction_import.csv"),
		TransactionHeader+"\n"+
			"2024-01-02,Coffee,,Checking,Coffee,,-5.00,-5.00,\n"+
			"2024-01-01,Salary,,Checking,Salary,,100.00,100.00,\n")
	// Balance history files share the suffix but are skipped.
	writeFile(t, filepath.Join(root, "2024-01-01", "checking_balance_history_import.csv"), balanceFixture)
	// Not an import file.
	writeFile(t, filepath.Join(root, "2024-01-01", "notes.csv"), "x\n")
	// After the run date.
	writeFile(t, filepath.Join(root, "2024-03-01", "checking_transaction_import.csv"),
		TransactionHeader+"\n2024-02-20,Late,,Checking,Late,,-1.00,-1.00,\n")

	txns, err := LoadTransactions(root, "2024-02-01")
	require.NoError(t, err)
	require.Len(t, txns, 2)
	assert.Equal(t, "Salary", txns[0].Merchant)
	assert.Equal(t, "Coffee", txns[1].Merchant)

	all, err := LoadTransactions(root, "")
	require.NoError(t, err)
	assert.Len(t, all, 3)
}

func TestLoadTransactions_DeduplicatesAcrossFolders(t *testing.T) {
	root := filepath.Join(t.TempDir(), "output")
	row := "2024-01-02,Coffee,,Checking,Coffee,,-5.00,-5.00,\n"
	writeFile(t, filepath.Join(root, "2024-01-01", "checking_transaction_import.csv"),
		TransactionHeader+"\n"+row+row)
	writeFile(t, filepath.Join(root, "2024-02-01", "checking_transaction_import.csv"),
		TransactionHeader+"\n"+row+"2024-01-20,Lunch,,Checking,Lunch,,-12.00,-12.00,\n")

	txns, err := LoadTransactions(root, "2024-02-01")
	require.NoError(t, err)
	// Two coffees (same day, same folder) plus lunch.
	require.Len(t, txns, 3)

	var coffees int
	for _, txn := range txns {
		if txn.Merchant == "Coffee" {
			coffees++
		}
	}
	assert.Equal(t, 2, coffees)
}

func TestLoadTransactions_SkipsMalformedFiles(t *testing.T) {
	root := filepath.Join(t.TempDir(), "output")
	writeFile(t, filepath.Join(root, "2024-01-01", "bad_import.csv"),
		"Date,Account,Amount,Original Amount\nnot-a-date,Checking,1,1\n")
	writeFile(t, filepath.Join(root, "2024-01-01", "good_import.csv"),
		"Date,Account,Amount,Original Amount\n2024-01-01,Checking,1,1\n")

	txns, err := LoadTransactions(root, "")
	require.NoError(t, err)
	assert.Len(t, txns, 1)
}

func TestLoadTransactions_NoFiles(t *testing.T) {
	root := filepath.Join(t.TempDir(), "output")
	require.NoError(t, os.MkdirAll(filepath.Join(root, "2024-01-01"), 0o755))

	_, err := LoadTransactions(root, "")
	require.Error(t, err)
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestLoadTransactions_NoValidFiles(t *testing.T) {
	root := filepath.Join(t.TempDir(), "output")
	writeFile(t, filepath.Join(root, "2024-01-01", "balance_import.csv"), balanceFixture)

	_, err := LoadTransactions(root, "")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no valid Monarch import files")
}

func TestSaveTransactions(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out_import.csv")
	require.NoError(t, SaveTransactions(path, []model.Transaction{
		{Date: date(2024, 1, 1), Account: "Checking", Amount: dec("1"), OriginalAmount: dec("1")},
	}))

	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()
	got, err := ReadTransactions(f)
	require.NoError(t, err)
	assert.Len(t, got, 1)
}

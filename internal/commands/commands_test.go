package commands_test

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/revmon-dev/revmon/internal/commands"
	"github.com/revmon-dev/revmon/internal/config"
	"github.com/revmon-dev/revmon/internal/monarch"
	"github.com/revmon-dev/revmon/internal/runlog"
)

const runDate = "2025-01-15"

type project struct {
	dir     string
	cfg     *config.Config
	cfgPath string
}

// newProject lays out input/<runDate>/ with both Revolut exports and a
// revmon.yaml pointing at it.
func newProject(t *testing.T) *project {
	t.Helper()
	dir := t.TempDir()
	inDir := filepath.Join(dir, "input", runDate)
	require.NoError(t, os.MkdirAll(inDir, 0o755))

	for src, dst := range map[string]string{
		"revolut_checking.csv": "checking_transactions.csv",
		"revolut_savings.csv":  "savings_transactions.csv",
	} {
		data, err := os.ReadFile(filepath.Join("..", "..", "testdata", src))
		require.NoError(t, err)
		require.NoError(t, os.WriteFile(filepath.Join(inDir, dst), data, 0o644))
	}

	cfg := config.Default()
	cfg.Paths.Input = filepath.Join(dir, "input")
	cfg.Paths.Output = filepath.Join(dir, "output")
	p := &project{dir: dir, cfg: cfg, cfgPath: filepath.Join(dir, "revmon.yaml")}
	p.save(t)

	t.Setenv(config.EnvRunDate, "")
	t.Setenv(config.EnvAPIKey, "test-key")
	return p
}

func (p *project) save(t *testing.T) {
	t.Helper()
	require.NoError(t, config.Save(p.cfgPath, p.cfg))
}

func (p *project) output(name string) string {
	return filepath.Join(p.cfg.Paths.Output, runDate, name)
}

func (p *project) run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	cmd := commands.NewRootCommand()
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(append(args, "--config", p.cfgPath))
	err := cmd.Execute()
	return out.String(), err
}

// rateServer serves a USDGBP quote of 0.8 for every requested day except
// those in missing.
func rateServer(t *testing.T, missing ...string) *httptest.Server {
	t.Helper()
	skip := make(map[string]bool)
	for _, m := range missing {
		skip[m] = true
	}

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "test-key", r.URL.Query().Get("access_key"))
		start, err := time.Parse("2006-01-02", r.URL.Query().Get("start_date"))
		if !assert.NoError(t, err) {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		end, err := time.Parse("2006-01-02", r.URL.Query().Get("end_date"))
		if !assert.NoError(t, err) {
			w.WriteHeader(http.StatusBadRequest)
			return
		}

		quotes := make(map[string]map[string]float64)
		for d := start; !d.After(end); d = d.AddDate(0, 0, 1) {
			key := d.Format("2006-01-02")
			if !skip[key] {
				quotes[key] = map[string]float64{"USDGBP": 0.8}
			}
		}
		_ = json.NewEncoder(w).Encode(map[string]any{
			"success": true,
			"source":  "USD",
			"quotes":  quotes,
		})
	}))
	t.Cleanup(server.Close)
	t.Setenv(config.EnvAPIURL, server.URL)
	return server
}

func readLines(t *testing.T, path string) []string {
	t.Helper()
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	return strings.Split(strings.TrimSpace(string(data)), "\n")
}

func TestChecking_Converts(t *testing.T) {
	p := newProject(t)
	rateServer(t)

	out, err := p.run(t, "checking")
	require.NoError(t, err, out)

	path := p.output("checking_transaction_import.csv")
	assert.Contains(t, out, "Exported 5 transactions to "+path)

	lines := readLines(t, path)
	// Header + 5 COMPLETED/PENDING rows with valid dates.
	require.Len(t, lines, 6)
	assert.Equal(t, monarch.TransactionHeader, lines[0])
	assert.Equal(t, "2025-01-03,Blue Bottle Coffee,,Revolut Checking,Blue Bottle Coffee,,-6.50,-6.50,", lines[1])
	assert.Equal(t, "2025-01-07,Pret A Manger,,Revolut Checking,Pret A Manger,,-10.25,-8.20,", lines[3])
	assert.Equal(t, `2025-01-12,"Uber *Trip, London",,Revolut Checking,"Uber *Trip, London",,-18.44,-14.75,`, lines[5])

	entries, err := runlog.Read(p.cfg.Paths.Output)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "checking", entries[0].Command)
	assert.Equal(t, runDate, entries[0].RunDate)
	assert.Equal(t, 5, entries[0].Rows)
	assert.Zero(t, entries[0].Skipped)
	assert.NotContains(t, out, "Skipped")
}

func TestChecking_MissingAPIKey(t *testing.T) {
	p := newProject(t)
	t.Setenv(config.EnvAPIKey, "")

	_, err := p.run(t, "checking")
	require.Error(t, err)
	assert.ErrorIs(t, err, config.ErrConfig)
	assert.Contains(t, err.Error(), config.EnvAPIKey)
}

func TestChecking_MissingRateFails(t *testing.T) {
	p := newProject(t)
	rateServer(t, "2025-01-07")

	_, err := p.run(t, "checking")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "GBP on 2025-01-07")

	_, statErr := os.Stat(p.output("checking_transaction_import.csv"))
	assert.True(t, os.IsNotExist(statErr), "no output on failure")
}

func TestChecking_Categories(t *testing.T) {
	p := newProject(t)
	p.cfg.Categories = []config.CategoryRule{{Pattern: "uber*", Category: "Taxi & Ride Shares"}}
	p.save(t)
	rateServer(t)

	_, err := p.run(t, "checking")
	require.NoError(t, err)

	f, err := os.Open(p.output("checking_transaction_import.csv"))
	require.NoError(t, err)
	defer f.Close()
	txns, err := monarch.ReadTransactions(f)
	require.NoError(t, err)
	assert.Equal(t, "Taxi & Ride Shares", txns[4].Category)
	assert.Empty(t, txns[0].Category)
}

func TestSavings_SkipsMissingRates(t *testing.T) {
	p := newProject(t)
	rateServer(t, "2025-01-31")

	out, err := p.run(t, "savings")
	require.NoError(t, err, out)

	path := p.output("savings_transaction_import.csv")
	assert.Contains(t, out, "Exported 3 transactions to "+path)
	assert.Contains(t, out, "Skipped 1 transactions without an exchange rate")

	lines := readLines(t, path)
	require.Len(t, lines, 4)
	assert.Equal(t, "2025-01-02,Interest earned,,Revolut Savings,Interest earned,,1.54,1.23,", lines[1])
	assert.Equal(t, "2025-01-15,Withdrawal,,Revolut Savings,Withdrawal,,-313.13,-250.50,", lines[3])

	entries, err := runlog.Read(p.cfg.Paths.Output)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, 3, entries[0].Rows)
	assert.Equal(t, 1, entries[0].Skipped)
}

func TestRunDate_Invalid(t *testing.T) {
	p := newProject(t)
	t.Setenv(config.EnvRunDate, "15/01/2025")

	_, err := p.run(t, "checking")
	require.Error(t, err)
	assert.ErrorIs(t, err, config.ErrConfig)
}

func TestRunDate_MissingInput(t *testing.T) {
	p := newProject(t)
	t.Setenv(config.EnvRunDate, "2025-02-01")

	_, err := p.run(t, "checking")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "missing input file")
}

func TestCheckingBalance_FromPriorHistory(t *testing.T) {
	p := newProject(t)
	rateServer(t)

	prior := filepath.Join(p.cfg.Paths.Output, "2025-01-01", "checking_balance_history_import.csv")
	require.NoError(t, os.MkdirAll(filepath.Dir(prior), 0o755))
	require.NoError(t, os.WriteFile(prior, []byte(monarch.BalanceHeader+"\n2025-01-01,1000.00,1000.00,Revolut Checking\n"), 0o644))

	_, err := p.run(t, "checking")
	require.NoError(t, err)

	out, err := p.run(t, "checking-balance")
	require.NoError(t, err, out)

	lines := readLines(t, p.output("checking_balance_history_import.csv"))
	assert.Equal(t, []string{
		monarch.BalanceHeader,
		"2025-01-03,993.50,993.50,Revolut Checking",
		"2025-01-05,3493.50,3493.50,Revolut Checking",
		"2025-01-07,3483.25,3483.25,Revolut Checking",
		"2025-01-10,2983.25,2983.25,Revolut Checking",
		"2025-01-12,2964.81,2964.81,Revolut Checking",
	}, lines)

	entries, err := runlog.Read(p.cfg.Paths.Output)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, "checking-balance", entries[1].Command)
}

func writeOutput(t *testing.T, p *project, folder, name, contents string) {
	t.Helper()
	path := filepath.Join(p.cfg.Paths.Output, folder, name)
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(contents), 0o644))
}

func TestCheckingBalance_ReplaysLastHistoryDay(t *testing.T) {
	p := newProject(t)

	coffee := "2025-01-10,Coffee,,Revolut Checking,Coffee,,-5.00,-5.00,\n"
	// The 2025-01-10 export saw one coffee; its history closed the day at 995.
	writeOutput(t, p, "2025-01-10", "checking_transaction_import.csv", monarch.TransactionHeader+"\n"+coffee)
	writeOutput(t, p, "2025-01-10", "checking_balance_history_import.csv",
		monarch.BalanceHeader+"\n"+
			"2025-01-08,1000.00,1000.00,Revolut Checking\n"+
			"2025-01-10,995.00,995.00,Revolut Checking\n")
	// A later export adds a second payment made on 2025-01-10.
	writeOutput(t, p, runDate, "checking_transaction_import.csv",
		monarch.TransactionHeader+"\n"+
			coffee+
			"2025-01-10,Groceries,,Revolut Checking,Groceries,,-20.00,-20.00,\n"+
			"2025-01-12,Snack,,Revolut Checking,Snack,,-1.00,-1.00,\n")

	out, err := p.run(t, "checking-balance")
	require.NoError(t, err, out)

	lines := readLines(t, p.output("checking_balance_history_import.csv"))
	assert.Equal(t, []string{
		monarch.BalanceHeader,
		"2025-01-10,975.00,975.00,Revolut Checking",
		"2025-01-12,974.00,974.00,Revolut Checking",
	}, lines)
}

func TestCheckingBalance_SingleRowHistory(t *testing.T) {
	p := newProject(t)

	coffee := "2025-01-10,Coffee,,Revolut Checking,Coffee,,-5.00,-5.00,\n"
	writeOutput(t, p, "2025-01-10", "checking_transaction_import.csv", monarch.TransactionHeader+"\n"+coffee)
	writeOutput(t, p, "2025-01-10", "checking_balance_history_import.csv",
		monarch.BalanceHeader+"\n2025-01-10,995.00,995.00,Revolut Checking\n")
	writeOutput(t, p, runDate, "checking_transaction_import.csv",
		monarch.TransactionHeader+"\n"+
			coffee+
			"2025-01-10,Groceries,,Revolut Checking,Groceries,,-20.00,-20.00,\n"+
			"2025-01-12,Snack,,Revolut Checking,Snack,,-1.00,-1.00,\n")

	out, err := p.run(t, "checking-balance")
	require.NoError(t, err, out)

	lines := readLines(t, p.output("checking_balance_history_import.csv"))
	assert.Equal(t, []string{
		monarch.BalanceHeader,
		"2025-01-10,975.00,975.00,Revolut Checking",
		"2025-01-12,974.00,974.00,Revolut Checking",
	}, lines)
}

func TestSavingsBalance_FromOpeningBalance(t *testing.T) {
	p := newProject(t)
	p.cfg.Savings.OpeningBalance = "0"
	p.save(t)
	rateServer(t)

	_, err := p.run(t, "savings")
	require.NoError(t, err)

	out, err := p.run(t, "savings-balance")
	require.NoError(t, err, out)
	assert.Contains(t, out, "Exported 4 transactions")

	lines := readLines(t, p.output("savings_balance_history_import.csv"))
	assert.Equal(t, []string{
		monarch.BalanceHeader,
		"2025-01-02,1.54,1.23,Revolut Savings",
		"2025-01-10,1251.54,1001.23,Revolut Savings",
		"2025-01-15,938.41,750.73,Revolut Savings",
		"2025-01-31,941.04,752.83,Revolut Savings",
	}, lines)
}

func TestBalance_NoPriorHistory(t *testing.T) {
	p := newProject(t)
	rateServer(t)

	_, err := p.run(t, "checking")
	require.NoError(t, err)

	_, err = p.run(t, "checking-balance")
	require.Error(t, err)
	assert.ErrorIs(t, err, config.ErrConfig)
	assert.Contains(t, err.Error(), "cannot infer starting balance")
}

func TestBalance_NoTransactions(t *testing.T) {
	p := newProject(t)
	p.cfg.Checking.OpeningBalance = "10"
	p.save(t)

	_, err := p.run(t, "checking-balance")
	require.Error(t, err)
}

func TestRoot_RejectsArgs(t *testing.T) {
	p := newProject(t)
	_, err := p.run(t, "checking", "extra")
	assert.Error(t, err)
}

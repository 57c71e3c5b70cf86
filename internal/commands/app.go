package commands

import (
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/spf13/cobra"

	"github.com/revmon-dev/revmon/internal/config"
	"github.com/revmon-dev/revmon/internal/exchange"
	"github.com/revmon-dev/revmon/internal/runlog"
)

// app bundles what every pipeline needs for one invocation.
type app struct {
	cfg    *config.Config
	env    config.Env
	out    io.Writer
	logger *slog.Logger
}

type appLoader func(cmd *cobra.Command) (*app, error)

// account returns the config for "checking" or "savings".
func (a *app) account(key string) config.AccountConfig {
	if key == "savings" {
		return a.cfg.Savings
	}
	return a.cfg.Checking
}

// exchangeClient builds the rate client; the API key is required here.
func (a *app) exchangeClient() (*exchange.Client, error) {
	key, err := a.env.RequireAPIKey()
	if err != nil {
		return nil, err
	}
	return exchange.NewClient(
		a.env.APIURLOr(a.cfg.Exchange.URL),
		key,
		exchange.WithTimeout(a.cfg.Exchange.Timeout),
		exchange.WithRetries(a.cfg.Exchange.Retries, time.Second),
		exchange.WithLogger(a.logger),
	), nil
}

// finish records the run and prints the summary line.
func (a *app) finish(command, runDate string, rows, skipped int, path string) {
	if err := runlog.Append(a.cfg.Paths.Output, []runlog.Entry{runlog.NewEntry(command, runDate, rows, skipped, path)}); err != nil {
		a.logger.Warn("failed to write run log", "error", err)
	}
	fmt.Fprintf(a.out, "Exported %d transactions to %s\n", rows, path)
	if skipped > 0 {
		fmt.Fprintf(a.out, "Skipped %d transactions without an exchange rate\n", skipped)
	}
}

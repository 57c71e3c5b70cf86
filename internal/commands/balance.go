package commands

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"path/filepath"
	"time"

	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"

	"github.com/revmon-dev/revmon/internal/balance"
	"github.com/revmon-dev/revmon/internal/config"
	"github.com/revmon-dev/revmon/internal/exchange"
	"github.com/revmon-dev/revmon/internal/layout"
	"github.com/revmon-dev/revmon/internal/model"
	"github.com/revmon-dev/revmon/internal/monarch"
)

func newBalanceCommand(use, key, short string, load appLoader) *cobra.Command {
	return &cobra.Command{
		Use:   use,
		Short: short,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := load(cmd)
			if err != nil {
				return err
			}
			return runBalance(cmd.Context(), a, use, key)
		},
	}
}

// startingBalance resolves where the running balance begins and the first
// day to accumulate from.
//
// With a prior history the balance resumes at the open of its last day: the
// day's transactions as they stood when that history was written are backed
// out, and the whole day is replayed from the current exports, so rows of
// that day exported later are not lost. Otherwise the configured opening
// balance applies to every transaction.
func startingBalance(a *app, cfg config.AccountConfig, runDate string) (decimal.Decimal, time.Time, error) {
	acct := model.Account{Name: cfg.Name, Currency: cfg.Currency}
	column := monarch.ColOriginalBalance
	if acct.IsUSD() {
		column = monarch.ColBalance
	}

	point, found, err := monarch.LatestBalance(a.cfg.Paths.Output, cfg.BalanceOutput, runDate, column, acct.Name)
	if err != nil {
		return decimal.Zero, time.Time{}, err
	}
	if found {
		prior, err := monarch.LoadTransactions(a.cfg.Paths.Output, point.Folder)
		if err != nil && !errors.Is(err, fs.ErrNotExist) {
			return decimal.Zero, time.Time{}, err
		}
		dayTotal := balance.DayTotal(prior, acct, point.Date)
		a.logger.Debug("starting from prior balance",
			"path", point.Path,
			"value", point.Value.String(),
			"date", point.Date.Format(model.DateFormat),
			"replayed", dayTotal.String(),
		)
		return point.Value.Sub(dayTotal), point.Date, nil
	}

	if cfg.OpeningBalance == "" {
		return decimal.Zero, time.Time{}, fmt.Errorf("%w: no prior balance history found for %s; cannot infer starting balance", config.ErrConfig, acct.Name)
	}
	opening, err := decimal.NewFromString(cfg.OpeningBalance)
	if err != nil {
		return decimal.Zero, time.Time{}, fmt.Errorf("%w: invalid opening_balance %q for %s", config.ErrConfig, cfg.OpeningBalance, acct.Name)
	}
	return opening, time.Time{}, nil
}

func runBalance(ctx context.Context, a *app, command, key string) error {
	acct := a.account(key)

	runDate, err := layout.RunDate(a.env, a.cfg.Paths.Input)
	if err != nil {
		return err
	}
	outDir, err := layout.OutputDir(a.cfg.Paths.Output, runDate)
	if err != nil {
		return err
	}

	start, since, err := startingBalance(a, acct, runDate)
	if err != nil {
		return err
	}

	txns, err := monarch.LoadTransactions(a.cfg.Paths.Output, runDate)
	if err != nil {
		return err
	}
	txns = balance.ForAccount(txns, acct.Name)
	if len(txns) == 0 {
		return fmt.Errorf("no transactions found for %s", acct.Name)
	}
	txns = balance.Since(txns, since)
	if len(txns) == 0 {
		return fmt.Errorf("no transactions for %s since %s", acct.Name, since.Format(model.DateFormat))
	}

	lookup := balance.NoRates
	if acct.Currency != model.USD {
		client, err := a.exchangeClient()
		if err != nil {
			return err
		}
		first, last := balance.DateRange(txns)
		quotes, err := client.FetchTimeframe(ctx, first, last)
		if err != nil {
			return fmt.Errorf("fetching exchange rates: %w", err)
		}
		series, err := exchange.USDRateSeries(quotes, acct.Currency)
		if err != nil {
			return err
		}
		lookup = func(date, currency string) (decimal.Decimal, bool) {
			if currency != acct.Currency {
				return decimal.Zero, false
			}
			r, ok := series[date]
			return r, ok
		}
	}

	snaps, err := balance.BuildHistory(txns, []model.Account{{
		Name:            acct.Name,
		Currency:        acct.Currency,
		StartingBalance: start,
	}}, lookup, a.logger)
	if err != nil {
		return err
	}

	outPath := filepath.Join(outDir, acct.BalanceOutput)
	if err := monarch.SaveBalances(outPath, snaps); err != nil {
		return err
	}

	a.finish(command, runDate, len(snaps), 0, outPath)
	return nil
}

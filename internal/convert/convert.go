// Package convert turns Revolut bank transactions into Monarch import rows.
package convert

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/shopspring/decimal"

	"github.com/revmon-dev/revmon/internal/exchange"
	"github.com/revmon-dev/revmon/internal/model"
)

// ErrMissingRate is returned when a row has no exchange rate and the
// converter is not allowed to skip it.
var ErrMissingRate = errors.New("no exchange rate found")

// RateFetcher fetches daily quotes for a date range.
type RateFetcher interface {
	FetchTimeframe(ctx context.Context, start, end time.Time) (*exchange.Quotes, error)
}

// Converter maps BankTransactions for one account onto Monarch rows.
type Converter struct {
	Account          string
	SkipMissingRates bool
	Categories       *Categorizer
	// Rates is only consulted when NeedsRates reports true.
	Rates  RateFetcher
	Logger *slog.Logger
}

// Result summarizes one conversion.
type Result struct {
	Transactions []model.Transaction
	Skipped      int
}

// NeedsRates reports whether any transaction is in a currency other than USD.
func NeedsRates(txns []model.BankTransaction) bool {
	for _, t := range txns {
		if t.Currency != model.USD {
			return true
		}
	}
	return false
}

func currencies(txns []model.BankTransaction) []string {
	seen := make(map[string]bool)
	var out []string
	for _, t := range txns {
		if t.Currency != "" && !seen[t.Currency] {
			seen[t.Currency] = true
			out = append(out, t.Currency)
		}
	}
	return out
}

func dateRange(txns []model.BankTransaction) (start, end time.Time) {
	for i, t := range txns {
		if i == 0 || t.Date.Before(start) {
			start = t.Date
		}
		if i == 0 || t.Date.After(end) {
			end = t.Date
		}
	}
	return start, end
}

// rates fetches USD conversion rates covering txns.
func (c *Converter) rates(ctx context.Context, txns []model.BankTransaction) (exchange.Rates, error) {
	if !NeedsRates(txns) {
		rates := make(exchange.Rates)
		for _, t := range txns {
			rates[exchange.RateKey{Date: t.Date.Format(model.DateFormat), Currency: model.USD}] = decimal.NewFromInt(1)
		}
		return rates, nil
	}
	if c.Rates == nil {
		return nil, fmt.Errorf("converting %s: exchange rates required but no rate source configured", c.Account)
	}

	start, end := dateRange(txns)
	quotes, err := c.Rates.FetchTimeframe(ctx, start, end)
	if err != nil {
		return nil, fmt.Errorf("fetching exchange rates: %w", err)
	}
	return exchange.USDRates(quotes, currencies(txns))
}

// Convert produces one Monarch row per bank transaction. Amount is the USD
// value rounded to cents; Original Amount keeps the source amount.
func (c *Converter) Convert(ctx context.Context, txns []model.BankTransaction) (Result, error) {
	logger := c.Logger
	if logger == nil {
		logger = slog.Default()
	}
	if len(txns) == 0 {
		return Result{}, nil
	}

	rates, err := c.rates(ctx, txns)
	if err != nil {
		return Result{}, err
	}

	var res Result
	for _, t := range txns {
		dateStr := t.Date.Format(model.DateFormat)
		rate, ok := rates.Lookup(dateStr, t.Currency)
		if !ok {
			if !c.SkipMissingRates {
				return Result{}, fmt.Errorf("%w for %s on %s", ErrMissingRate, t.Currency, dateStr)
			}
			logger.Warn("no exchange rate, skipping row",
				"currency", t.Currency,
				"date", dateStr,
				"description", t.Description,
			)
			res.Skipped++
			continue
		}

		res.Transactions = append(res.Transactions, model.Transaction{
			Date:              model.Day(t.Date),
			Merchant:          t.Description,
			Category:          c.Categories.Category(t.Description),
			Account:           c.Account,
			OriginalStatement: t.Description,
			Amount:            t.Amount.Mul(rate).Round(2),
			OriginalAmount:    t.Amount,
		})
	}
	return res, nil
}

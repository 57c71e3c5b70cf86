// Package balance accumulates Monarch transactions into daily balance
// history snapshots.
package balance

import (
	"errors"
	"log/slog"
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"github.com/revmon-dev/revmon/internal/model"
)

// ErrNoBalances is returned when no account produced a snapshot.
var ErrNoBalances = errors.New("no balances generated for requested accounts")

// RateLookup returns the USD rate for currency on a YYYY-MM-DD date.
type RateLookup func(date, currency string) (decimal.Decimal, bool)

// NoRates is a RateLookup for USD-only histories.
func NoRates(string, string) (decimal.Decimal, bool) { return decimal.Zero, false }

// ForAccount returns the transactions belonging to account.
func ForAccount(txns []model.Transaction, account string) []model.Transaction {
	var out []model.Transaction
	for _, t := range txns {
		if t.Account == account {
			out = append(out, t)
		}
	}
	return out
}

// Since returns the transactions dated on or after since. A zero since
// keeps everything.
func Since(txns []model.Transaction, since time.Time) []model.Transaction {
	if since.IsZero() {
		return txns
	}
	var out []model.Transaction
	for _, t := range txns {
		if !t.Date.Before(since) {
			out = append(out, t)
		}
	}
	return out
}

// DayTotal sums acct's transactions on day in the currency its balance is
// kept in.
func DayTotal(txns []model.Transaction, acct model.Account, day time.Time) decimal.Decimal {
	amount := amountFor(acct)
	day = model.Day(day)
	total := decimal.Zero
	for _, t := range txns {
		if t.Account == acct.Name && model.Day(t.Date).Equal(day) {
			total = total.Add(amount(t))
		}
	}
	return total
}

// amountFor picks Amount for USD accounts and Original Amount otherwise.
func amountFor(acct model.Account) func(model.Transaction) decimal.Decimal {
	if acct.IsUSD() {
		return func(t model.Transaction) decimal.Decimal { return t.Amount }
	}
	return func(t model.Transaction) decimal.Decimal { return t.OriginalAmount }
}

// DateRange returns the earliest and latest transaction dates.
func DateRange(txns []model.Transaction) (start, end time.Time) {
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

type dailyTotal struct {
	date  time.Time
	total decimal.Decimal
}

// dailyTotals sums amount per day in ascending date order.
func dailyTotals(txns []model.Transaction, amount func(model.Transaction) decimal.Decimal) []dailyTotal {
	byDay := make(map[time.Time]decimal.Decimal)
	for _, t := range txns {
		d := model.Day(t.Date)
		byDay[d] = byDay[d].Add(amount(t))
	}
	days := make([]dailyTotal, 0, len(byDay))
	for d, total := range byDay {
		days = append(days, dailyTotal{date: d, total: total})
	}
	sort.Slice(days, func(i, j int) bool { return days[i].date.Before(days[j].date) })
	return days
}

// BuildHistory produces one snapshot per account per transaction day.
//
// USD accounts accumulate Amount and report it as both balances. Other
// accounts accumulate Original Amount and convert each day's running total
// with lookup; days without a rate keep an empty USD balance and are logged
// to logger (slog.Default when nil). Results are ordered by account name,
// then date.
func BuildHistory(txns []model.Transaction, accounts []model.Account, lookup RateLookup, logger *slog.Logger) ([]model.BalanceSnapshot, error) {
	if logger == nil {
		logger = slog.Default()
	}
	var snaps []model.BalanceSnapshot

	for _, acct := range accounts {
		accTxns := ForAccount(txns, acct.Name)
		if len(accTxns) == 0 {
			continue
		}

		running := acct.StartingBalance
		for _, day := range dailyTotals(accTxns, amountFor(acct)) {
			running = running.Add(day.total)
			snap := model.BalanceSnapshot{
				Date:            day.date,
				OriginalBalance: running,
				Account:         acct.Name,
			}

			if acct.IsUSD() {
				snap.Balance = decimal.NewNullDecimal(running)
			} else {
				dateStr := day.date.Format(model.DateFormat)
				if rate, ok := lookup(dateStr, acct.Currency); ok {
					snap.Balance = decimal.NewNullDecimal(running.Mul(rate).Round(2))
				} else {
					logger.Warn("no exchange rate, leaving USD balance empty",
						"date", dateStr,
						"currency", acct.Currency,
						"account", acct.Name,
					)
				}
			}
			snaps = append(snaps, snap)
		}
	}

	if len(snaps) == 0 {
		return nil, ErrNoBalances
	}

	sort.SliceStable(snaps, func(i, j int) bool {
		if snaps[i].Account != snaps[j].Account {
			return snaps[i].Account < snaps[j].Account
		}
		return snaps[i].Date.Before(snaps[j].Date)
	})
	return snaps, nil
}

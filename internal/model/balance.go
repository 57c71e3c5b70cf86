package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// USD is the currency Monarch amounts are reported in.
const USD = "USD"

// Account describes one Revolut account whose history is being tracked.
type Account struct {
	Name            string
	Currency        string
	StartingBalance decimal.Decimal
}

// IsUSD reports whether the account is held in US dollars.
func (a Account) IsUSD() bool { return a.Currency == USD }

// BalanceSnapshot is one row of a Monarch balance history import file.
type BalanceSnapshot struct {
	Date            time.Time
	Balance         decimal.NullDecimal // USD; invalid when no rate was available
	OriginalBalance decimal.Decimal
	Account         string
}

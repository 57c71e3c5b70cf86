package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// DateFormat is the ISO day format used for folder names and CSV dates.
const DateFormat = "2006-01-02"

// BankTransaction represents a parsed Revolut export row.
type BankTransaction struct {
	Date        time.Time
	Description string
	Amount      decimal.Decimal // negative = money out, positive = money in
	Currency    string
	State       string // COMPLETED, PENDING, ... (checking only)
	Type        string // Revolut transaction type (CARD_PAYMENT, TOPUP, ...)
}

// Transaction is one row of a Monarch transaction import file.
type Transaction struct {
	Date              time.Time
	Merchant          string
	Category          string
	Account           string
	OriginalStatement string
	Notes             string
	Amount            decimal.Decimal // USD, rounded to cents
	OriginalAmount    decimal.Decimal // account currency
	Tags              string
}

// Day truncates t to midnight UTC of its calendar day.
func Day(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

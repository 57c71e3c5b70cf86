package importer

import (
	"encoding/csv"
	"fmt"
	"io"
	"log/slog"
	"slices"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/revmon-dev/revmon/internal/model"
)

const (
	colType        = "Type"
	colStarted     = "Started Date"
	colDescription = "Description"
	colAmount      = "Amount"
	colCurrency    = "Currency"
	colState       = "State"

	colDate     = "Date"
	colMoneyIn  = "Money in"
	colMoneyOut = "Money out"

	savingsDateFormat = "Jan 2, 2006"
)

// checkingDateFormats are tried in order for the Started Date column.
var checkingDateFormats = []string{
	"2006-01-02 15:04:05",
	"2006-01-02 15:04",
	"2006-01-02T15:04:05Z07:00",
	model.DateFormat,
}

// DefaultStates are the checking transaction states that reach Monarch.
var DefaultStates = []string{"COMPLETED", "PENDING"}

// CheckingParser parses Revolut current account statement exports.
type CheckingParser struct {
	// States overrides DefaultStates when non-empty.
	States []string
}

// Format returns the parser name.
func (p *CheckingParser) Format() string { return "checking" }

// Parse reads a checking export. Rows in other states or with an unparseable
// Started Date are dropped.
func (p *CheckingParser) Parse(r io.Reader) ([]model.BankTransaction, error) {
	records, err := readRecords(r)
	if err != nil {
		return nil, fmt.Errorf("reading checking CSV: %w", err)
	}
	if len(records) == 0 {
		return nil, nil
	}

	cols, err := indexHeader(records[0], colStarted, colDescription, colAmount, colCurrency, colState)
	if err != nil {
		return nil, fmt.Errorf("checking CSV: %w", err)
	}

	states := p.States
	if len(states) == 0 {
		states = DefaultStates
	}

	var txns []model.BankTransaction
	for i, rec := range records[1:] {
		row := i + 2
		if !slices.Contains(states, cols.get(rec, colState)) {
			continue
		}

		date, ok := parseCheckingDate(cols.get(rec, colStarted))
		if !ok {
			slog.Debug("dropping row with unparseable date", "row", row, "value", cols.get(rec, colStarted))
			continue
		}

		amount, err := decimal.NewFromString(cols.get(rec, colAmount))
		if err != nil {
			return nil, fmt.Errorf("row %d: parsing amount %q: %w", row, cols.get(rec, colAmount), err)
		}

		txns = append(txns, model.BankTransaction{
			Date:        date,
			Description: cols.get(rec, colDescription),
			Amount:      amount,
			Currency:    strings.ToUpper(cols.get(rec, colCurrency)),
			State:       cols.get(rec, colState),
			Type:        cols.get(rec, colType),
		})
	}
	return txns, nil
}

func parseCheckingDate(s string) (time.Time, bool) {
	for _, layout := range checkingDateFormats {
		if t, err := time.Parse(layout, s); err == nil {
			return model.Day(t), true
		}
	}
	return time.Time{}, false
}

// SavingsParser parses Revolut savings account statement exports, which
// split amounts into Money in and Money out columns.
type SavingsParser struct {
	Currency string
	Symbol   string // stripped from money values, e.g. "£"
}

// Format returns the parser name.
func (p *SavingsParser) Format() string { return "savings" }

// Parse reads a savings export. Rows with an unparseable Date are dropped.
func (p *SavingsParser) Parse(r io.Reader) ([]model.BankTransaction, error) {
	records, err := readRecords(r)
	if err != nil {
		return nil, fmt.Errorf("reading savings CSV: %w", err)
	}
	if len(records) == 0 {
		return nil, nil
	}

	cols, err := indexHeader(records[0], colDate, colDescription, colMoneyIn, colMoneyOut)
	if err != nil {
		return nil, fmt.Errorf("savings CSV: %w", err)
	}

	var txns []model.BankTransaction
	for i, rec := range records[1:] {
		row := i + 2
		date, err := time.Parse(savingsDateFormat, cols.get(rec, colDate))
		if err != nil {
			slog.Debug("dropping row with unparseable date", "row", row, "value", cols.get(rec, colDate))
			continue
		}

		in, err := ParseMoney(cols.get(rec, colMoneyIn), p.Symbol)
		if err != nil {
			return nil, fmt.Errorf("row %d: parsing money in: %w", row, err)
		}
		out, err := ParseMoney(cols.get(rec, colMoneyOut), p.Symbol)
		if err != nil {
			return nil, fmt.Errorf("row %d: parsing money out: %w", row, err)
		}

		txns = append(txns, model.BankTransaction{
			Date:        date,
			Description: cols.get(rec, colDescription),
			Amount:      in.Sub(out),
			Currency:    p.Currency,
		})
	}
	return txns, nil
}

// ParseMoney parses a display amount such as "£1,234.50". Blank is zero.
func ParseMoney(value, symbol string) (decimal.Decimal, error) {
	text := value
	if symbol != "" {
		text = strings.ReplaceAll(text, symbol, "")
	}
	text = strings.TrimSpace(strings.ReplaceAll(text, ",", ""))
	if text == "" || strings.EqualFold(text, "nan") {
		return decimal.Zero, nil
	}
	d, err := decimal.NewFromString(text)
	if err != nil {
		return decimal.Zero, fmt.Errorf("parsing amount %q: %w", value, err)
	}
	return d, nil
}

func readRecords(r io.Reader) ([][]string, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	return cr.ReadAll()
}

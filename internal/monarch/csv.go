package monarch

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/revmon-dev/revmon/internal/model"
)

// TransactionHeader is the Monarch transaction import header.
const TransactionHeader = "Date,Merchant,Category,Account,Original Statement,Notes,Amount,Original Amount,Tags"

// BalanceHeader is the Monarch balance history import header.
const BalanceHeader = "Date,Balance,Original Balance,Account"

// Column names shared by both file kinds.
const (
	ColDate            = "Date"
	ColMerchant        = "Merchant"
	ColCategory        = "Category"
	ColAccount         = "Account"
	ColStatement       = "Original Statement"
	ColNotes           = "Notes"
	ColAmount          = "Amount"
	ColOriginalAmount  = "Original Amount"
	ColTags            = "Tags"
	ColBalance         = "Balance"
	ColOriginalBalance = "Original Balance"
)

const (
	numTxnFields = 9
	colTxnDate   = 0
	colTxnMerch  = 1
	colTxnCat    = 2
	colTxnAcct   = 3
	colTxnStmt   = 4
	colTxnNotes  = 5
	colTxnAmt    = 6
	colTxnOrig   = 7
	colTxnTags   = 8

	numBalFields = 4
	colBalDate   = 0
	colBalUSD    = 1
	colBalOrig   = 2
	colBalAcct   = 3
)

// ErrMissingColumns is returned when a file lacks the columns a reader needs.
var ErrMissingColumns = errors.New("missing required columns")

// requiredTxnColumns are the columns balance history generation relies on.
var requiredTxnColumns = []string{ColDate, ColAccount, ColAmount, ColOriginalAmount}

// WriteTransactions writes a Monarch transaction import (including header).
func WriteTransactions(w io.Writer, txns []model.Transaction) error {
	cw := csv.NewWriter(w)
	defer cw.Flush()

	if err := cw.Write(strings.Split(TransactionHeader, ",")); err != nil {
		return fmt.Errorf("writing header: %w", err)
	}

	for i, txn := range txns {
		if err := cw.Write(MarshalTransaction(txn)); err != nil {
			return fmt.Errorf("writing row %d: %w", i+2, err)
		}
	}
	cw.Flush()
	return cw.Error()
}

// MarshalTransaction converts a Transaction to a CSV row.
func MarshalTransaction(txn model.Transaction) []string {
	row := make([]string, numTxnFields)
	row[colTxnDate] = txn.Date.Format(model.DateFormat)
	row[colTxnMerch] = txn.Merchant
	row[colTxnCat] = txn.Category
	row[colTxnAcct] = txn.Account
	row[colTxnStmt] = txn.OriginalStatement
	row[colTxnNotes] = txn.Notes
	row[colTxnAmt] = FormatMoney(txn.Amount)
	row[colTxnOrig] = FormatMoney(txn.OriginalAmount)
	row[colTxnTags] = txn.Tags
	return row
}

// ReadTransactions reads a Monarch transaction import. Columns are located by
// header name; only Date, Account, Amount and Original Amount are required.
func ReadTransactions(r io.Reader) ([]model.Transaction, error) {
	t, err := readTable(r)
	if err != nil {
		return nil, fmt.Errorf("reading transactions CSV: %w", err)
	}
	if t == nil {
		return nil, fmt.Errorf("empty file: %w", ErrMissingColumns)
	}
	if err := t.require(requiredTxnColumns...); err != nil {
		return nil, err
	}

	var txns []model.Transaction
	for i, rec := range t.rows {
		txn, err := unmarshalTransaction(t, rec)
		if err != nil {
			return nil, fmt.Errorf("row %d: %w", i+2, err)
		}
		txns = append(txns, txn)
	}
	return txns, nil
}

func unmarshalTransaction(t *table, rec []string) (model.Transaction, error) {
	date, err := ParseDate(t.get(rec, ColDate))
	if err != nil {
		return model.Transaction{}, err
	}
	amount, err := parseDecimal(ColAmount, t.get(rec, ColAmount))
	if err != nil {
		return model.Transaction{}, err
	}
	orig, err := parseDecimal(ColOriginalAmount, t.get(rec, ColOriginalAmount))
	if err != nil {
		return model.Transaction{}, err
	}

	return model.Transaction{
		Date:              date,
		Merchant:          t.get(rec, ColMerchant),
		Category:          t.get(rec, ColCategory),
		Account:           t.get(rec, ColAccount),
		OriginalStatement: t.get(rec, ColStatement),
		Notes:             t.get(rec, ColNotes),
		Amount:            amount,
		OriginalAmount:    orig,
		Tags:              t.get(rec, ColTags),
	}, nil
}

// WriteBalances writes a Monarch balance history import (including header).
func WriteBalances(w io.Writer, snaps []model.BalanceSnapshot) error {
	cw := csv.NewWriter(w)
	defer cw.Flush()

	if err := cw.Write(strings.Split(BalanceHeader, ",")); err != nil {
		return fmt.Errorf("writing header: %w", err)
	}

	for i, s := range snaps {
		if err := cw.Write(MarshalBalance(s)); err != nil {
			return fmt.Errorf("writing row %d: %w", i+2, err)
		}
	}
	cw.Flush()
	return cw.Error()
}

// MarshalBalance converts a BalanceSnapshot to a CSV row. A snapshot without
// a USD balance leaves the Balance cell empty.
func MarshalBalance(s model.BalanceSnapshot) []string {
	row := make([]string, numBalFields)
	row[colBalDate] = s.Date.Format(model.DateFormat)
	if s.Balance.Valid {
		row[colBalUSD] = FormatMoney(s.Balance.Decimal)
	}
	row[colBalOrig] = FormatMoney(s.OriginalBalance)
	row[colBalAcct] = s.Account
	return row
}

// ReadBalances reads a Monarch balance history import. An empty or NaN
// Balance cell leaves the USD balance unset.
func ReadBalances(r io.Reader) ([]model.BalanceSnapshot, error) {
	t, err := readTable(r)
	if err != nil {
		return nil, fmt.Errorf("reading balance CSV: %w", err)
	}
	if t == nil {
		return nil, nil
	}
	if err := t.require(ColDate, ColBalance, ColOriginalBalance, ColAccount); err != nil {
		return nil, err
	}

	var snaps []model.BalanceSnapshot
	for i, rec := range t.rows {
		date, err := ParseDate(t.get(rec, ColDate))
		if err != nil {
			return nil, fmt.Errorf("row %d: %w", i+2, err)
		}
		var usd decimal.NullDecimal
		if v := t.get(rec, ColBalance); v != "" && !strings.EqualFold(v, "nan") {
			d, err := parseDecimal(ColBalance, v)
			if err != nil {
				return nil, fmt.Errorf("row %d: %w", i+2, err)
			}
			usd = decimal.NewNullDecimal(d)
		}
		orig, err := parseDecimal(ColOriginalBalance, t.get(rec, ColOriginalBalance))
		if err != nil {
			return nil, fmt.Errorf("row %d: %w", i+2, err)
		}
		snaps = append(snaps, model.BalanceSnapshot{
			Date:            date,
			Balance:         usd,
			OriginalBalance: orig,
			Account:         t.get(rec, ColAccount),
		})
	}
	return snaps, nil
}

// FormatMoney renders cents precision, keeping extra places when present.
func FormatMoney(d decimal.Decimal) string {
	if d.Exponent() >= -2 {
		return d.StringFixed(2)
	}
	return d.String()
}

// dateFormats accepts plain dates and pandas-style timestamps.
var dateFormats = []string{model.DateFormat, "2006-01-02 15:04:05"}

// ParseDate parses a Date cell.
func ParseDate(s string) (time.Time, error) {
	for _, layout := range dateFormats {
		if t, err := time.Parse(layout, s); err == nil {
			return model.Day(t), nil
		}
	}
	return time.Time{}, fmt.Errorf("parsing date %q", s)
}

func parseDecimal(col, v string) (decimal.Decimal, error) {
	if v == "" {
		return decimal.Zero, nil
	}
	d, err := decimal.NewFromString(v)
	if err != nil {
		return decimal.Zero, fmt.Errorf("parsing %s %q: %w", strings.ToLower(col), v, err)
	}
	return d, nil
}

// table is a header-addressed CSV.
type table struct {
	cols map[string]int
	rows [][]string
}

// readTable returns nil for an empty input.
func readTable(r io.Reader) (*table, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1

	records, err := cr.ReadAll()
	if err != nil {
		return nil, err
	}
	if len(records) == 0 {
		return nil, nil
	}

	cols := make(map[string]int, len(records[0]))
	for i, h := range records[0] {
		cols[strings.TrimSpace(strings.TrimPrefix(h, "\ufeff"))] = i
	}
	return &table{cols: cols, rows: records[1:]}, nil
}

func (t *table) has(name string) bool {
	_, ok := t.cols[name]
	return ok
}

func (t *table) require(names ...string) error {
	var missing []string
	for _, n := range names {
		if !t.has(n) {
			missing = append(missing, n)
		}
	}
	if len(missing) > 0 {
		return fmt.Errorf("%w: %s", ErrMissingColumns, strings.Join(missing, ", "))
	}
	return nil
}

func (t *table) get(rec []string, name string) string {
	i, ok := t.cols[name]
	if !ok || i >= len(rec) {
		return ""
	}
	return strings.TrimSpace(rec[i])
}

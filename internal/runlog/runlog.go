// Package runlog records one row per successful pipeline run in
// <output>/run-log.csv.
package runlog

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Entry is one row in the run log.
type Entry struct {
	Timestamp time.Time
	RunID     string
	Command   string
	RunDate   string
	Rows      int
	Skipped   int
	Output    string
}

// Header is the CSV header for run-log.csv.
const Header = "timestamp,run_id,command,run_date,rows,skipped,output"

// FileName is the run log's name inside the output root. It deliberately
// lacks the _import.csv suffix so balance generation never reads it.
const FileName = "run-log.csv"

const (
	numFields    = 7
	colTimestamp = 0
	colRunID     = 1
	colCommand   = 2
	colRunDate   = 3
	colRows      = 4
	colSkipped   = 5
	colOutput    = 6
)

// NewEntry stamps an entry with the current time and a fresh run ID.
// skipped counts input rows left out of the output.
func NewEntry(command, runDate string, rows, skipped int, output string) Entry {
	return Entry{
		Timestamp: time.Now().UTC(),
		RunID:     uuid.NewString(),
		Command:   command,
		RunDate:   runDate,
		Rows:      rows,
		Skipped:   skipped,
		Output:    output,
	}
}

// MarshalEntry converts an Entry to a CSV row.
func MarshalEntry(e Entry) []string {
	row := make([]string, numFields)
	row[colTimestamp] = e.Timestamp.Format(time.RFC3339)
	row[colRunID] = e.RunID
	row[colCommand] = e.Command
	row[colRunDate] = e.RunDate
	row[colRows] = strconv.Itoa(e.Rows)
	row[colSkipped] = strconv.Itoa(e.Skipped)
	row[colOutput] = e.Output
	return row
}

// UnmarshalEntry converts a CSV row to an Entry.
func UnmarshalEntry(record []string) (Entry, error) {
	if len(record) != numFields {
		return Entry{}, fmt.Errorf("expected %d fields, got %d", numFields, len(record))
	}

	ts, err := time.Parse(time.RFC3339, record[colTimestamp])
	if err != nil {
		return Entry{}, fmt.Errorf("parsing timestamp %q: %w", record[colTimestamp], err)
	}

	if err := uuid.Validate(record[colRunID]); err != nil {
		return Entry{}, fmt.Errorf("parsing run_id %q: %w", record[colRunID], err)
	}

	rows, err := strconv.Atoi(record[colRows])
	if err != nil {
		return Entry{}, fmt.Errorf("parsing rows %q: %w", record[colRows], err)
	}

	skipped, err := strconv.Atoi(record[colSkipped])
	if err != nil {
		return Entry{}, fmt.Errorf("parsing skipped %q: %w", record[colSkipped], err)
	}

	return Entry{
		Timestamp: ts,
		RunID:     record[colRunID],
		Command:   record[colCommand],
		RunDate:   record[colRunDate],
		Rows:      rows,
		Skipped:   skipped,
		Output:    record[colOutput],
	}, nil
}

// Append writes entries to <outputRoot>/run-log.csv, creating the file and header if needed.
func Append(outputRoot string, entries []Entry) error {
	if err := os.MkdirAll(outputRoot, 0o755); err != nil {
		return fmt.Errorf("creating output dir: %w", err)
	}

	path := filepath.Join(outputRoot, FileName)
	needsHeader := false
	if _, err := os.Stat(path); os.IsNotExist(err) {
		needsHeader = true
	}

	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("opening run log: %w", err)
	}
	defer f.Close()

	cw := csv.NewWriter(f)
	defer cw.Flush()

	if needsHeader {
		if err := cw.Write(strings.Split(Header, ",")); err != nil {
			return fmt.Errorf("writing header: %w", err)
		}
	}

	for i, e := range entries {
		if err := cw.Write(MarshalEntry(e)); err != nil {
			return fmt.Errorf("writing entry %d: %w", i, err)
		}
	}

	cw.Flush()
	return cw.Error()
}

// Read returns all entries from <outputRoot>/run-log.csv.
// Returns an empty slice if the file does not exist.
func Read(outputRoot string) ([]Entry, error) {
	path := filepath.Join(outputRoot, FileName)
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("opening run log: %w", err)
	}
	defer f.Close()

	return readEntries(f)
}

func readEntries(r io.Reader) ([]Entry, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = numFields

	records, err := cr.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("reading run log CSV: %w", err)
	}

	if len(records) <= 1 {
		return nil, nil
	}

	var entries []Entry
	for i, rec := range records[1:] {
		e, err := UnmarshalEntry(rec)
		if err != nil {
			return nil, fmt.Errorf("row %d: %w", i+2, err)
		}
		entries = append(entries, e)
	}
	return entries, nil
}

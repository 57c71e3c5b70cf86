package importer

import (
	"fmt"
	"io"
	"strings"

	"github.com/revmon-dev/revmon/internal/config"
	"github.com/revmon-dev/revmon/internal/model"
)

// Parser converts a Revolut export into BankTransactions.
type Parser interface {
	Parse(r io.Reader) ([]model.BankTransaction, error)
	Format() string
}

// Registry holds named parsers.
type Registry struct {
	parsers map[string]Parser
}

// NewRegistry creates an empty parser registry.
func NewRegistry() *Registry {
	return &Registry{parsers: make(map[string]Parser)}
}

// Register adds a parser. Panics on duplicate format.
func (r *Registry) Register(p Parser) {
	key := strings.ToLower(p.Format())
	if _, ok := r.parsers[key]; ok {
		panic("duplicate parser format: " + key)
	}
	r.parsers[key] = p
}

// Get returns the parser for format, or nil.
func (r *Registry) Get(format string) Parser {
	return r.parsers[strings.ToLower(format)]
}

// DefaultRegistry returns a registry with the checking and savings parsers
// configured for cfg's accounts.
func DefaultRegistry(cfg *config.Config) *Registry {
	r := NewRegistry()
	r.Register(&CheckingParser{States: cfg.Checking.States})
	r.Register(&SavingsParser{
		Currency: cfg.Savings.Currency,
		Symbol:   cfg.Savings.CurrencySymbol,
	})
	return r
}

// columns maps header names to their index.
type columns map[string]int

// indexHeader locates every required column in header.
func indexHeader(header []string, required ...string) (columns, error) {
	cols := make(columns, len(header))
	for i, h := range header {
		// Excel exports may carry a UTF-8 BOM on the first cell.
		h = strings.TrimPrefix(h, "\ufeff")
		cols[strings.TrimSpace(h)] = i
	}
	for _, name := range required {
		if _, ok := cols[name]; !ok {
			return nil, fmt.Errorf("missing column %q", name)
		}
	}
	return cols, nil
}

// get returns the trimmed value of column name, or "" when absent.
func (c columns) get(rec []string, name string) string {
	i, ok := c[name]
	if !ok || i >= len(rec) {
		return ""
	}
	return strings.TrimSpace(rec[i])
}

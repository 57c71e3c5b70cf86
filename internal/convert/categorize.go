package convert

import (
	"strings"

	"github.com/revmon-dev/revmon/internal/config"
)

// Categorizer assigns Monarch categories from description patterns.
// A pattern ending in "*" matches a prefix; any other pattern matches a
// substring. Matching is case-insensitive and the first rule wins.
type Categorizer struct {
	rules []config.CategoryRule
}

// NewCategorizer creates a Categorizer from config rules.
func NewCategorizer(rules []config.CategoryRule) *Categorizer {
	normalized := make([]config.CategoryRule, 0, len(rules))
	for _, r := range rules {
		p := strings.ToUpper(strings.TrimSpace(r.Pattern))
		if p == "" || p == "*" {
			continue
		}
		normalized = append(normalized, config.CategoryRule{Pattern: p, Category: r.Category})
	}
	return &Categorizer{rules: normalized}
}

// Category returns the category for description, or "" to let Monarch decide.
func (c *Categorizer) Category(description string) string {
	if c == nil {
		return ""
	}
	desc := strings.ToUpper(description)
	for _, r := range c.rules {
		if prefix, ok := strings.CutSuffix(r.Pattern, "*"); ok {
			if strings.HasPrefix(desc, prefix) {
				return r.Category
			}
			continue
		}
		if strings.Contains(desc, r.Pattern) {
			return r.Category
		}
	}
	return ""
}

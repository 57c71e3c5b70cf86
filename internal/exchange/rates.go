package exchange

import (
	"encoding/json"
	"fmt"
	"slices"

	"github.com/shopspring/decimal"

	"github.com/revmon-dev/revmon/internal/model"
)

// Rate is a conversion factor.
type Rate = decimal.Decimal

// Quotes holds the daily quotes returned by the API, keyed by
// YYYY-MM-DD then by pair (e.g. "USDGBP").
type Quotes struct {
	Source string
	ByDate map[string]map[string]Rate
}

// RateKey identifies a USD conversion rate for one currency on one day.
type RateKey struct {
	Date     string
	Currency string
}

// Rates maps (date, currency) to the factor converting that currency to USD.
type Rates map[RateKey]Rate

// Lookup returns the rate for currency on date.
func (r Rates) Lookup(date, currency string) (Rate, bool) {
	rate, ok := r[RateKey{Date: date, Currency: currency}]
	return rate, ok
}

func parseRate(n json.Number) (Rate, error) {
	if n == "" {
		return decimal.Zero, nil
	}
	d, err := decimal.NewFromString(n.String())
	if err != nil {
		return decimal.Zero, fmt.Errorf("parsing rate %q: %w", n, err)
	}
	return d, nil
}

func checkSource(q *Quotes) error {
	if q.Source != model.USD {
		return fmt.Errorf("unsupported api source currency %s; expected %s", q.Source, model.USD)
	}
	return nil
}

// usdRate inverts a USD<currency> quote; zero or missing quotes have no rate.
func usdRate(daily map[string]Rate, source, currency string) (Rate, bool) {
	if currency == model.USD {
		return decimal.NewFromInt(1), true
	}
	quote, ok := daily[source+currency]
	if !ok || quote.IsZero() {
		return decimal.Zero, false
	}
	return decimal.NewFromInt(1).Div(quote), true
}

// USDRates builds per-day USD conversion rates for every currency.
// Dates without a usable quote for a currency are absent from the result.
func USDRates(q *Quotes, currencies []string) (Rates, error) {
	if err := checkSource(q); err != nil {
		return nil, err
	}

	normalized := slices.Compact(slices.Sorted(slices.Values(currencies)))
	rates := make(Rates)
	for date, daily := range q.ByDate {
		for _, currency := range normalized {
			if currency == "" {
				continue
			}
			if rate, ok := usdRate(daily, q.Source, currency); ok {
				rates[RateKey{Date: date, Currency: currency}] = rate
			}
		}
	}
	return rates, nil
}

// USDRateSeries builds the per-day USD conversion rate for one currency.
func USDRateSeries(q *Quotes, currency string) (map[string]Rate, error) {
	if err := checkSource(q); err != nil {
		return nil, err
	}

	series := make(map[string]Rate, len(q.ByDate))
	for date, daily := range q.ByDate {
		if rate, ok := usdRate(daily, q.Source, currency); ok {
			series[date] = rate
		}
	}
	return series, nil
}

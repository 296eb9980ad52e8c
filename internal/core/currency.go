package core

import (
	"fmt"
	"maps"
	"strings"
	"time"
)

// BaseCurrency is the currency all cached rates are expressed against.
const BaseCurrency = "USD"

// ExchangeRateTable maps currency codes to multipliers relative to Base.
// A table is replaced wholesale on refresh and never updated in place.
type ExchangeRateTable struct {
	Base      string             `json:"base"`
	Rates     map[string]float64 `json:"rates"`
	FetchedAt time.Time          `json:"fetched_at"`
}

// NormalizeCurrencyCode upper-cases code and checks it has exactly three letters.
func NormalizeCurrencyCode(code string) (string, error) {
	c := strings.ToUpper(strings.TrimSpace(code))
	if len(c) != 3 {
		return "", fmt.Errorf("%w: %q must be 3 letters", ErrInvalidCurrency, code)
	}
	for _, r := range c {
		if r < 'A' || r > 'Z' {
			return "", fmt.Errorf("%w: %q must be 3 letters", ErrInvalidCurrency, code)
		}
	}
	return c, nil
}

// Rate returns the multiplier for code. The base currency is always 1.
func (t *ExchangeRateTable) Rate(code string) (float64, bool) {
	if t == nil {
		return 0, false
	}
	if code == t.Base {
		return 1, true
	}
	r, ok := t.Rates[code]
	if !ok || r <= 0 {
		return 0, false
	}
	return r, true
}

// Has reports whether code can be converted with this table.
func (t *ExchangeRateTable) Has(code string) bool {
	_, ok := t.Rate(code)
	return ok
}

// Age returns how long ago the table was fetched.
func (t *ExchangeRateTable) Age(now time.Time) time.Duration {
	if t == nil || t.FetchedAt.IsZero() {
		return 0
	}
	return now.Sub(t.FetchedAt)
}

func (t *ExchangeRateTable) Clone() *ExchangeRateTable {
	if t == nil {
		return nil
	}
	return &ExchangeRateTable{
		Base:      t.Base,
		Rates:     maps.Clone(t.Rates),
		FetchedAt: t.FetchedAt,
	}
}

// Len returns the number of currencies in the table.
func (t *ExchangeRateTable) Len() int {
	if t == nil {
		return 0
	}
	return len(t.Rates)
}

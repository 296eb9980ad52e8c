// Package rates caches exchange-rate tables and converts and formats amounts
// across currencies.
package rates

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"net/http"
	"time"

	"backoffice/internal/core"
)

// DefaultFetchTimeout bounds a single provider request.
const DefaultFetchTimeout = 10 * time.Second

var (
	ErrRefreshFailed = errors.New("exchange rate refresh failed")
	ErrEmptyRates    = errors.New("provider returned no usable rates")
	ErrNoProvider    = errors.New("no exchange rate provider configured")
)

// Provider fetches a fresh exchange-rate table.
type Provider interface {
	Fetch(ctx context.Context) (*core.ExchangeRateTable, error)
}

// SnapshotStore persists the last fetched table locally.
// LoadRates returns core.ErrNotFound when nothing has been saved yet.
type SnapshotStore interface {
	LoadRates(ctx context.Context) (*core.ExchangeRateTable, error)
	SaveRates(ctx context.Context, table *core.ExchangeRateTable) error
}

// HTTPProvider reads rates from a JSON endpoint. The body may be a flat
// object of code to rate or an envelope with "base" and "rates" keys.
type HTTPProvider struct {
	url    string
	base   string
	client *http.Client
	now    func() time.Time
}

func NewHTTPProvider(url, base string, timeout time.Duration) *HTTPProvider {
	if timeout <= 0 {
		timeout = DefaultFetchTimeout
	}
	if base == "" {
		base = core.BaseCurrency
	}
	return &HTTPProvider{
		url:    url,
		base:   base,
		client: &http.Client{Timeout: timeout},
		now:    time.Now,
	}
}

func (p *HTTPProvider) Fetch(ctx context.Context) (*core.ExchangeRateTable, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.url, nil)
	if err != nil {
		return nil, fmt.Errorf("build rates request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := p.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch rates: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("fetch rates: unexpected status %d: %s", resp.StatusCode, body)
	}

	var raw map[string]json.RawMessage
	if err := json.NewDecoder(io.LimitReader(resp.Body, 1<<20)).Decode(&raw); err != nil {
		return nil, fmt.Errorf("decode rates: %w", err)
	}
	return parseTable(raw, p.base, p.now().UTC())
}

func parseTable(raw map[string]json.RawMessage, base string, fetchedAt time.Time) (*core.ExchangeRateTable, error) {
	values := raw
	if nested, ok := raw["rates"]; ok {
		if b, ok := raw["base"]; ok {
			var envelopeBase string
			if err := json.Unmarshal(b, &envelopeBase); err == nil && envelopeBase != "" {
				base = envelopeBase
			}
		}
		values = nil
		if err := json.Unmarshal(nested, &values); err != nil {
			return nil, fmt.Errorf("decode rates envelope: %w", err)
		}
	}

	base, err := core.NormalizeCurrencyCode(base)
	if err != nil {
		return nil, fmt.Errorf("rates base: %w", err)
	}

	table := &core.ExchangeRateTable{
		Base:      base,
		Rates:     make(map[string]float64, len(values)),
		FetchedAt: fetchedAt,
	}
	for k, v := range values {
		code, err := core.NormalizeCurrencyCode(k)
		if err != nil {
			continue
		}
		var rate float64
		if err := json.Unmarshal(v, &rate); err != nil {
			continue
		}
		if rate <= 0 || math.IsNaN(rate) || math.IsInf(rate, 0) {
			continue
		}
		table.Rates[code] = rate
	}
	if len(table.Rates) == 0 {
		return nil, ErrEmptyRates
	}
	table.Rates[base] = 1
	return table, nil
}

package rates

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"backoffice/internal/core"
)

// DefaultMaxAge is how long a table is considered fresh.
const DefaultMaxAge = time.Hour

const refreshKey = "refresh"

type CacheConfig struct {
	MaxAge       time.Duration
	FetchTimeout time.Duration
}

// Cache owns the process-wide exchange-rate table. Tables handed out are
// shared and must be treated as read-only; a refresh swaps in a new table.
type Cache struct {
	provider Provider
	store    SnapshotStore
	maxAge   time.Duration
	timeout  time.Duration
	now      func() time.Time

	mu      sync.RWMutex
	current *core.ExchangeRateTable

	group singleflight.Group
}

func NewCache(provider Provider, store SnapshotStore, cfg CacheConfig) *Cache {
	if cfg.MaxAge <= 0 {
		cfg.MaxAge = DefaultMaxAge
	}
	if cfg.FetchTimeout <= 0 {
		cfg.FetchTimeout = DefaultFetchTimeout
	}
	return &Cache{
		provider: provider,
		store:    store,
		maxAge:   cfg.MaxAge,
		timeout:  cfg.FetchTimeout,
		now:      time.Now,
	}
}

// LoadRates returns the in-memory table, else the persisted snapshot of any
// age, else a freshly fetched table. It returns nil when none is available;
// failures are logged and never returned.
func (c *Cache) LoadRates(ctx context.Context) *core.ExchangeRateTable {
	if t := c.Current(); t != nil {
		return t
	}

	if c.store != nil {
		t, err := c.store.LoadRates(ctx)
		switch {
		case err == nil && t != nil:
			c.set(t)
			slog.DebugContext(ctx, "Loaded exchange rates from snapshot",
				"base", t.Base, "currencies", t.Len(), "fetched_at", t.FetchedAt)
			return t
		case err != nil && !errors.Is(err, core.ErrNotFound):
			slog.WarnContext(ctx, "Failed to read exchange rate snapshot", "error", err)
		}
	}

	t, err := c.RefreshRates(ctx)
	if err != nil {
		slog.WarnContext(ctx, "Exchange rates unavailable", "error", err)
		return nil
	}
	return t
}

// RefreshRates fetches a new table and replaces the cached one wholesale.
// Concurrent callers share a single fetch. The fetch is not cancelled when
// the first caller goes away; it is bounded by the fetch timeout instead.
// On failure the previous table stays in place and ErrRefreshFailed is returned.
func (c *Cache) RefreshRates(ctx context.Context) (*core.ExchangeRateTable, error) {
	ch := c.group.DoChan(refreshKey, func() (any, error) {
		fetchCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), c.timeout)
		defer cancel()
		return c.refresh(fetchCtx)
	})

	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("%w: %w", ErrRefreshFailed, ctx.Err())
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.(*core.ExchangeRateTable), nil
	}
}

func (c *Cache) refresh(ctx context.Context) (*core.ExchangeRateTable, error) {
	if c.provider == nil {
		return nil, fmt.Errorf("%w: %w", ErrRefreshFailed, ErrNoProvider)
	}
	start := c.now()
	t, err := c.provider.Fetch(ctx)
	if err != nil {
		slog.WarnContext(ctx, "Exchange rate fetch failed",
			"error", err,
			"duration_ms", c.now().Sub(start).Milliseconds())
		return nil, fmt.Errorf("%w: %w", ErrRefreshFailed, err)
	}
	if t.FetchedAt.IsZero() {
		t.FetchedAt = c.now().UTC()
	}

	c.set(t)
	if c.store != nil {
		if err := c.store.SaveRates(ctx, t); err != nil {
			slog.WarnContext(ctx, "Failed to persist exchange rate snapshot", "error", err)
		}
	}

	slog.InfoContext(ctx, "Exchange rates refreshed",
		"base", t.Base,
		"currencies", t.Len(),
		"duration_ms", c.now().Sub(start).Milliseconds())
	return t, nil
}

// Current returns the in-memory table, or nil before the first load.
func (c *Cache) Current() *core.ExchangeRateTable {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.current
}

// IsStale reports whether the table is absent or older than the max age.
func (c *Cache) IsStale(now time.Time) bool {
	t := c.Current()
	return t == nil || t.Age(now) > c.maxAge
}

// EnsureFresh loads the table and refreshes it when stale. If the refresh
// fails the last known table is returned, which may still be nil.
func (c *Cache) EnsureFresh(ctx context.Context) *core.ExchangeRateTable {
	t := c.LoadRates(ctx)
	if !c.IsStale(c.now()) {
		return t
	}
	fresh, err := c.RefreshRates(ctx)
	if err != nil {
		slog.WarnContext(ctx, "Using last known exchange rates", "error", err, "available", t != nil)
		return c.Current()
	}
	return fresh
}

func (c *Cache) set(t *core.ExchangeRateTable) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.current = t
}

package rates

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"backoffice/internal/core"
	"backoffice/internal/storage/memory"
)

func TestKVSnapshotStore(t *testing.T) {
	ctx := context.Background()
	store := NewKVSnapshotStore(memory.New())

	_, err := store.LoadRates(ctx)
	assert.ErrorIs(t, err, core.ErrNotFound)

	fetched := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)
	require.NoError(t, store.SaveRates(ctx, table(fetched, map[string]float64{"USD": 1, "EUR": 0.9})))

	got, err := store.LoadRates(ctx)
	require.NoError(t, err)
	assert.Equal(t, "USD", got.Base)
	assert.Equal(t, 0.9, got.Rates["EUR"])
	assert.True(t, got.FetchedAt.Equal(fetched))
}

func TestCache_WithKVSnapshotSurvivesRestart(t *testing.T) {
	ctx := context.Background()
	kv := memory.New()
	provider := &fakeProvider{table: table(time.Now(), map[string]float64{"EUR": 0.9})}

	first := NewCache(provider, NewKVSnapshotStore(kv), CacheConfig{})
	require.NotNil(t, first.LoadRates(ctx))

	provider.set(nil, assert.AnError)
	second := NewCache(provider, NewKVSnapshotStore(kv), CacheConfig{})
	got := second.LoadRates(ctx)
	require.NotNil(t, got)
	assert.Equal(t, 0.9, got.Rates["EUR"])
	assert.Equal(t, int32(1), provider.calls.Load())
}

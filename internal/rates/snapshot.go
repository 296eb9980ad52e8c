package rates

import (
	"context"
	"encoding/json"
	"fmt"

	"backoffice/internal/core"
	"backoffice/internal/ports"
)

const (
	snapshotNamespace = "rates"
	snapshotKey       = "latest"
)

// KVSnapshotStore keeps the rate table as JSON in a key-value store.
type KVSnapshotStore struct {
	kv ports.KVStore
}

func NewKVSnapshotStore(kv ports.KVStore) *KVSnapshotStore {
	return &KVSnapshotStore{kv: kv}
}

func (s *KVSnapshotStore) LoadRates(ctx context.Context) (*core.ExchangeRateTable, error) {
	b, err := s.kv.Get(ctx, snapshotNamespace, snapshotKey)
	if err != nil {
		return nil, err
	}
	var t core.ExchangeRateTable
	if err := json.Unmarshal(b, &t); err != nil {
		return nil, fmt.Errorf("decode rate snapshot: %w", err)
	}
	if t.Base == "" {
		t.Base = core.BaseCurrency
	}
	return &t, nil
}

func (s *KVSnapshotStore) SaveRates(ctx context.Context, t *core.ExchangeRateTable) error {
	b, err := json.Marshal(t)
	if err != nil {
		return fmt.Errorf("encode rate snapshot: %w", err)
	}
	return s.kv.Put(ctx, snapshotNamespace, snapshotKey, b)
}

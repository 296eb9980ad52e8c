package services

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"backoffice/internal/amqp"
	"backoffice/internal/core"
	"backoffice/internal/storage/memory"
)

type fakePublisher struct {
	mu   sync.Mutex
	msgs []*amqp.OccurrenceCreatedMessage
	err  error
}

func (f *fakePublisher) PublishOccurrenceCreated(_ context.Context, msg *amqp.OccurrenceCreatedMessage) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.msgs = append(f.msgs, msg)
	return nil
}

func (f *fakePublisher) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.msgs)
}

func occurrence(sourceID string, d core.Date) core.Occurrence {
	return core.Occurrence{
		SourceID:       sourceID,
		OccurrenceDate: d,
		Description:    "Storage unit",
		Amount:         decimal.RequireFromString("120"),
		Note:           "Recurring from 2024-01-31",
	}
}

func TestOccurrenceService_Record(t *testing.T) {
	ctx := context.Background()

	t.Run("saves and publishes", func(t *testing.T) {
		pub := &fakePublisher{}
		svc := NewOccurrenceService(memory.New(), pub)

		saved, created, err := svc.Record(ctx, occurrence("r1", core.NewDate(2024, 2, 29)))
		require.NoError(t, err)
		assert.True(t, created)
		assert.NotEmpty(t, saved.ID)
		require.Equal(t, 1, pub.count())
		assert.Equal(t, saved.ID, pub.msgs[0].OccurrenceID)
		assert.Equal(t, "2024-02-29", pub.msgs[0].OccurrenceDate)
	})

	t.Run("duplicate is not republished", func(t *testing.T) {
		pub := &fakePublisher{}
		svc := NewOccurrenceService(memory.New(), pub)
		occ := occurrence("r1", core.NewDate(2024, 3, 31))

		first, _, err := svc.Record(ctx, occ)
		require.NoError(t, err)
		second, created, err := svc.Record(ctx, occ)
		require.NoError(t, err)
		assert.False(t, created)
		assert.Equal(t, first.ID, second.ID)
		assert.Equal(t, 1, pub.count())
	})

	t.Run("publish failure is not fatal", func(t *testing.T) {
		store := memory.New()
		svc := NewOccurrenceService(store, &fakePublisher{err: errors.New("broker down")})

		saved, created, err := svc.Record(ctx, occurrence("r1", core.NewDate(2024, 4, 30)))
		require.NoError(t, err)
		assert.True(t, created)
		_, err = store.GetOccurrence(ctx, saved.ID)
		assert.NoError(t, err)
	})

	t.Run("nil publisher", func(t *testing.T) {
		svc := NewOccurrenceService(memory.New(), nil)
		_, created, err := svc.Record(ctx, occurrence("r1", core.NewDate(2024, 5, 31)))
		require.NoError(t, err)
		assert.True(t, created)
	})
}

package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"backoffice/internal/core"
	"backoffice/internal/recurrence"
	"backoffice/internal/storage/memory"
)

func activeRule(id string, start core.Date, c core.Cadence) core.RecurringRule {
	return core.RecurringRule{
		ID:          id,
		OwnerID:     "alice",
		StartDate:   start,
		Cadence:     c,
		Description: "Storage unit",
		Amount:      decimal.RequireFromString("120"),
		Active:      true,
	}
}

func dates(occ []core.Occurrence) []string {
	out := make([]string, len(occ))
	for i, o := range occ {
		out[i] = o.OccurrenceDate.String()
	}
	return out
}

func TestRecurringProcessor_ProcessDueRules(t *testing.T) {
	ctx := context.Background()
	asOf := time.Date(2024, 5, 1, 9, 0, 0, 0, time.UTC)

	inactive := activeRule("r3", core.NewDate(2024, 1, 1), core.Weekly)
	inactive.Active = false
	store := memory.New(
		activeRule("r1", core.NewDate(2024, 1, 31), core.Monthly),
		activeRule("r2", core.NewDate(2024, 4, 10), core.Weekly),
		inactive,
	)
	pub := &fakePublisher{}
	p := NewRecurringProcessor(store, store, NewOccurrenceService(store, pub))

	sum, err := p.ProcessDueRules(ctx, "alice", asOf)
	require.NoError(t, err)
	assert.Equal(t, 2, sum.Checked)
	assert.Equal(t, 6, sum.Created)
	assert.Empty(t, sum.Truncated)
	assert.Empty(t, sum.Failed)
	assert.Equal(t, 6, pub.count())

	monthly, err := store.ListOccurrences(ctx, "r1")
	require.NoError(t, err)
	assert.Equal(t, []string{"2024-02-29", "2024-03-31", "2024-04-30"}, dates(monthly))
	assert.Equal(t, "Recurring from 2024-01-31", monthly[0].Note)

	weekly, err := store.ListOccurrences(ctx, "r2")
	require.NoError(t, err)
	assert.Equal(t, []string{"2024-04-17", "2024-04-24", "2024-05-01"}, dates(weekly))

	none, err := store.ListOccurrences(ctx, "r3")
	require.NoError(t, err)
	assert.Empty(t, none)

	t.Run("second run is idempotent", func(t *testing.T) {
		sum, err := p.ProcessDueRules(ctx, "alice", asOf)
		require.NoError(t, err)
		assert.Equal(t, 0, sum.Created)
		assert.Equal(t, 6, pub.count())
	})

	t.Run("later run only adds new dates", func(t *testing.T) {
		sum, err := p.ProcessDueRules(ctx, "alice", asOf.AddDate(0, 1, 0))
		require.NoError(t, err)
		// May 31 plus the four weekly dates after May 1.
		assert.Equal(t, 5, sum.Created)
	})
}

func TestRecurringProcessor_CatchesUpPastCap(t *testing.T) {
	ctx := context.Background()
	store := memory.New(activeRule("old", core.NewDate(2000, 1, 1), core.Weekly))
	p := NewRecurringProcessor(store, store, NewOccurrenceService(store, nil))

	asOf := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	first, err := p.ProcessDueRules(ctx, "", asOf)
	require.NoError(t, err)
	assert.Equal(t, maxCatchUpPasses*recurrence.MaxOccurrences, first.Created)
	assert.Equal(t, []string{"old"}, first.Truncated)

	second, err := p.ProcessDueRules(ctx, "", asOf)
	require.NoError(t, err)
	assert.Empty(t, second.Truncated)

	all, err := store.ListOccurrences(ctx, "old")
	require.NoError(t, err)
	// 2000-01-08 through 2023-12-30.
	assert.Len(t, all, 1252)
	assert.Equal(t, 252, second.Created)
	assert.Equal(t, "2023-12-30", all[len(all)-1].OccurrenceDate.String())
}

type failingStore struct {
	*memory.Store
	failOn string
}

func (f failingStore) SaveOccurrence(ctx context.Context, o core.Occurrence) (core.Occurrence, bool, error) {
	if o.SourceID == f.failOn {
		return core.Occurrence{}, false, errors.New("disk full")
	}
	return f.Store.SaveOccurrence(ctx, o)
}

func TestRecurringProcessor_ContinuesPastFailingRule(t *testing.T) {
	ctx := context.Background()
	mem := memory.New(
		activeRule("bad", core.NewDate(2024, 1, 1), core.Monthly),
		activeRule("good", core.NewDate(2024, 1, 1), core.Monthly),
	)
	store := failingStore{Store: mem, failOn: "bad"}
	p := NewRecurringProcessor(mem, store, NewOccurrenceService(store, nil))

	sum, err := p.ProcessDueRules(ctx, "alice", time.Date(2024, 3, 15, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	assert.Equal(t, 2, sum.Created)
	assert.Equal(t, []string{"bad"}, sum.Failed)
}

func TestRecurringProcessor_UnsupportedCadenceIsReported(t *testing.T) {
	ctx := context.Background()
	store := memory.New()
	bad := activeRule("weird", core.NewDate(2024, 1, 1), core.Cadence("fortnightly"))
	p := NewRecurringProcessor(staticRules{bad}, store, NewOccurrenceService(store, nil))

	sum, err := p.ProcessDueRules(ctx, "", time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	assert.Equal(t, []string{"weird"}, sum.Failed)
}

type staticRules []core.RecurringRule

func (s staticRules) ListRecurringRules(context.Context, string) ([]core.RecurringRule, error) {
	return s, nil
}

func (s staticRules) GetRecurringRule(_ context.Context, id string) (core.RecurringRule, error) {
	for _, r := range s {
		if r.ID == id {
			return r, nil
		}
	}
	return core.RecurringRule{}, core.ErrNotFound
}

type fakeRemote struct {
	owner string
	n     int
	err   error
}

func (f *fakeRemote) GenerateRecurring(_ context.Context, ownerID string) (int, error) {
	f.owner = ownerID
	return f.n, f.err
}

func TestRecurringProcessor_Remote(t *testing.T) {
	remote := &fakeRemote{n: 4}
	p := NewRecurringProcessor(nil, nil, nil).WithRemoteGenerator(remote)

	sum, err := p.ProcessDueRules(context.Background(), "alice", time.Now())
	require.NoError(t, err)
	assert.Equal(t, 4, sum.Created)
	assert.Equal(t, "alice", remote.owner)

	remote.err = errors.New("503")
	_, err = p.ProcessDueRules(context.Background(), "alice", time.Now())
	assert.Error(t, err)
}

func TestRecurringProcessor_NotInitialized(t *testing.T) {
	_, err := NewRecurringProcessor(nil, nil, nil).ProcessDueRules(context.Background(), "", time.Now())
	assert.Error(t, err)
}

package ports

import (
	"context"

	"backoffice/internal/core"
)

// Ports for outbound adapters.
type (
	// RuleSource reads recurring rules.
	RuleSource interface {
		// ListRecurringRules returns the rules owned by ownerID, or every rule when ownerID is empty.
		ListRecurringRules(ctx context.Context, ownerID string) ([]core.RecurringRule, error)
		// GetRecurringRule returns core.ErrNotFound when id is unknown.
		GetRecurringRule(ctx context.Context, id string) (core.RecurringRule, error)
	}

	RuleWriter interface {
		// SaveRecurringRule inserts or replaces r, assigning an ID when empty.
		SaveRecurringRule(ctx context.Context, r core.RecurringRule) (core.RecurringRule, error)
	}

	RuleStore interface {
		RuleSource
		RuleWriter
	}

	// OccurrenceStore persists generated occurrences. Saving is idempotent on
	// (SourceID, OccurrenceDate): a duplicate returns the stored record and created=false.
	OccurrenceStore interface {
		ListOccurrences(ctx context.Context, sourceID string) ([]core.Occurrence, error)
		GetOccurrence(ctx context.Context, id string) (core.Occurrence, error)
		SaveOccurrence(ctx context.Context, o core.Occurrence) (saved core.Occurrence, created bool, err error)
	}

	// KVStore is the local key-value storage used for rate snapshots and settings.
	KVStore interface {
		// Get returns core.ErrNotFound when the key is absent.
		Get(ctx context.Context, namespace, key string) ([]byte, error)
		Put(ctx context.Context, namespace, key string, value []byte) error
	}

	// OccurrenceExporter appends an occurrence to an external ledger.
	OccurrenceExporter interface {
		AppendOccurrence(ctx context.Context, o core.Occurrence) (rowRef string, err error)
	}

	// RemoteGenerator triggers the backend's own catch-up for an owner.
	RemoteGenerator interface {
		GenerateRecurring(ctx context.Context, ownerID string) (created int, err error)
	}
)

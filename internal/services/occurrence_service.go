package services

import (
	"context"
	"fmt"
	"log/slog"

	"backoffice/internal/amqp"
	"backoffice/internal/core"
	"backoffice/internal/ports"
)

// Publisher announces persisted occurrences to downstream consumers.
type Publisher interface {
	PublishOccurrenceCreated(ctx context.Context, msg *amqp.OccurrenceCreatedMessage) error
}

// OccurrenceService persists generated occurrences and publishes an event
// for each one that was newly created.
type OccurrenceService struct {
	store     ports.OccurrenceStore
	publisher Publisher
}

// NewOccurrenceService accepts a nil publisher; events are then skipped.
func NewOccurrenceService(store ports.OccurrenceStore, publisher Publisher) *OccurrenceService {
	return &OccurrenceService{
		store:     store,
		publisher: publisher,
	}
}

// Record saves o and publishes an occurrence.created message. Saving is
// idempotent: an occurrence already stored for the same rule and day is
// returned with created=false and no message is sent.
func (s *OccurrenceService) Record(ctx context.Context, o core.Occurrence) (core.Occurrence, bool, error) {
	// Persist first, the event is only a notification
	saved, created, err := s.store.SaveOccurrence(ctx, o)
	if err != nil {
		return core.Occurrence{}, false, fmt.Errorf("save occurrence %s: %w", o.Key(), err)
	}
	if !created {
		slog.DebugContext(ctx, "Occurrence already recorded",
			"source_id", saved.SourceID,
			"occurrence_date", saved.OccurrenceDate.String())
		return saved, false, nil
	}

	if err := s.publish(ctx, saved); err != nil {
		slog.ErrorContext(ctx, "Failed to publish occurrence created message",
			"occurrence_id", saved.ID,
			"source_id", saved.SourceID,
			"error", err)
		// Don't fail the call - the occurrence is saved
	}
	return saved, true, nil
}

func (s *OccurrenceService) publish(ctx context.Context, o core.Occurrence) error {
	if s.publisher == nil {
		slog.DebugContext(ctx, "AMQP publisher not available, skipping occurrence message")
		return nil
	}
	return s.publisher.PublishOccurrenceCreated(ctx, amqp.NewOccurrenceCreatedMessage(o))
}

package worker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"backoffice/internal/amqp"
	"backoffice/internal/core"
	"backoffice/internal/ports"
)

// SyncWorker exports recorded occurrences to an external ledger.
type SyncWorker struct {
	rules       ports.RuleSource
	occurrences ports.OccurrenceStore
	exporter    ports.OccurrenceExporter
}

func NewSyncWorker(rules ports.RuleSource, occurrences ports.OccurrenceStore, exporter ports.OccurrenceExporter) *SyncWorker {
	return &SyncWorker{
		rules:       rules,
		occurrences: occurrences,
		exporter:    exporter,
	}
}

// HandleOccurrenceCreated exports the occurrence named by msg. An occurrence
// that no longer exists is skipped so the message is not redelivered forever;
// any other error is returned and the message requeued.
func (w *SyncWorker) HandleOccurrenceCreated(ctx context.Context, msg *amqp.OccurrenceCreatedMessage) error {
	slog.InfoContext(ctx, "Processing occurrence message",
		"occurrence_id", msg.OccurrenceID,
		"source_id", msg.SourceID)

	o, err := w.occurrences.GetOccurrence(ctx, msg.OccurrenceID)
	if errors.Is(err, core.ErrNotFound) {
		slog.WarnContext(ctx, "Occurrence not found, skipping export",
			"occurrence_id", msg.OccurrenceID)
		return nil
	}
	if err != nil {
		return fmt.Errorf("get occurrence from storage: %w", err)
	}

	return w.export(ctx, o)
}

// StartupSyncCheck exports every stored occurrence of ownerID's rules. The
// exporter skips rows it already holds, so this recovers messages lost while
// the worker was down.
func (w *SyncWorker) StartupSyncCheck(ctx context.Context, ownerID string) error {
	rules, err := w.rules.ListRecurringRules(ctx, ownerID)
	if err != nil {
		return fmt.Errorf("list recurring rules for startup check: %w", err)
	}

	successCount, errorCount := 0, 0
	for _, r := range rules {
		occ, err := w.occurrences.ListOccurrences(ctx, r.ID)
		if err != nil {
			slog.ErrorContext(ctx, "Failed to list occurrences for startup sync",
				"rule_id", r.ID, "error", err)
			errorCount++
			continue
		}
		for _, o := range occ {
			if err := ctx.Err(); err != nil {
				return err
			}
			if err := w.export(ctx, o); err != nil {
				slog.ErrorContext(ctx, "Failed to export occurrence during startup",
					"occurrence_id", o.ID, "error", err)
				errorCount++
				continue
			}
			successCount++
		}
	}

	slog.InfoContext(ctx, "Startup sync completed",
		"rules", len(rules),
		"synced", successCount,
		"errors", errorCount)
	return nil
}

func (w *SyncWorker) export(ctx context.Context, o core.Occurrence) error {
	ref, err := w.exporter.AppendOccurrence(ctx, o)
	if err != nil {
		return fmt.Errorf("append occurrence to ledger: %w", err)
	}

	slog.InfoContext(ctx, "Successfully exported occurrence",
		"occurrence_id", o.ID,
		"ref", ref,
		"occurrence_date", o.OccurrenceDate.String(),
		"amount", o.Amount.StringFixed(2))
	return nil
}

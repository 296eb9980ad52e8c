package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"backoffice/internal/core"
	"backoffice/internal/ports"
	"backoffice/internal/recurrence"
)

// maxCatchUpPasses bounds how many capped scheduler passes a single rule gets
// per run. Anything left over is reported in Summary.Truncated and picked up
// by the next run.
const maxCatchUpPasses = 10

// Summary reports the outcome of one processing run.
type Summary struct {
	Created   int      `json:"created"`
	Checked   int      `json:"checked"`
	Truncated []string `json:"truncated"`
	Failed    []string `json:"failed,omitempty"`
}

// RecurringProcessor creates the occurrences that active recurring rules
// should have produced by a given day.
type RecurringProcessor struct {
	rules       ports.RuleSource
	occurrences ports.OccurrenceStore
	recorder    *OccurrenceService
	remote      ports.RemoteGenerator
}

func NewRecurringProcessor(rules ports.RuleSource, occurrences ports.OccurrenceStore, recorder *OccurrenceService) *RecurringProcessor {
	return &RecurringProcessor{
		rules:       rules,
		occurrences: occurrences,
		recorder:    recorder,
	}
}

// WithRemoteGenerator delegates processing to a backend that runs its own
// catch-up. Local scheduling is skipped when set.
func (p *RecurringProcessor) WithRemoteGenerator(g ports.RemoteGenerator) *RecurringProcessor {
	p.remote = g
	return p
}

// ProcessDueRules records every missing occurrence of ownerID's active rules
// up to asOf. An empty ownerID processes all owners. Failures on one rule are
// logged and the rule is listed in Summary.Failed; the remaining rules are
// still processed.
func (p *RecurringProcessor) ProcessDueRules(ctx context.Context, ownerID string, asOf time.Time) (Summary, error) {
	if p.remote != nil {
		return p.processRemote(ctx, ownerID)
	}
	if p.rules == nil || p.occurrences == nil || p.recorder == nil {
		return Summary{}, errors.New("processor not properly initialized")
	}

	rules, err := p.rules.ListRecurringRules(ctx, ownerID)
	if err != nil {
		return Summary{}, fmt.Errorf("list recurring rules: %w", err)
	}

	slog.InfoContext(ctx, "Processing recurring rules",
		"owner_id", ownerID,
		"total", len(rules),
		"as_of", asOf.Format(core.DateLayout))

	sum := Summary{Truncated: []string{}}
	for _, rule := range rules {
		if err := ctx.Err(); err != nil {
			return sum, err
		}
		if !rule.Active {
			continue
		}
		sum.Checked++

		created, truncated, err := p.processRule(ctx, rule, asOf)
		sum.Created += created
		if truncated {
			sum.Truncated = append(sum.Truncated, rule.ID)
		}
		if err != nil {
			slog.ErrorContext(ctx, "Failed to process recurring rule",
				"rule_id", rule.ID,
				"description", rule.Description,
				"created", created,
				"error", err)
			sum.Failed = append(sum.Failed, rule.ID)
			continue
		}
		if created > 0 {
			slog.InfoContext(ctx, "Created occurrences from recurring rule",
				"rule_id", rule.ID,
				"description", rule.Description,
				"cadence", rule.Cadence,
				"created", created)
		}
	}

	slog.InfoContext(ctx, "Recurring rule processing complete",
		"created", sum.Created,
		"checked", sum.Checked,
		"truncated", len(sum.Truncated),
		"failed", len(sum.Failed))

	return sum, nil
}

// processRule resumes after the latest stored occurrence. It stops at the
// first record failure so no later occurrence is stored past a gap.
func (p *RecurringProcessor) processRule(ctx context.Context, rule core.RecurringRule, asOf time.Time) (int, bool, error) {
	existing, err := p.occurrences.ListOccurrences(ctx, rule.ID)
	if err != nil {
		return 0, false, fmt.Errorf("list occurrences: %w", err)
	}
	seen := make(map[core.Date]bool, len(existing))
	after := rule.StartDate
	for _, o := range existing {
		seen[o.OccurrenceDate] = true
		if o.OccurrenceDate.After(after) {
			after = o.OccurrenceDate
		}
	}

	created := 0
	for pass := 0; pass < maxCatchUpPasses; pass++ {
		res, err := recurrence.GenerateOccurrencesAfter(rule, after, asOf)
		if err != nil {
			return created, false, err
		}
		for _, o := range res.Occurrences {
			if seen[o.OccurrenceDate] {
				continue
			}
			_, isNew, err := p.recorder.Record(ctx, o)
			if err != nil {
				return created, false, err
			}
			seen[o.OccurrenceDate] = true
			if isNew {
				created++
			}
		}
		if !res.Truncated {
			return created, false, nil
		}
		after = res.Occurrences[len(res.Occurrences)-1].OccurrenceDate
	}
	return created, true, nil
}

func (p *RecurringProcessor) processRemote(ctx context.Context, ownerID string) (Summary, error) {
	n, err := p.remote.GenerateRecurring(ctx, ownerID)
	if err != nil {
		return Summary{}, fmt.Errorf("remote recurring generation: %w", err)
	}
	slog.InfoContext(ctx, "Remote recurring generation complete",
		"owner_id", ownerID,
		"created", n)
	return Summary{Created: n, Truncated: []string{}}, nil
}

package recurrence

import (
	"errors"
	"fmt"
	"log/slog"
	"time"

	"backoffice/internal/core"
)

// MaxOccurrences bounds a single catch-up pass. A rule with an ancient start
// date and a short cadence would otherwise produce unbounded work; callers
// see Result.Truncated and re-run to finish catching up.
const MaxOccurrences = 100

// ErrRuleEnded is returned when a rule has no occurrence after the requested day.
var ErrRuleEnded = errors.New("recurring rule has ended")

// Result is the outcome of a catch-up pass.
type Result struct {
	Occurrences []core.Occurrence
	// Truncated reports that more due occurrences exist beyond MaxOccurrences.
	Truncated bool
}

// Preview combines the due occurrences with the next date still to come.
type Preview struct {
	Result
	Next core.Date // zero when the rule has ended
}

// AddCadence returns the n-th occurrence of cadence anchored at start.
func AddCadence(start core.Date, cadence core.Cadence, n int) (core.Date, error) {
	if err := start.Validate(); err != nil {
		return core.Date{}, fmt.Errorf("invalid date: %w", err)
	}
	s, err := GetStepper(cadence)
	if err != nil {
		return core.Date{}, err
	}
	return s.Step(start, n), nil
}

// NextOccurrence advances d by exactly one cadence unit.
func NextOccurrence(d core.Date, cadence core.Cadence) (core.Date, error) {
	return AddCadence(d, cadence, 1)
}

// GenerateMissedOccurrences returns every occurrence of rule that falls after
// its start date and on or before the calendar day of asOf. The start date
// itself is the original record and is never emitted. Generation stops at
// the rule's end date and after MaxOccurrences entries.
func GenerateMissedOccurrences(rule core.RecurringRule, asOf time.Time) (Result, error) {
	return GenerateOccurrencesAfter(rule, rule.StartDate, asOf)
}

// GenerateOccurrencesAfter is GenerateMissedOccurrences restricted to dates
// strictly after the given day. Dates stay anchored at the rule's start, so
// resuming after the last date of a truncated Result continues the same sequence.
func GenerateOccurrencesAfter(rule core.RecurringRule, after core.Date, asOf time.Time) (Result, error) {
	s, err := stepperFor(rule)
	if err != nil {
		return Result{}, err
	}

	today := core.DateOf(asOf)
	var res Result
	for n := 1; ; n++ {
		d := s.Step(rule.StartDate, n)
		if d.After(today) || (rule.Ends() && d.After(rule.EndDate)) {
			break
		}
		if !d.After(after) {
			continue
		}
		if len(res.Occurrences) == MaxOccurrences {
			res.Truncated = true
			slog.Warn("Recurring catch-up hit occurrence cap",
				"rule_id", rule.ID,
				"cadence", rule.Cadence,
				"start_date", rule.StartDate.String(),
				"as_of", today.String(),
				"max", MaxOccurrences,
				"resume_after", res.Occurrences[len(res.Occurrences)-1].OccurrenceDate.String())
			break
		}
		res.Occurrences = append(res.Occurrences, newOccurrence(rule, d))
	}
	return res, nil
}

// NextUpcomingOccurrence returns the first occurrence strictly after the
// calendar day of after. It is used for display and emits nothing.
func NextUpcomingOccurrence(rule core.RecurringRule, after time.Time) (core.Date, error) {
	s, err := stepperFor(rule)
	if err != nil {
		return core.Date{}, err
	}

	day := core.DateOf(after)
	for n := 1; ; n++ {
		d := s.Step(rule.StartDate, n)
		if rule.Ends() && d.After(rule.EndDate) {
			return core.Date{}, ErrRuleEnded
		}
		if d.After(day) {
			return d, nil
		}
	}
}

// Schedule reports the due occurrences of rule as of asOf and the next date after it.
func Schedule(rule core.RecurringRule, asOf time.Time) (Preview, error) {
	res, err := GenerateMissedOccurrences(rule, asOf)
	if err != nil {
		return Preview{}, err
	}
	p := Preview{Result: res}
	next, err := NextUpcomingOccurrence(rule, asOf)
	switch {
	case errors.Is(err, ErrRuleEnded):
	case err != nil:
		return Preview{}, err
	default:
		p.Next = next
	}
	return p, nil
}

func stepperFor(rule core.RecurringRule) (Stepper, error) {
	if err := rule.StartDate.Validate(); err != nil {
		return nil, fmt.Errorf("invalid start date: %w", err)
	}
	return GetStepper(rule.Cadence)
}

func newOccurrence(rule core.RecurringRule, d core.Date) core.Occurrence {
	return core.Occurrence{
		SourceID:       rule.ID,
		OwnerID:        rule.OwnerID,
		OccurrenceDate: d,
		Description:    rule.Description,
		Amount:         rule.Amount,
		Currency:       rule.Currency,
		Category:       rule.Category,
		Note:           rule.ProvenanceNote(),
	}
}

package recurrence

import (
	"errors"
	"testing"
	"time"

	"backoffice/internal/core"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testRule(start core.Date, cadence core.Cadence) core.RecurringRule {
	return core.RecurringRule{
		ID:          "rule-1",
		OwnerID:     "owner-1",
		StartDate:   start,
		Cadence:     cadence,
		Description: "Storage unit",
		Amount:      decimal.RequireFromString("120.00"),
		Currency:    "USD",
		Category:    "Rent",
		Active:      true,
	}
}

func at(y, m, d int) time.Time {
	return time.Date(y, time.Month(m), d, 12, 0, 0, 0, time.UTC)
}

func dates(occ []core.Occurrence) []string {
	out := make([]string, len(occ))
	for i, o := range occ {
		out[i] = o.OccurrenceDate.String()
	}
	return out
}

func TestGenerateMissedOccurrences(t *testing.T) {
	tests := []struct {
		name string
		rule core.RecurringRule
		asOf time.Time
		want []string
	}{
		{
			name: "monthly from the 31st clamps short months",
			rule: testRule(core.NewDate(2024, 1, 31), core.Monthly),
			asOf: at(2024, 4, 30),
			want: []string{"2024-02-29", "2024-03-31", "2024-04-30"},
		},
		{
			name: "weekly evaluated on start day is empty",
			rule: testRule(core.NewDate(2024, 1, 1), core.Weekly),
			asOf: at(2024, 1, 1),
			want: []string{},
		},
		{
			name: "weekly anniversary is inclusive",
			rule: testRule(core.NewDate(2024, 1, 1), core.Weekly),
			asOf: at(2024, 1, 15),
			want: []string{"2024-01-08", "2024-01-15"},
		},
		{
			name: "future start yields nothing",
			rule: testRule(core.NewDate(2025, 1, 1), core.Monthly),
			asOf: at(2024, 6, 1),
			want: []string{},
		},
		{
			name: "quarterly",
			rule: testRule(core.NewDate(2023, 11, 30), core.Quarterly),
			asOf: at(2024, 9, 1),
			want: []string{"2024-02-29", "2024-05-30", "2024-08-30"},
		},
		{
			name: "annually from leap day",
			rule: testRule(core.NewDate(2024, 2, 29), core.Annually),
			asOf: at(2028, 3, 1),
			want: []string{"2025-02-28", "2026-02-28", "2027-02-28", "2028-02-29"},
		},
		{
			name: "end date stops generation",
			rule: func() core.RecurringRule {
				r := testRule(core.NewDate(2024, 1, 10), core.Monthly)
				r.EndDate = core.NewDate(2024, 3, 31)
				return r
			}(),
			asOf: at(2024, 12, 31),
			want: []string{"2024-02-10", "2024-03-10"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, err := GenerateMissedOccurrences(tt.rule, tt.asOf)
			require.NoError(t, err)
			assert.Equal(t, tt.want, dates(res.Occurrences))
			assert.False(t, res.Truncated)
		})
	}
}

func TestGenerateMissedOccurrences_CarriesRuleFields(t *testing.T) {
	rule := testRule(core.NewDate(2024, 1, 1), core.Weekly)
	rule.Note = "Unit 14B"

	res, err := GenerateMissedOccurrences(rule, at(2024, 1, 8))
	require.NoError(t, err)
	require.Len(t, res.Occurrences, 1)

	occ := res.Occurrences[0]
	assert.Equal(t, "rule-1", occ.SourceID)
	assert.Equal(t, "owner-1", occ.OwnerID)
	assert.Equal(t, "Storage unit", occ.Description)
	assert.True(t, occ.Amount.Equal(rule.Amount))
	assert.Equal(t, "Rent", occ.Category)
	assert.Equal(t, "Unit 14B (Recurring from 2024-01-01)", occ.Note)
	assert.Empty(t, occ.ID)
}

func TestGenerateMissedOccurrences_Cap(t *testing.T) {
	rule := testRule(core.NewDate(2000, 1, 3), core.Weekly)
	asOf := at(2024, 1, 1)

	res, err := GenerateMissedOccurrences(rule, asOf)
	require.NoError(t, err)
	assert.Len(t, res.Occurrences, MaxOccurrences)
	assert.True(t, res.Truncated)

	// Resuming from the last emitted date continues the same anchored sequence.
	last := res.Occurrences[len(res.Occurrences)-1].OccurrenceDate
	want, err := AddCadence(rule.StartDate, core.Weekly, MaxOccurrences)
	require.NoError(t, err)
	assert.Equal(t, want.String(), last.String())
}

func TestGenerateOccurrencesAfter_ResumesTruncatedRun(t *testing.T) {
	rule := testRule(core.NewDate(2000, 1, 31), core.Monthly)
	asOf := at(2024, 1, 1)

	var all []core.Occurrence
	after := rule.StartDate
	for pass := 0; pass < 10; pass++ {
		res, err := GenerateOccurrencesAfter(rule, after, asOf)
		require.NoError(t, err)
		all = append(all, res.Occurrences...)
		if !res.Truncated {
			break
		}
		after = res.Occurrences[len(res.Occurrences)-1].OccurrenceDate
	}

	// Feb 2000 through Dec 2023.
	require.Len(t, all, 287)
	assert.Equal(t, "2000-02-29", all[0].OccurrenceDate.String())
	assert.Equal(t, "2023-12-31", all[len(all)-1].OccurrenceDate.String())
	for i := 1; i < len(all); i++ {
		assert.True(t, all[i].OccurrenceDate.After(all[i-1].OccurrenceDate))
	}
}

func TestGenerateMissedOccurrences_ExactlyAtCap(t *testing.T) {
	rule := testRule(core.NewDate(2024, 1, 1), core.Weekly)
	last, err := AddCadence(rule.StartDate, core.Weekly, MaxOccurrences)
	require.NoError(t, err)

	res, err := GenerateMissedOccurrences(rule, last.Time)
	require.NoError(t, err)
	assert.Len(t, res.Occurrences, MaxOccurrences)
	assert.False(t, res.Truncated)
}

func TestGenerateMissedOccurrences_Properties(t *testing.T) {
	cadences := []core.Cadence{core.Weekly, core.Monthly, core.Quarterly, core.Annually}
	starts := []core.Date{
		core.NewDate(1999, 12, 31),
		core.NewDate(2020, 2, 29),
		core.NewDate(2023, 1, 31),
		core.NewDate(2024, 8, 15),
	}
	asOfs := []time.Time{at(1999, 1, 1), at(2023, 3, 1), at(2024, 12, 31), at(2030, 6, 30)}

	for _, c := range cadences {
		for _, s := range starts {
			for _, asOf := range asOfs {
				rule := testRule(s, c)
				res, err := GenerateMissedOccurrences(rule, asOf)
				require.NoError(t, err)

				assert.LessOrEqual(t, len(res.Occurrences), MaxOccurrences)
				if asOf.Before(s.Time) {
					assert.Empty(t, res.Occurrences, "%s from %s as of %s", c, s, asOf)
				}

				prev := s
				for _, o := range res.Occurrences {
					assert.True(t, o.OccurrenceDate.After(prev), "%s not after %s", o.OccurrenceDate, prev)
					assert.False(t, o.OccurrenceDate.After(core.DateOf(asOf)), "%s after asOf %s", o.OccurrenceDate, asOf)
					prev = o.OccurrenceDate
				}

				again, err := GenerateMissedOccurrences(rule, asOf)
				require.NoError(t, err)
				assert.Equal(t, res, again)
			}
		}
	}
}

func TestGenerateMissedOccurrences_UnsupportedCadence(t *testing.T) {
	_, err := GenerateMissedOccurrences(testRule(core.NewDate(2024, 1, 1), "daily"), at(2024, 2, 1))
	assert.True(t, errors.Is(err, core.ErrUnsupportedCadence))
}

func TestNextUpcomingOccurrence(t *testing.T) {
	rule := testRule(core.NewDate(2024, 1, 31), core.Monthly)

	tests := []struct {
		name  string
		after time.Time
		want  string
	}{
		{"before start", at(2023, 12, 1), "2024-02-29"},
		{"on start", at(2024, 1, 31), "2024-02-29"},
		{"on an occurrence is exclusive", at(2024, 2, 29), "2024-03-31"},
		{"between occurrences", at(2024, 4, 1), "2024-04-30"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := NextUpcomingOccurrence(rule, tt.after)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got.String())
		})
	}
}

func TestNextUpcomingOccurrence_Ended(t *testing.T) {
	rule := testRule(core.NewDate(2024, 1, 1), core.Monthly)
	rule.EndDate = core.NewDate(2024, 3, 1)

	_, err := NextUpcomingOccurrence(rule, at(2024, 3, 1))
	assert.ErrorIs(t, err, ErrRuleEnded)
}

func TestSchedule(t *testing.T) {
	rule := testRule(core.NewDate(2024, 1, 1), core.Quarterly)

	p, err := Schedule(rule, at(2024, 8, 1))
	require.NoError(t, err)
	assert.Equal(t, []string{"2024-04-01", "2024-07-01"}, dates(p.Occurrences))
	assert.Equal(t, "2024-10-01", p.Next.String())

	rule.EndDate = core.NewDate(2024, 7, 1)
	p, err = Schedule(rule, at(2024, 8, 1))
	require.NoError(t, err)
	assert.True(t, p.Next.IsZero())
}

package recurrence

import (
	"errors"
	"testing"

	"backoffice/internal/core"
)

func TestNextOccurrence(t *testing.T) {
	tests := []struct {
		name    string
		date    core.Date
		cadence core.Cadence
		want    core.Date
	}{
		{"weekly", core.NewDate(2024, 1, 1), core.Weekly, core.NewDate(2024, 1, 8)},
		{"weekly across year", core.NewDate(2024, 12, 28), core.Weekly, core.NewDate(2025, 1, 4)},
		{"monthly plain", core.NewDate(2024, 3, 15), core.Monthly, core.NewDate(2024, 4, 15)},
		{"monthly clamps to leap february", core.NewDate(2024, 1, 31), core.Monthly, core.NewDate(2024, 2, 29)},
		{"monthly clamps to february", core.NewDate(2023, 1, 31), core.Monthly, core.NewDate(2023, 2, 28)},
		{"monthly clamps to 30 day month", core.NewDate(2024, 3, 31), core.Monthly, core.NewDate(2024, 4, 30)},
		{"monthly across year", core.NewDate(2024, 12, 31), core.Monthly, core.NewDate(2025, 1, 31)},
		{"quarterly", core.NewDate(2024, 1, 15), core.Quarterly, core.NewDate(2024, 4, 15)},
		{"quarterly clamps", core.NewDate(2024, 11, 30), core.Quarterly, core.NewDate(2025, 2, 28)},
		{"annually", core.NewDate(2024, 6, 1), core.Annually, core.NewDate(2025, 6, 1)},
		{"annually from leap day", core.NewDate(2024, 2, 29), core.Annually, core.NewDate(2025, 2, 28)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := NextOccurrence(tt.date, tt.cadence)
			if err != nil {
				t.Fatalf("NextOccurrence() error = %v", err)
			}
			if !got.Equal(tt.want) {
				t.Errorf("NextOccurrence(%s, %s) = %s, want %s", tt.date, tt.cadence, got, tt.want)
			}
		})
	}
}

func TestNextOccurrence_StrictlyIncreasing(t *testing.T) {
	cadences := []core.Cadence{core.Weekly, core.Monthly, core.Quarterly, core.Annually}
	day := core.NewDate(2023, 1, 1)
	end := core.NewDate(2025, 1, 1)

	for ; day.Before(end); day = core.DateOf(day.AddDate(0, 0, 1)) {
		for _, c := range cadences {
			next, err := NextOccurrence(day, c)
			if err != nil {
				t.Fatalf("NextOccurrence(%s, %s) error = %v", day, c, err)
			}
			if !next.After(day) {
				t.Fatalf("NextOccurrence(%s, %s) = %s, not after input", day, c, next)
			}
		}
	}
}

func TestNextOccurrence_UnsupportedCadence(t *testing.T) {
	for _, c := range []core.Cadence{"", "daily", "fortnightly"} {
		_, err := NextOccurrence(core.NewDate(2024, 1, 1), c)
		if !errors.Is(err, core.ErrUnsupportedCadence) {
			t.Errorf("cadence %q: error = %v, want ErrUnsupportedCadence", c, err)
		}
	}
}

func TestNextOccurrence_ZeroDate(t *testing.T) {
	if _, err := NextOccurrence(core.Date{}, core.Weekly); err == nil {
		t.Fatal("expected error for zero date")
	}
}

func TestAddCadence_AnchoredAtStart(t *testing.T) {
	start := core.NewDate(2024, 1, 31)
	want := []core.Date{
		core.NewDate(2024, 1, 31),
		core.NewDate(2024, 2, 29),
		core.NewDate(2024, 3, 31),
		core.NewDate(2024, 4, 30),
		core.NewDate(2024, 5, 31),
	}
	for n, w := range want {
		got, err := AddCadence(start, core.Monthly, n)
		if err != nil {
			t.Fatalf("AddCadence(%d) error = %v", n, err)
		}
		if !got.Equal(w) {
			t.Errorf("AddCadence(%s, monthly, %d) = %s, want %s", start, n, got, w)
		}
	}
}

type fortnightStepper struct{}

func (fortnightStepper) Step(start core.Date, n int) core.Date {
	return core.DateOf(start.AddDate(0, 0, 14*n))
}

func TestRegisterStepper(t *testing.T) {
	const fortnightly core.Cadence = "fortnightly"
	RegisterStepper(fortnightly, fortnightStepper{})
	t.Cleanup(func() {
		steppersMu.Lock()
		delete(steppers, fortnightly)
		steppersMu.Unlock()
	})

	s, err := GetStepper(fortnightly)
	if err != nil {
		t.Fatalf("GetStepper() error = %v", err)
	}
	if got := s.Step(core.NewDate(2024, 1, 1), 1); !got.Equal(core.NewDate(2024, 1, 15)) {
		t.Errorf("Step() = %s, want 2024-01-15", got)
	}
}

// Package recurrence computes occurrence dates for recurring rules.
//
// Each cadence has its own Stepper that advances a start date by n cadence
// units. Month-based cadences clamp to the last day of the target month and
// are always computed from the rule's start date, so a rule starting on the
// 31st keeps landing on the 31st in long months.
package recurrence

import (
	"fmt"
	"sync"
	"time"

	"backoffice/internal/core"
)

// Stepper advances a start date by whole cadence units.
type Stepper interface {
	// Step returns the n-th occurrence anchored at start. Step(start, 0) is start.
	Step(start core.Date, n int) core.Date
}

// WeekStepper adds seven days per unit.
type WeekStepper struct{}

func (WeekStepper) Step(start core.Date, n int) core.Date {
	return core.DateOf(start.AddDate(0, 0, 7*n))
}

// MonthStepper adds Months calendar months per unit, clamping the day.
type MonthStepper struct {
	Months int
}

func (s MonthStepper) Step(start core.Date, n int) core.Date {
	return addMonthsClamped(start, s.Months*n)
}

// addMonthsClamped moves d by months, keeping its day of month unless the
// target month is shorter, in which case the last day of that month is used.
func addMonthsClamped(d core.Date, months int) core.Date {
	y, m, day := d.Date()
	first := time.Date(y, m+time.Month(months), 1, 0, 0, 0, 0, time.UTC)
	lastDay := time.Date(first.Year(), first.Month()+1, 0, 0, 0, 0, 0, time.UTC).Day()
	if day > lastDay {
		day = lastDay
	}
	return core.NewDate(first.Year(), int(first.Month()), day)
}

var (
	steppersMu sync.RWMutex
	steppers   = map[core.Cadence]Stepper{
		core.Weekly:    WeekStepper{},
		core.Monthly:   MonthStepper{Months: 1},
		core.Quarterly: MonthStepper{Months: 3},
		core.Annually:  MonthStepper{Months: 12},
	}
)

// GetStepper returns the stepper registered for cadence.
func GetStepper(cadence core.Cadence) (Stepper, error) {
	steppersMu.RLock()
	defer steppersMu.RUnlock()
	s, ok := steppers[cadence]
	if !ok {
		return nil, fmt.Errorf("%w: %q", core.ErrUnsupportedCadence, string(cadence))
	}
	return s, nil
}

// RegisterStepper adds or replaces the stepper for cadence.
func RegisterStepper(cadence core.Cadence, s Stepper) {
	steppersMu.Lock()
	defer steppersMu.Unlock()
	steppers[cadence] = s
}

// Package schedule expands schedule recurrences into concrete dates.
//
// Each frequency has its own Stepper that computes the nth occurrence from
// the recurrence start, so long runs never drift on short months.
package schedule

import (
	"fmt"
	"time"

	"cashflow/internal/core"
)

// Stepper computes occurrence n (0-based) of a recurrence anchored at start.
type Stepper interface {
	Nth(start core.Date, interval, n int) time.Time
}

type DailyStepper struct{}

func (DailyStepper) Nth(start core.Date, interval, n int) time.Time {
	return start.AddDate(0, 0, interval*n)
}

type WeeklyStepper struct{}

func (WeeklyStepper) Nth(start core.Date, interval, n int) time.Time {
	return start.AddDate(0, 0, 7*interval*n)
}

// MonthlyStepper keeps the start day of month, clamped to the month's last day.
type MonthlyStepper struct{}

func (MonthlyStepper) Nth(start core.Date, interval, n int) time.Time {
	first := time.Date(start.Year(), time.Month(start.Month())+time.Month(interval*n), 1, 0, 0, 0, 0, time.UTC)
	return clampDay(first.Year(), first.Month(), start.Day())
}

// YearlyStepper keeps month and day; Feb 29 falls back to Feb 28.
type YearlyStepper struct{}

func (YearlyStepper) Nth(start core.Date, interval, n int) time.Time {
	return clampDay(start.Year()+interval*n, time.Month(start.Month()), start.Day())
}

func clampDay(year int, month time.Month, day int) time.Time {
	if last := core.DaysIn(year, month); day > last {
		day = last
	}
	return time.Date(year, month, day, 0, 0, 0, 0, time.UTC)
}

var steppers = map[core.RepetitionTypes]Stepper{
	core.Daily:   DailyStepper{},
	core.Weekly:  WeeklyStepper{},
	core.Monthly: MonthlyStepper{},
	core.Yearly:  YearlyStepper{},
}

// GetStepper returns the stepper for a frequency.
func GetStepper(frequency core.RepetitionTypes) (Stepper, error) {
	s, ok := steppers[frequency]
	if !ok {
		return nil, fmt.Errorf("%w: unknown repetition type %q", ErrInvalidRecurrence, frequency)
	}
	return s, nil
}

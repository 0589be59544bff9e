package schedule

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"

	"cashflow/internal/core"
)

// DefaultMaxOccurrences bounds a single expansion.
const DefaultMaxOccurrences = 5000

var (
	ErrTooManyOccurrences = errors.New("too many occurrences")
	// ErrInvalidRecurrence marks a recurrence that cannot be expanded:
	// an unknown frequency or an unparsable cron expression.
	ErrInvalidRecurrence = errors.New("invalid recurrence")
)

// Expander lists the dates a schedule falls on within [from, to].
type Expander interface {
	Occurrences(ctx context.Context, s core.Schedule, from, to time.Time) ([]core.Date, error)
}

// RecurrenceExpander expands frequency and cron recurrences.
type RecurrenceExpander struct {
	MaxOccurrences int
}

func NewRecurrenceExpander(maxOccurrences int) *RecurrenceExpander {
	if maxOccurrences <= 0 {
		maxOccurrences = DefaultMaxOccurrences
	}
	return &RecurrenceExpander{MaxOccurrences: maxOccurrences}
}

func (e *RecurrenceExpander) Occurrences(ctx context.Context, s core.Schedule, from, to time.Time) ([]core.Date, error) {
	from = core.BucketStart(from, false)
	to = core.BucketStart(to, false)
	if from.After(to) {
		return nil, fmt.Errorf("%w: %s > %s", core.ErrInvalidRange, core.DayOf(from), core.DayOf(to))
	}

	if s.Recurrence == nil {
		if s.Date.IsEmpty() || !within(s.Date.Time, from, to) {
			return nil, nil
		}
		return []core.Date{s.Date}, nil
	}

	r := s.Recurrence
	if !r.End.IsEmpty() && r.End.Before(to) {
		to = r.End.Time
	}
	if r.Cron != "" {
		return e.cronOccurrences(ctx, s, r, from, to)
	}

	stepper, err := GetStepper(r.Every)
	if err != nil {
		return nil, fmt.Errorf("schedule %s: %w", s.ID, err)
	}
	interval := r.Interval
	if interval <= 0 {
		interval = 1
	}

	var out []core.Date
	for n := 0; ; n++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		d := stepper.Nth(r.Start, interval, n)
		if d.After(to) {
			break
		}
		if d.Before(from) {
			continue
		}
		if len(out) >= e.limit() {
			return nil, fmt.Errorf("schedule %s: %w (limit %d)", s.ID, ErrTooManyOccurrences, e.limit())
		}
		out = append(out, core.DateOf(d))
	}
	return out, nil
}

// cronOccurrences collapses several firings on one day into one occurrence.
func (e *RecurrenceExpander) cronOccurrences(ctx context.Context, s core.Schedule, r *core.Recurrence, from, to time.Time) ([]core.Date, error) {
	sched, err := cron.ParseStandard(r.Cron)
	if err != nil {
		return nil, fmt.Errorf("schedule %s: %w: parse cron %q: %w", s.ID, ErrInvalidRecurrence, r.Cron, err)
	}

	lo := from
	if r.Start.After(lo) {
		lo = r.Start.Time
	}
	limit := to.AddDate(0, 0, 1)

	var out []core.Date
	for t := sched.Next(lo.Add(-time.Nanosecond)); !t.IsZero() && t.Before(limit); {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if len(out) >= e.limit() {
			return nil, fmt.Errorf("schedule %s: %w (limit %d)", s.ID, ErrTooManyOccurrences, e.limit())
		}
		day := core.DateOf(t)
		out = append(out, day)
		t = sched.Next(day.AddDate(0, 0, 1).Add(-time.Nanosecond))
	}
	return out, nil
}

func (e *RecurrenceExpander) limit() int {
	if e.MaxOccurrences <= 0 {
		return DefaultMaxOccurrences
	}
	return e.MaxOccurrences
}

func within(t, from, to time.Time) bool {
	return !t.Before(from) && !t.After(to)
}

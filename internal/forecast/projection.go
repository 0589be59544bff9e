package forecast

import (
	"slices"
	"time"

	"cashflow/internal/core"
)

// Horizon is the forecast window following the historical range. Start and
// End are inclusive days.
type Horizon struct {
	Start   time.Time
	End     time.Time
	Concise bool
}

// NewHorizon returns the window from the bucket after end through forecast.
// ok is false when there is nothing to forecast.
func NewHorizon(end, forecast time.Time, concise bool) (h Horizon, ok bool) {
	if forecast.IsZero() {
		return Horizon{}, false
	}
	start := core.NextBucketStart(end, concise)
	if core.BucketStart(forecast, concise).Before(start) {
		return Horizon{}, false
	}
	last := core.BucketStart(forecast, false)
	if concise {
		last = core.EndOfMonth(forecast)
	}
	return Horizon{Start: start, End: last, Concise: concise}, true
}

// Contains reports whether t falls on a horizon day.
func (h Horizon) Contains(t time.Time) bool {
	return !t.Before(h.Start) && !t.After(h.End)
}

// Bucket maps a date to its horizon bucket.
func (h Horizon) Bucket(t time.Time) core.Bucket {
	return core.BucketOf(t, h.Concise)
}

// Months lists the first day of every month the horizon touches.
func (h Horizon) Months() []time.Time {
	var out []time.Time
	for m := core.StartOfMonth(h.Start); !m.After(h.End); m = m.AddDate(0, 1, 0) {
		out = append(out, m)
	}
	return out
}

// MonthBucket places a month-level projection. In day mode it lands on the
// first horizon day inside that month.
func (h Horizon) MonthBucket(month time.Time) core.Bucket {
	if h.Concise {
		return core.MonthOf(month)
	}
	if month.Before(h.Start) {
		return core.DayOf(h.Start)
	}
	return core.DayOf(month)
}

// Projection holds projected entries split by sign. Methods return copies.
type Projection struct {
	Income  []core.FlowEntry `json:"income"`
	Expense []core.FlowEntry `json:"expense"`
}

// With returns p plus e routed by sign. Zero entries are dropped.
func (p Projection) With(e core.FlowEntry) Projection {
	switch {
	case e.Amount > 0:
		p.Income = append(slices.Clip(p.Income), e)
	case e.Amount < 0:
		p.Expense = append(slices.Clip(p.Expense), e)
	}
	return p
}

func (p Projection) Merge(o Projection) Projection {
	return Projection{
		Income:  append(slices.Clip(p.Income), o.Income...),
		Expense: append(slices.Clip(p.Expense), o.Expense...),
	}
}

func (p Projection) Empty() bool {
	return len(p.Income) == 0 && len(p.Expense) == 0
}

package forecast

import (
	"fmt"
	"time"

	"cashflow/internal/core"
)

// Sample is the historical input for an Averager. From and Through are the
// first and last sample months; a zero From leaves the window open.
type Sample struct {
	Entries []core.FlowEntry
	From    time.Time
	Through time.Time
}

// Averager projects a historical sample over the horizon months.
type Averager interface {
	Project(s Sample, h Horizon, p Params) (Projection, error)
}

// monthTotal accumulates the non-transfer inflow and outflow of one month.
type monthTotal struct {
	assets int64
	debts  int64
}

// monthTotals sums the sample per month within [from, Through].
func (s Sample) monthTotals(from time.Time) map[time.Time]monthTotal {
	if !s.From.IsZero() && s.From.After(from) {
		from = s.From
	}
	through := core.StartOfMonth(s.Through)
	out := make(map[time.Time]monthTotal)
	for _, e := range s.Entries {
		if e.IsTransfer {
			continue
		}
		t, err := e.Date.Time()
		if err != nil {
			continue
		}
		m := core.StartOfMonth(t)
		if (!from.IsZero() && m.Before(core.StartOfMonth(from))) || (!s.Through.IsZero() && m.After(through)) {
			continue
		}
		tot := out[m]
		if e.Amount > 0 {
			tot.assets += e.Amount
		} else {
			tot.debts += e.Amount
		}
		out[m] = tot
	}
	return out
}

// mean divides by the number of non-zero values; none yields zero.
type mean struct {
	sum int64
	n   int64
}

func (m *mean) add(v int64) {
	if v != 0 {
		m.sum += v
		m.n++
	}
}

func (m mean) value() int64 {
	if m.n == 0 {
		return 0
	}
	return core.FloorDiv(m.sum, m.n)
}

// LastMonthsAverager projects the mean month over the last AverageMonths
// sample months (all months when 0).
type LastMonthsAverager struct{}

func (LastMonthsAverager) Project(s Sample, h Horizon, p Params) (Projection, error) {
	var from time.Time
	if p.AverageMonths > 0 && !s.Through.IsZero() {
		from = core.StartOfMonth(s.Through).AddDate(0, -(p.AverageMonths - 1), 0)
	}

	var income, expense mean
	for _, tot := range s.monthTotals(from) {
		income.add(tot.assets)
		expense.add(tot.debts)
	}

	var out Projection
	for _, m := range h.Months() {
		b := h.MonthBucket(m)
		out = out.With(core.FlowEntry{Date: b, Amount: income.value()})
		out = out.With(core.FlowEntry{Date: b, Amount: expense.value()})
	}
	return out, nil
}

// PerMonthAverager projects each calendar month from the same month in the
// last AverageYears years. Months without a sample use the mean of the
// months that have one.
type PerMonthAverager struct{}

func (PerMonthAverager) Project(s Sample, h Horizon, p Params) (Projection, error) {
	var from time.Time
	if p.AverageYears > 0 && !s.Through.IsZero() {
		from = core.StartOfMonth(s.Through).AddDate(-p.AverageYears, 1, 0)
	}

	var income, expense [13]mean
	for m, tot := range s.monthTotals(from) {
		income[m.Month()].add(tot.assets)
		expense[m.Month()].add(tot.debts)
	}

	var incomeFallback, expenseFallback mean
	for month := time.January; month <= time.December; month++ {
		incomeFallback.add(income[month].value())
		expenseFallback.add(expense[month].value())
	}

	pick := func(seasonal, fallback mean) int64 {
		if v := seasonal.value(); v != 0 {
			return v
		}
		return fallback.value()
	}

	var out Projection
	for _, m := range h.Months() {
		b := h.MonthBucket(m)
		out = out.With(core.FlowEntry{Date: b, Amount: pick(income[m.Month()], incomeFallback)})
		out = out.With(core.FlowEntry{Date: b, Amount: pick(expense[m.Month()], expenseFallback)})
	}
	return out, nil
}

// unsupported fails every projection for a declared but unimplemented method.
type unsupported struct {
	method Method
}

func (u unsupported) Project(Sample, Horizon, Params) (Projection, error) {
	return Projection{}, fmt.Errorf("%w: %s", ErrMethodNotSupported, u.method)
}

var averagers = map[Method]Averager{
	MethodLastMonths: LastMonthsAverager{},
	MethodPerMonth:   PerMonthAverager{},
	MethodMinAvgMax:  unsupported{MethodMinAvgMax},
	MethodMonteCarlo: unsupported{MethodMonteCarlo},
}

// GetAverager returns the averager for a method. An empty method means lastMonths.
func GetAverager(m Method) (Averager, error) {
	if m == "" {
		m = MethodLastMonths
	}
	a, ok := averagers[m]
	if !ok {
		return nil, fmt.Errorf("%w: unknown method %q", ErrInvalidParams, m)
	}
	return a, nil
}

package forecast

import (
	"cashflow/internal/core"
	"cashflow/internal/query"
)

// Filter reports whether a schedule side with the given account and payee
// belongs to the report.
type Filter func(account, payee string) bool

type Filters []Filter

// Include is true when no filter is set or any filter matches.
func (fs Filters) Include(account, payee string) bool {
	if len(fs) == 0 {
		return true
	}
	for _, f := range fs {
		if f(account, payee) {
			return true
		}
	}
	return false
}

// ScheduleFilters builds filters from report conditions. Only account and
// payee conditions apply to schedules.
func ScheduleFilters(conds []query.Condition) Filters {
	var fs Filters
	for _, c := range conds {
		switch c.Field {
		case query.FieldAccount:
			fs = append(fs, func(account, _ string) bool { return c.Match(account) })
		case query.FieldPayee:
			fs = append(fs, func(_, payee string) bool { return c.Match(payee) })
		}
	}
	return fs
}

// Occurrences pairs a schedule with its expanded dates.
type Occurrences struct {
	Schedule core.Schedule
	Dates    []core.Date
}

// FromSchedules projects schedule occurrences that fall in the horizon.
// A transfer also yields the negated entry on the receiving account.
func FromSchedules(occs []Occurrences, filters Filters, h Horizon) Projection {
	var out Projection
	for _, o := range occs {
		s := o.Schedule
		amount := s.Amount.Resolve()
		includeSource := !s.AccountOffBudget && filters.Include(s.Account, s.Payee)
		includeMirror := s.IsTransfer() && !s.PayeeOffBudget && filters.Include(s.TransferAccount, s.Payee)

		for _, d := range o.Dates {
			if !h.Contains(d.Time) {
				continue
			}
			b := h.Bucket(d.Time)
			if includeMirror {
				out = out.With(core.FlowEntry{
					Date:            b,
					IsTransfer:      true,
					TransferAccount: s.Account,
					Amount:          -amount,
				})
			}
			if includeSource {
				out = out.With(core.FlowEntry{
					Date:            b,
					IsTransfer:      s.IsTransfer(),
					TransferAccount: s.TransferAccount,
					Amount:          amount,
				})
			}
		}
	}
	return out
}

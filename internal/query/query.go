// Package query defines the declarative read contract the reporting code
// depends on. Storage adapters implement the ports; nothing in the
// forecasting path talks to a database directly.
package query

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"time"

	"cashflow/internal/core"
)

type (
	Field       string
	Op          string
	Conjunction string
	Sign        string
	GroupBy     string
)

const (
	FieldAccount  Field = "account"
	FieldPayee    Field = "payee"
	FieldCategory Field = "category"

	OpIs    Op = "is"
	OpIsNot Op = "isNot"
	OpOneOf Op = "oneOf"

	And Conjunction = "and"
	Or  Conjunction = "or"

	SignAny      Sign = ""
	SignPositive Sign = "positive"
	SignNegative Sign = "negative"

	GroupByCategory GroupBy = "category"
	GroupByGroup    GroupBy = "group"
	GroupByPayee    GroupBy = "payee"
	GroupByAccount  GroupBy = "account"
)

// StartingBalancesCategory is the category name used for opening balance
// transactions. Forecast samples skip it.
const StartingBalancesCategory = "Starting Balances"

var ErrInvalidCondition = errors.New("invalid condition")

// Condition filters rows by an entity id.
type Condition struct {
	Field  Field    `json:"field" yaml:"field"`
	Op     Op       `json:"op" yaml:"op"`
	Value  string   `json:"value,omitempty" yaml:"value,omitempty"`
	Values []string `json:"values,omitempty" yaml:"values,omitempty"`
}

func (c Condition) Validate() error {
	switch c.Field {
	case FieldAccount, FieldPayee, FieldCategory:
	default:
		return fmt.Errorf("%w: unknown field %q", ErrInvalidCondition, c.Field)
	}
	switch c.Op {
	case OpIs, OpIsNot:
		if c.Value == "" {
			return fmt.Errorf("%w: %s %s needs a value", ErrInvalidCondition, c.Field, c.Op)
		}
	case OpOneOf:
		if len(c.Values) == 0 {
			return fmt.Errorf("%w: %s oneOf needs values", ErrInvalidCondition, c.Field)
		}
	default:
		return fmt.Errorf("%w: unknown op %q", ErrInvalidCondition, c.Op)
	}
	return nil
}

// Match evaluates the condition against a single value.
func (c Condition) Match(v string) bool {
	switch c.Op {
	case OpIs:
		return v == c.Value
	case OpIsNot:
		return v != c.Value
	case OpOneOf:
		return slices.Contains(c.Values, v)
	}
	return false
}

// Subject carries the ids a condition can refer to.
type Subject struct {
	Account  string
	Payee    string
	Category string
}

func (s Subject) field(f Field) string {
	switch f {
	case FieldAccount:
		return s.Account
	case FieldPayee:
		return s.Payee
	case FieldCategory:
		return s.Category
	}
	return ""
}

// Where combines conditions. An empty Where matches everything.
type Where struct {
	Conditions  []Condition `json:"conditions,omitempty"`
	Conjunction Conjunction `json:"conjunction,omitempty"`
}

func (w Where) Validate() error {
	switch w.Conjunction {
	case "", And, Or:
	default:
		return fmt.Errorf("%w: unknown conjunction %q", ErrInvalidCondition, w.Conjunction)
	}
	for _, c := range w.Conditions {
		if err := c.Validate(); err != nil {
			return err
		}
	}
	return nil
}

func (w Where) Matches(s Subject) bool {
	if len(w.Conditions) == 0 {
		return true
	}
	if w.Conjunction == Or {
		for _, c := range w.Conditions {
			if c.Match(s.field(c.Field)) {
				return true
			}
		}
		return false
	}
	for _, c := range w.Conditions {
		if !c.Match(s.field(c.Field)) {
			return false
		}
	}
	return true
}

// FlowQuery selects net movements grouped by bucket and transfer account.
// From and To are inclusive days; a zero bound is open.
type FlowQuery struct {
	From                    time.Time
	To                      time.Time
	Concise                 bool
	Sign                    Sign
	Where                   Where
	ExcludeStartingBalances bool
}

// SumQuery sums amounts over a date range.
type SumQuery struct {
	From             time.Time
	To               time.Time
	Sign             Sign
	ExcludeTransfers bool
	Where            Where
}

// TotalsQuery splits non-transfer amounts into inflow and outflow per entity.
type TotalsQuery struct {
	From    time.Time
	To      time.Time
	GroupBy GroupBy
	Where   Where
}

// MatchSign reports whether amount satisfies s.
func (s Sign) MatchSign(amount int64) bool {
	switch s {
	case SignPositive:
		return amount > 0
	case SignNegative:
		return amount < 0
	}
	return true
}

// InRange reports whether t lies within the inclusive, possibly open, range.
func InRange(t, from, to time.Time) bool {
	if !from.IsZero() && t.Before(from) {
		return false
	}
	if !to.IsZero() && t.After(to) {
		return false
	}
	return true
}

type FlowReader interface {
	Flows(ctx context.Context, q FlowQuery) ([]core.FlowEntry, error)
}

type SumReader interface {
	Sum(ctx context.Context, q SumQuery) (int64, error)
}

// ScheduleReader lists active schedules with their account metadata resolved.
type ScheduleReader interface {
	Schedules(ctx context.Context) ([]core.Schedule, error)
}

type TotalsReader interface {
	Totals(ctx context.Context, q TotalsQuery) ([]core.SplitTotal, error)
}

type HistoryReader interface {
	// EarliestTransaction returns the date of the oldest live transaction.
	EarliestTransaction(ctx context.Context) (time.Time, bool, error)
}

// Querier is the full read surface used by the report service.
type Querier interface {
	FlowReader
	SumReader
	ScheduleReader
	TotalsReader
	HistoryReader
}

// Package series merges historical and projected flow entries into a
// contiguous running-balance series.
package series

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"cashflow/internal/core"
)

// Flows holds the summed regular and transfer amounts of one bucket.
type Flows struct {
	Regular  int64
	Transfer int64
}

// Index groups entries by bucket and transfer flag. In concise mode day
// buckets are folded into their month.
func Index(entries []core.FlowEntry, concise bool) map[core.Bucket]Flows {
	out := make(map[core.Bucket]Flows, len(entries))
	for _, e := range entries {
		b := e.Date
		if concise && !b.IsMonth() && len(b) >= len(core.MonthLayout) {
			b = b[:len(core.MonthLayout)]
		}
		f := out[b]
		if e.IsTransfer {
			f.Transfer += e.Amount
		} else {
			f.Regular += e.Amount
		}
		out[b] = f
	}
	return out
}

type Point struct {
	Date core.Bucket     `json:"date"`
	X    time.Time       `json:"x"`
	Y    decimal.Decimal `json:"y"`
}

type BalancePoint struct {
	Point
	Amount int64 `json:"amount"`
	Label  Label `json:"label"`
}

// Label is the formatted tooltip of a balance point. Transfers is empty
// when the bucket had no transfers.
type Label struct {
	Title     string `json:"title"`
	Income    string `json:"income"`
	Expenses  string `json:"expenses"`
	Change    string `json:"change"`
	Transfers string `json:"transfers,omitempty"`
	Balance   string `json:"balance"`
}

func (l Label) String() string {
	var b strings.Builder
	b.WriteString(l.Title)
	fmt.Fprintf(&b, "\nIncome: %s\nExpenses: %s\nChange: %s", l.Income, l.Expenses, l.Change)
	if l.Transfers != "" {
		fmt.Fprintf(&b, "\nTransfers: %s", l.Transfers)
	}
	fmt.Fprintf(&b, "\nBalance: %s", l.Balance)
	return b.String()
}

type Graph struct {
	Income          []Point        `json:"income"`
	Expenses        []Point        `json:"expenses"`
	Transfers       []Point        `json:"transfers"`
	Balances        []BalancePoint `json:"balances"`
	FutureIncome    []Point        `json:"futureIncome"`
	FutureExpenses  []Point        `json:"futureExpenses"`
	FutureTransfers []Point        `json:"futureTransfers"`
	FutureBalances  []BalancePoint `json:"futureBalances"`
}

// Report is the full cash-flow result. Totals cover history and forecast;
// TotalChange is the historical balance change.
type Report struct {
	Graph            Graph `json:"graphData"`
	StartingBalance  int64 `json:"startingBalance"`
	Balance          int64 `json:"balance"`
	ProjectedBalance int64 `json:"projectedBalance"`
	TotalIncome      int64 `json:"totalIncome"`
	TotalExpenses    int64 `json:"totalExpenses"`
	TotalTransfers   int64 `json:"totalTransfers"`
	TotalChange      int64 `json:"totalChange"`
}

// Input is everything Build needs. Start, End and Forecast are days.
type Input struct {
	Start           time.Time
	End             time.Time
	Forecast        time.Time
	Concise         bool
	StartingBalance int64
	Income          []core.FlowEntry
	Expense         []core.FlowEntry
	FutureIncome    []core.FlowEntry
	FutureExpense   []core.FlowEntry
}

// Build walks the historical buckets, then the forecast buckets, carrying
// the running balance across the boundary. It stops with ctx's error when
// ctx is done.
func Build(ctx context.Context, in Input) (Report, error) {
	dates, err := core.BucketRange(in.Start, in.End, in.Concise)
	if err != nil {
		return Report{}, err
	}

	var future []core.Bucket
	if !in.Forecast.IsZero() {
		next := core.NextBucketStart(in.End, in.Concise)
		if !core.BucketStart(in.Forecast, in.Concise).Before(next) {
			if future, err = core.BucketRange(next, in.Forecast, in.Concise); err != nil {
				return Report{}, err
			}
		}
	}

	hist, err := walk(ctx, dates, in.StartingBalance, Index(in.Income, in.Concise), Index(in.Expense, in.Concise), in.Concise)
	if err != nil {
		return Report{}, err
	}
	fut, err := walk(ctx, future, hist.balance, Index(in.FutureIncome, in.Concise), Index(in.FutureExpense, in.Concise), in.Concise)
	if err != nil {
		return Report{}, err
	}

	return Report{
		Graph: Graph{
			Income:          hist.income,
			Expenses:        hist.expenses,
			Transfers:       hist.transfers,
			Balances:        hist.balances,
			FutureIncome:    fut.income,
			FutureExpenses:  fut.expenses,
			FutureTransfers: fut.transfers,
			FutureBalances:  fut.balances,
		},
		StartingBalance:  in.StartingBalance,
		Balance:          hist.balance,
		ProjectedBalance: fut.balance,
		TotalIncome:      hist.totalIncome + fut.totalIncome,
		TotalExpenses:    hist.totalExpenses + fut.totalExpenses,
		TotalTransfers:   hist.totalTransfers + fut.totalTransfers,
		TotalChange:      hist.balance - in.StartingBalance,
	}, nil
}

type segment struct {
	income, expenses, transfers []Point
	balances                    []BalancePoint

	balance        int64
	totalIncome    int64
	totalExpenses  int64
	totalTransfers int64
}

func walk(ctx context.Context, dates []core.Bucket, opening int64, incomes, expenses map[core.Bucket]Flows, concise bool) (segment, error) {
	s := segment{
		income:    make([]Point, 0, len(dates)),
		expenses:  make([]Point, 0, len(dates)),
		transfers: make([]Point, 0, len(dates)),
		balances:  make([]BalancePoint, 0, len(dates)),
		balance:   opening,
	}
	for _, date := range dates {
		if err := ctx.Err(); err != nil {
			return segment{}, err
		}
		in, out := incomes[date], expenses[date]
		transfers := in.Transfer + out.Transfer

		s.totalIncome += in.Regular
		s.totalExpenses += out.Regular
		s.totalTransfers += transfers
		s.balance += in.Regular + out.Regular + transfers

		x, _ := date.Time()
		s.income = append(s.income, point(date, x, in.Regular))
		s.expenses = append(s.expenses, point(date, x, out.Regular))
		s.transfers = append(s.transfers, point(date, x, transfers))
		s.balances = append(s.balances, BalancePoint{
			Point:  point(date, x, s.balance),
			Amount: s.balance,
			Label:  label(x, concise, in.Regular, out.Regular, transfers, s.balance),
		})
	}
	return s, nil
}

func point(date core.Bucket, x time.Time, cents int64) Point {
	return Point{Date: date, X: x, Y: core.AmountFromCents(cents)}
}

func label(x time.Time, concise bool, income, expense, transfers, balance int64) Label {
	layout := "January 2, 2006"
	if concise {
		layout = "January 2006"
	}
	l := Label{
		Title:    x.Format(layout),
		Income:   core.FormatCurrency(income),
		Expenses: core.FormatCurrency(expense),
		Change:   core.FormatCurrency(income + expense),
		Balance:  core.FormatCurrency(balance),
	}
	if transfers != 0 {
		l.Transfers = core.FormatCurrency(transfers)
	}
	return l
}

package sheets

import (
	"cashflow/internal/core"
	"cashflow/internal/series"
)

// Header is the first row written for every exported report.
var Header = []any{"Report", "Date", "Kind", "Income", "Expenses", "Transfers", "Balance"}

const (
	KindActual   = "actual"
	KindForecast = "forecast"
)

// Rows flattens a report into sheet rows: one per bucket, history first.
// Amounts are plain decimal strings so the sheet parses them as numbers.
func Rows(title string, rep series.Report) [][]any {
	g := rep.Graph
	out := make([][]any, 0, len(g.Balances)+len(g.FutureBalances)+1)
	out = append(out, Header)
	out = appendSegment(out, title, KindActual, g.Income, g.Expenses, g.Transfers, g.Balances)
	return appendSegment(out, title, KindForecast, g.FutureIncome, g.FutureExpenses, g.FutureTransfers, g.FutureBalances)
}

func appendSegment(out [][]any, title, kind string, income, expenses, transfers []series.Point, balances []series.BalancePoint) [][]any {
	for i, b := range balances {
		out = append(out, []any{
			title,
			string(b.Date),
			kind,
			amountAt(income, i),
			amountAt(expenses, i),
			amountAt(transfers, i),
			core.AmountFromCents(b.Amount).StringFixed(2),
		})
	}
	return out
}

func amountAt(points []series.Point, i int) string {
	if i >= len(points) {
		return "0.00"
	}
	return points[i].Y.StringFixed(2)
}

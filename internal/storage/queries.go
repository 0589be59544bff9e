package storage

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"cashflow/internal/core"
	"cashflow/internal/query"
)

const transactionsFrom = `
FROM transactions t
JOIN accounts a ON a.id = t.account
LEFT JOIN payees p ON p.id = t.payee
LEFT JOIN categories c ON c.id = t.category
LEFT JOIN category_groups g ON g.id = c.cat_group`

// filter accumulates WHERE clauses and their arguments.
type filter struct {
	clauses []string
	args    []any
}

func baseFilter() *filter {
	return &filter{clauses: []string{"t.tombstone = 0", "a.tombstone = 0", "a.offbudget = 0"}}
}

func (f *filter) add(clause string, args ...any) {
	f.clauses = append(f.clauses, clause)
	f.args = append(f.args, args...)
}

func (f *filter) dateRange(from, to time.Time) {
	if !from.IsZero() {
		f.add("t.date >= ?", string(core.DayOf(from)))
	}
	if !to.IsZero() {
		f.add("t.date <= ?", string(core.DayOf(to)))
	}
}

func (f *filter) sign(s query.Sign) {
	switch s {
	case query.SignPositive:
		f.add("t.amount > 0")
	case query.SignNegative:
		f.add("t.amount < 0")
	}
}

var columns = map[query.Field]string{
	query.FieldAccount:  "t.account",
	query.FieldPayee:    "t.payee",
	query.FieldCategory: "t.category",
}

func (f *filter) where(w query.Where) error {
	if len(w.Conditions) == 0 {
		return nil
	}
	if err := w.Validate(); err != nil {
		return err
	}
	parts := make([]string, 0, len(w.Conditions))
	for _, c := range w.Conditions {
		col := columns[c.Field]
		switch c.Op {
		case query.OpIs:
			parts = append(parts, col+" = ?")
			f.args = append(f.args, c.Value)
		case query.OpIsNot:
			parts = append(parts, "("+col+" IS NULL OR "+col+" != ?)")
			f.args = append(f.args, c.Value)
		case query.OpOneOf:
			parts = append(parts, col+" IN ("+strings.TrimSuffix(strings.Repeat("?,", len(c.Values)), ",")+")")
			for _, v := range c.Values {
				f.args = append(f.args, v)
			}
		}
	}
	joiner := " AND "
	if w.Conjunction == query.Or {
		joiner = " OR "
	}
	f.clauses = append(f.clauses, "("+strings.Join(parts, joiner)+")")
	return nil
}

func (f *filter) sql() string {
	return " WHERE " + strings.Join(f.clauses, " AND ")
}

func (r *SQLiteRepository) Flows(ctx context.Context, q query.FlowQuery) ([]core.FlowEntry, error) {
	f := baseFilter()
	f.dateRange(q.From, q.To)
	f.sign(q.Sign)
	if err := f.where(q.Where); err != nil {
		return nil, err
	}
	if q.ExcludeStartingBalances {
		f.add("(c.name IS NULL OR c.name != ?)", query.StartingBalancesCategory)
	}

	bucket := "t.date"
	if q.Concise {
		bucket = "substr(t.date, 1, 7)"
	}
	stmt := "SELECT " + bucket + " AS bucket, COALESCE(p.transfer_acct, '') AS transfer, SUM(t.amount)" +
		transactionsFrom + f.sql() + " GROUP BY bucket, transfer ORDER BY bucket, transfer"

	rows, err := r.db.QueryContext(ctx, stmt, f.args...)
	if err != nil {
		return nil, fmt.Errorf("query flows: %w", err)
	}
	defer rows.Close()

	var out []core.FlowEntry
	for rows.Next() {
		var e core.FlowEntry
		var b string
		if err := rows.Scan(&b, &e.TransferAccount, &e.Amount); err != nil {
			return nil, fmt.Errorf("scan flow: %w", err)
		}
		e.Date = core.Bucket(b)
		e.IsTransfer = e.TransferAccount != ""
		out = append(out, e)
	}
	return out, rows.Err()
}

func (r *SQLiteRepository) Sum(ctx context.Context, q query.SumQuery) (int64, error) {
	f := baseFilter()
	f.dateRange(q.From, q.To)
	f.sign(q.Sign)
	if q.ExcludeTransfers {
		f.add("p.transfer_acct IS NULL")
	}
	if err := f.where(q.Where); err != nil {
		return 0, err
	}

	var total int64
	err := r.db.QueryRowContext(ctx, "SELECT COALESCE(SUM(t.amount), 0)"+transactionsFrom+f.sql(), f.args...).Scan(&total)
	if err != nil {
		return 0, fmt.Errorf("query sum: %w", err)
	}
	return total, nil
}

func (r *SQLiteRepository) Totals(ctx context.Context, q query.TotalsQuery) ([]core.SplitTotal, error) {
	if err := q.GroupBy.Validate(); err != nil {
		return nil, err
	}
	f := baseFilter()
	f.dateRange(q.From, q.To)
	f.add("p.transfer_acct IS NULL")
	if err := f.where(q.Where); err != nil {
		return nil, err
	}

	var key string
	switch q.GroupBy {
	case query.GroupByCategory:
		key = "COALESCE(g.id, ''), COALESCE(g.name, ?), COALESCE(c.id, ''), COALESCE(c.name, ?)"
	case query.GroupByGroup:
		key = "'', '', COALESCE(g.id, ''), COALESCE(g.name, ?)"
	case query.GroupByPayee:
		key = "'', '', COALESCE(p.id, ''), COALESCE(p.name, ?)"
	case query.GroupByAccount:
		key = "'', '', a.id, a.name"
	}
	var args []any
	for range strings.Count(key, "?") {
		args = append(args, query.UncategorizedName)
	}
	args = append(args, f.args...)

	stmt := "SELECT " + key + `,
	  SUM(CASE WHEN t.amount > 0 THEN t.amount ELSE 0 END),
	  SUM(CASE WHEN t.amount < 0 THEN t.amount ELSE 0 END)` +
		transactionsFrom + f.sql() + " GROUP BY 1, 2, 3, 4"

	rows, err := r.db.QueryContext(ctx, stmt, args...)
	if err != nil {
		return nil, fmt.Errorf("query totals: %w", err)
	}
	defer rows.Close()

	var out []query.TotalsRow
	for rows.Next() {
		var tr query.TotalsRow
		if err := rows.Scan(&tr.ParentID, &tr.ParentName, &tr.ID, &tr.Name, &tr.Assets, &tr.Debts); err != nil {
			return nil, fmt.Errorf("scan totals: %w", err)
		}
		out = append(out, tr)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return query.BuildTotals(q.GroupBy, out), nil
}

func (r *SQLiteRepository) Schedules(ctx context.Context) ([]core.Schedule, error) {
	rows, err := r.db.QueryContext(ctx, `
SELECT s.id, s.name, s.account, COALESCE(s.payee, ''), s.amount_op, s.amount, s.amount2,
       s.date, s.start_date, s.frequency, s.recur_interval, s.end_date, s.cron,
       COALESCE(p.transfer_acct, ''), a.offbudget, COALESCE(ta.offbudget, 0)
FROM schedules s
JOIN accounts a ON a.id = s.account
LEFT JOIN payees p ON p.id = s.payee
LEFT JOIN accounts ta ON ta.id = p.transfer_acct
WHERE s.tombstone = 0 AND s.completed = 0
ORDER BY s.id`)
	if err != nil {
		return nil, fmt.Errorf("query schedules: %w", err)
	}
	defer rows.Close()

	var out []core.Schedule
	for rows.Next() {
		var (
			s                core.Schedule
			op               string
			date, start, end sql.NullString
			frequency        sql.NullString
			interval         int
			cronExpr         string
		)
		if err := rows.Scan(&s.ID, &s.Name, &s.Account, &s.Payee, &op, &s.Amount.Num1, &s.Amount.Num2,
			&date, &start, &frequency, &interval, &end, &cronExpr,
			&s.TransferAccount, &s.AccountOffBudget, &s.PayeeOffBudget); err != nil {
			return nil, fmt.Errorf("scan schedule: %w", err)
		}
		s.Amount.Op = core.AmountOp(op)

		if start.Valid {
			rec := &core.Recurrence{Every: core.RepetitionTypes(frequency.String), Interval: interval, Cron: cronExpr}
			if rec.Start, err = parseDate(start); err != nil {
				return nil, err
			}
			if rec.End, err = parseDate(end); err != nil {
				return nil, err
			}
			s.Recurrence = rec
		} else if s.Date, err = parseDate(date); err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

func (r *SQLiteRepository) EarliestTransaction(ctx context.Context) (time.Time, bool, error) {
	var d sql.NullString
	if err := r.db.QueryRowContext(ctx, `SELECT MIN(date) FROM transactions WHERE tombstone = 0`).Scan(&d); err != nil {
		return time.Time{}, false, fmt.Errorf("query earliest transaction: %w", err)
	}
	if !d.Valid {
		return time.Time{}, false, nil
	}
	date, err := parseDate(d)
	if err != nil {
		return time.Time{}, false, err
	}
	return date.Time, true, nil
}

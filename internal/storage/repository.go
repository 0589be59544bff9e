package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"cashflow/internal/core"

	_ "modernc.org/sqlite"
)

var ErrNotFound = errors.New("not found")

type SQLiteRepository struct {
	db   *sql.DB
	path string
}

func NewSQLiteRepository(dbPath string) (*SQLiteRepository, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if err := RunMigrations(dbPath); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &SQLiteRepository{db: db, path: dbPath}, nil
}

func (r *SQLiteRepository) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

// Ping checks the connection and that the schema is clean.
func (r *SQLiteRepository) Ping(ctx context.Context) error {
	if err := r.db.PingContext(ctx); err != nil {
		return fmt.Errorf("ping database: %w", err)
	}
	_, dirty, err := SchemaVersion(r.path)
	if err != nil {
		return err
	}
	if dirty {
		return errors.New("database schema is dirty")
	}
	return nil
}

func (r *SQLiteRepository) PutAccount(ctx context.Context, a core.Account) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO accounts (id, name, offbudget) VALUES (?, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET name = excluded.name, offbudget = excluded.offbudget, tombstone = 0`,
		a.ID, a.Name, a.OffBudget)
	if err != nil {
		return fmt.Errorf("put account %s: %w", a.ID, err)
	}
	return nil
}

func (r *SQLiteRepository) PutPayee(ctx context.Context, p core.Payee) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO payees (id, name, transfer_acct) VALUES (?, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET name = excluded.name, transfer_acct = excluded.transfer_acct, tombstone = 0`,
		p.ID, p.Name, nullString(p.TransferAccount))
	if err != nil {
		return fmt.Errorf("put payee %s: %w", p.ID, err)
	}
	return nil
}

func (r *SQLiteRepository) PutCategoryGroup(ctx context.Context, g core.CategoryGroup) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO category_groups (id, name, is_income) VALUES (?, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET name = excluded.name, is_income = excluded.is_income, tombstone = 0`,
		g.ID, g.Name, g.IsIncome)
	if err != nil {
		return fmt.Errorf("put category group %s: %w", g.ID, err)
	}
	return nil
}

func (r *SQLiteRepository) PutCategory(ctx context.Context, c core.Category) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO categories (id, name, cat_group) VALUES (?, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET name = excluded.name, cat_group = excluded.cat_group, tombstone = 0`,
		c.ID, c.Name, nullString(c.Group))
	if err != nil {
		return fmt.Errorf("put category %s: %w", c.ID, err)
	}
	return nil
}

func (r *SQLiteRepository) PutTransaction(ctx context.Context, t core.Transaction) error {
	if err := t.Validate(); err != nil {
		return fmt.Errorf("transaction %s: %w", t.ID, err)
	}
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO transactions (id, date, account, payee, category, amount, notes) VALUES (?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET date = excluded.date, account = excluded.account, payee = excluded.payee,
		   category = excluded.category, amount = excluded.amount, notes = excluded.notes, tombstone = 0`,
		t.ID, t.Date.String(), t.Account, nullString(t.Payee), nullString(t.Category), t.Amount.Cents, t.Notes)
	if err != nil {
		return fmt.Errorf("put transaction %s: %w", t.ID, err)
	}
	return nil
}

// PutSchedule stores a schedule. Off-budget and transfer flags are derived
// from accounts and payees on read.
func (r *SQLiteRepository) PutSchedule(ctx context.Context, s core.Schedule) error {
	if err := s.Validate(); err != nil {
		return fmt.Errorf("schedule %s: %w", s.ID, err)
	}
	op := s.Amount.Op
	if op == "" {
		op = core.AmountIs
	}

	var (
		date, start, end sql.NullString
		frequency        sql.NullString
		interval         = 1
		cronExpr         string
	)
	if rec := s.Recurrence; rec != nil {
		start = nullString(rec.Start.String())
		if !rec.End.IsEmpty() {
			end = nullString(rec.End.String())
		}
		frequency = nullString(string(rec.Every))
		if rec.Interval > 0 {
			interval = rec.Interval
		}
		cronExpr = rec.Cron
	} else {
		date = nullString(s.Date.String())
	}

	_, err := r.db.ExecContext(ctx,
		`INSERT INTO schedules (id, name, account, payee, amount_op, amount, amount2, date, start_date, frequency, recur_interval, end_date, cron)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET name = excluded.name, account = excluded.account, payee = excluded.payee,
		   amount_op = excluded.amount_op, amount = excluded.amount, amount2 = excluded.amount2, date = excluded.date,
		   start_date = excluded.start_date, frequency = excluded.frequency, recur_interval = excluded.recur_interval,
		   end_date = excluded.end_date, cron = excluded.cron, tombstone = 0`,
		s.ID, s.Name, s.Account, nullString(s.Payee), string(op), s.Amount.Num1, s.Amount.Num2,
		date, start, frequency, interval, end, cronExpr)
	if err != nil {
		return fmt.Errorf("put schedule %s: %w", s.ID, err)
	}
	return nil
}

// DeleteTransaction tombstones a transaction.
func (r *SQLiteRepository) DeleteTransaction(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `UPDATE transactions SET tombstone = 1 WHERE id = ? AND tombstone = 0`, id)
	if err != nil {
		return fmt.Errorf("delete transaction %s: %w", id, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("transaction %s: %w", id, ErrNotFound)
	}
	return nil
}

// CompleteSchedule marks a schedule as finished so it no longer projects.
func (r *SQLiteRepository) CompleteSchedule(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `UPDATE schedules SET completed = 1 WHERE id = ? AND tombstone = 0`, id)
	if err != nil {
		return fmt.Errorf("complete schedule %s: %w", id, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("schedule %s: %w", id, ErrNotFound)
	}
	return nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func parseDate(s sql.NullString) (core.Date, error) {
	if !s.Valid || s.String == "" {
		return core.Date{}, nil
	}
	t, err := time.Parse(core.DayLayout, s.String)
	if err != nil {
		return core.Date{}, fmt.Errorf("parse stored date %q: %w", s.String, err)
	}
	return core.DateOf(t), nil
}

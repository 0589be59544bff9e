// Package seed loads YAML fixtures of accounts, payees, categories,
// transactions and schedules into a store.
package seed

import (
	"context"
	"fmt"
	"os"

	"github.com/google/uuid"
	"gopkg.in/yaml.v3"

	"cashflow/internal/core"
)

// Writer is the write side of a store.
type Writer interface {
	PutAccount(ctx context.Context, a core.Account) error
	PutPayee(ctx context.Context, p core.Payee) error
	PutCategoryGroup(ctx context.Context, g core.CategoryGroup) error
	PutCategory(ctx context.Context, c core.Category) error
	PutTransaction(ctx context.Context, t core.Transaction) error
	PutSchedule(ctx context.Context, s core.Schedule) error
}

type Fixture struct {
	Accounts     []Account     `yaml:"accounts"`
	Payees       []Payee       `yaml:"payees"`
	Groups       []Group       `yaml:"categoryGroups"`
	Transactions []Transaction `yaml:"transactions"`
	Schedules    []Schedule    `yaml:"schedules"`
}

type Account struct {
	ID        string `yaml:"id"`
	Name      string `yaml:"name"`
	OffBudget bool   `yaml:"offBudget"`
}

// Payee refers to its transfer account by id.
type Payee struct {
	ID         string `yaml:"id"`
	Name       string `yaml:"name"`
	TransferTo string `yaml:"transferTo"`
}

type Group struct {
	ID         string     `yaml:"id"`
	Name       string     `yaml:"name"`
	IsIncome   bool       `yaml:"isIncome"`
	Categories []Category `yaml:"categories"`
}

type Category struct {
	ID   string `yaml:"id"`
	Name string `yaml:"name"`
}

// Transaction amounts are decimal strings in major units, e.g. "-12.50".
type Transaction struct {
	ID       string `yaml:"id"`
	Date     string `yaml:"date"`
	Account  string `yaml:"account"`
	Payee    string `yaml:"payee"`
	Category string `yaml:"category"`
	Amount   string `yaml:"amount"`
	Notes    string `yaml:"notes"`
}

type Schedule struct {
	ID      string `yaml:"id"`
	Name    string `yaml:"name"`
	Account string `yaml:"account"`
	Payee   string `yaml:"payee"`
	// AmountOp is is, isapprox or isbetween; isbetween uses Amount and Amount2.
	AmountOp string `yaml:"amountOp"`
	Amount   string `yaml:"amount"`
	Amount2  string `yaml:"amount2"`
	// Date makes the schedule one-off; otherwise Start and Frequency or Cron apply.
	Date      string `yaml:"date"`
	Start     string `yaml:"start"`
	Frequency string `yaml:"frequency"`
	Interval  int    `yaml:"interval"`
	End       string `yaml:"end"`
	Cron      string `yaml:"cron"`
}

// Load reads a fixture file.
func Load(path string) (Fixture, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return Fixture{}, fmt.Errorf("read seed file: %w", err)
	}
	return Parse(b)
}

func Parse(b []byte) (Fixture, error) {
	var f Fixture
	if err := yaml.Unmarshal(b, &f); err != nil {
		return Fixture{}, fmt.Errorf("parse seed yaml: %w", err)
	}
	return f, nil
}

// Stats counts what Apply wrote.
type Stats struct {
	Accounts     int
	Payees       int
	Categories   int
	Transactions int
	Schedules    int
}

// Apply writes the fixture in dependency order. Entries without an id get a
// random one.
func Apply(ctx context.Context, w Writer, f Fixture) (Stats, error) {
	var st Stats
	for _, a := range f.Accounts {
		acct := core.Account{ID: idOr(a.ID), Name: a.Name, OffBudget: a.OffBudget}
		if err := acct.Validate(); err != nil {
			return st, fmt.Errorf("account %q: %w", a.ID, err)
		}
		if err := w.PutAccount(ctx, acct); err != nil {
			return st, err
		}
		st.Accounts++
	}
	for _, p := range f.Payees {
		if err := w.PutPayee(ctx, core.Payee{ID: idOr(p.ID), Name: p.Name, TransferAccount: p.TransferTo}); err != nil {
			return st, err
		}
		st.Payees++
	}
	for _, g := range f.Groups {
		gid := idOr(g.ID)
		if err := w.PutCategoryGroup(ctx, core.CategoryGroup{ID: gid, Name: g.Name, IsIncome: g.IsIncome}); err != nil {
			return st, err
		}
		for _, c := range g.Categories {
			if err := w.PutCategory(ctx, core.Category{ID: idOr(c.ID), Name: c.Name, Group: gid}); err != nil {
				return st, err
			}
			st.Categories++
		}
	}
	for i, t := range f.Transactions {
		tx, err := t.toCore()
		if err != nil {
			return st, fmt.Errorf("transaction %d: %w", i, err)
		}
		if err := w.PutTransaction(ctx, tx); err != nil {
			return st, err
		}
		st.Transactions++
	}
	for i, s := range f.Schedules {
		sc, err := s.toCore()
		if err != nil {
			return st, fmt.Errorf("schedule %d (%s): %w", i, s.Name, err)
		}
		if err := w.PutSchedule(ctx, sc); err != nil {
			return st, err
		}
		st.Schedules++
	}
	return st, nil
}

func (t Transaction) toCore() (core.Transaction, error) {
	d, err := parseDate(t.Date)
	if err != nil {
		return core.Transaction{}, err
	}
	cents, err := core.ParseDecimalToCents(t.Amount)
	if err != nil {
		return core.Transaction{}, fmt.Errorf("amount %q: %w", t.Amount, err)
	}
	return core.Transaction{
		ID:       idOr(t.ID),
		Date:     d,
		Account:  t.Account,
		Payee:    t.Payee,
		Category: t.Category,
		Amount:   core.Money{Cents: cents},
		Notes:    t.Notes,
	}, nil
}

func (s Schedule) toCore() (core.Schedule, error) {
	sc := core.Schedule{
		ID:      idOr(s.ID),
		Name:    s.Name,
		Account: s.Account,
		Payee:   s.Payee,
		Amount:  core.ScheduleAmount{Op: core.AmountOp(s.AmountOp)},
	}
	if sc.Amount.Op == "" {
		sc.Amount.Op = core.AmountIs
	}

	var err error
	if sc.Amount.Num1, err = core.ParseDecimalToCents(s.Amount); err != nil {
		return core.Schedule{}, fmt.Errorf("amount %q: %w", s.Amount, err)
	}
	if sc.Amount.Op == core.AmountBetween {
		if sc.Amount.Num2, err = core.ParseDecimalToCents(s.Amount2); err != nil {
			return core.Schedule{}, fmt.Errorf("amount2 %q: %w", s.Amount2, err)
		}
	}

	if s.Date != "" {
		if sc.Date, err = parseDate(s.Date); err != nil {
			return core.Schedule{}, err
		}
		return sc, nil
	}

	rec := &core.Recurrence{Every: core.RepetitionTypes(s.Frequency), Interval: s.Interval, Cron: s.Cron}
	if rec.Start, err = parseDate(s.Start); err != nil {
		return core.Schedule{}, err
	}
	if s.End != "" {
		if rec.End, err = parseDate(s.End); err != nil {
			return core.Schedule{}, err
		}
	}
	sc.Recurrence = rec
	return sc, nil
}

func parseDate(s string) (core.Date, error) {
	t, err := core.ParseDay(s)
	if err != nil {
		return core.Date{}, err
	}
	return core.DateOf(t), nil
}

func idOr(id string) string {
	if id != "" {
		return id
	}
	return uuid.NewString()
}

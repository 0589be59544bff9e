// Package memory is an in-process implementation of the query ports with
// the same semantics as the SQLite repository.
package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"cashflow/internal/core"
	"cashflow/internal/query"
	"cashflow/internal/storage"
)

type Store struct {
	mu           sync.RWMutex
	accounts     map[string]core.Account
	payees       map[string]core.Payee
	groups       map[string]core.CategoryGroup
	categories   map[string]core.Category
	transactions map[string]core.Transaction
	schedules    map[string]core.Schedule
	completed    map[string]bool
}

func New() *Store {
	return &Store{
		accounts:     map[string]core.Account{},
		payees:       map[string]core.Payee{},
		groups:       map[string]core.CategoryGroup{},
		categories:   map[string]core.Category{},
		transactions: map[string]core.Transaction{},
		schedules:    map[string]core.Schedule{},
		completed:    map[string]bool{},
	}
}

func (s *Store) Ping(context.Context) error { return nil }

func (s *Store) PutAccount(_ context.Context, a core.Account) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.accounts[a.ID] = a
	return nil
}

func (s *Store) PutPayee(_ context.Context, p core.Payee) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.payees[p.ID] = p
	return nil
}

func (s *Store) PutCategoryGroup(_ context.Context, g core.CategoryGroup) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.groups[g.ID] = g
	return nil
}

func (s *Store) PutCategory(_ context.Context, c core.Category) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.categories[c.ID] = c
	return nil
}

func (s *Store) PutTransaction(_ context.Context, t core.Transaction) error {
	if err := t.Validate(); err != nil {
		return fmt.Errorf("transaction %s: %w", t.ID, err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.transactions[t.ID] = t
	return nil
}

func (s *Store) PutSchedule(_ context.Context, sc core.Schedule) error {
	if err := sc.Validate(); err != nil {
		return fmt.Errorf("schedule %s: %w", sc.ID, err)
	}
	if sc.Amount.Op == "" {
		sc.Amount.Op = core.AmountIs
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.schedules[sc.ID] = sc
	delete(s.completed, sc.ID)
	return nil
}

func (s *Store) DeleteTransaction(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.transactions[id]; !ok {
		return fmt.Errorf("transaction %s: %w", id, storage.ErrNotFound)
	}
	delete(s.transactions, id)
	return nil
}

func (s *Store) CompleteSchedule(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.schedules[id]; !ok {
		return fmt.Errorf("schedule %s: %w", id, storage.ErrNotFound)
	}
	s.completed[id] = true
	return nil
}

// row is a live, on-budget transaction with its joins resolved.
type row struct {
	core.Transaction
	transferAcct string
	categoryName string
}

// rows returns the on-budget transactions in [from, to] matching w.
// Callers hold the read lock.
func (s *Store) rows(from, to time.Time, sign query.Sign, w query.Where) ([]row, error) {
	if err := w.Validate(); err != nil {
		return nil, err
	}
	var out []row
	for _, t := range s.transactions {
		acct, ok := s.accounts[t.Account]
		if !ok || acct.OffBudget {
			continue
		}
		if !query.InRange(t.Date.Time, from, to) || !sign.MatchSign(t.Amount.Cents) {
			continue
		}
		if !w.Matches(query.Subject{Account: t.Account, Payee: t.Payee, Category: t.Category}) {
			continue
		}
		out = append(out, row{
			Transaction:  t,
			transferAcct: s.payees[t.Payee].TransferAccount,
			categoryName: s.categories[t.Category].Name,
		})
	}
	return out, nil
}

func (s *Store) Flows(_ context.Context, q query.FlowQuery) ([]core.FlowEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.rows(q.From, q.To, q.Sign, q.Where)
	if err != nil {
		return nil, err
	}

	type key struct {
		bucket   core.Bucket
		transfer string
	}
	sums := map[key]int64{}
	for _, r := range rows {
		if q.ExcludeStartingBalances && r.categoryName == query.StartingBalancesCategory {
			continue
		}
		sums[key{core.BucketOf(r.Date.Time, q.Concise), r.transferAcct}] += r.Amount.Cents
	}

	out := make([]core.FlowEntry, 0, len(sums))
	for k, v := range sums {
		out = append(out, core.FlowEntry{Date: k.bucket, IsTransfer: k.transfer != "", TransferAccount: k.transfer, Amount: v})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Date != out[j].Date {
			return out[i].Date < out[j].Date
		}
		return out[i].TransferAccount < out[j].TransferAccount
	})
	return out, nil
}

func (s *Store) Sum(_ context.Context, q query.SumQuery) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.rows(q.From, q.To, q.Sign, q.Where)
	if err != nil {
		return 0, err
	}
	var total int64
	for _, r := range rows {
		if q.ExcludeTransfers && r.transferAcct != "" {
			continue
		}
		total += r.Amount.Cents
	}
	return total, nil
}

func (s *Store) Totals(_ context.Context, q query.TotalsQuery) ([]core.SplitTotal, error) {
	if err := q.GroupBy.Validate(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.rows(q.From, q.To, query.SignAny, q.Where)
	if err != nil {
		return nil, err
	}

	type key struct{ parent, id string }
	acc := map[key]*query.TotalsRow{}
	var order []key
	for _, r := range rows {
		if r.transferAcct != "" {
			continue
		}
		tr := s.totalsKey(q.GroupBy, r.Transaction)
		k := key{tr.ParentID, tr.ID}
		cur, ok := acc[k]
		if !ok {
			cur = &tr
			acc[k] = cur
			order = append(order, k)
		}
		if r.Amount.Cents > 0 {
			cur.Assets += r.Amount.Cents
		} else {
			cur.Debts += r.Amount.Cents
		}
	}

	out := make([]query.TotalsRow, 0, len(order))
	for _, k := range order {
		out = append(out, *acc[k])
	}
	return query.BuildTotals(q.GroupBy, out), nil
}

func (s *Store) totalsKey(g query.GroupBy, t core.Transaction) query.TotalsRow {
	named := func(id, name string) (string, string) {
		if name == "" {
			return id, query.UncategorizedName
		}
		return id, name
	}
	var tr query.TotalsRow
	switch g {
	case query.GroupByCategory:
		cat := s.categories[t.Category]
		tr.ParentID, tr.ParentName = named(cat.Group, s.groups[cat.Group].Name)
		tr.ID, tr.Name = named(t.Category, cat.Name)
	case query.GroupByGroup:
		cat := s.categories[t.Category]
		tr.ID, tr.Name = named(cat.Group, s.groups[cat.Group].Name)
	case query.GroupByPayee:
		tr.ID, tr.Name = named(t.Payee, s.payees[t.Payee].Name)
	case query.GroupByAccount:
		tr.ID, tr.Name = t.Account, s.accounts[t.Account].Name
	}
	return tr
}

func (s *Store) Schedules(_ context.Context) ([]core.Schedule, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]core.Schedule, 0, len(s.schedules))
	for id, sc := range s.schedules {
		acct, ok := s.accounts[sc.Account]
		if !ok || s.completed[id] {
			continue
		}
		sc.AccountOffBudget = acct.OffBudget
		sc.TransferAccount = s.payees[sc.Payee].TransferAccount
		sc.PayeeOffBudget = sc.TransferAccount != "" && s.accounts[sc.TransferAccount].OffBudget
		if sc.Recurrence != nil {
			rec := *sc.Recurrence
			sc.Recurrence = &rec
		}
		out = append(out, sc)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *Store) EarliestTransaction(_ context.Context) (time.Time, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var earliest time.Time
	for _, t := range s.transactions {
		if earliest.IsZero() || t.Date.Before(earliest) {
			earliest = t.Date.Time
		}
	}
	return earliest, !earliest.IsZero(), nil
}

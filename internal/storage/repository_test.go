package storage

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"cashflow/internal/core"
	"cashflow/internal/query"
)

func newTestRepo(t *testing.T) *SQLiteRepository {
	t.Helper()
	repo, err := NewSQLiteRepository(filepath.Join(t.TempDir(), "cashflow.db"))
	if err != nil {
		t.Fatalf("open repository: %v", err)
	}
	t.Cleanup(func() { repo.Close() })
	return repo
}

func seedRepo(t *testing.T, repo *SQLiteRepository) {
	t.Helper()
	ctx := context.Background()
	must := func(err error) {
		t.Helper()
		if err != nil {
			t.Fatal(err)
		}
	}
	must(repo.PutAccount(ctx, core.Account{ID: "checking", Name: "Checking"}))
	must(repo.PutAccount(ctx, core.Account{ID: "savings", Name: "Savings"}))
	must(repo.PutAccount(ctx, core.Account{ID: "mortgage", Name: "Mortgage", OffBudget: true}))
	must(repo.PutPayee(ctx, core.Payee{ID: "employer", Name: "Employer"}))
	must(repo.PutPayee(ctx, core.Payee{ID: "grocer", Name: "Grocer"}))
	must(repo.PutPayee(ctx, core.Payee{ID: "to-savings", Name: "Transfer: Savings", TransferAccount: "savings"}))
	must(repo.PutPayee(ctx, core.Payee{ID: "to-mortgage", Name: "Transfer: Mortgage", TransferAccount: "mortgage"}))
	must(repo.PutCategoryGroup(ctx, core.CategoryGroup{ID: "g-income", Name: "Income", IsIncome: true}))
	must(repo.PutCategoryGroup(ctx, core.CategoryGroup{ID: "g-living", Name: "Living"}))
	must(repo.PutCategory(ctx, core.Category{ID: "salary", Name: "Salary", Group: "g-income"}))
	must(repo.PutCategory(ctx, core.Category{ID: "food", Name: "Food", Group: "g-living"}))
	must(repo.PutCategory(ctx, core.Category{ID: "opening", Name: query.StartingBalancesCategory, Group: "g-income"}))

	txs := []core.Transaction{
		{ID: "t0", Date: core.NewDate(2024, 1, 1), Account: "checking", Category: "opening", Amount: core.Money{Cents: 10000}},
		{ID: "t1", Date: core.NewDate(2024, 1, 5), Account: "checking", Payee: "employer", Category: "salary", Amount: core.Money{Cents: 300000}},
		{ID: "t2", Date: core.NewDate(2024, 1, 5), Account: "checking", Payee: "grocer", Category: "food", Amount: core.Money{Cents: -4500}},
		{ID: "t3", Date: core.NewDate(2024, 1, 20), Account: "checking", Payee: "grocer", Category: "food", Amount: core.Money{Cents: -5500}},
		{ID: "t4", Date: core.NewDate(2024, 2, 1), Account: "checking", Payee: "to-savings", Amount: core.Money{Cents: -50000}},
		{ID: "t5", Date: core.NewDate(2024, 2, 1), Account: "savings", Payee: "to-savings", Amount: core.Money{Cents: 50000}},
		{ID: "t6", Date: core.NewDate(2024, 2, 3), Account: "mortgage", Payee: "grocer", Amount: core.Money{Cents: -99999}},
		{ID: "t7", Date: core.NewDate(2024, 2, 9), Account: "checking", Payee: "grocer", Category: "food", Amount: core.Money{Cents: -1000}},
	}
	for _, tx := range txs {
		must(repo.PutTransaction(ctx, tx))
	}
	must(repo.DeleteTransaction(ctx, "t7"))
}

func TestSQLiteRepository_Flows(t *testing.T) {
	repo := newTestRepo(t)
	seedRepo(t, repo)
	ctx := context.Background()

	t.Run("month buckets split by sign", func(t *testing.T) {
		got, err := repo.Flows(ctx, query.FlowQuery{Concise: true, Sign: query.SignNegative})
		if err != nil {
			t.Fatal(err)
		}
		want := []core.FlowEntry{
			{Date: "2024-01", Amount: -10000},
			{Date: "2024-02", IsTransfer: true, TransferAccount: "savings", Amount: -50000},
		}
		if len(got) != len(want) {
			t.Fatalf("got %+v, want %+v", got, want)
		}
		for i := range want {
			if got[i] != want[i] {
				t.Fatalf("row %d = %+v, want %+v", i, got[i], want[i])
			}
		}
	})

	t.Run("day buckets with condition and date range", func(t *testing.T) {
		got, err := repo.Flows(ctx, query.FlowQuery{
			From:  core.NewDate(2024, 1, 2).Time,
			To:    core.NewDate(2024, 1, 31).Time,
			Where: query.Where{Conditions: []query.Condition{{Field: query.FieldPayee, Op: query.OpIs, Value: "grocer"}}},
		})
		if err != nil {
			t.Fatal(err)
		}
		if len(got) != 2 || got[0].Date != "2024-01-05" || got[1].Amount != -5500 {
			t.Fatalf("got %+v", got)
		}
	})

	t.Run("starting balances excluded on request", func(t *testing.T) {
		got, err := repo.Flows(ctx, query.FlowQuery{Concise: true, Sign: query.SignPositive, ExcludeStartingBalances: true})
		if err != nil {
			t.Fatal(err)
		}
		var jan int64
		for _, e := range got {
			if e.Date == "2024-01" && !e.IsTransfer {
				jan += e.Amount
			}
		}
		if jan != 300000 {
			t.Fatalf("january income = %d, want 300000", jan)
		}
	})
}

func TestSQLiteRepository_Sum(t *testing.T) {
	repo := newTestRepo(t)
	seedRepo(t, repo)
	ctx := context.Background()

	got, err := repo.Sum(ctx, query.SumQuery{To: core.NewDate(2024, 1, 31).Time})
	if err != nil {
		t.Fatal(err)
	}
	if got != 10000+300000-4500-5500 {
		t.Fatalf("sum = %d", got)
	}

	got, err = repo.Sum(ctx, query.SumQuery{Sign: query.SignNegative, ExcludeTransfers: true})
	if err != nil {
		t.Fatal(err)
	}
	if got != -10000 {
		t.Fatalf("expense sum = %d, want -10000", got)
	}

	_, err = repo.Sum(ctx, query.SumQuery{Where: query.Where{Conditions: []query.Condition{{Field: "notes", Op: query.OpIs, Value: "x"}}}})
	if !errors.Is(err, query.ErrInvalidCondition) {
		t.Fatalf("expected ErrInvalidCondition, got %v", err)
	}
}

func TestSQLiteRepository_Totals(t *testing.T) {
	repo := newTestRepo(t)
	seedRepo(t, repo)

	got, err := repo.Totals(context.Background(), query.TotalsQuery{GroupBy: query.GroupByCategory})
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 2 || got[0].Name != "Income" || got[1].Name != "Living" {
		t.Fatalf("groups = %+v", got)
	}
	living := got[1]
	if living.TotalDebts != -10000 || len(living.Categories) != 1 || living.Categories[0].Name != "Food" {
		t.Fatalf("living = %+v", living)
	}
	if got[0].TotalAssets != 310000 || len(got[0].Categories) != 2 {
		t.Fatalf("income = %+v", got[0])
	}

	if _, err := repo.Totals(context.Background(), query.TotalsQuery{GroupBy: "notes"}); err == nil {
		t.Fatal("expected error for unknown groupBy")
	}
}

func TestSQLiteRepository_Schedules(t *testing.T) {
	repo := newTestRepo(t)
	seedRepo(t, repo)
	ctx := context.Background()

	schedules := []core.Schedule{
		{ID: "rent", Account: "checking", Payee: "grocer", Amount: core.ScheduleAmount{Op: core.AmountIs, Num1: -120000},
			Recurrence: &core.Recurrence{Start: core.NewDate(2024, 1, 31), Every: core.Monthly, End: core.NewDate(2025, 1, 31)}},
		{ID: "save", Account: "checking", Payee: "to-savings", Amount: core.ScheduleAmount{Op: core.AmountBetween, Num1: -200, Num2: -100},
			Recurrence: &core.Recurrence{Start: core.NewDate(2024, 1, 1), Cron: "0 0 1 * *"}},
		{ID: "pay-mortgage", Account: "checking", Payee: "to-mortgage", Amount: core.ScheduleAmount{Num1: -5000}, Date: core.NewDate(2024, 6, 1)},
		{ID: "done", Account: "checking", Amount: core.ScheduleAmount{Num1: 1}, Date: core.NewDate(2024, 6, 1)},
	}
	for _, s := range schedules {
		if err := repo.PutSchedule(ctx, s); err != nil {
			t.Fatal(err)
		}
	}
	if err := repo.CompleteSchedule(ctx, "done"); err != nil {
		t.Fatal(err)
	}
	if err := repo.CompleteSchedule(ctx, "missing"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}

	got, err := repo.Schedules(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 3 {
		t.Fatalf("expected 3 active schedules, got %d", len(got))
	}
	byID := map[string]core.Schedule{}
	for _, s := range got {
		byID[s.ID] = s
	}

	rent := byID["rent"]
	if rent.Recurrence == nil || rent.Recurrence.Every != core.Monthly || rent.Recurrence.Start.String() != "2024-01-31" || rent.Recurrence.End.String() != "2025-01-31" {
		t.Fatalf("rent = %+v", rent)
	}
	save := byID["save"]
	if save.TransferAccount != "savings" || save.PayeeOffBudget || save.Amount.Op != core.AmountBetween || save.Recurrence.Cron == "" {
		t.Fatalf("save = %+v", save)
	}
	pm := byID["pay-mortgage"]
	if !pm.PayeeOffBudget || pm.Recurrence != nil || pm.Date.String() != "2024-06-01" || pm.Amount.Op != core.AmountIs {
		t.Fatalf("pay-mortgage = %+v", pm)
	}
}

func TestSQLiteRepository_EarliestTransaction(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	if _, ok, err := repo.EarliestTransaction(ctx); err != nil || ok {
		t.Fatalf("empty store: ok=%v err=%v", ok, err)
	}
	seedRepo(t, repo)
	got, ok, err := repo.EarliestTransaction(ctx)
	if err != nil || !ok {
		t.Fatalf("ok=%v err=%v", ok, err)
	}
	if !got.Equal(time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)) {
		t.Fatalf("earliest = %v", got)
	}
	if err := repo.Ping(ctx); err != nil {
		t.Fatalf("ping: %v", err)
	}
}

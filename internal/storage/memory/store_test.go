package memory

import (
	"context"
	"errors"
	"testing"

	"cashflow/internal/core"
	"cashflow/internal/query"
	"cashflow/internal/storage"
)

func seeded(t *testing.T) *Store {
	t.Helper()
	ctx := context.Background()
	s := New()
	for _, a := range []core.Account{
		{ID: "checking", Name: "Checking"},
		{ID: "savings", Name: "Savings"},
		{ID: "card", Name: "Card", OffBudget: true},
	} {
		s.PutAccount(ctx, a)
	}
	s.PutPayee(ctx, core.Payee{ID: "shop", Name: "Shop"})
	s.PutPayee(ctx, core.Payee{ID: "to-savings", Name: "Savings", TransferAccount: "savings"})
	s.PutPayee(ctx, core.Payee{ID: "to-card", Name: "Card", TransferAccount: "card"})
	s.PutCategoryGroup(ctx, core.CategoryGroup{ID: "g", Name: "Living"})
	s.PutCategory(ctx, core.Category{ID: "food", Name: "Food", Group: "g"})

	for _, tx := range []core.Transaction{
		{ID: "1", Date: core.NewDate(2024, 3, 1), Account: "checking", Payee: "shop", Category: "food", Amount: core.Money{Cents: -100}},
		{ID: "2", Date: core.NewDate(2024, 3, 2), Account: "checking", Payee: "shop", Amount: core.Money{Cents: 40}},
		{ID: "3", Date: core.NewDate(2024, 3, 2), Account: "checking", Payee: "to-savings", Amount: core.Money{Cents: -500}},
		{ID: "4", Date: core.NewDate(2024, 3, 2), Account: "card", Payee: "shop", Amount: core.Money{Cents: -999}},
	} {
		if err := s.PutTransaction(ctx, tx); err != nil {
			t.Fatal(err)
		}
	}
	return s
}

func TestStore_Flows(t *testing.T) {
	s := seeded(t)
	got, err := s.Flows(context.Background(), query.FlowQuery{Sign: query.SignNegative})
	if err != nil {
		t.Fatal(err)
	}
	want := []core.FlowEntry{
		{Date: "2024-03-01", Amount: -100},
		{Date: "2024-03-02", IsTransfer: true, TransferAccount: "savings", Amount: -500},
	}
	if len(got) != len(want) || got[0] != want[0] || got[1] != want[1] {
		t.Fatalf("got %+v, want %+v", got, want)
	}

	monthly, err := s.Flows(context.Background(), query.FlowQuery{Concise: true})
	if err != nil {
		t.Fatal(err)
	}
	if len(monthly) != 2 || monthly[0].Date != "2024-03" || monthly[0].Amount != -60 {
		t.Fatalf("monthly = %+v", monthly)
	}
}

func TestStore_SumAndTotals(t *testing.T) {
	s := seeded(t)
	ctx := context.Background()

	total, err := s.Sum(ctx, query.SumQuery{ExcludeTransfers: true})
	if err != nil || total != -60 {
		t.Fatalf("sum = %d err=%v", total, err)
	}

	totals, err := s.Totals(ctx, query.TotalsQuery{GroupBy: query.GroupByCategory})
	if err != nil {
		t.Fatal(err)
	}
	if len(totals) != 2 || totals[0].Name != "Living" || totals[1].Name != query.UncategorizedName {
		t.Fatalf("totals = %+v", totals)
	}
	if totals[1].TotalAssets != 40 || totals[0].TotalDebts != -100 {
		t.Fatalf("totals = %+v", totals)
	}
}

func TestStore_Schedules(t *testing.T) {
	s := seeded(t)
	ctx := context.Background()
	s.PutSchedule(ctx, core.Schedule{ID: "b", Account: "checking", Payee: "to-card", Amount: core.ScheduleAmount{Num1: -10}, Date: core.NewDate(2024, 4, 1)})
	s.PutSchedule(ctx, core.Schedule{ID: "a", Account: "card", Payee: "to-savings", Amount: core.ScheduleAmount{Num1: -10}, Date: core.NewDate(2024, 4, 1)})
	s.PutSchedule(ctx, core.Schedule{ID: "c", Account: "checking", Amount: core.ScheduleAmount{Num1: 5}, Date: core.NewDate(2024, 4, 1)})
	if err := s.CompleteSchedule(ctx, "c"); err != nil {
		t.Fatal(err)
	}

	got, err := s.Schedules(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 2 || got[0].ID != "a" || got[1].ID != "b" {
		t.Fatalf("got %+v", got)
	}
	if !got[0].AccountOffBudget || got[0].TransferAccount != "savings" || got[0].PayeeOffBudget {
		t.Fatalf("a = %+v", got[0])
	}
	if got[1].AccountOffBudget || !got[1].PayeeOffBudget || got[1].Amount.Op != core.AmountIs {
		t.Fatalf("b = %+v", got[1])
	}

	if err := s.CompleteSchedule(ctx, "zzz"); !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestStore_EarliestTransaction(t *testing.T) {
	if _, ok, _ := New().EarliestTransaction(context.Background()); ok {
		t.Fatal("empty store reported a transaction")
	}
	got, ok, err := seeded(t).EarliestTransaction(context.Background())
	if err != nil || !ok || core.DayOf(got) != "2024-03-01" {
		t.Fatalf("got %v ok=%v err=%v", got, ok, err)
	}
}

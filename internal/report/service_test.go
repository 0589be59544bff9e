package report

import (
	"context"
	"errors"
	"reflect"
	"sync/atomic"
	"testing"
	"time"

	"cashflow/internal/core"
	"cashflow/internal/forecast"
	"cashflow/internal/log"
	"cashflow/internal/query"
	"cashflow/internal/series"
	"cashflow/internal/storage/memory"
)

func day(y, m, d int) time.Time {
	return time.Date(y, time.Month(m), d, 0, 0, 0, 0, time.UTC)
}

// ledger seeds a household with two on-budget accounts and one off-budget
// card. History: Dec 2023 opening balance of 1000.00, then salary, rent,
// groceries and a transfer to savings over Jan-Mar 2024.
func ledger(t *testing.T) *memory.Store {
	t.Helper()
	ctx := context.Background()
	s := memory.New()

	for _, a := range []core.Account{
		{ID: "checking", Name: "Checking"},
		{ID: "savings", Name: "Savings"},
		{ID: "card", Name: "Card", OffBudget: true},
	} {
		s.PutAccount(ctx, a)
	}
	for _, p := range []core.Payee{
		{ID: "employer", Name: "Employer"},
		{ID: "landlord", Name: "Landlord"},
		{ID: "grocer", Name: "Grocer"},
		{ID: "to-savings", Name: "Savings", TransferAccount: "savings"},
		{ID: "from-checking", Name: "Checking", TransferAccount: "checking"},
		{ID: "to-card", Name: "Card", TransferAccount: "card"},
	} {
		s.PutPayee(ctx, p)
	}
	s.PutCategoryGroup(ctx, core.CategoryGroup{ID: "income", Name: "Income", IsIncome: true})
	s.PutCategoryGroup(ctx, core.CategoryGroup{ID: "living", Name: "Living"})
	for _, c := range []core.Category{
		{ID: "start", Name: query.StartingBalancesCategory, Group: "income"},
		{ID: "salary", Name: "Salary", Group: "income"},
		{ID: "rent", Name: "Rent", Group: "living"},
		{ID: "food", Name: "Food", Group: "living"},
	} {
		s.PutCategory(ctx, c)
	}

	txs := []core.Transaction{
		{ID: "open", Date: core.NewDate(2023, 12, 31), Account: "checking", Category: "start", Amount: core.Money{Cents: 100000}},

		{ID: "j1", Date: core.NewDate(2024, 1, 1), Account: "checking", Payee: "employer", Category: "salary", Amount: core.Money{Cents: 300000}},
		{ID: "j2", Date: core.NewDate(2024, 1, 3), Account: "checking", Payee: "landlord", Category: "rent", Amount: core.Money{Cents: -120000}},
		{ID: "j3", Date: core.NewDate(2024, 1, 10), Account: "checking", Payee: "grocer", Category: "food", Amount: core.Money{Cents: -30000}},
		{ID: "j4", Date: core.NewDate(2024, 1, 15), Account: "checking", Payee: "to-savings", Amount: core.Money{Cents: -50000}},
		{ID: "j5", Date: core.NewDate(2024, 1, 15), Account: "savings", Payee: "from-checking", Amount: core.Money{Cents: 50000}},

		{ID: "f1", Date: core.NewDate(2024, 2, 1), Account: "checking", Payee: "employer", Category: "salary", Amount: core.Money{Cents: 300000}},
		{ID: "f2", Date: core.NewDate(2024, 2, 3), Account: "checking", Payee: "landlord", Category: "rent", Amount: core.Money{Cents: -120000}},
		{ID: "f3", Date: core.NewDate(2024, 2, 12), Account: "checking", Payee: "grocer", Category: "food", Amount: core.Money{Cents: -10000}},

		{ID: "m1", Date: core.NewDate(2024, 3, 1), Account: "checking", Payee: "employer", Category: "salary", Amount: core.Money{Cents: 300000}},
		{ID: "c1", Date: core.NewDate(2024, 3, 5), Account: "card", Payee: "grocer", Amount: core.Money{Cents: -9999}},
	}
	for _, tx := range txs {
		if err := s.PutTransaction(ctx, tx); err != nil {
			t.Fatalf("put %s: %v", tx.ID, err)
		}
	}
	return s
}

func newTestService(q query.Querier, opts ...Option) *Service {
	return NewService(q, log.Discard(), opts...)
}

func monthly(start core.Date) *core.Recurrence {
	return &core.Recurrence{Start: start, Every: core.Monthly, Interval: 1}
}

func TestCashFlowByDate_History(t *testing.T) {
	svc := newTestService(ledger(t))
	req := CashFlowRequest{Start: day(2024, 1, 1), End: day(2024, 3, 31), Concise: true}

	rep, err := svc.CashFlowByDate(context.Background(), req)
	if err != nil {
		t.Fatal(err)
	}

	if rep.StartingBalance != 100000 {
		t.Errorf("StartingBalance = %d, want 100000", rep.StartingBalance)
	}
	wantBalances := []int64{250000, 420000, 720000}
	if len(rep.Graph.Balances) != len(wantBalances) {
		t.Fatalf("got %d balance points, want %d", len(rep.Graph.Balances), len(wantBalances))
	}
	var net int64
	for i, p := range rep.Graph.Balances {
		if p.Amount != wantBalances[i] {
			t.Errorf("balance[%d] = %d, want %d", i, p.Amount, wantBalances[i])
		}
	}
	for i := range rep.Graph.Income {
		net += rep.Graph.Income[i].Y.Shift(2).IntPart() + rep.Graph.Expenses[i].Y.Shift(2).IntPart() + rep.Graph.Transfers[i].Y.Shift(2).IntPart()
	}
	if rep.Balance != rep.StartingBalance+net {
		t.Errorf("Balance %d != starting %d + net %d", rep.Balance, rep.StartingBalance, net)
	}
	if rep.TotalIncome != 900000 || rep.TotalExpenses != -280000 || rep.TotalTransfers != 0 {
		t.Errorf("totals = %d/%d/%d", rep.TotalIncome, rep.TotalExpenses, rep.TotalTransfers)
	}
	if rep.TotalChange != 620000 {
		t.Errorf("TotalChange = %d, want 620000", rep.TotalChange)
	}
	if len(rep.Graph.FutureBalances) != 0 {
		t.Errorf("unexpected forecast points: %d", len(rep.Graph.FutureBalances))
	}
}

func TestCashFlowByDate_DayGranularityCoversEveryDay(t *testing.T) {
	svc := newTestService(ledger(t))
	req := NewCashFlowRequest(day(2024, 1, 1), day(2024, 2, 29), time.Time{}, nil, "", forecast.DefaultParams())
	if req.Concise {
		t.Fatal("60 day range should not be concise")
	}

	rep, err := svc.CashFlowByDate(context.Background(), req)
	if err != nil {
		t.Fatal(err)
	}
	if got := len(rep.Graph.Balances); got != 60 {
		t.Fatalf("got %d points, want 60", got)
	}
	for i := 1; i < len(rep.Graph.Balances); i++ {
		if rep.Graph.Balances[i].X.Sub(rep.Graph.Balances[i-1].X) != 24*time.Hour {
			t.Fatalf("gap between points %d and %d", i-1, i)
		}
	}
	if rep.Balance != 420000 {
		t.Errorf("Balance = %d, want 420000", rep.Balance)
	}
}

func TestCashFlowByDate_Conditions(t *testing.T) {
	svc := newTestService(ledger(t))
	req := CashFlowRequest{
		Start:      day(2024, 1, 1),
		End:        day(2024, 3, 31),
		Concise:    true,
		Conditions: []query.Condition{{Field: query.FieldAccount, Op: query.OpIs, Value: "savings"}},
	}

	rep, err := svc.CashFlowByDate(context.Background(), req)
	if err != nil {
		t.Fatal(err)
	}
	if rep.StartingBalance != 0 || rep.Balance != 50000 || rep.TotalTransfers != 50000 {
		t.Errorf("savings report = start %d balance %d transfers %d", rep.StartingBalance, rep.Balance, rep.TotalTransfers)
	}
}

func TestCashFlowByDate_TransactionsForecast(t *testing.T) {
	svc := newTestService(ledger(t))
	req := CashFlowRequest{
		Start:    day(2024, 1, 1),
		End:      day(2024, 3, 31),
		Forecast: day(2024, 5, 31),
		Concise:  true,
		Params: forecast.Params{
			Source:        forecast.SourceTransactions,
			Method:        forecast.MethodLastMonths,
			AverageMonths: 2,
		},
	}

	rep, err := svc.CashFlowByDate(context.Background(), req)
	if err != nil {
		t.Fatal(err)
	}

	// Jan and Feb average 3000.00 in and 1400.00 out.
	future := rep.Graph.FutureBalances
	if len(future) != 2 {
		t.Fatalf("got %d forecast points, want 2", len(future))
	}
	if future[0].Date != "2024-04" || future[1].Date != "2024-05" {
		t.Errorf("forecast dates = %s, %s", future[0].Date, future[1].Date)
	}
	if future[0].Amount != rep.Balance+160000 {
		t.Errorf("first forecast balance %d, want last balance %d + 160000", future[0].Amount, rep.Balance)
	}
	if rep.ProjectedBalance != 1040000 {
		t.Errorf("ProjectedBalance = %d, want 1040000", rep.ProjectedBalance)
	}
	if rep.TotalChange != 620000 {
		t.Errorf("TotalChange = %d, want historical change 620000", rep.TotalChange)
	}
}

func TestCashFlowByDate_ScheduleForecast(t *testing.T) {
	store := ledger(t)
	ctx := context.Background()
	for _, sc := range []core.Schedule{
		{ID: "rent", Account: "checking", Payee: "landlord", Amount: core.ScheduleAmount{Op: core.AmountIs, Num1: -120000}, Recurrence: monthly(core.NewDate(2024, 1, 3))},
		{ID: "save", Account: "checking", Payee: "to-savings", Amount: core.ScheduleAmount{Op: core.AmountIs, Num1: -20000}, Recurrence: monthly(core.NewDate(2024, 1, 20))},
		{ID: "card", Account: "checking", Payee: "to-card", Amount: core.ScheduleAmount{Op: core.AmountIs, Num1: -5000}, Date: core.NewDate(2024, 4, 25)},
	} {
		if err := store.PutSchedule(ctx, sc); err != nil {
			t.Fatal(err)
		}
	}

	svc := newTestService(store, WithScheduleConcurrency(2))
	req := CashFlowRequest{
		Start:    day(2024, 3, 1),
		End:      day(2024, 3, 31),
		Forecast: day(2024, 4, 30),
		Params:   forecast.Params{Source: forecast.SourceSchedule},
	}
	rep, err := svc.CashFlowByDate(ctx, req)
	if err != nil {
		t.Fatal(err)
	}

	if got := len(rep.Graph.FutureBalances); got != 30 {
		t.Fatalf("got %d forecast days, want 30", got)
	}
	byDate := map[core.Bucket]int{}
	for i, p := range rep.Graph.FutureBalances {
		byDate[p.Date] = i
	}

	// The on-budget transfer nets to zero; the off-budget one leaves the budget.
	transfers := rep.Graph.FutureTransfers[byDate["2024-04-20"]].Y.Shift(2).IntPart()
	if transfers != 0 {
		t.Errorf("savings transfer net = %d, want 0", transfers)
	}
	if got := rep.Graph.FutureTransfers[byDate["2024-04-25"]].Y.Shift(2).IntPart(); got != -5000 {
		t.Errorf("card transfer = %d, want -5000", got)
	}
	if got := rep.Graph.FutureExpenses[byDate["2024-04-03"]].Y.Shift(2).IntPart(); got != -120000 {
		t.Errorf("rent = %d, want -120000", got)
	}
	if rep.ProjectedBalance != rep.Balance-125000 {
		t.Errorf("ProjectedBalance = %d, want %d", rep.ProjectedBalance, rep.Balance-125000)
	}
}

func TestCashFlowByDate_ScheduleFilteredOut(t *testing.T) {
	store := ledger(t)
	ctx := context.Background()
	store.PutSchedule(ctx, core.Schedule{ID: "rent", Account: "checking", Payee: "landlord",
		Amount: core.ScheduleAmount{Op: core.AmountIs, Num1: -120000}, Recurrence: monthly(core.NewDate(2024, 1, 3))})

	svc := newTestService(store)
	req := CashFlowRequest{
		Start:      day(2024, 1, 1),
		End:        day(2024, 3, 31),
		Forecast:   day(2024, 6, 30),
		Concise:    true,
		Conditions: []query.Condition{{Field: query.FieldAccount, Op: query.OpIs, Value: "savings"}},
		Params:     forecast.Params{Source: forecast.SourceSchedule},
	}
	rep, err := svc.CashFlowByDate(ctx, req)
	if err != nil {
		t.Fatal(err)
	}
	for _, p := range rep.Graph.FutureExpenses {
		if !p.Y.IsZero() {
			t.Fatalf("filtered schedule produced %s on %s", p.Y, p.Date)
		}
	}
	if rep.ProjectedBalance != rep.Balance {
		t.Errorf("ProjectedBalance = %d, want %d", rep.ProjectedBalance, rep.Balance)
	}
}

func TestCashFlowByDate_Errors(t *testing.T) {
	svc := newTestService(ledger(t))
	base := CashFlowRequest{Start: day(2024, 1, 1), End: day(2024, 3, 31), Forecast: day(2024, 6, 30), Concise: true}

	tests := []struct {
		name string
		mod  func(*CashFlowRequest)
		want error
	}{
		{"reversed range", func(r *CashFlowRequest) { r.Start = day(2024, 4, 1) }, core.ErrInvalidRange},
		{"budget source", func(r *CashFlowRequest) { r.Params.Source = forecast.SourceBudget }, forecast.ErrSourceNotSupported},
		{"monte carlo", func(r *CashFlowRequest) {
			r.Params = forecast.Params{Source: forecast.SourceTransactions, Method: forecast.MethodMonteCarlo}
		}, forecast.ErrMethodNotSupported},
		{"bad condition", func(r *CashFlowRequest) {
			r.Conditions = []query.Condition{{Field: "memo", Op: query.OpIs, Value: "x"}}
		}, query.ErrInvalidCondition},
		{"missing end", func(r *CashFlowRequest) { r.End = time.Time{} }, ErrInvalidRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := base
			tt.mod(&req)
			if _, err := svc.CashFlowByDate(context.Background(), req); !errors.Is(err, tt.want) {
				t.Fatalf("err = %v, want %v", err, tt.want)
			}
		})
	}
}

// failingQuerier fails one operation and delegates the rest.
type failingQuerier struct {
	query.Querier
	failFlows bool
	calls     atomic.Int32
}

var errBackend = errors.New("backend down")

func (f *failingQuerier) Flows(ctx context.Context, q query.FlowQuery) ([]core.FlowEntry, error) {
	f.calls.Add(1)
	if f.failFlows && q.Sign == query.SignNegative {
		return nil, errBackend
	}
	return f.Querier.Flows(ctx, q)
}

func TestCashFlowByDate_FetchFailureFailsWholeReport(t *testing.T) {
	q := &failingQuerier{Querier: ledger(t), failFlows: true}
	svc := newTestService(q)
	rep, err := svc.CashFlowByDate(context.Background(), CashFlowRequest{Start: day(2024, 1, 1), End: day(2024, 3, 31), Concise: true})
	if !errors.Is(err, errBackend) {
		t.Fatalf("err = %v, want backend error", err)
	}
	if len(rep.Graph.Balances) != 0 {
		t.Fatal("partial series returned")
	}
}

func TestCashFlowByDate_Deterministic(t *testing.T) {
	store := ledger(t)
	err := store.PutSchedule(context.Background(), core.Schedule{ID: "rent", Account: "checking", Payee: "landlord",
		Amount: core.ScheduleAmount{Op: core.AmountBetween, Num1: -130000, Num2: -110000}, Recurrence: monthly(core.NewDate(2024, 1, 3))})
	if err != nil {
		t.Fatal(err)
	}
	req := CashFlowRequest{
		Start:    day(2024, 1, 1),
		End:      day(2024, 3, 31),
		Forecast: day(2024, 12, 31),
		Concise:  true,
		Params:   forecast.Params{Source: forecast.SourceSchedule},
	}

	var reports []series.Report
	for range 3 {
		svc := newTestService(store, WithCache(nil))
		rep, err := svc.CashFlowByDate(context.Background(), req)
		if err != nil {
			t.Fatal(err)
		}
		reports = append(reports, rep)
	}
	for i := 1; i < len(reports); i++ {
		if !reflect.DeepEqual(reports[0], reports[i]) {
			t.Fatalf("run %d differs from run 0", i)
		}
	}
}

func TestCashFlowByDate_Cache(t *testing.T) {
	q := &failingQuerier{Querier: ledger(t)}
	svc := newTestService(q)
	req := CashFlowRequest{Start: day(2024, 1, 1), End: day(2024, 3, 31), Concise: true}

	first, err := svc.CashFlowByDate(context.Background(), req)
	if err != nil {
		t.Fatal(err)
	}
	calls := q.calls.Load()
	second, err := svc.CashFlowByDate(context.Background(), req)
	if err != nil {
		t.Fatal(err)
	}
	if q.calls.Load() != calls {
		t.Error("cached request hit the query layer")
	}
	if !reflect.DeepEqual(first, second) {
		t.Error("cached report differs")
	}

	svc.Invalidate()
	if _, err := svc.CashFlowByDate(context.Background(), req); err != nil {
		t.Fatal(err)
	}
	if q.calls.Load() == calls {
		t.Error("invalidated cache was still used")
	}
}

func TestSimpleCashFlow(t *testing.T) {
	svc := newTestService(ledger(t))
	got, err := svc.SimpleCashFlow(context.Background(), day(2024, 1, 1), day(2024, 3, 31), query.Where{})
	if err != nil {
		t.Fatal(err)
	}
	if got.Income != 900000 || got.Expense != -280000 {
		t.Errorf("got %+v, want income 900000 expense -280000", got)
	}

	if _, err := svc.SimpleCashFlow(context.Background(), day(2024, 2, 1), day(2024, 1, 1), query.Where{}); !errors.Is(err, core.ErrInvalidRange) {
		t.Errorf("err = %v, want ErrInvalidRange", err)
	}
}

func TestOptions(t *testing.T) {
	svc := newTestService(ledger(t))
	opts, err := svc.Options(context.Background(), day(2024, 4, 15))
	if err != nil {
		t.Fatal(err)
	}

	if opts.MaxMonths != 4 {
		t.Errorf("MaxMonths = %d, want 4", opts.MaxMonths)
	}
	if len(opts.Months) != 5 || opts.Months[0].Name != "2024-04" || opts.Months[4].Name != "2023-12" {
		t.Errorf("months = %+v", opts.Months)
	}
	if opts.Months[0].Pretty != "April, 2024" {
		t.Errorf("pretty = %q", opts.Months[0].Pretty)
	}
	if len(opts.ForecastMonths) != 5+120 || opts.ForecastMonths[0].Name != "2034-04" {
		t.Errorf("forecast months: %d, first %+v", len(opts.ForecastMonths), opts.ForecastMonths[0])
	}

	supported := map[forecast.Method]bool{}
	for _, m := range opts.Methods {
		supported[m.Value] = m.Supported
	}
	if !supported[forecast.MethodLastMonths] || !supported[forecast.MethodPerMonth] || supported[forecast.MethodMonteCarlo] {
		t.Errorf("methods = %+v", opts.Methods)
	}
	for _, s := range opts.Sources {
		if s.Value == forecast.SourceBudget && s.Supported {
			t.Error("budget source reported as supported")
		}
	}
}

func TestOptions_EmptyHistory(t *testing.T) {
	svc := newTestService(memory.New())
	opts, err := svc.Options(context.Background(), day(2024, 4, 15))
	if err != nil {
		t.Fatal(err)
	}
	if opts.MaxMonths != 0 || len(opts.Months) != 1 {
		t.Errorf("got MaxMonths %d months %d", opts.MaxMonths, len(opts.Months))
	}
}

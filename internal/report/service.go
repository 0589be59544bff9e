package report

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"

	"cashflow/internal/cache"
	"cashflow/internal/core"
	"cashflow/internal/log"
	"cashflow/internal/query"
	"cashflow/internal/schedule"
	"cashflow/internal/series"
)

const (
	DefaultScheduleConcurrency = 8
	DefaultCacheSize           = 64
	DefaultCacheTTL            = 5 * time.Minute
	maxViews                   = 128
)

// Service computes reports over a query layer.
type Service struct {
	querier     query.Querier
	expander    schedule.Expander
	reports     *cache.LRUCache[series.Report]
	views       *cache.LRUCache[*Recomputer]
	logger      *log.Logger
	structured  *log.StructuredLogger
	concurrency int
	now         func() time.Time
}

type Option func(*Service)

// WithCache replaces the report cache. A nil cache disables caching.
func WithCache(c *cache.LRUCache[series.Report]) Option {
	return func(s *Service) { s.reports = c }
}

func WithExpander(e schedule.Expander) Option {
	return func(s *Service) { s.expander = e }
}

// WithScheduleConcurrency bounds how many schedules are expanded at once.
func WithScheduleConcurrency(n int) Option {
	return func(s *Service) {
		if n > 0 {
			s.concurrency = n
		}
	}
}

func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

func NewService(q query.Querier, logger *log.Logger, opts ...Option) *Service {
	logger = logger.WithComponent(log.ComponentReport)
	s := &Service{
		querier:     q,
		expander:    schedule.NewRecurrenceExpander(schedule.DefaultMaxOccurrences),
		reports:     cache.NewLRUCache[series.Report](DefaultCacheSize, DefaultCacheTTL),
		views:       cache.NewLRUCache[*Recomputer](maxViews, 0),
		logger:      logger,
		structured:  log.NewStructuredLogger(logger),
		concurrency: DefaultScheduleConcurrency,
		now:         time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.views.OnEvict(func(_ string, r *Recomputer) { r.Cancel() })
	return s
}

// Cleaners returns the caches that expire entries, for a cache.Manager.
func (s *Service) Cleaners() []cache.Cleaner {
	if s.reports == nil {
		return nil
	}
	return []cache.Cleaner{s.reports}
}

// Invalidate drops every cached report.
func (s *Service) Invalidate() {
	if s.reports != nil {
		s.reports.Purge()
	}
}

// CashFlowByDate builds the running-balance series for req, including the
// projection when a forecast source is selected.
func (s *Service) CashFlowByDate(ctx context.Context, req CashFlowRequest) (series.Report, error) {
	if err := req.Validate(0); err != nil {
		return series.Report{}, err
	}

	key := req.Key()
	if s.reports != nil {
		if rep, ok := s.reports.Get(key); ok {
			s.logger.DebugContext(ctx, "Report served from cache", log.FieldReportID, shortID(key))
			return rep, nil
		}
	}

	started := time.Now()
	where := req.Where()
	firstBucket := core.BucketStart(req.Start, req.Concise)

	var (
		startingBalance int64
		income, expense []core.FlowEntry
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		v, err := s.querier.Sum(gctx, query.SumQuery{To: firstBucket.AddDate(0, 0, -1), Where: where})
		if err != nil {
			return fmt.Errorf("starting balance: %w", err)
		}
		startingBalance = v
		return nil
	})
	g.Go(func() error {
		v, err := s.querier.Flows(gctx, query.FlowQuery{From: firstBucket, To: req.End, Concise: req.Concise, Sign: query.SignPositive, Where: where})
		if err != nil {
			return fmt.Errorf("income flows: %w", err)
		}
		income = v
		return nil
	})
	g.Go(func() error {
		v, err := s.querier.Flows(gctx, query.FlowQuery{From: firstBucket, To: req.End, Concise: req.Concise, Sign: query.SignNegative, Where: where})
		if err != nil {
			return fmt.Errorf("expense flows: %w", err)
		}
		expense = v
		return nil
	})
	if err := g.Wait(); err != nil {
		return series.Report{}, err
	}

	projection, err := s.project(ctx, req)
	if err != nil {
		return series.Report{}, err
	}

	in := series.Input{
		Start:           req.Start,
		End:             req.End,
		Concise:         req.Concise,
		StartingBalance: startingBalance,
		Income:          income,
		Expense:         expense,
	}
	if req.Forecasting() {
		in.Forecast = req.Forecast
		in.FutureIncome = projection.Income
		in.FutureExpense = projection.Expense
	}
	rep, err := series.Build(ctx, in)
	if err != nil {
		return series.Report{}, fmt.Errorf("build series: %w", err)
	}

	if s.reports != nil {
		s.reports.Set(key, rep)
	}

	start, end, fc := req.logRange()
	fields := log.NewFields().
		WithRange(start, end, fc, req.Concise).
		WithForecast(string(req.Params.Source), string(req.Params.Method))
	fields[log.FieldReportID] = shortID(key)
	s.structured.LogReportComputed(ctx, fields,
		len(rep.Graph.Balances)+len(rep.Graph.FutureBalances), rep.ProjectedBalance, time.Since(started).Milliseconds())
	return rep, nil
}

// CashFlowForView runs CashFlowByDate under the view's Recomputer so a newer
// request for the same view cancels the older one.
func (s *Service) CashFlowForView(ctx context.Context, view string, req CashFlowRequest) (series.Report, error) {
	rc := s.views.GetOrCreate(view, func() *Recomputer { return &Recomputer{} })
	var rep series.Report
	err := rc.Run(ctx, func(ctx context.Context) error {
		var err error
		rep, err = s.CashFlowByDate(ctx, req)
		return err
	})
	return rep, err
}

// Summary is the non-transfer income and expense over a range.
type Summary struct {
	Income  int64 `json:"income"`
	Expense int64 `json:"expense"`
}

// SimpleCashFlow sums non-transfer income and expenses between start and end.
func (s *Service) SimpleCashFlow(ctx context.Context, start, end time.Time, where query.Where) (Summary, error) {
	if start.After(end) {
		return Summary{}, fmt.Errorf("%w: %s > %s", core.ErrInvalidRange, core.DayOf(start), core.DayOf(end))
	}

	var out Summary
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		v, err := s.querier.Sum(gctx, query.SumQuery{From: start, To: end, Sign: query.SignPositive, ExcludeTransfers: true, Where: where})
		if err != nil {
			return fmt.Errorf("income: %w", err)
		}
		out.Income = v
		return nil
	})
	g.Go(func() error {
		v, err := s.querier.Sum(gctx, query.SumQuery{From: start, To: end, Sign: query.SignNegative, ExcludeTransfers: true, Where: where})
		if err != nil {
			return fmt.Errorf("expense: %w", err)
		}
		out.Expense = v
		return nil
	})
	if err := g.Wait(); err != nil {
		return Summary{}, err
	}
	return out, nil
}

// Sankey groups totals over the request range into a flow diagram.
func (s *Service) Sankey(ctx context.Context, req SankeyRequest) (SankeyData, error) {
	if err := req.Validate(); err != nil {
		return SankeyData{}, err
	}
	totals, err := s.querier.Totals(ctx, query.TotalsQuery{
		From:    req.Start,
		To:      req.End,
		GroupBy: req.GroupBy,
		Where:   query.Where{Conditions: req.Conditions, Conjunction: req.Conjunction},
	})
	if err != nil {
		return SankeyData{}, fmt.Errorf("totals: %w", err)
	}
	return ToSankey(totals, req.GroupBy), nil
}

func shortID(key string) string {
	if len(key) > 12 {
		return key[:12]
	}
	return key
}

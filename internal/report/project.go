package report

import (
	"context"
	"fmt"
	"sync"

	"golang.org/x/sync/errgroup"

	"cashflow/internal/core"
	"cashflow/internal/forecast"
	"cashflow/internal/log"
	"cashflow/internal/query"
)

// project returns the forecast entries for req. It is empty when the
// request has no forecast or the horizon is empty.
func (s *Service) project(ctx context.Context, req CashFlowRequest) (forecast.Projection, error) {
	if !req.Forecasting() {
		return forecast.Projection{}, nil
	}
	h, ok := forecast.NewHorizon(req.End, req.Forecast, req.Concise)
	if !ok {
		return forecast.Projection{}, nil
	}

	switch req.Params.Source {
	case forecast.SourceSchedule:
		return s.projectSchedules(ctx, req, h)
	case forecast.SourceTransactions:
		return s.projectTransactions(ctx, req, h)
	}
	return forecast.Projection{}, fmt.Errorf("%w: %s", forecast.ErrSourceNotSupported, req.Params.Source)
}

// projectSchedules expands every active schedule over the horizon.
func (s *Service) projectSchedules(ctx context.Context, req CashFlowRequest, h forecast.Horizon) (forecast.Projection, error) {
	schedules, err := s.querier.Schedules(ctx)
	if err != nil {
		return forecast.Projection{}, fmt.Errorf("schedules: %w", err)
	}

	occs := make([]forecast.Occurrences, len(schedules))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.concurrency)
	for i, sc := range schedules {
		g.Go(func() error {
			dates, err := s.expander.Occurrences(gctx, sc, h.Start, h.End)
			if err != nil {
				return fmt.Errorf("expand schedule %s: %w", sc.ID, err)
			}
			occs[i] = forecast.Occurrences{Schedule: sc, Dates: dates}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		s.logger.WarnContext(ctx, "Schedule expansion failed", log.FieldOperation, log.OpExpand, log.FieldError, err)
		return forecast.Projection{}, err
	}

	return forecast.FromSchedules(occs, forecast.ScheduleFilters(req.Conditions), h), nil
}

// projectTransactions averages monthly history up to the month before the
// report end. Starting balance entries are left out of the sample.
func (s *Service) projectTransactions(ctx context.Context, req CashFlowRequest, h forecast.Horizon) (forecast.Projection, error) {
	averager, err := forecast.GetAverager(req.Params.Method)
	if err != nil {
		return forecast.Projection{}, err
	}

	sample := forecast.Sample{
		From:    req.Params.SourceStart,
		Through: core.PrevMonth(req.End),
	}
	if !req.Params.SourceEnd.IsZero() {
		sample.Through = core.StartOfMonth(req.Params.SourceEnd)
	}
	base := query.FlowQuery{
		From:                    sample.From,
		To:                      core.EndOfMonth(sample.Through),
		Concise:                 true,
		Where:                   req.Where(),
		ExcludeStartingBalances: true,
	}

	var mu sync.Mutex
	g, gctx := errgroup.WithContext(ctx)
	for _, sign := range []query.Sign{query.SignPositive, query.SignNegative} {
		q := base
		q.Sign = sign
		g.Go(func() error {
			entries, err := s.querier.Flows(gctx, q)
			if err != nil {
				return fmt.Errorf("forecast sample: %w", err)
			}
			mu.Lock()
			sample.Entries = append(sample.Entries, entries...)
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return forecast.Projection{}, err
	}

	return averager.Project(sample, h, req.Params)
}

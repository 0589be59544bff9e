package report

import (
	"context"
	"fmt"
	"slices"
	"time"

	"cashflow/internal/core"
	"cashflow/internal/forecast"
)

// forecastYears is how far past the current month forecast months reach.
const forecastYears = 10

type SourceOption struct {
	Value     forecast.Source `json:"value"`
	Supported bool            `json:"supported"`
}

type MethodOption struct {
	Value     forecast.Method `json:"value"`
	Supported bool            `json:"supported"`
}

// MonthOption is a selectable month, newest first in lists.
type MonthOption struct {
	Name   string `json:"name"`
	Pretty string `json:"pretty"`
}

// Options is the forecast configuration surface.
type Options struct {
	Sources        []SourceOption  `json:"sources"`
	Methods        []MethodOption  `json:"methods"`
	Months         []MonthOption   `json:"months"`
	ForecastMonths []MonthOption   `json:"forecastMonths"`
	MaxMonths      int             `json:"maxMonths"`
	Defaults       forecast.Params `json:"defaults"`
}

// Options lists what can be selected, given the history available at now.
// Without transactions the history is the current month alone.
func (s *Service) Options(ctx context.Context, now time.Time) (Options, error) {
	current := core.StartOfMonth(now)
	earliest := current
	first, ok, err := s.querier.EarliestTransaction(ctx)
	if err != nil {
		return Options{}, fmt.Errorf("earliest transaction: %w", err)
	}
	if ok && core.StartOfMonth(first).Before(current) {
		earliest = core.StartOfMonth(first)
	}

	out := Options{
		Months:         monthOptions(earliest, current),
		ForecastMonths: monthOptions(earliest, current.AddDate(forecastYears, 0, 0)),
		MaxMonths:      core.MonthsBetween(earliest, current),
		Defaults:       forecast.DefaultParams(),
	}
	for _, src := range forecast.Sources {
		out.Sources = append(out.Sources, SourceOption{Value: src, Supported: src.Supported()})
	}
	for _, m := range forecast.Methods {
		out.Methods = append(out.Methods, MethodOption{Value: m, Supported: m.Supported()})
	}
	return out, nil
}

// MaxMonths is the number of whole months of history before now.
func (s *Service) MaxMonths(ctx context.Context) (int, error) {
	first, ok, err := s.querier.EarliestTransaction(ctx)
	if err != nil || !ok {
		return 0, err
	}
	return max(core.MonthsBetween(first, s.now()), 0), nil
}

func monthOptions(from, to time.Time) []MonthOption {
	var out []MonthOption
	for m := from; !m.After(to); m = m.AddDate(0, 1, 0) {
		out = append(out, MonthOption{Name: string(core.MonthOf(m)), Pretty: m.Format("January, 2006")})
	}
	slices.Reverse(out)
	return out
}

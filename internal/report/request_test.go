package report

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"cashflow/internal/core"
	"cashflow/internal/forecast"
	"cashflow/internal/query"
	"cashflow/internal/schedule"
)

func TestNewCashFlowRequest(t *testing.T) {
	noon := time.Date(2024, 1, 10, 12, 30, 0, 0, time.UTC)
	r := NewCashFlowRequest(noon, day(2024, 6, 30), day(2024, 9, 30), nil, query.And, forecast.DefaultParams())
	if !r.Start.Equal(day(2024, 1, 10)) {
		t.Errorf("start not truncated: %v", r.Start)
	}
	if !r.Concise {
		t.Error("half-year range should be concise")
	}
	if r.Forecasting() {
		t.Error("default params use the none source")
	}
	r.Params.Source = forecast.SourceSchedule
	if !r.Forecasting() {
		t.Error("schedule source with forecast date should forecast")
	}
}

func TestCashFlowRequest_Key(t *testing.T) {
	a := CashFlowRequest{Start: day(2024, 1, 1), End: day(2024, 3, 31), Concise: true}
	b := a
	if a.Key() != b.Key() {
		t.Fatal("equal requests produced different keys")
	}
	b.Conditions = []query.Condition{{Field: query.FieldPayee, Op: query.OpIs, Value: "x"}}
	if a.Key() == b.Key() {
		t.Fatal("different requests share a key")
	}
	c := a
	c.Params.AverageMonths = 3
	if a.Key() == c.Key() {
		t.Fatal("forecast params ignored by key")
	}
}

func TestCashFlowRequest_Validate(t *testing.T) {
	tests := []struct {
		name string
		req  CashFlowRequest
		want error
	}{
		{
			name: "ok",
			req:  CashFlowRequest{Start: day(2024, 1, 1), End: day(2024, 3, 31), Forecast: day(2034, 3, 31), Concise: true},
		},
		{
			name: "missing end",
			req:  CashFlowRequest{Start: day(2024, 1, 1)},
			want: ErrInvalidRequest,
		},
		{
			name: "start after end",
			req:  CashFlowRequest{Start: day(2024, 2, 1), End: day(2024, 1, 1)},
			want: core.ErrInvalidRange,
		},
		{
			name: "forecast at the horizon limit",
			req:  CashFlowRequest{Start: day(2024, 1, 1), End: day(2024, 3, 15), Forecast: day(2034, 3, 31), Concise: true},
		},
		{
			name: "forecast past the horizon limit",
			req:  CashFlowRequest{Start: day(2024, 1, 1), End: day(2024, 3, 31), Forecast: day(2034, 4, 1), Concise: true},
			want: ErrInvalidRequest,
		},
		{
			name: "daily history over the bucket limit",
			req:  CashFlowRequest{Start: day(2, 1, 1), End: day(9999, 12, 31)},
			want: ErrInvalidRequest,
		},
		{
			name: "monthly history over the bucket limit",
			req:  CashFlowRequest{Start: day(2, 1, 1), End: day(9999, 12, 31), Concise: true},
			want: ErrInvalidRequest,
		},
		{
			name: "daily history plus forecast over the bucket limit",
			req:  CashFlowRequest{Start: day(1970, 1, 1), End: day(2024, 12, 31), Forecast: day(2034, 12, 31)},
			want: ErrInvalidRequest,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.req.Validate(0)
			if tt.want == nil {
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				return
			}
			if !errors.Is(err, tt.want) {
				t.Fatalf("got %v, want %v", err, tt.want)
			}
			if Classify(err) != KindInvalid {
				t.Fatalf("Classify(%v) = %v, want KindInvalid", err, Classify(err))
			}
		})
	}
}

func TestClassify(t *testing.T) {
	tests := []struct {
		err  error
		want ErrorKind
	}{
		{fmt.Errorf("wrapped: %w", ErrSuperseded), KindSuperseded},
		{forecast.ErrMethodNotSupported, KindUnsupported},
		{forecast.ErrSourceNotSupported, KindUnsupported},
		{fmt.Errorf("x: %w", core.ErrInvalidRange), KindInvalid},
		{query.ErrInvalidCondition, KindInvalid},
		{errors.Join(forecast.ErrInvalidParams), KindInvalid},
		{fmt.Errorf("schedule s: %w (limit 5000)", schedule.ErrTooManyOccurrences), KindInvalid},
		{fmt.Errorf("schedule s: %w: parse cron", schedule.ErrInvalidRecurrence), KindInvalid},
		{errors.New("disk on fire"), KindInternal},
	}
	for _, tt := range tests {
		if got := Classify(tt.err); got != tt.want {
			t.Errorf("Classify(%v) = %v, want %v", tt.err, got, tt.want)
		}
	}
}

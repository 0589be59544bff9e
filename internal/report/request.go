// Package report assembles cash-flow, summary and sankey reports from the
// query layer, the forecast aggregator and the series builder.
package report

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"cashflow/internal/core"
	"cashflow/internal/forecast"
	"cashflow/internal/query"
)

var (
	ErrInvalidRequest = errors.New("invalid report request")
	// ErrSuperseded is returned to a caller whose computation was replaced
	// by a newer one for the same view.
	ErrSuperseded = errors.New("report computation superseded")
)

// CashFlowRequest describes one cash-flow report. Start, End and Forecast
// are days; a zero Forecast disables the projection.
type CashFlowRequest struct {
	Start       time.Time         `json:"start"`
	End         time.Time         `json:"end"`
	Forecast    time.Time         `json:"forecast,omitempty"`
	Concise     bool              `json:"concise"`
	Conditions  []query.Condition `json:"conditions,omitempty"`
	Conjunction query.Conjunction `json:"conjunction,omitempty"`
	Params      forecast.Params   `json:"params"`
}

// NewCashFlowRequest normalises the dates to days and derives the
// granularity from the range length.
func NewCashFlowRequest(start, end, forecastEnd time.Time, conds []query.Condition, conj query.Conjunction, params forecast.Params) CashFlowRequest {
	start = core.BucketStart(start, false)
	end = core.BucketStart(end, false)
	if !forecastEnd.IsZero() {
		forecastEnd = core.BucketStart(forecastEnd, false)
	}
	return CashFlowRequest{
		Start:       start,
		End:         end,
		Forecast:    forecastEnd,
		Concise:     core.IsConcise(start, end),
		Conditions:  conds,
		Conjunction: conj,
		Params:      params,
	}
}

func (r CashFlowRequest) Where() query.Where {
	return query.Where{Conditions: r.Conditions, Conjunction: r.Conjunction}
}

// Forecasting reports whether the request asks for a projection at all.
func (r CashFlowRequest) Forecasting() bool {
	return !r.Forecast.IsZero() && r.Params.Source != "" && r.Params.Source != forecast.SourceNone
}

// MaxBuckets caps the history plus forecast buckets of one report.
const MaxBuckets = 20000

// Validate checks the range, conditions and forecast parameters. maxMonths
// is the available history used to cap averageMonths; 0 disables the cap.
func (r CashFlowRequest) Validate(maxMonths int) error {
	if r.Start.IsZero() || r.End.IsZero() {
		return fmt.Errorf("%w: start and end are required", ErrInvalidRequest)
	}
	if r.Start.After(r.End) {
		return fmt.Errorf("%w: %s > %s", core.ErrInvalidRange, core.DayOf(r.Start), core.DayOf(r.End))
	}
	buckets := core.BucketCount(r.Start, r.End, r.Concise)
	if !r.Forecast.IsZero() {
		if limit := core.EndOfMonth(r.End.AddDate(forecastYears, 0, 0)); r.Forecast.After(limit) {
			return fmt.Errorf("%w: forecast %s is more than %d years past %s",
				ErrInvalidRequest, core.DayOf(r.Forecast), forecastYears, core.DayOf(r.End))
		}
		buckets += core.BucketCount(core.NextBucketStart(r.End, r.Concise), r.Forecast, r.Concise)
	}
	if buckets > MaxBuckets {
		return fmt.Errorf("%w: %d buckets exceed the limit of %d", ErrInvalidRequest, buckets, MaxBuckets)
	}
	if err := r.Where().Validate(); err != nil {
		return err
	}
	return r.Params.Validate(maxMonths)
}

// Key is a stable cache key for the request.
func (r CashFlowRequest) Key() string {
	b, err := json.Marshal(r)
	if err != nil {
		return ""
	}
	sum := sha256.Sum256(b)
	return hex.EncodeToString(sum[:])
}

// logRange renders the request dates for log fields.
func (r CashFlowRequest) logRange() (start, end, forecastEnd string) {
	start, end = string(core.DayOf(r.Start)), string(core.DayOf(r.End))
	if !r.Forecast.IsZero() {
		forecastEnd = string(core.DayOf(r.Forecast))
	}
	return start, end, forecastEnd
}

// SankeyRequest selects the totals shown in a flow diagram.
type SankeyRequest struct {
	Start       time.Time         `json:"start"`
	End         time.Time         `json:"end"`
	GroupBy     query.GroupBy     `json:"groupBy"`
	Conditions  []query.Condition `json:"conditions,omitempty"`
	Conjunction query.Conjunction `json:"conjunction,omitempty"`
}

func (r SankeyRequest) Validate() error {
	if !r.Start.IsZero() && !r.End.IsZero() && r.Start.After(r.End) {
		return fmt.Errorf("%w: %s > %s", core.ErrInvalidRange, core.DayOf(r.Start), core.DayOf(r.End))
	}
	if err := r.GroupBy.Validate(); err != nil {
		return err
	}
	return query.Where{Conditions: r.Conditions, Conjunction: r.Conjunction}.Validate()
}

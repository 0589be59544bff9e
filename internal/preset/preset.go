// Package preset loads saved cash-flow report configurations from YAML and
// resolves them into requests for a given day.
package preset

import (
	"errors"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"cashflow/internal/core"
	"cashflow/internal/forecast"
	"cashflow/internal/query"
	"cashflow/internal/report"
)

// Mode decides how a time frame moves with the current date.
type Mode string

const (
	// ModeStatic uses the stored dates as they are.
	ModeStatic Mode = "static"
	// ModeSlidingWindow keeps the stored length in months and ends today.
	ModeSlidingWindow Mode = "sliding-window"
	ModeYearToDate    Mode = "yearToDate"
	ModeLastYear      Mode = "lastYear"
	ModeLastMonth     Mode = "lastMonth"
)

var ErrInvalidPreset = errors.New("invalid preset")

type TimeFrame struct {
	Start string `yaml:"start"`
	End   string `yaml:"end"`
	Mode  Mode   `yaml:"mode"`
}

// Forecast selects the projection. Horizon is an explicit end; otherwise
// Months counts whole months past the end of the range.
type Forecast struct {
	Horizon         string `yaml:"horizon"`
	Months          int    `yaml:"months"`
	forecast.Params `yaml:",inline"`
}

type Preset struct {
	Name         string            `yaml:"name"`
	Description  string            `yaml:"description"`
	Conditions   []query.Condition `yaml:"conditions"`
	ConditionsOp query.Conjunction `yaml:"conditionsOp"`
	TimeFrame    TimeFrame         `yaml:"timeFrame"`
	ShowBalance  *bool             `yaml:"showBalance"`
	Forecast     *Forecast         `yaml:"forecast"`
}

type Set struct {
	Presets []Preset `yaml:"presets"`
}

func Load(path string) (Set, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return Set{}, fmt.Errorf("read presets: %w", err)
	}
	return Parse(b)
}

func Parse(b []byte) (Set, error) {
	var s Set
	if err := yaml.Unmarshal(b, &s); err != nil {
		return Set{}, fmt.Errorf("parse presets yaml: %w", err)
	}
	if err := s.Validate(); err != nil {
		return Set{}, err
	}
	return s, nil
}

// Validate checks names are present and unique, and that every preset's
// mode and conditions are known.
func (s Set) Validate() error {
	var errs []error
	seen := make(map[string]bool, len(s.Presets))
	for i, p := range s.Presets {
		if p.Name == "" {
			errs = append(errs, fmt.Errorf("%w: preset %d has no name", ErrInvalidPreset, i))
			continue
		}
		if seen[p.Name] {
			errs = append(errs, fmt.Errorf("%w: duplicate name %q", ErrInvalidPreset, p.Name))
		}
		seen[p.Name] = true
		if err := p.Validate(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (s Set) Find(name string) (Preset, bool) {
	for _, p := range s.Presets {
		if p.Name == name {
			return p, true
		}
	}
	return Preset{}, false
}

func (p Preset) Validate() error {
	switch p.TimeFrame.Mode {
	case "", ModeStatic, ModeSlidingWindow, ModeYearToDate, ModeLastYear, ModeLastMonth:
	default:
		return fmt.Errorf("%w: %s: unknown mode %q", ErrInvalidPreset, p.Name, p.TimeFrame.Mode)
	}
	if p.TimeFrame.Mode == ModeStatic && (p.TimeFrame.Start == "" || p.TimeFrame.End == "") {
		return fmt.Errorf("%w: %s: static time frame needs start and end", ErrInvalidPreset, p.Name)
	}
	if err := (query.Where{Conditions: p.Conditions, Conjunction: p.ConditionsOp}).Validate(); err != nil {
		return fmt.Errorf("%s: %w", p.Name, err)
	}
	if p.Forecast != nil && p.Forecast.Months < 0 {
		return fmt.Errorf("%w: %s: forecast months cannot be negative", ErrInvalidPreset, p.Name)
	}
	return nil
}

// Balance reports whether the running balance is shown. Presets show it
// unless they say otherwise.
func (p Preset) Balance() bool {
	return p.ShowBalance == nil || *p.ShowBalance
}

// Range resolves the time frame against now. An empty time frame is the
// current month to date.
func (p Preset) Range(now time.Time) (start, end time.Time, err error) {
	today := core.BucketStart(now, false)
	tf := p.TimeFrame

	switch tf.Mode {
	case ModeYearToDate:
		return time.Date(today.Year(), 1, 1, 0, 0, 0, 0, time.UTC), today, nil
	case ModeLastYear:
		y := today.Year() - 1
		return time.Date(y, 1, 1, 0, 0, 0, 0, time.UTC), time.Date(y, 12, 31, 0, 0, 0, 0, time.UTC), nil
	case ModeLastMonth:
		prev := core.PrevMonth(today)
		return prev, core.EndOfMonth(prev), nil
	}

	if tf.Start == "" || tf.End == "" {
		return core.StartOfMonth(today), today, nil
	}
	if start, err = core.ParseDay(tf.Start); err != nil {
		return time.Time{}, time.Time{}, fmt.Errorf("%w: %s: %v", ErrInvalidPreset, p.Name, err)
	}
	if end, err = core.ParseHorizon(tf.End); err != nil {
		return time.Time{}, time.Time{}, fmt.Errorf("%w: %s: %v", ErrInvalidPreset, p.Name, err)
	}

	if tf.Mode == ModeStatic {
		return start, end, nil
	}
	span := core.MonthsBetween(start, end)
	return core.StartOfMonth(today).AddDate(0, -span, 0), today, nil
}

// Request builds the cash-flow request this preset describes at now.
func (p Preset) Request(now time.Time) (report.CashFlowRequest, error) {
	if err := p.Validate(); err != nil {
		return report.CashFlowRequest{}, err
	}
	start, end, err := p.Range(now)
	if err != nil {
		return report.CashFlowRequest{}, err
	}

	params := forecast.DefaultParams()
	var horizon time.Time
	if f := p.Forecast; f != nil {
		params = withDefaults(f.Params)
		switch {
		case f.Horizon != "":
			if horizon, err = core.ParseHorizon(f.Horizon); err != nil {
				return report.CashFlowRequest{}, fmt.Errorf("%w: %s: %v", ErrInvalidPreset, p.Name, err)
			}
		case f.Months > 0:
			horizon = core.EndOfMonth(core.StartOfMonth(end).AddDate(0, f.Months, 0))
		}
	}

	return report.NewCashFlowRequest(start, end, horizon, p.Conditions, p.ConditionsOp, params), nil
}

// withDefaults fills unset forecast fields from forecast.DefaultParams.
func withDefaults(p forecast.Params) forecast.Params {
	def := forecast.DefaultParams()
	if p.Source == "" {
		p.Source = def.Source
	}
	if p.Method == "" {
		p.Method = def.Method
	}
	if p.AverageMonths == 0 {
		p.AverageMonths = def.AverageMonths
	}
	if p.AverageYears == 0 {
		p.AverageYears = def.AverageYears
	}
	return p
}

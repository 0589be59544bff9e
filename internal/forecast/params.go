// Package forecast turns historical samples and schedules into projected
// future income and expense entries.
package forecast

import (
	"errors"
	"fmt"
	"time"
)

type (
	Source string
	Method string
)

const (
	SourceNone         Source = "none"
	SourceSchedule     Source = "schedule"
	SourceTransactions Source = "transactions"
	SourceBudget       Source = "budget"
)

const (
	MethodLastMonths Method = "lastMonths"
	MethodPerMonth   Method = "perMonth"
	MethodMinAvgMax  Method = "minAvgMax"
	MethodMonteCarlo Method = "monteCarlo"
)

const (
	DefaultAverageMonths = 2
	DefaultAverageYears  = 2
)

var (
	ErrMethodNotSupported = errors.New("forecast method not supported")
	ErrSourceNotSupported = errors.New("forecast source not supported")
	ErrInvalidParams      = errors.New("invalid forecast parameters")
)

// Sources lists every source in display order.
var Sources = []Source{SourceNone, SourceSchedule, SourceTransactions, SourceBudget}

// Methods lists every method in display order.
var Methods = []Method{MethodLastMonths, MethodPerMonth, MethodMinAvgMax, MethodMonteCarlo}

// Params selects how the forecast is produced.
//
// SourceStart and SourceEnd optionally pin the historical sample to an
// explicit month range; otherwise AverageMonths or AverageYears bound it.
type Params struct {
	Source        Source    `json:"source" yaml:"source"`
	Method        Method    `json:"method" yaml:"method"`
	AverageMonths int       `json:"averageMonths" yaml:"averageMonths"`
	AverageYears  int       `json:"averageYears" yaml:"averageYears"`
	SourceStart   time.Time `json:"sourceStart,omitempty" yaml:"sourceStart,omitempty"`
	SourceEnd     time.Time `json:"sourceEnd,omitempty" yaml:"sourceEnd,omitempty"`
}

func DefaultParams() Params {
	return Params{
		Source:        SourceNone,
		Method:        MethodLastMonths,
		AverageMonths: DefaultAverageMonths,
		AverageYears:  DefaultAverageYears,
	}
}

// Validate checks the parameters. maxMonths caps the lookback; 0 disables the cap.
func (p Params) Validate(maxMonths int) error {
	switch p.Source {
	case "", SourceNone, SourceSchedule:
		return nil
	case SourceTransactions:
	case SourceBudget:
		return fmt.Errorf("%w: %s", ErrSourceNotSupported, p.Source)
	default:
		return fmt.Errorf("%w: unknown source %q", ErrInvalidParams, p.Source)
	}

	if _, err := GetAverager(p.Method); err != nil {
		return err
	}
	if !p.Method.Supported() {
		return fmt.Errorf("%w: %s", ErrMethodNotSupported, p.Method)
	}

	var errs []error
	if p.AverageMonths < 0 {
		errs = append(errs, fmt.Errorf("%w: averageMonths cannot be negative", ErrInvalidParams))
	}
	if maxMonths > 0 && p.AverageMonths > maxMonths {
		errs = append(errs, fmt.Errorf("%w: averageMonths %d exceeds available history of %d months", ErrInvalidParams, p.AverageMonths, maxMonths))
	}
	if p.AverageYears < 0 {
		errs = append(errs, fmt.Errorf("%w: averageYears cannot be negative", ErrInvalidParams))
	}
	if !p.SourceStart.IsZero() && !p.SourceEnd.IsZero() && p.SourceStart.After(p.SourceEnd) {
		errs = append(errs, fmt.Errorf("%w: sourceStart is after sourceEnd", ErrInvalidParams))
	}
	return errors.Join(errs...)
}

// Supported reports whether a method produces real projections.
func (m Method) Supported() bool {
	a, err := GetAverager(m)
	if err != nil {
		return false
	}
	_, stub := a.(unsupported)
	return !stub
}

// Supported reports whether a source produces real projections.
func (s Source) Supported() bool {
	return s != SourceBudget
}

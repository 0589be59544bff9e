package report

import (
	"errors"

	"cashflow/internal/core"
	"cashflow/internal/forecast"
	"cashflow/internal/query"
	"cashflow/internal/schedule"
)

// ErrorKind groups failures by who has to act on them.
type ErrorKind int

const (
	KindInternal ErrorKind = iota
	KindInvalid
	KindUnsupported
	KindSuperseded
)

// Classify maps an error from this package's operations to its kind.
func Classify(err error) ErrorKind {
	switch {
	case errors.Is(err, ErrSuperseded):
		return KindSuperseded
	case errors.Is(err, forecast.ErrMethodNotSupported), errors.Is(err, forecast.ErrSourceNotSupported):
		return KindUnsupported
	case errors.Is(err, ErrInvalidRequest),
		errors.Is(err, core.ErrInvalidRange),
		errors.Is(err, query.ErrInvalidCondition),
		errors.Is(err, forecast.ErrInvalidParams),
		errors.Is(err, schedule.ErrTooManyOccurrences),
		errors.Is(err, schedule.ErrInvalidRecurrence):
		return KindInvalid
	}
	return KindInternal
}

// This file turns query strings and JSON bodies into report requests. Every
// parse failure wraps report.ErrInvalidRequest so it maps to 400.

package http

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"cashflow/internal/core"
	"cashflow/internal/forecast"
	"cashflow/internal/query"
	"cashflow/internal/report"
)

// maxBodyBytes bounds JSON request bodies.
const maxBodyBytes = 1 << 20

func invalid(format string, args ...any) error {
	return fmt.Errorf("%w: %s", report.ErrInvalidRequest, fmt.Sprintf(format, args...))
}

// ParseFilter parses field:op:value. oneOf takes a comma separated list.
func ParseFilter(s string) (query.Condition, error) {
	parts := strings.SplitN(strings.TrimSpace(s), ":", 3)
	if len(parts) != 3 || parts[2] == "" {
		return query.Condition{}, invalid("filter %q: expected field:op:value", s)
	}
	c := query.Condition{Field: query.Field(parts[0]), Op: query.Op(parts[1])}
	if c.Op == query.OpOneOf {
		for _, v := range strings.Split(parts[2], ",") {
			if v = strings.TrimSpace(v); v != "" {
				c.Values = append(c.Values, v)
			}
		}
	} else {
		c.Value = parts[2]
	}
	if err := c.Validate(); err != nil {
		return query.Condition{}, err
	}
	return c, nil
}

// ParseWhere reads repeated filter parameters and the op conjunction.
func ParseWhere(q url.Values) (query.Where, error) {
	var w query.Where
	for _, f := range q["filter"] {
		c, err := ParseFilter(f)
		if err != nil {
			return query.Where{}, err
		}
		w.Conditions = append(w.Conditions, c)
	}
	w.Conjunction = query.Conjunction(strings.TrimSpace(q.Get("op")))
	return w, w.Validate()
}

// ParseRange reads start and end. Start defaults to the first of the
// current month and end to today; a bare month as end means its last day.
func ParseRange(q url.Values, now time.Time) (start, end time.Time, err error) {
	today := core.BucketStart(now, false)
	start, end = core.StartOfMonth(today), today

	if v := strings.TrimSpace(q.Get("start")); v != "" {
		if start, err = core.ParseDay(v); err != nil {
			return time.Time{}, time.Time{}, invalid("%v", err)
		}
	}
	if v := strings.TrimSpace(q.Get("end")); v != "" {
		if end, err = core.ParseHorizon(v); err != nil {
			return time.Time{}, time.Time{}, invalid("%v", err)
		}
	}
	return start, end, nil
}

// ParseForecastParams reads source, method, averageMonths, averageYears,
// sourceStart and sourceEnd over forecast.DefaultParams.
func ParseForecastParams(q url.Values) (forecast.Params, error) {
	p := forecast.DefaultParams()
	if v := strings.TrimSpace(q.Get("source")); v != "" {
		p.Source = forecast.Source(v)
	}
	if v := strings.TrimSpace(q.Get("method")); v != "" {
		p.Method = forecast.Method(v)
	}

	var err error
	if p.AverageMonths, err = intParam(q, "averageMonths", p.AverageMonths); err != nil {
		return forecast.Params{}, err
	}
	if p.AverageYears, err = intParam(q, "averageYears", p.AverageYears); err != nil {
		return forecast.Params{}, err
	}
	if v := strings.TrimSpace(q.Get("sourceStart")); v != "" {
		if p.SourceStart, err = core.ParseDay(v); err != nil {
			return forecast.Params{}, invalid("%v", err)
		}
	}
	if v := strings.TrimSpace(q.Get("sourceEnd")); v != "" {
		if p.SourceEnd, err = core.ParseDay(v); err != nil {
			return forecast.Params{}, invalid("%v", err)
		}
	}
	return p, nil
}

// ParseCashFlowRequest builds a cash-flow request from query parameters.
// concise, when present, overrides the granularity derived from the range.
func ParseCashFlowRequest(q url.Values, now time.Time) (report.CashFlowRequest, error) {
	start, end, err := ParseRange(q, now)
	if err != nil {
		return report.CashFlowRequest{}, err
	}
	where, err := ParseWhere(q)
	if err != nil {
		return report.CashFlowRequest{}, err
	}
	params, err := ParseForecastParams(q)
	if err != nil {
		return report.CashFlowRequest{}, err
	}

	var horizon time.Time
	if v := strings.TrimSpace(q.Get("forecast")); v != "" {
		if horizon, err = core.ParseHorizon(v); err != nil {
			return report.CashFlowRequest{}, invalid("%v", err)
		}
	}

	req := report.NewCashFlowRequest(start, end, horizon, where.Conditions, where.Conjunction, params)
	if v := strings.TrimSpace(q.Get("concise")); v != "" {
		concise, err := strconv.ParseBool(v)
		if err != nil {
			return report.CashFlowRequest{}, invalid("concise %q: expected true or false", v)
		}
		req.Concise = concise
	}
	return req, nil
}

// ParseSankeyRequest reads the range, filters and groupBy (default category).
// Unlike cash-flow, an absent start or end leaves that side open.
func ParseSankeyRequest(q url.Values) (report.SankeyRequest, error) {
	var (
		req report.SankeyRequest
		err error
	)
	if v := strings.TrimSpace(q.Get("start")); v != "" {
		if req.Start, err = core.ParseDay(v); err != nil {
			return report.SankeyRequest{}, invalid("%v", err)
		}
	}
	if v := strings.TrimSpace(q.Get("end")); v != "" {
		if req.End, err = core.ParseHorizon(v); err != nil {
			return report.SankeyRequest{}, invalid("%v", err)
		}
	}
	where, err := ParseWhere(q)
	if err != nil {
		return report.SankeyRequest{}, err
	}
	req.Conditions, req.Conjunction = where.Conditions, where.Conjunction

	req.GroupBy = query.GroupBy(strings.TrimSpace(q.Get("groupBy")))
	if req.GroupBy == "" {
		req.GroupBy = query.GroupByCategory
	}
	return req, nil
}

// EnqueueRequest is the body of POST /api/reports.
type EnqueueRequest struct {
	View    string                 `json:"view"`
	Export  bool                   `json:"export"`
	Request report.CashFlowRequest `json:"request"`
}

// DecodeJSON reads a bounded JSON body into v, rejecting unknown fields.
func DecodeJSON(r *http.Request, v any) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return invalid("decode body: %v", err)
	}
	return nil
}

func intParam(q url.Values, name string, def int) (int, error) {
	v := strings.TrimSpace(q.Get(name))
	if v == "" {
		return def, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, invalid("%s %q: must be a number", name, v)
	}
	return n, nil
}

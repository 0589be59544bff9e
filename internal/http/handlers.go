package http

import (
	"context"
	"fmt"
	"net/http"

	"cashflow/internal/amqp"
	"cashflow/internal/core"
	"cashflow/internal/log"
	"cashflow/internal/report"
	"cashflow/internal/series"
)

// CashFlowResponse is the cash-flow series with the resolved request.
type CashFlowResponse struct {
	Start       string `json:"start"`
	End         string `json:"end"`
	Forecast    string `json:"forecast,omitempty"`
	Concise     bool   `json:"concise"`
	ShowBalance bool   `json:"showBalance"`
	series.Report
}

type SummaryResponse struct {
	Start string `json:"start"`
	End   string `json:"end"`
	report.Summary
	Net int64 `json:"net"`
}

type PresetInfo struct {
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	Mode        string `json:"mode,omitempty"`
	ShowBalance bool   `json:"showBalance"`
	Forecasting bool   `json:"forecasting"`
}

type EnqueueResponse struct {
	ID   string `json:"id"`
	View string `json:"view"`
}

func handleHealth(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	if s.store != nil {
		ctx, cancel := context.WithTimeout(r.Context(), readyTimeout)
		defer cancel()
		if err := s.store.Ping(ctx); err != nil {
			s.logger.WarnContext(ctx, "Readiness check failed", log.FieldError, err)
			w.WriteHeader(http.StatusServiceUnavailable)
			_, _ = w.Write([]byte("not ready"))
			return
		}
	}
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ready"))
}

func (s *Server) handleCashFlow(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), computeTimeout)
	defer cancel()

	q := r.URL.Query()
	req, err := ParseCashFlowRequest(q, s.now())
	if err != nil {
		s.fail(w, r, err)
		return
	}
	view := q.Get("view")
	if view != "" && !validView(view) {
		StatusError(r, http.StatusBadRequest, "invalid", "view must be 1-64 letters, digits or ._:-").Write(w)
		return
	}

	rep, err := s.computeCashFlow(ctx, view, req)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	NewJSONResponse().Data(cashFlowResponse(req, rep, true)).Write(w)
}

// computeCashFlow caps averageMonths by the available history, then runs
// the request under its view when one is named.
func (s *Server) computeCashFlow(ctx context.Context, view string, req report.CashFlowRequest) (series.Report, error) {
	if req.Forecasting() {
		maxMonths, err := s.reports.MaxMonths(ctx)
		if err != nil {
			return series.Report{}, err
		}
		if err := req.Validate(maxMonths); err != nil {
			return series.Report{}, err
		}
	}
	if view == "" {
		return s.reports.CashFlowByDate(ctx, req)
	}
	return s.reports.CashFlowForView(ctx, view, req)
}

func (s *Server) handleSummary(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	start, end, err := ParseRange(q, s.now())
	if err != nil {
		s.fail(w, r, err)
		return
	}
	where, err := ParseWhere(q)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	if start.After(end) {
		s.fail(w, r, invalid("start %s is after end %s", core.DayOf(start), core.DayOf(end)))
		return
	}

	sum, err := s.reports.SimpleCashFlow(r.Context(), start, end, where)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	NewJSONResponse().Data(SummaryResponse{
		Start:   string(core.DayOf(start)),
		End:     string(core.DayOf(end)),
		Summary: sum,
		Net:     sum.Income + sum.Expense,
	}).Write(w)
}

func (s *Server) handleSankey(w http.ResponseWriter, r *http.Request) {
	req, err := ParseSankeyRequest(r.URL.Query())
	if err != nil {
		s.fail(w, r, err)
		return
	}
	data, err := s.reports.Sankey(r.Context(), req)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	NewJSONResponse().Data(data).Write(w)
}

func (s *Server) handleOptions(w http.ResponseWriter, r *http.Request) {
	opts, err := s.reports.Options(r.Context(), s.now())
	if err != nil {
		s.fail(w, r, err)
		return
	}
	NewJSONResponse().Data(opts).Write(w)
}

func (s *Server) handlePresets(w http.ResponseWriter, r *http.Request) {
	out := make([]PresetInfo, 0, len(s.presets.Presets))
	for _, p := range s.presets.Presets {
		out = append(out, PresetInfo{
			Name:        p.Name,
			Description: p.Description,
			Mode:        string(p.TimeFrame.Mode),
			ShowBalance: p.Balance(),
			Forecasting: p.Forecast != nil,
		})
	}
	NewJSONResponse().Data(out).Write(w)
}

func (s *Server) handlePresetCashFlow(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("name")
	p, ok := s.presets.Find(name)
	if !ok {
		StatusError(r, http.StatusNotFound, "not_found", "unknown preset "+name).Write(w)
		return
	}
	req, err := p.Request(s.now())
	if err != nil {
		s.fail(w, r, fmt.Errorf("%w: %w", report.ErrInvalidRequest, err))
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), computeTimeout)
	defer cancel()
	rep, err := s.computeCashFlow(ctx, "preset:"+p.Name, req)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	NewJSONResponse().Data(cashFlowResponse(req, rep, p.Balance())).Write(w)
}

// handleEnqueue queues a report for the worker and answers 202 with the
// message id.
func (s *Server) handleEnqueue(w http.ResponseWriter, r *http.Request) {
	if s.enqueuer == nil {
		StatusError(r, http.StatusServiceUnavailable, "unavailable", "report queue not configured").Write(w)
		return
	}
	var body EnqueueRequest
	if err := DecodeJSON(r, &body); err != nil {
		s.fail(w, r, err)
		return
	}
	if body.View != "" && !validView(body.View) {
		StatusError(r, http.StatusBadRequest, "invalid", "view must be 1-64 letters, digits or ._:-").Write(w)
		return
	}
	in := body.Request
	req := report.NewCashFlowRequest(in.Start, in.End, in.Forecast, in.Conditions, in.Conjunction, in.Params)
	if err := req.Validate(0); err != nil {
		s.fail(w, r, err)
		return
	}

	msg := amqp.NewReportRequestMessage(body.View, req, body.Export)
	if err := s.enqueuer.PublishReportRequest(r.Context(), msg); err != nil {
		s.logger.ErrorContext(r.Context(), "Failed to enqueue report", log.FieldError, err, log.FieldReportID, msg.ID)
		StatusError(r, http.StatusServiceUnavailable, "unavailable", "report queue unavailable").Write(w)
		return
	}
	NewJSONResponse().Status(http.StatusAccepted).Data(EnqueueResponse{ID: msg.ID, View: msg.View}).Write(w)
}

// fail logs err at a level matching its kind and writes the error response.
func (s *Server) fail(w http.ResponseWriter, r *http.Request, err error) {
	ctx := r.Context()
	logger := log.FromContext(ctx).WithComponent(log.ComponentHTTP)
	switch kind := report.Classify(err); kind {
	case report.KindInternal:
		logger.ErrorContext(ctx, "Report request failed", log.FieldError, err, log.FieldPath, r.URL.Path)
	case report.KindSuperseded:
		logger.InfoContext(ctx, "Report request superseded", log.FieldPath, r.URL.Path)
	default:
		logger.WarnContext(ctx, "Report request rejected", log.FieldError, err, log.FieldPath, r.URL.Path)
	}
	ErrorResponse(r, err).Write(w)
}

func cashFlowResponse(req report.CashFlowRequest, rep series.Report, showBalance bool) CashFlowResponse {
	resp := CashFlowResponse{
		Start:       string(core.DayOf(req.Start)),
		End:         string(core.DayOf(req.End)),
		Concise:     req.Concise,
		ShowBalance: showBalance,
		Report:      rep,
	}
	if req.Forecasting() {
		resp.Forecast = string(core.DayOf(req.Forecast))
	}
	return resp
}

// validView accepts short identifiers safe to use as cache keys and log values.
func validView(v string) bool {
	if len(v) == 0 || len(v) > 64 {
		return false
	}
	for _, c := range v {
		switch {
		case c >= 'a' && c <= 'z', c >= 'A' && c <= 'Z', c >= '0' && c <= '9':
		case c == '.', c == '_', c == ':', c == '-':
		default:
			return false
		}
	}
	return true
}


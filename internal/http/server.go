package http

import (
	"context"
	"net/http"
	"sync"
	"time"

	"cashflow/internal/amqp"
	"cashflow/internal/log"
	"cashflow/internal/middleware/ratelimit"
	"cashflow/internal/middleware/security"
	"cashflow/internal/middleware/trace"
	"cashflow/internal/preset"
	"cashflow/internal/query"
	"cashflow/internal/report"
	"cashflow/internal/series"
)

const (
	readyTimeout   = 2 * time.Second
	computeTimeout = 30 * time.Second
)

// ReportService is the report surface the API exposes.
type ReportService interface {
	CashFlowByDate(ctx context.Context, req report.CashFlowRequest) (series.Report, error)
	CashFlowForView(ctx context.Context, view string, req report.CashFlowRequest) (series.Report, error)
	SimpleCashFlow(ctx context.Context, start, end time.Time, where query.Where) (report.Summary, error)
	Sankey(ctx context.Context, req report.SankeyRequest) (report.SankeyData, error)
	Options(ctx context.Context, now time.Time) (report.Options, error)
	MaxMonths(ctx context.Context) (int, error)
}

// Pinger reports whether the store can serve queries.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Enqueuer hands report requests to the worker.
type Enqueuer interface {
	PublishReportRequest(ctx context.Context, msg *amqp.ReportRequestMessage) error
}

type Server struct {
	http.Server
	reports  ReportService
	store    Pinger
	enqueuer Enqueuer
	presets  preset.Set
	now      func() time.Time

	logger      *log.Logger
	detector    *security.Detector
	rateLimiter *ratelimit.Limiter
	tracer      *trace.Middleware

	shutdownOnce sync.Once
}

type Option func(*Server)

// WithEnqueuer enables POST /api/reports.
func WithEnqueuer(e Enqueuer) Option {
	return func(s *Server) { s.enqueuer = e }
}

// WithPresets serves saved presets under /api/presets.
func WithPresets(set preset.Set) Option {
	return func(s *Server) { s.presets = set }
}

func WithClock(now func() time.Time) Option {
	return func(s *Server) { s.now = now }
}

// WithRateLimit replaces the default limit on report endpoints.
func WithRateLimit(cfg ratelimit.Config) Option {
	return func(s *Server) {
		if s.rateLimiter != nil {
			s.rateLimiter.Stop()
		}
		s.rateLimiter = ratelimit.NewLimiter(cfg)
	}
}

// NewServer configures routes and middleware, returning a ready-to-run server.
func NewServer(addr string, reports ReportService, store Pinger, logger *log.Logger, opts ...Option) *Server {
	s := &Server{
		Server: http.Server{
			Addr:              addr,
			ReadHeaderTimeout: 10 * time.Second,
		},
		reports:  reports,
		store:    store,
		now:      time.Now,
		logger:   logger.WithComponent(log.ComponentHTTP),
		detector: security.NewDetector(),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.rateLimiter == nil {
		s.rateLimiter = ratelimit.NewLimiter(ratelimit.DefaultConfig())
	}
	s.tracer = trace.NewMiddleware(s.detector.ExtractClientIP, logger)

	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", handleHealth)
	mux.HandleFunc("/readyz", s.handleReady)

	limited := s.rateLimiter.Middleware(s.detector.ExtractClientIP, s.handleRateLimited)
	api := func(pattern string, h http.HandlerFunc) {
		mux.Handle(pattern, limited(h))
	}
	api("GET /api/cashflow", s.handleCashFlow)
	api("GET /api/cashflow/summary", s.handleSummary)
	api("GET /api/sankey", s.handleSankey)
	api("GET /api/forecast/options", s.handleOptions)
	api("GET /api/presets", s.handlePresets)
	api("GET /api/presets/{name}/cashflow", s.handlePresetCashFlow)
	api("POST /api/reports", s.handleEnqueue)

	headers := security.NewHeadersMiddleware(security.DefaultHeadersConfig())
	s.Handler = s.tracer.Middleware(headers.Middleware(s.rejectSuspicious(mux)))
	return s
}

// rejectSuspicious drops probing requests before they reach a handler.
func (s *Server) rejectSuspicious(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.detector.DetectSuspiciousRequest(r) {
			log.FromContext(r.Context()).WarnContext(r.Context(), "Suspicious request rejected",
				log.FieldPath, r.URL.Path,
				log.FieldClientIP, s.detector.ExtractClientIP(r),
				log.FieldUserAgent, r.Header.Get("User-Agent"))
			StatusError(r, http.StatusForbidden, "invalid", "request rejected").Write(w)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) handleRateLimited(w http.ResponseWriter, r *http.Request) {
	s.logger.WarnContext(r.Context(), "Rate limit exceeded",
		log.FieldClientIP, s.detector.ExtractClientIP(r),
		log.FieldPath, r.URL.Path)
	StatusError(r, http.StatusTooManyRequests, "rate_limited", "rate limit exceeded, try again later").Write(w)
}

// Shutdown gracefully shuts down the server and its background routines.
func (s *Server) Shutdown(ctx context.Context) error {
	var shutdownErr error
	s.shutdownOnce.Do(func() {
		s.rateLimiter.Stop()
		shutdownErr = s.Server.Shutdown(ctx)
	})
	return shutdownErr
}

// Metrics returns request counters for diagnostics.
func (s *Server) Metrics() (trace.Metrics, ratelimit.Metrics, security.DetectionMetrics) {
	return s.tracer.GetMetrics(), s.rateLimiter.GetMetrics(), s.detector.GetMetrics()
}

package http

import (
	"context"
	"net/http"
	"time"

	rlog "rapport/internal/log"
	"rapport/internal/middleware/ratelimit"
	"rapport/internal/middleware/security"
	"rapport/internal/middleware/trace"
	"rapport/internal/numbering"
	"rapport/internal/report"
	"rapport/internal/stats"
)

// maxBodyBytes caps a report submission.
const maxBodyBytes = 64 << 10

// NumberSource proposes the next document number.
type NumberSource interface {
	Next(ctx context.Context) numbering.Result
}

// SnapshotSource computes the dashboard figures.
type SnapshotSource interface {
	Snapshot(ctx context.Context) stats.Report
}

// Finalizer writes a report draft to the ledger.
type Finalizer interface {
	Finalize(ctx context.Context, d report.Draft) (report.Finalized, error)
}

type Config struct {
	Addr               string
	RateLimitPerMinute int
	// Ready is checked by /readyz; nil means always ready.
	Ready    func(ctx context.Context) error
	Location *time.Location
	Logger   *rlog.Logger
}

type Server struct {
	http.Server
	numbers  NumberSource
	snaps    SnapshotSource
	reports  Finalizer
	ready    func(ctx context.Context) error
	location *time.Location
	started  time.Time

	rateLimiter *ratelimit.Limiter
	detector    *security.Detector
	events      *rlog.EventLogger
}

// NewServer builds the JSON API around the given services.
func NewServer(cfg Config, numbers NumberSource, snaps SnapshotSource, reports Finalizer) *Server {
	logger := cfg.Logger
	if logger == nil {
		logger = rlog.New(rlog.DefaultConfig())
	}
	loc := cfg.Location
	if loc == nil {
		loc = time.Local
	}

	rlCfg := ratelimit.DefaultConfig()
	if cfg.RateLimitPerMinute > 0 {
		rlCfg.RequestsPerMinute = cfg.RateLimitPerMinute
	}

	s := &Server{
		numbers:     numbers,
		snaps:       snaps,
		reports:     reports,
		ready:       cfg.Ready,
		location:    loc,
		started:     time.Now(),
		rateLimiter: ratelimit.NewLimiter(rlCfg),
		detector:    security.NewDetector(),
		events:      rlog.NewEventLogger(logger),
	}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", s.handleHealth)
	mux.HandleFunc("GET /readyz", s.handleReady)
	mux.HandleFunc("GET /api/dashboard", s.handleDashboard)
	mux.HandleFunc("GET /api/numbers/next", s.handleNextNumber)
	mux.HandleFunc("GET /api/overview", s.handleOverview)
	mux.HandleFunc("POST /api/reports", s.handleCreateReport)

	// Outermost first: trace, request logger, headers, detector, rate limit.
	var handler http.Handler = mux
	handler = s.rateLimiter.Middleware(s.detector.ExtractClientIP, s.handleRateLimited)(handler)
	handler = s.detector.Middleware(logger.For(rlog.ComponentSecurity))(handler)
	handler = security.NewHeadersMiddleware(security.DefaultHeadersConfig()).Middleware(handler)
	handler = rlog.RequestLogger(logger.WithComponent(rlog.ComponentHTTP), trace.FromRequest)(handler)
	handler = trace.NewMiddleware(s.detector.ExtractClientIP, logger).Middleware(handler)

	s.Addr = cfg.Addr
	s.Handler = handler
	s.ReadHeaderTimeout = 5 * time.Second
	s.ReadTimeout = 15 * time.Second
	s.WriteTimeout = 30 * time.Second
	s.IdleTimeout = 60 * time.Second
	return s
}

// Shutdown stops the listener and the rate limiter cleanup.
func (s *Server) Shutdown(ctx context.Context) error {
	s.rateLimiter.Stop()
	return s.Server.Shutdown(ctx)
}

// Package http serves the back-office JSON API: exchange rates and currency
// conversion, recurring rule scheduling and per-user settings.
package http

import (
	"context"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"backoffice/internal/middleware/ratelimit"
	"backoffice/internal/middleware/security"
	"backoffice/internal/middleware/trace"
	"backoffice/internal/ports"
	"backoffice/internal/rates"
	"backoffice/internal/services"
	"backoffice/internal/settings"
)

// Deps are the services the API is served from.
type Deps struct {
	Rules     ports.RuleStore
	Processor *services.RecurringProcessor
	Rates     *rates.Cache
	Settings  *settings.Service
	// Ping reports storage readiness; nil means always ready.
	Ping func(ctx context.Context) error
	// DefaultOwnerID is used by generate when the request names no owner.
	DefaultOwnerID string
}

type Options struct {
	RateLimitPerMinute int
	TrustedProxies     []string
}

type Server struct {
	http.Server
	deps Deps
	now  func() time.Time

	limiter  *ratelimit.Limiter
	detector *security.Detector
	tracer   *trace.Middleware

	shutdownOnce sync.Once
}

func NewServer(addr string, deps Deps, opts Options) *Server {
	s := &Server{
		deps:     deps,
		now:      time.Now,
		detector: security.NewDetector(),
	}
	for _, cidr := range opts.TrustedProxies {
		if err := s.detector.AddTrustedProxy(cidr); err != nil {
			slog.Warn("Ignoring invalid trusted proxy", "cidr", cidr, "error", err)
		}
	}

	rlConfig := ratelimit.DefaultConfig()
	if opts.RateLimitPerMinute > 0 {
		rlConfig.RequestsPerMinute = opts.RateLimitPerMinute
	}
	s.limiter = ratelimit.NewLimiter(rlConfig)
	s.tracer = trace.NewMiddleware(s.detector.ExtractClientIP)

	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", handleHealth)
	mux.HandleFunc("GET /readyz", s.handleReady)

	mux.HandleFunc("GET /api/rates", s.handleGetRates)
	mux.HandleFunc("POST /api/rates/refresh", s.handleRefreshRates)
	mux.HandleFunc("GET /api/convert", s.handleConvert)
	mux.HandleFunc("GET /api/format", s.handleFormat)

	mux.HandleFunc("GET /api/recurring", s.handleListRules)
	mux.HandleFunc("POST /api/recurring", s.handleSaveRule)
	mux.HandleFunc("GET /api/recurring/{id}", s.handleGetRule)
	mux.HandleFunc("GET /api/recurring/{id}/next", s.handleNextOccurrence)
	mux.HandleFunc("POST /api/recurring/preview", s.handlePreview)
	mux.HandleFunc("POST /api/recurring/generate", s.handleGenerate)

	mux.HandleFunc("GET /api/settings", s.handleGetSettings)
	mux.HandleFunc("PUT /api/settings", s.handleUpdateSettings)

	var handler http.Handler = mux
	handler = s.limiter.Middleware(s.detector.ExtractClientIP, func(w http.ResponseWriter, r *http.Request) {
		writeError(w, r, http.StatusTooManyRequests, "rate limit exceeded")
	})(handler)
	handler = s.detector.Middleware(handler)
	handler = security.NewHeadersMiddleware(security.DefaultHeadersConfig()).Middleware(handler)
	handler = s.tracer.Middleware(handler)

	s.Server = http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
	return s
}

// Shutdown stops the rate limiter cleanup and gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.shutdownOnce.Do(func() {
		s.limiter.Stop()
	})

	m := s.tracer.GetMetrics()
	d := s.detector.GetMetrics()
	slog.InfoContext(ctx, "HTTP server shutting down",
		"total_requests", m.TotalRequests,
		"server_errors", m.ServerErrors,
		"suspicious_requests", d.SuspiciousRequests,
		"blocked_requests", d.BlockedRequests,
		"rate_limited", s.limiter.GetMetrics().TotalHits)

	return s.Server.Shutdown(ctx)
}

func handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	if s.deps.Ping != nil {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if err := s.deps.Ping(ctx); err != nil {
			slog.WarnContext(ctx, "Readiness check failed", "error", err)
			writeError(w, r, http.StatusServiceUnavailable, "storage unavailable")
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}

// Package http exposes the reconciliation and forecasting engine as a JSON
// API. Handlers read one snapshot, hand it to the engine and encode the
// result; all state lives in storage and the short-lived overview cache.
package http

import (
	"context"
	"net/http"
	"sync"
	"time"

	"cuentas/internal/cache"
	"cuentas/internal/core"
	"cuentas/internal/log"
	"cuentas/internal/middleware/trace"
	"cuentas/internal/services"
)

// Store is the snapshot source the handlers read from.
type Store interface {
	Snapshot(ctx context.Context, userID int64) (core.Snapshot, error)
	Healthy(ctx context.Context) error
}

type Server struct {
	http.Server
	store       Store
	engine      *services.Engine
	logger      *log.Logger
	rateLimiter *rateLimiter

	// Month overviews are cheap but hot; a short TTL keeps the dashboard
	// snappy without stale totals after an import.
	overviewCache *cache.LRUCache[services.BudgetOverview]

	shutdownOnce sync.Once
}

// NewServer configures routes and middleware, returning a ready-to-run
// server.
func NewServer(addr string, store Store, engine *services.Engine, logger *log.Logger) *Server {
	if logger == nil {
		logger = log.New(log.DefaultConfig())
	}

	mux := http.NewServeMux()

	s := &Server{
		store:         store,
		engine:        engine,
		logger:        logger.WithComponent(log.ComponentHTTP),
		rateLimiter:   newRateLimiter(),
		overviewCache: cache.NewLRUCache[services.BudgetOverview](200, 5*time.Minute),
	}

	mux.HandleFunc("GET /api/budget/overview", s.handleOverview)
	mux.HandleFunc("GET /api/budget/suggestions", s.handleSuggestions)
	mux.HandleFunc("GET /api/predictions/pending-payments", s.handlePendingPayments)
	mux.HandleFunc("GET /api/predictions/available-to-spend", s.handleAvailableToSpend)
	mux.HandleFunc("GET /api/predictions/affordability", s.handleAffordability)
	mux.HandleFunc("GET /healthz", s.handleHealth)
	mux.HandleFunc("GET /readyz", s.handleReady)

	traced := trace.NewMiddleware(clientIP, logger)

	s.Server = http.Server{
		Addr:              addr,
		Handler:           traced.Middleware(s.withSecurityHeaders(s.withRateLimit(mux))),
		ReadHeaderTimeout: 5 * time.Second,
	}

	return s
}

// Shutdown gracefully shuts down the server and its cleanup routines.
func (s *Server) Shutdown(ctx context.Context) error {
	var shutdownErr error
	s.shutdownOnce.Do(func() {
		if s.rateLimiter != nil {
			s.rateLimiter.stop()
		}
		shutdownErr = s.Server.Shutdown(ctx)
	})
	return shutdownErr
}

func (s *Server) withSecurityHeaders(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Content-Type-Options", "nosniff")
		w.Header().Set("X-Frame-Options", "DENY")
		w.Header().Set("Content-Security-Policy", "default-src 'none'")
		w.Header().Set("Referrer-Policy", "strict-origin-when-cross-origin")
		next.ServeHTTP(w, r)
	})
}

func (s *Server) withRateLimit(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ip := clientIP(r)
		if !s.rateLimiter.allow(ip) {
			s.logger.WarnContext(r.Context(), "rate limit exceeded",
				log.FieldClientIP, ip,
				log.FieldPath, r.URL.Path)
			w.Header().Set("Retry-After", "60")
			writeError(w, http.StatusTooManyRequests, "rate limit exceeded, try again later")
			return
		}
		next.ServeHTTP(w, r)
	})
}

// clientIP extracts the caller's address, honoring proxy headers.
func clientIP(r *http.Request) string {
	if ip := r.Header.Get("X-Forwarded-For"); ip != "" {
		return ip
	}
	if ip := r.Header.Get("X-Real-IP"); ip != "" {
		return ip
	}
	return r.RemoteAddr
}

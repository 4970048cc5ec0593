// Package apiserver serves the ledger API the dashboard consumes: users,
// transactions and the monthly, category and daily aggregates.
package apiserver

import (
	"context"
	"net/http"
	"sync"
	"time"

	"finboard/internal/backend"
	logpkg "finboard/internal/log"
	"finboard/internal/middleware/ratelimit"
	"finboard/internal/middleware/security"
	"finboard/internal/middleware/trace"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

type Server struct {
	http.Server
	backend     *backend.Backend
	logger      *logpkg.Logger
	rateLimiter *ratelimit.Limiter
	detector    *security.Detector
	trace       *trace.Middleware
	stopOnce    sync.Once
}

// NewServer mounts the ledger routes over b. rpm <= 0 uses the limiter default.
func NewServer(addr string, b *backend.Backend, logger *logpkg.Logger, rpm int) *Server {
	if logger == nil {
		logger = logpkg.New(logpkg.DefaultConfig())
	}
	logger = logger.WithComponent(logpkg.ComponentAPI)

	s := &Server{
		backend:     b,
		logger:      logger,
		rateLimiter: ratelimit.NewLimiter(ratelimit.Config{RequestsPerMinute: rpm}),
		detector:    security.NewDetector(logger.WithComponent(logpkg.ComponentSecurity).Slog()),
	}
	s.trace = trace.NewMiddleware(logger, s.detector.ExtractClientIP)

	s.Server = http.Server{
		Addr:              addr,
		Handler:           s.routes(),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       120 * time.Second,
	}
	return s
}

func (s *Server) routes() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(s.trace.Middleware)
	r.Use(s.detector.Middleware)
	r.Use(security.NewHeadersMiddleware(security.APIHeadersConfig()).Middleware)
	r.Use(logpkg.Middleware(s.logger))
	r.Use(logpkg.RequestIDMiddleware(trace.RequestIDFromRequest))
	r.Use(s.rateLimiter.Middleware(s.detector.ExtractClientIP, s.onRateLimit))

	r.Get("/", s.handleRoot)
	r.Get("/healthz", s.handleHealth)

	r.Post("/signup/", s.handleSignup)
	r.Get("/users/me/", s.handleMe)

	r.Route("/transactions", func(r chi.Router) {
		r.Post("/", s.handleCreate)
		r.Get("/", s.handleList)
		r.Get("/monthly-expenses", s.handleMonthly)
		r.Get("/category-spending", s.handleCategorySpending)
		r.Get("/recent-spending", s.handleRecentSpending)
		r.Get("/user/{userID}", s.handleListByUser)
		r.Get("/{id}", s.handleGet)
		r.Put("/{id}", s.handleUpdate)
		r.Delete("/{id}", s.handleDelete)
	})
	return r
}

func (s *Server) onRateLimit(w http.ResponseWriter, r *http.Request) {
	writeDetail(w, http.StatusTooManyRequests, "Too many requests")
}

// Shutdown stops the limiter's janitor and drains connections.
func (s *Server) Shutdown(ctx context.Context) error {
	var err error
	s.stopOnce.Do(func() {
		s.rateLimiter.Stop()
		err = s.Server.Shutdown(ctx)
	})
	return err
}

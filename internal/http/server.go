package http

import (
	"context"
	"fmt"
	"html/template"
	"io/fs"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"finboard/internal/cache"
	"finboard/internal/core"
	"finboard/internal/dashboard"
	logpkg "finboard/internal/log"
	"finboard/internal/middleware/ratelimit"
	"finboard/internal/middleware/security"
	"finboard/internal/middleware/trace"
	appweb "finboard/web"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

// DashboardService is the part of dashboard.Service the handlers use.
type DashboardService interface {
	Load(ctx context.Context, email string, r core.TimeRange) (dashboard.State, error)
	Refresh(ctx context.Context, email string, r core.TimeRange) (dashboard.State, error)
	Create(ctx context.Context, email string, r core.TimeRange, d core.NewTransactionDraft) (dashboard.State, core.Transaction, error)
	Delete(ctx context.Context, email string, r core.TimeRange, id string) (dashboard.State, error)
}

// Pinger reports whether the ledger API is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

type Options struct {
	Addr         string
	Currency     string
	DefaultEmail string
	RateLimitRPM int
	Logger       *logpkg.Logger
	// Ledger is probed by /readyz; nil skips the check.
	Ledger Pinger
	// States is reported by /metrics and stopped on shutdown; optional.
	States       cache.Cache[dashboard.State]
	CacheManager *cache.Manager
}

type appMetrics struct {
	uptime        time.Time
	created       atomic.Int64
	deleted       atomic.Int64
	fetchFailures atomic.Int64
}

type Server struct {
	http.Server
	templates *template.Template
	dash      DashboardService
	ledger    Pinger
	states    cache.Cache[dashboard.State]
	cacheMgr  *cache.Manager

	logger           *logpkg.Logger
	events           *logpkg.StructuredLogger
	rateLimiter      *ratelimit.Limiter
	securityDetector *security.Detector
	traceMiddleware  *trace.Middleware
	appMetrics       *appMetrics

	currency     string
	defaultEmail string
	shutdownOnce sync.Once
}

// NewServer parses the embedded templates and mounts every route.
func NewServer(opts Options, dash DashboardService) (*Server, error) {
	if opts.Logger == nil {
		opts.Logger = logpkg.New(logpkg.DefaultConfig())
	}
	if opts.Currency == "" {
		opts.Currency = core.DefaultCurrencySymbol
	}
	logger := opts.Logger.WithComponent(logpkg.ComponentHTTP)

	s := &Server{
		dash:             dash,
		ledger:           opts.Ledger,
		states:           opts.States,
		cacheMgr:         opts.CacheManager,
		logger:           logger,
		events:           logpkg.NewStructuredLogger(logger),
		rateLimiter:      ratelimit.NewLimiter(ratelimit.Config{RequestsPerMinute: opts.RateLimitRPM}),
		securityDetector: security.NewDetector(logger.WithComponent(logpkg.ComponentSecurity).Slog()),
		appMetrics:       &appMetrics{uptime: time.Now()},
		currency:         opts.Currency,
		defaultEmail:     opts.DefaultEmail,
	}
	s.traceMiddleware = trace.NewMiddleware(opts.Logger, s.securityDetector.ExtractClientIP)

	t, err := template.New("").Funcs(s.templateFuncs()).ParseFS(appweb.TemplatesFS, "templates/*.html")
	if err != nil {
		return nil, fmt.Errorf("parse templates: %w", err)
	}
	s.templates = t

	s.Server = http.Server{
		Addr:              opts.Addr,
		Handler:           s.routes(),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       120 * time.Second,
	}
	return s, nil
}

func (s *Server) routes() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(s.traceMiddleware.Middleware)
	r.Use(s.securityDetector.Middleware)
	r.Use(security.NewHeadersMiddleware(security.DefaultHeadersConfig()).Middleware)
	r.Use(logpkg.Middleware(s.logger))
	r.Use(logpkg.RequestIDMiddleware(trace.RequestIDFromRequest))

	r.Get("/healthz", s.handleHealth)
	r.Get("/readyz", s.handleReady)
	r.Get("/metrics", s.handleMetrics)

	if sub, err := fs.Sub(appweb.StaticFS, "static"); err == nil {
		static := http.StripPrefix("/static/", http.FileServer(http.FS(sub)))
		r.With(security.StaticAssetMiddleware(3600)).Handle("/static/*", static)
	} else {
		s.logger.Warn("Failed to mount embedded static FS", logpkg.FieldError, err)
	}

	limited := s.rateLimiter.Middleware(s.securityDetector.ExtractClientIP, s.onRateLimit)

	r.Get("/", s.handleIndex)
	r.Get("/login", s.handleLoginPage)
	r.With(limited).Post("/login", s.handleLogin)
	r.Get("/signup", s.handleSignupPage)
	r.With(limited).Post("/signup", s.handleLogin)
	r.Post("/logout", s.handleLogout)

	r.Group(func(r chi.Router) {
		r.Use(security.NoStore)
		r.Use(logpkg.ComponentMiddleware(logpkg.ComponentDashboard))
		r.Get("/dashboard", s.handleDashboard)
		r.Get("/ui/dashboard", s.handleDashboardPartial)
		r.Get("/api/dashboard", s.handleDashboardJSON)

		r.Group(func(r chi.Router) {
			r.Use(limited)
			r.HandleFunc("/dashboard/transactions", s.handleCreateTransaction)
			r.HandleFunc("/dashboard/transactions/{id}", s.handleDeleteTransaction)
		})
	})

	return r
}

func (s *Server) onRateLimit(w http.ResponseWriter, r *http.Request) {
	s.logger.WarnContext(r.Context(), "Rate limit exceeded",
		logpkg.FieldClientIP, s.securityDetector.ExtractClientIP(r),
		logpkg.FieldMethod, r.Method,
		logpkg.FieldPath, r.URL.Path)
	ErrorResponse(http.StatusTooManyRequests, "Too many requests. Please try again shortly.").
		TriggerErrorNotification("Too many requests. Please wait a moment.").
		Write(w)
}

// Shutdown stops background goroutines and then the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	var err error
	s.shutdownOnce.Do(func() {
		s.rateLimiter.Stop()
		if s.cacheMgr != nil {
			s.cacheMgr.Stop()
		}
		err = s.Server.Shutdown(ctx)
	})
	return err
}

package http

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"finboard/internal/core"
	logpkg "finboard/internal/log"
)

const readyTimeout = 5 * time.Second

// handleHealth performs basic liveness check
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":    "ok",
		"timestamp": time.Now().Format(time.RFC3339),
		"uptime":    time.Since(s.appMetrics.uptime).String(),
	})
}

// handleReady reports not_ready when templates are missing or the ledger API
// cannot be reached.
func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), readyTimeout)
	defer cancel()

	status := "ready"
	httpStatus := http.StatusOK
	checks := make(map[string]any)

	if s.templates == nil {
		checks["templates"] = "failed: templates not loaded"
		status, httpStatus = "not_ready", http.StatusServiceUnavailable
	} else {
		checks["templates"] = "ok"
	}

	switch {
	case s.ledger == nil:
		checks["ledger_api"] = "not_configured"
	default:
		if err := s.ledger.Ping(ctx); err != nil {
			checks["ledger_api"] = fmt.Sprintf("failed: %v", err)
			status, httpStatus = "not_ready", http.StatusServiceUnavailable
		} else {
			checks["ledger_api"] = "ok"
		}
	}

	checks["rate_limiter"] = map[string]any{
		"active_clients": s.rateLimiter.ActiveClients(),
		"status":         "ok",
	}
	if s.states != nil {
		checks["cache"] = map[string]any{"dashboard_states": s.states.Size(), "status": "ok"}
	}

	writeJSON(w, httpStatus, map[string]any{
		"status":    status,
		"timestamp": time.Now().Format(time.RFC3339),
		"checks":    checks,
	})
}

// handleMetrics writes counters in the Prometheus text format.
func (s *Server) handleMetrics(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")

	securityMetrics := s.securityDetector.GetMetrics()
	rateLimitMetrics := s.rateLimiter.GetMetrics()
	traceMetrics := s.traceMiddleware.GetMetrics()
	states := 0
	if s.states != nil {
		states = s.states.Size()
	}

	w.WriteHeader(http.StatusOK)
	metric := func(name, kind, help string, value any) {
		fmt.Fprintf(w, "# HELP %s %s\n# TYPE %s %s\n%s %v\n\n", name, help, name, kind, name, value)
	}
	metric("http_requests_total", "counter", "Total number of HTTP requests", traceMetrics.TotalRequests)
	metric("http_response_time_avg_ms", "gauge", "Average response time in milliseconds", traceMetrics.AverageResponseTime.Milliseconds())
	metric("transactions_created_total", "counter", "Transactions created from the dashboard", s.appMetrics.created.Load())
	metric("transactions_deleted_total", "counter", "Transactions deleted from the dashboard", s.appMetrics.deleted.Load())
	metric("ledger_failures_total", "counter", "Dashboard requests that hit a ledger API failure", s.appMetrics.fetchFailures.Load())
	metric("dashboard_states", "gauge", "Cached dashboard states", states)
	metric("rate_limit_hits_total", "counter", "Total rate limit hits", rateLimitMetrics.TotalHits)
	metric("active_rate_limit_clients", "gauge", "Currently tracked rate limit clients", rateLimitMetrics.ClientCount)
	metric("suspicious_requests_total", "counter", "Total suspicious requests detected", securityMetrics.SuspiciousRequests)
	metric("blocked_requests_total", "counter", "Requests blocked by the detector", securityMetrics.BlockedRequests)
	metric("uptime_seconds", "gauge", "Application uptime in seconds", fmt.Sprintf("%.0f", time.Since(s.appMetrics.uptime).Seconds()))
}

// handleIndex renders the landing page.
func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	s.render(w, r, "index.html", http.StatusOK, struct {
		Email string
	}{Email: s.emailFromRequest(r)})
}

type authView struct {
	Email string
	Error string
}

func (s *Server) handleLoginPage(w http.ResponseWriter, r *http.Request) {
	s.render(w, r, "login.html", http.StatusOK, authView{Email: s.emailFromRequest(r)})
}

func (s *Server) handleSignupPage(w http.ResponseWriter, r *http.Request) {
	s.render(w, r, "signup.html", http.StatusOK, authView{})
}

// handleLogin remembers the submitted email and opens the dashboard. There is
// no password check; the signup form posts here as well.
func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	page := "login.html"
	if r.URL.Path == "/signup" {
		page = "signup.html"
	}
	if resp := ParseFormOrFail(r); resp != nil {
		resp.Write(w)
		return
	}

	email := sanitizeInput(r.PostForm.Get("email"))
	if err := core.ValidateEmail(email); err != nil {
		s.render(w, r, page, http.StatusUnprocessableEntity, authView{Email: email, Error: "Enter a valid email address"})
		return
	}

	rememberEmail(w, r, email)
	s.logger.InfoContext(r.Context(), "Dashboard email selected", logpkg.FieldEmail, email)
	http.Redirect(w, r, "/dashboard", http.StatusSeeOther)
}

func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	forgetEmail(w)
	http.Redirect(w, r, "/", http.StatusSeeOther)
}

// render executes name into a buffer so a template error still yields a
// clean 500 instead of a half-written page.
func (s *Server) render(w http.ResponseWriter, r *http.Request, name string, status int, data any) {
	var buf bytes.Buffer
	if err := s.templates.ExecuteTemplate(&buf, name, data); err != nil {
		s.logger.ErrorContext(r.Context(), "Template execution failed",
			logpkg.FieldComponent, logpkg.ComponentTemplate,
			logpkg.FieldOperation, logpkg.OpRender,
			"template", name,
			logpkg.FieldError, err)
		http.Error(w, "template error", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	_, _ = buf.WriteTo(w)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

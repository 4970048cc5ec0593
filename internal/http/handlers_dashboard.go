package http

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/url"
	"time"

	"finboard/internal/core"
	"finboard/internal/dashboard"
	"finboard/internal/ledger"
	logpkg "finboard/internal/log"

	"github.com/go-chi/chi/v5"
)

const (
	loadTimeout     = 15 * time.Second
	mutationTimeout = 20 * time.Second

	staleNotice = "Some data could not be refreshed. Showing the last loaded values."
)

type dashboardView struct {
	State      dashboard.State
	ChartsJSON string
	Notice     string
}

func (s *Server) newDashboardView(st dashboard.State, notice string) dashboardView {
	charts, err := json.Marshal(st.Charts)
	if err != nil {
		charts = []byte("{}")
	}
	if notice == "" && st.Failed() {
		notice = staleNotice
	}
	return dashboardView{State: st, ChartsJSON: string(charts), Notice: notice}
}

func isHTMX(r *http.Request) bool {
	return r.Header.Get("HX-Request") == "true"
}

func dashboardURL(rng core.TimeRange) string {
	return "/dashboard?" + url.Values{"range": {rng.String()}}.Encode()
}

// handleDashboard renders the full page. Without an email the visitor is sent
// to the login page.
func (s *Server) handleDashboard(w http.ResponseWriter, r *http.Request) {
	email := s.emailFromRequest(r)
	if email == "" {
		http.Redirect(w, r, "/login", http.StatusSeeOther)
		return
	}
	if r.URL.Query().Get("email") != "" {
		rememberEmail(w, r, email)
	}

	st, err := s.loadState(r, email, ParseRange(r.URL.Query()))
	if err != nil {
		http.Redirect(w, r, "/login", http.StatusSeeOther)
		return
	}
	s.render(w, r, "dashboard.html", http.StatusOK, s.newDashboardView(st, ""))
}

// handleDashboardPartial returns the swappable dashboard body, used by the
// range selector and the refresh button.
func (s *Server) handleDashboardPartial(w http.ResponseWriter, r *http.Request) {
	email := s.emailFromRequest(r)
	if email == "" {
		NewHTMXResponse().Header("HX-Redirect", "/login").Write(w)
		return
	}

	st, err := s.loadState(r, email, ParseRange(r.URL.Query()))
	if err != nil {
		BadRequestError("Email is required").Write(w)
		return
	}
	w.Header().Set("HX-Push-Url", dashboardURL(st.Range))
	s.render(w, r, "dashboard_content", http.StatusOK, s.newDashboardView(st, ""))
}

// handleDashboardJSON serves the same state to scripts and the CLI.
func (s *Server) handleDashboardJSON(w http.ResponseWriter, r *http.Request) {
	email := s.emailFromRequest(r)
	st, err := s.loadState(r, email, ParseRange(r.URL.Query()))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"detail": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, st)
}

// loadState serves from the cache unless refresh=1 asks for a re-fetch.
func (s *Server) loadState(r *http.Request, email string, rng core.TimeRange) (dashboard.State, error) {
	ctx, cancel := context.WithTimeout(r.Context(), loadTimeout)
	defer cancel()

	var (
		st  dashboard.State
		err error
	)
	if r.URL.Query().Get("refresh") == "1" {
		st, err = s.dash.Refresh(ctx, email, rng)
	} else {
		st, err = s.dash.Load(ctx, email, rng)
	}
	if err == nil && st.Failed() {
		s.appMetrics.fetchFailures.Add(1)
	}
	return st, err
}

func (s *Server) handleCreateTransaction(w http.ResponseWriter, r *http.Request) {
	if resp := RequirePOST(r); resp != nil {
		resp.Write(w)
		return
	}

	p := NewRequestBodyParser(r)
	draft, parseErr := ParseDraft(p)
	email := p.Get("email")
	if email == "" {
		email = s.emailFromRequest(r)
	}
	rng := ParseRange(r.URL.Query())
	if v := p.Get("range"); v != "" {
		rng, _ = core.ParseTimeRange(v)
	}
	if parseErr != nil {
		s.mutationError(w, r, dashboard.State{}, email, rng, parseErr)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), mutationTimeout)
	defer cancel()

	st, tx, err := s.dash.Create(ctx, email, rng, draft)
	if err != nil {
		s.mutationError(w, r, st, email, rng, err)
		return
	}

	s.appMetrics.created.Add(1)
	s.events.LogTransactionCreated(ctx, email, tx.ID, tx.Description, tx.Amount)

	resp := NewHTMXResponse().
		TriggerTransactionCreated(tx.ID).
		TriggerFormReset().
		TriggerSuccessNotification("Transaction added")
	s.writeDashboard(w, r, st, resp)
}

func (s *Server) handleDeleteTransaction(w http.ResponseWriter, r *http.Request) {
	if resp := RequireDeleteOrPOST(r); resp != nil {
		resp.Write(w)
		return
	}
	if resp := ParseFormOrFail(r); resp != nil {
		resp.Write(w)
		return
	}

	id := chi.URLParam(r, "id")
	email := s.emailFromRequest(r)
	rng := ParseRange(r.Form)

	ctx, cancel := context.WithTimeout(r.Context(), mutationTimeout)
	defer cancel()

	st, err := s.dash.Delete(ctx, email, rng, id)
	if err != nil {
		s.mutationError(w, r, st, email, rng, err)
		return
	}

	s.appMetrics.deleted.Add(1)
	s.events.LogTransactionDeleted(ctx, email, id)

	resp := NewHTMXResponse().
		TriggerTransactionDeleted(id).
		TriggerSuccessNotification("Transaction deleted")
	s.writeDashboard(w, r, st, resp)
}

// writeDashboard answers a successful mutation. HTMX gets the refreshed body
// with its triggers; plain form posts are redirected back to the page.
func (s *Server) writeDashboard(w http.ResponseWriter, r *http.Request, st dashboard.State, resp *HTMXResponseBuilder) {
	if !isHTMX(r) {
		http.Redirect(w, r, dashboardURL(st.Range), http.StatusSeeOther)
		return
	}
	if st.Failed() {
		s.appMetrics.fetchFailures.Add(1)
		resp.TriggerWarningNotification("Saved, but " + staleNotice)
	}

	var buf bytes.Buffer
	if err := s.templates.ExecuteTemplate(&buf, "dashboard_content", s.newDashboardView(st, "")); err != nil {
		s.logger.ErrorContext(r.Context(), "Dashboard template failed", logpkg.FieldError, err)
		InternalServerError("Could not render the dashboard").Write(w)
		return
	}
	resp.BodyHTML(buf.String()).Write(w)
}

// mutationError keeps the dashboard as it was and reports err to the user.
func (s *Server) mutationError(w http.ResponseWriter, r *http.Request, st dashboard.State, email string, rng core.TimeRange, err error) {
	status, msg := mutationStatus(err)
	if status >= http.StatusInternalServerError {
		s.appMetrics.fetchFailures.Add(1)
	}
	s.logger.WarnContext(r.Context(), "Dashboard mutation rejected",
		logpkg.FieldEmail, email,
		logpkg.FieldStatusCode, status,
		logpkg.FieldError, err)

	if isHTMX(r) {
		ErrorResponse(status, msg).TriggerErrorNotification(msg).Write(w)
		return
	}
	if st.Email == "" && email != "" {
		st, _ = s.loadState(r, email, rng)
	}
	s.render(w, r, "dashboard.html", status, s.newDashboardView(st, msg))
}

var draftErrors = []error{
	core.ErrEmptyDescription, core.ErrDescriptionTooLong, core.ErrInvalidAmount,
	core.ErrInvalidDate, core.ErrFutureDate,
}

func mutationStatus(err error) (int, string) {
	var fe *FieldError
	for _, target := range draftErrors {
		if errors.Is(err, target) {
			return http.StatusUnprocessableEntity, draftMessage(err)
		}
	}
	switch {
	case errors.As(err, &fe):
		return http.StatusUnprocessableEntity, draftMessage(err)
	case errors.Is(err, dashboard.ErrNoEmail):
		return http.StatusBadRequest, "Sign in with your email first"
	case errors.Is(err, ledger.ErrInvalidID):
		return http.StatusBadRequest, "Invalid transaction ID"
	case errors.Is(err, ledger.ErrForbidden):
		return http.StatusForbidden, "That transaction belongs to another account"
	case errors.Is(err, ledger.ErrNotFound):
		return http.StatusNotFound, "Transaction not found"
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout, "The ledger service timed out. Nothing was changed."
	case errors.Is(err, errMalformedBody):
		return http.StatusBadRequest, "Invalid request format"
	default:
		return http.StatusBadGateway, "The ledger service is unavailable. Showing the last loaded data."
	}
}

package apiserver

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"finboard/internal/core"
	"finboard/internal/ledger"
	logpkg "finboard/internal/log"
	"finboard/internal/services"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"
)

const (
	maxBodyBytes = 64 << 10
	pingTimeout  = 3 * time.Second
)

var errMissingEmail = errors.New("email query parameter is required")

// transactionBody is accepted by create and update.
type transactionBody struct {
	Description string          `json:"description"`
	Amount      decimal.Decimal `json:"amount"`
	Date        core.Date       `json:"date"`
	Category    *string         `json:"category,omitempty"`
}

func (b transactionBody) input() services.Input {
	var category *string
	if b.Category != nil && strings.TrimSpace(*b.Category) != "" {
		c := strings.TrimSpace(*b.Category)
		category = &c
	}
	return services.Input{
		Draft: core.NewTransactionDraft{
			Description: strings.TrimSpace(b.Description),
			Amount:      b.Amount,
			Date:        b.Date,
		},
		Category: category,
	}
}

func (s *Server) handleRoot(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"message": "finboard ledger API"})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	status, code := "ok", http.StatusOK
	if s.backend.Ping != nil {
		ctx, cancel := context.WithTimeout(r.Context(), pingTimeout)
		defer cancel()
		if err := s.backend.Ping(ctx); err != nil {
			s.logger.WarnContext(ctx, "Storage ping failed", logpkg.FieldError, err)
			status, code = "degraded", http.StatusServiceUnavailable
		}
	}
	writeJSON(w, code, map[string]string{"status": status})
}

func (s *Server) handleSignup(w http.ResponseWriter, r *http.Request) {
	var req services.SignupRequest
	if !decodeBody(w, r, &req) {
		return
	}
	u, err := s.backend.Users.Signup(r.Context(), req)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	s.logger.InfoContext(r.Context(), "User registered", logpkg.FieldEmail, u.Email)
	writeJSON(w, http.StatusOK, u)
}

func (s *Server) handleMe(w http.ResponseWriter, r *http.Request) {
	email, ok := requireEmail(w, r)
	if !ok {
		return
	}
	u, err := s.backend.Transactions.User(r.Context(), email)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, u)
}

func (s *Server) handleCreate(w http.ResponseWriter, r *http.Request) {
	email, ok := requireEmail(w, r)
	if !ok {
		return
	}
	var body transactionBody
	if !decodeBody(w, r, &body) {
		return
	}
	tx, err := s.backend.Transactions.Create(r.Context(), email, body.input())
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, tx)
}

func (s *Server) handleList(w http.ResponseWriter, r *http.Request) {
	email, ok := requireEmail(w, r)
	if !ok {
		return
	}
	txs, err := s.backend.Transactions.List(r.Context(), email)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, nonNil(txs))
}

func (s *Server) handleGet(w http.ResponseWriter, r *http.Request) {
	email, ok := requireEmail(w, r)
	if !ok {
		return
	}
	tx, err := s.backend.Transactions.Get(r.Context(), email, chi.URLParam(r, "id"))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, tx)
}

func (s *Server) handleUpdate(w http.ResponseWriter, r *http.Request) {
	email, ok := requireEmail(w, r)
	if !ok {
		return
	}
	var body transactionBody
	if !decodeBody(w, r, &body) {
		return
	}
	tx, err := s.backend.Transactions.Update(r.Context(), email, chi.URLParam(r, "id"), body.input())
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, tx)
}

func (s *Server) handleDelete(w http.ResponseWriter, r *http.Request) {
	email, ok := requireEmail(w, r)
	if !ok {
		return
	}
	if err := s.backend.Transactions.Delete(r.Context(), email, chi.URLParam(r, "id")); err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": "Transaction deleted successfully"})
}

func (s *Server) handleMonthly(w http.ResponseWriter, r *http.Request) {
	email, ok := requireEmail(w, r)
	if !ok {
		return
	}
	out, err := s.backend.Transactions.Monthly(r.Context(), email)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleCategorySpending(w http.ResponseWriter, r *http.Request) {
	email, ok := requireEmail(w, r)
	if !ok {
		return
	}
	out, err := s.backend.Transactions.CategorySpending(r.Context(), email)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleRecentSpending(w http.ResponseWriter, r *http.Request) {
	email, ok := requireEmail(w, r)
	if !ok {
		return
	}
	days := 0
	if v := r.URL.Query().Get("days"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			writeDetail(w, http.StatusUnprocessableEntity, "days must be a positive integer")
			return
		}
		days = n
	}
	out, err := s.backend.Transactions.RecentSpending(r.Context(), email, days)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleListByUser(w http.ResponseWriter, r *http.Request) {
	txs, err := s.backend.Transactions.ListByUserID(r.Context(), chi.URLParam(r, "userID"))
	if err != nil {
		if errors.Is(err, ledger.ErrInvalidID) {
			writeDetail(w, http.StatusBadRequest, "Invalid user ID")
			return
		}
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, nonNil(txs))
}

// fail maps service errors onto status codes with a {"detail": ...} body.
func (s *Server) fail(w http.ResponseWriter, r *http.Request, err error) {
	status, detail := statusFor(err)
	if status >= http.StatusInternalServerError {
		s.logger.ErrorContext(r.Context(), "Ledger request failed",
			logpkg.FieldMethod, r.Method,
			logpkg.FieldPath, r.URL.Path,
			logpkg.FieldError, err)
	}
	writeDetail(w, status, detail)
}

func statusFor(err error) (int, string) {
	switch {
	case errors.Is(err, ledger.ErrUserNotFound):
		return http.StatusNotFound, "User not found"
	case errors.Is(err, ledger.ErrTransactionNotFound), errors.Is(err, ledger.ErrNotFound):
		return http.StatusNotFound, "Transaction not found"
	case errors.Is(err, ledger.ErrInvalidID):
		return http.StatusBadRequest, "Invalid transaction ID"
	case errors.Is(err, ledger.ErrForbidden):
		return http.StatusForbidden, "Not authorized to access this transaction"
	case errors.Is(err, ledger.ErrEmailTaken):
		return http.StatusBadRequest, "Email already registered"
	case services.IsValidation(err):
		return http.StatusUnprocessableEntity, err.Error()
	default:
		return http.StatusInternalServerError, "Internal server error"
	}
}

func requireEmail(w http.ResponseWriter, r *http.Request) (string, bool) {
	email := strings.TrimSpace(r.URL.Query().Get("email"))
	if email == "" {
		writeDetail(w, http.StatusUnprocessableEntity, errMissingEmail.Error())
		return "", false
	}
	return email, true
}

func decodeBody(w http.ResponseWriter, r *http.Request, v any) bool {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err := dec.Decode(v); err != nil {
		writeDetail(w, http.StatusUnprocessableEntity, "Invalid request body")
		return false
	}
	return true
}

func nonNil(txs []core.Transaction) []core.Transaction {
	if txs == nil {
		return []core.Transaction{}
	}
	return txs
}

func writeDetail(w http.ResponseWriter, status int, detail string) {
	writeJSON(w, status, map[string]string{"detail": detail})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

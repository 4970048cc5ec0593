// Package remote is the HTTP client for the ledger API consumed by the dashboard.
package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"finboard/internal/core"
	"finboard/internal/ledger"
	applog "finboard/internal/log"
)

const (
	defaultTimeout = 10 * time.Second
	baseBackoff    = 200 * time.Millisecond
	maxBackoff     = 2 * time.Second
	maxErrorBody   = 4 << 10
)

// Config configures the ledger API client.
type Config struct {
	BaseURL string
	Timeout time.Duration
	// Retries is how many extra attempts an idempotent GET gets. Writes are never retried.
	Retries    int
	HTTPClient *http.Client
	Logger     *slog.Logger
}

// Client talks to the ledger API over HTTP. Every request carries the
// user email as the email query parameter.
type Client struct {
	base    *url.URL
	http    *http.Client
	retries int
	backoff time.Duration
	logger  *slog.Logger
}

var _ ledger.API = (*Client)(nil)

// New validates cfg.BaseURL and returns a client. Zero values fall back
// to the package defaults.
func New(cfg Config) (*Client, error) {
	base, err := url.Parse(strings.TrimRight(cfg.BaseURL, "/"))
	if err != nil || base.Scheme == "" || base.Host == "" {
		return nil, fmt.Errorf("invalid ledger API URL %q", cfg.BaseURL)
	}
	hc := cfg.HTTPClient
	if hc == nil {
		timeout := cfg.Timeout
		if timeout <= 0 {
			timeout = defaultTimeout
		}
		hc = &http.Client{Timeout: timeout}
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	retries := cfg.Retries
	if retries < 0 {
		retries = 0
	}
	return &Client{
		base:    base,
		http:    hc,
		retries: retries,
		backoff: baseBackoff,
		logger:  logger.With(applog.FieldComponent, applog.ComponentRemote),
	}, nil
}

// StatusError is returned for non-2xx responses.
type StatusError struct {
	Method     string
	Path       string
	StatusCode int
	Detail     string
}

func (e *StatusError) Error() string {
	if e.Detail != "" {
		return fmt.Sprintf("%s %s: %d %s", e.Method, e.Path, e.StatusCode, e.Detail)
	}
	return fmt.Sprintf("%s %s: %d %s", e.Method, e.Path, e.StatusCode, http.StatusText(e.StatusCode))
}

// Unwrap maps status codes onto the ledger sentinel errors.
func (e *StatusError) Unwrap() error {
	switch e.StatusCode {
	case http.StatusNotFound:
		return ledger.ErrNotFound
	case http.StatusForbidden:
		return ledger.ErrForbidden
	default:
		return nil
	}
}

// Temporary reports whether retrying the same request may succeed.
func (e *StatusError) Temporary() bool {
	return e.StatusCode >= 500 || e.StatusCode == http.StatusTooManyRequests
}

// GetUser returns the profile of the user identified by email.
func (c *Client) GetUser(ctx context.Context, email string) (core.UserProfile, error) {
	var u core.UserProfile
	err := c.get(ctx, "/users/me/", email, &u)
	return u, err
}

// ListTransactions returns every transaction owned by email.
func (c *Client) ListTransactions(ctx context.Context, email string) ([]core.Transaction, error) {
	var txs []core.Transaction
	if err := c.get(ctx, "/transactions/", email, &txs); err != nil {
		return nil, err
	}
	return txs, nil
}

// MonthlyExpenses returns the per-month expense totals computed by the ledger.
func (c *Client) MonthlyExpenses(ctx context.Context, email string) ([]core.MonthlyExpenseEntry, error) {
	var entries []core.MonthlyExpenseEntry
	if err := c.get(ctx, "/transactions/monthly-expenses", email, &entries); err != nil {
		return nil, err
	}
	return entries, nil
}

// CreateTransaction posts d and returns the stored transaction. It is not retried.
func (c *Client) CreateTransaction(ctx context.Context, email string, d core.NewTransactionDraft) (core.Transaction, error) {
	body, err := json.Marshal(d)
	if err != nil {
		return core.Transaction{}, fmt.Errorf("encode transaction: %w", err)
	}
	var tx core.Transaction
	if err := c.do(ctx, http.MethodPost, "/transactions/", email, body, &tx); err != nil {
		return core.Transaction{}, err
	}
	return tx, nil
}

// DeleteTransaction removes id. An empty id fails with ledger.ErrInvalidID
// without a request.
func (c *Client) DeleteTransaction(ctx context.Context, email, id string) error {
	if strings.TrimSpace(id) == "" {
		return ledger.ErrInvalidID
	}
	return c.do(ctx, http.MethodDelete, "/transactions/"+url.PathEscape(id), email, nil, nil)
}

// Ping checks that the API answers at all. Any HTTP response counts.
func (c *Client) Ping(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.base.String()+"/", nil)
	if err != nil {
		return err
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("ledger API unreachable: %w", err)
	}
	resp.Body.Close()
	return nil
}

func (c *Client) get(ctx context.Context, path, email string, out any) error {
	var err error
	for attempt := 0; attempt <= c.retries; attempt++ {
		if attempt > 0 {
			if werr := c.wait(ctx, attempt); werr != nil {
				return err
			}
			c.logger.WarnContext(ctx, "Retrying ledger request",
				applog.FieldPath, path,
				applog.FieldAttempt, attempt,
				applog.FieldError, err)
		}
		err = c.do(ctx, http.MethodGet, path, email, nil, out)
		if err == nil || !retryable(err) {
			return err
		}
	}
	return err
}

func (c *Client) wait(ctx context.Context, attempt int) error {
	d := c.backoff << (attempt - 1)
	if d > maxBackoff || d <= 0 {
		d = maxBackoff
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

func retryable(err error) bool {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	var se *StatusError
	if errors.As(err, &se) {
		return se.Temporary()
	}
	var de *decodeError
	return !errors.As(err, &de)
}

type decodeError struct{ err error }

func (e *decodeError) Error() string { return "decode response: " + e.err.Error() }
func (e *decodeError) Unwrap() error { return e.err }

func (c *Client) do(ctx context.Context, method, path, email string, body []byte, out any) error {
	q := url.Values{}
	q.Set("email", email)
	target := c.base.String() + path + "?" + q.Encode()

	var rdr io.Reader
	if body != nil {
		rdr = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, target, rdr)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	c.logger.DebugContext(ctx, "Ledger request completed",
		applog.FieldMethod, method,
		applog.FieldPath, path,
		applog.FieldStatusCode, resp.StatusCode,
		applog.FieldDuration, time.Since(start).Milliseconds())

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return &StatusError{Method: method, Path: path, StatusCode: resp.StatusCode, Detail: readDetail(resp.Body)}
	}
	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return &decodeError{err: err}
	}
	return nil
}

// readDetail extracts {"detail": "..."} from an error body, or the raw text.
func readDetail(r io.Reader) string {
	raw, _ := io.ReadAll(io.LimitReader(r, maxErrorBody))
	var payload struct {
		Detail any `json:"detail"`
	}
	if err := json.Unmarshal(raw, &payload); err == nil && payload.Detail != nil {
		if s, ok := payload.Detail.(string); ok {
			return s
		}
		b, _ := json.Marshal(payload.Detail)
		return string(b)
	}
	return strings.TrimSpace(string(raw))
}

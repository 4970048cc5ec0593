// This file parses dashboard form and query input. Free text is passed
// through a strict HTML sanitizer before it reaches the ledger API.
package http

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"finboard/internal/core"

	"github.com/microcosm-cc/bluemonday"
)

// maxBodyBytes bounds form and JSON bodies accepted by the dashboard.
const maxBodyBytes = 64 << 10

var textPolicy = bluemonday.StrictPolicy()

var errMalformedBody = errors.New("malformed request body")

// sanitizeInput strips markup and control characters and trims whitespace.
func sanitizeInput(s string) string {
	s = strings.Map(func(r rune) rune {
		if r < 32 && r != '\t' && r != '\n' && r != '\r' {
			return -1
		}
		return r
	}, s)
	return strings.TrimSpace(unescapeEntities(textPolicy.Sanitize(s)))
}

// unescapeEntities undoes the entity escaping bluemonday applies to plain
// text; templates escape again on output.
func unescapeEntities(s string) string {
	return strings.NewReplacer("&amp;", "&", "&lt;", "<", "&gt;", ">", "&#34;", `"`, "&#39;", "'").Replace(s)
}

// RequestBodyParser reads a JSON or form-encoded body once.
type RequestBodyParser struct {
	body        []byte
	contentType string
	jsonData    map[string]any
	formData    url.Values
	parsed      bool
	err         error
}

func NewRequestBodyParser(r *http.Request) *RequestBodyParser {
	p := &RequestBodyParser{
		contentType: r.Header.Get("Content-Type"),
	}
	if r.Body != nil {
		p.body, p.err = io.ReadAll(io.LimitReader(r.Body, maxBodyBytes))
	}
	return p
}

// Parse detects JSON by its first byte and falls back to form decoding.
func (p *RequestBodyParser) Parse() error {
	if p.parsed {
		return p.err
	}
	p.parsed = true

	if p.err != nil {
		return p.err
	}

	if len(p.body) == 0 {
		p.formData = url.Values{}
		return nil
	}

	if p.body[0] == '{' {
		p.jsonData = make(map[string]any)
		if err := json.Unmarshal(p.body, &p.jsonData); err != nil {
			p.err = err
			return err
		}
		return nil
	}

	p.formData, p.err = url.ParseQuery(string(p.body))
	return p.err
}

// Get returns the sanitized value for key, or "".
func (p *RequestBodyParser) Get(key string) string {
	if p.jsonData != nil {
		if val, ok := p.jsonData[key]; ok {
			return sanitizeInput(stringValue(val))
		}
		return ""
	}
	if p.formData != nil {
		return sanitizeInput(p.formData.Get(key))
	}
	return ""
}

func (p *RequestBodyParser) IsJSON() bool {
	return p.jsonData != nil
}

func stringValue(v any) string {
	switch val := v.(type) {
	case string:
		return val
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64)
	case json.Number:
		return val.String()
	case bool:
		return strconv.FormatBool(val)
	default:
		return ""
	}
}

// FieldError names the form field a validation error belongs to.
type FieldError struct {
	Field string
	Err   error
}

func (e *FieldError) Error() string { return fmt.Sprintf("%s: %v", e.Field, e.Err) }
func (e *FieldError) Unwrap() error { return e.Err }

// ParseDraft reads the creation form fields description, amount and date.
func ParseDraft(p *RequestBodyParser) (core.NewTransactionDraft, error) {
	if err := p.Parse(); err != nil {
		return core.NewTransactionDraft{}, fmt.Errorf("%w: %v", errMalformedBody, err)
	}

	d := core.NewTransactionDraft{Description: p.Get("description")}

	amount, err := core.ParseAmount(p.Get("amount"))
	if err != nil {
		return d, &FieldError{Field: "amount", Err: err}
	}
	d.Amount = amount

	date, err := core.ParseDate(p.Get("date"))
	if err != nil {
		return d, &FieldError{Field: "date", Err: core.ErrInvalidDate}
	}
	d.Date = date

	return d, nil
}

// ParseRange reads the range query parameter. Unknown values fall back to all.
func ParseRange(query url.Values) core.TimeRange {
	r, _ := core.ParseTimeRange(query.Get("range"))
	return r
}

// draftMessage turns a draft validation error into text for the user.
func draftMessage(err error) string {
	var fe *FieldError
	switch {
	case errors.Is(err, core.ErrEmptyDescription):
		return "Description is required"
	case errors.Is(err, core.ErrDescriptionTooLong):
		return fmt.Sprintf("Description must be at most %d characters", core.MaxDescriptionLength)
	case errors.Is(err, core.ErrInvalidAmount):
		return "Enter a non-zero amount, e.g. -124.50"
	case errors.Is(err, core.ErrFutureDate):
		return "Date cannot be in the future"
	case errors.Is(err, core.ErrInvalidDate):
		return "Enter a valid date"
	case errors.As(err, &fe):
		return "Invalid " + fe.Field
	default:
		return "Invalid request"
	}
}

// RequireMethod returns a 405 response when r.Method is not in methods.
func RequireMethod(r *http.Request, methods ...string) *HTMXResponseBuilder {
	for _, m := range methods {
		if r.Method == m {
			return nil
		}
	}
	return MethodNotAllowedError(strings.Join(methods, ", "))
}

func RequirePOST(r *http.Request) *HTMXResponseBuilder {
	return RequireMethod(r, http.MethodPost)
}

// RequireDeleteOrPOST allows POST for browsers without HTMX.
func RequireDeleteOrPOST(r *http.Request) *HTMXResponseBuilder {
	return RequireMethod(r, http.MethodDelete, http.MethodPost)
}

func ParseFormOrFail(r *http.Request) *HTMXResponseBuilder {
	if r.Body != nil {
		r.Body = http.MaxBytesReader(nil, r.Body, maxBodyBytes)
	}
	if err := r.ParseForm(); err != nil {
		return BadRequestError("Invalid request format")
	}
	return nil
}

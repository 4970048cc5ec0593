package http

import (
	"html/template"
	"net/http"
	"strings"
	"time"

	"finboard/internal/core"

	"github.com/shopspring/decimal"
)

// emailCookie remembers the address entered on the login page. It is a
// convenience for the dashboard URLs, not a session.
const emailCookie = "finboard_email"

// emailFromRequest picks the user from the query, the form, the cookie or
// the configured default, in that order.
func (s *Server) emailFromRequest(r *http.Request) string {
	if e := strings.TrimSpace(r.URL.Query().Get("email")); e != "" {
		return e
	}
	if r.Form != nil {
		if e := strings.TrimSpace(r.Form.Get("email")); e != "" {
			return e
		}
	}
	if c, err := r.Cookie(emailCookie); err == nil && strings.TrimSpace(c.Value) != "" {
		return strings.TrimSpace(c.Value)
	}
	return s.defaultEmail
}

func rememberEmail(w http.ResponseWriter, r *http.Request, email string) {
	http.SetCookie(w, &http.Cookie{
		Name:     emailCookie,
		Value:    email,
		Path:     "/",
		MaxAge:   int((30 * 24 * time.Hour).Seconds()),
		HttpOnly: true,
		Secure:   r.TLS != nil,
		SameSite: http.SameSiteLaxMode,
	})
}

func forgetEmail(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{Name: emailCookie, Value: "", Path: "/", MaxAge: -1})
}

// templateFuncs are available to every dashboard template.
func (s *Server) templateFuncs() template.FuncMap {
	return template.FuncMap{
		"money": func(d decimal.Decimal) string {
			return core.FormatAmount(d, s.currency)
		},
		// amountClass colours income and expense rows.
		"amountClass": func(d decimal.Decimal) string {
			switch {
			case d.IsNegative():
				return "amount amount--expense"
			case d.IsPositive():
				return "amount amount--income"
			default:
				return "amount"
			}
		},
		"day": func(d core.Date) string {
			return d.Format("Jan 2, 2006")
		},
		"ranges":   core.TimeRanges,
		"today":    func() string { return time.Now().Format(core.DayLayout) },
		"maxDesc":  func() int { return core.MaxDescriptionLength },
		"currency": func() string { return s.currency },
	}
}

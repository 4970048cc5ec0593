// Package dashboard keeps one immutable State per user and refreshes it
// from the ledger API.
package dashboard

import (
	"errors"
	"fmt"
	"time"

	"finboard/internal/aggregate"
	"finboard/internal/chart"
	"finboard/internal/core"
)

// Sources a fetch or mutation error can come from.
const (
	SourceProfile      = "profile"
	SourceTransactions = "transactions"
	SourceMonthly      = "monthly"
	SourceCreate       = "create"
	SourceDelete       = "delete"
)

// FetchError records a failed remote call. The state it is attached to
// still carries the last good data for that source.
type FetchError struct {
	Source string `json:"source"`
	Err    error  `json:"-"`
}

func (e FetchError) Error() string {
	return fmt.Sprintf("%s: %v", e.Source, e.Err)
}

func (e FetchError) Unwrap() error { return e.Err }

func (e FetchError) MarshalJSON() ([]byte, error) {
	return fmt.Appendf(nil, `{"source":%q,"message":%q}`, e.Source, e.Err.Error()), nil
}

// State is replaced wholesale on every update and never modified in place.
type State struct {
	Email        string                     `json:"email"`
	UserName     string                     `json:"userName"`
	Range        core.TimeRange             `json:"range"`
	All          []core.Transaction         `json:"-"`
	Transactions []core.Transaction         `json:"transactions"`
	Stats        core.SummaryStats          `json:"stats"`
	Monthly      []core.MonthlyExpenseEntry `json:"monthly"`
	Charts       chart.Bundle               `json:"charts"`
	Generation   uint64                     `json:"generation"`
	RefreshedAt  time.Time                  `json:"refreshedAt"`
	Errors       []FetchError               `json:"errors,omitempty"`

	// invalidated marks a placeholder left by Service.Invalidate.
	invalidated bool
}

// Derive returns a copy of s filtered to r. All and Monthly are shared.
func (s State) Derive(r core.TimeRange, now time.Time, p *chart.Projector) State {
	if !r.IsValid() {
		r = core.RangeAll
	}
	next := s
	next.Range = r
	next.Transactions, next.Stats = aggregate.FilterAndSummarize(s.All, r, now)
	next.Charts = p.Project(next.Transactions, s.Monthly, now)
	return next
}

// Failed reports whether any remote call behind this state failed.
func (s State) Failed() bool { return len(s.Errors) > 0 }

// Err joins the recorded failures, or returns nil.
func (s State) Err() error {
	if len(s.Errors) == 0 {
		return nil
	}
	errs := make([]error, len(s.Errors))
	for i, e := range s.Errors {
		errs[i] = e
	}
	return errors.Join(errs...)
}

// loadFailed reports a state holding no transactions because its fetch failed.
func (s State) loadFailed() bool {
	return len(s.All) == 0 && s.Failed()
}

// Empty reports a successful load with nothing to show, as opposed to a failure.
func (s State) Empty() bool {
	return len(s.All) == 0 && !s.Failed()
}

func (s State) withError(source string, err error) State {
	next := s
	next.Errors = append(append([]FetchError(nil), s.Errors...), FetchError{Source: source, Err: err})
	return next
}

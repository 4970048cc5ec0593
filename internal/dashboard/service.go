package dashboard

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"sync/atomic"
	"time"

	"finboard/internal/amqp"
	"finboard/internal/cache"
	"finboard/internal/chart"
	"finboard/internal/core"
	"finboard/internal/ledger"
	logpkg "finboard/internal/log"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"
)

var ErrNoEmail = errors.New("email is required")

// setRangeAttempts bounds how often SetRange retries before falling back to a fetch.
const setRangeAttempts = 3

// Service loads and mutates dashboard states. Every successful mutation is
// followed by a full re-fetch; states are never patched locally.
type Service struct {
	api       ledger.API
	states    cache.Cache[State]
	projector *chart.Projector
	profiles  singleflight.Group
	gen       atomic.Uint64
	logger    *slog.Logger
	now       func() time.Time
}

// Option configures a Service.
type Option func(*Service)

func WithLogger(l *slog.Logger) Option {
	return func(s *Service) { s.logger = l }
}

func WithProjector(p *chart.Projector) Option {
	return func(s *Service) { s.projector = p }
}

func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// NewService returns a dashboard service reading from api and keeping
// per-user states in states.
func NewService(api ledger.API, states cache.Cache[State], opts ...Option) *Service {
	s := &Service{
		api:       api,
		states:    states,
		projector: chart.NewProjector(nil),
		logger:    slog.Default(),
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func key(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// Current returns the cached state for email without fetching. An
// invalidated entry counts as missing.
func (s *Service) Current(email string) (State, bool) {
	st, ok := s.states.Get(key(email))
	if !ok || st.invalidated {
		return State{}, false
	}
	return st, true
}

// Invalidate makes the next Load fetch again. It leaves a marker carrying a
// fresh generation, so fetches that started before the call cannot store
// their results.
func (s *Service) Invalidate(email string) {
	k := key(email)
	if k == "" {
		return
	}
	s.states.Set(k, State{Email: email, Generation: s.gen.Add(1), invalidated: true})
}

// HandleChange invalidates the affected user's state on a ledger change event.
func (s *Service) HandleChange(ev *amqp.ChangeEvent) error {
	if ev.Email == "" {
		return nil
	}
	s.logger.Debug("Ledger changed, dropping dashboard state",
		logpkg.FieldEmail, ev.Email, "type", ev.Type)
	s.Invalidate(ev.Email)
	return nil
}

// Load returns the cached state for email in range r, fetching on a miss.
func (s *Service) Load(ctx context.Context, email string, r core.TimeRange) (State, error) {
	if key(email) == "" {
		return State{}, ErrNoEmail
	}
	if cur, ok := s.Current(email); ok && !cur.loadFailed() {
		if cur.Range == r {
			return cur, nil
		}
		return s.SetRange(ctx, email, r)
	}
	return s.Refresh(ctx, email, r)
}

// SetRange re-filters the last fetched transactions to r.
func (s *Service) SetRange(ctx context.Context, email string, r core.TimeRange) (State, error) {
	k := key(email)
	if k == "" {
		return State{}, ErrNoEmail
	}
	for attempt := 0; attempt < setRangeAttempts; attempt++ {
		cur, ok := s.Current(k)
		if !ok {
			break
		}
		next := cur.Derive(r, s.now(), s.projector)
		stored := s.states.SetIf(k, next, func(c State, found bool) bool {
			return found && c.Generation == cur.Generation
		})
		if stored {
			return next, nil
		}
	}
	return s.Refresh(ctx, email, r)
}

// Refresh fetches profile, transactions and monthly totals concurrently and
// stores the result unless a newer refresh already landed. A failed call
// keeps the previous data for its source and is recorded in State.Errors.
func (s *Service) Refresh(ctx context.Context, email string, r core.TimeRange) (State, error) {
	k := key(email)
	if k == "" {
		return State{}, ErrNoEmail
	}
	gen := s.gen.Add(1)
	prev, _ := s.Current(k)

	var (
		profile         core.UserProfile
		txs             []core.Transaction
		monthly         []core.MonthlyExpenseEntry
		errProfile      error
		errTransactions error
		errMonthly      error
		g               errgroup.Group
	)
	g.Go(func() error {
		v, err, _ := s.profiles.Do(k, func() (any, error) {
			return s.api.GetUser(ctx, email)
		})
		if err == nil {
			profile = v.(core.UserProfile)
		}
		errProfile = err
		return nil
	})
	g.Go(func() error {
		txs, errTransactions = s.api.ListTransactions(ctx, email)
		return nil
	})
	g.Go(func() error {
		monthly, errMonthly = s.api.MonthlyExpenses(ctx, email)
		return nil
	})
	_ = g.Wait()

	next := State{Email: email, UserName: prev.UserName, All: prev.All, Monthly: prev.Monthly}
	if errProfile == nil {
		next.UserName = profile.DisplayName()
	} else {
		next = s.failed(ctx, next, SourceProfile, email, errProfile)
	}
	if errTransactions == nil {
		next.All = txs
	} else {
		next = s.failed(ctx, next, SourceTransactions, email, errTransactions)
	}
	if errMonthly == nil {
		next.Monthly = monthly
	} else {
		next = s.failed(ctx, next, SourceMonthly, email, errMonthly)
	}

	now := s.now()
	next = next.Derive(r, now, s.projector)
	next.Generation = gen
	next.RefreshedAt = now

	stored := s.states.SetIf(k, next, func(c State, found bool) bool {
		return !found || gen > c.Generation
	})
	if !stored {
		s.logger.DebugContext(ctx, "Discarding stale dashboard fetch",
			logpkg.FieldEmail, email, logpkg.FieldGeneration, gen)
		if cur, ok := s.Current(k); ok {
			return cur, nil
		}
	}
	return next, nil
}

func (s *Service) failed(ctx context.Context, st State, source, email string, err error) State {
	s.logger.WarnContext(ctx, "Ledger API call failed, keeping previous data",
		logpkg.FieldComponent, logpkg.ComponentDashboard,
		logpkg.FieldOperation, source,
		logpkg.FieldEmail, email,
		logpkg.FieldError, err)
	return st.withError(source, err)
}

// Create validates the draft, posts it and re-fetches. On failure the
// cached state is left as it was.
func (s *Service) Create(ctx context.Context, email string, r core.TimeRange, d core.NewTransactionDraft) (State, core.Transaction, error) {
	if key(email) == "" {
		return State{}, core.Transaction{}, ErrNoEmail
	}
	if err := d.ValidateAt(s.now()); err != nil {
		return State{}, core.Transaction{}, err
	}
	tx, err := s.api.CreateTransaction(ctx, email, d)
	if err != nil {
		s.logger.ErrorContext(ctx, "Failed to create transaction",
			logpkg.FieldEmail, email, logpkg.FieldError, err)
		return s.mutationFailed(email, SourceCreate, err), core.Transaction{}, err
	}
	st, err := s.Refresh(ctx, email, r)
	return st, tx, err
}

// Delete removes a transaction and re-fetches.
func (s *Service) Delete(ctx context.Context, email string, r core.TimeRange, id string) (State, error) {
	if key(email) == "" {
		return State{}, ErrNoEmail
	}
	if strings.TrimSpace(id) == "" {
		return State{}, ledger.ErrInvalidID
	}
	if err := s.api.DeleteTransaction(ctx, email, id); err != nil {
		s.logger.ErrorContext(ctx, "Failed to delete transaction",
			logpkg.FieldEmail, email, logpkg.FieldTransactionID, id, logpkg.FieldError, err)
		return s.mutationFailed(email, SourceDelete, err), err
	}
	return s.Refresh(ctx, email, r)
}

// mutationFailed returns the cached state annotated with err. The cache
// itself is not touched.
func (s *Service) mutationFailed(email, source string, err error) State {
	cur, _ := s.Current(email)
	return cur.withError(source, err)
}

package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"finboard/internal/amqp"
	"finboard/internal/core"
	"finboard/internal/ledger"

	"github.com/patrickmn/go-cache"
	"github.com/shopspring/decimal"
)

const (
	// MonthlyLimit caps monthly-expenses at the oldest twelve months.
	MonthlyLimit = 12
	// DefaultRecentDays is the recent-spending window when none is given.
	DefaultRecentDays = 30

	reportTTL     = 10 * time.Minute
	reportCleanup = 20 * time.Minute
)

// EventPublisher receives a notification after every committed change.
type EventPublisher interface {
	PublishChange(ctx context.Context, ev *amqp.ChangeEvent) error
}

// TransactionService owns the ledger rules: ownership checks, validation,
// per-user reports and change notifications.
type TransactionService struct {
	store     ledger.Store
	publisher EventPublisher
	reports   *cache.Cache
	logger    *slog.Logger

	// versions counts committed changes per user; a report computed from an
	// older version is not cached.
	mu       sync.Mutex
	versions map[string]uint64

	now       func() time.Time
}

func NewTransactionService(store ledger.Store, publisher EventPublisher, logger *slog.Logger) *TransactionService {
	if logger == nil {
		logger = slog.Default()
	}
	return &TransactionService{
		store:     store,
		publisher: publisher,
		reports:   cache.New(reportTTL, reportCleanup),
		logger:    logger,
		now:       time.Now,
		versions:  make(map[string]uint64),
	}
}

// Input is the body accepted by create and update.
type Input struct {
	Draft    core.NewTransactionDraft
	Category *string
}

func (s *TransactionService) User(ctx context.Context, email string) (core.UserProfile, error) {
	return s.store.UserByEmail(ctx, email)
}

func (s *TransactionService) List(ctx context.Context, email string) ([]core.Transaction, error) {
	u, err := s.store.UserByEmail(ctx, email)
	if err != nil {
		return nil, err
	}
	return s.store.TransactionsByUser(ctx, u.ID)
}

// ListByUserID lists transactions for a user ID without an email check.
func (s *TransactionService) ListByUserID(ctx context.Context, userID string) ([]core.Transaction, error) {
	if err := ledger.CheckID(userID); err != nil {
		return nil, fmt.Errorf("invalid user ID: %w", err)
	}
	if _, err := s.store.UserByID(ctx, userID); err != nil {
		return nil, err
	}
	return s.store.TransactionsByUser(ctx, userID)
}

func (s *TransactionService) Create(ctx context.Context, email string, in Input) (core.Transaction, error) {
	u, err := s.store.UserByEmail(ctx, email)
	if err != nil {
		return core.Transaction{}, err
	}
	if err := in.Draft.ValidateAt(s.now()); err != nil {
		return core.Transaction{}, err
	}

	tx, err := s.store.InsertTransaction(ctx, core.Transaction{
		Description: in.Draft.Description,
		Amount:      in.Draft.Amount,
		Date:        in.Draft.Date,
		Category:    in.Category,
		UserID:      u.ID,
	})
	if err != nil {
		return core.Transaction{}, fmt.Errorf("save transaction: %w", err)
	}
	s.changed(ctx, amqp.ChangeCreated, tx.ID, u)
	return tx, nil
}

func (s *TransactionService) Get(ctx context.Context, email, id string) (core.Transaction, error) {
	tx, _, err := s.owned(ctx, email, id)
	return tx, err
}

func (s *TransactionService) Update(ctx context.Context, email, id string, in Input) (core.Transaction, error) {
	existing, u, err := s.owned(ctx, email, id)
	if err != nil {
		return core.Transaction{}, err
	}
	if err := in.Draft.ValidateAt(s.now()); err != nil {
		return core.Transaction{}, err
	}

	existing.Description = in.Draft.Description
	existing.Amount = in.Draft.Amount
	existing.Date = in.Draft.Date
	existing.Category = in.Category
	tx, err := s.store.ReplaceTransaction(ctx, existing)
	if err != nil {
		return core.Transaction{}, fmt.Errorf("update transaction: %w", err)
	}
	s.changed(ctx, amqp.ChangeUpdated, tx.ID, u)
	return tx, nil
}

func (s *TransactionService) Delete(ctx context.Context, email, id string) error {
	_, u, err := s.owned(ctx, email, id)
	if err != nil {
		return err
	}
	if err := s.store.RemoveTransaction(ctx, id); err != nil {
		return err
	}
	s.changed(ctx, amqp.ChangeDeleted, id, u)
	return nil
}

// owned loads a transaction and checks it belongs to the user behind email.
// Unknown users are reported before malformed or unknown IDs.
func (s *TransactionService) owned(ctx context.Context, email, id string) (core.Transaction, core.UserProfile, error) {
	u, err := s.store.UserByEmail(ctx, email)
	if err != nil {
		return core.Transaction{}, core.UserProfile{}, err
	}
	if err := ledger.CheckID(id); err != nil {
		return core.Transaction{}, u, err
	}
	tx, err := s.store.Transaction(ctx, id)
	if err != nil {
		return core.Transaction{}, u, err
	}
	if tx.UserID != u.ID {
		return core.Transaction{}, u, ledger.ErrForbidden
	}
	return tx, u, nil
}

// Monthly totals amounts per YYYY-MM, oldest first, for at most MonthlyLimit months.
func (s *TransactionService) Monthly(ctx context.Context, email string) ([]core.MonthlyExpenseEntry, error) {
	u, err := s.store.UserByEmail(ctx, email)
	if err != nil {
		return nil, err
	}
	key := reportKey("monthly", u.ID)
	if v, ok := s.reports.Get(key); ok {
		return v.([]core.MonthlyExpenseEntry), nil
	}
	version := s.version(u.ID)

	var out []core.MonthlyExpenseEntry
	if agg, ok := s.store.(ledger.MonthlyAggregator); ok {
		out, err = agg.MonthlyTotals(ctx, u.ID, MonthlyLimit)
		if err != nil {
			return nil, err
		}
	} else {
		txs, err := s.store.TransactionsByUser(ctx, u.ID)
		if err != nil {
			return nil, err
		}
		out = MonthlyTotals(txs, MonthlyLimit)
	}
	if out == nil {
		out = []core.MonthlyExpenseEntry{}
	}
	s.storeReport(key, u.ID, version, out)
	return out, nil
}

// CategorySpending totals amounts by the stored category, largest total first.
func (s *TransactionService) CategorySpending(ctx context.Context, email string) ([]core.CategorySpending, error) {
	u, err := s.store.UserByEmail(ctx, email)
	if err != nil {
		return nil, err
	}
	key := reportKey("category", u.ID)
	if v, ok := s.reports.Get(key); ok {
		return v.([]core.CategorySpending), nil
	}
	version := s.version(u.ID)

	txs, err := s.store.TransactionsByUser(ctx, u.ID)
	if err != nil {
		return nil, err
	}
	out := CategoryTotals(txs)
	s.storeReport(key, u.ID, version, out)
	return out, nil
}

// RecentSpending totals the last days days per calendar day, oldest first.
// Days without transactions are absent.
func (s *TransactionService) RecentSpending(ctx context.Context, email string, days int) ([]core.DailySpending, error) {
	if days <= 0 {
		days = DefaultRecentDays
	}
	u, err := s.store.UserByEmail(ctx, email)
	if err != nil {
		return nil, err
	}
	txs, err := s.store.TransactionsByUser(ctx, u.ID)
	if err != nil {
		return nil, err
	}
	return DailyTotals(txs, s.now().AddDate(0, 0, -days)), nil
}

func (s *TransactionService) changed(ctx context.Context, t amqp.ChangeType, id string, u core.UserProfile) {
	s.mu.Lock()
	s.versions[u.ID]++
	for _, kind := range []string{"monthly", "category"} {
		s.reports.Delete(reportKey(kind, u.ID))
	}
	s.mu.Unlock()
	if s.publisher == nil {
		return
	}
	if err := s.publisher.PublishChange(ctx, amqp.NewChangeEvent(t, id, u.ID, u.Email)); err != nil {
		// The change is committed; consumers fall back to their cache TTL.
		s.logger.ErrorContext(ctx, "Failed to publish ledger change",
			"type", t, "transaction_id", id, "error", err)
	}
}

func (s *TransactionService) version(userID string) uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.versions[userID]
}

// storeReport caches a report unless a change was committed after version
// was read.
func (s *TransactionService) storeReport(key, userID string, version uint64, report any) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.versions[userID] == version {
		s.reports.Set(key, report, cache.DefaultExpiration)
	}
}

func reportKey(kind, userID string) string {
	return kind + ":" + userID
}

// MonthlyTotals groups by YYYY-MM ascending and keeps the first limit groups.
func MonthlyTotals(txs []core.Transaction, limit int) []core.MonthlyExpenseEntry {
	sums := map[string]decimal.Decimal{}
	for _, tx := range txs {
		month := tx.Date.Format("2006-01")
		sums[month] = sums[month].Add(tx.Amount)
	}
	months := make([]string, 0, len(sums))
	for m := range sums {
		months = append(months, m)
	}
	sort.Strings(months)
	if limit > 0 && len(months) > limit {
		months = months[:limit]
	}
	out := make([]core.MonthlyExpenseEntry, 0, len(months))
	for _, m := range months {
		out = append(out, core.MonthlyExpenseEntry{Month: m, Total: sums[m]})
	}
	return out
}

// CategoryTotals groups by the stored category; uncategorized rows share a nil bucket.
func CategoryTotals(txs []core.Transaction) []core.CategorySpending {
	index := map[string]int{}
	var out []core.CategorySpending
	for _, tx := range txs {
		key := "\x00"
		if tx.Category != nil {
			key = *tx.Category
		}
		i, ok := index[key]
		if !ok {
			i = len(out)
			index[key] = i
			out = append(out, core.CategorySpending{Category: tx.Category, Total: decimal.Zero})
		}
		out[i].Total = out[i].Total.Add(tx.Amount)
		out[i].Count++
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Total.GreaterThan(out[j].Total)
	})
	if out == nil {
		out = []core.CategorySpending{}
	}
	return out
}

// DailyTotals sums transactions dated on or after since, per day, oldest first.
func DailyTotals(txs []core.Transaction, since time.Time) []core.DailySpending {
	sums := map[string]decimal.Decimal{}
	for _, tx := range txs {
		if tx.Date.Before(since) {
			continue
		}
		day := tx.Day()
		sums[day] = sums[day].Add(tx.Amount)
	}
	days := make([]string, 0, len(sums))
	for d := range sums {
		days = append(days, d)
	}
	sort.Strings(days)
	out := make([]core.DailySpending, 0, len(days))
	for _, d := range days {
		out = append(out, core.DailySpending{Date: d, Amount: sums[d]})
	}
	return out
}

// IsValidation reports whether err is an input error the caller can fix.
func IsValidation(err error) bool {
	for _, target := range []error{
		core.ErrEmptyDescription, core.ErrDescriptionTooLong, core.ErrInvalidAmount,
		core.ErrInvalidDate, core.ErrFutureDate, core.ErrEmptyName, core.ErrInvalidEmail,
		ErrNameLength, ErrWeakPassword, ErrInvalidPhone, ledger.ErrInvalidID,
	} {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}

package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"finboard/internal/core"
	"finboard/internal/ledger"

	"github.com/shopspring/decimal"
	_ "modernc.org/sqlite"
)

const storedDateLayout = "2006-01-02T15:04:05"

type SQLiteRepository struct {
	db      *sql.DB
	queries *Queries
	now     func() time.Time
}

var (
	_ ledger.UserStore         = (*SQLiteRepository)(nil)
	_ ledger.TransactionStore  = (*SQLiteRepository)(nil)
	_ ledger.MonthlyAggregator = (*SQLiteRepository)(nil)
)

func NewSQLiteRepository(dbPath string) (*SQLiteRepository, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	version, err := RunMigrations(dbPath)
	if err != nil {
		return nil, err
	}

	db, err := sql.Open("sqlite", dbPath+"?_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	slog.Info("SQLite ledger ready", "path", dbPath, "schema_version", version)
	return &SQLiteRepository{db: db, queries: New(db), now: time.Now}, nil
}

func (r *SQLiteRepository) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

// Ping is used by readiness probes.
func (r *SQLiteRepository) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

func (r *SQLiteRepository) CreateUser(ctx context.Context, u core.UserProfile, passwordHash string) (core.UserProfile, error) {
	if _, err := r.queries.GetUserByEmail(ctx, u.Email); err == nil {
		return core.UserProfile{}, ledger.ErrEmailTaken
	} else if !errors.Is(err, sql.ErrNoRows) {
		return core.UserProfile{}, fmt.Errorf("check email: %w", err)
	}

	u.ID = ledger.NewID()
	row := User{
		ID:           u.ID,
		FirstName:    u.FirstName,
		LastName:     u.LastName,
		Email:        strings.TrimSpace(u.Email),
		PhoneNumber:  nullString(u.PhoneNumber),
		PasswordHash: passwordHash,
	}
	if err := r.queries.CreateUser(ctx, row); err != nil {
		if strings.Contains(err.Error(), "UNIQUE constraint failed") {
			return core.UserProfile{}, ledger.ErrEmailTaken
		}
		return core.UserProfile{}, fmt.Errorf("create user: %w", err)
	}
	return u, nil
}

func (r *SQLiteRepository) UserByEmail(ctx context.Context, email string) (core.UserProfile, error) {
	u, err := r.queries.GetUserByEmail(ctx, strings.TrimSpace(email))
	if err != nil {
		return core.UserProfile{}, userErr(err)
	}
	return toProfile(u), nil
}

func (r *SQLiteRepository) UserByID(ctx context.Context, id string) (core.UserProfile, error) {
	u, err := r.queries.GetUserByID(ctx, id)
	if err != nil {
		return core.UserProfile{}, userErr(err)
	}
	return toProfile(u), nil
}

// PasswordHash returns the stored hash for email.
func (r *SQLiteRepository) PasswordHash(ctx context.Context, email string) (string, error) {
	u, err := r.queries.GetUserByEmail(ctx, strings.TrimSpace(email))
	if err != nil {
		return "", userErr(err)
	}
	return u.PasswordHash, nil
}

func (r *SQLiteRepository) InsertTransaction(ctx context.Context, tx core.Transaction) (core.Transaction, error) {
	tx.ID = ledger.NewID()
	created := core.Date{Time: r.now().UTC().Truncate(time.Second)}
	tx.CreatedAt = &created
	tx.UpdatedAt = nil

	row := fromTransaction(tx)
	if err := r.queries.CreateTransaction(ctx, row); err != nil {
		return core.Transaction{}, fmt.Errorf("create transaction: %w", err)
	}

	slog.DebugContext(ctx, "Transaction saved to SQLite",
		"id", tx.ID,
		"user_id", tx.UserID,
		"amount", tx.Amount.String())
	return tx, nil
}

func (r *SQLiteRepository) Transaction(ctx context.Context, id string) (core.Transaction, error) {
	row, err := r.queries.GetTransaction(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return core.Transaction{}, ledger.ErrTransactionNotFound
		}
		return core.Transaction{}, fmt.Errorf("get transaction: %w", err)
	}
	return toTransaction(row)
}

func (r *SQLiteRepository) ReplaceTransaction(ctx context.Context, tx core.Transaction) (core.Transaction, error) {
	updated := core.Date{Time: r.now().UTC().Truncate(time.Second)}
	tx.UpdatedAt = &updated

	n, err := r.queries.UpdateTransaction(ctx, fromTransaction(tx))
	if err != nil {
		return core.Transaction{}, fmt.Errorf("update transaction: %w", err)
	}
	if n == 0 {
		return core.Transaction{}, ledger.ErrTransactionNotFound
	}
	return r.Transaction(ctx, tx.ID)
}

func (r *SQLiteRepository) RemoveTransaction(ctx context.Context, id string) error {
	n, err := r.queries.DeleteTransaction(ctx, id)
	if err != nil {
		return fmt.Errorf("delete transaction: %w", err)
	}
	if n == 0 {
		return ledger.ErrTransactionNotFound
	}
	return nil
}

func (r *SQLiteRepository) TransactionsByUser(ctx context.Context, userID string) ([]core.Transaction, error) {
	rows, err := r.queries.ListTransactionsByUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("list transactions: %w", err)
	}
	out := make([]core.Transaction, 0, len(rows))
	for _, row := range rows {
		tx, err := toTransaction(row)
		if err != nil {
			return nil, err
		}
		out = append(out, tx)
	}
	return out, nil
}

// MonthlyTotals sums amounts per YYYY-MM, oldest first, keeping the first limit months.
func (r *SQLiteRepository) MonthlyTotals(ctx context.Context, userID string, limit int) ([]core.MonthlyExpenseEntry, error) {
	rows, err := r.queries.ListMonthAmounts(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("list month amounts: %w", err)
	}

	var out []core.MonthlyExpenseEntry
	for _, row := range rows {
		amount, err := decimal.NewFromString(row.Amount)
		if err != nil {
			return nil, fmt.Errorf("stored amount %q: %w", row.Amount, err)
		}
		if n := len(out); n > 0 && out[n-1].Month == row.Month {
			out[n-1].Total = out[n-1].Total.Add(amount)
			continue
		}
		if limit > 0 && len(out) == limit {
			break
		}
		out = append(out, core.MonthlyExpenseEntry{Month: row.Month, Total: amount})
	}
	return out, nil
}

func userErr(err error) error {
	if errors.Is(err, sql.ErrNoRows) {
		return ledger.ErrUserNotFound
	}
	return fmt.Errorf("get user: %w", err)
}

func toProfile(u User) core.UserProfile {
	p := core.UserProfile{ID: u.ID, FirstName: u.FirstName, LastName: u.LastName, Email: u.Email}
	if u.PhoneNumber.Valid {
		phone := u.PhoneNumber.String
		p.PhoneNumber = &phone
	}
	return p
}

func fromTransaction(tx core.Transaction) Transaction {
	row := Transaction{
		ID:          tx.ID,
		UserID:      tx.UserID,
		Description: tx.Description,
		Amount:      tx.Amount.String(),
		Date:        tx.Date.Format(storedDateLayout),
		Category:    nullString(tx.Category),
	}
	if tx.CreatedAt != nil {
		row.CreatedAt = tx.CreatedAt.Format(storedDateLayout)
	}
	if tx.UpdatedAt != nil {
		row.UpdatedAt = sql.NullString{String: tx.UpdatedAt.Format(storedDateLayout), Valid: true}
	}
	return row
}

func toTransaction(row Transaction) (core.Transaction, error) {
	amount, err := decimal.NewFromString(row.Amount)
	if err != nil {
		return core.Transaction{}, fmt.Errorf("stored amount %q: %w", row.Amount, err)
	}
	date, err := core.ParseDate(row.Date)
	if err != nil {
		return core.Transaction{}, fmt.Errorf("stored date: %w", err)
	}
	tx := core.Transaction{
		ID:          row.ID,
		UserID:      row.UserID,
		Description: row.Description,
		Amount:      amount,
		Date:        date,
	}
	if row.Category.Valid {
		c := row.Category.String
		tx.Category = &c
	}
	if created, err := core.ParseDate(row.CreatedAt); err == nil {
		tx.CreatedAt = &created
	}
	if row.UpdatedAt.Valid {
		if updated, err := core.ParseDate(row.UpdatedAt.String); err == nil {
			tx.UpdatedAt = &updated
		}
	}
	return tx, nil
}

func nullString(s *string) sql.NullString {
	if s == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *s, Valid: true}
}

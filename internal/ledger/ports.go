// Package ledger declares the ports between the dashboard and the service
// that owns users and transactions.
package ledger

import (
	"context"
	"errors"
	"fmt"

	"finboard/internal/core"
)

// Ports consumed by the dashboard. The remote client implements all of them.
type (
	ProfileReader interface {
		GetUser(ctx context.Context, email string) (core.UserProfile, error)
	}

	TransactionLister interface {
		ListTransactions(ctx context.Context, email string) ([]core.Transaction, error)
	}

	// MonthlyReader returns totals pre-aggregated by the ledger, oldest month first.
	MonthlyReader interface {
		MonthlyExpenses(ctx context.Context, email string) ([]core.MonthlyExpenseEntry, error)
	}

	TransactionWriter interface {
		CreateTransaction(ctx context.Context, email string, d core.NewTransactionDraft) (core.Transaction, error)
		DeleteTransaction(ctx context.Context, email, id string) error
	}

	API interface {
		ProfileReader
		TransactionLister
		MonthlyReader
		TransactionWriter
	}
)

// Ports implemented by storage backends of the ledger API.
type (
	UserStore interface {
		CreateUser(ctx context.Context, u core.UserProfile, passwordHash string) (core.UserProfile, error)
		UserByEmail(ctx context.Context, email string) (core.UserProfile, error)
		UserByID(ctx context.Context, id string) (core.UserProfile, error)
	}

	TransactionStore interface {
		InsertTransaction(ctx context.Context, tx core.Transaction) (core.Transaction, error)
		Transaction(ctx context.Context, id string) (core.Transaction, error)
		ReplaceTransaction(ctx context.Context, tx core.Transaction) (core.Transaction, error)
		RemoveTransaction(ctx context.Context, id string) error
		// TransactionsByUser returns the user's transactions, newest first.
		TransactionsByUser(ctx context.Context, userID string) ([]core.Transaction, error)
	}

	Store interface {
		UserStore
		TransactionStore
	}

	// MonthlyAggregator is implemented by stores that can total months natively.
	MonthlyAggregator interface {
		MonthlyTotals(ctx context.Context, userID string, limit int) ([]core.MonthlyExpenseEntry, error)
	}
)

var (
	ErrNotFound            = errors.New("not found")
	ErrUserNotFound        = fmt.Errorf("user %w", ErrNotFound)
	ErrTransactionNotFound = fmt.Errorf("transaction %w", ErrNotFound)
	ErrForbidden           = errors.New("not authorized to access this transaction")
	ErrEmailTaken          = errors.New("email already registered")
	ErrInvalidID           = errors.New("invalid transaction ID")
)

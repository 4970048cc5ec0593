package memory

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"finboard/internal/core"
	"finboard/internal/ledger"

	"github.com/shopspring/decimal"
)

func TestStoreUsers(t *testing.T) {
	s := New()
	ctx := context.Background()

	u, err := s.CreateUser(ctx, core.UserProfile{FirstName: "Asha", LastName: "Rao", Email: "Asha@Example.com"}, "hash")
	if err != nil || u.ID == "" {
		t.Fatalf("unexpected create: %+v err=%v", u, err)
	}
	if _, err := s.CreateUser(ctx, core.UserProfile{Email: "asha@example.com"}, ""); !errors.Is(err, ledger.ErrEmailTaken) {
		t.Fatalf("expected ErrEmailTaken, got %v", err)
	}

	got, err := s.UserByEmail(ctx, " asha@example.com ")
	if err != nil || got.ID != u.ID {
		t.Fatalf("lookup by email: %+v err=%v", got, err)
	}
	if _, err := s.UserByID(ctx, "missing"); !errors.Is(err, ledger.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
	if s.PasswordHash("asha@example.com") != "hash" {
		t.Fatalf("password hash not stored")
	}
}

func TestStoreTransactions(t *testing.T) {
	s := New()
	ctx := context.Background()

	a, _ := s.InsertTransaction(ctx, core.Transaction{Description: "old", Amount: decimal.NewFromInt(1), Date: core.NewDate(2025, 1, 1), UserID: "u1"})
	b, _ := s.InsertTransaction(ctx, core.Transaction{Description: "new", Amount: decimal.NewFromInt(2), Date: core.NewDate(2025, 2, 1), UserID: "u1"})
	_, _ = s.InsertTransaction(ctx, core.Transaction{Description: "other", Amount: decimal.NewFromInt(3), Date: core.NewDate(2025, 3, 1), UserID: "u2"})

	if a.ID == "" || a.ID == b.ID || a.CreatedAt == nil {
		t.Fatalf("expected distinct ids and a creation time")
	}
	if err := ledger.CheckID(a.ID); err != nil {
		t.Fatalf("issued id rejected: %v", err)
	}

	list, _ := s.TransactionsByUser(ctx, "u1")
	if len(list) != 2 || list[0].ID != b.ID {
		t.Fatalf("expected newest first, got %+v", list)
	}

	a.Description = "renamed"
	a.UserID = "someone-else"
	updated, err := s.ReplaceTransaction(ctx, a)
	if err != nil || updated.Description != "renamed" || updated.UserID != "u1" || updated.UpdatedAt == nil {
		t.Fatalf("unexpected replace: %+v err=%v", updated, err)
	}

	if err := s.RemoveTransaction(ctx, a.ID); err != nil {
		t.Fatalf("remove: %v", err)
	}
	if _, err := s.Transaction(ctx, a.ID); !errors.Is(err, ledger.ErrTransactionNotFound) {
		t.Fatalf("expected ErrTransactionNotFound, got %v", err)
	}
	if err := s.RemoveTransaction(ctx, a.ID); !errors.Is(err, ledger.ErrNotFound) {
		t.Fatalf("second remove should fail, got %v", err)
	}
}

func TestNewFromFile(t *testing.T) {
	dir := t.TempDir()

	s, err := NewFromFile(filepath.Join(dir, "missing.json"))
	if err != nil {
		t.Fatalf("missing seed should be empty, got %v", err)
	}
	if _, err := s.UserByEmail(context.Background(), "x@y.z"); err == nil {
		t.Fatalf("expected empty store")
	}

	path := filepath.Join(dir, "seed.json")
	seed := `{"users":[{"first_name":"Asha","last_name":"Rao","email":"asha@example.com",
		"transactions":[{"description":"Grocery Store","amount":-124.5,"date":"2025-03-02"},
		{"description":"Salary Deposit","amount":3500,"date":"2025-03-01"}]}]}`
	if err := os.WriteFile(path, []byte(seed), 0o644); err != nil {
		t.Fatalf("write seed: %v", err)
	}

	s, err = NewFromFile(path)
	if err != nil {
		t.Fatalf("load seed: %v", err)
	}
	u, err := s.UserByEmail(context.Background(), "asha@example.com")
	if err != nil {
		t.Fatalf("seeded user: %v", err)
	}
	txs, _ := s.TransactionsByUser(context.Background(), u.ID)
	if len(txs) != 2 || txs[0].Description != "Grocery Store" {
		t.Fatalf("unexpected seeded transactions %+v", txs)
	}
}

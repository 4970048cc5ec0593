// Package memory is an in-process ledger store used for development and tests.
package memory

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"strings"
	"sync"
	"time"

	"finboard/internal/core"
	"finboard/internal/ledger"
)

type user struct {
	profile      core.UserProfile
	passwordHash string
}

type Store struct {
	mu      sync.Mutex
	users   map[string]user // by ID
	byEmail map[string]string
	txs     map[string]core.Transaction
	now     func() time.Time
}

func New() *Store {
	return &Store{
		users:   map[string]user{},
		byEmail: map[string]string{},
		txs:     map[string]core.Transaction{},
		now:     time.Now,
	}
}

// Seed is the on-disk format accepted by NewFromFile.
type Seed struct {
	Users []struct {
		core.UserProfile
		Transactions []core.NewTransactionDraft `json:"transactions"`
	} `json:"users"`
}

// NewFromFile loads users and their transactions from a JSON seed file.
// A missing file yields an empty store.
func NewFromFile(path string) (*Store, error) {
	s := New()
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return s, nil
		}
		return nil, fmt.Errorf("read seed: %w", err)
	}
	var seed Seed
	if err := json.Unmarshal(data, &seed); err != nil {
		return nil, fmt.Errorf("parse seed %s: %w", path, err)
	}

	ctx := context.Background()
	for _, u := range seed.Users {
		created, err := s.CreateUser(ctx, u.UserProfile, "")
		if err != nil {
			return nil, fmt.Errorf("seed user %s: %w", u.Email, err)
		}
		for _, d := range u.Transactions {
			if _, err := s.InsertTransaction(ctx, core.Transaction{
				Description: d.Description,
				Amount:      d.Amount,
				Date:        d.Date,
				UserID:      created.ID,
			}); err != nil {
				return nil, fmt.Errorf("seed transaction for %s: %w", u.Email, err)
			}
		}
	}
	return s, nil
}

func emailKey(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func (s *Store) CreateUser(_ context.Context, u core.UserProfile, passwordHash string) (core.UserProfile, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := emailKey(u.Email)
	if _, ok := s.byEmail[key]; ok {
		return core.UserProfile{}, ledger.ErrEmailTaken
	}
	u.ID = ledger.NewID()
	s.users[u.ID] = user{profile: u, passwordHash: passwordHash}
	s.byEmail[key] = u.ID
	return u, nil
}

func (s *Store) UserByEmail(_ context.Context, email string) (core.UserProfile, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	id, ok := s.byEmail[emailKey(email)]
	if !ok {
		return core.UserProfile{}, ledger.ErrUserNotFound
	}
	return s.users[id].profile, nil
}

func (s *Store) UserByID(_ context.Context, id string) (core.UserProfile, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[id]
	if !ok {
		return core.UserProfile{}, ledger.ErrUserNotFound
	}
	return u.profile, nil
}

// InsertTransaction assigns an ID and creation time and stores tx.
func (s *Store) InsertTransaction(_ context.Context, tx core.Transaction) (core.Transaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	tx.ID = ledger.NewID()
	created := core.Date{Time: s.now().UTC()}
	tx.CreatedAt = &created
	tx.UpdatedAt = nil
	s.txs[tx.ID] = tx
	return tx, nil
}

func (s *Store) Transaction(_ context.Context, id string) (core.Transaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	tx, ok := s.txs[id]
	if !ok {
		return core.Transaction{}, ledger.ErrTransactionNotFound
	}
	return tx, nil
}

func (s *Store) ReplaceTransaction(_ context.Context, tx core.Transaction) (core.Transaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	prev, ok := s.txs[tx.ID]
	if !ok {
		return core.Transaction{}, ledger.ErrTransactionNotFound
	}
	tx.UserID = prev.UserID
	tx.CreatedAt = prev.CreatedAt
	updated := core.Date{Time: s.now().UTC()}
	tx.UpdatedAt = &updated
	s.txs[tx.ID] = tx
	return tx, nil
}

func (s *Store) RemoveTransaction(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.txs[id]; !ok {
		return ledger.ErrTransactionNotFound
	}
	delete(s.txs, id)
	return nil
}

func (s *Store) TransactionsByUser(_ context.Context, userID string) ([]core.Transaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]core.Transaction, 0)
	for _, tx := range s.txs {
		if tx.UserID == userID {
			out = append(out, tx)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Date.Equal(out[j].Date.Time) {
			return out[i].ID < out[j].ID
		}
		return out[i].Date.After(out[j].Date.Time)
	})
	return out, nil
}

// PasswordHash returns the stored hash for email, or "" if unknown.
func (s *Store) PasswordHash(email string) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.users[s.byEmail[emailKey(email)]].passwordHash
}

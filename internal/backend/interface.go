package backend

import (
	"context"

	"finboard/internal/services"
)

// Backend is the ledger API's service layer over one storage choice.
type Backend struct {
	Transactions *services.TransactionService
	Users        *services.UserService
	// Ping reports storage health for readiness probes.
	Ping func(ctx context.Context) error
}

// CleanupFunc releases storage and broker connections.
type CleanupFunc func() error

type BackendResult struct {
	Backend *Backend
	Cleanup CleanupFunc
}

type Factory interface {
	CreateBackend(ctx context.Context, config Config) (*BackendResult, error)
}

type Config struct {
	Type BackendType

	// SQLite specific
	SQLiteDBPath string

	// Memory specific; a missing file means an empty ledger.
	SeedFile string

	// Optional change notifications
	AMQPURL      string
	AMQPExchange string
	AMQPQueue    string
}

type BackendType string

const (
	SQLiteBackend BackendType = "sqlite"
	MemoryBackend BackendType = "memory"
)

func (bt BackendType) String() string {
	return string(bt)
}

func (bt BackendType) IsValid() bool {
	switch bt {
	case SQLiteBackend, MemoryBackend:
		return true
	default:
		return false
	}
}

package backend

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"finboard/internal/amqp"
	"finboard/internal/ledger"
	"finboard/internal/ledger/memory"
	"finboard/internal/services"
	"finboard/internal/storage"
)

type DefaultFactory struct {
	logger *slog.Logger
}

func NewFactory(logger *slog.Logger) Factory {
	if logger == nil {
		logger = slog.Default()
	}
	return &DefaultFactory{logger: logger}
}

func (f *DefaultFactory) CreateBackend(ctx context.Context, config Config) (*BackendResult, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}

	var (
		store   ledger.Store
		ping    func(context.Context) error
		closers []func() error
	)
	switch config.Type {
	case SQLiteBackend:
		repo, err := storage.NewSQLiteRepository(config.SQLiteDBPath)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize SQLite repository: %w", err)
		}
		store, ping = repo, repo.Ping
		closers = append(closers, repo.Close)
		f.logger.Info("Initialized SQLite backend", "db_path", config.SQLiteDBPath)
	case MemoryBackend:
		mem, err := memory.NewFromFile(config.SeedFile)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize memory backend: %w", err)
		}
		store, ping = mem, func(context.Context) error { return nil }
		f.logger.Info("Initialized memory backend", "seed_file", config.SeedFile)
	default:
		return nil, fmt.Errorf("unsupported backend type: %s", config.Type)
	}

	// A nil *amqp.Client must not become a non-nil interface.
	var publisher services.EventPublisher
	if config.AMQPURL != "" {
		client, err := amqp.NewClient(config.AMQPURL, config.AMQPExchange, config.AMQPQueue)
		if err != nil {
			f.logger.Warn("Failed to initialize AMQP client, continuing without change events", "error", err)
		} else {
			publisher = client
			closers = append(closers, client.Close)
			f.logger.Info("Initialized AMQP client",
				"exchange", config.AMQPExchange,
				"queue", config.AMQPQueue)
		}
	}

	return &BackendResult{
		Backend: &Backend{
			Transactions: services.NewTransactionService(store, publisher, f.logger),
			Users:        services.NewUserService(store),
			Ping:         ping,
		},
		Cleanup: func() error {
			var errs []error
			for i := len(closers) - 1; i >= 0; i-- {
				if err := closers[i](); err != nil {
					errs = append(errs, err)
				}
			}
			return errors.Join(errs...)
		},
	}, nil
}

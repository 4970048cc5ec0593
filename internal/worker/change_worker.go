// Package worker runs background consumers for the dashboard process.
package worker

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"sync/atomic"

	"finboard/internal/amqp"
	logpkg "finboard/internal/log"
)

// ChangeHandler reacts to one ledger change, typically by dropping cached state.
type ChangeHandler interface {
	HandleChange(ev *amqp.ChangeEvent) error
}

// Consumer delivers change events until ctx ends.
type Consumer interface {
	ConsumeChanges(ctx context.Context, handler func(*amqp.ChangeEvent) error) error
}

// ChangeWorker forwards ledger change events to the dashboard so that
// cached states are refreshed before their TTL runs out.
type ChangeWorker struct {
	handler ChangeHandler
	logger  *slog.Logger

	processed atomic.Int64
	skipped   atomic.Int64
	failed    atomic.Int64
}

// Stats counts processed change events.
type Stats struct {
	Processed int64
	Skipped   int64
	Failed    int64
}

// NewChangeWorker returns a worker that forwards change events to handler.
func NewChangeWorker(handler ChangeHandler, logger *slog.Logger) *ChangeWorker {
	if logger == nil {
		logger = slog.Default()
	}
	return &ChangeWorker{handler: handler, logger: logger}
}

// HandleChange processes a single event. Events without an email cannot be
// matched to a dashboard and are acknowledged without effect.
func (w *ChangeWorker) HandleChange(ev *amqp.ChangeEvent) error {
	if ev == nil || strings.TrimSpace(ev.Email) == "" {
		w.skipped.Add(1)
		w.logger.Warn("Skipping change event without email")
		return nil
	}
	if err := w.handler.HandleChange(ev); err != nil {
		w.failed.Add(1)
		return err
	}
	w.processed.Add(1)
	w.logger.Debug("Processed ledger change",
		"type", ev.Type,
		logpkg.FieldTransactionID, ev.TransactionID,
		logpkg.FieldEmail, ev.Email)
	return nil
}

// Run consumes until ctx is cancelled. Cancellation is not an error.
func (w *ChangeWorker) Run(ctx context.Context, c Consumer) error {
	w.logger.InfoContext(ctx, "Starting change worker")
	err := c.ConsumeChanges(ctx, w.HandleChange)
	if err == nil || errors.Is(err, context.Canceled) || ctx.Err() != nil {
		s := w.Stats()
		w.logger.Info("Change worker stopped",
			"processed", s.Processed, "skipped", s.Skipped, "failed", s.Failed)
		return nil
	}
	return err
}

func (w *ChangeWorker) Stats() Stats {
	return Stats{
		Processed: w.processed.Load(),
		Skipped:   w.skipped.Load(),
		Failed:    w.failed.Load(),
	}
}

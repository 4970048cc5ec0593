// Package cli holds the start-up helpers shared by the finboard binaries and
// the terminal dashboard command tree.
package cli

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"finboard/internal/config"
	logpkg "finboard/internal/log"

	"github.com/joho/godotenv"
	"golang.org/x/sync/errgroup"
)

// LoadEnvFile loads the .env file for local development.
// Errors are ignored silently as this is optional in production.
func LoadEnvFile() {
	_ = godotenv.Load()
}

// SetupLogger builds the process logger from cfg and installs it as the
// slog default.
func SetupLogger(cfg *config.Config) *logpkg.Logger {
	logger := logpkg.New(logpkg.Config{
		Level:     logpkg.ParseLevel(cfg.LogLevel),
		Format:    cfg.LogFormat,
		Component: logpkg.ComponentApp,
		Output:    os.Stdout,
	})
	logpkg.SetDefault(logger)
	return logger
}

// LoadAndValidateConfig loads configuration and validates it.
// Returns the config or exits the process on validation failure.
func LoadAndValidateConfig() *config.Config {
	cfg, err := config.Load()
	if err == nil {
		err = cfg.Validate()
	}
	if err != nil {
		slog.Error("Configuration validation failed", "error", err)
		os.Exit(1)
	}
	return cfg
}

// SignalContext is cancelled on SIGINT or SIGTERM.
func SignalContext(logger *logpkg.Logger) (context.Context, context.CancelFunc) {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-ctx.Done()
		logger.Info("Shutdown signal received")
	}()
	return ctx, stop
}

// Server is satisfied by the dashboard and ledger API servers.
type Server interface {
	ListenAndServe() error
	Shutdown(ctx context.Context) error
}

// Serve runs every server until ctx is cancelled or one of them fails, then
// shuts all of them down within timeout.
func Serve(ctx context.Context, logger *logpkg.Logger, timeout time.Duration, servers ...Server) error {
	g, gctx := errgroup.WithContext(ctx)
	for _, srv := range servers {
		srv := srv
		g.Go(func() error {
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return err
			}
			return nil
		})
	}
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()
		var errs []error
		for _, srv := range servers {
			errs = append(errs, srv.Shutdown(shutdownCtx))
		}
		if err := errors.Join(errs...); err != nil {
			logger.Warn("Shutdown incomplete", logpkg.FieldError, err)
			return err
		}
		logger.Info("Shutdown complete")
		return nil
	})
	return g.Wait()
}

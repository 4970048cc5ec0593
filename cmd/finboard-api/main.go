package main

import (
	"os"
	"time"

	"finboard/internal/apiserver"
	"finboard/internal/backend"
	"finboard/internal/cli"
	logpkg "finboard/internal/log"
)

func main() {
	cli.LoadEnvFile()
	cfg := cli.LoadAndValidateConfig()
	logger := cli.SetupLogger(cfg)

	ctx, stop := cli.SignalContext(logger)
	defer stop()

	backendCfg, err := backend.FromAppConfig(cfg)
	if err != nil {
		logger.Error("Invalid backend configuration", logpkg.FieldError, err)
		os.Exit(1)
	}
	result, err := backend.NewFactory(logger.Slog()).CreateBackend(ctx, backendCfg)
	if err != nil {
		logger.Error("Failed to initialize backend", logpkg.FieldError, err, "backend", cfg.DataBackend)
		os.Exit(1)
	}
	defer func() {
		if err := result.Cleanup(); err != nil {
			logger.Error("Backend cleanup failed", logpkg.FieldError, err)
		}
	}()

	srv := apiserver.NewServer(":"+cfg.APIPort, result.Backend, logger.WithComponent(logpkg.ComponentAPI), cfg.RateLimitRPM)

	logger.Info("Starting finboard ledger API", "port", cfg.APIPort, "backend", cfg.DataBackend)
	if err := cli.Serve(ctx, logger, 30*time.Second, srv); err != nil {
		logger.Error("Server error", logpkg.FieldError, err)
		return
	}
	logger.Info("Server stopped gracefully")
}

package main

import (
	"os"
	"time"

	"finboard/internal/amqp"
	"finboard/internal/cache"
	"finboard/internal/cli"
	"finboard/internal/dashboard"
	apphttp "finboard/internal/http"
	"finboard/internal/ledger/remote"
	logpkg "finboard/internal/log"
	"finboard/internal/worker"
)

const cacheCleanupInterval = time.Minute

func main() {
	cli.LoadEnvFile()
	cfg := cli.LoadAndValidateConfig()
	logger := cli.SetupLogger(cfg)

	ctx, stop := cli.SignalContext(logger)
	defer stop()

	api, err := remote.New(remote.Config{
		BaseURL: cfg.APIBaseURL,
		Timeout: cfg.APITimeout,
		Retries: cfg.APIRetries,
		Logger:  logger.WithComponent(logpkg.ComponentAPI).Slog(),
	})
	if err != nil {
		logger.Error("Failed to initialize ledger client", logpkg.FieldError, err, "base_url", cfg.APIBaseURL)
		os.Exit(1)
	}

	states := cache.NewLRUCache[dashboard.State](cfg.StateCacheSize, cfg.StateCacheTTL)
	cacheMgr := cache.NewManager(logger.Slog())
	cacheMgr.Register(states)
	cacheMgr.StartCleanup(cacheCleanupInterval)

	dash := dashboard.NewService(api, states,
		dashboard.WithLogger(logger.WithComponent(logpkg.ComponentDashboard).Slog()))

	// Ledger change events drop cached states early; without a broker the TTL applies.
	if cfg.AMQPURL != "" {
		client, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue)
		if err != nil {
			logger.Warn("Failed to connect to AMQP, dashboard states expire by TTL only", logpkg.FieldError, err)
		} else {
			defer client.Close()
			changes := worker.NewChangeWorker(dash, logger.WithComponent(logpkg.ComponentDashboard).Slog())
			go func() {
				if err := changes.Run(ctx, client); err != nil {
					logger.Error("Change worker stopped", logpkg.FieldError, err)
				}
			}()
			logger.Info("Consuming ledger changes", "exchange", cfg.AMQPExchange, "queue", cfg.AMQPQueue)
		}
	}

	srv, err := apphttp.NewServer(apphttp.Options{
		Addr:         ":" + cfg.Port,
		Currency:     cfg.CurrencySymbol,
		DefaultEmail: cfg.DefaultEmail,
		RateLimitRPM: cfg.RateLimitRPM,
		Logger:       logger,
		Ledger:       api,
		States:       states,
		CacheManager: cacheMgr,
	}, dash)
	if err != nil {
		logger.Error("Failed to build dashboard server", logpkg.FieldError, err)
		os.Exit(1)
	}

	logger.Info("Starting finboard dashboard",
		"port", cfg.Port,
		"api_base_url", cfg.APIBaseURL,
		"cache_size", cfg.StateCacheSize)
	if err := cli.Serve(ctx, logger, 30*time.Second, srv); err != nil {
		logger.Error("Server error", logpkg.FieldError, err)
		os.Exit(1)
	}
	logger.Info("Server stopped gracefully")
}


package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"time"

	"backoffice/internal/backend"
	"backoffice/internal/cli"
	apphttp "backoffice/internal/http"
	applog "backoffice/internal/log"
	"backoffice/internal/settings"
)

func main() {
	cli.LoadEnvFile()
	logger := cli.SetupLogger(slog.LevelInfo, applog.ComponentApp)
	cfg := cli.LoadAndValidateConfig(logger)
	logger = cli.SetupLogger(cfg.SlogLevel(), applog.ComponentApp)

	logger.Info("Starting backoffice API",
		"port", cfg.Port,
		"backend", cfg.DataBackend,
		"rates_provider", cfg.RatesProviderURL != "")

	backendConfig, err := backend.FromAppConfig(cfg)
	if err != nil {
		logger.Error("Invalid backend configuration", "error", err)
		os.Exit(1)
	}
	result, err := backend.NewFactory(logger).CreateBackend(context.Background(), backendConfig)
	if err != nil {
		logger.Error("Failed to create backend", "error", err, "backend", cfg.DataBackend)
		os.Exit(1)
	}
	b := result.Backend

	ratesCache := cli.NewRatesCache(cfg, b.KV)
	if t := ratesCache.LoadRates(context.Background()); t == nil {
		logger.Warn("No exchange rates available at startup, conversions fall back to static rates")
	}

	srv := apphttp.NewServer(":"+cfg.Port, apphttp.Deps{
		Rules:          b.Rules,
		Processor:      b.Processor,
		Rates:          ratesCache,
		Settings:       settings.NewService(b.KV, cfg.SettingsCacheTTL),
		Ping:           b.Ping,
		DefaultOwnerID: cfg.RecurringOwnerID,
	}, apphttp.Options{
		RateLimitPerMinute: cfg.RateLimitPerMinute,
	})

	ctx, done := cli.GracefulShutdown(logger, 30*time.Second, func(ctx context.Context) {
		if err := srv.Shutdown(ctx); err != nil {
			logger.Error("HTTP server shutdown failed", "error", err)
		}
		if err := result.Cleanup(); err != nil {
			logger.Error("Backend cleanup failed", "error", err)
		}
	})

	go func() {
		logger.Info("HTTP server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("HTTP server failed", "error", err)
			os.Exit(1)
		}
	}()

	cli.WaitForShutdown(ctx, done)
}

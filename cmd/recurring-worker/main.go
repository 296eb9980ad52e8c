package main

import (
	"context"
	"log/slog"
	"os"
	"time"

	"backoffice/internal/backend"
	"backoffice/internal/cli"
	applog "backoffice/internal/log"
	"backoffice/internal/rates"
	"backoffice/internal/services"
)

func main() {
	cli.LoadEnvFile()
	logger := cli.SetupLogger(slog.LevelInfo, applog.ComponentWorker)
	cfg := cli.LoadAndValidateConfig(logger)
	logger = cli.SetupLogger(cfg.SlogLevel(), applog.ComponentWorker)

	logger.Info("Starting recurring-worker")

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
	if result.Backend.Events == nil {
		logger.Info("AMQP disabled - occurrences will not be exported")
	}

	processor := result.Backend.Processor
	ratesCache := cli.NewRatesCache(cfg, result.Backend.KV)

	ctx, done := cli.GracefulShutdown(logger, 30*time.Second, func(context.Context) {
		if err := result.Cleanup(); err != nil {
			logger.Error("Backend cleanup failed", "error", err)
		}
	})

	logger.Info("Recurring processor configured",
		"interval", cfg.RecurringInterval.String(),
		"owner_id", cfg.RecurringOwnerID,
		"backend", cfg.DataBackend)

	ticker := time.NewTicker(cfg.RecurringInterval)
	defer ticker.Stop()

	logger.Info("Running initial recurring processing...")
	runOnce(ctx, logger, processor, ratesCache, cfg.RecurringOwnerID, time.Now())

	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case now := <-ticker.C:
				runOnce(ctx, logger, processor, ratesCache, cfg.RecurringOwnerID, now)
				logger.Info("Next recurring check scheduled",
					"next_check", now.Add(cfg.RecurringInterval).Format("15:04:05"))
			}
		}
	}()

	cli.WaitForShutdown(ctx, done)
}

// runOnce keeps the rate table fresh and records due occurrences. Errors are
// logged; the next tick retries.
func runOnce(ctx context.Context, logger *slog.Logger, p *services.RecurringProcessor, rc *rates.Cache, ownerID string, now time.Time) {
	if t := rc.EnsureFresh(ctx); t == nil {
		logger.WarnContext(ctx, "Exchange rates unavailable")
	}

	summary, err := p.ProcessDueRules(ctx, ownerID, now)
	if err != nil {
		logger.ErrorContext(ctx, "Recurring processing failed", "error", err)
		return
	}
	if len(summary.Truncated) > 0 {
		logger.WarnContext(ctx, "Catch-up incomplete, continuing on next run",
			"rules", summary.Truncated)
	}
	logger.InfoContext(ctx, "Recurring processing run finished",
		"created", summary.Created,
		"checked", summary.Checked,
		"failed", len(summary.Failed))
}

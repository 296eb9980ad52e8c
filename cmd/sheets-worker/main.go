package main

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"time"

	"backoffice/internal/backend"
	"backoffice/internal/cli"
	applog "backoffice/internal/log"
	gsheet "backoffice/internal/sheets/google"
	"backoffice/internal/worker"
)

func main() {
	cli.LoadEnvFile()
	logger := cli.SetupLogger(slog.LevelInfo, applog.ComponentSheets)
	cfg := cli.LoadAndValidateConfig(logger)
	logger = cli.SetupLogger(cfg.SlogLevel(), applog.ComponentSheets)

	logger.Info("Starting sheets-worker")

	if err := cfg.ValidateSheets(); err != nil {
		logger.Error("Sheets configuration validation failed", "error", err)
		os.Exit(1)
	}
	if cfg.DataBackend == string(backend.MemoryBackend) {
		logger.Warn("Memory backend does not share occurrences across processes; only locally recorded occurrences can be exported")
	}

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
	if b.Events == nil {
		logger.Error("AMQP client unavailable, cannot consume occurrence messages")
		_ = result.Cleanup()
		os.Exit(1)
	}

	sheetsClient, err := gsheet.New(context.Background(), gsheet.Config{
		SpreadsheetID:   cfg.GoogleSpreadsheetID,
		SheetName:       cfg.GoogleSheetName,
		CredentialsJSON: cfg.GoogleServiceAccountJSON,
		CredentialsFile: cfg.GoogleServiceAccountFile,
	})
	if err != nil {
		logger.Error("Failed to initialize Google Sheets client", "error", err)
		_ = result.Cleanup()
		os.Exit(1)
	}
	logger.Info("Google Sheets client initialized",
		"spreadsheet_id", cfg.GoogleSpreadsheetID,
		"sheet", cfg.GoogleSheetName)

	syncWorker := worker.NewSyncWorker(b.Rules, b.Occurrences, sheetsClient)

	ctx, done := cli.GracefulShutdown(logger, 30*time.Second, func(context.Context) {
		if err := result.Cleanup(); err != nil {
			logger.Error("Backend cleanup failed", "error", err)
		}
	})

	if cfg.SheetsBackfillOnStart {
		logger.Info("Performing startup sync check...")
		if err := syncWorker.StartupSyncCheck(ctx, cfg.RecurringOwnerID); err != nil {
			// Don't exit - continue with normal operation
			logger.Error("Failed startup sync check", "error", err)
		}
	}

	go func() {
		if err := b.Events.ConsumeOccurrenceCreated(ctx, syncWorker.HandleOccurrenceCreated); err != nil && !errors.Is(err, context.Canceled) {
			logger.Error("Message consumption failed", "error", err)
		}
	}()

	cli.WaitForShutdown(ctx, done)
}

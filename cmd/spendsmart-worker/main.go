package main

import (
	"context"
	"errors"
	"os"
	"time"

	"spendsmart/internal/backend"
	"spendsmart/internal/cli"
	"spendsmart/internal/log"
	"spendsmart/internal/notify"
	"spendsmart/internal/sheets"
	gsheet "spendsmart/internal/sheets/google"
	"spendsmart/internal/worker"
)

const backfillInterval = 24 * time.Hour

func main() {
	cli.LoadEnvFile()
	logger := cli.SetupLogger(log.ComponentWorker)
	cfg := cli.LoadAndValidateConfig(logger)

	if cfg.AMQPURL == "" {
		logger.Error("AMQP_URL is required for the worker")
		os.Exit(1)
	}

	// The worker reads the store directly and only consumes events.
	bcfg, err := backend.FromAppConfig(cfg)
	if err != nil {
		logger.Error("Invalid backend configuration", log.FieldError, err)
		os.Exit(1)
	}
	res, err := backend.NewFactory(logger).CreateBackend(context.Background(), bcfg)
	if err != nil {
		logger.Error("Failed to initialize backend", log.FieldError, err, "backend", cfg.DataBackend)
		os.Exit(1)
	}
	if res.Publisher == nil {
		_ = res.Cleanup()
		logger.Error("Failed to connect to AMQP broker")
		os.Exit(1)
	}

	var mirror sheets.Mirror
	if cfg.SheetsEnabled() {
		client, err := gsheet.New(context.Background(), gsheet.Options{
			SpreadsheetID:   cfg.GoogleSpreadsheetID,
			SheetName:       cfg.GoogleSheetName,
			CredentialsJSON: cfg.GoogleServiceAccountJSON,
			CredentialsFile: cfg.GoogleServiceAccountFile,
		})
		if err != nil {
			_ = res.Cleanup()
			logger.Error("Failed to initialize Google Sheets client", log.FieldError, err)
			os.Exit(1)
		}
		mirror = client
		logger.Info("Google Sheets mirror enabled", "spreadsheet_id", cfg.GoogleSpreadsheetID)
	} else {
		logger.Info("Google Sheets disabled - no GOOGLE_SPREADSHEET_ID provided")
	}

	var notifier notify.Notifier = notify.NewLog(logger, cfg.CurrencySymbol)
	if cfg.TelegramBotToken != "" {
		tg, err := notify.NewTelegram(cfg.TelegramBotToken, cfg.TelegramChatID, cfg.CurrencySymbol)
		if err != nil {
			logger.Warn("Failed to initialize Telegram bot, alerts go to the log", log.FieldError, err)
		} else {
			notifier = tg
		}
	}

	w := worker.NewEventWorker(res.Store, mirror, notifier)

	ctx, done := cli.GracefulShutdown(logger, cli.ShutdownTimeout, func(context.Context) {
		if err := res.Cleanup(); err != nil {
			logger.Error("Backend close error", log.FieldError, err)
		}
	})

	logger.Info("Performing startup backfill")
	if err := w.Backfill(ctx); err != nil {
		logger.Error("Startup backfill failed", log.FieldError, err)
	}

	go func() {
		ticker := time.NewTicker(backfillInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if err := w.Backfill(ctx); err != nil {
					logger.Error("Periodic backfill failed", log.FieldError, err)
				}
			}
		}
	}()

	logger.Info("Starting spendsmart-worker",
		"exchange", cfg.AMQPExchange,
		"queue", cfg.AMQPQueue,
		"sheets_enabled", mirror != nil)
	if err := res.Publisher.Consume(ctx, w.HandleEvent); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("Message consumption failed", log.FieldError, err)
		_ = res.Cleanup()
		os.Exit(1)
	}

	cli.WaitForShutdown(ctx, done)
	logger.Info("Worker stopped gracefully")
}

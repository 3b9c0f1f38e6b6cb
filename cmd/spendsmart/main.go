package main

import (
	"context"
	"errors"
	"net/http"
	"os"

	"spendsmart/internal/backend"
	"spendsmart/internal/cli"
	apphttp "spendsmart/internal/http"
	"spendsmart/internal/log"
)

func main() {
	cli.LoadEnvFile()
	logger := cli.SetupLogger(log.ComponentApp)
	cfg := cli.LoadAndValidateConfig(logger)

	ledger, err := backend.NewLedger(context.Background(), cfg, logger)
	if err != nil {
		logger.Error("Failed to initialize backend", log.FieldError, err, "backend", cfg.DataBackend)
		os.Exit(1)
	}

	srv, err := apphttp.NewServer(":"+cfg.Port, ledger.Service, apphttp.Options{
		Logger:             logger,
		Symbol:             cfg.CurrencySymbol,
		RateLimitPerMinute: cfg.RateLimitPerMinute,
		SecureCookies:      cfg.SecureCookies,
	})
	if err != nil {
		logger.Error("Failed to build HTTP server", log.FieldError, err)
		os.Exit(1)
	}

	ctx, done := cli.GracefulShutdown(logger, cli.ShutdownTimeout, func(ctx context.Context) {
		if err := srv.Shutdown(ctx); err != nil {
			logger.Error("Server shutdown error", log.FieldError, err)
		}
		if err := ledger.Close(); err != nil {
			logger.Error("Backend close error", log.FieldError, err)
		}
	})

	logger.Info("Starting spendsmart server",
		"port", cfg.Port,
		"backend", cfg.DataBackend,
		"auth_enabled", cfg.AuthEnabled(),
		"amqp_enabled", ledger.Publisher != nil)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error("Server error", log.FieldError, err, "port", cfg.Port)
		os.Exit(1)
	}

	cli.WaitForShutdown(ctx, done)
	logger.Info("Server stopped gracefully")
}

// Package cli provides the initialization shared by the spendsmart
// commands.
package cli

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"spendsmart/internal/config"
	"spendsmart/internal/log"
)

// ShutdownTimeout bounds the cleanup run after a shutdown signal.
const ShutdownTimeout = 30 * time.Second

// SetupLogger builds the process logger for component at the LOG_LEVEL
// from the environment and makes it the slog default.
func SetupLogger(component string) *log.Logger {
	cfg := log.DefaultConfig()
	cfg.Level = log.ParseLevel(os.Getenv("LOG_LEVEL"))
	cfg.Component = component
	logger := log.New(cfg)
	log.SetDefault(logger)
	return logger
}

// LoadEnvFile reads .env from the working directory if one exists.
func LoadEnvFile() {
	_ = godotenv.Load()
}

// LoadAndValidateConfig exits the process when the environment does not
// describe a usable configuration.
func LoadAndValidateConfig(logger *log.Logger) *config.Config {
	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		logger.Error("Configuration validation failed", log.FieldError, err)
		os.Exit(1)
	}
	return cfg
}

// GracefulShutdown returns a context cancelled on SIGINT or SIGTERM, and a
// channel closed once cleanup has run or timeout has elapsed.
func GracefulShutdown(logger *log.Logger, timeout time.Duration, cleanup func(ctx context.Context)) (context.Context, <-chan struct{}) {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	done := make(chan struct{})

	go func() {
		defer close(done)
		<-ctx.Done()
		stop()
		logger.Info("Shutting down", "timeout", timeout)

		cctx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()

		ran := make(chan struct{})
		go func() {
			defer close(ran)
			if cleanup != nil {
				cleanup(cctx)
			}
		}()

		select {
		case <-ran:
			logger.Info("Shutdown complete")
		case <-cctx.Done():
			logger.Warn("Cleanup did not finish before the shutdown timeout")
		}
	}()

	return ctx, done
}

// WaitForShutdown blocks until the context is cancelled and cleanup is done.
func WaitForShutdown(ctx context.Context, done <-chan struct{}) {
	<-ctx.Done()
	<-done
}

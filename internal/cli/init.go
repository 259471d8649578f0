// Package cli provides common initialization shared by cmd/rapport,
// cmd/rapport-worker and cmd/rapportctl.
package cli

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"rapport/internal/config"
	rlog "rapport/internal/log"
)

// SetupLogger initializes structured logging from the LOG_LEVEL and
// LOG_FORMAT environment variables and sets it as the default logger.
func SetupLogger(component string) *rlog.Logger {
	cfg := rlog.DefaultConfig()
	cfg.Component = component
	cfg.Level = rlog.ParseLevel(os.Getenv("LOG_LEVEL"))
	cfg.Format = os.Getenv("LOG_FORMAT")
	logger := rlog.New(cfg)
	rlog.SetDefault(logger)
	return logger
}

// SetupLoggerFor is SetupLogger with the level taken from cfg, which
// already merged LOG_LEVEL with the config file.
func SetupLoggerFor(component string, cfg *config.Config) *rlog.Logger {
	lc := rlog.DefaultConfig()
	lc.Component = component
	lc.Level = rlog.ParseLevel(cfg.LogLevel)
	lc.Format = os.Getenv("LOG_FORMAT")
	logger := rlog.New(lc)
	rlog.SetDefault(logger)
	return logger
}

// LoadEnvFile loads the .env file for local development.
// Errors are ignored silently as this is optional in production.
func LoadEnvFile() {
	_ = godotenv.Load()
}

// LoadConfig loads the configuration, with the TOML file at path (or
// RAPPORT_CONFIG) applied under the environment, and validates it.
func LoadConfig(path string) (*config.Config, error) {
	if path == "" {
		path = os.Getenv("RAPPORT_CONFIG")
	}
	cfg, err := config.LoadFile(path)
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadAndValidateConfig is LoadConfig for daemons: it exits the process
// on failure.
func LoadAndValidateConfig(logger *slog.Logger) *config.Config {
	cfg, err := LoadConfig("")
	if err != nil {
		logger.Error("Configuration validation failed", rlog.FieldError, err)
		os.Exit(1)
	}
	return cfg
}

// GracefulShutdown sets up signal handling for graceful shutdown.
// Returns a context that will be cancelled on shutdown signals,
// and a channel that signals when shutdown is complete.
func GracefulShutdown(logger *slog.Logger, timeout time.Duration, cleanup func(ctx context.Context)) (context.Context, <-chan struct{}) {
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})

	go func() {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
		sig := <-sigChan
		logger.Info("Shutdown signal received", "signal", sig.String())

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), timeout)
		defer shutdownCancel()

		cancel()
		if cleanup != nil {
			cleanup(shutdownCtx)
		}

		if shutdownCtx.Err() != nil {
			logger.Warn("Shutdown timeout reached")
		} else {
			logger.Info("Shutdown complete")
		}
		close(done)
	}()

	return ctx, done
}

// WaitForShutdown blocks until the context is cancelled.
func WaitForShutdown(ctx context.Context, done <-chan struct{}) {
	<-ctx.Done()
	<-done
}

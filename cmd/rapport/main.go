package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"time"

	"rapport/internal/cli"
	apphttp "rapport/internal/http"
	rlog "rapport/internal/log"
)

func main() {
	cli.LoadEnvFile()

	logger := cli.SetupLogger(rlog.ComponentApp)
	cfg := cli.LoadAndValidateConfig(logger.Logger)
	logger = cli.SetupLoggerFor(rlog.ComponentApp, cfg)

	app, err := cli.Build(context.Background(), cfg, logger)
	if err != nil {
		logger.Error("Failed to initialize services", rlog.FieldError, err, "backend", cfg.DataBackend)
		os.Exit(1)
	}

	srv := apphttp.NewServer(apphttp.Config{
		Addr:               ":" + cfg.Port,
		RateLimitPerMinute: cfg.RateLimitPerMinute,
		Ready:              app.Ready,
		Location:           cfg.Location(),
		Logger:             logger,
	}, app.Allocator, app.Aggregator, app.Reports)

	ctx, done := cli.GracefulShutdown(logger.Logger, 30*time.Second, func(ctx context.Context) {
		if err := srv.Shutdown(ctx); err != nil {
			logger.Error("Server shutdown error", rlog.FieldError, err)
		}
		if err := app.Close(); err != nil {
			logger.Error("Failed to release backend", rlog.FieldError, err)
		}
	})

	logger.Info("Starting rapport server",
		"port", cfg.Port,
		"backend", cfg.DataBackend,
		"numbering_mode", cfg.NumberingMode,
		"number_lock", cfg.NumberLock)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error("Server error", rlog.FieldError, err, "port", cfg.Port)
		os.Exit(1)
	}

	cli.WaitForShutdown(ctx, done)
	logger.Info("Server stopped gracefully")
}

package main

import (
	"context"
	"errors"
	"os"
	"time"

	"rapport/internal/amqp"
	"rapport/internal/backend"
	"rapport/internal/cli"
	rlog "rapport/internal/log"
	"rapport/internal/storage"
	"rapport/internal/worker"
)

func main() {
	cli.LoadEnvFile()

	logger := cli.SetupLogger(rlog.ComponentWorker)
	cfg := cli.LoadAndValidateConfig(logger.Logger)
	logger = cli.SetupLoggerFor(rlog.ComponentWorker, cfg)

	logger.Info("Starting rapport-worker")

	// Rows written by the server wait here until they reach the sheet.
	repo, err := storage.NewSQLiteRepository(cfg.SQLiteDBPath)
	if err != nil {
		logger.Error("Failed to initialize SQLite repository", rlog.FieldError, err, "path", cfg.SQLiteDBPath)
		os.Exit(1)
	}
	defer repo.Close()

	bcfg, err := backend.FromAppConfig(cfg)
	if err != nil {
		logger.Error("Invalid backend configuration", rlog.FieldError, err)
		os.Exit(1)
	}
	remote, err := backend.NewFactory(logger.For(rlog.ComponentBackend)).
		CreateBackend(context.Background(), bcfg.SheetsConfig())
	if err != nil {
		logger.Error("Failed to initialize Google Sheets ledger", rlog.FieldError, err,
			"spreadsheet_id", cfg.GoogleSpreadsheetID)
		os.Exit(1)
	}
	defer remote.Close()

	amqpClient, err := amqp.NewClient(amqp.Config{
		URL:      cfg.AMQPURL,
		Exchange: cfg.AMQPExchange,
		Queue:    cfg.AMQPQueue,
		Logger:   logger.For(rlog.ComponentAMQP),
	})
	if err != nil {
		logger.Error("Failed to initialize AMQP client", rlog.FieldError, err)
		os.Exit(1)
	}

	syncWorker := worker.NewSyncWorker(repo, remote.Ledger, cfg.SyncBatchSize, logger.For(rlog.ComponentWorker))

	var archiver *worker.ReportArchiver
	if cfg.PDFDirectory != "" {
		archiver, err = worker.NewReportArchiver(cli.NewRenderer(cfg), cfg.PDFDirectory, logger.For(rlog.ComponentWorker))
		if err != nil {
			logger.Error("Failed to initialize report archiver", rlog.FieldError, err, "dir", cfg.PDFDirectory)
			os.Exit(1)
		}
	}
	sweeper := worker.NewSweeper(syncWorker, cfg.SyncInterval)

	ctx, done := cli.GracefulShutdown(logger.Logger, 30*time.Second, func(ctx context.Context) {
		logger.Info("Shutting down worker...")
		if err := sweeper.Stop(ctx); err != nil {
			logger.Error("Failed to stop sweeper", rlog.FieldError, err)
		}
		if err := amqpClient.Close(); err != nil {
			logger.Warn("Failed to close AMQP client", rlog.FieldError, err)
		}
	})

	// Pick up rows whose sync message never arrived.
	logger.Info("Performing startup sync check...")
	if err := syncWorker.StartupSyncCheck(ctx); err != nil {
		logger.Error("Failed startup sync check", rlog.FieldError, err)
	}

	if err := sweeper.Start(ctx); err != nil {
		logger.Error("Failed to start sweeper", rlog.FieldError, err)
		os.Exit(1)
	}

	go func() {
		err := amqpClient.ConsumeLedgerSync(ctx, syncWorker.HandleSyncMessage)
		if err != nil && !errors.Is(err, context.Canceled) {
			logger.Error("Message consumption failed", rlog.FieldError, err)
		}
	}()

	if archiver != nil {
		go func() {
			err := amqpClient.ConsumeReportFinalized(ctx, archiver.HandleReportMessage)
			if err != nil && !errors.Is(err, context.Canceled) {
				logger.Error("Report consumption failed", rlog.FieldError, err)
			}
		}()
	}

	cli.WaitForShutdown(ctx, done)
	logger.Info("Worker stopped")
}

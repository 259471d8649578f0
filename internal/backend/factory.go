package backend

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"rapport/internal/adapters"
	"rapport/internal/amqp"
	"rapport/internal/ledger"
	gsheet "rapport/internal/ledger/google"
	"rapport/internal/ledger/memory"
	"rapport/internal/ledger/xlsx"
	rlog "rapport/internal/log"
	"rapport/internal/numbering"
	"rapport/internal/storage"
)

// DefaultFactory implements the Factory interface
type DefaultFactory struct {
	logger *slog.Logger
}

// NewFactory creates a new backend factory
func NewFactory(logger *slog.Logger) Factory {
	return &DefaultFactory{
		logger: rlog.OrDefault(logger, rlog.ComponentBackend),
	}
}

// CreateBackend implements Factory.CreateBackend
func (f *DefaultFactory) CreateBackend(ctx context.Context, config Config) (*BackendResult, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}

	switch config.Type {
	case SQLiteBackend:
		return f.createSQLiteBackend(config)
	case SheetsBackend:
		return f.createSheetsBackend(ctx, config)
	case XLSXBackend:
		return f.createXLSXBackend(config)
	case MemoryBackend:
		return f.createMemoryBackend(config)
	default:
		return nil, fmt.Errorf("unsupported backend type: %s", config.Type)
	}
}

func (f *DefaultFactory) createSQLiteBackend(config Config) (*BackendResult, error) {
	// Initialize SQLite repository
	sqliteRepo, err := storage.NewSQLiteRepository(config.SQLiteDBPath)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize SQLite repository: %w", err)
	}

	// Initialize AMQP client (optional)
	var amqpClient *amqp.Client
	var publisher adapters.SyncPublisher
	if config.AMQPURL != "" {
		amqpClient, err = amqp.NewClient(amqp.Config{
			URL:      config.AMQPURL,
			Exchange: config.AMQPExchange,
			Queue:    config.AMQPQueue,
			Logger:   rlog.OrDefault(nil, rlog.ComponentAMQP),
		})
		if err != nil {
			f.logger.Warn("Failed to initialize AMQP client, rows wait for the sync sweep", rlog.FieldError, err)
		} else {
			publisher = amqpClient
			f.logger.Info("Initialized AMQP client",
				"exchange", config.AMQPExchange,
				"queue", config.AMQPQueue)
		}
	}

	l := adapters.NewSyncingLedger(sqliteRepo, publisher, nil)
	res := &BackendResult{Ledger: l, Storage: sqliteRepo}
	if amqpClient != nil {
		res.Events = amqpClient
	}

	f.logger.Info("Initialized SQLite backend",
		"db_path", config.SQLiteDBPath,
		"amqp_enabled", amqpClient != nil)

	res.Cleanup = func() error {
		var errs []error
		if amqpClient != nil {
			errs = append(errs, amqpClient.Close())
		}
		errs = append(errs, sqliteRepo.Close())
		return errors.Join(errs...)
	}
	return res, nil
}

func (f *DefaultFactory) createSheetsBackend(ctx context.Context, config Config) (*BackendResult, error) {
	cli, err := gsheet.New(ctx, gsheet.Config{
		SpreadsheetID:   config.GoogleSpreadsheetID,
		SheetName:       config.GoogleSheetName,
		CredentialsJSON: config.GoogleServiceAccountJSON,
		CredentialsFile: config.GoogleServiceAccountFile,
		Timeout:         sheetsTimeout(config.Timeout),
		Logger:          rlog.OrDefault(nil, rlog.ComponentLedger),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to initialize Google Sheets client: %w", err)
	}

	f.logger.Info("Initialized Google Sheets backend",
		"spreadsheet_id", config.GoogleSpreadsheetID,
		"sheet", config.GoogleSheetName)

	return &BackendResult{
		Ledger:  cli,
		Cleanup: nil, // No cleanup needed for sheets backend
	}, nil
}

func (f *DefaultFactory) createXLSXBackend(config Config) (*BackendResult, error) {
	wb, err := xlsx.Open(config.XLSXPath, config.XLSXSheet, ledger.DefaultHeaders)
	if err != nil {
		return nil, fmt.Errorf("failed to open workbook: %w", err)
	}

	f.logger.Info("Initialized workbook backend", "path", wb.Path())

	return &BackendResult{Ledger: wb}, nil
}

func (f *DefaultFactory) createMemoryBackend(config Config) (*BackendResult, error) {
	dataDir := config.DataDirectory
	if dataDir == "" {
		dataDir = "data" // Default directory
	}

	store := memory.NewFromFiles(dataDir)

	f.logger.Info("Initialized memory backend", "data_directory", dataDir)

	return &BackendResult{
		Ledger:  store,
		Cleanup: nil, // No cleanup needed for memory backend
	}, nil
}

// CreateLocker implements Factory.CreateLocker
func (f *DefaultFactory) CreateLocker(ctx context.Context, config LockConfig) (*LockerResult, error) {
	switch config.Type {
	case NoLock, "":
		f.logger.Warn("Number allocation is not serialized, concurrent reports may share a number")
		return &LockerResult{Locker: numbering.NoopLocker{}}, nil

	case FileLock:
		l, err := numbering.NewFileLocker(config.Dir, 0)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize file lock: %w", err)
		}
		f.logger.Info("Initialized file lock", "dir", config.Dir)
		return &LockerResult{Locker: l}, nil

	case RedisLock:
		rdb := redis.NewClient(&redis.Options{Addr: config.RedisAddress})
		pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		defer cancel()
		if err := rdb.Ping(pingCtx).Err(); err != nil {
			_ = rdb.Close()
			return nil, fmt.Errorf("failed to reach redis at %s: %w", config.RedisAddress, err)
		}
		f.logger.Info("Initialized redis lock", "address", config.RedisAddress)
		return &LockerResult{
			Locker:  numbering.NewRedisLocker(rdb, numbering.RedisLockerConfig{}),
			Cleanup: rdb.Close,
		}, nil

	default:
		return nil, fmt.Errorf("unsupported lock type: %s", config.Type)
	}
}

// sheetsTimeout keeps the HTTP timeout above the per-call ledger timeout.
func sheetsTimeout(ledgerTimeout time.Duration) time.Duration {
	if ledgerTimeout <= 0 {
		return 0
	}
	return ledgerTimeout + 5*time.Second
}

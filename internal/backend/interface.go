package backend

import (
	"context"
	"time"

	"rapport/internal/ledger"
	"rapport/internal/numbering"
	"rapport/internal/report"
	"rapport/internal/storage"
)

// CleanupFunc represents a cleanup function for resources
type CleanupFunc func() error

// BackendResult contains the ledger instance and optional cleanup function.
// Storage and Events are set for the sqlite backend only, Events only when
// AMQP is reachable.
type BackendResult struct {
	Ledger  ledger.Ledger
	Storage *storage.SQLiteRepository
	Events  report.Publisher
	Cleanup CleanupFunc
}

// Close runs Cleanup when present.
func (r *BackendResult) Close() error {
	if r == nil || r.Cleanup == nil {
		return nil
	}
	return r.Cleanup()
}

// LockerResult is a numbering lock with its cleanup function.
type LockerResult struct {
	Locker  numbering.Locker
	Cleanup CleanupFunc
}

// Factory creates backends based on configuration
type Factory interface {
	// CreateBackend creates a ledger instance based on the provided config
	CreateBackend(ctx context.Context, config Config) (*BackendResult, error)
	// CreateLocker creates the lock used to serialize number allocation
	CreateLocker(ctx context.Context, config LockConfig) (*LockerResult, error)
}

// Config holds configuration for backend creation
type Config struct {
	// Backend type
	Type BackendType

	// SQLite specific
	SQLiteDBPath string
	AMQPURL      string
	AMQPExchange string
	AMQPQueue    string

	// Local workbook
	XLSXPath  string
	XLSXSheet string

	// Google Sheets specific
	GoogleSpreadsheetID      string
	GoogleSheetName          string
	GoogleServiceAccountJSON string
	GoogleServiceAccountFile string
	Timeout                  time.Duration

	// Memory backend specific
	DataDirectory string
}

// BackendType represents the type of backend
type BackendType string

const (
	MemoryBackend BackendType = "memory"
	SheetsBackend BackendType = "sheets"
	SQLiteBackend BackendType = "sqlite"
	XLSXBackend   BackendType = "xlsx"
)

// String implements fmt.Stringer
func (bt BackendType) String() string {
	return string(bt)
}

// IsValid returns true if the backend type is valid
func (bt BackendType) IsValid() bool {
	switch bt {
	case MemoryBackend, SheetsBackend, SQLiteBackend, XLSXBackend:
		return true
	default:
		return false
	}
}

// LockType selects the numbering lock strategy.
type LockType string

const (
	NoLock    LockType = "none"
	FileLock  LockType = "file"
	RedisLock LockType = "redis"
)

// LockConfig holds configuration for locker creation
type LockConfig struct {
	Type         LockType
	Dir          string
	RedisAddress string
}

package worker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"rapport/internal/amqp"
	"rapport/internal/ledger"
	rlog "rapport/internal/log"
	"rapport/internal/storage"
)

// RowSource is the local store rows are synced from.
type RowSource interface {
	GetRow(ctx context.Context, id int64) (*storage.StoredRow, error)
	PendingSync(ctx context.Context, limit int) ([]storage.PendingRow, error)
	MarkSynced(ctx context.Context, id int64) error
	MarkSyncError(ctx context.Context, id int64) error
}

// SyncWorker copies rows from the local SQLite ledger to the remote one.
type SyncWorker struct {
	storage   RowSource
	remote    ledger.Appender
	batchSize int
	logger    *slog.Logger
}

func NewSyncWorker(source RowSource, remote ledger.Appender, batchSize int, logger *slog.Logger) *SyncWorker {
	if batchSize <= 0 {
		batchSize = 10
	}
	return &SyncWorker{
		storage:   source,
		remote:    remote,
		batchSize: batchSize,
		logger:    rlog.OrDefault(logger, rlog.ComponentWorker),
	}
}

// HandleSyncMessage processes a single ledger sync message from AMQP.
// Redelivered messages for rows already synced are acknowledged without a
// second append.
func (w *SyncWorker) HandleSyncMessage(ctx context.Context, msg *amqp.LedgerSyncMessage) error {
	w.logger.InfoContext(ctx, "Processing sync message",
		rlog.FieldRowID, msg.ID,
		"timestamp", msg.Timestamp)

	if err := w.syncRow(ctx, msg.ID); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			// Nothing to retry for a row that does not exist.
			w.logger.WarnContext(ctx, "Dropping sync message for unknown row", rlog.FieldRowID, msg.ID)
			return nil
		}
		return fmt.Errorf("sync row %d: %w", msg.ID, err)
	}
	return nil
}

// ProcessPending syncs one batch of rows whose message was lost or whose
// previous attempt failed. It returns the number of rows synced.
func (w *SyncWorker) ProcessPending(ctx context.Context) (int, error) {
	return w.processBatch(ctx, w.batchSize)
}

// StartupSyncCheck syncs any pending rows at worker startup, to recover
// from missed AMQP messages or worker downtime.
func (w *SyncWorker) StartupSyncCheck(ctx context.Context) error {
	synced, err := w.processBatch(ctx, w.batchSize*5)
	if err != nil {
		return fmt.Errorf("startup sync check: %w", err)
	}
	w.logger.InfoContext(ctx, "Startup sync check completed", "synced", synced)
	return nil
}

func (w *SyncWorker) processBatch(ctx context.Context, limit int) (int, error) {
	pending, err := w.storage.PendingSync(ctx, limit)
	if err != nil {
		return 0, fmt.Errorf("get pending rows: %w", err)
	}
	if len(pending) == 0 {
		w.logger.DebugContext(ctx, "No pending rows to sync")
		return 0, nil
	}

	synced, failed := 0, 0
	for _, p := range pending {
		if ctx.Err() != nil {
			return synced, ctx.Err()
		}
		if err := w.syncRow(ctx, p.ID); err != nil {
			w.logger.ErrorContext(ctx, "Failed to sync pending row",
				rlog.FieldRowID, p.ID,
				rlog.FieldError, err)
			failed++
			continue
		}
		synced++
	}

	w.logger.InfoContext(ctx, "Pending rows processed",
		"synced", synced,
		"failed", failed)
	return synced, nil
}

func (w *SyncWorker) syncRow(ctx context.Context, id int64) error {
	row, err := w.storage.GetRow(ctx, id)
	if err != nil {
		return fmt.Errorf("get row from storage: %w", err)
	}
	if row.SyncStatus == storage.SyncSynced {
		w.logger.DebugContext(ctx, "Row already synced", rlog.FieldRowID, id)
		return nil
	}

	if err := w.remote.AppendRow(ctx, row.Cells); err != nil {
		if markErr := w.storage.MarkSyncError(ctx, id); markErr != nil {
			w.logger.ErrorContext(ctx, "Failed to mark sync error", rlog.FieldRowID, id, rlog.FieldError, markErr)
		}
		return fmt.Errorf("append to remote ledger: %w", err)
	}

	// The remote append worked; a failed mark only means a later duplicate.
	if err := w.storage.MarkSynced(ctx, id); err != nil {
		w.logger.ErrorContext(ctx, "Failed to mark as synced", rlog.FieldRowID, id, rlog.FieldError, err)
	}

	w.logger.InfoContext(ctx, "Successfully synced ledger row",
		rlog.FieldRowID, id,
		rlog.FieldDocumentNumber, row.DocumentNumber)
	return nil
}

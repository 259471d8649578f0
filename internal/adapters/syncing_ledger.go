package adapters

import (
	"context"
	"log/slog"

	"rapport/internal/ledger"
	rlog "rapport/internal/log"
)

// RowStore is the local ledger the SyncingLedger writes through.
type RowStore interface {
	ledger.Reader
	InsertRow(ctx context.Context, cells []string) (int64, error)
}

// SyncPublisher announces a stored row to the sync worker.
type SyncPublisher interface {
	PublishLedgerSync(ctx context.Context, id int64) error
}

// SyncingLedger adapts the SQLite store and a message publisher to
// ledger.Ledger. Reads and writes hit SQLite; every append is followed by a
// sync message so the worker copies the row to the remote spreadsheet.
type SyncingLedger struct {
	store     RowStore
	publisher SyncPublisher
	logger    *slog.Logger
}

var _ ledger.Ledger = (*SyncingLedger)(nil)

// NewSyncingLedger wires store and publisher; publisher may be nil, then
// rows wait for the worker's pending sweep.
func NewSyncingLedger(store RowStore, publisher SyncPublisher, logger *slog.Logger) *SyncingLedger {
	return &SyncingLedger{
		store:     store,
		publisher: publisher,
		logger:    rlog.OrDefault(logger, rlog.ComponentStorage),
	}
}

// AllRows implements ledger.Reader
func (l *SyncingLedger) AllRows(ctx context.Context) ([][]string, error) {
	return l.store.AllRows(ctx)
}

// AppendRow implements ledger.Appender. A failed publish is logged only,
// the row stays pending in storage.
func (l *SyncingLedger) AppendRow(ctx context.Context, cells []string) error {
	id, err := l.store.InsertRow(ctx, cells)
	if err != nil {
		return err
	}
	if l.publisher == nil {
		return nil
	}
	if err := l.publisher.PublishLedgerSync(ctx, id); err != nil {
		l.logger.WarnContext(ctx, "Failed to publish ledger sync message, row left pending",
			rlog.FieldRowID, id,
			rlog.FieldError, err)
	}
	return nil
}

package stats

import (
	"context"
	"log/slog"
	"time"

	"rapport/internal/core"
	"rapport/internal/ledger"
	rlog "rapport/internal/log"
)

// DefaultTimeout bounds one ledger read.
const DefaultTimeout = 10 * time.Second

type Config struct {
	Columns ledger.Columns
	Timeout time.Duration
	Clock   core.Clock
	Logger  *slog.Logger
}

// Aggregator reads the whole ledger on every call and summarises it.
type Aggregator struct {
	reader ledger.Reader
	cfg    Config
	logger *slog.Logger
}

func New(reader ledger.Reader, cfg Config) *Aggregator {
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	if cfg.Clock == nil {
		cfg.Clock = core.SystemClock{}
	}
	cfg.Columns = cfg.Columns.WithDefaults()
	return &Aggregator{
		reader: reader,
		cfg:    cfg,
		logger: rlog.OrDefault(cfg.Logger, rlog.ComponentStats),
	}
}

// Snapshot returns the dashboard figures. A ledger that can't be read
// yields a zero snapshot with OutcomeLedgerUnavailable.
func (a *Aggregator) Snapshot(ctx context.Context) Report {
	now := a.cfg.Clock.Now()

	readCtx, cancel := context.WithTimeout(ctx, a.cfg.Timeout)
	defer cancel()

	rows, err := a.reader.AllRows(readCtx)
	if err != nil {
		a.logger.WarnContext(ctx, "Ledger unavailable, returning empty dashboard",
			rlog.FieldOutcome, core.OutcomeLedgerUnavailable.String(),
			rlog.FieldError, err)
		return Report{Snapshot: Zero(), Outcome: core.OutcomeLedgerUnavailable, Err: err}
	}

	rep := Aggregate(rows, now, a.cfg.Columns)
	switch {
	case rep.Outcome == core.OutcomeMalformed:
		a.logger.WarnContext(ctx, "Ledger headers lack a date or gross column",
			rlog.FieldOutcome, rep.Outcome.String(),
			"headers", headerRow(rows))
	case rep.Dropped > 0 || rep.BadAmounts > 0:
		a.logger.InfoContext(ctx, "Ledger rows skipped during aggregation",
			rlog.FieldRows, len(rows)-1,
			rlog.FieldRowsDropped, rep.Dropped,
			"bad_amounts", rep.BadAmounts)
	}
	return rep
}

func headerRow(rows [][]string) []string {
	if len(rows) == 0 {
		return nil
	}
	return rows[0]
}

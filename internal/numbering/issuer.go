package numbering

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"rapport/internal/core"
	"rapport/internal/ledger"
	rlog "rapport/internal/log"
)

// ErrLedgerUnavailable is returned by a strict Issuer that refuses to
// append a fallback number.
var ErrLedgerUnavailable = errors.New("ledger unavailable, number not issued")

// IssuerConfig configures an Issuer.
type IssuerConfig struct {
	// Locker defaults to NoopLocker.
	Locker Locker
	// Strict refuses to append when the ledger could not be read instead
	// of appending the fallback number.
	Strict  bool
	Timeout time.Duration
	Logger  *slog.Logger
}

// IssueResult describes the row an Issuer appended.
type IssueResult struct {
	Result
	Cells []string
}

// Issuer holds the allocation lock across read, next and append. With a
// real Locker no two issued rows share a number.
type Issuer struct {
	alloc    *Allocator
	appender ledger.Appender
	cfg      IssuerConfig
	logger   *slog.Logger
}

func NewIssuer(alloc *Allocator, appender ledger.Appender, cfg IssuerConfig) *Issuer {
	if cfg.Locker == nil {
		cfg.Locker = NoopLocker{}
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = alloc.cfg.Timeout
	}
	return &Issuer{
		alloc:    alloc,
		appender: appender,
		cfg:      cfg,
		logger:   rlog.OrDefault(cfg.Logger, rlog.ComponentNumbering),
	}
}

func (i *Issuer) Allocator() *Allocator { return i.alloc }

// Issue allocates a number, lets build turn it into ledger cells and
// appends them. An append failure is returned; the number is then unused.
func (i *Issuer) Issue(ctx context.Context, build func(number string) []string) (IssueResult, error) {
	// One reading of the clock keys both the lock and the number.
	now := i.alloc.cfg.Clock.Now()
	key := LockKey(now, i.alloc.cfg.Mode)
	release, err := i.cfg.Locker.Acquire(ctx, key)
	if err != nil {
		return IssueResult{}, fmt.Errorf("acquire numbering lock %s: %w", key, err)
	}
	defer func() {
		relCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
		defer cancel()
		if err := release(relCtx); err != nil {
			i.logger.WarnContext(ctx, "Failed to release numbering lock",
				rlog.FieldLockKey, key, rlog.FieldError, err)
		}
	}()

	res := i.alloc.NextAt(ctx, now)
	if res.Outcome == core.OutcomeLedgerUnavailable && i.cfg.Strict {
		return IssueResult{Result: res}, fmt.Errorf("%w: %v", ErrLedgerUnavailable, res.Err)
	}

	cells := build(res.Number)
	appendCtx, cancel := context.WithTimeout(ctx, i.cfg.Timeout)
	defer cancel()
	if err := i.appender.AppendRow(appendCtx, cells); err != nil {
		return IssueResult{Result: res}, fmt.Errorf("append %s: %w", res.Number, err)
	}

	i.logger.InfoContext(ctx, "Document number issued",
		rlog.FieldDocumentNumber, res.Number,
		rlog.FieldLockKey, key,
		rlog.FieldOutcome, res.Outcome.String())
	return IssueResult{Result: res, Cells: cells}, nil
}

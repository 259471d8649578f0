package numbering

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

// Config configures an Allocator. Zero values select the defaults.
type Config struct {
	Mode    Mode
	Columns ledger.Columns
	Timeout time.Duration
	Clock   core.Clock
	Logger  *slog.Logger
}

// Result is the allocated number plus why a fallback was used, if it was.
type Result struct {
	Number  string
	Key     string
	Outcome core.Outcome
	Err     error
}

// Allocator reads the ledger and proposes the next document number.
// It does not reserve the number: two callers reading the same ledger
// state get the same answer. Use an Issuer to serialize read and append.
type Allocator struct {
	reader ledger.Reader
	cfg    Config
	logger *slog.Logger
}

func New(reader ledger.Reader, cfg Config) *Allocator {
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	if cfg.Clock == nil {
		cfg.Clock = core.SystemClock{}
	}
	cfg.Columns = cfg.Columns.WithDefaults()
	return &Allocator{
		reader: reader,
		cfg:    cfg,
		logger: rlog.OrDefault(cfg.Logger, rlog.ComponentNumbering),
	}
}

func (a *Allocator) Mode() Mode { return a.cfg.Mode }

// FallbackNumber is the number Next returns when the ledger can't be read.
func (a *Allocator) FallbackNumber(now time.Time) string {
	return FallbackNumber(now, a.cfg.Mode)
}

// Next proposes the number following the last ledger entry.
func (a *Allocator) Next(ctx context.Context) Result {
	return a.NextAt(ctx, a.cfg.Clock.Now())
}

// NextAt is Next as seen at now.
func (a *Allocator) NextAt(ctx context.Context, now time.Time) Result {
	res := Result{Key: LockKey(now, a.cfg.Mode)}

	readCtx, cancel := context.WithTimeout(ctx, a.cfg.Timeout)
	defer cancel()

	rows, err := a.reader.AllRows(readCtx)
	if err != nil {
		res.Number = a.FallbackNumber(now)
		res.Outcome = core.OutcomeLedgerUnavailable
		res.Err = err
		a.logger.WarnContext(ctx, "Ledger unavailable, using fallback number",
			rlog.FieldDocumentNumber, res.Number,
			rlog.FieldOutcome, res.Outcome.String(),
			rlog.FieldError, err)
		return res
	}

	numbers := ledger.Column(rows, a.numberColumn(rows))
	res.Number, res.Outcome = inspect(numbers, now, a.cfg.Mode)
	if res.Outcome != core.OutcomeOK {
		a.logger.WarnContext(ctx, "Last ledger number not usable, restarting sequence",
			rlog.FieldDocumentNumber, res.Number,
			rlog.FieldOutcome, res.Outcome.String(),
			"last", numbers[len(numbers)-1])
		return res
	}

	a.logger.DebugContext(ctx, "Next document number",
		rlog.FieldDocumentNumber, res.Number,
		rlog.FieldRows, len(rows))
	return res
}

// numberColumn finds the document number column by header, falling back
// to the first column.
func (a *Allocator) numberColumn(rows [][]string) int {
	if len(rows) == 0 {
		return 0
	}
	if idx, ok := ledger.FindAnyColumn(rows[0], a.cfg.Columns.Number...); ok {
		return idx
	}
	return 0
}

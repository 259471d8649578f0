package worker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"rapport/internal/amqp"
	rlog "rapport/internal/log"
	"rapport/internal/report"
)

// ReportArchiver renders every finalized report into a directory, one
// file per document number. A redelivered event rewrites the same file.
type ReportArchiver struct {
	renderer report.Renderer
	dir      string
	logger   *slog.Logger
}

func NewReportArchiver(renderer report.Renderer, dir string, logger *slog.Logger) (*ReportArchiver, error) {
	if strings.TrimSpace(dir) == "" {
		return nil, errors.New("missing PDF directory")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create PDF directory: %w", err)
	}
	return &ReportArchiver{
		renderer: renderer,
		dir:      dir,
		logger:   rlog.OrDefault(logger, rlog.ComponentWorker),
	}, nil
}

// HandleReportMessage renders one finalized report. An event without a
// document number is logged and dropped.
func (a *ReportArchiver) HandleReportMessage(ctx context.Context, msg *amqp.ReportFinalizedMessage) error {
	number := strings.TrimSpace(msg.Report.DocumentNumber)
	if number == "" {
		a.logger.WarnContext(ctx, "Dropping report event without document number", "timestamp", msg.Timestamp)
		return nil
	}

	path := a.Path(number)
	if err := report.RenderToFile(ctx, a.renderer, msg.Report, path); err != nil {
		return fmt.Errorf("render %s: %w", number, err)
	}
	a.logger.InfoContext(ctx, "Report rendered",
		rlog.FieldDocumentNumber, number,
		"path", path)
	return nil
}

// Path is where the report numbered number is written.
func (a *ReportArchiver) Path(number string) string {
	safe := strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_':
			return r
		default:
			return '_'
		}
	}, number)
	return filepath.Join(a.dir, safe+".pdf")
}

package extract

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	rlog "rapport/internal/log"
	"rapport/internal/report"
)

// Pipeline runs a voice memo through transcription, extraction and
// finalization.
type Pipeline struct {
	transcriber Transcriber
	extractor   Extractor
	finalizer   Finalizer
	logger      *slog.Logger
}

// Result holds every intermediate product of a pipeline run.
type Result struct {
	Transcript string
	Draft      report.Draft
	Report     report.Finalized
}

func NewPipeline(t Transcriber, e Extractor, f Finalizer, logger *slog.Logger) *Pipeline {
	return &Pipeline{
		transcriber: t,
		extractor:   e,
		finalizer:   f,
		logger:      rlog.OrDefault(logger, rlog.ComponentExtract),
	}
}

// Process returns what was produced up to the failing step along with the
// error, so a caller can show the transcript even if extraction failed.
func (p *Pipeline) Process(ctx context.Context, filename string, audio io.Reader) (Result, error) {
	var res Result

	text, err := p.transcriber.Transcribe(ctx, filename, audio)
	if err != nil {
		return res, fmt.Errorf("transcribe: %w", err)
	}
	res.Transcript = text

	d, err := p.extractor.Extract(ctx, text)
	if err != nil {
		return res, fmt.Errorf("extract: %w", err)
	}
	res.Draft = d

	fin, err := p.finalizer.Finalize(ctx, d)
	if err != nil {
		return res, err
	}
	res.Report = fin

	p.logger.InfoContext(ctx, "Voice memo processed",
		"file", filename,
		rlog.FieldDocumentNumber, fin.Row.DocumentNumber,
		rlog.FieldOutcome, fin.NumberOutcome.String())
	return res, nil
}

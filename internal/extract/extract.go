// Package extract turns a voice memo into a report draft: speech to text,
// then a language model pulls the job fields out of the transcript.
package extract

import (
	"context"
	"errors"
	"io"

	"rapport/internal/report"
)

var (
	ErrEmptyTranscript = errors.New("empty transcript")
	ErrNoFields        = errors.New("no report fields in model output")
)

// Ports for the speech and language model collaborators.
type (
	Transcriber interface {
		Transcribe(ctx context.Context, filename string, audio io.Reader) (string, error)
	}

	Extractor interface {
		Extract(ctx context.Context, transcript string) (report.Draft, error)
	}

	Finalizer interface {
		Finalize(ctx context.Context, d report.Draft) (report.Finalized, error)
	}
)

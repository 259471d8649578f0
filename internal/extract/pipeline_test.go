package extract

import (
	"context"
	"errors"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"rapport/internal/core"
	"rapport/internal/ledger"
	"rapport/internal/ledger/memory"
	rlog "rapport/internal/log"
	"rapport/internal/numbering"
	"rapport/internal/report"
)

type staticTranscriber struct {
	text string
	err  error
}

func (s staticTranscriber) Transcribe(_ context.Context, _ string, audio io.Reader) (string, error) {
	_, _ = io.Copy(io.Discard, audio)
	return s.text, s.err
}

type staticExtractor struct {
	draft report.Draft
	err   error
}

func (s staticExtractor) Extract(context.Context, string) (report.Draft, error) {
	return s.draft, s.err
}

func newFinalizer(store *memory.Store) *report.Service {
	clock := core.FixedClock(time.Date(2025, time.June, 2, 8, 0, 0, 0, time.UTC))
	alloc := numbering.New(store, numbering.Config{Clock: clock, Logger: rlog.Discard()})
	issuer := numbering.NewIssuer(alloc, store, numbering.IssuerConfig{Logger: rlog.Discard()})
	return report.NewService(issuer, nil, report.Config{Clock: clock, Logger: rlog.Discard()})
}

func TestPipelineProcess(t *testing.T) {
	store := memory.New(ledger.DefaultHeaders)
	p := NewPipeline(
		staticTranscriber{text: "Meyer, Heizung"},
		staticExtractor{draft: report.Draft{CustomerName: "Meyer", Description: "Heizung", Net: decimal.NewFromInt(50)}},
		newFinalizer(store),
		rlog.Discard(),
	)
	res, err := p.Process(context.Background(), "memo.m4a", strings.NewReader("audio"))
	if err != nil {
		t.Fatalf("process: %v", err)
	}
	if res.Transcript != "Meyer, Heizung" || res.Report.Row.DocumentNumber != "B-2025-06-01" {
		t.Fatalf("unexpected result: %+v", res)
	}
	if store.Len() != 2 {
		t.Fatalf("expected row appended")
	}
}

func TestPipelineKeepsTranscriptOnExtractFailure(t *testing.T) {
	store := memory.New(ledger.DefaultHeaders)
	cause := errors.New("model down")
	p := NewPipeline(staticTranscriber{text: "hallo"}, staticExtractor{err: cause}, newFinalizer(store), rlog.Discard())
	res, err := p.Process(context.Background(), "memo.m4a", strings.NewReader(""))
	if !errors.Is(err, cause) || res.Transcript != "hallo" {
		t.Fatalf("unexpected result: %+v err=%v", res, err)
	}
	if store.Len() != 1 {
		t.Fatalf("nothing should be appended")
	}
}

func TestPipelineTranscribeFailure(t *testing.T) {
	p := NewPipeline(staticTranscriber{err: ErrEmptyTranscript}, staticExtractor{}, newFinalizer(memory.New(nil)), rlog.Discard())
	if _, err := p.Process(context.Background(), "memo.m4a", strings.NewReader("")); !errors.Is(err, ErrEmptyTranscript) {
		t.Fatalf("expected ErrEmptyTranscript, got %v", err)
	}
}

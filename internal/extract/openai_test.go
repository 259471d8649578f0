package extract

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"

	rlog "rapport/internal/log"
)

func newFakeOpenAI(t *testing.T, replies ...string) (*OpenAI, *int32) {
	t.Helper()
	var calls int32
	mux := http.NewServeMux()
	mux.HandleFunc("/v1/audio/transcriptions", func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseMultipartForm(1 << 20); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		if r.FormValue("language") != "de" {
			http.Error(w, "language missing", http.StatusBadRequest)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{"text": " Bei Frau Meyer tropft die Heizung. "})
	})
	mux.HandleFunc("/v1/chat/completions", func(w http.ResponseWriter, r *http.Request) {
		i := int(atomic.AddInt32(&calls, 1)) - 1
		content := replies[len(replies)-1]
		if i < len(replies) {
			content = replies[i]
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"id":      "cmpl-1",
			"object":  "chat.completion",
			"choices": []any{map[string]any{"index": 0, "message": map[string]any{"role": "assistant", "content": content}}},
		})
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)

	o, err := NewOpenAI(OpenAIConfig{APIKey: "test", BaseURL: srv.URL + "/v1/", MaxRetries: 2, Logger: rlog.Discard()})
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	return o, &calls
}

func TestNewOpenAIRequiresKey(t *testing.T) {
	if _, err := NewOpenAI(OpenAIConfig{}); err == nil {
		t.Fatalf("expected error without API key")
	}
}

func TestOpenAITranscribe(t *testing.T) {
	o, _ := newFakeOpenAI(t, "{}")
	text, err := o.Transcribe(context.Background(), "memo.m4a", strings.NewReader("audio"))
	if err != nil {
		t.Fatalf("transcribe: %v", err)
	}
	if text != "Bei Frau Meyer tropft die Heizung." {
		t.Fatalf("unexpected transcript %q", text)
	}
}

func TestOpenAIExtractRetriesBadOutput(t *testing.T) {
	o, calls := newFakeOpenAI(t, "Entschuldigung, ich kann das nicht.", `{"kunde_name":"Meyer","problem_detail":"Heizung tropft","netto":80}`)
	d, err := o.Extract(context.Background(), "Bei Frau Meyer tropft die Heizung.")
	if err != nil {
		t.Fatalf("extract: %v", err)
	}
	if d.CustomerName != "Meyer" || d.Net.IntPart() != 80 {
		t.Fatalf("unexpected draft: %+v", d)
	}
	if atomic.LoadInt32(calls) != 2 {
		t.Fatalf("expected 2 calls, got %d", *calls)
	}
}

func TestOpenAIExtractGivesUp(t *testing.T) {
	o, _ := newFakeOpenAI(t, "nope")
	if _, err := o.Extract(context.Background(), "irgendwas"); err == nil {
		t.Fatalf("expected error after retries")
	}
	if _, err := o.Extract(context.Background(), " "); !errors.Is(err, ErrEmptyTranscript) {
		t.Fatalf("expected ErrEmptyTranscript, got %v", err)
	}
}

package main

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"rapport/internal/numbering"
)

func writeTestConfig(t *testing.T, dir string) string {
	t.Helper()
	for _, key := range []string{"DATA_BACKEND", "XLSX_PATH", "NUMBER_LOCK", "NUMBER_LOCK_DIR", "NUMBERING_MODE", "TIMEZONE", "TAX_RATE"} {
		t.Setenv(key, "")
	}
	path := filepath.Join(dir, "rapport.toml")
	body := `
[ledger]
backend = "xlsx"
timezone = "UTC"

[xlsx]
path = "` + filepath.ToSlash(filepath.Join(dir, "ledger.xlsx")) + `"

[numbering]
lock = "file"
lock_dir = "` + filepath.ToSlash(filepath.Join(dir, "locks")) + `"
`
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func runCLI(t *testing.T, args ...string) (string, string, error) {
	t.Helper()
	cmd := newRootCommand()
	var out, errOut bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&errOut)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), errOut.String(), err
}

func TestFinalizeThenNextNumber(t *testing.T) {
	dir := t.TempDir()
	cfg := writeTestConfig(t, dir)
	prefix := numbering.LockKey(time.Now().UTC(), numbering.ModePeriod)

	out, _, err := runCLI(t, "--config", cfg, "ledger", "init")
	if err != nil || !strings.Contains(out, "already initialized") {
		t.Fatalf("ledger init: %q %v", out, err)
	}

	out, _, err = runCLI(t, "--config", cfg, "--json", "finalize",
		"--customer", "Weber", "--description", "Therme getauscht", "--net", "100,00")
	if err != nil {
		t.Fatalf("finalize: %v", err)
	}
	var fin map[string]string
	if err := json.Unmarshal([]byte(out), &fin); err != nil {
		t.Fatalf("decode %q: %v", out, err)
	}
	if fin["document_number"] != prefix+"-01" || fin["gross"] != "119,00" {
		t.Fatalf("unexpected report %v", fin)
	}

	out, _, err = runCLI(t, "--config", cfg, "next-number")
	if err != nil || strings.TrimSpace(out) != prefix+"-02" {
		t.Fatalf("next-number: %q %v", out, err)
	}

	out, _, err = runCLI(t, "--config", cfg, "--json", "dashboard")
	if err != nil {
		t.Fatalf("dashboard: %v", err)
	}
	var dash struct {
		Gross string `json:"monthly_gross_revenue"`
		Today int    `json:"today_count"`
	}
	if err := json.Unmarshal([]byte(out), &dash); err != nil {
		t.Fatalf("decode %q: %v", out, err)
	}
	if dash.Gross != "119,00" || dash.Today != 1 {
		t.Fatalf("unexpected dashboard %+v", dash)
	}

	out, _, err = runCLI(t, "--config", cfg, "dashboard")
	if err != nil || !strings.Contains(out, "119,00 €") {
		t.Fatalf("dashboard table: %q %v", out, err)
	}
}

func TestFinalizeWritesPDF(t *testing.T) {
	dir := t.TempDir()
	cfg := writeTestConfig(t, dir)
	out := filepath.Join(dir, "rapport.pdf")

	_, stderr, err := runCLI(t, "--config", cfg, "finalize",
		"--customer", "Meyer GmbH", "--address", "Hauptstr. 1, 26721 Emden",
		"--description", "Heizung entlüftet", "--urgency", "hoch", "--net", "80,00",
		"--pdf", out)
	if err != nil {
		t.Fatalf("finalize: %v", err)
	}
	if !strings.Contains(stderr, "wrote "+out) {
		t.Fatalf("expected the PDF path on stderr, got %q", stderr)
	}
	data, err := os.ReadFile(out)
	if err != nil || !bytes.HasPrefix(data, []byte("%PDF-")) {
		t.Fatalf("expected a PDF document, got %d bytes, %v", len(data), err)
	}

	// The ledger row stays even when the PDF can't be written.
	_, _, err = runCLI(t, "--config", cfg, "finalize",
		"--customer", "Weber", "--description", "Therme getauscht", "--net", "10",
		"--pdf", filepath.Join(dir, "missing", "rapport.pdf"))
	if err == nil || !strings.Contains(err.Error(), "recorded, but the PDF was not written") {
		t.Fatalf("expected PDF error, got %v", err)
	}
	next, _, err := runCLI(t, "--config", cfg, "next-number")
	prefix := numbering.LockKey(time.Now().UTC(), numbering.ModePeriod)
	if err != nil || strings.TrimSpace(next) != prefix+"-03" {
		t.Fatalf("next-number: %q %v", next, err)
	}
}

func TestFinalizeRejectsBadInput(t *testing.T) {
	cfg := writeTestConfig(t, t.TempDir())

	if _, _, err := runCLI(t, "--config", cfg, "finalize", "--customer", "Weber", "--net", "abc"); err == nil || !strings.Contains(err.Error(), "--net") {
		t.Fatalf("expected net error, got %v", err)
	}
	if _, _, err := runCLI(t, "--config", cfg, "finalize", "--customer", "Weber", "--net", "10"); err == nil || !strings.Contains(err.Error(), "rejected") {
		t.Fatalf("expected missing description to be rejected, got %v", err)
	}
}

func TestProcessNeedsAPIKey(t *testing.T) {
	cfg := writeTestConfig(t, t.TempDir())
	t.Setenv("OPENAI_API_KEY", "")
	if _, _, err := runCLI(t, "--config", cfg, "process", "memo.m4a"); err == nil || !strings.Contains(err.Error(), "OPENAI_API_KEY") {
		t.Fatalf("expected missing key error, got %v", err)
	}
}

func TestEuro(t *testing.T) {
	cases := map[string]string{"1234.5": "1.234,50 €", "0": "0,00 €", "19": "19,00 €"}
	for in, want := range cases {
		if got := euro(decimal.RequireFromString(in)); got != want {
			t.Errorf("euro(%s) = %q, want %q", in, got, want)
		}
	}
}

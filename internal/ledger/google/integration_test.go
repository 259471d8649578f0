//go:build integration

package google

import (
	"context"
	"os"
	"testing"
	"time"

	"rapport/internal/core"
	"rapport/internal/ledger"

	"github.com/shopspring/decimal"
)

// Integration tests require a real spreadsheet shared with a service account.
// Run with: go test -tags=integration ./internal/ledger/google

func TestIntegration_LedgerRoundTrip(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}
	spreadsheetID := os.Getenv("GOOGLE_SPREADSHEET_ID")
	if spreadsheetID == "" {
		t.Skip("GOOGLE_SPREADSHEET_ID not set, skipping integration test")
	}
	credsJSON := os.Getenv("GOOGLE_SERVICE_ACCOUNT_JSON")
	credsFile := os.Getenv("GOOGLE_SERVICE_ACCOUNT_FILE")
	if credsJSON == "" && credsFile == "" {
		t.Skip("service account credentials not configured, skipping integration test")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	client, err := New(ctx, Config{
		SpreadsheetID:   spreadsheetID,
		SheetName:       os.Getenv("GOOGLE_SHEET_NAME"),
		CredentialsJSON: credsJSON,
		CredentialsFile: credsFile,
	})
	if err != nil {
		t.Fatalf("Failed to create client: %v", err)
	}

	if _, err := client.EnsureHeaders(ctx, ledger.DefaultHeaders); err != nil {
		t.Fatalf("Failed to ensure headers: %v", err)
	}

	before, err := client.AllRows(ctx)
	if err != nil {
		t.Fatalf("Failed to read ledger: %v", err)
	}

	net := decimal.RequireFromString("10.00")
	tax, gross := core.TaxFromNet(net, decimal.RequireFromString("0.19"))
	row := core.LedgerRow{
		DocumentNumber: "IT-" + time.Now().Format("150405"),
		Date:           time.Now(),
		CustomerName:   "Integration Test",
		Description:    "round trip",
		NetAmount:      net,
		TaxAmount:      tax,
		GrossAmount:    gross,
	}
	if err := client.AppendRow(ctx, ledger.RowCells(row, core.DefaultAccountRef)); err != nil {
		t.Fatalf("Failed to append row: %v", err)
	}

	after, err := client.AllRows(ctx)
	if err != nil {
		t.Fatalf("Failed to re-read ledger: %v", err)
	}
	if len(after) != len(before)+1 {
		t.Fatalf("expected %d rows, got %d", len(before)+1, len(after))
	}
	last := after[len(after)-1]
	if last[0] != row.DocumentNumber {
		t.Errorf("expected last row %s, got %v", row.DocumentNumber, last)
	}
}

package google

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"strings"
	"time"

	"golang.org/x/oauth2"
	goauth "golang.org/x/oauth2/google"
	goption "google.golang.org/api/option"
	gsheet "google.golang.org/api/sheets/v4"

	"rapport/internal/ledger"
)

// Config describes how to reach the ledger sheet.
type Config struct {
	SpreadsheetID string
	// SheetName is the tab holding the ledger (default "Ledger").
	SheetName string
	// Service account credentials: inline JSON wins over the file path.
	CredentialsJSON string
	CredentialsFile string
	// Timeout bounds every HTTP round trip to the Sheets API (default 30s).
	Timeout time.Duration
	Logger  *slog.Logger
}

type Client struct {
	svc           *gsheet.Service
	spreadsheetID string
	sheetName     string
	logger        *slog.Logger
}

// Ensure interface conformance
var _ ledger.Ledger = (*Client)(nil)

// New creates a Sheets ledger client authenticated with a service account.
func New(ctx context.Context, cfg Config) (*Client, error) {
	if strings.TrimSpace(cfg.SpreadsheetID) == "" {
		return nil, errors.New("missing spreadsheet id")
	}
	creds, err := loadCredentials(cfg)
	if err != nil {
		return nil, err
	}
	svc, err := newSheetsService(ctx, creds, cfg.Timeout)
	if err != nil {
		return nil, fmt.Errorf("sheets service: %w", err)
	}
	return NewWithService(svc, cfg), nil
}

// NewWithService wraps an already configured Sheets service.
func NewWithService(svc *gsheet.Service, cfg Config) *Client {
	sheet := strings.TrimSpace(cfg.SheetName)
	if sheet == "" {
		sheet = "Ledger"
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{
		svc:           svc,
		spreadsheetID: strings.TrimSpace(cfg.SpreadsheetID),
		sheetName:     sheet,
		logger:        logger,
	}
}

func loadCredentials(cfg Config) ([]byte, error) {
	switch {
	case strings.TrimSpace(cfg.CredentialsJSON) != "":
		return []byte(cfg.CredentialsJSON), nil
	case strings.TrimSpace(cfg.CredentialsFile) != "":
		b, err := os.ReadFile(cfg.CredentialsFile)
		if err != nil {
			return nil, fmt.Errorf("read service account file: %w", err)
		}
		return b, nil
	default:
		return nil, errors.New("missing service account credentials")
	}
}

// newSheetsService builds a Sheets service on top of a pooled HTTP client
// so a hung API call can't block a request indefinitely.
func newSheetsService(ctx context.Context, credentialsJSON []byte, timeout time.Duration) (*gsheet.Service, error) {
	jwt, err := goauth.JWTConfigFromJSON(credentialsJSON, gsheet.SpreadsheetsScope)
	if err != nil {
		return nil, fmt.Errorf("parse service account credentials: %w", err)
	}
	base := newHTTPClientWithPooling(timeout)
	authed := jwt.Client(context.WithValue(ctx, oauth2.HTTPClient, base))
	authed.Timeout = base.Timeout

	service, err := gsheet.NewService(ctx, goption.WithHTTPClient(authed))
	if err != nil {
		return nil, fmt.Errorf("create sheets service: %w", err)
	}
	slog.InfoContext(ctx, "Google Sheets service created", "timeout", authed.Timeout)
	return service, nil
}

// newHTTPClientWithPooling creates an HTTP client for the Sheets API with
// connection pooling and bounded timeouts.
func newHTTPClientWithPooling(timeout time.Duration) *http.Client {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	dialer := &net.Dialer{
		Timeout:   10 * time.Second,
		KeepAlive: 30 * time.Second,
	}
	transport := &http.Transport{
		DialContext:           dialer.DialContext,
		MaxIdleConns:          20,
		MaxIdleConnsPerHost:   10,
		IdleConnTimeout:       90 * time.Second,
		TLSHandshakeTimeout:   10 * time.Second,
		ResponseHeaderTimeout: timeout,
		ExpectContinueTimeout: 1 * time.Second,
		ForceAttemptHTTP2:     true,
	}
	return &http.Client{
		Transport: transport,
		Timeout:   timeout,
	}
}

// AllRows reads every row of the ledger tab, headers first.
func (c *Client) AllRows(ctx context.Context) ([][]string, error) {
	if c.svc == nil {
		return nil, fmt.Errorf("%w: sheets service not initialized", ledger.ErrUnavailable)
	}
	rng := c.readRange()
	resp, err := c.svc.Spreadsheets.Values.Get(c.spreadsheetID, rng).
		ValueRenderOption("FORMATTED_VALUE").Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("%w: read %s: %v", ledger.ErrUnavailable, rng, err)
	}
	return valuesToRows(resp.Values), nil
}

// AppendRow appends one row below the last non-empty row. Cells are stored
// RAW so comma-decimal strings survive untouched.
func (c *Client) AppendRow(ctx context.Context, cells []string) error {
	if c.svc == nil {
		return fmt.Errorf("%w: sheets service not initialized", ledger.ErrUnavailable)
	}
	if len(cells) == 0 {
		return errors.New("empty row")
	}
	rng := c.appendRange()
	vr := &gsheet.ValueRange{Values: [][]any{toValues(cells)}}
	resp, err := c.svc.Spreadsheets.Values.Append(c.spreadsheetID, rng, vr).
		ValueInputOption("RAW").InsertDataOption("INSERT_ROWS").Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("append to %s: %w", rng, err)
	}
	updated := ""
	if resp != nil && resp.Updates != nil {
		updated = resp.Updates.UpdatedRange
	}
	c.logger.InfoContext(ctx, "Row appended to sheet", "sheet", c.sheetName, "updated_range", updated)
	return nil
}

// EnsureHeaders writes headers into row 1 when the sheet is empty.
func (c *Client) EnsureHeaders(ctx context.Context, headers []string) (bool, error) {
	rows, err := c.AllRows(ctx)
	if err != nil {
		return false, err
	}
	if len(rows) > 0 {
		return false, nil
	}
	rng := fmt.Sprintf("%s!A1", quoteSheet(c.sheetName))
	vr := &gsheet.ValueRange{Values: [][]any{toValues(headers)}}
	if _, err := c.svc.Spreadsheets.Values.Update(c.spreadsheetID, rng, vr).
		ValueInputOption("RAW").Context(ctx).Do(); err != nil {
		return false, fmt.Errorf("write headers: %w", err)
	}
	return true, nil
}

// readRange is wider than the written layout: hand-edited ledgers grow
// extra columns.
func (c *Client) readRange() string {
	return fmt.Sprintf("%s!A:Z", quoteSheet(c.sheetName))
}

func (c *Client) appendRange() string {
	return fmt.Sprintf("%s!A:%s", quoteSheet(c.sheetName), columnLetter(len(ledger.DefaultHeaders)))
}

// Package report turns an extracted job description into a ledger row
// with an issued document number.
package report

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"rapport/internal/core"
	"rapport/internal/ledger"
	rlog "rapport/internal/log"
	"rapport/internal/numbering"
)

// DefaultTaxRate is the flat VAT rate applied to the net amount.
var DefaultTaxRate = decimal.RequireFromString("0.19")

var ErrInvalidDraft = errors.New("invalid report draft")

// Draft is a report before it has a number.
type Draft struct {
	CustomerName string
	Address      string
	Description  string
	Urgency      string
	Net          decimal.Decimal
	// Date is the booking date; zero means today.
	Date       time.Time
	AccountRef string
}

// Validate checks the fields a ledger row needs.
func (d Draft) Validate() error {
	var errs []error
	if strings.TrimSpace(d.CustomerName) == "" {
		errs = append(errs, core.ErrEmptyCustomer)
	}
	if strings.TrimSpace(d.Description) == "" {
		errs = append(errs, core.ErrEmptyDescription)
	}
	if d.Net.IsNegative() {
		errs = append(errs, core.ErrNegativeAmount)
	}
	if len(errs) > 0 {
		return fmt.Errorf("%w: %w", ErrInvalidDraft, errors.Join(errs...))
	}
	return nil
}

// Finalized is a report that has been written to the ledger.
type Finalized struct {
	Row   core.LedgerRow
	Cells []string
	Draft Draft
	// NumberOutcome tells whether the number was derived from the ledger
	// or is a fallback.
	NumberOutcome core.Outcome
}

// Event is published after a report reached the ledger.
type Event struct {
	DocumentNumber string    `json:"document_number"`
	Date           string    `json:"date"`
	CustomerName   string    `json:"customer_name"`
	Address        string    `json:"address,omitempty"`
	Description    string    `json:"description"`
	Urgency        string    `json:"urgency,omitempty"`
	Net            string    `json:"net"`
	Tax            string    `json:"tax"`
	Gross          string    `json:"gross"`
	AccountRef     string    `json:"account_ref"`
	FinalizedAt    time.Time `json:"finalized_at"`
}

// Publisher hands finalized reports to downstream consumers (PDF, mail).
type Publisher interface {
	PublishReportFinalized(ctx context.Context, e Event) error
}

// Renderer lays a finalized report out as a printable document.
type Renderer interface {
	Render(ctx context.Context, e Event, w io.Writer) error
}

// RenderToFile renders e into path. The file is written under a temporary
// name and renamed, so a reader never sees a partial document and a second
// rendering of the same report replaces the first.
func RenderToFile(ctx context.Context, r Renderer, e Event, path string) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), ".render-*")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if err := r.Render(ctx, e, tmp); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("move rendered report to %s: %w", path, err)
	}
	return nil
}

type Config struct {
	TaxRate           decimal.Decimal
	DefaultAccountRef string
	Clock             core.Clock
	Logger            *slog.Logger
}

type Service struct {
	issuer    *numbering.Issuer
	publisher Publisher
	cfg       Config
	logger    *slog.Logger
}

// NewService wires a report service. publisher may be nil.
func NewService(issuer *numbering.Issuer, publisher Publisher, cfg Config) *Service {
	if cfg.TaxRate.IsZero() {
		cfg.TaxRate = DefaultTaxRate
	}
	if strings.TrimSpace(cfg.DefaultAccountRef) == "" {
		cfg.DefaultAccountRef = core.DefaultAccountRef
	}
	if cfg.Clock == nil {
		cfg.Clock = core.SystemClock{}
	}
	return &Service{
		issuer:    issuer,
		publisher: publisher,
		cfg:       cfg,
		logger:    rlog.OrDefault(cfg.Logger, rlog.ComponentReport),
	}
}

func (s *Service) TaxRate() decimal.Decimal { return s.cfg.TaxRate }

// Finalize computes tax and gross, issues a number and appends the row.
// When the append fails nothing was recorded and the error is returned.
func (s *Service) Finalize(ctx context.Context, d Draft) (Finalized, error) {
	if err := d.Validate(); err != nil {
		return Finalized{}, err
	}

	now := s.cfg.Clock.Now()
	date := d.Date
	if date.IsZero() {
		date = now
	}
	net := d.Net.Round(2)
	tax, gross := core.TaxFromNet(net, s.cfg.TaxRate)

	row := core.LedgerRow{
		Date:               date,
		CustomerName:       strings.TrimSpace(d.CustomerName),
		Description:        strings.TrimSpace(d.Description),
		NetAmount:          net,
		TaxAmount:          tax,
		GrossAmount:        gross,
		CustomerAccountRef: strings.TrimSpace(d.AccountRef),
	}
	res, err := s.issuer.Issue(ctx, func(number string) []string {
		row.DocumentNumber = number
		return ledger.RowCells(row, s.cfg.DefaultAccountRef)
	})
	if err != nil {
		s.logger.ErrorContext(ctx, "Failed to finalize report",
			rlog.FieldCustomer, row.CustomerName,
			rlog.FieldError, err)
		return Finalized{}, fmt.Errorf("finalize report: %w", err)
	}
	row.DocumentNumber = res.Number

	fin := Finalized{Row: row, Cells: res.Cells, Draft: d, NumberOutcome: res.Outcome}
	s.publish(ctx, fin, now)
	return fin, nil
}

// Event describes fin the way it is published.
func (s *Service) Event(fin Finalized) Event {
	return EventOf(fin, s.cfg.DefaultAccountRef, s.cfg.Clock.Now())
}

func (s *Service) publish(ctx context.Context, fin Finalized, now time.Time) {
	if s.publisher == nil {
		return
	}
	if err := s.publisher.PublishReportFinalized(ctx, EventOf(fin, s.cfg.DefaultAccountRef, now)); err != nil {
		// The row is already in the ledger.
		s.logger.ErrorContext(ctx, "Failed to publish finalized report",
			rlog.FieldDocumentNumber, fin.Row.DocumentNumber,
			rlog.FieldError, err)
	}
}

// EventOf builds the event describing fin.
func EventOf(fin Finalized, fallbackAccount string, at time.Time) Event {
	r := fin.Row
	return Event{
		DocumentNumber: r.DocumentNumber,
		Date:           core.FormatLedgerDate(r.Date),
		CustomerName:   r.CustomerName,
		Address:        strings.TrimSpace(fin.Draft.Address),
		Description:    r.Description,
		Urgency:        strings.TrimSpace(fin.Draft.Urgency),
		Net:            core.FormatAmount(r.NetAmount),
		Tax:            core.FormatAmount(r.TaxAmount),
		Gross:          core.FormatAmount(r.GrossAmount),
		AccountRef:     r.AccountRef(fallbackAccount),
		FinalizedAt:    at.UTC(),
	}
}

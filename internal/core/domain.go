package core

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// DefaultAccountRef is the accounting cross-reference used when a row has none.
const DefaultAccountRef = "10000"

type (
	// LedgerRow is one persisted financial record. Amounts are kept as
	// decimals here and stored as comma-decimal strings in the ledger.
	LedgerRow struct {
		DocumentNumber     string
		Date               time.Time
		CustomerName       string
		Description        string
		NetAmount          decimal.Decimal
		TaxAmount          decimal.Decimal
		GrossAmount        decimal.Decimal
		CustomerAccountRef string
	}

	// PeriodKey identifies a numbering bucket: one calendar month.
	PeriodKey struct {
		Year  int
		Month int
	}

	// PeriodRevenue is one bar of the trailing revenue series.
	PeriodRevenue struct {
		Period PeriodKey
		Label  string
		Gross  decimal.Decimal
	}

	// AggregateSnapshot is the dashboard summary computed from the ledger.
	AggregateSnapshot struct {
		MonthlyGrossRevenue decimal.Decimal
		TodayCount          int
		WeekCount           int
		MonthlySeries       []PeriodRevenue
	}
)

var (
	ErrEmptyCustomer    = errors.New("empty customer name")
	ErrEmptyDescription = errors.New("empty description")
	ErrEmptyNumber      = errors.New("empty document number")
	ErrNegativeAmount   = errors.New("negative amount")
)

// PeriodOf returns the numbering period containing t.
func PeriodOf(t time.Time) PeriodKey {
	return PeriodKey{Year: t.Year(), Month: int(t.Month())}
}

// Prefix returns the document number prefix, e.g. "B-2025-03".
func (p PeriodKey) Prefix() string {
	return fmt.Sprintf("B-%04d-%02d", p.Year, p.Month)
}

// Label returns the chart label, e.g. "2025-03".
func (p PeriodKey) Label() string {
	return fmt.Sprintf("%04d-%02d", p.Year, p.Month)
}

// Before reports whether p is chronologically earlier than o.
func (p PeriodKey) Before(o PeriodKey) bool {
	if p.Year != o.Year {
		return p.Year < o.Year
	}
	return p.Month < o.Month
}

// AccountRef returns the row's account reference or the fallback code.
func (r LedgerRow) AccountRef(fallback string) string {
	if ref := strings.TrimSpace(r.CustomerAccountRef); ref != "" {
		return ref
	}
	if strings.TrimSpace(fallback) != "" {
		return fallback
	}
	return DefaultAccountRef
}

func (r LedgerRow) Validate() error {
	if strings.TrimSpace(r.DocumentNumber) == "" {
		return ErrEmptyNumber
	}
	if r.Date.IsZero() {
		return ErrInvalidDate
	}
	if strings.TrimSpace(r.CustomerName) == "" {
		return ErrEmptyCustomer
	}
	if r.NetAmount.IsNegative() || r.GrossAmount.IsNegative() {
		return ErrNegativeAmount
	}
	return nil
}

// IsZero reports whether the snapshot carries no data at all.
func (s AggregateSnapshot) IsZero() bool {
	return s.MonthlyGrossRevenue.IsZero() && s.TodayCount == 0 && s.WeekCount == 0 && len(s.MonthlySeries) == 0
}

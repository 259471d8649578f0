// Package ledger defines the ports to the external spreadsheet ledger and
// the header-driven column lookup shared by every component that reads it.
package ledger

import (
	"context"
	"errors"
)

// ErrUnavailable marks a ledger that could not be reached or read.
var ErrUnavailable = errors.New("ledger unavailable")

// Ports for outbound adapters.
type (
	// Reader returns raw cell values. Row 0 holds the headers; rows may be
	// shorter than the header row.
	Reader interface {
		AllRows(ctx context.Context) ([][]string, error)
	}

	// Appender appends exactly one row at the end of the ledger.
	Appender interface {
		AppendRow(ctx context.Context, cells []string) error
	}

	Ledger interface {
		Reader
		Appender
	}
)

package ledger

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"

	"rapport/internal/core"
)

// DefaultHeaders is the header row written to a fresh ledger. RowCells uses
// the same column order.
var DefaultHeaders = []string{
	"Document Number",
	"Date",
	"Customer",
	"Description",
	"Net",
	"Tax",
	"Gross",
	"Account",
}

// RowCells converts a row to ledger cells in DefaultHeaders order.
func RowCells(r core.LedgerRow, fallbackAccount string) []string {
	return []string{
		r.DocumentNumber,
		core.FormatLedgerDate(r.Date),
		r.CustomerName,
		r.Description,
		core.FormatAmount(r.NetAmount),
		core.FormatAmount(r.TaxAmount),
		core.FormatAmount(r.GrossAmount),
		r.AccountRef(fallbackAccount),
	}
}

// RowFromCells reads a row back using the resolved layout. Unparsable
// amounts are returned as errors joined together; the row is still filled
// with whatever could be read.
func RowFromCells(layout Layout, cells []string) (core.LedgerRow, error) {
	var errs []error
	row := core.LedgerRow{
		DocumentNumber:     Cell(cells, layout.Number),
		CustomerName:       Cell(cells, layout.Customer),
		Description:        Cell(cells, layout.Description),
		CustomerAccountRef: Cell(cells, layout.Account),
	}
	if d, err := core.ParseLedgerDate(Cell(cells, layout.Date), nil); err != nil {
		errs = append(errs, fmt.Errorf("date: %w", err))
	} else {
		row.Date = d
	}
	amount := func(name string, idx int) decimal.Decimal {
		if idx < 0 {
			return decimal.Zero
		}
		d, err := core.ParseAmount(Cell(cells, idx))
		if err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", name, err))
			return decimal.Zero
		}
		return d
	}
	row.NetAmount = amount("net", layout.Net)
	row.TaxAmount = amount("tax", layout.Tax)
	row.GrossAmount = amount("gross", layout.Gross)
	return row, errors.Join(errs...)
}

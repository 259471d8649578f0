package ledger

import (
	"strings"
)

// Columns lists, per logical field, the header substrings that identify its
// column. Header wording drifts between ledger versions, so lookup is by
// case-insensitive substring and the first candidate that matches wins.
type Columns struct {
	Number      []string
	Date        []string
	Customer    []string
	Description []string
	Net         []string
	Tax         []string
	Gross       []string
	Account     []string
}

// DefaultColumns matches the English headers written by this module and the
// German wording of older ledgers.
func DefaultColumns() Columns {
	return Columns{
		Number:      []string{"document", "number", "nummer", "nr."},
		Date:        []string{"date", "datum"},
		Customer:    []string{"customer", "kunde", "client"},
		Description: []string{"description", "beschreibung", "leistung"},
		Net:         []string{"net", "netto"},
		Tax:         []string{"tax", "mwst", "vat", "umsatzsteuer", "ust."},
		Gross:       []string{"gross", "brutto"},
		Account:     []string{"account", "konto"},
	}
}

// WithDefaults fills every field without candidates from DefaultColumns.
func (c Columns) WithDefaults() Columns {
	def := DefaultColumns()
	fill := func(dst *[]string, src []string) {
		if len(*dst) == 0 {
			*dst = src
		}
	}
	fill(&c.Number, def.Number)
	fill(&c.Date, def.Date)
	fill(&c.Customer, def.Customer)
	fill(&c.Description, def.Description)
	fill(&c.Net, def.Net)
	fill(&c.Tax, def.Tax)
	fill(&c.Gross, def.Gross)
	fill(&c.Account, def.Account)
	return c
}

// Layout holds resolved column indexes; -1 means the column is absent.
type Layout struct {
	Number      int
	Date        int
	Customer    int
	Description int
	Net         int
	Tax         int
	Gross       int
	Account     int
}

// Resolve maps every logical field to a column of headers.
func (c Columns) Resolve(headers []string) Layout {
	idx := func(candidates []string) int {
		if i, ok := FindAnyColumn(headers, candidates...); ok {
			return i
		}
		return -1
	}
	return Layout{
		Number:      idx(c.Number),
		Date:        idx(c.Date),
		Customer:    idx(c.Customer),
		Description: idx(c.Description),
		Net:         idx(c.Net),
		Tax:         idx(c.Tax),
		Gross:       idx(c.Gross),
		Account:     idx(c.Account),
	}
}

// FindColumn returns the index of the first header containing substring,
// compared case-insensitively.
func FindColumn(headers []string, substring string) (int, bool) {
	needle := strings.ToLower(strings.TrimSpace(substring))
	if needle == "" {
		return -1, false
	}
	for i, h := range headers {
		if strings.Contains(strings.ToLower(h), needle) {
			return i, true
		}
	}
	return -1, false
}

// FindAnyColumn tries each candidate substring in order.
func FindAnyColumn(headers []string, candidates ...string) (int, bool) {
	for _, c := range candidates {
		if i, ok := FindColumn(headers, c); ok {
			return i, true
		}
	}
	return -1, false
}

// Cell returns the trimmed value at idx, or "" for short rows and idx < 0.
func Cell(row []string, idx int) string {
	if idx < 0 || idx >= len(row) {
		return ""
	}
	return strings.TrimSpace(row[idx])
}

// Column extracts one column from rows, header row included. Short rows
// yield "".
func Column(rows [][]string, idx int) []string {
	out := make([]string, len(rows))
	for i, row := range rows {
		out[i] = Cell(row, idx)
	}
	return out
}

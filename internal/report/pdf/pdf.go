// Package pdf renders the "Auftrag / Rapport" sheet the technician leaves
// with the customer: letterhead, recipient, job description, urgency,
// amounts and the two signature lines.
package pdf

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/go-pdf/fpdf"

	"rapport/internal/core"
	"rapport/internal/report"
)

// Letterhead is the sender block printed in the header and footer.
type Letterhead struct {
	Company   string
	Owner     string
	Address   string
	Phone     string
	Bank      string
	IBAN      string
	TaxNumber string
	VATID     string
}

type Config struct {
	Letterhead Letterhead
	// Clock stamps the creation date; nil reads the wall clock.
	Clock core.Clock
	// Uncompressed leaves page streams readable.
	Uncompressed bool
}

// Renderer draws A4 reports with the PDF core fonts.
type Renderer struct {
	cfg Config
}

var _ report.Renderer = (*Renderer)(nil)

func New(cfg Config) *Renderer {
	if cfg.Clock == nil {
		cfg.Clock = core.SystemClock{}
	}
	return &Renderer{cfg: cfg}
}

// Render writes e as a PDF document to w.
func (r *Renderer) Render(ctx context.Context, e report.Event, w io.Writer) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	doc := fpdf.New("P", "mm", "A4", "")
	// Core fonts are cp1252; umlauts and € need the translation.
	tr := doc.UnicodeTranslatorFromDescriptor("")

	doc.SetCompression(!r.cfg.Uncompressed)
	doc.SetTitle("Auftrag / Rapport "+e.DocumentNumber, true)
	doc.SetAuthor(r.cfg.Letterhead.Company, true)
	doc.SetCreator("rapport", true)
	doc.SetCreationDate(r.cfg.Clock.Now())
	doc.SetAutoPageBreak(true, 35)
	doc.SetHeaderFunc(func() { r.header(doc, tr) })
	doc.SetFooterFunc(func() { r.footer(doc, tr) })

	doc.AddPage()
	r.recipient(doc, tr, e)
	r.body(doc, tr, e)
	signatures(doc)

	if err := doc.Output(w); err != nil {
		return fmt.Errorf("render report %s: %w", e.DocumentNumber, err)
	}
	return nil
}

func (r *Renderer) header(doc *fpdf.Fpdf, tr func(string) string) {
	lh := r.cfg.Letterhead
	doc.SetFont("Helvetica", "B", 15)
	doc.CellFormat(80, 10, tr(lh.Company), "", 1, "L", false, 0, "")
	doc.SetFont("Helvetica", "", 10)
	doc.CellFormat(80, 5, tr(lh.Owner), "", 1, "L", false, 0, "")
	doc.CellFormat(80, 5, tr(lh.Address), "", 1, "L", false, 0, "")

	doc.SetDrawColor(200, 200, 200)
	doc.Line(10, 35, 200, 35)
	doc.SetDrawColor(0, 0, 0)
	doc.Ln(20)
}

func (r *Renderer) footer(doc *fpdf.Fpdf, tr func(string) string) {
	lh := r.cfg.Letterhead
	doc.SetY(-30)
	doc.SetFont("Helvetica", "I", 8)
	doc.SetTextColor(128, 128, 128)

	rows := [][3]string{
		{lh.Company, label("Bankverbindung:", lh.Bank, lh.IBAN), label("Steuernummer:", lh.TaxNumber)},
		{prefixed("Tel: ", lh.Phone), lh.Bank, lh.TaxNumber},
		{"", prefixed("IBAN: ", lh.IBAN), prefixed("USt-IdNr.: ", lh.VATID)},
	}
	for _, row := range rows {
		doc.CellFormat(60, 5, tr(row[0]), "", 0, "L", false, 0, "")
		doc.CellFormat(60, 5, tr(row[1]), "", 0, "L", false, 0, "")
		doc.CellFormat(0, 5, tr(row[2]), "", 1, "L", false, 0, "")
	}
	doc.SetTextColor(0, 0, 0)
}

func (r *Renderer) recipient(doc *fpdf.Fpdf, tr func(string) string, e report.Event) {
	lh := r.cfg.Letterhead
	doc.Ln(5)
	if sender := joinNonEmpty(" - ", lh.Company, lh.Address); sender != "" {
		doc.SetFont("Helvetica", "U", 8)
		doc.CellFormat(0, 5, tr(sender), "", 1, "L", false, 0, "")
	}

	doc.Ln(5)
	doc.SetFont("Helvetica", "B", 12)
	doc.CellFormat(0, 5, tr(e.CustomerName), "", 1, "L", false, 0, "")
	doc.SetFont("Helvetica", "", 12)
	for _, line := range addressLines(e.Address) {
		doc.CellFormat(0, 5, tr(line), "", 1, "L", false, 0, "")
	}
}

func (r *Renderer) body(doc *fpdf.Fpdf, tr func(string) string, e report.Event) {
	doc.Ln(20)
	doc.SetFont("Helvetica", "B", 16)
	doc.CellFormat(0, 10, "Auftrag / Rapport", "", 1, "L", false, 0, "")
	doc.SetFont("Helvetica", "", 10)
	doc.CellFormat(95, 5, tr("Nr. "+e.DocumentNumber), "", 0, "L", false, 0, "")
	doc.CellFormat(0, 5, tr("Datum: "+e.Date), "", 1, "R", false, 0, "")

	doc.Ln(10)
	doc.SetFont("Helvetica", "B", 11)
	doc.SetFillColor(240, 240, 240)
	doc.CellFormat(0, 8, "Problembeschreibung / Meldung:", "", 1, "L", true, 0, "")
	doc.SetFont("Helvetica", "", 11)
	doc.MultiCell(0, 6, tr(e.Description), "", "L", false)

	doc.Ln(5)
	urgency := strings.TrimSpace(e.Urgency)
	if urgency == "" {
		urgency = "-"
	}
	doc.SetFont("Helvetica", "B", 11)
	doc.CellFormat(40, 8, "Dringlichkeit:", "", 0, "L", false, 0, "")
	doc.SetFont("Helvetica", "", 11)
	doc.CellFormat(0, 8, tr(urgency), "", 1, "L", false, 0, "")

	doc.Ln(5)
	for _, a := range []struct{ label, value string }{
		{"Netto", e.Net},
		{"MwSt.", e.Tax},
		{"Brutto", e.Gross},
	} {
		style := ""
		if a.label == "Brutto" {
			style = "B"
		}
		doc.SetFont("Helvetica", style, 11)
		doc.CellFormat(150, 6, a.label, "", 0, "R", false, 0, "")
		doc.CellFormat(0, 6, tr(a.value+" €"), "", 1, "R", false, 0, "")
	}
}

func signatures(doc *fpdf.Fpdf) {
	doc.Ln(30)
	y := doc.GetY()
	doc.Line(10, y, 90, y)
	doc.Line(110, y, 190, y)

	doc.SetFont("Helvetica", "", 8)
	doc.CellFormat(90, 5, "Datum, Unterschrift Monteur", "", 0, "C", false, 0, "")
	doc.CellFormat(10, 5, "", "", 0, "", false, 0, "")
	doc.CellFormat(90, 5, "Datum, Unterschrift Kunde", "", 1, "C", false, 0, "")
}

// addressLines splits a one-line address at commas or newlines.
func addressLines(address string) []string {
	var lines []string
	for _, part := range strings.FieldsFunc(address, func(r rune) bool { return r == '\n' || r == ',' }) {
		if p := strings.TrimSpace(part); p != "" {
			lines = append(lines, p)
		}
	}
	return lines
}

func joinNonEmpty(sep string, parts ...string) string {
	var kept []string
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			kept = append(kept, p)
		}
	}
	return strings.Join(kept, sep)
}

func prefixed(prefix, v string) string {
	if strings.TrimSpace(v) == "" {
		return ""
	}
	return prefix + v
}

// label returns title when any of values is set.
func label(title string, values ...string) string {
	if joinNonEmpty("", values...) == "" {
		return ""
	}
	return title
}

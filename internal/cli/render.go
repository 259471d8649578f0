package cli

import (
	"rapport/internal/config"
	"rapport/internal/core"
	"rapport/internal/report/pdf"
)

// NewRenderer builds the PDF renderer with the configured letterhead.
func NewRenderer(cfg *config.Config) *pdf.Renderer {
	return pdf.New(pdf.Config{
		Letterhead: pdf.Letterhead{
			Company:   cfg.CompanyName,
			Owner:     cfg.CompanyOwner,
			Address:   cfg.CompanyAddress,
			Phone:     cfg.CompanyPhone,
			Bank:      cfg.CompanyBank,
			IBAN:      cfg.CompanyIBAN,
			TaxNumber: cfg.CompanyTaxNumber,
			VATID:     cfg.CompanyVATID,
		},
		Clock: core.SystemClock{Location: cfg.Location()},
	})
}

package http

import (
	"strings"

	"rapport/internal/core"
	"rapport/internal/numbering"
	"rapport/internal/report"
	"rapport/internal/stats"
)

// Amounts travel as comma-decimal strings, the way the ledger stores them.

type numberResponse struct {
	Number   string `json:"number"`
	Period   string `json:"period"`
	Outcome  string `json:"outcome"`
	Fallback bool   `json:"fallback"`
}

func numberDTO(res numbering.Result) numberResponse {
	return numberResponse{
		Number:   res.Number,
		Period:   res.Key,
		Outcome:  res.Outcome.String(),
		Fallback: res.Outcome == core.OutcomeLedgerUnavailable,
	}
}

type seriesPoint struct {
	Label string `json:"label"`
	Gross string `json:"gross"`
}

type dashboardResponse struct {
	MonthlyGrossRevenue string        `json:"monthly_gross_revenue"`
	TodayCount          int           `json:"today_count"`
	WeekCount           int           `json:"week_count"`
	MonthlySeries       []seriesPoint `json:"monthly_series"`
	Outcome             string        `json:"outcome"`
	RowsDropped         int           `json:"rows_dropped,omitempty"`
	BadAmounts          int           `json:"bad_amounts,omitempty"`
}

func dashboardDTO(rep stats.Report) dashboardResponse {
	snap := rep.Snapshot
	series := make([]seriesPoint, 0, len(snap.MonthlySeries))
	for _, p := range snap.MonthlySeries {
		series = append(series, seriesPoint{Label: p.Label, Gross: core.FormatAmount(p.Gross)})
	}
	return dashboardResponse{
		MonthlyGrossRevenue: core.FormatAmount(snap.MonthlyGrossRevenue),
		TodayCount:          snap.TodayCount,
		WeekCount:           snap.WeekCount,
		MonthlySeries:       series,
		Outcome:             rep.Outcome.String(),
		RowsDropped:         rep.Dropped,
		BadAmounts:          rep.BadAmounts,
	}
}

type overviewResponse struct {
	NextNumber numberResponse    `json:"next_number"`
	Dashboard  dashboardResponse `json:"dashboard"`
}

// reportRequest is a draft as submitted by a client. Date is DD.MM.YYYY
// and may be empty for today.
type reportRequest struct {
	CustomerName string `json:"customer_name"`
	Address      string `json:"address"`
	Description  string `json:"description"`
	Urgency      string `json:"urgency"`
	Net          string `json:"net"`
	Date         string `json:"date"`
	AccountRef   string `json:"account_ref"`
}

type reportResponse struct {
	DocumentNumber string `json:"document_number"`
	Date           string `json:"date"`
	CustomerName   string `json:"customer_name"`
	Description    string `json:"description"`
	Net            string `json:"net"`
	Tax            string `json:"tax"`
	Gross          string `json:"gross"`
	AccountRef     string `json:"account_ref"`
	NumberOutcome  string `json:"number_outcome"`
}

func reportDTO(fin report.Finalized) reportResponse {
	r := fin.Row
	// The account column holds the reference actually written.
	account := r.AccountRef("")
	if len(fin.Cells) > 7 && strings.TrimSpace(fin.Cells[7]) != "" {
		account = fin.Cells[7]
	}
	return reportResponse{
		DocumentNumber: r.DocumentNumber,
		Date:           core.FormatLedgerDate(r.Date),
		CustomerName:   r.CustomerName,
		Description:    r.Description,
		Net:            core.FormatAmount(r.NetAmount),
		Tax:            core.FormatAmount(r.TaxAmount),
		Gross:          core.FormatAmount(r.GrossAmount),
		AccountRef:     account,
		NumberOutcome:  fin.NumberOutcome.String(),
	}
}

type errorResponse struct {
	Error  string   `json:"error"`
	Fields []string `json:"fields,omitempty"`
}

package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"rapport/internal/cli"
	"rapport/internal/core"
	"rapport/internal/stats"
)

func newDashboardCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "dashboard",
		Short: "Show revenue and report counts",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withApp(cmd.Context(), func(app *cli.App) error {
				rep := app.Aggregator.Snapshot(cmd.Context())
				if ctx.jsonOutput() {
					return writeJSON(cmd, dashboardJSON(rep))
				}
				fmt.Fprint(cmd.OutOrStdout(), renderDashboard(rep))
				return nil
			})
		},
	}
}

func dashboardJSON(rep stats.Report) map[string]any {
	series := make([]map[string]string, 0, len(rep.Snapshot.MonthlySeries))
	for _, p := range rep.Snapshot.MonthlySeries {
		series = append(series, map[string]string{"label": p.Label, "gross": core.FormatAmount(p.Gross)})
	}
	return map[string]any{
		"monthly_gross_revenue": core.FormatAmount(rep.Snapshot.MonthlyGrossRevenue),
		"today_count":           rep.Snapshot.TodayCount,
		"week_count":            rep.Snapshot.WeekCount,
		"monthly_series":        series,
		"outcome":               rep.Outcome.String(),
	}
}

func renderDashboard(rep stats.Report) string {
	var b strings.Builder
	snap := rep.Snapshot

	b.WriteString(renderTable(
		[]string{"Figure", "Value"},
		[][]string{
			{"Gross revenue this month", euro(snap.MonthlyGrossRevenue)},
			{"Reports today", count(snap.TodayCount)},
			{"Reports this week", count(snap.WeekCount)},
		},
		[]columnAlignment{alignLeft, alignRight},
	))
	b.WriteString("\n")

	if len(snap.MonthlySeries) > 0 {
		rows := make([][]string, 0, len(snap.MonthlySeries))
		for _, p := range snap.MonthlySeries {
			rows = append(rows, []string{p.Label, euro(p.Gross)})
		}
		b.WriteString(renderTable([]string{"Month", "Gross"}, rows, []columnAlignment{alignLeft, alignRight}))
		b.WriteString("\n")
	}

	switch {
	case rep.Outcome == core.OutcomeLedgerUnavailable:
		fmt.Fprintf(&b, "warning: ledger unavailable (%v)\n", rep.Err)
	case rep.Outcome == core.OutcomeMalformed:
		b.WriteString("warning: ledger header not recognized\n")
	case rep.Dropped > 0 || rep.BadAmounts > 0:
		fmt.Fprintf(&b, "note: %d rows without a readable date, %d without a readable amount\n", rep.Dropped, rep.BadAmounts)
	}
	return b.String()
}

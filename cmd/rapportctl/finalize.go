package main

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"rapport/internal/cli"
	"rapport/internal/core"
	"rapport/internal/report"
)

type draftFlags struct {
	customer    string
	address     string
	description string
	urgency     string
	net         string
	date        string
	account     string
}

func (f draftFlags) draft(loc *time.Location) (report.Draft, error) {
	net, err := core.ParseAmount(f.net)
	if err != nil {
		return report.Draft{}, fmt.Errorf("--net %q: %w", f.net, err)
	}
	d := report.Draft{
		CustomerName: f.customer,
		Address:      f.address,
		Description:  f.description,
		Urgency:      f.urgency,
		Net:          net,
		AccountRef:   f.account,
	}
	if strings.TrimSpace(f.date) != "" {
		if d.Date, err = core.ParseLedgerDate(f.date, loc); err != nil {
			return report.Draft{}, fmt.Errorf("--date %q: %w", f.date, err)
		}
	}
	return d, nil
}

func newFinalizeCommand(ctx *commandContext) *cobra.Command {
	var (
		flags   draftFlags
		pdfPath string
	)

	cmd := &cobra.Command{
		Use:   "finalize",
		Short: "Write a report to the ledger under the next document number",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			d, err := flags.draft(cfg.Location())
			if err != nil {
				return err
			}
			return ctx.withApp(cmd.Context(), func(app *cli.App) error {
				fin, err := app.Reports.Finalize(cmd.Context(), d)
				if err != nil {
					if errors.Is(err, report.ErrInvalidDraft) {
						return fmt.Errorf("report rejected: %w", err)
					}
					return err
				}
				if err := writePDF(cmd, app, fin, pdfPath); err != nil {
					return err
				}
				return printFinalized(cmd, ctx, fin)
			})
		},
	}

	cmd.Flags().StringVar(&flags.customer, "customer", "", "Customer name")
	cmd.Flags().StringVar(&flags.address, "address", "", "Job address")
	cmd.Flags().StringVar(&flags.description, "description", "", "Work performed")
	cmd.Flags().StringVar(&flags.urgency, "urgency", "", "Urgency note")
	cmd.Flags().StringVar(&flags.net, "net", "", "Net amount, e.g. 1.234,50")
	cmd.Flags().StringVar(&flags.date, "date", "", "Booking date DD.MM.YYYY (default today)")
	cmd.Flags().StringVar(&flags.account, "account", "", "Customer account reference")
	cmd.Flags().StringVar(&pdfPath, "pdf", "", "Also render the report sheet to this PDF file")
	_ = cmd.MarkFlagRequired("customer")
	_ = cmd.MarkFlagRequired("net")

	return cmd
}

// writePDF renders the report sheet when path is set. The report is
// already in the ledger, so a failure here names the document number.
func writePDF(cmd *cobra.Command, app *cli.App, fin report.Finalized, path string) error {
	if strings.TrimSpace(path) == "" {
		return nil
	}
	if err := report.RenderToFile(cmd.Context(), app.Renderer, app.Reports.Event(fin), path); err != nil {
		return fmt.Errorf("%s recorded, but the PDF was not written: %w", fin.Row.DocumentNumber, err)
	}
	fmt.Fprintf(cmd.ErrOrStderr(), "wrote %s\n", path)
	return nil
}

func printFinalized(cmd *cobra.Command, ctx *commandContext, fin report.Finalized) error {
	r := fin.Row
	if ctx.jsonOutput() {
		return writeJSON(cmd, map[string]any{
			"document_number": r.DocumentNumber,
			"date":            core.FormatLedgerDate(r.Date),
			"customer_name":   r.CustomerName,
			"description":     r.Description,
			"net":             core.FormatAmount(r.NetAmount),
			"tax":             core.FormatAmount(r.TaxAmount),
			"gross":           core.FormatAmount(r.GrossAmount),
			"number_outcome":  fin.NumberOutcome.String(),
		})
	}
	fmt.Fprint(cmd.OutOrStdout(), renderTable(
		[]string{"Number", "Date", "Customer", "Net", "Tax", "Gross"},
		[][]string{{
			r.DocumentNumber,
			core.FormatLedgerDate(r.Date),
			r.CustomerName,
			euro(r.NetAmount),
			euro(r.TaxAmount),
			euro(r.GrossAmount),
		}},
		[]columnAlignment{alignLeft, alignLeft, alignLeft, alignRight, alignRight, alignRight},
	))
	fmt.Fprintln(cmd.OutOrStdout())
	if fin.NumberOutcome != core.OutcomeOK {
		fmt.Fprintf(cmd.ErrOrStderr(), "warning: number is a fallback (%s), check the ledger\n", fin.NumberOutcome)
	}
	return nil
}

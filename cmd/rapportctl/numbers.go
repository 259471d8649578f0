package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"rapport/internal/cli"
	"rapport/internal/core"
)

func newNextNumberCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "next-number",
		Short: "Show the document number the next report would get",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withApp(cmd.Context(), func(app *cli.App) error {
				res := app.Allocator.Next(cmd.Context())
				if ctx.jsonOutput() {
					return writeJSON(cmd, map[string]any{
						"number":   res.Number,
						"period":   res.Key,
						"outcome":  res.Outcome.String(),
						"fallback": res.Outcome == core.OutcomeLedgerUnavailable,
					})
				}
				out := cmd.OutOrStdout()
				fmt.Fprintln(out, res.Number)
				if res.Outcome != core.OutcomeOK {
					fmt.Fprintf(cmd.ErrOrStderr(), "warning: %s (%v)\n", res.Outcome, res.Err)
				}
				return nil
			})
		},
	}
}

package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"rapport/internal/cli"
	"rapport/internal/ledger"
)

// headerWriter is a ledger that can write its header row on demand.
type headerWriter interface {
	EnsureHeaders(ctx context.Context, headers []string) (bool, error)
}

func newLedgerCommand(ctx *commandContext) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "ledger",
		Short: "Ledger maintenance",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "init",
		Short: "Write the header row to an empty ledger",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withApp(cmd.Context(), func(app *cli.App) error {
				var target any = app.Ledger()
				if app.Backend.Storage != nil {
					target = app.Backend.Storage
				}
				hw, ok := target.(headerWriter)
				if !ok {
					// Workbooks and in-memory ledgers get their header when opened.
					fmt.Fprintln(cmd.OutOrStdout(), "ledger already initialized")
					return nil
				}
				written, err := hw.EnsureHeaders(cmd.Context(), ledger.DefaultHeaders)
				if err != nil {
					return fmt.Errorf("write header row: %w", err)
				}
				if written {
					fmt.Fprintln(cmd.OutOrStdout(), "header row written")
				} else {
					fmt.Fprintln(cmd.OutOrStdout(), "ledger already initialized")
				}
				return nil
			})
		},
	})
	return cmd
}

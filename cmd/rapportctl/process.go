package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"rapport/internal/cli"
	"rapport/internal/extract"
	rlog "rapport/internal/log"
)

func newProcessCommand(ctx *commandContext) *cobra.Command {
	var (
		showTranscript bool
		pdfPath        string
	)

	cmd := &cobra.Command{
		Use:   "process <audio-file>",
		Short: "Transcribe a voice memo and record it as a report",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			logger := ctx.logger()
			ai, err := extract.NewOpenAI(extract.OpenAIConfig{
				APIKey: cfg.OpenAIAPIKey,
				Model:  cfg.OpenAIModel,
				Logger: logger.For(rlog.ComponentExtract),
			})
			if err != nil {
				return fmt.Errorf("%w (set OPENAI_API_KEY)", err)
			}

			f, err := os.Open(args[0])
			if err != nil {
				return err
			}
			defer f.Close()

			return ctx.withApp(cmd.Context(), func(app *cli.App) error {
				pipe := extract.NewPipeline(ai, ai, app.Reports, logger.For(rlog.ComponentExtract))
				res, err := pipe.Process(cmd.Context(), filepath.Base(args[0]), f)
				if showTranscript && res.Transcript != "" {
					fmt.Fprintf(cmd.ErrOrStderr(), "transcript: %s\n", res.Transcript)
				}
				if err != nil {
					return err
				}
				if err := writePDF(cmd, app, res.Report, pdfPath); err != nil {
					return err
				}
				return printFinalized(cmd, ctx, res.Report)
			})
		},
	}
	cmd.Flags().BoolVar(&showTranscript, "transcript", false, "Print the transcript to stderr")
	cmd.Flags().StringVar(&pdfPath, "pdf", "", "Also render the report sheet to this PDF file")
	return cmd
}

package main

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"os"
	"strings"
	"sync"

	"github.com/spf13/cobra"

	"rapport/internal/cli"
	"rapport/internal/config"
	rlog "rapport/internal/log"
)

type commandContext struct {
	configFlag *string
	jsonFlag   *bool

	configOnce sync.Once
	config     *config.Config
	configErr  error

	// stderr receives log output; tests swap it.
	stderr io.Writer
}

func newCommandContext(configFlag *string, jsonFlag *bool) *commandContext {
	return &commandContext{
		configFlag: configFlag,
		jsonFlag:   jsonFlag,
		stderr:     os.Stderr,
	}
}

func (c *commandContext) ensureConfig() (*config.Config, error) {
	c.configOnce.Do(func() {
		cli.LoadEnvFile()
		var path string
		if c.configFlag != nil {
			path = strings.TrimSpace(*c.configFlag)
		}
		c.config, c.configErr = cli.LoadConfig(path)
	})
	return c.config, c.configErr
}

func (c *commandContext) jsonOutput() bool {
	return c.jsonFlag != nil && *c.jsonFlag
}

// logger writes warnings and errors only, keeping stdout for results.
func (c *commandContext) logger() *rlog.Logger {
	level := slog.LevelWarn
	if c.config != nil && strings.EqualFold(c.config.LogLevel, "debug") {
		level = slog.LevelDebug
	}
	return rlog.New(rlog.Config{
		Level:     level,
		Component: rlog.ComponentCLI,
		Output:    c.stderr,
	})
}

// withApp builds the services for one command and releases them after.
func (c *commandContext) withApp(ctx context.Context, fn func(*cli.App) error) error {
	cfg, err := c.ensureConfig()
	if err != nil {
		return err
	}
	app, err := cli.Build(ctx, cfg, c.logger())
	if err != nil {
		return err
	}
	defer app.Close()
	return fn(app)
}

// writeJSON encodes v as indented JSON to the command's stdout.
func writeJSON(cmd *cobra.Command, v any) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

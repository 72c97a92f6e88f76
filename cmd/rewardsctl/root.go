package main

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/carboniq/carboniq-rewards/config"
	"github.com/carboniq/carboniq-rewards/internal/bootstrap"
)

var rootCmd = &cobra.Command{
	Use:           "rewardsctl",
	Short:         "Maintenance commands for the CarbonIQ rewards engine",
	SilenceUsage:  true,
	SilenceErrors: true,
}

// openApp loads configuration from the environment and wires the engine.
func openApp(cmd *cobra.Command) (*bootstrap.App, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	app, err := bootstrap.New(cmd.Context(), cfg, bootstrap.NewLogger(cfg))
	if err != nil {
		return nil, err
	}
	if cfg.App.Storage == config.StorageMemory {
		app.Logger.Warn("APP_STORAGE=memory: changes made by this command are discarded on exit")
	}
	return app, nil
}

var (
	okColor   = color.New(color.FgGreen)
	warnColor = color.New(color.FgYellow)
)

// okf prints a success line. Color is off when stdout is not a terminal.
func okf(w io.Writer, format string, args ...any) {
	_, _ = okColor.Fprintf(w, format+"\n", args...)
}

func warnf(w io.Writer, format string, args ...any) {
	_, _ = warnColor.Fprintf(w, "warning: "+format+"\n", args...)
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

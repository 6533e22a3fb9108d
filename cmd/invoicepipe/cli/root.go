// Package cli wires the invoicepipe commands: the batch pipeline runner
// and the reporting API server share configuration and store setup here.
package cli

import (
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/invoicepipe/invoicepipe/internal/config"
	"github.com/invoicepipe/invoicepipe/internal/logging"
)

var rootCmd = &cobra.Command{
	Use:   "invoicepipe",
	Short: "Invoice batch pipeline and sales reporting API",
	Long: `invoicepipe ingests batches of invoice line files, validates them
against reference dimensions, loads accepted rows into the fact store and
quarantines rejected rows with their original payload.

Commands:
  run      process all batch files in the input directory
  serve    start the read-only sales reporting API
  version  print the build version`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

// setup loads configuration and initializes logging.
// Called by every subcommand that touches the database.
func setup() (*config.Config, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}

	logging.Setup(cfg.Logging.Level, cfg.Logging.Format)
	slog.Debug("configuration loaded", "config", cfg.String())

	return cfg, nil
}

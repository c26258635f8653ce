package main

import (
	"fmt"
	"io"
	"log/slog"

	"github.com/spf13/cobra"

	"csvmapper/internal/config"
	"csvmapper/internal/infrastructure"
	"csvmapper/pkg/contracts"
)

// rootOptions holds the flags shared by every subcommand
type rootOptions struct {
	configPath string
	logLevel   string
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}

	cmd := &cobra.Command{
		Use:   "csvmap",
		Short: "Merge two tables on key columns and pivot the result",
		Long: `csvmap joins two CSV or XLSX files on selected key columns, keeps the
columns you choose and aggregates them into a pivot table.

Run "csvmap serve" for the HTTP API, or use "merge" and "pivot" on local files.`,
		Version:       contracts.Version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	cmd.SetVersionTemplate(contracts.GetFullVersionString() + "\n")

	cmd.PersistentFlags().StringVar(&opts.configPath, "config", "", "path to a YAML config file")
	cmd.PersistentFlags().StringVar(&opts.logLevel, "log-level", "", "override the configured log level (debug, info, warn, error)")

	cmd.AddCommand(newServeCmd(opts))
	cmd.AddCommand(newMergeCmd(opts))
	cmd.AddCommand(newPivotCmd(opts))
	cmd.AddCommand(newVersionCmd())

	return cmd
}

// loadConfig reads the config file and environment and applies --log-level
func (o *rootOptions) loadConfig() (*config.Config, error) {
	cfg, err := config.Load(o.configPath)
	if err != nil {
		return nil, err
	}
	if o.logLevel != "" {
		cfg.Logging.Level = o.logLevel
	}
	return cfg, nil
}

// fileLogger returns the logger for the offline commands. Output goes to
// stderr so stdout stays free for table data; warnings only unless overridden.
func (o *rootOptions) fileLogger(cfg *config.Config, stderr io.Writer) (*slog.Logger, error) {
	logCfg := cfg.Logging
	logCfg.Output = "console"
	if o.logLevel == "" {
		logCfg.Level = "warn"
	}
	logger, err := infrastructure.NewLogger(logCfg, stderr)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}
	return infrastructure.WithComponent(logger, "cli"), nil
}

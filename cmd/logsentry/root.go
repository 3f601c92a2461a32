package main

import (
	"fmt"
	"log/slog"
	"os"

	"logsentry/internal/config"
	"logsentry/internal/logging"

	"github.com/spf13/cobra"
)

type rootOptions struct {
	configPath string
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}

	cmd := &cobra.Command{
		Use:   "logsentry",
		Short: "Normalize log files and report anomalies",
		Long: `logsentry parses CSV, JSON and space-separated text logs into one table,
removes duplicate entries, orders them by time and reports high-severity
entries and runs of consecutive failed logins.`,
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	cmd.SetVersionTemplate("logsentry {{.Version}}\n")
	cmd.PersistentFlags().StringVar(&opts.configPath, "config", "", "config file (default $LOGSENTRY_CONFIG_PATH or "+config.DefaultPath+")")

	cmd.AddCommand(newAnalyzeCmd(opts), newRulesCmd(opts))
	return cmd
}

// loadConfig reads the configuration selected by --config and installs the
// configured logger, writing to stderr so command output stays clean.
func (o *rootOptions) loadConfig() (*config.Config, *slog.Logger, error) {
	var (
		cfg *config.Config
		err error
	)
	if o.configPath != "" {
		cfg, err = config.LoadFile(o.configPath)
	} else {
		cfg, err = config.Load()
	}
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, nil, err
	}

	logger := logging.New(os.Stderr, cfg.LoggerConfig())
	slog.SetDefault(logger)
	return cfg, logger, nil
}

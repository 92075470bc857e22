// Package cmd defines the CLI commands for the regintel executable.
package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/hkfcheung/regintel-sub001/internal/config"
	"github.com/hkfcheung/regintel-sub001/internal/logging"
)

var cfgFile string

// newRootCmd creates and configures the root command.
func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "regintel",
		Short: "Regulatory document acquisition pipeline",
		Long: `regintel discovers, fetches, deduplicates, and classifies regulatory
documents from allow-listed sources, and runs analysis over the stored
items. The serve command runs the full pipeline behind an HTTP API;
discover and poll-feeds run single scheduler passes.`,
		SilenceUsage: true,
	}

	cmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file path")

	cmd.AddCommand(newServeCmd())
	cmd.AddCommand(newDiscoverCmd())
	cmd.AddCommand(newPollFeedsCmd())
	return cmd
}

// loadEnvironment builds the config and logger shared by every command.
func loadEnvironment() (config.Config, *zap.Logger, error) {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return config.Config{}, nil, fmt.Errorf("load config: %w", err)
	}
	logger, err := logging.New(cfg.Logging.Development)
	if err != nil {
		return config.Config{}, nil, fmt.Errorf("build logger: %w", err)
	}
	return cfg, logger, nil
}

// Execute is the CLI entry point.
func Execute() error {
	return newRootCmd().Execute()
}

package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"gatekeeper-hq/gatekeeper/pkg/cli"
	"gatekeeper-hq/gatekeeper/pkg/config"
	"gatekeeper-hq/gatekeeper/pkg/telemetry/logging"
)

var (
	// Global flags
	cfgFile string
	verbose bool
)

var rootCmd = &cobra.Command{
	Use:   "gatekeeper",
	Short: "gatekeeper - compliance rules for code changes",
	Long: `gatekeeper compiles compliance policies into rule artifacts and evaluates
code changes against them.

A change is described by its diff, labels, reviews and risk features. Built-in
controls (secrets, privileged paths, approvals, environment boundaries and
licenses) and a heuristic risk scorer turn it into signals; every compiled
rule whose conditions all hold contributes BLOCK or WARN to the overall
status. Evaluation records can be kept for audit in a SQLite evidence store.

Configuration is read from --config (optional) and GATEKEEPER_* environment
variables.`,
	Version:       Version,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute runs the root command with a context cancelled on SIGINT or
// SIGTERM and prints any error to stderr.
func Execute() error {
	ctx, stop := cli.SetupSignalHandler(context.Background())
	defer stop()

	err := rootCmd.ExecuteContext(ctx)
	if err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
	}
	return err
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "", "config file path (defaults and environment only when empty)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "debug logging")
}

// loadConfig reads --config and the environment, then builds the process
// logger. Logs go to stderr so command output stays parseable. Each command
// gets its own Config and applies flag overrides to it directly.
func loadConfig() (*config.Config, *slog.Logger, error) {
	cfg, err := config.LoadConfigWithEnvOverrides(cfgFile)
	if err != nil {
		return nil, nil, cli.NewConfigError("", fmt.Sprintf("failed to load config: %v", err))
	}

	logCfg := logging.FromConfig(cfg.Telemetry.Logging, os.Stderr)
	if verbose {
		logCfg.Level = "debug"
	}
	logger, err := logging.New(logCfg)
	if err != nil {
		return nil, nil, cli.NewConfigError("telemetry.logging", err.Error())
	}
	slog.SetDefault(logger)

	return cfg, logger, nil
}

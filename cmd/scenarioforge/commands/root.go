// Package commands implements the scenarioforge CLI commands using cobra.
package commands

import (
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/okrause/scenarioforge/pkg/forge"
)

// NewRootCmd creates the root command with all subcommands registered.
func NewRootCmd(version string) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "scenarioforge",
		Short: "ScenarioForge - demo agents from business scenarios",
		Long: `ScenarioForge turns a customer scenario into a working demo agent:
an LLM proposes the agent and its data model, SAP HANA gets a schema with
sample data, and the agent is registered in the SAP Agents service.

Examples:
  scenarioforge generate --customer "Acme Retail" --use-case "Churn reduction"
  scenarioforge create package.json
  scenarioforge agents
  scenarioforge serve`,
		Version: version,
	}

	rootCmd.AddCommand(
		newGenerateCmd(),
		newCreateCmd(),
		newAgentsCmd(),
		newAttachToolCmd(),
		newServeCmd(),
		newSetupCmd(),
		newHistoryCmd(),
	)

	rootCmd.PersistentFlags().StringP("config", "c", "", "path to the configuration file")
	rootCmd.PersistentFlags().BoolP("verbose", "v", false, "enable debug logging")

	return rootCmd
}

// loadConfig loads configuration honoring the --config flag, falling back
// to the standard search locations.
func loadConfig(cmd *cobra.Command) (*forge.Config, error) {
	path, _ := cmd.Flags().GetString("config")
	if path == "" {
		path = forge.FindConfigFile()
	}
	return forge.LoadConfigFromFile(path)
}

// buildLogger creates the application logger from config and the --verbose
// flag.
func buildLogger(cmd *cobra.Command, cfg *forge.Config) *slog.Logger {
	level := slog.LevelInfo
	switch strings.ToLower(cfg.Logging.Level) {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	}
	if verbose, _ := cmd.Flags().GetBool("verbose"); verbose {
		level = slog.LevelDebug
	}

	opts := &slog.HandlerOptions{Level: level}
	var handler slog.Handler
	if strings.EqualFold(cfg.Logging.Format, "json") {
		handler = slog.NewJSONHandler(os.Stderr, opts)
	} else {
		handler = slog.NewTextHandler(os.Stderr, opts)
	}
	return slog.New(handler)
}

// setup loads config, validates it, and assembles the pipeline plus the
// run-history store.
func setup(cmd *cobra.Command) (*forge.Forge, *forge.Config, *slog.Logger, func(), error) {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return nil, nil, nil, nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, nil, nil, nil, fmt.Errorf("%w\nRun 'scenarioforge setup' or set the variables in .env", err)
	}

	logger := buildLogger(cmd, cfg)

	store, closeStore := openHistory(cfg, logger)

	f, err := forge.New(cfg, store, logger)
	if err != nil {
		closeStore()
		return nil, nil, nil, nil, err
	}
	return f, cfg, logger, closeStore, nil
}

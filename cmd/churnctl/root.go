package main

import (
	"log/slog"
	"os"

	"github.com/BerylCAtieno/churn-risk-agent/internal/config"
	"github.com/BerylCAtieno/churn-risk-agent/internal/logging"
	"github.com/spf13/cobra"
)

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:           "churnctl",
		Short:         "Score subscriber churn risk from the command line",
		Long:          "churnctl runs the churn risk pipeline locally against the model artifacts, without the agent server.",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	rootCmd.PersistentFlags().String("artifacts", "", "Directory holding feature_names.json and churn_model.json (overrides CHURN_ARTIFACT_DIR)")
	rootCmd.PersistentFlags().String("log-level", "warn", "Log level: debug, info, warn, error")

	rootCmd.AddCommand(newAnalyzeCmd())
	rootCmd.AddCommand(newSchemaCmd())
	return rootCmd
}

// loadConfig reads .env and the environment, then applies persistent flags.
// Logs go to stderr so stdout carries only command output.
func loadConfig(cmd *cobra.Command) (config.Config, *slog.Logger, error) {
	if err := config.LoadDotEnv(); err != nil {
		return config.Config{}, nil, err
	}
	cfg, err := config.ConfigFromEnv()
	if err != nil {
		return config.Config{}, nil, err
	}
	if dir, _ := cmd.Flags().GetString("artifacts"); dir != "" {
		cfg.ArtifactDir = dir
	}
	if level, _ := cmd.Flags().GetString("log-level"); level != "" {
		cfg.LogLevel = level
	}

	logger := logging.New(os.Stderr, "churnctl", cfg.LogLevel, false)
	slog.SetDefault(logger)
	return cfg, logger, nil
}

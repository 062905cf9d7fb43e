package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/arxon-dev/topicperf/internal/config"
	"github.com/arxon-dev/topicperf/pkg/logger"
)

type ctxKey struct{}

var rootCmd = &cobra.Command{
	Use:           "topicperf",
	Short:         "Quiz topic classification and performance aggregates",
	Long:          "topicperf classifies Spanish quiz titles into topics and keeps per-subject, per-topic performance, daily timelines and rankings.",
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		cmd.SetContext(context.WithValue(cmd.Context(), ctxKey{}, cfg))
		return nil
	},
	PersistentPostRun: func(_ *cobra.Command, _ []string) {
		_ = logger.Sync()
	},
}

// Execute runs the root command.
func Execute() error {
	err := rootCmd.ExecuteContext(context.Background())
	if err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
	}
	return err
}

func init() {
	rootCmd.PersistentFlags().String("config", "", "YAML config file (overrides "+config.EnvConfigPath+")")
	rootCmd.PersistentFlags().String("log-level", "", "Log level: debug, info, warn, error (overrides config)")

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(classifyCmd)
	rootCmd.AddCommand(recordCmd)
	rootCmd.AddCommand(reconcileCmd)
	rootCmd.AddCommand(replayCmd)
	rootCmd.AddCommand(timelineCmd)
	rootCmd.AddCommand(rankingCmd)
	rootCmd.AddCommand(statsCmd)
	rootCmd.AddCommand(catalogCmd)
	rootCmd.AddCommand(loadtestCmd)
}

// loadConfig initializes logging and resolves configuration: defaults, then
// --config or TOPICPERF_CONFIG, then env.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	if err := logger.Init(); err != nil {
		return nil, fmt.Errorf("initialize logging: %w", err)
	}

	path, _ := cmd.Flags().GetString("config")
	if path == "" {
		path = os.Getenv(config.EnvConfigPath)
	}
	cfg, err := config.LoadFile(cmd.Context(), path)
	if err != nil {
		return nil, err
	}

	if lvl, _ := cmd.Flags().GetString("log-level"); lvl != "" {
		cfg.LogLevel = lvl
	}
	if err := logger.SetLevelString(cfg.LogLevel); err != nil {
		logger.Get().Warn(cmd.Context(), "invalid log_level; falling back to info",
			logger.String("log_level", cfg.LogLevel), logger.Error(err))
		_ = logger.SetLevelString("info")
	}
	return cfg, nil
}

// configFrom returns the Config stored by the root pre-run hook.
func configFrom(cmd *cobra.Command) *config.Config {
	cfg, _ := cmd.Context().Value(ctxKey{}).(*config.Config)
	if cfg == nil {
		cfg = config.New(cmd.Context())
	}
	return cfg
}

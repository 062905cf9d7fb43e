package main

import (
	"context"
	"runtime"
	"time"

	"github.com/spf13/cobra"

	"github.com/arxon-dev/topicperf/internal/loadtest"
)

const defaultLoadtestTimeout = 10 * time.Minute

var loadtestCmd = &cobra.Command{
	Use:   "loadtest",
	Short: "Submit a generated outcome history to a running server and verify the aggregates",
	RunE: func(cmd *cobra.Command, _ []string) error {
		f := cmd.Flags()
		cfg := &loadtest.Config{}
		cfg.BaseURL, _ = f.GetString("url")
		cfg.NumOutcomes, _ = f.GetInt("outcomes")
		cfg.NumSubjects, _ = f.GetInt("subjects")
		cfg.TopN, _ = f.GetInt("top")
		cfg.Workers, _ = f.GetInt("workers")
		cfg.Timeout, _ = f.GetDuration("timeout")
		cfg.DrainTimeout, _ = f.GetDuration("drain-timeout")
		cfg.OutputFile, _ = f.GetString("output")
		cfg.Seed, _ = f.GetUint64("seed")
		cfg.Verbose, _ = f.GetBool("verbose")

		ctx, cancel := context.WithTimeout(cmd.Context(), defaultLoadtestTimeout)
		defer cancel()
		_, err := loadtest.Run(ctx, cfg)
		return err
	},
}

func init() {
	f := loadtestCmd.Flags()
	f.String("url", "http://localhost:9080", "Base URL of the service")
	f.Int("outcomes", 10000, "Outcomes to generate and submit")
	f.Int("subjects", 200, "Distinct subjects")
	f.Int("top", 50, "Ranking entries to fetch and check")
	f.Int("workers", runtime.NumCPU()*2, "Concurrent submitters")
	f.Duration("timeout", 30*time.Second, "HTTP request timeout")
	f.Duration("drain-timeout", 2*time.Minute, "How long to wait for every outcome to be recorded")
	f.String("output", "", "Write the generated history as JSONL, replayable with `replay --file`")
	f.Uint64("seed", uint64(time.Now().UnixNano()), "Generator seed")
	f.Bool("verbose", false, "Log progress")
}

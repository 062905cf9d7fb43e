package loadtest

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/arxon-dev/topicperf/internal/domain/model"
	"github.com/arxon-dev/topicperf/pkg/logger"
)

// File permission constants.
const (
	directoryPermission = 0750
	filePermission      = 0600
)

// Run executes the complete load test.
func Run(ctx context.Context, config *Config) (*Stats, error) {
	if config.Workers <= 0 || config.TopN <= 0 {
		return nil, fmt.Errorf("%w: workers and top must be positive", ErrConfig)
	}
	stats := &Stats{StartTime: time.Now()}
	log := logger.Get()

	log.Info(ctx, "starting load test",
		logger.String("baseURL", config.BaseURL),
		logger.Int("outcomes", config.NumOutcomes),
		logger.Int("subjects", config.NumSubjects),
		logger.Int("workers", config.Workers),
		logger.Duration("timeout", config.Timeout))

	client := NewClient(config.BaseURL, config.Timeout)
	if err := client.Health(ctx); err != nil {
		return stats, err
	}

	history, err := Generate(ctx, config, stats)
	if err != nil {
		return stats, fmt.Errorf("generate outcomes: %w", err)
	}

	if config.OutputFile != "" {
		if err := SaveHistory(config.OutputFile, history.Outcomes); err != nil {
			log.Warn(ctx, "failed to save history", logger.Error(err))
		} else {
			log.Info(ctx, "history saved", logger.String("file", config.OutputFile))
		}
	}

	accepted, err := Submit(ctx, config, client, history.Outcomes, stats)
	if err != nil {
		return stats, fmt.Errorf("submit outcomes: %w", err)
	}

	expected := history.Tally(accepted)
	if err := WaitForAggregates(ctx, config, client, expected, stats); err != nil {
		return stats, err
	}
	if err := VerifyRanking(ctx, config, client, expected, stats); err != nil {
		return stats, err
	}

	stats.EndTime = time.Now()
	stats.Duration = stats.EndTime.Sub(stats.StartTime)
	logFinalStats(ctx, stats)
	return stats, nil
}

// SaveHistory writes outcomes as JSON lines, the format `topicperf replay`
// reads.
func SaveHistory(filename string, outcomes []model.Outcome) (err error) {
	if dir := filepath.Dir(filename); dir != "." {
		if err := os.MkdirAll(dir, directoryPermission); err != nil {
			return fmt.Errorf("create directory: %w", err)
		}
	}
	f, err := os.OpenFile(filename, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, filePermission)
	if err != nil {
		return fmt.Errorf("create file: %w", err)
	}
	defer func() {
		if cerr := f.Close(); err == nil {
			err = cerr
		}
	}()

	w := bufio.NewWriter(f)
	enc := json.NewEncoder(w)
	for i, o := range outcomes {
		if err := enc.Encode(o); err != nil {
			return fmt.Errorf("write outcome %d: %w", i, err)
		}
	}
	return w.Flush()
}

func logFinalStats(ctx context.Context, stats *Stats) {
	var perSecond float64
	if stats.Duration > 0 {
		perSecond = float64(stats.Submitted) / stats.Duration.Seconds()
	}
	logger.Get().Info(ctx, "final statistics",
		logger.Int("generated", stats.Generated),
		logger.Int("submitted", stats.Submitted),
		logger.Int("accepted", stats.Accepted),
		logger.Int("duplicate", stats.Duplicate),
		logger.Int("throttled", stats.Throttled),
		logger.Int("failed", stats.Failed),
		logger.Int("verifiedKeys", stats.Verified),
		logger.Int("ranked", stats.Ranked),
		logger.Duration("duration", stats.Duration),
		logger.Float64("outcomesPerSecond", perSecond))
}

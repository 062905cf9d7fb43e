package loadtest

import (
	"context"
	"fmt"
	"sort"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/arxon-dev/topicperf/internal/domain/model"
	"github.com/arxon-dev/topicperf/pkg/logger"
)

const drainPollInterval = 250 * time.Millisecond

// WaitForAggregates polls every expected key until the server reports the
// expected counts or config.DrainTimeout passes.
func WaitForAggregates(ctx context.Context, config *Config, client *Client, expected map[model.Key]Expected, stats *Stats) error {
	keys := sortedKeys(expected)
	deadline := time.Now().Add(config.DrainTimeout)
	for {
		mismatched, err := checkAggregates(ctx, config, client, keys, expected)
		if err != nil {
			return err
		}
		stats.Verified = len(keys) - mismatched
		stats.Mismatched = mismatched
		if mismatched == 0 {
			logger.Get().Info(ctx, "aggregates verified", logger.Int("keys", len(keys)))
			return nil
		}
		if time.Now().After(deadline) {
			return fmt.Errorf("%w: %d of %d keys differ", ErrDrainTimeout, mismatched, len(keys))
		}
		if config.Verbose {
			logger.Get().Info(ctx, "waiting for workers", logger.Int("pending_keys", mismatched))
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(drainPollInterval):
		}
	}
}

func checkAggregates(ctx context.Context, config *Config, client *Client, keys []model.Key, expected map[model.Key]Expected) (int, error) {
	var mismatched atomic.Int64
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(config.Workers)
	for _, k := range keys {
		g.Go(func() error {
			rec, err := client.Performance(gctx, k.SubjectID, k.Topic)
			if err != nil {
				return err
			}
			want := expected[k]
			if rec.TotalQuestions != want.Total || rec.CorrectAnswers != want.Correct {
				mismatched.Add(1)
				return nil
			}
			// Counts are right; anything else wrong here is a server bug, not lag.
			if rec.Accuracy != model.AccuracyOf(want.Correct, want.Total) ||
				rec.IncorrectAnswers != want.Total-want.Correct {
				return fmt.Errorf("%w: %s: accuracy %.4f incorrect %d", ErrMismatch, k, rec.Accuracy, rec.IncorrectAnswers)
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return 0, err
	}
	return int(mismatched.Load()), nil
}

// VerifyRanking checks that the server's accuracy ranking is well formed and
// logs where it differs from the one the history predicts. Differences are
// not errors: the server may hold data from earlier runs.
func VerifyRanking(ctx context.Context, config *Config, client *Client, expected map[model.Key]Expected, stats *Stats) error {
	entries, err := client.Ranking(ctx, config.TopN)
	if err != nil {
		return err
	}
	stats.Ranked = len(entries)

	for i, e := range entries {
		if e.Rank != i+1 {
			return fmt.Errorf("%w: entry %d has rank %d", ErrRanking, i, e.Rank)
		}
		if i == 0 {
			continue
		}
		prev := entries[i-1]
		if prev.Accuracy < e.Accuracy ||
			(prev.Accuracy == e.Accuracy && prev.TotalQuestions < e.TotalQuestions) ||
			(prev.Accuracy == e.Accuracy && prev.TotalQuestions == e.TotalQuestions && prev.SubjectID > e.SubjectID) {
			return fmt.Errorf("%w: %s ranked above %s", ErrRanking, prev.SubjectID, e.SubjectID)
		}
	}

	predicted := predictRanking(expected)
	for i := 0; i < len(entries) && i < len(predicted); i++ {
		if entries[i].SubjectID != predicted[i] {
			logger.Get().Warn(ctx, "ranking differs from the generated history",
				logger.Int("rank", i+1),
				logger.String("server", entries[i].SubjectID),
				logger.String("predicted", predicted[i]))
			return nil
		}
	}
	logger.Get().Info(ctx, "ranking verified", logger.Int("entries", len(entries)))
	return nil
}

// predictRanking orders subjects the way the accuracy view does.
func predictRanking(expected map[model.Key]Expected) []string {
	type acc struct{ total, correct uint64 }
	by := make(map[string]*acc)
	for k, e := range expected {
		a, ok := by[k.SubjectID]
		if !ok {
			a = &acc{}
			by[k.SubjectID] = a
		}
		a.total += e.Total
		a.correct += e.Correct
	}
	ids := make([]string, 0, len(by))
	for id := range by {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool {
		a, b := by[ids[i]], by[ids[j]]
		ai, bj := model.AccuracyOf(a.correct, a.total), model.AccuracyOf(b.correct, b.total)
		if ai != bj {
			return ai > bj
		}
		if a.total != b.total {
			return a.total > b.total
		}
		return ids[i] < ids[j]
	})
	return ids
}

func sortedKeys(m map[model.Key]Expected) []model.Key {
	keys := make([]model.Key, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		if keys[i].SubjectID != keys[j].SubjectID {
			return keys[i].SubjectID < keys[j].SubjectID
		}
		return keys[i].Topic < keys[j].Topic
	})
	return keys
}

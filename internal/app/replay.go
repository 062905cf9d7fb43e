package service

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/arxon-dev/topicperf/internal/domain/classifier"
	"github.com/arxon-dev/topicperf/internal/domain/model"
	"github.com/arxon-dev/topicperf/pkg/logger"
)

// ReplayOptions controls Replay.
type ReplayOptions struct {
	// PruneGeneral deletes every fallback record before reconciling, so
	// titles that now classify elsewhere stop counting as general. Use it
	// with a complete history only: subjects missing from the replay lose
	// their general records.
	PruneGeneral bool
}

// ReplayReport summarizes a Replay run.
type ReplayReport struct {
	Outcomes int               `json:"outcomes"`
	Skipped  int               `json:"skipped"`
	Keys     int               `json:"keys"`
	Pruned   int64             `json:"pruned"`
	ByTopic  map[string]uint64 `json:"by_topic"`
}

type tally struct {
	total   uint64
	correct uint64
}

// Replay re-classifies a complete outcome history and overwrites each
// (subject, topic) aggregate with the recomputed absolute counts. Outcomes
// carrying a title are classified again even when a topic is set; invalid
// ones are skipped. Reconciling the same history twice is a no-op.
func (s *Service) Replay(ctx context.Context, outcomes []model.Outcome, opts ReplayOptions) (ReplayReport, error) {
	report := ReplayReport{ByTopic: make(map[string]uint64)}
	tallies := make(map[model.Key]*tally)

	for _, o := range outcomes {
		if err := o.Validate(); err != nil {
			report.Skipped++
			continue
		}
		topic := o.Topic
		if o.Title != "" {
			topic = s.Classify(o.Title)
		}
		k := model.Key{SubjectID: o.SubjectID, Topic: topic}
		t, ok := tallies[k]
		if !ok {
			t = &tally{}
			tallies[k] = t
		}
		t.total++
		if o.Correct {
			t.correct++
		}
		report.Outcomes++
		report.ByTopic[topic]++
	}

	if opts.PruneGeneral {
		n, err := s.store.DeleteTopic(ctx, classifier.Fallback)
		if err != nil {
			return report, fmt.Errorf("prune %s: %w", classifier.Fallback, err)
		}
		report.Pruned = n
	}

	keys := make([]model.Key, 0, len(tallies))
	for k := range tallies {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		if keys[i].SubjectID != keys[j].SubjectID {
			return keys[i].SubjectID < keys[j].SubjectID
		}
		return keys[i].Topic < keys[j].Topic
	})

	var errs []error
	for _, k := range keys {
		t := tallies[k]
		if _, err := s.BulkReconcile(ctx, k.SubjectID, k.Topic, t.total, t.correct); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", k, err))
			continue
		}
		report.Keys++
	}

	s.logger.Info(ctx, "replay finished",
		logger.Int("outcomes", report.Outcomes),
		logger.Int("skipped", report.Skipped),
		logger.Int("keys", report.Keys),
		logger.Int("pruned", int(report.Pruned)),
	)
	return report, errors.Join(errs...)
}

package rollup

import (
	"context"
	"fmt"
	"sort"

	"github.com/arxon-dev/topicperf/internal/domain/model"
)

// ComputeSystemStats folds every record into system-wide totals. It only reads.
func (e *Engine) ComputeSystemStats(ctx context.Context) (model.SystemStats, error) {
	recs, err := e.store.ListAll(ctx)
	if err != nil {
		return model.SystemStats{}, fmt.Errorf("list records: %w", err)
	}

	since := model.Timestamp(e.clock().Add(-e.activeWindow))
	stats := model.SystemStats{ActiveSince: since}

	subjects := make(map[string]struct{})
	active := make(map[string]struct{})
	topics := make(map[string]*model.TopicStat)

	for _, r := range recs {
		subjects[r.SubjectID] = struct{}{}
		t, ok := topics[r.Topic]
		if !ok {
			t = &model.TopicStat{Topic: r.Topic}
			topics[r.Topic] = t
		}
		if r.TotalQuestions == 0 {
			continue
		}
		stats.ActiveMappings++
		stats.TotalQuestions += r.TotalQuestions
		stats.TotalCorrect += r.CorrectAnswers
		t.Subjects++
		t.TotalQuestions += r.TotalQuestions
		t.TotalCorrect += r.CorrectAnswers
		if !r.LastActivity.Before(since) {
			active[r.SubjectID] = struct{}{}
		}
	}

	stats.TotalSubjects = len(subjects)
	stats.TotalTopics = len(topics)
	stats.ActiveSubjects = len(active)
	stats.GlobalAccuracy = model.AccuracyOf(stats.TotalCorrect, stats.TotalQuestions)

	answered := make([]model.TopicStat, 0, len(topics))
	for _, t := range topics {
		if t.TotalQuestions == 0 {
			continue
		}
		t.Accuracy = model.AccuracyOf(t.TotalCorrect, t.TotalQuestions)
		answered = append(answered, *t)
	}

	popular := append([]model.TopicStat(nil), answered...)
	sort.Slice(popular, func(i, j int) bool {
		a, b := popular[i], popular[j]
		if a.TotalQuestions != b.TotalQuestions {
			return a.TotalQuestions > b.TotalQuestions
		}
		return a.Topic < b.Topic
	})
	stats.PopularTopics = head(popular, e.topTopics)

	difficult := make([]model.TopicStat, 0, len(answered))
	for _, t := range answered {
		if t.TotalQuestions >= e.difficultMinQuestions {
			difficult = append(difficult, t)
		}
	}
	sort.Slice(difficult, func(i, j int) bool {
		a, b := difficult[i], difficult[j]
		if a.Accuracy != b.Accuracy {
			return a.Accuracy < b.Accuracy
		}
		if a.TotalQuestions != b.TotalQuestions {
			return a.TotalQuestions > b.TotalQuestions
		}
		return a.Topic < b.Topic
	})
	stats.DifficultTopics = head(difficult, e.topTopics)

	return stats, nil
}

func head(s []model.TopicStat, n int) []model.TopicStat {
	if len(s) > n {
		return s[:n]
	}
	return s
}

package rollup

import (
	"context"
	"fmt"
	"sort"

	"github.com/arxon-dev/topicperf/internal/domain/model"
)

// View selects the primary ranking key.
type View string

const (
	ViewAccuracy View = "accuracy"
	ViewPoints   View = "points"
)

// ParseView maps "" to ViewAccuracy and rejects unknown names.
func ParseView(s string) (View, error) {
	switch View(s) {
	case "", ViewAccuracy:
		return ViewAccuracy, nil
	case ViewPoints:
		return ViewPoints, nil
	}
	return "", fmt.Errorf("%w: unknown view %q", ErrInvalidScope, s)
}

// Scope selects the records a ranking is computed over.
type Scope struct {
	// Topic restricts the ranking to one topic; empty ranks across all topics.
	Topic string
	View  View
	// MinQuestions drops subjects with fewer answered questions.
	MinQuestions uint64
	// Limit truncates the result after ranking; 0 keeps every entry.
	Limit int
}

// ComputeRanking sums records per subject and orders subjects by the view's
// key descending, then by question volume descending, then by subject id.
// Ranks run 1..n with no ties. Subjects without answered questions are not
// ranked.
func (e *Engine) ComputeRanking(ctx context.Context, scope Scope) ([]model.RankingEntry, error) {
	view, err := ParseView(string(scope.View))
	if err != nil {
		return nil, err
	}
	if scope.Limit < 0 {
		return nil, fmt.Errorf("%w: negative limit", ErrInvalidScope)
	}

	recs, err := e.store.ListAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("list records: %w", err)
	}

	bySubject := make(map[string]*model.RankingEntry)
	for _, r := range recs {
		if scope.Topic != "" && r.Topic != scope.Topic {
			continue
		}
		entry, ok := bySubject[r.SubjectID]
		if !ok {
			entry = &model.RankingEntry{SubjectID: r.SubjectID}
			bySubject[r.SubjectID] = entry
		}
		entry.TotalQuestions += r.TotalQuestions
		entry.TotalCorrect += r.CorrectAnswers
	}

	entries := make([]model.RankingEntry, 0, len(bySubject))
	for _, entry := range bySubject {
		if entry.TotalQuestions == 0 || entry.TotalQuestions < scope.MinQuestions {
			continue
		}
		entry.Accuracy = model.AccuracyOf(entry.TotalCorrect, entry.TotalQuestions)
		entry.Points = e.rankingPolicy.Net(entry.TotalCorrect, entry.TotalQuestions-entry.TotalCorrect)
		entries = append(entries, *entry)
	}

	sort.Slice(entries, func(i, j int) bool {
		a, b := entries[i], entries[j]
		switch view {
		case ViewPoints:
			if a.Points != b.Points {
				return a.Points > b.Points
			}
		default:
			if a.Accuracy != b.Accuracy {
				return a.Accuracy > b.Accuracy
			}
		}
		if a.TotalQuestions != b.TotalQuestions {
			return a.TotalQuestions > b.TotalQuestions
		}
		return a.SubjectID < b.SubjectID
	})

	n := len(entries)
	for i := range entries {
		entries[i].Rank = i + 1
		// Ranks are never shared, so everyone after this entry ranks strictly below it.
		entries[i].Percentile = float64(n-i-1) / float64(n) * 100
	}
	if scope.Limit > 0 && scope.Limit < n {
		entries = entries[:scope.Limit]
	}
	return entries, nil
}

// WeakTopics returns the subject's records whose accuracy is below threshold
// among those with at least minQuestions answered, worst first.
func (e *Engine) WeakTopics(ctx context.Context, subjectID string, threshold float64, minQuestions uint64) ([]model.PerformanceRecord, error) {
	recs, err := e.store.ListBySubject(ctx, subjectID)
	if err != nil {
		return nil, fmt.Errorf("list records: %w", err)
	}
	weak := make([]model.PerformanceRecord, 0, len(recs))
	for _, r := range recs {
		if r.TotalQuestions == 0 || r.TotalQuestions < minQuestions {
			continue
		}
		if r.Accuracy < threshold {
			weak = append(weak, r)
		}
	}
	sort.Slice(weak, func(i, j int) bool {
		a, b := weak[i], weak[j]
		if a.Accuracy != b.Accuracy {
			return a.Accuracy < b.Accuracy
		}
		if a.TotalQuestions != b.TotalQuestions {
			return a.TotalQuestions > b.TotalQuestions
		}
		return a.Topic < b.Topic
	})
	return weak, nil
}

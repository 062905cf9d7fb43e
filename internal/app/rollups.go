package service

import (
	"context"
	"time"

	"github.com/arxon-dev/topicperf/internal/domain/model"
	"github.com/arxon-dev/topicperf/internal/domain/rollup"
)

// RebuildTimeline recomputes a subject's timeline rows over rng.
func (s *Service) RebuildTimeline(ctx context.Context, subjectID string, rng model.DateRange) error {
	return s.engine.RebuildTimeline(ctx, subjectID, rng)
}

// RebuildRecent recomputes a subject's last days calendar days.
func (s *Service) RebuildRecent(ctx context.Context, subjectID string, days int) error {
	return s.engine.RebuildRecent(ctx, subjectID, days)
}

// RebuildAll recomputes rng for every subject.
func (s *Service) RebuildAll(ctx context.Context, rng model.DateRange) (int, error) {
	return s.engine.RebuildAll(ctx, rng)
}

// Timeline returns the stored timeline rows of rng.
func (s *Service) Timeline(ctx context.Context, subjectID string, rng model.DateRange) ([]model.DailyTimelineEntry, error) {
	return s.engine.Timeline(ctx, subjectID, rng)
}

// ComputeRanking ranks subjects within scope.
func (s *Service) ComputeRanking(ctx context.Context, scope rollup.Scope) ([]model.RankingEntry, error) {
	return s.engine.ComputeRanking(ctx, scope)
}

// ComputeSystemStats folds every record into system-wide totals.
func (s *Service) ComputeSystemStats(ctx context.Context) (model.SystemStats, error) {
	return s.engine.ComputeSystemStats(ctx)
}

// WeakTopics lists a subject's topics under the accuracy threshold, worst first.
func (s *Service) WeakTopics(ctx context.Context, subjectID string, threshold float64, minQuestions uint64) ([]model.PerformanceRecord, error) {
	return s.engine.WeakTopics(ctx, subjectID, threshold, minQuestions)
}

// Location returns the time zone calendar days are cut in.
func (s *Service) Location() *time.Location { return s.engine.Location() }

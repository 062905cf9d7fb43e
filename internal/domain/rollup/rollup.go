// Package rollup derives the daily timeline table, rankings and system
// statistics from performance records.
package rollup

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/arxon-dev/topicperf/internal/domain/model"
	"github.com/arxon-dev/topicperf/internal/domain/scoring"
	"github.com/arxon-dev/topicperf/pkg/logger"
	"github.com/arxon-dev/topicperf/pkg/metrics"
)

const (
	defaultSecondsPerQuestion    = 120
	defaultActiveWindow          = 7 * 24 * time.Hour
	defaultDifficultMinQuestions = 10
	defaultParallelism           = 4
	defaultTopTopics             = 5
	defaultMaxRangeDays          = 366
)

// Engine runs rollups over a Store.
type Engine struct {
	store Store

	locker        Locker
	policy        scoring.Policy
	rankingPolicy scoring.Policy
	loc           *time.Location
	clock         func() time.Time
	log           logger.Logger

	secondsPerQuestion    uint64
	activeWindow          time.Duration
	difficultMinQuestions uint64
	parallelism           int
	topTopics             int
	maxRangeDays          int
}

// New returns an Engine reading and writing store.
func New(store Store, opts ...Option) *Engine {
	e := &Engine{
		store:                 store,
		locker:                newKeyedMutex(),
		policy:                scoring.Timeline(),
		rankingPolicy:         scoring.Ranking(),
		loc:                   time.UTC,
		clock:                 time.Now,
		log:                   logger.Nop(),
		secondsPerQuestion:    defaultSecondsPerQuestion,
		activeWindow:          defaultActiveWindow,
		difficultMinQuestions: defaultDifficultMinQuestions,
		parallelism:           defaultParallelism,
		topTopics:             defaultTopTopics,
		maxRangeDays:          defaultMaxRangeDays,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Location returns the time zone calendar days are cut in.
func (e *Engine) Location() *time.Location { return e.loc }

// RebuildTimeline recomputes the subject's timeline rows for every day of rng.
// Each day is replaced on its own, so a failing day leaves the others
// rebuilt; the failures are returned joined. Ranges longer than the
// configured maximum are rejected with model.ErrInvalidRange.
func (e *Engine) RebuildTimeline(ctx context.Context, subjectID string, rng model.DateRange) error {
	if strings.TrimSpace(subjectID) == "" {
		return ErrInvalidSubject
	}
	rng, err := e.checkRange(rng)
	if err != nil {
		return err
	}
	start := time.Now()
	defer func() {
		metrics.RecordRollup("timeline", float64(time.Since(start).Microseconds())/1000)
	}()

	unlock, err := e.locker.Lock(ctx, "timeline:"+subjectID)
	if err != nil {
		return fmt.Errorf("%w: %s: %w", ErrLock, subjectID, err)
	}
	defer unlock()

	run := func(ctx context.Context) error {
		var errs []error
		for _, day := range rng.Days() {
			if err := ctx.Err(); err != nil {
				errs = append(errs, err)
				break
			}
			if err := e.rebuildDay(ctx, subjectID, day); err != nil {
				metrics.RecordRollupDateFailure()
				e.log.Error(ctx, "timeline day rebuild failed",
					logger.String("subject", subjectID),
					logger.String("date", day.Date),
					logger.Error(err),
				)
				errs = append(errs, fmt.Errorf("%s: %w", day.Date, err))
			}
		}
		return errors.Join(errs...)
	}

	if sl, ok := e.store.(SubjectLocker); ok {
		return sl.WithSubjectLock(ctx, subjectID, run)
	}
	return run(ctx)
}

func (e *Engine) checkRange(rng model.DateRange) (model.DateRange, error) {
	if rng.Location == nil {
		rng.Location = e.loc
	}
	if err := rng.Validate(); err != nil {
		return rng, err
	}
	return rng, rng.WithinDays(e.maxRangeDays)
}

func (e *Engine) rebuildDay(ctx context.Context, subjectID string, day model.Day) error {
	recs, err := e.store.ListActiveBetween(ctx, subjectID, day.Start, day.End)
	if err != nil {
		return err
	}
	entry := e.timelineEntry(subjectID, day.Date, recs)
	return e.store.ReplaceTimeline(ctx, subjectID, day.Date, entry)
}

// timelineEntry sums recs into one day's row. A day without answered
// questions yields nil so the row is only deleted.
func (e *Engine) timelineEntry(subjectID, date string, recs []model.PerformanceRecord) *model.DailyTimelineEntry {
	var total, correct, incorrect uint64
	for _, r := range recs {
		total += r.TotalQuestions
		correct += r.CorrectAnswers
		incorrect += r.IncorrectAnswers
	}
	if total == 0 {
		return nil
	}
	return &model.DailyTimelineEntry{
		SubjectID:         subjectID,
		Date:              date,
		QuestionsAnswered: total,
		CorrectAnswers:    correct,
		IncorrectAnswers:  incorrect,
		PointsEarned:      e.policy.Earned(correct),
		PointsLost:        e.policy.Lost(incorrect),
		Accuracy:          model.AccuracyOf(correct, total),
		StudyTimeSeconds:  total * e.secondsPerQuestion,
	}
}

// RebuildRecent rebuilds the last days calendar days up to today.
func (e *Engine) RebuildRecent(ctx context.Context, subjectID string, days int) error {
	return e.RebuildTimeline(ctx, subjectID, model.LastDays(e.clock(), days, e.loc))
}

// RebuildAll rebuilds rng for every known subject, several subjects at a
// time. It returns the number of subjects rebuilt without error.
func (e *Engine) RebuildAll(ctx context.Context, rng model.DateRange) (int, error) {
	rng, err := e.checkRange(rng)
	if err != nil {
		return 0, err
	}
	subjects, err := e.store.Subjects(ctx)
	if err != nil {
		return 0, fmt.Errorf("list subjects: %w", err)
	}

	var (
		mu   sync.Mutex
		errs []error
		ok   int
		g    errgroup.Group
	)
	g.SetLimit(e.parallelism)
	for _, subjectID := range subjects {
		g.Go(func() error {
			err := e.RebuildTimeline(ctx, subjectID, rng)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				errs = append(errs, fmt.Errorf("%s: %w", subjectID, err))
			} else {
				ok++
			}
			return nil
		})
	}
	_ = g.Wait()

	e.log.Info(ctx, "timeline rollup finished",
		logger.Int("subjects", len(subjects)),
		logger.Int("rebuilt", ok),
		logger.Int("failed", len(errs)),
	)
	return ok, errors.Join(errs...)
}

// Timeline returns the stored rows of rng, oldest first.
func (e *Engine) Timeline(ctx context.Context, subjectID string, rng model.DateRange) ([]model.DailyTimelineEntry, error) {
	if err := rng.Validate(); err != nil {
		return nil, err
	}
	loc := rng.Location
	if loc == nil {
		loc = e.loc
	}
	return e.store.Timeline(ctx, subjectID, rng.From.In(loc).Format(model.DateLayout), rng.To.In(loc).Format(model.DateLayout))
}

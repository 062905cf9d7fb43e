package rollup

import (
	"time"

	"github.com/arxon-dev/topicperf/internal/domain/scoring"
	"github.com/arxon-dev/topicperf/pkg/logger"
)

// Option configures an Engine.
type Option func(*Engine)

// WithLocker sets the lock that serializes rebuilds of one subject.
func WithLocker(l Locker) Option {
	return func(e *Engine) {
		if l != nil {
			e.locker = l
		}
	}
}

// WithPolicy sets the scoring policy of timeline rows.
func WithPolicy(p scoring.Policy) Option {
	return func(e *Engine) { e.policy = p }
}

// WithRankingPolicy sets the scoring policy of the points ranking view.
func WithRankingPolicy(p scoring.Policy) Option {
	return func(e *Engine) { e.rankingPolicy = p }
}

// WithLocation sets the time zone that decides calendar days.
func WithLocation(loc *time.Location) Option {
	return func(e *Engine) {
		if loc != nil {
			e.loc = loc
		}
	}
}

// WithSecondsPerQuestion sets the study time estimate per answered question.
func WithSecondsPerQuestion(n uint64) Option {
	return func(e *Engine) {
		if n > 0 {
			e.secondsPerQuestion = n
		}
	}
}

// WithLogger sets the engine logger.
func WithLogger(l logger.Logger) Option {
	return func(e *Engine) {
		if l != nil {
			e.log = l
		}
	}
}

// WithClock overrides time.Now.
func WithClock(c func() time.Time) Option {
	return func(e *Engine) {
		if c != nil {
			e.clock = c
		}
	}
}

// WithActiveWindow sets how recent activity must be to count a subject as active.
func WithActiveWindow(d time.Duration) Option {
	return func(e *Engine) {
		if d > 0 {
			e.activeWindow = d
		}
	}
}

// WithDifficultMinQuestions sets the volume a topic needs to qualify as difficult.
func WithDifficultMinQuestions(n uint64) Option {
	return func(e *Engine) { e.difficultMinQuestions = n }
}

// WithParallelism caps concurrent subject rebuilds in RebuildAll.
func WithParallelism(n int) Option {
	return func(e *Engine) {
		if n > 0 {
			e.parallelism = n
		}
	}
}

// WithTopTopics sets how many popular and difficult topics stats report.
func WithTopTopics(n int) Option {
	return func(e *Engine) {
		if n > 0 {
			e.topTopics = n
		}
	}
}

// WithMaxRangeDays caps the number of days one rebuild may cover.
func WithMaxRangeDays(n int) Option {
	return func(e *Engine) {
		if n > 0 {
			e.maxRangeDays = n
		}
	}
}

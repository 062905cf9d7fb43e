package service

import (
	"time"

	"github.com/arxon-dev/topicperf/internal/adapters/repository"
	"github.com/arxon-dev/topicperf/internal/domain/classifier"
	"github.com/arxon-dev/topicperf/internal/domain/dedupe"
	"github.com/arxon-dev/topicperf/internal/domain/rollup"
	"github.com/arxon-dev/topicperf/pkg/logger"
)

// Option applies a configuration option to the Service.
type Option func(*Service)

// WithStore sets the performance store. The service closes it on Stop.
func WithStore(s repository.Store) Option {
	return func(svc *Service) {
		if s != nil {
			svc.store = s
		}
	}
}

// WithClassifier sets the title classifier.
func WithClassifier(c *classifier.Classifier) Option {
	return func(svc *Service) {
		if c != nil {
			svc.classifier = c
		}
	}
}

// WithDeduper replaces the in-memory outcome id deduper.
func WithDeduper(d dedupe.Deduper) Option {
	return func(svc *Service) {
		if d != nil {
			svc.deduper = d
		}
	}
}

// WithLocker sets the lock serializing rollups per subject.
func WithLocker(l rollup.Locker) Option {
	return func(svc *Service) {
		if l != nil {
			svc.rollupOpts = append(svc.rollupOpts, rollup.WithLocker(l))
		}
	}
}

// WithRollupOptions passes options through to the rollup engine.
func WithRollupOptions(opts ...rollup.Option) Option {
	return func(svc *Service) {
		svc.rollupOpts = append(svc.rollupOpts, opts...)
	}
}

// WithLogger sets a custom logger for the service.
func WithLogger(l logger.Logger) Option {
	return func(svc *Service) {
		if l != nil {
			svc.logger = l
		}
	}
}

// WithWorkerCount sets the number of ingestion workers.
func WithWorkerCount(count int) Option {
	return func(svc *Service) {
		if count > 0 {
			svc.workerCount = count
		}
	}
}

// WithQueueSize sets the capacity of the outcome queue.
func WithQueueSize(size int) Option {
	return func(svc *Service) {
		if size > 0 {
			svc.queueSize = size
		}
	}
}

// WithDedupeSize sets how many outcome ids the default deduper remembers.
func WithDedupeSize(size int) Option {
	return func(svc *Service) {
		if size > 0 {
			svc.dedupeSize = size
		}
	}
}

// WithRetry configures the RecordOutcome retry on transient store errors.
func WithRetry(maxTries uint, initial, maxInterval time.Duration) Option {
	return func(svc *Service) {
		if maxTries > 0 {
			svc.retryMaxTries = maxTries
		}
		if initial > 0 {
			svc.retryInitial = initial
		}
		if maxInterval > 0 {
			svc.retryMax = maxInterval
		}
	}
}

// WithRollupSchedule runs RebuildAll over the last windowDays on the cron
// spec, e.g. "@every 1h". An empty spec disables scheduled rollups.
func WithRollupSchedule(spec string, windowDays int) Option {
	return func(svc *Service) {
		svc.schedule = spec
		if windowDays > 0 {
			svc.windowDays = windowDays
		}
	}
}

// WithClock overrides time.Now for the scheduled rollup window.
func WithClock(c func() time.Time) Option {
	return func(svc *Service) {
		if c != nil {
			svc.clock = c
		}
	}
}

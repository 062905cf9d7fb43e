// Package service wires the classifier, the performance store, the rollup
// engine and the ingestion pipeline into the operations the HTTP API and the
// CLI expose.
package service

import (
	"context"
	"fmt"
	"runtime"
	"sync"
	"time"

	"github.com/robfig/cron"

	eventqueue "github.com/arxon-dev/topicperf/internal/adapters/mq/queue"
	workerpool "github.com/arxon-dev/topicperf/internal/adapters/mq/worker"
	"github.com/arxon-dev/topicperf/internal/adapters/repository"
	"github.com/arxon-dev/topicperf/internal/adapters/repository/memory"
	"github.com/arxon-dev/topicperf/internal/domain/catalog"
	"github.com/arxon-dev/topicperf/internal/domain/classifier"
	"github.com/arxon-dev/topicperf/internal/domain/dedupe"
	"github.com/arxon-dev/topicperf/internal/domain/model"
	"github.com/arxon-dev/topicperf/internal/domain/rollup"
	"github.com/arxon-dev/topicperf/pkg/logger"
	"github.com/arxon-dev/topicperf/pkg/metrics"
)

const (
	defaultQueueSize     = 10000
	defaultDedupeSize    = 100000
	defaultRetryMaxTries = 5
	defaultRetryInitial  = 10 * time.Millisecond
	defaultRetryMax      = 500 * time.Millisecond
	defaultWindowDays    = 28
)

// Service implements the topic performance operations.
type Service struct {
	mu sync.RWMutex

	// Core components
	store      repository.Store
	classifier *classifier.Classifier
	engine     *rollup.Engine
	deduper    dedupe.Deduper
	eventQueue *eventqueue.InMemoryQueue
	workerPool *workerpool.Pool
	cron       *cron.Cron

	// Configuration
	workerCount   int
	queueSize     int
	dedupeSize    int
	retryMaxTries uint
	retryInitial  time.Duration
	retryMax      time.Duration
	schedule      string
	windowDays    int
	rollupOpts    []rollup.Option
	clock         func() time.Time

	// State
	started bool
	closed  bool
	cancel  context.CancelFunc

	logger logger.Logger
}

// New constructs a Service. Without WithStore it keeps records in memory.
func New(opts ...Option) *Service {
	s := &Service{
		workerCount:   runtime.NumCPU() * 2,
		queueSize:     defaultQueueSize,
		dedupeSize:    defaultDedupeSize,
		retryMaxTries: defaultRetryMaxTries,
		retryInitial:  defaultRetryInitial,
		retryMax:      defaultRetryMax,
		windowDays:    defaultWindowDays,
		clock:         time.Now,
		logger:        logger.Nop(),
	}
	for _, opt := range opts {
		opt(s)
	}

	if s.store == nil {
		s.store = memory.New()
	}
	if s.classifier == nil {
		s.classifier = classifier.New(catalog.Default())
	}
	if s.deduper == nil {
		s.deduper = dedupe.NewInMemoryDeduper(dedupe.WithMaxSize(s.dedupeSize))
	}
	engineOpts := append([]rollup.Option{
		rollup.WithLogger(s.logger.Named("rollup")),
		rollup.WithClock(s.clock),
	}, s.rollupOpts...)
	s.engine = rollup.New(s.store, engineOpts...)
	return s
}

// Start launches the ingestion workers and the rollup schedule.
func (s *Service) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ErrStopped
	}
	if s.started {
		return nil
	}

	s.logger.Info(ctx, "starting topic performance service...")

	// Workers outlive the caller's start context; Stop cancels them.
	runCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	s.cancel = cancel

	s.eventQueue = eventqueue.NewInMemoryQueue(eventqueue.WithCapacity(s.queueSize))
	s.workerPool = workerpool.NewPool(s.workerCount, s.eventQueue, s, s, s.logger)
	s.workerPool.Start(runCtx)

	if s.schedule != "" {
		c := cron.New()
		if err := c.AddFunc(s.schedule, func() { s.scheduledRollup(runCtx) }); err != nil {
			cancel()
			_ = s.workerPool.Shutdown(ctx)
			return fmt.Errorf("rollup schedule %q: %w", s.schedule, err)
		}
		c.Start()
		s.cron = c
	}

	s.started = true
	s.logger.Info(ctx, "topic performance service started",
		logger.Int("workers", s.workerCount),
		logger.Int("queueSize", s.queueSize),
		logger.Int("dedupeSize", s.dedupeSize),
		logger.String("rollupSchedule", s.schedule),
	)
	return nil
}

// Stop drains queued outcomes, stops the schedule and closes the store.
// A stopped service cannot be restarted.
func (s *Service) Stop(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil
	}
	s.closed = true

	var drainErr error
	if s.started {
		s.logger.Info(ctx, "stopping topic performance service...")
		if s.cron != nil {
			s.cron.Stop()
			s.cron = nil
		}
		drainErr = s.workerPool.Shutdown(ctx)
		s.cancel()
		s.started = false
	}

	if err := s.store.Close(); err != nil {
		return fmt.Errorf("close store: %w", err)
	}
	s.logger.Info(ctx, "topic performance service stopped")
	return drainErr
}

func (s *Service) scheduledRollup(ctx context.Context) {
	rng := model.LastDays(s.clock(), s.windowDays, s.engine.Location())
	n, err := s.engine.RebuildAll(ctx, rng)
	if err != nil {
		s.logger.Error(ctx, "scheduled rollup failed", logger.Int("rebuilt", n), logger.Error(err))
	}
}

// Store returns the underlying store.
func (s *Service) Store() repository.Store { return s.store }

// Engine returns the rollup engine.
func (s *Service) Engine() *rollup.Engine { return s.engine }

// Clock returns the service's time source.
func (s *Service) Clock() func() time.Time { return s.clock }

// Classifier returns the title classifier.
func (s *Service) Classifier() *classifier.Classifier { return s.classifier }

// GetStats returns operational counters for monitoring.
func (s *Service) GetStats() map[string]interface{} {
	s.mu.RLock()
	stats := map[string]interface{}{
		"started":        s.started,
		"workerCount":    s.workerCount,
		"queueCapacity":  s.queueSize,
		"catalogTopics":  s.classifier.Catalog().Len(),
		"rollupSchedule": s.schedule,
	}
	if s.workerPool != nil {
		queueLen := s.eventQueue.Len()
		stats["queueLength"] = queueLen
		stats["processed"] = s.workerPool.Counters().Processed()
		stats["failed"] = s.workerPool.Counters().Failed()
		metrics.UpdateQueueSize(queueLen)
	}
	deduper := s.deduper
	s.mu.RUnlock()

	// A shared deduper may have to walk a remote keyspace; keep that off the lock.
	stats["dedupeSize"] = deduper.Size()
	return stats
}

// QueueLength returns the number of queued outcomes, 0 before Start.
func (s *Service) QueueLength() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.eventQueue == nil {
		return 0
	}
	return s.eventQueue.Len()
}

// WorkerCount returns the number of running workers, 0 before Start.
func (s *Service) WorkerCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.workerPool == nil {
		return 0
	}
	return s.workerPool.Size()
}

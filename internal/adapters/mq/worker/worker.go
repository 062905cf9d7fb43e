// Package worker records queued outcomes into the performance store.
package worker

import (
	"context"
	"fmt"
	"runtime"
	"strconv"
	"sync/atomic"
	"time"

	"github.com/arxon-dev/topicperf/internal/domain/model"
	"github.com/arxon-dev/topicperf/pkg/logger"
	"github.com/arxon-dev/topicperf/pkg/metrics"
)

const defaultWorkerMultiplier = 2 // multiplier for runtime.NumCPU()

// Classifier maps a raw title to a topic.
type Classifier interface {
	Classify(title string) string
}

// Recorder applies one answered question to a (subject, topic) aggregate.
// Transient failures are expected to be retried inside RecordOutcome.
type Recorder interface {
	RecordOutcome(ctx context.Context, subjectID, topic string, correct bool) (model.PerformanceRecord, error)
}

// Queue defines how workers receive outcomes.
type Queue interface {
	Dequeue(ctx context.Context) <-chan model.Outcome
}

// Counters tracks processed and failed outcomes across a pool.
type Counters struct {
	processed atomic.Int64
	failed    atomic.Int64
}

// Processed returns the number of outcomes recorded.
func (c *Counters) Processed() int64 { return c.processed.Load() }

// Failed returns the number of outcomes dropped after a failed record.
func (c *Counters) Failed() int64 { return c.failed.Load() }

// InMemoryWorker drains a Queue into a Recorder.
type InMemoryWorker struct {
	queue      Queue
	classifier Classifier
	recorder   Recorder
	name       string
	counters   *Counters

	shutdown chan struct{}
	done     chan struct{}

	logger logger.Logger
}

// NewInMemoryWorker creates a worker.
func NewInMemoryWorker(q Queue, c Classifier, r Recorder, opts ...Option) *InMemoryWorker {
	w := &InMemoryWorker{
		queue:      q,
		classifier: c,
		recorder:   r,
		name:       "worker",
		counters:   &Counters{},
		shutdown:   make(chan struct{}),
		done:       make(chan struct{}),
		logger:     logger.Nop(),
	}
	for _, opt := range opts {
		opt(w)
	}
	w.logger = w.logger.Named(w.name)
	return w
}

// Run processes outcomes until the queue is closed and drained, ctx ends or
// Stop is called.
func (w *InMemoryWorker) Run(ctx context.Context) {
	defer close(w.done)

	events := w.queue.Dequeue(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-w.shutdown:
			return
		case o, ok := <-events:
			if !ok {
				return
			}
			if err := w.process(ctx, o); err != nil {
				w.logger.Error(ctx, "outcome dropped", logger.String("id", o.ID), logger.Error(err))
			}
		}
	}
}

// Stop makes Run return after the outcome in flight.
func (w *InMemoryWorker) Stop() {
	select {
	case <-w.shutdown:
	default:
		close(w.shutdown)
	}
}

// Done is closed when Run has returned.
func (w *InMemoryWorker) Done() <-chan struct{} { return w.done }

func (w *InMemoryWorker) process(ctx context.Context, o model.Outcome) error { //nolint:gocritic // hugeParam: received by value from the channel
	start := time.Now()
	defer func() {
		metrics.RecordWorkerProcessingLatency(float64(time.Since(start).Microseconds()) / 1000)
	}()

	topic := o.Topic
	if topic == "" {
		topic = w.classifier.Classify(o.Title)
	}
	if _, err := w.recorder.RecordOutcome(ctx, o.SubjectID, topic, o.Correct); err != nil {
		w.counters.failed.Add(1)
		metrics.RecordWorkerError()
		return fmt.Errorf("record %s/%s: %w", o.SubjectID, topic, err)
	}
	w.counters.processed.Add(1)
	return nil
}

// Pool manages multiple workers on one queue.
type Pool struct {
	workers  []*InMemoryWorker
	queue    Queue
	counters *Counters
	logger   logger.Logger
}

// NewPool creates workerCount workers. A count below one uses twice the CPU count.
func NewPool(workerCount int, q Queue, c Classifier, r Recorder, l logger.Logger) *Pool {
	if workerCount < 1 {
		workerCount = runtime.NumCPU() * defaultWorkerMultiplier
	}
	if l == nil {
		l = logger.Nop()
	}
	p := &Pool{
		workers:  make([]*InMemoryWorker, workerCount),
		queue:    q,
		counters: &Counters{},
		logger:   l.Named("worker-pool"),
	}
	for i := range p.workers {
		p.workers[i] = NewInMemoryWorker(q, c, r,
			WithName("worker-"+strconv.Itoa(i)),
			WithLogger(l),
			WithCounters(p.counters),
		)
	}
	metrics.UpdateWorkerCount(workerCount)
	return p
}

// Start runs every worker in its own goroutine.
func (p *Pool) Start(ctx context.Context) {
	for _, w := range p.workers {
		go w.Run(ctx)
	}
}

// Size returns the number of workers.
func (p *Pool) Size() int { return len(p.workers) }

// Counters returns the pool's shared counters.
func (p *Pool) Counters() *Counters { return p.counters }

// Shutdown closes the queue and lets workers drain it. Workers still busy
// when ctx ends are stopped after their current outcome.
func (p *Pool) Shutdown(ctx context.Context) error {
	if closer, ok := p.queue.(interface{ Close() error }); ok {
		if err := closer.Close(); err != nil {
			p.logger.Error(ctx, "error closing queue", logger.Error(err))
		}
	}

	for i, w := range p.workers {
		select {
		case <-w.Done():
		case <-ctx.Done():
			p.logger.Warn(ctx, "worker drain timed out", logger.Int("worker_id", i))
			for _, rest := range p.workers[i:] {
				rest.Stop()
			}
			return fmt.Errorf("worker pool shutdown: %w", ctx.Err())
		}
	}
	metrics.UpdateWorkerCount(0)
	return nil
}

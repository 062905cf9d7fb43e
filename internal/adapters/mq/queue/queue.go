// Package queue buffers outcome events between ingestion and the workers
// that record them.
package queue

import (
	"context"
	"sync"

	"github.com/arxon-dev/topicperf/internal/domain/model"
	"github.com/arxon-dev/topicperf/pkg/metrics"
)

const defaultCapacity = 10000

// Queue provides non-blocking enqueue and channel-based dequeue semantics.
type Queue interface {
	// Enqueue adds an outcome. It returns false when the queue is full or
	// closed and the outcome was not enqueued.
	Enqueue(ctx context.Context, o model.Outcome) bool

	// Dequeue returns a channel that receives outcomes until the queue is
	// closed and drained, or ctx ends.
	Dequeue(ctx context.Context) <-chan model.Outcome

	// Len returns the current number of queued outcomes.
	Len() int

	// Cap returns the queue capacity.
	Cap() int

	// Close stops accepting outcomes. Queued ones can still be dequeued.
	Close() error

	IsClosed() bool
}

// InMemoryQueue implements Queue on a buffered channel.
type InMemoryQueue struct {
	events   chan model.Outcome
	capacity int

	mu     sync.RWMutex
	closed bool
}

// NewInMemoryQueue creates a bounded in-memory queue.
func NewInMemoryQueue(opts ...Option) *InMemoryQueue {
	q := &InMemoryQueue{capacity: defaultCapacity}
	for _, opt := range opts {
		opt(q)
	}
	q.events = make(chan model.Outcome, q.capacity)

	metrics.UpdateQueueCapacity(q.capacity)
	metrics.UpdateQueueSize(0)
	return q
}

func (q *InMemoryQueue) Enqueue(ctx context.Context, o model.Outcome) bool { //nolint:gocritic // hugeParam: sent by value on the channel
	q.mu.RLock()
	defer q.mu.RUnlock()

	if q.closed || ctx.Err() != nil {
		return false
	}

	select {
	case q.events <- o:
		metrics.RecordQueueEnqueue()
		metrics.UpdateQueueSize(len(q.events))
		return true
	default:
		metrics.RecordQueueBackpressure()
		return false
	}
}

func (q *InMemoryQueue) Dequeue(ctx context.Context) <-chan model.Outcome {
	out := make(chan model.Outcome)
	go func() {
		defer close(out)
		for o := range q.events {
			select {
			case out <- o:
				metrics.RecordQueueDequeue()
				metrics.UpdateQueueSize(len(q.events))
			case <-ctx.Done():
				return
			}
		}
	}()
	return out
}

func (q *InMemoryQueue) Len() int { return len(q.events) }

func (q *InMemoryQueue) Cap() int { return q.capacity }

// Close is idempotent.
func (q *InMemoryQueue) Close() error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		return nil
	}
	close(q.events)
	q.closed = true
	return nil
}

func (q *InMemoryQueue) IsClosed() bool {
	q.mu.RLock()
	defer q.mu.RUnlock()
	return q.closed
}

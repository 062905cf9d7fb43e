package queue

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/arxon-dev/topicperf/internal/domain/model"
)

func outcome(id string) model.Outcome {
	return model.Outcome{ID: id, SubjectID: "user1", Title: "OTAN", Correct: true}
}

func TestInMemoryQueue_BasicOperations(t *testing.T) {
	q := NewInMemoryQueue(WithCapacity(2))
	ctx := context.Background()

	if l := q.Len(); l != 0 {
		t.Errorf("expected length 0, got %d", l)
	}
	if c := q.Cap(); c != 2 {
		t.Errorf("expected capacity 2, got %d", c)
	}

	if !q.Enqueue(ctx, outcome("event1")) {
		t.Error("expected enqueue to succeed")
	}
	if l := q.Len(); l != 1 {
		t.Errorf("expected length 1, got %d", l)
	}

	got := <-q.Dequeue(ctx)
	if got.ID != "event1" {
		t.Errorf("expected event1, got %v", got.ID)
	}
}

func TestInMemoryQueue_Backpressure(t *testing.T) {
	q := NewInMemoryQueue(WithCapacity(2))
	ctx := context.Background()

	if !q.Enqueue(ctx, outcome("event1")) || !q.Enqueue(ctx, outcome("event2")) {
		t.Fatal("expected enqueue to succeed")
	}
	if q.Enqueue(ctx, outcome("event3")) {
		t.Error("expected enqueue to fail when full")
	}
	if l := q.Len(); l != 2 {
		t.Errorf("expected length 2, got %d", l)
	}
}

func TestInMemoryQueue_CancelledContext(t *testing.T) {
	q := NewInMemoryQueue()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if q.Enqueue(ctx, outcome("event1")) {
		t.Error("expected enqueue to fail with a cancelled context")
	}
}

func TestInMemoryQueue_ConcurrentAccess(t *testing.T) {
	const (
		producers = 10
		perWorker = 100
	)
	q := NewInMemoryQueue(WithCapacity(producers * perWorker))
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < producers; i++ {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			for j := 0; j < perWorker; j++ {
				if !q.Enqueue(ctx, outcome(fmt.Sprintf("p%d-%d", id, j))) {
					t.Errorf("enqueue p%d-%d failed", id, j)
				}
			}
		}(i)
	}
	wg.Wait()
	if err := q.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	seen := make(map[string]bool)
	for o := range q.Dequeue(ctx) {
		if seen[o.ID] {
			t.Errorf("duplicate %s", o.ID)
		}
		seen[o.ID] = true
	}
	if len(seen) != producers*perWorker {
		t.Errorf("expected %d outcomes, got %d", producers*perWorker, len(seen))
	}
}

func TestInMemoryQueue_Close(t *testing.T) {
	q := NewInMemoryQueue(WithCapacity(10))
	ctx := context.Background()

	if !q.Enqueue(ctx, outcome("event1")) {
		t.Fatal("expected enqueue to succeed")
	}
	if err := q.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	if err := q.Close(); err != nil {
		t.Errorf("second close: %v", err)
	}
	if !q.IsClosed() {
		t.Error("expected queue to be closed")
	}
	if q.Enqueue(ctx, outcome("event2")) {
		t.Error("expected enqueue to fail after close")
	}

	ch := q.Dequeue(ctx)
	select {
	case o, ok := <-ch:
		if !ok || o.ID != "event1" {
			t.Errorf("expected queued event1 to drain, got %v %v", o.ID, ok)
		}
	case <-time.After(time.Second):
		t.Fatal("timed out draining")
	}
	if _, ok := <-ch; ok {
		t.Error("expected channel to close after draining")
	}
}

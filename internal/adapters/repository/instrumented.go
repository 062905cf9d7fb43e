package repository

import (
	"context"
	"time"

	"github.com/arxon-dev/topicperf/internal/domain/model"
	"github.com/arxon-dev/topicperf/pkg/metrics"
)

// Instrumented wraps a Store and records per-operation latency.
type Instrumented struct {
	Store
	backend string
}

// Instrument decorates s with latency metrics labelled with backend.
func Instrument(s Store, backend string) *Instrumented {
	return &Instrumented{Store: s, backend: backend}
}

// Unwrap returns the decorated store.
func (i *Instrumented) Unwrap() Store { return i.Store }

func (i *Instrumented) observe(op string, start time.Time) {
	metrics.RecordStoreLatency(i.backend, op, float64(time.Since(start).Microseconds())/1000)
}

func (i *Instrumented) GetOrCreate(ctx context.Context, subjectID, topic string) (model.PerformanceRecord, error) {
	defer i.observe("get_or_create", time.Now())
	return i.Store.GetOrCreate(ctx, subjectID, topic)
}

func (i *Instrumented) RecordOutcome(ctx context.Context, subjectID, topic string, correct bool) (model.PerformanceRecord, error) {
	defer i.observe("record_outcome", time.Now())
	return i.Store.RecordOutcome(ctx, subjectID, topic, correct)
}

func (i *Instrumented) BulkReconcile(ctx context.Context, subjectID, topic string, total, correct uint64) (model.PerformanceRecord, error) {
	defer i.observe("bulk_reconcile", time.Now())
	return i.Store.BulkReconcile(ctx, subjectID, topic, total, correct)
}

func (i *Instrumented) GetPerformance(ctx context.Context, subjectID, topic string) (model.PerformanceRecord, bool, error) {
	defer i.observe("get_performance", time.Now())
	return i.Store.GetPerformance(ctx, subjectID, topic)
}

func (i *Instrumented) ReplaceTimeline(ctx context.Context, subjectID, date string, entry *model.DailyTimelineEntry) error {
	defer i.observe("replace_timeline", time.Now())
	return i.Store.ReplaceTimeline(ctx, subjectID, date, entry)
}

func (i *Instrumented) ListAll(ctx context.Context) ([]model.PerformanceRecord, error) {
	defer i.observe("list_all", time.Now())
	return i.Store.ListAll(ctx)
}

// WithSubjectLock forwards to the wrapped store when it supports subject locks.
func (i *Instrumented) WithSubjectLock(ctx context.Context, subjectID string, fn func(ctx context.Context) error) error {
	if l, ok := i.Store.(SubjectLocker); ok {
		return l.WithSubjectLock(ctx, subjectID, fn)
	}
	return fn(ctx)
}

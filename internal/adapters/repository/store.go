// Package repository defines the performance aggregate store contract and
// the error classes its backends report.
package repository

import (
	"context"
	"time"

	"github.com/arxon-dev/topicperf/internal/domain/model"
	"github.com/arxon-dev/topicperf/internal/domain/rollup"
)

// Every Store can feed the rollup engine.
var (
	_ rollup.Store         = Store(nil)
	_ rollup.SubjectLocker = SubjectLocker(nil)
)

// Store is durable keyed storage of per-(subject, topic) performance records
// plus the derived daily timeline table.
//
// RecordOutcome and BulkReconcile are atomic per key. Implementations must
// keep at most one record per (subject, topic) under concurrent first writes.
type Store interface {
	// GetOrCreate returns the record for the key, creating a zeroed one if
	// none exists. Concurrent creators observe the same record.
	GetOrCreate(ctx context.Context, subjectID, topic string) (model.PerformanceRecord, error)

	// RecordOutcome adds one answered question to the key in a single atomic
	// read-modify-write and returns the new state.
	RecordOutcome(ctx context.Context, subjectID, topic string, correct bool) (model.PerformanceRecord, error)

	// BulkReconcile overwrites the key's counters with absolute values.
	BulkReconcile(ctx context.Context, subjectID, topic string, total, correct uint64) (model.PerformanceRecord, error)

	// GetPerformance reports found=false with a nil error for unseen keys.
	GetPerformance(ctx context.Context, subjectID, topic string) (model.PerformanceRecord, bool, error)

	// Insert creates rec as is. An existing key is an ErrIntegrity error.
	Insert(ctx context.Context, rec model.PerformanceRecord) error

	// ListBySubject returns a subject's records ordered by topic.
	ListBySubject(ctx context.Context, subjectID string) ([]model.PerformanceRecord, error)

	// ListAll returns every record ordered by subject then topic.
	ListAll(ctx context.Context) ([]model.PerformanceRecord, error)

	// ListActiveBetween returns a subject's records with LastActivity in [from, to).
	ListActiveBetween(ctx context.Context, subjectID string, from, to time.Time) ([]model.PerformanceRecord, error)

	// Subjects returns every distinct subject id, ascending.
	Subjects(ctx context.Context) ([]string, error)

	// DeleteSubject removes every record and timeline row of a subject.
	DeleteSubject(ctx context.Context, subjectID string) (int64, error)

	// DeleteTopic removes every record carrying topic.
	DeleteTopic(ctx context.Context, topic string) (int64, error)

	// ReplaceTimeline deletes the (subject, date) row and inserts entry when
	// it is not nil, as one unit.
	ReplaceTimeline(ctx context.Context, subjectID, date string, entry *model.DailyTimelineEntry) error

	// Timeline returns a subject's rows with fromDate <= date <= toDate, oldest first.
	Timeline(ctx context.Context, subjectID, fromDate, toDate string) ([]model.DailyTimelineEntry, error)

	Close() error
}

// Clock returns the current time. Backends stamp records with it.
type Clock func() time.Time

// SubjectLocker is implemented by stores that can hold a per-subject lock
// for the duration of fn, e.g. a database advisory lock.
type SubjectLocker interface {
	WithSubjectLock(ctx context.Context, subjectID string, fn func(ctx context.Context) error) error
}

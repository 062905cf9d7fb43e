package rollup

import (
	"context"
	"time"

	"github.com/arxon-dev/topicperf/internal/domain/model"
)

// Store is the part of the aggregate store the engine reads and writes.
// Every performance store backend satisfies it.
type Store interface {
	ListBySubject(ctx context.Context, subjectID string) ([]model.PerformanceRecord, error)
	ListAll(ctx context.Context) ([]model.PerformanceRecord, error)
	ListActiveBetween(ctx context.Context, subjectID string, from, to time.Time) ([]model.PerformanceRecord, error)
	Subjects(ctx context.Context) ([]string, error)

	// ReplaceTimeline deletes the (subject, date) row and inserts entry when
	// it is not nil, as one unit.
	ReplaceTimeline(ctx context.Context, subjectID, date string, entry *model.DailyTimelineEntry) error
	Timeline(ctx context.Context, subjectID, fromDate, toDate string) ([]model.DailyTimelineEntry, error)
}

// SubjectLocker is implemented by stores that can hold a per-subject lock
// for the duration of fn. The engine runs a rebuild inside it when present.
type SubjectLocker interface {
	WithSubjectLock(ctx context.Context, subjectID string, fn func(ctx context.Context) error) error
}

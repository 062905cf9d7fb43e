// Package repositorytest is the conformance suite every repository.Store
// backend runs from its own tests.
package repositorytest

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"sync"
	"testing"
	"time"

	. "github.com/smartystreets/goconvey/convey"

	"github.com/arxon-dev/topicperf/internal/adapters/repository"
	"github.com/arxon-dev/topicperf/internal/domain/model"
)

// Concurrency is the number of concurrent writers used by the lost-update checks.
const Concurrency = 100

// Factory returns an empty store whose timestamps come from clock.
type Factory func(t *testing.T, clock repository.Clock) repository.Store

// Clock is a manually advanced clock.
type Clock struct {
	mu  sync.Mutex
	now time.Time
}

// NewClock returns a Clock set to start.
func NewClock(start time.Time) *Clock { return &Clock{now: start} }

// Now returns the current fake time.
func (c *Clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

// Set moves the clock to t.
func (c *Clock) Set(t time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = t
}

// Advance moves the clock forward by d.
func (c *Clock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

// Start is the fake clock's initial time.
var Start = time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)

// Run executes the suite against stores built by factory.
func Run(t *testing.T, factory Factory) {
	Convey("Given an empty store", t, func() {
		ctx := context.Background()
		clock := NewClock(Start)
		store := factory(t, clock.Now)
		Reset(func() { _ = store.Close() })

		Convey("an unseen key is not found and is not an error", func() {
			rec, found, err := store.GetPerformance(ctx, "nobody", "OTAN")
			So(err, ShouldBeNil)
			So(found, ShouldBeFalse)
			So(rec.TotalQuestions, ShouldEqual, 0)
		})

		Convey("one correct and one incorrect outcome give 50% accuracy", func() {
			_, err := store.RecordOutcome(ctx, "user1", "OTAN", true)
			So(err, ShouldBeNil)
			clock.Advance(time.Minute)
			rec, err := store.RecordOutcome(ctx, "user1", "OTAN", false)
			So(err, ShouldBeNil)

			So(rec.TotalQuestions, ShouldEqual, 2)
			So(rec.CorrectAnswers, ShouldEqual, 1)
			So(rec.IncorrectAnswers, ShouldEqual, 1)
			So(rec.Accuracy, ShouldEqual, 50.0)
			So(rec.CreatedAt, ShouldEqual, Start)
			So(rec.LastActivity, ShouldEqual, Start.Add(time.Minute))
			So(rec.UpdatedAt, ShouldEqual, rec.LastActivity)

			got, found, err := store.GetPerformance(ctx, "user1", "OTAN")
			So(err, ShouldBeNil)
			So(found, ShouldBeTrue)
			So(got, ShouldResemble, rec)
		})

		Convey("GetOrCreate creates once and keeps createdAt", func() {
			first, err := store.GetOrCreate(ctx, "user1", "OSCE")
			So(err, ShouldBeNil)
			So(first.TotalQuestions, ShouldEqual, 0)
			So(first.CreatedAt, ShouldEqual, Start)

			clock.Advance(time.Hour)
			_, err = store.RecordOutcome(ctx, "user1", "OSCE", true)
			So(err, ShouldBeNil)
			again, err := store.GetOrCreate(ctx, "user1", "OSCE")
			So(err, ShouldBeNil)
			So(again.TotalQuestions, ShouldEqual, 1)
			So(again.CreatedAt, ShouldEqual, Start)
		})

		Convey("concurrent GetOrCreate on a fresh key yields one record", func() {
			results := make([]model.PerformanceRecord, Concurrency)
			errs := runConcurrently(Concurrency, func(i int) error {
				r, err := store.GetOrCreate(ctx, "racer", "Doctrina")
				results[i] = r
				return err
			})
			So(errs, ShouldBeEmpty)
			for _, r := range results {
				So(r.CreatedAt, ShouldEqual, results[0].CreatedAt)
			}
			list, err := store.ListBySubject(ctx, "racer")
			So(err, ShouldBeNil)
			So(len(list), ShouldEqual, 1)
		})

		Convey("concurrent RecordOutcome calls on one key lose no updates", func() {
			errs := runConcurrently(Concurrency, func(int) error {
				_, err := store.RecordOutcome(ctx, "user1", "OTAN", true)
				return err
			})
			So(errs, ShouldBeEmpty)

			rec, found, err := store.GetPerformance(ctx, "user1", "OTAN")
			So(err, ShouldBeNil)
			So(found, ShouldBeTrue)
			So(rec.TotalQuestions, ShouldEqual, Concurrency)
			So(rec.CorrectAnswers, ShouldEqual, Concurrency)
			So(rec.IncorrectAnswers, ShouldEqual, 0)
			So(rec.Accuracy, ShouldEqual, 100.0)
		})

		Convey("mixed concurrent outcomes keep counts exact and accuracy derived", func() {
			n := 2 * Concurrency
			errs := runConcurrently(n, func(i int) error {
				_, err := store.RecordOutcome(ctx, "user2", "Unión Europea", i%4 == 0)
				return err
			})
			So(errs, ShouldBeEmpty)

			rec, _, err := store.GetPerformance(ctx, "user2", "Unión Europea")
			So(err, ShouldBeNil)
			So(rec.TotalQuestions, ShouldEqual, n)
			So(rec.CorrectAnswers, ShouldEqual, n/4)
			So(rec.CorrectAnswers+rec.IncorrectAnswers, ShouldEqual, rec.TotalQuestions)
			So(rec.Accuracy, ShouldEqual, model.AccuracyOf(rec.CorrectAnswers, rec.TotalQuestions))
			So(rec.Validate(), ShouldBeNil)
		})

		Convey("the accuracy invariant holds after any sequence", func() {
			rng := rand.New(rand.NewSource(42))
			var rec model.PerformanceRecord
			var err error
			for i := 0; i < 60; i++ {
				rec, err = store.RecordOutcome(ctx, "seq", "OTAN", rng.Intn(3) == 0)
				So(err, ShouldBeNil)
				So(rec.CorrectAnswers+rec.IncorrectAnswers, ShouldEqual, rec.TotalQuestions)
				So(rec.Accuracy, ShouldAlmostEqual, float64(rec.CorrectAnswers)/float64(rec.TotalQuestions)*100, 1e-9)
			}
		})

		Convey("BulkReconcile overwrites with absolute values", func() {
			for i := 0; i < 5; i++ {
				_, err := store.RecordOutcome(ctx, "user1", "OTAN", true)
				So(err, ShouldBeNil)
			}
			clock.Advance(time.Hour)
			rec, err := store.BulkReconcile(ctx, "user1", "OTAN", 8, 2)
			So(err, ShouldBeNil)
			So(rec.TotalQuestions, ShouldEqual, 8)
			So(rec.CorrectAnswers, ShouldEqual, 2)
			So(rec.IncorrectAnswers, ShouldEqual, 6)
			So(rec.Accuracy, ShouldEqual, 25.0)
			So(rec.CreatedAt, ShouldEqual, Start)
			So(rec.UpdatedAt, ShouldEqual, Start.Add(time.Hour))

			again, err := store.BulkReconcile(ctx, "user1", "OTAN", 8, 2)
			So(err, ShouldBeNil)
			So(again.TotalQuestions, ShouldEqual, 8)

			fresh, err := store.BulkReconcile(ctx, "user9", "OSCE", 3, 3)
			So(err, ShouldBeNil)
			So(fresh.Accuracy, ShouldEqual, 100.0)
			So(fresh.LastActivity, ShouldEqual, Start.Add(time.Hour))
		})

		Convey("BulkReconcile is not activity: last_activity survives it", func() {
			_, err := store.RecordOutcome(ctx, "user1", "OTAN", true)
			So(err, ShouldBeNil)
			clock.Advance(48 * time.Hour)

			rec, err := store.BulkReconcile(ctx, "user1", "OTAN", 40, 30)
			So(err, ShouldBeNil)
			So(rec.LastActivity, ShouldEqual, Start)
			So(rec.UpdatedAt, ShouldEqual, Start.Add(48*time.Hour))

			got, found, err := store.GetPerformance(ctx, "user1", "OTAN")
			So(err, ShouldBeNil)
			So(found, ShouldBeTrue)
			So(got.LastActivity, ShouldEqual, Start)

			today, err := store.ListActiveBetween(ctx, "user1", Start.Add(48*time.Hour), Start.Add(72*time.Hour))
			So(err, ShouldBeNil)
			So(today, ShouldBeEmpty)
		})

		Convey("invalid requests are rejected with ErrInvalid", func() {
			_, err := store.BulkReconcile(ctx, "user1", "OTAN", 1, 2)
			So(errors.Is(err, repository.ErrInvalid), ShouldBeTrue)
			_, found, _ := store.GetPerformance(ctx, "user1", "OTAN")
			So(found, ShouldBeFalse)

			_, err = store.RecordOutcome(ctx, "", "OTAN", true)
			So(errors.Is(err, repository.ErrInvalid), ShouldBeTrue)
			_, err = store.GetOrCreate(ctx, "user1", " ")
			So(errors.Is(err, repository.ErrInvalid), ShouldBeTrue)
		})

		Convey("Insert of an existing key is an integrity violation", func() {
			rec := model.NewPerformanceRecord("user1", "OTAN", Start)
			So(rec.Reconcile(4, 3, Start), ShouldBeNil)
			So(store.Insert(ctx, rec), ShouldBeNil)

			err := store.Insert(ctx, rec)
			So(errors.Is(err, repository.ErrIntegrity), ShouldBeTrue)
			So(repository.IsRetryable(err), ShouldBeFalse)

			got, _, err := store.GetPerformance(ctx, "user1", "OTAN")
			So(err, ShouldBeNil)
			So(got, ShouldResemble, rec)
		})

		Convey("listing and activity windows", func() {
			mustRecord(ctx, store, "b", "OTAN", true)
			mustRecord(ctx, store, "a", "OSCE", false)
			clock.Set(Start.Add(24 * time.Hour))
			mustRecord(ctx, store, "a", "Doctrina", true)

			all, err := store.ListAll(ctx)
			So(err, ShouldBeNil)
			So(keys(all), ShouldResemble, []string{"a/Doctrina", "a/OSCE", "b/OTAN"})

			subjects, err := store.Subjects(ctx)
			So(err, ShouldBeNil)
			So(subjects, ShouldResemble, []string{"a", "b"})

			day1, err := store.ListActiveBetween(ctx, "a", Start.Add(-time.Hour), Start.Add(23*time.Hour))
			So(err, ShouldBeNil)
			So(keys(day1), ShouldResemble, []string{"a/OSCE"})

			// to is exclusive
			edge, err := store.ListActiveBetween(ctx, "a", Start, Start.Add(24*time.Hour))
			So(err, ShouldBeNil)
			So(keys(edge), ShouldResemble, []string{"a/OSCE"})
		})

		Convey("deletes remove records and report counts", func() {
			mustRecord(ctx, store, "a", "OTAN", true)
			mustRecord(ctx, store, "a", "general", true)
			mustRecord(ctx, store, "b", "general", false)
			So(store.ReplaceTimeline(ctx, "a", "2026-03-10", &model.DailyTimelineEntry{SubjectID: "a", Date: "2026-03-10", QuestionsAnswered: 1}), ShouldBeNil)

			n, err := store.DeleteTopic(ctx, "general")
			So(err, ShouldBeNil)
			So(n, ShouldEqual, 2)

			n, err = store.DeleteSubject(ctx, "a")
			So(err, ShouldBeNil)
			So(n, ShouldEqual, 1)

			all, _ := store.ListAll(ctx)
			So(all, ShouldBeEmpty)
			rows, err := store.Timeline(ctx, "a", "2026-01-01", "2026-12-31")
			So(err, ShouldBeNil)
			So(rows, ShouldBeEmpty)
		})

		Convey("timeline rows are replaced, ranged and deleted", func() {
			row := model.DailyTimelineEntry{
				SubjectID: "a", Date: "2026-03-10",
				QuestionsAnswered: 3, CorrectAnswers: 2, IncorrectAnswers: 1,
				PointsEarned: 4, PointsLost: 1, Accuracy: model.AccuracyOf(2, 3), StudyTimeSeconds: 360,
			}
			So(store.ReplaceTimeline(ctx, "a", row.Date, &row), ShouldBeNil)
			So(store.ReplaceTimeline(ctx, "a", row.Date, &row), ShouldBeNil)
			other := row
			other.Date = "2026-03-12"
			So(store.ReplaceTimeline(ctx, "a", other.Date, &other), ShouldBeNil)

			rows, err := store.Timeline(ctx, "a", "2026-03-01", "2026-03-31")
			So(err, ShouldBeNil)
			So(rows, ShouldResemble, []model.DailyTimelineEntry{row, other})

			rows, err = store.Timeline(ctx, "a", "2026-03-11", "2026-03-12")
			So(err, ShouldBeNil)
			So(rows, ShouldResemble, []model.DailyTimelineEntry{other})

			So(store.ReplaceTimeline(ctx, "a", row.Date, nil), ShouldBeNil)
			rows, _ = store.Timeline(ctx, "a", "2026-03-01", "2026-03-31")
			So(rows, ShouldResemble, []model.DailyTimelineEntry{other})
		})
	})
}

func runConcurrently(n int, fn func(i int) error) []error {
	var (
		wg   sync.WaitGroup
		mu   sync.Mutex
		errs []error
	)
	start := make(chan struct{})
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			<-start
			if err := fn(i); err != nil {
				mu.Lock()
				errs = append(errs, err)
				mu.Unlock()
			}
		}(i)
	}
	close(start)
	wg.Wait()
	return errs
}

func mustRecord(ctx context.Context, s repository.Store, subject, topic string, correct bool) {
	if _, err := s.RecordOutcome(ctx, subject, topic, correct); err != nil {
		panic(fmt.Sprintf("record %s/%s: %v", subject, topic, err))
	}
}

func keys(recs []model.PerformanceRecord) []string {
	out := make([]string, len(recs))
	for i, r := range recs {
		out[i] = r.Key().String()
	}
	return out
}

// Package postgres is a repository.Store on PostgreSQL through gorm.
// Increments are single INSERT ... ON CONFLICT DO UPDATE ... RETURNING
// statements, so concurrent writers to one key serialize on its row lock.
package postgres

import (
	"context"
	"errors"
	"fmt"
	"hash/fnv"
	"time"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	gormlogger "gorm.io/gorm/logger"

	"github.com/arxon-dev/topicperf/internal/adapters/repository"
	"github.com/arxon-dev/topicperf/internal/domain/model"
)

const lockNamespace = "topicperf:rollup"

var keyColumns = []clause.Column{{Name: "subject_id"}, {Name: "topic"}}

// Store implements repository.Store and repository.SubjectLocker on PostgreSQL.
type Store struct {
	db    *gorm.DB
	clock repository.Clock

	migrate bool
}

// Option configures a Store.
type Option func(*Store)

// WithClock overrides time.Now.
func WithClock(c repository.Clock) Option {
	return func(s *Store) {
		if c != nil {
			s.clock = c
		}
	}
}

// WithAutoMigrate controls whether Open creates missing tables and indexes.
func WithAutoMigrate(enabled bool) Option {
	return func(s *Store) { s.migrate = enabled }
}

// Open connects to dsn.
func Open(ctx context.Context, dsn string, opts ...Option) (*Store, error) {
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	return New(ctx, db, opts...)
}

// New wraps an existing gorm handle.
func New(ctx context.Context, db *gorm.DB, opts ...Option) (*Store, error) {
	s := &Store{db: db, clock: time.Now, migrate: true}
	for _, opt := range opts {
		opt(s)
	}
	if s.migrate {
		if err := s.db.WithContext(ctx).AutoMigrate(&performanceRow{}, &timelineRow{}); err != nil {
			return nil, fmt.Errorf("auto-migrate: %w", err)
		}
	}
	return s, nil
}

// DB returns the underlying gorm handle.
func (s *Store) DB() *gorm.DB { return s.db }

func (s *Store) now() time.Time { return model.Timestamp(s.clock()) }

func (s *Store) GetOrCreate(ctx context.Context, subjectID, topic string) (model.PerformanceRecord, error) {
	if err := repository.ValidateKey(subjectID, topic); err != nil {
		return model.PerformanceRecord{}, err
	}
	now := s.now()
	row := performanceRow{SubjectID: subjectID, Topic: topic, LastActivity: now, CreatedAt: now, UpdatedAt: now}
	db := s.db.WithContext(ctx)

	// DO NOTHING waits for a concurrent uncommitted insert of the same key,
	// so the read below always sees the winning row.
	if err := db.Clauses(clause.OnConflict{Columns: keyColumns, DoNothing: true}).Create(&row).Error; err != nil {
		return model.PerformanceRecord{}, mapError("create record", err)
	}
	var got performanceRow
	if err := db.Where("subject_id = ? AND topic = ?", subjectID, topic).Take(&got).Error; err != nil {
		return model.PerformanceRecord{}, mapError("read record", err)
	}
	return got.toModel(), nil
}

func (s *Store) RecordOutcome(ctx context.Context, subjectID, topic string, correct bool) (model.PerformanceRecord, error) {
	if err := repository.ValidateKey(subjectID, topic); err != nil {
		return model.PerformanceRecord{}, err
	}
	now := s.now()
	row := performanceRow{
		SubjectID:    subjectID,
		Topic:        topic,
		LastActivity: now,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	row.TotalQuestions = 1
	if correct {
		row.CorrectAnswers = 1
	} else {
		row.IncorrectAnswers = 1
	}
	row.Accuracy = model.AccuracyOf(uint64(row.CorrectAnswers), 1)

	err := s.db.WithContext(ctx).Clauses(
		clause.OnConflict{
			Columns: keyColumns,
			DoUpdates: clause.Assignments(map[string]interface{}{
				"total_questions":   gorm.Expr("performance.total_questions + 1"),
				"correct_answers":   gorm.Expr("performance.correct_answers + excluded.correct_answers"),
				"incorrect_answers": gorm.Expr("performance.incorrect_answers + excluded.incorrect_answers"),
				"accuracy": gorm.Expr("(performance.correct_answers + excluded.correct_answers)::double precision" +
					" / (performance.total_questions + 1)::double precision * 100::double precision"),
				"last_activity": gorm.Expr("excluded.last_activity"),
				"updated_at":    gorm.Expr("excluded.updated_at"),
			}),
		},
		clause.Returning{},
	).Create(&row).Error
	if err != nil {
		return model.PerformanceRecord{}, mapError("record outcome", err)
	}
	return row.toModel(), nil
}

func (s *Store) BulkReconcile(ctx context.Context, subjectID, topic string, total, correct uint64) (model.PerformanceRecord, error) {
	if err := repository.ValidateKey(subjectID, topic); err != nil {
		return model.PerformanceRecord{}, err
	}
	if err := repository.ValidateCounts(total, correct); err != nil {
		return model.PerformanceRecord{}, err
	}
	now := s.now()
	row := performanceRow{
		SubjectID:        subjectID,
		Topic:            topic,
		TotalQuestions:   int64(total),
		CorrectAnswers:   int64(correct),
		IncorrectAnswers: int64(total - correct),
		Accuracy:         model.AccuracyOf(correct, total),
		LastActivity:     now,
		CreatedAt:        now,
		UpdatedAt:        now,
	}
	err := s.db.WithContext(ctx).Clauses(
		clause.OnConflict{
			Columns: keyColumns,
			DoUpdates: clause.AssignmentColumns([]string{
				"total_questions",
				"correct_answers",
				"incorrect_answers",
				"accuracy",
				"updated_at",
			}),
		},
		clause.Returning{},
	).Create(&row).Error
	if err != nil {
		return model.PerformanceRecord{}, mapError("reconcile", err)
	}
	return row.toModel(), nil
}

func (s *Store) GetPerformance(ctx context.Context, subjectID, topic string) (model.PerformanceRecord, bool, error) {
	if err := repository.ValidateKey(subjectID, topic); err != nil {
		return model.PerformanceRecord{}, false, err
	}
	var row performanceRow
	err := s.db.WithContext(ctx).Where("subject_id = ? AND topic = ?", subjectID, topic).Take(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return model.PerformanceRecord{}, false, nil
	}
	if err != nil {
		return model.PerformanceRecord{}, false, mapError("get performance", err)
	}
	return row.toModel(), true, nil
}

func (s *Store) Insert(ctx context.Context, rec model.PerformanceRecord) error {
	if err := rec.Validate(); err != nil {
		return fmt.Errorf("%w: %w", repository.ErrInvalid, err)
	}
	row := fromModel(rec)
	return mapError("insert record", s.db.WithContext(ctx).Create(&row).Error)
}

func (s *Store) list(ctx context.Context, op string, scope func(*gorm.DB) *gorm.DB) ([]model.PerformanceRecord, error) {
	var rows []performanceRow
	if err := scope(s.db.WithContext(ctx)).Find(&rows).Error; err != nil {
		return nil, mapError(op, err)
	}
	out := make([]model.PerformanceRecord, len(rows))
	for i, r := range rows {
		out[i] = r.toModel()
	}
	return out, nil
}

func (s *Store) ListBySubject(ctx context.Context, subjectID string) ([]model.PerformanceRecord, error) {
	return s.list(ctx, "list by subject", func(db *gorm.DB) *gorm.DB {
		return db.Where("subject_id = ?", subjectID).Order("topic")
	})
}

func (s *Store) ListAll(ctx context.Context) ([]model.PerformanceRecord, error) {
	return s.list(ctx, "list all", func(db *gorm.DB) *gorm.DB {
		return db.Order("subject_id").Order("topic")
	})
}

func (s *Store) ListActiveBetween(ctx context.Context, subjectID string, from, to time.Time) ([]model.PerformanceRecord, error) {
	return s.list(ctx, "list active", func(db *gorm.DB) *gorm.DB {
		return db.Where("subject_id = ? AND last_activity >= ? AND last_activity < ?",
			subjectID, model.Timestamp(from), model.Timestamp(to)).Order("topic")
	})
}

func (s *Store) Subjects(ctx context.Context) ([]string, error) {
	var out []string
	err := s.db.WithContext(ctx).Model(&performanceRow{}).
		Distinct("subject_id").Order("subject_id").Pluck("subject_id", &out).Error
	if err != nil {
		return nil, mapError("list subjects", err)
	}
	return out, nil
}

func (s *Store) DeleteSubject(ctx context.Context, subjectID string) (int64, error) {
	if err := repository.ValidateSubject(subjectID); err != nil {
		return 0, err
	}
	var n int64
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Where("subject_id = ?", subjectID).Delete(&performanceRow{})
		if res.Error != nil {
			return res.Error
		}
		n = res.RowsAffected
		return tx.Where("subject_id = ?", subjectID).Delete(&timelineRow{}).Error
	})
	if err != nil {
		return 0, mapError("delete subject", err)
	}
	return n, nil
}

func (s *Store) DeleteTopic(ctx context.Context, topic string) (int64, error) {
	res := s.db.WithContext(ctx).Where("topic = ?", topic).Delete(&performanceRow{})
	if res.Error != nil {
		return 0, mapError("delete topic", res.Error)
	}
	return res.RowsAffected, nil
}

func (s *Store) ReplaceTimeline(ctx context.Context, subjectID, date string, entry *model.DailyTimelineEntry) error {
	if err := repository.ValidateSubject(subjectID); err != nil {
		return err
	}
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("subject_id = ? AND date = ?", subjectID, date).Delete(&timelineRow{}).Error; err != nil {
			return err
		}
		if entry == nil {
			return nil
		}
		row := timelineFromModel(subjectID, date, *entry)
		return tx.Create(&row).Error
	})
	return mapError("replace timeline", err)
}

func (s *Store) Timeline(ctx context.Context, subjectID, fromDate, toDate string) ([]model.DailyTimelineEntry, error) {
	var rows []timelineRow
	err := s.db.WithContext(ctx).
		Where("subject_id = ? AND date >= ? AND date <= ?", subjectID, fromDate, toDate).
		Order("date").Find(&rows).Error
	if err != nil {
		return nil, mapError("timeline", err)
	}
	out := make([]model.DailyTimelineEntry, len(rows))
	for i, r := range rows {
		out[i] = r.toModel()
	}
	return out, nil
}

// WithSubjectLock runs fn while holding a transaction scoped advisory lock
// for subjectID, serializing rollups across processes sharing the database.
func (s *Store) WithSubjectLock(ctx context.Context, subjectID string, fn func(ctx context.Context) error) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Exec("SELECT pg_advisory_xact_lock(?)", advisoryKey64(lockNamespace, subjectID)).Error; err != nil {
			return mapError("advisory lock", err)
		}
		return fn(ctx)
	})
}

func advisoryKey64(namespace, id string) int64 {
	h := fnv.New64a()
	_, _ = h.Write([]byte(namespace))
	_, _ = h.Write([]byte{':'})
	_, _ = h.Write([]byte(id))
	return int64(h.Sum64())
}

// Close closes the connection pool.
func (s *Store) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

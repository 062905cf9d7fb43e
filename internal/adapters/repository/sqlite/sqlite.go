// Package sqlite is a repository.Store on SQLite through the pure-Go
// modernc.org/sqlite driver. Every write is a single upsert statement, so
// atomicity per key comes from SQLite itself.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	// Pure Go SQLite driver (no CGO).
	_ "modernc.org/sqlite"

	"github.com/arxon-dev/topicperf/internal/adapters/repository"
	"github.com/arxon-dev/topicperf/internal/domain/model"
)

// MemoryPath opens a private in-memory database.
const MemoryPath = ":memory:"

// Store implements repository.Store on SQLite.
type Store struct {
	db    *sql.DB
	clock repository.Clock
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

// Open opens (creating if needed) the database at path and applies the schema.
func Open(ctx context.Context, path string, opts ...Option) (*Store, error) {
	if path != MemoryPath {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("create db directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	// SQLite has one writer. A single connection also keeps ":memory:" to one
	// database and makes the pragmas below apply to every statement.
	db.SetMaxOpenConns(1)

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA busy_timeout = 5000",
		"PRAGMA synchronous = NORMAL",
	}
	for _, p := range pragmas {
		if _, err := db.ExecContext(ctx, p); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("%s: %w", p, err)
		}
	}

	s := &Store{db: db, clock: time.Now}
	for _, opt := range opts {
		opt(s)
	}
	if err := s.migrate(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

func (s *Store) migrate(ctx context.Context) error {
	for _, stmt := range migrations {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("migrate: %w", err)
		}
	}
	return nil
}

// DB returns the underlying *sql.DB.
func (s *Store) DB() *sql.DB { return s.db }

func (s *Store) now() int64 { return model.Timestamp(s.clock()).UnixMicro() }

// i64 converts counters for binding; SQLite integers are signed 64-bit.
func i64(u uint64) int64 { return int64(u) }

type scanner interface {
	Scan(dest ...any) error
}

func scanRecord(row scanner) (model.PerformanceRecord, error) {
	var (
		r                      model.PerformanceRecord
		last, created, updated int64
	)
	err := row.Scan(&r.SubjectID, &r.Topic, &r.TotalQuestions, &r.CorrectAnswers, &r.IncorrectAnswers,
		&r.Accuracy, &last, &created, &updated)
	if err != nil {
		return model.PerformanceRecord{}, err
	}
	r.LastActivity = time.UnixMicro(last).UTC()
	r.CreatedAt = time.UnixMicro(created).UTC()
	r.UpdatedAt = time.UnixMicro(updated).UTC()
	return r, nil
}

func (s *Store) GetOrCreate(ctx context.Context, subjectID, topic string) (model.PerformanceRecord, error) {
	if err := repository.ValidateKey(subjectID, topic); err != nil {
		return model.PerformanceRecord{}, err
	}
	now := s.now()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return model.PerformanceRecord{}, mapError("begin get-or-create", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx,
		`INSERT INTO performance (`+recordColumns+`)
		 VALUES (?, ?, 0, 0, 0, 0, ?, ?, ?)
		 ON CONFLICT(subject_id, topic) DO NOTHING`,
		subjectID, topic, now, now, now,
	); err != nil {
		return model.PerformanceRecord{}, mapError("create record", err)
	}
	rec, err := scanRecord(tx.QueryRowContext(ctx,
		`SELECT `+recordColumns+` FROM performance WHERE subject_id = ? AND topic = ?`, subjectID, topic))
	if err != nil {
		return model.PerformanceRecord{}, mapError("read record", err)
	}
	if err := tx.Commit(); err != nil {
		return model.PerformanceRecord{}, mapError("commit get-or-create", err)
	}
	return rec, nil
}

func (s *Store) RecordOutcome(ctx context.Context, subjectID, topic string, correct bool) (model.PerformanceRecord, error) {
	if err := repository.ValidateKey(subjectID, topic); err != nil {
		return model.PerformanceRecord{}, err
	}
	var c, i int64
	if correct {
		c = 1
	} else {
		i = 1
	}
	now := s.now()
	// SET expressions see the pre-update row, so the accuracy uses the new
	// counts computed the same way as model.AccuracyOf.
	rec, err := scanRecord(s.db.QueryRowContext(ctx,
		`INSERT INTO performance (`+recordColumns+`)
		 VALUES (?, ?, 1, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(subject_id, topic) DO UPDATE SET
		   total_questions   = total_questions + 1,
		   correct_answers   = correct_answers + excluded.correct_answers,
		   incorrect_answers = incorrect_answers + excluded.incorrect_answers,
		   accuracy          = CAST(correct_answers + excluded.correct_answers AS REAL) / (total_questions + 1) * 100.0,
		   last_activity     = excluded.last_activity,
		   updated_at        = excluded.updated_at
		 RETURNING `+recordColumns,
		subjectID, topic, c, i, model.AccuracyOf(uint64(c), 1), now, now, now,
	))
	if err != nil {
		return model.PerformanceRecord{}, mapError("record outcome", err)
	}
	return rec, nil
}

func (s *Store) BulkReconcile(ctx context.Context, subjectID, topic string, total, correct uint64) (model.PerformanceRecord, error) {
	if err := repository.ValidateKey(subjectID, topic); err != nil {
		return model.PerformanceRecord{}, err
	}
	if err := repository.ValidateCounts(total, correct); err != nil {
		return model.PerformanceRecord{}, err
	}
	now := s.now()
	rec, err := scanRecord(s.db.QueryRowContext(ctx,
		`INSERT INTO performance (`+recordColumns+`)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(subject_id, topic) DO UPDATE SET
		   total_questions   = excluded.total_questions,
		   correct_answers   = excluded.correct_answers,
		   incorrect_answers = excluded.incorrect_answers,
		   accuracy          = excluded.accuracy,
		   updated_at        = excluded.updated_at
		 RETURNING `+recordColumns,
		subjectID, topic, i64(total), i64(correct), i64(total-correct), model.AccuracyOf(correct, total), now, now, now,
	))
	if err != nil {
		return model.PerformanceRecord{}, mapError("reconcile", err)
	}
	return rec, nil
}

func (s *Store) GetPerformance(ctx context.Context, subjectID, topic string) (model.PerformanceRecord, bool, error) {
	if err := repository.ValidateKey(subjectID, topic); err != nil {
		return model.PerformanceRecord{}, false, err
	}
	rec, err := scanRecord(s.db.QueryRowContext(ctx,
		`SELECT `+recordColumns+` FROM performance WHERE subject_id = ? AND topic = ?`, subjectID, topic))
	if errors.Is(err, sql.ErrNoRows) {
		return model.PerformanceRecord{}, false, nil
	}
	if err != nil {
		return model.PerformanceRecord{}, false, mapError("get performance", err)
	}
	return rec, true, nil
}

func (s *Store) Insert(ctx context.Context, rec model.PerformanceRecord) error {
	if err := rec.Validate(); err != nil {
		return fmt.Errorf("%w: %w", repository.ErrInvalid, err)
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO performance (`+recordColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.SubjectID, rec.Topic, i64(rec.TotalQuestions), i64(rec.CorrectAnswers), i64(rec.IncorrectAnswers), rec.Accuracy,
		model.Timestamp(rec.LastActivity).UnixMicro(),
		model.Timestamp(rec.CreatedAt).UnixMicro(),
		model.Timestamp(rec.UpdatedAt).UnixMicro(),
	)
	return mapError("insert record", err)
}

func (s *Store) queryRecords(ctx context.Context, op, query string, args ...any) ([]model.PerformanceRecord, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, mapError(op, err)
	}
	defer rows.Close()

	var out []model.PerformanceRecord
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, mapError(op, err)
		}
		out = append(out, rec)
	}
	return out, mapError(op, rows.Err())
}

func (s *Store) ListBySubject(ctx context.Context, subjectID string) ([]model.PerformanceRecord, error) {
	return s.queryRecords(ctx, "list by subject",
		`SELECT `+recordColumns+` FROM performance WHERE subject_id = ? ORDER BY topic`, subjectID)
}

func (s *Store) ListAll(ctx context.Context) ([]model.PerformanceRecord, error) {
	return s.queryRecords(ctx, "list all",
		`SELECT `+recordColumns+` FROM performance ORDER BY subject_id, topic`)
}

func (s *Store) ListActiveBetween(ctx context.Context, subjectID string, from, to time.Time) ([]model.PerformanceRecord, error) {
	return s.queryRecords(ctx, "list active",
		`SELECT `+recordColumns+` FROM performance
		 WHERE subject_id = ? AND last_activity >= ? AND last_activity < ?
		 ORDER BY topic`,
		subjectID, model.Timestamp(from).UnixMicro(), model.Timestamp(to).UnixMicro())
}

func (s *Store) Subjects(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT DISTINCT subject_id FROM performance ORDER BY subject_id`)
	if err != nil {
		return nil, mapError("list subjects", err)
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, mapError("list subjects", err)
		}
		out = append(out, id)
	}
	return out, mapError("list subjects", rows.Err())
}

func (s *Store) DeleteSubject(ctx context.Context, subjectID string) (int64, error) {
	if err := repository.ValidateSubject(subjectID); err != nil {
		return 0, err
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, mapError("begin delete subject", err)
	}
	defer func() { _ = tx.Rollback() }()

	res, err := tx.ExecContext(ctx, `DELETE FROM performance WHERE subject_id = ?`, subjectID)
	if err != nil {
		return 0, mapError("delete subject", err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM daily_timeline WHERE subject_id = ?`, subjectID); err != nil {
		return 0, mapError("delete subject timeline", err)
	}
	if err := tx.Commit(); err != nil {
		return 0, mapError("commit delete subject", err)
	}
	return res.RowsAffected()
}

func (s *Store) DeleteTopic(ctx context.Context, topic string) (int64, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM performance WHERE topic = ?`, topic)
	if err != nil {
		return 0, mapError("delete topic", err)
	}
	return res.RowsAffected()
}

func (s *Store) ReplaceTimeline(ctx context.Context, subjectID, date string, entry *model.DailyTimelineEntry) error {
	if err := repository.ValidateSubject(subjectID); err != nil {
		return err
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return mapError("begin replace timeline", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, `DELETE FROM daily_timeline WHERE subject_id = ? AND date = ?`, subjectID, date); err != nil {
		return mapError("delete timeline row", err)
	}
	if entry != nil {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO daily_timeline (`+timelineColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			subjectID, date, i64(entry.QuestionsAnswered), i64(entry.CorrectAnswers), i64(entry.IncorrectAnswers),
			i64(entry.PointsEarned), i64(entry.PointsLost), entry.Accuracy, i64(entry.StudyTimeSeconds),
		); err != nil {
			return mapError("insert timeline row", err)
		}
	}
	return mapError("commit replace timeline", tx.Commit())
}

func (s *Store) Timeline(ctx context.Context, subjectID, fromDate, toDate string) ([]model.DailyTimelineEntry, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+timelineColumns+` FROM daily_timeline
		 WHERE subject_id = ? AND date >= ? AND date <= ?
		 ORDER BY date`,
		subjectID, fromDate, toDate)
	if err != nil {
		return nil, mapError("timeline", err)
	}
	defer rows.Close()

	var out []model.DailyTimelineEntry
	for rows.Next() {
		var e model.DailyTimelineEntry
		if err := rows.Scan(&e.SubjectID, &e.Date, &e.QuestionsAnswered, &e.CorrectAnswers, &e.IncorrectAnswers,
			&e.PointsEarned, &e.PointsLost, &e.Accuracy, &e.StudyTimeSeconds); err != nil {
			return nil, mapError("timeline", err)
		}
		out = append(out, e)
	}
	return out, mapError("timeline", rows.Err())
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}

// Package model contains domain models passed between layers.
package model

import (
	"fmt"
	"strings"
	"time"
)

// PerformanceRecord is the per-(subject, topic) aggregate. Counters only
// change through Apply and Reconcile so Accuracy is always derived.
type PerformanceRecord struct {
	SubjectID        string    `json:"subject_id"`
	Topic            string    `json:"topic"`
	TotalQuestions   uint64    `json:"total_questions"`
	CorrectAnswers   uint64    `json:"correct_answers"`
	IncorrectAnswers uint64    `json:"incorrect_answers"`
	Accuracy         float64   `json:"accuracy"`
	LastActivity     time.Time `json:"last_activity"`
	CreatedAt        time.Time `json:"created_at"`
	UpdatedAt        time.Time `json:"updated_at"`
}

// Key identifies a PerformanceRecord.
type Key struct {
	SubjectID string
	Topic     string
}

// String renders the key as subject/topic.
func (k Key) String() string { return k.SubjectID + "/" + k.Topic }

// Validate rejects blank key parts.
func (k Key) Validate() error {
	if strings.TrimSpace(k.SubjectID) == "" || strings.TrimSpace(k.Topic) == "" {
		return ErrInvalidKey
	}
	return nil
}

// AccuracyOf returns correct/total*100, or 0 when total is 0. Store backends
// compute the same expression so persisted and in-memory values agree.
func AccuracyOf(correct, total uint64) float64 {
	if total == 0 {
		return 0
	}
	return float64(correct) / float64(total) * 100
}

// Timestamp normalizes t to UTC with microsecond precision, the finest
// resolution every backend keeps.
func Timestamp(t time.Time) time.Time {
	return t.UTC().Truncate(time.Microsecond)
}

// NewPerformanceRecord returns a zeroed record created at now.
func NewPerformanceRecord(subjectID, topic string, now time.Time) PerformanceRecord {
	now = Timestamp(now)
	return PerformanceRecord{
		SubjectID:    subjectID,
		Topic:        topic,
		LastActivity: now,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
}

// Key returns the record's key.
func (r PerformanceRecord) Key() Key { return Key{SubjectID: r.SubjectID, Topic: r.Topic} }

// Apply records one answered question.
func (r *PerformanceRecord) Apply(correct bool, now time.Time) {
	r.TotalQuestions++
	if correct {
		r.CorrectAnswers++
	} else {
		r.IncorrectAnswers++
	}
	r.Accuracy = AccuracyOf(r.CorrectAnswers, r.TotalQuestions)
	now = Timestamp(now)
	r.LastActivity = now
	r.UpdatedAt = now
}

// Reconcile overwrites the counters with absolute values. It is not an
// answer, so LastActivity keeps its value and only UpdatedAt moves.
func (r *PerformanceRecord) Reconcile(total, correct uint64, now time.Time) error {
	if correct > total {
		return fmt.Errorf("%w: correct=%d total=%d", ErrInvalidCounts, correct, total)
	}
	r.TotalQuestions = total
	r.CorrectAnswers = correct
	r.IncorrectAnswers = total - correct
	r.Accuracy = AccuracyOf(correct, total)
	r.UpdatedAt = Timestamp(now)
	return nil
}

// Validate checks the key and the counter invariants.
func (r PerformanceRecord) Validate() error {
	if err := r.Key().Validate(); err != nil {
		return err
	}
	if r.CorrectAnswers+r.IncorrectAnswers != r.TotalQuestions {
		return fmt.Errorf("%w: %d + %d != %d", ErrBrokenInvariant, r.CorrectAnswers, r.IncorrectAnswers, r.TotalQuestions)
	}
	if r.Accuracy != AccuracyOf(r.CorrectAnswers, r.TotalQuestions) {
		return fmt.Errorf("%w: accuracy %v", ErrBrokenInvariant, r.Accuracy)
	}
	return nil
}

package service

import (
	"context"
	"fmt"

	"github.com/cenkalti/backoff/v5"
	"github.com/google/uuid"

	"github.com/arxon-dev/topicperf/internal/adapters/repository"
	"github.com/arxon-dev/topicperf/internal/domain/classifier"
	"github.com/arxon-dev/topicperf/internal/domain/model"
	"github.com/arxon-dev/topicperf/pkg/logger"
	"github.com/arxon-dev/topicperf/pkg/metrics"
)

// Classify returns the topic of a raw title. It never fails.
func (s *Service) Classify(title string) string {
	return s.ClassifyExplain(title).Topic
}

// ClassifyExplain reports the topic of a raw title and the keyword behind it.
func (s *Service) ClassifyExplain(title string) classifier.Match {
	m := s.classifier.Explain(title)
	metrics.RecordClassification(m.Topic, string(m.Kind))
	return m
}

// RecordOutcome adds one answered question to (subjectID, topic). Transient
// store failures rerun the whole store operation with exponential backoff;
// any other failure is returned at once.
func (s *Service) RecordOutcome(ctx context.Context, subjectID, topic string, correct bool) (model.PerformanceRecord, error) {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = s.retryInitial
	b.MaxInterval = s.retryMax

	var attempt uint
	rec, err := backoff.Retry(ctx, func() (model.PerformanceRecord, error) {
		attempt++
		rec, err := s.store.RecordOutcome(ctx, subjectID, topic, correct)
		if err == nil {
			return rec, nil
		}
		if !repository.IsRetryable(err) {
			return rec, backoff.Permanent(err)
		}
		if attempt < s.retryMaxTries {
			metrics.RecordRetry()
			s.logger.Debug(ctx, "transient store failure, retrying",
				logger.String("subject", subjectID),
				logger.String("topic", topic),
				logger.Int("attempt", int(attempt)),
				logger.Error(err),
			)
		}
		return rec, err
	}, backoff.WithBackOff(b), backoff.WithMaxTries(s.retryMaxTries))
	if err != nil {
		metrics.RecordFailure(repository.Class(err))
		return model.PerformanceRecord{}, fmt.Errorf("record outcome %s/%s: %w", subjectID, topic, err)
	}
	metrics.RecordOutcome(correct)
	return rec, nil
}

// RecordTitle classifies title and records the outcome under its topic.
func (s *Service) RecordTitle(ctx context.Context, subjectID, title string, correct bool) (model.PerformanceRecord, error) {
	return s.RecordOutcome(ctx, subjectID, s.Classify(title), correct)
}

// Ingest validates o and queues it for the workers. An empty ID gets a
// fresh one; an ID seen before is rejected with ErrDuplicate.
func (s *Service) Ingest(ctx context.Context, o model.Outcome) (model.Outcome, error) {
	if err := o.Validate(); err != nil {
		return o, fmt.Errorf("%w: %w", repository.ErrInvalid, err)
	}
	if o.ID == "" {
		o.ID = uuid.NewString()
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	if !s.started {
		return o, ErrNotStarted
	}

	if s.deduper.SeenAndRecord(ctx, o.ID) {
		metrics.RecordIngestDuplicate()
		return o, ErrDuplicate
	}
	if !s.eventQueue.Enqueue(ctx, o) {
		// Let the sender retry the same id later.
		s.deduper.Unrecord(ctx, o.ID)
		return o, ErrBackpressure
	}
	return o, nil
}

// BulkReconcile overwrites (subjectID, topic) with absolute counts.
func (s *Service) BulkReconcile(ctx context.Context, subjectID, topic string, total, correct uint64) (model.PerformanceRecord, error) {
	rec, err := s.store.BulkReconcile(ctx, subjectID, topic, total, correct)
	if err != nil {
		metrics.RecordFailure(repository.Class(err))
		return model.PerformanceRecord{}, err
	}
	metrics.RecordReconcile()
	return rec, nil
}

// GetPerformance returns the record of (subjectID, topic). An unseen key
// yields a zeroed record for that key with found=false.
func (s *Service) GetPerformance(ctx context.Context, subjectID, topic string) (model.PerformanceRecord, bool, error) {
	rec, found, err := s.store.GetPerformance(ctx, subjectID, topic)
	if err != nil {
		return model.PerformanceRecord{}, false, err
	}
	if !found {
		rec = model.PerformanceRecord{SubjectID: subjectID, Topic: topic}
	}
	return rec, found, nil
}

// ListPerformance returns every record of a subject ordered by topic.
func (s *Service) ListPerformance(ctx context.Context, subjectID string) ([]model.PerformanceRecord, error) {
	if err := repository.ValidateSubject(subjectID); err != nil {
		return nil, err
	}
	return s.store.ListBySubject(ctx, subjectID)
}

// ResetSubject deletes every record and timeline row of a subject.
func (s *Service) ResetSubject(ctx context.Context, subjectID string) (int64, error) {
	n, err := s.store.DeleteSubject(ctx, subjectID)
	if err != nil {
		return 0, err
	}
	s.logger.Info(ctx, "subject reset", logger.String("subject", subjectID), logger.Int("records", int(n)))
	return n, nil
}

// PruneTopic deletes every record carrying topic.
func (s *Service) PruneTopic(ctx context.Context, topic string) (int64, error) {
	if topic == "" {
		return 0, fmt.Errorf("%w: topic must not be empty", repository.ErrInvalid)
	}
	n, err := s.store.DeleteTopic(ctx, topic)
	if err != nil {
		return 0, err
	}
	s.logger.Info(ctx, "topic pruned", logger.String("topic", topic), logger.Int("records", int(n)))
	return n, nil
}

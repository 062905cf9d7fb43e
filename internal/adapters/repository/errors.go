package repository

import (
	"errors"
	"fmt"
	"strings"

	"github.com/arxon-dev/topicperf/internal/domain/model"
)

// Error classes. Backends wrap driver errors with one of these so callers can
// decide with errors.Is.
var (
	// ErrNotFound is only returned where a missing row is exceptional;
	// GetPerformance reports absence with found=false instead.
	ErrNotFound = errors.New("performance record not found")
	// ErrInvalid marks bad arguments: blank keys, correct > total.
	ErrInvalid = errors.New("invalid store request")
	// ErrTransient marks failures worth retrying: busy, locked, deadlock,
	// serialization failure, lock timeout, dropped connection.
	ErrTransient = errors.New("transient store failure")
	// ErrIntegrity marks constraint violations, a programming error that
	// must not be retried.
	ErrIntegrity = errors.New("store integrity violation")
	// ErrClosed is returned after Close.
	ErrClosed = errors.New("store closed")
)

// Error class names used in logs and metrics.
const (
	ClassTransient = "transient"
	ClassIntegrity = "integrity"
	ClassInvalid   = "invalid"
	ClassOther     = "other"
)

// IsRetryable reports whether err is a transient store failure.
func IsRetryable(err error) bool {
	return errors.Is(err, ErrTransient)
}

// Class returns the error class name of err.
func Class(err error) string {
	switch {
	case errors.Is(err, ErrTransient):
		return ClassTransient
	case errors.Is(err, ErrIntegrity):
		return ClassIntegrity
	case errors.Is(err, ErrInvalid):
		return ClassInvalid
	default:
		return ClassOther
	}
}

// ValidateKey rejects blank subjects or topics with ErrInvalid.
func ValidateKey(subjectID, topic string) error {
	if err := (model.Key{SubjectID: subjectID, Topic: topic}).Validate(); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalid, err)
	}
	return nil
}

// ValidateCounts rejects correct > total with ErrInvalid.
func ValidateCounts(total, correct uint64) error {
	if correct > total {
		return fmt.Errorf("%w: %w: correct=%d total=%d", ErrInvalid, model.ErrInvalidCounts, correct, total)
	}
	return nil
}

// ValidateSubject rejects a blank subject with ErrInvalid.
func ValidateSubject(subjectID string) error {
	if strings.TrimSpace(subjectID) == "" {
		return fmt.Errorf("%w: subject must not be empty", ErrInvalid)
	}
	return nil
}

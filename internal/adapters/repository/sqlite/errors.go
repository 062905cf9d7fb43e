package sqlite

import (
	"errors"
	"fmt"

	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"

	"github.com/arxon-dev/topicperf/internal/adapters/repository"
)

// mapError wraps driver errors with the repository error class they belong to.
func mapError(op string, err error) error {
	if err == nil {
		return nil
	}
	var se *sqlite.Error
	if errors.As(err, &se) {
		switch se.Code() & 0xff {
		case sqlite3.SQLITE_BUSY, sqlite3.SQLITE_LOCKED:
			return fmt.Errorf("%w: %s: %w", repository.ErrTransient, op, err)
		case sqlite3.SQLITE_CONSTRAINT:
			return fmt.Errorf("%w: %s: %w", repository.ErrIntegrity, op, err)
		}
	}
	return fmt.Errorf("%s: %w", op, err)
}

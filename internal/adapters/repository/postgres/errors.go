package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5/pgconn"

	"github.com/arxon-dev/topicperf/internal/adapters/repository"
)

// mapError wraps driver errors with the repository error class they belong to.
func mapError(op string, err error) error {
	if err == nil {
		return nil
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch strings.TrimSpace(pgErr.Code) {
		case "23505", "23514", "23502": // unique, check, not null
			return fmt.Errorf("%w: %s: %w", repository.ErrIntegrity, op, err)
		case "40001", "40P01", "55P03", "57014": // serialization, deadlock, lock not available, query canceled
			return fmt.Errorf("%w: %s: %w", repository.ErrTransient, op, err)
		}
		return fmt.Errorf("%s: %w", op, err)
	}
	if errors.Is(err, context.DeadlineExceeded) || pgconn.Timeout(err) || pgconn.SafeToRetry(err) {
		return fmt.Errorf("%w: %s: %w", repository.ErrTransient, op, err)
	}
	return fmt.Errorf("%s: %w", op, err)
}

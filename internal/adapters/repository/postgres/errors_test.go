package postgres

import (
	"context"
	"errors"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
	. "github.com/smartystreets/goconvey/convey"

	"github.com/arxon-dev/topicperf/internal/adapters/repository"
)

func TestMapError(t *testing.T) {
	Convey("Given driver errors", t, func() {
		Convey("constraint violations are integrity errors", func() {
			for _, code := range []string{"23505", "23514", "23502"} {
				err := mapError("op", &pgconn.PgError{Code: code})
				So(errors.Is(err, repository.ErrIntegrity), ShouldBeTrue)
				So(repository.IsRetryable(err), ShouldBeFalse)
			}
		})

		Convey("serialization, deadlock and lock timeouts are transient", func() {
			for _, code := range []string{"40001", "40P01", "55P03", "57014"} {
				So(repository.IsRetryable(mapError("op", &pgconn.PgError{Code: code})), ShouldBeTrue)
			}
		})

		Convey("deadline exceeded is transient", func() {
			So(repository.IsRetryable(mapError("op", context.DeadlineExceeded)), ShouldBeTrue)
		})

		Convey("anything else keeps its cause unclassified", func() {
			cause := errors.New("boom")
			err := mapError("op", cause)
			So(errors.Is(err, cause), ShouldBeTrue)
			So(repository.Class(err), ShouldEqual, repository.ClassOther)
			So(mapError("op", nil), ShouldBeNil)
		})
	})
}

func TestAdvisoryKey(t *testing.T) {
	Convey("advisory keys are stable per subject and differ across subjects", t, func() {
		So(advisoryKey64(lockNamespace, "user1"), ShouldEqual, advisoryKey64(lockNamespace, "user1"))
		So(advisoryKey64(lockNamespace, "user1"), ShouldNotEqual, advisoryKey64(lockNamespace, "user2"))
	})
}

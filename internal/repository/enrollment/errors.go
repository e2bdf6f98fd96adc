package enrollment

import (
	"context"
	"database/sql/driver"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgconn"

	enrollmentdomain "gym-batches-go/internal/domain/enrollment"
)

const (
	sqlStateUniqueViolation = "23505"
	sqlStateCheckViolation  = "23514"

	memberEmailConstraint     = "members_email_key"
	enrollmentMonthConstraint = "enrollments_member_month_key"
	batchCapacityConstraint   = "batches_capacity_check"
)

// translateError maps driver failures onto domain errors. Domain errors and
// unrecognised failures pass through unchanged.
func translateError(err error) error {
	if err == nil {
		return nil
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch {
		case pgErr.Code == sqlStateUniqueViolation && pgErr.ConstraintName == memberEmailConstraint:
			return fmt.Errorf("%w: %s", enrollmentdomain.ErrEmailTaken, pgErr.Message)
		case pgErr.Code == sqlStateUniqueViolation && pgErr.ConstraintName == enrollmentMonthConstraint:
			return fmt.Errorf("%w: %s", enrollmentdomain.ErrDuplicateEnrollment, pgErr.Message)
		case pgErr.Code == sqlStateCheckViolation && pgErr.ConstraintName == batchCapacityConstraint:
			return fmt.Errorf("%w: %s", enrollmentdomain.ErrBatchFull, pgErr.Message)
		}
		return err
	}

	var connectErr *pgconn.ConnectError
	if errors.Is(err, context.DeadlineExceeded) ||
		errors.Is(err, context.Canceled) ||
		errors.Is(err, driver.ErrBadConn) ||
		errors.As(err, &connectErr) ||
		pgconn.Timeout(err) {
		return fmt.Errorf("%w: %v", enrollmentdomain.ErrStoreUnavailable, err)
	}

	return err
}

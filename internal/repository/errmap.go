package repository

import (
	"errors"

	"hospicaja/internal/apierror"

	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/gorm"
)

// Postgres SQLSTATEs surfaced as the retryable kind so callers can decide to
// retry. The core never retries on its own.
const (
	pgLockNotAvailable  = "55P03"
	pgSerializationFail = "40001"
	pgDeadlockDetected  = "40P01"
)

// MapError translates storage errors into the domain taxonomy. notFoundMsg
// is used when the row does not exist; duplicate-key violations become
// conflicts (e.g. the partial unique index guarding one open caja per
// cashier), transient lock/serialization failures become retryable.
func MapError(err error, notFoundMsg, conflictMsg string) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return apierror.NotFound("%s", notFoundMsg)
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return apierror.Conflict("%s", conflictMsg)
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case "23505":
			return apierror.Conflict("%s", conflictMsg)
		case pgLockNotAvailable, pgSerializationFail, pgDeadlockDetected:
			return apierror.Retryable("conflicto transitorio de bloqueo — reintente la operación")
		}
	}
	return err
}

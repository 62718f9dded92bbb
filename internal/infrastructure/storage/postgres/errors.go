package postgres

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5/pgconn"

	"medistock/internal/core/apperror"
)

// PostgreSQL error codes this layer cares about.
const (
	codeUniqueViolation      = "23505"
	codeForeignKeyViolation  = "23503"
	codeSerializationFailure = "40001"
	codeDeadlockDetected     = "40P01"
	codeQueryCanceled        = "57014"
	codeTooManyConnections   = "53300"
)

// TranslateError maps low-level pgx/pgconn failures to domain error kinds so
// callers never see driver errors. AppErrors pass through unchanged; unique
// violations are left to the repositories, which know which constraint means
// what.
func TranslateError(err error) error {
	if err == nil {
		return nil
	}
	if apperror.IsAppError(err) {
		return err
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return apperror.NewStorageUnavailable(err)
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case codeSerializationFailure, codeDeadlockDetected:
			return apperror.NewConcurrentModification("transaction", pgErr.ConstraintName).WithCause(err)
		case codeQueryCanceled, codeTooManyConnections:
			return apperror.NewStorageUnavailable(err)
		}
	}

	var netErr interface{ Timeout() bool }
	if errors.As(err, &netErr) && netErr.Timeout() {
		return apperror.NewStorageUnavailable(err)
	}
	if pgconn.SafeToRetry(err) {
		return apperror.NewStorageUnavailable(err)
	}

	return err
}

// IsUniqueViolation reports whether err is a unique constraint violation,
// optionally restricted to one constraint name.
func IsUniqueViolation(err error, constraint string) bool {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) || pgErr.Code != codeUniqueViolation {
		return false
	}
	return constraint == "" || pgErr.ConstraintName == constraint
}

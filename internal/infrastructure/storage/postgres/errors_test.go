package postgres

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"medistock/internal/core/apperror"
)

func TestTranslateError_SerializationFailure(t *testing.T) {
	for _, code := range []string{codeSerializationFailure, codeDeadlockDetected} {
		err := TranslateError(&pgconn.PgError{Code: code})
		require.Error(t, err)
		assert.True(t, apperror.IsCode(err, apperror.CodeConcurrentModification))
		assert.True(t, apperror.IsRetryable(err))
	}
}

func TestTranslateError_Timeouts(t *testing.T) {
	err := TranslateError(&pgconn.PgError{Code: codeQueryCanceled})
	assert.True(t, apperror.IsCode(err, apperror.CodeStorageUnavailable))

	err = TranslateError(fmt.Errorf("query: %w", context.DeadlineExceeded))
	assert.True(t, apperror.IsCode(err, apperror.CodeStorageUnavailable))
	assert.True(t, apperror.IsRetryable(err))
}

func TestTranslateError_Passthrough(t *testing.T) {
	assert.NoError(t, TranslateError(nil))

	appErr := apperror.NewInvalidQuantity(-1)
	assert.Equal(t, error(appErr), TranslateError(appErr))

	plain := errors.New("something else")
	assert.Equal(t, plain, TranslateError(plain))
}

func TestIsUniqueViolation(t *testing.T) {
	err := &pgconn.PgError{Code: codeUniqueViolation, ConstraintName: "batches_medicine_id_batch_name_active_key"}

	assert.True(t, IsUniqueViolation(err, ""))
	assert.True(t, IsUniqueViolation(err, "batches_medicine_id_batch_name_active_key"))
	assert.False(t, IsUniqueViolation(err, "other_constraint"))
	assert.False(t, IsUniqueViolation(errors.New("plain"), ""))
	assert.False(t, IsUniqueViolation(&pgconn.PgError{Code: codeForeignKeyViolation}, ""))
}

func TestTranslateError_WrappedPgError(t *testing.T) {
	inner := &pgconn.PgError{Code: codeSerializationFailure}
	err := TranslateError(fmt.Errorf("execute decrement: %w", inner))
	assert.True(t, apperror.IsCode(err, apperror.CodeConcurrentModification))
}

package medicine_repo

import (
	"fmt"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"medistock/internal/core/apperror"
)

func TestTranslateCreateError_DuplicateCode(t *testing.T) {
	pgErr := &pgconn.PgError{
		Code:           "23505",
		ConstraintName: "medicines_code_key",
	}

	err := translateCreateError(pgErr, "AMOX-500")
	assert.True(t, apperror.IsCode(err, apperror.CodeDuplicateMedicineCode))

	appErr, ok := apperror.AsAppError(err)
	require.True(t, ok)
	assert.Equal(t, "AMOX-500", appErr.Details["code"])
}

func TestTranslateCreateError_WrappedDuplicateCode(t *testing.T) {
	pgErr := &pgconn.PgError{
		Code:           "23505",
		ConstraintName: "medicines_code_key",
	}
	wrapped := fmt.Errorf("exec: %w", pgErr)

	err := translateCreateError(wrapped, "IBU-200")
	assert.True(t, apperror.IsCode(err, apperror.CodeDuplicateMedicineCode))
}

func TestTranslateCreateError_OtherErrorsTyped(t *testing.T) {
	// Serialization failures must still surface as typed errors, never as
	// raw driver errors.
	pgErr := &pgconn.PgError{Code: "40001"}

	err := translateCreateError(pgErr, "NACL-09")
	assert.True(t, apperror.IsCode(err, apperror.CodeConcurrentModification))
	assert.False(t, apperror.IsCode(err, apperror.CodeDuplicateMedicineCode))
}

package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"medistock/internal/core/apperror"
	"medistock/internal/core/id"
)

// IdempotencyStatus represents the state of an idempotent stock operation.
type IdempotencyStatus string

const (
	IdempotencyStatusPending   IdempotencyStatus = "pending"
	IdempotencyStatusCompleted IdempotencyStatus = "completed"
)

// staleAfter is how long a pending key may sit before it is assumed to
// belong to a crashed request and gets reclaimed.
const staleAfter = time.Minute

// IdempotencyStore persists stock operation results keyed by a
// caller-supplied idempotency key. It implements the stock service's
// IdempotencyStore interface.
//
// Begin runs outside the operation transaction so a pending key is visible
// to concurrent calls immediately. Complete runs inside the operation
// transaction and its update commits together with the operation's writes.
// Every acquisition carries a fence token; Complete and Release are guarded
// by it, so a holder whose stale key was reclaimed updates zero rows and
// its transaction rolls back instead of committing a second result.
type IdempotencyStore struct {
	txManager *TxManager
	ttl       time.Duration
}

// NewIdempotencyStore creates an idempotency store. ttl bounds how long
// completed results are replayable.
func NewIdempotencyStore(txManager *TxManager, ttl time.Duration) *IdempotencyStore {
	return &IdempotencyStore{txManager: txManager, ttl: ttl}
}

// Begin acquires the key or returns the stored result of a completed run.
// Returns (nil, token, nil) when freshly acquired, (result, "", nil) on
// replay. Reusing a key with a different request hash fails with
// IDEMPOTENCY mismatch; a key still held by an in-flight request fails
// with IDEMPOTENCY conflict.
func (s *IdempotencyStore) Begin(ctx context.Context, key, requestHash string) ([]byte, string, error) {
	now := time.Now().UTC()
	token := id.New().String()
	q := s.txManager.GetQuerier(ctx)

	tag, err := q.Exec(ctx, `
		INSERT INTO stock_idempotency (idempotency_key, request_hash, status, fence_token, created_at, updated_at, expires_at)
		VALUES ($1, $2, $3, $4, $5, $5, $6)
		ON CONFLICT (idempotency_key) DO NOTHING
	`, key, requestHash, IdempotencyStatusPending, token, now, now.Add(s.ttl))
	if err != nil {
		return nil, "", TranslateError(fmt.Errorf("acquire idempotency key: %w", err))
	}
	if tag.RowsAffected() == 1 {
		return nil, token, nil
	}

	var (
		storedHash string
		status     IdempotencyStatus
		result     []byte
		updatedAt  time.Time
	)
	err = q.QueryRow(ctx, `
		SELECT request_hash, status, result, updated_at
		FROM stock_idempotency
		WHERE idempotency_key = $1
	`, key).Scan(&storedHash, &status, &result, &updatedAt)
	if err == pgx.ErrNoRows {
		// Deleted between insert and select; retry acquires it.
		return nil, "", apperror.NewIdempotencyConflict(key)
	}
	if err != nil {
		return nil, "", TranslateError(fmt.Errorf("read idempotency key: %w", err))
	}

	if storedHash != requestHash {
		return nil, "", apperror.NewIdempotencyMismatch(key).
			WithDetail("stored_request_hash", storedHash).
			WithDetail("provided_request_hash", requestHash)
	}

	if status == IdempotencyStatusCompleted {
		return result, "", nil
	}

	// Pending: reclaim if the holder looks crashed, otherwise refuse.
	// Rotating the fence token invalidates the previous holder's Complete.
	if now.Sub(updatedAt) > staleAfter {
		tag, err := q.Exec(ctx, `
			UPDATE stock_idempotency
			SET fence_token = $1, updated_at = $2
			WHERE idempotency_key = $3 AND status = $4 AND updated_at < $5
		`, token, now, key, IdempotencyStatusPending, now.Add(-staleAfter))
		if err != nil {
			return nil, "", TranslateError(fmt.Errorf("reclaim stale key: %w", err))
		}
		if tag.RowsAffected() == 1 {
			return nil, token, nil
		}
	}
	return nil, "", apperror.NewIdempotencyConflict(key)
}

// Complete stores the operation result against the key. Called inside the
// operation transaction: the status flip commits atomically with the
// operation's writes. Fails with IDEMPOTENCY conflict when the key was
// reclaimed since Begin, which rolls the enclosing transaction back.
func (s *IdempotencyStore) Complete(ctx context.Context, key, token string, result []byte) error {
	tag, err := s.txManager.GetQuerier(ctx).Exec(ctx, `
		UPDATE stock_idempotency
		SET status = $1, result = $2, updated_at = $3
		WHERE idempotency_key = $4 AND status = $5 AND fence_token = $6
	`, IdempotencyStatusCompleted, result, time.Now().UTC(), key, IdempotencyStatusPending, token)
	if err != nil {
		return TranslateError(fmt.Errorf("complete idempotency key: %w", err))
	}
	if tag.RowsAffected() == 0 {
		return apperror.NewIdempotencyConflict(key).
			WithDetail("reason", "key reclaimed by a concurrent retry")
	}
	return nil
}

// Release drops a pending key after a failed operation so the caller can
// retry with the same key. Guarded by the fence token: a reclaimed or
// completed key is left alone.
func (s *IdempotencyStore) Release(ctx context.Context, key, token string) error {
	_, err := s.txManager.GetQuerier(ctx).Exec(ctx, `
		DELETE FROM stock_idempotency
		WHERE idempotency_key = $1 AND status = $2 AND fence_token = $3
	`, key, IdempotencyStatusPending, token)
	if err != nil {
		return TranslateError(fmt.Errorf("release idempotency key: %w", err))
	}
	return nil
}

// CleanupExpired removes expired idempotency records. Run periodically by
// the maintenance worker.
func (s *IdempotencyStore) CleanupExpired(ctx context.Context) (int64, error) {
	result, err := s.txManager.GetQuerier(ctx).Exec(ctx, `
		DELETE FROM stock_idempotency WHERE expires_at < $1
	`, time.Now().UTC())
	if err != nil {
		return 0, TranslateError(err)
	}
	return result.RowsAffected(), nil
}

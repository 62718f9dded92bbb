// Package batch_repo provides the PostgreSQL implementation of the batch
// store.
package batch_repo

import (
	"context"
	"errors"
	"fmt"

	"github.com/Masterminds/squirrel"
	"github.com/georgysavva/scany/v2/pgxscan"
	"github.com/jackc/pgx/v5"

	"medistock/internal/core/apperror"
	"medistock/internal/core/id"
	"medistock/internal/domain/batch"
	"medistock/internal/infrastructure/storage/postgres"
)

const batchesTable = "batches"

// batchNameUniqueConstraint is the partial unique index on
// (medicine_id, batch_name) WHERE NOT is_deleted.
const batchNameUniqueConstraint = "batches_medicine_id_batch_name_active_key"

var batchColumns = []string{
	"id", "medicine_id", "batch_name", "quantity", "initial_quantity",
	"expiry_date", "is_deleted", "created_at",
}

// Compile-time check that BatchRepo implements batch.Repository.
var _ batch.Repository = (*BatchRepo)(nil)

// BatchRepo implements batch.Repository.
type BatchRepo struct {
	txManager *postgres.TxManager
	builder   squirrel.StatementBuilderType
}

// NewBatchRepo creates a new batch repository.
func NewBatchRepo(txManager *postgres.TxManager) *BatchRepo {
	return &BatchRepo{
		txManager: txManager,
		builder:   squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar),
	}
}

// Create inserts a new batch row.
func (r *BatchRepo) Create(ctx context.Context, b *batch.Batch) error {
	q := r.builder.Insert(batchesTable).
		Columns(batchColumns...).
		Values(
			b.ID, b.MedicineID, b.BatchName, b.Quantity, b.InitialQuantity,
			b.ExpiryDate, b.IsDeleted, b.CreatedAt,
		)

	sql, args, err := q.ToSql()
	if err != nil {
		return fmt.Errorf("build insert batch: %w", err)
	}

	_, err = r.txManager.GetQuerier(ctx).Exec(ctx, sql, args...)
	if err != nil {
		if postgres.IsUniqueViolation(err, batchNameUniqueConstraint) {
			return apperror.NewDuplicateBatchName(b.MedicineID.String(), b.BatchName).WithCause(err)
		}
		return postgres.TranslateError(fmt.Errorf("insert batch: %w", err))
	}

	return nil
}

// GetByID retrieves a batch by ID, including retired ones.
func (r *BatchRepo) GetByID(ctx context.Context, batchID id.ID) (*batch.Batch, error) {
	q := r.builder.Select(batchColumns...).
		From(batchesTable).
		Where(squirrel.Eq{"id": batchID})

	sql, args, err := q.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build select batch: %w", err)
	}

	var b batch.Batch
	err = pgxscan.Get(ctx, r.txManager.GetQuerier(ctx), &b, sql, args...)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperror.NewNotFound("batch", batchID.String())
		}
		return nil, postgres.TranslateError(fmt.Errorf("select batch: %w", err))
	}

	return &b, nil
}

// FindConsumable returns non-retired batches of the medicine ordered by
// expiry date ascending, truncated to limit. Zero-quantity rows are
// returned; the allocator skips them.
func (r *BatchRepo) FindConsumable(ctx context.Context, medicineID id.ID, limit int) ([]*batch.Batch, error) {
	sql, args, err := r.findConsumableQuery(medicineID, limit).ToSql()
	if err != nil {
		return nil, fmt.Errorf("build select consumable: %w", err)
	}

	var batches []*batch.Batch
	err = pgxscan.Select(ctx, r.txManager.GetQuerier(ctx), &batches, sql, args...)
	if err != nil {
		return nil, postgres.TranslateError(fmt.Errorf("select consumable batches: %w", err))
	}

	return batches, nil
}

// DecrementQuantity applies quantity = quantity - amount as one conditional
// update. The quantity >= amount guard turns a lost-update race into a hard
// InsufficientBatchStock failure instead of negative stock.
func (r *BatchRepo) DecrementQuantity(ctx context.Context, batchID id.ID, amount int64) error {
	if amount <= 0 {
		return apperror.NewInvalidQuantity(amount)
	}

	sql, args, err := r.decrementQuery(batchID, amount).ToSql()
	if err != nil {
		return fmt.Errorf("build decrement: %w", err)
	}

	result, err := r.txManager.GetQuerier(ctx).Exec(ctx, sql, args...)
	if err != nil {
		return postgres.TranslateError(fmt.Errorf("execute decrement: %w", err))
	}

	if result.RowsAffected() == 0 {
		return r.decrementFailure(ctx, batchID, amount)
	}

	return nil
}

// DecrementQuantities pipelines the guarded updates in one round-trip and
// verifies each one hit a row.
func (r *BatchRepo) DecrementQuantities(ctx context.Context, decs []batch.Decrement) error {
	if len(decs) == 0 {
		return nil
	}
	if len(decs) == 1 {
		return r.DecrementQuantity(ctx, decs[0].BatchID, decs[0].Amount)
	}

	queries := make([]postgres.BatchQuery, 0, len(decs))
	for _, d := range decs {
		if d.Amount <= 0 {
			return apperror.NewInvalidQuantity(d.Amount)
		}
		sql, args, err := r.decrementQuery(d.BatchID, d.Amount).ToSql()
		if err != nil {
			return fmt.Errorf("build decrement: %w", err)
		}
		queries = append(queries, postgres.BatchQuery{SQL: sql, Args: args})
	}

	affected, err := postgres.NewBatchExecutor(r.txManager).ExecBatch(ctx, queries)
	if err != nil {
		return err
	}
	for i, n := range affected {
		if n == 0 {
			return r.decrementFailure(ctx, decs[i].BatchID, decs[i].Amount)
		}
	}
	return nil
}

// decrementFailure distinguishes a missing/retired batch from one with too
// little stock after a guarded update hit no rows.
func (r *BatchRepo) decrementFailure(ctx context.Context, batchID id.ID, amount int64) error {
	b, err := r.GetByID(ctx, batchID)
	if err != nil {
		return err
	}
	if b.IsDeleted {
		return apperror.NewNotFound("batch", batchID.String())
	}
	return apperror.NewInsufficientBatchStock(batchID.String(), amount).
		WithDetail("available", b.Quantity)
}

// Retire sets is_deleted without touching quantity: the stored value stays
// as a historical snapshot.
func (r *BatchRepo) Retire(ctx context.Context, batchID id.ID) error {
	q := r.builder.Update(batchesTable).
		Set("is_deleted", true).
		Where(squirrel.Eq{"id": batchID})

	sql, args, err := q.ToSql()
	if err != nil {
		return fmt.Errorf("build retire: %w", err)
	}

	result, err := r.txManager.GetQuerier(ctx).Exec(ctx, sql, args...)
	if err != nil {
		return postgres.TranslateError(fmt.Errorf("execute retire: %w", err))
	}
	if result.RowsAffected() == 0 {
		return apperror.NewNotFound("batch", batchID.String())
	}

	return nil
}

// HardDelete removes the row entirely. Ledger entries keep their
// denormalized batch_name and medicine_id; the FK is ON DELETE SET NULL.
func (r *BatchRepo) HardDelete(ctx context.Context, batchID id.ID) error {
	q := r.builder.Delete(batchesTable).
		Where(squirrel.Eq{"id": batchID})

	sql, args, err := q.ToSql()
	if err != nil {
		return fmt.Errorf("build delete batch: %w", err)
	}

	result, err := r.txManager.GetQuerier(ctx).Exec(ctx, sql, args...)
	if err != nil {
		return postgres.TranslateError(fmt.Errorf("execute delete batch: %w", err))
	}
	if result.RowsAffected() == 0 {
		return apperror.NewNotFound("batch", batchID.String())
	}

	return nil
}

func (r *BatchRepo) findConsumableQuery(medicineID id.ID, limit int) squirrel.SelectBuilder {
	return r.builder.Select(batchColumns...).
		From(batchesTable).
		Where(squirrel.Eq{"medicine_id": medicineID}).
		Where(squirrel.Eq{"is_deleted": false}).
		OrderBy("expiry_date ASC", "created_at ASC").
		Limit(uint64(limit))
}

func (r *BatchRepo) decrementQuery(batchID id.ID, amount int64) squirrel.UpdateBuilder {
	return r.builder.Update(batchesTable).
		Set("quantity", squirrel.Expr("quantity - ?", amount)).
		Where(squirrel.Eq{"id": batchID}).
		Where(squirrel.Eq{"is_deleted": false}).
		Where(squirrel.GtOrEq{"quantity": amount})
}

// ListByMedicine returns batches of the medicine, newest first.
func (r *BatchRepo) ListByMedicine(ctx context.Context, medicineID id.ID, includeRetired bool) ([]*batch.Batch, error) {
	q := r.builder.Select(batchColumns...).
		From(batchesTable).
		Where(squirrel.Eq{"medicine_id": medicineID}).
		OrderBy("created_at DESC")

	if !includeRetired {
		q = q.Where(squirrel.Eq{"is_deleted": false})
	}

	sql, args, err := q.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build list batches: %w", err)
	}

	var batches []*batch.Batch
	err = pgxscan.Select(ctx, r.txManager.GetQuerier(ctx), &batches, sql, args...)
	if err != nil {
		return nil, postgres.TranslateError(fmt.Errorf("list batches: %w", err))
	}

	return batches, nil
}

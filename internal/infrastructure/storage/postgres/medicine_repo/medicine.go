// Package medicine_repo provides the PostgreSQL implementation of the
// medicine reference repository.
package medicine_repo

import (
	"context"
	"errors"
	"fmt"

	"github.com/Masterminds/squirrel"
	"github.com/georgysavva/scany/v2/pgxscan"
	"github.com/jackc/pgx/v5"

	"medistock/internal/core/apperror"
	"medistock/internal/core/id"
	"medistock/internal/domain/medicine"
	"medistock/internal/infrastructure/storage/postgres"
)

const medicinesTable = "medicines"

// codeUniqueConstraint is the unique index on medicines.code.
const codeUniqueConstraint = "medicines_code_key"

var medicineColumns = []string{
	"id", "code", "name", "category_id", "unit_symbol", "unit_factor",
	"deletion_mark", "created_at",
}

// Compile-time check that MedicineRepo implements medicine.Repository.
var _ medicine.Repository = (*MedicineRepo)(nil)

// MedicineRepo implements medicine.Repository.
type MedicineRepo struct {
	txManager *postgres.TxManager
	builder   squirrel.StatementBuilderType
}

// NewMedicineRepo creates a new medicine repository.
func NewMedicineRepo(txManager *postgres.TxManager) *MedicineRepo {
	return &MedicineRepo{
		txManager: txManager,
		builder:   squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar),
	}
}

// Create inserts a new medicine (administrative/seed path).
func (r *MedicineRepo) Create(ctx context.Context, m *medicine.Medicine) error {
	q := r.builder.Insert(medicinesTable).
		Columns(medicineColumns...).
		Values(
			m.ID, m.Code, m.Name, m.CategoryID, m.UnitSymbol, m.UnitFactor,
			m.DeletionMark, m.CreatedAt,
		)

	sql, args, err := q.ToSql()
	if err != nil {
		return fmt.Errorf("build insert medicine: %w", err)
	}

	_, err = r.txManager.GetQuerier(ctx).Exec(ctx, sql, args...)
	if err != nil {
		return translateCreateError(err, m.Code)
	}

	return nil
}

// translateCreateError maps a code collision to its typed error; everything
// else goes through the shared translation.
func translateCreateError(err error, code string) error {
	if postgres.IsUniqueViolation(err, codeUniqueConstraint) {
		return apperror.NewDuplicateMedicineCode(code).WithCause(err)
	}
	return postgres.TranslateError(fmt.Errorf("insert medicine: %w", err))
}

// GetByID retrieves a medicine by ID.
func (r *MedicineRepo) GetByID(ctx context.Context, medicineID id.ID) (*medicine.Medicine, error) {
	return r.getByField(ctx, "id", medicineID)
}

// GetByCode retrieves a medicine by code.
func (r *MedicineRepo) GetByCode(ctx context.Context, code string) (*medicine.Medicine, error) {
	return r.getByField(ctx, "code", code)
}

func (r *MedicineRepo) getByField(ctx context.Context, field string, value any) (*medicine.Medicine, error) {
	q := r.builder.Select(medicineColumns...).
		From(medicinesTable).
		Where(squirrel.Eq{field: value})

	sql, args, err := q.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build select medicine: %w", err)
	}

	var m medicine.Medicine
	err = pgxscan.Get(ctx, r.txManager.GetQuerier(ctx), &m, sql, args...)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperror.NewNotFound("medicine", fmt.Sprintf("%v", value))
		}
		return nil, postgres.TranslateError(fmt.Errorf("select medicine: %w", err))
	}

	return &m, nil
}

// Exists checks whether a non-deleted medicine exists.
func (r *MedicineRepo) Exists(ctx context.Context, medicineID id.ID) (bool, error) {
	q := r.builder.Select("1").
		From(medicinesTable).
		Where(squirrel.Eq{"id": medicineID}).
		Where(squirrel.Eq{"deletion_mark": false})

	sql, args, err := q.ToSql()
	if err != nil {
		return false, fmt.Errorf("build exists: %w", err)
	}

	var exists int
	err = r.txManager.GetQuerier(ctx).QueryRow(ctx, sql, args...).Scan(&exists)
	if errors.Is(err, pgx.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, postgres.TranslateError(fmt.Errorf("exists medicine: %w", err))
	}

	return true, nil
}

// List retrieves medicines ordered by name.
func (r *MedicineRepo) List(ctx context.Context, includeDeleted bool) ([]*medicine.Medicine, error) {
	q := r.builder.Select(medicineColumns...).
		From(medicinesTable).
		OrderBy("name ASC")

	if !includeDeleted {
		q = q.Where(squirrel.Eq{"deletion_mark": false})
	}

	sql, args, err := q.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build list medicines: %w", err)
	}

	var medicines []*medicine.Medicine
	err = pgxscan.Select(ctx, r.txManager.GetQuerier(ctx), &medicines, sql, args...)
	if err != nil {
		return nil, postgres.TranslateError(fmt.Errorf("list medicines: %w", err))
	}

	return medicines, nil
}

// LockForStock takes an exclusive row lock on the medicine, serializing
// stock consumption per medicine for the rest of the transaction.
func (r *MedicineRepo) LockForStock(ctx context.Context, medicineID id.ID) error {
	if r.txManager.GetTx(ctx) == nil {
		return apperror.NewInternal(fmt.Errorf("LockForStock requires transaction context"))
	}

	var locked id.ID
	err := r.txManager.GetQuerier(ctx).QueryRow(ctx,
		`SELECT id FROM medicines WHERE id = $1 AND deletion_mark = false FOR UPDATE`,
		medicineID,
	).Scan(&locked)
	if errors.Is(err, pgx.ErrNoRows) {
		return apperror.NewNotFound("medicine", medicineID.String())
	}
	if err != nil {
		return postgres.TranslateError(fmt.Errorf("lock medicine: %w", err))
	}

	return nil
}

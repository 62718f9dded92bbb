// Package ledger_repo provides the PostgreSQL implementation of the
// append-only stock ledger. The interface and the schema both lack any
// update or delete path for entries.
package ledger_repo

import (
	"context"
	"fmt"

	"github.com/Masterminds/squirrel"
	"github.com/georgysavva/scany/v2/pgxscan"

	"medistock/internal/core/id"
	"medistock/internal/domain/ledger"
	"medistock/internal/infrastructure/storage/postgres"
)

const entriesTable = "ledger_entries"

var entryColumns = []string{
	"id", "batch_id", "batch_name", "medicine_id", "change", "kind",
	"reason", "actor", "subject", "created_at",
}

// Compile-time check that LedgerRepo implements ledger.Repository.
var _ ledger.Repository = (*LedgerRepo)(nil)

// LedgerRepo implements ledger.Repository.
type LedgerRepo struct {
	txManager *postgres.TxManager
	builder   squirrel.StatementBuilderType
}

// NewLedgerRepo creates a new ledger repository.
func NewLedgerRepo(txManager *postgres.TxManager) *LedgerRepo {
	return &LedgerRepo{
		txManager: txManager,
		builder:   squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar),
	}
}

// Append inserts entries in one statement. Entry IDs are generated before
// insert, so a retry after an unknown-outcome failure carries the same IDs
// and ON CONFLICT DO NOTHING keeps the ledger free of duplicate audit rows.
func (r *LedgerRepo) Append(ctx context.Context, entries []ledger.Entry) error {
	if len(entries) == 0 {
		return nil
	}

	for i := range entries {
		if err := entries[i].Validate(ctx); err != nil {
			return err
		}
	}

	q := r.builder.Insert(entriesTable).Columns(entryColumns...)
	for _, e := range entries {
		q = q.Values(
			e.ID, e.BatchID, e.BatchName, e.MedicineID, e.Change, e.Kind,
			e.Reason, e.Actor, e.Subject, e.CreatedAt,
		)
	}
	q = q.Suffix("ON CONFLICT (id) DO NOTHING")

	sql, args, err := q.ToSql()
	if err != nil {
		return fmt.Errorf("build append entries: %w", err)
	}

	_, err = r.txManager.GetQuerier(ctx).Exec(ctx, sql, args...)
	if err != nil {
		return postgres.TranslateError(fmt.Errorf("append entries: %w", err))
	}

	return nil
}

// History returns entries newest-first using keyset pagination on
// (created_at, id): stable under concurrent appends, restartable from the
// returned cursor.
func (r *LedgerRepo) History(ctx context.Context, f ledger.Filter, cursor *ledger.Cursor, limit int) (*ledger.Page, error) {
	sql, args, err := r.historyQuery(f, cursor, limit).ToSql()
	if err != nil {
		return nil, fmt.Errorf("build history: %w", err)
	}

	var entries []ledger.Entry
	err = pgxscan.Select(ctx, r.txManager.GetQuerier(ctx), &entries, sql, args...)
	if err != nil {
		return nil, postgres.TranslateError(fmt.Errorf("select history: %w", err))
	}

	page := &ledger.Page{Entries: entries}
	if len(entries) > limit {
		page.Entries = entries[:limit]
		last := page.Entries[limit-1]
		page.Next = &ledger.Cursor{CreatedAt: last.CreatedAt, ID: last.ID}
	}

	return page, nil
}

func (r *LedgerRepo) historyQuery(f ledger.Filter, cursor *ledger.Cursor, limit int) squirrel.SelectBuilder {
	q := r.builder.Select(entryColumns...).
		From(entriesTable).
		OrderBy("created_at DESC", "id DESC").
		Limit(uint64(limit + 1))

	q = applyFilter(q, f)
	if cursor != nil {
		q = q.Where(squirrel.Expr("(created_at, id) < (?, ?)", cursor.CreatedAt, cursor.ID))
	}
	return q
}

func applyFilter(q squirrel.SelectBuilder, f ledger.Filter) squirrel.SelectBuilder {
	if f.MedicineID != nil {
		q = q.Where(squirrel.Eq{"medicine_id": *f.MedicineID})
	}
	if f.BatchID != nil {
		q = q.Where(squirrel.Eq{"batch_id": *f.BatchID})
	}
	if f.Subject != nil {
		q = q.Where(squirrel.Eq{"subject": *f.Subject})
	}
	if f.Kind != nil {
		q = q.Where(squirrel.Eq{"kind": *f.Kind})
	}
	if f.Actor != "" {
		q = q.Where(squirrel.Eq{"actor": f.Actor})
	}
	if f.From != nil {
		q = q.Where(squirrel.GtOrEq{"created_at": *f.From})
	}
	if f.To != nil {
		q = q.Where(squirrel.Lt{"created_at": *f.To})
	}
	return q
}

// SumChangeByBatch aggregates signed deltas per batch for one medicine.
func (r *LedgerRepo) SumChangeByBatch(ctx context.Context, medicineID id.ID) ([]ledger.BatchSum, error) {
	q := r.builder.Select("batch_id", "COALESCE(SUM(change), 0) AS total").
		From(entriesTable).
		Where(squirrel.Eq{"medicine_id": medicineID}).
		GroupBy("batch_id")

	sql, args, err := q.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build sum by batch: %w", err)
	}

	var sums []ledger.BatchSum
	err = pgxscan.Select(ctx, r.txManager.GetQuerier(ctx), &sums, sql, args...)
	if err != nil {
		return nil, postgres.TranslateError(fmt.Errorf("sum by batch: %w", err))
	}

	return sums, nil
}

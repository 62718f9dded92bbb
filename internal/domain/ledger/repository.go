package ledger

import (
	"context"
	"time"

	"medistock/internal/core/id"
)

// Filter narrows a history query. Zero values mean "no restriction".
type Filter struct {
	MedicineID *id.ID
	BatchID    *id.ID
	Subject    *string
	Kind       *Kind
	Actor      string
	From       *time.Time
	To         *time.Time
}

// Cursor is an opaque keyset position for history pagination.
// Entries are returned newest-first; the cursor points at the last entry
// of the previous page.
type Cursor struct {
	CreatedAt time.Time `json:"createdAt"`
	ID        id.ID     `json:"id"`
}

// Page is one slice of history plus the cursor for the next page.
// Next is nil when the page is the last one.
type Page struct {
	Entries []Entry
	Next    *Cursor
}

// BatchSum is the aggregated ledger delta for one batch.
type BatchSum struct {
	BatchID *id.ID `db:"batch_id"`
	Total   int64  `db:"total"`
}

// Repository persists ledger entries. Append-only: there are no update or
// delete operations by design of the schema, not just this interface.
type Repository interface {
	// Append inserts entries in one statement. Entries whose id already
	// exists are skipped silently, which makes retried appends idempotent.
	Append(ctx context.Context, entries []Entry) error

	// History returns entries newest-first, at most limit rows, starting
	// strictly after the cursor position (or from the top when nil).
	History(ctx context.Context, f Filter, cursor *Cursor, limit int) (*Page, error)

	// SumChangeByBatch aggregates signed changes per batch for one
	// medicine. Used by reconciliation.
	SumChangeByBatch(ctx context.Context, medicineID id.ID) ([]BatchSum, error)
}

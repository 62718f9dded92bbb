package batch

import (
	"context"

	"medistock/internal/core/id"
)

// Decrement is one conditional quantity reduction against a batch.
type Decrement struct {
	BatchID id.ID
	Amount  int64
}

// Repository defines durable operations over batch rows.
//
// Conditional decrements are the only quantity mutation the store exposes:
// each one is a guarded update so that a lost-update race degrades into a
// hard InsufficientBatchStock failure instead of silent negative stock.
type Repository interface {
	// Create inserts a new batch. Fails with DuplicateBatchName if
	// (medicine_id, batch_name) already exists among non-deleted batches.
	Create(ctx context.Context, b *Batch) error

	// GetByID retrieves a batch by ID (including retired ones).
	GetByID(ctx context.Context, batchID id.ID) (*Batch, error)

	// FindConsumable returns non-deleted batches for the medicine ordered
	// ascending by expiry date (soonest first), truncated to limit.
	// Batches with zero quantity may still be returned; the allocator
	// skips them.
	FindConsumable(ctx context.Context, medicineID id.ID, limit int) ([]*Batch, error)

	// DecrementQuantity atomically applies quantity = quantity - amount.
	// Fails with InsufficientBatchStock if the pre-update quantity is less
	// than amount, and with NotFound if the batch is absent or retired.
	DecrementQuantity(ctx context.Context, batchID id.ID, amount int64) error

	// DecrementQuantities applies several conditional decrements, one per
	// batch. Per-line semantics match DecrementQuantity; the first failing
	// line aborts with its error.
	DecrementQuantities(ctx context.Context, decs []Decrement) error

	// Retire sets is_deleted without altering quantity.
	// Fails with BatchNotFound if absent.
	Retire(ctx context.Context, batchID id.ID) error

	// HardDelete removes the row entirely (administrative cleanup only;
	// ledger entries survive via denormalized fields).
	HardDelete(ctx context.Context, batchID id.ID) error

	// ListByMedicine returns all batches of a medicine, newest first,
	// optionally including retired ones. Used by reconciliation.
	ListByMedicine(ctx context.Context, medicineID id.ID, includeRetired bool) ([]*Batch, error)
}

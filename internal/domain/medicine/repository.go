package medicine

import (
	"context"

	"medistock/internal/core/id"
)

// Repository defines the interface for Medicine persistence.
type Repository interface {
	// Create inserts a new medicine (administrative/seed path).
	Create(ctx context.Context, m *Medicine) error

	// GetByID retrieves a medicine by ID.
	GetByID(ctx context.Context, medicineID id.ID) (*Medicine, error)

	// GetByCode retrieves a medicine by code.
	GetByCode(ctx context.Context, code string) (*Medicine, error)

	// Exists checks whether a non-deleted medicine exists.
	Exists(ctx context.Context, medicineID id.ID) (bool, error)

	// List retrieves medicines, optionally including soft-deleted ones.
	List(ctx context.Context, includeDeleted bool) ([]*Medicine, error)

	// LockForStock acquires an exclusive row lock on the medicine for the
	// duration of the current transaction. The stock service takes this
	// lock before planning a consumption so that concurrent consumes of
	// the same medicine serialize. Must be called inside a transaction.
	LockForStock(ctx context.Context, medicineID id.ID) error
}

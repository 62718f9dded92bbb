// Package batch provides the batch store: the durable record of each
// physically distinct lot of a medicine.
package batch

import (
	"context"
	"time"

	"medistock/internal/core/apperror"
	"medistock/internal/core/id"
)

// Batch is one received lot of a medicine.
//
// Quantity and IsDeleted are owned exclusively by the stock service; no
// other component writes them. Quantity never goes negative: every change
// is the result of exactly one stock operation.
type Batch struct {
	ID         id.ID  `db:"id" json:"id"`
	MedicineID id.ID  `db:"medicine_id" json:"medicineId"`
	BatchName  string `db:"batch_name" json:"batchName"`

	// Quantity is the current unit count. For retired batches this is a
	// point-in-time snapshot, kept for historical inspection; availability
	// queries must filter on IsDeleted instead of trusting it.
	Quantity int64 `db:"quantity" json:"quantity"`

	// InitialQuantity is the quantity at creation, kept for drift diagnosis
	// during reconciliation. The opening RECEIVED ledger entry carries the
	// same value, so the ledger alone accounts for the full balance.
	InitialQuantity int64 `db:"initial_quantity" json:"initialQuantity"`

	ExpiryDate time.Time `db:"expiry_date" json:"expiryDate"`
	IsDeleted  bool      `db:"is_deleted" json:"isDeleted"`
	CreatedAt  time.Time `db:"created_at" json:"createdAt"`
}

// New creates a new batch with generated ID.
func New(medicineID id.ID, batchName string, quantity int64, expiryDate time.Time) *Batch {
	return &Batch{
		ID:              id.New(),
		MedicineID:      medicineID,
		BatchName:       batchName,
		Quantity:        quantity,
		InitialQuantity: quantity,
		ExpiryDate:      expiryDate,
		CreatedAt:       time.Now().UTC(),
	}
}

// Validate checks batch invariants.
func (b *Batch) Validate(ctx context.Context) error {
	if id.IsNil(b.MedicineID) {
		return apperror.NewValidation("medicine_id is required").
			WithDetail("field", "medicineId")
	}
	if b.BatchName == "" {
		return apperror.NewValidation("batch_name is required").
			WithDetail("field", "batchName")
	}
	if b.Quantity <= 0 {
		return apperror.NewInvalidQuantity(b.Quantity)
	}
	if b.ExpiryDate.IsZero() {
		return apperror.NewValidation("expiry_date is required").
			WithDetail("field", "expiryDate")
	}
	return nil
}

// Depleted reports whether the batch has no units left.
func (b *Batch) Depleted() bool {
	return b.Quantity == 0
}

// Retired reports whether the batch has been removed from circulation.
// Retired is terminal: no transition re-activates a retired batch.
func (b *Batch) Retired() bool {
	return b.IsDeleted
}

// Expired reports whether the batch expiry date has passed.
func (b *Batch) Expired(now time.Time) bool {
	return b.ExpiryDate.Before(now)
}

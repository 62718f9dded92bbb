// Package ledger provides the append-only stock ledger.
// Entries record every quantity-changing event and are never updated or
// deleted once written; the repository interface exposes no mutation path.
package ledger

import (
	"context"
	"time"

	"medistock/internal/core/apperror"
	"medistock/internal/core/id"
)

// Kind classifies a stock-changing event.
type Kind string

const (
	KindReceived  Kind = "RECEIVED"
	KindConsumed  Kind = "CONSUMED"
	KindDiscarded Kind = "DISCARDED"
)

// Entry is an immutable record of one stock-changing event.
//
// BatchID is nullable: if the batch row is later hard-deleted the entry
// keeps its denormalized BatchName and MedicineID so history survives.
type Entry struct {
	ID id.ID `db:"id" json:"id"`

	BatchID    *id.ID `db:"batch_id" json:"batchId,omitempty"`
	BatchName  string `db:"batch_name" json:"batchName"`
	MedicineID id.ID  `db:"medicine_id" json:"medicineId"`

	// Change is the signed quantity delta: positive for RECEIVED,
	// negative for CONSUMED and DISCARDED.
	Change int64 `db:"change" json:"change"`

	Kind   Kind   `db:"kind" json:"kind"`
	Reason string `db:"reason" json:"reason"`

	// Actor is the caller identity, trusted as given.
	Actor string `db:"actor" json:"actor"`

	// Subject references the patient or dependent the stock was dispensed
	// to; only meaningful for CONSUMED entries.
	Subject *string `db:"subject" json:"subject,omitempty"`

	CreatedAt time.Time `db:"created_at" json:"createdAt"`
}

// NewEntry creates a ledger entry with generated ID and timestamp.
// The ID is generated before insert so that a retried append after an
// unknown-outcome failure deduplicates at the storage layer.
func NewEntry(b BatchRef, change int64, kind Kind, reason, actor string, subject *string) Entry {
	batchID := b.ID
	return Entry{
		ID:         id.New(),
		BatchID:    &batchID,
		BatchName:  b.Name,
		MedicineID: b.MedicineID,
		Change:     change,
		Kind:       kind,
		Reason:     reason,
		Actor:      actor,
		Subject:    subject,
		CreatedAt:  time.Now().UTC(),
	}
}

// BatchRef carries the batch fields the ledger denormalizes.
type BatchRef struct {
	ID         id.ID
	Name       string
	MedicineID id.ID
}

// Validate enforces the entry invariants: mandatory reason and actor, and
// the sign rule (RECEIVED positive, everything else negative).
func (e *Entry) Validate(ctx context.Context) error {
	if id.IsNil(e.MedicineID) {
		return apperror.NewValidation("medicine_id is required").
			WithDetail("field", "medicineId")
	}
	if e.Reason == "" {
		return apperror.NewValidation("reason is required").
			WithDetail("field", "reason")
	}
	if e.Actor == "" {
		return apperror.NewValidation("actor is required").
			WithDetail("field", "actor")
	}
	switch e.Kind {
	case KindReceived:
		if e.Change <= 0 {
			return apperror.NewValidation("RECEIVED entries must have a positive change").
				WithDetail("change", e.Change)
		}
	case KindConsumed, KindDiscarded:
		if e.Change >= 0 {
			return apperror.NewValidation("consumption entries must have a negative change").
				WithDetail("change", e.Change).
				WithDetail("kind", string(e.Kind))
		}
	default:
		return apperror.NewValidation("unknown ledger entry kind").
			WithDetail("kind", string(e.Kind))
	}
	return nil
}

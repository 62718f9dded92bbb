package stock

import (
	"medistock/internal/core/apperror"
	"medistock/internal/core/id"
	"medistock/internal/domain/batch"
)

// Line is one planned deduction: take Amount units from the named batch.
type Line struct {
	BatchID   id.ID  `json:"batchId"`
	BatchName string `json:"batchName"`
	Amount    int64  `json:"amount"`
}

// Allocation is the full plan for one consumption request. On success the
// amounts sum to exactly Requested.
type Allocation struct {
	MedicineID id.ID  `json:"medicineId"`
	Requested  int64  `json:"requested"`
	Lines      []Line `json:"lines"`
}

// Plan walks batches in the given order (callers pass them expiry-ascending,
// soonest first) and deducts min(batch quantity, remaining) from each until
// the request is covered. Zero-quantity batches are skipped. Planning is
// pure: it never touches storage, so the caller decides the snapshot and
// the locking around it.
//
// The batches slice is the scan window: if it does not cover the request,
// Plan fails with InsufficientStock even when more stock exists beyond it.
func Plan(medicineID id.ID, batches []*batch.Batch, requested int64) (*Allocation, error) {
	if requested <= 0 {
		return nil, apperror.NewInvalidQuantity(requested)
	}

	remaining := requested
	var available int64
	lines := make([]Line, 0, len(batches))

	for _, b := range batches {
		if b.Quantity <= 0 {
			continue
		}
		available += b.Quantity
		take := b.Quantity
		if take > remaining {
			take = remaining
		}
		lines = append(lines, Line{BatchID: b.ID, BatchName: b.BatchName, Amount: take})
		remaining -= take
		if remaining == 0 {
			break
		}
	}

	if remaining > 0 {
		return nil, apperror.NewInsufficientStock(medicineID.String(), requested, available)
	}

	return &Allocation{MedicineID: medicineID, Requested: requested, Lines: lines}, nil
}

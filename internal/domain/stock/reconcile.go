package stock

import (
	"context"

	"medistock/internal/core/id"
	"medistock/internal/core/tx"
	"medistock/internal/domain/batch"
	"medistock/internal/domain/ledger"
)

// Drift is one batch whose stored quantity disagrees with its ledger.
type Drift struct {
	BatchID         id.ID `json:"batchId"`
	InitialQuantity int64 `json:"initialQuantity"`
	LedgerDelta     int64 `json:"ledgerDelta"`
	Expected        int64 `json:"expected"`
	Actual          int64 `json:"actual"`
}

// ReconcileReport is the outcome of one reconciliation run over a medicine.
type ReconcileReport struct {
	MedicineID id.ID   `json:"medicineId"`
	Checked    int     `json:"checked"`
	Drifts     []Drift `json:"drifts"`
}

// Clean reports whether every checked batch matched its ledger.
func (r *ReconcileReport) Clean() bool {
	return len(r.Drifts) == 0
}

// Reconciler verifies the ledger invariant: for every batch the current
// quantity equals the sum of its ledger changes, the RECEIVED entry
// carrying the initial intake.
// Retired batches are checked against the ledger up to retirement: the
// retirement write-off entry is excluded, since retiring deliberately leaves
// the stored quantity untouched.
type Reconciler struct {
	txm     tx.ReadOnlyManager
	batches batch.Repository
	entries ledger.Repository
}

func NewReconciler(txm tx.ReadOnlyManager, batches batch.Repository, entries ledger.Repository) *Reconciler {
	return &Reconciler{txm: txm, batches: batches, entries: entries}
}

// Reconcile checks all batches of one medicine inside a read-only
// transaction, so quantities and ledger sums come from one snapshot.
func (r *Reconciler) Reconcile(ctx context.Context, medicineID id.ID) (*ReconcileReport, error) {
	report := &ReconcileReport{MedicineID: medicineID}

	err := r.txm.ReadOnly(ctx, func(ctx context.Context) error {
		batches, err := r.batches.ListByMedicine(ctx, medicineID, true)
		if err != nil {
			return err
		}
		sums, err := r.entries.SumChangeByBatch(ctx, medicineID)
		if err != nil {
			return err
		}

		deltas := make(map[id.ID]int64, len(sums))
		for _, s := range sums {
			if s.BatchID != nil {
				deltas[*s.BatchID] = s.Total
			}
		}

		for _, b := range batches {
			delta := deltas[b.ID]
			if b.IsDeleted {
				// The write-off entry records the retired stock leaving
				// circulation; the row quantity was not changed by it.
				delta += b.Quantity
			}
			// The RECEIVED entry already covers the initial quantity.
			expected := delta
			report.Checked++
			if expected != b.Quantity {
				report.Drifts = append(report.Drifts, Drift{
					BatchID:         b.ID,
					InitialQuantity: b.InitialQuantity,
					LedgerDelta:     delta,
					Expected:        expected,
					Actual:          b.Quantity,
				})
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return report, nil
}

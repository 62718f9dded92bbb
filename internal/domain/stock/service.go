// Package stock orchestrates batch mutations, allocation planning and ledger
// appends behind four operations: receive, consume, discard, retire.
// It is the only writer of batch quantity and deletion state.
package stock

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"time"

	"medistock/internal/core/apperror"
	"medistock/internal/core/id"
	"medistock/internal/core/tx"
	"medistock/internal/domain/batch"
	"medistock/internal/domain/ledger"
	"medistock/pkg/logger"
)

const retireReason = "batch retired"

// IdempotencyStore records operation results keyed by a caller-supplied key.
// Begin returns the stored result when the key was already completed, or a
// fence token when the key is freshly acquired; it fails with
// IDEMPOTENCY_CONFLICT while another call holds the key and with
// IDEMPOTENCY_MISMATCH when the same key arrives with a different request
// hash. Complete and Release only act when the token still matches the
// acquisition, so a holder whose key was reclaimed as stale cannot commit
// a second result.
type IdempotencyStore interface {
	Begin(ctx context.Context, key, requestHash string) (result []byte, token string, err error)
	Complete(ctx context.Context, key, token string, result []byte) error
	Release(ctx context.Context, key, token string) error
}

// OperationLog records what an operation did, for offline inspection.
// Failures here must not fail the operation itself.
type OperationLog interface {
	Record(ctx context.Context, operation string, entityID id.ID, actor string, payload any) error
}

// MedicineLocker is the slice of the medicine repository the service needs:
// existence checks and the per-medicine row lock consume serializes on.
type MedicineLocker interface {
	Exists(ctx context.Context, medicineID id.ID) (bool, error)
	LockForStock(ctx context.Context, medicineID id.ID) error
}

// Service composes the batch store, allocator and ledger into atomic stock
// operations. Every operation runs in one transaction: the batch mutation
// and its ledger entries commit or roll back together.
type Service struct {
	txm       tx.Manager
	medicines MedicineLocker
	batches   batch.Repository
	entries   ledger.Repository
	idem      IdempotencyStore
	oplog     OperationLog
	cfg       Config
}

// NewService wires the stock service. idem and oplog may be nil; the
// corresponding features are then disabled.
func NewService(
	txm tx.Manager,
	medicines MedicineLocker,
	batches batch.Repository,
	entries ledger.Repository,
	idem IdempotencyStore,
	oplog OperationLog,
	cfg Config,
) *Service {
	return &Service{
		txm:       txm,
		medicines: medicines,
		batches:   batches,
		entries:   entries,
		idem:      idem,
		oplog:     oplog,
		cfg:       cfg,
	}
}

// ReceiveInput creates a new batch of stock.
type ReceiveInput struct {
	MedicineID     id.ID     `json:"medicineId"`
	BatchName      string    `json:"batchName"`
	Quantity       int64     `json:"quantity"`
	ExpiryDate     time.Time `json:"expiryDate"`
	Actor          string    `json:"actor"`
	Reason         string    `json:"reason"`
	IdempotencyKey string    `json:"-"`
}

// ReceiveResult reports the created batch and its ledger entry.
type ReceiveResult struct {
	Batch   batch.Batch `json:"batch"`
	EntryID id.ID       `json:"entryId"`
}

// Receive creates a batch and appends the matching RECEIVED ledger entry in
// one transaction.
func (s *Service) Receive(ctx context.Context, in ReceiveInput) (*ReceiveResult, error) {
	b := batch.New(in.MedicineID, in.BatchName, in.Quantity, in.ExpiryDate)
	if err := b.Validate(ctx); err != nil {
		return nil, err
	}
	if in.Actor == "" {
		return nil, apperror.NewValidation("actor is required")
	}
	if in.Reason == "" {
		return nil, apperror.NewValidation("reason is required")
	}

	var res ReceiveResult
	err := s.withIdempotency(ctx, in.IdempotencyKey, in, &res, func(ctx context.Context) error {
		ok, err := s.medicines.Exists(ctx, in.MedicineID)
		if err != nil {
			return err
		}
		if !ok {
			return apperror.NewNotFound("medicine", in.MedicineID.String())
		}
		if err := s.batches.Create(ctx, b); err != nil {
			return err
		}
		entry := ledger.NewEntry(batchRef(b), in.Quantity, ledger.KindReceived, in.Reason, in.Actor, nil)
		if err := entry.Validate(ctx); err != nil {
			return err
		}
		if err := s.entries.Append(ctx, []ledger.Entry{entry}); err != nil {
			return err
		}
		res = ReceiveResult{Batch: *b, EntryID: entry.ID}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.record(ctx, "receive", in.MedicineID, in.Actor, res.Batch)
	logger.Info(ctx, "stock received",
		"medicine_id", in.MedicineID,
		"batch_name", in.BatchName,
		"quantity", in.Quantity,
		"actor", in.Actor,
	)
	return &res, nil
}

// ConsumeInput draws stock for a medicine across one or more batches.
type ConsumeInput struct {
	MedicineID     id.ID   `json:"medicineId"`
	Quantity       int64   `json:"quantity"`
	Actor          string  `json:"actor"`
	Reason         string  `json:"reason"`
	Subject        *string `json:"subject,omitempty"`
	IdempotencyKey string  `json:"-"`
}

// ConsumeResult reports the executed allocation plan.
type ConsumeResult struct {
	Allocation Allocation `json:"allocation"`
	EntryIDs   []id.ID    `json:"entryIds"`
}

// Consume allocates the requested quantity FIFO-by-expiry and executes the
// plan. The whole call runs in one transaction that first takes the
// per-medicine row lock, so concurrent consumes of the same medicine
// serialize and plan over a stable snapshot.
func (s *Service) Consume(ctx context.Context, in ConsumeInput) (*ConsumeResult, error) {
	if in.Quantity <= 0 {
		return nil, apperror.NewInvalidQuantity(in.Quantity)
	}
	if in.Actor == "" {
		return nil, apperror.NewValidation("actor is required")
	}
	if in.Reason == "" {
		return nil, apperror.NewValidation("reason is required")
	}

	var res ConsumeResult
	err := s.withIdempotency(ctx, in.IdempotencyKey, in, &res, func(ctx context.Context) error {
		if err := s.medicines.LockForStock(ctx, in.MedicineID); err != nil {
			return err
		}

		batches, err := s.batches.FindConsumable(ctx, in.MedicineID, s.cfg.scanWindow())
		if err != nil {
			return err
		}

		plan, err := Plan(in.MedicineID, batches, in.Quantity)
		if err != nil {
			return err
		}

		decs := make([]batch.Decrement, 0, len(plan.Lines))
		entries := make([]ledger.Entry, 0, len(plan.Lines))
		for _, line := range plan.Lines {
			decs = append(decs, batch.Decrement{BatchID: line.BatchID, Amount: line.Amount})
			ref := ledger.BatchRef{ID: line.BatchID, Name: line.BatchName, MedicineID: in.MedicineID}
			entries = append(entries, ledger.NewEntry(ref, -line.Amount, ledger.KindConsumed, in.Reason, in.Actor, in.Subject))
		}
		if err := s.batches.DecrementQuantities(ctx, decs); err != nil {
			return err
		}
		if err := s.entries.Append(ctx, entries); err != nil {
			return err
		}

		res = ConsumeResult{Allocation: *plan, EntryIDs: entryIDs(entries)}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.record(ctx, "consume", in.MedicineID, in.Actor, res.Allocation)
	logger.Info(ctx, "stock consumed",
		"medicine_id", in.MedicineID,
		"quantity", in.Quantity,
		"batches", len(res.Allocation.Lines),
		"actor", in.Actor,
	)
	return &res, nil
}

// DiscardInput removes spoiled or damaged stock from a single batch.
type DiscardInput struct {
	BatchID        id.ID  `json:"batchId"`
	Quantity       int64  `json:"quantity"`
	Actor          string `json:"actor"`
	Reason         string `json:"reason"`
	IdempotencyKey string `json:"-"`
}

// DiscardResult reports the ledger entry written for the discard.
type DiscardResult struct {
	EntryID id.ID `json:"entryId"`
}

// Discard decrements one batch and appends the matching DISCARDED entry.
func (s *Service) Discard(ctx context.Context, in DiscardInput) (*DiscardResult, error) {
	if in.Quantity <= 0 {
		return nil, apperror.NewInvalidQuantity(in.Quantity)
	}
	if in.Actor == "" {
		return nil, apperror.NewValidation("actor is required")
	}
	if in.Reason == "" {
		return nil, apperror.NewValidation("reason is required")
	}

	var res DiscardResult
	err := s.withIdempotency(ctx, in.IdempotencyKey, in, &res, func(ctx context.Context) error {
		b, err := s.batches.GetByID(ctx, in.BatchID)
		if err != nil {
			return err
		}
		if err := s.batches.DecrementQuantity(ctx, in.BatchID, in.Quantity); err != nil {
			return err
		}
		entry := ledger.NewEntry(batchRef(b), -in.Quantity, ledger.KindDiscarded, in.Reason, in.Actor, nil)
		if err := s.entries.Append(ctx, []ledger.Entry{entry}); err != nil {
			return err
		}
		res = DiscardResult{EntryID: entry.ID}
		return nil
	})
	if err != nil {
		return nil, err
	}

	logger.Info(ctx, "stock discarded",
		"batch_id", in.BatchID,
		"quantity", in.Quantity,
		"actor", in.Actor,
	)
	return &res, nil
}

// RetireInput takes a batch out of circulation.
type RetireInput struct {
	BatchID        id.ID  `json:"batchId"`
	Actor          string `json:"actor"`
	IdempotencyKey string `json:"-"`
}

// RetireResult reports the quantity written off by the retirement.
type RetireResult struct {
	WrittenOff int64  `json:"writtenOff"`
	EntryID    *id.ID `json:"entryId,omitempty"`
}

// RetireBatch logs the batch's full remaining quantity as DISCARDED and
// marks the batch deleted. The stored quantity stays at its last value as a
// historical snapshot; availability queries exclude retired batches instead.
// A batch holding zero units is retired without a ledger entry.
func (s *Service) RetireBatch(ctx context.Context, in RetireInput) (*RetireResult, error) {
	if in.Actor == "" {
		return nil, apperror.NewValidation("actor is required")
	}

	var res RetireResult
	err := s.withIdempotency(ctx, in.IdempotencyKey, in, &res, func(ctx context.Context) error {
		b, err := s.batches.GetByID(ctx, in.BatchID)
		if err != nil {
			return err
		}
		if b.IsDeleted {
			return apperror.NewValidation("batch is already retired").
				WithDetail("batchId", in.BatchID.String())
		}

		res = RetireResult{WrittenOff: b.Quantity}
		if b.Quantity > 0 {
			entry := ledger.NewEntry(batchRef(b), -b.Quantity, ledger.KindDiscarded, retireReason, in.Actor, nil)
			if err := s.entries.Append(ctx, []ledger.Entry{entry}); err != nil {
				return err
			}
			res.EntryID = &entry.ID
		}
		return s.batches.Retire(ctx, in.BatchID)
	})
	if err != nil {
		return nil, err
	}

	logger.Info(ctx, "batch retired",
		"batch_id", in.BatchID,
		"written_off", res.WrittenOff,
		"actor", in.Actor,
	)
	return &res, nil
}

// withIdempotency runs fn in a transaction. With a key, a previously
// completed result is replayed into res without re-running fn; a fresh key
// is marked completed inside the same transaction as fn's writes, so the
// stored result and the ledger entries commit or roll back together. There
// is no window in which the operation committed but the key is still
// pending. On failure the key is released so the caller can retry.
func (s *Service) withIdempotency(ctx context.Context, key string, req, res any, fn func(ctx context.Context) error) error {
	if key == "" || s.idem == nil {
		return s.txm.RunInTransaction(ctx, fn)
	}

	hash, err := requestHash(req)
	if err != nil {
		return err
	}
	stored, token, err := s.idem.Begin(ctx, key, hash)
	if err != nil {
		return err
	}
	if stored != nil {
		if err := json.Unmarshal(stored, res); err != nil {
			return apperror.NewInternal(fmt.Errorf("decode idempotency result: %w", err))
		}
		logger.Debug(ctx, "idempotent replay", "key", key)
		return nil
	}

	err = s.txm.RunInTransaction(ctx, func(ctx context.Context) error {
		if err := fn(ctx); err != nil {
			return err
		}
		payload, err := json.Marshal(res)
		if err != nil {
			return apperror.NewInternal(fmt.Errorf("encode idempotency result: %w", err))
		}
		return s.idem.Complete(ctx, key, token, payload)
	})
	if err != nil {
		if relErr := s.idem.Release(ctx, key, token); relErr != nil {
			logger.Warn(ctx, "releasing idempotency key failed", "key", key, "error", relErr)
		}
		return err
	}
	return nil
}

func (s *Service) record(ctx context.Context, operation string, entityID id.ID, actor string, payload any) {
	if s.oplog == nil {
		return
	}
	if err := s.oplog.Record(ctx, operation, entityID, actor, payload); err != nil {
		logger.Warn(ctx, "operation log write failed", "operation", operation, "error", err)
	}
}

func requestHash(req any) (string, error) {
	raw, err := json.Marshal(req)
	if err != nil {
		return "", apperror.NewInternal(fmt.Errorf("hash request: %w", err))
	}
	sum := sha256.Sum256(raw)
	return hex.EncodeToString(sum[:]), nil
}

func batchRef(b *batch.Batch) ledger.BatchRef {
	return ledger.BatchRef{ID: b.ID, Name: b.BatchName, MedicineID: b.MedicineID}
}

func entryIDs(entries []ledger.Entry) []id.ID {
	ids := make([]id.ID, len(entries))
	for i, e := range entries {
		ids[i] = e.ID
	}
	return ids
}

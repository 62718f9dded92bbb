// Package main is a CLI that verifies the stock reconciliation invariant:
// for every batch, stored quantity must equal the sum of its ledger changes.
// Exits non-zero when any batch has drifted.
package main

import (
	"context"
	"fmt"
	"os"

	"medistock/internal/core/id"
	"medistock/internal/domain/medicine"
	"medistock/internal/domain/stock"
	"medistock/internal/infrastructure/storage/postgres"
	"medistock/internal/infrastructure/storage/postgres/batch_repo"
	"medistock/internal/infrastructure/storage/postgres/ledger_repo"
	"medistock/internal/infrastructure/storage/postgres/medicine_repo"
	"medistock/pkg/logger"
)

func main() {
	log, err := logger.New(logger.Config{
		Level:       getEnv("LOG_LEVEL", "info"),
		Development: getEnv("APP_ENV", "development") == "development",
	})
	if err != nil {
		fmt.Printf("failed to initialize logger: %v\n", err)
		os.Exit(1)
	}

	ctx := logger.WithLogger(context.Background(), log)

	dbURL := os.Getenv("DATABASE_URL")
	if dbURL == "" {
		log.Fatal("DATABASE_URL environment variable is required")
	}

	pool, err := postgres.NewPool(ctx, postgres.DefaultPoolConfig(dbURL))
	if err != nil {
		log.Fatalw("failed to connect to database", "error", err)
	}
	defer pool.Close()

	txManager := postgres.NewTxManager(pool)
	medicineRepo := medicine_repo.NewMedicineRepo(txManager)
	reconciler := stock.NewReconciler(txManager,
		batch_repo.NewBatchRepo(txManager),
		ledger_repo.NewLedgerRepo(txManager),
	)
	oplog, err := postgres.NewOperationLog(txManager)
	if err != nil {
		log.Fatalw("failed to create operation log", "error", err)
	}

	medicines, err := targetMedicines(ctx, medicineRepo)
	if err != nil {
		log.Fatalw("failed to resolve medicines", "error", err)
	}

	var drifted int
	for _, m := range medicines {
		report, err := reconciler.Reconcile(ctx, m.ID)
		if err != nil {
			log.Fatalw("reconciliation failed", "medicine_id", m.ID, "error", err)
		}
		if report.Clean() {
			log.Debugw("medicine reconciled", "medicine_id", m.ID, "batches", report.Checked)
			continue
		}

		drifted += len(report.Drifts)
		for _, d := range report.Drifts {
			log.Errorw("batch quantity drift",
				"medicine_id", m.ID,
				"medicine_code", m.Code,
				"batch_id", d.BatchID,
				"expected", d.Expected,
				"actual", d.Actual,
				"ledger_delta", d.LedgerDelta,
			)
		}

		// Recent operations against the medicine usually pin down when the
		// quantity and the ledger diverged.
		ops, err := oplog.History(ctx, m.ID, 10)
		if err != nil {
			log.Warnw("failed to load operation history", "medicine_id", m.ID, "error", err)
			continue
		}
		for _, op := range ops {
			log.Infow("recent operation",
				"medicine_id", m.ID,
				"operation", op.Operation,
				"actor", op.Actor,
				"at", op.CreatedAt,
				"payload", string(op.Payload),
			)
		}
	}

	if drifted > 0 {
		log.Errorw("reconciliation found drift", "medicines", len(medicines), "drifted_batches", drifted)
		os.Exit(1)
	}
	log.Infow("reconciliation clean", "medicines", len(medicines))
}

// targetMedicines resolves MEDICINE_ID when set, otherwise every medicine
// including marked-for-deletion ones (their batches still carry history).
func targetMedicines(ctx context.Context, repo medicine.Repository) ([]*medicine.Medicine, error) {
	if raw := os.Getenv("MEDICINE_ID"); raw != "" {
		medicineID, err := id.Parse(raw)
		if err != nil {
			return nil, fmt.Errorf("parse MEDICINE_ID: %w", err)
		}
		m, err := repo.GetByID(ctx, medicineID)
		if err != nil {
			return nil, err
		}
		return []*medicine.Medicine{m}, nil
	}
	return repo.List(ctx, true)
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

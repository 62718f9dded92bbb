// Package main provides a CLI tool for seeding the database with demo
// medicines and opening stock. Batches go through the stock service so the
// ledger stays consistent with the seeded quantities.
package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/shopspring/decimal"

	"medistock/internal/core/apperror"
	"medistock/internal/core/id"
	"medistock/internal/domain/medicine"
	"medistock/internal/domain/stock"
	"medistock/internal/infrastructure/storage/postgres"
	"medistock/internal/infrastructure/storage/postgres/batch_repo"
	"medistock/internal/infrastructure/storage/postgres/ledger_repo"
	"medistock/internal/infrastructure/storage/postgres/medicine_repo"
	"medistock/pkg/logger"
)

const seedActor = "seed"

type seedMedicine struct {
	code       string
	name       string
	unitSymbol string
	unitFactor decimal.Decimal
}

var demoMedicines = []seedMedicine{
	{"AMOX-500", "Amoxicillin 500mg", "tab", decimal.RequireFromString("0.5")},
	{"IBU-200", "Ibuprofen 200mg", "tab", decimal.RequireFromString("0.2")},
	{"PARA-SYR", "Paracetamol syrup", "ml", decimal.NewFromInt(1)},
	{"INS-GLAR", "Insulin glargine", "unit", decimal.RequireFromString("0.01")},
	{"NACL-09", "Saline 0.9%", "ml", decimal.NewFromInt(1)},
}

func main() {
	log, err := logger.New(logger.Config{
		Level:       "info",
		Development: true,
	})
	if err != nil {
		fmt.Printf("failed to create logger: %v\n", err)
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

	log.Info("connected to database")

	txManager := postgres.NewTxManager(pool)
	medicines, err := seedMedicines(ctx, txManager)
	if err != nil {
		log.Fatalw("failed to seed medicines", "error", err)
	}
	log.Infow("seeded medicines", "count", len(medicines))

	if os.Getenv("SEED_DEMO_STOCK") == "true" {
		if err := seedStock(ctx, txManager, medicines); err != nil {
			log.Fatalw("failed to seed stock", "error", err)
		}
		log.Info("seeded demo stock")
	}

	log.Info("seeding completed successfully")
}

// seedMedicines bulk-inserts the demo catalog with COPY, skipping codes
// that already exist, and returns medicine ids by code.
func seedMedicines(ctx context.Context, txManager *postgres.TxManager) (map[string]id.ID, error) {
	repo := medicine_repo.NewMedicineRepo(txManager)
	inserter := postgres.NewBulkInserter(txManager)

	existing, err := repo.List(ctx, true)
	if err != nil {
		return nil, err
	}
	known := make(map[string]id.ID, len(existing))
	for _, m := range existing {
		known[m.Code] = m.ID
	}

	columns := []string{
		"id", "code", "name", "category_id", "unit_symbol", "unit_factor",
		"deletion_mark", "created_at",
	}
	var rows [][]any
	for _, s := range demoMedicines {
		if _, ok := known[s.code]; ok {
			continue
		}
		m := medicine.New(s.code, s.name, s.unitSymbol)
		m.UnitFactor = s.unitFactor
		known[s.code] = m.ID
		rows = append(rows, []any{
			m.ID, m.Code, m.Name, m.CategoryID, m.UnitSymbol, m.UnitFactor,
			m.DeletionMark, m.CreatedAt,
		})
	}
	if len(rows) == 0 {
		return known, nil
	}

	err = txManager.RunInTransaction(ctx, func(ctx context.Context) error {
		_, err := inserter.CopyFromSlice(ctx, "medicines", columns, rows)
		return err
	})
	if err != nil {
		return nil, err
	}

	return known, nil
}

// seedStock opens two batches per medicine with staggered expiry dates.
func seedStock(ctx context.Context, txManager *postgres.TxManager, medicines map[string]id.ID) error {
	oplog, err := postgres.NewOperationLog(txManager)
	if err != nil {
		return fmt.Errorf("create operation log: %w", err)
	}
	svc := stock.NewService(
		txManager,
		medicine_repo.NewMedicineRepo(txManager),
		batch_repo.NewBatchRepo(txManager),
		ledger_repo.NewLedgerRepo(txManager),
		nil,
		oplog,
		stock.Config{},
	)

	now := time.Now()
	for code, medicineID := range medicines {
		for i, months := range []int{3, 9} {
			_, err := svc.Receive(ctx, stock.ReceiveInput{
				MedicineID: medicineID,
				BatchName:  fmt.Sprintf("%s-%s-%d", code, now.Format("200601"), i+1),
				Quantity:   int64(50 * (i + 1)),
				ExpiryDate: now.AddDate(0, months, 0),
				Actor:      seedActor,
				Reason:     "initial stock",
			})
			if apperror.IsCode(err, apperror.CodeDuplicateBatchName) {
				continue // already seeded on a previous run
			}
			if err != nil {
				return fmt.Errorf("receive %s: %w", code, err)
			}
		}
	}
	return nil
}

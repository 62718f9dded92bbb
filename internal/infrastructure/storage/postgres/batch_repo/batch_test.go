package batch_repo

import (
	"testing"

	"medistock/internal/core/id"
)

func TestFindConsumableQuery_SQL(t *testing.T) {
	repo := NewBatchRepo(nil)
	medID := id.New()

	sql, args, err := repo.findConsumableQuery(medID, 5).ToSql()
	if err != nil {
		t.Fatalf("ToSql failed: %v", err)
	}

	wantSQL := "SELECT id, medicine_id, batch_name, quantity, initial_quantity, expiry_date, is_deleted, created_at " +
		"FROM batches WHERE medicine_id = $1 AND is_deleted = $2 " +
		"ORDER BY expiry_date ASC, created_at ASC LIMIT 5"
	if sql != wantSQL {
		t.Errorf("SQL mismatch\nwant: %s\ngot:  %s", wantSQL, sql)
	}
	if len(args) != 2 || args[0] != medID.String() || args[1] != false {
		t.Errorf("Args mismatch\nwant: [%v false]\ngot:  %v", medID, args)
	}
}

func TestDecrementQuery_SQL(t *testing.T) {
	repo := NewBatchRepo(nil)
	batchID := id.New()

	sql, args, err := repo.decrementQuery(batchID, int64(7)).ToSql()
	if err != nil {
		t.Fatalf("ToSql failed: %v", err)
	}

	// The quantity >= amount guard is the conditional-update backstop:
	// a raced decrement affects zero rows instead of going negative.
	wantSQL := "UPDATE batches SET quantity = quantity - $1 " +
		"WHERE id = $2 AND is_deleted = $3 AND quantity >= $4"
	if sql != wantSQL {
		t.Errorf("SQL mismatch\nwant: %s\ngot:  %s", wantSQL, sql)
	}
	if len(args) != 4 {
		t.Fatalf("Args count mismatch\nwant: 4\ngot:  %d", len(args))
	}
	if args[0] != int64(7) || args[1] != batchID.String() || args[2] != false || args[3] != int64(7) {
		t.Errorf("Args mismatch\ngot: %v", args)
	}
}

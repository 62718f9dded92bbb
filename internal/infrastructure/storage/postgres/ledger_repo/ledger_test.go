package ledger_repo

import (
	"strings"
	"testing"
	"time"

	"medistock/internal/core/id"
	"medistock/internal/domain/ledger"
)

func TestHistoryQuery_SQL(t *testing.T) {
	repo := NewLedgerRepo(nil)
	medID := id.New()

	sql, args, err := repo.historyQuery(ledger.Filter{MedicineID: &medID}, nil, 50).ToSql()
	if err != nil {
		t.Fatalf("ToSql failed: %v", err)
	}

	wantSQL := "SELECT id, batch_id, batch_name, medicine_id, change, kind, reason, actor, subject, created_at " +
		"FROM ledger_entries WHERE medicine_id = $1 " +
		"ORDER BY created_at DESC, id DESC LIMIT 51"
	if sql != wantSQL {
		t.Errorf("SQL mismatch\nwant: %s\ngot:  %s", wantSQL, sql)
	}
	if len(args) != 1 || args[0] != medID.String() {
		t.Errorf("Args mismatch\nwant: [%v]\ngot:  %v", medID, args)
	}
}

func TestHistoryQuery_Cursor(t *testing.T) {
	repo := NewLedgerRepo(nil)
	cursor := &ledger.Cursor{CreatedAt: time.Now(), ID: id.New()}

	sql, args, err := repo.historyQuery(ledger.Filter{}, cursor, 10).ToSql()
	if err != nil {
		t.Fatalf("ToSql failed: %v", err)
	}

	if !strings.Contains(sql, "(created_at, id) < ($1, $2)") {
		t.Errorf("keyset predicate missing from SQL: %s", sql)
	}
	if len(args) != 2 || args[0] != cursor.CreatedAt || args[1] != cursor.ID {
		t.Errorf("Args mismatch\ngot: %v", args)
	}
}

func TestHistoryQuery_SubjectFilter(t *testing.T) {
	repo := NewLedgerRepo(nil)
	subject := "patient-7"
	batchID := id.New()

	sql, args, err := repo.historyQuery(ledger.Filter{BatchID: &batchID, Subject: &subject}, nil, 10).ToSql()
	if err != nil {
		t.Fatalf("ToSql failed: %v", err)
	}

	if !strings.Contains(sql, "batch_id = $1") || !strings.Contains(sql, "subject = $2") {
		t.Errorf("filter predicates missing from SQL: %s", sql)
	}
	if len(args) != 2 || args[0] != batchID.String() || args[1] != subject {
		t.Errorf("Args mismatch\ngot: %v", args)
	}
}

func TestAppendQuery_DedupSuffix(t *testing.T) {
	repo := NewLedgerRepo(nil)

	e := ledger.NewEntry(ledger.BatchRef{ID: id.New(), Name: "LOT-1", MedicineID: id.New()},
		5, ledger.KindReceived, "delivery", "nurse-1", nil)

	q := repo.builder.Insert(entriesTable).Columns(entryColumns...).
		Values(e.ID, e.BatchID, e.BatchName, e.MedicineID, e.Change, e.Kind, e.Reason, e.Actor, e.Subject, e.CreatedAt).
		Suffix("ON CONFLICT (id) DO NOTHING")

	sql, args, err := q.ToSql()
	if err != nil {
		t.Fatalf("ToSql failed: %v", err)
	}

	if !strings.HasSuffix(sql, "ON CONFLICT (id) DO NOTHING") {
		t.Errorf("dedup suffix missing from SQL: %s", sql)
	}
	if len(args) != 10 {
		t.Errorf("Args count mismatch\nwant: 10\ngot:  %d", len(args))
	}
}

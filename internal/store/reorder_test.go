package store

import (
	"testing"
	"time"

	"github.com/fernwood/restock/internal/database"
	"github.com/fernwood/restock/internal/model"
)

func setupTestDB(t *testing.T) *ReorderStore {
	t.Helper()
	db, err := database.Open(":memory:")
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return NewReorderStore(db)
}

func testEntry(id, itemID string, updatedAt time.Time) *model.ReorderEntry {
	return &model.ReorderEntry{
		ID:             id,
		ItemID:         itemID,
		Quantity:       1,
		Status:         model.StatusIncomplete,
		AddedBy:        "alice",
		LastModifiedBy: "alice",
		CreatedAt:      updatedAt,
		UpdatedAt:      updatedAt,
	}
}

func TestPutGetRoundtrip(t *testing.T) {
	rs := setupTestDB(t)

	now := time.Now().UTC().Truncate(time.Second)
	e := testEntry("e1", "item-1", now)
	e.TeamData = &model.TeamData{ItemID: "item-1", Vendor: "Acme", CostCents: 499}

	if err := rs.Put(e); err != nil {
		t.Fatalf("put: %v", err)
	}

	got, err := rs.Get("e1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got == nil {
		t.Fatal("expected entry, got nil")
	}
	if got.ItemID != "item-1" || got.Quantity != 1 || got.AddedBy != "alice" {
		t.Errorf("entry fields = %+v", got)
	}
	if got.TeamData == nil || got.TeamData.Vendor != "Acme" {
		t.Errorf("team data snapshot = %+v", got.TeamData)
	}
}

func TestGetMissing(t *testing.T) {
	rs := setupTestDB(t)

	got, err := rs.Get("nope")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got != nil {
		t.Fatalf("expected nil for missing entry, got %+v", got)
	}
}

func TestPutUpsertsOnConflict(t *testing.T) {
	rs := setupTestDB(t)

	now := time.Now().UTC().Truncate(time.Second)
	e := testEntry("e1", "item-1", now)
	if err := rs.Put(e); err != nil {
		t.Fatalf("put: %v", err)
	}

	e.Quantity = 5
	e.LastModifiedBy = "bob"
	if err := rs.Put(e); err != nil {
		t.Fatalf("put again: %v", err)
	}

	got, _ := rs.Get("e1")
	if got.Quantity != 5 || got.LastModifiedBy != "bob" {
		t.Errorf("upsert did not replace: %+v", got)
	}

	all, _ := rs.ListAll()
	if len(all) != 1 {
		t.Errorf("expected 1 entry after upsert, got %d", len(all))
	}
}

func TestGetActiveByItemIDSkipsReceived(t *testing.T) {
	rs := setupTestDB(t)

	now := time.Now().UTC().Truncate(time.Second)
	received := testEntry("e1", "item-1", now.Add(-time.Hour))
	received.Received = true
	received.Status = model.StatusComplete
	if err := rs.Put(received); err != nil {
		t.Fatalf("put received: %v", err)
	}

	got, err := rs.GetActiveByItemID("item-1")
	if err != nil {
		t.Fatalf("get active: %v", err)
	}
	if got != nil {
		t.Fatalf("received entry should not be active, got %+v", got)
	}

	active := testEntry("e2", "item-1", now)
	if err := rs.Put(active); err != nil {
		t.Fatalf("put active: %v", err)
	}

	got, err = rs.GetActiveByItemID("item-1")
	if err != nil {
		t.Fatalf("get active: %v", err)
	}
	if got == nil || got.ID != "e2" {
		t.Fatalf("expected e2, got %+v", got)
	}
}

func TestListOrdering(t *testing.T) {
	rs := setupTestDB(t)

	base := time.Now().UTC().Truncate(time.Second)
	rs.Put(testEntry("old", "i1", base.Add(-2*time.Hour)))
	rs.Put(testEntry("mid", "i2", base.Add(-time.Hour)))
	rs.Put(testEntry("new", "i3", base))

	all, err := rs.ListAll()
	if err != nil {
		t.Fatalf("list all: %v", err)
	}
	if len(all) != 3 {
		t.Fatalf("expected 3 entries, got %d", len(all))
	}
	if all[0].ID != "new" || all[1].ID != "mid" || all[2].ID != "old" {
		t.Errorf("wrong order: %s, %s, %s", all[0].ID, all[1].ID, all[2].ID)
	}
}

func TestListActiveFiltersReceived(t *testing.T) {
	rs := setupTestDB(t)

	now := time.Now().UTC().Truncate(time.Second)
	rs.Put(testEntry("e1", "i1", now))
	done := testEntry("e2", "i2", now)
	done.Received = true
	rs.Put(done)

	active, err := rs.ListActive()
	if err != nil {
		t.Fatalf("list active: %v", err)
	}
	if len(active) != 1 || active[0].ID != "e1" {
		t.Errorf("active = %+v", active)
	}

	all, _ := rs.ListAll()
	if len(all) != 2 {
		t.Errorf("received entry should stay in full history, got %d entries", len(all))
	}
}

func TestPutQueuedRecordsOp(t *testing.T) {
	rs := setupTestDB(t)
	qs := NewSyncQueueStore(rs.db)

	now := time.Now().UTC().Truncate(time.Second)
	if err := rs.PutQueued(testEntry("e1", "i1", now)); err != nil {
		t.Fatalf("put queued: %v", err)
	}

	ops, err := qs.Pending()
	if err != nil {
		t.Fatalf("pending: %v", err)
	}
	if len(ops) != 1 {
		t.Fatalf("expected 1 op, got %d", len(ops))
	}
	if ops[0].Kind != model.SyncOpPut || ops[0].EntryID != "e1" {
		t.Errorf("op = %+v", ops[0])
	}
	if len(ops[0].Payload) == 0 {
		t.Error("put op should carry the entry payload")
	}
}

func TestPutQueuedCollapsesOlderPuts(t *testing.T) {
	rs := setupTestDB(t)
	qs := NewSyncQueueStore(rs.db)

	now := time.Now().UTC().Truncate(time.Second)
	e := testEntry("e1", "i1", now)
	rs.PutQueued(e)
	e.Quantity = 3
	rs.PutQueued(e)
	e.Quantity = 7
	rs.PutQueued(e)

	count, _ := qs.Count()
	if count != 1 {
		t.Errorf("expected older puts collapsed to 1 op, got %d", count)
	}
}

func TestDeleteQueuedSupersedesPuts(t *testing.T) {
	rs := setupTestDB(t)
	qs := NewSyncQueueStore(rs.db)

	now := time.Now().UTC().Truncate(time.Second)
	rs.PutQueued(testEntry("e1", "i1", now))

	if err := rs.DeleteQueued("e1"); err != nil {
		t.Fatalf("delete queued: %v", err)
	}

	got, _ := rs.Get("e1")
	if got != nil {
		t.Error("entry should be gone locally")
	}

	ops, _ := qs.Pending()
	if len(ops) != 1 {
		t.Fatalf("expected only the delete op, got %d ops", len(ops))
	}
	if ops[0].Kind != model.SyncOpDelete {
		t.Errorf("op kind = %q, want delete", ops[0].Kind)
	}
}

func TestDeleteAllClearsQueue(t *testing.T) {
	rs := setupTestDB(t)
	qs := NewSyncQueueStore(rs.db)

	now := time.Now().UTC().Truncate(time.Second)
	rs.PutQueued(testEntry("e1", "i1", now))
	rs.PutQueued(testEntry("e2", "i2", now))

	if err := rs.DeleteAll(); err != nil {
		t.Fatalf("delete all: %v", err)
	}

	all, _ := rs.ListAll()
	if len(all) != 0 {
		t.Errorf("expected empty list, got %d", len(all))
	}
	count, _ := qs.Count()
	if count != 0 {
		t.Errorf("expected empty queue, got %d", count)
	}
}

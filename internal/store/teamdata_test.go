package store

import (
	"testing"
	"time"

	"github.com/fernwood/restock/internal/database"
	"github.com/fernwood/restock/internal/model"
)

func TestTeamDataUpsertAndGet(t *testing.T) {
	db, err := database.Open(":memory:")
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	ts := NewTeamDataStore(db)

	missing, err := ts.Get("nope")
	if err != nil {
		t.Fatalf("get missing: %v", err)
	}
	if missing != nil {
		t.Fatalf("expected nil for missing record, got %+v", missing)
	}

	now := time.Now().UTC().Truncate(time.Second)
	td := &model.TeamData{ItemID: "i1", Vendor: "Acme", CostCents: 1250, FetchedAt: now}
	if err := ts.Upsert(td); err != nil {
		t.Fatalf("upsert: %v", err)
	}

	got, err := ts.Get("i1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Vendor != "Acme" || got.CostCents != 1250 {
		t.Errorf("got %+v", got)
	}

	// Negative-cache row: empty vendor overwrites the positive one.
	td.Vendor = ""
	td.CostCents = 0
	if err := ts.Upsert(td); err != nil {
		t.Fatalf("upsert negative: %v", err)
	}
	got, _ = ts.Get("i1")
	if got == nil || got.Vendor != "" {
		t.Errorf("expected negative-cache row, got %+v", got)
	}
}

package resolver

import (
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/fernwood/restock/internal/model"
)

type fakeCatalog struct {
	items map[string]*model.CatalogItem
	err   error
}

func (f *fakeCatalog) GetItemByID(id string) (*model.CatalogItem, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.items[id], nil
}

type fakeTeamData struct {
	records map[string]*model.TeamData
	err     error
}

func (f *fakeTeamData) Get(itemID string) (*model.TeamData, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.records[itemID], nil
}

func discard() *slog.Logger {
	return slog.New(slog.DiscardHandler)
}

func TestResolveFullyResolved(t *testing.T) {
	r := New(
		&fakeCatalog{items: map[string]*model.CatalogItem{
			"i1": {ID: "i1", Name: "Espresso Beans", Barcode: "123", Price: 1499, Category: "Beverages"},
		}},
		&fakeTeamData{records: map[string]*model.TeamData{
			"i1": {ItemID: "i1", Vendor: "Acme", CostCents: 900},
		}},
		discard(),
	)

	items := r.Resolve([]model.ReorderEntry{{ID: "e1", ItemID: "i1", Quantity: 2}})
	if len(items) != 1 {
		t.Fatalf("expected 1 item, got %d", len(items))
	}
	it := items[0]
	if it.ItemName != "Espresso Beans" || it.ItemPrice != 1499 {
		t.Errorf("catalog fields = %+v", it)
	}
	if it.MissingCatalogData || it.MissingTeamData {
		t.Errorf("nothing should be flagged missing: %+v", it)
	}
	if it.TeamData == nil || it.TeamData.Vendor != "Acme" {
		t.Errorf("team data = %+v", it.TeamData)
	}
}

func TestResolveCatalogMiss(t *testing.T) {
	r := New(
		&fakeCatalog{items: map[string]*model.CatalogItem{}},
		&fakeTeamData{records: map[string]*model.TeamData{
			"i1": {ItemID: "i1", Vendor: "Acme"},
		}},
		discard(),
	)

	items := r.Resolve([]model.ReorderEntry{{ID: "e1", ItemID: "i1"}})
	it := items[0]
	if !it.MissingCatalogData {
		t.Error("expected MissingCatalogData flag")
	}
	if it.ItemName != MissingCatalogName {
		t.Errorf("name = %q, want sentinel", it.ItemName)
	}
	// Team data resolution is independent of the catalog miss.
	if it.MissingTeamData || it.TeamData == nil || it.TeamData.Vendor != "Acme" {
		t.Errorf("team data should still resolve: %+v", it.TeamData)
	}
}

func TestResolveTeamDataMiss(t *testing.T) {
	r := New(
		&fakeCatalog{items: map[string]*model.CatalogItem{
			"i1": {ID: "i1", Name: "Espresso Beans"},
		}},
		&fakeTeamData{records: map[string]*model.TeamData{}},
		discard(),
	)

	it := r.Resolve([]model.ReorderEntry{{ID: "e1", ItemID: "i1"}})[0]
	if !it.MissingTeamData {
		t.Error("expected MissingTeamData flag")
	}
	if it.TeamData == nil || it.TeamData.Vendor != NoVendor {
		t.Errorf("team data placeholder = %+v", it.TeamData)
	}
	if it.MissingCatalogData {
		t.Error("catalog resolved fine, should not be flagged")
	}
}

func TestResolveNegativeCacheRowShownAsMiss(t *testing.T) {
	r := New(
		&fakeCatalog{items: map[string]*model.CatalogItem{"i1": {ID: "i1", Name: "Beans"}}},
		&fakeTeamData{records: map[string]*model.TeamData{
			"i1": {ItemID: "i1", Vendor: "", FetchedAt: time.Now()},
		}},
		discard(),
	)

	it := r.Resolve([]model.ReorderEntry{{ID: "e1", ItemID: "i1"}})[0]
	if !it.MissingTeamData {
		t.Error("empty-vendor negative cache row should show as missing")
	}
}

func TestResolveStorageErrorDegradesToMiss(t *testing.T) {
	r := New(
		&fakeCatalog{err: errors.New("disk on fire")},
		&fakeTeamData{err: errors.New("disk on fire")},
		discard(),
	)

	items := r.Resolve([]model.ReorderEntry{{ID: "e1", ItemID: "i1"}})
	if len(items) != 1 {
		t.Fatalf("resolution must never drop entries, got %d", len(items))
	}
	it := items[0]
	if !it.MissingCatalogData || !it.MissingTeamData {
		t.Errorf("storage errors should degrade to misses: %+v", it)
	}
}

func TestResolveCustomEntry(t *testing.T) {
	r := New(&fakeCatalog{}, &fakeTeamData{}, discard())

	custom := model.ReorderEntry{ID: "e1", IsCustom: true, ItemName: "Window Cleaner", ItemCategory: "Supplies"}
	it := r.Resolve([]model.ReorderEntry{custom})[0]
	if it.ItemName != "Window Cleaner" || it.ItemCategory != "Supplies" {
		t.Errorf("custom fields = %+v", it)
	}
	if it.MissingCatalogData || it.MissingTeamData {
		t.Errorf("custom entries can't be missing anything: %+v", it)
	}
}

func TestResolvePreservesOrder(t *testing.T) {
	r := New(&fakeCatalog{}, &fakeTeamData{}, discard())

	entries := []model.ReorderEntry{
		{ID: "c", ItemID: "i3"},
		{ID: "a", ItemID: "i1"},
		{ID: "b", ItemID: "i2"},
	}
	items := r.Resolve(entries)
	for i := range entries {
		if items[i].ID != entries[i].ID {
			t.Errorf("items[%d].ID = %s, want %s", i, items[i].ID, entries[i].ID)
		}
	}
}

package store

import (
	"testing"
	"time"

	"github.com/fernwood/restock/internal/database"
	"github.com/fernwood/restock/internal/model"
)

func setupCatalogTestDB(t *testing.T) *CatalogStore {
	t.Helper()
	db, err := database.Open(":memory:")
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return NewCatalogStore(db)
}

func seedItem(t *testing.T, cs *CatalogStore, id, name, barcode string) {
	t.Helper()
	err := cs.UpsertItem(&model.CatalogItem{
		ID: id, Name: name, Barcode: barcode, Price: 199, Category: "Grocery",
		UpdatedAt: time.Now().UTC(),
	})
	if err != nil {
		t.Fatalf("seed item: %v", err)
	}
}

func TestGetByBarcodeCardinality(t *testing.T) {
	cs := setupCatalogTestDB(t)
	seedItem(t, cs, "i1", "Sparkling Water 12pk", "0001")
	seedItem(t, cs, "i2", "Sparkling Water 24pk", "0002")
	seedItem(t, cs, "i3", "Sparkling Water Case", "0002")

	none, err := cs.GetByBarcode("9999")
	if err != nil {
		t.Fatalf("get by barcode: %v", err)
	}
	if len(none) != 0 {
		t.Errorf("expected no matches, got %d", len(none))
	}

	one, _ := cs.GetByBarcode("0001")
	if len(one) != 1 || one[0].ID != "i1" {
		t.Errorf("single match = %+v", one)
	}

	many, _ := cs.GetByBarcode("0002")
	if len(many) != 2 {
		t.Errorf("expected 2 matches for shared barcode, got %d", len(many))
	}
}

func TestSearchMatchesNameAndBarcode(t *testing.T) {
	cs := setupCatalogTestDB(t)
	seedItem(t, cs, "i1", "Cold Brew Coffee", "1111")
	seedItem(t, cs, "i2", "Coffee Filters", "2222")
	seedItem(t, cs, "i3", "Paper Towels", "3333")

	byName, err := cs.Search("coffee", 0)
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if len(byName) != 2 {
		t.Errorf("expected 2 name matches, got %d", len(byName))
	}

	byBarcode, _ := cs.Search("3333", 0)
	if len(byBarcode) != 1 || byBarcode[0].ID != "i3" {
		t.Errorf("barcode search = %+v", byBarcode)
	}
}

func TestListCategories(t *testing.T) {
	cs := setupCatalogTestDB(t)
	cs.UpsertCategory(&model.CatalogCategory{ID: "c2", Name: "Snacks"})
	cs.UpsertCategory(&model.CatalogCategory{ID: "c1", Name: "Beverages"})

	cats, err := cs.ListCategories()
	if err != nil {
		t.Fatalf("list categories: %v", err)
	}
	if len(cats) != 2 || cats[0].Name != "Beverages" {
		t.Errorf("categories = %+v", cats)
	}
}

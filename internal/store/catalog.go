package store

import (
	"database/sql"
	"fmt"

	"github.com/fernwood/restock/internal/model"
)

// CatalogStore reads the local catalog cache. The cache is populated by the
// provider import path and treated as read-only by the reorder engine.
type CatalogStore struct {
	db *sql.DB
}

func NewCatalogStore(db *sql.DB) *CatalogStore {
	return &CatalogStore{db: db}
}

const catalogCols = `id, name, barcode, price, category, updated_at`

func scanCatalogItem(scanner interface{ Scan(...any) error }) (*model.CatalogItem, error) {
	var it model.CatalogItem
	err := scanner.Scan(&it.ID, &it.Name, &it.Barcode, &it.Price, &it.Category, &it.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &it, nil
}

func (s *CatalogStore) GetItemByID(id string) (*model.CatalogItem, error) {
	row := s.db.QueryRow(`SELECT `+catalogCols+` FROM catalog_items WHERE id = ?`, id)
	it, err := scanCatalogItem(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get catalog item: %w", err)
	}
	return it, nil
}

// GetByBarcode returns every catalog item carrying the barcode. Zero, one,
// or many matches are all normal outcomes; the scan classifier decides what
// to do with each.
func (s *CatalogStore) GetByBarcode(barcode string) ([]model.CatalogItem, error) {
	rows, err := s.db.Query(`SELECT `+catalogCols+` FROM catalog_items WHERE barcode = ? ORDER BY name ASC`, barcode)
	if err != nil {
		return nil, fmt.Errorf("get by barcode: %w", err)
	}
	defer rows.Close()

	var items []model.CatalogItem
	for rows.Next() {
		it, err := scanCatalogItem(rows)
		if err != nil {
			return nil, fmt.Errorf("scan catalog item: %w", err)
		}
		items = append(items, *it)
	}
	return items, rows.Err()
}

func (s *CatalogStore) Search(query string, limit int) ([]model.CatalogItem, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.Query(
		`SELECT `+catalogCols+` FROM catalog_items WHERE name LIKE ? OR barcode = ? ORDER BY name ASC LIMIT ?`,
		"%"+query+"%", query, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("search catalog: %w", err)
	}
	defer rows.Close()

	var items []model.CatalogItem
	for rows.Next() {
		it, err := scanCatalogItem(rows)
		if err != nil {
			return nil, fmt.Errorf("scan catalog item: %w", err)
		}
		items = append(items, *it)
	}
	return items, rows.Err()
}

func (s *CatalogStore) ListCategories() ([]model.CatalogCategory, error) {
	rows, err := s.db.Query(`SELECT id, name FROM catalog_categories ORDER BY name ASC`)
	if err != nil {
		return nil, fmt.Errorf("list categories: %w", err)
	}
	defer rows.Close()

	var categories []model.CatalogCategory
	for rows.Next() {
		var c model.CatalogCategory
		if err := rows.Scan(&c.ID, &c.Name); err != nil {
			return nil, fmt.Errorf("scan category: %w", err)
		}
		categories = append(categories, c)
	}
	return categories, rows.Err()
}

// UpsertItem is used by the catalog import path and by tests.
func (s *CatalogStore) UpsertItem(it *model.CatalogItem) error {
	_, err := s.db.Exec(
		`INSERT INTO catalog_items (`+catalogCols+`) VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			name = excluded.name,
			barcode = excluded.barcode,
			price = excluded.price,
			category = excluded.category,
			updated_at = excluded.updated_at`,
		it.ID, it.Name, it.Barcode, it.Price, it.Category, it.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("upsert catalog item: %w", err)
	}
	return nil
}

func (s *CatalogStore) UpsertCategory(c *model.CatalogCategory) error {
	_, err := s.db.Exec(
		`INSERT INTO catalog_categories (id, name) VALUES (?, ?)
		ON CONFLICT(id) DO UPDATE SET name = excluded.name`,
		c.ID, c.Name,
	)
	if err != nil {
		return fmt.Errorf("upsert category: %w", err)
	}
	return nil
}

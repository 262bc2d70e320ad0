package model

import "time"

// CatalogItem is a row in the local catalog cache. The cache is populated
// from the upstream provider and treated as read-only by the reorder engine.
type CatalogItem struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Barcode   string    `json:"barcode"`
	Price     int64     `json:"price"` // cents
	Category  string    `json:"category"`
	UpdatedAt time.Time `json:"updated_at"`
}

type CatalogCategory struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

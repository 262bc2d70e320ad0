package model

import "time"

// EntryStatus is the checked-off state of a reorder entry.
type EntryStatus string

const (
	StatusIncomplete EntryStatus = "incomplete"
	StatusComplete   EntryStatus = "complete"
)

// ReorderEntry is a single row on the restock list. The ID is generated
// locally at creation time and is stable across sync. Quantity 0 is a
// transient state meaning "delete on next save" and is never persisted as
// a visible row.
type ReorderEntry struct {
	ID             string      `json:"id"`
	ItemID         string      `json:"item_id"` // empty for custom entries
	Quantity       int         `json:"quantity"`
	Status         EntryStatus `json:"status"`
	Received       bool        `json:"received"`
	IsCustom       bool        `json:"is_custom"`
	ItemName       string      `json:"item_name,omitempty"`     // stored directly for custom entries
	ItemCategory   string      `json:"item_category,omitempty"` // stored directly for custom entries
	AddedBy        string      `json:"added_by"`
	LastModifiedBy string      `json:"last_modified_by"`
	CreatedAt      time.Time   `json:"created_at"`
	UpdatedAt      time.Time   `json:"updated_at"`
	TeamData       *TeamData   `json:"team_data,omitempty"` // cached snapshot, may be stale
}

// DisplayReorderItem is a ReorderEntry joined against the catalog cache and
// team data. It is recomputed on every refresh and never persisted.
//
// ItemName, ItemCategory, and TeamData deliberately shadow the embedded
// entry's fields of the same name: the outer fields are the resolved values
// and win both in field access and in JSON output. The entry's own copies
// (set only for custom entries or cached snapshots) must be read through
// the embedded struct explicitly.
type DisplayReorderItem struct {
	ReorderEntry

	ItemName     string    `json:"item_name"`
	ItemBarcode  string    `json:"item_barcode"`
	ItemPrice    int64     `json:"item_price"` // cents
	ItemCategory string    `json:"item_category"`
	TeamData     *TeamData `json:"team_data,omitempty"`

	MissingCatalogData bool `json:"missing_catalog_data"`
	MissingTeamData    bool `json:"missing_team_data"`
}

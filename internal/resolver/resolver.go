// Package resolver joins bare reorder entries against the catalog cache and
// team data to produce display-ready records. Lookups never fail the batch:
// a miss on either side degrades to flagged placeholder values so the list
// stays navigable with a stale catalog or missing team data.
package resolver

import (
	"log/slog"

	"github.com/fernwood/restock/internal/model"
)

// Sentinel values substituted when a lookup misses.
const (
	MissingCatalogName  = "Missing Catalog"
	MissingTeamDataName = "Missing Team Data"
	NoVendor            = "No Vendor"
)

// CatalogLookup is the read side of the catalog cache.
type CatalogLookup interface {
	GetItemByID(id string) (*model.CatalogItem, error)
}

// TeamDataLookup is the local team-data cache.
type TeamDataLookup interface {
	Get(itemID string) (*model.TeamData, error)
}

type Resolver struct {
	catalog  CatalogLookup
	teamData TeamDataLookup
	logger   *slog.Logger
}

func New(catalog CatalogLookup, teamData TeamDataLookup, logger *slog.Logger) *Resolver {
	return &Resolver{catalog: catalog, teamData: teamData, logger: logger}
}

// Resolve returns one DisplayReorderItem per entry, same order and
// cardinality as the input. The catalog and team-data lookups are
// independent; partial resolution is a normal, displayable state.
func (r *Resolver) Resolve(entries []model.ReorderEntry) []model.DisplayReorderItem {
	items := make([]model.DisplayReorderItem, 0, len(entries))
	for _, e := range entries {
		items = append(items, r.resolveOne(e))
	}
	return items
}

func (r *Resolver) resolveOne(e model.ReorderEntry) model.DisplayReorderItem {
	d := model.DisplayReorderItem{ReorderEntry: e}

	if e.IsCustom {
		// Custom entries carry their own name and category; nothing to
		// resolve and nothing can be missing.
		d.ItemName = e.ItemName
		d.ItemCategory = e.ItemCategory
		return d
	}

	item, err := r.catalog.GetItemByID(e.ItemID)
	if err != nil {
		// Storage trouble is treated the same as a miss so the list stays
		// renderable.
		r.logger.Warn("catalog lookup failed", "item_id", e.ItemID, "error", err)
		item = nil
	}
	if item == nil {
		d.MissingCatalogData = true
		d.ItemName = MissingCatalogName
	} else {
		d.ItemName = item.Name
		d.ItemBarcode = item.Barcode
		d.ItemPrice = item.Price
		d.ItemCategory = item.Category
	}

	td, err := r.teamData.Get(e.ItemID)
	if err != nil {
		r.logger.Warn("team data lookup failed", "item_id", e.ItemID, "error", err)
		td = nil
	}
	if td == nil || td.Vendor == "" {
		// An empty vendor row is a negative-cache entry, shown the same as
		// a miss.
		d.MissingTeamData = true
		d.TeamData = &model.TeamData{ItemID: e.ItemID, Vendor: NoVendor, Notes: MissingTeamDataName}
	} else {
		d.TeamData = td
	}

	return d
}

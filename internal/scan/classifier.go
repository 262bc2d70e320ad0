// Package scan decides what a barcode scan means for the reorder list.
package scan

import (
	"errors"
	"sort"

	"github.com/fernwood/restock/internal/model"
)

// ErrNotFound is reported when a barcode resolves to zero catalog items.
// No entry is created; the caller shows a recoverable error state.
var ErrNotFound = errors.New("barcode not found in catalog")

// ErrAmbiguous is reported when a barcode resolves to multiple catalog
// items. Not an error condition in itself — the caller presents a
// disambiguation choice and retries with the chosen item.
var ErrAmbiguous = errors.New("barcode matches multiple catalog items")

// Action is the transition the engine should apply for a scan.
type Action int

const (
	// ActionCreate creates a new entry with quantity 1.
	ActionCreate Action = iota
	// ActionIncrement bumps the chronologically-first entry's quantity and
	// refreshes its timestamp.
	ActionIncrement
	// ActionMoveToTop rewrites the entry's timestamp only; quantity is
	// unchanged.
	ActionMoveToTop
	// ActionCompleteRescan marks the completed entry received and creates a
	// fresh quantity-1 entry for the same item.
	ActionCompleteRescan
)

func (a Action) String() string {
	switch a {
	case ActionCreate:
		return "create"
	case ActionIncrement:
		return "increment"
	case ActionMoveToTop:
		return "move_to_top"
	case ActionCompleteRescan:
		return "complete_rescan"
	default:
		return "unknown"
	}
}

// Intent is a classified scan: the action to apply and, except for creates,
// the existing entry it applies to.
type Intent struct {
	Action Action
	Entry  *model.ReorderEntry
}

// Classify maps a scanned catalog item onto the reorder list state.
//
// "Chronologically first" is computed over the entire unfiltered entry set,
// not whatever view the user has filtered to, so scan behavior is stable
// regardless of the current screen. Received entries are history and never
// match.
func Classify(itemID string, entries []model.ReorderEntry) Intent {
	existing := activeEntryFor(itemID, entries)
	if existing == nil {
		return Intent{Action: ActionCreate}
	}

	if existing.Status == model.StatusComplete {
		return Intent{Action: ActionCompleteRescan, Entry: existing}
	}

	if top := chronologicalTop(entries); top != nil && top.ID == existing.ID {
		return Intent{Action: ActionIncrement, Entry: existing}
	}
	return Intent{Action: ActionMoveToTop, Entry: existing}
}

func activeEntryFor(itemID string, entries []model.ReorderEntry) *model.ReorderEntry {
	var found *model.ReorderEntry
	for i := range entries {
		e := &entries[i]
		if e.Received || e.IsCustom || e.ItemID != itemID {
			continue
		}
		if found == nil || e.UpdatedAt.After(found.UpdatedAt) {
			found = e
		}
	}
	return found
}

// chronologicalTop returns the active entry with the newest UpdatedAt.
func chronologicalTop(entries []model.ReorderEntry) *model.ReorderEntry {
	active := make([]*model.ReorderEntry, 0, len(entries))
	for i := range entries {
		if !entries[i].Received {
			active = append(active, &entries[i])
		}
	}
	if len(active) == 0 {
		return nil
	}
	sort.SliceStable(active, func(i, j int) bool {
		return active[i].UpdatedAt.After(active[j].UpdatedAt)
	})
	return active[0]
}

package engine

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/fernwood/restock/internal/catalog"
	"github.com/fernwood/restock/internal/model"
	"github.com/fernwood/restock/internal/scan"
)

// AddItem creates an entry for the catalog item, or adjusts the existing
// active one. Without overwrite an existing entry's quantity grows by qty
// (additive); with overwrite the quantity is replaced. An overwrite to
// quantity 0 deletes the entry — zero is never persisted as a visible row.
//
// Persistence failures are caught here, logged, and reported only through
// the returned boolean; the mutation is queued for remote retry on success.
func (e *Engine) AddItem(ctx context.Context, item *model.CatalogItem, qty int, snapshot *model.TeamData, actingUser string, overwrite bool) bool {
	if item == nil || qty < 0 {
		return false
	}

	err := e.do(ctx, func() error {
		existing, err := e.entries.GetActiveByItemID(item.ID)
		if err != nil {
			return err
		}
		now := time.Now().UTC()

		if existing == nil {
			if qty == 0 {
				// Nothing to create, nothing to delete.
				return nil
			}
			entry := &model.ReorderEntry{
				ID:             uuid.NewString(),
				ItemID:         item.ID,
				Quantity:       qty,
				Status:         model.StatusIncomplete,
				AddedBy:        actingUser,
				LastModifiedBy: actingUser,
				CreatedAt:      now,
				UpdatedAt:      now,
				TeamData:       snapshot,
			}
			if err := e.entries.PutQueued(entry); err != nil {
				return err
			}
			e.notify()
			return nil
		}

		newQty := existing.Quantity + qty
		if overwrite {
			newQty = qty
		}
		if newQty == 0 {
			if err := e.entries.DeleteQueued(existing.ID); err != nil {
				return err
			}
			e.notify()
			return nil
		}

		existing.Quantity = newQty
		existing.LastModifiedBy = actingUser
		existing.UpdatedAt = now
		if snapshot != nil {
			existing.TeamData = snapshot
		}
		if err := e.entries.PutQueued(existing); err != nil {
			return err
		}
		e.notify()
		return nil
	})
	if err != nil {
		e.logger.Error("add item", "item_id", item.ID, "error", err)
		return false
	}
	e.syncer.nudge()
	return true
}

// AddCustomItem creates a free-form entry with no catalog backing. The
// resolver skips these entries permanently; name and category live on the
// entry itself. An empty category is filled in by keyword matching.
func (e *Engine) AddCustomItem(ctx context.Context, name, category string, qty int, actingUser string) bool {
	name = strings.TrimSpace(name)
	if name == "" || qty <= 0 {
		return false
	}
	if category == "" {
		category = catalog.Categorize(name)
	}

	err := e.do(ctx, func() error {
		now := time.Now().UTC()
		entry := &model.ReorderEntry{
			ID:             uuid.NewString(),
			Quantity:       qty,
			Status:         model.StatusIncomplete,
			IsCustom:       true,
			ItemName:       name,
			ItemCategory:   category,
			AddedBy:        actingUser,
			LastModifiedBy: actingUser,
			CreatedAt:      now,
			UpdatedAt:      now,
		}
		if err := e.entries.PutQueued(entry); err != nil {
			return err
		}
		e.notify()
		return nil
	})
	if err != nil {
		e.logger.Error("add custom item", "name", name, "error", err)
		return false
	}
	e.syncer.nudge()
	return true
}

// RemoveItem deletes the entry locally right away and queues the remote
// delete; the local deletion is visible before remote confirmation.
func (e *Engine) RemoveItem(ctx context.Context, entryID string) bool {
	err := e.do(ctx, func() error {
		if err := e.entries.DeleteQueued(entryID); err != nil {
			return err
		}
		e.notify()
		return nil
	})
	if err != nil {
		e.logger.Error("remove item", "entry_id", entryID, "error", err)
		return false
	}
	e.syncer.nudge()
	return true
}

// MarkAsReceived moves an entry into its terminal received state. The row
// stays queryable as history; active views filter it out.
func (e *Engine) MarkAsReceived(ctx context.Context, entryID, actingUser string) bool {
	err := e.do(ctx, func() error {
		return e.markReceivedLocked(entryID, actingUser)
	})
	if err != nil {
		e.logger.Error("mark as received", "entry_id", entryID, "error", err)
		return false
	}
	e.syncer.nudge()
	return true
}

// markReceivedLocked must run on the mutation worker.
func (e *Engine) markReceivedLocked(entryID, actingUser string) error {
	entry, err := e.entries.Get(entryID)
	if err != nil {
		return err
	}
	if entry == nil || entry.Received {
		return nil
	}
	entry.Received = true
	entry.Status = model.StatusComplete
	entry.LastModifiedBy = actingUser
	entry.UpdatedAt = time.Now().UTC()
	if err := e.entries.PutQueued(entry); err != nil {
		return err
	}
	e.notify()
	return nil
}

// ToggleCompletion flips incomplete<->complete.
func (e *Engine) ToggleCompletion(ctx context.Context, entryID, actingUser string) bool {
	err := e.do(ctx, func() error {
		entry, err := e.entries.Get(entryID)
		if err != nil {
			return err
		}
		if entry == nil || entry.Received {
			return nil
		}
		if entry.Status == model.StatusComplete {
			entry.Status = model.StatusIncomplete
		} else {
			entry.Status = model.StatusComplete
		}
		entry.LastModifiedBy = actingUser
		entry.UpdatedAt = time.Now().UTC()
		if err := e.entries.PutQueued(entry); err != nil {
			return err
		}
		e.notify()
		return nil
	})
	if err != nil {
		e.logger.Error("toggle completion", "entry_id", entryID, "error", err)
		return false
	}
	e.syncer.nudge()
	return true
}

// MoveItemToTop rewrites the entry's timestamp to now. Quantity and status
// are untouched, which makes it the chronological top.
func (e *Engine) MoveItemToTop(ctx context.Context, entryID string, snapshot *model.TeamData, actingUser string) bool {
	err := e.do(ctx, func() error {
		entry, err := e.entries.Get(entryID)
		if err != nil {
			return err
		}
		if entry == nil || entry.Received {
			return nil
		}
		entry.LastModifiedBy = actingUser
		entry.UpdatedAt = time.Now().UTC()
		if snapshot != nil {
			entry.TeamData = snapshot
		}
		if err := e.entries.PutQueued(entry); err != nil {
			return err
		}
		e.notify()
		return nil
	})
	if err != nil {
		e.logger.Error("move item to top", "entry_id", entryID, "error", err)
		return false
	}
	e.syncer.nudge()
	return true
}

// Clear deletes every entry, local and (once the queue drains) remote.
func (e *Engine) Clear(ctx context.Context) bool {
	err := e.do(ctx, func() error {
		entries, err := e.entries.ListAll()
		if err != nil {
			return err
		}
		for i := range entries {
			if err := e.entries.DeleteQueued(entries[i].ID); err != nil {
				return err
			}
		}
		e.notify()
		return nil
	})
	if err != nil {
		e.logger.Error("clear list", "error", err)
		return false
	}
	e.syncer.nudge()
	return true
}

// ScanResult reports what a scan did. For an ambiguous barcode Candidates
// carries the matches and no mutation has happened; the caller disambiguates
// and calls ApplyScan with the chosen item.
type ScanResult struct {
	Action     scan.Action         `json:"action"`
	Entry      *model.ReorderEntry `json:"entry,omitempty"`
	Candidates []model.CatalogItem `json:"candidates,omitempty"`
}

// HandleScan resolves a barcode against the catalog cache and applies the
// classified transition. Zero matches returns scan.ErrNotFound and creates
// nothing; multiple matches returns the candidates with scan.ErrAmbiguous.
func (e *Engine) HandleScan(ctx context.Context, barcode, actingUser string) (*ScanResult, error) {
	matches, err := e.catalog.GetByBarcode(barcode)
	if err != nil {
		return nil, err
	}
	switch len(matches) {
	case 0:
		return nil, scan.ErrNotFound
	case 1:
		return e.ApplyScan(ctx, &matches[0], actingUser)
	default:
		return &ScanResult{Candidates: matches}, scan.ErrAmbiguous
	}
}

// ApplyScan runs the scan state machine for a single resolved catalog item.
func (e *Engine) ApplyScan(ctx context.Context, item *model.CatalogItem, actingUser string) (*ScanResult, error) {
	var result *ScanResult
	err := e.do(ctx, func() error {
		entries, err := e.entries.ListAll()
		if err != nil {
			return err
		}
		intent := scan.Classify(item.ID, entries)
		now := time.Now().UTC()

		switch intent.Action {
		case scan.ActionCreate:
			entry := &model.ReorderEntry{
				ID:             uuid.NewString(),
				ItemID:         item.ID,
				Quantity:       1,
				Status:         model.StatusIncomplete,
				AddedBy:        actingUser,
				LastModifiedBy: actingUser,
				CreatedAt:      now,
				UpdatedAt:      now,
			}
			if err := e.entries.PutQueued(entry); err != nil {
				return err
			}
			result = &ScanResult{Action: intent.Action, Entry: entry}

		case scan.ActionIncrement:
			entry := intent.Entry
			entry.Quantity++
			entry.LastModifiedBy = actingUser
			entry.UpdatedAt = now
			if err := e.entries.PutQueued(entry); err != nil {
				return err
			}
			result = &ScanResult{Action: intent.Action, Entry: entry}

		case scan.ActionMoveToTop:
			entry := intent.Entry
			entry.LastModifiedBy = actingUser
			entry.UpdatedAt = now
			if err := e.entries.PutQueued(entry); err != nil {
				return err
			}
			result = &ScanResult{Action: intent.Action, Entry: entry}

		case scan.ActionCompleteRescan:
			// Restocking after a completed reorder: the old entry becomes a
			// received history record and a fresh entry starts the cycle over.
			if err := e.markReceivedLocked(intent.Entry.ID, actingUser); err != nil {
				return err
			}
			fresh := &model.ReorderEntry{
				ID:             uuid.NewString(),
				ItemID:         item.ID,
				Quantity:       1,
				Status:         model.StatusIncomplete,
				AddedBy:        actingUser,
				LastModifiedBy: actingUser,
				CreatedAt:      now,
				UpdatedAt:      now,
			}
			if err := e.entries.PutQueued(fresh); err != nil {
				return err
			}
			result = &ScanResult{Action: intent.Action, Entry: fresh}
		}

		e.notify()
		return nil
	})
	if err != nil {
		e.logger.Error("apply scan", "item_id", item.ID, "error", err)
		return nil, err
	}
	e.syncer.nudge()
	return result, nil
}

package engine

import (
	"context"
	"errors"
	"fmt"

	"github.com/fernwood/restock/internal/model"
	"github.com/fernwood/restock/internal/remote"
)

// Initialize binds the engine to an authenticated identity and runs a
// one-time pull-and-reconcile. Re-initializing with the same user is a
// no-op. Initializing with a different user deterministically resets local
// state — lists belong to one user, they are never merged across accounts.
func (e *Engine) Initialize(ctx context.Context, userID string) error {
	var needsRefresh bool
	err := e.do(ctx, func() error {
		e.mu.Lock()
		current := e.userID
		e.mu.Unlock()

		if current == userID {
			return nil
		}
		if current != "" {
			if err := e.entries.DeleteAll(); err != nil {
				return fmt.Errorf("reset for user switch: %w", err)
			}
		}
		e.mu.Lock()
		e.userID = userID
		e.mu.Unlock()
		needsRefresh = true
		return nil
	})
	if err != nil {
		return err
	}
	if needsRefresh {
		return e.Refresh(ctx)
	}
	return nil
}

// Refresh forces a remote pull-and-reconcile cycle and then drains the sync
// queue. It returns when reconciliation completes or fails. A Refresh
// superseded by a newer one simply completes and is overwritten by the
// newer reconciliation; nothing is aborted mid-write.
func (e *Engine) Refresh(ctx context.Context) error {
	if !e.identity.IsAuthenticated() {
		// Local-only mode: nothing to reconcile, but let listeners re-read.
		return e.do(ctx, func() error {
			e.notify()
			return nil
		})
	}

	e.mu.RLock()
	userID := e.userID
	e.mu.RUnlock()
	if userID == "" {
		userID = e.identity.UserID()
	}

	remoteEntries, err := e.remote.PullList(ctx, userID)
	if err != nil {
		if !errors.Is(err, remote.ErrUnauthorized) {
			e.identity.SetOnline(false)
		}
		return fmt.Errorf("pull remote list: %w", err)
	}
	e.identity.SetOnline(true)

	if err := e.do(ctx, func() error {
		if err := e.reconcile(remoteEntries); err != nil {
			return err
		}
		e.notify()
		return nil
	}); err != nil {
		return err
	}

	e.syncer.drain(ctx)
	return nil
}

// reconcile merges a remote snapshot into local state. Policy: per-entry
// last-writer-wins on UpdatedAt. Remote-older loses to the local pending
// version; remote-only entries are inserted; local-only entries with
// pending ops are preserved for push, local-only entries without pending
// ops were deleted elsewhere and are removed. Whole-entry, not per-field —
// concurrent edits to the same entry from two devices can drop one side.
// Must run on the mutation worker.
func (e *Engine) reconcile(remoteEntries []model.ReorderEntry) error {
	local, err := e.entries.ListAll()
	if err != nil {
		return fmt.Errorf("list local entries: %w", err)
	}
	localByID := make(map[string]*model.ReorderEntry, len(local))
	for i := range local {
		localByID[local[i].ID] = &local[i]
	}

	remoteSeen := make(map[string]bool, len(remoteEntries))
	for i := range remoteEntries {
		r := &remoteEntries[i]
		remoteSeen[r.ID] = true

		l, ok := localByID[r.ID]
		if !ok {
			if r.Quantity == 0 {
				continue
			}
			// A queued local delete means the entry was removed here and the
			// push hasn't landed yet; re-inserting it would undo the delete.
			pendingDelete, err := e.queue.PendingDeleteFor(r.ID)
			if err != nil {
				return fmt.Errorf("check pending delete: %w", err)
			}
			if pendingDelete {
				continue
			}
			if err := e.entries.Put(r); err != nil {
				return fmt.Errorf("insert remote entry: %w", err)
			}
			continue
		}

		if !r.UpdatedAt.After(l.UpdatedAt) {
			// Local is as new or newer; the pending push will carry it up.
			continue
		}

		if r.Quantity == 0 {
			// Remote recorded a deletion.
			if err := e.entries.Delete(l.ID); err != nil {
				return fmt.Errorf("apply remote delete: %w", err)
			}
			if err := e.queue.DropFor(l.ID); err != nil {
				return fmt.Errorf("drop superseded ops: %w", err)
			}
			continue
		}

		if err := e.entries.Put(r); err != nil {
			return fmt.Errorf("apply remote entry: %w", err)
		}
		// The remote version superseded whatever we had queued.
		if err := e.queue.DropFor(l.ID); err != nil {
			return fmt.Errorf("drop superseded ops: %w", err)
		}
	}

	for id, l := range localByID {
		if remoteSeen[id] {
			continue
		}
		pending, err := e.queue.PendingFor(id)
		if err != nil {
			return fmt.Errorf("check pending: %w", err)
		}
		if pending {
			// Never pushed yet; keep it and let the drain publish it.
			continue
		}
		if err := e.entries.Delete(l.ID); err != nil {
			return fmt.Errorf("drop remotely-deleted entry: %w", err)
		}
	}

	return nil
}

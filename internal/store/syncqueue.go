package store

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/fernwood/restock/internal/model"
)

// SyncQueueStore holds mutations not yet confirmed by the remote list
// service. Queue depth is the engine's pendingCount.
type SyncQueueStore struct {
	db *sql.DB
}

func NewSyncQueueStore(db *sql.DB) *SyncQueueStore {
	return &SyncQueueStore{db: db}
}

const syncOpCols = `id, kind, entry_id, payload, attempts, created_at, updated_at`

func scanSyncOp(scanner interface{ Scan(...any) error }) (*model.SyncOp, error) {
	var op model.SyncOp
	var payload sql.NullString
	err := scanner.Scan(&op.ID, &op.Kind, &op.EntryID, &payload, &op.Attempts, &op.CreatedAt, &op.UpdatedAt)
	if err != nil {
		return nil, err
	}
	if payload.Valid {
		op.Payload = []byte(payload.String)
	}
	return &op, nil
}

// Pending returns queued ops oldest first, so same-entry operations replay
// in the order they were issued.
func (s *SyncQueueStore) Pending() ([]model.SyncOp, error) {
	rows, err := s.db.Query(`SELECT ` + syncOpCols + ` FROM sync_queue ORDER BY id ASC`)
	if err != nil {
		return nil, fmt.Errorf("list pending ops: %w", err)
	}
	defer rows.Close()

	var ops []model.SyncOp
	for rows.Next() {
		op, err := scanSyncOp(rows)
		if err != nil {
			return nil, fmt.Errorf("scan sync op: %w", err)
		}
		ops = append(ops, *op)
	}
	return ops, rows.Err()
}

// PendingFor reports whether the entry has any unconfirmed ops.
func (s *SyncQueueStore) PendingFor(entryID string) (bool, error) {
	var count int
	err := s.db.QueryRow(`SELECT COUNT(*) FROM sync_queue WHERE entry_id = ?`, entryID).Scan(&count)
	if err != nil {
		return false, fmt.Errorf("count pending for entry: %w", err)
	}
	return count > 0, nil
}

// PendingDeleteFor reports whether a delete op for the entry is still
// waiting to be pushed. Reconciliation uses this to keep an optimistic
// local delete visible when a remote snapshot still carries the entry.
func (s *SyncQueueStore) PendingDeleteFor(entryID string) (bool, error) {
	var count int
	err := s.db.QueryRow(
		`SELECT COUNT(*) FROM sync_queue WHERE entry_id = ? AND kind = ?`,
		entryID, model.SyncOpDelete,
	).Scan(&count)
	if err != nil {
		return false, fmt.Errorf("count pending deletes for entry: %w", err)
	}
	return count > 0, nil
}

func (s *SyncQueueStore) Count() (int, error) {
	var count int
	if err := s.db.QueryRow(`SELECT COUNT(*) FROM sync_queue`).Scan(&count); err != nil {
		return 0, fmt.Errorf("count pending ops: %w", err)
	}
	return count, nil
}

func (s *SyncQueueStore) MarkDone(id int64) error {
	if _, err := s.db.Exec(`DELETE FROM sync_queue WHERE id = ?`, id); err != nil {
		return fmt.Errorf("mark op done: %w", err)
	}
	return nil
}

// DropFor removes every queued op for an entry. Used when a newer remote
// version supersedes whatever was waiting to be pushed.
func (s *SyncQueueStore) DropFor(entryID string) error {
	if _, err := s.db.Exec(`DELETE FROM sync_queue WHERE entry_id = ?`, entryID); err != nil {
		return fmt.Errorf("drop ops for entry: %w", err)
	}
	return nil
}

// Bump records a failed push attempt.
func (s *SyncQueueStore) Bump(id int64) error {
	_, err := s.db.Exec(
		`UPDATE sync_queue SET attempts = attempts + 1, updated_at = ? WHERE id = ?`,
		time.Now().UTC(), id,
	)
	if err != nil {
		return fmt.Errorf("bump op: %w", err)
	}
	return nil
}

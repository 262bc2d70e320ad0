package store

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/fernwood/restock/internal/model"
)

// ReorderStore persists reorder entries. All writes are funneled through the
// sync engine's single mutation queue, so no row-level locking is needed
// here. Put is an idempotent upsert keyed on the entry id.
type ReorderStore struct {
	db *sql.DB
}

func NewReorderStore(db *sql.DB) *ReorderStore {
	return &ReorderStore{db: db}
}

const entryCols = `id, item_id, quantity, status, received, is_custom, item_name, item_category, added_by, last_modified_by, created_at, updated_at, team_data_json`

func scanEntry(scanner interface{ Scan(...any) error }) (*model.ReorderEntry, error) {
	var e model.ReorderEntry
	var received, isCustom int
	var teamJSON sql.NullString

	err := scanner.Scan(
		&e.ID, &e.ItemID, &e.Quantity, &e.Status, &received, &isCustom,
		&e.ItemName, &e.ItemCategory, &e.AddedBy, &e.LastModifiedBy,
		&e.CreatedAt, &e.UpdatedAt, &teamJSON,
	)
	if err != nil {
		return nil, err
	}

	e.Received = received != 0
	e.IsCustom = isCustom != 0
	if teamJSON.Valid && teamJSON.String != "" {
		var td model.TeamData
		// A corrupt snapshot degrades to "no snapshot" rather than failing
		// the whole list.
		if err := json.Unmarshal([]byte(teamJSON.String), &td); err == nil {
			e.TeamData = &td
		}
	}
	return &e, nil
}

func (s *ReorderStore) Get(id string) (*model.ReorderEntry, error) {
	row := s.db.QueryRow(`SELECT `+entryCols+` FROM reorder_entries WHERE id = ?`, id)
	e, err := scanEntry(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get entry: %w", err)
	}
	return e, nil
}

// GetActiveByItemID returns the non-received entry for a catalog item, or
// nil. Received entries are historical and never matched by scans.
func (s *ReorderStore) GetActiveByItemID(itemID string) (*model.ReorderEntry, error) {
	row := s.db.QueryRow(
		`SELECT `+entryCols+` FROM reorder_entries WHERE item_id = ? AND received = 0 ORDER BY updated_at DESC LIMIT 1`,
		itemID,
	)
	e, err := scanEntry(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get entry by item: %w", err)
	}
	return e, nil
}

// ListAll returns every entry, received ones included, newest first.
func (s *ReorderStore) ListAll() ([]model.ReorderEntry, error) {
	rows, err := s.db.Query(`SELECT ` + entryCols + ` FROM reorder_entries ORDER BY updated_at DESC, id ASC`)
	if err != nil {
		return nil, fmt.Errorf("list entries: %w", err)
	}
	defer rows.Close()

	var entries []model.ReorderEntry
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, fmt.Errorf("scan entry: %w", err)
		}
		entries = append(entries, *e)
	}
	return entries, rows.Err()
}

// ListActive returns non-received entries, newest first.
func (s *ReorderStore) ListActive() ([]model.ReorderEntry, error) {
	rows, err := s.db.Query(`SELECT ` + entryCols + ` FROM reorder_entries WHERE received = 0 ORDER BY updated_at DESC, id ASC`)
	if err != nil {
		return nil, fmt.Errorf("list active entries: %w", err)
	}
	defer rows.Close()

	var entries []model.ReorderEntry
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, fmt.Errorf("scan entry: %w", err)
		}
		entries = append(entries, *e)
	}
	return entries, rows.Err()
}

func marshalTeamData(td *model.TeamData) (sql.NullString, error) {
	if td == nil {
		return sql.NullString{}, nil
	}
	data, err := json.Marshal(td)
	if err != nil {
		return sql.NullString{}, fmt.Errorf("marshal team data: %w", err)
	}
	return sql.NullString{String: string(data), Valid: true}, nil
}

// Put upserts an entry without touching the sync queue. Used for
// remote-originated writes during reconciliation.
func (s *ReorderStore) Put(e *model.ReorderEntry) error {
	teamJSON, err := marshalTeamData(e.TeamData)
	if err != nil {
		return err
	}
	_, err = s.db.Exec(upsertEntrySQL,
		e.ID, e.ItemID, e.Quantity, e.Status, boolInt(e.Received), boolInt(e.IsCustom),
		e.ItemName, e.ItemCategory, e.AddedBy, e.LastModifiedBy,
		e.CreatedAt, e.UpdatedAt, teamJSON,
	)
	if err != nil {
		return fmt.Errorf("put entry: %w", err)
	}
	return nil
}

const upsertEntrySQL = `INSERT INTO reorder_entries (` + entryCols + `)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
ON CONFLICT(id) DO UPDATE SET
	item_id = excluded.item_id,
	quantity = excluded.quantity,
	status = excluded.status,
	received = excluded.received,
	is_custom = excluded.is_custom,
	item_name = excluded.item_name,
	item_category = excluded.item_category,
	added_by = excluded.added_by,
	last_modified_by = excluded.last_modified_by,
	created_at = excluded.created_at,
	updated_at = excluded.updated_at,
	team_data_json = excluded.team_data_json`

// PutQueued upserts an entry and records a put sync op in one transaction,
// so a crash between the two can't drop the remote push.
func (s *ReorderStore) PutQueued(e *model.ReorderEntry) error {
	teamJSON, err := marshalTeamData(e.TeamData)
	if err != nil {
		return err
	}
	payload, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("marshal sync payload: %w", err)
	}

	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.Exec(upsertEntrySQL,
		e.ID, e.ItemID, e.Quantity, e.Status, boolInt(e.Received), boolInt(e.IsCustom),
		e.ItemName, e.ItemCategory, e.AddedBy, e.LastModifiedBy,
		e.CreatedAt, e.UpdatedAt, teamJSON,
	); err != nil {
		return fmt.Errorf("put entry: %w", err)
	}

	// Collapse older queued puts for the same entry; the latest payload
	// supersedes them.
	if _, err := tx.Exec(`DELETE FROM sync_queue WHERE entry_id = ? AND kind = 'put'`, e.ID); err != nil {
		return fmt.Errorf("collapse queue: %w", err)
	}
	if _, err := tx.Exec(
		`INSERT INTO sync_queue (kind, entry_id, payload, updated_at) VALUES ('put', ?, ?, ?)`,
		e.ID, string(payload), time.Now().UTC(),
	); err != nil {
		return fmt.Errorf("enqueue put: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

// Delete removes an entry without touching the sync queue.
func (s *ReorderStore) Delete(id string) error {
	if _, err := s.db.Exec(`DELETE FROM reorder_entries WHERE id = ?`, id); err != nil {
		return fmt.Errorf("delete entry: %w", err)
	}
	return nil
}

// DeleteQueued removes an entry locally and records a delete sync op in one
// transaction. Pending puts for the entry are dropped since the delete
// supersedes them.
func (s *ReorderStore) DeleteQueued(id string) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.Exec(`DELETE FROM reorder_entries WHERE id = ?`, id); err != nil {
		return fmt.Errorf("delete entry: %w", err)
	}
	if _, err := tx.Exec(`DELETE FROM sync_queue WHERE entry_id = ?`, id); err != nil {
		return fmt.Errorf("collapse queue: %w", err)
	}
	if _, err := tx.Exec(
		`INSERT INTO sync_queue (kind, entry_id, updated_at) VALUES ('delete', ?, ?)`,
		id, time.Now().UTC(),
	); err != nil {
		return fmt.Errorf("enqueue delete: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

// DeleteAll clears the list and the sync queue. Used by Clear and when the
// engine is re-initialized for a different user.
func (s *ReorderStore) DeleteAll() error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.Exec(`DELETE FROM reorder_entries`); err != nil {
		return fmt.Errorf("delete entries: %w", err)
	}
	if _, err := tx.Exec(`DELETE FROM sync_queue`); err != nil {
		return fmt.Errorf("delete queue: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

package store

import (
	"database/sql"
	"fmt"

	"github.com/fernwood/restock/internal/model"
)

// TeamDataStore caches vendor/cost records fetched from the team-data
// service. A row with an empty vendor is a negative-cache entry; FetchedAt
// lets the engine expire both kinds.
type TeamDataStore struct {
	db *sql.DB
}

func NewTeamDataStore(db *sql.DB) *TeamDataStore {
	return &TeamDataStore{db: db}
}

func (s *TeamDataStore) Get(itemID string) (*model.TeamData, error) {
	row := s.db.QueryRow(
		`SELECT item_id, vendor, cost_cents, discontinued, notes, fetched_at FROM team_data WHERE item_id = ?`,
		itemID,
	)
	var td model.TeamData
	var discontinued int
	err := row.Scan(&td.ItemID, &td.Vendor, &td.CostCents, &discontinued, &td.Notes, &td.FetchedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get team data: %w", err)
	}
	td.Discontinued = discontinued != 0
	return &td, nil
}

func (s *TeamDataStore) Upsert(td *model.TeamData) error {
	_, err := s.db.Exec(
		`INSERT INTO team_data (item_id, vendor, cost_cents, discontinued, notes, fetched_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(item_id) DO UPDATE SET
			vendor = excluded.vendor,
			cost_cents = excluded.cost_cents,
			discontinued = excluded.discontinued,
			notes = excluded.notes,
			fetched_at = excluded.fetched_at`,
		td.ItemID, td.Vendor, td.CostCents, boolInt(td.Discontinued), td.Notes, td.FetchedAt,
	)
	if err != nil {
		return fmt.Errorf("upsert team data: %w", err)
	}
	return nil
}

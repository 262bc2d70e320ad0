package model

import "time"

// TeamData is vendor and cost information entered by the team for a catalog
// item. It lives in a separate remote service and is cached locally; a row
// with an empty Vendor and a recent FetchedAt acts as a negative-cache entry
// so repeated failed lookups don't hammer the service.
type TeamData struct {
	ItemID       string    `json:"item_id"`
	Vendor       string    `json:"vendor"`
	CostCents    int64     `json:"cost_cents"`
	Discontinued bool      `json:"discontinued"`
	Notes        string    `json:"notes,omitempty"`
	FetchedAt    time.Time `json:"fetched_at"`
}

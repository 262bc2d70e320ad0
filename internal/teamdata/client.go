// Package teamdata fetches vendor/cost records from the team-data service.
package teamdata

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/fernwood/restock/internal/model"
)

// Config holds team-data service connection settings.
type Config struct {
	BaseURL string
	Timeout time.Duration
}

type Client struct {
	cfg        Config
	httpClient *http.Client
}

func NewClient(cfg Config) *Client {
	if cfg.Timeout == 0 {
		cfg.Timeout = 10 * time.Second
	}
	return &Client{
		cfg:        cfg,
		httpClient: &http.Client{Timeout: cfg.Timeout},
	}
}

type teamDataResponse struct {
	Vendor       string `json:"vendor"`
	CostCents    int64  `json:"cost_cents"`
	Discontinued bool   `json:"discontinued"`
	Notes        string `json:"notes"`
}

// Fetch returns the team-data record for the item, or (nil, nil) when the
// service has no record. The engine caches both outcomes.
func (c *Client) Fetch(ctx context.Context, itemID string) (*model.TeamData, error) {
	endpoint := fmt.Sprintf("%s/v1/team-data/%s", c.cfg.BaseURL, url.PathEscape(itemID))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch team data: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return nil, nil
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("fetch team data: status %d", resp.StatusCode)
	}

	var tr teamDataResponse
	if err := json.NewDecoder(resp.Body).Decode(&tr); err != nil {
		return nil, fmt.Errorf("decode team data: %w", err)
	}
	return &model.TeamData{
		ItemID:       itemID,
		Vendor:       tr.Vendor,
		CostCents:    tr.CostCents,
		Discontinued: tr.Discontinued,
		Notes:        tr.Notes,
		FetchedAt:    time.Now().UTC(),
	}, nil
}

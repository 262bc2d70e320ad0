// Package remote talks to the multi-device list service. The engine treats
// it as unreliable: every call can fail and the caller falls back to the
// local store and the sync queue.
package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/fernwood/restock/internal/model"
)

// ErrUnauthorized is returned when the list service rejects the device
// token. The engine downgrades to local-only persistence until the identity
// refreshes.
var ErrUnauthorized = errors.New("list service rejected credentials")

// TokenSource supplies the current bearer token for the device session.
type TokenSource interface {
	Token() (string, error)
}

// Config holds list service connection settings.
type Config struct {
	BaseURL string
	Timeout time.Duration
}

type Client struct {
	cfg        Config
	httpClient *http.Client
	tokens     TokenSource
}

func NewClient(cfg Config, tokens TokenSource) *Client {
	if cfg.Timeout == 0 {
		cfg.Timeout = 10 * time.Second
	}
	return &Client{
		cfg:        cfg,
		httpClient: &http.Client{Timeout: cfg.Timeout},
		tokens:     tokens,
	}
}

// PullList fetches the full remote list for the user.
func (c *Client) PullList(ctx context.Context, userID string) ([]model.ReorderEntry, error) {
	endpoint := fmt.Sprintf("%s/v1/lists/%s", c.cfg.BaseURL, url.PathEscape(userID))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	if err := c.authorize(req); err != nil {
		return nil, err
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("pull list: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden {
		return nil, ErrUnauthorized
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("pull list: status %d", resp.StatusCode)
	}

	var entries []model.ReorderEntry
	if err := json.NewDecoder(resp.Body).Decode(&entries); err != nil {
		return nil, fmt.Errorf("decode list: %w", err)
	}
	return entries, nil
}

// PushEntry upserts one entry on the remote list.
func (c *Client) PushEntry(ctx context.Context, userID string, entry *model.ReorderEntry) error {
	body, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("marshal entry: %w", err)
	}

	endpoint := fmt.Sprintf("%s/v1/lists/%s/entries/%s",
		c.cfg.BaseURL, url.PathEscape(userID), url.PathEscape(entry.ID))
	req, err := http.NewRequestWithContext(ctx, http.MethodPut, endpoint, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if err := c.authorize(req); err != nil {
		return err
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("push entry: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden {
		return ErrUnauthorized
	}
	if resp.StatusCode >= 400 {
		return fmt.Errorf("push entry: status %d", resp.StatusCode)
	}
	return nil
}

// DeleteEntry removes one entry from the remote list. A 404 counts as
// success: the entry is gone either way.
func (c *Client) DeleteEntry(ctx context.Context, userID, entryID string) error {
	endpoint := fmt.Sprintf("%s/v1/lists/%s/entries/%s",
		c.cfg.BaseURL, url.PathEscape(userID), url.PathEscape(entryID))
	req, err := http.NewRequestWithContext(ctx, http.MethodDelete, endpoint, nil)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	if err := c.authorize(req); err != nil {
		return err
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("delete entry: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden {
		return ErrUnauthorized
	}
	if resp.StatusCode >= 400 && resp.StatusCode != http.StatusNotFound {
		return fmt.Errorf("delete entry: status %d", resp.StatusCode)
	}
	return nil
}

func (c *Client) authorize(req *http.Request) error {
	token, err := c.tokens.Token()
	if err != nil {
		return fmt.Errorf("get token: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+token)
	return nil
}

package teamdata

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestFetchFound(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/team-data/item-1" {
			t.Errorf("path = %s", r.URL.Path)
		}
		json.NewEncoder(w).Encode(map[string]any{
			"vendor":       "Acme Distributing",
			"cost_cents":   1250,
			"discontinued": false,
			"notes":        "case of 24",
		})
	}))
	defer srv.Close()

	c := NewClient(Config{BaseURL: srv.URL})
	td, err := c.Fetch(context.Background(), "item-1")
	if err != nil {
		t.Fatalf("fetch: %v", err)
	}
	if td.Vendor != "Acme Distributing" || td.CostCents != 1250 || td.Notes != "case of 24" {
		t.Errorf("td = %+v", td)
	}
	if td.ItemID != "item-1" {
		t.Errorf("item id = %q", td.ItemID)
	}
	if td.FetchedAt.IsZero() {
		t.Error("FetchedAt should be stamped")
	}
}

func TestFetchNotFound(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	c := NewClient(Config{BaseURL: srv.URL})
	td, err := c.Fetch(context.Background(), "unknown")
	if err != nil {
		t.Fatalf("404 is a clean miss, got %v", err)
	}
	if td != nil {
		t.Errorf("expected nil, got %+v", td)
	}
}

func TestFetchServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	c := NewClient(Config{BaseURL: srv.URL})
	if _, err := c.Fetch(context.Background(), "item-1"); err == nil {
		t.Error("expected error on 502")
	}
}

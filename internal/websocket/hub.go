// Package websocket pushes reorder-list changes to connected devices so
// every screen on the floor stays current without polling.
package websocket

import (
	"encoding/json"
	"log/slog"
	"sync"

	"github.com/fernwood/restock/internal/model"
)

// Message is a real-time update broadcast to all connected devices.
type Message struct {
	Type  string                     `json:"type"`
	Items []model.DisplayReorderItem `json:"items,omitempty"`
	Extra map[string]any             `json:"extra,omitempty"`
}

// ListUpdated wraps the full resolved list for broadcast. Sending the whole
// list keeps clients trivially consistent; expected sizes are small.
func ListUpdated(items []model.DisplayReorderItem) Message {
	return Message{Type: "list_updated", Items: items}
}

// SyncStatusChanged reports connectivity and backlog changes.
func SyncStatusChanged(extra map[string]any) Message {
	return Message{Type: "sync_status", Extra: extra}
}

// Hub maintains the set of active WebSocket clients and broadcasts messages.
type Hub struct {
	mu      sync.RWMutex
	clients map[*Client]struct{}
	logger  *slog.Logger
}

func NewHub(logger *slog.Logger) *Hub {
	return &Hub{
		clients: make(map[*Client]struct{}),
		logger:  logger,
	}
}

// Register adds a client to the hub.
func (h *Hub) Register(c *Client) {
	h.mu.Lock()
	h.clients[c] = struct{}{}
	h.mu.Unlock()
}

// Unregister removes a client from the hub and closes its send channel.
func (h *Hub) Unregister(c *Client) {
	h.mu.Lock()
	if _, ok := h.clients[c]; ok {
		delete(h.clients, c)
		close(c.send)
	}
	h.mu.Unlock()
}

// Broadcast sends a message to all connected clients.
func (h *Hub) Broadcast(msg Message) {
	data, err := json.Marshal(msg)
	if err != nil {
		h.logger.Error("marshal broadcast", "error", err)
		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()

	for c := range h.clients {
		select {
		case c.send <- data:
		default:
			// Client buffer full — drop message to avoid blocking
		}
	}
}

// ClientCount returns the number of connected clients.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

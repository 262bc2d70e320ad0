package websocket

import (
	"log/slog"
	"net/http"

	ws "github.com/coder/websocket"
)

// HandleWebSocket returns an HTTP handler that upgrades connections to
// WebSocket and runs them as Hub clients. Devices may identify themselves
// with a ?device= query parameter.
func HandleWebSocket(hub *Hub, logger *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		conn, err := ws.Accept(w, r, &ws.AcceptOptions{
			InsecureSkipVerify: true, // Paired devices connect over the store LAN
		})
		if err != nil {
			logger.Warn("websocket accept", "error", err)
			return
		}

		client := NewClient(hub, conn, r.URL.Query().Get("device"))
		logger.Info("device connected", "device", client.device, "remote", r.RemoteAddr)
		client.Run(r.Context())
		logger.Info("device disconnected", "device", client.device)
	}
}

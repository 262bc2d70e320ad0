package websocket

import (
	"context"
	"time"

	ws "github.com/coder/websocket"
)

const (
	sendBufferSize = 16
	pingInterval   = 30 * time.Second
	writeTimeout   = 5 * time.Second
)

// Client is one paired device's connection to the hub.
type Client struct {
	hub    *Hub
	conn   *ws.Conn
	device string
	send   chan []byte
}

// NewClient ties a connection to the hub. The device label is informational,
// used only in logs.
func NewClient(hub *Hub, conn *ws.Conn, device string) *Client {
	if device == "" {
		device = "unnamed"
	}
	return &Client{
		hub:    hub,
		conn:   conn,
		device: device,
		send:   make(chan []byte, sendBufferSize),
	}
}

// Run registers the client and pumps messages until the connection drops,
// then unregisters.
func (c *Client) Run(ctx context.Context) {
	c.hub.Register(c)
	defer c.hub.Unregister(c)

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	go c.writeLoop(ctx)
	c.readLoop(ctx)
}

// readLoop discards inbound frames; devices only listen. A read error means
// the connection is gone.
func (c *Client) readLoop(ctx context.Context) {
	for {
		if _, _, err := c.conn.Read(ctx); err != nil {
			return
		}
	}
}

// writeLoop drains the send channel with a per-write deadline and pings
// between updates so dead connections get reaped.
func (c *Client) writeLoop(ctx context.Context) {
	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()

	for {
		select {
		case msg, ok := <-c.send:
			if !ok {
				c.conn.Close(ws.StatusNormalClosure, "hub shutdown")
				return
			}
			if err := c.write(ctx, msg); err != nil {
				return
			}
		case <-ticker.C:
			if err := c.conn.Ping(ctx); err != nil {
				return
			}
		case <-ctx.Done():
			return
		}
	}
}

func (c *Client) write(ctx context.Context, msg []byte) error {
	ctx, cancel := context.WithTimeout(ctx, writeTimeout)
	defer cancel()
	return c.conn.Write(ctx, ws.MessageText, msg)
}

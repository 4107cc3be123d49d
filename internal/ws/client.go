package ws

import (
	"log/slog"
	"time"

	"github.com/gorilla/websocket"
)

// writeWait bounds how long one slow subscriber can stall the hub's loop.
const writeWait = 10 * time.Second

// Client is one websocket subscriber on the event feed, scoped to the
// server it subscribed for.
type Client struct {
	conn     *websocket.Conn
	serverID string
	log      *slog.Logger
}

// NewClient wraps an upgraded connection for the event feed.
func NewClient(conn *websocket.Conn, serverID string, logger *slog.Logger) *Client {
	return &Client{
		conn:     conn,
		serverID: serverID,
		log:      logger.With("component", "ws", "server_id", serverID),
	}
}

// Send writes one event payload, dropping the connection on failure so the
// hub evicts the subscription.
func (c *Client) Send(payload []byte) error {
	_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
	if err := c.conn.WriteMessage(websocket.TextMessage, payload); err != nil {
		c.log.Warn("event feed send failed", "error", err)
		_ = c.conn.Close()
		return err
	}
	return nil
}

// Close terminates the connection.
func (c *Client) Close() {
	_ = c.conn.Close()
}

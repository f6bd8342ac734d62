package server

import (
	"log/slog"
	"sync"
	"time"

	"github.com/NicolasHaas/klaxon/pkg/protocol"

	"github.com/gorilla/websocket"
)

const (
	sendBufferSize = 64
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = 54 * time.Second
)

// client is one websocket connection. A connection starts anonymous and
// becomes validated once its owner presents a valid token.
type client struct {
	id   string
	conn *websocket.Conn
	send chan []byte
	addr string

	mu     sync.Mutex
	userID string // empty until validated
}

func newClient(id string, conn *websocket.Conn, addr string) *client {
	if conn != nil {
		conn.SetReadLimit(protocol.MaxFrameSize)
	}
	return &client{
		id:   id,
		conn: conn,
		send: make(chan []byte, sendBufferSize),
		addr: addr,
	}
}

// bind marks the connection as belonging to a user.
func (c *client) bind(userID string) {
	c.mu.Lock()
	c.userID = userID
	c.mu.Unlock()
}

// user returns the bound user ID, or "" for an anonymous connection.
func (c *client) user() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.userID
}

func (c *client) validated() bool {
	return c.user() != ""
}

// enqueue hands a raw frame to the write pump without blocking. A client
// whose buffer is full is too slow to keep up and loses the frame.
func (c *client) enqueue(raw []byte) bool {
	select {
	case c.send <- raw:
		return true
	default:
		slog.Warn("send buffer full, dropping frame", "conn", c.id, "remote", c.addr)
		return false
	}
}

// sendEvent encodes and enqueues one frame for this connection.
func (c *client) sendEvent(event string, v any) {
	raw, err := protocol.Encode(event, v)
	if err != nil {
		slog.Error("encode frame failed", "event", event, "err", err)
		return
	}
	c.enqueue(raw)
}

// readPump reads frames off the websocket and dispatches them until the
// connection dies. It runs once per connection.
func (c *client) readPump(h *Hub) {
	defer func() {
		h.Detach(c)
		_ = c.conn.Close()
	}()

	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, raw, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err,
				websocket.CloseNormalClosure,
				websocket.CloseGoingAway,
				websocket.CloseAbnormalClosure) {
				slog.Warn("websocket read error", "conn", c.id, "remote", c.addr, "err", err)
			}
			return
		}

		frame, err := protocol.Decode(raw)
		if err != nil {
			slog.Debug("dropping malformed frame", "conn", c.id, "err", err)
			continue
		}
		h.Dispatch(c, frame)
	}
}

// writePump drains the send channel onto the websocket and keeps the
// connection alive with pings.
func (c *client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()

	for {
		select {
		case raw, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, raw); err != nil {
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

package server

import (
	"fmt"
	"log/slog"
	"net/http"
	"sync"

	"github.com/NicolasHaas/klaxon/pkg/model"
	"github.com/NicolasHaas/klaxon/pkg/protocol"
	"github.com/NicolasHaas/klaxon/pkg/repo"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

type eventHandler func(c *client, f *protocol.Frame)

// Hub owns all websocket connections and routes their frames to event
// handlers.
type Hub struct {
	users    *repo.Users
	sessions *repo.Sessions
	catalog  *repo.Catalog
	presence *PresenceTracker
	metrics  *Metrics

	mu      sync.RWMutex
	clients map[string]*client // connID -> client

	handlers map[string]eventHandler
	upgrader websocket.Upgrader
}

// NewHub creates a hub wired to the given repositories.
func NewHub(users *repo.Users, sessions *repo.Sessions, catalog *repo.Catalog, metrics *Metrics) *Hub {
	h := &Hub{
		users:    users,
		sessions: sessions,
		catalog:  catalog,
		presence: NewPresenceTracker(),
		metrics:  metrics,
		clients:  make(map[string]*client),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
		},
	}
	h.handlers = map[string]eventHandler{
		protocol.EventValidate:       h.handleValidate,
		protocol.EventSendAlert:      h.handleSendAlert,
		protocol.EventGetData:        h.handleGetData,
		protocol.EventGetAlerts:      h.handleGetAlerts,
		protocol.EventGetOnlineUsers: h.handleGetOnlineUsers,
		protocol.EventChangePassword: h.handleChangePassword,
		protocol.EventGetUserProfile: h.handleGetUserProfile,
		protocol.EventCreateUser:     h.handleCreateUser,
		protocol.EventEditUser:       h.handleEditUser,
	}
	return h
}

// Presence returns the presence tracker.
func (h *Hub) Presence() *PresenceTracker {
	return h.presence
}

// ServeWS upgrades an HTTP request to a websocket connection and runs
// its pumps until it closes.
func (h *Hub) ServeWS(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		slog.Warn("websocket upgrade failed", "remote", r.RemoteAddr, "err", err)
		return
	}

	c := newClient(uuid.NewString(), conn, r.RemoteAddr)
	h.Attach(c)

	go c.writePump()
	c.readPump(h)
}

// Attach registers a connection with the hub.
func (h *Hub) Attach(c *client) {
	h.mu.Lock()
	h.clients[c.id] = c
	h.mu.Unlock()

	h.metrics.TotalConnections.Add(1)
	h.metrics.ActiveConnections.Add(1)
	slog.Debug("connection attached", "conn", c.id, "remote", c.addr)
}

// Detach removes a connection. A validated connection drops out of the
// presence list and everyone still connected learns about it.
func (h *Hub) Detach(c *client) {
	h.mu.Lock()
	_, known := h.clients[c.id]
	delete(h.clients, c.id)
	h.mu.Unlock()
	if !known {
		return
	}

	h.metrics.ActiveConnections.Add(-1)
	h.metrics.TotalDisconnects.Add(1)

	if _, bound := h.presence.Unbind(c.id); bound {
		if userID := c.user(); userID != "" {
			if err := h.users.Touch(userID, model.FieldLastDisconnect); err != nil {
				slog.Error("stamp last_disconnect failed", "user", userID, "err", err)
			}
		}
		h.broadcastPresence()
	}
	slog.Debug("connection detached", "conn", c.id, "remote", c.addr)
}

// Dispatch routes one decoded frame to its event handler.
func (h *Hub) Dispatch(c *client, f *protocol.Frame) {
	handler, ok := h.handlers[f.Event]
	if !ok {
		slog.Debug("unknown event", "conn", c.id, "event", f.Event)
		return
	}
	handler(c, f)
}

// resolve maps a token to the user behind it. It returns (nil, nil) for
// a missing, unknown, or superseded token.
func (h *Hub) resolve(token string) (*model.User, error) {
	if token == "" {
		return nil, nil
	}
	userID, err := h.sessions.UserID(token)
	if err != nil {
		return nil, fmt.Errorf("server: resolve token: %w", err)
	}
	if userID == "" {
		return nil, nil
	}
	u, err := h.users.Get(userID)
	if err != nil {
		return nil, fmt.Errorf("server: resolve token: %w", err)
	}
	if u == nil || u.Token != token {
		// A leftover session whose token has been rotated away.
		return nil, nil
	}
	return u, nil
}

// authorize resolves a token and tells the caller to log in again when
// it does not hold. The returned user is nil when the token is invalid.
func (h *Hub) authorize(c *client, token string) *model.User {
	u, err := h.resolve(token)
	if err != nil {
		slog.Error("token resolution failed", "conn", c.id, "err", err)
		c.sendEvent(protocol.EventReauthenticate, nil)
		return nil
	}
	if u == nil {
		h.metrics.FailedValidates.Add(1)
		c.sendEvent(protocol.EventReauthenticate, nil)
		return nil
	}
	return u
}

// broadcastValidated fans a frame out to every validated connection.
func (h *Hub) broadcastValidated(event string, v any) {
	raw, err := protocol.Encode(event, v)
	if err != nil {
		slog.Error("encode broadcast failed", "event", event, "err", err)
		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()
	for _, c := range h.clients {
		if c.validated() {
			c.enqueue(raw)
		}
	}
}

// broadcastPresence pushes the current online users list to everyone.
func (h *Hub) broadcastPresence() {
	h.broadcastValidated(protocol.EventOnlineUsersList, h.presence.Snapshot())
}

// ClientCount returns the number of attached connections.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

package server

import (
	"sort"
	"sync"

	"github.com/NicolasHaas/klaxon/pkg/model"
)

// PresenceTracker maps validated connections to the user behind them.
// Presence is per connection, so a user logged in twice appears twice.
type PresenceTracker struct {
	mu    sync.RWMutex
	conns map[string]model.Presence // connID -> presence
}

// NewPresenceTracker creates an empty presence tracker.
func NewPresenceTracker() *PresenceTracker {
	return &PresenceTracker{
		conns: make(map[string]model.Presence),
	}
}

// Bind records the user behind a connection. Rebinding the same
// connection replaces the previous entry.
func (pt *PresenceTracker) Bind(connID string, p model.Presence) {
	pt.mu.Lock()
	defer pt.mu.Unlock()
	pt.conns[connID] = p
}

// Unbind drops a connection's presence entry. Unbinding a connection
// that was never bound is a no-op.
func (pt *PresenceTracker) Unbind(connID string) (model.Presence, bool) {
	pt.mu.Lock()
	defer pt.mu.Unlock()
	p, ok := pt.conns[connID]
	delete(pt.conns, connID)
	return p, ok
}

// Get returns the presence bound to a connection.
func (pt *PresenceTracker) Get(connID string) (model.Presence, bool) {
	pt.mu.RLock()
	defer pt.mu.RUnlock()
	p, ok := pt.conns[connID]
	return p, ok
}

// Snapshot returns all presence entries ordered by user ID.
func (pt *PresenceTracker) Snapshot() []model.Presence {
	pt.mu.RLock()
	defer pt.mu.RUnlock()
	result := make([]model.Presence, 0, len(pt.conns))
	for _, p := range pt.conns {
		result = append(result, p)
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].UserID < result[j].UserID
	})
	return result
}

// Count returns the number of bound connections.
func (pt *PresenceTracker) Count() int {
	pt.mu.RLock()
	defer pt.mu.RUnlock()
	return len(pt.conns)
}

package repo

import (
	"fmt"

	"github.com/NicolasHaas/klaxon/pkg/model"
	"github.com/NicolasHaas/klaxon/pkg/store"
)

// Sessions is the active-session table: an O(1) token -> user id mapping.
// Entries are created at login and destroyed at logout or when superseded
// by a newer login for the same user.
type Sessions struct {
	b store.Backend
}

// NewSessions creates a session store over the given backend.
func NewSessions(b store.Backend) *Sessions {
	return &Sessions{b: b}
}

// Create records the session token for a user.
func (s *Sessions) Create(token, userID string) error {
	if token == "" || userID == "" {
		return fmt.Errorf("repo: create session: token and user id required")
	}
	if err := s.b.Set(token, model.Record{"user_id": userID}); err != nil {
		return fmt.Errorf("repo: create session: %w", err)
	}
	return nil
}

// UserID resolves a token to its user id. Returns ("", nil) for unknown
// tokens.
func (s *Sessions) UserID(token string) (string, error) {
	if token == "" {
		return "", nil
	}
	rec, err := s.b.Get(token)
	if err != nil {
		return "", fmt.Errorf("repo: lookup session: %w", err)
	}
	if rec == nil {
		return "", nil
	}
	return rec.String("user_id"), nil
}

// Remove destroys a session. Unknown tokens are a harmless no-op.
func (s *Sessions) Remove(token string) error {
	if token == "" {
		return nil
	}
	if err := s.b.Remove(token); err != nil {
		return fmt.Errorf("repo: remove session: %w", err)
	}
	return nil
}

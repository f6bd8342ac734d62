// Package repo builds the Klaxon domain repositories (users, sessions,
// reference data) on top of the pluggable store backends.
package repo

import (
	"fmt"
	"sync"
	"time"

	"github.com/NicolasHaas/klaxon/pkg/crypto"
	"github.com/NicolasHaas/klaxon/pkg/model"
	"github.com/NicolasHaas/klaxon/pkg/store"
)

// Users owns the user records: credentials, role, profile, and the
// currently active session token.
type Users struct {
	// mu serialises read-modify-write sequences that span more than one
	// backend operation (create, edit). Single-record operations rely on
	// the backend's own per-key atomicity.
	mu sync.Mutex
	b  store.Backend
}

// NewUsers creates a user repository over the given backend.
func NewUsers(b store.Backend) *Users {
	return &Users{b: b}
}

// Get retrieves a user by id. Returns (nil, nil) if not found.
func (r *Users) Get(id string) (*model.User, error) {
	rec, err := r.b.Get(id)
	if err != nil {
		return nil, fmt.Errorf("repo: get user: %w", err)
	}
	if rec == nil {
		return nil, nil
	}
	return model.UserFromRecord(id, rec), nil
}

// Create adds a new user. The id and password are required; username
// defaults to the id and the role defaults to the least privileged tier.
// Any requested role is clamped so the caller can never grant privilege
// equal to or higher than its own.
func (r *Users) Create(id, password string, attrs model.Record, caller model.Role) (*model.User, error) {
	if err := model.ValidateUserID(id); err != nil {
		return nil, fmt.Errorf("repo: create user: %w", err)
	}
	if password == "" {
		return nil, fmt.Errorf("repo: create user: %w", model.ErrPasswordEmpty)
	}

	hash, err := crypto.HashPassword(password)
	if err != nil {
		return nil, fmt.Errorf("repo: create user: %w", err)
	}

	u := &model.User{
		ID:           id,
		PasswordHash: hash,
		Role:         model.RoleDefault,
		Username:     id,
	}
	if attrs != nil {
		if name := attrs.String(model.FieldUsername); name != "" {
			u.Username = name
		}
		u.Icon = attrs.String(model.FieldIcon)
		u.Color = attrs.String(model.FieldColor)
		if role, ok := attrs.Int(model.FieldRole); ok {
			u.Role = model.Role(role)
		}
	}
	u.Role = u.Role.ClampFor(caller)

	r.mu.Lock()
	defer r.mu.Unlock()
	existing, err := r.b.Get(id)
	if err != nil {
		return nil, fmt.Errorf("repo: create user: %w", err)
	}
	if existing != nil {
		return nil, fmt.Errorf("repo: create user: user %q already exists", id)
	}
	if err := r.b.Set(id, u.ToRecord()); err != nil {
		return nil, fmt.Errorf("repo: create user: %w", err)
	}
	return u, nil
}

// Edit merges a partial record into an existing user. A supplied plaintext
// "password" field is re-hashed before storage; a supplied "role" is
// clamped against the caller's role; the stored hash and session token
// cannot be written directly.
func (r *Users) Edit(id string, partial model.Record, caller model.Role) (*model.User, error) {
	update := partial.Clone()
	delete(update, "id")
	delete(update, model.FieldPasswordHash)
	delete(update, model.FieldToken)

	if pw, ok := update["password"]; ok {
		delete(update, "password")
		plain, _ := pw.(string)
		if plain != "" {
			hash, err := crypto.HashPassword(plain)
			if err != nil {
				return nil, fmt.Errorf("repo: edit user: %w", err)
			}
			update[model.FieldPasswordHash] = hash
		}
	}
	if role, ok := update.Int(model.FieldRole); ok {
		update[model.FieldRole] = int(model.Role(role).ClampFor(caller))
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	existing, err := r.b.Get(id)
	if err != nil {
		return nil, fmt.Errorf("repo: edit user: %w", err)
	}
	if existing == nil {
		return nil, fmt.Errorf("repo: edit user: unknown user %q", id)
	}
	merged, err := r.b.Edit(id, update)
	if err != nil {
		return nil, fmt.Errorf("repo: edit user: %w", err)
	}
	return model.UserFromRecord(id, merged), nil
}

// SetPassword re-hashes and stores a new password for the user. The active
// session token is left untouched.
func (r *Users) SetPassword(id, password string) error {
	if password == "" {
		return fmt.Errorf("repo: set password: %w", model.ErrPasswordEmpty)
	}
	hash, err := crypto.HashPassword(password)
	if err != nil {
		return fmt.Errorf("repo: set password: %w", err)
	}
	if _, err := r.b.Edit(id, model.Record{model.FieldPasswordHash: hash}); err != nil {
		return fmt.Errorf("repo: set password: %w", err)
	}
	return nil
}

// SetToken records a freshly minted session token and stamps the login
// time.
func (r *Users) SetToken(id, token string) error {
	now := time.Now().UTC().Format(time.RFC3339)
	if _, err := r.b.Edit(id, model.Record{model.FieldToken: token, model.FieldLastLogin: now}); err != nil {
		return fmt.Errorf("repo: set token: %w", err)
	}
	return nil
}

// ClearToken removes the stored session token.
func (r *Users) ClearToken(id string) error {
	if _, err := r.b.Edit(id, model.Record{model.FieldToken: ""}); err != nil {
		return fmt.Errorf("repo: clear token: %w", err)
	}
	return nil
}

// Touch stamps one of the last_connect / last_disconnect timestamp fields.
func (r *Users) Touch(id, field string) error {
	now := time.Now().UTC().Format(time.RFC3339)
	if _, err := r.b.Edit(id, model.Record{field: now}); err != nil {
		return fmt.Errorf("repo: touch %s: %w", field, err)
	}
	return nil
}

// Profile returns the safe subset of a user record: everything except the
// password hash and the session token. Returns (nil, nil) if not found.
func (r *Users) Profile(id string) (model.Record, error) {
	u, err := r.Get(id)
	if err != nil {
		return nil, err
	}
	if u == nil {
		return nil, nil
	}
	return profileOf(u), nil
}

// Profiles returns the safe profile of every user, ordered by id.
func (r *Users) Profiles() ([]model.Record, error) {
	ids, err := r.b.Keys()
	if err != nil {
		return nil, fmt.Errorf("repo: list users: %w", err)
	}
	profiles := make([]model.Record, 0, len(ids))
	for _, id := range ids {
		u, err := r.Get(id)
		if err != nil {
			return nil, err
		}
		if u == nil {
			continue
		}
		profiles = append(profiles, profileOf(u))
	}
	return profiles, nil
}

// Count returns the number of stored users.
func (r *Users) Count() (int, error) {
	ids, err := r.b.Keys()
	if err != nil {
		return 0, fmt.Errorf("repo: count users: %w", err)
	}
	return len(ids), nil
}

func profileOf(u *model.User) model.Record {
	rec := model.Record{
		"id":                u.ID,
		model.FieldRole:     int(u.Role),
		model.FieldUsername: u.Username,
		model.FieldIcon:     u.Icon,
		model.FieldColor:    u.Color,
	}
	putStamp := func(key string, t time.Time) {
		if t.IsZero() {
			rec[key] = ""
			return
		}
		rec[key] = t.Format(time.RFC3339)
	}
	putStamp(model.FieldLastLogin, u.LastLogin)
	putStamp(model.FieldLastConnect, u.LastConnect)
	putStamp(model.FieldLastDisconnect, u.LastDisconnect)
	return rec
}

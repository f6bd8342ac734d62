// Package protocol defines the JSON frames exchanged over the
// websocket connection between server and clients.
package protocol

import (
	"encoding/json"
	"fmt"

	"github.com/NicolasHaas/klaxon/pkg/model"
)

// MaxFrameSize caps a single websocket message. Frames carry short JSON
// payloads, so anything larger is a misbehaving client.
const MaxFrameSize = 64 * 1024

// Client to server events.
const (
	EventValidate       = "validate"
	EventSendAlert      = "send_alert"
	EventGetData        = "get_data"
	EventGetAlerts      = "get_alerts"
	EventGetOnlineUsers = "get_online_users"
	EventChangePassword = "change_password"
	EventGetUserProfile = "get_user_profile"
	EventCreateUser     = "create_user"
	EventEditUser       = "edit_user"
)

// Server to client events.
const (
	EventReauthenticate  = "reauthenticate"
	EventReceiveAlert    = "receive_alert"
	EventOnlineUsersList = "online_users_list"
	EventPasswordChanged = "password_changed"
	EventUserCreated     = "user_created"
	EventUserEdited      = "user_edited"
	EventUserProfile     = "user_profile"

	// ListSuffix forms the reply event for a table request, e.g. a
	// get_data for "alerts" answers on "alerts_list".
	ListSuffix = "_list"
)

// Frame is the envelope for every websocket message.
type Frame struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

// Encode builds a wire-ready frame from an event name and payload.
func Encode(event string, v any) ([]byte, error) {
	var (
		data []byte
		err  error
	)
	if v != nil {
		data, err = json.Marshal(v)
		if err != nil {
			return nil, fmt.Errorf("protocol: marshal %s payload: %w", event, err)
		}
	}
	raw, err := json.Marshal(Frame{Event: event, Data: data})
	if err != nil {
		return nil, fmt.Errorf("protocol: marshal %s frame: %w", event, err)
	}
	return raw, nil
}

// Decode parses a raw websocket message into a frame.
func Decode(raw []byte) (*Frame, error) {
	if len(raw) > MaxFrameSize {
		return nil, fmt.Errorf("protocol: frame exceeds %d bytes", MaxFrameSize)
	}
	var f Frame
	if err := json.Unmarshal(raw, &f); err != nil {
		return nil, fmt.Errorf("protocol: unmarshal frame: %w", err)
	}
	if f.Event == "" {
		return nil, fmt.Errorf("protocol: frame has no event")
	}
	return &f, nil
}

// Payload unmarshals the frame data into v.
func (f *Frame) Payload(v any) error {
	if len(f.Data) == 0 {
		return fmt.Errorf("protocol: %s frame has no data", f.Event)
	}
	if err := json.Unmarshal(f.Data, v); err != nil {
		return fmt.Errorf("protocol: unmarshal %s payload: %w", f.Event, err)
	}
	return nil
}

// ValidateRequest binds a connection to a logged-in user.
type ValidateRequest struct {
	Token string `json:"token"`
}

// AlertRequest asks the server to fan an alert out to everyone.
type AlertRequest struct {
	Token string `json:"token"`
	Text  string `json:"text"`
	Color string `json:"color"`
}

// Alert is the broadcast payload clients display.
type Alert struct {
	Text     string `json:"text"`
	Color    string `json:"color"`
	Username string `json:"username"`
}

// DataRequest fetches the rows of one configuration table.
type DataRequest struct {
	Token string `json:"token"`
	Table string `json:"table"`
}

// TokenRequest covers events that carry nothing but the caller's token.
type TokenRequest struct {
	Token string `json:"token"`
}

// ChangePasswordRequest rotates the caller's own password.
type ChangePasswordRequest struct {
	Token       string `json:"token"`
	OldPassword string `json:"old_password"`
	NewPassword string `json:"new_password"`
}

// ProfileRequest fetches the safe profile of one user.
type ProfileRequest struct {
	Token  string `json:"token"`
	UserID string `json:"user_id"`
}

// UserRequest creates or edits a user account.
type UserRequest struct {
	Token string       `json:"token"`
	ID    string       `json:"id"`
	User  model.Record `json:"user"`
}

// ProfileResult answers a get_user_profile request.
type ProfileResult struct {
	Success bool         `json:"success"`
	Error   string       `json:"error,omitempty"`
	Profile model.Record `json:"profile,omitempty"`
}

// Result reports the outcome of a mutating request.
type Result struct {
	Success bool   `json:"success"`
	Error   string `json:"error,omitempty"`
	ID      string `json:"id,omitempty"`
}

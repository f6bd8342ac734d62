package server

import (
	"fmt"
	"log/slog"

	"github.com/NicolasHaas/klaxon/pkg/crypto"
	"github.com/NicolasHaas/klaxon/pkg/model"
	"github.com/NicolasHaas/klaxon/pkg/protocol"
)

// minPasswordLength applies to password changes through the live
// channel. Seeded and administratively set passwords are not bound by it.
const minPasswordLength = 8

// deniedAlert is sent privately to a listener who tries to broadcast.
var deniedAlert = protocol.Alert{
	Text:     "You do not have permission to broadcast alerts",
	Color:    "orange",
	Username: "System",
}

// deniedTableAlert is sent privately to a listener who asks for the
// broadcast catalog.
var deniedTableAlert = protocol.Alert{
	Text:     "You do not have permission to view alert tables",
	Color:    "orange",
	Username: "System",
}

// malformedAlert tells the sender their payload could not be decoded.
func malformedAlert(event string) protocol.Alert {
	return protocol.Alert{
		Text:     "Malformed " + event + " payload",
		Color:    "red",
		Username: "System",
	}
}

func presenceOf(u *model.User) model.Presence {
	return model.Presence{
		UserID: u.ID,
		Role:   u.Role,
		Name:   u.Username,
		Icon:   u.Icon,
		Color:  u.Color,
	}
}

// handleValidate binds a connection to the user behind a token. The
// presence broadcast that follows doubles as the success ack.
func (h *Hub) handleValidate(c *client, f *protocol.Frame) {
	var req protocol.ValidateRequest
	if err := f.Payload(&req); err != nil {
		slog.Debug("bad validate payload", "conn", c.id, "err", err)
		c.sendEvent(protocol.EventReauthenticate, nil)
		return
	}

	u := h.authorize(c, req.Token)
	if u == nil {
		return
	}

	c.bind(u.ID)
	h.presence.Bind(c.id, presenceOf(u))
	if err := h.users.Touch(u.ID, model.FieldLastConnect); err != nil {
		slog.Error("stamp last_connect failed", "user", u.ID, "err", err)
	}
	h.metrics.SuccessfulValidates.Add(1)
	slog.Info("connection validated", "conn", c.id, "user", u.ID, "role", int(u.Role))

	h.broadcastPresence()
}

// handleSendAlert fans an alert out to every validated connection, or
// tells the sender off when their role only permits listening.
func (h *Hub) handleSendAlert(c *client, f *protocol.Frame) {
	var req protocol.AlertRequest
	if err := f.Payload(&req); err != nil {
		slog.Debug("bad send_alert payload", "conn", c.id, "err", err)
		c.sendEvent(protocol.EventReceiveAlert, malformedAlert(f.Event))
		return
	}

	u := h.authorize(c, req.Token)
	if u == nil {
		return
	}

	if !u.Role.CanBroadcast() {
		h.metrics.AlertsDenied.Add(1)
		slog.Warn("alert denied", "user", u.ID, "role", int(u.Role))
		c.sendEvent(protocol.EventReceiveAlert, deniedAlert)
		return
	}

	alert := protocol.Alert{
		Text:     req.Text,
		Color:    req.Color,
		Username: u.Username,
	}
	h.metrics.AlertsBroadcast.Add(1)
	slog.Info("alert broadcast", "user", u.ID, "text", req.Text, "color", req.Color)
	h.broadcastValidated(protocol.EventReceiveAlert, alert)
}

// handleGetData answers with the rows of one configuration table on the
// table's own list event. An unknown table answers with an empty list.
func (h *Hub) handleGetData(c *client, f *protocol.Frame) {
	var req protocol.DataRequest
	if err := f.Payload(&req); err != nil {
		slog.Debug("bad get_data payload", "conn", c.id, "err", err)
		c.sendEvent(protocol.EventReceiveAlert, malformedAlert(f.Event))
		return
	}
	if req.Table == "" {
		return
	}

	u := h.authorize(c, req.Token)
	if u == nil {
		return
	}
	h.sendTable(c, u, req.Table)
}

// handleGetAlerts is the shorthand for fetching the alerts table.
func (h *Hub) handleGetAlerts(c *client, f *protocol.Frame) {
	var req protocol.TokenRequest
	if err := f.Payload(&req); err != nil {
		slog.Debug("bad get_alerts payload", "conn", c.id, "err", err)
		c.sendEvent(protocol.EventReceiveAlert, malformedAlert(f.Event))
		return
	}
	u := h.authorize(c, req.Token)
	if u == nil {
		return
	}
	h.sendTable(c, u, "alerts")
}

// sendTable answers with the table rows. The catalog backs the
// broadcast surface, so listeners are told off instead of served. An
// unknown table still answers with an empty list.
func (h *Hub) sendTable(c *client, u *model.User, table string) {
	if !u.Role.CanBroadcast() {
		slog.Warn("table request denied", "user", u.ID, "table", table)
		c.sendEvent(protocol.EventReceiveAlert, deniedTableAlert)
		return
	}
	rows, err := h.catalog.Table(table)
	if err != nil {
		slog.Error("load table failed", "table", table, "err", err)
		return
	}
	if rows == nil {
		rows = []model.Record{}
	}
	c.sendEvent(table+protocol.ListSuffix, rows)
}

// handleGetOnlineUsers answers the requester with the presence list.
func (h *Hub) handleGetOnlineUsers(c *client, f *protocol.Frame) {
	var req protocol.TokenRequest
	if err := f.Payload(&req); err != nil {
		slog.Debug("bad get_online_users payload", "conn", c.id, "err", err)
		c.sendEvent(protocol.EventReceiveAlert, malformedAlert(f.Event))
		return
	}
	if u := h.authorize(c, req.Token); u == nil {
		return
	}
	c.sendEvent(protocol.EventOnlineUsersList, h.presence.Snapshot())
}

// handleChangePassword rotates the caller's own password after checking
// the old one.
func (h *Hub) handleChangePassword(c *client, f *protocol.Frame) {
	var req protocol.ChangePasswordRequest
	if err := f.Payload(&req); err != nil {
		slog.Debug("bad change_password payload", "conn", c.id, "err", err)
		c.sendEvent(protocol.EventPasswordChanged, protocol.Result{
			Success: false,
			Error:   "malformed payload",
		})
		return
	}

	u := h.authorize(c, req.Token)
	if u == nil {
		return
	}

	if !crypto.CheckPassword(u.PasswordHash, req.OldPassword) {
		c.sendEvent(protocol.EventPasswordChanged, protocol.Result{
			Success: false,
			Error:   "wrong password",
		})
		return
	}
	if len(req.NewPassword) < minPasswordLength {
		c.sendEvent(protocol.EventPasswordChanged, protocol.Result{
			Success: false,
			Error:   fmt.Sprintf("new password must be at least %d characters", minPasswordLength),
		})
		return
	}

	if err := h.users.SetPassword(u.ID, req.NewPassword); err != nil {
		slog.Error("change password failed", "user", u.ID, "err", err)
		c.sendEvent(protocol.EventPasswordChanged, protocol.Result{
			Success: false,
			Error:   "could not store new password",
		})
		return
	}

	h.metrics.PasswordChanges.Add(1)
	slog.Info("password changed", "user", u.ID)
	c.sendEvent(protocol.EventPasswordChanged, protocol.Result{Success: true, ID: u.ID})
}

// handleGetUserProfile answers with the safe profile of one user. An
// empty target means the caller's own profile.
func (h *Hub) handleGetUserProfile(c *client, f *protocol.Frame) {
	var req protocol.ProfileRequest
	if err := f.Payload(&req); err != nil {
		slog.Debug("bad get_user_profile payload", "conn", c.id, "err", err)
		c.sendEvent(protocol.EventUserProfile, protocol.ProfileResult{
			Success: false,
			Error:   "malformed payload",
		})
		return
	}

	u := h.authorize(c, req.Token)
	if u == nil {
		return
	}

	target := req.UserID
	if target == "" {
		target = u.ID
	}
	if target != u.ID && !u.Role.CanBroadcast() {
		c.sendEvent(protocol.EventUserProfile, protocol.ProfileResult{
			Success: false,
			Error:   "permission denied",
		})
		return
	}
	profile, err := h.users.Profile(target)
	if err != nil {
		slog.Error("load profile failed", "user", target, "err", err)
		return
	}
	if profile == nil {
		c.sendEvent(protocol.EventUserProfile, protocol.ProfileResult{
			Success: false,
			Error:   "unknown user",
		})
		return
	}
	c.sendEvent(protocol.EventUserProfile, protocol.ProfileResult{
		Success: true,
		Profile: profile,
	})
}

// handleCreateUser creates an account on behalf of a broadcaster.
func (h *Hub) handleCreateUser(c *client, f *protocol.Frame) {
	var req protocol.UserRequest
	if err := f.Payload(&req); err != nil {
		slog.Debug("bad create_user payload", "conn", c.id, "err", err)
		c.sendEvent(protocol.EventUserCreated, protocol.Result{
			Success: false,
			Error:   "malformed payload",
		})
		return
	}

	u := h.authorize(c, req.Token)
	if u == nil {
		return
	}
	if !u.Role.CanBroadcast() {
		c.sendEvent(protocol.EventUserCreated, protocol.Result{
			Success: false,
			Error:   "permission denied",
		})
		return
	}

	attrs := req.User.Clone()
	password := attrs.String("password")
	delete(attrs, "password")

	created, err := h.users.Create(req.ID, password, attrs, u.Role)
	if err != nil {
		c.sendEvent(protocol.EventUserCreated, protocol.Result{
			Success: false,
			Error:   err.Error(),
		})
		return
	}

	h.metrics.UsersCreated.Add(1)
	slog.Info("user created", "user", created.ID, "by", u.ID, "role", int(created.Role))
	c.sendEvent(protocol.EventUserCreated, protocol.Result{Success: true, ID: created.ID})
}

// handleEditUser merges changes into an existing account on behalf of a
// broadcaster.
func (h *Hub) handleEditUser(c *client, f *protocol.Frame) {
	var req protocol.UserRequest
	if err := f.Payload(&req); err != nil {
		slog.Debug("bad edit_user payload", "conn", c.id, "err", err)
		c.sendEvent(protocol.EventUserEdited, protocol.Result{
			Success: false,
			Error:   "malformed payload",
		})
		return
	}

	u := h.authorize(c, req.Token)
	if u == nil {
		return
	}
	if !u.Role.CanBroadcast() {
		c.sendEvent(protocol.EventUserEdited, protocol.Result{
			Success: false,
			Error:   "permission denied",
		})
		return
	}

	edited, err := h.users.Edit(req.ID, req.User, u.Role)
	if err != nil {
		c.sendEvent(protocol.EventUserEdited, protocol.Result{
			Success: false,
			Error:   err.Error(),
		})
		return
	}

	h.metrics.UsersEdited.Add(1)
	slog.Info("user edited", "user", edited.ID, "by", u.ID)
	c.sendEvent(protocol.EventUserEdited, protocol.Result{Success: true, ID: edited.ID})
}

package model

// Presence is the ephemeral record of one live connection bound to a
// validated user. It exists only in memory for the lifetime of the
// transport connection and is rebuilt from scratch after a restart.
type Presence struct {
	UserID string `json:"user_id"`
	Role   Role   `json:"role"`
	Name   string `json:"name"`
	Icon   string `json:"icon"`
	Color  string `json:"color"`
}

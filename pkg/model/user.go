package model

import (
	"errors"
	"fmt"
	"time"
)

const MaxUserIDLength = 32

var ErrUserIDEmpty = errors.New("user id must not be empty")
var ErrUserIDTooLong = fmt.Errorf("user id must not exceed %d characters", MaxUserIDLength)
var ErrUserIDInvalidChars = errors.New("user id must contain only alphanumeric characters, underscores, or hyphens")
var ErrPasswordEmpty = errors.New("password must not be empty")
var ErrInvalidRole = fmt.Errorf("invalid role: must be %d-%d", RoleMin, RoleMax)

// User is a registered account. PasswordHash is a salted bcrypt digest;
// Token is the currently active session token, empty when logged out. At
// most one token is valid per user at any time.
type User struct {
	ID             string    `json:"id"`
	PasswordHash   string    `json:"-"`
	Role           Role      `json:"role"`
	Username       string    `json:"username"`
	Icon           string    `json:"icon"`
	Color          string    `json:"color"`
	Token          string    `json:"-"`
	LastLogin      time.Time `json:"last_login"`
	LastConnect    time.Time `json:"last_connect"`
	LastDisconnect time.Time `json:"last_disconnect"`
}

// ValidateUserID checks that an id is 1-32 ASCII alphanumeric, underscore,
// or hyphen characters. Returns nil on success or a descriptive error.
func ValidateUserID(id string) error {
	if len(id) == 0 {
		return ErrUserIDEmpty
	}
	if len(id) > MaxUserIDLength {
		return ErrUserIDTooLong
	}
	for _, r := range id {
		if (r < 'a' || r > 'z') && (r < 'A' || r > 'Z') && (r < '0' || r > '9') && r != '_' && r != '-' {
			return ErrUserIDInvalidChars
		}
	}
	return nil
}

// Record field names for user documents.
const (
	FieldPasswordHash   = "password_hash"
	FieldRole           = "role"
	FieldUsername       = "username"
	FieldIcon           = "icon"
	FieldColor          = "color"
	FieldToken          = "token"
	FieldLastLogin      = "last_login"
	FieldLastConnect    = "last_connect"
	FieldLastDisconnect = "last_disconnect"
)

// ToRecord converts the user to its stored document form. The id is the
// storage key and is not duplicated inside the record.
func (u *User) ToRecord() Record {
	rec := Record{
		FieldPasswordHash: u.PasswordHash,
		FieldRole:         int(u.Role),
		FieldUsername:     u.Username,
		FieldIcon:         u.Icon,
		FieldColor:        u.Color,
		FieldToken:        u.Token,
	}
	putTime(rec, FieldLastLogin, u.LastLogin)
	putTime(rec, FieldLastConnect, u.LastConnect)
	putTime(rec, FieldLastDisconnect, u.LastDisconnect)
	return rec
}

// UserFromRecord rebuilds a User from its stored document form.
func UserFromRecord(id string, rec Record) *User {
	u := &User{
		ID:           id,
		PasswordHash: rec.String(FieldPasswordHash),
		Role:         RoleDefault,
		Username:     rec.String(FieldUsername),
		Icon:         rec.String(FieldIcon),
		Color:        rec.String(FieldColor),
		Token:        rec.String(FieldToken),
	}
	if role, ok := rec.Int(FieldRole); ok {
		u.Role = Role(role)
	}
	u.LastLogin = getTime(rec, FieldLastLogin)
	u.LastConnect = getTime(rec, FieldLastConnect)
	u.LastDisconnect = getTime(rec, FieldLastDisconnect)
	return u
}

func putTime(rec Record, key string, t time.Time) {
	if t.IsZero() {
		rec[key] = ""
		return
	}
	rec[key] = t.UTC().Format(time.RFC3339)
}

func getTime(rec Record, key string) time.Time {
	s := rec.String(key)
	if s == "" {
		return time.Time{}
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return time.Time{}
	}
	return t.UTC()
}

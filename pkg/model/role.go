package model

// Role is an integer privilege tier. Lower values carry more privilege:
// roles 1-3 may broadcast alerts and use the admin surface, roles 4-8 are
// listen-only.
type Role int

const (
	// RoleBroadcastMax is the highest (least privileged) role that may
	// still originate broadcasts.
	RoleBroadcastMax Role = 3

	// RoleMin and RoleMax bound the assignable range.
	RoleMin Role = 1
	RoleMax Role = 8

	// RoleDefault is assigned to new users when no role is requested.
	RoleDefault Role = RoleMax

	// RoleSystem marks out-of-band callers (seed files, first-run setup)
	// that are exempt from the grant clamp.
	RoleSystem Role = -1
)

// CanBroadcast reports whether the role may originate alerts and use the
// admin-only operations.
func (r Role) CanBroadcast() bool {
	return r <= RoleBroadcastMax
}

// Valid returns true if the role is within the assignable range.
func (r Role) Valid() bool {
	return r >= RoleMin && r <= RoleMax
}

// ClampFor bounds r to what caller may grant: never a role as privileged as
// the caller's own, and never outside [RoleMin, RoleMax]. RoleSystem callers
// only get the range clamp.
func (r Role) ClampFor(caller Role) Role {
	if r < RoleMin {
		r = RoleMin
	}
	if caller != RoleSystem && r <= caller {
		r = caller + 1
	}
	if r > RoleMax {
		r = RoleMax
	}
	return r
}

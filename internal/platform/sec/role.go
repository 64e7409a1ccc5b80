// Copyright (c) 2026 Kinship. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package sec

// # Platform Roles

// UserRole represents the platform-wide authorization level of an account.
//
// It is independent of group roles: a platform moderator can act on any report,
// while a group admin only on reports scoped to their group.
type UserRole string

const (
	// Unrestricted system access
	RoleAdmin UserRole = "admin"

	// Can review and resolve reports across all groups
	RoleModerator UserRole = "moderator"

	// Default role for standard registered users
	RoleMember UserRole = "member"
)

// # Role Hierarchy

// AtLeast checks if the current role meets or exceeds the required target role.
func (r UserRole) AtLeast(target UserRole) bool {
	return r.level() >= target.level()
}

// IsModerator reports whether the role may moderate platform-wide.
func (r UserRole) IsModerator() bool {
	return r.AtLeast(RoleModerator)
}

// level maps a role to a numeric hierarchy level for comparison logic.
func (r UserRole) level() int {

	// Unknown roles rank below every real one
	switch r {
	case RoleAdmin:
		return 40
	case RoleModerator:
		return 30
	case RoleMember:
		return 10
	default:
		return 0
	}
}

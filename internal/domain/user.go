package domain

import "time"

// Role is the access role attached to a user. Only one role exists in the
// current scope.
type Role string

const RoleUser Role = "USER"

// User is the domain model for a signed-up account. PasswordHash is the
// opaque bcrypt output and must never be serialized to clients.
type User struct {
	UserID           string
	PasswordHash     string
	ReferralCode     string
	ProfileCompleted bool
	Role             Role
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

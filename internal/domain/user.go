package domain

import "time"

// Role is the permission level of a user within its tenant.
type Role string

const (
	RoleOwner Role = "owner"
	RoleAdmin Role = "admin"
	RoleUser  Role = "user"
)

var roleRank = map[Role]int{RoleUser: 1, RoleAdmin: 2, RoleOwner: 3}

// AtLeast reports whether the role grants the permissions of required.
func (r Role) AtLeast(required Role) bool {
	return roleRank[r] >= roleRank[required]
}

// UserStatus is the lifecycle state of a user. Users are soft-deleted via
// status so bet/audit history keeps valid references.
type UserStatus string

const (
	UserActive   UserStatus = "active"
	UserDisabled UserStatus = "disabled"
)

// User is an end user belonging to exactly one tenant. (TenantID, Email) is
// unique per tenant; (Provider, ProviderSubject) is globally unique so an
// OAuth identity can never span tenants.
type User struct {
	ID              string
	TenantID        string
	Email           string
	Name            string
	Provider        string
	ProviderSubject string
	Role            Role
	Status          UserStatus
	// TokenVersion is copied into issued session tokens; bumping it
	// invalidates every previously issued token for the user.
	TokenVersion int64
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

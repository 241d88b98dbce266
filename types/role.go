package types

import "strings"

// Role is the coarse-grained permission class of a user.
type Role string

const (
	RoleMentee Role = "mentee"
	RoleMentor Role = "mentor"
	RoleAdmin  Role = "admin"

	// roleAdministrator is a legacy spelling of RoleAdmin still present in old rows.
	roleAdministrator Role = "administrator"
)

// ParseRole normalizes raw into a known role. The administrator alias
// resolves to RoleAdmin.
func ParseRole(raw string) (Role, bool) {
	role := Role(strings.ToLower(strings.TrimSpace(raw)))
	switch role {
	case RoleMentee, RoleMentor, RoleAdmin:
		return role, true
	case roleAdministrator:
		return RoleAdmin, true
	default:
		return "", false
	}
}

// Normalize returns the canonical form of r. Empty or unknown roles
// are observed as RoleMentee, matching the role repair pass.
func (r Role) Normalize() Role {
	if role, ok := ParseRole(string(r)); ok {
		return role
	}
	return RoleMentee
}

// Is compares two roles after normalization.
func (r Role) Is(other Role) bool {
	return r.Normalize() == other.Normalize()
}

// IsValid reports whether r is one of the enumerated roles or an alias of one.
func (r Role) IsValid() bool {
	_, ok := ParseRole(string(r))
	return ok
}

// Status is the account lifecycle flag.
type Status string

const (
	StatusActive    Status = "active"
	StatusInactive  Status = "inactive"
	StatusSuspended Status = "suspended"
)

// ParseStatus normalizes raw into a known status.
func ParseStatus(raw string) (Status, bool) {
	status := Status(strings.ToLower(strings.TrimSpace(raw)))
	switch status {
	case StatusActive, StatusInactive, StatusSuspended:
		return status, true
	default:
		return "", false
	}
}

// IsValid reports whether s is one of the enumerated statuses.
func (s Status) IsValid() bool {
	_, ok := ParseStatus(string(s))
	return ok
}

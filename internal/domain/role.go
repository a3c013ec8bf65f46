package domain

import "slices"

// Roles. New accounts start unverified and become users once verified;
// admins are promoted out of band.
const (
	RoleUnverified = "unverified"
	RoleUser       = "user"
	RoleAdmin      = "admin"
)

// ValidRoles lists every role in promotion order.
func ValidRoles() []string {
	return []string{RoleUnverified, RoleUser, RoleAdmin}
}

// IsValidRole reports whether role is one of ValidRoles. Matching is exact.
func IsValidRole(role string) bool {
	return slices.Contains(ValidRoles(), role)
}

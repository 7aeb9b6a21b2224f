package models

import "strings"

// Role is the grade a contributor holds within a single project.
type Role string

const (
	RoleOwner Role = "OWNER"
	RoleAdmin Role = "ADMIN"
	RoleWrite Role = "WRITE"
	RoleRead  Role = "READ"
)

// Roles lists every role, highest first.
var Roles = []Role{RoleOwner, RoleAdmin, RoleWrite, RoleRead}

// Valid reports whether r is one of the four known roles.
func (r Role) Valid() bool {
	switch r {
	case RoleOwner, RoleAdmin, RoleWrite, RoleRead:
		return true
	}
	return false
}

func (r Role) String() string { return string(r) }

// ParseRole accepts role names in any case ("admin", "ADMIN").
func ParseRole(s string) (Role, bool) {
	r := Role(strings.ToUpper(strings.TrimSpace(s)))
	return r, r.Valid()
}

// Package principal contains the domain types for authenticated identities.
package principal

import (
	"errors"
	"strings"
)

// ErrInvalidPrincipal is returned when a principal is missing required fields.
var ErrInvalidPrincipal = errors.New("invalid principal")

// Kind distinguishes the two identity types managed by the session layer.
type Kind string

const (
	// KindAdmin is an administrator identity.
	KindAdmin Kind = "admin"
	// KindUser is a regular end-user identity.
	KindUser Kind = "user"
)

// IsValid returns true if the kind is a known identity type.
func (k Kind) IsValid() bool {
	return k == KindAdmin || k == KindUser
}

// Role represents an authorization role assigned by the directory.
type Role string

const (
	// RoleSuperAdmin has unrestricted access.
	RoleSuperAdmin Role = "super_admin"
	// RoleAdmin manages all content areas.
	RoleAdmin Role = "admin"
	// RoleModerator manages a reduced content subset.
	RoleModerator Role = "moderator"
	// RoleReadOnly can only view the dashboard.
	RoleReadOnly Role = "readonly"
)

// IsValid returns true if the role is a known valid role.
func (r Role) IsValid() bool {
	switch r {
	case RoleSuperAdmin, RoleAdmin, RoleModerator, RoleReadOnly:
		return true
	default:
		return false
	}
}

// Principal is a denormalized snapshot of an identity owned by the external
// directory. The session layer never treats it as authoritative: the
// directory record may have changed since the snapshot was taken.
type Principal struct {
	// ID is the directory's unique identifier for this identity.
	ID string `json:"id" yaml:"id" validate:"required"`
	// Email is the login identifier.
	Email string `json:"email" yaml:"email" validate:"required,email"`
	// Name is the display name.
	Name string `json:"name" yaml:"name"`
	// Role is the authorization role. Regular users carry RoleReadOnly.
	Role Role `json:"role" yaml:"role" validate:"required,oneof=super_admin admin moderator readonly"`
	// Active indicates whether the directory account is enabled.
	Active bool `json:"is_active" yaml:"is_active"`
	// Kind tags which identity slot this principal belongs to.
	Kind Kind `json:"kind" yaml:"kind" validate:"required,oneof=admin user"`
}

// EmailMatches compares login identifiers case-insensitively.
func (p *Principal) EmailMatches(email string) bool {
	return strings.EqualFold(p.Email, email)
}

package domain

import (
	"slices"
	"time"
)

// Role is the access tag carried by every user.
type Role string

// Roles.
const (
	RoleCustomer Role = "customer"
	RoleAgent    Role = "agent"
	RoleAdmin    Role = "admin"
	RoleVendor   Role = "vendor"
)

// IsValid checks if the role is known.
func (r Role) IsValid() bool {
	switch r {
	case RoleCustomer, RoleAgent, RoleAdmin, RoleVendor:
		return true
	}
	return false
}

// IsResolver reports whether the role works incidents on behalf of others.
func (r Role) IsResolver() bool {
	return r == RoleAgent || r == RoleAdmin
}

// User is a person who can sign in to the console.
type User struct {
	ID           string    `json:"id"`
	Name         string    `json:"name"`
	Email        string    `json:"email"`
	Role         Role      `json:"role"`
	Groups       []string  `json:"groups"`
	PasswordHash string    `json:"-"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// InGroup reports whether the user belongs to the named resolver group.
func (u *User) InGroup(group string) bool {
	return slices.Contains(u.Groups, group)
}

// ResolverGroup is a named team responsible for working incidents.
type ResolverGroup struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description"`
	Lead        string    `json:"lead"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// Viewer identifies who is reading or mutating records.
type Viewer struct {
	ID     string
	Name   string
	Role   Role
	Groups []string
}

// InGroup reports whether the viewer belongs to the named resolver group.
func (v Viewer) InGroup(group string) bool {
	return group != "" && slices.Contains(v.Groups, group)
}

// ViewerFromUser builds a viewer from a stored user.
func ViewerFromUser(u *User) Viewer {
	return Viewer{ID: u.ID, Name: u.Name, Role: u.Role, Groups: u.Groups}
}

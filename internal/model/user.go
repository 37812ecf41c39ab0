// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

// Package model defines domain models and types used throughout the application
// including users, services, access requests, content items and their enumerations.
package model

import (
	"time"
)

// Role is the global role flag of a user.
type Role string

// User roles.
const (
	RoleAdmin  Role = "admin"
	RoleMember Role = "member"
)

// Valid reports whether r is a known role.
func (r Role) Valid() bool {
	return r == RoleAdmin || r == RoleMember
}

// ParseRole converts a raw string into a Role.
func ParseRole(s string) (Role, error) {
	r := Role(s)
	if !r.Valid() {
		return "", NewValidationError("role", "unknown role: "+s)
	}
	return r, nil
}

// User represents a portal user.
type User struct {
	ID           int64     `json:"id"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"-"` // Never expose in JSON
	Role         Role      `json:"role"`
	Name         string    `json:"name"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// IsAdmin returns true if the user has admin role.
func (u *User) IsAdmin() bool {
	return u.Role == RoleAdmin
}

// Actor returns the verified actor context for this user.
func (u *User) Actor() Actor {
	return Actor{ID: u.ID, Role: u.Role}
}

// Actor is the identity performing an operation. It is always built on the
// server from a verified session and the user record, never from client input.
type Actor struct {
	ID   int64
	Role Role
}

// IsAdmin returns true if the actor has admin role.
func (a Actor) IsAdmin() bool {
	return a.Role == RoleAdmin
}

// Package rbac stores the role and permission-grant records that back the
// capability engine, and wires the engine into the HTTP request pipeline: the
// Authenticate middleware verifies the request token and resolves the
// per-request rule set, and RequireCan provides coarse route guards.
package rbac

import "time"

// Role represents a high-level permission grouping.
type Role struct {
	ID          int64
	Name        string
	Description string
	IsSystem    bool
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// Permission represents one catalog identifier stored in the database.
type Permission struct {
	ID          int64
	Name        string
	Description string
}

// RolePermissions pairs a role with its granted permission identifiers, for
// the catalog listing endpoint.
type RolePermissions struct {
	Role        string   `json:"role"`
	Permissions []string `json:"permissions"`
}

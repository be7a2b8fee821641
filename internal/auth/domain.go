// Package auth implements registration, login and logout on top of the token
// manager. Login snapshots the account's role and effective permissions into
// the issued credential.
package auth

import (
	"time"

	"github.com/bugtrap/bugtrap/internal/authz"
)

// Account represents a user account as the authentication layer sees it.
type Account struct {
	ID           int64
	Email        string
	Name         string
	Role         authz.Role
	PasswordHash string
	IsActive     bool
	CreatedAt    time.Time
}

// SelfServiceRoles are the roles a visitor may register as. Administrator is
// excluded; those accounts come from seeding or an existing administrator.
var SelfServiceRoles = []authz.Role{authz.RoleDeveloper, authz.RoleQA, authz.RoleManager}

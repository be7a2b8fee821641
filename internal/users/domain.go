// Package users manages user accounts: scoped listing, profile reads and
// administrative updates. Read visibility follows the principal's rule set, so
// non-administrators only ever see their own account.
package users

import (
	"strconv"
	"time"

	"github.com/bugtrap/bugtrap/internal/authz"
)

// User represents a user account.
type User struct {
	ID        int64      `json:"id"`
	Email     string     `json:"email"`
	Name      string     `json:"name"`
	Role      authz.Role `json:"role"`
	IsActive  bool       `json:"is_active"`
	CreatedAt time.Time  `json:"created_at"`
	UpdatedAt time.Time  `json:"updated_at"`
}

// Resource projects the account into the shape capability checks operate on.
func (u User) Resource() authz.Resource {
	return authz.Resource{
		Type: authz.ResourceUser,
		ID:   strconv.FormatInt(u.ID, 10),
	}
}

// Writable field names accepted by Update.
const (
	FieldName     = "name"
	FieldEmail    = "email"
	FieldRole     = "role"
	FieldIsActive = "is_active"
)

package shared

import "errors"

var (
	// ErrInvalidCredentials indicates login failure. It deliberately covers
	// unknown email, wrong password and deactivated accounts so responses
	// do not leak which one it was.
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrRoleNotAllowed occurs when registration requests a role outside
	// the self-service set.
	ErrRoleNotAllowed = errors.New("role not allowed")
)

// Package token implements the signed credential that carries a principal
// between requests: an HS256 JWT embedding the user's id, role and granted
// permission identifiers, plus a redis-backed revocation list so logout and
// account deactivation take effect before expiry.
//
// Embedding the permission snapshot in the token avoids a grants lookup per
// request; staleness until expiry is a deliberate product tradeoff, not an
// engine defect.
package token

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/bugtrap/bugtrap/internal/authz"
)

// Verification failures. ErrTokenInvalid covers everything wrong with the
// credential itself; the account errors mean the token verified but the
// account behind it is gone or switched off.
var (
	ErrTokenInvalid    = errors.New("token: invalid or expired")
	ErrTokenRevoked    = errors.New("token: revoked")
	ErrAccountUnknown  = errors.New("token: account unknown")
	ErrAccountDisabled = errors.New("token: account disabled")
)

// AccountState reports the liveness of the account behind a verified token.
type AccountState int

const (
	AccountActive AccountState = iota
	AccountDisabled
	AccountUnknown
)

// AccountDirectory answers liveness queries during verification, so a token
// minted before a deactivation stops working immediately.
type AccountDirectory interface {
	AccountState(ctx context.Context, id string) (AccountState, error)
}

// Claims is the signed payload. Role and permissions are snapshotted at issue
// time.
type Claims struct {
	Role        string   `json:"role"`
	Permissions []string `json:"permissions"`
	jwt.RegisteredClaims
}

// Manager issues, verifies and revokes principal tokens.
type Manager struct {
	secret   []byte
	ttl      time.Duration
	denylist *Denylist
	accounts AccountDirectory
}

// NewManager constructs a Manager. The denylist and directory may be nil in
// tests; verification then skips the corresponding checks.
func NewManager(secret string, ttl time.Duration, denylist *Denylist, accounts AccountDirectory) (*Manager, error) {
	if secret == "" {
		return nil, errors.New("token: signing secret is required")
	}
	if ttl <= 0 {
		ttl = 5 * time.Hour
	}
	return &Manager{secret: []byte(secret), ttl: ttl, denylist: denylist, accounts: accounts}, nil
}

// TTL exposes the configured token lifetime.
func (m *Manager) TTL() time.Duration {
	return m.ttl
}

// Issue signs a token for the given principal identity. The jti is random so
// individual tokens can be revoked.
func (m *Manager) Issue(userID string, role authz.Role, permissions []string) (string, *Claims, error) {
	now := time.Now()
	claims := &Claims{
		Role:        string(role),
		Permissions: permissions,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Subject:   userID,
			ExpiresAt: jwt.NewNumericDate(now.Add(m.ttl)),
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
		},
	}

	tok := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := tok.SignedString(m.secret)
	if err != nil {
		return "", nil, fmt.Errorf("token: sign: %w", err)
	}
	return signed, claims, nil
}

// Verify validates the credential and reconstructs the principal. The caller
// can rely on errors.Is against the sentinel errors to pick a status code:
// all of them are terminal for the request.
func (m *Manager) Verify(ctx context.Context, tokenString string) (authz.Principal, error) {
	claims, err := m.parse(tokenString)
	if err != nil {
		return authz.Principal{}, err
	}

	if m.denylist != nil {
		revoked, err := m.denylist.Revoked(ctx, claims.ID)
		if err != nil {
			return authz.Principal{}, fmt.Errorf("token: denylist: %w", err)
		}
		if revoked {
			return authz.Principal{}, ErrTokenRevoked
		}
	}

	if m.accounts != nil {
		state, err := m.accounts.AccountState(ctx, claims.Subject)
		if err != nil {
			return authz.Principal{}, fmt.Errorf("token: account lookup: %w", err)
		}
		switch state {
		case AccountDisabled:
			return authz.Principal{}, ErrAccountDisabled
		case AccountUnknown:
			return authz.Principal{}, ErrAccountUnknown
		}
	}

	return authz.Principal{
		ID:          claims.Subject,
		Role:        authz.Role(claims.Role),
		Permissions: claims.Permissions,
	}, nil
}

// Revoke places the token's jti on the denylist until its natural expiry.
func (m *Manager) Revoke(ctx context.Context, tokenString string) error {
	claims, err := m.parse(tokenString)
	if err != nil {
		return err
	}
	if m.denylist == nil {
		return nil
	}
	until := time.Time{}
	if claims.ExpiresAt != nil {
		until = claims.ExpiresAt.Time
	}
	return m.denylist.Revoke(ctx, claims.ID, until)
}

func (m *Manager) parse(tokenString string) (*Claims, error) {
	tok, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return m.secret, nil
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrTokenInvalid, err)
	}
	claims, ok := tok.Claims.(*Claims)
	if !ok || !tok.Valid || claims.Subject == "" {
		return nil, ErrTokenInvalid
	}
	return claims, nil
}

package auth

import (
	"context"
	"fmt"
	"slices"

	"golang.org/x/crypto/bcrypt"

	"github.com/bugtrap/bugtrap/internal/authz"
	"github.com/bugtrap/bugtrap/internal/shared"
)

// GrantsPort resolves the effective permission identifiers for an account.
// Login embeds the result in the issued token.
type GrantsPort interface {
	EffectivePermissions(ctx context.Context, userID int64) ([]string, error)
}

// Service wraps authentication business rules.
type Service struct {
	repo   Repository
	grants GrantsPort
}

// NewService constructs a new Service.
func NewService(repo Repository, grants GrantsPort) *Service {
	return &Service{repo: repo, grants: grants}
}

// Register creates a self-service account with a hashed password.
func (s *Service) Register(ctx context.Context, name, email, password string, role authz.Role) (*Account, error) {
	if !slices.Contains(SelfServiceRoles, role) {
		return nil, fmt.Errorf("auth: role %q: %w", role, shared.ErrRoleNotAllowed)
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("auth: hash password: %w", err)
	}
	return s.repo.Create(ctx, name, email, string(hash), role)
}

// Authenticate validates email/password credentials.
func (s *Service) Authenticate(ctx context.Context, email, password string) (*Account, error) {
	account, err := s.repo.FindByEmail(ctx, email)
	if err != nil {
		return nil, shared.ErrInvalidCredentials
	}
	if !account.IsActive {
		return nil, shared.ErrInvalidCredentials
	}
	if err := bcrypt.CompareHashAndPassword([]byte(account.PasswordHash), []byte(password)); err != nil {
		return nil, shared.ErrInvalidCredentials
	}
	return account, nil
}

// Grants returns the permission snapshot for a freshly authenticated account.
func (s *Service) Grants(ctx context.Context, userID int64) ([]string, error) {
	if s.grants == nil {
		return nil, nil
	}
	return s.grants.EffectivePermissions(ctx, userID)
}

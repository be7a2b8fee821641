package auth_test

import (
	"context"
	"fmt"
	"strings"
	"testing"

	"golang.org/x/crypto/bcrypt"

	"github.com/stretchr/testify/require"

	"github.com/bugtrap/bugtrap/internal/auth"
	"github.com/bugtrap/bugtrap/internal/authz"
	"github.com/bugtrap/bugtrap/internal/platform/httpx"
	"github.com/bugtrap/bugtrap/internal/shared"
	_ "github.com/bugtrap/bugtrap/testing"
)

type memoryRepo struct {
	byEmail map[string]*auth.Account
	nextID  int64
}

func newMemoryRepo() *memoryRepo {
	return &memoryRepo{byEmail: map[string]*auth.Account{}, nextID: 1}
}

func (r *memoryRepo) FindByEmail(ctx context.Context, email string) (*auth.Account, error) {
	a, ok := r.byEmail[strings.ToLower(email)]
	if !ok {
		return nil, httpx.ErrNotFound
	}
	copied := *a
	return &copied, nil
}

func (r *memoryRepo) Create(ctx context.Context, name, email, passwordHash string, role authz.Role) (*auth.Account, error) {
	key := strings.ToLower(email)
	if _, ok := r.byEmail[key]; ok {
		return nil, fmt.Errorf("auth: email already registered: %w", httpx.ErrDuplicate)
	}
	a := &auth.Account{ID: r.nextID, Email: key, Name: name, Role: role, PasswordHash: passwordHash, IsActive: true}
	r.nextID++
	r.byEmail[key] = a
	copied := *a
	return &copied, nil
}

type staticGrants struct{}

func (staticGrants) EffectivePermissions(ctx context.Context, userID int64) ([]string, error) {
	return []string{authz.PermBugRead}, nil
}

func TestRegisterAndAuthenticate(t *testing.T) {
	svc := auth.NewService(newMemoryRepo(), staticGrants{})
	ctx := context.Background()

	account, err := svc.Register(ctx, "Dana", "dana@bugtrap.dev", "hunter2hunter2", authz.RoleQA)
	require.NoError(t, err)
	require.Equal(t, authz.RoleQA, account.Role)
	require.NotEqual(t, "hunter2hunter2", account.PasswordHash)

	got, err := svc.Authenticate(ctx, "DANA@bugtrap.dev", "hunter2hunter2")
	require.NoError(t, err)
	require.Equal(t, account.ID, got.ID)
}

func TestRegisterRejectsAdministrator(t *testing.T) {
	svc := auth.NewService(newMemoryRepo(), nil)

	_, err := svc.Register(context.Background(), "Eve", "eve@bugtrap.dev", "hunter2hunter2", authz.RoleAdministrator)
	require.ErrorIs(t, err, shared.ErrRoleNotAllowed)
}

func TestRegisterRejectsDuplicateEmail(t *testing.T) {
	svc := auth.NewService(newMemoryRepo(), nil)
	ctx := context.Background()

	_, err := svc.Register(ctx, "Dana", "dana@bugtrap.dev", "hunter2hunter2", authz.RoleDeveloper)
	require.NoError(t, err)

	_, err = svc.Register(ctx, "Other", "dana@bugtrap.dev", "hunter2hunter2", authz.RoleQA)
	require.ErrorIs(t, err, httpx.ErrDuplicate)
}

func TestAuthenticateFailuresAreUniform(t *testing.T) {
	repo := newMemoryRepo()
	svc := auth.NewService(repo, nil)
	ctx := context.Background()

	hash, err := bcrypt.GenerateFromPassword([]byte("correct-horse"), bcrypt.MinCost)
	require.NoError(t, err)
	repo.byEmail["sleepy@bugtrap.dev"] = &auth.Account{
		ID: 9, Email: "sleepy@bugtrap.dev", Role: authz.RoleDeveloper, PasswordHash: string(hash), IsActive: false,
	}

	for _, tc := range []struct {
		name     string
		email    string
		password string
	}{
		{"unknown email", "nobody@bugtrap.dev", "whatever"},
		{"wrong password", "sleepy@bugtrap.dev", "wrong"},
		{"deactivated account", "sleepy@bugtrap.dev", "correct-horse"},
	} {
		t.Run(tc.name, func(t *testing.T) {
			_, err := svc.Authenticate(ctx, tc.email, tc.password)
			require.ErrorIs(t, err, shared.ErrInvalidCredentials)
		})
	}
}

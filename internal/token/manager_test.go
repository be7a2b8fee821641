package token_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	"github.com/bugtrap/bugtrap/internal/authz"
	"github.com/bugtrap/bugtrap/internal/token"
	_ "github.com/bugtrap/bugtrap/testing"
)

type stubDirectory struct {
	states map[string]token.AccountState
}

func (d *stubDirectory) AccountState(ctx context.Context, id string) (token.AccountState, error) {
	if d.states == nil {
		return token.AccountActive, nil
	}
	state, ok := d.states[id]
	if !ok {
		return token.AccountUnknown, nil
	}
	return state, nil
}

func newManager(t *testing.T, ttl time.Duration, accounts token.AccountDirectory) (*token.Manager, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	denylist := token.NewDenylist(redis.NewClient(&redis.Options{Addr: mr.Addr()}))
	mgr, err := token.NewManager("test-secret-test-secret-test-secret", ttl, denylist, accounts)
	require.NoError(t, err)
	return mgr, mr
}

func TestIssueVerifyRoundTrip(t *testing.T) {
	mgr, _ := newManager(t, time.Hour, nil)

	signed, claims, err := mgr.Issue("42", authz.RoleDeveloper, []string{"bug:read", "bug:resolve"})
	require.NoError(t, err)
	require.NotEmpty(t, claims.ID)

	p, err := mgr.Verify(context.Background(), signed)
	require.NoError(t, err)
	require.Equal(t, "42", p.ID)
	require.Equal(t, authz.RoleDeveloper, p.Role)
	require.Equal(t, []string{"bug:read", "bug:resolve"}, p.Permissions)
}

func TestVerifyRejectsGarbage(t *testing.T) {
	mgr, _ := newManager(t, time.Hour, nil)

	for _, tok := range []string{"", "not-a-token", "aa.bb.cc"} {
		_, err := mgr.Verify(context.Background(), tok)
		require.ErrorIs(t, err, token.ErrTokenInvalid)
	}
}

func TestVerifyRejectsWrongSecret(t *testing.T) {
	mgr, _ := newManager(t, time.Hour, nil)
	other, err := token.NewManager("another-secret-another-secret!!", time.Hour, nil, nil)
	require.NoError(t, err)

	signed, _, err := other.Issue("42", authz.RoleQA, nil)
	require.NoError(t, err)

	_, err = mgr.Verify(context.Background(), signed)
	require.ErrorIs(t, err, token.ErrTokenInvalid)
}

func TestVerifyRejectsExpired(t *testing.T) {
	mgr, err := token.NewManager("test-secret-test-secret-test-secret", time.Nanosecond, nil, nil)
	require.NoError(t, err)

	signed, _, err := mgr.Issue("42", authz.RoleQA, nil)
	require.NoError(t, err)

	time.Sleep(10 * time.Millisecond)
	_, err = mgr.Verify(context.Background(), signed)
	require.ErrorIs(t, err, token.ErrTokenInvalid)
}

func TestRevokedTokenIsRejected(t *testing.T) {
	mgr, _ := newManager(t, time.Hour, nil)
	ctx := context.Background()

	signed, _, err := mgr.Issue("42", authz.RoleManager, []string{"bug:read"})
	require.NoError(t, err)

	_, err = mgr.Verify(ctx, signed)
	require.NoError(t, err)

	require.NoError(t, mgr.Revoke(ctx, signed))
	_, err = mgr.Verify(ctx, signed)
	require.ErrorIs(t, err, token.ErrTokenRevoked)
}

func TestAccountLiveness(t *testing.T) {
	dir := &stubDirectory{states: map[string]token.AccountState{
		"active":   token.AccountActive,
		"disabled": token.AccountDisabled,
	}}
	mgr, _ := newManager(t, time.Hour, dir)
	ctx := context.Background()

	for _, tc := range []struct {
		id      string
		wantErr error
	}{
		{"active", nil},
		{"disabled", token.ErrAccountDisabled},
		{"deleted", token.ErrAccountUnknown},
	} {
		signed, _, err := mgr.Issue(tc.id, authz.RoleDeveloper, nil)
		require.NoError(t, err)
		_, err = mgr.Verify(ctx, signed)
		if tc.wantErr == nil {
			require.NoError(t, err)
		} else {
			require.ErrorIs(t, err, tc.wantErr)
		}
	}
}

func TestManagerRequiresSecret(t *testing.T) {
	_, err := token.NewManager("", time.Hour, nil, nil)
	require.Error(t, err)
	require.False(t, errors.Is(err, token.ErrTokenInvalid))
}

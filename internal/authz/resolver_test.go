package authz

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func developer(id string, perms ...string) Principal {
	return Principal{ID: id, Role: RoleDeveloper, Permissions: perms}
}

func TestResolveAdministratorShortCircuits(t *testing.T) {
	// Permission set is irrelevant for administrators, even when empty.
	rs := Resolve(Principal{ID: "a1", Role: RoleAdministrator})
	rules := rs.Rules()
	require.Len(t, rules, 1)
	require.Equal(t, EffectCan, rules[0].Effect)
	require.Equal(t, ActionManage, rules[0].Action)
	require.Equal(t, ResourceAll, rules[0].Resource)
	require.Nil(t, rules[0].Condition)
}

func TestResolveUnknownRoleDeniesAll(t *testing.T) {
	rs := Resolve(Principal{ID: "x", Role: "Intern", Permissions: Catalog()})
	require.Empty(t, rs.Rules())
	require.False(t, rs.Can(ActionRead, ResourceBug, nil, ""))
}

func TestResolveEmptyGrantsYieldNothing(t *testing.T) {
	for _, role := range []Role{RoleManager, RoleDeveloper, RoleQA} {
		rs := Resolve(Principal{ID: "u1", Role: role})
		require.Empty(t, rs.Rules(), "role %s", role)
	}
}

func TestResolveIgnoresUnknownIdentifiers(t *testing.T) {
	// Unknown identifiers are skipped, never widened into a grant.
	p := developer("u1", "bug:teleport", "bug:*", "bug:read")
	rs := Resolve(p)
	require.True(t, rs.Can(ActionRead, ResourceBug, &Resource{Type: ResourceBug, ReportedBy: "u1"}, ""))
	require.False(t, rs.Can(ActionDelete, ResourceBug, &Resource{Type: ResourceBug}, ""))
	require.ElementsMatch(t, []string{"bug:teleport", "bug:*"}, UnknownGrants(p))
}

func TestResolveGrantWithoutRefinementFailsClosed(t *testing.T) {
	// Developers have no refinement for bug:create, so the grant alone
	// must not produce a rule.
	rs := Resolve(developer("u1", "bug:create"))
	require.Empty(t, rs.Rules())
	require.False(t, rs.Can(ActionCreate, ResourceBug, nil, ""))
}

func TestResolveIsIdempotent(t *testing.T) {
	p := developer("u1", "bug:read", "bug:resolve")
	a := Resolve(p)
	b := Resolve(p)

	bug := &Resource{Type: ResourceBug, ID: "b1", ReportedBy: "u2", AssignedTo: "u1"}
	queries := []struct {
		action Action
		rt     ResourceType
		res    *Resource
		field  string
	}{
		{ActionRead, ResourceBug, bug, ""},
		{ActionResolve, ResourceBug, bug, ""},
		{ActionUpdate, ResourceBug, bug, "status"},
		{ActionDelete, ResourceBug, bug, ""},
		{ActionRead, ResourceBug, nil, ""},
	}
	for _, q := range queries {
		require.Equal(t, a.Can(q.action, q.rt, q.res, q.field), b.Can(q.action, q.rt, q.res, q.field))
	}
	require.Equal(t, a.Rules(), b.Rules())
}

func TestRulesReturnsACopy(t *testing.T) {
	rs := Resolve(developer("u1", "bug:read"))
	rules := rs.Rules()
	require.NotEmpty(t, rules)
	rules[0].Action = ActionManage
	require.Equal(t, ActionRead, rs.Rules()[0].Action)
}

func TestRoleGrantsStayWithinCatalog(t *testing.T) {
	for _, role := range []Role{RoleAdministrator, RoleManager, RoleDeveloper, RoleQA} {
		for _, perm := range RoleGrants(role) {
			require.True(t, KnownPermission(perm), "%s grants unknown permission %s", role, perm)
		}
	}
	require.Nil(t, RoleGrants("Intern"))
}

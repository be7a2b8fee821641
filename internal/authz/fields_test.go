package authz

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestFilterWritableFieldsManager(t *testing.T) {
	rs := Resolve(Principal{ID: "m1", Role: RoleManager, Permissions: []string{"bug:update"}})
	bug := bugResource("b1", "u2", "u3")

	got := FilterWritableFields(rs, ActionUpdate, ResourceBug, bug, map[string]any{
		"priority": "High",
		"title":    "x",
	})
	require.Equal(t, map[string]any{"priority": "High"}, got)
}

func TestFilterWritableFieldsDeveloper(t *testing.T) {
	rs := Resolve(developer("u1", "bug:update"))
	proposed := map[string]any{
		"status":      "In Progress",
		"attachments": []string{"trace.log"},
		"priority":    "Critical",
		"title":       "hijack",
	}

	assigned := FilterWritableFields(rs, ActionUpdate, ResourceBug, bugResource("b1", "u2", "u1"), proposed)
	require.Equal(t, map[string]any{
		"status":      "In Progress",
		"attachments": []string{"trace.log"},
	}, assigned)

	// Not assigned: the conditioned rule does not apply and nothing is
	// writable.
	unassigned := FilterWritableFields(rs, ActionUpdate, ResourceBug, bugResource("b2", "u2", "u3"), proposed)
	require.Empty(t, unassigned)
}

func TestFilterWritableFieldsAdministrator(t *testing.T) {
	rs := Resolve(Principal{ID: "a1", Role: RoleAdministrator})
	proposed := map[string]any{"title": "x", "status": "Closed", "assigned_to": "u9"}

	got := FilterWritableFields(rs, ActionUpdate, ResourceBug, bugResource("b1", "u2", ""), proposed)
	require.Equal(t, proposed, got)
}

func TestFilterWritableFieldsAdminRoleWithoutRule(t *testing.T) {
	// Defense in depth: a rule set that merely claims the administrator
	// role without the manage-everything rule filters like anyone else.
	rs := &RuleSet{principal: Principal{ID: "a1", Role: RoleAdministrator}}
	got := FilterWritableFields(rs, ActionUpdate, ResourceBug, bugResource("b1", "u2", ""), map[string]any{"title": "x"})
	require.Empty(t, got)
}

func TestFilterWritableFieldsSubsetLaw(t *testing.T) {
	proposed := map[string]any{
		"title": "t", "description": "d", "status": "Open", "priority": "Low",
		"attachments": nil, "assigned_to": "u5", "reported_by": "u6", "bogus": 1,
	}
	bug := bugResource("b1", "u1", "u1")

	principals := []Principal{
		{ID: "a1", Role: RoleAdministrator},
		{ID: "u1", Role: RoleManager, Permissions: Catalog()},
		{ID: "u1", Role: RoleDeveloper, Permissions: Catalog()},
		{ID: "u1", Role: RoleQA, Permissions: Catalog()},
		{ID: "u1", Role: "Intern", Permissions: Catalog()},
		{ID: "u1", Role: RoleDeveloper},
	}
	for _, p := range principals {
		rs := Resolve(p)
		got := FilterWritableFields(rs, ActionUpdate, ResourceBug, bug, proposed)
		for k, v := range got {
			want, ok := proposed[k]
			require.True(t, ok, "role %s produced field %q not in input", p.Role, k)
			require.Equal(t, want, v, "values must pass through untransformed")
		}
	}
}

func TestFilterWritableFieldsEmptyInput(t *testing.T) {
	rs := Resolve(Principal{ID: "q1", Role: RoleQA, Permissions: Catalog()})
	require.Empty(t, FilterWritableFields(rs, ActionUpdate, ResourceBug, bugResource("b1", "q1", ""), nil))
}

package authz

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"
)

func bugResource(id, reportedBy, assignedTo string) *Resource {
	return &Resource{Type: ResourceBug, ID: id, ReportedBy: reportedBy, AssignedTo: assignedTo}
}

func TestAdministratorCanDoAnything(t *testing.T) {
	rs := Resolve(Principal{ID: "a1", Role: RoleAdministrator})
	resources := []*Resource{
		nil,
		bugResource("b1", "u2", "u3"),
		{Type: ResourceUser, ID: "u9"},
	}
	actions := []Action{ActionRead, ActionCreate, ActionUpdate, ActionDelete, ActionResolve, ActionAssign, ActionOpen, ActionClose, ActionReopen}
	for _, res := range resources {
		for _, action := range actions {
			for _, rt := range []ResourceType{ResourceBug, ResourceUser} {
				for _, field := range []string{"", "priority", "title", "anything"} {
					require.True(t, rs.Can(action, rt, res, field),
						"admin denied %s on %s field %q", action, rt, field)
				}
			}
		}
	}
}

func TestDeveloperReadRequiresRelationship(t *testing.T) {
	bug := bugResource("b1", "u-reporter", "u-assignee")

	for _, tc := range []struct {
		id   string
		want bool
	}{
		{"u-reporter", true},
		{"u-assignee", true},
		{"u-other", false},
	} {
		rs := Resolve(developer(tc.id, "bug:read"))
		require.Equal(t, tc.want, rs.Can(ActionRead, ResourceBug, bug, ""), "developer %s", tc.id)
	}
}

func TestDeveloperResolveOnlyWhenAssigned(t *testing.T) {
	rs := Resolve(developer("u1", "bug:read", "bug:resolve"))

	require.True(t, rs.Can(ActionResolve, ResourceBug, bugResource("b1", "u2", "u1"), ""))
	require.False(t, rs.Can(ActionResolve, ResourceBug, bugResource("b2", "u1", "u2"), ""), "reporting is not enough")
	require.False(t, rs.Can(ActionResolve, ResourceBug, bugResource("b3", "u2", ""), ""), "unassigned bug")
	require.False(t, rs.Can(ActionResolve, ResourceBug, nil, ""), "conditioned rule must not answer resource-less query")
}

func TestDeveloperScenario(t *testing.T) {
	// Principal {Developer, u1, [bug:read bug:resolve]} against a bug
	// assigned to them but reported by someone else.
	rs := Resolve(developer("u1", "bug:read", "bug:resolve"))
	bug := bugResource("b1", "u2", "u1")

	require.True(t, rs.Can(ActionRead, ResourceBug, bug, ""))
	require.True(t, rs.Can(ActionResolve, ResourceBug, bug, ""))
	require.False(t, rs.Can(ActionDelete, ResourceBug, bug, ""))
	require.False(t, rs.Can(ActionUpdate, ResourceBug, bug, ""), "bug:update was not granted")
}

func TestManagerScenario(t *testing.T) {
	rs := Resolve(Principal{ID: "m1", Role: RoleManager, Permissions: []string{"bug:read", "bug:update", "bug:assign"}})
	bug := bugResource("b1", "u2", "u3")

	require.False(t, rs.Can(ActionUpdate, ResourceBug, bug, "status"))
	require.True(t, rs.Can(ActionUpdate, ResourceBug, bug, "priority"))
	require.True(t, rs.Can(ActionAssign, ResourceBug, bug, ""))
	require.False(t, rs.Can(ActionDelete, ResourceBug, bug, ""))
}

func TestQACreateRequiresGrant(t *testing.T) {
	withGrant := Resolve(Principal{ID: "q1", Role: RoleQA, Permissions: []string{"bug:create"}})
	require.True(t, withGrant.Can(ActionCreate, ResourceBug, nil, ""))

	// Role alone is not enough; the permission identifier must be granted.
	withoutGrant := Resolve(Principal{ID: "q1", Role: RoleQA, Permissions: []string{"bug:read"}})
	require.False(t, withoutGrant.Can(ActionCreate, ResourceBug, nil, ""))
}

func TestQAUpdateScopedToOwnReports(t *testing.T) {
	rs := Resolve(Principal{ID: "q1", Role: RoleQA, Permissions: []string{"bug:update"}})

	require.True(t, rs.Can(ActionUpdate, ResourceBug, bugResource("b1", "q1", ""), "title"))
	require.False(t, rs.Can(ActionUpdate, ResourceBug, bugResource("b2", "u2", "u3"), "title"))

	// Lifecycle pseudo-actions ride on bug:update and are unconditioned.
	for _, action := range []Action{ActionOpen, ActionClose, ActionReopen} {
		require.True(t, rs.Can(action, ResourceBug, nil, ""))
		require.True(t, rs.Can(action, ResourceBug, bugResource("b2", "u2", "u3"), ""))
	}
}

func TestUngrantedActionsDenyRegardlessOfResource(t *testing.T) {
	// For each role, every action mapped from a permission outside the
	// grant set must be denied.
	bug := bugResource("b1", "u1", "u1")
	self := &Resource{Type: ResourceUser, ID: "u1"}

	for _, tc := range []struct {
		role    Role
		action  Action
		rt      ResourceType
		res     *Resource
		missing string
	}{
		{RoleManager, ActionAssign, ResourceBug, bug, "bug:assign"},
		{RoleManager, ActionUpdate, ResourceBug, bug, "bug:update"},
		{RoleDeveloper, ActionResolve, ResourceBug, bug, "bug:resolve"},
		{RoleDeveloper, ActionRead, ResourceBug, bug, "bug:read"},
		{RoleQA, ActionDelete, ResourceBug, bug, "bug:delete"},
		{RoleQA, ActionRead, ResourceUser, self, "user:read"},
	} {
		perms := make([]string, 0, len(Catalog()))
		for _, perm := range Catalog() {
			if perm != tc.missing {
				perms = append(perms, perm)
			}
		}
		rs := Resolve(Principal{ID: "u1", Role: tc.role, Permissions: perms})
		require.False(t, rs.Can(tc.action, tc.rt, tc.res, ""),
			"%s without %s must deny %s", tc.role, tc.missing, tc.action)
	}
}

func TestLastRuleWinsOrdering(t *testing.T) {
	// The developer read policy is a cannot blanket followed by conditioned
	// grants; verify both directions of the layering.
	rs := Resolve(developer("u1", "bug:read"))

	require.False(t, rs.Can(ActionRead, ResourceBug, bugResource("b1", "u2", "u3"), ""),
		"blanket retraction must hold when no condition matches")
	require.True(t, rs.Can(ActionRead, ResourceBug, bugResource("b2", "u1", ""), ""),
		"later conditioned grant must re-open access")

	// A hand-built set with the pair reversed shows order is load-bearing:
	// the trailing cannot buries the conditioned grant.
	reversed := &RuleSet{
		principal: Principal{ID: "u1", Role: RoleDeveloper},
		rules: []Rule{
			{Effect: EffectCan, Action: ActionRead, Resource: ResourceBug, Condition: reportedByMe()},
			{Effect: EffectCannot, Action: ActionRead, Resource: ResourceBug},
		},
	}
	require.False(t, reversed.Can(ActionRead, ResourceBug, bugResource("b2", "u1", ""), ""))
}

func TestUnrecognisedQueriesMatchNothing(t *testing.T) {
	rs := Resolve(Principal{ID: "q1", Role: RoleQA, Permissions: Catalog()})
	require.False(t, rs.Can("transmogrify", ResourceBug, nil, ""))
	require.False(t, rs.Can(ActionRead, "Widget", nil, ""))
}

func TestUserReadSelfOnly(t *testing.T) {
	for _, role := range []Role{RoleDeveloper, RoleQA} {
		rs := Resolve(Principal{ID: "u1", Role: role, Permissions: []string{"user:read"}})
		require.True(t, rs.Can(ActionRead, ResourceUser, &Resource{Type: ResourceUser, ID: "u1"}, ""), "%s self", role)
		require.False(t, rs.Can(ActionRead, ResourceUser, &Resource{Type: ResourceUser, ID: "u2"}, ""), "%s other", role)
	}

	manager := Resolve(Principal{ID: "m1", Role: RoleManager, Permissions: []string{"user:read"}})
	require.True(t, manager.Can(ActionRead, ResourceUser, &Resource{Type: ResourceUser, ID: "u2"}, ""))
}

func TestCanAnyAnswersTypeLevelQueries(t *testing.T) {
	dev := Resolve(developer("u1", "bug:read", "bug:resolve"))

	// Resource-less Can fails closed for conditioned access, CanAny does
	// not: the route guard must let the request through so the handler can
	// re-check against the loaded bug.
	require.False(t, dev.Can(ActionRead, ResourceBug, nil, ""))
	require.True(t, dev.CanAny(ActionRead, ResourceBug))
	require.True(t, dev.CanAny(ActionResolve, ResourceBug))
	require.False(t, dev.CanAny(ActionDelete, ResourceBug))
	require.False(t, dev.CanAny(ActionCreate, ResourceBug))

	none := Resolve(developer("u1"))
	require.False(t, none.CanAny(ActionRead, ResourceBug))
}

func TestReadScope(t *testing.T) {
	for _, tc := range []struct {
		name  string
		p     Principal
		rt    ResourceType
		all   bool
		flds  []string
		empty bool
	}{
		{name: "admin sees all", p: Principal{ID: "a1", Role: RoleAdministrator}, rt: ResourceBug, all: true},
		{name: "manager sees all bugs", p: Principal{ID: "m1", Role: RoleManager, Permissions: []string{"bug:read"}}, rt: ResourceBug, all: true},
		{name: "developer sees own", p: developer("u1", "bug:read"), rt: ResourceBug, flds: []string{FieldReportedBy, FieldAssignedTo}},
		{name: "developer self directory", p: developer("u1", "user:read"), rt: ResourceUser, flds: []string{FieldID}},
		{name: "no grant sees nothing", p: developer("u1"), rt: ResourceBug, empty: true},
	} {
		t.Run(tc.name, func(t *testing.T) {
			scope := Resolve(tc.p).ReadScope(tc.rt)
			require.Equal(t, tc.all, scope.All)
			require.Equal(t, tc.flds, scope.PrincipalFields)
			if tc.empty {
				require.True(t, scope.None())
			}
		})
	}
}

func TestCustomConditionPredicate(t *testing.T) {
	rs := &RuleSet{
		principal: Principal{ID: "u1", Role: RoleDeveloper},
		rules: []Rule{
			{Effect: EffectCan, Action: ActionRead, Resource: ResourceBug, Condition: &Condition{
				Kind: CondCustom,
				Predicate: func(p Principal, res *Resource) bool {
					return res.ReportedBy == p.ID || res.AssignedTo == p.ID
				},
			}},
		},
	}
	require.True(t, rs.Can(ActionRead, ResourceBug, bugResource("b1", "u1", ""), ""))
	require.False(t, rs.Can(ActionRead, ResourceBug, bugResource("b2", "u2", ""), ""))
	require.False(t, rs.Can(ActionRead, ResourceBug, nil, ""), "custom conditions fail closed without a resource")
}

func ExampleRuleSet_Can() {
	rs := Resolve(Principal{
		ID:          "u1",
		Role:        RoleDeveloper,
		Permissions: []string{"bug:read", "bug:resolve"},
	})
	bug := &Resource{Type: ResourceBug, ID: "b1", ReportedBy: "u2", AssignedTo: "u1"}
	fmt.Println(rs.Can(ActionResolve, ResourceBug, bug, ""))
	fmt.Println(rs.Can(ActionDelete, ResourceBug, bug, ""))
	// Output:
	// true
	// false
}

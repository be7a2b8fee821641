package authz

// Permission identifiers use the form <resource>:<verb>. The catalog is the
// closed set of identifiers the resolver recognises; anything outside it in a
// principal's grant set is ignored, never treated as a wildcard.
const (
	PermBugRead    = "bug:read"
	PermBugCreate  = "bug:create"
	PermBugUpdate  = "bug:update"
	PermBugDelete  = "bug:delete"
	PermBugResolve = "bug:resolve"
	PermBugAssign  = "bug:assign"

	PermUserRead   = "user:read"
	PermUserUpdate = "user:update"
	PermUserDelete = "user:delete"
)

// Catalog lists every permission identifier in declaration order.
func Catalog() []string {
	return []string{
		PermBugRead,
		PermBugCreate,
		PermBugUpdate,
		PermBugDelete,
		PermBugResolve,
		PermBugAssign,
		PermUserRead,
		PermUserUpdate,
		PermUserDelete,
	}
}

// KnownPermission reports catalog membership.
func KnownPermission(name string) bool {
	switch name {
	case PermBugRead, PermBugCreate, PermBugUpdate, PermBugDelete,
		PermBugResolve, PermBugAssign,
		PermUserRead, PermUserUpdate, PermUserDelete:
		return true
	}
	return false
}

// RoleGrants maps each system role to the permission identifiers it is
// seeded with. The administrator holds the full catalog but never consults
// it: Resolve short-circuits that role to a manage-everything rule.
func RoleGrants(role Role) []string {
	switch role {
	case RoleAdministrator:
		return Catalog()
	case RoleManager:
		return []string{PermBugRead, PermBugUpdate, PermBugAssign, PermUserRead}
	case RoleDeveloper:
		return []string{PermBugRead, PermBugUpdate, PermBugResolve, PermUserRead}
	case RoleQA:
		return []string{PermBugRead, PermBugCreate, PermBugUpdate, PermBugDelete, PermBugAssign, PermUserRead}
	}
	return nil
}

// policyRow contributes rules to a principal's rule set when the principal
// holds the row's role and the row's gating permission is in its grant set.
// A granted permission with no row for the role yields nothing: refinements
// only ever narrow a grant, and missing policy fails closed.
type policyRow struct {
	role  Role
	perm  string
	rules []Rule
}

func assignedToMe() *Condition {
	return &Condition{Kind: CondFieldEqualsPrincipal, Field: FieldAssignedTo}
}

func reportedByMe() *Condition {
	return &Condition{Kind: CondFieldEqualsPrincipal, Field: FieldReportedBy}
}

func isSelf() *Condition {
	return &Condition{Kind: CondFieldEqualsPrincipal, Field: FieldID}
}

// rolePolicy is the role refinement table, kept as data so the effective
// policy can be audited in one place. Row order within a role matters: the
// cannot/can pairs rely on later rules overriding earlier ones.
//
// Product decision: bug deletion is QA and Administrator only; Manager holds
// no bug:delete refinement even if granted the permission.
var rolePolicy = []policyRow{
	// Manager: sees every bug, may retitle priorities and hand out
	// assignments, and reads the whole user directory.
	{role: RoleManager, perm: PermBugRead, rules: []Rule{
		{Effect: EffectCan, Action: ActionRead, Resource: ResourceBug},
	}},
	{role: RoleManager, perm: PermBugUpdate, rules: []Rule{
		{Effect: EffectCan, Action: ActionUpdate, Resource: ResourceBug, Fields: []string{"priority"}},
	}},
	{role: RoleManager, perm: PermBugAssign, rules: []Rule{
		{Effect: EffectCan, Action: ActionAssign, Resource: ResourceBug},
	}},
	{role: RoleManager, perm: PermUserRead, rules: []Rule{
		{Effect: EffectCan, Action: ActionRead, Resource: ResourceUser},
	}},

	// Developer: only bugs they reported or are assigned to; may move the
	// status of their own assignments and resolve them.
	{role: RoleDeveloper, perm: PermBugRead, rules: []Rule{
		{Effect: EffectCannot, Action: ActionRead, Resource: ResourceBug},
		{Effect: EffectCan, Action: ActionRead, Resource: ResourceBug, Condition: reportedByMe()},
		{Effect: EffectCan, Action: ActionRead, Resource: ResourceBug, Condition: assignedToMe()},
	}},
	{role: RoleDeveloper, perm: PermBugUpdate, rules: []Rule{
		{Effect: EffectCan, Action: ActionUpdate, Resource: ResourceBug, Condition: assignedToMe(), Fields: []string{"status", "attachments"}},
	}},
	{role: RoleDeveloper, perm: PermBugResolve, rules: []Rule{
		{Effect: EffectCannot, Action: ActionResolve, Resource: ResourceBug},
		{Effect: EffectCan, Action: ActionResolve, Resource: ResourceBug, Condition: assignedToMe()},
	}},
	{role: RoleDeveloper, perm: PermUserRead, rules: []Rule{
		{Effect: EffectCannot, Action: ActionRead, Resource: ResourceUser},
		{Effect: EffectCan, Action: ActionRead, Resource: ResourceUser, Condition: isSelf()},
	}},

	// QA: full bug lifecycle. Updates are limited to bugs they reported;
	// open/close/reopen are unconditioned.
	{role: RoleQA, perm: PermBugRead, rules: []Rule{
		{Effect: EffectCan, Action: ActionRead, Resource: ResourceBug},
	}},
	{role: RoleQA, perm: PermBugCreate, rules: []Rule{
		{Effect: EffectCan, Action: ActionCreate, Resource: ResourceBug},
	}},
	{role: RoleQA, perm: PermBugUpdate, rules: []Rule{
		{Effect: EffectCan, Action: ActionUpdate, Resource: ResourceBug, Condition: reportedByMe()},
		{Effect: EffectCan, Action: ActionOpen, Resource: ResourceBug},
		{Effect: EffectCan, Action: ActionClose, Resource: ResourceBug},
		{Effect: EffectCan, Action: ActionReopen, Resource: ResourceBug},
	}},
	{role: RoleQA, perm: PermBugDelete, rules: []Rule{
		{Effect: EffectCan, Action: ActionDelete, Resource: ResourceBug},
	}},
	{role: RoleQA, perm: PermBugAssign, rules: []Rule{
		{Effect: EffectCan, Action: ActionAssign, Resource: ResourceBug},
	}},
	{role: RoleQA, perm: PermUserRead, rules: []Rule{
		{Effect: EffectCannot, Action: ActionRead, Resource: ResourceUser},
		{Effect: EffectCan, Action: ActionRead, Resource: ResourceUser, Condition: isSelf()},
	}},
}

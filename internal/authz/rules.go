// Package authz implements the capability rule engine that decides what an
// authenticated principal may do to bugs and users. Rule sets are built once
// per request from the principal's role and granted permissions, consulted by
// handlers, and discarded at response time. The package performs no I/O.
package authz

// Role is the coarse permission grouping a user account belongs to.
type Role string

// System roles.
const (
	RoleAdministrator Role = "Administrator"
	RoleManager       Role = "Manager"
	RoleDeveloper     Role = "Developer"
	RoleQA            Role = "QA"
)

// KnownRole reports whether r is one of the system roles.
func KnownRole(r Role) bool {
	switch r {
	case RoleAdministrator, RoleManager, RoleDeveloper, RoleQA:
		return true
	}
	return false
}

// Action is a verb a principal may perform on a resource.
type Action string

// Actions. ActionManage is the wildcard matching any query.
const (
	ActionManage  Action = "manage"
	ActionRead    Action = "read"
	ActionCreate  Action = "create"
	ActionUpdate  Action = "update"
	ActionDelete  Action = "delete"
	ActionResolve Action = "resolve"
	ActionAssign  Action = "assign"
	ActionOpen    Action = "open"
	ActionClose   Action = "close"
	ActionReopen  Action = "reopen"
)

// ResourceType identifies the kind of resource a rule or query refers to.
// ResourceAll is the wildcard matching any query.
type ResourceType string

const (
	ResourceBug  ResourceType = "Bug"
	ResourceUser ResourceType = "User"
	ResourceAll  ResourceType = "all"
)

// Principal is the authenticated actor making a request. It is assembled from
// the verified token once per request and never persisted.
type Principal struct {
	ID          string   `json:"id"`
	Role        Role     `json:"role"`
	Permissions []string `json:"permissions"`
}

// Resource is the snapshot of a concrete record that conditions are evaluated
// against. The engine only reads it; loading and mutating rows is the
// caller's concern. Relationship fields hold principal IDs; empty means
// unset.
type Resource struct {
	Type       ResourceType
	ID         string
	ReportedBy string
	AssignedTo string
}

// field resolves a condition field name against the snapshot.
func (r *Resource) field(name string) string {
	switch name {
	case FieldID:
		return r.ID
	case FieldReportedBy:
		return r.ReportedBy
	case FieldAssignedTo:
		return r.AssignedTo
	}
	return ""
}

// Resource fields conditions may reference.
const (
	FieldID         = "id"
	FieldReportedBy = "reported_by"
	FieldAssignedTo = "assigned_to"
)

// Effect says whether a rule grants or retracts access.
type Effect string

const (
	EffectCan    Effect = "can"
	EffectCannot Effect = "cannot"
)

// ConditionKind tags the condition variants so rule sets stay serializable
// and inspectable.
type ConditionKind string

const (
	// CondAlways matches every resource, including resource-less queries.
	CondAlways ConditionKind = "always"
	// CondFieldEqualsPrincipal matches when the named resource field equals
	// the principal's ID ("assigned to me", "reported by me", "is me").
	CondFieldEqualsPrincipal ConditionKind = "field-equals-principal"
	// CondCustom evaluates an arbitrary predicate. Not serializable; absent
	// from the client projection.
	CondCustom ConditionKind = "custom"
)

// Condition is a predicate over (principal, resource) attached to a rule.
// A nil *Condition behaves like CondAlways.
type Condition struct {
	Kind      ConditionKind                   `json:"kind"`
	Field     string                          `json:"field,omitempty"`
	Predicate func(Principal, *Resource) bool `json:"-"`
}

// Matches evaluates the condition. Condition-bearing rules never match a
// resource-less query: access that depends on a concrete record fails closed
// until the record is loaded.
func (c *Condition) Matches(p Principal, res *Resource) bool {
	if c == nil || c.Kind == CondAlways {
		return true
	}
	if res == nil {
		return false
	}
	switch c.Kind {
	case CondFieldEqualsPrincipal:
		v := res.field(c.Field)
		return v != "" && v == p.ID
	case CondCustom:
		return c.Predicate != nil && c.Predicate(p, res)
	}
	return false
}

// Rule is one unit of resolved policy: an effect, an action, a resource type,
// an optional condition and an optional field allow-list (absence means all
// fields).
type Rule struct {
	Effect    Effect       `json:"effect"`
	Action    Action       `json:"action"`
	Resource  ResourceType `json:"resource"`
	Condition *Condition   `json:"condition,omitempty"`
	Fields    []string     `json:"fields,omitempty"`
}

// appliesTo reports whether the rule is relevant to an (action, resource
// type, field) query, ignoring the condition. field may be empty for
// whole-resource queries.
func (r *Rule) appliesTo(action Action, rt ResourceType, field string) bool {
	if r.Action != action && r.Action != ActionManage {
		return false
	}
	if r.Resource != rt && r.Resource != ResourceAll {
		return false
	}
	if field != "" && len(r.Fields) > 0 && !r.allowsField(field) {
		return false
	}
	return true
}

func (r *Rule) allowsField(field string) bool {
	for _, f := range r.Fields {
		if f == field {
			return true
		}
	}
	return false
}

// RuleSet is the ordered list of capability rules resolved for one principal.
// Order is significant: the last rule matching a query decides it, which lets
// role policies retract a blanket grant and re-open it under a condition.
// Rule sets are immutable after construction.
type RuleSet struct {
	principal Principal
	rules     []Rule
}

// Principal returns the principal the rule set was resolved for.
func (rs *RuleSet) Principal() Principal {
	return rs.principal
}

// Rules returns a copy of the resolved rules, e.g. for the client-side
// projection. The server-side decision stays authoritative.
func (rs *RuleSet) Rules() []Rule {
	out := make([]Rule, len(rs.rules))
	copy(out, rs.rules)
	return out
}

// managesAll reports whether an unconditioned manage-everything rule is
// present (the administrator grant).
func (rs *RuleSet) managesAll() bool {
	for i := range rs.rules {
		r := &rs.rules[i]
		if r.Effect == EffectCan && r.Action == ActionManage && r.Resource == ResourceAll && r.Condition == nil {
			return true
		}
	}
	return false
}

package authz

// Can answers whether the principal may perform action on the given resource
// type, optionally narrowed to one concrete resource and one field.
//
// Rules are scanned in construction order and the last applicable rule
// decides. A rule is applicable when its action and resource type cover the
// query, its field allow-list (if any) contains the queried field, and its
// condition (if any) holds against the concrete resource. Condition-bearing
// rules never apply to a resource-less query; only unconditioned rules answer
// those. No applicable rule means deny.
func (rs *RuleSet) Can(action Action, rt ResourceType, res *Resource, field string) bool {
	decision := false
	for i := range rs.rules {
		r := &rs.rules[i]
		if !r.appliesTo(action, rt, field) {
			continue
		}
		if !r.Condition.Matches(rs.principal, res) {
			continue
		}
		decision = r.Effect == EffectCan
	}
	return decision
}

// Cannot is the negation of Can.
func (rs *RuleSet) Cannot(action Action, rt ResourceType, res *Resource, field string) bool {
	return !rs.Can(action, rt, res, field)
}

// CanAny answers the type-level question "is this action ever possible",
// treating condition-bearing rules as potentially applicable. It backs coarse
// route guards and UI affordances that run before a resource is loaded; it is
// a convenience projection, never a security boundary. Handlers must re-check
// with Can once the resource is known.
func (rs *RuleSet) CanAny(action Action, rt ResourceType) bool {
	decision := false
	for i := range rs.rules {
		r := &rs.rules[i]
		if !r.appliesTo(action, rt, "") {
			continue
		}
		decision = r.Effect == EffectCan
	}
	return decision
}

// Scope describes which rows of a listing the principal may see. When All is
// false, PrincipalFields names the resource fields of which at least one must
// equal the principal's ID; empty with All false means nothing is visible.
type Scope struct {
	All             bool
	PrincipalFields []string
}

// None reports whether the scope excludes every row.
func (s Scope) None() bool {
	return !s.All && len(s.PrincipalFields) == 0
}

// ReadScope derives the listing scope for a resource type from the resolved
// read rules, so repositories can filter queries without re-implementing role
// logic. An unconditioned grant widens to everything, an unconditioned
// retraction resets, and field-equals conditions accumulate as relationship
// filters.
func (rs *RuleSet) ReadScope(rt ResourceType) Scope {
	var scope Scope
	for i := range rs.rules {
		r := &rs.rules[i]
		if !r.appliesTo(ActionRead, rt, "") {
			continue
		}
		switch {
		case r.Condition == nil || r.Condition.Kind == CondAlways:
			if r.Effect == EffectCan {
				scope = Scope{All: true}
			} else {
				scope = Scope{}
			}
		case r.Condition.Kind == CondFieldEqualsPrincipal && r.Effect == EffectCan:
			if !scope.All && !containsField(scope.PrincipalFields, r.Condition.Field) {
				scope.PrincipalFields = append(scope.PrincipalFields, r.Condition.Field)
			}
		}
	}
	return scope
}

func containsField(fields []string, field string) bool {
	for _, f := range fields {
		if f == field {
			return true
		}
	}
	return false
}

package authz

// Resolve builds the ordered capability rule set for one principal. It is a
// pure function of the principal and the static policy table: identical
// inputs always produce rule sets with identical decisions.
//
// Administrators short-circuit to a single manage-everything rule; their
// grant set is not consulted. For every other role a rule only materialises
// when the gating catalog permission is present in the grant set, so an
// unknown role or an empty grant set resolves to deny-all.
func Resolve(p Principal) *RuleSet {
	rs := &RuleSet{principal: p}
	if p.Role == RoleAdministrator {
		rs.rules = []Rule{{Effect: EffectCan, Action: ActionManage, Resource: ResourceAll}}
		return rs
	}

	granted := make(map[string]struct{}, len(p.Permissions))
	for _, perm := range p.Permissions {
		if !KnownPermission(perm) {
			continue
		}
		granted[perm] = struct{}{}
	}

	for _, row := range rolePolicy {
		if row.role != p.Role {
			continue
		}
		if _, ok := granted[row.perm]; !ok {
			continue
		}
		rs.rules = append(rs.rules, row.rules...)
	}
	return rs
}

// UnknownGrants returns the permission identifiers in the principal's grant
// set that are absent from the catalog. Resolve ignores them; callers may
// want to surface them as a data-integrity signal.
func UnknownGrants(p Principal) []string {
	var unknown []string
	for _, perm := range p.Permissions {
		if !KnownPermission(perm) {
			unknown = append(unknown, perm)
		}
	}
	return unknown
}

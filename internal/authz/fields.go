package authz

// FilterWritableFields reduces a proposed update payload to the fields the
// principal may write, preserving values untouched. The result is always a
// subset of the input keys; an empty result is valid and the caller decides
// whether that is an error.
//
// The administrator fast path keys off the resolved manage-everything rule
// rather than the role, so a caller that forgot to special-case
// administrators still gets the right answer and a principal merely claiming
// the role without the rule gets ordinary filtering.
func FilterWritableFields(rs *RuleSet, action Action, rt ResourceType, res *Resource, proposed map[string]any) map[string]any {
	allowed := make(map[string]any, len(proposed))
	if rs.managesAll() {
		for k, v := range proposed {
			allowed[k] = v
		}
		return allowed
	}
	for k, v := range proposed {
		if rs.Can(action, rt, res, k) {
			allowed[k] = v
		}
	}
	return allowed
}

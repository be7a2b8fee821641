// Package shared holds request-scoped plumbing used across feature packages:
// principal context, the audit trail, pagination and common errors.
package shared

import (
	"context"

	"github.com/bugtrap/bugtrap/internal/authz"
)

type principalContextKey struct{}

type ruleSetContextKey struct{}

// ContextWithPrincipal stores the authenticated principal in context.
func ContextWithPrincipal(ctx context.Context, p authz.Principal) context.Context {
	return context.WithValue(ctx, principalContextKey{}, p)
}

// PrincipalFromContext extracts the principal from context. ok is false when
// the request is unauthenticated.
func PrincipalFromContext(ctx context.Context) (authz.Principal, bool) {
	p, ok := ctx.Value(principalContextKey{}).(authz.Principal)
	return p, ok
}

// ContextWithRuleSet stores the per-request capability rule set in context.
func ContextWithRuleSet(ctx context.Context, rs *authz.RuleSet) context.Context {
	return context.WithValue(ctx, ruleSetContextKey{}, rs)
}

// RuleSetFromContext extracts the rule set from context; nil when the request
// is unauthenticated.
func RuleSetFromContext(ctx context.Context) *authz.RuleSet {
	rs, _ := ctx.Value(ruleSetContextKey{}).(*authz.RuleSet)
	return rs
}

package rbac

import (
	"context"
	"net/http"
	"strings"

	"github.com/bugtrap/bugtrap/internal/authz"
	"github.com/bugtrap/bugtrap/internal/observability"
	"github.com/bugtrap/bugtrap/internal/platform/httpx"
	"github.com/bugtrap/bugtrap/internal/shared"
)

// SessionCookie is the cookie that carries the access token for browser
// clients. API clients send the same token in the Authorization header.
const SessionCookie = "bugtrap_token"

// TokenVerifier validates an access token and returns the principal it was
// issued to.
type TokenVerifier interface {
	Verify(ctx context.Context, token string) (authz.Principal, error)
}

// Middleware authenticates requests and attaches the resolved rule set to the
// request context.
type Middleware struct {
	verifier TokenVerifier
	metrics  *observability.Metrics
}

// NewMiddleware constructs the authentication middleware.
func NewMiddleware(verifier TokenVerifier, metrics *observability.Metrics) *Middleware {
	return &Middleware{verifier: verifier, metrics: metrics}
}

// Authenticate verifies the bearer token, resolves the principal's rules and
// stores both on the context. Every token failure maps to 401; the reason is
// deliberately not leaked to the client.
func (m *Middleware) Authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		raw := bearerToken(r)
		if raw == "" {
			httpx.Problem(w, http.StatusUnauthorized, "Unauthorized", "missing access token")
			return
		}

		principal, err := m.verifier.Verify(r.Context(), raw)
		if err != nil {
			httpx.Problem(w, http.StatusUnauthorized, "Unauthorized", "invalid or expired access token")
			return
		}

		m.metrics.ObserveUnknownGrants(len(authz.UnknownGrants(principal)))

		ctx := shared.ContextWithPrincipal(r.Context(), principal)
		ctx = shared.ContextWithRuleSet(ctx, authz.Resolve(principal))
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// RequireCan guards a route with a coarse, resource-less capability check.
// Conditioned grants pass here; row-level checks happen in the handlers once
// the resource is loaded.
func (m *Middleware) RequireCan(action authz.Action, resource authz.ResourceType) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			rs := shared.RuleSetFromContext(r.Context())
			if rs == nil {
				httpx.Problem(w, http.StatusUnauthorized, "Unauthorized", "missing access token")
				return
			}
			allowed := rs.CanAny(action, resource)
			m.metrics.ObserveDecision(string(action), string(resource), allowed)
			if !allowed {
				httpx.Problem(w, http.StatusForbidden, "Forbidden", "insufficient permissions")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func bearerToken(r *http.Request) string {
	if header := r.Header.Get("Authorization"); header != "" {
		if token, ok := strings.CutPrefix(header, "Bearer "); ok {
			return strings.TrimSpace(token)
		}
		return ""
	}
	if cookie, err := r.Cookie(SessionCookie); err == nil {
		return cookie.Value
	}
	return ""
}

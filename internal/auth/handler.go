package auth

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/httprate"
	"github.com/go-playground/validator/v10"

	"github.com/bugtrap/bugtrap/internal/authz"
	"github.com/bugtrap/bugtrap/internal/platform/httpx"
	"github.com/bugtrap/bugtrap/internal/rbac"
	"github.com/bugtrap/bugtrap/internal/shared"
	"github.com/bugtrap/bugtrap/internal/token"
)

// TokenPort is the slice of the token manager the handler needs.
type TokenPort interface {
	Issue(userID string, role authz.Role, permissions []string) (string, *token.Claims, error)
	Revoke(ctx context.Context, tokenString string) error
	TTL() time.Duration
}

// Handler wires HTTP endpoints for authentication flows.
type Handler struct {
	logger    *slog.Logger
	service   *Service
	tokens    TokenPort
	mw        *rbac.Middleware
	secure    bool
	validator *validator.Validate
}

// NewHandler constructs a Handler instance. secure controls the cookie's
// Secure flag and should be true outside local development.
func NewHandler(logger *slog.Logger, service *Service, tokens TokenPort, mw *rbac.Middleware, secure bool) *Handler {
	return &Handler{
		logger:    logger,
		service:   service,
		tokens:    tokens,
		mw:        mw,
		secure:    secure,
		validator: validator.New(),
	}
}

// MountRoutes registers auth routes on the provided router. Login carries its
// own tighter rate limit on top of the global one to slow credential stuffing.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Route("/auth", func(r chi.Router) {
		r.Post("/register", h.handleRegister)
		r.With(httprate.Limit(10, time.Minute, httprate.WithKeyFuncs(httprate.KeyByIP))).
			Post("/login", h.handleLogin)
		r.Post("/logout", h.handleLogout)
		r.With(h.mw.Authenticate).Get("/me", h.handleMe)
	})
}

type registerPayload struct {
	Name     string `json:"name" validate:"required,min=1,max=120"`
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,min=8"`
	Role     string `json:"role" validate:"required"`
}

func (h *Handler) handleRegister(w http.ResponseWriter, r *http.Request) {
	var payload registerPayload
	if err := httpx.DecodeJSON(r, &payload); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Body", err.Error())
		return
	}
	if err := h.validator.Struct(payload); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}

	account, err := h.service.Register(r.Context(), payload.Name, payload.Email, payload.Password, authz.Role(payload.Role))
	if err != nil {
		if errors.Is(err, shared.ErrRoleNotAllowed) {
			httpx.Problem(w, http.StatusBadRequest, "Role Not Allowed", err.Error())
			return
		}
		if !errors.Is(err, httpx.ErrDuplicate) {
			h.logger.ErrorContext(r.Context(), "register", slog.String("error", err.Error()))
		}
		httpx.RespondError(w, err)
		return
	}

	httpx.JSON(w, http.StatusCreated, map[string]any{"user": accountView(account)})
}

type loginPayload struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

func (h *Handler) handleLogin(w http.ResponseWriter, r *http.Request) {
	var payload loginPayload
	if err := httpx.DecodeJSON(r, &payload); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Body", err.Error())
		return
	}
	if err := h.validator.Struct(payload); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}

	account, err := h.service.Authenticate(r.Context(), payload.Email, payload.Password)
	if err != nil {
		httpx.Problem(w, http.StatusUnauthorized, "Unauthorized", "invalid credentials")
		return
	}

	grants, err := h.service.Grants(r.Context(), account.ID)
	if err != nil {
		h.logger.ErrorContext(r.Context(), "load grants", slog.String("error", err.Error()))
		httpx.RespondError(w, err)
		return
	}

	signed, claims, err := h.tokens.Issue(strconv.FormatInt(account.ID, 10), account.Role, grants)
	if err != nil {
		h.logger.ErrorContext(r.Context(), "issue token", slog.String("error", err.Error()))
		httpx.RespondError(w, err)
		return
	}

	http.SetCookie(w, h.sessionCookie(signed, h.tokens.TTL()))
	httpx.JSON(w, http.StatusOK, map[string]any{
		"token":      signed,
		"expires_at": claims.ExpiresAt.Time,
		"user":       accountView(account),
	})
}

func (h *Handler) handleLogout(w http.ResponseWriter, r *http.Request) {
	if raw := requestToken(r); raw != "" {
		if err := h.tokens.Revoke(r.Context(), raw); err != nil {
			h.logger.WarnContext(r.Context(), "revoke token", slog.String("error", err.Error()))
		}
	}
	http.SetCookie(w, h.sessionCookie("", -time.Hour))
	w.WriteHeader(http.StatusNoContent)
}

// handleMe returns the authenticated principal together with its resolved
// rules, so clients can mirror server-side decisions in the UI.
func (h *Handler) handleMe(w http.ResponseWriter, r *http.Request) {
	principal, ok := shared.PrincipalFromContext(r.Context())
	if !ok {
		httpx.Problem(w, http.StatusUnauthorized, "Unauthorized", "missing access token")
		return
	}
	rs := shared.RuleSetFromContext(r.Context())

	httpx.JSON(w, http.StatusOK, map[string]any{
		"principal": principal,
		"rules":     rs.Rules(),
	})
}

func (h *Handler) sessionCookie(value string, ttl time.Duration) *http.Cookie {
	return &http.Cookie{
		Name:     rbac.SessionCookie,
		Value:    value,
		Path:     "/",
		MaxAge:   int(ttl.Seconds()),
		HttpOnly: true,
		Secure:   h.secure,
		SameSite: http.SameSiteStrictMode,
	}
}

func requestToken(r *http.Request) string {
	if raw, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer "); ok {
		return strings.TrimSpace(raw)
	}
	if cookie, err := r.Cookie(rbac.SessionCookie); err == nil {
		return cookie.Value
	}
	return ""
}

func accountView(a *Account) map[string]any {
	return map[string]any{
		"id":         a.ID,
		"name":       a.Name,
		"email":      a.Email,
		"role":       a.Role,
		"is_active":  a.IsActive,
		"created_at": a.CreatedAt,
	}
}

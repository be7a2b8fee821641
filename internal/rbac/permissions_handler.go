package rbac

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/bugtrap/bugtrap/internal/authz"
	"github.com/bugtrap/bugtrap/internal/platform/httpx"
)

// PermissionsHandler exposes the permission catalog and the per-role grants.
type PermissionsHandler struct {
	service *Service
	mw      *Middleware
	log     *slog.Logger
}

// NewPermissionsHandler constructs the handler.
func NewPermissionsHandler(service *Service, mw *Middleware, log *slog.Logger) *PermissionsHandler {
	return &PermissionsHandler{service: service, mw: mw, log: log}
}

// MountRoutes registers the catalog routes. Administrators only.
func (h *PermissionsHandler) MountRoutes(r chi.Router) {
	r.Route("/permissions", func(r chi.Router) {
		r.Use(h.mw.Authenticate)
		r.Use(h.mw.RequireCan(authz.ActionManage, authz.ResourceAll))
		r.Get("/", h.list)
		r.Get("/roles", h.roleGrants)
	})
}

func (h *PermissionsHandler) list(w http.ResponseWriter, r *http.Request) {
	perms, err := h.service.ListPermissions(r.Context())
	if err != nil {
		h.log.ErrorContext(r.Context(), "list permissions", slog.String("error", err.Error()))
		httpx.RespondError(w, err)
		return
	}

	type item struct {
		Name        string `json:"name"`
		Description string `json:"description"`
	}
	out := make([]item, 0, len(perms))
	for _, p := range perms {
		out = append(out, item{Name: p.Name, Description: p.Description})
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"permissions": out})
}

func (h *PermissionsHandler) roleGrants(w http.ResponseWriter, r *http.Request) {
	grants, err := h.service.RoleGrants(r.Context())
	if err != nil {
		h.log.ErrorContext(r.Context(), "list role grants", slog.String("error", err.Error()))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"roles": grants})
}

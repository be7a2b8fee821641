package users

import (
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/bugtrap/bugtrap/internal/authz"
	"github.com/bugtrap/bugtrap/internal/platform/httpx"
	"github.com/bugtrap/bugtrap/internal/rbac"
	"github.com/bugtrap/bugtrap/internal/shared"
)

// Handler wires HTTP endpoints for user management.
type Handler struct {
	logger    *slog.Logger
	service   *Service
	mw        *rbac.Middleware
	validator *validator.Validate
}

// NewHandler constructs a Handler instance.
func NewHandler(logger *slog.Logger, service *Service, mw *rbac.Middleware) *Handler {
	return &Handler{logger: logger, service: service, mw: mw, validator: validator.New()}
}

// MountRoutes registers user routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Route("/users", func(r chi.Router) {
		r.Use(h.mw.Authenticate)

		r.Group(func(r chi.Router) {
			r.Use(h.mw.RequireCan(authz.ActionRead, authz.ResourceUser))
			r.Get("/", h.list)
			r.Get("/{id}", h.get)
		})
		r.Group(func(r chi.Router) {
			r.Use(h.mw.RequireCan(authz.ActionUpdate, authz.ResourceUser))
			r.Patch("/{id}", h.update)
		})
		r.Group(func(r chi.Router) {
			r.Use(h.mw.RequireCan(authz.ActionDelete, authz.ResourceUser))
			r.Delete("/{id}", h.delete)
		})
	})
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	rs := shared.RuleSetFromContext(r.Context())
	page := pageFromQuery(r)

	list, meta, err := h.service.List(r.Context(), rs, page)
	if err != nil {
		h.logger.ErrorContext(r.Context(), "list users", slog.String("error", err.Error()))
		httpx.RespondError(w, err)
		return
	}
	if list == nil {
		list = []User{}
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"users": list, "pagination": meta})
}

func (h *Handler) get(w http.ResponseWriter, r *http.Request) {
	rs := shared.RuleSetFromContext(r.Context())
	id, err := pathID(r)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}

	u, err := h.service.Get(r.Context(), rs, id)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"user": u})
}

type updateUserPayload struct {
	Name     *string `json:"name" validate:"omitempty,min=1,max=120"`
	Email    *string `json:"email" validate:"omitempty,email"`
	Role     *string `json:"role" validate:"omitempty,min=1"`
	IsActive *bool   `json:"is_active"`
}

func (p updateUserPayload) changes() map[string]any {
	changes := map[string]any{}
	if p.Name != nil {
		changes[FieldName] = *p.Name
	}
	if p.Email != nil {
		changes[FieldEmail] = *p.Email
	}
	if p.Role != nil {
		changes[FieldRole] = *p.Role
	}
	if p.IsActive != nil {
		changes[FieldIsActive] = *p.IsActive
	}
	return changes
}

func (h *Handler) update(w http.ResponseWriter, r *http.Request) {
	rs := shared.RuleSetFromContext(r.Context())
	id, err := pathID(r)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}

	var payload updateUserPayload
	if err := httpx.DecodeJSON(r, &payload); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Body", err.Error())
		return
	}
	if err := h.validator.Struct(payload); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}

	u, err := h.service.Update(r.Context(), rs, id, payload.changes())
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"user": u})
}

func (h *Handler) delete(w http.ResponseWriter, r *http.Request) {
	rs := shared.RuleSetFromContext(r.Context())
	id, err := pathID(r)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}

	if err := h.service.Delete(r.Context(), rs, id); err != nil {
		httpx.RespondError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func pathID(r *http.Request) (int64, error) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		return 0, httpx.ErrNotFound
	}
	return id, nil
}

func pageFromQuery(r *http.Request) shared.Pagination {
	page, _ := strconv.Atoi(r.URL.Query().Get("page"))
	perPage, _ := strconv.Atoi(r.URL.Query().Get("per_page"))
	return shared.NewPagination(page, perPage, 0)
}

package bugs

import (
	"context"
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

// Handler wires HTTP endpoints for bug tracking.
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

// MountRoutes registers bug routes. The route guards are deliberately coarse:
// they answer "could this principal ever do this to some bug" and leave the
// per-row verdict to the service once the bug is loaded.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Route("/bugs", func(r chi.Router) {
		r.Use(h.mw.Authenticate)

		r.With(h.mw.RequireCan(authz.ActionRead, authz.ResourceBug)).Get("/", h.list)
		r.With(h.mw.RequireCan(authz.ActionRead, authz.ResourceBug)).Get("/{id}", h.get)
		r.With(h.mw.RequireCan(authz.ActionCreate, authz.ResourceBug)).Post("/", h.create)
		r.With(h.mw.RequireCan(authz.ActionUpdate, authz.ResourceBug)).Patch("/{id}", h.update)
		r.With(h.mw.RequireCan(authz.ActionDelete, authz.ResourceBug)).Delete("/{id}", h.delete)
		r.With(h.mw.RequireCan(authz.ActionAssign, authz.ResourceBug)).Post("/{id}/assign", h.assign)
		r.With(h.mw.RequireCan(authz.ActionResolve, authz.ResourceBug)).Post("/{id}/resolve", h.lifecycle(h.service.Resolve))
		r.With(h.mw.RequireCan(authz.ActionOpen, authz.ResourceBug)).Post("/{id}/open", h.lifecycle(h.service.Open))
		r.With(h.mw.RequireCan(authz.ActionClose, authz.ResourceBug)).Post("/{id}/close", h.lifecycle(h.service.Close))
		r.With(h.mw.RequireCan(authz.ActionReopen, authz.ResourceBug)).Post("/{id}/reopen", h.lifecycle(h.service.Reopen))
	})
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	rs := shared.RuleSetFromContext(r.Context())
	query := r.URL.Query()
	page, _ := strconv.Atoi(query.Get("page"))
	perPage, _ := strconv.Atoi(query.Get("per_page"))

	list, meta, err := h.service.List(r.Context(), rs, Query{
		Status:   Status(query.Get("status")),
		Priority: Priority(query.Get("priority")),
		Page:     shared.NewPagination(page, perPage, 0),
	})
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	if list == nil {
		list = []Bug{}
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"bugs": list, "pagination": meta})
}

func (h *Handler) get(w http.ResponseWriter, r *http.Request) {
	rs := shared.RuleSetFromContext(r.Context())
	id, err := pathID(r)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}

	b, access, err := h.service.Get(r.Context(), rs, id)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"bug": b, "access": access})
}

type createPayload struct {
	Title            string   `json:"title" validate:"required,min=3,max=200"`
	Description      string   `json:"description" validate:"required,min=3"`
	ExpectedBehavior string   `json:"expected_behavior" validate:"required,min=3"`
	ActualBehavior   string   `json:"actual_behavior" validate:"required,min=3"`
	Priority         string   `json:"priority" validate:"omitempty"`
	Attachments      []string `json:"attachments" validate:"omitempty,dive,min=1"`
}

func (h *Handler) create(w http.ResponseWriter, r *http.Request) {
	rs := shared.RuleSetFromContext(r.Context())

	var payload createPayload
	if err := httpx.DecodeJSON(r, &payload); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Body", err.Error())
		return
	}
	if err := h.validator.Struct(payload); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}

	b, err := h.service.Create(r.Context(), rs, Draft{
		Title:            payload.Title,
		Description:      payload.Description,
		ExpectedBehavior: payload.ExpectedBehavior,
		ActualBehavior:   payload.ActualBehavior,
		Priority:         Priority(payload.Priority),
		Attachments:      payload.Attachments,
	})
	if err != nil {
		h.logger.ErrorContext(r.Context(), "create bug", slog.String("error", err.Error()))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, map[string]any{"bug": b})
}

type updatePayload struct {
	Title            *string   `json:"title" validate:"omitempty,min=3,max=200"`
	Description      *string   `json:"description" validate:"omitempty,min=3"`
	ExpectedBehavior *string   `json:"expected_behavior" validate:"omitempty,min=3"`
	ActualBehavior   *string   `json:"actual_behavior" validate:"omitempty,min=3"`
	Status           *string   `json:"status"`
	Priority         *string   `json:"priority"`
	Attachments      *[]string `json:"attachments"`
}

func (p updatePayload) changes() map[string]any {
	changes := map[string]any{}
	if p.Title != nil {
		changes[FieldTitle] = *p.Title
	}
	if p.Description != nil {
		changes[FieldDescription] = *p.Description
	}
	if p.ExpectedBehavior != nil {
		changes[FieldExpectedBehavior] = *p.ExpectedBehavior
	}
	if p.ActualBehavior != nil {
		changes[FieldActualBehavior] = *p.ActualBehavior
	}
	if p.Status != nil {
		changes[FieldStatus] = *p.Status
	}
	if p.Priority != nil {
		changes[FieldPriority] = *p.Priority
	}
	if p.Attachments != nil {
		changes[FieldAttachments] = *p.Attachments
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

	var payload updatePayload
	if err := httpx.DecodeJSON(r, &payload); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Body", err.Error())
		return
	}
	if err := h.validator.Struct(payload); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}

	b, err := h.service.Update(r.Context(), rs, id, payload.changes())
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"bug": b})
}

type assignPayload struct {
	AssigneeID int64 `json:"assignee_id" validate:"required,gt=0"`
}

func (h *Handler) assign(w http.ResponseWriter, r *http.Request) {
	rs := shared.RuleSetFromContext(r.Context())
	id, err := pathID(r)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}

	var payload assignPayload
	if err := httpx.DecodeJSON(r, &payload); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Body", err.Error())
		return
	}
	if err := h.validator.Struct(payload); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}

	b, err := h.service.Assign(r.Context(), rs, id, payload.AssigneeID)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"bug": b})
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

func (h *Handler) lifecycle(op func(ctx context.Context, rs *authz.RuleSet, id int64) (Bug, error)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		rs := shared.RuleSetFromContext(r.Context())
		id, err := pathID(r)
		if err != nil {
			httpx.RespondError(w, err)
			return
		}

		b, err := op(r.Context(), rs, id)
		if err != nil {
			httpx.RespondError(w, err)
			return
		}
		httpx.JSON(w, http.StatusOK, map[string]any{"bug": b})
	}
}

func pathID(r *http.Request) (int64, error) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		return 0, httpx.ErrNotFound
	}
	return id, nil
}

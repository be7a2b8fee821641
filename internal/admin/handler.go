package admin

import (
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/bugtrap/bugtrap/internal/authz"
	"github.com/bugtrap/bugtrap/internal/platform/httpx"
	"github.com/bugtrap/bugtrap/internal/rbac"
)

// Handler wires administrator endpoints.
type Handler struct {
	logger  *slog.Logger
	service *Service
	mw      *rbac.Middleware
}

// NewHandler constructs a Handler instance.
func NewHandler(logger *slog.Logger, service *Service, mw *rbac.Middleware) *Handler {
	return &Handler{logger: logger, service: service, mw: mw}
}

// MountRoutes registers admin routes. The manage-all guard only passes
// principals holding the administrator's blanket rule.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Route("/admin", func(r chi.Router) {
		r.Use(h.mw.Authenticate)
		r.Use(h.mw.RequireCan(authz.ActionManage, authz.ResourceAll))
		r.Get("/stats", h.stats)
		r.Get("/audit-logs", h.auditLogs)
	})
}

func (h *Handler) stats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.service.Stats(r.Context())
	if err != nil {
		h.logger.ErrorContext(r.Context(), "collect stats", slog.String("error", err.Error()))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, stats)
}

func (h *Handler) auditLogs(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	page, _ := strconv.Atoi(query.Get("page"))
	pageSize, _ := strconv.Atoi(query.Get("page_size"))

	result, err := h.service.Timeline(r.Context(), TimelineFilters{
		Actor:    query.Get("actor"),
		Entity:   query.Get("entity"),
		Action:   query.Get("action"),
		Page:     page,
		PageSize: pageSize,
	})
	if err != nil {
		h.logger.ErrorContext(r.Context(), "audit timeline", slog.String("error", err.Error()))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, result)
}

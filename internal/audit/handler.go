package audit

import (
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/meridian-edu/meridian-backoffice/internal/platform/httpx"
	"github.com/meridian-edu/meridian-backoffice/internal/rbac"
	"github.com/meridian-edu/meridian-backoffice/internal/shared"
)

// Handler exposes the audit timeline and the administrative purge.
type Handler struct {
	logger  *slog.Logger
	service *Service
	rbac    rbac.Middleware
}

// NewHandler builds a Handler.
func NewHandler(logger *slog.Logger, service *Service, rbac rbac.Middleware) *Handler {
	return &Handler{logger: logger, service: service, rbac: rbac}
}

// MountRoutes registers audit routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Group(func(r chi.Router) {
		r.Use(h.rbac.Require("audit-logs"))
		r.Get("/", h.timeline)
		r.Delete("/", h.purge)
	})
}

func (h *Handler) timeline(w http.ResponseWriter, r *http.Request) {
	page, per := shared.PageQuery(r)
	filters := ListFilters{
		Entity: r.URL.Query().Get("entity"),
		Action: r.URL.Query().Get("action"),
		Page:   page,
		Per:    per,
	}
	if raw := r.URL.Query().Get("from"); raw != "" {
		if t, err := time.Parse("2006-01-02", raw); err == nil {
			filters.From = t
		}
	}
	if raw := r.URL.Query().Get("to"); raw != "" {
		if t, err := time.Parse("2006-01-02", raw); err == nil {
			filters.To = t
		}
	}

	result, err := h.service.Timeline(r.Context(), filters)
	if err != nil {
		h.logger.Error("audit timeline", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, result)
}

func (h *Handler) purge(w http.ResponseWriter, r *http.Request) {
	days, _ := strconv.Atoi(r.URL.Query().Get("older_than_days"))
	if days <= 0 {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "older_than_days must be a positive integer")
		return
	}
	removed, err := h.service.Purge(r.Context(), time.Duration(days)*24*time.Hour)
	if err != nil {
		h.logger.Error("audit purge", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	h.logger.Info("audit purge", slog.Int64("removed", removed), slog.Int("older_than_days", days))
	httpx.JSON(w, http.StatusOK, map[string]any{"removed": removed})
}

package batches

import (
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/meridian-edu/meridian-backoffice/internal/platform/httpx"
	"github.com/meridian-edu/meridian-backoffice/internal/rbac"
	"github.com/meridian-edu/meridian-backoffice/internal/shared"
)

// Handler exposes batch endpoints.
type Handler struct {
	service  *Service
	validate *validator.Validate
	rbac     rbac.Middleware
}

// NewHandler constructs a Handler.
func NewHandler(service *Service, rbac rbac.Middleware) *Handler {
	return &Handler{service: service, validate: validator.New(), rbac: rbac}
}

// MountRoutes registers batch routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Group(func(r chi.Router) {
		r.Use(h.rbac.Require("batches"))
		r.Get("/", h.list)
		r.Post("/", h.create)
		r.Get("/{id}", h.get)
		r.Put("/{id}", h.update)
		r.Delete("/{id}", h.remove)
	})
}

type batchPayload struct {
	Name      string `json:"name" validate:"required,max=200"`
	CourseID  *int64 `json:"course_id"`
	StartDate string `json:"start_date" validate:"omitempty,datetime=2006-01-02"`
	EndDate   string `json:"end_date" validate:"omitempty,datetime=2006-01-02"`
	IsActive  *bool  `json:"is_active"`
}

func (h *Handler) decode(r *http.Request) (Batch, error) {
	var payload batchPayload
	if err := httpx.DecodeJSON(r, &payload); err != nil {
		return Batch{}, fmt.Errorf("%w: invalid JSON body", httpx.ErrValidation)
	}
	if err := h.validate.Struct(payload); err != nil {
		return Batch{}, fmt.Errorf("%w: %v", httpx.ErrValidation, err)
	}
	batch := Batch{
		Name:     payload.Name,
		CourseID: payload.CourseID,
		IsActive: payload.IsActive == nil || *payload.IsActive,
	}
	if payload.StartDate != "" {
		start, _ := time.Parse("2006-01-02", payload.StartDate)
		batch.StartDate = &start
	}
	if payload.EndDate != "" {
		end, _ := time.Parse("2006-01-02", payload.EndDate)
		batch.EndDate = &end
	}
	return batch, nil
}

func (h *Handler) create(w http.ResponseWriter, r *http.Request) {
	batch, err := h.decode(r)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	created, err := h.service.Create(r.Context(), actorID(r), batch)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, created)
}

func (h *Handler) update(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	batch, err := h.decode(r)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	updated, err := h.service.Update(r.Context(), actorID(r), id, batch)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, updated)
}

func (h *Handler) remove(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	if err := h.service.Delete(r.Context(), actorID(r), id); err != nil {
		httpx.RespondError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) get(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	batch, err := h.service.Get(r.Context(), id)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, batch)
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	page, perPage := shared.PageQuery(r)
	filters := ListFilters{
		Search:     r.URL.Query().Get("q"),
		ActiveOnly: r.URL.Query().Get("active") == "true",
		Limit:      perPage,
		Offset:     (page - 1) * perPage,
	}
	list, total, err := h.service.List(r.Context(), filters)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{
		"batches": list,
		"paging":  shared.NewPagination(page, perPage, total),
	})
}

func actorID(r *http.Request) int64 {
	sess := shared.SessionFromContext(r.Context())
	if sess == nil {
		return 0
	}
	id, _ := strconv.ParseInt(sess.User(), 10, 64)
	return id
}

func pathID(r *http.Request) (int64, error) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("%w: invalid id", httpx.ErrValidation)
	}
	return id, nil
}

package students

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

// Handler exposes student endpoints.
type Handler struct {
	service  *Service
	validate *validator.Validate
	rbac     rbac.Middleware
}

// NewHandler constructs a Handler.
func NewHandler(service *Service, rbac rbac.Middleware) *Handler {
	return &Handler{service: service, validate: validator.New(), rbac: rbac}
}

// MountRoutes registers student routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Group(func(r chi.Router) {
		r.Use(h.rbac.Require("students"))
		r.Get("/", h.list)
		r.Post("/", h.create)
		r.Get("/{id}", h.get)
		r.Put("/{id}", h.update)
		r.Delete("/{id}", h.remove)
	})
}

type studentPayload struct {
	FullName   string `json:"full_name" validate:"required,max=200"`
	Email      string `json:"email" validate:"omitempty,email"`
	Phone      string `json:"phone" validate:"max=20"`
	BatchID    *int64 `json:"batch_id"`
	EnrolledOn string `json:"enrolled_on" validate:"omitempty,datetime=2006-01-02"`
	IsActive   *bool  `json:"is_active"`
}

func (h *Handler) decode(r *http.Request) (Student, error) {
	var payload studentPayload
	if err := httpx.DecodeJSON(r, &payload); err != nil {
		return Student{}, fmt.Errorf("%w: invalid JSON body", httpx.ErrValidation)
	}
	if err := h.validate.Struct(payload); err != nil {
		return Student{}, fmt.Errorf("%w: %v", httpx.ErrValidation, err)
	}
	student := Student{
		FullName: payload.FullName,
		Email:    payload.Email,
		Phone:    payload.Phone,
		BatchID:  payload.BatchID,
		IsActive: payload.IsActive == nil || *payload.IsActive,
	}
	if payload.EnrolledOn != "" {
		enrolled, err := time.Parse("2006-01-02", payload.EnrolledOn)
		if err != nil {
			return Student{}, fmt.Errorf("%w: enrolled_on must be YYYY-MM-DD", httpx.ErrValidation)
		}
		student.EnrolledOn = &enrolled
	}
	return student, nil
}

func (h *Handler) create(w http.ResponseWriter, r *http.Request) {
	student, err := h.decode(r)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	created, err := h.service.Create(r.Context(), actorID(r), student)
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
	student, err := h.decode(r)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	updated, err := h.service.Update(r.Context(), actorID(r), id, student)
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
	student, err := h.service.Get(r.Context(), id)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, student)
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	page, perPage := shared.PageQuery(r)
	filters := ListFilters{
		Search: r.URL.Query().Get("q"),
		Limit:  perPage,
		Offset: (page - 1) * perPage,
	}
	if raw := r.URL.Query().Get("batch_id"); raw != "" {
		if batchID, err := strconv.ParseInt(raw, 10, 64); err == nil {
			filters.BatchID = &batchID
		}
	}
	list, total, err := h.service.List(r.Context(), filters)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{
		"students": list,
		"paging":   shared.NewPagination(page, perPage, total),
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

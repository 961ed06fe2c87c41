package placements

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

// Handler exposes placement endpoints.
type Handler struct {
	service  *Service
	validate *validator.Validate
	rbac     rbac.Middleware
}

// NewHandler constructs a Handler.
func NewHandler(service *Service, rbac rbac.Middleware) *Handler {
	return &Handler{service: service, validate: validator.New(), rbac: rbac}
}

// MountRoutes registers placement routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Group(func(r chi.Router) {
		r.Use(h.rbac.Require("placements"))
		r.Get("/", h.list)
		r.Post("/", h.create)
		r.Get("/{id}", h.get)
		r.Put("/{id}", h.update)
		r.Delete("/{id}", h.remove)
	})
}

type placementPayload struct {
	StudentID     int64   `json:"student_id" validate:"required,gt=0"`
	BatchID       *int64  `json:"batch_id"`
	Company       string  `json:"company" validate:"required,max=200"`
	Role          string  `json:"role" validate:"max=200"`
	PackageAmount float64 `json:"package_amount" validate:"min=0"`
	Status        string  `json:"status" validate:"omitempty,oneof=active completed terminated"`
	PlacedOn      string  `json:"placed_on" validate:"omitempty,datetime=2006-01-02"`
}

func (h *Handler) decode(r *http.Request) (Placement, error) {
	var payload placementPayload
	if err := httpx.DecodeJSON(r, &payload); err != nil {
		return Placement{}, fmt.Errorf("%w: invalid JSON body", httpx.ErrValidation)
	}
	if err := h.validate.Struct(payload); err != nil {
		return Placement{}, fmt.Errorf("%w: %v", httpx.ErrValidation, err)
	}
	placement := Placement{
		StudentID:     payload.StudentID,
		BatchID:       payload.BatchID,
		Company:       payload.Company,
		Role:          payload.Role,
		PackageAmount: payload.PackageAmount,
		Status:        Status(payload.Status),
	}
	if payload.PlacedOn != "" {
		placed, _ := time.Parse("2006-01-02", payload.PlacedOn)
		placement.PlacedOn = &placed
	}
	return placement, nil
}

func (h *Handler) create(w http.ResponseWriter, r *http.Request) {
	placement, err := h.decode(r)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	created, err := h.service.Create(r.Context(), actorID(r), placement)
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
	placement, err := h.decode(r)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	updated, err := h.service.Update(r.Context(), actorID(r), id, placement)
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
	placement, err := h.service.Get(r.Context(), id)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, placement)
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	page, perPage := shared.PageQuery(r)
	filters := ListFilters{
		Status: Status(r.URL.Query().Get("status")),
		Limit:  perPage,
		Offset: (page - 1) * perPage,
	}
	if raw := r.URL.Query().Get("student_id"); raw != "" {
		if studentID, err := strconv.ParseInt(raw, 10, 64); err == nil {
			filters.StudentID = &studentID
		}
	}
	list, total, err := h.service.List(r.Context(), filters)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{
		"placements": list,
		"paging":     shared.NewPagination(page, perPage, total),
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

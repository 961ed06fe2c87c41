package finance

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/meridian-edu/meridian-backoffice/internal/platform/httpx"
	"github.com/meridian-edu/meridian-backoffice/internal/rbac"
	"github.com/meridian-edu/meridian-backoffice/internal/shared"
)

// Handler exposes the financial record endpoints. One handler serves all
// three kinds; the mounted resource decides which kind a subtree speaks.
type Handler struct {
	logger       *slog.Logger
	orchestrator *Orchestrator
	validate     *validator.Validate
	rbac         rbac.Middleware
}

// NewHandler builds Handler instance.
func NewHandler(logger *slog.Logger, orchestrator *Orchestrator, rbac rbac.Middleware) *Handler {
	return &Handler{
		logger:       logger,
		orchestrator: orchestrator,
		validate:     validator.New(),
		rbac:         rbac,
	}
}

// MountRoutes registers the payment, installment and expense subtrees.
// Each subtree is gated on its own resource name so the policy can hold
// per-resource write exceptions.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Route("/payments", h.kindRoutes(KindPayment, "payments"))
	r.Route("/installments", h.kindRoutes(KindInstallment, "installments"))
	r.Route("/expenses", h.kindRoutes(KindExpense, "expenses"))
}

func (h *Handler) kindRoutes(kind Kind, resource string) func(chi.Router) {
	return func(r chi.Router) {
		r.Use(h.rbac.Require(resource))
		r.Get("/", h.list(kind))
		r.Post("/", h.create(kind))
		r.Get("/{id}", h.get(kind))
		r.Put("/{id}", h.update(kind))
		r.Delete("/{id}", h.remove(kind))
	}
}

// recordPayload is the JSON body for creates and updates. Domain
// validation still runs afterwards; the tags catch the shape-level
// mistakes with field names attached.
type recordPayload struct {
	StudentID       *int64  `json:"student_id"`
	PlacementID     *int64  `json:"placement_id"`
	BatchID         *int64  `json:"batch_id"`
	Name            string  `json:"name" validate:"max=200"`
	Amount          float64 `json:"amount" validate:"required,gt=0"`
	TxnDate         string  `json:"txn_date" validate:"required,datetime=2006-01-02"`
	Method          string  `json:"method" validate:"required,oneof=cash upi card bank_transfer cheque"`
	BankName        string  `json:"bank_name" validate:"max=120"`
	ChequeNo        string  `json:"cheque_no" validate:"max=50"`
	Remarks         string  `json:"remarks" validate:"max=500"`
	Direction       string  `json:"direction" validate:"omitempty,oneof=credit debit"`
	InstallmentNo   int     `json:"installment_no" validate:"min=0"`
	InstallmentType string  `json:"installment_type" validate:"omitempty,oneof=receipt company_cost"`
}

func (h *Handler) decodeRecord(r *http.Request, kind Kind) (Record, error) {
	var payload recordPayload
	if err := httpx.DecodeJSON(r, &payload); err != nil {
		return Record{}, fmt.Errorf("%w: invalid JSON body", errValidation)
	}
	if err := h.validate.Struct(payload); err != nil {
		return Record{}, fmt.Errorf("%w: %s", errValidation, validationDetail(err))
	}
	txnDate, err := time.Parse("2006-01-02", payload.TxnDate)
	if err != nil {
		return Record{}, fmt.Errorf("%w: txn_date must be YYYY-MM-DD", errValidation)
	}
	return Record{
		Kind:            kind,
		StudentID:       payload.StudentID,
		PlacementID:     payload.PlacementID,
		BatchID:         payload.BatchID,
		Name:            payload.Name,
		Amount:          payload.Amount,
		TxnDate:         txnDate,
		Method:          Method(payload.Method),
		BankName:        payload.BankName,
		ChequeNo:        payload.ChequeNo,
		Remarks:         payload.Remarks,
		Direction:       Direction(payload.Direction),
		InstallmentNo:   payload.InstallmentNo,
		InstallmentType: InstallmentType(payload.InstallmentType),
	}, nil
}

func (h *Handler) create(kind Kind) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		rec, err := h.decodeRecord(r, kind)
		if err != nil {
			h.respondErr(w, err)
			return
		}
		created, err := h.orchestrator.Create(r.Context(), h.actorID(r), rec)
		if err != nil {
			h.respondErr(w, err)
			return
		}
		httpx.JSON(w, http.StatusCreated, created)
	}
}

func (h *Handler) update(kind Kind) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := pathID(r)
		if err != nil {
			h.respondErr(w, err)
			return
		}
		patch, err := h.decodeRecord(r, kind)
		if err != nil {
			h.respondErr(w, err)
			return
		}
		updated, err := h.orchestrator.Update(r.Context(), h.actorID(r), kind, id, patch)
		if err != nil {
			h.respondErr(w, err)
			return
		}
		httpx.JSON(w, http.StatusOK, updated)
	}
}

func (h *Handler) remove(kind Kind) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := pathID(r)
		if err != nil {
			h.respondErr(w, err)
			return
		}
		if err := h.orchestrator.Delete(r.Context(), h.actorID(r), kind, id); err != nil {
			h.respondErr(w, err)
			return
		}
		httpx.JSON(w, http.StatusOK, map[string]any{"deleted": id})
	}
}

func (h *Handler) get(kind Kind) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := pathID(r)
		if err != nil {
			h.respondErr(w, err)
			return
		}
		rec, err := h.orchestrator.Get(r.Context(), kind, id)
		if err != nil {
			h.respondErr(w, err)
			return
		}
		httpx.JSON(w, http.StatusOK, rec)
	}
}

func (h *Handler) list(kind Kind) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		page, perPage := shared.PageQuery(r)
		recs, total, err := h.orchestrator.List(r.Context(), kind, perPage, (page-1)*perPage)
		if err != nil {
			h.respondErr(w, err)
			return
		}
		httpx.JSON(w, http.StatusOK, map[string]any{
			"records": recs,
			"paging":  shared.NewPagination(page, perPage, total),
		})
	}
}

// respondErr renders a duplicate hit with its machine-readable extra
// fields and defers everything else to the shared error mapping.
func (h *Handler) respondErr(w http.ResponseWriter, err error) {
	var dup *DuplicateError
	if errors.As(err, &dup) {
		httpx.ProblemWithExtra(w, http.StatusConflict, "Conflict", dup.Error(), dup.Extra())
		return
	}
	if errors.Is(err, httpx.ErrCompensationFailed) && h.logger != nil {
		h.logger.Error("returning reconciliation-required failure to client")
	}
	httpx.RespondError(w, err)
}

func (h *Handler) actorID(r *http.Request) int64 {
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
		return 0, fmt.Errorf("%w: invalid id", errValidation)
	}
	return id, nil
}

func validationDetail(err error) string {
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) && len(verrs) > 0 {
		f := verrs[0]
		return fmt.Sprintf("field %s failed on %s", f.Field(), f.Tag())
	}
	return "invalid payload"
}

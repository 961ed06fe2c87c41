// Package httpx provides HTTP response utilities.
package httpx

import (
	"errors"
	"net/http"
)

// Sentinel errors for the domain layer.
var (
	ErrNotFound        = errors.New("resource not found")
	ErrConflict        = errors.New("duplicate entry")
	ErrValidation      = errors.New("validation failed")
	ErrForbidden       = errors.New("insufficient privileges")
	ErrUnauthenticated = errors.New("authentication required")
	ErrStore           = errors.New("storage failure")

	// ErrAuditWriteFailed marks a mutation whose audit entry could not be
	// written. For audit-critical kinds the mutation has been compensated.
	ErrAuditWriteFailed = errors.New("audit write failed")
	// ErrCompensationFailed marks the highest-severity outcome: the audit
	// write failed and the compensating delete failed too, leaving an
	// unaudited record behind. Requires manual reconciliation.
	ErrCompensationFailed = errors.New("audit write failed and compensation failed")
)

const retryMessage = "operation could not be completed, please retry"

// RespondError maps domain errors to HTTP responses using RFC7807.
// Store, audit and compensation failures surface a generic message;
// the distinguishing detail stays server-side.
func RespondError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ErrNotFound):
		Problem(w, http.StatusNotFound, "Not Found", err.Error())
	case errors.Is(err, ErrConflict):
		Problem(w, http.StatusConflict, "Conflict", err.Error())
	case errors.Is(err, ErrValidation):
		Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
	case errors.Is(err, ErrForbidden):
		Problem(w, http.StatusForbidden, "Forbidden", ErrForbidden.Error())
	case errors.Is(err, ErrUnauthenticated):
		Problem(w, http.StatusUnauthorized, "Unauthorized", ErrUnauthenticated.Error())
	case errors.Is(err, ErrCompensationFailed), errors.Is(err, ErrAuditWriteFailed):
		Problem(w, http.StatusInternalServerError, "Internal Error", retryMessage)
	default:
		Problem(w, http.StatusInternalServerError, "Internal Error", "")
	}
}

package finance

import (
	"fmt"
	"time"

	"github.com/meridian-edu/meridian-backoffice/internal/platform/httpx"
)

var (
	errValidation = httpx.ErrValidation
	errNotFound   = httpx.ErrNotFound
	errStore      = httpx.ErrStore
)

// DuplicateError reports that a submitted record matches an already
// persisted one. It carries enough detail for the client to render a
// precise "this looks like a duplicate of X" message, whether the
// duplicate was caught by the up-front check or by the store's
// uniqueness constraint.
type DuplicateError struct {
	Kind              Kind
	ExistingID        int64
	ExistingTxnDate   time.Time
	ExistingCreatedAt time.Time
	SubmittedAmount   float64
	SubmittedTxnDate  time.Time
}

func (e *DuplicateError) Error() string {
	if e.ExistingID == 0 {
		return fmt.Sprintf("duplicate %s submission", e.Kind)
	}
	return fmt.Sprintf("duplicate %s: matches record %d dated %s",
		e.Kind, e.ExistingID, e.ExistingTxnDate.Format("2006-01-02"))
}

// Unwrap ties the error into the Conflict taxonomy so callers cannot
// distinguish "caught early" from "caught late".
func (e *DuplicateError) Unwrap() error { return httpx.ErrConflict }

// Extra returns the machine-readable conflict fields for the response body.
func (e *DuplicateError) Extra() map[string]any {
	extra := map[string]any{
		"submitted_amount":   e.SubmittedAmount,
		"submitted_txn_date": e.SubmittedTxnDate.Format("2006-01-02"),
	}
	if e.ExistingID != 0 {
		extra["existing_id"] = e.ExistingID
		extra["existing_txn_date"] = e.ExistingTxnDate.Format("2006-01-02")
		extra["existing_created_at"] = e.ExistingCreatedAt.Format(time.RFC3339)
	}
	return extra
}

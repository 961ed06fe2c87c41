// Package placements manages student job placements. Placement rows
// are what installment records hang off, and what the audit resolver
// walks to find a batch when the installment itself names none.
package placements

import (
	"fmt"
	"time"

	"github.com/meridian-edu/meridian-backoffice/internal/platform/httpx"
)

// Status tracks a placement lifecycle.
type Status string

const (
	StatusActive     Status = "active"
	StatusCompleted  Status = "completed"
	StatusTerminated Status = "terminated"
)

func (s Status) valid() bool {
	switch s {
	case StatusActive, StatusCompleted, StatusTerminated:
		return true
	}
	return false
}

// Placement ties a student to a company engagement.
type Placement struct {
	ID            int64      `json:"id"`
	StudentID     int64      `json:"student_id"`
	BatchID       *int64     `json:"batch_id,omitempty"`
	Company       string     `json:"company"`
	Role          string     `json:"role,omitempty"`
	PackageAmount float64    `json:"package_amount"`
	Status        Status     `json:"status"`
	PlacedOn      *time.Time `json:"placed_on,omitempty"`
	CreatedAt     time.Time  `json:"created_at"`
	UpdatedAt     time.Time  `json:"updated_at"`
}

// ListFilters narrows placement listings.
type ListFilters struct {
	StudentID *int64
	Status    Status
	Limit     int
	Offset    int
}

func validate(p Placement) error {
	if p.StudentID <= 0 {
		return fmt.Errorf("%w: student is required", httpx.ErrValidation)
	}
	if p.Company == "" {
		return fmt.Errorf("%w: company is required", httpx.ErrValidation)
	}
	if p.PackageAmount < 0 {
		return fmt.Errorf("%w: package amount cannot be negative", httpx.ErrValidation)
	}
	if !p.Status.valid() {
		return fmt.Errorf("%w: status must be active, completed or terminated", httpx.ErrValidation)
	}
	return nil
}

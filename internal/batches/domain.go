// Package batches manages training cohorts. Batch membership is what
// the audit trail groups financial activity by.
package batches

import (
	"fmt"
	"time"

	"github.com/meridian-edu/meridian-backoffice/internal/platform/httpx"
)

// Batch is one training cohort, optionally tied to a catalogue course.
type Batch struct {
	ID        int64      `json:"id"`
	Name      string     `json:"name"`
	CourseID  *int64     `json:"course_id,omitempty"`
	StartDate *time.Time `json:"start_date,omitempty"`
	EndDate   *time.Time `json:"end_date,omitempty"`
	IsActive  bool       `json:"is_active"`
	CreatedAt time.Time  `json:"created_at"`
	UpdatedAt time.Time  `json:"updated_at"`
}

// ListFilters narrows batch listings.
type ListFilters struct {
	Search     string
	ActiveOnly bool
	Limit      int
	Offset     int
}

func validate(b Batch) error {
	if b.Name == "" {
		return fmt.Errorf("%w: batch name is required", httpx.ErrValidation)
	}
	if b.StartDate != nil && b.EndDate != nil && b.EndDate.Before(*b.StartDate) {
		return fmt.Errorf("%w: end date precedes start date", httpx.ErrValidation)
	}
	return nil
}

// Package students manages student profiles. Mutations here are
// audited best-effort: a failed audit write is logged and the mutation
// stands, unlike the financial records.
package students

import (
	"fmt"
	"time"

	"github.com/meridian-edu/meridian-backoffice/internal/platform/httpx"
)

// Student is an enrolled or prospective student.
type Student struct {
	ID         int64      `json:"id"`
	FullName   string     `json:"full_name"`
	Email      string     `json:"email,omitempty"`
	Phone      string     `json:"phone,omitempty"`
	BatchID    *int64     `json:"batch_id,omitempty"`
	EnrolledOn *time.Time `json:"enrolled_on,omitempty"`
	IsActive   bool       `json:"is_active"`
	CreatedAt  time.Time  `json:"created_at"`
	UpdatedAt  time.Time  `json:"updated_at"`
}

// ListFilters narrows student listings.
type ListFilters struct {
	Search  string
	BatchID *int64
	Limit   int
	Offset  int
}

func validate(s Student) error {
	if s.FullName == "" {
		return fmt.Errorf("%w: full name is required", httpx.ErrValidation)
	}
	if len(s.FullName) > 200 {
		return fmt.Errorf("%w: full name too long", httpx.ErrValidation)
	}
	return nil
}

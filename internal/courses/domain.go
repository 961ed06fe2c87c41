// Package courses manages the course catalogue.
package courses

import (
	"fmt"
	"time"

	"github.com/meridian-edu/meridian-backoffice/internal/platform/httpx"
)

// Course is a catalogue entry batches reference.
type Course struct {
	ID            int64     `json:"id"`
	Name          string    `json:"name"`
	DurationWeeks int       `json:"duration_weeks,omitempty"`
	Fee           float64   `json:"fee"`
	IsActive      bool      `json:"is_active"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

func validate(c Course) error {
	if c.Name == "" {
		return fmt.Errorf("%w: course name is required", httpx.ErrValidation)
	}
	if c.Fee < 0 {
		return fmt.Errorf("%w: fee cannot be negative", httpx.ErrValidation)
	}
	if c.DurationWeeks < 0 {
		return fmt.Errorf("%w: duration cannot be negative", httpx.ErrValidation)
	}
	return nil
}

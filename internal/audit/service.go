package audit

import (
	"context"
	"fmt"
	"time"

	"github.com/meridian-edu/meridian-backoffice/internal/shared"
)

// RepositoryPort abstracts audit log queries for the service.
type RepositoryPort interface {
	List(ctx context.Context, f ListFilters, limit, offset int) ([]Entry, int, error)
	PurgeBefore(ctx context.Context, cutoff time.Time) (int64, error)
}

// Result wraps a timeline page.
type Result struct {
	Entries []Entry           `json:"entries"`
	Paging  shared.Pagination `json:"paging"`
}

// Service coordinates audit trail reads and administrative purges.
type Service struct {
	repo RepositoryPort
}

// NewService builds a Service.
func NewService(repo RepositoryPort) *Service {
	return &Service{repo: repo}
}

// Timeline lists audit entries with paging.
func (s *Service) Timeline(ctx context.Context, f ListFilters) (Result, error) {
	if s.repo == nil {
		return Result{}, fmt.Errorf("audit: repository not configured")
	}
	per := f.Per
	if per <= 0 {
		per = 20
	}
	if per > 100 {
		per = 100
	}
	page := f.Page
	if page <= 0 {
		page = 1
	}
	entries, total, err := s.repo.List(ctx, f, per, (page-1)*per)
	if err != nil {
		return Result{}, err
	}
	return Result{Entries: entries, Paging: shared.NewPagination(page, per, total)}, nil
}

// Purge removes entries older than the retention window. This is the
// only destructive audit operation and is gated to administrators at
// the HTTP layer; it is never invoked by the mutation protocol.
func (s *Service) Purge(ctx context.Context, retention time.Duration) (int64, error) {
	if retention <= 0 {
		return 0, fmt.Errorf("audit: retention must be positive")
	}
	return s.repo.PurgeBefore(ctx, time.Now().UTC().Add(-retention))
}

package placements

import (
	"context"
	"log/slog"
	"time"

	"github.com/meridian-edu/meridian-backoffice/internal/audit"
)

// RepositoryPort is the persistence boundary for placements.
type RepositoryPort interface {
	Create(ctx context.Context, p Placement) (Placement, error)
	Update(ctx context.Context, p Placement) (Placement, error)
	Delete(ctx context.Context, id int64) error
	Get(ctx context.Context, id int64) (Placement, error)
	List(ctx context.Context, f ListFilters) ([]Placement, int, error)
}

// AuditPort writes audit entries.
type AuditPort interface {
	Record(ctx context.Context, entry audit.Entry) error
}

// Service applies placement business rules with best-effort auditing.
type Service struct {
	repo    RepositoryPort
	auditor AuditPort
	logger  *slog.Logger
}

// NewService constructs a Service.
func NewService(repo RepositoryPort, auditor AuditPort, logger *slog.Logger) *Service {
	return &Service{repo: repo, auditor: auditor, logger: logger}
}

func (s *Service) Create(ctx context.Context, actorID int64, placement Placement) (Placement, error) {
	if placement.Status == "" {
		placement.Status = StatusActive
	}
	if err := validate(placement); err != nil {
		return Placement{}, err
	}
	created, err := s.repo.Create(ctx, placement)
	if err != nil {
		return Placement{}, err
	}
	s.auditBestEffort(ctx, audit.ActionCreate, created, actorID)
	return created, nil
}

func (s *Service) Update(ctx context.Context, actorID int64, id int64, placement Placement) (Placement, error) {
	placement.ID = id
	if err := validate(placement); err != nil {
		return Placement{}, err
	}
	updated, err := s.repo.Update(ctx, placement)
	if err != nil {
		return Placement{}, err
	}
	s.auditBestEffort(ctx, audit.ActionUpdate, updated, actorID)
	return updated, nil
}

func (s *Service) Delete(ctx context.Context, actorID int64, id int64) error {
	snapshot, err := s.repo.Get(ctx, id)
	if err != nil {
		return err
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		return err
	}
	s.auditBestEffort(ctx, audit.ActionDelete, snapshot, actorID)
	return nil
}

func (s *Service) Get(ctx context.Context, id int64) (Placement, error) {
	return s.repo.Get(ctx, id)
}

func (s *Service) List(ctx context.Context, f ListFilters) ([]Placement, int, error) {
	return s.repo.List(ctx, f)
}

func (s *Service) auditBestEffort(ctx context.Context, action audit.Action, placement Placement, actorID int64) {
	amount := placement.PackageAmount
	entry := audit.Entry{
		Action:   action,
		Entity:   "placements",
		EntityID: placement.ID,
		Label:    placement.Company,
		BatchID:  placement.BatchID,
		Amount:   &amount,
		Meta: map[string]any{
			"student_id": placement.StudentID,
			"status":     string(placement.Status),
		},
		TxnDate: time.Now().UTC(),
		ActorID: actorID,
	}
	if err := s.auditor.Record(context.WithoutCancel(ctx), entry); err != nil && s.logger != nil {
		s.logger.Warn("placement audit write failed, continuing",
			slog.String("action", string(action)),
			slog.Int64("placement_id", placement.ID),
			slog.Any("error", err))
	}
}

package batches

import (
	"context"
	"log/slog"
	"time"

	"github.com/meridian-edu/meridian-backoffice/internal/audit"
)

// RepositoryPort is the persistence boundary for batches.
type RepositoryPort interface {
	Create(ctx context.Context, b Batch) (Batch, error)
	Update(ctx context.Context, b Batch) (Batch, error)
	Delete(ctx context.Context, id int64) error
	Get(ctx context.Context, id int64) (Batch, error)
	List(ctx context.Context, f ListFilters) ([]Batch, int, error)
}

// AuditPort writes audit entries.
type AuditPort interface {
	Record(ctx context.Context, entry audit.Entry) error
}

// Service applies batch business rules with best-effort auditing.
type Service struct {
	repo    RepositoryPort
	auditor AuditPort
	logger  *slog.Logger
}

// NewService constructs a Service.
func NewService(repo RepositoryPort, auditor AuditPort, logger *slog.Logger) *Service {
	return &Service{repo: repo, auditor: auditor, logger: logger}
}

func (s *Service) Create(ctx context.Context, actorID int64, batch Batch) (Batch, error) {
	if err := validate(batch); err != nil {
		return Batch{}, err
	}
	created, err := s.repo.Create(ctx, batch)
	if err != nil {
		return Batch{}, err
	}
	s.auditBestEffort(ctx, audit.ActionCreate, created, actorID)
	return created, nil
}

func (s *Service) Update(ctx context.Context, actorID int64, id int64, batch Batch) (Batch, error) {
	batch.ID = id
	if err := validate(batch); err != nil {
		return Batch{}, err
	}
	updated, err := s.repo.Update(ctx, batch)
	if err != nil {
		return Batch{}, err
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

func (s *Service) Get(ctx context.Context, id int64) (Batch, error) {
	return s.repo.Get(ctx, id)
}

func (s *Service) List(ctx context.Context, f ListFilters) ([]Batch, int, error) {
	return s.repo.List(ctx, f)
}

func (s *Service) auditBestEffort(ctx context.Context, action audit.Action, batch Batch, actorID int64) {
	entry := audit.Entry{
		Action:   action,
		Entity:   "batches",
		EntityID: batch.ID,
		Label:    batch.Name,
		BatchID:  &batch.ID,
		TxnDate:  time.Now().UTC(),
		ActorID:  actorID,
	}
	if err := s.auditor.Record(context.WithoutCancel(ctx), entry); err != nil && s.logger != nil {
		s.logger.Warn("batch audit write failed, continuing",
			slog.String("action", string(action)),
			slog.Int64("batch_id", batch.ID),
			slog.Any("error", err))
	}
}

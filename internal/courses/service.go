package courses

import (
	"context"
	"log/slog"
	"time"

	"github.com/meridian-edu/meridian-backoffice/internal/audit"
)

// RepositoryPort is the persistence boundary for courses.
type RepositoryPort interface {
	Create(ctx context.Context, c Course) (Course, error)
	Update(ctx context.Context, c Course) (Course, error)
	Delete(ctx context.Context, id int64) error
	Get(ctx context.Context, id int64) (Course, error)
	List(ctx context.Context, limit, offset int) ([]Course, int, error)
}

// AuditPort writes audit entries.
type AuditPort interface {
	Record(ctx context.Context, entry audit.Entry) error
}

// Service applies course business rules with best-effort auditing.
type Service struct {
	repo    RepositoryPort
	auditor AuditPort
	logger  *slog.Logger
}

// NewService constructs a Service.
func NewService(repo RepositoryPort, auditor AuditPort, logger *slog.Logger) *Service {
	return &Service{repo: repo, auditor: auditor, logger: logger}
}

func (s *Service) Create(ctx context.Context, actorID int64, course Course) (Course, error) {
	if err := validate(course); err != nil {
		return Course{}, err
	}
	created, err := s.repo.Create(ctx, course)
	if err != nil {
		return Course{}, err
	}
	s.auditBestEffort(ctx, audit.ActionCreate, created, actorID)
	return created, nil
}

func (s *Service) Update(ctx context.Context, actorID int64, id int64, course Course) (Course, error) {
	course.ID = id
	if err := validate(course); err != nil {
		return Course{}, err
	}
	updated, err := s.repo.Update(ctx, course)
	if err != nil {
		return Course{}, err
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

func (s *Service) Get(ctx context.Context, id int64) (Course, error) {
	return s.repo.Get(ctx, id)
}

func (s *Service) List(ctx context.Context, limit, offset int) ([]Course, int, error) {
	return s.repo.List(ctx, limit, offset)
}

func (s *Service) auditBestEffort(ctx context.Context, action audit.Action, course Course, actorID int64) {
	entry := audit.Entry{
		Action:   action,
		Entity:   "courses",
		EntityID: course.ID,
		Label:    course.Name,
		TxnDate:  time.Now().UTC(),
		ActorID:  actorID,
	}
	if err := s.auditor.Record(context.WithoutCancel(ctx), entry); err != nil && s.logger != nil {
		s.logger.Warn("course audit write failed, continuing",
			slog.String("action", string(action)),
			slog.Int64("course_id", course.ID),
			slog.Any("error", err))
	}
}

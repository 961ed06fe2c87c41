package students

import (
	"context"
	"log/slog"
	"time"

	"github.com/meridian-edu/meridian-backoffice/internal/audit"
)

// RepositoryPort is the persistence boundary for students.
type RepositoryPort interface {
	Create(ctx context.Context, s Student) (Student, error)
	Update(ctx context.Context, s Student) (Student, error)
	Delete(ctx context.Context, id int64) error
	Get(ctx context.Context, id int64) (Student, error)
	List(ctx context.Context, f ListFilters) ([]Student, int, error)
}

// AuditPort writes audit entries.
type AuditPort interface {
	Record(ctx context.Context, entry audit.Entry) error
}

// Service applies student business rules with best-effort auditing.
type Service struct {
	repo    RepositoryPort
	auditor AuditPort
	logger  *slog.Logger
}

// NewService constructs a Service.
func NewService(repo RepositoryPort, auditor AuditPort, logger *slog.Logger) *Service {
	return &Service{repo: repo, auditor: auditor, logger: logger}
}

func (s *Service) Create(ctx context.Context, actorID int64, student Student) (Student, error) {
	if err := validate(student); err != nil {
		return Student{}, err
	}
	created, err := s.repo.Create(ctx, student)
	if err != nil {
		return Student{}, err
	}
	s.auditBestEffort(ctx, audit.ActionCreate, created, actorID, nil)
	return created, nil
}

func (s *Service) Update(ctx context.Context, actorID int64, id int64, student Student) (Student, error) {
	student.ID = id
	if err := validate(student); err != nil {
		return Student{}, err
	}
	updated, err := s.repo.Update(ctx, student)
	if err != nil {
		return Student{}, err
	}
	s.auditBestEffort(ctx, audit.ActionUpdate, updated, actorID, nil)
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
	s.auditBestEffort(ctx, audit.ActionDelete, snapshot, actorID, map[string]any{
		"deleted_name": snapshot.FullName,
	})
	return nil
}

func (s *Service) Get(ctx context.Context, id int64) (Student, error) {
	return s.repo.Get(ctx, id)
}

func (s *Service) List(ctx context.Context, f ListFilters) ([]Student, int, error) {
	return s.repo.List(ctx, f)
}

// auditBestEffort records the mutation and tolerates audit failure.
// Secondary entities carry no money, so an unaudited change is a log
// line, not a rollback.
func (s *Service) auditBestEffort(ctx context.Context, action audit.Action, student Student, actorID int64, meta map[string]any) {
	entry := audit.Entry{
		Action:   action,
		Entity:   "students",
		EntityID: student.ID,
		Label:    student.FullName,
		BatchID:  student.BatchID,
		Meta:     meta,
		TxnDate:  time.Now().UTC(),
		ActorID:  actorID,
	}
	if err := s.auditor.Record(context.WithoutCancel(ctx), entry); err != nil && s.logger != nil {
		s.logger.Warn("student audit write failed, continuing",
			slog.String("action", string(action)),
			slog.Int64("student_id", student.ID),
			slog.Any("error", err))
	}
}

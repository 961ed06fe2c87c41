package finance

import (
	"context"

	"github.com/meridian-edu/meridian-backoffice/internal/audit"
)

// StorePort is the persistence boundary for financial records.
type StorePort interface {
	Insert(ctx context.Context, rec Record) (Record, error)
	Update(ctx context.Context, rec Record) (Record, error)
	Delete(ctx context.Context, kind Kind, id int64) error
	Get(ctx context.Context, kind Kind, id int64) (Record, error)
	// FindMatching returns persisted records sharing the candidate's
	// disambiguation key, oldest first.
	FindMatching(ctx context.Context, rec Record) ([]Record, error)
	List(ctx context.Context, kind Kind, limit, offset int) ([]Record, int, error)
}

// AuditPort writes immutable audit entries.
type AuditPort interface {
	Record(ctx context.Context, entry audit.Entry) error
}

// PlacementRef is the slice of a placement the resolver needs.
type PlacementRef struct {
	ID        int64
	StudentID int64
	BatchID   *int64
}

// StudentRef is the slice of a student the resolver needs.
type StudentRef struct {
	ID       int64
	FullName string
	BatchID  *int64
}

// LookupPort resolves related entities for audit context.
type LookupPort interface {
	PlacementRef(ctx context.Context, placementID int64) (PlacementRef, error)
	StudentRef(ctx context.Context, studentID int64) (StudentRef, error)
}

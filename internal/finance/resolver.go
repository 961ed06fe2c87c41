package finance

import (
	"context"
	"fmt"
	"log/slog"

	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

// Resolver derives a record's owning batch and a human-readable label
// for its audit entry. Both run an ordered fallback chain and stop at
// the first success; a fully failed chain is tolerated and logged, never
// a hard error.
type Resolver struct {
	lookups LookupPort
	logger  *slog.Logger
	printer *message.Printer
}

// NewResolver builds a Resolver.
func NewResolver(lookups LookupPort, logger *slog.Logger) *Resolver {
	return &Resolver{
		lookups: lookups,
		logger:  logger,
		printer: message.NewPrinter(language.English),
	}
}

type batchStep func(ctx context.Context, rec Record) *int64

// ResolveBatch walks: direct batch on the record, then the placement's
// batch, then the student's batch (directly or via the placement).
func (r *Resolver) ResolveBatch(ctx context.Context, rec Record) *int64 {
	steps := []batchStep{
		r.directBatch,
		r.placementBatch,
		r.studentBatch,
	}
	for _, step := range steps {
		if batch := step(ctx, rec); batch != nil {
			return batch
		}
	}
	if r.logger != nil {
		r.logger.Warn("batch resolution failed",
			slog.String("kind", string(rec.Kind)),
			slog.Int64("record_id", rec.ID))
	}
	return nil
}

func (r *Resolver) directBatch(_ context.Context, rec Record) *int64 {
	if rec.BatchID != nil && *rec.BatchID != 0 {
		return rec.BatchID
	}
	return nil
}

func (r *Resolver) placementBatch(ctx context.Context, rec Record) *int64 {
	if rec.PlacementID == nil || *rec.PlacementID == 0 {
		return nil
	}
	ref, err := r.lookups.PlacementRef(ctx, *rec.PlacementID)
	if err != nil {
		return nil
	}
	if ref.BatchID != nil && *ref.BatchID != 0 {
		return ref.BatchID
	}
	return nil
}

func (r *Resolver) studentBatch(ctx context.Context, rec Record) *int64 {
	studentID := r.studentID(ctx, rec)
	if studentID == 0 {
		return nil
	}
	ref, err := r.lookups.StudentRef(ctx, studentID)
	if err != nil {
		return nil
	}
	if ref.BatchID != nil && *ref.BatchID != 0 {
		return ref.BatchID
	}
	return nil
}

// studentID returns the record's student, deriving it from the placement
// when the record only references a placement.
func (r *Resolver) studentID(ctx context.Context, rec Record) int64 {
	if rec.StudentID != nil && *rec.StudentID != 0 {
		return *rec.StudentID
	}
	if rec.PlacementID != nil && *rec.PlacementID != 0 {
		if ref, err := r.lookups.PlacementRef(ctx, *rec.PlacementID); err == nil {
			return ref.StudentID
		}
	}
	return 0
}

// ResolveLabel returns the best available label: the student's full name
// plus a sequence indicator when one applies, the expense payee name, or
// a generic fallback. Label resolution never blocks the mutation.
func (r *Resolver) ResolveLabel(ctx context.Context, rec Record) string {
	if studentID := r.studentID(ctx, rec); studentID != 0 {
		if ref, err := r.lookups.StudentRef(ctx, studentID); err == nil && ref.FullName != "" {
			if rec.Kind == KindInstallment && rec.InstallmentNo > 0 {
				return fmt.Sprintf("%s (installment %d)", ref.FullName, rec.InstallmentNo)
			}
			return ref.FullName
		}
	}
	if rec.Name != "" {
		return rec.Name
	}
	return fmt.Sprintf("%s #%d", rec.Kind, rec.ID)
}

// FormatAmount renders an amount with thousands separators for audit
// entry metadata.
func (r *Resolver) FormatAmount(amount float64) string {
	return r.printer.Sprintf("%.2f", amount)
}

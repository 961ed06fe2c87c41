package finance

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v5"
)

// Detector screens creation candidates against already persisted records.
// It is advisory: the store's uniqueness constraint remains the source of
// truth, and the orchestrator maps a constraint violation into the same
// Conflict contract as an up-front hit.
//
// Disambiguation keys per kind:
//
//	payment:     (student, amount, txn date, status=completed)
//	installment: (placement, amount, txn date)
//	expense:     (name, txn date, amount, method, batch; a missing batch
//	             matches only records whose batch is also missing)
type Detector struct {
	store  StorePort
	logger *slog.Logger
}

// NewDetector builds a Detector.
func NewDetector(store StorePort, logger *slog.Logger) *Detector {
	return &Detector{store: store, logger: logger}
}

// Check reports a DuplicateError when the candidate matches an existing
// record. Lookup failures on the payment path proceed fail-open with a
// warning; a failed duplicate check blocking every payment is worse than
// an occasional undetected duplicate the constraint will still catch.
// Installment and expense lookups propagate real store errors.
func (d *Detector) Check(ctx context.Context, rec Record) error {
	matches, err := d.store.FindMatching(ctx, rec)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil
		}
		if rec.Kind == KindPayment {
			if d.logger != nil {
				d.logger.Warn("duplicate check degraded, proceeding",
					slog.String("kind", string(rec.Kind)),
					slog.Any("error", err))
			}
			return nil
		}
		return fmt.Errorf("%w: duplicate lookup: %v", errStore, err)
	}
	if len(matches) == 0 {
		return nil
	}
	first := matches[0]
	return &DuplicateError{
		Kind:              rec.Kind,
		ExistingID:        first.ID,
		ExistingTxnDate:   first.TxnDate,
		ExistingCreatedAt: first.CreatedAt,
		SubmittedAmount:   rec.Amount,
		SubmittedTxnDate:  rec.TxnDate,
	}
}

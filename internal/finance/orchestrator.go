package finance

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/meridian-edu/meridian-backoffice/internal/audit"
	"github.com/meridian-edu/meridian-backoffice/internal/platform/db"
	"github.com/meridian-edu/meridian-backoffice/internal/platform/httpx"
)

// ProtocolMetrics counts protocol outcomes for operator triage.
type ProtocolMetrics interface {
	AuditWriteFailure(kind string)
	CompensationFailure(kind string)
	DuplicateConflict(kind string)
}

// Orchestrator drives the end-to-end mutation protocol for financial
// records: duplicate screening (create only), store write, audit pairing
// and, when the audit write fails on an audit-critical kind, the
// compensating delete. Each request runs the sequence exactly once with
// no automatic retries.
type Orchestrator struct {
	store    StorePort
	auditor  AuditPort
	resolver *Resolver
	detector *Detector
	logger   *slog.Logger
	metrics  ProtocolMetrics
	now      func() time.Time
}

// NewOrchestrator builds an Orchestrator.
func NewOrchestrator(store StorePort, auditor AuditPort, resolver *Resolver, detector *Detector, logger *slog.Logger, metrics ProtocolMetrics) *Orchestrator {
	return &Orchestrator{
		store:    store,
		auditor:  auditor,
		resolver: resolver,
		detector: detector,
		logger:   logger,
		metrics:  metrics,
		now:      time.Now,
	}
}

// Create validates, screens for duplicates, persists the record and
// writes its paired audit entry. A store-level uniqueness violation maps
// into the same Conflict contract as an up-front duplicate hit. When the
// audit write fails the just-created record is deleted again; if that
// compensating delete also fails the error escalates to
// CompensationFailed for manual reconciliation.
func (o *Orchestrator) Create(ctx context.Context, actorID int64, rec Record) (Record, error) {
	if err := Validate(rec, o.now()); err != nil {
		return Record{}, err
	}
	Normalize(&rec)

	if err := o.detector.Check(ctx, rec); err != nil {
		var dup *DuplicateError
		if errors.As(err, &dup) && o.metrics != nil {
			o.metrics.DuplicateConflict(string(rec.Kind))
		}
		return Record{}, err
	}

	created, err := o.store.Insert(ctx, rec)
	if err != nil {
		if db.IsUniqueViolation(err) {
			if o.metrics != nil {
				o.metrics.DuplicateConflict(string(rec.Kind))
			}
			return Record{}, o.conflictFromConstraint(ctx, rec)
		}
		return Record{}, fmt.Errorf("%w: insert %s: %v", errStore, rec.Kind, err)
	}

	// The caller may disconnect, but audit pairing and compensation must
	// still run to completion.
	detached := context.WithoutCancel(ctx)

	entry := o.buildEntry(detached, created, CreateAction(created), actorID, nil)
	if err := o.auditor.Record(detached, entry); err != nil {
		if cerr := o.compensate(detached, created, err); cerr != nil {
			return Record{}, cerr
		}
		// Non-critical kind: the record stands even without its trail.
	}
	return created, nil
}

// Update applies a patch and audits it with the list of changed fields.
// Updates are not compensated: an audit failure here leaves the record
// changed without a trail and is reported loudly instead.
func (o *Orchestrator) Update(ctx context.Context, actorID int64, kind Kind, id int64, patch Record) (Record, error) {
	before, err := o.store.Get(ctx, kind, id)
	if err != nil {
		if errors.Is(err, errNotFound) {
			return Record{}, err
		}
		return Record{}, fmt.Errorf("%w: load %s %d: %v", errStore, kind, id, err)
	}

	patch.ID = id
	patch.Kind = kind
	if err := Validate(patch, o.now()); err != nil {
		return Record{}, err
	}
	Normalize(&patch)

	updated, err := o.store.Update(ctx, patch)
	if err != nil {
		if errors.Is(err, errNotFound) {
			return Record{}, err
		}
		// A patch can move the record onto another row's dedupe key.
		if db.IsUniqueViolation(err) {
			if o.metrics != nil {
				o.metrics.DuplicateConflict(string(kind))
			}
			return Record{}, o.conflictFromConstraint(ctx, patch)
		}
		return Record{}, fmt.Errorf("%w: update %s %d: %v", errStore, kind, id, err)
	}

	detached := context.WithoutCancel(ctx)
	meta := map[string]any{"changed_fields": ChangedFields(before, updated)}
	entry := o.buildEntry(detached, updated, audit.ActionUpdate, actorID, meta)
	if err := o.auditor.Record(detached, entry); err != nil {
		o.reportUncompensated(kind, id, "update", err)
		return Record{}, httpx.ErrAuditWriteFailed
	}
	return updated, nil
}

// Delete removes a record after capturing a snapshot of its key fields,
// then audits the deletion with that snapshot. Deletes, like updates,
// are not compensated on audit failure.
func (o *Orchestrator) Delete(ctx context.Context, actorID int64, kind Kind, id int64) error {
	snapshot, err := o.store.Get(ctx, kind, id)
	if err != nil {
		if errors.Is(err, errNotFound) {
			return err
		}
		return fmt.Errorf("%w: load %s %d: %v", errStore, kind, id, err)
	}

	if err := o.store.Delete(ctx, kind, id); err != nil {
		return fmt.Errorf("%w: delete %s %d: %v", errStore, kind, id, err)
	}

	detached := context.WithoutCancel(ctx)
	meta := map[string]any{
		"deleted_amount": snapshot.Amount,
		"deleted_method": string(snapshot.Method),
	}
	if snapshot.StudentID != nil {
		meta["deleted_student_id"] = *snapshot.StudentID
	}
	entry := o.buildEntry(detached, snapshot, audit.ActionDelete, actorID, meta)
	if err := o.auditor.Record(detached, entry); err != nil {
		o.reportUncompensated(kind, id, "delete", err)
		return httpx.ErrAuditWriteFailed
	}
	return nil
}

// Get loads a single record.
func (o *Orchestrator) Get(ctx context.Context, kind Kind, id int64) (Record, error) {
	rec, err := o.store.Get(ctx, kind, id)
	if err != nil {
		if errors.Is(err, errNotFound) {
			return Record{}, err
		}
		return Record{}, fmt.Errorf("%w: load %s %d: %v", errStore, kind, id, err)
	}
	return rec, nil
}

// List pages records of one kind. Reads never touch the audit trail.
func (o *Orchestrator) List(ctx context.Context, kind Kind, limit, offset int) ([]Record, int, error) {
	recs, total, err := o.store.List(ctx, kind, limit, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("%w: list %s: %v", errStore, kind, err)
	}
	return recs, total, nil
}

// compensate undoes a creation whose audit write failed. Only creations
// are reversible; see reportUncompensated for the update/delete gap.
func (o *Orchestrator) compensate(ctx context.Context, created Record, auditErr error) error {
	if o.metrics != nil {
		o.metrics.AuditWriteFailure(string(created.Kind))
	}
	if !created.Kind.AuditCritical() {
		if o.logger != nil {
			o.logger.Warn("audit write failed, continuing",
				slog.String("kind", string(created.Kind)),
				slog.Int64("record_id", created.ID),
				slog.Any("error", auditErr))
		}
		return nil
	}
	if err := o.store.Delete(ctx, created.Kind, created.ID); err != nil {
		if o.metrics != nil {
			o.metrics.CompensationFailure(string(created.Kind))
		}
		if o.logger != nil {
			o.logger.Error("COMPENSATION FAILED: record persisted without audit trail, manual reconciliation required",
				slog.String("kind", string(created.Kind)),
				slog.Int64("record_id", created.ID),
				slog.Any("audit_error", auditErr),
				slog.Any("delete_error", err))
		}
		return httpx.ErrCompensationFailed
	}
	if o.logger != nil {
		o.logger.Error("audit write failed, creation compensated",
			slog.String("kind", string(created.Kind)),
			slog.Int64("record_id", created.ID),
			slog.Any("error", auditErr))
	}
	return httpx.ErrAuditWriteFailed
}

// reportUncompensated logs the known protocol gap: audit failures after
// an update or delete have no pre-image to restore, so the mutation
// stands unaudited.
func (o *Orchestrator) reportUncompensated(kind Kind, id int64, op string, auditErr error) {
	if o.metrics != nil {
		o.metrics.AuditWriteFailure(string(kind))
	}
	if o.logger != nil {
		o.logger.Error("audit write failed after "+op+", mutation NOT rolled back",
			slog.String("kind", string(kind)),
			slog.Int64("record_id", id),
			slog.Any("error", auditErr))
	}
}

// conflictFromConstraint builds the Conflict response after the store
// rejected the insert. The matching record is re-read so the response
// carries the same detail as an up-front hit; if that read fails the
// conflict is still reported with the submitted fields only.
func (o *Orchestrator) conflictFromConstraint(ctx context.Context, rec Record) error {
	dup := &DuplicateError{
		Kind:             rec.Kind,
		SubmittedAmount:  rec.Amount,
		SubmittedTxnDate: rec.TxnDate,
	}
	if matches, err := o.store.FindMatching(ctx, rec); err == nil && len(matches) > 0 {
		dup.ExistingID = matches[0].ID
		dup.ExistingTxnDate = matches[0].TxnDate
		dup.ExistingCreatedAt = matches[0].CreatedAt
	}
	return dup
}

func (o *Orchestrator) buildEntry(ctx context.Context, rec Record, action audit.Action, actorID int64, meta map[string]any) audit.Entry {
	batchID := o.resolver.ResolveBatch(ctx, rec)
	label := o.resolver.ResolveLabel(ctx, rec)
	amount := rec.Amount
	if meta == nil {
		meta = map[string]any{}
	}
	meta["method"] = string(rec.Method)
	if rec.Remarks != "" {
		meta["remarks"] = rec.Remarks
	}
	if rec.StudentID != nil {
		meta["student_id"] = *rec.StudentID
	}
	if rec.PlacementID != nil {
		meta["placement_id"] = *rec.PlacementID
	}
	meta["amount_display"] = o.resolver.FormatAmount(rec.Amount)
	return audit.Entry{
		Action:   action,
		Entity:   rec.Kind.Entity(),
		EntityID: rec.ID,
		Label:    label,
		BatchID:  batchID,
		Amount:   &amount,
		Meta:     meta,
		TxnDate:  rec.TxnDate,
		ActorID:  actorID,
	}
}

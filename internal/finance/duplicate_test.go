package finance

import (
	"context"
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/meridian-edu/meridian-backoffice/internal/platform/httpx"
)

func TestDetectorFailOpenAsymmetry(t *testing.T) {
	store := newMemStore()
	detector := NewDetector(store, slog.New(slog.DiscardHandler))
	txn := time.Date(2026, 1, 5, 0, 0, 0, 0, time.UTC)

	// Payment lookups fail open: a degraded duplicate check must not
	// block fee collection, the uniqueness constraint still backstops.
	store.findErr = errors.New("lookup offline")
	err := detector.Check(context.Background(), Record{
		Kind: KindPayment, StudentID: i64(1), Amount: 100, TxnDate: txn,
	})
	require.NoError(t, err)

	// Installment and expense lookups propagate.
	store.findErr = errors.New("lookup offline")
	err = detector.Check(context.Background(), Record{
		Kind: KindInstallment, PlacementID: i64(1), Amount: 100, TxnDate: txn,
	})
	require.ErrorIs(t, err, httpx.ErrStore)

	store.findErr = errors.New("lookup offline")
	err = detector.Check(context.Background(), Record{
		Kind: KindExpense, Name: "stationery", Amount: 100, TxnDate: txn, Method: MethodCash,
	})
	require.ErrorIs(t, err, httpx.ErrStore)
}

func TestDetectorTreatsNoRowsAsClean(t *testing.T) {
	store := newMemStore()
	store.findErr = pgx.ErrNoRows
	detector := NewDetector(store, slog.New(slog.DiscardHandler))

	err := detector.Check(context.Background(), Record{
		Kind: KindInstallment, PlacementID: i64(1), Amount: 100,
		TxnDate: time.Date(2026, 1, 5, 0, 0, 0, 0, time.UTC),
	})
	require.NoError(t, err)
}

func TestDetectorExpenseBatchScoping(t *testing.T) {
	store := newMemStore()
	detector := NewDetector(store, slog.New(slog.DiscardHandler))
	txn := time.Date(2026, 1, 5, 0, 0, 0, 0, time.UTC)

	base := Record{
		Kind: KindExpense, Name: "projector rental", Amount: 2500,
		TxnDate: txn, Method: MethodCash, Direction: DirectionDebit,
	}
	batchless, err := store.Insert(context.Background(), base)
	require.NoError(t, err)

	// Same expense scoped to a batch is a different key.
	scoped := base
	scoped.BatchID = i64(4)
	require.NoError(t, detector.Check(context.Background(), scoped))

	// Same expense with no batch matches the batchless record only.
	err = detector.Check(context.Background(), base)
	var dup *DuplicateError
	require.ErrorAs(t, err, &dup)
	assert.Equal(t, batchless.ID, dup.ExistingID)
}

func TestDetectorReportsOldestMatch(t *testing.T) {
	store := newMemStore()
	detector := NewDetector(store, slog.New(slog.DiscardHandler))

	rec := paymentRecord()
	Normalize(&rec)
	first, err := store.Insert(context.Background(), rec)
	require.NoError(t, err)

	err = detector.Check(context.Background(), paymentRecord())
	var dup *DuplicateError
	require.ErrorAs(t, err, &dup)
	assert.Equal(t, KindPayment, dup.Kind)
	assert.Equal(t, first.ID, dup.ExistingID)
	assert.Equal(t, 15000.0, dup.SubmittedAmount)

	extra := dup.Extra()
	assert.Equal(t, first.ID, extra["existing_id"])
	assert.Equal(t, "2026-02-10", extra["existing_txn_date"])
}

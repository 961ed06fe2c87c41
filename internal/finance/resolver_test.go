package finance

import (
	"context"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newResolverFixture() (*Resolver, *memLookups) {
	lookups := &memLookups{
		placements: map[int64]PlacementRef{},
		students:   map[int64]StudentRef{},
	}
	return NewResolver(lookups, slog.New(slog.DiscardHandler)), lookups
}

func TestResolveBatchFallbackOrder(t *testing.T) {
	resolver, lookups := newResolverFixture()
	lookups.placements[10] = PlacementRef{ID: 10, StudentID: 7, BatchID: i64(20)}
	lookups.students[7] = StudentRef{ID: 7, FullName: "Asha Verma", BatchID: i64(30)}

	rec := Record{Kind: KindInstallment, PlacementID: i64(10), StudentID: i64(7)}

	// Direct batch wins over everything.
	rec.BatchID = i64(5)
	got := resolver.ResolveBatch(context.Background(), rec)
	require.NotNil(t, got)
	assert.Equal(t, int64(5), *got)

	// Without a direct batch the placement's batch is next.
	rec.BatchID = nil
	got = resolver.ResolveBatch(context.Background(), rec)
	require.NotNil(t, got)
	assert.Equal(t, int64(20), *got)

	// With the placement batch gone the student's batch is last.
	lookups.placements[10] = PlacementRef{ID: 10, StudentID: 7}
	got = resolver.ResolveBatch(context.Background(), rec)
	require.NotNil(t, got)
	assert.Equal(t, int64(30), *got)
}

func TestResolveBatchDerivesStudentFromPlacement(t *testing.T) {
	resolver, lookups := newResolverFixture()
	lookups.placements[10] = PlacementRef{ID: 10, StudentID: 7}
	lookups.students[7] = StudentRef{ID: 7, FullName: "Asha Verma", BatchID: i64(30)}

	rec := Record{Kind: KindInstallment, PlacementID: i64(10)}
	got := resolver.ResolveBatch(context.Background(), rec)
	require.NotNil(t, got)
	assert.Equal(t, int64(30), *got)
}

func TestResolveBatchExhaustedChainIsNil(t *testing.T) {
	resolver, _ := newResolverFixture()
	rec := Record{Kind: KindExpense, Name: "stationery", ID: 12}
	assert.Nil(t, resolver.ResolveBatch(context.Background(), rec))
}

func TestResolveLabel(t *testing.T) {
	resolver, lookups := newResolverFixture()
	lookups.students[7] = StudentRef{ID: 7, FullName: "Asha Verma"}

	payment := Record{Kind: KindPayment, StudentID: i64(7)}
	assert.Equal(t, "Asha Verma", resolver.ResolveLabel(context.Background(), payment))

	installment := Record{Kind: KindInstallment, StudentID: i64(7), InstallmentNo: 3}
	assert.Equal(t, "Asha Verma (installment 3)", resolver.ResolveLabel(context.Background(), installment))

	expense := Record{Kind: KindExpense, Name: "projector rental"}
	assert.Equal(t, "projector rental", resolver.ResolveLabel(context.Background(), expense))

	// Unknown student, no name: generic fallback so the audit entry is
	// never blocked on a missing lookup.
	orphan := Record{Kind: KindPayment, StudentID: i64(99), ID: 55}
	assert.Equal(t, "payment #55", resolver.ResolveLabel(context.Background(), orphan))
}

func TestFormatAmount(t *testing.T) {
	resolver, _ := newResolverFixture()
	assert.Equal(t, "1,234,567.89", resolver.FormatAmount(1234567.89))
	assert.Equal(t, "500.00", resolver.FormatAmount(500))
}

func TestValidateRejectsZeroDate(t *testing.T) {
	rec := paymentRecord()
	rec.TxnDate = time.Time{}
	err := Validate(rec, time.Now())
	require.Error(t, err)
}

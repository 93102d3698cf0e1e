package sqlite

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/driver-pay/change"
	"github.com/warp/driver-pay/history"
	"github.com/warp/driver-pay/payment"
	"github.com/warp/driver-pay/payroll"
	"github.com/warp/driver-pay/timeline"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := New(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func newTestLedger(store history.Store, today timeline.Date) *history.Ledger {
	n := 0
	return history.NewLedger(store,
		history.WithClock(timeline.FixedClock{At: today.Time().Add(9 * time.Hour)}),
		history.WithIDGenerator(func() history.RecordID {
			n++
			return history.RecordID(fmt.Sprintf("rec-%d", n))
		}),
	)
}

func date(s string) timeline.Date { return timeline.MustParseDate(s) }

// =============================================================================
// HISTORY STORE
// =============================================================================

func TestHistory_RoundTrip(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)
	ledger := newTestLedger(store, date("2024-06-01"))

	_, err := ledger.Append(ctx, "emp-1", payment.NewPercentage(82.5, 15, 2.5), date("2024-01-01"), "hired", "ingest")
	require.NoError(t, err)
	_, err = ledger.Append(ctx, "emp-1", payment.NewPerMile(2.15), date("2024-06-01"), "moved to long haul", "fleet-manager")
	require.NoError(t, err)

	records, err := store.LoadHistory(ctx, "emp-1")
	require.NoError(t, err)
	require.Len(t, records, 2)

	first, second := records[0], records[1]
	assert.Equal(t, history.RecordID("rec-1"), first.ID)
	assert.True(t, first.Configuration.Equal(payment.NewPercentage(82.5, 15, 2.5)))
	assert.Equal(t, "2024-05-31", first.EndDate.String())
	assert.Equal(t, "ingest", first.CreatedBy)
	assert.Equal(t, "fleet-manager", first.ModifiedBy)
	assert.False(t, first.ModifiedAt.IsZero())
	assert.Equal(t, "hired", first.Notes)

	assert.True(t, second.Configuration.Equal(payment.NewPerMile(2.15)))
	assert.Nil(t, second.EndDate)
	assert.True(t, second.ModifiedAt.IsZero())
	assert.True(t, second.CreatedAt.Equal(date("2024-06-01").Time().Add(9*time.Hour)))

	assert.NoError(t, history.Sequence(records).Validate())
}

func TestHistory_UnknownEmployeeIsEmpty(t *testing.T) {
	records, err := newTestStore(t).LoadHistory(context.Background(), "nobody")
	require.NoError(t, err)
	assert.Empty(t, records)
}

func TestSaveHistory_ExistingColumnsAreImmutable(t *testing.T) {
	// GIVEN: A stored record
	// WHEN: The same ID is saved with a different configuration
	// THEN: Only the closing columns change

	ctx := context.Background()
	store := newTestStore(t)

	original := history.Record{
		ID:            "rec-1",
		EmployeeID:    "emp-1",
		Configuration: payment.NewFlatRate(750),
		EffectiveDate: date("2024-01-01"),
		CreatedBy:     "admin",
		CreatedAt:     time.Now(),
	}
	require.NoError(t, store.SaveHistory(ctx, "emp-1", []history.Record{original}))

	tampered := original
	tampered.Configuration = payment.NewFlatRate(9000)
	tampered.EndDate = date("2024-03-31").Ptr()
	tampered.ModifiedBy = "admin"
	require.NoError(t, store.SaveHistory(ctx, "emp-1", []history.Record{tampered}))

	records, err := store.LoadHistory(ctx, "emp-1")
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.True(t, records[0].Configuration.Equal(payment.NewFlatRate(750)))
	assert.Equal(t, "2024-03-31", records[0].EndDate.String())
}

func TestSaveHistory_SecondOpenRecord_ConcurrentModification(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	open := func(id history.RecordID, effective string) history.Record {
		return history.Record{
			ID: id, EmployeeID: "emp-1", Configuration: payment.NewPerMile(2),
			EffectiveDate: date(effective), CreatedBy: "admin", CreatedAt: time.Now(),
		}
	}

	require.NoError(t, store.SaveHistory(ctx, "emp-1", []history.Record{open("rec-1", "2024-01-01")}))

	err := store.SaveHistory(ctx, "emp-1", []history.Record{open("rec-2", "2024-02-01")})
	assert.ErrorIs(t, err, history.ErrConcurrentModification)

	records, _ := store.LoadHistory(ctx, "emp-1")
	assert.Len(t, records, 1)
}

func TestSaveHistory_RejectsForeignRecord(t *testing.T) {
	store := newTestStore(t)
	err := store.SaveHistory(context.Background(), "emp-1", []history.Record{{
		ID: "rec-1", EmployeeID: "emp-2", Configuration: payment.NewPerMile(2),
		EffectiveDate: date("2024-01-01"), CreatedBy: "admin",
	}})
	assert.Error(t, err)
}

func TestSaveHistory_RecordIDOwnedByAnotherEmployee(t *testing.T) {
	// GIVEN: rec-1 stored for emp-1
	// WHEN: emp-2 saves a record with the same ID
	// THEN: The save fails and emp-1's record is unchanged

	ctx := context.Background()
	store := newTestStore(t)

	rec := history.Record{
		ID: "rec-1", EmployeeID: "emp-1", Configuration: payment.NewPerMile(2),
		EffectiveDate: date("2024-01-01"), CreatedBy: "admin", CreatedAt: time.Now(),
	}
	require.NoError(t, store.SaveHistory(ctx, "emp-1", []history.Record{rec}))

	clash := rec
	clash.EmployeeID = "emp-2"
	clash.EndDate = date("2024-02-01").Ptr()
	err := store.SaveHistory(ctx, "emp-2", []history.Record{clash})
	require.ErrorIs(t, err, history.ErrInternalConsistency)

	emp2, err := store.LoadHistory(ctx, "emp-2")
	require.NoError(t, err)
	assert.Empty(t, emp2)

	emp1, err := store.LoadHistory(ctx, "emp-1")
	require.NoError(t, err)
	require.Len(t, emp1, 1)
	assert.Nil(t, emp1[0].EndDate)
}

func TestLoadHistory_CorruptTimestampIsAnError(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	require.NoError(t, store.SaveHistory(ctx, "emp-1", []history.Record{{
		ID: "rec-1", EmployeeID: "emp-1", Configuration: payment.NewPerMile(2),
		EffectiveDate: date("2024-01-01"), CreatedBy: "admin", CreatedAt: time.Now(),
	}}))
	_, err := store.db.ExecContext(ctx, `UPDATE payment_history SET created_at = 'yesterday' WHERE id = 'rec-1'`)
	require.NoError(t, err)

	_, err = store.LoadHistory(ctx, "emp-1")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "created_at")
}

// =============================================================================
// TRANSACTIONAL STORE
// =============================================================================

func TestWithTx_FailedBatchLeavesStoreUntouched(t *testing.T) {
	// GIVEN: emp-2 has a record starting after the batch date
	// WHEN: A change request targets emp-1 and emp-2
	// THEN: The SQLite store holds no trace of the batch

	ctx := context.Background()
	store := newTestStore(t)
	ledger := newTestLedger(store, date("2024-06-15"))

	_, err := ledger.Append(ctx, "emp-2", payment.NewPerMile(2), date("2024-07-01"), "", "admin")
	require.NoError(t, err)

	req := change.NewRequest(ledger.Clock())
	req.SetConfiguration(payment.NewFlatRate(800))
	req.SetEffectiveDate(date("2024-06-15"))
	req.SetTargets("emp-1", "emp-2")

	_, err = req.Apply(ctx, ledger, "admin")
	require.ErrorIs(t, err, history.ErrTemporalConflict)

	emp1, err := store.LoadHistory(ctx, "emp-1")
	require.NoError(t, err)
	assert.Empty(t, emp1)

	emp2, err := store.LoadHistory(ctx, "emp-2")
	require.NoError(t, err)
	require.Len(t, emp2, 1)
	assert.Nil(t, emp2[0].EndDate)
}

func TestWithTx_RollsBackOnError(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	err := store.WithTx(ctx, func(tx history.Store) error {
		require.NoError(t, tx.SaveHistory(ctx, "emp-1", []history.Record{{
			ID: "rec-1", EmployeeID: "emp-1", Configuration: payment.NewPerMile(2),
			EffectiveDate: date("2024-01-01"), CreatedBy: "admin", CreatedAt: time.Now(),
		}}))

		inside, err := tx.LoadHistory(ctx, "emp-1")
		require.NoError(t, err)
		assert.Len(t, inside, 1, "writes are visible inside the transaction")

		return fmt.Errorf("abort")
	})
	require.EqualError(t, err, "abort")

	records, _ := store.LoadHistory(ctx, "emp-1")
	assert.Empty(t, records)
}

// =============================================================================
// EMPLOYEE DIRECTORY
// =============================================================================

func TestDirectory_SnapshotLifecycle(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	missing, err := store.GetEmployee(ctx, "emp-1")
	require.NoError(t, err)
	assert.Nil(t, missing)

	require.NoError(t, store.SaveEmployee(ctx, payroll.Employee{ID: "emp-1", Name: "Bea"}))
	require.NoError(t, store.SaveEmployee(ctx, payroll.Employee{ID: "emp-2", Name: "Al"}))

	emp, err := store.GetEmployee(ctx, "emp-1")
	require.NoError(t, err)
	require.NotNil(t, emp)
	assert.Equal(t, "Bea", emp.Name)
	assert.Nil(t, emp.Snapshot)

	synced := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	require.NoError(t, store.UpdateSnapshot(ctx, "emp-1", &payroll.Snapshot{
		Kind: payment.KindPerMile, Summary: "$2.00/mile", RecordID: "rec-9", SyncedAt: synced,
	}))

	emp, _ = store.GetEmployee(ctx, "emp-1")
	require.NotNil(t, emp.Snapshot)
	assert.Equal(t, payment.KindPerMile, emp.Snapshot.Kind)
	assert.Equal(t, "$2.00/mile", emp.Snapshot.Summary)
	assert.Equal(t, history.RecordID("rec-9"), emp.Snapshot.RecordID)
	assert.True(t, emp.Snapshot.SyncedAt.Equal(synced))

	// Renaming keeps the snapshot
	require.NoError(t, store.SaveEmployee(ctx, payroll.Employee{ID: "emp-1", Name: "Beatrice"}))
	emp, _ = store.GetEmployee(ctx, "emp-1")
	assert.Equal(t, "Beatrice", emp.Name)
	assert.NotNil(t, emp.Snapshot)

	require.NoError(t, store.UpdateSnapshot(ctx, "emp-1", nil))
	emp, _ = store.GetEmployee(ctx, "emp-1")
	assert.Nil(t, emp.Snapshot)

	all, err := store.ListEmployees(ctx)
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, "Al", all[0].Name)

	err = store.UpdateSnapshot(ctx, "ghost", nil)
	assert.ErrorIs(t, err, payroll.ErrEmployeeNotFound)
}

func TestDirectory_DeleteEmployee(t *testing.T) {
	// GIVEN: emp-1 with payment history and emp-2 without
	// WHEN: Both are deleted
	// THEN: Only emp-2 is removed

	ctx := context.Background()
	store := newTestStore(t)
	ledger := newTestLedger(store, date("2024-06-01"))

	require.NoError(t, store.SaveEmployee(ctx, payroll.Employee{ID: "emp-1", Name: "Bea"}))
	require.NoError(t, store.SaveEmployee(ctx, payroll.Employee{ID: "emp-2", Name: "Al"}))
	_, err := ledger.Append(ctx, "emp-1", payment.NewPerMile(2), date("2024-06-01"), "", "admin")
	require.NoError(t, err)

	require.NoError(t, store.DeleteEmployee(ctx, "emp-1"))
	require.NoError(t, store.DeleteEmployee(ctx, "emp-2"))
	require.NoError(t, store.DeleteEmployee(ctx, "ghost"))

	emp1, err := store.GetEmployee(ctx, "emp-1")
	require.NoError(t, err)
	assert.NotNil(t, emp1)

	emp2, err := store.GetEmployee(ctx, "emp-2")
	require.NoError(t, err)
	assert.Nil(t, emp2)
}

func TestReset(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)
	ledger := newTestLedger(store, date("2024-06-01"))

	require.NoError(t, store.SaveEmployee(ctx, payroll.Employee{ID: "emp-1", Name: "Bea"}))
	_, err := ledger.Append(ctx, "emp-1", payment.NewPerMile(2), date("2024-06-01"), "", "admin")
	require.NoError(t, err)

	require.NoError(t, store.Reset(ctx))

	all, _ := store.ListEmployees(ctx)
	assert.Empty(t, all)
	records, _ := store.LoadHistory(ctx, "emp-1")
	assert.Empty(t, records)
}

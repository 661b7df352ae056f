package store

import (
	"context"
	"database/sql"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/kirana/internal/model"
	"github.com/roach88/kirana/internal/schema"
)

func TestRunAtomic_CommitReportsTouchedTables(t *testing.T) {
	s := createTestStore(t)
	obs := &recordingObserver{}
	s.AddCommitObserver(obs)
	ctx := context.Background()

	touched, err := s.RunAtomic(ctx, func(tx *Tx) error {
		if _, err := Items.Insert(ctx, tx, testItem("Rice", 5)); err != nil {
			return err
		}
		_, err := Parties.Insert(ctx, tx, model.Party{Name: "Asha", Phone: "1", Type: model.Customer})
		return err
	})
	require.NoError(t, err)
	assert.Equal(t, "{items, parties}", touched.String())

	calls := obs.snapshot()
	require.Len(t, calls, 1)
	assert.Equal(t, touched, calls[0])
}

func TestRunAtomic_ErrorRollsBack(t *testing.T) {
	s := createTestStore(t)
	obs := &recordingObserver{}
	s.AddCommitObserver(obs)
	ctx := context.Background()
	boom := errors.New("boom")

	touched, err := s.RunAtomic(ctx, func(tx *Tx) error {
		if _, err := Items.Insert(ctx, tx, testItem("Rice", 5)); err != nil {
			return err
		}
		return boom
	})
	assert.ErrorIs(t, err, boom)
	assert.Nil(t, touched)
	assert.Empty(t, obs.snapshot())

	n, err := Items.Count(ctx, s.Reader(), "")
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestRunAtomic_PanicRollsBackAndRepanics(t *testing.T) {
	s := createTestStore(t)
	obs := &recordingObserver{}
	s.AddCommitObserver(obs)
	ctx := context.Background()

	assert.PanicsWithValue(t, "kaboom", func() {
		_, _ = s.RunAtomic(ctx, func(tx *Tx) error {
			if _, err := Items.Insert(ctx, tx, testItem("Rice", 5)); err != nil {
				return err
			}
			panic("kaboom")
		})
	})
	assert.Empty(t, obs.snapshot())

	n, err := Items.Count(ctx, s.Reader(), "")
	require.NoError(t, err)
	assert.Zero(t, n)

	// The write lock was released.
	mustInsert(t, s, Items, testItem("Dal", 1))
}

func TestRunAtomic_FailedUnitDoesNotLeakTouches(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	_, err := s.RunAtomic(ctx, func(tx *Tx) error {
		if _, err := Items.Insert(ctx, tx, testItem("Rice", 5)); err != nil {
			return err
		}
		return errors.New("abort")
	})
	require.Error(t, err)

	touched, err := s.RunAtomic(ctx, func(tx *Tx) error {
		_, err := Reminders.Insert(ctx, tx, model.Reminder{Title: "Call", Type: model.ReminderGeneral, DueAt: 1})
		return err
	})
	require.NoError(t, err)
	assert.Equal(t, "{reminders}", touched.String())
}

func TestRunAtomic_CascadeTouchesChildTable(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	txID := mustInsert(t, s, Transactions, model.Transaction{Title: "Sale", Type: model.TxSale, Amount: 20, Date: 1, Time: "10:00 AM", PaymentMode: model.Cash})
	mustInsert(t, s, TransactionItems, model.TransactionItem{TransactionID: txID, ItemNameSnapshot: "Rice", Qty: 2, Price: 10})

	touched, err := s.RunAtomic(ctx, func(tx *Tx) error {
		ok, err := Transactions.Delete(ctx, tx, txID)
		assert.True(t, ok)
		return err
	})
	require.NoError(t, err)
	assert.Equal(t, "{transaction_items, transactions}", touched.String())

	n, err := TransactionItems.Count(ctx, s.Reader(), "WHERE transactionId = ?", txID)
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestRunAtomic_SetNullTouchesChildTable(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	itemID := mustInsert(t, s, Items, testItem("Rice", 5))
	txID := mustInsert(t, s, Transactions, model.Transaction{Title: "Sale", Type: model.TxSale, Amount: 10, Date: 1, Time: "10:00 AM", PaymentMode: model.Cash})
	lineID := mustInsert(t, s, TransactionItems, model.TransactionItem{TransactionID: txID, ItemID: &itemID, ItemNameSnapshot: "Rice", Qty: 1, Price: 10})

	touched, err := s.RunAtomic(ctx, func(tx *Tx) error {
		_, err := Items.Delete(ctx, tx, itemID)
		return err
	})
	require.NoError(t, err)
	assert.Equal(t, "{items, transaction_items}", touched.String())

	line, err := TransactionItems.Get(ctx, s.Reader(), lineID)
	require.NoError(t, err)
	assert.Nil(t, line.ItemID)
	assert.Equal(t, "Rice", line.ItemNameSnapshot)
}

func TestRunAtomic_UnreferencedDeleteTouchesOnlyItsTable(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	partyID := mustInsert(t, s, Parties, model.Party{Name: "Asha", Type: model.Customer})
	itemID := mustInsert(t, s, Items, testItem("Salt", 3))

	touched, err := s.RunAtomic(ctx, func(tx *Tx) error {
		ok, err := Parties.Delete(ctx, tx, partyID)
		assert.True(t, ok)
		return err
	})
	require.NoError(t, err)
	assert.Equal(t, "{parties}", touched.String())

	touched, err = s.RunAtomic(ctx, func(tx *Tx) error {
		ok, err := Items.Delete(ctx, tx, itemID)
		assert.True(t, ok)
		return err
	})
	require.NoError(t, err)
	assert.Equal(t, "{items}", touched.String())
}

func TestRunAtomic_NoOpDeleteTouchesNothing(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	touched, err := s.RunAtomic(ctx, func(tx *Tx) error {
		ok, err := Parties.Delete(ctx, tx, 12345)
		assert.False(t, ok)
		return err
	})
	require.NoError(t, err)
	assert.Zero(t, touched.Len())
}

func TestRunAtomic_ForeignKeyViolation(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	_, err := s.RunAtomic(ctx, func(tx *Tx) error {
		_, err := TransactionItems.Insert(ctx, tx, model.TransactionItem{TransactionID: 999, ItemNameSnapshot: "Ghost", Qty: 1, Price: 1})
		return err
	})
	require.Error(t, err)
	assert.True(t, IsConstraint(err), "got %v", err)
}

func TestTx_ReaderSeesOwnWrites(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	_, err := s.RunAtomic(ctx, func(tx *Tx) error {
		id, err := Items.Insert(ctx, tx, testItem("Rice", 5))
		if err != nil {
			return err
		}
		item, err := Items.Get(ctx, tx.Reader(), id)
		if err != nil {
			return err
		}
		assert.Equal(t, "Rice", item.Name)

		// Not yet visible outside the unit.
		_, err = Items.Get(ctx, s.Reader(), id)
		assert.True(t, IsNotFound(err))
		return nil
	})
	require.NoError(t, err)
}

func TestTx_StatementKindMismatch(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	_, err := s.RunAtomic(ctx, func(tx *Tx) error {
		_, err := tx.Exec(ctx, "items.insert", 1)
		return err
	})
	assert.ErrorContains(t, err, "named arguments")

	_, err = s.RunAtomic(ctx, func(tx *Tx) error {
		_, err := tx.ExecNamed(ctx, schema.AdjustStock, struct{}{})
		return err
	})
	assert.ErrorContains(t, err, "positional arguments")

	_, err = s.RunAtomic(ctx, func(tx *Tx) error {
		_, err := tx.Insert(ctx, "items.update", testItem("x", 1))
		return err
	})
	assert.ErrorContains(t, err, "not a named insert")
}

type panickingObserver struct{}

func (panickingObserver) Notify(schema.TableSet) { panic("observer bug") }

func TestRunAtomic_ObserverPanicIsContained(t *testing.T) {
	s := createTestStore(t)
	obs := &recordingObserver{}
	s.AddCommitObserver(panickingObserver{})
	s.AddCommitObserver(obs)

	mustInsert(t, s, Items, testItem("Rice", 5))
	assert.Len(t, obs.snapshot(), 1)
}

// holdWriteLock takes the database write lock on a separate connection until
// the returned release func is called.
func holdWriteLock(t *testing.T, s *Store) (release func()) {
	t.Helper()
	ctx := context.Background()
	db, err := sql.Open("sqlite3", s.Path())
	require.NoError(t, err)
	conn, err := db.Conn(ctx)
	require.NoError(t, err)
	_, err = conn.ExecContext(ctx, "BEGIN IMMEDIATE")
	require.NoError(t, err)

	var once sync.Once
	release = func() {
		once.Do(func() {
			_, _ = conn.ExecContext(ctx, "ROLLBACK")
			conn.Close()
			db.Close()
		})
	}
	t.Cleanup(release)
	return release
}

func TestRunAtomic_ConflictAfterRetries(t *testing.T) {
	s := createTestStore(t,
		WithBusyTimeout(20*time.Millisecond),
		WithWriteRetries(2),
		WithRetryBackoff(time.Millisecond),
	)
	obs := &recordingObserver{}
	s.AddCommitObserver(obs)
	holdWriteLock(t, s)

	attempts := 0
	_, err := s.RunAtomic(context.Background(), func(tx *Tx) error {
		attempts++
		return nil
	})
	require.Error(t, err)
	assert.True(t, IsConflict(err), "got %v", err)
	assert.Zero(t, attempts, "fn must not run when begin fails")
	assert.Empty(t, obs.snapshot())
}

func TestRunAtomic_RetriesUntilLockReleased(t *testing.T) {
	s := createTestStore(t,
		WithBusyTimeout(20*time.Millisecond),
		WithWriteRetries(20),
		WithRetryBackoff(5*time.Millisecond),
	)
	release := holdWriteLock(t, s)
	time.AfterFunc(60*time.Millisecond, release)

	id := mustInsert(t, s, Items, testItem("Rice", 5))
	assert.Positive(t, id)
}

func TestRunAtomic_ContextCancelled(t *testing.T) {
	s := createTestStore(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := s.RunAtomic(ctx, func(tx *Tx) error { return nil })
	assert.ErrorIs(t, err, context.Canceled)
}

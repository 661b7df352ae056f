package ledger

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/kirana/internal/model"
	"github.com/roach88/kirana/internal/testutil"
)

func TestWatchActiveItems_CoalescesAndIgnoresOtherTables(t *testing.T) {
	l := newTestLedger(t, WithCoalesceWindow(150*time.Millisecond))
	ctx := context.Background()
	rice := addItem(t, l, "Rice", 60, 10)
	asha := addParty(t, l, "Asha", model.Customer)

	items, err := l.WatchActiveItems(ctx)
	require.NoError(t, err)
	t.Cleanup(items.Cancel)
	parties, err := l.WatchParties(ctx)
	require.NoError(t, err)
	t.Cleanup(parties.Cancel)

	require.NoError(t, l.AdjustStock(ctx, rice, 1))
	require.NoError(t, l.AdjustStock(ctx, rice, 1))

	u := testutil.Receive(t, items.Updates(), wait)
	require.NoError(t, u.Err)
	require.Len(t, u.Value, 1)
	assert.Equal(t, int64(12), u.Value[0].Stock)
	testutil.NoReceive(t, items.Updates(), 300*time.Millisecond)
	assert.Equal(t, int64(2), items.Evaluations())

	// Parties subscription was never woken by item writes.
	assert.Equal(t, int64(1), parties.Evaluations())

	require.NoError(t, l.AdjustBalance(ctx, asha, 5))
	p := testutil.Receive(t, parties.Updates(), wait)
	require.NoError(t, p.Err)
	assert.Equal(t, 5.0, p.Value[0].Balance)

	testutil.NoReceive(t, items.Updates(), 200*time.Millisecond)
	assert.Equal(t, int64(2), items.Evaluations())
}

func TestWatchActiveItems_SoftDeleteRemovesItem(t *testing.T) {
	l := newTestLedger(t)
	ctx := context.Background()
	rice := addItem(t, l, "Rice", 60, 10)
	addItem(t, l, "Dal", 90, 10)

	sub, err := l.WatchActiveItems(ctx)
	require.NoError(t, err)
	t.Cleanup(sub.Cancel)
	require.Len(t, sub.Initial().Value, 2)

	require.NoError(t, l.SoftDelete(ctx, rice))

	u := testutil.Receive(t, sub.Updates(), wait)
	require.Len(t, u.Value, 1)
	assert.Equal(t, "Dal", u.Value[0].Name)
	assert.Positive(t, u.Version)
}

func TestWatch_ResubscribeGetsFreshSnapshot(t *testing.T) {
	l := newTestLedger(t)
	ctx := context.Background()
	addItem(t, l, "Rice", 60, 10)

	first, err := l.WatchActiveItems(ctx)
	require.NoError(t, err)
	require.Len(t, first.Initial().Value, 1)
	first.Cancel()
	assert.Equal(t, 0, l.Tracker().Len())

	addItem(t, l, "Dal", 90, 10)

	second, err := l.WatchActiveItems(ctx)
	require.NoError(t, err)
	t.Cleanup(second.Cancel)
	assert.Len(t, second.Initial().Value, 2)
	assert.True(t, testutil.Closed(first.Updates(), wait))
}

func TestWatchTransactionItems_CascadeEmptiesResult(t *testing.T) {
	l := newTestLedger(t)
	ctx := context.Background()
	txID, err := l.RecordSale(ctx, saleTx(5), []model.TransactionItem{{ItemNameSnapshot: "Soap", Qty: 1, Price: 5}})
	require.NoError(t, err)

	sub, err := l.WatchTransactionItems(ctx, txID)
	require.NoError(t, err)
	t.Cleanup(sub.Cancel)
	require.Len(t, sub.Initial().Value, 1)

	require.NoError(t, l.DeleteTransactions(ctx, []int64{txID}))

	u := testutil.Receive(t, sub.Updates(), wait)
	require.NoError(t, u.Err)
	assert.Empty(t, u.Value)
}

func TestWatchOutboxPending(t *testing.T) {
	l := newTestLedger(t)
	ctx := context.Background()

	sub, err := l.WatchOutboxPending(ctx)
	require.NoError(t, err)
	t.Cleanup(sub.Cancel)
	assert.Zero(t, sub.Initial().Value)

	addItem(t, l, "Rice", 60, 10)
	u := testutil.Receive(t, sub.Updates(), wait)
	assert.Equal(t, int64(1), u.Value)
}

func TestWatchTransactionsAndReminders(t *testing.T) {
	l := newTestLedger(t)
	ctx := context.Background()

	txs, err := l.WatchTransactions(ctx)
	require.NoError(t, err)
	t.Cleanup(txs.Cancel)
	reminders, err := l.WatchActiveReminders(ctx)
	require.NoError(t, err)
	t.Cleanup(reminders.Cancel)

	_, err = l.RecordExpense(ctx, Expense{Amount: 35, Mode: model.Cash, Description: "Tea"})
	require.NoError(t, err)
	u := testutil.Receive(t, txs.Updates(), wait)
	require.Len(t, u.Value, 1)
	assert.Equal(t, "Expense • Tea (CASH)", u.Value[0].Title)

	_, err = l.AddReminder(ctx, model.Reminder{Title: "Pay rent", DueAt: 1})
	require.NoError(t, err)
	r := testutil.Receive(t, reminders.Updates(), wait)
	require.Len(t, r.Value, 1)
	assert.Equal(t, "Pay rent", r.Value[0].Title)
}

func TestClose_EndsLiveQueries(t *testing.T) {
	l := newTestLedger(t)
	sub, err := l.WatchParties(context.Background())
	require.NoError(t, err)

	require.NoError(t, l.Close())
	assert.True(t, testutil.Closed(sub.Done(), wait))
	sub.Cancel()
}

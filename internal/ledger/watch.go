package ledger

import (
	"context"

	"github.com/roach88/kirana/internal/engine"
	"github.com/roach88/kirana/internal/model"
	"github.com/roach88/kirana/internal/schema"
)

// Live queries. Each returns a subscription whose Initial value is computed
// before the call returns; Updates delivers later changes until the
// subscription is cancelled, ctx is done or the ledger is closed.

// WatchActiveItems follows ActiveItems.
func (l *Ledger) WatchActiveItems(ctx context.Context) (*engine.Subscription[[]model.Item], error) {
	return watch(ctx, l, "active_items", schema.NewTableSet(schema.Items), l.ActiveItems)
}

// WatchParties follows Parties.
func (l *Ledger) WatchParties(ctx context.Context) (*engine.Subscription[[]model.Party], error) {
	return watch(ctx, l, "parties", schema.NewTableSet(schema.Parties), l.Parties)
}

// WatchTransactions follows Transactions.
func (l *Ledger) WatchTransactions(ctx context.Context) (*engine.Subscription[[]model.Transaction], error) {
	return watch(ctx, l, "transactions", schema.NewTableSet(schema.Transactions), l.Transactions)
}

// WatchTransactionItems follows the lines of one transaction. Deleting the
// transaction empties the result through the cascade.
func (l *Ledger) WatchTransactionItems(ctx context.Context, txID int64) (*engine.Subscription[[]model.TransactionItem], error) {
	return watch(ctx, l, "transaction_items", schema.NewTableSet(schema.TransactionItems),
		func(ctx context.Context) ([]model.TransactionItem, error) {
			return l.TransactionItems(ctx, txID)
		})
}

// WatchActiveReminders follows ActiveReminders.
func (l *Ledger) WatchActiveReminders(ctx context.Context) (*engine.Subscription[[]model.Reminder], error) {
	return watch(ctx, l, "active_reminders", schema.NewTableSet(schema.Reminders), l.ActiveReminders)
}

// WatchOutboxPending follows OutboxPendingCount.
func (l *Ledger) WatchOutboxPending(ctx context.Context) (*engine.Subscription[int64], error) {
	return watch(ctx, l, "outbox_pending", schema.NewTableSet(schema.Outbox), l.OutboxPendingCount)
}

func watch[T any](ctx context.Context, l *Ledger, name string, tables schema.TableSet, fetch func(context.Context) (T, error)) (*engine.Subscription[T], error) {
	return engine.Subscribe(ctx, l.tracker, engine.Query[T]{
		Name:  name,
		Watch: tables,
		Fetch: fetch,
	},
		engine.WithCoalesceWindow(l.window),
		engine.WithSubscriptionLogger(l.logger),
	)
}

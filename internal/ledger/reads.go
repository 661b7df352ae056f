package ledger

import (
	"context"
	"strings"
	"time"

	"golang.org/x/text/cases"

	"github.com/roach88/kirana/internal/model"
	"github.com/roach88/kirana/internal/schema"
	"github.com/roach88/kirana/internal/store"
)

// Reads run against the reader pool and see the last committed state. Slices
// are never nil.

// Item returns the item by id, soft-deleted or not.
func (l *Ledger) Item(ctx context.Context, id int64) (model.Item, error) {
	return store.Items.Get(ctx, l.store.Reader(), id)
}

// ActiveItems returns the items that are not soft-deleted, by name.
func (l *Ledger) ActiveItems(ctx context.Context) ([]model.Item, error) {
	return activeItems(ctx, l.store.Reader())
}

func activeItems(ctx context.Context, rd store.Reader) ([]model.Item, error) {
	return store.Items.Select(ctx, rd, "WHERE isDeleted = 0 ORDER BY name ASC, id ASC")
}

// ItemByBarcode returns the active item with the barcode.
func (l *Ledger) ItemByBarcode(ctx context.Context, barcode string) (model.Item, error) {
	return store.Items.First(ctx, l.store.Reader(), "WHERE barcode = ? AND isDeleted = 0", barcode)
}

// ItemByName returns the active item whose name matches name under Unicode
// case folding, ignoring surrounding space.
func (l *Ledger) ItemByName(ctx context.Context, name string) (model.Item, error) {
	items, err := l.ActiveItems(ctx)
	if err != nil {
		return model.Item{}, err
	}
	fold := cases.Fold()
	want := fold.String(strings.TrimSpace(name))
	for _, it := range items {
		if fold.String(it.Name) == want {
			return it, nil
		}
	}
	return model.Item{}, store.NotFound("items.by_name", schema.Items, 0)
}

// LowStockItems returns active items at or below their reorder point, lowest
// stock first.
func (l *Ledger) LowStockItems(ctx context.Context) ([]model.Item, error) {
	return store.Items.Select(ctx, l.store.Reader(),
		"WHERE isDeleted = 0 AND stock <= reorderPoint ORDER BY stock ASC, name ASC")
}

// ExpiringItems returns active items whose expiry falls before now+within,
// already-expired ones included, soonest first.
func (l *Ledger) ExpiringItems(ctx context.Context, within time.Duration) ([]model.Item, error) {
	cutoff := l.now().Add(within).UnixMilli()
	return store.Items.Select(ctx, l.store.Reader(),
		"WHERE isDeleted = 0 AND expiryDateMillis IS NOT NULL AND expiryDateMillis <= ? ORDER BY expiryDateMillis ASC", cutoff)
}

// Party returns the party by id.
func (l *Ledger) Party(ctx context.Context, id int64) (model.Party, error) {
	return store.Parties.Get(ctx, l.store.Reader(), id)
}

// Parties returns every party by name.
func (l *Ledger) Parties(ctx context.Context) ([]model.Party, error) {
	return store.Parties.Select(ctx, l.store.Reader(), "ORDER BY name ASC, id ASC")
}

// PartiesByType returns the customers or the vendors by name.
func (l *Ledger) PartiesByType(ctx context.Context, typ model.PartyType) ([]model.Party, error) {
	return partiesByType(ctx, l.store.Reader(), typ)
}

func partiesByType(ctx context.Context, rd store.Reader, typ model.PartyType) ([]model.Party, error) {
	return store.Parties.Select(ctx, rd, "WHERE type = ? ORDER BY name ASC, id ASC", typ)
}

// PartyByPhone returns the newest party of the type with the phone number.
func (l *Ledger) PartyByPhone(ctx context.Context, typ model.PartyType, phone string) (model.Party, error) {
	return store.Parties.First(ctx, l.store.Reader(),
		"WHERE type = ? AND phone = ? ORDER BY id DESC", typ, strings.TrimSpace(phone))
}

// Transaction returns the transaction by id.
func (l *Ledger) Transaction(ctx context.Context, id int64) (model.Transaction, error) {
	return store.Transactions.Get(ctx, l.store.Reader(), id)
}

// Transactions returns every transaction, newest first.
func (l *Ledger) Transactions(ctx context.Context) ([]model.Transaction, error) {
	return transactions(ctx, l.store.Reader())
}

func transactions(ctx context.Context, rd store.Reader) ([]model.Transaction, error) {
	return store.Transactions.Select(ctx, rd, "ORDER BY date DESC, id DESC")
}

// TransactionsForParty returns the transactions naming the party as customer
// or vendor, newest first.
func (l *Ledger) TransactionsForParty(ctx context.Context, partyID int64) ([]model.Transaction, error) {
	return store.Transactions.Select(ctx, l.store.Reader(),
		"WHERE customerId = ? OR vendorId = ? ORDER BY date DESC, id DESC", partyID, partyID)
}

// TransactionItems returns the lines of a transaction in insertion order.
func (l *Ledger) TransactionItems(ctx context.Context, txID int64) ([]model.TransactionItem, error) {
	return transactionItems(ctx, l.store.Reader(), txID)
}

func transactionItems(ctx context.Context, rd store.Reader, txID int64) ([]model.TransactionItem, error) {
	return store.TransactionItems.Select(ctx, rd, "WHERE transactionId = ? ORDER BY id ASC", txID)
}

// TransactionWithItems returns a transaction and its lines read from a single
// snapshot.
func (l *Ledger) TransactionWithItems(ctx context.Context, txID int64) (model.TransactionWithItems, error) {
	var out model.TransactionWithItems
	err := l.store.View(ctx, func(rd store.Reader) error {
		t, err := store.Transactions.Get(ctx, rd, txID)
		if err != nil {
			return err
		}
		items, err := transactionItems(ctx, rd, txID)
		if err != nil {
			return err
		}
		out = model.TransactionWithItems{Transaction: t, Items: items}
		return nil
	})
	return out, err
}

// ActiveReminders returns reminders not yet done, soonest due first.
func (l *Ledger) ActiveReminders(ctx context.Context) ([]model.Reminder, error) {
	return activeReminders(ctx, l.store.Reader())
}

func activeReminders(ctx context.Context, rd store.Reader) ([]model.Reminder, error) {
	return store.Reminders.Select(ctx, rd, "WHERE isDone = 0 ORDER BY dueAt ASC, id ASC")
}

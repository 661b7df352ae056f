package ledger

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/roach88/kirana/internal/model"
	"github.com/roach88/kirana/internal/schema"
	"github.com/roach88/kirana/internal/store"
)

// Writer is the write side of one atomic unit. It is only valid inside the
// function passed to Ledger.Atomic.
type Writer struct {
	tx *store.Tx
	l  *Ledger
	at time.Time
}

// Tx returns the store unit, for writes the ledger has no helper for.
func (w *Writer) Tx() *store.Tx { return w.tx }

// Reader returns a reader that observes the unit's own writes.
func (w *Writer) Reader() store.Reader { return w.tx.Reader() }

// Now returns the wall-clock time the unit started at.
func (w *Writer) Now() time.Time { return w.at }

// AdjustStock adds delta to the item's stock. Negative results are allowed.
func (w *Writer) AdjustStock(ctx context.Context, itemID, delta int64) error {
	return w.execByID(ctx, schema.AdjustStock, schema.Items, itemID, delta, itemID)
}

// AdjustBalance adds delta to the party's balance.
func (w *Writer) AdjustBalance(ctx context.Context, partyID int64, delta float64) error {
	return w.execByID(ctx, schema.AdjustBalance, schema.Parties, partyID, delta, partyID)
}

// SoftDelete flags the item deleted. It stays readable by id.
func (w *Writer) SoftDelete(ctx context.Context, itemID int64) error {
	return w.execByID(ctx, schema.SoftDeleteItem, schema.Items, itemID, itemID)
}

// execByID runs a single-row statement and reports NOT_FOUND when no row
// matched.
func (w *Writer) execByID(ctx context.Context, key string, table schema.TableID, id int64, args ...any) error {
	n, err := w.tx.Exec(ctx, key, args...)
	if err != nil {
		return err
	}
	if n == 0 {
		return store.NotFound(key, table, id)
	}
	return nil
}

// RecordSale inserts t and its lines and returns the transaction id with a
// copy of lines carrying their new ids. lines itself is not modified. With
// decrementStock, every line that references an item also lowers that item's
// stock by its quantity.
func (w *Writer) RecordSale(ctx context.Context, t model.Transaction, lines []model.TransactionItem, decrementStock bool) (int64, []model.TransactionItem, error) {
	txID, err := store.Transactions.Insert(ctx, w.tx, t)
	if err != nil {
		return 0, nil, err
	}
	written := make([]model.TransactionItem, len(lines))
	for i, line := range lines {
		line.TransactionID = txID
		id, err := store.TransactionItems.Insert(ctx, w.tx, line)
		if err != nil {
			return 0, nil, fmt.Errorf("line %d: %w", i, err)
		}
		line.ID = id
		written[i] = line

		if decrementStock && line.ItemID != nil {
			if err := w.AdjustStock(ctx, *line.ItemID, -line.Qty); err != nil {
				return 0, nil, fmt.Errorf("line %d: %w", i, err)
			}
		}
	}
	return txID, written, nil
}

// Enqueue appends an outbox entry for a change made in this unit. payload is
// encoded as JSON; a nil payload stores NULL.
func (w *Writer) Enqueue(ctx context.Context, entityType string, entityID *int64, op string, payload any) error {
	e := model.OutboxEntry{
		OpID:            w.l.opIDs.Generate(),
		EntityType:      entityType,
		Op:              op,
		CreatedAtMillis: w.at.UnixMilli(),
		Status:          model.OutboxPending,
	}
	if entityID != nil {
		s := strconv.FormatInt(*entityID, 10)
		e.EntityID = &s
	}
	if payload != nil {
		b, err := json.Marshal(payload)
		if err != nil {
			return fmt.Errorf("encode %s %s payload: %w", entityType, op, err)
		}
		s := string(b)
		e.PayloadJSON = &s
	}
	if _, err := store.Outbox.Insert(ctx, w.tx, e); err != nil {
		return fmt.Errorf("enqueue %s %s: %w", entityType, op, err)
	}
	return nil
}

func ptr[T any](v T) *T { return &v }

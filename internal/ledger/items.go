package ledger

import (
	"context"
	"strings"

	"github.com/roach88/kirana/internal/model"
	"github.com/roach88/kirana/internal/schema"
	"github.com/roach88/kirana/internal/store"
)

// stockDelta is the outbox payload of a stock adjustment.
type stockDelta struct {
	ID    int64 `json:"id"`
	Delta int64 `json:"stockDelta"`
}

// AddItem inserts item and returns its id. A blank name is rejected.
func (l *Ledger) AddItem(ctx context.Context, item model.Item) (int64, error) {
	item.Name = strings.TrimSpace(item.Name)
	if item.Name == "" {
		return 0, store.NewConstraintError("add item", schema.Items, "item name is blank")
	}
	var id int64
	err := l.atomic(ctx, "add item", func(w *Writer) error {
		var err error
		if id, err = store.Items.Insert(ctx, w.Tx(), item); err != nil {
			return err
		}
		item.ID = id
		return w.Enqueue(ctx, model.EntityItem, &id, model.OpUpsert, item)
	})
	return id, err
}

// UpdateItem overwrites the item's descriptive fields by id. Stock and the
// deleted flag are left alone; they change only through AdjustStock and
// SoftDelete. Lines referencing the item are not disturbed.
func (l *Ledger) UpdateItem(ctx context.Context, item model.Item) error {
	return l.atomic(ctx, "update item", func(w *Writer) error {
		if err := store.Items.Update(ctx, w.Tx(), item); err != nil {
			return err
		}
		return w.Enqueue(ctx, model.EntityItem, &item.ID, model.OpUpsert, item)
	})
}

// AdjustStock adds delta, which may be negative, to the item's stock.
// Concurrent adjustments all apply; the result is their sum.
func (l *Ledger) AdjustStock(ctx context.Context, itemID, delta int64) error {
	return l.atomic(ctx, "adjust stock", func(w *Writer) error {
		if err := w.AdjustStock(ctx, itemID, delta); err != nil {
			return err
		}
		return w.Enqueue(ctx, model.EntityItem, &itemID, model.OpUpsert, stockDelta{ID: itemID, Delta: delta})
	})
}

// SoftDelete hides the item from default listings. Its row, and every line
// referencing it, is kept.
func (l *Ledger) SoftDelete(ctx context.Context, itemID int64) error {
	return l.atomic(ctx, "soft delete item", func(w *Writer) error {
		if err := w.SoftDelete(ctx, itemID); err != nil {
			return err
		}
		return w.Enqueue(ctx, model.EntityItem, &itemID, model.OpDelete, idPayload{ID: itemID})
	})
}

// BulkSoftDelete soft-deletes every item in ids. Unknown ids are ignored.
func (l *Ledger) BulkSoftDelete(ctx context.Context, ids []int64) error {
	ids = distinct(ids)
	if len(ids) == 0 {
		return nil
	}
	return l.atomic(ctx, "bulk soft delete items", func(w *Writer) error {
		for _, id := range ids {
			err := w.SoftDelete(ctx, id)
			if store.IsNotFound(err) {
				continue
			}
			if err != nil {
				return err
			}
			if err := w.Enqueue(ctx, model.EntityItem, &id, model.OpDelete, idPayload{ID: id}); err != nil {
				return err
			}
		}
		return nil
	})
}

// DeleteItems hard-deletes the items in ids. Lines that referenced them keep
// their name snapshot and lose the item reference. Unknown ids are ignored.
func (l *Ledger) DeleteItems(ctx context.Context, ids []int64) error {
	return l.deleteAll(ctx, "delete items", store.Items, model.EntityItem, ids)
}

// idPayload is the outbox payload of deletes and flag changes.
type idPayload struct {
	ID int64 `json:"id"`
}

// deleteAll hard-deletes ids from repo in one unit and enqueues a DELETE per
// removed row.
func (l *Ledger) deleteAll(ctx context.Context, op string, repo interface {
	Delete(context.Context, *store.Tx, int64) (bool, error)
}, entity string, ids []int64) error {
	ids = distinct(ids)
	if len(ids) == 0 {
		return nil
	}
	return l.atomic(ctx, op, func(w *Writer) error {
		for _, id := range ids {
			ok, err := repo.Delete(ctx, w.Tx(), id)
			if err != nil {
				return err
			}
			if !ok {
				continue
			}
			if err := w.Enqueue(ctx, entity, &id, model.OpDelete, idPayload{ID: id}); err != nil {
				return err
			}
		}
		return nil
	})
}

// distinct drops repeated ids, keeping first occurrences in order.
func distinct(ids []int64) []int64 {
	seen := make(map[int64]bool, len(ids))
	out := make([]int64, 0, len(ids))
	for _, id := range ids {
		if !seen[id] {
			seen[id] = true
			out = append(out, id)
		}
	}
	return out
}

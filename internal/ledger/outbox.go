package ledger

import (
	"context"

	"github.com/roach88/kirana/internal/model"
	"github.com/roach88/kirana/internal/schema"
	"github.com/roach88/kirana/internal/store"
)

// DefaultOutboxBatch is the PendingOutbox limit used when none is given.
const DefaultOutboxBatch = 100

// PendingOutbox returns up to limit entries not yet synced, failed ones
// included, oldest first.
func (l *Ledger) PendingOutbox(ctx context.Context, limit int) ([]model.OutboxEntry, error) {
	if limit <= 0 {
		limit = DefaultOutboxBatch
	}
	return store.Outbox.Select(ctx, l.store.Reader(),
		"WHERE status != ? ORDER BY createdAtMillis ASC, id ASC LIMIT ?", model.OutboxDone, limit)
}

// RecentOutbox returns the newest limit entries in any status.
func (l *Ledger) RecentOutbox(ctx context.Context, limit int) ([]model.OutboxEntry, error) {
	if limit <= 0 {
		limit = DefaultOutboxBatch
	}
	return store.Outbox.Select(ctx, l.store.Reader(), "ORDER BY createdAtMillis DESC, id DESC LIMIT ?", limit)
}

// OutboxPendingCount returns the number of entries not yet synced.
func (l *Ledger) OutboxPendingCount(ctx context.Context) (int64, error) {
	return store.Outbox.Count(ctx, l.store.Reader(), "WHERE status != ?", model.OutboxDone)
}

// MarkOutboxDone records a successful sync of the entry.
func (l *Ledger) MarkOutboxDone(ctx context.Context, id int64) error {
	return l.atomic(ctx, "mark outbox done", func(w *Writer) error {
		return w.execByID(ctx, schema.MarkOutboxDone, schema.Outbox, id, w.Now().UnixMilli(), id)
	})
}

// MarkOutboxFailed records a failed sync attempt with its error message.
func (l *Ledger) MarkOutboxFailed(ctx context.Context, id int64, msg string) error {
	return l.atomic(ctx, "mark outbox failed", func(w *Writer) error {
		return w.execByID(ctx, schema.MarkOutboxFailed, schema.Outbox, id, w.Now().UnixMilli(), msg, id)
	})
}

// RetryFailedOutbox moves every failed entry back to pending and returns how
// many were reset.
func (l *Ledger) RetryFailedOutbox(ctx context.Context) (int64, error) {
	return l.execAll(ctx, "retry failed outbox", schema.ResetFailedOutbox)
}

// ClearDoneOutbox deletes synced entries and returns how many were removed.
func (l *Ledger) ClearDoneOutbox(ctx context.Context) (int64, error) {
	return l.execAll(ctx, "clear done outbox", schema.ClearDoneOutbox)
}

func (l *Ledger) execAll(ctx context.Context, op, key string) (int64, error) {
	var n int64
	err := l.atomic(ctx, op, func(w *Writer) error {
		var err error
		n, err = w.Tx().Exec(ctx, key)
		return err
	})
	return n, err
}

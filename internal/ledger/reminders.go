package ledger

import (
	"context"
	"strings"

	"github.com/roach88/kirana/internal/model"
	"github.com/roach88/kirana/internal/schema"
	"github.com/roach88/kirana/internal/store"
)

type reminderPayload struct {
	Type  string  `json:"type"`
	RefID *int64  `json:"refId"`
	Title string  `json:"title"`
	DueAt int64   `json:"dueAt"`
	Note  *string `json:"note"`
}

// AddReminder inserts a reminder and returns its id. The title is trimmed and
// must not be blank; a blank note is stored as NULL. RefID is not checked
// against any table.
func (l *Ledger) AddReminder(ctx context.Context, r model.Reminder) (int64, error) {
	r.Title = strings.TrimSpace(r.Title)
	if r.Title == "" {
		return 0, store.NewConstraintError("add reminder", schema.Reminders, "reminder title is blank")
	}
	if r.Note != nil {
		r.Note = blankToNil(*r.Note)
	}
	if r.Type == "" {
		r.Type = model.ReminderGeneral
	}
	r.IsDone = false

	var id int64
	err := l.atomic(ctx, "add reminder", func(w *Writer) error {
		var err error
		if id, err = store.Reminders.Insert(ctx, w.Tx(), r); err != nil {
			return err
		}
		return w.Enqueue(ctx, model.EntityReminder, nil, model.OpUpsert,
			reminderPayload{Type: r.Type, RefID: r.RefID, Title: r.Title, DueAt: r.DueAt, Note: r.Note})
	})
	return id, err
}

// MarkReminderDone flags the reminder done, removing it from ActiveReminders.
func (l *Ledger) MarkReminderDone(ctx context.Context, id int64) error {
	return l.atomic(ctx, "mark reminder done", func(w *Writer) error {
		if err := w.execByID(ctx, schema.MarkReminderDone, schema.Reminders, id, id); err != nil {
			return err
		}
		return w.Enqueue(ctx, model.EntityReminder, &id, model.OpMarkDone, idPayload{ID: id})
	})
}

// DeleteReminder removes the reminder. Deleting a missing reminder is a no-op.
func (l *Ledger) DeleteReminder(ctx context.Context, id int64) error {
	return l.deleteAll(ctx, "delete reminder", store.Reminders, model.EntityReminder, []int64{id})
}

package schema

import (
	"fmt"
	"strings"
)

// Kind classifies a write statement.
type Kind int

const (
	Insert Kind = iota
	Update
	Delete
)

func (k Kind) String() string {
	switch k {
	case Insert:
		return "insert"
	case Update:
		return "update"
	case Delete:
		return "delete"
	default:
		return fmt.Sprintf("Kind(%d)", int(k))
	}
}

// Statement is one write shape of the ledger. Named statements bind struct
// fields by their db tag (":name"); the rest take positional arguments.
type Statement struct {
	Key   string
	Table TableID
	Kind  Kind
	SQL   string
	Named bool
}

// Keys of the statements that are not plain insert/update/delete by id.
const (
	AdjustStock       = "items.adjust_stock"
	SoftDeleteItem    = "items.soft_delete"
	AdjustBalance     = "parties.adjust_balance"
	MarkReminderDone  = "reminders.mark_done"
	MarkOutboxDone    = "outbox.mark_done"
	MarkOutboxFailed  = "outbox.mark_failed"
	ResetFailedOutbox = "outbox.reset_failed"
	ClearDoneOutbox   = "outbox.clear_done"
)

// Key builds a statement key of the form "<table>.<verb>".
func Key(table TableID, verb string) string {
	return string(table) + "." + verb
}

// Columns that only change through dedicated delta or flag statements, so a
// whole-row update must never overwrite them.
var updateExcluded = map[TableID][]string{
	Items:   {"stock", "isDeleted"},
	Parties: {"balance"},
}

// Tables with a whole-row update. Transactions and their lines are
// append-only; outbox rows move through status statements.
var updatable = []TableID{Items, Parties, Reminders}

// InsertSQL renders a named insert over all non-key columns of id.
func (r *Registry) InsertSQL(id TableID) string {
	t := r.mustTable(id)
	cols := t.ColumnNames()
	params := make([]string, len(cols))
	for i, c := range cols {
		params[i] = ":" + c
	}
	return fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)",
		id, strings.Join(cols, ", "), strings.Join(params, ", "))
}

// UpdateSQL renders a named by-id update of id's mutable columns.
func (r *Registry) UpdateSQL(id TableID) string {
	t := r.mustTable(id)
	skip := map[string]bool{}
	for _, c := range updateExcluded[id] {
		skip[c] = true
	}
	var sets []string
	for _, c := range t.ColumnNames() {
		if skip[c] {
			continue
		}
		sets = append(sets, c+" = :"+c)
	}
	return fmt.Sprintf("UPDATE %s SET %s WHERE %s = :%s",
		id, strings.Join(sets, ", "), t.PrimaryKey, t.PrimaryKey)
}

// DeleteSQL renders a positional by-id delete.
func (r *Registry) DeleteSQL(id TableID) string {
	t := r.mustTable(id)
	return fmt.Sprintf("DELETE FROM %s WHERE %s = ?", id, t.PrimaryKey)
}

// Statements enumerates every write statement the ledger issues.
func (r *Registry) Statements() []Statement {
	var out []Statement
	for _, t := range r.Tables() {
		out = append(out,
			Statement{Key: Key(t.ID, "insert"), Table: t.ID, Kind: Insert, SQL: r.InsertSQL(t.ID), Named: true},
			Statement{Key: Key(t.ID, "delete"), Table: t.ID, Kind: Delete, SQL: r.DeleteSQL(t.ID)},
		)
	}
	for _, id := range updatable {
		out = append(out, Statement{Key: Key(id, "update"), Table: id, Kind: Update, SQL: r.UpdateSQL(id), Named: true})
	}
	return append(out,
		Statement{Key: AdjustStock, Table: Items, Kind: Update,
			SQL: "UPDATE items SET stock = stock + ? WHERE id = ?"},
		Statement{Key: SoftDeleteItem, Table: Items, Kind: Update,
			SQL: "UPDATE items SET isDeleted = 1 WHERE id = ?"},
		Statement{Key: AdjustBalance, Table: Parties, Kind: Update,
			SQL: "UPDATE parties SET balance = balance + ? WHERE id = ?"},
		Statement{Key: MarkReminderDone, Table: Reminders, Kind: Update,
			SQL: "UPDATE reminders SET isDone = 1 WHERE id = ?"},
		Statement{Key: MarkOutboxDone, Table: Outbox, Kind: Update,
			SQL: "UPDATE outbox SET status = 'DONE', lastAttemptAtMillis = ?, error = NULL WHERE id = ?"},
		Statement{Key: MarkOutboxFailed, Table: Outbox, Kind: Update,
			SQL: "UPDATE outbox SET status = 'FAILED', lastAttemptAtMillis = ?, error = ? WHERE id = ?"},
		Statement{Key: ResetFailedOutbox, Table: Outbox, Kind: Update,
			SQL: "UPDATE outbox SET status = 'PENDING', lastAttemptAtMillis = NULL, error = NULL WHERE status = 'FAILED'"},
		Statement{Key: ClearDoneOutbox, Table: Outbox, Kind: Delete,
			SQL: "DELETE FROM outbox WHERE status = 'DONE'"},
	)
}

func (r *Registry) mustTable(id TableID) Table {
	t, ok := r.tables[id]
	if !ok {
		panic(fmt.Sprintf("schema: unknown table %q", id))
	}
	return t
}

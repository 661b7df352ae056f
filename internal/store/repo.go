package store

import (
	"context"
	"fmt"
	"strings"

	"github.com/jmoiron/sqlx"

	"github.com/roach88/kirana/internal/model"
	"github.com/roach88/kirana/internal/schema"
)

// Reader runs queries. The read pool, a View snapshot and an open Tx all
// satisfy it.
type Reader = sqlx.QueryerContext

// Repo is a typed, stateless accessor for one table. Rows scan into T by db
// tag; writes go through the store's prepared statements and so must run
// inside an atomic unit.
type Repo[T any] struct {
	table schema.TableID
	idOf  func(T) int64
}

// Typed repositories for the ledger tables.
var (
	Items            = Repo[model.Item]{table: schema.Items, idOf: func(v model.Item) int64 { return v.ID }}
	Parties          = Repo[model.Party]{table: schema.Parties, idOf: func(v model.Party) int64 { return v.ID }}
	Transactions     = Repo[model.Transaction]{table: schema.Transactions, idOf: func(v model.Transaction) int64 { return v.ID }}
	TransactionItems = Repo[model.TransactionItem]{table: schema.TransactionItems, idOf: func(v model.TransactionItem) int64 { return v.ID }}
	Reminders        = Repo[model.Reminder]{table: schema.Reminders, idOf: func(v model.Reminder) int64 { return v.ID }}
	Outbox           = Repo[model.OutboxEntry]{table: schema.Outbox, idOf: func(v model.OutboxEntry) int64 { return v.ID }}
)

// Table returns the table the repository reads and writes.
func (r Repo[T]) Table() schema.TableID {
	return r.table
}

// Insert writes v and returns the store-assigned id. v's own ID is ignored.
func (r Repo[T]) Insert(ctx context.Context, tx *Tx, v T) (int64, error) {
	return tx.Insert(ctx, schema.Key(r.table, "insert"), v)
}

// Update overwrites the mutable columns of the row with v's id. It returns a
// NOT_FOUND error when no such row exists.
func (r Repo[T]) Update(ctx context.Context, tx *Tx, v T) error {
	key := schema.Key(r.table, "update")
	n, err := tx.ExecNamed(ctx, key, v)
	if err != nil {
		return err
	}
	if n == 0 {
		return NotFound(key, r.table, r.idOf(v))
	}
	return nil
}

// Delete hard-deletes the row with id and reports whether it existed.
// Foreign key actions on dependent rows run as part of the same statement.
func (r Repo[T]) Delete(ctx context.Context, tx *Tx, id int64) (bool, error) {
	n, err := tx.Exec(ctx, schema.Key(r.table, "delete"), id)
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// Get reads one row by id.
func (r Repo[T]) Get(ctx context.Context, rd Reader, id int64) (T, error) {
	var v T
	query := fmt.Sprintf("SELECT %s FROM %s WHERE id = ?", r.columns(), r.table)
	err := sqlx.GetContext(ctx, rd, &v, query, id)
	if err == nil {
		return v, nil
	}
	op := string(r.table) + ".get"
	if err = classify(op, r.table, err); IsNotFound(err) {
		return v, NotFound(op, r.table, id)
	}
	return v, err
}

// Select reads the rows matching clause, which is appended after the FROM
// (for example "WHERE isDeleted = 0 ORDER BY name"). The result is never nil.
func (r Repo[T]) Select(ctx context.Context, rd Reader, clause string, args ...any) ([]T, error) {
	query := fmt.Sprintf("SELECT %s FROM %s %s", r.columns(), r.table, clause)
	out := []T{}
	if err := sqlx.SelectContext(ctx, rd, &out, query, args...); err != nil {
		return nil, classify(string(r.table)+".select", r.table, err)
	}
	return out, nil
}

// First reads the first row matching clause. It returns a NOT_FOUND error
// when nothing matches.
func (r Repo[T]) First(ctx context.Context, rd Reader, clause string, args ...any) (T, error) {
	var v T
	query := fmt.Sprintf("SELECT %s FROM %s %s LIMIT 1", r.columns(), r.table, clause)
	if err := sqlx.GetContext(ctx, rd, &v, query, args...); err != nil {
		return v, classify(string(r.table)+".first", r.table, err)
	}
	return v, nil
}

// Count returns the number of rows matching clause.
func (r Repo[T]) Count(ctx context.Context, rd Reader, clause string, args ...any) (int64, error) {
	var n int64
	query := fmt.Sprintf("SELECT COUNT(*) FROM %s %s", r.table, clause)
	if err := sqlx.GetContext(ctx, rd, &n, query, args...); err != nil {
		return 0, classify(string(r.table)+".count", r.table, err)
	}
	return n, nil
}

func (r Repo[T]) columns() string {
	t, _ := schema.Default.Table(r.table)
	return strings.Join(append([]string{t.PrimaryKey}, t.ColumnNames()...), ", ")
}

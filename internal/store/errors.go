package store

import (
	"database/sql"
	"errors"
	"fmt"

	"github.com/mattn/go-sqlite3"

	"github.com/roach88/kirana/internal/schema"
)

// ErrorCode categorizes store errors.
type ErrorCode string

const (
	// CodeConstraint indicates a write violated a NOT NULL, UNIQUE or foreign
	// key constraint, or a precondition the ledger checks itself.
	CodeConstraint ErrorCode = "CONSTRAINT_VIOLATION"

	// CodeNotFound indicates a by-id operation matched no row.
	CodeNotFound ErrorCode = "NOT_FOUND"

	// CodeConflict indicates the database stayed locked after all retries.
	CodeConflict ErrorCode = "CONCURRENT_WRITE_CONFLICT"

	// CodeUnavailable indicates the database file cannot be opened, read or
	// written.
	CodeUnavailable ErrorCode = "STORE_UNAVAILABLE"
)

// Error is a classified store failure.
//
// Callers match on Code through the Is* helpers; the underlying driver error
// stays reachable through Unwrap.
type Error struct {
	// Code identifies the error category.
	Code ErrorCode

	// Op names the operation that failed ("items.adjust_stock", "commit").
	Op string

	// Table is the table involved, when known.
	Table schema.TableID

	// ID is the row id involved, when known.
	ID int64

	// Err is the underlying cause.
	Err error
}

// Error implements the error interface.
func (e *Error) Error() string {
	msg := fmt.Sprintf("%s: %s", e.Code, e.Op)
	if e.Table != "" && e.ID != 0 {
		msg += fmt.Sprintf(" (%s id=%d)", e.Table, e.ID)
	} else if e.Table != "" {
		msg += fmt.Sprintf(" (%s)", e.Table)
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *Error) Unwrap() error {
	return e.Err
}

func hasCode(err error, code ErrorCode) bool {
	var se *Error
	if errors.As(err, &se) {
		return se.Code == code
	}
	return false
}

// IsConstraint reports whether err is a constraint violation.
func IsConstraint(err error) bool { return hasCode(err, CodeConstraint) }

// IsNotFound reports whether err is a missing-row error.
func IsNotFound(err error) bool { return hasCode(err, CodeNotFound) }

// IsConflict reports whether err is a write conflict that outlived retries.
func IsConflict(err error) bool { return hasCode(err, CodeConflict) }

// IsUnavailable reports whether err means the store cannot be used.
func IsUnavailable(err error) bool { return hasCode(err, CodeUnavailable) }

// NotFound builds a NOT_FOUND error for a by-id operation.
func NotFound(op string, table schema.TableID, id int64) *Error {
	return &Error{Code: CodeNotFound, Op: op, Table: table, ID: id, Err: sql.ErrNoRows}
}

// NewConstraintError builds a CONSTRAINT_VIOLATION for a rule the ledger
// enforces before touching the database.
func NewConstraintError(op string, table schema.TableID, msg string) *Error {
	return &Error{Code: CodeConstraint, Op: op, Table: table, Err: errors.New(msg)}
}

// classify maps a driver error onto the taxonomy. Errors that are already
// classified, context errors and unknown errors pass through unchanged.
func classify(op string, table schema.TableID, err error) error {
	if err == nil {
		return nil
	}
	var se *Error
	if errors.As(err, &se) {
		return err
	}
	if errors.Is(err, sql.ErrNoRows) {
		return &Error{Code: CodeNotFound, Op: op, Table: table, Err: err}
	}
	var sqErr sqlite3.Error
	if !errors.As(err, &sqErr) {
		return err
	}
	switch sqErr.Code {
	case sqlite3.ErrConstraint:
		return &Error{Code: CodeConstraint, Op: op, Table: table, Err: err}
	case sqlite3.ErrBusy, sqlite3.ErrLocked:
		return &Error{Code: CodeConflict, Op: op, Table: table, Err: err}
	case sqlite3.ErrIoErr, sqlite3.ErrCantOpen, sqlite3.ErrFull, sqlite3.ErrCorrupt,
		sqlite3.ErrNotADB, sqlite3.ErrReadonly, sqlite3.ErrPerm:
		return &Error{Code: CodeUnavailable, Op: op, Table: table, Err: err}
	default:
		return err
	}
}

package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/roach88/kirana/internal/schema"
)

// CommitObserver receives the set of tables changed by each committed atomic
// unit. Notify is called synchronously, in commit order, while the write lock
// is still held; implementations must not block or write to the store.
type CommitObserver interface {
	Notify(touched schema.TableSet)
}

// Tx is an open atomic unit. It is only valid inside the function passed to
// RunAtomic.
type Tx struct {
	tx       *sqlx.Tx
	store    *Store
	declared schema.TableSet
}

// Reader returns a reader bound to the unit, so reads observe its own
// uncommitted writes.
func (t *Tx) Reader() Reader {
	return t.tx
}

// Exec runs the positional statement key and returns the number of rows it
// affected.
func (t *Tx) Exec(ctx context.Context, key string, args ...any) (int64, error) {
	p, err := t.store.stmts.get(key)
	if err != nil {
		return 0, err
	}
	if p.pos == nil {
		return 0, fmt.Errorf("statement %q takes named arguments", key)
	}
	res, err := t.tx.StmtxContext(ctx, p.pos).ExecContext(ctx, args...)
	if err != nil {
		return 0, classify(key, p.Table, err)
	}
	return t.affected(p, res.RowsAffected)
}

// ExecNamed runs the named statement key, binding fields of arg by db tag.
func (t *Tx) ExecNamed(ctx context.Context, key string, arg any) (int64, error) {
	p, err := t.store.stmts.get(key)
	if err != nil {
		return 0, err
	}
	if p.named == nil {
		return 0, fmt.Errorf("statement %q takes positional arguments", key)
	}
	res, err := t.tx.NamedStmtContext(ctx, p.named).ExecContext(ctx, arg)
	if err != nil {
		return 0, classify(key, p.Table, err)
	}
	return t.affected(p, res.RowsAffected)
}

// Insert runs the named insert key and returns the new row id.
func (t *Tx) Insert(ctx context.Context, key string, arg any) (int64, error) {
	p, err := t.store.stmts.get(key)
	if err != nil {
		return 0, err
	}
	if p.named == nil || p.Kind != schema.Insert {
		return 0, fmt.Errorf("statement %q is not a named insert", key)
	}
	res, err := t.tx.NamedStmtContext(ctx, p.named).ExecContext(ctx, arg)
	if err != nil {
		return 0, classify(key, p.Table, err)
	}
	t.declared.Add(p.Table)
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("%s: last insert id: %w", key, err)
	}
	return id, nil
}

// affected records the statement's table when rows changed. Cascade and
// set-null side effects arrive through the update hook.
func (t *Tx) affected(p *preparedStmt, rowsAffected func() (int64, error)) (int64, error) {
	n, err := rowsAffected()
	if err != nil {
		return 0, fmt.Errorf("%s: rows affected: %w", p.Key, err)
	}
	if n > 0 {
		t.declared.Add(p.Table)
	}
	return n, nil
}

const maxRetryDelay = 500 * time.Millisecond

// RunAtomic runs fn as one atomic unit: every write fn makes commits
// together, or none do.
//
// If fn returns an error or panics the unit is rolled back and nothing is
// reported to observers; a panic is re-raised after rollback. On commit the
// set of touched tables is returned and passed to every CommitObserver.
//
// Busy and locked errors are retried with exponential backoff, so fn may run
// more than once and must not have effects outside the unit. A conflict
// error is returned once retries are exhausted.
func (s *Store) RunAtomic(ctx context.Context, fn func(*Tx) error) (schema.TableSet, error) {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	var err error
	for attempt := 0; ; attempt++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		var touched schema.TableSet
		touched, err = s.runOnce(ctx, fn)
		if err == nil {
			s.notify(touched)
			return touched, nil
		}
		if !IsConflict(err) || attempt >= s.writeRetries {
			break
		}
		delay := min(s.retryBackoff<<attempt, maxRetryDelay)
		s.logger.Debug("atomic unit busy, retrying",
			"attempt", attempt+1,
			"delay", delay,
			"error", err,
		)
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(delay):
		}
	}
	return nil, err
}

func (s *Store) runOnce(ctx context.Context, fn func(*Tx) error) (_ schema.TableSet, err error) {
	s.rec.begin()
	defer s.rec.end()

	sqlTx, err := s.writer.BeginTxx(ctx, nil)
	if err != nil {
		return nil, classify("begin", "", err)
	}
	t := &Tx{tx: sqlTx, store: s, declared: schema.NewTableSet()}

	committed := false
	defer func() {
		if committed {
			return
		}
		if rbErr := sqlTx.Rollback(); rbErr != nil && !errors.Is(rbErr, sql.ErrTxDone) {
			s.logger.Warn("rollback failed", "error", rbErr, "cause", err)
		}
	}()

	if err := fn(t); err != nil {
		return nil, err
	}

	// Collect before commit: the hook has seen every change by now.
	hooked := s.rec.end()
	if err := sqlTx.Commit(); err != nil {
		return nil, classify("commit", "", err)
	}
	committed = true
	return t.declared.Union(hooked), nil
}

func (s *Store) notify(touched schema.TableSet) {
	s.obsMu.RLock()
	observers := append([]CommitObserver(nil), s.observers...)
	s.obsMu.RUnlock()

	for _, o := range observers {
		s.notifyOne(o, touched.Clone())
	}
}

func (s *Store) notifyOne(o CommitObserver, touched schema.TableSet) {
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("commit observer panicked",
				"panic", r,
				"touched", touched.String(),
			)
		}
	}()
	o.Notify(touched)
}

package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/roach88/kirana/internal/schema"
)

// preparedStmt is a statement prepared on the writer pool. Exactly one of
// pos and named is set.
type preparedStmt struct {
	schema.Statement
	pos   *sqlx.Stmt
	named *sqlx.NamedStmt
}

// stmtCache holds every write statement, prepared once at open.
//
// Statements are prepared eagerly: the writer pool has a single connection,
// and that connection is held by the open transaction whenever a statement is
// needed, so preparing on demand through the pool would block forever.
type stmtCache struct {
	byKey map[string]*preparedStmt
}

func prepareStatements(ctx context.Context, db *sqlx.DB, stmts []schema.Statement) (*stmtCache, error) {
	c := &stmtCache{byKey: make(map[string]*preparedStmt, len(stmts))}
	for _, st := range stmts {
		if _, dup := c.byKey[st.Key]; dup {
			c.close()
			return nil, fmt.Errorf("duplicate statement key %q", st.Key)
		}
		p := &preparedStmt{Statement: st}
		var err error
		if st.Named {
			p.named, err = db.PrepareNamedContext(ctx, st.SQL)
		} else {
			p.pos, err = db.PreparexContext(ctx, st.SQL)
		}
		if err != nil {
			c.close()
			return nil, fmt.Errorf("prepare %s: %w", st.Key, err)
		}
		c.byKey[st.Key] = p
	}
	return c, nil
}

func (c *stmtCache) get(key string) (*preparedStmt, error) {
	p, ok := c.byKey[key]
	if !ok {
		return nil, fmt.Errorf("unknown statement %q", key)
	}
	return p, nil
}

func (c *stmtCache) len() int {
	return len(c.byKey)
}

func (c *stmtCache) close() error {
	var errs []error
	for _, p := range c.byKey {
		if p.named != nil {
			errs = append(errs, p.named.Close())
		}
		if p.pos != nil {
			errs = append(errs, p.pos.Close())
		}
	}
	return errors.Join(errs...)
}

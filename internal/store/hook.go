package store

import (
	"context"
	"database/sql/driver"
	"sync"

	"github.com/mattn/go-sqlite3"

	"github.com/roach88/kirana/internal/schema"
)

// changeRecorder collects the tables modified by the writer connection while
// an atomic unit is open. SQLite calls the update hook for every row change,
// including rows changed by ON DELETE CASCADE and SET NULL actions.
type changeRecorder struct {
	mu      sync.Mutex
	reg     *schema.Registry
	active  bool
	touched schema.TableSet
}

func newChangeRecorder(reg *schema.Registry) *changeRecorder {
	return &changeRecorder{reg: reg}
}

func (r *changeRecorder) begin() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.active = true
	r.touched = schema.NewTableSet()
}

// record is registered as the connection's update hook.
func (r *changeRecorder) record(op int, db, table string, rowid int64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.active || db != "main" {
		return
	}
	id := schema.TableID(table)
	if _, ok := r.reg.Table(id); ok {
		r.touched.Add(id)
	}
}

// end stops recording and returns what was collected.
func (r *changeRecorder) end() schema.TableSet {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.active = false
	t := r.touched
	r.touched = nil
	return t
}

// hookedConnector opens writer connections with the update hook installed.
type hookedConnector struct {
	dsn string
	drv *sqlite3.SQLiteDriver
}

func newHookedConnector(dsn string, rec *changeRecorder) *hookedConnector {
	return &hookedConnector{
		dsn: dsn,
		drv: &sqlite3.SQLiteDriver{
			ConnectHook: func(conn *sqlite3.SQLiteConn) error {
				conn.RegisterUpdateHook(rec.record)
				return nil
			},
		},
	}
}

func (c *hookedConnector) Connect(context.Context) (driver.Conn, error) {
	return c.drv.Open(c.dsn)
}

func (c *hookedConnector) Driver() driver.Driver {
	return c.drv
}

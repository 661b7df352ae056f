package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"strconv"
	"sync"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/mattn/go-sqlite3"

	"github.com/roach88/kirana/internal/schema"
)

// Store is the SQLite-backed ledger store.
//
// It keeps two pools over one database file: a single-connection writer pool
// whose connection carries the update hook, and a reader pool of query-only
// connections. WAL mode lets readers see the last committed snapshot while a
// writer is active.
type Store struct {
	path   string
	reg    *schema.Registry
	writer *sqlx.DB
	reader *sqlx.DB
	rec    *changeRecorder
	stmts  *stmtCache

	// writeMu serializes atomic units within the process.
	writeMu sync.Mutex

	obsMu     sync.RWMutex
	observers []CommitObserver

	busyTimeout  time.Duration
	readConns    int
	writeRetries int
	retryBackoff time.Duration
	logger       *slog.Logger
}

// Option configures a Store.
type Option func(*Store)

// WithBusyTimeout sets how long a connection waits on a locked database
// before reporting SQLITE_BUSY.
func WithBusyTimeout(d time.Duration) Option {
	return func(s *Store) {
		if d > 0 {
			s.busyTimeout = d
		}
	}
}

// WithReadConns sets the size of the reader pool.
func WithReadConns(n int) Option {
	return func(s *Store) {
		if n > 0 {
			s.readConns = n
		}
	}
}

// WithWriteRetries sets how many times an atomic unit is retried after a
// busy or locked error. Zero disables retries.
func WithWriteRetries(n int) Option {
	return func(s *Store) {
		if n >= 0 {
			s.writeRetries = n
		}
	}
}

// WithRetryBackoff sets the base delay between retries; it doubles per attempt.
func WithRetryBackoff(d time.Duration) Option {
	return func(s *Store) {
		if d > 0 {
			s.retryBackoff = d
		}
	}
}

// WithLogger sets the logger. Defaults to slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(s *Store) {
		if l != nil {
			s.logger = l
		}
	}
}

// Open creates or opens the database at path, applies the schema and
// prepares every write statement.
//
// The writer connection is configured with:
//   - WAL mode for concurrent reads during writes
//   - NORMAL synchronous mode
//   - a busy timeout for lock contention (5s unless overridden)
//   - foreign key enforcement
//   - BEGIN IMMEDIATE, so lock contention surfaces at begin
//
// Open is idempotent on an existing file. path must name a file; an
// in-memory database cannot be shared between the two pools.
func Open(path string, opts ...Option) (*Store, error) {
	if path == "" || path == ":memory:" {
		return nil, &Error{Code: CodeUnavailable, Op: "open", Err: fmt.Errorf("database path %q is not a file", path)}
	}

	s := &Store{
		path:         path,
		reg:          schema.Default,
		busyTimeout:  5 * time.Second,
		readConns:    4,
		writeRetries: 3,
		retryBackoff: 10 * time.Millisecond,
		logger:       slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}

	if err := s.reg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid schema: %w", err)
	}

	s.rec = newChangeRecorder(s.reg)
	s.writer = sqlx.NewDb(sql.OpenDB(newHookedConnector(s.writerDSN(), s.rec)), "sqlite3")

	// SQLite only supports one writer at a time.
	s.writer.SetMaxOpenConns(1)
	s.writer.SetMaxIdleConns(1)

	if err := s.writer.Ping(); err != nil {
		s.writer.Close()
		return nil, classify("open", "", fmt.Errorf("connect to database: %w", err))
	}

	if err := s.applySchema(); err != nil {
		s.writer.Close()
		return nil, fmt.Errorf("apply schema: %w", err)
	}

	reader, err := sqlx.Open("sqlite3", s.readerDSN())
	if err != nil {
		s.writer.Close()
		return nil, fmt.Errorf("open reader pool: %w", err)
	}
	reader.SetMaxOpenConns(s.readConns)
	reader.SetMaxIdleConns(s.readConns)
	s.reader = reader

	stmts, err := prepareStatements(context.Background(), s.writer, s.reg.Statements())
	if err != nil {
		s.reader.Close()
		s.writer.Close()
		return nil, err
	}
	s.stmts = stmts

	s.logger.Debug("store opened",
		"path", path,
		"statements", stmts.len(),
		"read_conns", s.readConns,
	)
	return s, nil
}

func (s *Store) dsn(params url.Values) string {
	params.Set("_busy_timeout", strconv.FormatInt(s.busyTimeout.Milliseconds(), 10))
	params.Set("_foreign_keys", "on")
	return s.path + "?" + params.Encode()
}

func (s *Store) writerDSN() string {
	return s.dsn(url.Values{
		"_journal_mode": {"WAL"},
		"_synchronous":  {"NORMAL"},
		"_txlock":       {"immediate"},
	})
}

func (s *Store) readerDSN() string {
	return s.dsn(url.Values{"_query_only": {"1"}})
}

// Close releases prepared statements and both pools.
func (s *Store) Close() error {
	var errs []error
	if s.stmts != nil {
		errs = append(errs, s.stmts.close())
	}
	if s.reader != nil {
		errs = append(errs, s.reader.Close())
	}
	if s.writer != nil {
		errs = append(errs, s.writer.Close())
	}
	return errors.Join(errs...)
}

// Path returns the database file path.
func (s *Store) Path() string {
	return s.path
}

// Registry returns the schema the store was opened with.
func (s *Store) Registry() *schema.Registry {
	return s.reg
}

// Reader returns the read pool. Each query sees the latest committed state.
func (s *Store) Reader() Reader {
	return s.reader
}

// View runs fn inside a read transaction so that every query in fn observes
// the same committed snapshot.
func (s *Store) View(ctx context.Context, fn func(r Reader) error) error {
	tx, err := s.reader.BeginTxx(ctx, &sql.TxOptions{ReadOnly: true})
	if err != nil {
		return classify("view", "", err)
	}
	defer tx.Rollback()
	return fn(tx)
}

// AddCommitObserver registers o to receive the touched set of every
// committed atomic unit.
func (s *Store) AddCommitObserver(o CommitObserver) {
	s.obsMu.Lock()
	defer s.obsMu.Unlock()
	s.observers = append(s.observers, o)
}

// applySchema creates tables and indexes and stamps the schema version.
func (s *Store) applySchema() error {
	var version int
	if err := s.writer.Get(&version, "PRAGMA user_version"); err != nil {
		return classify("schema", "", fmt.Errorf("get user_version: %w", err))
	}
	if version > schema.Version {
		return &Error{Code: CodeUnavailable, Op: "schema",
			Err: fmt.Errorf("database schema version %d is newer than supported version %d", version, schema.Version)}
	}

	tx, err := s.writer.Beginx()
	if err != nil {
		return classify("schema", "", err)
	}
	defer tx.Rollback()

	for _, stmt := range s.reg.DDL() {
		if _, err := tx.Exec(stmt); err != nil {
			return classify("schema", "", fmt.Errorf("execute %q: %w", stmt, err))
		}
	}
	if _, err := tx.Exec(fmt.Sprintf("PRAGMA user_version = %d", schema.Version)); err != nil {
		return classify("schema", "", fmt.Errorf("set user_version: %w", err))
	}
	return tx.Commit()
}

// pragma returns the current value of a pragma on the given pool.
func pragma(db *sqlx.DB, name string) (string, error) {
	var value string
	if err := db.Get(&value, "PRAGMA "+name); err != nil {
		return "", fmt.Errorf("query %s: %w", name, err)
	}
	return value, nil
}

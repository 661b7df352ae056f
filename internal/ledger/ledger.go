package ledger

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/roach88/kirana/internal/engine"
	"github.com/roach88/kirana/internal/schema"
	"github.com/roach88/kirana/internal/store"
)

// Ledger is the operations layer over a Store: every mutating method is one
// atomic unit, and live queries are driven by the tracker the ledger attaches
// to the store as its commit observer.
//
// Thread-safety model:
//   - all methods are safe for concurrent use
//   - writes are serialized by the store; reads run on the reader pool
type Ledger struct {
	store     *store.Store
	tracker   *engine.Tracker
	ownsStore bool

	now    func() time.Time
	loc    *time.Location
	opIDs  OpIDGenerator
	window time.Duration
	logger *slog.Logger

	storeOpts []store.Option
}

// Option configures a Ledger.
type Option func(*Ledger)

// WithClock sets the wall clock used for transaction dates and outbox
// timestamps. Defaults to time.Now.
func WithClock(now func() time.Time) Option {
	return func(l *Ledger) {
		if now != nil {
			l.now = now
		}
	}
}

// WithLocation sets the zone transaction display times are rendered in.
// Defaults to time.Local.
func WithLocation(loc *time.Location) Option {
	return func(l *Ledger) {
		if loc != nil {
			l.loc = loc
		}
	}
}

// WithOpIDGenerator sets the outbox operation id source. Defaults to
// UUIDv7Generator.
func WithOpIDGenerator(g OpIDGenerator) Option {
	return func(l *Ledger) {
		if g != nil {
			l.opIDs = g
		}
	}
}

// WithCoalesceWindow sets the coalescing window for Watch* subscriptions.
func WithCoalesceWindow(d time.Duration) Option {
	return func(l *Ledger) {
		if d >= 0 {
			l.window = d
		}
	}
}

// WithLogger sets the logger used by the ledger and its tracker.
func WithLogger(lg *slog.Logger) Option {
	return func(l *Ledger) {
		if lg != nil {
			l.logger = lg
		}
	}
}

// WithStoreOptions passes options to store.Open. Only used by Open.
func WithStoreOptions(opts ...store.Option) Option {
	return func(l *Ledger) {
		l.storeOpts = append(l.storeOpts, opts...)
	}
}

func newLedger(opts []Option) *Ledger {
	l := &Ledger{
		now:    time.Now,
		loc:    time.Local,
		opIDs:  UUIDv7Generator{},
		window: engine.DefaultCoalesceWindow,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// New creates a ledger over an open store and registers its tracker as a
// commit observer. The caller keeps ownership of st.
func New(st *store.Store, opts ...Option) *Ledger {
	l := newLedger(opts)
	l.store = st
	l.tracker = engine.NewTracker(engine.WithTrackerLogger(l.logger))
	st.AddCommitObserver(l.tracker)
	return l
}

// Open opens the database at path and returns a ledger that owns it.
func Open(path string, opts ...Option) (*Ledger, error) {
	cfg := newLedger(opts)
	storeOpts := append([]store.Option{store.WithLogger(cfg.logger)}, cfg.storeOpts...)
	st, err := store.Open(path, storeOpts...)
	if err != nil {
		return nil, fmt.Errorf("open ledger: %w", err)
	}
	l := New(st, opts...)
	l.ownsStore = true
	return l, nil
}

// Close ends every live query. The store is closed too when the ledger
// opened it.
func (l *Ledger) Close() error {
	l.tracker.Close()
	if l.ownsStore {
		return l.store.Close()
	}
	return nil
}

// Store returns the underlying store.
func (l *Ledger) Store() *store.Store { return l.store }

// Tracker returns the invalidation tracker fed by the store's commits.
func (l *Ledger) Tracker() *engine.Tracker { return l.tracker }

// Atomic runs fn as one atomic unit. Every write fn makes through w, outbox
// rows included, commits together or not at all. fn may run more than once
// when the database is busy.
func (l *Ledger) Atomic(ctx context.Context, fn func(w *Writer) error) (schema.TableSet, error) {
	return l.store.RunAtomic(ctx, func(tx *store.Tx) error {
		return fn(&Writer{tx: tx, l: l, at: l.now()})
	})
}

// atomic is Atomic for operations that only care about the error.
func (l *Ledger) atomic(ctx context.Context, op string, fn func(w *Writer) error) error {
	touched, err := l.Atomic(ctx, fn)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	l.logger.Debug("ledger operation committed",
		"op", op,
		"touched", touched.String(),
	)
	return nil
}

package engine

import (
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/roach88/kirana/internal/schema"
)

// Registration is a tracker entry: a watch set and the signal channel the
// tracker pokes when one of the watched tables changes.
type Registration struct {
	id      uint64
	name    string
	watched schema.TableSet

	// signal is buffered (size 1): a notify that finds it full is coalesced
	// into the one already pending.
	signal chan struct{}

	// done is closed by Unregister.
	done     chan struct{}
	doneOnce sync.Once
}

// Name returns the name the entry was registered under.
func (r *Registration) Name() string { return r.name }

// Watched returns a copy of the watch set.
func (r *Registration) Watched() schema.TableSet { return r.watched.Clone() }

// Signal returns the channel that becomes ready when a watched table changed.
func (r *Registration) Signal() <-chan struct{} { return r.signal }

// Done returns a channel closed once the entry is unregistered.
func (r *Registration) Done() <-chan struct{} { return r.done }

// TrackerStats counts tracker activity since creation.
type TrackerStats struct {
	// Notifies is the number of non-empty commits reported.
	Notifies int64
	// Signals is the number of signals delivered to idle entries.
	Signals int64
	// Coalesced is the number of signals folded into an already pending one.
	Coalesced int64
}

// Tracker maps tables to interested subscriptions and wakes them after a
// commit touches what they watch. It implements the store's CommitObserver.
//
// Notify never blocks: each entry has a one-slot signal channel, so a burst of
// commits before a subscription wakes produces a single re-evaluation.
type Tracker struct {
	mu      sync.RWMutex
	entries map[uint64]*Registration
	nextID  uint64
	closed  bool

	clock  *Clock
	logger *slog.Logger

	notifies  atomic.Int64
	signals   atomic.Int64
	coalesced atomic.Int64
}

// TrackerOption configures a Tracker.
type TrackerOption func(*Tracker)

// WithTrackerLogger sets the tracker's logger. Defaults to slog.Default().
func WithTrackerLogger(l *slog.Logger) TrackerOption {
	return func(t *Tracker) {
		if l != nil {
			t.logger = l
		}
	}
}

// NewTracker creates an empty tracker with its commit clock at 0.
func NewTracker(opts ...TrackerOption) *Tracker {
	t := &Tracker{
		entries: make(map[uint64]*Registration),
		clock:   NewClock(),
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// Register adds an entry watching the given tables.
func (t *Tracker) Register(name string, watched schema.TableSet) (*Registration, error) {
	if watched.Len() == 0 {
		return nil, &SubscriptionError{Code: ErrCodeEmptyWatch, Query: name, Message: "watch set is empty"}
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	if t.closed {
		return nil, &SubscriptionError{Code: ErrCodeTrackerClosed, Query: name, Message: "tracker is closed"}
	}

	t.nextID++
	r := &Registration{
		id:      t.nextID,
		name:    name,
		watched: watched.Clone(),
		signal:  make(chan struct{}, 1),
		done:    make(chan struct{}),
	}
	t.entries[r.id] = r

	t.logger.Debug("query registered",
		"query", name,
		"watch", r.watched.String(),
	)
	return r, nil
}

// Unregister removes r. It is idempotent; a signal still pending on r is
// never acted on because r's Done channel is closed.
func (t *Tracker) Unregister(r *Registration) {
	if r == nil {
		return
	}
	t.mu.Lock()
	delete(t.entries, r.id)
	t.mu.Unlock()
	r.doneOnce.Do(func() { close(r.done) })
}

// Notify reports a committed change. The commit clock advances before any
// entry is signaled, so a woken subscription always reads a version that
// covers the commit that woke it. Entries whose watch set does not intersect
// touched are left alone. An empty set is ignored.
func (t *Tracker) Notify(touched schema.TableSet) {
	if touched.Len() == 0 {
		return
	}

	t.mu.RLock()
	defer t.mu.RUnlock()

	version := t.clock.Next()
	t.notifies.Add(1)

	woken := 0
	for _, r := range t.entries {
		if !r.watched.Intersects(touched) {
			continue
		}
		select {
		case r.signal <- struct{}{}:
			t.signals.Add(1)
			woken++
		default:
			t.coalesced.Add(1)
		}
	}

	t.logger.Debug("commit notified",
		"version", version,
		"touched", touched.String(),
		"woken", woken,
	)
}

// Version returns the commit clock reading.
func (t *Tracker) Version() int64 {
	return t.clock.Current()
}

// Len returns the number of registered entries.
func (t *Tracker) Len() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.entries)
}

// Stats returns activity counters.
func (t *Tracker) Stats() TrackerStats {
	return TrackerStats{
		Notifies:  t.notifies.Load(),
		Signals:   t.signals.Load(),
		Coalesced: t.coalesced.Load(),
	}
}

// Close unregisters every entry and rejects further registrations.
func (t *Tracker) Close() {
	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		return
	}
	t.closed = true
	entries := t.entries
	t.entries = make(map[uint64]*Registration)
	t.mu.Unlock()

	for _, r := range entries {
		r.doneOnce.Do(func() { close(r.done) })
	}
}

package engine

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"

	"github.com/roach88/kirana/internal/schema"
)

// DefaultCoalesceWindow is how long a woken subscription waits for further
// commits before re-running its query.
const DefaultCoalesceWindow = 15 * time.Millisecond

// Query is a live query: a fetch function and the tables it reads.
//
// Watch must list every table Fetch reads. A table missing from Watch means
// changes to it never refresh the result.
type Query[T any] struct {
	Name  string
	Watch schema.TableSet
	Fetch func(ctx context.Context) (T, error)
}

// Update is one delivery of a live query. Exactly one of Value and Err is
// meaningful. Version is the commit clock reading the fetch was based on.
type Update[T any] struct {
	Value   T
	Version int64
	Err     error
}

type subscribeConfig struct {
	window time.Duration
	logger *slog.Logger
}

// SubscribeOption configures a subscription.
type SubscribeOption func(*subscribeConfig)

// WithCoalesceWindow sets the coalescing window. Zero re-runs the query as
// soon as the subscription wakes.
func WithCoalesceWindow(d time.Duration) SubscribeOption {
	return func(c *subscribeConfig) {
		if d >= 0 {
			c.window = d
		}
	}
}

// WithSubscriptionLogger sets the subscription's logger.
func WithSubscriptionLogger(l *slog.Logger) SubscribeOption {
	return func(c *subscribeConfig) {
		if l != nil {
			c.logger = l
		}
	}
}

// Subscription is a running live query.
//
// A single goroutine owns re-evaluation, so fetches for one subscription never
// overlap and deliveries arrive in version order. Results equal to the last
// delivered value are suppressed; nil and empty slices or maps count as equal.
type Subscription[T any] struct {
	query   Query[T]
	tracker *Tracker
	reg     *Registration
	window  time.Duration
	logger  *slog.Logger

	initial Update[T]
	updates chan Update[T]

	cancel context.CancelFunc
	once   sync.Once
	done   chan struct{}

	evaluations atomic.Int64

	// Loop-owned.
	last    T
	hasLast bool
}

// Subscribe registers q with the tracker, computes the initial snapshot
// synchronously and starts watching for changes.
//
// Registration happens before the initial fetch, so a commit that lands
// between the two still triggers a re-evaluation. An error from the initial
// fetch fails Subscribe; later fetch errors and panics are delivered as
// [Update.Err] and the subscription keeps running.
//
// The subscription ends when Cancel is called or ctx is done; either way the
// Updates channel is closed.
func Subscribe[T any](ctx context.Context, tr *Tracker, q Query[T], opts ...SubscribeOption) (*Subscription[T], error) {
	if q.Fetch == nil {
		return nil, &SubscriptionError{Code: ErrCodeNoFetch, Query: q.Name, Message: "query has no fetch function"}
	}
	cfg := subscribeConfig{window: DefaultCoalesceWindow, logger: slog.Default()}
	for _, opt := range opts {
		opt(&cfg)
	}

	reg, err := tr.Register(q.Name, q.Watch)
	if err != nil {
		return nil, err
	}

	version := tr.Version()
	value, err := safeFetch(ctx, q)
	if err != nil {
		tr.Unregister(reg)
		return nil, err
	}

	runCtx, cancel := context.WithCancel(ctx)
	s := &Subscription[T]{
		query:   q,
		tracker: tr,
		reg:     reg,
		window:  cfg.window,
		logger:  cfg.logger,
		initial: Update[T]{Value: value, Version: version},
		updates: make(chan Update[T]),
		cancel:  cancel,
		done:    make(chan struct{}),
		last:    value,
		hasLast: true,
	}
	s.evaluations.Store(1)

	go s.run(runCtx)
	return s, nil
}

// Name returns the query name.
func (s *Subscription[T]) Name() string { return s.query.Name }

// Initial returns the snapshot computed by Subscribe.
func (s *Subscription[T]) Initial() Update[T] { return s.initial }

// Updates returns the channel of later results. It is closed when the
// subscription ends.
func (s *Subscription[T]) Updates() <-chan Update[T] { return s.updates }

// Done returns a channel closed once the subscription has fully stopped.
func (s *Subscription[T]) Done() <-chan struct{} { return s.done }

// Evaluations returns how many times the query has been fetched, the initial
// snapshot included.
func (s *Subscription[T]) Evaluations() int64 { return s.evaluations.Load() }

// Cancel stops the subscription and waits for its goroutine to exit. Once it
// returns, no further values are delivered. Safe to call more than once.
func (s *Subscription[T]) Cancel() {
	s.once.Do(s.cancel)
	<-s.done
}

func (s *Subscription[T]) run(ctx context.Context) {
	defer func() {
		s.tracker.Unregister(s.reg)
		close(s.updates)
		close(s.done)
	}()

	for {
		if !s.wait(ctx) {
			return
		}

		version := s.tracker.Version()
		value, err := safeFetch(ctx, s.query)
		s.evaluations.Add(1)

		if ctx.Err() != nil {
			return
		}
		if err != nil {
			s.logger.Warn("live query failed",
				"query", s.query.Name,
				"version", version,
				"error", err,
			)
			// The next successful fetch is always delivered.
			s.hasLast = false
			var zero T
			s.last = zero
			if !s.send(ctx, Update[T]{Version: version, Err: err}) {
				return
			}
			continue
		}

		if s.hasLast && cmp.Equal(s.last, value, cmpopts.EquateEmpty()) {
			continue
		}
		s.last, s.hasLast = value, true
		if !s.send(ctx, Update[T]{Value: value, Version: version}) {
			return
		}
	}
}

// wait blocks until a watched table changed and the coalescing window has
// passed. It reports false when the subscription should stop.
func (s *Subscription[T]) wait(ctx context.Context) bool {
	select {
	case <-ctx.Done():
		return false
	case <-s.reg.Done():
		return false
	case <-s.reg.Signal():
	}

	if s.window <= 0 {
		return true
	}
	timer := time.NewTimer(s.window)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-s.reg.Done():
		return false
	case <-timer.C:
	}

	// Commits during the window are covered by the fetch about to run.
	select {
	case <-s.reg.Signal():
	default:
	}
	return true
}

func (s *Subscription[T]) send(ctx context.Context, u Update[T]) bool {
	if ctx.Err() != nil {
		return false
	}
	select {
	case s.updates <- u:
		return true
	case <-ctx.Done():
		return false
	case <-s.reg.Done():
		return false
	}
}

func safeFetch[T any](ctx context.Context, q Query[T]) (value T, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = newFetchPanicError(q.Name, r)
		}
	}()
	return q.Fetch(ctx)
}

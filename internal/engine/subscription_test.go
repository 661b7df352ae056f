package engine

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/kirana/internal/schema"
	"github.com/roach88/kirana/internal/testutil"
)

const wait = 2 * time.Second

// fakeTable is an in-memory stand-in for a store table: writes bump the
// tracker the way the store's commit observer would.
type fakeTable struct {
	mu      sync.Mutex
	rows    []string
	failing error
	panics  bool
	tr      *Tracker
	id      schema.TableID
}

func newFakeTable(tr *Tracker, id schema.TableID, rows ...string) *fakeTable {
	return &fakeTable{tr: tr, id: id, rows: rows}
}

func (f *fakeTable) set(rows ...string) {
	f.mu.Lock()
	f.rows = rows
	f.mu.Unlock()
	f.tr.Notify(schema.NewTableSet(f.id))
}

func (f *fakeTable) fail(err error, panics bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.failing, f.panics = err, panics
}

func (f *fakeTable) query() Query[[]string] {
	return Query[[]string]{
		Name:  string(f.id),
		Watch: schema.NewTableSet(f.id),
		Fetch: func(context.Context) ([]string, error) {
			f.mu.Lock()
			defer f.mu.Unlock()
			if f.panics {
				panic("fetch exploded")
			}
			if f.failing != nil {
				return nil, f.failing
			}
			return slices.Clone(f.rows), nil
		},
	}
}

func subscribe(t *testing.T, tr *Tracker, q Query[[]string], opts ...SubscribeOption) *Subscription[[]string] {
	t.Helper()
	sub, err := Subscribe(context.Background(), tr, q, opts...)
	require.NoError(t, err)
	t.Cleanup(sub.Cancel)
	return sub
}

func TestSubscribe_InitialSnapshot(t *testing.T) {
	tr := NewTracker()
	tbl := newFakeTable(tr, schema.Items, "atta", "dal")

	sub := subscribe(t, tr, tbl.query())
	snap := sub.Initial()
	assert.Equal(t, []string{"atta", "dal"}, snap.Value)
	assert.Equal(t, int64(0), snap.Version)
	assert.NoError(t, snap.Err)
	assert.Equal(t, int64(1), sub.Evaluations())
	assert.Equal(t, 1, tr.Len())
}

func TestSubscribe_DeliversChange(t *testing.T) {
	tr := NewTracker()
	tbl := newFakeTable(tr, schema.Items, "atta")
	sub := subscribe(t, tr, tbl.query(), WithCoalesceWindow(0))

	tbl.set("atta", "rice")

	u := testutil.Receive(t, sub.Updates(), wait)
	require.NoError(t, u.Err)
	assert.Equal(t, []string{"atta", "rice"}, u.Value)
	assert.Equal(t, int64(1), u.Version)
}

func TestSubscribe_SuppressesEqualResults(t *testing.T) {
	tr := NewTracker()
	tbl := newFakeTable(tr, schema.Items, "atta")
	sub := subscribe(t, tr, tbl.query(), WithCoalesceWindow(0))

	// Watched table touched but result unchanged.
	tr.Notify(schema.NewTableSet(schema.Items))

	require.Eventually(t, func() bool { return sub.Evaluations() == 2 }, wait, time.Millisecond)
	testutil.NoReceive(t, sub.Updates(), 50*time.Millisecond)
}

func TestSubscribe_NilAndEmptyAreEqual(t *testing.T) {
	tr := NewTracker()
	tbl := newFakeTable(tr, schema.Items)
	sub := subscribe(t, tr, tbl.query(), WithCoalesceWindow(0))
	assert.Empty(t, sub.Initial().Value)

	tbl.set([]string{}...)

	require.Eventually(t, func() bool { return sub.Evaluations() == 2 }, wait, time.Millisecond)
	testutil.NoReceive(t, sub.Updates(), 50*time.Millisecond)
}

func TestSubscribe_IgnoresUnwatchedTables(t *testing.T) {
	tr := NewTracker()
	tbl := newFakeTable(tr, schema.Items, "atta")
	sub := subscribe(t, tr, tbl.query(), WithCoalesceWindow(0))

	tr.Notify(schema.NewTableSet(schema.Parties, schema.Reminders))

	testutil.NoReceive(t, sub.Updates(), 50*time.Millisecond)
	assert.Equal(t, int64(1), sub.Evaluations())
}

func TestSubscribe_CoalescesBurst(t *testing.T) {
	tr := NewTracker()
	tbl := newFakeTable(tr, schema.Items, "v0")
	sub := subscribe(t, tr, tbl.query(), WithCoalesceWindow(100*time.Millisecond))

	tbl.set("v1")
	tbl.set("v2")

	u := testutil.Receive(t, sub.Updates(), wait)
	assert.Equal(t, []string{"v2"}, u.Value)
	assert.Equal(t, int64(2), u.Version)

	testutil.NoReceive(t, sub.Updates(), 200*time.Millisecond)
	assert.Equal(t, int64(2), sub.Evaluations())
}

func TestSubscribe_FetchErrorIsDeliveredAndLoopContinues(t *testing.T) {
	tr := NewTracker()
	tbl := newFakeTable(tr, schema.Items, "atta")
	sub := subscribe(t, tr, tbl.query(), WithCoalesceWindow(0))

	boom := errors.New("disk on fire")
	tbl.fail(boom, false)
	tr.Notify(schema.NewTableSet(schema.Items))

	u := testutil.Receive(t, sub.Updates(), wait)
	assert.ErrorIs(t, u.Err, boom)

	// Recovery re-delivers the value even though it equals the one before
	// the failure.
	tbl.fail(nil, false)
	tr.Notify(schema.NewTableSet(schema.Items))

	u = testutil.Receive(t, sub.Updates(), wait)
	require.NoError(t, u.Err)
	assert.Equal(t, []string{"atta"}, u.Value)
}

func TestSubscribe_PanicIsIsolated(t *testing.T) {
	tr := NewTracker()
	broken := newFakeTable(tr, schema.Items, "atta")
	healthy := newFakeTable(tr, schema.Parties, "asha")

	bad := subscribe(t, tr, broken.query(), WithCoalesceWindow(0))
	good := subscribe(t, tr, healthy.query(), WithCoalesceWindow(0))

	broken.fail(nil, true)
	tr.Notify(schema.NewTableSet(schema.Items))
	healthy.set("asha", "ravi")

	u := testutil.Receive(t, bad.Updates(), wait)
	assert.True(t, IsFetchPanic(u.Err), "got %v", u.Err)

	g := testutil.Receive(t, good.Updates(), wait)
	require.NoError(t, g.Err)
	assert.Equal(t, []string{"asha", "ravi"}, g.Value)
}

func TestSubscribe_VersionsNeverDecrease(t *testing.T) {
	tr := NewTracker()
	tbl := newFakeTable(tr, schema.Items, "0")
	sub := subscribe(t, tr, tbl.query(), WithCoalesceWindow(0))

	go func() {
		for i := 1; i <= 50; i++ {
			tbl.set(fmt.Sprint(i))
		}
	}()

	last := sub.Initial().Version
	deadline := time.After(wait)
	for {
		select {
		case u := <-sub.Updates():
			require.NoError(t, u.Err)
			assert.GreaterOrEqual(t, u.Version, last)
			last = u.Version
			if u.Value[0] == "50" {
				return
			}
		case <-deadline:
			t.Fatalf("final value never delivered, last version %d", last)
		}
	}
}

func TestSubscription_CancelIsIdempotentAndFinal(t *testing.T) {
	tr := NewTracker()
	tbl := newFakeTable(tr, schema.Items, "atta")
	sub, err := Subscribe(context.Background(), tr, tbl.query(), WithCoalesceWindow(0))
	require.NoError(t, err)

	sub.Cancel()
	sub.Cancel()

	assert.Equal(t, 0, tr.Len())
	assert.True(t, testutil.Closed(sub.Updates(), wait))

	evals := sub.Evaluations()
	tbl.set("rice")
	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, evals, sub.Evaluations())
}

func TestSubscription_CancelWhileDeliveryPending(t *testing.T) {
	tr := NewTracker()
	tbl := newFakeTable(tr, schema.Items, "atta")
	sub, err := Subscribe(context.Background(), tr, tbl.query(), WithCoalesceWindow(0))
	require.NoError(t, err)

	// Nobody reads Updates, so the loop blocks in send.
	tbl.set("rice")
	require.Eventually(t, func() bool { return sub.Evaluations() == 2 }, wait, time.Millisecond)

	done := make(chan struct{})
	go func() {
		sub.Cancel()
		close(done)
	}()
	assert.True(t, testutil.Closed(done, wait))
	assert.True(t, testutil.Closed(sub.Updates(), wait))
}

func TestSubscribe_ParentContextEndsSubscription(t *testing.T) {
	tr := NewTracker()
	tbl := newFakeTable(tr, schema.Items, "atta")
	ctx, cancel := context.WithCancel(context.Background())
	sub, err := Subscribe(ctx, tr, tbl.query())
	require.NoError(t, err)

	cancel()
	assert.True(t, testutil.Closed(sub.Done(), wait))
	assert.Equal(t, 0, tr.Len())
	sub.Cancel()
}

func TestSubscribe_ResubscribeGetsFreshSnapshot(t *testing.T) {
	tr := NewTracker()
	tbl := newFakeTable(tr, schema.Items, "atta")

	first := subscribe(t, tr, tbl.query())
	first.Cancel()

	tbl.set("atta", "rice")

	second := subscribe(t, tr, tbl.query())
	assert.Equal(t, []string{"atta", "rice"}, second.Initial().Value)
	assert.Equal(t, int64(1), second.Initial().Version)
}

func TestSubscribe_InitialFetchErrorFails(t *testing.T) {
	tr := NewTracker()
	tbl := newFakeTable(tr, schema.Items)
	boom := errors.New("no table")
	tbl.fail(boom, false)

	_, err := Subscribe(context.Background(), tr, tbl.query())
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, 0, tr.Len())
}

func TestSubscribe_RejectsInvalidQueries(t *testing.T) {
	tr := NewTracker()

	_, err := Subscribe(context.Background(), tr, Query[int]{Name: "nofetch", Watch: schema.NewTableSet(schema.Items)})
	var se *SubscriptionError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, ErrCodeNoFetch, se.Code)

	_, err = Subscribe(context.Background(), tr, Query[int]{
		Name:  "nowatch",
		Fetch: func(context.Context) (int, error) { return 0, nil },
	})
	require.ErrorAs(t, err, &se)
	assert.Equal(t, ErrCodeEmptyWatch, se.Code)
}

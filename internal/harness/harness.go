package harness

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/roach88/kirana/internal/ledger"
	"github.com/roach88/kirana/internal/model"
	"github.com/roach88/kirana/internal/schema"
	"github.com/roach88/kirana/internal/store"
	"github.com/roach88/kirana/internal/testutil"
)

// Harness runs one scenario against a private ledger.
type Harness struct {
	ledger   *ledger.Ledger
	clock    *testutil.StepClock
	bindings map[string]int64
	touched  touchRecorder
	logger   *slog.Logger
}

// RunOption configures Run.
type RunOption func(*runConfig)

type runConfig struct {
	logger *slog.Logger
	dir    string
}

// WithLogger routes ledger and step logs to lg. Logs are discarded by
// default.
func WithLogger(lg *slog.Logger) RunOption {
	return func(c *runConfig) {
		if lg != nil {
			c.logger = lg
		}
	}
}

// WithDir places the scenario database in dir instead of a fresh temporary
// directory. The caller owns dir.
func WithDir(dir string) RunOption {
	return func(c *runConfig) { c.dir = dir }
}

// Run executes a scenario and returns the result.
//
// Each scenario runs on a fresh database file. The wall clock starts at
// testutil.DefaultEpoch and advances one minute per atomic unit, outbox op
// ids are "op-0001", "op-0002" and so on, and display times are UTC, so the
// same scenario always produces the same trace and state.
//
// A step that fails unexpectedly, or succeeds when an error was expected,
// is recorded in Result.Errors and ends the run; the state and assertions
// are still evaluated. The returned error is reserved for harness failures.
func Run(ctx context.Context, scenario *Scenario, opts ...RunOption) (*Result, error) {
	cfg := runConfig{logger: slog.New(slog.NewTextHandler(io.Discard, nil))}
	for _, opt := range opts {
		opt(&cfg)
	}

	dir := cfg.dir
	if dir == "" {
		tmp, err := os.MkdirTemp("", "kirana-scenario-*")
		if err != nil {
			return nil, fmt.Errorf("failed to create scenario dir: %w", err)
		}
		defer os.RemoveAll(tmp)
		dir = tmp
	}

	clock := testutil.NewStepClock(time.Time{}, time.Minute)
	l, err := ledger.Open(filepath.Join(dir, "scenario.db"),
		ledger.WithClock(clock.Now),
		ledger.WithLocation(time.UTC),
		ledger.WithOpIDGenerator(ledger.NewSequenceGenerator("op")),
		ledger.WithCoalesceWindow(0),
		ledger.WithLogger(cfg.logger),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to open scenario ledger: %w", err)
	}
	defer l.Close()

	h := &Harness{
		ledger:   l,
		clock:    clock,
		bindings: make(map[string]int64),
		logger:   cfg.logger,
	}
	l.Store().AddCommitObserver(&h.touched)

	result := NewResult()
	h.executeSteps(ctx, scenario.Steps, result)

	state, err := h.snapshot(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to read final state: %w", err)
	}
	result.State = state

	actx := &AssertionContext{
		Ctx:      ctx,
		Store:    l.Store(),
		Bindings: h.bindings,
	}
	for _, msg := range EvaluateAssertions(result, scenario.Assertions, actx) {
		result.AddError(msg)
	}
	return result, nil
}

// executeSteps runs steps in order and stops at the first one that does not
// behave as expected.
func (h *Harness) executeSteps(ctx context.Context, steps []Step, result *Result) {
	for i, step := range steps {
		args, err := h.resolve(&step.Args)
		if err != nil {
			result.AddError(fmt.Sprintf("steps[%d] %s: %v", i, step.Op, err))
			return
		}

		id, err := operations[step.Op](ctx, h.ledger, args)
		ev := TraceEvent{Op: step.Op, As: step.As, ID: id, Touched: h.touched.take()}
		if err != nil {
			ev.Error = errorCode(err)
		}
		result.AddTrace(ev)

		switch {
		case err == nil && step.ExpectError != "":
			result.AddError(fmt.Sprintf("steps[%d] %s: expected error %s, got success", i, step.Op, step.ExpectError))
			return
		case err != nil && step.ExpectError == "":
			result.AddError(fmt.Sprintf("steps[%d] %s: unexpected error: %v", i, step.Op, err))
			return
		case err != nil && ev.Error != step.ExpectError:
			result.AddError(fmt.Sprintf("steps[%d] %s: expected error %s, got %s: %v", i, step.Op, step.ExpectError, ev.Error, err))
			return
		}

		if step.As != "" && err == nil {
			h.bindings[step.As] = id
		}

		h.logger.Debug("scenario step completed",
			"step", i,
			"op", step.Op,
			"id", id,
			"error", ev.Error,
			"touched", strings.Join(ev.Touched, ","),
		)
	}
}

// resolve returns a copy of n with every "$name" scalar replaced by the id
// bound to name.
func (h *Harness) resolve(n *yaml.Node) (*yaml.Node, error) {
	if n == nil {
		return nil, nil
	}
	out := *n
	if n.Kind == yaml.ScalarNode && n.Tag == "!!str" && strings.HasPrefix(n.Value, "$") {
		id, err := h.lookup(n.Value)
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", n.Line, err)
		}
		out.Value = strconv.FormatInt(id, 10)
		out.Tag = "!!int"
		out.Style = 0
		return &out, nil
	}
	if len(n.Content) > 0 {
		out.Content = make([]*yaml.Node, len(n.Content))
		for i, c := range n.Content {
			r, err := h.resolve(c)
			if err != nil {
				return nil, err
			}
			out.Content[i] = r
		}
	}
	return &out, nil
}

func (h *Harness) lookup(ref string) (int64, error) {
	id, ok := h.bindings[strings.TrimPrefix(ref, "$")]
	if !ok {
		return 0, fmt.Errorf("unbound reference %s", ref)
	}
	return id, nil
}

// snapshot reads the whole ledger from one read snapshot. Deleted items and
// done reminders are included.
func (h *Harness) snapshot(ctx context.Context) (*State, error) {
	st := &State{}
	err := h.ledger.Store().View(ctx, func(rd store.Reader) error {
		var err error
		if st.Items, err = store.Items.Select(ctx, rd, "ORDER BY id ASC"); err != nil {
			return err
		}
		if st.Parties, err = store.Parties.Select(ctx, rd, "ORDER BY id ASC"); err != nil {
			return err
		}
		if st.Reminders, err = store.Reminders.Select(ctx, rd, "ORDER BY id ASC"); err != nil {
			return err
		}
		txs, err := store.Transactions.Select(ctx, rd, "ORDER BY id ASC")
		if err != nil {
			return err
		}
		for _, t := range txs {
			lines, err := store.TransactionItems.Select(ctx, rd, "WHERE transactionId = ? ORDER BY id ASC", t.ID)
			if err != nil {
				return err
			}
			st.Transactions = append(st.Transactions, model.TransactionWithItems{Transaction: t, Items: lines})
		}
		st.OutboxPending, err = store.Outbox.Count(ctx, rd, "WHERE status != ?", model.OutboxDone)
		return err
	})
	if err != nil {
		return nil, err
	}
	if st.Transactions == nil {
		st.Transactions = []model.TransactionWithItems{}
	}
	return st, nil
}

// errorCode returns the store error code of err, or "ERROR" for errors that
// did not come from the store.
func errorCode(err error) string {
	var se *store.Error
	if errors.As(err, &se) {
		return string(se.Code)
	}
	return "ERROR"
}

// touchRecorder accumulates the tables changed by commits between takes.
type touchRecorder struct {
	mu  sync.Mutex
	set schema.TableSet
}

func (r *touchRecorder) Notify(touched schema.TableSet) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.set = r.set.Union(touched)
}

// take returns the recorded table names, sorted, and resets the recorder.
func (r *touchRecorder) take() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, 0, r.set.Len())
	for _, id := range r.set.Sorted() {
		out = append(out, string(id))
	}
	r.set = nil
	return out
}

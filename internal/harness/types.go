package harness

import "github.com/roach88/kirana/internal/model"

// TraceEvent records one executed step.
type TraceEvent struct {
	Seq int    `json:"seq"`
	Op  string `json:"op"`
	As  string `json:"as,omitempty"`

	// ID is the id the operation returned, 0 for operations that return none.
	ID int64 `json:"id,omitempty"`

	// Error is the store error code of a failed step, e.g. "NOT_FOUND".
	Error string `json:"error,omitempty"`

	// Touched lists the tables the step's committed units changed, sorted.
	Touched []string `json:"touched"`
}

// State is the ledger contents after the last step.
type State struct {
	Items         []model.Item                 `json:"items"`
	Parties       []model.Party                `json:"parties"`
	Transactions  []model.TransactionWithItems `json:"transactions"`
	Reminders     []model.Reminder             `json:"reminders"`
	OutboxPending int64                        `json:"outbox_pending"`
}

// Result is the outcome of a scenario execution.
type Result struct {
	// Pass is true when every step behaved as expected and every assertion
	// held.
	Pass bool `json:"pass"`

	// Trace contains every executed step in order.
	Trace []TraceEvent `json:"trace"`

	// Errors contains step and assertion failures. Empty if Pass is true.
	Errors []string `json:"errors,omitempty"`

	// State is the final ledger contents.
	State *State `json:"state,omitempty"`
}

// NewResult creates a new passing result.
func NewResult() *Result {
	return &Result{
		Pass:   true,
		Trace:  []TraceEvent{},
		Errors: []string{},
	}
}

// AddError adds a validation error and marks the result as failed.
func (r *Result) AddError(err string) {
	r.Errors = append(r.Errors, err)
	r.Pass = false
}

// AddTrace appends ev with the next sequence number.
func (r *Result) AddTrace(ev TraceEvent) {
	ev.Seq = len(r.Trace) + 1
	if ev.Touched == nil {
		ev.Touched = []string{}
	}
	r.Trace = append(r.Trace, ev)
}

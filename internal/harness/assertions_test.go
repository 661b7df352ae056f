package harness

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/kirana/internal/schema"
)

func trace(ops ...string) []TraceEvent {
	out := make([]TraceEvent, len(ops))
	for i, op := range ops {
		out[i] = TraceEvent{Seq: i + 1, Op: op}
	}
	return out
}

func TestAssertTraceOrder(t *testing.T) {
	tr := trace("add_item", "add_party", "add_item", "checkout")

	assert.NoError(t, assertTraceOrder(tr, Assertion{Ops: []string{"add_item", "checkout"}}))
	assert.NoError(t, assertTraceOrder(tr, Assertion{Ops: []string{"add_item", "add_party", "checkout"}}))

	err := assertTraceOrder(tr, Assertion{Ops: []string{"checkout", "add_party"}})
	var aerr *AssertionError
	require.ErrorAs(t, err, &aerr)
	assert.Contains(t, aerr.Actual, "checkout (pos 4) should be before add_party (pos 2)")

	err = assertTraceOrder(tr, Assertion{Ops: []string{"add_item", "record_payment"}})
	require.ErrorAs(t, err, &aerr)
	assert.Equal(t, "missing op: record_payment", aerr.Actual)
}

func TestAssertTraceCount(t *testing.T) {
	tr := trace("add_item", "add_item", "checkout")

	assert.NoError(t, assertTraceCount(tr, Assertion{Op: "add_item", Count: 2}))
	assert.NoError(t, assertTraceCount(tr, Assertion{Op: "soft_delete", Count: 0}))

	err := assertTraceCount(tr, Assertion{Op: "checkout", Count: 2})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "2 occurrences of checkout")
	assert.Contains(t, err.Error(), "[3] checkout ok")
}

func TestBuildWhereClause(t *testing.T) {
	items, ok := schema.Default.Table(schema.Items)
	require.True(t, ok)
	bindings := map[string]int64{"atta": 7}

	sql, args, err := buildWhereClause(items, map[string]any{
		"id":       "$atta",
		"barcode":  nil,
		"category": "Grocery",
	}, bindings)
	require.NoError(t, err)
	assert.Equal(t, "barcode IS NULL AND category = ? AND id = ?", sql)
	assert.Equal(t, []any{"Grocery", int64(7)}, args)

	sql, args, err = buildWhereClause(items, nil, bindings)
	require.NoError(t, err)
	assert.Empty(t, sql)
	assert.Empty(t, args)

	_, _, err = buildWhereClause(items, map[string]any{"id; DROP TABLE items": 1}, bindings)
	assert.ErrorContains(t, err, "unknown column")

	_, _, err = buildWhereClause(items, map[string]any{"id": "$ghost"}, bindings)
	assert.ErrorContains(t, err, "unbound reference $ghost")
}

func TestStateValuesEqual(t *testing.T) {
	tests := []struct {
		name     string
		expected any
		actual   any
		want     bool
	}{
		{"int vs int64", 8, int64(8), true},
		{"int vs integral real", 105, 105.0, true},
		{"float vs real", 52.5, 52.5, true},
		{"float mismatch", 52.5, 52.0, false},
		{"string", "CREDIT", "CREDIT", true},
		{"string vs bytes", "CREDIT", []byte("CREDIT"), true},
		{"string vs int", "8", int64(8), false},
		{"bool true vs 1", true, int64(1), true},
		{"bool false vs 0", false, int64(0), true},
		{"bool vs 2", false, int64(2), false},
		{"nil vs nil", nil, nil, true},
		{"nil vs value", nil, int64(0), false},
		{"value vs nil", 0, nil, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, stateValuesEqual(tt.expected, tt.actual))
		})
	}
}

func TestEvaluateAssertions_NoStore(t *testing.T) {
	errs := EvaluateAssertions(NewResult(), []Assertion{{Type: AssertRowCount, Table: "items"}}, nil)
	require.Len(t, errs, 1)
	assert.Contains(t, errs[0], "requires database context")
}

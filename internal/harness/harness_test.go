package harness

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/kirana/internal/model"
)

func runYAML(t *testing.T, content string) *Result {
	t.Helper()
	s, err := ParseScenario([]byte(content))
	require.NoError(t, err)
	result, err := Run(context.Background(), s)
	require.NoError(t, err)
	return result
}

func TestRun_CreditCheckout(t *testing.T) {
	s, err := LoadScenario("testdata/scenarios/credit_checkout.yaml")
	require.NoError(t, err)

	result, err := Run(context.Background(), s)
	require.NoError(t, err)
	require.True(t, result.Pass, "errors: %v", result.Errors)

	require.Len(t, result.Trace, 3)
	assert.Equal(t, []string{"items", "outbox", "parties", "transaction_items", "transactions"}, result.Trace[2].Touched)

	require.NotNil(t, result.State)
	require.Len(t, result.State.Transactions, 1)
	sale := result.State.Transactions[0]
	assert.Equal(t, "Sale - 1 items (CREDIT)", sale.Title)
	assert.Equal(t, 105.0, sale.Amount)
	require.Len(t, sale.Items, 1)
	assert.Equal(t, "Atta", sale.Items[0].ItemNameSnapshot)
	assert.Equal(t, int64(3), result.State.OutboxPending)
}

func TestRun_VoidSale(t *testing.T) {
	s, err := LoadScenario("testdata/scenarios/void_sale.yaml")
	require.NoError(t, err)

	result, err := Run(context.Background(), s)
	require.NoError(t, err)
	require.True(t, result.Pass, "errors: %v", result.Errors)

	last := result.Trace[len(result.Trace)-1]
	assert.Equal(t, "adjust_stock", last.Op)
	assert.Equal(t, "NOT_FOUND", last.Error)
	assert.Empty(t, last.Touched)
	assert.Empty(t, result.State.Transactions)
}

func TestRun_UnexpectedErrorStopsSteps(t *testing.T) {
	result := runYAML(t, `
name: stop
description: "a failing step ends the run"
steps:
  - op: soft_delete
    args: { id: 42 }
  - op: add_item
    args: { name: Never, price: 1, category: X }
`)
	assert.False(t, result.Pass)
	require.Len(t, result.Trace, 1)
	assert.Equal(t, "NOT_FOUND", result.Trace[0].Error)
	require.Len(t, result.Errors, 1)
	assert.Contains(t, result.Errors[0], "steps[0] soft_delete: unexpected error")
	assert.Empty(t, result.State.Items)
}

func TestRun_ExpectedErrorButSuccess(t *testing.T) {
	result := runYAML(t, `
name: no_error
description: "expect_error on a succeeding step fails the run"
steps:
  - op: add_item
    args: { name: Atta, price: 1, category: X }
    expect_error: CONSTRAINT_VIOLATION
`)
	assert.False(t, result.Pass)
	require.Len(t, result.Errors, 1)
	assert.Contains(t, result.Errors[0], "expected error CONSTRAINT_VIOLATION, got success")
}

func TestRun_WrongErrorCode(t *testing.T) {
	result := runYAML(t, `
name: wrong_code
description: "a blank name is a constraint violation, not a missing row"
steps:
  - op: add_item
    args: { name: "  ", price: 1, category: X }
    expect_error: NOT_FOUND
`)
	assert.False(t, result.Pass)
	require.Len(t, result.Errors, 1)
	assert.Contains(t, result.Errors[0], "expected error NOT_FOUND, got CONSTRAINT_VIOLATION")
}

func TestRun_UnboundReference(t *testing.T) {
	result := runYAML(t, `
name: unbound
description: "references must be bound by an earlier step"
steps:
  - op: adjust_stock
    args: { item: $ghost, delta: 1 }
`)
	assert.False(t, result.Pass)
	assert.Empty(t, result.Trace)
	require.Len(t, result.Errors, 1)
	assert.Contains(t, result.Errors[0], "unbound reference $ghost")
}

func TestRun_FailedAssertion(t *testing.T) {
	result := runYAML(t, `
name: wrong_stock
description: "final_state reports the mismatching field"
steps:
  - op: add_item
    as: atta
    args: { name: Atta, price: 52.5, stock: 10, category: Grocery }
assertions:
  - type: final_state
    table: items
    where: { id: $atta }
    expect: { stock: 11 }
`)
	assert.False(t, result.Pass)
	require.Len(t, result.Errors, 1)
	assert.Contains(t, result.Errors[0], "Assertion failed: final_state")
	assert.Contains(t, result.Errors[0], `field "stock" = 10`)
}

func TestRun_SoftDeleteAndNullFilters(t *testing.T) {
	result := runYAML(t, `
name: soft_delete
description: "soft-deleted items keep their row"
steps:
  - op: add_item
    as: atta
    args: { name: Atta, price: 52.5, stock: 10, category: Grocery }
  - op: add_item
    args: { name: Soap, price: 30, stock: 4, category: Household, barcode: "8901030" }
  - op: soft_delete
    args: { id: $atta }
assertions:
  - type: final_state
    table: items
    where: { id: $atta }
    expect: { isDeleted: true, barcode: null }
  - type: row_count
    table: items
    where: { barcode: null }
    count: 1
  - type: row_count
    table: items
    where: { isDeleted: false }
    count: 1
`)
	require.True(t, result.Pass, "errors: %v", result.Errors)
	require.Len(t, result.State.Items, 2)
	assert.True(t, result.State.Items[0].IsDeleted)
}

func TestRun_PaymentsAndOutbox(t *testing.T) {
	result := runYAML(t, `
name: payments
description: "payments move balances and outbox rows can be retried and cleared"
steps:
  - op: add_party
    as: mills
    args: { name: Mills, phone: "9845000001", type: VENDOR }
  - op: record_vendor_purchase
    args: { party: $mills, amount: 500, mode: CREDIT, note: flour }
  - op: record_payment
    args: { party: $mills, amount: 200, mode: CASH }
  - op: mark_outbox_done
    args: { id: 1 }
  - op: mark_outbox_failed
    args: { id: 2, error: timeout }
  - op: retry_failed_outbox
  - op: clear_done_outbox
assertions:
  - type: final_state
    table: parties
    where: { id: $mills }
    expect: { balance: -300 }
  - type: final_state
    table: transactions
    where: { title: "Payment to Mills" }
    expect: { type: EXPENSE, amount: 200, vendorId: $mills }
  - type: final_state
    table: outbox
    where: { id: 2 }
    expect: { status: PENDING, error: null }
  - type: row_count
    table: outbox
    count: 2
`)
	require.True(t, result.Pass, "errors: %v", result.Errors)
	assert.Equal(t, int64(2), result.State.OutboxPending)
}

func TestRun_Reminders(t *testing.T) {
	result := runYAML(t, `
name: reminders
description: "reminders can be completed and deleted"
steps:
  - op: add_reminder
    as: call
    args: { title: Call distributor, due_at: 1705400000000 }
  - op: add_reminder
    as: stale
    args: { title: Old note, due_at: 1705400000000 }
  - op: mark_reminder_done
    args: { id: $call }
  - op: delete_reminder
    args: { id: $stale }
assertions:
  - type: final_state
    table: reminders
    where: { id: $call }
    expect: { isDone: true, type: GENERAL }
  - type: row_count
    table: reminders
    count: 1
`)
	require.True(t, result.Pass, "errors: %v", result.Errors)
	require.Len(t, result.State.Reminders, 1)
	assert.Equal(t, model.ReminderGeneral, result.State.Reminders[0].Type)
}

func TestRun_Isolated(t *testing.T) {
	content := `
name: isolated
description: "each run starts from an empty database"
steps:
  - op: add_item
    as: atta
    args: { name: Atta, price: 1, category: X }
`
	first := runYAML(t, content)
	second := runYAML(t, content)
	assert.Equal(t, first.Trace, second.Trace)
	assert.Equal(t, int64(1), second.Trace[0].ID)
}

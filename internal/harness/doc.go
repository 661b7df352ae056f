// Package harness runs scripted ledger scenarios for conformance testing.
//
// A scenario is a YAML file naming a sequence of ledger operations. The
// harness runs them against a fresh database with a stepping clock and
// sequential outbox op ids, records a trace of what each step did, and
// checks assertions against the trace and the final tables.
//
// # Scenario Format
//
//	name: credit_checkout
//	description: "A credit sale raises the customer's balance"
//	steps:
//	  - op: add_item
//	    as: atta
//	    args: { name: Atta, price: 52.5, stock: 10 }
//	  - op: add_party
//	    as: ravi
//	    args: { name: Ravi, phone: "9845012345", type: CUSTOMER }
//	  - op: checkout
//	    as: sale
//	    args:
//	      lines: [{ item_id: $atta, qty: 2 }]
//	      payment_mode: CREDIT
//	      customer_id: $ravi
//	assertions:
//	  - type: final_state
//	    table: parties
//	    where: { id: $ravi }
//	    expect: { balance: 105 }
//	  - type: row_count
//	    table: transaction_items
//	    where: { transactionId: $sale }
//	    count: 1
//
// A step's "as" binds the id it returns; "$name" in later args, where
// filters and expected values is replaced by that id. A step with
// expect_error must fail with that store error code (NOT_FOUND,
// CONSTRAINT_VIOLATION and so on).
//
// # Assertion Types
//
//   - final_state: exactly one row matches where and has the expect values
//   - row_count: count rows match where
//   - trace_count: an op ran exactly count times
//   - trace_order: ops first ran in the given order
//
// # Golden Files
//
// RunWithGolden compares the trace and final state against
// testdata/golden/<name>.golden. Regenerate with
//
//	go test ./internal/harness -update
package harness

// Package ledger implements the shop's business operations on top of the
// store and the invalidation engine.
//
// Every mutating method is one atomic unit. The unit also appends the outbox
// rows describing the change, so a change and its sync record commit or roll
// back together. Custom compositions use Atomic and the Writer primitives.
//
// Balances follow one sign convention: a customer's positive balance is owed
// to the shop, a vendor's negative balance is owed by the shop. Neither stock
// nor balances are clamped.
//
// Live queries (the Watch* methods) re-run when a commit touches one of the
// tables they read. Bursts of commits are coalesced, and unchanged results
// are not re-delivered.
package ledger

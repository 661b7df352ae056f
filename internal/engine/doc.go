// Package engine implements the reactive invalidation engine of the Kirana
// ledger: a table-level change tracker and live query subscriptions.
//
// ARCHITECTURE:
//
// Commit → Tracker → Subscription:
// The store reports each commit's touched tables to the Tracker. The tracker
// advances its commit Clock and pokes every registration whose watch set
// intersects the touched set. Each Subscription owns one goroutine that waits
// for a poke, lets a short coalescing window pass, re-runs its fetch and
// delivers the result if it differs from the last one delivered.
//
// Invalidation is coarse on purpose: a subscription re-runs when any row of a
// watched table changed, and deduplication keeps identical results from
// reaching the subscriber.
//
// GUARANTEES:
//
//   - Notify never blocks the writer; pokes coalesce in one-slot channels.
//   - A subscription is never woken for tables outside its watch set.
//   - Deliveries for one subscription are serialized and in version order.
//   - A failing or panicking fetch affects only its own subscriber.
//   - After Cancel returns nothing more is delivered.
package engine

// Package store provides the SQLite-backed transactional store of the Kirana
// ledger.
//
// # Atomic units
//
// All writes go through [Store.RunAtomic]. A unit runs on the single writer
// connection under a process-level lock, so units are serialized and each one
// either commits completely or leaves no trace. On commit the store reports
// which tables changed to every [CommitObserver], in commit order.
//
// Changed tables are collected by the SQLite update hook, which also sees
// rows rewritten by ON DELETE CASCADE and SET NULL actions. The statement's
// own table, plus the registry's dependents on deletes, is always included.
//
// # Statements and repositories
//
// Every write shape enumerated by the schema registry is prepared once at
// open and addressed by key ("items.adjust_stock"). [Repo] wraps the
// per-table shapes with typed insert, update, delete and select helpers
// scanning into the model structs via sqlx.
//
// # Database configuration
//
//   - WAL mode: readers see the last commit while a unit is open
//   - synchronous=NORMAL
//   - busy_timeout=5000 by default
//   - foreign_keys=ON on every connection
//   - reader connections are query_only
//
// # Errors
//
// Driver failures are classified into [Error] values with a [ErrorCode];
// use [IsConstraint], [IsNotFound], [IsConflict] and [IsUnavailable].
package store

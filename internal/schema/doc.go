// Package schema declares the fixed relational schema of the Kirana ledger.
//
// The registry is pure data: table definitions, column constraints, foreign
// keys with their delete actions, and indexes. Everything else in the module
// derives from it:
//   - the store renders DDL from [Registry.DDL] and applies it on open
//   - write statements are enumerated by [Registry.Statements] and prepared once
//   - [Registry.Dependents] answers which tables a delete may reach
//   - live queries declare the tables they read as a [TableSet]
//
// # Referential policy
//
//	transaction_items.transactionId → transactions.id  ON DELETE CASCADE
//	transaction_items.itemId        → items.id         ON DELETE SET NULL
//	items.vendorId                  → parties.id       ON DELETE SET NULL
//	transactions.customerId         → parties.id       ON DELETE SET NULL
//	transactions.vendorId           → parties.id       ON DELETE SET NULL
//
// reminders.refId is deliberately not a foreign key; its target is implied by
// reminders.type.
//
// Column names keep the camelCase spelling of the application's original
// schema so that existing databases and exported payloads line up.
package schema

// Package model defines the ledger's row types.
//
// Struct fields carry db tags for sqlx scanning and named binding, and json
// tags matching the column names. Optional columns are pointers.
package model

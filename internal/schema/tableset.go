package schema

import (
	"sort"
	"strings"
)

// TableID names a table in the registry.
type TableID string

// Tables of the ledger schema.
const (
	Items            TableID = "items"
	Parties          TableID = "parties"
	Transactions     TableID = "transactions"
	TransactionItems TableID = "transaction_items"
	Reminders        TableID = "reminders"
	Outbox           TableID = "outbox"
)

// TableSet is an unordered set of tables.
//
// The zero value is an empty, read-only set; use NewTableSet or Add on a
// non-nil set to build one.
type TableSet map[TableID]struct{}

// NewTableSet returns a set holding the given tables.
func NewTableSet(ids ...TableID) TableSet {
	s := make(TableSet, len(ids))
	for _, id := range ids {
		s[id] = struct{}{}
	}
	return s
}

// Add inserts tables into the set.
func (s TableSet) Add(ids ...TableID) {
	for _, id := range ids {
		s[id] = struct{}{}
	}
}

// Has reports whether id is in the set.
func (s TableSet) Has(id TableID) bool {
	_, ok := s[id]
	return ok
}

// Len returns the number of tables in the set.
func (s TableSet) Len() int {
	return len(s)
}

// Intersects reports whether s and other share at least one table.
func (s TableSet) Intersects(other TableSet) bool {
	small, large := s, other
	if len(small) > len(large) {
		small, large = large, small
	}
	for id := range small {
		if _, ok := large[id]; ok {
			return true
		}
	}
	return false
}

// Union returns a new set with the tables of both sets.
func (s TableSet) Union(other TableSet) TableSet {
	out := make(TableSet, len(s)+len(other))
	for id := range s {
		out[id] = struct{}{}
	}
	for id := range other {
		out[id] = struct{}{}
	}
	return out
}

// Clone returns an independent copy of the set.
func (s TableSet) Clone() TableSet {
	return s.Union(nil)
}

// Sorted returns the tables in lexical order.
func (s TableSet) Sorted() []TableID {
	out := make([]TableID, 0, len(s))
	for id := range s {
		out = append(out, id)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// String renders the set as "{a, b}" in lexical order.
func (s TableSet) String() string {
	ids := s.Sorted()
	parts := make([]string, len(ids))
	for i, id := range ids {
		parts[i] = string(id)
	}
	return "{" + strings.Join(parts, ", ") + "}"
}

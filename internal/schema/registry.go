package schema

import "fmt"

// Version is the schema version recorded in PRAGMA user_version.
const Version = 1

// Registry holds table definitions in dependency order (referenced tables
// before the tables that reference them).
type Registry struct {
	order  []TableID
	tables map[TableID]Table
}

// NewRegistry builds a registry from tables given in dependency order.
// It panics on a duplicate table, which is a programming error.
func NewRegistry(tables ...Table) *Registry {
	r := &Registry{tables: make(map[TableID]Table, len(tables))}
	for _, t := range tables {
		if _, dup := r.tables[t.ID]; dup {
			panic(fmt.Sprintf("schema: duplicate table %q", t.ID))
		}
		r.order = append(r.order, t.ID)
		r.tables[t.ID] = t
	}
	return r
}

// Table returns the definition of id.
func (r *Registry) Table(id TableID) (Table, bool) {
	t, ok := r.tables[id]
	return t, ok
}

// Tables returns all definitions in dependency order.
func (r *Registry) Tables() []Table {
	out := make([]Table, len(r.order))
	for i, id := range r.order {
		out[i] = r.tables[id]
	}
	return out
}

// Dependents returns the tables whose rows may change when rows of id are
// deleted: every table holding a CASCADE or SET NULL foreign key into id,
// followed transitively through cascades.
func (r *Registry) Dependents(id TableID) TableSet {
	out := NewTableSet()
	var walk func(TableID)
	walk = func(parent TableID) {
		for _, childID := range r.order {
			for _, fk := range r.tables[childID].ForeignKeys {
				if fk.RefTable != parent || fk.OnDelete == NoAction {
					continue
				}
				if out.Has(childID) {
					continue
				}
				out.Add(childID)
				if fk.OnDelete == Cascade {
					walk(childID)
				}
			}
		}
	}
	walk(id)
	return out
}

// Validate checks that foreign keys and indexes refer to existing tables and
// columns, and that every referenced table is declared earlier.
func (r *Registry) Validate() error {
	seen := NewTableSet()
	for _, id := range r.order {
		t := r.tables[id]
		if t.PrimaryKey == "" {
			return fmt.Errorf("table %s: missing primary key", id)
		}
		for _, fk := range t.ForeignKeys {
			if _, ok := t.Column(fk.Column); !ok {
				return fmt.Errorf("table %s: foreign key on unknown column %q", id, fk.Column)
			}
			ref, ok := r.tables[fk.RefTable]
			if !ok {
				return fmt.Errorf("table %s: foreign key to unknown table %q", id, fk.RefTable)
			}
			if !seen.Has(fk.RefTable) {
				return fmt.Errorf("table %s: references %s before it is declared", id, fk.RefTable)
			}
			if _, ok := ref.Column(fk.RefColumn); !ok {
				return fmt.Errorf("table %s: foreign key to unknown column %s.%s", id, fk.RefTable, fk.RefColumn)
			}
			if fk.OnDelete == SetNull {
				if c, _ := t.Column(fk.Column); !c.Nullable {
					return fmt.Errorf("table %s: SET NULL on non-nullable column %q", id, fk.Column)
				}
			}
		}
		for _, idx := range t.Indexes {
			for _, col := range idx.Columns {
				if _, ok := t.Column(col); !ok {
					return fmt.Errorf("table %s: index %s on unknown column %q", id, idx.Name, col)
				}
			}
		}
		seen.Add(id)
	}
	return nil
}

// Default is the ledger schema.
var Default = NewRegistry(
	Table{
		ID:         Parties,
		PrimaryKey: "id",
		Columns: []Column{
			{Name: "name", Type: Text},
			{Name: "phone", Type: Text},
			{Name: "type", Type: Text},
			{Name: "gstNumber", Type: Text, Nullable: true},
			{Name: "balance", Type: Real, Default: "0"},
		},
		Indexes: []Index{
			{Name: "idx_parties_type_phone", Columns: []string{"type", "phone"}},
		},
	},
	Table{
		ID:         Items,
		PrimaryKey: "id",
		Columns: []Column{
			{Name: "name", Type: Text},
			{Name: "price", Type: Real},
			{Name: "stock", Type: Integer, Default: "0"},
			{Name: "category", Type: Text},
			{Name: "rackLocation", Type: Text, Nullable: true},
			{Name: "marginPercentage", Type: Real, Default: "0"},
			{Name: "barcode", Type: Text, Nullable: true},
			{Name: "costPrice", Type: Real, Default: "0"},
			{Name: "gstPercentage", Type: Real, Nullable: true},
			{Name: "reorderPoint", Type: Integer, Default: "0"},
			{Name: "vendorId", Type: Integer, Nullable: true},
			{Name: "imageUri", Type: Text, Nullable: true},
			{Name: "expiryDateMillis", Type: Integer, Nullable: true},
			{Name: "isDeleted", Type: Integer, Default: "0"},
		},
		ForeignKeys: []ForeignKey{
			{Column: "vendorId", RefTable: Parties, RefColumn: "id", OnDelete: SetNull},
		},
		Indexes: []Index{
			{Name: "idx_items_barcode", Columns: []string{"barcode"}},
			{Name: "idx_items_vendorId", Columns: []string{"vendorId"}},
			{Name: "idx_items_isDeleted_name", Columns: []string{"isDeleted", "name"}},
		},
	},
	Table{
		ID:         Transactions,
		PrimaryKey: "id",
		Columns: []Column{
			{Name: "title", Type: Text},
			{Name: "type", Type: Text},
			{Name: "amount", Type: Real},
			{Name: "date", Type: Integer},
			{Name: "time", Type: Text},
			{Name: "customerId", Type: Integer, Nullable: true},
			{Name: "vendorId", Type: Integer, Nullable: true},
			{Name: "paymentMode", Type: Text},
		},
		ForeignKeys: []ForeignKey{
			{Column: "customerId", RefTable: Parties, RefColumn: "id", OnDelete: SetNull},
			{Column: "vendorId", RefTable: Parties, RefColumn: "id", OnDelete: SetNull},
		},
		Indexes: []Index{
			{Name: "idx_transactions_date", Columns: []string{"date"}},
			{Name: "idx_transactions_customerId", Columns: []string{"customerId"}},
			{Name: "idx_transactions_vendorId", Columns: []string{"vendorId"}},
		},
	},
	Table{
		ID:         TransactionItems,
		PrimaryKey: "id",
		Columns: []Column{
			{Name: "transactionId", Type: Integer},
			{Name: "itemId", Type: Integer, Nullable: true},
			{Name: "itemNameSnapshot", Type: Text},
			{Name: "qty", Type: Integer},
			{Name: "price", Type: Real},
		},
		ForeignKeys: []ForeignKey{
			{Column: "transactionId", RefTable: Transactions, RefColumn: "id", OnDelete: Cascade},
			{Column: "itemId", RefTable: Items, RefColumn: "id", OnDelete: SetNull},
		},
		Indexes: []Index{
			{Name: "idx_transaction_items_transactionId", Columns: []string{"transactionId"}},
			{Name: "idx_transaction_items_itemId", Columns: []string{"itemId"}},
		},
	},
	Table{
		ID:         Reminders,
		PrimaryKey: "id",
		Columns: []Column{
			{Name: "title", Type: Text},
			{Name: "type", Type: Text},
			{Name: "refId", Type: Integer, Nullable: true},
			{Name: "dueAt", Type: Integer},
			{Name: "note", Type: Text, Nullable: true},
			{Name: "isDone", Type: Integer, Default: "0"},
		},
		Indexes: []Index{
			{Name: "idx_reminders_isDone_dueAt", Columns: []string{"isDone", "dueAt"}},
		},
	},
	Table{
		ID:         Outbox,
		PrimaryKey: "id",
		Columns: []Column{
			{Name: "opId", Type: Text},
			{Name: "entityType", Type: Text},
			{Name: "entityId", Type: Text, Nullable: true},
			{Name: "op", Type: Text},
			{Name: "payloadJson", Type: Text, Nullable: true},
			{Name: "createdAtMillis", Type: Integer},
			{Name: "lastAttemptAtMillis", Type: Integer, Nullable: true},
			{Name: "status", Type: Text, Default: "'PENDING'"},
			{Name: "error", Type: Text, Nullable: true},
		},
		Indexes: []Index{
			{Name: "idx_outbox_opId", Columns: []string{"opId"}, Unique: true},
			{Name: "idx_outbox_status_created", Columns: []string{"status", "createdAtMillis"}},
		},
	},
)

package schema

// ColumnType is the SQLite storage class of a column.
type ColumnType string

const (
	Integer ColumnType = "INTEGER"
	Real    ColumnType = "REAL"
	Text    ColumnType = "TEXT"
)

// DeleteAction is the ON DELETE policy of a foreign key.
type DeleteAction string

const (
	NoAction DeleteAction = "NO ACTION"
	Cascade  DeleteAction = "CASCADE"
	SetNull  DeleteAction = "SET NULL"
)

// Column describes one column of a table.
type Column struct {
	Name     string
	Type     ColumnType
	Nullable bool
	// Default is a SQL literal ("0", "'PENDING'"); empty means no default.
	Default string
}

// ForeignKey links Column to RefTable.RefColumn.
type ForeignKey struct {
	Column    string
	RefTable  TableID
	RefColumn string
	OnDelete  DeleteAction
}

// Index is a secondary index over one or more columns.
type Index struct {
	Name    string
	Columns []string
	Unique  bool
}

// Table is a table definition. Every table has an INTEGER PRIMARY KEY
// AUTOINCREMENT column named by PrimaryKey, so ids are never reused.
type Table struct {
	ID          TableID
	PrimaryKey  string
	Columns     []Column
	ForeignKeys []ForeignKey
	Indexes     []Index
}

// Column returns the named column (primary key included).
func (t Table) Column(name string) (Column, bool) {
	if name == t.PrimaryKey {
		return Column{Name: name, Type: Integer}, true
	}
	for _, c := range t.Columns {
		if c.Name == name {
			return c, true
		}
	}
	return Column{}, false
}

// ColumnNames returns the non-key column names in declaration order.
func (t Table) ColumnNames() []string {
	names := make([]string, len(t.Columns))
	for i, c := range t.Columns {
		names[i] = c.Name
	}
	return names
}

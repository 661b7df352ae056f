package schema

import (
	"fmt"
	"strings"
)

// DDL renders the idempotent CREATE statements for every table and index,
// in dependency order.
func (r *Registry) DDL() []string {
	var out []string
	for _, t := range r.Tables() {
		out = append(out, createTable(t))
		for _, idx := range t.Indexes {
			out = append(out, createIndex(t.ID, idx))
		}
	}
	return out
}

func createTable(t Table) string {
	var b strings.Builder
	fmt.Fprintf(&b, "CREATE TABLE IF NOT EXISTS %s (\n", t.ID)
	fmt.Fprintf(&b, "\t%s INTEGER PRIMARY KEY AUTOINCREMENT", t.PrimaryKey)
	for _, c := range t.Columns {
		fmt.Fprintf(&b, ",\n\t%s %s", c.Name, c.Type)
		if !c.Nullable {
			b.WriteString(" NOT NULL")
		}
		if c.Default != "" {
			b.WriteString(" DEFAULT " + c.Default)
		}
	}
	for _, fk := range t.ForeignKeys {
		fmt.Fprintf(&b, ",\n\tFOREIGN KEY (%s) REFERENCES %s(%s) ON DELETE %s",
			fk.Column, fk.RefTable, fk.RefColumn, fk.OnDelete)
	}
	b.WriteString("\n)")
	return b.String()
}

func createIndex(table TableID, idx Index) string {
	unique := ""
	if idx.Unique {
		unique = "UNIQUE "
	}
	return fmt.Sprintf("CREATE %sINDEX IF NOT EXISTS %s ON %s(%s)",
		unique, idx.Name, table, strings.Join(idx.Columns, ", "))
}

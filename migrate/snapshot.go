// Package migrate implements the migration generator and runner (spec
// section 5): a schema snapshot diffed against the previously generated
// snapshot to synthesize forward/backward SQL, plus a `migrations` table
// runner driving up/down/status over the generated files. Grounded in
// xataio-pgroll's pkg/state (a history of applied migrations tracked in a
// dedicated table). The schema model is this package's own
// TableSnapshot/ColumnSnapshot; ToAtlasSchema exports it as an
// ariga.io/atlas/sql/schema value.
package migrate

import (
	"sort"

	"github.com/loomcms/loom/field"
	"github.com/loomcms/loom/schemacompiler"
)

// ColumnSnapshot is one column's persisted shape in a schema snapshot.
type ColumnSnapshot struct {
	Name    string `json:"name"`
	SQLType string `json:"sqlType"`
	NotNull bool   `json:"notNull"`
	Unique  bool   `json:"unique"`
}

// TableSnapshot is one table's persisted shape.
type TableSnapshot struct {
	Name    string           `json:"name"`
	Columns []ColumnSnapshot `json:"columns"`
}

// Snapshot is the full set of physical tables a compiled schema set (plus
// the engine's own system tables) implies, serialized alongside each
// generated migration so the next `generate` run can diff against it.
type Snapshot struct {
	Tables []TableSnapshot `json:"tables"`
}

// systemTables are the engine's own bootstrap tables (spec sections 4.6
// and this package): not owned by any collection, but still part of the
// physical schema a fresh database needs.
func systemTables() []TableSnapshot {
	return []TableSnapshot{
		{
			Name: "realtime_log",
			Columns: []ColumnSnapshot{
				{Name: "seq", SQLType: "bigserial", NotNull: true, Unique: true},
				{Name: "resource_type", SQLType: "text", NotNull: true},
				{Name: "resource", SQLType: "text", NotNull: true},
				{Name: "operation", SQLType: "text", NotNull: true},
				{Name: "record_id", SQLType: "text", NotNull: true},
				{Name: "locale", SQLType: "text"},
				{Name: "payload", SQLType: "jsonb"},
				{Name: "actor_id", SQLType: "text"},
				{Name: "request_id", SQLType: "text"},
				{Name: "created_at", SQLType: "timestamptz", NotNull: true},
			},
		},
		{
			Name: "search_index",
			Columns: []ColumnSnapshot{
				{Name: "collection", SQLType: "text", NotNull: true},
				{Name: "record_id", SQLType: "text", NotNull: true},
				{Name: "locale", SQLType: "text", NotNull: true},
				{Name: "title", SQLType: "text", NotNull: true},
				{Name: "content", SQLType: "text", NotNull: true},
				{Name: "metadata", SQLType: "jsonb"},
			},
		},
		{
			Name: "migrations",
			Columns: []ColumnSnapshot{
				{Name: "version", SQLType: "text", NotNull: true, Unique: true},
				{Name: "name", SQLType: "text", NotNull: true},
				{Name: "applied_at", SQLType: "timestamptz", NotNull: true},
			},
		},
	}
}

// BuildSnapshot derives the full physical snapshot from a compiled schema
// set: every collection's main/i18n/versions tables plus the engine's
// system tables, sorted by name for a stable diff.
func BuildSnapshot(schemas schemacompiler.CompiledSet) Snapshot {
	var tables []TableSnapshot
	for _, compiled := range schemas {
		tables = append(tables, tableSnapshotOf(compiled.MainTable.Name, compiled.MainTable.Columns))
		if compiled.I18nTable != nil {
			tables = append(tables, tableSnapshotOf(compiled.I18nTable.Name, compiled.I18nTable.Columns))
		}
		if compiled.VersionsTable != nil {
			tables = append(tables, tableSnapshotOf(compiled.VersionsTable.Name, compiled.VersionsTable.Columns))
		}
	}
	tables = append(tables, systemTables()...)

	sort.Slice(tables, func(i, j int) bool { return tables[i].Name < tables[j].Name })
	return Snapshot{Tables: tables}
}

func tableSnapshotOf(name string, cols []field.ColumnSpec) TableSnapshot {
	out := TableSnapshot{Name: name}
	for _, c := range cols {
		out.Columns = append(out.Columns, ColumnSnapshot{
			Name:    c.Name,
			SQLType: c.SQLType,
			NotNull: c.NotNull,
			Unique:  c.Unique,
		})
	}
	return out
}

func (s Snapshot) table(name string) (TableSnapshot, bool) {
	for _, t := range s.Tables {
		if t.Name == name {
			return t, true
		}
	}
	return TableSnapshot{}, false
}

func (t TableSnapshot) column(name string) (ColumnSnapshot, bool) {
	for _, c := range t.Columns {
		if c.Name == name {
			return c, true
		}
	}
	return ColumnSnapshot{}, false
}

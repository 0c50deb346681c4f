package migrate

import (
	"strings"

	"ariga.io/atlas/sql/schema"
)

// ToAtlasSchema renders snap as an ariga.io/atlas schema model: the
// canonical typed representation the rest of the Go ecosystem's schema
// tooling (including the teacher's own ent/Atlas integration) builds on.
// Diffing and DDL synthesis in this package operate on the flat
// TableSnapshot/ColumnSnapshot model directly (see diff.go, ddl.go)
// since Atlas's own differ binds to a live sqlx.ExecQuerier connection
// this embeddable engine does not assume its host provides; ToAtlasSchema
// exists so introspection callers get a standard *schema.Schema rather
// than a bespoke shape.
func ToAtlasSchema(name string, snap Snapshot) *schema.Schema {
	s := &schema.Schema{Name: name}
	for _, t := range snap.Tables {
		table := &schema.Table{Name: t.Name, Schema: s}
		for _, c := range t.Columns {
			table.Columns = append(table.Columns, &schema.Column{
				Name: c.Name,
				Type: &schema.ColumnType{
					Type: atlasType(c.SQLType),
					Raw:  c.SQLType,
					Null: !c.NotNull,
				},
			})
		}
		s.Tables = append(s.Tables, table)
	}
	return s
}

// atlasType maps a schemacompiler ColumnSpec.SQLType to the closest Atlas
// generic column type. Unrecognized types fall back to schema.StringType
// with the raw type name preserved, since Atlas always has Raw/T to round
// trip an exact type string even when it has no dedicated Go type for it.
func atlasType(sqlType string) schema.Type {
	t := strings.ToLower(sqlType)
	switch {
	case t == "bigserial" || t == "bigint" || t == "int8":
		return &schema.IntegerType{T: "bigint"}
	case t == "integer" || t == "int" || t == "int4":
		return &schema.IntegerType{T: "integer"}
	case t == "boolean" || t == "bool":
		return &schema.BoolType{T: "boolean"}
	case t == "jsonb":
		return &schema.JSONType{T: "jsonb"}
	case t == "json":
		return &schema.JSONType{T: "json"}
	case strings.HasPrefix(t, "timestamp"):
		return &schema.TimeType{T: t}
	case t == "text" || strings.HasPrefix(t, "varchar") || strings.HasPrefix(t, "character"):
		return &schema.StringType{T: t}
	default:
		return &schema.StringType{T: sqlType}
	}
}

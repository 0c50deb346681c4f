package migrate

import (
	"fmt"
	"strings"
)

// ForwardSQL renders the statement that applies op.
func (op Operation) ForwardSQL() string {
	switch op.Kind {
	case OpCreateTable:
		return createTableSQL(op.NewTable)
	case OpDropTable:
		return fmt.Sprintf("DROP TABLE IF EXISTS %s;", quoteIdent(op.Table))
	case OpAddColumn:
		return fmt.Sprintf("ALTER TABLE %s ADD COLUMN %s;", quoteIdent(op.Table), columnDefSQL(op.NewColumn))
	case OpDropColumn:
		return fmt.Sprintf("ALTER TABLE %s DROP COLUMN IF EXISTS %s;", quoteIdent(op.Table), quoteIdent(op.OldColumn.Name))
	case OpAlterColumn:
		return alterColumnSQL(op.Table, op.OldColumn, op.NewColumn)
	default:
		return ""
	}
}

// BackwardSQL renders the statement that reverts op, used by `migrate down`.
func (op Operation) BackwardSQL() string {
	switch op.Kind {
	case OpCreateTable:
		return fmt.Sprintf("DROP TABLE IF EXISTS %s;", quoteIdent(op.Table))
	case OpDropTable:
		return createTableSQL(op.OldTable)
	case OpAddColumn:
		return fmt.Sprintf("ALTER TABLE %s DROP COLUMN IF EXISTS %s;", quoteIdent(op.Table), quoteIdent(op.NewColumn.Name))
	case OpDropColumn:
		return fmt.Sprintf("ALTER TABLE %s ADD COLUMN %s;", quoteIdent(op.Table), columnDefSQL(op.OldColumn))
	case OpAlterColumn:
		return alterColumnSQL(op.Table, op.NewColumn, op.OldColumn)
	default:
		return ""
	}
}

func createTableSQL(t TableSnapshot) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "CREATE TABLE IF NOT EXISTS %s (\n", quoteIdent(t.Name))
	defs := make([]string, len(t.Columns))
	for i, c := range t.Columns {
		defs[i] = "    " + columnDefSQL(c)
	}
	sb.WriteString(strings.Join(defs, ",\n"))
	sb.WriteString("\n);")
	return sb.String()
}

func columnDefSQL(c ColumnSnapshot) string {
	parts := []string{quoteIdent(c.Name), pgType(c.SQLType)}
	if c.NotNull {
		parts = append(parts, "NOT NULL")
	}
	if c.Unique {
		parts = append(parts, "UNIQUE")
	}
	return strings.Join(parts, " ")
}

// pgType passes SQLType through unchanged: schemacompiler already emits
// Postgres-native type names (text, jsonb, bigserial, timestamptz, ...).
func pgType(sqlType string) string { return sqlType }

// alterColumnSQL emits the minimal set of ALTER COLUMN clauses needed to
// move a column from "from" to "to"'s NOT NULL/UNIQUE shape. Constraint
// drops use IF EXISTS so a migration replayed against a database where the
// constraint was never successfully created (a partially-applied prior
// migration) doesn't fail.
func alterColumnSQL(table string, from, to ColumnSnapshot) string {
	var stmts []string
	qt := quoteIdent(table)
	qc := quoteIdent(to.Name)

	if from.NotNull != to.NotNull {
		if to.NotNull {
			stmts = append(stmts, fmt.Sprintf("ALTER TABLE %s ALTER COLUMN %s SET NOT NULL;", qt, qc))
		} else {
			stmts = append(stmts, fmt.Sprintf("ALTER TABLE %s ALTER COLUMN %s DROP NOT NULL;", qt, qc))
		}
	}
	if from.Unique != to.Unique {
		constraint := quoteIdent(table + "_" + to.Name + "_key")
		if to.Unique {
			stmts = append(stmts, fmt.Sprintf("ALTER TABLE %s ADD CONSTRAINT %s UNIQUE (%s);", qt, constraint, qc))
		} else {
			stmts = append(stmts, fmt.Sprintf("ALTER TABLE %s DROP CONSTRAINT IF EXISTS %s;", qt, constraint))
		}
	}
	if from.SQLType != to.SQLType {
		stmts = append(stmts, fmt.Sprintf("ALTER TABLE %s ALTER COLUMN %s TYPE %s USING %s::%s;", qt, qc, pgType(to.SQLType), qc, pgType(to.SQLType)))
	}
	return strings.Join(stmts, "\n")
}

func quoteIdent(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}

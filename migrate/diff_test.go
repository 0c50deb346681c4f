package migrate

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDiffDetectsCreateAndDropTable(t *testing.T) {
	t.Parallel()
	old := Snapshot{}
	next := Snapshot{Tables: []TableSnapshot{
		{Name: "posts", Columns: []ColumnSnapshot{{Name: "id", SQLType: "text", NotNull: true}}},
	}}

	ops := Diff(old, next)
	require.Len(t, ops, 1)
	assert.Equal(t, OpCreateTable, ops[0].Kind)
	assert.Equal(t, "posts", ops[0].Table)

	// Reverse direction drops it.
	ops = Diff(next, old)
	require.Len(t, ops, 1)
	assert.Equal(t, OpDropTable, ops[0].Kind)
}

func TestDiffDetectsColumnChanges(t *testing.T) {
	t.Parallel()
	old := Snapshot{Tables: []TableSnapshot{
		{Name: "posts", Columns: []ColumnSnapshot{
			{Name: "id", SQLType: "text", NotNull: true},
			{Name: "title", SQLType: "text"},
		}},
	}}
	next := Snapshot{Tables: []TableSnapshot{
		{Name: "posts", Columns: []ColumnSnapshot{
			{Name: "id", SQLType: "text", NotNull: true},
			{Name: "title", SQLType: "text", NotNull: true},
			{Name: "views", SQLType: "integer"},
		}},
	}}

	ops := Diff(old, next)
	var kinds []OpKind
	for _, op := range ops {
		kinds = append(kinds, op.Kind)
	}
	assert.Contains(t, kinds, OpAddColumn)
	assert.Contains(t, kinds, OpAlterColumn)
}

func TestDiffDetectsDropColumn(t *testing.T) {
	t.Parallel()
	old := Snapshot{Tables: []TableSnapshot{
		{Name: "posts", Columns: []ColumnSnapshot{{Name: "legacy", SQLType: "text"}}},
	}}
	next := Snapshot{Tables: []TableSnapshot{
		{Name: "posts", Columns: []ColumnSnapshot{}},
	}}

	ops := Diff(old, next)
	require.Len(t, ops, 1)
	assert.Equal(t, OpDropColumn, ops[0].Kind)
	assert.Equal(t, "legacy", ops[0].OldColumn.Name)
}

func TestForwardAndBackwardSQLRoundTrip(t *testing.T) {
	t.Parallel()
	op := Operation{
		Kind:     OpCreateTable,
		Table:    "posts",
		NewTable: TableSnapshot{Name: "posts", Columns: []ColumnSnapshot{{Name: "id", SQLType: "text", NotNull: true, Unique: true}}},
	}
	assert.Contains(t, op.ForwardSQL(), "CREATE TABLE IF NOT EXISTS \"posts\"")
	assert.Contains(t, op.ForwardSQL(), "\"id\" text NOT NULL UNIQUE")
	assert.Contains(t, op.BackwardSQL(), "DROP TABLE IF EXISTS \"posts\"")
}

func TestDropColumnUsesIfExists(t *testing.T) {
	t.Parallel()
	op := Operation{Kind: OpDropColumn, Table: "posts", OldColumn: ColumnSnapshot{Name: "legacy", SQLType: "text"}}
	assert.Contains(t, op.ForwardSQL(), "DROP COLUMN IF EXISTS \"legacy\"")
}

package migrate

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerateReturnsNilWhenSnapshotsMatch(t *testing.T) {
	t.Parallel()
	snap := Snapshot{Tables: []TableSnapshot{{Name: "posts", Columns: []ColumnSnapshot{{Name: "id", SQLType: "text"}}}}}
	f, err := Generate(snap, snap, "noop", time.Now())
	require.NoError(t, err)
	assert.Nil(t, f)
}

func TestGenerateProducesUpAndDownStatements(t *testing.T) {
	t.Parallel()
	old := Snapshot{}
	next := Snapshot{Tables: []TableSnapshot{
		{Name: "posts", Columns: []ColumnSnapshot{{Name: "id", SQLType: "text", NotNull: true}}},
	}}

	now := time.Date(2026, 7, 31, 12, 0, 0, 0, time.UTC)
	f, err := Generate(old, next, "create_posts", now)
	require.NoError(t, err)
	require.NotNil(t, f)

	assert.Equal(t, "20260731120000", f.Version)
	assert.Equal(t, "20260731120000_create_posts.json", f.FileName())
	require.Len(t, f.Up, 1)
	assert.Contains(t, f.Up[0], "CREATE TABLE")
	require.Len(t, f.Down, 1)
	assert.Contains(t, f.Down[0], "DROP TABLE")

	marshaled, err := f.Marshal()
	require.NoError(t, err)
	roundTripped, err := UnmarshalFile(marshaled)
	require.NoError(t, err)
	assert.Equal(t, f.Version, roundTripped.Version)
	assert.Equal(t, f.Up, roundTripped.Up)
}

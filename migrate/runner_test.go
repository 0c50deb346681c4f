package migrate

import (
	"regexp"
	"testing"
	"testing/fstest"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/require"

	"github.com/loomcms/loom/postgres"
)

func fixtureFS(t *testing.T, files ...*File) fstest.MapFS {
	t.Helper()
	mapFS := fstest.MapFS{}
	for _, f := range files {
		data, err := f.Marshal()
		require.NoError(t, err)
		mapFS[f.FileName()] = &fstest.MapFile{Data: data}
	}
	return mapFS
}

func TestRunnerUpAppliesUnappliedFilesInOrder(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	now := time.Date(2026, 7, 31, 0, 0, 0, 0, time.UTC)
	f, err := Generate(Snapshot{}, Snapshot{Tables: []TableSnapshot{
		{Name: "posts", Columns: []ColumnSnapshot{{Name: "id", SQLType: "text", NotNull: true}}},
	}}, "create_posts", now)
	require.NoError(t, err)

	r := NewRunner(postgres.NewFromDB(db), fixtureFS(t, f))

	mock.ExpectExec(regexp.QuoteMeta(sqlInit)).WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery(regexp.QuoteMeta("SELECT version FROM migrations")).
		WillReturnRows(sqlmock.NewRows([]string{"version"}))

	mock.ExpectBegin()
	for _, stmt := range f.Up {
		mock.ExpectExec(regexp.QuoteMeta(stmt)).WillReturnResult(sqlmock.NewResult(0, 0))
	}
	mock.ExpectCommit()
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO migrations")).
		WithArgs(f.Version, f.Name).
		WillReturnResult(sqlmock.NewResult(0, 1))

	ran, err := r.Up(t.Context())
	require.NoError(t, err)
	require.Equal(t, []string{f.Version}, ran)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestRunnerUpSkipsAlreadyAppliedFiles(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	now := time.Date(2026, 7, 31, 0, 0, 0, 0, time.UTC)
	f, err := Generate(Snapshot{}, Snapshot{Tables: []TableSnapshot{
		{Name: "posts", Columns: []ColumnSnapshot{{Name: "id", SQLType: "text"}}},
	}}, "create_posts", now)
	require.NoError(t, err)

	r := NewRunner(postgres.NewFromDB(db), fixtureFS(t, f))

	mock.ExpectExec(regexp.QuoteMeta(sqlInit)).WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery(regexp.QuoteMeta("SELECT version FROM migrations")).
		WillReturnRows(sqlmock.NewRows([]string{"version"}).AddRow(f.Version))

	ran, err := r.Up(t.Context())
	require.NoError(t, err)
	require.Empty(t, ran)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestRunnerDownRevertsMostRecentlyApplied(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	now := time.Date(2026, 7, 31, 0, 0, 0, 0, time.UTC)
	f, err := Generate(Snapshot{}, Snapshot{Tables: []TableSnapshot{
		{Name: "posts", Columns: []ColumnSnapshot{{Name: "id", SQLType: "text"}}},
	}}, "create_posts", now)
	require.NoError(t, err)

	r := NewRunner(postgres.NewFromDB(db), fixtureFS(t, f))

	mock.ExpectQuery(regexp.QuoteMeta("SELECT version FROM migrations")).
		WillReturnRows(sqlmock.NewRows([]string{"version"}).AddRow(f.Version))

	mock.ExpectBegin()
	for _, stmt := range f.Down {
		mock.ExpectExec(regexp.QuoteMeta(stmt)).WillReturnResult(sqlmock.NewResult(0, 0))
	}
	mock.ExpectCommit()
	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM migrations WHERE version")).
		WithArgs(f.Version).
		WillReturnResult(sqlmock.NewResult(0, 1))

	reverted, err := r.Down(t.Context())
	require.NoError(t, err)
	require.Equal(t, f.Version, reverted)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestRunnerStatusReportListsAppliedAndPending(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	now := time.Date(2026, 7, 31, 0, 0, 0, 0, time.UTC)
	applied, err := Generate(Snapshot{}, Snapshot{Tables: []TableSnapshot{
		{Name: "posts", Columns: []ColumnSnapshot{{Name: "id", SQLType: "text"}}},
	}}, "create_posts", now)
	require.NoError(t, err)
	pending, err := Generate(Snapshot{}, Snapshot{Tables: []TableSnapshot{
		{Name: "tags", Columns: []ColumnSnapshot{{Name: "id", SQLType: "text"}}},
	}}, "create_tags", now.Add(time.Second))
	require.NoError(t, err)

	r := NewRunner(postgres.NewFromDB(db), fixtureFS(t, applied, pending))

	mock.ExpectExec(regexp.QuoteMeta(sqlInit)).WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery(regexp.QuoteMeta("SELECT version FROM migrations")).
		WillReturnRows(sqlmock.NewRows([]string{"version"}).AddRow(applied.Version))

	report, err := r.StatusReport(t.Context())
	require.NoError(t, err)
	require.Len(t, report, 2)
	require.Equal(t, applied.Version, report[0].Version)
	require.True(t, report[0].Applied)
	require.Equal(t, pending.Version, report[1].Version)
	require.False(t, report[1].Applied)
	require.NoError(t, mock.ExpectationsWereMet())
}

package crud

import (
	"regexp"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	cms "github.com/loomcms/loom"
	"github.com/loomcms/loom/access"
	"github.com/loomcms/loom/collection"
	"github.com/loomcms/loom/field"
	"github.com/loomcms/loom/postgres"
	"github.com/loomcms/loom/schemacompiler"
)

func mustCompile(t *testing.T, c *collection.Collection) *schemacompiler.Compiled {
	t.Helper()
	compiled, err := schemacompiler.Compile(c)
	require.NoError(t, err)
	return compiled
}

func TestCreateDeniesWithoutTouchingDB(t *testing.T) {
	t.Parallel()
	c := collection.New("posts", collection.Options{}).
		AddField(field.Text("title")).
		WithAccess(collection.Access{Create: access.Private()})
	compiled := mustCompile(t, c)

	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	e := &Engine{DB: postgres.NewFromDB(db), Schemas: schemacompiler.CompiledSet{"posts": compiled}}
	ac := cms.NewAppContext(t.Context())

	_, err = e.Create(ac, "posts", map[string]any{"title": "hi"})
	require.Error(t, err)
	assert.Equal(t, cms.KindForbidden, cms.KindOf(err))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestCreateUnknownCollectionReturnsNotFound(t *testing.T) {
	t.Parallel()
	db, _, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	e := &Engine{DB: postgres.NewFromDB(db), Schemas: schemacompiler.CompiledSet{}}
	ac := cms.NewAppContext(t.Context())

	_, err = e.Create(ac, "ghosts", map[string]any{})
	require.Error(t, err)
	assert.Equal(t, cms.KindNotFound, cms.KindOf(err))
}

func TestCreateValidationFailureReturnsFieldErrors(t *testing.T) {
	t.Parallel()
	c := collection.New("posts", collection.Options{}).
		AddField(field.Text("title", field.Required())).
		WithAccess(collection.Access{Create: access.Public()})
	compiled := mustCompile(t, c)

	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	e := &Engine{DB: postgres.NewFromDB(db), Schemas: schemacompiler.CompiledSet{"posts": compiled}}
	ac := cms.NewAppContext(t.Context())

	_, err = e.Create(ac, "posts", map[string]any{})
	require.Error(t, err)
	assert.Equal(t, cms.KindValidation, cms.KindOf(err))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestCreateHappyPathInsertsMainRowAndAppendsRealtimeLog(t *testing.T) {
	t.Parallel()
	c := collection.New("posts", collection.Options{Timestamps: true}).
		AddField(field.Text("title")).
		WithAccess(collection.Access{Create: access.Public()})
	compiled := mustCompile(t, c)

	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	e := &Engine{DB: postgres.NewFromDB(db), Schemas: schemacompiler.CompiledSet{"posts": compiled}}
	ac := cms.NewAppContext(t.Context())

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta(`INSERT INTO "posts"`)).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectQuery(regexp.QuoteMeta("INSERT INTO realtime_log")).
		WillReturnRows(sqlmock.NewRows([]string{"seq"}).AddRow(1))
	mock.ExpectCommit()

	record, err := e.Create(ac, "posts", map[string]any{"title": "hello"})
	require.NoError(t, err)
	assert.Equal(t, "hello", record["title"])
	assert.NotEmpty(t, record.ID())
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestCreateRollsBackOnInsertFailure(t *testing.T) {
	t.Parallel()
	c := collection.New("posts", collection.Options{}).
		AddField(field.Text("title")).
		WithAccess(collection.Access{Create: access.Public()})
	compiled := mustCompile(t, c)

	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	e := &Engine{DB: postgres.NewFromDB(db), Schemas: schemacompiler.CompiledSet{"posts": compiled}}
	ac := cms.NewAppContext(t.Context())

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta(`INSERT INTO "posts"`)).
		WillReturnError(assertErr)
	mock.ExpectRollback()

	_, err = e.Create(ac, "posts", map[string]any{"title": "hello"})
	require.Error(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

var assertErr = assertError("boom")

type assertError string

func (e assertError) Error() string { return string(e) }

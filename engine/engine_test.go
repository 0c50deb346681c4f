package engine

import (
	"context"
	"testing"
	"testing/fstest"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	cms "github.com/loomcms/loom"
	"github.com/loomcms/loom/collection"
	"github.com/loomcms/loom/field"
	"github.com/loomcms/loom/jobs"
	"github.com/loomcms/loom/postgres"
)

func testRegistry() *collection.Registry {
	reg := collection.NewRegistry()
	posts := collection.New("posts", collection.Options{Timestamps: true}).
		AddField(field.Text("title"))
	reg.Register(posts)
	return reg
}

type fakeSearch struct{ indexed int }

func (f *fakeSearch) Index(ctx context.Context, doc cms.SearchDocument) error { f.indexed++; return nil }
func (f *fakeSearch) Delete(ctx context.Context, collectionName, recordID string) error { return nil }
func (f *fakeSearch) Query(ctx context.Context, q cms.SearchQuery) (cms.SearchResult, error) {
	return cms.SearchResult{}, nil
}

type noopAdapter struct{}

func (noopAdapter) Capabilities() jobs.Capabilities { return jobs.Capabilities{} }
func (noopAdapter) Publish(ctx context.Context, jobName string, payload []byte, opts cms.EnqueueOptions) (string, error) {
	return "", nil
}
func (noopAdapter) Schedule(ctx context.Context, jobName, cronExpr string, payload []byte, opts cms.EnqueueOptions) error {
	return nil
}
func (noopAdapter) Unschedule(ctx context.Context, jobName string) error { return nil }
func (noopAdapter) Listen(ctx context.Context, handlers map[string]jobs.Handler) error { return nil }
func (noopAdapter) RunOnce(ctx context.Context, handlers map[string]jobs.Handler) (jobs.RunStats, error) {
	return jobs.RunStats{}, nil
}
func (noopAdapter) OnError(fn func(error)) {}
func (noopAdapter) Close() error           { return nil }

func TestNewCompilesRegistryAndWiresCRUD(t *testing.T) {
	cfg := cms.Config{DefaultLocale: "en"}
	e, err := New(cfg, testRegistry(), Options{})
	require.NoError(t, err)
	require.NotNil(t, e.CRUD)
	assert.Contains(t, e.Schemas, "posts")
	assert.Nil(t, e.Indexer, "no Search configured means no indexer")
}

func TestNewRejectsInvalidCollection(t *testing.T) {
	reg := collection.NewRegistry()
	reg.Register(collection.New("empty", collection.Options{})) // no fields
	_, err := New(cms.Config{}, reg, Options{})
	assert.Error(t, err)
}

func TestNewWiresSearchIndexerAndRegistersJob(t *testing.T) {
	fs := &fakeSearch{}
	cfg := cms.Config{DefaultLocale: "en", Search: fs}
	e, err := New(cfg, testRegistry(), Options{JobAdapter: noopAdapter{}})
	require.NoError(t, err)
	require.NotNil(t, e.Indexer)
	require.NotNil(t, e.SearchAPI)
	require.NotNil(t, e.Jobs)
	_, ok := e.Jobs.Definitions()["index-records"]
	assert.True(t, ok)
}

func TestNewHonorsDebounceWindowOverride(t *testing.T) {
	fs := &fakeSearch{}
	cfg := cms.Config{DefaultLocale: "en", Search: fs, SearchConfig: cms.SearchConfig{DebounceWindow: 5 * time.Millisecond}}
	e, err := New(cfg, testRegistry(), Options{})
	require.NoError(t, err)
	require.NotNil(t, e.Indexer)
}

func TestNewWiresMigrationsRunner(t *testing.T) {
	mapFS := fstest.MapFS{}
	cfg := cms.Config{DefaultLocale: "en"}
	e, err := New(cfg, testRegistry(), Options{Migrations: mapFS})
	require.NoError(t, err)
	require.NotNil(t, e.Migrations)
}

func TestSnapshotIncludesRegisteredCollection(t *testing.T) {
	cfg := cms.Config{DefaultLocale: "en"}
	e, err := New(cfg, testRegistry(), Options{})
	require.NoError(t, err)
	snap := e.Snapshot()
	var found bool
	for _, tbl := range snap.Tables {
		if tbl.Name == "posts" {
			found = true
		}
	}
	assert.True(t, found)
}

func TestHealthPingsDBWhenItSupportsPing(t *testing.T) {
	db, mock, err := sqlmock.New(sqlmock.MonitorPingsOption(true))
	require.NoError(t, err)
	defer db.Close()
	mock.ExpectPing()

	cfg := cms.Config{DefaultLocale: "en", DB: postgres.NewFromDB(db)}
	e, err := New(cfg, testRegistry(), Options{})
	require.NoError(t, err)

	require.NoError(t, e.Health(t.Context()))
	require.NoError(t, mock.ExpectationsWereMet())
}

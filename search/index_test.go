package search

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	cms "github.com/loomcms/loom"
	"github.com/loomcms/loom/collection"
)

func TestAutoContentExcludesSystemFieldsAndSorts(t *testing.T) {
	t.Parallel()
	record := cms.Record{
		"id":         "rec-1",
		"created_at": time.Now(),
		"title":      "Hello",
		"views":      42,
		"featured":   true,
	}
	got := autoContent(record)
	assert.Equal(t, "featured: true, title: Hello, views: 42", got)
}

func TestBuildDocumentUsesTitleFieldAndFallsBackToID(t *testing.T) {
	t.Parallel()
	c := collection.New("posts", collection.Options{}).WithSearchable(&collection.SearchableConfig{TitleField: "headline"})

	withTitle := cms.Record{"id": "p1", "headline": "Breaking news"}
	doc := BuildDocument("posts", c, "en", withTitle)
	assert.Equal(t, "Breaking news", doc.Title)
	assert.Equal(t, "p1", doc.RecordID)
	assert.Equal(t, "en", doc.Locale)

	noTitle := cms.Record{"id": "p2"}
	doc = BuildDocument("posts", c, "en", noTitle)
	assert.Equal(t, "p2", doc.Title)
}

func TestBuildDocumentHonorsContentAndMetadataHooks(t *testing.T) {
	t.Parallel()
	c := collection.New("posts", collection.Options{}).WithSearchable(&collection.SearchableConfig{
		Content:  func(r map[string]any) string { return "custom content" },
		Metadata: func(r map[string]any) map[string]any { return map[string]any{"author": r["author"]} },
	})
	doc := BuildDocument("posts", c, "en", cms.Record{"id": "p1", "author": "jane"})
	assert.Equal(t, "custom content", doc.Content)
	assert.Equal(t, "jane", doc.Metadata["author"])
}

func TestIsSearchableRespectsDisabled(t *testing.T) {
	t.Parallel()
	plain := collection.New("posts", collection.Options{})
	assert.True(t, isSearchable(plain))

	disabled := collection.New("secrets", collection.Options{}).WithSearchable(&collection.SearchableConfig{Disabled: true})
	assert.False(t, isSearchable(disabled))
}

type recordingBackend struct {
	mu      sync.Mutex
	indexed []cms.SearchDocument
	deleted []string
}

func (b *recordingBackend) Index(ctx context.Context, doc cms.SearchDocument) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.indexed = append(b.indexed, doc)
	return nil
}
func (b *recordingBackend) Delete(ctx context.Context, collectionName, recordID string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.deleted = append(b.deleted, recordID)
	return nil
}
func (b *recordingBackend) Query(ctx context.Context, q cms.SearchQuery) (cms.SearchResult, error) {
	return cms.SearchResult{}, nil
}

type recordingQueue struct {
	mu       sync.Mutex
	supports bool
	enqueued []string
}

func (q *recordingQueue) Enqueue(ctx context.Context, jobName string, payload []byte, opts cms.EnqueueOptions) (string, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.enqueued = append(q.enqueued, jobName)
	return "", nil
}
func (q *recordingQueue) Supports(capability string) bool { return q.supports }

func TestIndexerOnChangeDeleteIsSynchronous(t *testing.T) {
	t.Parallel()
	backend := &recordingBackend{}
	ix := NewIndexer(nil, nil, backend, nil, nil)
	ac := cms.NewAppContext(context.Background())

	ix.OnChange(ac, "posts", "rec-1", true)

	require.Len(t, backend.deleted, 1)
	assert.Equal(t, "rec-1", backend.deleted[0])
}

func TestIndexerDebouncesThroughQueueWhenSupported(t *testing.T) {
	t.Parallel()
	backend := &recordingBackend{}
	queue := &recordingQueue{supports: true}
	ix := NewIndexer(nil, nil, backend, queue, nil)
	ac := cms.NewAppContext(context.Background())

	ix.OnChange(ac, "posts", "rec-1", false)
	ix.OnChange(ac, "posts", "rec-1", false)
	ix.OnChange(ac, "posts", "rec-2", false)

	require.Eventually(t, func() bool {
		queue.mu.Lock()
		defer queue.mu.Unlock()
		return len(queue.enqueued) == 2
	}, time.Second, 5*time.Millisecond)
}

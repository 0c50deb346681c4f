// Package search implements the auto-indexing pipeline and search
// endpoint (spec section 4.8): every collection not opted out is indexed
// into a backend search store on each change, debounced through the job
// queue when one is configured, synchronous otherwise.
package search

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	cms "github.com/loomcms/loom"
	"github.com/loomcms/loom/collection"
	"github.com/loomcms/loom/crud"
	"github.com/loomcms/loom/query"
	"github.com/loomcms/loom/schemacompiler"
)

// excludedFromAutoContent are fields the auto-generated "k: v, ..." content
// string drops (spec 4.8: "excluding id, timestamps, locale, parent").
var excludedFromAutoContent = map[string]struct{}{
	"id": {}, "created_at": {}, "updated_at": {}, "deleted_at": {},
	"locale": {}, "parent_id": {}, "stage": {},
}

// BuildDocument renders one locale's indexable view of record, honoring
// the collection's SearchableConfig extension points.
func BuildDocument(collectionName string, c *collection.Collection, locale string, record cms.Record) cms.SearchDocument {
	sc := c.Searchable()

	title := record.ID()
	if sc != nil && sc.TitleField != "" {
		if v, ok := record[sc.TitleField].(string); ok && v != "" {
			title = v
		}
	}

	var content string
	if sc != nil && sc.Content != nil {
		content = sc.Content(record)
	} else {
		content = autoContent(record)
	}

	var metadata map[string]any
	if sc != nil && sc.Metadata != nil {
		metadata = sc.Metadata(record)
	}

	return cms.SearchDocument{
		Collection: collectionName,
		RecordID:   record.ID(),
		Locale:     locale,
		Title:      title,
		Content:    content,
		Metadata:   metadata,
	}
}

func autoContent(record cms.Record) string {
	keys := make([]string, 0, len(record))
	for k := range record {
		if _, excluded := excludedFromAutoContent[k]; excluded {
			continue
		}
		keys = append(keys, k)
	}
	sort.Strings(keys)

	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		v := record[k]
		switch v.(type) {
		case string, int, int64, float64, bool:
			parts = append(parts, fmt.Sprintf("%s: %v", k, v))
		}
	}
	return strings.Join(parts, ", ")
}

// isSearchable reports whether c should be indexed at all.
func isSearchable(c *collection.Collection) bool {
	sc := c.Searchable()
	return sc == nil || !sc.Disabled
}

// Indexer implements crud.SearchIndexer, driving the pipeline described in
// spec 4.8: debounced async indexing when the queue supports the internal
// "index-records" job, synchronous indexing otherwise.
type Indexer struct {
	Engine  *crud.Engine
	Schemas schemacompiler.CompiledSet
	Backend cms.Search
	Queue   cms.Queue // nil disables the debounced path
	Locales []string  // every locale a record must be indexed under

	debounceWindow time.Duration // default 100ms

	mu      sync.Mutex
	pending map[pendingKey]struct{}
	timer   *time.Timer
}

type pendingKey struct {
	collection string
	recordID   string
}

// NewIndexer builds an Indexer with the spec's 100ms debounce window.
func NewIndexer(engine *crud.Engine, schemas schemacompiler.CompiledSet, backend cms.Search, queue cms.Queue, locales []string) *Indexer {
	return &Indexer{
		Engine:         engine,
		Schemas:        schemas,
		Backend:        backend,
		Queue:          queue,
		Locales:        locales,
		debounceWindow: 100 * time.Millisecond,
		pending:        map[pendingKey]struct{}{},
	}
}

// SetDebounceWindow overrides the default 100ms debounce window, e.g. from
// configuration.
func (ix *Indexer) SetDebounceWindow(d time.Duration) {
	if d > 0 {
		ix.debounceWindow = d
	}
}

// OnChange satisfies crud.SearchIndexer. Deletion always runs synchronously
// (spec: "deleteById removes all locales"); non-delete changes debounce
// through the queue when one supports "index-records", otherwise index
// synchronously at the end of the CRUD operation.
func (ix *Indexer) OnChange(ac *cms.AppContext, collectionName, recordID string, deleted bool) {
	if deleted {
		_ = ix.Backend.Delete(ac.Context, collectionName, recordID)
		return
	}
	if ix.Queue != nil && ix.Queue.Supports("index-records") {
		ix.enqueueDebounced(ac, collectionName, recordID)
		return
	}
	_ = ix.indexRecord(ac, collectionName, recordID)
}

func (ix *Indexer) enqueueDebounced(ac *cms.AppContext, collectionName, recordID string) {
	ix.mu.Lock()
	ix.pending[pendingKey{collectionName, recordID}] = struct{}{}
	if ix.timer == nil {
		ix.timer = time.AfterFunc(ix.debounceWindow, func() { ix.flush(ac) })
	}
	ix.mu.Unlock()
}

// flush drains the pending set and publishes one "index-records" job per
// record, letting the worker process (JobHandler, below) do the actual
// indexing out of the request path.
func (ix *Indexer) flush(ac *cms.AppContext) {
	ix.mu.Lock()
	batch := ix.pending
	ix.pending = map[pendingKey]struct{}{}
	ix.timer = nil
	ix.mu.Unlock()

	for key := range batch {
		payload, err := json.Marshal(struct {
			Collection string `json:"collection"`
			RecordID   string `json:"recordId"`
		}{key.collection, key.recordID})
		if err != nil {
			continue
		}
		_, _ = ix.Queue.Enqueue(ac.Context, "index-records", payload, cms.EnqueueOptions{})
	}
}

// indexRecord re-fetches recordID through the CRUD engine (so hooks run)
// and writes one search document per configured locale.
func (ix *Indexer) indexRecord(ac *cms.AppContext, collectionName, recordID string) error {
	compiled, ok := ix.Schemas[collectionName]
	if !ok {
		return cms.NotFound("collection", collectionName)
	}
	if !isSearchable(compiled.Collection) {
		return nil
	}
	locales := ix.Locales
	if len(locales) == 0 {
		locales = []string{ac.EffectiveLocale()}
	}
	for _, locale := range locales {
		localeAC := ac.WithLocale(locale, true)
		record, err := ix.Engine.FindOne(localeAC, collectionName, recordID)
		if err != nil {
			if cms.KindOf(err) == cms.KindNotFound {
				continue
			}
			return err
		}
		doc := BuildDocument(collectionName, compiled.Collection, locale, record)
		if err := ix.Backend.Index(ac.Context, doc); err != nil {
			return err
		}
	}
	return nil
}

// Reindex rebuilds every locale's document for collectionName (spec 4.8,
// "reindex endpoint... rebuilds a collection's index"). Requires the admin
// role; callers must check that before invoking this.
func (ix *Indexer) Reindex(ac *cms.AppContext, collectionName string) (int, error) {
	compiled, ok := ix.Schemas[collectionName]
	if !ok {
		return 0, cms.NotFound("collection", collectionName)
	}
	const batchSize = 200
	offset := 0
	count := 0
	for {
		res, err := ix.Engine.Find(ac, collectionName, query.Predicate{}, nil, query.Page{Limit: batchSize, Offset: offset})
		if err != nil {
			return count, err
		}
		for _, rec := range res.Data {
			if err := ix.indexRecord(ac, collectionName, rec.ID()); err != nil {
				return count, err
			}
			count++
		}
		if len(res.Data) < batchSize {
			break
		}
		offset += batchSize
	}
	_ = compiled
	return count, nil
}

// JobHandler returns the jobs.Handler run by a worker process for the
// internal "index-records" job: it decodes the (collection, recordId) pair
// a debounce flush published and indexes every configured locale.
func (ix *Indexer) JobHandler() func(ctx context.Context, payload json.RawMessage) error {
	return func(ctx context.Context, payload json.RawMessage) error {
		var req struct {
			Collection string `json:"collection"`
			RecordID   string `json:"recordId"`
		}
		if err := json.Unmarshal(payload, &req); err != nil {
			return cms.Wrap(cms.KindBadRequest, err)
		}
		ac := cms.NewAppContext(ctx)
		return ix.indexRecord(ac, req.Collection, req.RecordID)
	}
}

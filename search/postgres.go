package search

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	cms "github.com/loomcms/loom"
)

// PostgresBackend implements cms.Search on top of Postgres's native
// tsvector/to_tsquery full-text search. No third-party FTS library appears
// anywhere in the corpus this module is grounded on, so the search index
// rides on the same relational store the rest of the engine already
// targets rather than pulling in a dedicated search service.
//
// Schema (bootstrapped by the migration generator):
//
//	CREATE TABLE search_index (
//	    collection   text NOT NULL,
//	    record_id    text NOT NULL,
//	    locale       text NOT NULL,
//	    title        text NOT NULL,
//	    content      text NOT NULL,
//	    metadata     jsonb,
//	    document     tsvector GENERATED ALWAYS AS (
//	        setweight(to_tsvector('simple', coalesce(title, '')), 'A') ||
//	        setweight(to_tsvector('simple', coalesce(content, '')), 'B')
//	    ) STORED,
//	    PRIMARY KEY (collection, record_id, locale)
//	);
//	CREATE INDEX search_index_document_idx ON search_index USING GIN (document);
type PostgresBackend struct {
	DB cms.DB
}

// NewPostgresBackend wraps db as a cms.Search implementation.
func NewPostgresBackend(db cms.DB) *PostgresBackend {
	return &PostgresBackend{DB: db}
}

func (b *PostgresBackend) Index(ctx context.Context, doc cms.SearchDocument) error {
	metadata, err := json.Marshal(doc.Metadata)
	if err != nil {
		return cms.Wrap(cms.KindInternal, err)
	}
	stmt := `INSERT INTO search_index (collection, record_id, locale, title, content, metadata)
	         VALUES ($1, $2, $3, $4, $5, $6)
	         ON CONFLICT (collection, record_id, locale)
	         DO UPDATE SET title = EXCLUDED.title, content = EXCLUDED.content, metadata = EXCLUDED.metadata`
	_, err = b.DB.ExecContext(ctx, stmt, doc.Collection, doc.RecordID, doc.Locale, doc.Title, doc.Content, metadata)
	if err != nil {
		return cms.Wrap(cms.KindInternal, err)
	}
	return nil
}

func (b *PostgresBackend) Delete(ctx context.Context, collection, recordID string) error {
	_, err := b.DB.ExecContext(ctx, `DELETE FROM search_index WHERE collection = $1 AND record_id = $2`, collection, recordID)
	if err != nil {
		return cms.Wrap(cms.KindInternal, err)
	}
	return nil
}

// Query runs q.Query against the tsvector document column, restricted to
// q.Collections/q.Locale and to the per-collection SQL predicates in
// q.Filters (already scoped by the caller to what the requesting session
// may read), ranked by ts_rank and returning plain-text highlights via
// ts_headline.
func (b *PostgresBackend) Query(ctx context.Context, q cms.SearchQuery) (cms.SearchResult, error) {
	var where []string
	var args []any
	arg := func(v any) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}

	where = append(where, fmt.Sprintf("document @@ plainto_tsquery('simple', %s)", arg(q.Query)))

	if len(q.Collections) > 0 {
		placeholders := make([]string, len(q.Collections))
		for i, c := range q.Collections {
			placeholders[i] = arg(c)
		}
		where = append(where, fmt.Sprintf("collection IN (%s)", strings.Join(placeholders, ", ")))
	}
	if q.Locale != "" {
		where = append(where, fmt.Sprintf("locale = %s", arg(q.Locale)))
	}
	for collectionName, predicateSQL := range q.Filters {
		if predicateSQL == "" {
			continue
		}
		where = append(where, fmt.Sprintf("(collection != %s OR (%s))", arg(collectionName), predicateSQL))
	}

	whereSQL := strings.Join(where, " AND ")
	rankExpr := fmt.Sprintf("ts_rank(document, plainto_tsquery('simple', %s))", arg(q.Query))

	countStmt := fmt.Sprintf(`SELECT count(*) FROM search_index WHERE %s`, whereSQL)
	var total int
	if err := b.DB.QueryRowContext(ctx, countStmt, args...).Scan(&total); err != nil {
		return cms.SearchResult{}, cms.Wrap(cms.KindInternal, err)
	}

	limit := q.Limit
	if limit <= 0 {
		limit = 20
	}
	limitArg := arg(limit)
	offsetArg := arg(q.Offset)

	selectStmt := fmt.Sprintf(`SELECT collection, record_id, locale, title, %s AS score,
	         ts_headline('simple', content, plainto_tsquery('simple', %s), 'MaxFragments=1, MaxWords=20') AS highlight
	         FROM search_index
	         WHERE %s
	         ORDER BY score DESC
	         LIMIT %s OFFSET %s`, rankExpr, arg(q.Query), whereSQL, limitArg, offsetArg)

	rows, err := b.DB.QueryContext(ctx, selectStmt, args...)
	if err != nil {
		return cms.SearchResult{}, cms.Wrap(cms.KindInternal, err)
	}
	defer rows.Close()

	var hits []cms.SearchHit
	for rows.Next() {
		var h cms.SearchHit
		var highlight string
		if err := rows.Scan(&h.Collection, &h.RecordID, &h.Locale, &h.IndexedTitle, &h.Score, &highlight); err != nil {
			return cms.SearchResult{}, cms.Wrap(cms.KindInternal, err)
		}
		if highlight != "" {
			h.Highlights = []string{highlight}
		}
		hits = append(hits, h)
	}
	if err := rows.Err(); err != nil {
		return cms.SearchResult{}, cms.Wrap(cms.KindInternal, err)
	}

	return cms.SearchResult{Hits: hits, Total: total}, nil
}

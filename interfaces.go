package cms

import (
	"context"
	"database/sql"
	"io"
	"time"
)

// Queryer is the minimal subset of *sql.DB / *sql.Tx the engine needs to
// build and execute parameterised SQL. Kept narrow and interface-based (like
// the teacher's own dialect/sql wrapper around database/sql) so tests can
// substitute github.com/DATA-DOG/go-sqlmock.
type Queryer interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

// Tx is an open transaction obtained from DB.Begin.
type Tx interface {
	Queryer
	Commit(ctx context.Context) error
	Rollback(ctx context.Context) error
}

// DB is the engine's abstract relational store contract (spec section 6.1):
// a standard transactional SQL database exposing JSONB, FK cascade, and a
// monotonic sequence, reachable through parameterised queries and
// transactions.
type DB interface {
	Queryer
	Begin(ctx context.Context) (Tx, error)
	// Dialect reports the SQL dialect in use ("postgres" is the only one
	// the engine's JSONB-dependent query compiler currently targets).
	Dialect() string
}

// EnqueueOptions configures a single job publish call.
type EnqueueOptions struct {
	Priority   int
	RetryLimit int
	StartAfter time.Duration
	Singleton  bool
}

// Queue is the abstract job-queue collaborator used by the CRUD engine
// (scheduled stage transitions) and the search indexer (debounced async
// indexing). The richer publish/listen/adapter contract used by job
// handlers themselves lives in package jobs; this is the narrow slice the
// core engine depends on so it never imports a concrete broker.
type Queue interface {
	// Enqueue publishes payload under jobName, returning a queue-assigned
	// id when the adapter provides one.
	Enqueue(ctx context.Context, jobName string, payload []byte, opts EnqueueOptions) (string, error)
	// Supports reports whether the adapter exposes the named internal job
	// (e.g. "index-records") or capability (e.g. "scheduling").
	Supports(capability string) bool
}

// Storage is the abstract file-storage collaborator backing upload
// collections (spec section 6.2, /storage/upload and /storage/files).
type Storage interface {
	Put(ctx context.Context, key string, r io.Reader, size int64, contentType string) error
	Get(ctx context.Context, key string) (io.ReadCloser, error)
	Delete(ctx context.Context, key string) error
	// SignedURL returns a time-limited URL per the signed-URL format in
	// spec section 6.3.
	SignedURL(ctx context.Context, key string, expires time.Duration) (string, error)
}

// KV is the abstract key-value collaborator (spec section 6.4): search
// index debounce sets, job dedupe keys, cached query results.
type KV interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
	DeletePrefix(ctx context.Context, prefix string) error
	Clear(ctx context.Context) error
}

// Mail is an outbound message handed to Mailer.
type Mail struct {
	To      []string
	Subject string
	Body    string
	HTML    bool
}

// Mailer is the abstract outbound-email collaborator.
type Mailer interface {
	Send(ctx context.Context, m Mail) error
}

// Logger is the engine's abstract structured-logging collaborator.
type Logger interface {
	Debug(msg string, fields map[string]any)
	Info(msg string, fields map[string]any)
	Warn(msg string, fields map[string]any)
	Error(msg string, fields map[string]any)
	With(fields map[string]any) Logger
}

// SearchHit is a single match returned by Search.Query.
type SearchHit struct {
	Collection    string
	RecordID      string
	Locale        string
	Score         float64
	IndexedTitle  string
	Highlights    []string
}

// SearchQuery is the request handed to the abstract Search collaborator.
type SearchQuery struct {
	Query       string
	Collections []string
	Locale      string
	Limit       int
	Offset      int
	// Filters maps collection name to a pre-compiled SQL predicate (from
	// the access rule evaluated by the search endpoint), so the search
	// backend can exclude rows the caller cannot read.
	Filters map[string]string
}

// SearchResult is returned by Search.Query.
type SearchResult struct {
	Hits  []SearchHit
	Total int
}

// SearchDocument is a single locale's indexable view of a record, produced
// by the search indexing pipeline (spec section 4.8).
type SearchDocument struct {
	Collection string
	RecordID   string
	Locale     string
	Title      string
	Content    string
	Metadata   map[string]any
}

// Search is the abstract full-text-search collaborator.
type Search interface {
	Index(ctx context.Context, doc SearchDocument) error
	Delete(ctx context.Context, collection, recordID string) error
	Query(ctx context.Context, q SearchQuery) (SearchResult, error)
}

// Auth is the abstract authentication collaborator: it turns a bearer
// credential into a resolved Session. Concrete auth providers (OIDC, JWT,
// session cookies) are external to the core (spec section 1, scope).
type Auth interface {
	Verify(ctx context.Context, credential string) (*Session, error)
}

package search

import (
	cms "github.com/loomcms/loom"
	"github.com/loomcms/loom/access"
	"github.com/loomcms/loom/crud"
	"github.com/loomcms/loom/schemacompiler"
)

// Request is the search endpoint's input (spec 4.8, "the search endpoint").
type Request struct {
	Query       string
	Collections []string // empty means every searchable collection
	Limit       int
	Offset      int
}

// ResultDoc merges one search hit's ranking metadata with the full record,
// re-fetched through the CRUD engine so hooks and row-level access apply.
type ResultDoc struct {
	Collection   string
	Record       cms.Record
	Score        float64
	IndexedTitle string
	Highlights   []string
}

// Response is the search endpoint's output.
type Response struct {
	Docs  []ResultDoc
	Total int
}

// Endpoint implements the search and reindex operations of spec 4.8.
type Endpoint struct {
	Engine  *crud.Engine
	Schemas schemacompiler.CompiledSet
	Backend cms.Search
	Indexer *Indexer
}

// Search evaluates each candidate collection's read access rule, drops the
// ones resolved to a static deny, queries the backend across whatever
// remains, then re-fetches every hit through the CRUD engine so per-record
// access checks and hooks still run: a hit the caller cannot actually read
// is silently dropped rather than surfaced as an error.
func (ep *Endpoint) Search(ac *cms.AppContext, req Request) (*Response, error) {
	candidates := req.Collections
	if len(candidates) == 0 {
		for name := range ep.Schemas {
			candidates = append(candidates, name)
		}
	}

	allowed := allowedCollections(ep.Schemas, candidates, ac)
	if len(allowed) == 0 {
		return &Response{}, nil
	}

	result, err := ep.Backend.Query(ac.Context, cms.SearchQuery{
		Query:       req.Query,
		Collections: allowed,
		Locale:      ac.EffectiveLocale(),
		Limit:       req.Limit,
		Offset:      req.Offset,
	})
	if err != nil {
		return nil, err
	}

	docs := make([]ResultDoc, 0, len(result.Hits))
	for _, hit := range result.Hits {
		record, err := ep.Engine.FindOne(ac, hit.Collection, hit.RecordID)
		if err != nil {
			if cms.KindOf(err) == cms.KindForbidden || cms.KindOf(err) == cms.KindNotFound {
				continue
			}
			return nil, err
		}
		docs = append(docs, ResultDoc{
			Collection:   hit.Collection,
			Record:       record,
			Score:        hit.Score,
			IndexedTitle: hit.IndexedTitle,
			Highlights:   hit.Highlights,
		})
	}

	return &Response{Docs: docs, Total: result.Total}, nil
}

// allowedCollections evaluates each candidate's read access rule with no
// record in hand (the collection-level gate) and drops anything that
// resolves to a static deny, e.g. access.Private() or an unset rule. Rules
// that depend on the record (access.Owner, row-level Chains) return Skip
// here and survive this pass; they are enforced for real per hit once the
// record is re-fetched through the CRUD engine.
func allowedCollections(schemas schemacompiler.CompiledSet, candidates []string, ctx access.RuntimeContext) []string {
	var allowed []string
	for _, name := range candidates {
		compiled, ok := schemas[name]
		if !ok || !isSearchable(compiled.Collection) {
			continue
		}
		rule := compiled.Collection.AccessFor("read")
		if rule == nil {
			continue
		}
		if rule(ctx, nil) == access.Deny {
			continue
		}
		allowed = append(allowed, name)
	}
	return allowed
}

// Reindex rebuilds collectionName's search index. Callers must be an admin
// (spec 4.8, "reindex endpoint requires the admin role").
func (ep *Endpoint) Reindex(ac *cms.AppContext, collectionName string) (int, error) {
	if !ac.Session.HasRole("admin") {
		return 0, cms.Forbidden("reindex", collectionName)
	}
	return ep.Indexer.Reindex(ac, collectionName)
}

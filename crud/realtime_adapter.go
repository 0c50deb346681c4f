package crud

import (
	cms "github.com/loomcms/loom"
	"github.com/loomcms/loom/query"
)

// RealtimeFinder adapts Engine to realtime.Finder, so the SSE multiplexer
// can resolve a topic's snapshot through the same access-checked,
// hook-running CRUD path every other read goes through.
type RealtimeFinder struct {
	Engine *Engine
}

func (f RealtimeFinder) Find(ac *cms.AppContext, collectionName string, where query.Predicate, sorts []query.Sort, page query.Page) ([]cms.Record, int, error) {
	res, err := f.Engine.Find(ac, collectionName, where, sorts, page)
	if err != nil {
		return nil, 0, err
	}
	return res.Data, res.Total, nil
}

func (f RealtimeFinder) Populate(ac *cms.AppContext, collectionName string, records []cms.Record, with []string) error {
	return f.Engine.Populate(ac, collectionName, records, PopulateOptions{With: with})
}

package crud

import (
	"context"

	cms "github.com/loomcms/loom"
	"github.com/loomcms/loom/dataloader"
	"github.com/loomcms/loom/field"
	"github.com/loomcms/loom/query"
	"github.com/loomcms/loom/schemacompiler"
)

// applyRelationMutation executes one nested relation mutation (create or
// update of the related record) gathered by
// schemacompiler.SplitRelationInput, then points the owning FK at it
// (spec section 4.2.1, "nested relation mutations").
func (e *Engine) applyRelationMutation(ac *cms.AppContext, compiled *schemacompiler.Compiled, ownerID string, m schemacompiler.RelationMutation) error {
	fd, ok := compiled.QueryFields[m.FieldName].(field.Relational)
	if !ok {
		return cms.InvalidFieldConfig("field " + m.FieldName + " is not a relation")
	}
	info := fd.RelationInfo()
	payload, _ := m.Payload.(map[string]any)

	switch m.Kind {
	case "create":
		related, err := e.Create(ac, info.Target, payload)
		if err != nil {
			return err
		}
		if info.Kind == field.BelongsTo {
			return e.updateMainRow(ac, compiled, ownerID, map[string]any{info.FKField: related.ID()})
		}
		return e.updateMainRow(ac, mustCompiled(e, info.Target), related.ID(), map[string]any{info.FKField: ownerID})
	case "update":
		id, _ := payload["id"].(string)
		if id == "" {
			return cms.InvalidFieldConfig("nested relation update requires an id")
		}
		_, err := e.UpdateByID(ac, info.Target, id, payload)
		return err
	}
	return nil
}

func mustCompiled(e *Engine, name string) *schemacompiler.Compiled { return e.Schemas[name] }

// PopulateOptions selects which relation fields to eagerly populate on a
// Find/FindOne result (spec section 4.2.4, "with").
type PopulateOptions struct {
	With []string
}

// Populate resolves the named relation fields on every record in records,
// attaching the related record(s) under the field's name. The requested
// relations are populated one after another, not concurrently. belongsTo
// and hasMany relations are resolved; other relation kinds and aggregates
// are left untouched.
func (e *Engine) Populate(ac *cms.AppContext, collectionName string, records []cms.Record, opts PopulateOptions) error {
	compiled, err := e.resolve(collectionName)
	if err != nil {
		return err
	}
	// One loader per target collection, shared across every relation field
	// in this call that points at it: with "author" and "editor" both
	// targeting the users collection, "editor" reuses every id "author"
	// already fetched, and only its remaining ids go out in a second batch.
	loaders := map[string]*dataloader.Loader[cms.Record]{}
	for _, relName := range opts.With {
		fd, ok := compiled.QueryFields[relName].(field.Relational)
		if !ok {
			return cms.InvalidFieldConfig("field " + relName + " is not a relation")
		}
		info := fd.RelationInfo()
		if err := e.populateOne(ac, records, relName, info, loaders); err != nil {
			return err
		}
	}
	return nil
}

func (e *Engine) loaderFor(ac *cms.AppContext, target string, loaders map[string]*dataloader.Loader[cms.Record]) *dataloader.Loader[cms.Record] {
	if l, ok := loaders[target]; ok {
		return l
	}
	l := dataloader.NewLoader(func(ctx context.Context, ids []string) ([]cms.Record, error) {
		args := make([]any, len(ids))
		for i, id := range ids {
			args[i] = id
		}
		res, err := e.Find(ac, target, query.Op("id", "in", args...), nil, query.Page{})
		if err != nil {
			return nil, err
		}
		return res.Data, nil
	}, func(r cms.Record) string { return r.ID() })
	loaders[target] = l
	return l
}

func (e *Engine) populateOne(ac *cms.AppContext, records []cms.Record, relName string, info field.RelationMeta, loaders map[string]*dataloader.Loader[cms.Record]) error {
	switch info.Kind {
	case field.BelongsTo:
		ids := make([]string, 0, len(records))
		seen := map[string]bool{}
		for _, r := range records {
			id, _ := r[info.FKField].(string)
			if id != "" && !seen[id] {
				seen[id] = true
				ids = append(ids, id)
			}
		}
		if len(ids) == 0 {
			return nil
		}
		loader := e.loaderFor(ac, info.Target, loaders)
		values, err := loader.LoadMany(ac.Context, ids)
		if err != nil {
			return err
		}
		byID := map[string]cms.Record{}
		for _, rec := range values {
			if rec != nil {
				byID[rec.ID()] = rec
			}
		}
		for _, r := range records {
			id, _ := r[info.FKField].(string)
			r[relName] = byID[id]
		}
	case field.HasMany:
		ownerIDs := make([]any, 0, len(records))
		for _, r := range records {
			ownerIDs = append(ownerIDs, r.ID())
		}
		if len(ownerIDs) == 0 {
			return nil
		}
		res, err := e.Find(ac, info.Target, query.Op(info.FKField, "in", ownerIDs...), nil, query.Page{})
		if err != nil {
			return err
		}
		byOwner := map[string][]cms.Record{}
		for _, rec := range res.Data {
			ownerID, _ := rec[info.FKField].(string)
			byOwner[ownerID] = append(byOwner[ownerID], rec)
		}
		for _, r := range records {
			r[relName] = byOwner[r.ID()]
		}
	}
	return nil
}

package crud

import (
	"fmt"
	"time"

	cms "github.com/loomcms/loom"
	"github.com/loomcms/loom/collection"
	"github.com/loomcms/loom/i18n"
	"github.com/loomcms/loom/query"
	"github.com/loomcms/loom/schemacompiler"
)

// UpdateByID applies a partial update to one record (spec section 4.2.2).
func (e *Engine) UpdateByID(ac *cms.AppContext, collectionName, id string, patch map[string]any) (cms.Record, error) {
	compiled, err := e.resolve(collectionName)
	if err != nil {
		return nil, err
	}
	c := compiled.Collection

	existing, err := e.FindOne(ac, collectionName, id)
	if err != nil {
		return nil, err
	}
	if err := checkAccess(ac, c, "update", existing); err != nil {
		return nil, err
	}

	plain, relMuts := schemacompiler.SplitRelationInput(compiled, patch)

	hctx := &collection.HookContext{Collection: c.Name(), Operation: "update", Data: plain, Existing: existing}
	if err := runHooks(ac, c.HookSet().BeforeChange, hctx); err != nil {
		return nil, err
	}
	if err := runHooks(ac, c.HookSet().Validate, hctx); err != nil {
		return nil, err
	}
	if errs := compiled.ValidateRecord(hctx.Data, false); errs != nil {
		return nil, cms.ValidationFailed(errs)
	}

	var result cms.Record
	err = cms.WithTransaction(ac, e.DB, e.Logger, func(ac *cms.AppContext) error {
		merged := cms.MergeShallow(existing, cms.Record(hctx.Data))
		if c.Options().Timestamps {
			merged["updated_at"] = time.Now().UTC()
		}

		invariant, localized := i18n.Split(hctx.Data, compiled.FieldSchemas)
		if len(invariant) > 0 {
			if err := e.updateMainRow(ac, compiled, id, invariant); err != nil {
				return err
			}
		}
		if compiled.I18nTable != nil && len(localized) > 0 {
			if err := e.upsertI18n(ac, compiled, id, ac.EffectiveLocale(), localized); err != nil {
				return err
			}
		}
		if c.Options().Versioning {
			nextVersion, err := e.nextVersionNumber(ac, compiled, id)
			if err != nil {
				return err
			}
			if err := e.writeVersionSnapshot(ac, compiled, id, merged, nextVersion); err != nil {
				return err
			}
		}
		for _, m := range relMuts {
			if err := e.applyRelationMutation(ac, compiled, id, m); err != nil {
				return err
			}
		}

		if err := e.appendLog(ac, c, "update", id, map[string]any{"changed": changedKeys(hctx.Data)}); err != nil {
			return err
		}

		result = merged
		afterCtx := &collection.HookContext{Collection: c.Name(), Operation: "update", Data: merged, Existing: existing}
		return runHooks(ac, c.HookSet().AfterChange, afterCtx)
	})
	if err != nil {
		return nil, err
	}
	if e.Search != nil {
		e.Search.OnChange(ac, c.Name(), id, false)
	}
	return result, nil
}

// UpdateMany applies the same patch to every record matching where,
// returning the number of rows affected (spec section 4.2.2).
func (e *Engine) UpdateMany(ac *cms.AppContext, collectionName string, where query.Predicate, patch map[string]any) (int, error) {
	compiled, err := e.resolve(collectionName)
	if err != nil {
		return 0, err
	}
	ids, err := e.idsMatching(ac, compiled, where)
	if err != nil {
		return 0, err
	}
	count := 0
	for _, id := range ids {
		if _, err := e.UpdateByID(ac, collectionName, id, patch); err != nil {
			return count, err
		}
		count++
	}
	return count, nil
}

func (e *Engine) updateMainRow(ac *cms.AppContext, compiled *schemacompiler.Compiled, id string, fields map[string]any) error {
	if len(fields) == 0 {
		return nil
	}
	db := cms.TxHandle(ac, e.DB)
	sets := make([]string, 0, len(fields))
	args := make([]any, 0, len(fields)+1)
	i := 1
	for _, colSpec := range compiled.MainTable.Columns {
		v, ok := fields[colSpec.Name]
		if !ok || colSpec.Name == "id" {
			continue
		}
		sets = append(sets, fmt.Sprintf("%s = $%d", quoteIdent(colSpec.Name), i))
		args = append(args, v)
		i++
	}
	if len(sets) == 0 {
		return nil
	}
	args = append(args, id)
	stmt := fmt.Sprintf("UPDATE %s SET %s WHERE id = $%d", quoteIdent(compiled.MainTable.Name), join(sets), i)
	_, err := db.ExecContext(ac.Context, stmt, args...)
	if err != nil {
		return cms.Wrap(cms.KindInternal, err)
	}
	return nil
}

func (e *Engine) upsertI18n(ac *cms.AppContext, compiled *schemacompiler.Compiled, id, locale string, values map[string]any) error {
	db := cms.TxHandle(ac, e.DB)
	fkCol := quoteIdent(compiled.Collection.Name() + "_id")
	stmt := fmt.Sprintf(
		`INSERT INTO %s (id, %s, locale, values) VALUES ($1, $2, $3, $4)
		 ON CONFLICT (%s, locale) DO UPDATE SET values = %s.values || EXCLUDED.values`,
		quoteIdent(compiled.I18nTable.Name), fkCol, fkCol, quoteIdent(compiled.I18nTable.Name))
	_, err := db.ExecContext(ac.Context, stmt, newID(), id, locale, jsonValue(values))
	if err != nil {
		return cms.Wrap(cms.KindInternal, err)
	}
	return nil
}

// DeleteByID removes or soft-deletes one record (spec section 4.2.3).
func (e *Engine) DeleteByID(ac *cms.AppContext, collectionName, id string) error {
	compiled, err := e.resolve(collectionName)
	if err != nil {
		return err
	}
	c := compiled.Collection

	existing, err := e.FindOne(ac, collectionName, id)
	if err != nil {
		return err
	}
	if err := checkAccess(ac, c, "delete", existing); err != nil {
		return err
	}

	hctx := &collection.HookContext{Collection: c.Name(), Operation: "delete", Existing: existing}
	if err := runHooks(ac, c.HookSet().BeforeDelete, hctx); err != nil {
		return err
	}

	err = cms.WithTransaction(ac, e.DB, e.Logger, func(ac *cms.AppContext) error {
		db := cms.TxHandle(ac, e.DB)
		var stmt string
		var args []any
		if c.Options().SoftDelete {
			stmt = fmt.Sprintf("UPDATE %s SET deleted_at = $1 WHERE id = $2", quoteIdent(compiled.MainTable.Name))
			args = []any{time.Now().UTC(), id}
		} else {
			stmt = fmt.Sprintf("DELETE FROM %s WHERE id = $1", quoteIdent(compiled.MainTable.Name))
			args = []any{id}
		}
		if _, err := db.ExecContext(ac.Context, stmt, args...); err != nil {
			return cms.Wrap(cms.KindInternal, err)
		}
		if err := e.appendLog(ac, c, "delete", id, map[string]any{}); err != nil {
			return err
		}
		return runHooks(ac, c.HookSet().AfterDelete, hctx)
	})
	if err != nil {
		return err
	}
	if e.Search != nil {
		e.Search.OnChange(ac, c.Name(), id, true)
	}
	return nil
}

// DeleteMany deletes every record matching where, returning the count.
func (e *Engine) DeleteMany(ac *cms.AppContext, collectionName string, where query.Predicate) (int, error) {
	compiled, err := e.resolve(collectionName)
	if err != nil {
		return 0, err
	}
	ids, err := e.idsMatching(ac, compiled, where)
	if err != nil {
		return 0, err
	}
	count := 0
	for _, id := range ids {
		if err := e.DeleteByID(ac, collectionName, id); err != nil {
			return count, err
		}
		count++
	}
	return count, nil
}

// Restore undoes a soft delete (spec section 4.2.3).
func (e *Engine) Restore(ac *cms.AppContext, collectionName, id string) (cms.Record, error) {
	compiled, err := e.resolve(collectionName)
	if err != nil {
		return nil, err
	}
	c := compiled.Collection
	if !c.Options().SoftDelete {
		return nil, cms.NotRestorable(c.Name())
	}
	if err := checkAccess(ac, c, "update", nil); err != nil {
		return nil, err
	}
	db := cms.TxHandle(ac, e.DB)
	stmt := fmt.Sprintf("UPDATE %s SET deleted_at = NULL WHERE id = $1", quoteIdent(compiled.MainTable.Name))
	if _, err := db.ExecContext(ac.Context, stmt, id); err != nil {
		return nil, cms.Wrap(cms.KindInternal, err)
	}
	return e.FindOne(ac, collectionName, id)
}

func (e *Engine) idsMatching(ac *cms.AppContext, compiled *schemacompiler.Compiled, where query.Predicate) ([]string, error) {
	c := &query.Compiler{Resolver: compiled, MainAlias: "t"}
	sqlWhere, params, err := c.Compile(where, 0)
	if err != nil {
		return nil, err
	}
	db := cms.TxHandle(ac, e.DB)
	stmt := fmt.Sprintf("SELECT id FROM %s AS t WHERE %s", quoteIdent(compiled.MainTable.Name), sqlWhere)
	rows, err := db.QueryContext(ac.Context, stmt, params...)
	if err != nil {
		return nil, cms.Wrap(cms.KindInternal, err)
	}
	defer rows.Close()
	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, cms.Wrap(cms.KindInternal, err)
		}
		ids = append(ids, id)
	}
	return ids, nil
}

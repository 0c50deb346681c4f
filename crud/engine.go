// Package crud implements the record engine (spec section 4.2): create,
// findOne, find, updateById, updateMany, deleteById, deleteMany, restore,
// findVersions, revertToVersion, transitionStage, and relation population,
// all running the before/after hooks and access checks of the collection
// they operate on inside a transaction.
package crud

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"

	cms "github.com/loomcms/loom"
	"github.com/loomcms/loom/access"
	"github.com/loomcms/loom/collection"
	"github.com/loomcms/loom/i18n"
	"github.com/loomcms/loom/realtime"
	"github.com/loomcms/loom/schemacompiler"
)

// Engine runs CRUD operations against a compiled schema set.
type Engine struct {
	DB         cms.DB
	Logger     cms.Logger
	Schemas    schemacompiler.CompiledSet
	Search     SearchIndexer // nil if search indexing isn't wired
	Dispatcher *realtime.Dispatcher
}

var realtimeWriter realtime.Writer

// appendLog writes one realtime_log row for a successful mutation step and
// notifies any subscriber watching this collection (spec section 4.2,
// step 8: "Append a realtime log row"). Must be called from inside the
// mutation's own transaction so a rollback leaves no trace.
func (e *Engine) appendLog(ac *cms.AppContext, c *collection.Collection, operation, recordID string, payload map[string]any) error {
	resourceType := "collection"
	if c.IsGlobal() {
		resourceType = "global"
	}
	_, err := realtimeWriter.Append(ac, e.DB, e.Dispatcher, realtime.LogRow{
		ResourceType: resourceType,
		Resource:     c.Name(),
		Operation:    operation,
		RecordID:     recordID,
		Locale:       ac.EffectiveLocale(),
		Payload:      payload,
	})
	return err
}

// SearchIndexer is the narrow surface the CRUD engine calls into after a
// successful write, decoupled from the concrete search package to avoid a
// dependency cycle (search, in turn, reads back through the engine).
type SearchIndexer interface {
	OnChange(ac *cms.AppContext, collectionName, recordID string, deleted bool)
}

func newID() string { return uuid.NewString() }

// resolve looks up the compiled plan for a collection/global name.
func (e *Engine) resolve(name string) (*schemacompiler.Compiled, error) {
	c, ok := e.Schemas[name]
	if !ok {
		return nil, cms.NotFound("collection", name)
	}
	return c, nil
}

func runtimeCtx(ac *cms.AppContext) access.RuntimeContext { return ac }

// checkAccess evaluates the named operation's access rule, returning
// Forbidden if denied.
func checkAccess(ac *cms.AppContext, c *collection.Collection, op string, record map[string]any) error {
	rule := c.AccessFor(op)
	if !access.Evaluate(rule, runtimeCtx(ac), record) {
		return cms.Forbidden(op, c.Name())
	}
	return nil
}

func runHooks(ac *cms.AppContext, hooks []collection.HookFunc, hctx *collection.HookContext) error {
	for _, h := range hooks {
		if err := h(ac, hctx); err != nil {
			return err
		}
	}
	return nil
}

// Create inserts a new record (spec section 4.2.1).
func (e *Engine) Create(ac *cms.AppContext, collectionName string, data map[string]any) (cms.Record, error) {
	compiled, err := e.resolve(collectionName)
	if err != nil {
		return nil, err
	}
	c := compiled.Collection

	if err := checkAccess(ac, c, "create", data); err != nil {
		return nil, err
	}

	plain, relMuts := schemacompiler.SplitRelationInput(compiled, data)

	hctx := &collection.HookContext{Collection: c.Name(), Operation: "create", Data: plain}
	if err := runHooks(ac, c.HookSet().BeforeChange, hctx); err != nil {
		return nil, err
	}
	if err := runHooks(ac, c.HookSet().Validate, hctx); err != nil {
		return nil, err
	}

	if errs := compiled.ValidateRecord(hctx.Data, true); errs != nil {
		return nil, cms.ValidationFailed(errs)
	}

	var result cms.Record
	err = cms.WithTransaction(ac, e.DB, e.Logger, func(ac *cms.AppContext) error {
		id := newID()
		now := time.Now().UTC()

		row := cms.Record(hctx.Data).Clone()
		row["id"] = id
		if c.Options().Timestamps {
			row["created_at"] = now
			row["updated_at"] = now
		}
		if wf := c.Options().Workflow; wf != nil {
			if row["stage"] == nil {
				row["stage"] = wf.Initial
			}
		}

		invariant, localized := i18n.Split(row, compiled.FieldSchemas)

		if err := e.insertMain(ac, compiled, invariant); err != nil {
			return err
		}
		if compiled.I18nTable != nil && len(localized) > 0 {
			locale := ac.EffectiveLocale()
			if err := e.insertI18n(ac, compiled, id, locale, localized); err != nil {
				return err
			}
		}
		if c.Options().Versioning {
			if err := e.writeVersionSnapshot(ac, compiled, id, row, 1); err != nil {
				return err
			}
		}

		for _, m := range relMuts {
			if err := e.applyRelationMutation(ac, compiled, id, m); err != nil {
				return err
			}
		}

		if err := e.appendLog(ac, c, "create", id, map[string]any{"changed": changedKeys(row)}); err != nil {
			return err
		}

		result = row
		afterCtx := &collection.HookContext{Collection: c.Name(), Operation: "create", Data: row}
		return runHooks(ac, c.HookSet().AfterChange, afterCtx)
	})
	if err != nil {
		return nil, err
	}
	if e.Search != nil {
		e.Search.OnChange(ac, c.Name(), result.ID(), false)
	}
	return result, nil
}

func (e *Engine) insertMain(ac *cms.AppContext, compiled *schemacompiler.Compiled, row map[string]any) error {
	db := cms.TxHandle(ac, e.DB)
	cols := make([]string, 0, len(row))
	placeholders := make([]string, 0, len(row))
	args := make([]any, 0, len(row))
	i := 1
	for _, colSpec := range compiled.MainTable.Columns {
		v, ok := row[colSpec.Name]
		if !ok {
			continue
		}
		cols = append(cols, quoteIdent(colSpec.Name))
		placeholders = append(placeholders, fmt.Sprintf("$%d", i))
		args = append(args, v)
		i++
	}
	stmt := fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)", quoteIdent(compiled.MainTable.Name), join(cols), join(placeholders))
	_, err := db.ExecContext(ac.Context, stmt, args...)
	if err != nil {
		return cms.Wrap(cms.KindInternal, err)
	}
	return nil
}

func (e *Engine) insertI18n(ac *cms.AppContext, compiled *schemacompiler.Compiled, recordID, locale string, values map[string]any) error {
	db := cms.TxHandle(ac, e.DB)
	stmt := fmt.Sprintf(
		"INSERT INTO %s (id, %s, locale, values) VALUES ($1, $2, $3, $4)",
		quoteIdent(compiled.I18nTable.Name), quoteIdent(compiled.Collection.Name()+"_id"),
	)
	_, err := db.ExecContext(ac.Context, stmt, newID(), recordID, locale, jsonValue(values))
	if err != nil {
		return cms.Wrap(cms.KindInternal, err)
	}
	return nil
}

// changedKeys lists the field names present on row, for the log payload's
// `{ changed: [...] }` summary (spec section 4.2, step 8).
func changedKeys(row map[string]any) []string {
	keys := make([]string, 0, len(row))
	for k := range row {
		keys = append(keys, k)
	}
	return keys
}

func quoteIdent(s string) string { return `"` + s + `"` }

func join(parts []string) string {
	out := ""
	for i, p := range parts {
		if i > 0 {
			out += ", "
		}
		out += p
	}
	return out
}

// jsonValue is the hand-off point to whatever JSON encoding the
// concrete *sql.DB driver expects for a jsonb column (database/sql's
// lib/pq driver accepts []byte of marshalled JSON).
func jsonValue(v map[string]any) any { return mustJSON(v) }

// noRows mirrors database/sql.ErrNoRows for readability at call sites.
var noRows = sql.ErrNoRows

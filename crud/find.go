package crud

import (
	"database/sql"
	"fmt"

	cms "github.com/loomcms/loom"
	"github.com/loomcms/loom/i18n"
	"github.com/loomcms/loom/query"
	"github.com/loomcms/loom/schemacompiler"
)

// FindOne fetches a single record by id, merging in the caller's locale
// from the i18n sidecar (spec section 4.2.4).
func (e *Engine) FindOne(ac *cms.AppContext, collectionName, id string) (cms.Record, error) {
	compiled, err := e.resolve(collectionName)
	if err != nil {
		return nil, err
	}
	c := compiled.Collection

	db := cms.TxHandle(ac, e.DB)
	colNames := make([]string, 0, len(compiled.MainTable.Columns))
	for _, col := range compiled.MainTable.Columns {
		colNames = append(colNames, "t."+quoteIdent(col.Name))
	}
	where := "t.id = $1"
	if c.Options().SoftDelete && !ac.IncludeDeleted {
		where += " AND t.deleted_at IS NULL"
	}
	stmt := fmt.Sprintf("SELECT %s FROM %s AS t WHERE %s", join(colNames), quoteIdent(compiled.MainTable.Name), where)
	row := db.QueryRowContext(ac.Context, stmt, id)
	record, err := scanOneRow(row, compiled.MainTable.Columns)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, cms.NotFound(c.Name(), id)
		}
		return nil, cms.Wrap(cms.KindInternal, err)
	}

	if err := checkAccess(ac, c, "read", record); err != nil {
		return nil, err
	}

	if compiled.I18nTable != nil {
		merged, err := e.mergeLocales(ac, compiled, id, record)
		if err != nil {
			return nil, err
		}
		record = merged
	}

	return record, nil
}

func (e *Engine) mergeLocales(ac *cms.AppContext, compiled *schemacompiler.Compiled, id string, invariant cms.Record) (cms.Record, error) {
	db := cms.TxHandle(ac, e.DB)
	fkCol := quoteIdent(compiled.Collection.Name() + "_id")
	stmt := fmt.Sprintf("SELECT locale, values FROM %s WHERE %s = $1", quoteIdent(compiled.I18nTable.Name), fkCol)
	rows, err := db.QueryContext(ac.Context, stmt, id)
	if err != nil {
		return nil, cms.Wrap(cms.KindInternal, err)
	}
	defer rows.Close()

	byLocale := map[string]map[string]any{}
	for rows.Next() {
		var locale string
		var raw []byte
		if err := rows.Scan(&locale, &raw); err != nil {
			return nil, cms.Wrap(cms.KindInternal, err)
		}
		byLocale[locale] = unmarshalJSON(raw)
	}

	fallback := ac.DefaultLocale
	if fallback == "" {
		fallback = "en"
	}
	merged := i18n.Merge(invariant, byLocale, ac.EffectiveLocale(), fallback, compiled.FieldSchemas)
	return merged, nil
}

// FindResult is the {data, total} shape every list operation returns
// (spec section 4.3, "Pagination").
type FindResult struct {
	Data  []cms.Record
	Total int
}

// Find runs a filtered, sorted, paginated list query (spec section 4.3).
func (e *Engine) Find(ac *cms.AppContext, collectionName string, where query.Predicate, sorts []query.Sort, page query.Page) (*FindResult, error) {
	compiled, err := e.resolve(collectionName)
	if err != nil {
		return nil, err
	}
	c := compiled.Collection

	if err := checkAccess(ac, c, "read", nil); err != nil {
		return nil, err
	}

	effectiveWhere := where
	if c.Options().SoftDelete && !ac.IncludeDeleted {
		effectiveWhere = query.And(where, query.Op("deleted_at", "isNull"))
	}

	colNames := make([]string, 0, len(compiled.MainTable.Columns))
	for _, col := range compiled.MainTable.Columns {
		colNames = append(colNames, "t."+quoteIdent(col.Name))
	}

	spec := query.TableSpec{Table: compiled.MainTable.Name, PrimaryKey: "id"}
	compiler := &query.Compiler{Resolver: compiled}
	plan, err := query.BuildSelect(spec, colNames, compiler, effectiveWhere, sorts, page, ac.EffectiveLocale())
	if err != nil {
		return nil, err
	}

	db := cms.TxHandle(ac, e.DB)
	rows, err := db.QueryContext(ac.Context, plan.SelectSQL, plan.Params...)
	if err != nil {
		return nil, cms.Wrap(cms.KindInternal, err)
	}
	defer rows.Close()

	var data []cms.Record
	for rows.Next() {
		record, err := scanRow(rows, compiled.MainTable.Columns)
		if err != nil {
			return nil, cms.Wrap(cms.KindInternal, err)
		}
		if compiled.I18nTable != nil {
			merged, err := e.mergeLocales(ac, compiled, record.ID(), record)
			if err != nil {
				return nil, err
			}
			record = merged
		}
		data = append(data, record)
	}

	total := len(data)
	row := db.QueryRowContext(ac.Context, plan.CountSQL, plan.CountParams...)
	if err := row.Scan(&total); err != nil {
		return nil, cms.Wrap(cms.KindInternal, err)
	}

	return &FindResult{Data: data, Total: total}, nil
}

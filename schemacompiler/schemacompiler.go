// Package schemacompiler turns collection.Collection definitions into the
// table/column specs, validators, and metadata the rest of the engine
// runs against (spec sections 3.2-3.4): one main table, and (per
// collection) an i18n sidecar, a versions table, and a versions-i18n
// sidecar. It also detects schema collisions and invalid field configs
// at registration time, and normalises relation fields so the CRUD layer
// can accept either a bare foreign key or a nested mutation shape.
package schemacompiler

import (
	"fmt"
	"sort"

	cms "github.com/loomcms/loom"
	"github.com/loomcms/loom/collection"
	"github.com/loomcms/loom/field"
	"github.com/loomcms/loom/i18n"
	"github.com/loomcms/loom/query"
)

// Table names one physical table and its column set.
type Table struct {
	Name    string
	Columns []field.ColumnSpec
}

// Compiled is the artifact produced for one collection: everything the
// CRUD engine, query compiler, and migration generator need.
type Compiled struct {
	Collection *collection.Collection

	MainTable     Table
	I18nTable     *Table // nil if the collection carries no localized fields
	VersionsTable *Table // nil unless Versioning is enabled

	// CreateValidators/UpdateValidators map field name to that field's own
	// validator (update's leaves additionally wrapped Optional, PATCH
	// semantics), run per-field so a caller can collect one error message
	// per offending field rather than stopping at the first failure.
	CreateValidators map[string]field.Validator
	UpdateValidators map[string]field.Validator

	FieldSchemas map[string]i18n.Schema // per-field LocalizationSchema(), for i18n.Split/Merge
	QueryFields  map[string]field.FieldDefinition

	Metadata []field.FieldMeta // introspection payload (spec section 9)
}

func (c *Compiled) Field(name string) field.FieldDefinition { return c.QueryFields[name] }

// HasColumn satisfies query.ColumnAware: reports whether name is a physical
// column on this collection's main table, admitting filters over implicit
// and foreign-key columns that have no field.FieldDefinition of their own.
func (c *Compiled) HasColumn(name string) bool {
	for _, col := range c.MainTable.Columns {
		if col.Name == name {
			return true
		}
	}
	return false
}

// Compile validates and compiles one collection. It is pure: it never
// touches the database; migration generation and table creation happen
// separately once a Compiled plan exists for every registered collection.
func Compile(c *collection.Collection) (*Compiled, error) {
	if c.Name() == "" {
		return nil, cms.InvalidFieldConfig("collection name must not be empty")
	}
	if len(c.FieldOrder()) == 0 {
		return nil, cms.InvalidFieldConfig(fmt.Sprintf("collection %q declares no fields", c.Name()))
	}

	compiled := &Compiled{
		Collection:       c,
		FieldSchemas:     map[string]i18n.Schema{},
		QueryFields:      map[string]field.FieldDefinition{},
		CreateValidators: map[string]field.Validator{},
		UpdateValidators: map[string]field.Validator{},
	}

	mainCols := []field.ColumnSpec{{Name: "id", SQLType: "text", NotNull: true, Unique: true}}
	if c.Options().Timestamps {
		mainCols = append(mainCols,
			field.ColumnSpec{Name: "created_at", SQLType: "timestamptz", NotNull: true},
			field.ColumnSpec{Name: "updated_at", SQLType: "timestamptz", NotNull: true})
	}
	if c.Options().SoftDelete {
		mainCols = append(mainCols, field.ColumnSpec{Name: "deleted_at", SQLType: "timestamptz"})
	}
	if wf := c.Options().Workflow; wf != nil {
		if wf.Initial == "" || !wf.HasStage(wf.Initial) {
			return nil, cms.InvalidFieldConfig(fmt.Sprintf("collection %q: workflow initial stage %q is not a declared stage", c.Name(), wf.Initial))
		}
		mainCols = append(mainCols, field.ColumnSpec{Name: "stage", SQLType: "text", NotNull: true, Default: wf.Initial})
	}

	seen := map[string]struct{}{}

	for _, name := range c.FieldOrder() {
		if _, dup := seen[name]; dup {
			return nil, cms.SchemaCollision(fmt.Sprintf("%s.%s", c.Name(), name))
		}
		seen[name] = struct{}{}

		fd := c.Field(name)
		if err := field.ValidateKind(fd.Kind()); err != nil {
			return nil, err
		}
		compiled.QueryFields[name] = fd

		if rel, ok := fd.(field.Relational); ok {
			info := rel.RelationInfo()
			if info.Target == "" {
				return nil, cms.InvalidFieldConfig(fmt.Sprintf("%s.%s: relation has no target collection", c.Name(), name))
			}
		}

		col := fd.ToColumn()
		if col.Name != "" {
			mainCols = append(mainCols, col)
		}

		if comp, ok := fd.(field.Compound); ok {
			if sub := comp.LocalizationSchema(); sub != nil {
				compiled.FieldSchemas[name] = sub
			}
		} else if fd.FieldConfig().Localized {
			compiled.FieldSchemas[name] = true
		}

		compiled.CreateValidators[name] = fd.ToValidator()
		compiled.UpdateValidators[name] = field.Optional(fd.ToValidator())
	}

	compiled.MainTable = Table{Name: c.Name(), Columns: mainCols}

	if c.EffectiveI18n() {
		i18nCols := []field.ColumnSpec{
			{Name: "id", SQLType: "text", NotNull: true, Unique: true},
			{Name: c.Name() + "_id", SQLType: "text", NotNull: true},
			{Name: "locale", SQLType: "text", NotNull: true},
			{Name: "values", SQLType: "jsonb", NotNull: true},
		}
		compiled.I18nTable = &Table{Name: c.Name() + "_i18n", Columns: i18nCols}
	}

	if c.Options().Versioning {
		versionCols := append([]field.ColumnSpec{}, mainCols...)
		versionCols = append(versionCols,
			field.ColumnSpec{Name: "version_id", SQLType: "text", NotNull: true, Unique: true},
			field.ColumnSpec{Name: "version_number", SQLType: "bigint", NotNull: true},
			field.ColumnSpec{Name: "version_created_at", SQLType: "timestamptz", NotNull: true})
		compiled.VersionsTable = &Table{Name: c.Name() + "_versions", Columns: versionCols}
	}

	compiled.Metadata = metadata(c)

	return compiled, nil
}

// ValidateRecord runs every field's validator (create or update set)
// against data, returning one message per offending field name (spec
// section 4.1, "field errors keyed by name").
func (c *Compiled) ValidateRecord(data map[string]any, forCreate bool) map[string]string {
	validators := c.UpdateValidators
	if forCreate {
		validators = c.CreateValidators
	}
	var errs map[string]string
	for name, v := range validators {
		if err := v.Validate(name, data[name]); err != nil {
			if errs == nil {
				errs = map[string]string{}
			}
			errs[name] = err.Error()
		}
	}
	return errs
}

func metadata(c *collection.Collection) []field.FieldMeta {
	out := make([]field.FieldMeta, 0, len(c.FieldOrder()))
	for _, name := range c.FieldOrder() {
		out = append(out, c.Field(name).Metadata())
	}
	return out
}

// CompiledSet is a name-indexed set of Compiled plans plus a query
// resolver shim for each collection's field set.
type CompiledSet map[string]*Compiled

// CompileRegistry compiles every collection in the registry, returning an
// aggregate error (not failing fast) so a caller can report every schema
// problem in one pass (spec: "at registration time").
func CompileRegistry(reg *collection.Registry) (CompiledSet, error) {
	out := CompiledSet{}
	var errs []error

	names := make([]string, 0, len(reg.Collections()))
	for name := range reg.Collections() {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		c := reg.Collections()[name]
		compiled, err := Compile(c)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		out[name] = compiled
	}

	gnames := make([]string, 0, len(reg.Globals()))
	for name := range reg.Globals() {
		gnames = append(gnames, name)
	}
	sort.Strings(gnames)
	for _, name := range gnames {
		g := reg.Globals()[name]
		compiled, err := Compile(g)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		out[name] = compiled
	}

	if len(errs) > 0 {
		return out, cms.NewAggregateError(errs...)
	}
	return out, nil
}

// FieldResolverFor adapts a Compiled plan's field map to query.FieldResolver.
func (cs CompiledSet) FieldResolverFor(name string) (query.FieldResolver, bool) {
	c, ok := cs[name]
	return c, ok
}

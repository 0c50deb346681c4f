// Package query implements the filter/query compiler (spec section 4.3):
// a Where predicate tree (AND/OR/NOT, per-field operators, nested JSONB
// paths) compiled into a dialect-qualified SQL WHERE clause joining the
// main table against its i18n sidecar, plus ordering and pagination.
package query

import (
	"fmt"
	"strings"

	cms "github.com/loomcms/loom"
	"github.com/loomcms/loom/field"
)

// Filter is one leaf constraint: `field operator args...`, e.g.
// {Field: "status", Op: "eq", Args: []any{"published"}}. Path addresses a
// nested key inside a JSONB field (object/array/blocks), e.g.
// Field: "seo", Path: []string{"title"}.
type Filter struct {
	Field string
	Path  []string
	Op    string
	Args  []any
}

// Predicate is a node in the Where tree: exactly one of Leaf or the
// boolean combinators is set.
type Predicate struct {
	Leaf *Filter
	And  []Predicate
	Or   []Predicate
	Not  *Predicate
}

// Eq is a convenience constructor for the common case.
func Eq(field string, v any) Predicate { return Predicate{Leaf: &Filter{Field: field, Op: "eq", Args: []any{v}}} }

// Op builds a leaf predicate for any registered operator.
func Op(fieldName, op string, args ...any) Predicate {
	return Predicate{Leaf: &Filter{Field: fieldName, Op: op, Args: args}}
}

// OpPath builds a leaf predicate addressing a nested JSONB path.
func OpPath(fieldName string, path []string, op string, args ...any) Predicate {
	return Predicate{Leaf: &Filter{Field: fieldName, Path: path, Op: op, Args: args}}
}

func And(ps ...Predicate) Predicate { return Predicate{And: ps} }
func Or(ps ...Predicate) Predicate  { return Predicate{Or: ps} }
func Not(p Predicate) Predicate     { return Predicate{Not: &p} }

// FieldResolver maps a field name to its definition, used to look up the
// operator set and column/JSONB path syntax for compilation.
type FieldResolver interface {
	Field(name string) field.FieldDefinition
}

// ColumnAware is an optional capability a FieldResolver can implement to
// admit filters over physical columns that have no declared
// field.FieldDefinition of their own: the implicit timestamp/soft-delete/
// workflow-stage columns the schema compiler adds, and the raw foreign-key
// column backing a relation field (whose own field name need not match
// its FK column name).
type ColumnAware interface {
	HasColumn(name string) bool
}

// Compiler turns a Predicate tree into a parameterised SQL fragment.
// MainAlias qualifies column references; LocalizedAliases maps a field
// name to the alias its column is qualified with instead.
type Compiler struct {
	Resolver      FieldResolver
	MainAlias     string
	LocalizedAliases map[string]string // field name -> i18n sidecar alias, when the field is localized
}

// Compile renders a Predicate into a SQL boolean expression and its
// positional parameters, starting the placeholder numbering at
// paramOffset+1 (Postgres $N placeholders).
func (c *Compiler) Compile(p Predicate, paramOffset int) (string, []any, error) {
	sql, params, err := c.compile(p, &paramOffset)
	if err != nil {
		return "", nil, err
	}
	if sql == "" {
		sql = "TRUE"
	}
	return sql, params, nil
}

func (c *Compiler) compile(p Predicate, n *int) (string, []any, error) {
	switch {
	case p.Leaf != nil:
		return c.compileLeaf(*p.Leaf, n)
	case len(p.And) > 0:
		return c.compileBool(p.And, "AND", n)
	case len(p.Or) > 0:
		return c.compileBool(p.Or, "OR", n)
	case p.Not != nil:
		inner, params, err := c.compile(*p.Not, n)
		if err != nil {
			return "", nil, err
		}
		return fmt.Sprintf("NOT (%s)", inner), params, nil
	default:
		return "TRUE", nil, nil
	}
}

func (c *Compiler) compileBool(ps []Predicate, joiner string, n *int) (string, []any, error) {
	var parts []string
	var params []any
	for _, sub := range ps {
		s, p, err := c.compile(sub, n)
		if err != nil {
			return "", nil, err
		}
		parts = append(parts, "("+s+")")
		params = append(params, p...)
	}
	if len(parts) == 0 {
		return "TRUE", nil, nil
	}
	return strings.Join(parts, " "+joiner+" "), params, nil
}

// systemColumns are the implicit columns the schema compiler adds outside
// the declared field set (timestamps, soft-delete marker, workflow
// stage); they are filterable with the plain scalar operator set even
// though they have no field.FieldDefinition of their own.
var systemColumns = map[string]struct{}{
	"id": {}, "created_at": {}, "updated_at": {}, "deleted_at": {}, "stage": {},
}

func (c *Compiler) compileLeaf(f Filter, n *int) (string, []any, error) {
	fd := c.Resolver.Field(f.Field)
	var ops field.ContextualOperators
	if fd == nil {
		_, isSystem := systemColumns[f.Field]
		isRawColumn := false
		if ca, ok := c.Resolver.(ColumnAware); ok {
			isRawColumn = ca.HasColumn(f.Field)
		}
		if !isSystem && !isRawColumn {
			return "", nil, cms.InvalidFieldConfig(fmt.Sprintf("unknown field %q in filter", f.Field))
		}
		ops = field.ContextualOperators{Column: field.ScalarColumnOperators()}
	} else {
		ops = fd.Operators()
	}

	expr := c.columnExpr(f)

	var fn field.OperatorFunc
	if len(f.Path) > 0 {
		if ops.JSONB == nil {
			return "", nil, cms.InvalidFieldConfig(fmt.Sprintf("field %q does not support path filters", f.Field))
		}
		fn = ops.JSONB[f.Op]
	} else {
		fn = ops.Column[f.Op]
		if fn == nil && ops.JSONB != nil {
			fn = ops.JSONB[f.Op]
		}
	}
	if fn == nil {
		return "", nil, cms.InvalidFieldConfig(fmt.Sprintf("unsupported operator %q for field %q", f.Op, f.Field))
	}

	sqlFrag, params, err := fn(expr, f.Args...)
	if err != nil {
		return "", nil, cms.Wrap(cms.KindInvalidFieldConfig, err)
	}
	placeholders, bound := renumber(sqlFrag, params, *n)
	*n += len(params)
	return placeholders, bound, nil
}

// columnExpr resolves the SQL expression a leaf filter targets: a plain
// column reference, optionally qualified by the i18n sidecar alias when
// the field is localized, and a jsonb path-extraction expression when
// f.Path is set.
func (c *Compiler) columnExpr(f Filter) string {
	alias := c.MainAlias
	if c.LocalizedAliases != nil {
		if a, ok := c.LocalizedAliases[f.Field]; ok {
			alias = a
		}
	}
	col := fmt.Sprintf("%s.%s", alias, quoteIdent(f.Field))
	if len(f.Path) == 0 {
		return col
	}
	parts := make([]string, len(f.Path))
	for i, p := range f.Path {
		parts[i] = p
	}
	return fmt.Sprintf("%s#>'{%s}'", col, strings.Join(parts, ","))
}

func quoteIdent(s string) string { return `"` + strings.ReplaceAll(s, `"`, `""`) + `"` }

// renumber rewrites an operator's literal "$$" value markers (used by
// field.OperatorFunc implementations, which don't know their final
// position in the overall statement) into Postgres `$N` placeholders
// starting after offset. "$$" is used rather than "?" because several
// JSONB operators (?, ?&, ?|) are themselves literal "?" characters in
// the rendered SQL.
func renumber(frag string, params []any, offset int) (string, []any) {
	var b strings.Builder
	idx := 0
	for i := 0; i < len(frag); {
		if i+1 < len(frag) && frag[i] == '$' && frag[i+1] == '$' && idx < len(params) {
			idx++
			fmt.Fprintf(&b, "$%d", offset+idx)
			i += 2
			continue
		}
		b.WriteByte(frag[i])
		i++
	}
	return b.String(), params
}

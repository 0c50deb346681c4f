package query

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/loomcms/loom/field"
)

type fakeResolver struct {
	fields  map[string]field.FieldDefinition
	columns map[string]struct{}
}

func (r fakeResolver) Field(name string) field.FieldDefinition { return r.fields[name] }
func (r fakeResolver) HasColumn(name string) bool {
	_, ok := r.columns[name]
	return ok
}

func newResolver() fakeResolver {
	return fakeResolver{
		fields: map[string]field.FieldDefinition{
			"title":  field.Text("title"),
			"status": field.Text("status"),
		},
		columns: map[string]struct{}{"created_at": {}},
	}
}

func TestCompileEqLeafProducesPlaceholder(t *testing.T) {
	t.Parallel()
	c := &Compiler{Resolver: newResolver(), MainAlias: "t"}
	sql, params, err := c.Compile(Eq("status", "published"), 0)
	require.NoError(t, err)
	assert.Contains(t, sql, `t."status"`)
	assert.Contains(t, sql, "$1")
	assert.Equal(t, []any{"published"}, params)
}

func TestCompileAndOrNesting(t *testing.T) {
	t.Parallel()
	c := &Compiler{Resolver: newResolver(), MainAlias: "t"}
	pred := And(Eq("status", "published"), Or(Eq("title", "a"), Eq("title", "b")))

	sql, params, err := c.Compile(pred, 0)
	require.NoError(t, err)
	assert.Contains(t, sql, "AND")
	assert.Contains(t, sql, "OR")
	assert.Equal(t, []any{"published", "a", "b"}, params)
	assert.Contains(t, sql, "$3")
}

func TestCompileNotWrapsInner(t *testing.T) {
	t.Parallel()
	c := &Compiler{Resolver: newResolver(), MainAlias: "t"}
	sql, _, err := c.Compile(Not(Eq("status", "draft")), 0)
	require.NoError(t, err)
	assert.Contains(t, sql, "NOT (")
}

func TestCompileEmptyPredicateIsTrue(t *testing.T) {
	t.Parallel()
	c := &Compiler{Resolver: newResolver(), MainAlias: "t"}
	sql, params, err := c.Compile(Predicate{}, 0)
	require.NoError(t, err)
	assert.Equal(t, "TRUE", sql)
	assert.Empty(t, params)
}

func TestCompileUnknownFieldErrors(t *testing.T) {
	t.Parallel()
	c := &Compiler{Resolver: newResolver(), MainAlias: "t"}
	_, _, err := c.Compile(Eq("nope", 1), 0)
	assert.Error(t, err)
}

func TestCompileSystemColumnIsFilterableWithoutFieldDefinition(t *testing.T) {
	t.Parallel()
	c := &Compiler{Resolver: newResolver(), MainAlias: "t"}
	_, _, err := c.Compile(Eq("created_at", "2026-01-01"), 0)
	require.NoError(t, err)
}

func TestCompileUnsupportedOperatorErrors(t *testing.T) {
	t.Parallel()
	c := &Compiler{Resolver: newResolver(), MainAlias: "t"}
	_, _, err := c.Compile(Op("status", "regexMatch", "^a"), 0)
	assert.Error(t, err)
}

func TestCompileUsesLocalizedAliasWhenPresent(t *testing.T) {
	t.Parallel()
	c := &Compiler{
		Resolver:         newResolver(),
		MainAlias:        "t",
		LocalizedAliases: map[string]string{"title": "i18n"},
	}
	sql, _, err := c.Compile(Eq("title", "Hello"), 0)
	require.NoError(t, err)
	assert.Contains(t, sql, `i18n."title"`)
}

func TestBuildSelectJoinsI18nTableAndAppendsPagination(t *testing.T) {
	t.Parallel()
	compiler := &Compiler{Resolver: newResolver()}
	spec := TableSpec{Table: "posts", I18nTable: "posts_i18n", PrimaryKey: "id"}

	plan, err := BuildSelect(spec, []string{"t.id", "t.status"}, compiler,
		Eq("status", "published"),
		[]Sort{{Field: "created_at", Desc: true}},
		Page{Limit: 10, Offset: 20},
		"en",
	)
	require.NoError(t, err)
	assert.Contains(t, plan.SelectSQL, "LEFT JOIN posts_i18n")
	assert.Contains(t, plan.SelectSQL, "ORDER BY t.\"created_at\" DESC")
	assert.Contains(t, plan.SelectSQL, "LIMIT $2")
	assert.Contains(t, plan.SelectSQL, "OFFSET $3")
	assert.Equal(t, []any{"published", 10, 20}, plan.Params)
	assert.Equal(t, []any{"published"}, plan.CountParams)
	assert.NotContains(t, plan.CountSQL, "LIMIT")
}

func TestBuildSelectOmitsJoinWhenNoI18nTable(t *testing.T) {
	t.Parallel()
	compiler := &Compiler{Resolver: newResolver()}
	spec := TableSpec{Table: "tags", PrimaryKey: "id"}

	plan, err := BuildSelect(spec, []string{"t.id"}, compiler, Predicate{}, nil, Page{}, "en")
	require.NoError(t, err)
	assert.NotContains(t, plan.SelectSQL, "LEFT JOIN")
	assert.NotContains(t, plan.SelectSQL, "LIMIT")
	assert.NotContains(t, plan.SelectSQL, "OFFSET")
}

package schemacompiler

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	cms "github.com/loomcms/loom"
	"github.com/loomcms/loom/collection"
	"github.com/loomcms/loom/field"
)

func TestCompileRejectsEmptyName(t *testing.T) {
	t.Parallel()
	c := &collection.Collection{}
	_, err := Compile(c)
	require.Error(t, err)
}

func TestCompileRejectsFieldlessCollection(t *testing.T) {
	t.Parallel()
	c := collection.New("posts", collection.Options{})
	_, err := Compile(c)
	require.Error(t, err)
	assert.Equal(t, cms.KindInvalidFieldConfig, cms.KindOf(err))
}

func TestCompileSynthesizesTimestampAndSoftDeleteColumns(t *testing.T) {
	t.Parallel()
	c := collection.New("posts", collection.Options{Timestamps: true, SoftDelete: true}).
		AddField(field.Text("title"))

	compiled, err := Compile(c)
	require.NoError(t, err)

	assert.True(t, compiled.HasColumn("id"))
	assert.True(t, compiled.HasColumn("created_at"))
	assert.True(t, compiled.HasColumn("updated_at"))
	assert.True(t, compiled.HasColumn("deleted_at"))
	assert.True(t, compiled.HasColumn("title"))
}

func TestCompileRejectsWorkflowWithUndeclaredInitialStage(t *testing.T) {
	t.Parallel()
	c := collection.New("posts", collection.Options{
		Workflow: &collection.WorkflowConfig{Initial: "draft", Stages: []string{"published"}},
	}).AddField(field.Text("title"))

	_, err := Compile(c)
	require.Error(t, err)
}

func TestCompileAddsStageColumnForValidWorkflow(t *testing.T) {
	t.Parallel()
	c := collection.New("posts", collection.Options{
		Workflow: &collection.WorkflowConfig{Initial: "draft", Stages: []string{"draft", "published"}},
	}).AddField(field.Text("title"))

	compiled, err := Compile(c)
	require.NoError(t, err)
	assert.True(t, compiled.HasColumn("stage"))
}

func TestCompileBuildsI18nTableWhenFieldsLocalized(t *testing.T) {
	t.Parallel()
	c := collection.New("posts", collection.Options{}).
		AddField(field.Text("title", field.Localized()))

	compiled, err := Compile(c)
	require.NoError(t, err)
	require.NotNil(t, compiled.I18nTable)
	assert.Equal(t, "posts_i18n", compiled.I18nTable.Name)
	assert.Equal(t, i18nSchemaTrue(t, compiled, "title"), true)
}

func i18nSchemaTrue(t *testing.T, c *Compiled, name string) any {
	t.Helper()
	return c.FieldSchemas[name]
}

func TestCompileOmitsI18nTableWithoutLocalizedFields(t *testing.T) {
	t.Parallel()
	c := collection.New("tags", collection.Options{}).AddField(field.Text("name"))
	compiled, err := Compile(c)
	require.NoError(t, err)
	assert.Nil(t, compiled.I18nTable)
}

func TestCompileBuildsVersionsTableWhenVersioningEnabled(t *testing.T) {
	t.Parallel()
	c := collection.New("posts", collection.Options{Versioning: true}).AddField(field.Text("title"))
	compiled, err := Compile(c)
	require.NoError(t, err)
	require.NotNil(t, compiled.VersionsTable)
	assert.Equal(t, "posts_versions", compiled.VersionsTable.Name)
}

func TestCompileRejectsRelationWithoutTarget(t *testing.T) {
	t.Parallel()
	rel := field.BelongsToField("author", "", nil)
	c := collection.New("posts", collection.Options{}).AddField(rel)
	_, err := Compile(c)
	require.Error(t, err)
}

func TestValidateRecordUsesCreateOrUpdateValidatorSet(t *testing.T) {
	t.Parallel()
	c := collection.New("posts", collection.Options{}).AddField(field.Text("title", field.Required()))
	compiled, err := Compile(c)
	require.NoError(t, err)

	createErrs := compiled.ValidateRecord(map[string]any{}, true)
	assert.Contains(t, createErrs, "title")

	updateErrs := compiled.ValidateRecord(map[string]any{}, false)
	assert.NotContains(t, updateErrs, "title", "update validators are wrapped Optional so a missing field is not an error")
}

func TestCompileRegistryAggregatesErrorsAcrossCollections(t *testing.T) {
	t.Parallel()
	reg := collection.NewRegistry()
	reg.Register(collection.New("posts", collection.Options{})) // no fields: invalid
	reg.Register(collection.New("tags", collection.Options{}).AddField(field.Text("name")))

	_, err := CompileRegistry(reg)
	require.Error(t, err)
}

func TestCompileRegistrySucceedsAndIndexesByName(t *testing.T) {
	t.Parallel()
	reg := collection.NewRegistry()
	reg.Register(collection.New("tags", collection.Options{}).AddField(field.Text("name")))
	reg.Register(collection.NewGlobal("siteSettings", collection.Options{}).AddField(field.Text("title")))

	set, err := CompileRegistry(reg)
	require.NoError(t, err)
	assert.Contains(t, set, "tags")
	assert.Contains(t, set, "siteSettings")

	resolver, ok := set.FieldResolverFor("tags")
	require.True(t, ok)
	assert.NotNil(t, resolver.Field("name"))
}

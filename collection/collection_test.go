package collection

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/loomcms/loom/access"
	"github.com/loomcms/loom/field"
)

func TestNewDeclaresNonGlobalCollection(t *testing.T) {
	t.Parallel()
	c := New("posts", Options{Timestamps: true})
	assert.Equal(t, "posts", c.Name())
	assert.False(t, c.IsGlobal())
	assert.True(t, c.Options().Timestamps)
}

func TestNewGlobalMarksGlobal(t *testing.T) {
	t.Parallel()
	c := NewGlobal("siteSettings", Options{})
	assert.True(t, c.IsGlobal())
}

func TestAddFieldPreservesDeclarationOrderAndReplaceIsInPlace(t *testing.T) {
	t.Parallel()
	c := New("posts", Options{}).
		AddField(field.Text("title")).
		AddField(field.Text("slug"))

	assert.Equal(t, []string{"title", "slug"}, c.FieldOrder())

	c.AddField(field.Text("title", field.Localized()))
	assert.Equal(t, []string{"title", "slug"}, c.FieldOrder(), "re-adding an existing field must not duplicate its order entry")
	assert.True(t, c.Field("title").FieldConfig().Localized)
}

func TestHasLocalizedFieldsAndEffectiveI18n(t *testing.T) {
	t.Parallel()

	plain := New("tags", Options{}).AddField(field.Text("name"))
	assert.False(t, plain.HasLocalizedFields())
	assert.False(t, plain.EffectiveI18n())

	localized := New("posts", Options{}).AddField(field.Text("title", field.Localized()))
	assert.True(t, localized.HasLocalizedFields())
	assert.True(t, localized.EffectiveI18n())
}

func TestEffectiveI18nHonorsForceI18nOverride(t *testing.T) {
	t.Parallel()
	forceOn := true
	c := New("tags", Options{ForceI18n: &forceOn}).AddField(field.Text("name"))
	assert.True(t, c.EffectiveI18n())

	forceOff := false
	localized := New("posts", Options{ForceI18n: &forceOff}).AddField(field.Text("title", field.Localized()))
	assert.False(t, localized.EffectiveI18n())
}

func TestAccessForFallsBackFromTransitionToUpdate(t *testing.T) {
	t.Parallel()
	c := New("posts", Options{}).WithAccess(Access{Update: access.Public()})
	assert.Nil(t, c.AccessFor("create"))
	assert.NotNil(t, c.AccessFor("transition"), "transition should fall back to Update when unset")

	withTransition := New("posts", Options{}).WithAccess(Access{
		Update:     access.Private(),
		Transition: access.Public(),
	})
	assert.Equal(t, access.Allow, withTransition.AccessFor("transition")(nil, nil))
}

func TestAccessForUnknownOperationReturnsNil(t *testing.T) {
	t.Parallel()
	c := New("posts", Options{})
	assert.Nil(t, c.AccessFor("unknown"))
}

func TestWorkflowConfigAllowedFromAndHasStage(t *testing.T) {
	t.Parallel()
	wf := &WorkflowConfig{
		Initial: "draft",
		Stages:  []string{"draft", "review", "published"},
		Transitions: map[string][]string{
			"draft":  {"review"},
			"review": {"draft", "published"},
		},
	}

	assert.True(t, wf.HasStage("draft"))
	assert.False(t, wf.HasStage("archived"))
	assert.True(t, wf.AllowedFrom("draft", "review"))
	assert.False(t, wf.AllowedFrom("draft", "published"))
}

func TestWorkflowConfigNilReceiverIsSafe(t *testing.T) {
	t.Parallel()
	var wf *WorkflowConfig
	assert.False(t, wf.HasStage("draft"))
	assert.False(t, wf.AllowedFrom("draft", "review"))
}

func TestRegistryRegisterSeparatesCollectionsFromGlobals(t *testing.T) {
	t.Parallel()
	reg := NewRegistry()
	reg.Register(New("posts", Options{}))
	reg.Register(NewGlobal("siteSettings", Options{}))

	_, ok := reg.Collection("posts")
	assert.True(t, ok)
	_, ok = reg.Global("posts")
	assert.False(t, ok)

	_, ok = reg.Global("siteSettings")
	assert.True(t, ok)
	_, ok = reg.Collection("siteSettings")
	assert.False(t, ok)

	assert.Len(t, reg.Collections(), 1)
	assert.Len(t, reg.Globals(), 1)
}

package search

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/loomcms/loom/access"
	"github.com/loomcms/loom/collection"
	"github.com/loomcms/loom/schemacompiler"
)

type fakeRuntimeCtx struct {
	roles         []string
	userID        string
	authenticated bool
}

func (f fakeRuntimeCtx) SessionRoles() []string { return f.roles }
func (f fakeRuntimeCtx) SessionUserID() string  { return f.userID }
func (f fakeRuntimeCtx) IsAuthenticated() bool  { return f.authenticated }

func schemaSetOf(collections ...*collection.Collection) schemacompiler.CompiledSet {
	set := schemacompiler.CompiledSet{}
	for _, c := range collections {
		set[c.Name()] = &schemacompiler.Compiled{Collection: c}
	}
	return set
}

func TestAllowedCollectionsDropsStaticDeny(t *testing.T) {
	t.Parallel()
	public := collection.New("posts", collection.Options{}).WithAccess(collection.Access{Read: access.Public()})
	private := collection.New("secrets", collection.Options{}).WithAccess(collection.Access{Read: access.Private()})
	schemas := schemaSetOf(public, private)

	allowed := allowedCollections(schemas, []string{"posts", "secrets"}, fakeRuntimeCtx{})
	assert.Equal(t, []string{"posts"}, allowed)
}

func TestAllowedCollectionsKeepsRowLevelRulesForPerHitEnforcement(t *testing.T) {
	t.Parallel()
	owned := collection.New("documents", collection.Options{}).WithAccess(collection.Access{Read: access.Owner("owner_id")})
	schemas := schemaSetOf(owned)

	allowed := allowedCollections(schemas, []string{"documents"}, fakeRuntimeCtx{userID: "u1", authenticated: true})
	assert.Equal(t, []string{"documents"}, allowed)
}

func TestAllowedCollectionsSkipsDisabledSearchable(t *testing.T) {
	t.Parallel()
	c := collection.New("internal", collection.Options{}).
		WithAccess(collection.Access{Read: access.Public()}).
		WithSearchable(&collection.SearchableConfig{Disabled: true})
	schemas := schemaSetOf(c)

	allowed := allowedCollections(schemas, []string{"internal"}, fakeRuntimeCtx{})
	assert.Empty(t, allowed)
}

func TestAllowedCollectionsSkipsUnsetRule(t *testing.T) {
	t.Parallel()
	c := collection.New("posts", collection.Options{})
	schemas := schemaSetOf(c)

	allowed := allowedCollections(schemas, []string{"posts"}, fakeRuntimeCtx{})
	assert.Empty(t, allowed)
}

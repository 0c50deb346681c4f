// Package collection implements the Collection/Global model (spec section
// 3.2/3.3): an ordered field map plus options (timestamps, soft delete,
// versioning, workflow, i18n), access rules, hooks, indexes, and an
// optional searchable config.
package collection

import (
	"github.com/loomcms/loom/access"
	"github.com/loomcms/loom/field"
)

// WorkflowConfig declares the named lifecycle stages a record can be in
// and the allowed transitions between them (spec section 3.6, "Workflow
// well-formedness").
type WorkflowConfig struct {
	Initial     string
	Stages      []string
	Transitions map[string][]string // stage -> allowed next stages
}

// AllowedFrom reports whether `to` is a legal transition target from
// `from`.
func (w *WorkflowConfig) AllowedFrom(from, to string) bool {
	if w == nil {
		return false
	}
	for _, s := range w.Transitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

// HasStage reports whether stage is declared.
func (w *WorkflowConfig) HasStage(stage string) bool {
	if w == nil {
		return false
	}
	for _, s := range w.Stages {
		if s == stage {
			return true
		}
	}
	return false
}

// Options are the per-collection switches from spec section 3.2.
type Options struct {
	Timestamps bool
	SoftDelete bool
	Versioning bool
	Workflow   *WorkflowConfig
	// I18n is computed automatically (true iff any field is localized)
	// unless ForceI18n overrides it.
	ForceI18n *bool
}

// IndexSpec declares a database index over one or more fields.
type IndexSpec struct {
	Name   string
	Fields []string
	Unique bool
}

// SearchableConfig controls the search indexing pipeline (spec section
// 4.8). A nil *SearchableConfig means "indexed with defaults"; Disabled
// opts a collection out entirely.
type SearchableConfig struct {
	Disabled   bool
	TitleField string
	Content    func(r map[string]any) string
	Metadata   func(r map[string]any) map[string]any
	Embeddings func(r map[string]any) []float64
}

// Hooks are the lifecycle hooks of spec section 4.5/4.2.
type Hooks struct {
	BeforeChange     []HookFunc
	AfterChange      []HookFunc
	BeforeDelete     []HookFunc
	AfterDelete      []HookFunc
	Validate         []HookFunc
	BeforeTransition []TransitionHookFunc
	AfterTransition  []TransitionHookFunc
}

// HookContext is passed to a before/after hook.
type HookContext struct {
	Collection string
	Operation  string // create | update | delete
	Data       map[string]any
	Existing   map[string]any // previous state, for update/delete
}

// HookFunc is a before/after-change, before/after-delete, or validate hook.
// It may mutate hctx.Data in place (spec: "a hook may mutate the input
// object").
type HookFunc func(ctx HookRuntimeContext, hctx *HookContext) error

// TransitionHookFunc is a before/afterTransition hook.
type TransitionHookFunc func(ctx HookRuntimeContext, fromStage, toStage string) error

// HookRuntimeContext is the minimal ambient-context surface a hook needs;
// defined here (rather than importing package cms) only to avoid a cycle
// with the root package, which access/collection sit underneath. The root
// *cms.AppContext satisfies this interface.
type HookRuntimeContext interface {
	EffectiveLocale() string
}

// Collection is a named record type with a main table and optional
// sidecars (spec section 3.2).
type Collection struct {
	name       string
	isGlobal   bool
	fields     map[string]field.FieldDefinition
	fieldOrder []string
	options    Options
	accessRules Access
	hooks      Hooks
	indexes    []IndexSpec
	searchable *SearchableConfig
}

// Access groups the per-operation access rules (spec section 3.2/4.5).
type Access struct {
	Create     access.Rule
	Read       access.Rule
	Update     access.Rule
	Delete     access.Rule
	Transition access.Rule // falls back to Update when nil
}

// New declares a collection with the given name and options.
func New(name string, opts Options) *Collection {
	return &Collection{name: name, fields: map[string]field.FieldDefinition{}, options: opts}
}

// NewGlobal declares a singleton collection (spec section 3.3).
func NewGlobal(name string, opts Options) *Collection {
	c := New(name, opts)
	c.isGlobal = true
	return c
}

func (c *Collection) Name() string    { return c.name }
func (c *Collection) IsGlobal() bool  { return c.isGlobal }
func (c *Collection) Options() Options { return c.options }
func (c *Collection) Indexes() []IndexSpec { return c.indexes }
func (c *Collection) Searchable() *SearchableConfig { return c.searchable }
func (c *Collection) HookSet() Hooks { return c.hooks }
func (c *Collection) AccessRules() Access { return c.accessRules }

// FieldOrder returns field names in declaration order.
func (c *Collection) FieldOrder() []string { return c.fieldOrder }

// Fields returns the field-definition map.
func (c *Collection) Fields() map[string]field.FieldDefinition { return c.fields }

// Field returns the named field, or nil.
func (c *Collection) Field(name string) field.FieldDefinition { return c.fields[name] }

// AddField registers a field definition and returns c for chaining.
func (c *Collection) AddField(f field.FieldDefinition) *Collection {
	if _, exists := c.fields[f.Name()]; !exists {
		c.fieldOrder = append(c.fieldOrder, f.Name())
	}
	c.fields[f.Name()] = f
	return c
}

// AddIndex registers an index spec and returns c for chaining.
func (c *Collection) AddIndex(idx IndexSpec) *Collection {
	c.indexes = append(c.indexes, idx)
	return c
}

// WithAccess sets the access rule set and returns c for chaining.
func (c *Collection) WithAccess(a Access) *Collection {
	c.accessRules = a
	return c
}

// WithHooks sets the hook set and returns c for chaining.
func (c *Collection) WithHooks(h Hooks) *Collection {
	c.hooks = h
	return c
}

// WithSearchable sets the search config and returns c for chaining.
func (c *Collection) WithSearchable(s *SearchableConfig) *Collection {
	c.searchable = s
	return c
}

// HasLocalizedFields reports whether any field (recursively through
// compound fields) is localized, determining whether an i18n sidecar
// table is materialised (spec section 3.2).
func (c *Collection) HasLocalizedFields() bool {
	for _, name := range c.fieldOrder {
		f := c.fields[name]
		if f.FieldConfig().Localized {
			return true
		}
		if comp, ok := f.(field.Compound); ok {
			if comp.LocalizationSchema() != nil {
				return true
			}
		}
	}
	return false
}

// EffectiveI18n resolves whether this collection materialises an i18n
// sidecar table.
func (c *Collection) EffectiveI18n() bool {
	if c.options.ForceI18n != nil {
		return *c.options.ForceI18n
	}
	return c.HasLocalizedFields()
}

// AccessFor resolves the access rule for a named operation, applying the
// spec's "transition falls back to update" rule.
func (c *Collection) AccessFor(op string) access.Rule {
	switch op {
	case "create":
		return c.accessRules.Create
	case "read":
		return c.accessRules.Read
	case "update":
		return c.accessRules.Update
	case "delete":
		return c.accessRules.Delete
	case "transition":
		if c.accessRules.Transition != nil {
			return c.accessRules.Transition
		}
		return c.accessRules.Update
	default:
		return nil
	}
}

// Registry is a named collection of Collections and Globals, owned by the
// top-level CMS instance.
type Registry struct {
	collections map[string]*Collection
	globals     map[string]*Collection
}

func NewRegistry() *Registry {
	return &Registry{collections: map[string]*Collection{}, globals: map[string]*Collection{}}
}

func (r *Registry) Register(c *Collection) {
	if c.isGlobal {
		r.globals[c.name] = c
		return
	}
	r.collections[c.name] = c
}

func (r *Registry) Collection(name string) (*Collection, bool) {
	c, ok := r.collections[name]
	return c, ok
}

func (r *Registry) Global(name string) (*Collection, bool) {
	c, ok := r.globals[name]
	return c, ok
}

func (r *Registry) Collections() map[string]*Collection { return r.collections }
func (r *Registry) Globals() map[string]*Collection      { return r.globals }

// Package field implements the closed field-kind registry and the
// FieldDefinition contract (spec section 4.1): each field kind knows how to
// turn itself into a SQL column, a validator, a set of contextual query
// operators, and introspection metadata.
//
// Field polymorphism is expressed as a closed variant over kinds plus a
// capability set, grounded in the teacher's schema/field package (itself a
// closed set of scalar/compound builders) — generalised here from
// "compile to Go source" to "compile to a runtime table/validator spec".
package field

import (
	"fmt"

	"github.com/loomcms/loom"
)

// Kind is the closed set of field kinds this engine understands.
type Kind string

const (
	KindText      Kind = "text"
	KindTextarea  Kind = "textarea"
	KindNumber    Kind = "number"
	KindBoolean   Kind = "boolean"
	KindDate      Kind = "date"
	KindDateTime  Kind = "datetime"
	KindTime      Kind = "time"
	KindSelect    Kind = "select"
	KindJSON      Kind = "json"
	KindObject    Kind = "object"
	KindArray     Kind = "array"
	KindBlocks    Kind = "blocks"
	KindRelation  Kind = "relation"
	KindUpload    Kind = "upload"
	KindRichText  Kind = "richText"
	KindURL       Kind = "url"
	KindEmail     Kind = "email"
)

// ColumnSpec describes the SQL column a field materialises to.
type ColumnSpec struct {
	Name    string
	SQLType string
	NotNull bool
	Unique  bool
	Default any // literal value, or a func() any thunk resolved at write time
}

// FieldMeta is the serialisable introspection description of a field (spec
// section 4.1, getMetadata), used by the schema compiler's introspection
// endpoint.
type FieldMeta struct {
	Name        string         `json:"name"`
	Kind        Kind           `json:"kind"`
	Required    bool           `json:"required"`
	Nullable    bool           `json:"nullable"`
	Localized   bool           `json:"localized"`
	Input       bool           `json:"input"`
	Output      bool           `json:"output"`
	Label       string         `json:"label,omitempty"`
	Description string         `json:"description,omitempty"`
	Children    []FieldMeta    `json:"children,omitempty"`
	Relation    *RelationMeta  `json:"relation,omitempty"`
	Extra       map[string]any `json:"extra,omitempty"`
}

// RelationMeta describes a relation field for introspection.
type RelationMeta struct {
	Kind         RelationKind `json:"kind"`
	Target       string       `json:"target"`
	FKField      string       `json:"fk_field"`
	PKField      string       `json:"pk_field"`
	RelationName string       `json:"relation_name"`
}

// RelationKind distinguishes belongsTo from hasMany relations (spec
// section 4.1).
type RelationKind string

const (
	BelongsTo RelationKind = "belongsTo"
	HasMany   RelationKind = "hasMany"
)

// OperatorFunc compiles a single predicate operator into a parameterised
// SQL fragment given a column (or JSONB path) expression and operator
// arguments. It returns the fragment with positional placeholders already
// expanded by the caller's placeholder allocator.
type OperatorFunc func(expr string, args ...any) (sqlFragment string, params []any, err error)

// OperatorMap is a named set of operators (eq, gt, contains, ...).
type OperatorMap map[string]OperatorFunc

// ContextualOperators groups the operators usable directly on a column,
// and the operators usable on a JSONB path within the column (spec
// section 4.1/4.3).
type ContextualOperators struct {
	Column OperatorMap
	JSONB  OperatorMap
}

// Config carries the per-field configuration common to every kind. Extra
// holds kind-specific constraints (maxLen, minLen, select values, ...) set
// by functional Options so concrete kinds can share one builder shape.
type Config struct {
	Required    bool
	Nullable    bool
	Localized   bool
	Input       bool
	Output      bool
	Label       string
	Description string
	Default     any // value, or func() any
	Unique      bool
	Extra       map[string]any
}

// Option mutates a Config during field construction (functional-options
// pattern, matching the "options" idiom used throughout the corpus's AWS
// SDK and adapter wiring rather than a per-kind fluent builder type).
type Option func(*Config)

func Required() Option    { return func(c *Config) { c.Required = true } }
func Nullable() Option    { return func(c *Config) { c.Nullable = true } }
func Localized() Option   { return func(c *Config) { c.Localized = true } }
func Unique() Option      { return func(c *Config) { c.Unique = true } }
func NoInput() Option     { return func(c *Config) { c.Input = false } }
func NoOutput() Option    { return func(c *Config) { c.Output = false } }
func Label(s string) Option       { return func(c *Config) { c.Label = s } }
func Description(s string) Option { return func(c *Config) { c.Description = s } }
func DefaultValue(v any) Option    { return func(c *Config) { c.Default = v } }

// MaxLen constrains text/textarea length.
func MaxLen(n int) Option { return func(c *Config) { c.Extra["maxLen"] = n } }

// MinLen constrains text/textarea length.
func MinLen(n int) Option { return func(c *Config) { c.Extra["minLen"] = n } }

// Values constrains a select field's accepted values.
func Values(vs ...string) Option { return func(c *Config) { c.Extra["values"] = vs } }

// Precision sets a number field's scale (0 = integer).
func Precision(n int) Option { return func(c *Config) { c.Extra["precision"] = n } }

func newConfig(opts ...Option) Config {
	cfg := DefaultConfig()
	cfg.Extra = map[string]any{}
	for _, o := range opts {
		o(&cfg)
	}
	return cfg
}

// DefaultConfig returns the baseline configuration: readable and writable,
// not required, not nullable, not localized.
func DefaultConfig() Config {
	return Config{Input: true, Output: true}
}

// FieldDefinition is the capability set every field kind must implement
// (spec section 4.1).
type FieldDefinition interface {
	Name() string
	Kind() Kind
	FieldConfig() Config
	ToColumn() ColumnSpec
	ToValidator() Validator
	Operators() ContextualOperators
	Metadata() FieldMeta
}

// Compound is implemented by fields that nest other fields (object, array,
// blocks), used by the schema compiler and the nested localisation
// splitter to recurse into child field trees.
type Compound interface {
	FieldDefinition
	// LocalizationSchema returns the structural template (spec section
	// 4.4) describing which leaves of this field tree are localized.
	LocalizationSchema() any
}

// Relational is implemented by relation and upload fields.
type Relational interface {
	FieldDefinition
	RelationInfo() RelationMeta
}

// Constructor builds a FieldDefinition for a registered kind, given a
// field name.
type Constructor func(name string) FieldDefinition

var registry = map[Kind]struct{}{
	KindText: {}, KindTextarea: {}, KindNumber: {}, KindBoolean: {},
	KindDate: {}, KindDateTime: {}, KindTime: {}, KindSelect: {},
	KindJSON: {}, KindObject: {}, KindArray: {}, KindBlocks: {},
	KindRelation: {}, KindUpload: {}, KindRichText: {}, KindURL: {}, KindEmail: {},
}

// RegisterKind extends the closed set with a custom kind, so an embedding
// application can add a field type without forking this package. Unknown
// kinds encountered during schema compilation that were never registered
// fail with cms.KindInvalidFieldConfig.
func RegisterKind(k Kind) { registry[k] = struct{}{} }

// IsRegistered reports whether k is a known field kind.
func IsRegistered(k Kind) bool {
	_, ok := registry[k]
	return ok
}

// ValidateKind returns a typed InvalidFieldConfig error if k is unknown.
func ValidateKind(k Kind) error {
	if !IsRegistered(k) {
		return cms.InvalidFieldConfig(fmt.Sprintf("unknown field kind %q", k))
	}
	return nil
}

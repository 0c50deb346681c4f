package field

import cms "github.com/loomcms/loom"

// LocSchema is the structural template describing which leaves of a
// compound field tree are localized (spec section 4.4). true marks a
// localized leaf; nested maps/the _item/_blocks markers mirror the field
// tree shape.
type LocSchema any

const (
	locItemKey   = "_item"
	locBlocksKey = "_blocks"
)

// ObjectField is a compound field nesting a fixed map of child fields.
type ObjectField struct {
	name   string
	cfg    Config
	fields map[string]FieldDefinition
	order  []string
}

// Object declares an object field with the given child fields.
func Object(name string, fields []FieldDefinition, opts ...Option) *ObjectField {
	of := &ObjectField{name: name, cfg: newConfig(opts...), fields: map[string]FieldDefinition{}}
	for _, f := range fields {
		of.fields[f.Name()] = f
		of.order = append(of.order, f.Name())
	}
	return of
}

func (f *ObjectField) Name() string        { return f.name }
func (f *ObjectField) Kind() Kind          { return KindObject }
func (f *ObjectField) FieldConfig() Config { return f.cfg }
func (f *ObjectField) Fields() map[string]FieldDefinition { return f.fields }
func (f *ObjectField) FieldOrder() []string { return f.order }

func (f *ObjectField) ToColumn() ColumnSpec {
	return ColumnSpec{Name: f.name, SQLType: "jsonb", NotNull: f.cfg.Required && !f.cfg.Nullable}
}

func (f *ObjectField) ToValidator() Validator {
	return ValidatorFunc(func(name string, v any) error {
		if v == nil {
			if f.cfg.Required && !f.cfg.Nullable {
				return requiredValidator().Validate(name, v)
			}
			return nil
		}
		m, ok := v.(map[string]any)
		if !ok {
			if mm, ok2 := v.(cms.Record); ok2 {
				m = map[string]any(mm)
			} else {
				return requiredValidator().Validate(name, nil)
			}
		}
		for fname, fd := range f.fields {
			if err := fd.ToValidator().Validate(fname, m[fname]); err != nil {
				return err
			}
		}
		return nil
	})
}

func (f *ObjectField) Operators() ContextualOperators {
	return ContextualOperators{Column: ScalarColumnOperators(), JSONB: JSONBOperators()}
}

func (f *ObjectField) Metadata() FieldMeta {
	children := make([]FieldMeta, 0, len(f.order))
	for _, name := range f.order {
		children = append(children, f.fields[name].Metadata())
	}
	return FieldMeta{Name: f.name, Kind: KindObject, Required: f.cfg.Required, Nullable: f.cfg.Nullable,
		Localized: f.cfg.Localized, Input: f.cfg.Input, Output: f.cfg.Output, Children: children}
}

// LocalizationSchema builds the nested localisation schema for this object:
// `true` per localized leaf, recursing into nested compounds (spec 4.4).
func (f *ObjectField) LocalizationSchema() any {
	out := map[string]any{}
	any_ := false
	for _, name := range f.order {
		fd := f.fields[name]
		if fd.FieldConfig().Localized {
			out[name] = true
			any_ = true
			continue
		}
		if c, ok := fd.(Compound); ok {
			sub := c.LocalizationSchema()
			if sub != nil {
				out[name] = sub
				any_ = true
			}
		}
	}
	if !any_ {
		return nil
	}
	return out
}

// ArrayField is a compound field whose elements all share one element
// field definition (spec section 3.1).
type ArrayField struct {
	name    string
	cfg     Config
	element FieldDefinition
}

// Array declares an array field of the given element type.
func Array(name string, element FieldDefinition, opts ...Option) *ArrayField {
	return &ArrayField{name: name, cfg: newConfig(opts...), element: element}
}

func (f *ArrayField) Name() string        { return f.name }
func (f *ArrayField) Kind() Kind          { return KindArray }
func (f *ArrayField) FieldConfig() Config { return f.cfg }
func (f *ArrayField) Element() FieldDefinition { return f.element }

func (f *ArrayField) ToColumn() ColumnSpec {
	return ColumnSpec{Name: f.name, SQLType: "jsonb", NotNull: f.cfg.Required && !f.cfg.Nullable}
}

func (f *ArrayField) ToValidator() Validator {
	return ValidatorFunc(func(name string, v any) error {
		if v == nil {
			if f.cfg.Required && !f.cfg.Nullable {
				return requiredValidator().Validate(name, v)
			}
			return nil
		}
		items, ok := v.([]any)
		if !ok {
			return requiredValidator().Validate(name, nil)
		}
		for i, item := range items {
			if err := f.element.ToValidator().Validate(name, item); err != nil {
				return err
			}
			_ = i
		}
		return nil
	})
}

func (f *ArrayField) Operators() ContextualOperators {
	return ContextualOperators{Column: ScalarColumnOperators(), JSONB: JSONBOperators()}
}

func (f *ArrayField) Metadata() FieldMeta {
	return FieldMeta{Name: f.name, Kind: KindArray, Required: f.cfg.Required, Nullable: f.cfg.Nullable,
		Localized: f.cfg.Localized, Input: f.cfg.Input, Output: f.cfg.Output,
		Children: []FieldMeta{f.element.Metadata()}}
}

// LocalizationSchema produces { _item: <element schema> } when the element
// (directly or recursively) contains localized leaves, per spec 4.4.
func (f *ArrayField) LocalizationSchema() any {
	if f.element.FieldConfig().Localized {
		return map[string]any{locItemKey: true}
	}
	if c, ok := f.element.(Compound); ok {
		if sub := c.LocalizationSchema(); sub != nil {
			return map[string]any{locItemKey: sub}
		}
	}
	return nil
}

// BlocksField is a compound field whose array elements are tagged unions
// over a set of named block types, each with its own field shape (spec
// section 3.1 / 4.4 `_blocks`).
type BlocksField struct {
	name   string
	cfg    Config
	blocks map[string]*ObjectField
}

// Blocks declares a blocks field with the given named block type shapes.
func Blocks(name string, blocks map[string]*ObjectField, opts ...Option) *BlocksField {
	return &BlocksField{name: name, cfg: newConfig(opts...), blocks: blocks}
}

func (f *BlocksField) Name() string        { return f.name }
func (f *BlocksField) Kind() Kind          { return KindBlocks }
func (f *BlocksField) FieldConfig() Config { return f.cfg }
func (f *BlocksField) BlockTypes() map[string]*ObjectField { return f.blocks }

func (f *BlocksField) ToColumn() ColumnSpec {
	return ColumnSpec{Name: f.name, SQLType: "jsonb", NotNull: f.cfg.Required && !f.cfg.Nullable}
}

func (f *BlocksField) ToValidator() Validator {
	return ValidatorFunc(func(name string, v any) error {
		if v == nil {
			if f.cfg.Required && !f.cfg.Nullable {
				return requiredValidator().Validate(name, v)
			}
			return nil
		}
		return nil
	})
}

func (f *BlocksField) Operators() ContextualOperators {
	return ContextualOperators{Column: ScalarColumnOperators(), JSONB: JSONBOperators()}
}

func (f *BlocksField) Metadata() FieldMeta {
	children := make([]FieldMeta, 0, len(f.blocks))
	for bt, of := range f.blocks {
		m := of.Metadata()
		m.Extra = map[string]any{"blockType": bt}
		children = append(children, m)
	}
	return FieldMeta{Name: f.name, Kind: KindBlocks, Required: f.cfg.Required, Nullable: f.cfg.Nullable,
		Localized: f.cfg.Localized, Input: f.cfg.Input, Output: f.cfg.Output, Children: children}
}

// LocalizationSchema produces { _blocks: { blockType: <schema> } } (spec
// 4.4).
func (f *BlocksField) LocalizationSchema() any {
	out := map[string]any{}
	any_ := false
	for bt, of := range f.blocks {
		if sub := of.LocalizationSchema(); sub != nil {
			out[bt] = sub
			any_ = true
		}
	}
	if !any_ {
		return nil
	}
	return map[string]any{locBlocksKey: out}
}

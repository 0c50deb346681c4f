package field

import (
	"fmt"
	"time"
)

// scalarField implements FieldDefinition for every non-compound,
// non-relational kind (text, textarea, number, boolean, date, datetime,
// time, select, json, richText, url, email). One struct dispatching on
// Kind keeps the scalar kinds from needing a dedicated builder type each,
// while Compound and Relational fields (which carry nested definitions)
// get their own concrete types in compound.go / relation.go.
type scalarField struct {
	name string
	kind Kind
	cfg  Config
}

func newScalar(kind Kind, name string, opts ...Option) *scalarField {
	return &scalarField{name: name, kind: kind, cfg: newConfig(opts...)}
}

func Text(name string, opts ...Option) FieldDefinition     { return newScalar(KindText, name, opts...) }
func Textarea(name string, opts ...Option) FieldDefinition { return newScalar(KindTextarea, name, opts...) }
func Number(name string, opts ...Option) FieldDefinition   { return newScalar(KindNumber, name, opts...) }
func Boolean(name string, opts ...Option) FieldDefinition  { return newScalar(KindBoolean, name, opts...) }
func Date(name string, opts ...Option) FieldDefinition     { return newScalar(KindDate, name, opts...) }
func DateTime(name string, opts ...Option) FieldDefinition { return newScalar(KindDateTime, name, opts...) }
func Time(name string, opts ...Option) FieldDefinition     { return newScalar(KindTime, name, opts...) }
func Select(name string, opts ...Option) FieldDefinition   { return newScalar(KindSelect, name, opts...) }
func JSON(name string, opts ...Option) FieldDefinition     { return newScalar(KindJSON, name, opts...) }
func RichText(name string, opts ...Option) FieldDefinition { return newScalar(KindRichText, name, opts...) }
func URL(name string, opts ...Option) FieldDefinition      { return newScalar(KindURL, name, opts...) }
func Email(name string, opts ...Option) FieldDefinition    { return newScalar(KindEmail, name, opts...) }

func (f *scalarField) Name() string        { return f.name }
func (f *scalarField) Kind() Kind          { return f.kind }
func (f *scalarField) FieldConfig() Config { return f.cfg }

func (f *scalarField) ToColumn() ColumnSpec {
	col := ColumnSpec{Name: f.name, NotNull: f.cfg.Required && !f.cfg.Nullable, Unique: f.cfg.Unique, Default: f.cfg.Default}
	switch f.kind {
	case KindText, KindSelect, KindURL, KindEmail:
		col.SQLType = "text"
	case KindTextarea, KindRichText:
		col.SQLType = "text"
	case KindNumber:
		if p, _ := f.cfg.Extra["precision"].(int); p > 0 {
			col.SQLType = "numeric"
		} else {
			col.SQLType = "bigint"
		}
	case KindBoolean:
		col.SQLType = "boolean"
	case KindDate:
		col.SQLType = "date"
	case KindDateTime:
		col.SQLType = "timestamptz"
	case KindTime:
		col.SQLType = "time"
	case KindJSON:
		col.SQLType = "jsonb"
	default:
		col.SQLType = "text"
	}
	return col
}

func (f *scalarField) ToValidator() Validator {
	var base Validator
	switch f.kind {
	case KindText, KindTextarea, KindRichText, KindURL, KindEmail, KindSelect:
		chain := []Validator{IsString()}
		if n, ok := f.cfg.Extra["maxLen"].(int); ok {
			chain = append(chain, maxLenValidator(n))
		}
		if n, ok := f.cfg.Extra["minLen"].(int); ok {
			chain = append(chain, minLenValidator(n))
		}
		if f.kind == KindSelect {
			if vs, ok := f.cfg.Extra["values"].([]string); ok && len(vs) > 0 {
				chain = append(chain, OneOf(vs...))
			}
		}
		base = Chain(chain...)
	case KindNumber:
		base = IsNumber()
	case KindBoolean:
		base = IsBool()
	case KindDate, KindDateTime, KindTime:
		base = ValidatorFunc(func(name string, v any) error {
			if v == nil {
				return nil
			}
			switch t := v.(type) {
			case string:
				if _, err := time.Parse(time.RFC3339, t); err != nil {
					if _, err2 := time.Parse("2006-01-02", t); err2 != nil {
						return fmt.Errorf("%s must be a valid date/time", name)
					}
				}
				return nil
			default:
				return fmt.Errorf("%s must be a date/time string", name)
			}
		})
	case KindJSON:
		base = ValidatorFunc(func(string, any) error { return nil })
	default:
		base = ValidatorFunc(func(string, any) error { return nil })
	}
	if f.cfg.Required && !f.cfg.Nullable {
		return Chain(requiredValidator(), base)
	}
	return Optional(base)
}

func (f *scalarField) Operators() ContextualOperators {
	switch f.kind {
	case KindSelect:
		return ContextualOperators{Column: MultiSelectOperators()}
	case KindJSON:
		return ContextualOperators{Column: ScalarColumnOperators(), JSONB: JSONBOperators()}
	default:
		return ContextualOperators{Column: ScalarColumnOperators()}
	}
}

func (f *scalarField) Metadata() FieldMeta {
	return FieldMeta{
		Name: f.name, Kind: f.kind, Required: f.cfg.Required, Nullable: f.cfg.Nullable,
		Localized: f.cfg.Localized, Input: f.cfg.Input, Output: f.cfg.Output,
		Label: f.cfg.Label, Description: f.cfg.Description, Extra: f.cfg.Extra,
	}
}

package field

// RelationField references another collection (spec sections 3.1, 4.1).
// BelongsTo relations materialise an FK column in the owning table;
// HasMany relations are virtual (no column), resolved at read time via
// population (spec 4.2.4).
type RelationField struct {
	name         string
	cfg          Config
	relKind      RelationKind
	target       string
	fkField      string
	pkField      string
	relationName string
}

// RelationOption configures a relation beyond the common field Options.
type RelationOption func(*RelationField)

func FKField(name string) RelationOption { return func(r *RelationField) { r.fkField = name } }
func PKField(name string) RelationOption { return func(r *RelationField) { r.pkField = name } }
func RelationName(name string) RelationOption {
	return func(r *RelationField) { r.relationName = name }
}

// BelongsToField declares a belongsTo relation: this collection owns the
// FK column.
func BelongsToField(name, target string, opts []Option, relOpts ...RelationOption) *RelationField {
	r := &RelationField{name: name, cfg: newConfig(opts...), relKind: BelongsTo, target: target,
		fkField: name + "_id", pkField: "id", relationName: name}
	for _, o := range relOpts {
		o(r)
	}
	return r
}

// HasManyField declares a hasMany relation: the target collection owns the
// FK column back to this one.
func HasManyField(name, target string, opts []Option, relOpts ...RelationOption) *RelationField {
	r := &RelationField{name: name, cfg: newConfig(opts...), relKind: HasMany, target: target,
		fkField: name + "_id", pkField: "id", relationName: name}
	for _, o := range relOpts {
		o(r)
	}
	return r
}

func (f *RelationField) Name() string        { return f.name }
func (f *RelationField) Kind() Kind          { return KindRelation }
func (f *RelationField) FieldConfig() Config { return f.cfg }
func (f *RelationField) Target() string      { return f.target }
func (f *RelationField) RelKind() RelationKind { return f.relKind }
func (f *RelationField) FKColumn() string    { return f.fkField }

func (f *RelationField) RelationInfo() RelationMeta {
	return RelationMeta{Kind: f.relKind, Target: f.target, FKField: f.fkField, PKField: f.pkField, RelationName: f.relationName}
}

func (f *RelationField) ToColumn() ColumnSpec {
	if f.relKind == HasMany {
		// Virtual: no column on this side.
		return ColumnSpec{}
	}
	return ColumnSpec{Name: f.fkField, SQLType: "text", NotNull: f.cfg.Required && !f.cfg.Nullable}
}

func (f *RelationField) ToValidator() Validator {
	// Nested-mutation shapes (id string | {connect} | {disconnect} |
	// {create} | {update} | null) are normalised by the schema compiler's
	// relation-name preprocessor before this validator runs; by the time
	// it runs the value is either nil or a scalar FK string.
	base := IsString()
	if f.cfg.Required && !f.cfg.Nullable {
		return Chain(requiredValidator(), base)
	}
	return Optional(base)
}

func (f *RelationField) Operators() ContextualOperators {
	return ContextualOperators{Column: ScalarColumnOperators()}
}

func (f *RelationField) Metadata() FieldMeta {
	rm := f.RelationInfo()
	return FieldMeta{Name: f.name, Kind: KindRelation, Required: f.cfg.Required, Nullable: f.cfg.Nullable,
		Localized: f.cfg.Localized, Input: f.cfg.Input, Output: f.cfg.Output, Relation: &rm}
}

// UploadField is a relation specialised for upload-collections: the target
// is expected to be a collection backed by Storage (spec section 6.2,
// /storage/upload).
type UploadField struct {
	RelationField
}

// Upload declares an upload field pointing at an upload-backed collection.
func Upload(name, target string, opts ...Option) *UploadField {
	return &UploadField{RelationField: *BelongsToField(name, target, opts)}
}

func (f *UploadField) Kind() Kind { return KindUpload }

func (f *UploadField) Metadata() FieldMeta {
	m := f.RelationField.Metadata()
	m.Kind = KindUpload
	return m
}

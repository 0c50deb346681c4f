package schemacompiler

import "github.com/loomcms/loom/field"

// RelationMutation is one nested create or update of a related record,
// extracted by SplitRelationInput for the CRUD engine to execute after the
// owning row is written. SplitRelationInput reduces the other shapes a
// client may send for a relation field (a bare id string, {connect: id},
// {disconnect: true}, or null) to a plain value kept at the field's own
// key.
type RelationMutation struct {
	FieldName string
	Kind      string // connect | disconnect | create | update
	Payload   any
}

// SplitRelationInput separates plain FK assignments (left untouched in
// data) from nested mutation shapes (extracted into a []RelationMutation
// for the caller to apply once the owning row has an id).
func SplitRelationInput(compiled *Compiled, data map[string]any) (map[string]any, []RelationMutation) {
	out := make(map[string]any, len(data))
	var muts []RelationMutation

	for name, value := range data {
		fd, isRelation := compiled.QueryFields[name].(field.Relational)
		if !isRelation {
			out[name] = value
			continue
		}
		switch v := value.(type) {
		case nil, string:
			out[name] = v
		case map[string]any:
			if id, ok := v["connect"]; ok {
				out[name] = id
				continue
			}
			if d, ok := v["disconnect"]; ok && truthy(d) {
				out[name] = nil
				continue
			}
			if payload, ok := v["create"]; ok {
				muts = append(muts, RelationMutation{FieldName: name, Kind: "create", Payload: payload})
				continue
			}
			if payload, ok := v["update"]; ok {
				muts = append(muts, RelationMutation{FieldName: name, Kind: "update", Payload: payload})
				continue
			}
			out[name] = v
		default:
			out[name] = v
		}
		_ = fd
	}
	return out, muts
}

func truthy(v any) bool {
	b, ok := v.(bool)
	return ok && b
}

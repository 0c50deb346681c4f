package cms

// Record is a CRUD result or mutation payload: a dynamic, JSON-shaped
// value tree (scalar | list | map), per the "dynamic-typed payloads" design
// note — collections are declared at runtime, so results cannot be
// generated Go structs; they are typed maps keyed by field name instead.
type Record map[string]any

// Clone returns a deep copy of r so callers (hooks, nested mutation
// handling) can mutate their own copy without aliasing the caller's map.
func (r Record) Clone() Record {
	return cloneMap(r).(Record)
}

func cloneValue(v any) any {
	switch t := v.(type) {
	case map[string]any:
		return cloneMap(t)
	case Record:
		return cloneMap(t)
	case []any:
		cp := make([]any, len(t))
		for i, e := range t {
			cp[i] = cloneValue(e)
		}
		return cp
	default:
		return v
	}
}

func cloneMap(m map[string]any) any {
	cp := make(Record, len(m))
	for k, v := range m {
		cp[k] = cloneValue(v)
	}
	return cp
}

// ID returns the record's "id" field as a string, or "" if absent.
func (r Record) ID() string {
	if v, ok := r["id"]; ok {
		if s, ok := v.(string); ok {
			return s
		}
	}
	return ""
}

// GetPath resolves a path of key segments ([]string{"a", "b", "c"})
// against a nested map[string]any tree, returning (value, true) if every
// segment resolved, or (nil, false) otherwise.
func GetPath(v any, path []string) (any, bool) {
	cur := v
	for _, seg := range path {
		m, ok := asMap(cur)
		if !ok {
			return nil, false
		}
		cur, ok = m[seg]
		if !ok {
			return nil, false
		}
	}
	return cur, true
}

// SetPath sets value at the segment path within root, creating intermediate
// maps as needed. root must be a map[string]any (or Record).
func SetPath(root map[string]any, path []string, value any) {
	cur := root
	for i, seg := range path {
		if i == len(path)-1 {
			cur[seg] = value
			return
		}
		next, ok := cur[seg].(map[string]any)
		if !ok {
			next = map[string]any{}
			cur[seg] = next
		}
		cur = next
	}
}

func asMap(v any) (map[string]any, bool) {
	switch t := v.(type) {
	case map[string]any:
		return t, true
	case Record:
		return map[string]any(t), true
	default:
		return nil, false
	}
}

// MergeShallow returns a new Record containing base's keys overridden by
// override's non-nil values (a nil in override leaves base's value). Used
// when merging an update patch over the existing row.
func MergeShallow(base, override Record) Record {
	out := make(Record, len(base)+len(override))
	for k, v := range base {
		out[k] = v
	}
	for k, v := range override {
		if v != nil {
			out[k] = v
		}
	}
	return out
}

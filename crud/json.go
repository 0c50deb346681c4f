package crud

import "encoding/json"

// mustJSON marshals v for a jsonb column. Marshal only fails on values
// containing channels/functions/cyclic structures, which never appear in
// a decoded JSON request body; panicking here mirrors driver-level
// json.Marshal misuse panics elsewhere in the stack rather than inventing
// a new error path for a case that cannot occur in practice.
func mustJSON(v any) []byte {
	b, err := json.Marshal(v)
	if err != nil {
		panic("crud: value not representable as JSON: " + err.Error())
	}
	return b
}

func unmarshalJSON(b []byte) map[string]any {
	if len(b) == 0 {
		return map[string]any{}
	}
	var m map[string]any
	if err := json.Unmarshal(b, &m); err != nil {
		return map[string]any{}
	}
	return m
}

// Package i18n implements nested localisation splitting and merging (spec
// section 4.4): a stored record keeps locale-invariant data inline and
// per-locale leaves in a sidecar keyed by locale, using the localisation
// schema a collection's fields derive (field.Compound.LocalizationSchema).
package i18n

// Schema is the structural template produced by field.Compound.
// LocalizationSchema: true marks a localized leaf; nested maps (including
// the "_item"/"_blocks" markers) mirror the field tree shape being
// localized.
type Schema = any

const (
	itemKey   = "_item"
	blocksKey = "_blocks"
)

// Split separates a flat top-level record into its locale-invariant part
// and its localized leaves, using the collection's per-field localization
// schemas. fieldSchemas maps field name to that field's
// LocalizationSchema() result (nil if the field isn't localized at all).
//
// A field whose schema is true goes to localized only and is absent from
// the invariant result. For object, array and blocks fields the invariant
// result keeps the structure with the localized keys left out, and
// localized carries just those keys.
func Split(record map[string]any, fieldSchemas map[string]Schema) (invariant map[string]any, localized map[string]any) {
	invariant = make(map[string]any, len(record))
	localized = make(map[string]any)
	for name, value := range record {
		schema, ok := fieldSchemas[name]
		if !ok || schema == nil {
			invariant[name] = value
			continue
		}
		if schema == true {
			localized[name] = value
			continue
		}
		inv, loc := splitValue(value, schema)
		invariant[name] = inv
		if loc != nil {
			localized[name] = loc
		}
	}
	return invariant, localized
}

func splitValue(value any, schema Schema) (invariant any, localized any) {
	switch sc := schema.(type) {
	case bool:
		if sc {
			return nil, value
		}
		return value, nil
	case map[string]any:
		if sub, ok := sc[itemKey]; ok {
			return splitArray(value, sub)
		}
		if sub, ok := sc[blocksKey]; ok {
			return splitBlocks(value, sub.(map[string]any))
		}
		return splitObject(value, sc)
	default:
		return value, nil
	}
}

func splitObject(value any, schema map[string]any) (any, any) {
	m, ok := value.(map[string]any)
	if !ok {
		return value, nil
	}
	inv := make(map[string]any, len(m))
	loc := map[string]any{}
	for k, v := range m {
		sub, has := schema[k]
		if !has {
			inv[k] = v
			continue
		}
		i, l := splitValue(v, sub)
		if i != nil {
			inv[k] = i
		}
		if l != nil {
			loc[k] = l
		}
	}
	if len(loc) == 0 {
		return inv, nil
	}
	return inv, loc
}

func splitArray(value any, elementSchema Schema) (any, any) {
	items, ok := value.([]any)
	if !ok {
		return value, nil
	}
	invItems := make([]any, len(items))
	locItems := make([]any, len(items))
	any_ := false
	for idx, item := range items {
		i, l := splitValue(item, elementSchema)
		invItems[idx] = i
		locItems[idx] = l
		if l != nil {
			any_ = true
		}
	}
	if !any_ {
		return invItems, nil
	}
	return invItems, locItems
}

func splitBlocks(value any, blockSchemas map[string]any) (any, any) {
	items, ok := value.([]any)
	if !ok {
		return value, nil
	}
	invItems := make([]any, len(items))
	locItems := make([]any, len(items))
	any_ := false
	for idx, item := range items {
		block, ok := item.(map[string]any)
		if !ok {
			invItems[idx] = item
			continue
		}
		blockType, _ := block["blockType"].(string)
		schema, hasSchema := blockSchemas[blockType]
		if !hasSchema {
			invItems[idx] = item
			continue
		}
		inv, loc := splitObject(item, schema.(map[string]any))
		invMap, _ := inv.(map[string]any)
		if invMap != nil {
			invMap["blockType"] = blockType
		}
		invItems[idx] = invMap
		if loc != nil {
			locMap, _ := loc.(map[string]any)
			locMap["blockType"] = blockType
			locItems[idx] = locMap
			any_ = true
		}
	}
	if !any_ {
		return invItems, nil
	}
	return invItems, locItems
}

// Merge reconstitutes a record for reading in `locale`, overlaying the
// locale-invariant base with that locale's sidecar values, and filling any
// field missing from the locale's sidecar with the fallback locale's
// value (spec 4.4, "locale fallback").
func Merge(invariant map[string]any, byLocale map[string]map[string]any, locale, fallbackLocale string, fieldSchemas map[string]Schema) map[string]any {
	out := make(map[string]any, len(invariant))
	for k, v := range invariant {
		out[k] = v
	}
	primary := byLocale[locale]
	fallback := byLocale[fallbackLocale]
	for name, schema := range fieldSchemas {
		if schema == nil {
			continue
		}
		merged := mergeValue(out[name], primary[name], fallback[name], schema)
		out[name] = merged
	}
	return out
}

func mergeValue(invariantVal, primaryVal, fallbackVal any, schema Schema) any {
	switch sc := schema.(type) {
	case bool:
		if sc {
			if primaryVal != nil {
				return primaryVal
			}
			return fallbackVal
		}
		return invariantVal
	case map[string]any:
		if sub, ok := sc[itemKey]; ok {
			return mergeArray(invariantVal, primaryVal, fallbackVal, sub)
		}
		if sub, ok := sc[blocksKey]; ok {
			return mergeBlocks(invariantVal, primaryVal, fallbackVal, sub.(map[string]any))
		}
		return mergeObject(invariantVal, primaryVal, fallbackVal, sc)
	default:
		return invariantVal
	}
}

func mergeObject(invariantVal, primaryVal, fallbackVal any, schema map[string]any) any {
	base, _ := invariantVal.(map[string]any)
	primary, _ := primaryVal.(map[string]any)
	fallback, _ := fallbackVal.(map[string]any)
	out := make(map[string]any, len(base))
	for k, v := range base {
		out[k] = v
	}
	for k, sub := range schema {
		var p, f any
		if primary != nil {
			p = primary[k]
		}
		if fallback != nil {
			f = fallback[k]
		}
		out[k] = mergeValue(out[k], p, f, sub)
	}
	return out
}

func mergeArray(invariantVal, primaryVal, fallbackVal any, elementSchema Schema) any {
	items, _ := invariantVal.([]any)
	primary, _ := primaryVal.([]any)
	fallback, _ := fallbackVal.([]any)
	out := make([]any, len(items))
	for idx, item := range items {
		var p, f any
		if idx < len(primary) {
			p = primary[idx]
		}
		if idx < len(fallback) {
			f = fallback[idx]
		}
		out[idx] = mergeValue(item, p, f, elementSchema)
	}
	return out
}

func mergeBlocks(invariantVal, primaryVal, fallbackVal any, blockSchemas map[string]any) any {
	items, _ := invariantVal.([]any)
	primary, _ := primaryVal.([]any)
	fallback, _ := fallbackVal.([]any)
	out := make([]any, len(items))
	for idx, item := range items {
		block, ok := item.(map[string]any)
		if !ok {
			out[idx] = item
			continue
		}
		blockType, _ := block["blockType"].(string)
		schema, hasSchema := blockSchemas[blockType]
		if !hasSchema {
			out[idx] = item
			continue
		}
		var p, f any
		if idx < len(primary) {
			p = primary[idx]
		}
		if idx < len(fallback) {
			f = fallback[idx]
		}
		merged := mergeObject(item, p, f, schema.(map[string]any))
		if mm, ok := merged.(map[string]any); ok {
			mm["blockType"] = blockType
		}
		out[idx] = merged
	}
	return out
}

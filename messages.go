package cms

import "strings"

// catalogue is the locale-aware message table referenced by spec section 7.
// Keys are looked up per-locale with a fallback to "en"; {{placeholders}}
// are substituted from the args map.
var catalogue = map[string]map[string]string{
	"en": {
		"errors.not_found":               "{{entity}} not found",
		"errors.forbidden":                "not allowed to {{op}} {{resource}}",
		"errors.unauthorized":             "unauthorized: {{reason}}",
		"errors.validation":               "validation failed",
		"errors.conflict":                 "duplicate value for {{field}}",
		"errors.schema_collision":         "field name collides with a synthesised column: {{name}}",
		"errors.invalid_field_config":     "invalid field configuration: {{reason}}",
		"errors.illegal_transition":       "cannot transition from {{from}} to {{to}}",
		"errors.scheduling_unavailable":   "scheduledAt is in the future but no queue is configured",
		"errors.not_restorable":           "{{entity}} does not have soft delete enabled",
		"errors.migration_conflict":       "migration conflict: {{reason}}",
	},
}

// Localize resolves messageKey in the given locale, falling back to "en",
// substituting {{key}} placeholders from args. An unknown key is returned
// verbatim so a missing translation never panics.
func Localize(locale, messageKey string, args map[string]string) string {
	table, ok := catalogue[locale]
	if !ok {
		table = catalogue["en"]
	}
	msg, ok := table[messageKey]
	if !ok {
		if table2 := catalogue["en"]; table2 != nil {
			if m2, ok2 := table2[messageKey]; ok2 {
				msg = m2
			} else {
				msg = messageKey
			}
		} else {
			msg = messageKey
		}
	}
	for k, v := range args {
		msg = strings.ReplaceAll(msg, "{{"+k+"}}", v)
	}
	return msg
}

// RegisterMessages merges additional locale translations into the
// catalogue, allowing an embedding application to add locales or override
// defaults without forking the package.
func RegisterMessages(locale string, messages map[string]string) {
	table, ok := catalogue[locale]
	if !ok {
		table = map[string]string{}
		catalogue[locale] = table
	}
	for k, v := range messages {
		table[k] = v
	}
}

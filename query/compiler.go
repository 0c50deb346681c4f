package query

import (
	"fmt"
	"strings"
)

// Sort is one ORDER BY term.
type Sort struct {
	Field string
	Desc  bool
}

// Page bounds a result set (spec section 4.3, "Pagination").
type Page struct {
	Limit  int
	Offset int
}

// Plan is a fully-compiled SELECT ready for execution: SelectSQL (with
// any LIMIT/OFFSET appended) and the COUNT(*) companion CountSQL (which
// omits them), each with its positional parameters.
type Plan struct {
	CountSQL    string
	SelectSQL   string
	Params      []any
	CountParams []any
}

// TableSpec names the physical tables/aliases a collection's rows are
// drawn from, as produced by the schema compiler (spec section 3.2/3.4).
type TableSpec struct {
	Table       string
	I18nTable   string // "" if the collection carries no localized fields
	PrimaryKey  string
}

// BuildSelect compiles a full SELECT: main table optionally left-joined to
// its i18n sidecar filtered to one locale (with COALESCE fallback handled
// by the caller's column list, since which columns are localized is
// collection-specific), a WHERE clause from where, ORDER BY from sorts,
// and a COUNT(*) companion statement sharing the same WHERE clause for
// total-count pagination (spec 4.3, "every find returns {data, total}").
func BuildSelect(spec TableSpec, columns []string, compiler *Compiler, where Predicate, sorts []Sort, page Page, locale string) (*Plan, error) {
	mainAlias := "t"
	compiler.MainAlias = mainAlias

	var b strings.Builder
	fmt.Fprintf(&b, "SELECT %s FROM %s AS %s", strings.Join(columns, ", "), spec.Table, mainAlias)

	if spec.I18nTable != "" {
		fmt.Fprintf(&b, " LEFT JOIN %s AS i18n ON i18n.%s = %s.%s AND i18n.locale = '%s'",
			spec.I18nTable, spec.PrimaryKey, mainAlias, spec.PrimaryKey, escapeLiteral(locale))
	}

	whereSQL, whereParams, err := compiler.Compile(where, 0)
	if err != nil {
		return nil, err
	}
	fmt.Fprintf(&b, " WHERE %s", whereSQL)

	countSQL := fmt.Sprintf("SELECT COUNT(*) FROM %s AS %s", spec.Table, mainAlias)
	if spec.I18nTable != "" {
		countSQL += fmt.Sprintf(" LEFT JOIN %s AS i18n ON i18n.%s = %s.%s AND i18n.locale = '%s'",
			spec.I18nTable, spec.PrimaryKey, mainAlias, spec.PrimaryKey, escapeLiteral(locale))
	}
	countSQL += " WHERE " + whereSQL

	if len(sorts) > 0 {
		parts := make([]string, len(sorts))
		for i, s := range sorts {
			dir := "ASC"
			if s.Desc {
				dir = "DESC"
			}
			parts[i] = fmt.Sprintf("%s.%s %s", mainAlias, quoteIdent(s.Field), dir)
		}
		fmt.Fprintf(&b, " ORDER BY %s", strings.Join(parts, ", "))
	}

	n := len(whereParams)
	params := append([]any{}, whereParams...)
	if page.Limit > 0 {
		n++
		fmt.Fprintf(&b, " LIMIT $%d", n)
		params = append(params, page.Limit)
	}
	if page.Offset > 0 {
		n++
		fmt.Fprintf(&b, " OFFSET $%d", n)
		params = append(params, page.Offset)
	}

	return &Plan{
		SelectSQL:   b.String(),
		Params:      params,
		CountSQL:    countSQL,
		CountParams: append([]any{}, whereParams...),
	}, nil
}

func escapeLiteral(s string) string { return strings.ReplaceAll(s, "'", "''") }

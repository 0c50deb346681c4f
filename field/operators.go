package field

import "fmt"

// ScalarColumnOperators returns the baseline comparison operators usable
// directly on a plain (non-JSONB) column (spec section 4.3, "Supported
// ops (baseline)"). expr is the already-resolved column reference (e.g.
// "posts.title" or a COALESCE(...) fallback expression); arg placeholder
// numbering is left to the caller, which is why these return a fragment
// with literal "$$" value markers (distinct from the bare "?" Postgres
// already uses as its jsonb key-exists operator) for the compiler to
// renumber into "$N" placeholders.
func ScalarColumnOperators() OperatorMap {
	return OperatorMap{
		"eq":         binaryOp("="),
		"ne":         binaryOp("<>"),
		"gt":         binaryOp(">"),
		"gte":        binaryOp(">="),
		"lt":         binaryOp("<"),
		"lte":        binaryOp("<="),
		"like":       likeOp("LIKE", "%%%s%%"),
		"ilike":      likeOp("ILIKE", "%%%s%%"),
		"startsWith": likeOp("LIKE", "%s%%"),
		"endsWith":   likeOp("LIKE", "%%%s"),
		"contains":   likeOp("LIKE", "%%%s%%"),
		"isNull":     unaryOp("IS NULL"),
		"isNotNull":  unaryOp("IS NOT NULL"),
		"isEmpty":    emptyOp(true),
		"isNotEmpty": emptyOp(false),
		"in":         inOp(false),
		"notIn":      inOp(true),
		"between":    betweenOp(),
	}
}

// MultiSelectOperators adds the multi-select-specific ops on top of the
// scalar baseline (spec section 4.3): containsAll, containsAny, length.
func MultiSelectOperators() OperatorMap {
	ops := ScalarColumnOperators()
	ops["containsAll"] = arrayContainsOp(true)
	ops["containsAny"] = arrayContainsOp(false)
	ops["length"] = func(expr string, args ...any) (string, []any, error) {
		if len(args) != 1 {
			return "", nil, fmt.Errorf("length takes exactly one argument")
		}
		return fmt.Sprintf("cardinality(%s) = $$", expr), []any{args[0]}, nil
	}
	return ops
}

// JSONBOperators returns the JSON/JSONB path operators (spec section 4.3):
// hasKey, hasAllKeys, hasAnyKeys, pathEquals, pathExists, contains,
// containedBy. expr must already be a jsonb-typed expression (column or
// column#>path).
func JSONBOperators() OperatorMap {
	return OperatorMap{
		"hasKey": func(expr string, args ...any) (string, []any, error) {
			if len(args) != 1 {
				return "", nil, fmt.Errorf("hasKey takes exactly one argument")
			}
			return fmt.Sprintf("%s ? $$", expr), []any{args[0]}, nil
		},
		"hasAllKeys": func(expr string, args ...any) (string, []any, error) {
			return fmt.Sprintf("%s ?& $$", expr), []any{args}, nil
		},
		"hasAnyKeys": func(expr string, args ...any) (string, []any, error) {
			return fmt.Sprintf("%s ?| $$", expr), []any{args}, nil
		},
		"pathEquals": func(expr string, args ...any) (string, []any, error) {
			if len(args) != 2 {
				return "", nil, fmt.Errorf("pathEquals takes (path, value)")
			}
			return fmt.Sprintf("%s #>> $$ = $$", expr), []any{args[0], args[1]}, nil
		},
		"pathExists": func(expr string, args ...any) (string, []any, error) {
			if len(args) != 1 {
				return "", nil, fmt.Errorf("pathExists takes exactly one argument")
			}
			return fmt.Sprintf("%s #> $$ IS NOT NULL", expr), []any{args[0]}, nil
		},
		"contains": func(expr string, args ...any) (string, []any, error) {
			if len(args) != 1 {
				return "", nil, fmt.Errorf("contains takes exactly one argument")
			}
			return fmt.Sprintf("%s @> $$", expr), []any{args[0]}, nil
		},
		"containedBy": func(expr string, args ...any) (string, []any, error) {
			if len(args) != 1 {
				return "", nil, fmt.Errorf("containedBy takes exactly one argument")
			}
			return fmt.Sprintf("%s <@ $$", expr), []any{args[0]}, nil
		},
	}
}

func binaryOp(sym string) OperatorFunc {
	return func(expr string, args ...any) (string, []any, error) {
		if len(args) != 1 {
			return "", nil, fmt.Errorf("operator %q takes exactly one argument", sym)
		}
		return fmt.Sprintf("%s %s $$", expr, sym), []any{args[0]}, nil
	}
}

func unaryOp(sym string) OperatorFunc {
	return func(expr string, args ...any) (string, []any, error) {
		return fmt.Sprintf("%s %s", expr, sym), nil, nil
	}
}

func likeOp(kw, pattern string) OperatorFunc {
	return func(expr string, args ...any) (string, []any, error) {
		if len(args) != 1 {
			return "", nil, fmt.Errorf("operator %q takes exactly one argument", kw)
		}
		s, ok := args[0].(string)
		if !ok {
			return "", nil, fmt.Errorf("operator %q requires a string argument", kw)
		}
		return fmt.Sprintf("%s %s $$", expr, kw), []any{fmt.Sprintf(pattern, s)}, nil
	}
}

func emptyOp(empty bool) OperatorFunc {
	return func(expr string, args ...any) (string, []any, error) {
		if empty {
			return fmt.Sprintf("(%s IS NULL OR %s = '')", expr, expr), nil, nil
		}
		return fmt.Sprintf("(%s IS NOT NULL AND %s <> '')", expr, expr), nil, nil
	}
}

func inOp(negate bool) OperatorFunc {
	return func(expr string, args ...any) (string, []any, error) {
		if len(args) == 0 {
			// An empty IN-list matches nothing; NOT IN matches everything.
			if negate {
				return "TRUE", nil, nil
			}
			return "FALSE", nil, nil
		}
		kw := "IN"
		if negate {
			kw = "NOT IN"
		}
		placeholders := make([]any, len(args))
		copy(placeholders, args)
		return fmt.Sprintf("%s %s (%s)", expr, kw, placeholderList(len(args))), placeholders, nil
	}
}

func betweenOp() OperatorFunc {
	return func(expr string, args ...any) (string, []any, error) {
		if len(args) != 2 {
			return "", nil, fmt.Errorf("between takes exactly two arguments")
		}
		return fmt.Sprintf("%s BETWEEN $$ AND $$", expr), []any{args[0], args[1]}, nil
	}
}

func arrayContainsOp(all bool) OperatorFunc {
	return func(expr string, args ...any) (string, []any, error) {
		sym := "&&"
		if all {
			sym = "@>"
		}
		return fmt.Sprintf("%s %s $$", expr, sym), []any{args}, nil
	}
}

func placeholderList(n int) string {
	s := ""
	for i := 0; i < n; i++ {
		if i > 0 {
			s += ", "
		}
		s += "$$"
	}
	return s
}

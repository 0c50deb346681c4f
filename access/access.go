// Package access implements the access-rule evaluation of the hook/access/
// transaction machinery (spec section 4.5): each collection operation
// (create/read/update/delete/transition) is gated by a rule that is either
// a constant boolean, a predicate over the ambient session, or a row-level
// predicate evaluated per record.
package access

// RuntimeContext is the minimal ambient-context surface an access rule
// needs. The root *cms.AppContext satisfies this; defined locally (rather
// than imported) to keep this package free of a dependency on the root
// package, which would otherwise cycle back through collection.
type RuntimeContext interface {
	SessionRoles() []string
	SessionUserID() string
	IsAuthenticated() bool
}

// Decision is the outcome of evaluating a Rule: Allow/Deny end evaluation,
// Skip defers to the next rule in a chain (spec: "first non-skip verdict
// wins"), mirroring the allow/deny/skip shape common to policy engines.
type Decision int

const (
	Skip Decision = iota
	Allow
	Deny
)

// Rule decides whether an operation is permitted. record is the input
// data for create and the existing row for single-record read, update,
// delete and transition checks. It is nil for checks made without a row
// in hand (list, bulk update, FindVersions, RevertToVersion).
type Rule func(ctx RuntimeContext, record map[string]any) Decision

// Bool returns a Rule that always allows or always denies.
func Bool(allow bool) Rule {
	return func(RuntimeContext, map[string]any) Decision {
		if allow {
			return Allow
		}
		return Deny
	}
}

// Public is shorthand for an always-allow rule.
func Public() Rule { return Bool(true) }

// Private is shorthand for an always-deny rule.
func Private() Rule { return Bool(false) }

// Authenticated allows any request carrying an authenticated session.
func Authenticated() Rule {
	return func(ctx RuntimeContext, _ map[string]any) Decision {
		if ctx.IsAuthenticated() {
			return Allow
		}
		return Deny
	}
}

// HasRole allows requests whose session carries any of the given roles.
func HasRole(roles ...string) Rule {
	set := make(map[string]struct{}, len(roles))
	for _, r := range roles {
		set[r] = struct{}{}
	}
	return func(ctx RuntimeContext, _ map[string]any) Decision {
		for _, r := range ctx.SessionRoles() {
			if _, ok := set[r]; ok {
				return Allow
			}
		}
		return Deny
	}
}

// Owner allows access when record[ownerField] matches the session user id.
func Owner(ownerField string) Rule {
	return func(ctx RuntimeContext, record map[string]any) Decision {
		if record == nil {
			return Skip
		}
		v, _ := record[ownerField].(string)
		if v != "" && v == ctx.SessionUserID() {
			return Allow
		}
		return Deny
	}
}

// Chain evaluates rules in order and returns the first non-Skip verdict,
// defaulting to Deny if every rule skips.
func Chain(rules ...Rule) Rule {
	return func(ctx RuntimeContext, record map[string]any) Decision {
		for _, r := range rules {
			if r == nil {
				continue
			}
			switch d := r(ctx, record); d {
			case Allow, Deny:
				return d
			}
		}
		return Deny
	}
}

// Any allows if any rule allows (logical OR over chain semantics, treating
// Skip as neither).
func Any(rules ...Rule) Rule {
	return func(ctx RuntimeContext, record map[string]any) Decision {
		sawDeny := false
		for _, r := range rules {
			if r == nil {
				continue
			}
			switch r(ctx, record) {
			case Allow:
				return Allow
			case Deny:
				sawDeny = true
			}
		}
		if sawDeny {
			return Deny
		}
		return Skip
	}
}

// Evaluate runs a rule, treating a nil rule (unspecified in the collection
// definition) as always-deny, the conservative default for an undeclared
// access rule.
func Evaluate(rule Rule, ctx RuntimeContext, record map[string]any) bool {
	if rule == nil {
		return false
	}
	return rule(ctx, record) == Allow
}

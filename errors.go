package cms

import (
	"errors"
	"fmt"
	"strings"
)

// Kind is a stable, adapter-translatable error classification. Adapters map
// a Kind to a transport-specific status (e.g. HTTP: Forbidden -> 403).
type Kind string

// The closed set of error kinds produced by this engine.
const (
	KindBadRequest           Kind = "BadRequest"
	KindUnauthorized         Kind = "Unauthorized"
	KindForbidden            Kind = "Forbidden"
	KindNotFound             Kind = "NotFound"
	KindConflict             Kind = "Conflict"
	KindValidation           Kind = "Validation"
	KindTimeout              Kind = "Timeout"
	KindNotImplemented       Kind = "NotImplemented"
	KindInternal             Kind = "Internal"
	KindSchemaCollision      Kind = "SchemaCollision"
	KindInvalidFieldConfig   Kind = "InvalidFieldConfig"
	KindIllegalTransition    Kind = "IllegalTransition"
	KindSchedulingUnavailable Kind = "SchedulingUnavailable"
	KindNotRestorable        Kind = "NotRestorable"
	KindMigrationConflict    Kind = "MigrationConflict"
)

// Error is the engine's single user-visible error shape. Every error the
// engine surfaces to a caller carries a stable Kind plus a message resolved
// through the message catalogue.
type Error struct {
	Kind        Kind
	MessageKey  string
	Message     string
	FieldErrors map[string]string
	Details     any
	cause       error
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("cms: %s: %s", e.Kind, e.Message)
	}
	return fmt.Sprintf("cms: %s", e.Kind)
}

// Unwrap returns the wrapped cause, if any.
func (e *Error) Unwrap() error { return e.cause }

// Is reports kind-equality against another *Error, so callers can do
// errors.Is(err, &cms.Error{Kind: cms.KindNotFound}).
func (e *Error) Is(target error) bool {
	var t *Error
	if errors.As(target, &t) {
		return t.Kind == e.Kind
	}
	return false
}

// NewError builds an *Error of the given kind with a message resolved (in
// the default locale) from the message catalogue, substituting args.
func NewError(kind Kind, messageKey string, args map[string]string) *Error {
	return &Error{
		Kind:       kind,
		MessageKey: messageKey,
		Message:    Localize("en", messageKey, args),
	}
}

// Wrap builds an *Error of the given kind wrapping cause, without going
// through the message catalogue (used for Internal-wrapped driver errors).
func Wrap(kind Kind, cause error) *Error {
	return &Error{Kind: kind, Message: cause.Error(), cause: cause}
}

// WithFieldErrors attaches per-field validation messages and returns e.
func (e *Error) WithFieldErrors(fe map[string]string) *Error {
	e.FieldErrors = fe
	return e
}

// WithDetails attaches arbitrary structured details and returns e.
func (e *Error) WithDetails(d any) *Error {
	e.Details = d
	return e
}

// KindOf extracts the Kind of err, defaulting to KindInternal for untyped
// errors per the propagation policy in spec section 7.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}

// Convenience constructors mirroring the common cases.

func NotFound(label string, id any) *Error {
	args := map[string]string{"entity": label}
	if id != nil {
		args["id"] = fmt.Sprint(id)
	}
	return NewError(KindNotFound, "errors.not_found", args)
}

func Forbidden(op, resource string) *Error {
	return NewError(KindForbidden, "errors.forbidden", map[string]string{"op": op, "resource": resource})
}

func Unauthorized(reason string) *Error {
	return NewError(KindUnauthorized, "errors.unauthorized", map[string]string{"reason": reason})
}

func ValidationFailed(fieldErrors map[string]string) *Error {
	e := NewError(KindValidation, "errors.validation", nil)
	return e.WithFieldErrors(fieldErrors)
}

func Conflict(field string) *Error {
	return NewError(KindConflict, "errors.conflict", map[string]string{"field": field})
}

func SchemaCollision(name string) *Error {
	return NewError(KindSchemaCollision, "errors.schema_collision", map[string]string{"name": name})
}

func InvalidFieldConfig(reason string) *Error {
	return NewError(KindInvalidFieldConfig, "errors.invalid_field_config", map[string]string{"reason": reason})
}

func IllegalTransition(from, to string) *Error {
	return NewError(KindIllegalTransition, "errors.illegal_transition", map[string]string{"from": from, "to": to})
}

func SchedulingUnavailable() *Error {
	return NewError(KindSchedulingUnavailable, "errors.scheduling_unavailable", nil)
}

func NotRestorable(label string) *Error {
	return NewError(KindNotRestorable, "errors.not_restorable", map[string]string{"entity": label})
}

func MigrationConflict(reason string) *Error {
	return NewError(KindMigrationConflict, "errors.migration_conflict", map[string]string{"reason": reason})
}

// Internalf wraps an arbitrary error as KindInternal, per the propagation
// policy: "untyped exceptions are wrapped as Internal."
func Internalf(format string, args ...any) *Error {
	return &Error{Kind: KindInternal, Message: fmt.Sprintf(format, args...)}
}

// AsTyped returns err unchanged if it already carries a *cms.Error, or
// wraps it as KindInternal otherwise. Hook and handler boundaries use this
// so only already-typed errors pass through verbatim.
func AsTyped(err error) *Error {
	if err == nil {
		return nil
	}
	var e *Error
	if errors.As(err, &e) {
		return e
	}
	return Wrap(KindInternal, err)
}

// AggregateError represents multiple errors collected during one logical
// operation (e.g. several nested relation mutations failing independently).
type AggregateError struct {
	Errors []error
}

func (e *AggregateError) Error() string {
	if len(e.Errors) == 1 {
		return e.Errors[0].Error()
	}
	var sb strings.Builder
	sb.WriteString("cms: multiple errors:")
	for i, err := range e.Errors {
		fmt.Fprintf(&sb, "\n  [%d] %v", i+1, err)
	}
	return sb.String()
}

func NewAggregateError(errs ...error) error {
	var filtered []error
	for _, err := range errs {
		if err != nil {
			filtered = append(filtered, err)
		}
	}
	switch len(filtered) {
	case 0:
		return nil
	case 1:
		return filtered[0]
	default:
		return &AggregateError{Errors: filtered}
	}
}

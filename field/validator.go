package field

import (
	"fmt"
)

// Validator is this engine's "Zod-like" validation schema contract (spec
// section 4.1, toZodSchema): given a value, it returns a validation error
// naming the field, or nil if the value is acceptable.
type Validator interface {
	Validate(name string, v any) error
}

// ValidatorFunc adapts a plain function to Validator.
type ValidatorFunc func(name string, v any) error

func (f ValidatorFunc) Validate(name string, v any) error { return f(name, v) }

// Chain runs validators in order, stopping at (and returning) the first
// error.
func Chain(validators ...Validator) Validator {
	return ValidatorFunc(func(name string, v any) error {
		for _, val := range validators {
			if val == nil {
				continue
			}
			if err := val.Validate(name, v); err != nil {
				return err
			}
		}
		return nil
	})
}

// requiredValidator fails if v is nil or the empty value of its type.
func requiredValidator() Validator {
	return ValidatorFunc(func(name string, v any) error {
		if v == nil {
			return fmt.Errorf("%s is required", name)
		}
		if s, ok := v.(string); ok && s == "" {
			return fmt.Errorf("%s is required", name)
		}
		return nil
	})
}

// Optional wraps a validator so a nil value always passes, deferring to
// the wrapped validator only for non-nil values. Partial-update (PATCH)
// validators wrap every field validator with Optional.
func Optional(v Validator) Validator {
	return ValidatorFunc(func(name string, value any) error {
		if value == nil {
			return nil
		}
		return v.Validate(name, value)
	})
}

// IsString fails if v is present but not a string.
func IsString() Validator {
	return ValidatorFunc(func(name string, v any) error {
		if v == nil {
			return nil
		}
		if _, ok := v.(string); !ok {
			return fmt.Errorf("%s must be a string", name)
		}
		return nil
	})
}

// maxLenValidator fails if the string value exceeds n runes.
func maxLenValidator(n int) Validator {
	return ValidatorFunc(func(name string, v any) error {
		s, ok := v.(string)
		if !ok {
			return nil
		}
		if len([]rune(s)) > n {
			return fmt.Errorf("%s must be at most %d characters", name, n)
		}
		return nil
	})
}

// minLenValidator fails if the string value is shorter than n runes.
func minLenValidator(n int) Validator {
	return ValidatorFunc(func(name string, v any) error {
		s, ok := v.(string)
		if !ok {
			return nil
		}
		if len([]rune(s)) < n {
			return fmt.Errorf("%s must be at least %d characters", name, n)
		}
		return nil
	})
}

// IsNumber fails if v is present but not numeric (json.Unmarshal produces
// float64 for all JSON numbers).
func IsNumber() Validator {
	return ValidatorFunc(func(name string, v any) error {
		if v == nil {
			return nil
		}
		switch v.(type) {
		case float64, float32, int, int64, int32:
			return nil
		default:
			return fmt.Errorf("%s must be a number", name)
		}
	})
}

// IsBool fails if v is present but not a bool.
func IsBool() Validator {
	return ValidatorFunc(func(name string, v any) error {
		if v == nil {
			return nil
		}
		if _, ok := v.(bool); !ok {
			return fmt.Errorf("%s must be a boolean", name)
		}
		return nil
	})
}

// OneOf fails if the string value is not among options.
func OneOf(options ...string) Validator {
	return ValidatorFunc(func(name string, v any) error {
		s, ok := v.(string)
		if !ok {
			return nil
		}
		for _, o := range options {
			if s == o {
				return nil
			}
		}
		return fmt.Errorf("%s must be one of %v", name, options)
	})
}

// Package types provides validated wrappers for every value the REDCap
// client sends across the trust boundary.
//
// Each type can only be obtained through its constructor, which either
// returns a value satisfying the type's rule or a *ValidationError. Values
// are immutable; the zero value of a type is "unset" and reports IsZero.
package types

import (
	"errors"
	"fmt"

	validation "github.com/go-ozzo/ozzo-validation/v4"
)

// ValidationError reports a value that failed its validation rule.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Reason)
}

// IsValidationError reports whether err (or any error it wraps) is a
// *ValidationError.
func IsValidationError(err error) bool {
	var verr *ValidationError
	return errors.As(err, &verr)
}

// check runs ozzo rules against value and converts the first failure into
// a *ValidationError for field.
func check(field string, value interface{}, rules ...validation.Rule) error {
	if err := validation.Validate(value, rules...); err != nil {
		return &ValidationError{Field: field, Reason: err.Error()}
	}
	return nil
}

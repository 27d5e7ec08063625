package validation

import "fmt"

// Error is an implementation of the 'error' interface, which represents an
// error of validation.
type Error struct {
	Type   ErrorType
	Field  string
	Reason string
}

// ErrorType is a type of error
type ErrorType string

const (
	// ErrorTypeRequired is used to report required values that are not
	// provided (e.g. empty strings, null values, or empty arrays).
	ErrorTypeRequired ErrorType = "FieldValueRequired"

	// ErrorTypeInvalid is used to report malformed values
	ErrorTypeInvalid ErrorType = "FieldValueInvalid"
)

func (v Error) Error() string {
	var msg string
	switch v.Type {
	case ErrorTypeRequired:
		msg = "required value"
	case ErrorTypeInvalid:
		msg = "invalid value"
	default:
		msg = string(v.Type)
	}
	if len(v.Reason) > 0 {
		msg = fmt.Sprintf("%s: %s", msg, v.Reason)
	}
	return fmt.Sprintf("%s: %s", v.Field, msg)
}

// NewFieldRequired returns a *Error indicating "value required"
func NewFieldRequired(field string) Error {
	return Error{Type: ErrorTypeRequired, Field: field}
}

// NewFieldInvalidValue returns a ValidationError indicating "invalid value"
func NewFieldInvalidValue(field string) Error {
	return Error{Type: ErrorTypeInvalid, Field: field}
}

// NewFieldInvalidValueWithReason returns a ValidationError indicating
// "invalid value" and a reason for the error
func NewFieldInvalidValueWithReason(field, reason string) Error {
	return Error{Type: ErrorTypeInvalid, Field: field, Reason: reason}
}

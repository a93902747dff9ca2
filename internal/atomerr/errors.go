// Package atomerr defines the error taxonomy shared by the attribute engine
// and its containers.
//
// Every failure surfaced by the core is an *Error carrying a Code:
//   - SCHEMA: type-definition time (incompatible override, malformed default)
//   - VALIDATION: a write was rejected before any storage mutation
//   - ATTRIBUTE_ACCESS: forbidden write/delete, or a read with no value and no default
//   - LOOKUP: unknown member name, container index or key out of range
//
// Use the Is* helpers rather than comparing codes directly; they see through
// wrapped errors.
package atomerr

import (
	"errors"
	"fmt"
)

// Code categorizes engine errors.
type Code string

const (
	// CodeSchema indicates an entity type could not be constructed.
	CodeSchema Code = "SCHEMA"

	// CodeValidation indicates a value failed a member or item constraint.
	CodeValidation Code = "VALIDATION"

	// CodeAccess indicates an attribute operation is not permitted.
	CodeAccess Code = "ATTRIBUTE_ACCESS"

	// CodeLookup indicates a name, index or key does not exist.
	CodeLookup Code = "LOOKUP"
)

// Error is the structured error returned by the engine.
type Error struct {
	// Code identifies the error category.
	Code Code

	// Type is the entity type name, when known.
	Type string

	// Member is the attribute name, when known.
	Member string

	// Message is a human-readable description.
	Message string

	// Err is the underlying cause (optional).
	Err error
}

// Error implements the error interface.
func (e *Error) Error() string {
	msg := e.Message
	if e.Err != nil {
		msg = fmt.Sprintf("%s: %v", msg, e.Err)
	}
	switch {
	case e.Type != "" && e.Member != "":
		return fmt.Sprintf("%s: %s.%s: %s", e.Code, e.Type, e.Member, msg)
	case e.Type != "":
		return fmt.Sprintf("%s: %s: %s", e.Code, e.Type, msg)
	case e.Member != "":
		return fmt.Sprintf("%s: %s: %s", e.Code, e.Member, msg)
	}
	return fmt.Sprintf("%s: %s", e.Code, msg)
}

// Unwrap returns the underlying cause.
func (e *Error) Unwrap() error {
	return e.Err
}

// Schema creates a SCHEMA error.
func Schema(typeName, member, format string, args ...any) *Error {
	return &Error{Code: CodeSchema, Type: typeName, Member: member, Message: fmt.Sprintf(format, args...)}
}

// Validation creates a VALIDATION error.
func Validation(typeName, member, format string, args ...any) *Error {
	return &Error{Code: CodeValidation, Type: typeName, Member: member, Message: fmt.Sprintf(format, args...)}
}

// Access creates an ATTRIBUTE_ACCESS error.
func Access(typeName, member, format string, args ...any) *Error {
	return &Error{Code: CodeAccess, Type: typeName, Member: member, Message: fmt.Sprintf(format, args...)}
}

// Lookup creates a LOOKUP error.
func Lookup(typeName, member, format string, args ...any) *Error {
	return &Error{Code: CodeLookup, Type: typeName, Member: member, Message: fmt.Sprintf(format, args...)}
}

// Wrap attaches a cause to a new error with the given code.
func Wrap(code Code, typeName, member, message string, err error) *Error {
	return &Error{Code: code, Type: typeName, Member: member, Message: message, Err: err}
}

// WithContext returns a copy of err with empty Type/Member fields filled in.
// Errors that are not *Error are returned unchanged.
func WithContext(err error, typeName, member string) error {
	var e *Error
	if !errors.As(err, &e) {
		return err
	}
	if (e.Type != "" || typeName == "") && (e.Member != "" || member == "") {
		return err
	}
	cp := *e
	if cp.Type == "" {
		cp.Type = typeName
	}
	if cp.Member == "" {
		cp.Member = member
	}
	return &cp
}

// CodeOf returns the code of the first *Error in err's chain.
func CodeOf(err error) (Code, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e.Code, true
	}
	return "", false
}

// IsSchemaError returns true if err is a SCHEMA error.
func IsSchemaError(err error) bool {
	return hasCode(err, CodeSchema)
}

// IsValidationError returns true if err is a VALIDATION error.
func IsValidationError(err error) bool {
	return hasCode(err, CodeValidation)
}

// IsAccessError returns true if err is an ATTRIBUTE_ACCESS error.
func IsAccessError(err error) bool {
	return hasCode(err, CodeAccess)
}

// IsLookupError returns true if err is a LOOKUP error.
func IsLookupError(err error) bool {
	return hasCode(err, CodeLookup)
}

func hasCode(err error, code Code) bool {
	c, ok := CodeOf(err)
	return ok && c == code
}

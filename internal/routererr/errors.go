// Package routererr defines the router's error taxonomy: a single error type
// carrying a wire-level code string, so every boundary (router, façade, admin
// API) can translate an error without a type switch over many structs.
package routererr

import "fmt"

// Code is a wire-level error classification.
type Code string

const (
	CodeConfig        Code = "CONFIG_ERROR"
	CodeValidation    Code = "VALIDATION_ERROR"
	CodeInstanceNF    Code = "INSTANCE_NOT_FOUND"
	CodeToolNF        Code = "TOOL_NOT_FOUND"
	CodeTimeout       Code = "TIMEOUT"
	CodeTransport     Code = "TRANSPORT_ERROR"
	CodeSecurity      Code = "SECURITY_ERROR"
	CodePermission    Code = "PERMISSION_DENIED"
	CodeInternal      Code = "INTERNAL_ERROR"
)

// Error is the router's sole error type. Message is the human-readable text;
// Code is the stable wire identifier serialised alongside it.
type Error struct {
	Code    Code
	Message string
}

func (e *Error) Error() string {
	return e.Message
}

// Is makes errors.Is(err, target) match any *Error target with the same Code
// (e.g. routererr.New(CodeConfig, "")), rather than by pointer identity.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return e.Code == t.Code
}

func New(code Code, message string) *Error {
	return &Error{Code: code, Message: message}
}

func Configuration(format string, args ...any) *Error {
	return New(CodeConfig, fmt.Sprintf(format, args...))
}

func Validation(format string, args ...any) *Error {
	return New(CodeValidation, fmt.Sprintf(format, args...))
}

func InstanceNotFound(name string) *Error {
	return New(CodeInstanceNF, fmt.Sprintf("Instance not found: %s", name))
}

func ToolNotFound(tool, instance string) *Error {
	return New(CodeToolNF, fmt.Sprintf("Tool '%s' not found in instance '%s'", tool, instance))
}

func Timeout(seconds float64) *Error {
	return New(CodeTimeout, fmt.Sprintf("Timeout exceeded: %gs", seconds))
}

func Transport(format string, args ...any) *Error {
	return New(CodeTransport, fmt.Sprintf(format, args...))
}

func Security(format string, args ...any) *Error {
	return New(CodeSecurity, fmt.Sprintf(format, args...))
}

func Permission(format string, args ...any) *Error {
	return New(CodePermission, fmt.Sprintf(format, args...))
}

func Internal(format string, args ...any) *Error {
	return New(CodeInternal, fmt.Sprintf(format, args...))
}

// AsRouterError unwraps err looking for the deepest *Error, so a boundary can
// pick the wire code even after the error has been wrapped with fmt.Errorf's
// %w along the way. Falls back to CodeInternal when err carries no *Error.
func AsRouterError(err error) *Error {
	if err == nil {
		return nil
	}
	type unwrapper interface{ Unwrap() error }
	for cur := err; cur != nil; {
		if re, ok := cur.(*Error); ok {
			return re
		}
		u, ok := cur.(unwrapper)
		if !ok {
			break
		}
		cur = u.Unwrap()
	}
	return Internal("%s", err.Error())
}

// ToDict mirrors the source's MCPRouterException.to_dict(): the JSON shape
// every error takes once it crosses a boundary into a tool result or an
// HTTP response body.
func (e *Error) ToDict() map[string]string {
	return map[string]string{"error": e.Message, "code": string(e.Code)}
}

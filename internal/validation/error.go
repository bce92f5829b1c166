// Package validation carries per-field request errors from services to the
// HTTP error handler.
package validation

// Error rejects a single request field.
type Error struct {
	Field   string
	Message string
}

func (e *Error) Error() string {
	return e.Field + ": " + e.Message
}

// FieldErrors renders the error as {field: [message]}.
func (e *Error) FieldErrors() map[string][]string {
	return map[string][]string{e.Field: {e.Message}}
}

// Field is shorthand for &Error{Field: field, Message: message}.
func Field(field, message string) *Error {
	return &Error{Field: field, Message: message}
}

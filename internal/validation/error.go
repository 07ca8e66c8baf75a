package validation

import (
	"errors"
	"fmt"
)

// Error is a client input problem. Handlers answer it with 400.
type Error struct {
	Field   string
	Message string
}

func (e *Error) Error() string {
	if e.Field == "" {
		return e.Message
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

func New(field, format string, args ...any) error {
	return &Error{Field: field, Message: fmt.Sprintf(format, args...)}
}

// IsValidation reports whether err carries a validation Error.
func IsValidation(err error) bool {
	var v *Error
	return errors.As(err, &v)
}

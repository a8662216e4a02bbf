package model

import (
	"errors"
	"fmt"
)

// ErrPolicyNotFound is returned when a customer has no policy configured.
var ErrPolicyNotFound = errors.New("policy not found")

// ValidationError rejects invalid numeric input before any computation.
// Field names the offending input.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Message)
}

// Validationf builds a ValidationError for the given field.
func Validationf(field, format string, args ...any) error {
	return &ValidationError{Field: field, Message: fmt.Sprintf(format, args...)}
}

// IsValidation reports whether err is a ValidationError.
func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}

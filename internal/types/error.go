package types

import (
	"errors"
	"fmt"
)

// Sentinel errors used by the store and domain adapters. Handlers translate
// them at the operation boundary; nothing bubbles to a global handler.
var (
	ErrNotFound  = errors.New("not found")
	ErrMandatory = errors.New("mandatory field")
	ErrForbidden = errors.New("forbidden")
)

type CustomError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Type    string `json:"type"`
}

func (e *CustomError) Error() string {
	return fmt.Sprintf("%d: %s [type: %s]", e.Code, e.Message, e.Type)
}

// ValidationError marks missing or malformed user input. The operation that
// raised it aborts with no partial state change.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Message
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

func NewValidationError(field, message string) *ValidationError {
	return &ValidationError{Field: field, Message: message}
}

// Package repair validates model output against a contract and re-prompts the
// model with the validation errors until it conforms or the budget runs out.
package repair

import (
	"errors"
	"fmt"

	"github.com/TedTes/genres-sub000/internal/schemas"
)

// SchemaValidationError means model output never conformed to its contract.
type SchemaValidationError struct {
	Contract schemas.Contract
	Attempts int
	Last     error
}

func (e *SchemaValidationError) Error() string {
	return fmt.Sprintf("%s output failed schema validation after %d repair attempt(s): %v", e.Contract, e.Attempts, e.Last)
}

func (e *SchemaValidationError) Unwrap() error {
	return e.Last
}

// IsSchemaValidation reports whether err is a SchemaValidationError.
func IsSchemaValidation(err error) bool {
	var sv *SchemaValidationError
	return errors.As(err, &sv)
}

// DecodeError means the document passed the schema but not the Go type.
type DecodeError struct {
	Message string
	Cause   error
}

func (e *DecodeError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("decode error: %s: %v", e.Message, e.Cause)
	}
	return fmt.Sprintf("decode error: %s", e.Message)
}

func (e *DecodeError) Unwrap() error {
	return e.Cause
}

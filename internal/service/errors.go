package service

import (
	"errors"
	"fmt"
)

// ErrOrderLocked means another request is already processing this checkout
// attempt. The caller must not retry silently; this surfaces as a 409.
var ErrOrderLocked = errors.New("order is being processed")

// ValidationError is a malformed or incomplete checkout request, rejected at
// the boundary before any lock or side effect.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid request: %s %s", e.Field, e.Message)
}

// Package service holds the booking lifecycle: creation with availability
// checks, the status state machine, its authorization rules and pricing.
package service

import (
	"errors"
	"fmt"
)

// Failure kinds surfaced to callers.  Detailed errors wrap one of these;
// use errors.Is to classify.
var (
	ErrValidation        = errors.New("validation failed")
	ErrUnavailable       = errors.New("vehicle unavailable for the requested dates")
	ErrUnauthorized      = errors.New("not allowed")
	ErrInvalidTransition = errors.New("invalid status transition")
	ErrNotPending        = errors.New("booking is not pending")
	ErrNotFound          = errors.New("not found")
)

func validationErr(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrValidation, fmt.Sprintf(format, args...))
}

func unauthorizedErr(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrUnauthorized, fmt.Sprintf(format, args...))
}

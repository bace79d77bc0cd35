// Package repository defines error types that are reused across multiple
// repositories. These sentinel values allow higher layers such as the
// booking service and the handlers to distinguish between different
// failure scenarios without inspecting driver errors.
package repository

import "errors"

// ErrNotFound is returned when the requested row does not exist.
var ErrNotFound = errors.New("not found")

// ErrForbidden is returned when the caller attempts an operation
// on a resource they do not own. Handlers should translate this
// into an HTTP 403 response.
var ErrForbidden = errors.New("forbidden")

// ErrConflict is returned when an insert cannot be performed because of
// conflicting state, such as a booking whose dates overlap an active
// booking of the same vehicle. Handlers should translate this into an
// HTTP 409 response.
var ErrConflict = errors.New("conflict")

// ErrStaleStatus is returned by conditional status updates when the row
// no longer holds the expected status.  Callers reload and decide again.
var ErrStaleStatus = errors.New("status changed concurrently")

// ErrEmailExists is returned when registering an email that is taken.
var ErrEmailExists = errors.New("email already registered")

// Package repository implements persistence for calendar events and the
// property-owner directory over MySQL.  It also defines the sentinel error
// values that higher layers translate into HTTP statuses or message-handling
// decisions.
package repository

import "errors"

// ErrEventNotFound is returned when an event id does not exist, is of a
// different kind than requested, or is not owned by the acting identity.
// Handlers translate this into an HTTP 404 response.
var ErrEventNotFound = errors.New("event not found")

// ErrDuplicateReservation is returned when an insert collides with the
// (service, external_id) uniqueness constraint.  The reconciler treats it as
// an already-imported reservation rather than a failure.
var ErrDuplicateReservation = errors.New("reservation already imported")

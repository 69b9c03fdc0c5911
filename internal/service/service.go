// Package service holds the calendar's business rules: management event
// CRUD guarded by the overlap detector, and the reservation reconciliation
// state machine fed by the booking-channel wrappers.
package service

import (
	"context"
	"errors"

	"github.com/PI-PropertEase/CalendarService/internal/model"
	"github.com/PI-PropertEase/CalendarService/internal/queue"
)

// ErrPropertyNotOwned is returned when the acting owner does not control the
// target property.  Handlers translate it into an HTTP 404 response, the
// same class as an unknown event, so callers cannot probe which property ids
// exist.
var ErrPropertyNotOwned = errors.New("property not controlled by owner")

// ErrOverlap is returned when a candidate interval conflicts with an
// existing event of any type for the same (owner, property).  Handlers
// translate it into an HTTP 409 response.
var ErrOverlap = errors.New("overlapping events")

// ErrInvalidInterval is returned when a merged update would leave
// begin_datetime at or after end_datetime.
var ErrInvalidInterval = errors.New("begin_datetime must be before end_datetime")

// Notifier publishes calendar changes onto the bus, either to every wrapper
// or to a single channel.  Implemented by queue.Publisher.  Callers treat
// failures as log-and-continue: a notification is a second phase after
// commit, never part of the state transition.
type Notifier interface {
	Broadcast(ctx context.Context, msgType queue.MessageType, body any) error
	ToChannel(ctx context.Context, ch model.Channel, msgType queue.MessageType, body any) error
}

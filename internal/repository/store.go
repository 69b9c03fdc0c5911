package repository

import (
	"context"

	"github.com/PI-PropertEase/CalendarService/internal/model"
	"github.com/PI-PropertEase/CalendarService/internal/overlap"
)

// Tx is the transaction-scoped view of the event store.  Every mutation and
// every overlap-relevant read used by the services goes through one Tx so
// that a batch sees its own earlier writes and two concurrent creates for
// the same property cannot both pass the overlap check.
type Tx interface {
	// CreateEvent inserts any event variant and populates its generated ID.
	// Inserting a reservation whose (service, external_id) pair already
	// exists returns ErrDuplicateReservation.
	CreateEvent(ctx context.Context, ev *model.Event) error

	// ManagementEventByID loads a cleaning or maintenance event by kind and
	// id.  It returns ErrEventNotFound when no such row exists.
	ManagementEventByID(ctx context.Context, typ model.EventType, id int64) (*model.Event, error)

	// UpdateManagementEvent rewrites the mutable columns (interval and
	// type-specific metadata) of an existing management event.
	UpdateManagementEvent(ctx context.Context, ev *model.Event) error

	// DeleteManagementEvent removes a management event owned by the given
	// identity and reports whether a row was deleted.
	DeleteManagementEvent(ctx context.Context, typ model.EventType, id int64, ownerEmail string) (bool, error)

	// Spans returns the intervals of every event, of every type, for one
	// (owner, property) pair.  This is the polymorphic input of the overlap
	// detector: a cleaning can conflict with a reservation and vice versa.
	Spans(ctx context.Context, ownerEmail string, propertyID int64) ([]overlap.Span, error)

	// ReservationByChannelID finds a reservation by its deduplication key.
	// It returns (nil, nil) when the channel never reported this id before.
	ReservationByChannelID(ctx context.Context, ch model.Channel, externalID int64) (*model.Event, error)

	// SetReservationStatus transitions a reservation row in place.
	SetReservationStatus(ctx context.Context, id int64, st model.ReservationStatus) error

	// ConfirmedReservations lists the confirmed reservations of a property.
	ConfirmedReservations(ctx context.Context, propertyID int64) ([]model.Event, error)
}

// Store is the event store handed to the services.  InTx owns the
// transaction lifecycle: fn runs against a Tx, a nil return commits, any
// error rolls back and is passed through.  The read-only listing methods run
// outside any transaction.
type Store interface {
	InTx(ctx context.Context, fn func(Tx) error) error
	EventsByOwner(ctx context.Context, ownerEmail string) ([]model.Event, error)
	EventsByOwnerAndType(ctx context.Context, ownerEmail string, typ model.EventType) ([]model.Event, error)
}

// Directory is the property-owner mapping consumed to authorize event
// creation and to answer bulk confirmed-reservation requests.  The process
// maintaining it lives outside this service; we only look up and append.
type Directory interface {
	ControlsProperty(ctx context.Context, ownerEmail string, propertyID int64) (bool, error)
	AppendMapping(ctx context.Context, ownerEmail string, propertyID int64) error
}

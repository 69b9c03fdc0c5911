package model

import "time"

// EventType discriminates the closed set of calendar event variants.  The
// value is stored verbatim in the events table and reused as the `kind`
// route parameter for management endpoints.
type EventType string

const (
	EventTypeReservation EventType = "reservation"
	EventTypeCleaning    EventType = "cleaning"
	EventTypeMaintenance EventType = "maintenance"
)

// ManagementEventTypes lists the internally-created event kinds exposed by
// the management REST surface.  Reservations are excluded because they are
// only ever sourced from external booking channels.
var ManagementEventTypes = []EventType{EventTypeCleaning, EventTypeMaintenance}

// IsManagement reports whether the type is an internally-created event kind.
func (t EventType) IsManagement() bool {
	return t == EventTypeCleaning || t == EventTypeMaintenance
}

// ReservationStatus tracks the lifecycle of an imported reservation.
// Reservations are never hard-deleted; a cancellation transitions the row to
// StatusCanceled so the (service, external_id) pair keeps deduplicating
// future imports.
type ReservationStatus string

const (
	StatusPending   ReservationStatus = "pending"
	StatusConfirmed ReservationStatus = "confirmed"
	StatusCanceled  ReservationStatus = "canceled"
)

// ReservationFields is the payload attached to events of type reservation.
// ExternalID is the channel-local identifier: unique within a channel but
// not globally, so deduplication always keys on (Channel, ExternalID).
type ReservationFields struct {
	ExternalID  int64             `json:"external_id"`
	Channel     Channel           `json:"service"`
	Status      ReservationStatus `json:"reservation_status"`
	ClientEmail string            `json:"client_email"`
	ClientName  string            `json:"client_name"`
	ClientPhone string            `json:"client_phone"`
	Cost        float64           `json:"cost"`
}

// ManagementFields is the payload attached to cleaning and maintenance
// events.  WorkerName is set for cleanings, CompanyName for maintenances.
type ManagementFields struct {
	WorkerName  string `json:"worker_name,omitempty"`
	CompanyName string `json:"company_name,omitempty"`
}

// Event is the single polymorphic calendar entry.  All variants share the
// (PropertyID, OwnerEmail, [Begin, End)) triple consulted by the overlap
// detector; exactly one of Reservation or Management is non-nil depending on
// Type.  Intervals are half-open: End is excluded, so back-to-back events on
// the same property do not conflict.
type Event struct {
	ID          int64              `json:"id"`
	Type        EventType          `json:"type"`
	PropertyID  int64              `json:"property_id"`
	OwnerEmail  string             `json:"owner_email"`
	Begin       time.Time          `json:"begin_datetime"`
	End         time.Time          `json:"end_datetime"`
	Reservation *ReservationFields `json:"reservation,omitempty"`
	Management  *ManagementFields  `json:"management,omitempty"`
}

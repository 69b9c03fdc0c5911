// Package queue defines the message contracts and routing topology shared
// with the booking-channel wrappers, plus the publisher used to propagate
// calendar changes back onto the bus.
package queue

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/PI-PropertEase/CalendarService/internal/model"
)

// Exchange and queue topology.  One topic exchange carries everything; the
// calendar service consumes two queues (one per inbound message category so
// each gets its own sequential handler) and publishes with either the
// broadcast key or a per-wrapper key.
const (
	ExchangeName = "calendar_events"

	ImportQueue      = "wrappers_to_calendar"
	ImportRoutingKey = "calendar.import"

	MappingQueue      = "calendar_property_mapping"
	MappingRoutingKey = "calendar.mapping"

	// BroadcastRoutingKey addresses every wrapper at once.
	BroadcastRoutingKey = "wrappers.all"
)

// ChannelRoutingKey addresses a single wrapper service.
func ChannelRoutingKey(ch model.Channel) string {
	return "wrappers." + string(ch)
}

// MessageType tags an envelope's body.
type MessageType string

const (
	// Inbound.
	TypeReservationImport MessageType = "RESERVATION_IMPORT"
	TypeConfirmedRequest  MessageType = "RESERVATION_IMPORT_REQUEST_OTHER_SERVICES_CONFIRMED_RESERVATIONS"
	TypePropertyMapping   MessageType = "EMAIL_PROPERTY_ID_MAPPING"

	// Outbound.
	TypeReservationConfirm MessageType = "RESERVATION_IMPORT_CONFIRM"
	TypeReservationCancel  MessageType = "RESERVATION_IMPORT_CANCEL"
	TypeReservationOverlap MessageType = "RESERVATION_IMPORT_OVERLAP"
	TypeManagementCreate   MessageType = "MANAGEMENT_EVENT_CREATE"
	TypeManagementUpdate   MessageType = "MANAGEMENT_EVENT_UPDATE"
	TypeManagementDelete   MessageType = "MANAGEMENT_EVENT_DELETE"
)

// Envelope is the uniform frame around every message on the bus.
type Envelope struct {
	ID          string          `json:"id"`
	MessageType MessageType     `json:"message_type"`
	Ts          int64           `json:"ts"`
	Body        json.RawMessage `json:"body"`
}

// NewEnvelope wraps a body in a fresh envelope.
func NewEnvelope(msgType MessageType, body any) (*Envelope, error) {
	raw, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("marshal %s body: %w", msgType, err)
	}
	return &Envelope{
		ID:          uuid.NewString(),
		MessageType: msgType,
		Ts:          time.Now().Unix(),
		Body:        raw,
	}, nil
}

// wireTimeLayout is the datetime format the wrappers historically send.
const wireTimeLayout = "2006-01-02 15:04:05"

// WireTime is a time.Time that accepts both the wrappers' space-separated
// layout and RFC 3339 on the way in, and always writes the wrappers' layout
// on the way out.  Values are treated as UTC.
type WireTime struct {
	time.Time
}

func (t WireTime) MarshalJSON() ([]byte, error) {
	return json.Marshal(t.UTC().Format(wireTimeLayout))
}

func (t *WireTime) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	s = strings.TrimSpace(s)
	if parsed, err := time.Parse(wireTimeLayout, s); err == nil {
		t.Time = parsed.UTC()
		return nil
	}
	parsed, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return fmt.Errorf("unsupported datetime %q", s)
	}
	t.Time = parsed.UTC()
	return nil
}

// ReservationRecord is one reservation inside an import batch.  The _id is
// the channel-local identifier used for deduplication together with the
// batch's service field.
type ReservationRecord struct {
	ExternalID        int64    `json:"_id"`
	PropertyID        int64    `json:"property_id"`
	OwnerEmail        string   `json:"owner_email"`
	BeginDatetime     WireTime `json:"begin_datetime"`
	EndDatetime       WireTime `json:"end_datetime"`
	ClientEmail       string   `json:"client_email"`
	ClientName        string   `json:"client_name"`
	ClientPhone       string   `json:"client_phone"`
	Cost              float64  `json:"cost"`
	ReservationStatus string   `json:"reservation_status"`
}

// ReservationImportBody is the body of a RESERVATION_IMPORT message.
type ReservationImportBody struct {
	Service      string              `json:"service"`
	Reservations []ReservationRecord `json:"reservations"`
}

// ConfirmedRequestBody asks the calendar to republish each confirmed
// reservation of the listed properties, addressed to the requesting service.
type ConfirmedRequestBody struct {
	Service       string  `json:"service"`
	PropertiesIDs []int64 `json:"properties_ids"`
}

// PropertyMappingBody appends one property to an owner's directory entry.
type PropertyMappingBody struct {
	Email      string `json:"email"`
	PropertyID int64  `json:"property_id"`
}

// ReservationNotification is the outbound rendition of a reservation, keyed
// by the channel-local id so the receiving wrapper recognizes its own record.
type ReservationNotification struct {
	ExternalID        int64    `json:"_id"`
	PropertyID        int64    `json:"property_id"`
	OwnerEmail        string   `json:"owner_email"`
	BeginDatetime     WireTime `json:"begin_datetime"`
	EndDatetime       WireTime `json:"end_datetime"`
	ClientEmail       string   `json:"client_email"`
	ClientName        string   `json:"client_name"`
	ClientPhone       string   `json:"client_phone"`
	Cost              float64  `json:"cost"`
	ReservationStatus string   `json:"reservation_status"`
}

// NewReservationNotification translates a stored reservation back into
// channel-agnostic wire fields.
func NewReservationNotification(ev *model.Event) ReservationNotification {
	n := ReservationNotification{
		PropertyID:    ev.PropertyID,
		OwnerEmail:    ev.OwnerEmail,
		BeginDatetime: WireTime{ev.Begin},
		EndDatetime:   WireTime{ev.End},
	}
	if res := ev.Reservation; res != nil {
		n.ExternalID = res.ExternalID
		n.ClientEmail = res.ClientEmail
		n.ClientName = res.ClientName
		n.ClientPhone = res.ClientPhone
		n.Cost = res.Cost
		n.ReservationStatus = string(res.Status)
	}
	return n
}

// ManagementEventNotification describes an internal event mutation to the
// wrappers.  Wrappers only need the occupancy interval, not the metadata.
type ManagementEventNotification struct {
	ID            int64    `json:"id"`
	Type          string   `json:"type"`
	PropertyID    int64    `json:"property_id"`
	BeginDatetime WireTime `json:"begin_datetime"`
	EndDatetime   WireTime `json:"end_datetime"`
}

// NewManagementEventNotification builds the wire form of a management event.
func NewManagementEventNotification(ev *model.Event) ManagementEventNotification {
	return ManagementEventNotification{
		ID:            ev.ID,
		Type:          string(ev.Type),
		PropertyID:    ev.PropertyID,
		BeginDatetime: WireTime{ev.Begin},
		EndDatetime:   WireTime{ev.End},
	}
}

// Package events defines the domain events emitted by the booking lifecycle
// and an in-process bus that fans them out to side-effect handlers.
package events

import (
	"time"

	"github.com/google/uuid"

	"github.com/iliyamo/vehicle-rental-booking/internal/model"
)

// Event names.  They double as RabbitMQ routing keys.
const (
	NameBookingCreated       = "booking.created"
	NameBookingConfirmed     = "booking.confirmed"
	NameBookingRejected      = "booking.rejected"
	NameBookingStatusChanged = "booking.status_changed"
)

// Event is implemented by every domain event.
type Event interface {
	EventID() string
	EventName() string
	AggregateID() uint64
	OccurredAt() time.Time
}

// Meta carries the identity shared by all events.
type Meta struct {
	ID string    `json:"event_id"`
	At time.Time `json:"occurred_at"`
}

// NewMeta stamps a fresh event id.
func NewMeta(at time.Time) Meta {
	return Meta{ID: uuid.NewString(), At: at.UTC()}
}

func (m Meta) EventID() string       { return m.ID }
func (m Meta) OccurredAt() time.Time { return m.At }

// BookingCreated is emitted once a reservation request is stored.
type BookingCreated struct {
	Meta
	Booking        model.Booking `json:"booking"`
	InitialMessage string        `json:"initial_message,omitempty"`
}

func (e BookingCreated) EventName() string   { return NameBookingCreated }
func (e BookingCreated) AggregateID() uint64 { return e.Booking.ID }

// BookingStatusChanged is emitted for every effective status change.
// Recipient is the party that did not act.
type BookingStatusChanged struct {
	Meta
	Booking   model.Booking `json:"booking"`
	From      model.Status  `json:"from"`
	To        model.Status  `json:"to"`
	ActorID   uint64        `json:"actor_id"`
	Recipient uint64        `json:"recipient_id"`
}

func (e BookingStatusChanged) EventName() string   { return NameBookingStatusChanged }
func (e BookingStatusChanged) AggregateID() uint64 { return e.Booking.ID }

// BookingConfirmed is emitted when an owner accepts a pending request.
type BookingConfirmed struct {
	Meta
	Booking model.Booking `json:"booking"`
}

func (e BookingConfirmed) EventName() string   { return NameBookingConfirmed }
func (e BookingConfirmed) AggregateID() uint64 { return e.Booking.ID }

// BookingRejected is emitted when an owner declines a pending request.
type BookingRejected struct {
	Meta
	Booking model.Booking `json:"booking"`
	Reason  string        `json:"reason,omitempty"`
}

func (e BookingRejected) EventName() string   { return NameBookingRejected }
func (e BookingRejected) AggregateID() uint64 { return e.Booking.ID }

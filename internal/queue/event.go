// Package queue defines message payloads exchanged over the message broker
// together with the publisher and the audit consumer.
package queue

import (
	"time"

	"github.com/iliyamo/vehicle-rental-booking/internal/events"
	"github.com/iliyamo/vehicle-rental-booking/internal/model"
)

// BookingEvent is the broker representation of a booking domain event.  It
// carries enough information for downstream consumers to log, notify or
// feed analytics without querying the primary database.
type BookingEvent struct {
	EventID     string    `json:"event_id"`
	Name        string    `json:"event"`
	OccurredAt  time.Time `json:"occurred_at"`
	BookingID   uint64    `json:"booking_id"`
	VehicleID   uint64    `json:"vehicle_id"`
	RenterID    uint64    `json:"renter_id"`
	OwnerID     uint64    `json:"owner_id"`
	Status      string    `json:"status"`
	FromStatus  string    `json:"from_status,omitempty"`
	ActorID     uint64    `json:"actor_id,omitempty"`
	StartDate   string    `json:"start_date"`
	EndDate     string    `json:"end_date"`
	TotalCents  int64     `json:"total_price_cents"`
	Reason      string    `json:"reason,omitempty"`
	VehicleName string    `json:"vehicle,omitempty"`
}

// FromDomain flattens a domain event.  ok is false for event types that
// are not forwarded.
func FromDomain(ev events.Event) (BookingEvent, bool) {
	var (
		b   model.Booking
		out BookingEvent
	)
	switch e := ev.(type) {
	case events.BookingCreated:
		b = e.Booking
	case events.BookingConfirmed:
		b = e.Booking
	case events.BookingRejected:
		b = e.Booking
		out.Reason = e.Reason
	case events.BookingStatusChanged:
		b = e.Booking
		out.FromStatus = string(e.From)
		out.ActorID = e.ActorID
	default:
		return BookingEvent{}, false
	}
	out.EventID = ev.EventID()
	out.Name = ev.EventName()
	out.OccurredAt = ev.OccurredAt()
	out.BookingID = b.ID
	out.VehicleID = b.VehicleID
	out.RenterID = b.RenterID
	out.OwnerID = b.OwnerID
	out.Status = string(b.Status)
	out.StartDate = b.StartDate.Format(model.DateLayout)
	out.EndDate = b.EndDate.Format(model.DateLayout)
	out.TotalCents = b.TotalCents
	if b.Vehicle != nil {
		out.VehicleName = b.Vehicle.Make + " " + b.Vehicle.Model
	}
	return out, true
}

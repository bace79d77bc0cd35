// Package notify attaches the side effects of the booking lifecycle to the
// event bus: in-app notifications, the renter/owner message thread, the
// confirmation email and forwarding to the message broker.  Every handler
// is best effort; failures are returned to the bus, which logs them.
package notify

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/iliyamo/vehicle-rental-booking/internal/events"
	"github.com/iliyamo/vehicle-rental-booking/internal/mailer"
	"github.com/iliyamo/vehicle-rental-booking/internal/model"
	"github.com/iliyamo/vehicle-rental-booking/internal/queue"
)

// NotificationStore persists in-app notifications.
type NotificationStore interface {
	Create(ctx context.Context, n *model.Notification) error
}

// ThreadStore owns booking conversations.
type ThreadStore interface {
	GetOrCreate(ctx context.Context, bookingID, renterID, ownerID uint64) (*model.MessageThread, error)
	PostMessage(ctx context.Context, threadID, senderID uint64, body string) (*model.Message, error)
}

// UserLookup resolves email recipients.
type UserLookup interface {
	GetByID(ctx context.Context, id uint64) (model.User, error)
}

// Broker forwards events to RabbitMQ.
type Broker interface {
	Publish(ctx context.Context, ev queue.BookingEvent) error
}

// Deps are the collaborators of the subscribers.  A nil field disables the
// matching subscriber.
type Deps struct {
	Notifications NotificationStore
	Threads       ThreadStore
	Users         UserLookup
	Mail          mailer.Sender
	Broker        Broker
	Log           *slog.Logger
}

// Register subscribes every enabled side effect on bus.
func Register(bus *events.Bus, d Deps) {
	if d.Log == nil {
		d.Log = slog.Default()
	}
	if d.Notifications != nil {
		bus.Subscribe("notifications", d.notifications,
			events.NameBookingCreated, events.NameBookingStatusChanged)
	}
	if d.Threads != nil {
		bus.Subscribe("messaging", d.openThread, events.NameBookingCreated)
	}
	if d.Mail != nil && d.Users != nil {
		bus.Subscribe("confirmation-email", d.confirmationEmail, events.NameBookingConfirmed)
	}
	if d.Broker != nil {
		bus.Subscribe("broker", d.forward)
	}
}

func vehicleName(b model.Booking) string {
	if b.Vehicle == nil {
		return fmt.Sprintf("vehicle #%d", b.VehicleID)
	}
	return strings.TrimSpace(b.Vehicle.Make + " " + b.Vehicle.Model)
}

func dates(b model.Booking) string {
	return b.StartDate.Format(model.DateLayout) + " to " + b.EndDate.Format(model.DateLayout)
}

func (d Deps) notifications(ctx context.Context, ev events.Event) error {
	var n model.Notification
	switch e := ev.(type) {
	case events.BookingCreated:
		id := e.Booking.ID
		n = model.Notification{
			UserID:    e.Booking.OwnerID,
			Type:      model.NotificationBookingRequest,
			Title:     "New booking request",
			Message:   fmt.Sprintf("You have a new booking request for %s from %s.", vehicleName(e.Booking), dates(e.Booking)),
			RelatedID: &id,
		}
	case events.BookingStatusChanged:
		if e.Recipient == 0 {
			return nil
		}
		id := e.Booking.ID
		n = model.Notification{
			UserID:    e.Recipient,
			Type:      model.NotificationBookingStatusChanged,
			Title:     "Booking status updated",
			Message:   fmt.Sprintf("Your booking for %s is now %s.", vehicleName(e.Booking), strings.ReplaceAll(string(e.To), "_", " ")),
			RelatedID: &id,
		}
	default:
		return nil
	}
	if err := d.Notifications.Create(ctx, &n); err != nil {
		return fmt.Errorf("create notification: %w", err)
	}
	return nil
}

func (d Deps) openThread(ctx context.Context, ev events.Event) error {
	e, ok := ev.(events.BookingCreated)
	if !ok {
		return nil
	}
	b := e.Booking
	t, err := d.Threads.GetOrCreate(ctx, b.ID, b.RenterID, b.OwnerID)
	if err != nil {
		return fmt.Errorf("open thread: %w", err)
	}
	msg := strings.TrimSpace(e.InitialMessage)
	if msg == "" {
		return nil
	}
	if _, err := d.Threads.PostMessage(ctx, t.ID, b.RenterID, msg); err != nil {
		return fmt.Errorf("post initial message: %w", err)
	}
	return nil
}

func (d Deps) confirmationEmail(ctx context.Context, ev events.Event) error {
	e, ok := ev.(events.BookingConfirmed)
	if !ok {
		return nil
	}
	b := e.Booking
	u, err := d.Users.GetByID(ctx, b.RenterID)
	if err != nil {
		return fmt.Errorf("lookup renter %d: %w", b.RenterID, err)
	}
	if u.Email == "" {
		return nil
	}
	body := fmt.Sprintf(
		"Hi %s,\n\nYour booking #%d for %s from %s has been confirmed.\n"+
			"Pickup: %s\nReturn: %s\nTotal: %s\nDeposit: %s\n",
		displayName(u), b.ID, vehicleName(b), dates(b),
		b.PickupLocation, b.ReturnLocation, Money(b.TotalCents), Money(b.DepositCents))
	if err := d.Mail.Send(ctx, mailer.Message{
		To:      u.Email,
		ToName:  u.FullName,
		Subject: fmt.Sprintf("Booking #%d confirmed", b.ID),
		Body:    body,
	}); err != nil {
		return err
	}
	d.Log.Info("confirmation email sent", "booking_id", b.ID, "renter_id", b.RenterID)
	return nil
}

func displayName(u model.User) string {
	if u.FullName != "" {
		return u.FullName
	}
	return u.Email
}

// Money renders cents as a decimal amount.
func Money(cents int64) string {
	sign := ""
	if cents < 0 {
		sign = "-"
		cents = -cents
	}
	return fmt.Sprintf("%s%d.%02d", sign, cents/100, cents%100)
}

func (d Deps) forward(ctx context.Context, ev events.Event) error {
	msg, ok := queue.FromDomain(ev)
	if !ok {
		return nil
	}
	return d.Broker.Publish(ctx, msg)
}

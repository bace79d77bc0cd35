package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/iliyamo/vehicle-rental-booking/internal/events"
	"github.com/iliyamo/vehicle-rental-booking/internal/model"
	"github.com/iliyamo/vehicle-rental-booking/internal/repository"
)

// maxTransitionAttempts bounds the reload-and-retry loop of a status change
// that lost an optimistic concurrency race.
const maxTransitionAttempts = 3

// BookingStore is the persistence the lifecycle needs.
type BookingStore interface {
	// CreateIfAvailable re-checks the overlap and inserts b in one
	// serialized unit; repository.ErrConflict means the dates were taken.
	CreateIfAvailable(ctx context.Context, b *model.Booking) error
	GetByID(ctx context.Context, id uint64) (*model.Booking, error)
	// UpdateStatus applies u only while the row still holds u.From;
	// otherwise it returns repository.ErrStaleStatus.
	UpdateStatus(ctx context.Context, u repository.StatusUpdate) error
	HasOverlap(ctx context.Context, vehicleID uint64, start, end time.Time) (bool, error)
	ListByRenter(ctx context.Context, renterID uint64) ([]model.Booking, error)
	ListByOwner(ctx context.Context, ownerID uint64) ([]model.Booking, error)
	ListStalePending(ctx context.Context, startBefore time.Time, limit int) ([]model.Booking, error)
}

// VehicleStore reads vehicles.
type VehicleStore interface {
	GetByID(ctx context.Context, id uint64) (*model.Vehicle, error)
}

// Publisher receives domain events after a mutation is stored.
type Publisher interface {
	Publish(ctx context.Context, ev events.Event)
}

// Manager runs the booking lifecycle.  It is safe for concurrent use; all
// coordination between concurrent callers happens in the store.
type Manager struct {
	bookings BookingStore
	vehicles VehicleStore
	events   Publisher
	fees     Fees
	log      *slog.Logger
	now      func() time.Time
}

// Option customises a Manager.
type Option func(*Manager)

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(m *Manager) { m.now = now }
}

// WithLogger sets the logger.
func WithLogger(log *slog.Logger) Option {
	return func(m *Manager) { m.log = log }
}

// NewManager wires a Manager.  pub may be nil, in which case events are
// dropped.
func NewManager(bookings BookingStore, vehicles VehicleStore, pub Publisher, fees Fees, opts ...Option) *Manager {
	m := &Manager{
		bookings: bookings,
		vehicles: vehicles,
		events:   pub,
		fees:     fees,
		log:      slog.Default(),
		now:      time.Now,
	}
	for _, o := range opts {
		o(m)
	}
	return m
}

// CreateBookingInput is a renter's reservation request.
type CreateBookingInput struct {
	VehicleID      uint64
	RenterID       uint64
	StartDate      time.Time
	EndDate        time.Time
	PickupLocation string
	ReturnLocation string
	// QuotedTotalCents is the total the client displayed, if any.  It is
	// only compared against the server-side price.
	QuotedTotalCents *int64
	// Message is an optional note for the owner posted to the booking's
	// message thread.
	Message string
}

// CreateBooking stores a pending reservation request.  The owner is taken
// from the vehicle and the price is computed here, never trusted from the
// caller.
func (m *Manager) CreateBooking(ctx context.Context, in CreateBookingInput) (*model.Booking, error) {
	start, end := model.TruncateDate(in.StartDate), model.TruncateDate(in.EndDate)
	pickup := strings.TrimSpace(in.PickupLocation)
	ret := strings.TrimSpace(in.ReturnLocation)
	switch {
	case in.VehicleID == 0:
		return nil, validationErr("vehicle_id is required")
	case in.RenterID == 0:
		return nil, validationErr("renter_id is required")
	case in.StartDate.IsZero() || in.EndDate.IsZero():
		return nil, validationErr("start_date and end_date are required")
	case !start.Before(end):
		return nil, validationErr("end_date must be after start_date")
	case start.Before(model.TruncateDate(m.now())):
		return nil, validationErr("start_date is in the past")
	case pickup == "":
		return nil, validationErr("pickup_location is required")
	}
	if ret == "" {
		ret = pickup
	}

	v, err := m.vehicles.GetByID(ctx, in.VehicleID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, fmt.Errorf("%w: vehicle %d", ErrNotFound, in.VehicleID)
		}
		return nil, err
	}
	if !v.Bookable() {
		return nil, fmt.Errorf("%w: vehicle is not open for booking", ErrUnavailable)
	}
	if v.OwnerID == in.RenterID {
		return nil, unauthorizedErr("owners cannot book their own vehicle")
	}

	q, err := m.fees.Quote(v, start, end)
	if err != nil {
		return nil, err
	}
	if in.QuotedTotalCents != nil && *in.QuotedTotalCents != q.TotalCents {
		return nil, validationErr("quoted total %d does not match price %d", *in.QuotedTotalCents, q.TotalCents)
	}

	// Fail fast before taking the vehicle lock; the store checks again.
	free, err := m.overlapFree(ctx, v.ID, start, end)
	if err != nil {
		return nil, err
	}
	if !free {
		return nil, ErrUnavailable
	}

	b := &model.Booking{
		VehicleID:         v.ID,
		RenterID:          in.RenterID,
		OwnerID:           v.OwnerID,
		StartDate:         start,
		EndDate:           end,
		BasePriceCents:    q.BasePriceCents,
		ServiceFeeCents:   q.ServiceFeeCents,
		InsuranceFeeCents: q.InsuranceFeeCents,
		TotalCents:        q.TotalCents,
		DepositCents:      q.DepositCents,
		PickupLocation:    pickup,
		ReturnLocation:    ret,
		Status:            model.StatusPending,
		PaymentStatus:     model.PaymentPending,
	}
	if err := m.bookings.CreateIfAvailable(ctx, b); err != nil {
		if errors.Is(err, repository.ErrConflict) {
			return nil, ErrUnavailable
		}
		return nil, fmt.Errorf("create booking: %w", err)
	}
	b.Vehicle = v.Summary()

	m.log.Info("booking created",
		"booking_id", b.ID,
		"vehicle_id", b.VehicleID,
		"renter_id", b.RenterID,
		"total_cents", b.TotalCents,
	)
	m.publish(ctx, events.BookingCreated{
		Meta:           events.NewMeta(m.now()),
		Booking:        *b,
		InitialMessage: strings.TrimSpace(in.Message),
	})
	return b, nil
}

// TransitionStatus moves a booking to newStatus on behalf of actorID.
// Asking for the status the booking already holds succeeds without any
// change or event.
func (m *Manager) TransitionStatus(ctx context.Context, bookingID uint64, newStatus model.Status, actorID uint64) (*model.Booking, error) {
	if !newStatus.IsValid() {
		return nil, validationErr("unknown status %q", newStatus)
	}
	return m.transition(ctx, transitionRequest{
		bookingID: bookingID,
		to:        newStatus,
		actorID:   actorID,
	})
}

// AcceptBookingRequest confirms a pending request.  Only the owner may
// accept, and only while the request is still pending.
func (m *Manager) AcceptBookingRequest(ctx context.Context, bookingID, ownerID uint64) (*model.Booking, error) {
	return m.transition(ctx, transitionRequest{
		bookingID:      bookingID,
		to:             model.StatusConfirmed,
		actorID:        ownerID,
		requirePending: true,
	})
}

// RejectBookingRequest declines a pending request and records the reason.
func (m *Manager) RejectBookingRequest(ctx context.Context, bookingID, ownerID uint64, reason string) (*model.Booking, error) {
	req := transitionRequest{
		bookingID:      bookingID,
		to:             model.StatusRejected,
		actorID:        ownerID,
		requirePending: true,
	}
	if r := strings.TrimSpace(reason); r != "" {
		req.reason = &r
	}
	return m.transition(ctx, req)
}

// CancelBooking cancels a pending or confirmed booking.  Either party may
// cancel.
func (m *Manager) CancelBooking(ctx context.Context, bookingID, actorID uint64) (*model.Booking, error) {
	return m.TransitionStatus(ctx, bookingID, model.StatusCancelled, actorID)
}

// CheckIn records the vehicle hand-over.
func (m *Manager) CheckIn(ctx context.Context, bookingID, ownerID uint64) (*model.Booking, error) {
	return m.TransitionStatus(ctx, bookingID, model.StatusInProgress, ownerID)
}

// CheckOut records the vehicle's return.
func (m *Manager) CheckOut(ctx context.Context, bookingID, ownerID uint64) (*model.Booking, error) {
	return m.TransitionStatus(ctx, bookingID, model.StatusCompleted, ownerID)
}

// OpenDispute flags a running or finished rental for review.
func (m *Manager) OpenDispute(ctx context.Context, bookingID, actorID uint64) (*model.Booking, error) {
	return m.TransitionStatus(ctx, bookingID, model.StatusDisputed, actorID)
}

// GetBooking returns a booking to one of its parties or to an admin.
func (m *Manager) GetBooking(ctx context.Context, bookingID, actorID uint64, isAdmin bool) (*model.Booking, error) {
	b, err := m.load(ctx, bookingID)
	if err != nil {
		return nil, err
	}
	if !isAdmin && !b.IsParty(actorID) {
		return nil, unauthorizedErr("not a party to booking %d", bookingID)
	}
	m.hydrate(ctx, b)
	return b, nil
}

// ListBookings returns the user's bookings as renter or as owner, newest
// first.
func (m *Manager) ListBookings(ctx context.Context, userID uint64, role string) ([]model.Booking, error) {
	if userID == 0 {
		return nil, validationErr("user id is required")
	}
	switch strings.ToLower(strings.TrimSpace(role)) {
	case "", "renter":
		return m.bookings.ListByRenter(ctx, userID)
	case "owner":
		return m.bookings.ListByOwner(ctx, userID)
	default:
		return nil, validationErr("role must be renter or owner")
	}
}

// IsAvailable reports whether no active booking of the vehicle overlaps
// [start, end].  Both bounds are inclusive.  Unknown vehicles yield
// ErrNotFound.
func (m *Manager) IsAvailable(ctx context.Context, vehicleID uint64, start, end time.Time) (bool, error) {
	start, end = model.TruncateDate(start), model.TruncateDate(end)
	if end.Before(start) {
		return false, validationErr("end_date must not be before start_date")
	}
	if _, err := m.vehicles.GetByID(ctx, vehicleID); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return false, fmt.Errorf("%w: vehicle %d", ErrNotFound, vehicleID)
		}
		return false, err
	}
	return m.overlapFree(ctx, vehicleID, start, end)
}

func (m *Manager) overlapFree(ctx context.Context, vehicleID uint64, start, end time.Time) (bool, error) {
	taken, err := m.bookings.HasOverlap(ctx, vehicleID, start, end)
	if err != nil {
		return false, fmt.Errorf("check availability: %w", err)
	}
	return !taken, nil
}

// Quote prices a prospective booking of vehicleID.
func (m *Manager) Quote(ctx context.Context, vehicleID uint64, start, end time.Time) (Quote, error) {
	v, err := m.vehicles.GetByID(ctx, vehicleID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return Quote{}, fmt.Errorf("%w: vehicle %d", ErrNotFound, vehicleID)
		}
		return Quote{}, err
	}
	return m.fees.Quote(v, model.TruncateDate(start), model.TruncateDate(end))
}

// expireBatch caps how many stale requests one sweep handles.
const expireBatch = 200

// ExpireStalePending cancels pending requests whose start date has already
// passed without an owner decision.  It acts as the system and returns how
// many bookings were cancelled.
func (m *Manager) ExpireStalePending(ctx context.Context, now time.Time) (int, error) {
	stale, err := m.bookings.ListStalePending(ctx, model.TruncateDate(now), expireBatch)
	if err != nil {
		return 0, fmt.Errorf("list stale pending: %w", err)
	}
	n := 0
	for i := range stale {
		b := stale[i]
		err := m.bookings.UpdateStatus(ctx, repository.StatusUpdate{
			ID:   b.ID,
			From: model.StatusPending,
			To:   model.StatusCancelled,
			At:   now.UTC(),
		})
		if errors.Is(err, repository.ErrStaleStatus) {
			continue
		}
		if err != nil {
			return n, fmt.Errorf("expire booking %d: %w", b.ID, err)
		}
		n++
		b.Status = model.StatusCancelled
		b.UpdatedAt = now.UTC()
		m.publish(ctx, events.BookingStatusChanged{
			Meta:      events.NewMeta(now),
			Booking:   b,
			From:      model.StatusPending,
			To:        model.StatusCancelled,
			Recipient: b.RenterID,
		})
	}
	if n > 0 {
		m.log.Info("expired stale booking requests", "count", n)
	}
	return n, nil
}

type transitionRequest struct {
	bookingID      uint64
	to             model.Status
	actorID        uint64
	requirePending bool
	reason         *string
}

func (m *Manager) transition(ctx context.Context, req transitionRequest) (*model.Booking, error) {
	for attempt := 1; attempt <= maxTransitionAttempts; attempt++ {
		b, err := m.load(ctx, req.bookingID)
		if err != nil {
			return nil, err
		}
		if err := authorizeTransition(b, req.actorID, req.to); err != nil {
			return nil, err
		}
		if req.requirePending && b.Status != model.StatusPending {
			return nil, fmt.Errorf("%w: booking %d is %s", ErrNotPending, b.ID, b.Status)
		}
		if b.Status == req.to {
			return b, nil
		}
		if !b.Status.CanTransitionTo(req.to) {
			return nil, fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, b.Status, req.to)
		}

		now := m.now().UTC()
		u := repository.StatusUpdate{
			ID:              b.ID,
			From:            b.Status,
			To:              req.to,
			RejectionReason: req.reason,
			At:              now,
		}
		if req.to == model.StatusCancelled {
			actor := req.actorID
			u.CancelledBy = &actor
		}
		err = m.bookings.UpdateStatus(ctx, u)
		if errors.Is(err, repository.ErrStaleStatus) {
			m.log.Debug("status update lost race, reloading",
				"booking_id", b.ID, "attempt", attempt)
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("update booking status: %w", err)
		}

		from := b.Status
		b.Status = req.to
		b.UpdatedAt = now
		if u.RejectionReason != nil {
			b.RejectionReason = u.RejectionReason
		}
		if u.CancelledBy != nil {
			b.CancelledBy = u.CancelledBy
		}
		m.hydrate(ctx, b)
		m.log.Info("booking status changed",
			"booking_id", b.ID, "from", from, "to", b.Status, "actor_id", req.actorID)
		m.emitTransition(ctx, b, from, req)
		return b, nil
	}
	return nil, fmt.Errorf("%w: booking %d changed concurrently", ErrInvalidTransition, req.bookingID)
}

func (m *Manager) emitTransition(ctx context.Context, b *model.Booking, from model.Status, req transitionRequest) {
	meta := events.NewMeta(b.UpdatedAt)
	m.publish(ctx, events.BookingStatusChanged{
		Meta:      meta,
		Booking:   *b,
		From:      from,
		To:        b.Status,
		ActorID:   req.actorID,
		Recipient: b.OtherParty(req.actorID),
	})
	switch b.Status {
	case model.StatusConfirmed:
		m.publish(ctx, events.BookingConfirmed{Meta: events.NewMeta(b.UpdatedAt), Booking: *b})
	case model.StatusRejected:
		reason := ""
		if req.reason != nil {
			reason = *req.reason
		}
		m.publish(ctx, events.BookingRejected{Meta: events.NewMeta(b.UpdatedAt), Booking: *b, Reason: reason})
	}
}

// authorizeTransition enforces who may drive each edge.  Admins are not
// exempt: only the parties act on a booking.
func authorizeTransition(b *model.Booking, actorID uint64, to model.Status) error {
	if !b.IsParty(actorID) {
		return unauthorizedErr("not a party to booking %d", b.ID)
	}
	switch to {
	case model.StatusConfirmed, model.StatusRejected, model.StatusInProgress, model.StatusCompleted:
		if actorID != b.OwnerID {
			return unauthorizedErr("only the owner can move a booking to %s", to)
		}
	}
	return nil
}

func (m *Manager) load(ctx context.Context, id uint64) (*model.Booking, error) {
	b, err := m.bookings.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, fmt.Errorf("%w: booking %d", ErrNotFound, id)
		}
		return nil, fmt.Errorf("load booking: %w", err)
	}
	return b, nil
}

// hydrate attaches the vehicle snapshot.  A missing vehicle is logged and
// leaves the booking without one.
func (m *Manager) hydrate(ctx context.Context, b *model.Booking) {
	if b.Vehicle != nil {
		return
	}
	v, err := m.vehicles.GetByID(ctx, b.VehicleID)
	if err != nil {
		m.log.Warn("booking vehicle lookup failed", "booking_id", b.ID, "vehicle_id", b.VehicleID, "err", err)
		return
	}
	b.Vehicle = v.Summary()
}

func (m *Manager) publish(ctx context.Context, ev events.Event) {
	if m.events == nil {
		return
	}
	m.events.Publish(ctx, ev)
}

package service

import (
	"context"
	"io"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/iliyamo/vehicle-rental-booking/internal/events"
	"github.com/iliyamo/vehicle-rental-booking/internal/model"
	"github.com/iliyamo/vehicle-rental-booking/internal/repository"
)

// memBookings is an in-memory BookingStore.  The mutex plays the role of
// the vehicle row lock held by the MySQL implementation.
type memBookings struct {
	mu     sync.Mutex
	nextID uint64
	rows   map[uint64]model.Booking
	seq    map[uint64]int

	// beforeUpdate, when set, runs while UpdateStatus holds no lock so a
	// test can slip in a competing write.
	beforeUpdate func(u repository.StatusUpdate)
}

func newMemBookings() *memBookings {
	return &memBookings{rows: map[uint64]model.Booking{}, seq: map[uint64]int{}}
}

func (s *memBookings) overlaps(vehicleID uint64, start, end time.Time) bool {
	for _, b := range s.rows {
		if b.VehicleID == vehicleID && b.Status.IsActive() && b.Overlaps(start, end) {
			return true
		}
	}
	return false
}

func (s *memBookings) CreateIfAvailable(ctx context.Context, b *model.Booking) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.overlaps(b.VehicleID, b.StartDate, b.EndDate) {
		return repository.ErrConflict
	}
	s.nextID++
	b.ID = s.nextID
	now := time.Date(2025, 1, 1, 9, 0, 0, 0, time.UTC)
	b.CreatedAt, b.UpdatedAt = now, now
	row := *b
	row.Vehicle = nil
	s.rows[b.ID] = row
	s.seq[b.ID] = int(b.ID)
	return nil
}

func (s *memBookings) GetByID(ctx context.Context, id uint64) (*model.Booking, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	b, ok := s.rows[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return &b, nil
}

func (s *memBookings) UpdateStatus(ctx context.Context, u repository.StatusUpdate) error {
	if s.beforeUpdate != nil {
		hook := s.beforeUpdate
		s.beforeUpdate = nil
		hook(u)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	b, ok := s.rows[u.ID]
	if !ok {
		return repository.ErrNotFound
	}
	if b.Status != u.From {
		return repository.ErrStaleStatus
	}
	b.Status = u.To
	b.UpdatedAt = u.At
	if u.RejectionReason != nil {
		b.RejectionReason = u.RejectionReason
	}
	if u.CancelledBy != nil {
		b.CancelledBy = u.CancelledBy
	}
	s.rows[u.ID] = b
	return nil
}

// force overwrites a row's status, bypassing the state machine.
func (s *memBookings) force(id uint64, st model.Status) {
	s.mu.Lock()
	defer s.mu.Unlock()
	b := s.rows[id]
	b.Status = st
	s.rows[id] = b
}

func (s *memBookings) HasOverlap(ctx context.Context, vehicleID uint64, start, end time.Time) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.overlaps(vehicleID, start, end), nil
}

func (s *memBookings) list(match func(model.Booking) bool) []model.Booking {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []model.Booking
	for _, b := range s.rows {
		if match(b) {
			out = append(out, b)
		}
	}
	sort.Slice(out, func(i, j int) bool { return s.seq[out[i].ID] > s.seq[out[j].ID] })
	return out
}

func (s *memBookings) ListByRenter(ctx context.Context, renterID uint64) ([]model.Booking, error) {
	return s.list(func(b model.Booking) bool { return b.RenterID == renterID }), nil
}

func (s *memBookings) ListByOwner(ctx context.Context, ownerID uint64) ([]model.Booking, error) {
	return s.list(func(b model.Booking) bool { return b.OwnerID == ownerID }), nil
}

func (s *memBookings) ListStalePending(ctx context.Context, startBefore time.Time, limit int) ([]model.Booking, error) {
	out := s.list(func(b model.Booking) bool {
		return b.Status == model.StatusPending && b.StartDate.Before(startBefore)
	})
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

type memVehicles map[uint64]*model.Vehicle

func (v memVehicles) GetByID(ctx context.Context, id uint64) (*model.Vehicle, error) {
	veh, ok := v[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	cp := *veh
	return &cp, nil
}

// recorder captures published events.
type recorder struct {
	mu     sync.Mutex
	events []events.Event
}

func (r *recorder) Publish(ctx context.Context, ev events.Event) {
	r.mu.Lock()
	r.events = append(r.events, ev)
	r.mu.Unlock()
}

func (r *recorder) names() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, 0, len(r.events))
	for _, ev := range r.events {
		out = append(out, ev.EventName())
	}
	return out
}

func (r *recorder) reset() {
	r.mu.Lock()
	r.events = nil
	r.mu.Unlock()
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

const (
	ownerID    uint64 = 10
	renterA    uint64 = 21
	renterB    uint64 = 22
	stranger   uint64 = 99
	vehicleX   uint64 = 1
	vehicleOff uint64 = 2
)

type harness struct {
	mgr      *Manager
	bookings *memBookings
	events   *recorder
	clock    time.Time
}

func newHarness() *harness {
	h := &harness{
		bookings: newMemBookings(),
		events:   &recorder{},
		clock:    time.Date(2025, 1, 1, 9, 0, 0, 0, time.UTC),
	}
	vehicles := memVehicles{
		vehicleX: {
			ID: vehicleX, OwnerID: ownerID, Make: "Toyota", Model: "Corolla", Year: 2021,
			Location: "Jakarta", PricePerDayCents: 35000, DepositCents: 100000,
			IsAvailable: true, IsApproved: true,
		},
		vehicleOff: {
			ID: vehicleOff, OwnerID: ownerID, Make: "Honda", Model: "Jazz",
			PricePerDayCents: 20000, IsAvailable: true, IsApproved: false,
		},
	}
	h.mgr = NewManager(h.bookings, vehicles, h.events, DefaultFees,
		WithLogger(quietLogger()),
		WithClock(func() time.Time { return h.clock }),
	)
	return h
}

func jan(day int) time.Time {
	return time.Date(2025, 1, day, 0, 0, 0, 0, time.UTC)
}

func (h *harness) request(renter uint64, from, to int) CreateBookingInput {
	return CreateBookingInput{
		VehicleID:      vehicleX,
		RenterID:       renter,
		StartDate:      jan(from),
		EndDate:        jan(to),
		PickupLocation: "Jakarta",
	}
}

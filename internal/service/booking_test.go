package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/vehicle-rental-booking/internal/events"
	"github.com/iliyamo/vehicle-rental-booking/internal/model"
	"github.com/iliyamo/vehicle-rental-booking/internal/repository"
)

func TestCreateBookingComputesPrice(t *testing.T) {
	h := newHarness()
	ctx := context.Background()

	b, err := h.mgr.CreateBooking(ctx, h.request(renterA, 12, 15))
	require.NoError(t, err)

	assert.Equal(t, model.StatusPending, b.Status)
	assert.Equal(t, model.PaymentPending, b.PaymentStatus)
	assert.Equal(t, ownerID, b.OwnerID)
	assert.Equal(t, 3, b.DurationDays())
	assert.Equal(t, int64(105000), b.BasePriceCents)
	assert.Equal(t, int64(10500), b.ServiceFeeCents)
	assert.Equal(t, int64(0), b.InsuranceFeeCents)
	assert.Equal(t, int64(115500), b.TotalCents)
	assert.Equal(t, b.BasePriceCents+b.ServiceFeeCents+b.InsuranceFeeCents, b.TotalCents)
	assert.Equal(t, int64(100000), b.DepositCents)
	assert.Equal(t, "Jakarta", b.ReturnLocation)
	require.NotNil(t, b.Vehicle)
	assert.Equal(t, "Corolla", b.Vehicle.Model)

	assert.Equal(t, []string{events.NameBookingCreated}, h.events.names())
}

func TestCreateBookingQuotedTotal(t *testing.T) {
	h := newHarness()
	ctx := context.Background()

	wrong := int64(100)
	in := h.request(renterA, 12, 15)
	in.QuotedTotalCents = &wrong
	_, err := h.mgr.CreateBooking(ctx, in)
	assert.ErrorIs(t, err, ErrValidation)

	right := int64(115500)
	in.QuotedTotalCents = &right
	_, err = h.mgr.CreateBooking(ctx, in)
	assert.NoError(t, err)
}

func TestCreateBookingValidation(t *testing.T) {
	h := newHarness()
	ctx := context.Background()

	cases := map[string]func(in *CreateBookingInput){
		"end before start": func(in *CreateBookingInput) { in.StartDate, in.EndDate = jan(15), jan(12) },
		"same day":         func(in *CreateBookingInput) { in.EndDate = in.StartDate },
		"in the past":      func(in *CreateBookingInput) { in.StartDate = time.Date(2024, 12, 30, 0, 0, 0, 0, time.UTC) },
		"no pickup":        func(in *CreateBookingInput) { in.PickupLocation = "  " },
		"no vehicle":       func(in *CreateBookingInput) { in.VehicleID = 0 },
		"no renter":        func(in *CreateBookingInput) { in.RenterID = 0 },
		"zero date":        func(in *CreateBookingInput) { in.EndDate = time.Time{} },
	}
	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			in := h.request(renterA, 12, 15)
			mutate(&in)
			_, err := h.mgr.CreateBooking(ctx, in)
			assert.ErrorIs(t, err, ErrValidation)
		})
	}
	assert.Empty(t, h.events.names())
}

func TestCreateBookingVehicleChecks(t *testing.T) {
	h := newHarness()
	ctx := context.Background()

	in := h.request(renterA, 12, 15)
	in.VehicleID = 404
	_, err := h.mgr.CreateBooking(ctx, in)
	assert.ErrorIs(t, err, ErrNotFound)

	in.VehicleID = vehicleOff
	_, err = h.mgr.CreateBooking(ctx, in)
	assert.ErrorIs(t, err, ErrUnavailable)

	_, err = h.mgr.CreateBooking(ctx, h.request(ownerID, 12, 15))
	assert.ErrorIs(t, err, ErrUnauthorized)
}

func TestNonOverlappingRangesBothSucceed(t *testing.T) {
	h := newHarness()
	ctx := context.Background()

	_, err := h.mgr.CreateBooking(ctx, h.request(renterA, 10, 12))
	require.NoError(t, err)
	_, err = h.mgr.CreateBooking(ctx, h.request(renterB, 13, 15))
	require.NoError(t, err)
}

func TestOverlapIsInclusive(t *testing.T) {
	h := newHarness()
	ctx := context.Background()

	_, err := h.mgr.CreateBooking(ctx, h.request(renterA, 10, 12))
	require.NoError(t, err)

	// hand-over on the same day conflicts
	_, err = h.mgr.CreateBooking(ctx, h.request(renterB, 12, 14))
	assert.ErrorIs(t, err, ErrUnavailable)
}

func TestOverlapBlocksWhileActive(t *testing.T) {
	for _, st := range model.ActiveStatuses {
		t.Run(string(st), func(t *testing.T) {
			h := newHarness()
			ctx := context.Background()

			a, err := h.mgr.CreateBooking(ctx, h.request(renterA, 12, 15))
			require.NoError(t, err)
			h.bookings.force(a.ID, st)

			_, err = h.mgr.CreateBooking(ctx, h.request(renterB, 14, 16))
			assert.ErrorIs(t, err, ErrUnavailable)
		})
	}
}

func TestStoreConflictMapsToUnavailable(t *testing.T) {
	h := newHarness()
	ctx := context.Background()

	// Another request wins the vehicle lock between the pre-check and the
	// insert: the store reports a conflict.
	store := &racingStore{memBookings: h.bookings, intruder: model.Booking{
		VehicleID: vehicleX, RenterID: renterB, OwnerID: ownerID,
		StartDate: jan(13), EndDate: jan(14), Status: model.StatusPending,
	}}
	h.mgr.bookings = store

	_, err := h.mgr.CreateBooking(ctx, h.request(renterA, 12, 15))
	assert.ErrorIs(t, err, ErrUnavailable)
	assert.Empty(t, h.events.names())
}

type racingStore struct {
	*memBookings
	intruder model.Booking
}

func (r *racingStore) CreateIfAvailable(ctx context.Context, b *model.Booking) error {
	in := r.intruder
	if err := r.memBookings.CreateIfAvailable(ctx, &in); err != nil {
		return err
	}
	return r.memBookings.CreateIfAvailable(ctx, b)
}

func TestJanuaryScenario(t *testing.T) {
	h := newHarness()
	ctx := context.Background()

	a, err := h.mgr.CreateBooking(ctx, h.request(renterA, 12, 15))
	require.NoError(t, err)
	assert.Equal(t, model.StatusPending, a.Status)

	_, err = h.mgr.CreateBooking(ctx, h.request(renterB, 14, 16))
	require.ErrorIs(t, err, ErrUnavailable)

	h.events.reset()
	confirmed, err := h.mgr.AcceptBookingRequest(ctx, a.ID, ownerID)
	require.NoError(t, err)
	assert.Equal(t, model.StatusConfirmed, confirmed.Status)
	assert.Equal(t, []string{events.NameBookingStatusChanged, events.NameBookingConfirmed}, h.events.names())
	changed := h.events.events[0].(events.BookingStatusChanged)
	assert.Equal(t, renterA, changed.Recipient)
	assert.Equal(t, ownerID, changed.ActorID)

	cancelled, err := h.mgr.CancelBooking(ctx, a.ID, renterA)
	require.NoError(t, err)
	assert.Equal(t, model.StatusCancelled, cancelled.Status)
	require.NotNil(t, cancelled.CancelledBy)
	assert.Equal(t, renterA, *cancelled.CancelledBy)

	b, err := h.mgr.CreateBooking(ctx, h.request(renterB, 14, 16))
	require.NoError(t, err)
	assert.Equal(t, model.StatusPending, b.Status)
}

func TestAdjacencyEnforced(t *testing.T) {
	all := []model.Status{
		model.StatusPending, model.StatusConfirmed, model.StatusInProgress,
		model.StatusCompleted, model.StatusRejected, model.StatusCancelled, model.StatusDisputed,
	}
	for _, from := range all {
		for _, to := range all {
			if from == to {
				continue
			}
			t.Run(string(from)+"->"+string(to), func(t *testing.T) {
				h := newHarness()
				ctx := context.Background()
				b, err := h.mgr.CreateBooking(ctx, h.request(renterA, 12, 15))
				require.NoError(t, err)
				h.bookings.force(b.ID, from)
				h.events.reset()

				// the owner is allowed to drive every edge
				got, err := h.mgr.TransitionStatus(ctx, b.ID, to, ownerID)
				stored, _ := h.bookings.GetByID(ctx, b.ID)
				if from.CanTransitionTo(to) {
					require.NoError(t, err)
					assert.Equal(t, to, got.Status)
					assert.Equal(t, to, stored.Status)
					assert.Contains(t, h.events.names(), events.NameBookingStatusChanged)
				} else {
					assert.ErrorIs(t, err, ErrInvalidTransition)
					assert.Equal(t, from, stored.Status)
					assert.Empty(t, h.events.names())
				}
			})
		}
	}
}

func TestTransitionByStrangerIsUnauthorized(t *testing.T) {
	h := newHarness()
	ctx := context.Background()
	b, err := h.mgr.CreateBooking(ctx, h.request(renterA, 12, 15))
	require.NoError(t, err)
	h.events.reset()

	for _, to := range []model.Status{model.StatusConfirmed, model.StatusCancelled, model.StatusPending} {
		_, err := h.mgr.TransitionStatus(ctx, b.ID, to, stranger)
		assert.ErrorIs(t, err, ErrUnauthorized)
	}
	_, err = h.mgr.AcceptBookingRequest(ctx, b.ID, stranger)
	assert.ErrorIs(t, err, ErrUnauthorized)

	stored, _ := h.bookings.GetByID(ctx, b.ID)
	assert.Equal(t, model.StatusPending, stored.Status)
	assert.Empty(t, h.events.names())
}

func TestOwnerOnlyEdges(t *testing.T) {
	h := newHarness()
	ctx := context.Background()
	b, err := h.mgr.CreateBooking(ctx, h.request(renterA, 12, 15))
	require.NoError(t, err)

	_, err = h.mgr.AcceptBookingRequest(ctx, b.ID, renterA)
	assert.ErrorIs(t, err, ErrUnauthorized)
	_, err = h.mgr.RejectBookingRequest(ctx, b.ID, renterA, "")
	assert.ErrorIs(t, err, ErrUnauthorized)

	h.bookings.force(b.ID, model.StatusConfirmed)
	_, err = h.mgr.CheckIn(ctx, b.ID, renterA)
	assert.ErrorIs(t, err, ErrUnauthorized)

	_, err = h.mgr.CheckIn(ctx, b.ID, ownerID)
	require.NoError(t, err)
	_, err = h.mgr.CheckOut(ctx, b.ID, renterA)
	assert.ErrorIs(t, err, ErrUnauthorized)
	_, err = h.mgr.CheckOut(ctx, b.ID, ownerID)
	require.NoError(t, err)

	// either party may dispute after hand-back
	d, err := h.mgr.OpenDispute(ctx, b.ID, renterA)
	require.NoError(t, err)
	assert.Equal(t, model.StatusDisputed, d.Status)
	assert.Equal(t, ownerID, h.events.events[len(h.events.events)-1].(events.BookingStatusChanged).Recipient)
}

func TestAcceptRejectRequirePending(t *testing.T) {
	for _, st := range []model.Status{model.StatusConfirmed, model.StatusCancelled, model.StatusRejected, model.StatusInProgress} {
		t.Run(string(st), func(t *testing.T) {
			h := newHarness()
			ctx := context.Background()
			b, err := h.mgr.CreateBooking(ctx, h.request(renterA, 12, 15))
			require.NoError(t, err)
			h.bookings.force(b.ID, st)

			_, err = h.mgr.AcceptBookingRequest(ctx, b.ID, ownerID)
			assert.ErrorIs(t, err, ErrNotPending)
			_, err = h.mgr.RejectBookingRequest(ctx, b.ID, ownerID, "no")
			assert.ErrorIs(t, err, ErrNotPending)
		})
	}
}

func TestRejectPersistsReason(t *testing.T) {
	h := newHarness()
	ctx := context.Background()
	b, err := h.mgr.CreateBooking(ctx, h.request(renterA, 12, 15))
	require.NoError(t, err)
	h.events.reset()

	got, err := h.mgr.RejectBookingRequest(ctx, b.ID, ownerID, "  in the workshop ")
	require.NoError(t, err)
	assert.Equal(t, model.StatusRejected, got.Status)
	require.NotNil(t, got.RejectionReason)
	assert.Equal(t, "in the workshop", *got.RejectionReason)

	stored, _ := h.bookings.GetByID(ctx, b.ID)
	assert.Equal(t, "in the workshop", *stored.RejectionReason)

	assert.Equal(t, []string{events.NameBookingStatusChanged, events.NameBookingRejected}, h.events.names())
	assert.Equal(t, "in the workshop", h.events.events[1].(events.BookingRejected).Reason)

	// rejected dates are free again
	_, err = h.mgr.CreateBooking(ctx, h.request(renterB, 12, 15))
	assert.NoError(t, err)
}

func TestIdempotentTransition(t *testing.T) {
	h := newHarness()
	ctx := context.Background()
	b, err := h.mgr.CreateBooking(ctx, h.request(renterA, 12, 15))
	require.NoError(t, err)

	h.clock = h.clock.Add(time.Hour)
	first, err := h.mgr.CancelBooking(ctx, b.ID, renterA)
	require.NoError(t, err)
	h.events.reset()

	h.clock = h.clock.Add(time.Hour)
	second, err := h.mgr.CancelBooking(ctx, b.ID, renterA)
	require.NoError(t, err)
	assert.Equal(t, model.StatusCancelled, second.Status)
	assert.Equal(t, first.UpdatedAt, second.UpdatedAt)
	assert.Empty(t, h.events.names())
}

func TestUnknownStatus(t *testing.T) {
	h := newHarness()
	_, err := h.mgr.TransitionStatus(context.Background(), 1, model.Status("archived"), ownerID)
	assert.ErrorIs(t, err, ErrValidation)
}

func TestTransitionMissingBooking(t *testing.T) {
	h := newHarness()
	_, err := h.mgr.CancelBooking(context.Background(), 42, renterA)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestConcurrentConfirmAndCancel(t *testing.T) {
	h := newHarness()
	ctx := context.Background()
	b, err := h.mgr.CreateBooking(ctx, h.request(renterA, 12, 15))
	require.NoError(t, err)

	// the renter cancels between the owner's read and write
	h.bookings.beforeUpdate = func(u repository.StatusUpdate) {
		h.bookings.force(b.ID, model.StatusCancelled)
	}
	h.events.reset()
	_, err = h.mgr.AcceptBookingRequest(ctx, b.ID, ownerID)
	assert.ErrorIs(t, err, ErrNotPending)
	assert.Empty(t, h.events.names())

	stored, _ := h.bookings.GetByID(ctx, b.ID)
	assert.Equal(t, model.StatusCancelled, stored.Status)
}

func TestLostRaceIsRetried(t *testing.T) {
	h := newHarness()
	ctx := context.Background()
	b, err := h.mgr.CreateBooking(ctx, h.request(renterA, 12, 15))
	require.NoError(t, err)

	// the owner confirms while the renter's cancel is in flight; the cancel
	// is still legal from confirmed
	h.bookings.beforeUpdate = func(u repository.StatusUpdate) {
		h.bookings.force(b.ID, model.StatusConfirmed)
	}
	got, err := h.mgr.CancelBooking(ctx, b.ID, renterA)
	require.NoError(t, err)
	assert.Equal(t, model.StatusCancelled, got.Status)

	changed := h.events.events[len(h.events.events)-1].(events.BookingStatusChanged)
	assert.Equal(t, model.StatusConfirmed, changed.From)
}

func TestGetBooking(t *testing.T) {
	h := newHarness()
	ctx := context.Background()
	b, err := h.mgr.CreateBooking(ctx, h.request(renterA, 12, 15))
	require.NoError(t, err)

	for _, actor := range []uint64{renterA, ownerID} {
		got, err := h.mgr.GetBooking(ctx, b.ID, actor, false)
		require.NoError(t, err)
		require.NotNil(t, got.Vehicle)
		assert.Equal(t, vehicleX, got.Vehicle.ID)
	}

	_, err = h.mgr.GetBooking(ctx, b.ID, stranger, false)
	assert.ErrorIs(t, err, ErrUnauthorized)

	_, err = h.mgr.GetBooking(ctx, b.ID, stranger, true)
	assert.NoError(t, err)

	_, err = h.mgr.GetBooking(ctx, 999, renterA, false)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestListBookingsNewestFirst(t *testing.T) {
	h := newHarness()
	ctx := context.Background()
	first, err := h.mgr.CreateBooking(ctx, h.request(renterA, 10, 11))
	require.NoError(t, err)
	second, err := h.mgr.CreateBooking(ctx, h.request(renterA, 20, 22))
	require.NoError(t, err)
	_, err = h.mgr.CreateBooking(ctx, h.request(renterB, 25, 27))
	require.NoError(t, err)

	mine, err := h.mgr.ListBookings(ctx, renterA, "renter")
	require.NoError(t, err)
	require.Len(t, mine, 2)
	assert.Equal(t, second.ID, mine[0].ID)
	assert.Equal(t, first.ID, mine[1].ID)

	owned, err := h.mgr.ListBookings(ctx, ownerID, "owner")
	require.NoError(t, err)
	assert.Len(t, owned, 3)

	_, err = h.mgr.ListBookings(ctx, renterA, "driver")
	assert.ErrorIs(t, err, ErrValidation)
}

func TestIsAvailable(t *testing.T) {
	h := newHarness()
	ctx := context.Background()
	_, err := h.mgr.CreateBooking(ctx, h.request(renterA, 12, 15))
	require.NoError(t, err)

	ok, err := h.mgr.IsAvailable(ctx, vehicleX, jan(10), jan(11))
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = h.mgr.IsAvailable(ctx, vehicleX, jan(15), jan(18))
	require.NoError(t, err)
	assert.False(t, ok)

	ok, err = h.mgr.IsAvailable(ctx, vehicleOff, jan(12), jan(15))
	require.NoError(t, err)
	assert.True(t, ok)

	_, err = h.mgr.IsAvailable(ctx, vehicleX, jan(15), jan(12))
	assert.ErrorIs(t, err, ErrValidation)
}

func TestIsAvailableUnknownVehicle(t *testing.T) {
	h := newHarness()
	ok, err := h.mgr.IsAvailable(context.Background(), 404, jan(3), jan(5))
	assert.ErrorIs(t, err, ErrNotFound)
	assert.False(t, ok)
}

func TestExpireStalePending(t *testing.T) {
	h := newHarness()
	ctx := context.Background()
	stale, err := h.mgr.CreateBooking(ctx, h.request(renterA, 3, 5))
	require.NoError(t, err)
	confirmed, err := h.mgr.CreateBooking(ctx, h.request(renterB, 6, 8))
	require.NoError(t, err)
	_, err = h.mgr.AcceptBookingRequest(ctx, confirmed.ID, ownerID)
	require.NoError(t, err)
	future, err := h.mgr.CreateBooking(ctx, h.request(renterB, 20, 22))
	require.NoError(t, err)
	h.events.reset()

	n, err := h.mgr.ExpireStalePending(ctx, jan(4).Add(8*time.Hour))
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	got, _ := h.bookings.GetByID(ctx, stale.ID)
	assert.Equal(t, model.StatusCancelled, got.Status)
	assert.Nil(t, got.CancelledBy)
	got, _ = h.bookings.GetByID(ctx, confirmed.ID)
	assert.Equal(t, model.StatusConfirmed, got.Status)
	got, _ = h.bookings.GetByID(ctx, future.ID)
	assert.Equal(t, model.StatusPending, got.Status)

	require.Len(t, h.events.events, 1)
	ev := h.events.events[0].(events.BookingStatusChanged)
	assert.Equal(t, renterA, ev.Recipient)
	assert.Zero(t, ev.ActorID)
}

func TestQuote(t *testing.T) {
	v := &model.Vehicle{PricePerDayCents: 35000, DepositCents: 5000}

	q, err := DefaultFees.Quote(v, jan(12), jan(15))
	require.NoError(t, err)
	assert.Equal(t, Quote{
		Days: 3, BasePriceCents: 105000, ServiceFeeCents: 10500,
		InsuranceFeeCents: 0, TotalCents: 115500, DepositCents: 5000,
	}, q)

	fees := Fees{ServiceBps: 1250, InsurancePerDayCents: 1500}
	q, err = fees.Quote(&model.Vehicle{PricePerDayCents: 333}, jan(1), jan(3))
	require.NoError(t, err)
	// 666 * 12.5% = 83.25 -> 83
	assert.Equal(t, int64(83), q.ServiceFeeCents)
	assert.Equal(t, int64(3000), q.InsuranceFeeCents)
	assert.Equal(t, int64(666+83+3000), q.TotalCents)

	_, err = DefaultFees.Quote(v, jan(3), jan(3))
	assert.ErrorIs(t, err, ErrValidation)
}

func TestManagerQuoteUnknownVehicle(t *testing.T) {
	h := newHarness()
	_, err := h.mgr.Quote(context.Background(), 404, jan(3), jan(5))
	assert.ErrorIs(t, err, ErrNotFound)
}

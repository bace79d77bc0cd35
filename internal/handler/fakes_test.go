package handler

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/vehicle-rental-booking/internal/middleware"
	"github.com/iliyamo/vehicle-rental-booking/internal/model"
	"github.com/iliyamo/vehicle-rental-booking/internal/repository"
	"github.com/iliyamo/vehicle-rental-booking/internal/service"
	"github.com/iliyamo/vehicle-rental-booking/internal/utils"
	"github.com/iliyamo/vehicle-rental-booking/internal/validation"
)

const testSecret = "handler-test-secret"

func quietLog() *slog.Logger { return slog.New(slog.NewTextHandler(io.Discard, nil)) }

// fakeBookings implements BookingService with overridable funcs.  Unset
// funcs fail the test when called.
type fakeBookings struct {
	t          *testing.T
	create     func(ctx context.Context, in service.CreateBookingInput) (*model.Booking, error)
	transition func(name string, bookingID, actorID uint64) (*model.Booking, error)
	reject     func(bookingID, ownerID uint64, reason string) (*model.Booking, error)
	get        func(bookingID, actorID uint64, isAdmin bool) (*model.Booking, error)
	list       func(userID uint64, role string) ([]model.Booking, error)
	available  func(vehicleID uint64, start, end time.Time) (bool, error)
	quote      func(vehicleID uint64, start, end time.Time) (service.Quote, error)
}

func (f *fakeBookings) unexpected(name string) {
	f.t.Helper()
	f.t.Fatalf("unexpected call to %s", name)
}

func (f *fakeBookings) CreateBooking(ctx context.Context, in service.CreateBookingInput) (*model.Booking, error) {
	if f.create == nil {
		f.unexpected("CreateBooking")
	}
	return f.create(ctx, in)
}

func (f *fakeBookings) step(name string, id, actor uint64) (*model.Booking, error) {
	if f.transition == nil {
		f.unexpected(name)
	}
	return f.transition(name, id, actor)
}

func (f *fakeBookings) AcceptBookingRequest(_ context.Context, id, actor uint64) (*model.Booking, error) {
	return f.step("accept", id, actor)
}
func (f *fakeBookings) CancelBooking(_ context.Context, id, actor uint64) (*model.Booking, error) {
	return f.step("cancel", id, actor)
}
func (f *fakeBookings) CheckIn(_ context.Context, id, actor uint64) (*model.Booking, error) {
	return f.step("check-in", id, actor)
}
func (f *fakeBookings) CheckOut(_ context.Context, id, actor uint64) (*model.Booking, error) {
	return f.step("check-out", id, actor)
}
func (f *fakeBookings) OpenDispute(_ context.Context, id, actor uint64) (*model.Booking, error) {
	return f.step("dispute", id, actor)
}

func (f *fakeBookings) RejectBookingRequest(_ context.Context, id, owner uint64, reason string) (*model.Booking, error) {
	if f.reject == nil {
		f.unexpected("RejectBookingRequest")
	}
	return f.reject(id, owner, reason)
}

func (f *fakeBookings) GetBooking(_ context.Context, id, actor uint64, admin bool) (*model.Booking, error) {
	if f.get == nil {
		f.unexpected("GetBooking")
	}
	return f.get(id, actor, admin)
}

func (f *fakeBookings) ListBookings(_ context.Context, userID uint64, role string) ([]model.Booking, error) {
	if f.list == nil {
		f.unexpected("ListBookings")
	}
	return f.list(userID, role)
}

func (f *fakeBookings) IsAvailable(_ context.Context, vehicleID uint64, start, end time.Time) (bool, error) {
	if f.available == nil {
		f.unexpected("IsAvailable")
	}
	return f.available(vehicleID, start, end)
}

func (f *fakeBookings) Quote(_ context.Context, vehicleID uint64, start, end time.Time) (service.Quote, error) {
	if f.quote == nil {
		f.unexpected("Quote")
	}
	return f.quote(vehicleID, start, end)
}

type fakeThreads struct {
	threads  map[uint64]*model.MessageThread
	messages []model.Message
}

func (f *fakeThreads) GetOrCreate(_ context.Context, bookingID, renterID, ownerID uint64) (*model.MessageThread, error) {
	if f.threads == nil {
		f.threads = map[uint64]*model.MessageThread{}
	}
	if t, ok := f.threads[bookingID]; ok {
		return t, nil
	}
	t := &model.MessageThread{ID: uint64(len(f.threads) + 1), BookingID: bookingID, RenterID: renterID, OwnerID: ownerID}
	f.threads[bookingID] = t
	return t, nil
}

func (f *fakeThreads) PostMessage(_ context.Context, threadID, senderID uint64, body string) (*model.Message, error) {
	m := model.Message{ID: uint64(len(f.messages) + 1), ThreadID: threadID, SenderID: senderID, Body: body}
	f.messages = append(f.messages, m)
	return &m, nil
}

func (f *fakeThreads) ListMessages(_ context.Context, bookingID uint64) ([]model.Message, error) {
	out := []model.Message{}
	t, ok := f.threads[bookingID]
	if !ok {
		return out, nil
	}
	for _, m := range f.messages {
		if m.ThreadID == t.ID {
			out = append(out, m)
		}
	}
	return out, nil
}

type fakeVehicles struct {
	rows    map[uint64]*model.Vehicle
	lastQ   repository.VehicleSearchQuery
	created int
}

func (f *fakeVehicles) Create(_ context.Context, v *model.Vehicle) error {
	f.created++
	v.ID = uint64(100 + f.created)
	f.rows[v.ID] = v
	return nil
}

func (f *fakeVehicles) GetByID(_ context.Context, id uint64) (*model.Vehicle, error) {
	if v, ok := f.rows[id]; ok {
		cp := *v
		return &cp, nil
	}
	return nil, repository.ErrNotFound
}

func (f *fakeVehicles) ListByOwner(_ context.Context, ownerID uint64) ([]model.Vehicle, error) {
	out := []model.Vehicle{}
	for _, v := range f.rows {
		if v.OwnerID == ownerID {
			out = append(out, *v)
		}
	}
	return out, nil
}

func (f *fakeVehicles) UpdateByOwner(_ context.Context, ownerID, id uint64, p repository.VehiclePatch) (*model.Vehicle, error) {
	v, ok := f.rows[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	if v.OwnerID != ownerID {
		return nil, repository.ErrForbidden
	}
	if p.PricePerDayCents != nil {
		v.PricePerDayCents = *p.PricePerDayCents
	}
	if p.IsAvailable != nil {
		v.IsAvailable = *p.IsAvailable
	}
	cp := *v
	return &cp, nil
}

func (f *fakeVehicles) Approve(_ context.Context, id uint64) (*model.Vehicle, error) {
	v, ok := f.rows[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	v.IsApproved = true
	cp := *v
	return &cp, nil
}

func (f *fakeVehicles) Search(_ context.Context, q repository.VehicleSearchQuery) ([]model.Vehicle, int64, error) {
	f.lastQ = q
	out := []model.Vehicle{}
	for _, v := range f.rows {
		if v.Bookable() {
			out = append(out, *v)
		}
	}
	return out, int64(len(out)), nil
}

// newEcho returns an echo instance configured like the server.
func newEcho() *echo.Echo {
	e := echo.New()
	e.Validator = validation.New()
	return e
}

func token(t *testing.T, userID uint64, role string) string {
	t.Helper()
	at, err := utils.NewAccessToken(testSecret, userID, role, 5)
	require.NoError(t, err)
	return at.Token
}

func authed() echo.MiddlewareFunc { return middleware.JWTAuth(testSecret) }

func do(e *echo.Echo, method, target, tok, body string) *httptest.ResponseRecorder {
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	} else {
		req = httptest.NewRequest(method, target, nil)
	}
	if tok != "" {
		req.Header.Set(echo.HeaderAuthorization, "Bearer "+tok)
	}
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	return rec
}

package handler

import (
	"context"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/vehicle-rental-booking/internal/model"
	"github.com/iliyamo/vehicle-rental-booking/internal/service"
)

// BookingService is the part of service.Manager the HTTP layer drives.
type BookingService interface {
	CreateBooking(ctx context.Context, in service.CreateBookingInput) (*model.Booking, error)
	AcceptBookingRequest(ctx context.Context, bookingID, ownerID uint64) (*model.Booking, error)
	RejectBookingRequest(ctx context.Context, bookingID, ownerID uint64, reason string) (*model.Booking, error)
	CancelBooking(ctx context.Context, bookingID, actorID uint64) (*model.Booking, error)
	CheckIn(ctx context.Context, bookingID, ownerID uint64) (*model.Booking, error)
	CheckOut(ctx context.Context, bookingID, ownerID uint64) (*model.Booking, error)
	OpenDispute(ctx context.Context, bookingID, actorID uint64) (*model.Booking, error)
	GetBooking(ctx context.Context, bookingID, actorID uint64, isAdmin bool) (*model.Booking, error)
	ListBookings(ctx context.Context, userID uint64, role string) ([]model.Booking, error)
	IsAvailable(ctx context.Context, vehicleID uint64, start, end time.Time) (bool, error)
	Quote(ctx context.Context, vehicleID uint64, start, end time.Time) (service.Quote, error)
}

// ThreadStore reads and writes booking conversations.
type ThreadStore interface {
	GetOrCreate(ctx context.Context, bookingID, renterID, ownerID uint64) (*model.MessageThread, error)
	PostMessage(ctx context.Context, threadID, senderID uint64, body string) (*model.Message, error)
	ListMessages(ctx context.Context, bookingID uint64) ([]model.Message, error)
}

// BookingHandler serves /v1/bookings.
type BookingHandler struct {
	Svc     BookingService
	Threads ThreadStore
	Log     *slog.Logger
	Timeout time.Duration
}

func NewBookingHandler(svc BookingService, threads ThreadStore, log *slog.Logger, timeout time.Duration) *BookingHandler {
	if svc == nil || threads == nil {
		panic("nil dependency passed to NewBookingHandler")
	}
	if log == nil {
		log = slog.Default()
	}
	return &BookingHandler{Svc: svc, Threads: threads, Log: log, Timeout: timeout}
}

type createBookingReq struct {
	VehicleID        uint64 `json:"vehicle_id" validate:"required"`
	StartDate        string `json:"start_date" validate:"required,datetime=2006-01-02"`
	EndDate          string `json:"end_date" validate:"required,datetime=2006-01-02"`
	PickupLocation   string `json:"pickup_location" validate:"required,max=255"`
	ReturnLocation   string `json:"return_location" validate:"max=255"`
	QuotedTotalCents *int64 `json:"quoted_total_cents" validate:"omitempty,gte=0"`
	Message          string `json:"message" validate:"max=2000"`
}

type rejectReq struct {
	Reason string `json:"reason" validate:"max=500"`
}

type messageReq struct {
	Body string `json:"body" validate:"required,max=2000"`
}

// Create handles POST /v1/bookings.
func (h *BookingHandler) Create(c echo.Context) error {
	uid, err := getUserID(c)
	if err != nil {
		return errJSON(c, http.StatusUnauthorized, "unauthorized")
	}
	var req createBookingReq
	if ok, err := bindValid(c, &req); !ok {
		return err
	}
	start, err := parseDate(req.StartDate, "start_date")
	if err != nil {
		return errJSON(c, http.StatusBadRequest, err.Error())
	}
	end, err := parseDate(req.EndDate, "end_date")
	if err != nil {
		return errJSON(c, http.StatusBadRequest, err.Error())
	}

	ctx, cancel := reqCtx(c, h.Timeout)
	defer cancel()

	b, err := h.Svc.CreateBooking(ctx, service.CreateBookingInput{
		VehicleID:        req.VehicleID,
		RenterID:         uid,
		StartDate:        start,
		EndDate:          end,
		PickupLocation:   req.PickupLocation,
		ReturnLocation:   req.ReturnLocation,
		QuotedTotalCents: req.QuotedTotalCents,
		Message:          req.Message,
	})
	if err != nil {
		return serviceError(c, h.Log, err)
	}
	return c.JSON(http.StatusCreated, b)
}

// List handles GET /v1/bookings?role=renter|owner.
func (h *BookingHandler) List(c echo.Context) error {
	uid, err := getUserID(c)
	if err != nil {
		return errJSON(c, http.StatusUnauthorized, "unauthorized")
	}
	ctx, cancel := reqCtx(c, h.Timeout)
	defer cancel()

	items, err := h.Svc.ListBookings(ctx, uid, c.QueryParam("role"))
	if err != nil {
		return serviceError(c, h.Log, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"items": items})
}

// Get handles GET /v1/bookings/:id.
func (h *BookingHandler) Get(c echo.Context) error {
	uid, err := getUserID(c)
	if err != nil {
		return errJSON(c, http.StatusUnauthorized, "unauthorized")
	}
	id, ok := parseID(c, "id")
	if !ok {
		return errJSON(c, http.StatusBadRequest, "invalid id")
	}
	ctx, cancel := reqCtx(c, h.Timeout)
	defer cancel()

	b, err := h.Svc.GetBooking(ctx, id, uid, isAdmin(c))
	if err != nil {
		return serviceError(c, h.Log, err)
	}
	return c.JSON(http.StatusOK, b)
}

type actionFunc func(ctx context.Context, bookingID, actorID uint64) (*model.Booking, error)

// action adapts a lifecycle call into a POST /v1/bookings/:id/<verb> handler.
func (h *BookingHandler) action(fn func(BookingService) actionFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		uid, err := getUserID(c)
		if err != nil {
			return errJSON(c, http.StatusUnauthorized, "unauthorized")
		}
		id, ok := parseID(c, "id")
		if !ok {
			return errJSON(c, http.StatusBadRequest, "invalid id")
		}
		ctx, cancel := reqCtx(c, h.Timeout)
		defer cancel()

		b, err := fn(h.Svc)(ctx, id, uid)
		if err != nil {
			return serviceError(c, h.Log, err)
		}
		return c.JSON(http.StatusOK, b)
	}
}

// Confirm handles POST /v1/bookings/:id/confirm.
func (h *BookingHandler) Confirm(c echo.Context) error {
	return h.action(func(s BookingService) actionFunc { return s.AcceptBookingRequest })(c)
}

// Cancel handles POST /v1/bookings/:id/cancel.
func (h *BookingHandler) Cancel(c echo.Context) error {
	return h.action(func(s BookingService) actionFunc { return s.CancelBooking })(c)
}

// CheckIn handles POST /v1/bookings/:id/check-in.
func (h *BookingHandler) CheckIn(c echo.Context) error {
	return h.action(func(s BookingService) actionFunc { return s.CheckIn })(c)
}

// CheckOut handles POST /v1/bookings/:id/check-out.
func (h *BookingHandler) CheckOut(c echo.Context) error {
	return h.action(func(s BookingService) actionFunc { return s.CheckOut })(c)
}

// Dispute handles POST /v1/bookings/:id/dispute.
func (h *BookingHandler) Dispute(c echo.Context) error {
	return h.action(func(s BookingService) actionFunc { return s.OpenDispute })(c)
}

// Reject handles POST /v1/bookings/:id/reject.  The body is optional.
func (h *BookingHandler) Reject(c echo.Context) error {
	uid, err := getUserID(c)
	if err != nil {
		return errJSON(c, http.StatusUnauthorized, "unauthorized")
	}
	id, ok := parseID(c, "id")
	if !ok {
		return errJSON(c, http.StatusBadRequest, "invalid id")
	}
	var req rejectReq
	if c.Request().ContentLength != 0 {
		if ok, err := bindValid(c, &req); !ok {
			return err
		}
	}
	ctx, cancel := reqCtx(c, h.Timeout)
	defer cancel()

	b, err := h.Svc.RejectBookingRequest(ctx, id, uid, req.Reason)
	if err != nil {
		return serviceError(c, h.Log, err)
	}
	return c.JSON(http.StatusOK, b)
}

// Messages handles GET /v1/bookings/:id/messages.  Parties and admins may
// read the conversation.
func (h *BookingHandler) Messages(c echo.Context) error {
	uid, err := getUserID(c)
	if err != nil {
		return errJSON(c, http.StatusUnauthorized, "unauthorized")
	}
	id, ok := parseID(c, "id")
	if !ok {
		return errJSON(c, http.StatusBadRequest, "invalid id")
	}
	ctx, cancel := reqCtx(c, h.Timeout)
	defer cancel()

	if _, err := h.Svc.GetBooking(ctx, id, uid, isAdmin(c)); err != nil {
		return serviceError(c, h.Log, err)
	}
	items, err := h.Threads.ListMessages(ctx, id)
	if err != nil {
		return serviceError(c, h.Log, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"items": items})
}

// PostMessage handles POST /v1/bookings/:id/messages.  Only the renter and
// the owner may write.
func (h *BookingHandler) PostMessage(c echo.Context) error {
	uid, err := getUserID(c)
	if err != nil {
		return errJSON(c, http.StatusUnauthorized, "unauthorized")
	}
	id, ok := parseID(c, "id")
	if !ok {
		return errJSON(c, http.StatusBadRequest, "invalid id")
	}
	var req messageReq
	if ok, err := bindValid(c, &req); !ok {
		return err
	}
	body := strings.TrimSpace(req.Body)
	if body == "" {
		return errJSON(c, http.StatusBadRequest, "body is required")
	}
	ctx, cancel := reqCtx(c, h.Timeout)
	defer cancel()

	b, err := h.Svc.GetBooking(ctx, id, uid, false)
	if err != nil {
		return serviceError(c, h.Log, err)
	}
	t, err := h.Threads.GetOrCreate(ctx, b.ID, b.RenterID, b.OwnerID)
	if err != nil {
		return serviceError(c, h.Log, err)
	}
	msg, err := h.Threads.PostMessage(ctx, t.ID, uid, body)
	if err != nil {
		return serviceError(c, h.Log, err)
	}
	return c.JSON(http.StatusCreated, msg)
}

package handler

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/vehicle-rental-booking/internal/model"
	"github.com/iliyamo/vehicle-rental-booking/internal/repository"
)

// VehicleStore is the listing persistence used by the vehicle endpoints.
type VehicleStore interface {
	Create(ctx context.Context, v *model.Vehicle) error
	GetByID(ctx context.Context, id uint64) (*model.Vehicle, error)
	ListByOwner(ctx context.Context, ownerID uint64) ([]model.Vehicle, error)
	UpdateByOwner(ctx context.Context, ownerID, id uint64, p repository.VehiclePatch) (*model.Vehicle, error)
	Approve(ctx context.Context, id uint64) (*model.Vehicle, error)
	Search(ctx context.Context, q repository.VehicleSearchQuery) ([]model.Vehicle, int64, error)
}

// VehicleHandler serves public browsing, owner listing management and
// admin approval.  Purge, when set, is called after every listing write so
// cached public responses are dropped.
type VehicleHandler struct {
	Vehicles VehicleStore
	Bookings BookingService
	Purge    func(ctx context.Context)
	Log      *slog.Logger
	Timeout  time.Duration
}

func NewVehicleHandler(vehicles VehicleStore, bookings BookingService, purge func(ctx context.Context), log *slog.Logger, timeout time.Duration) *VehicleHandler {
	if vehicles == nil || bookings == nil {
		panic("nil dependency passed to NewVehicleHandler")
	}
	if log == nil {
		log = slog.Default()
	}
	return &VehicleHandler{Vehicles: vehicles, Bookings: bookings, Purge: purge, Log: log, Timeout: timeout}
}

func (h *VehicleHandler) purge(ctx context.Context) {
	if h.Purge != nil {
		h.Purge(context.WithoutCancel(ctx))
	}
}

// PublicVehicle hides moderation fields from anonymous callers.
type PublicVehicle struct {
	ID               uint64   `json:"id"`
	Make             string   `json:"make"`
	Model            string   `json:"model"`
	Year             uint16   `json:"year"`
	Location         string   `json:"location"`
	PricePerDayCents int64    `json:"price_per_day_cents"`
	DepositCents     int64    `json:"deposit_cents"`
	Features         []string `json:"features"`
}

func toPublic(v model.Vehicle) PublicVehicle {
	f := v.Features
	if f == nil {
		f = []string{}
	}
	return PublicVehicle{
		ID:               v.ID,
		Make:             v.Make,
		Model:            v.Model,
		Year:             v.Year,
		Location:         v.Location,
		PricePerDayCents: v.PricePerDayCents,
		DepositCents:     v.DepositCents,
		Features:         f,
	}
}

func queryInt(c echo.Context, name string) int {
	n, _ := strconv.Atoi(c.QueryParam(name))
	return n
}

// Search handles GET /v1/vehicles.
func (h *VehicleHandler) Search(c echo.Context) error {
	maxPrice, _ := strconv.ParseInt(c.QueryParam("max_price"), 10, 64)
	q := repository.VehicleSearchQuery{
		Make:          strings.TrimSpace(c.QueryParam("make")),
		Model:         strings.TrimSpace(c.QueryParam("model")),
		Location:      strings.TrimSpace(c.QueryParam("location")),
		MaxPriceCents: maxPrice,
		Page:          queryInt(c, "page"),
		PageSize:      queryInt(c, "page_size"),
	}
	if q.Page < 1 {
		q.Page = 1
	}
	if q.PageSize < 1 || q.PageSize > 100 {
		q.PageSize = 20
	}

	ctx, cancel := reqCtx(c, h.Timeout)
	defer cancel()

	items, total, err := h.Vehicles.Search(ctx, q)
	if err != nil {
		return serviceError(c, h.Log, err)
	}
	out := make([]PublicVehicle, 0, len(items))
	for _, v := range items {
		out = append(out, toPublic(v))
	}
	return c.JSON(http.StatusOK, echo.Map{
		"items":     out,
		"page":      q.Page,
		"page_size": q.PageSize,
		"total":     total,
	})
}

// Get handles GET /v1/vehicles/:id.  Unapproved listings are not public.
func (h *VehicleHandler) Get(c echo.Context) error {
	id, ok := parseID(c, "id")
	if !ok {
		return errJSON(c, http.StatusBadRequest, "invalid id")
	}
	ctx, cancel := reqCtx(c, h.Timeout)
	defer cancel()

	v, err := h.Vehicles.GetByID(ctx, id)
	if err != nil {
		return serviceError(c, h.Log, err)
	}
	if !v.IsApproved {
		return errJSON(c, http.StatusNotFound, "not found")
	}
	return c.JSON(http.StatusOK, toPublic(*v))
}

func dateRange(c echo.Context) (time.Time, time.Time, error) {
	start, err := parseDate(c.QueryParam("start_date"), "start_date")
	if err != nil {
		return time.Time{}, time.Time{}, err
	}
	end, err := parseDate(c.QueryParam("end_date"), "end_date")
	if err != nil {
		return time.Time{}, time.Time{}, err
	}
	return start, end, nil
}

// Availability handles GET /v1/vehicles/:id/availability?start_date=&end_date=.
func (h *VehicleHandler) Availability(c echo.Context) error {
	id, ok := parseID(c, "id")
	if !ok {
		return errJSON(c, http.StatusBadRequest, "invalid id")
	}
	start, end, err := dateRange(c)
	if err != nil {
		return errJSON(c, http.StatusBadRequest, err.Error())
	}
	ctx, cancel := reqCtx(c, h.Timeout)
	defer cancel()

	free, err := h.Bookings.IsAvailable(ctx, id, start, end)
	if err != nil {
		return serviceError(c, h.Log, err)
	}
	return c.JSON(http.StatusOK, echo.Map{
		"vehicle_id": id,
		"start_date": start.Format(model.DateLayout),
		"end_date":   end.Format(model.DateLayout),
		"available":  free,
	})
}

// Quote handles GET /v1/vehicles/:id/quote?start_date=&end_date=.
func (h *VehicleHandler) Quote(c echo.Context) error {
	id, ok := parseID(c, "id")
	if !ok {
		return errJSON(c, http.StatusBadRequest, "invalid id")
	}
	start, end, err := dateRange(c)
	if err != nil {
		return errJSON(c, http.StatusBadRequest, err.Error())
	}
	ctx, cancel := reqCtx(c, h.Timeout)
	defer cancel()

	q, err := h.Bookings.Quote(ctx, id, start, end)
	if err != nil {
		return serviceError(c, h.Log, err)
	}
	return c.JSON(http.StatusOK, q)
}

type createVehicleReq struct {
	Make             string   `json:"make" validate:"required,max=100"`
	Model            string   `json:"model" validate:"required,max=100"`
	Year             uint16   `json:"year" validate:"required,gte=1950,lte=2100"`
	Location         string   `json:"location" validate:"required,max=255"`
	PricePerDayCents int64    `json:"price_per_day_cents" validate:"min=1"`
	DepositCents     int64    `json:"deposit_cents" validate:"gte=0"`
	Features         []string `json:"features" validate:"max=30,dive,max=50"`
	IsAvailable      *bool    `json:"is_available"`
}

type updateVehicleReq struct {
	Location         *string  `json:"location" validate:"omitempty,min=1,max=255"`
	PricePerDayCents *int64   `json:"price_per_day_cents" validate:"omitempty,min=1"`
	DepositCents     *int64   `json:"deposit_cents" validate:"omitempty,gte=0"`
	Features         []string `json:"features" validate:"omitempty,max=30,dive,max=50"`
	IsAvailable      *bool    `json:"is_available"`
}

// CreateMine handles POST /v1/owner/vehicles.
func (h *VehicleHandler) CreateMine(c echo.Context) error {
	uid, err := getUserID(c)
	if err != nil {
		return errJSON(c, http.StatusUnauthorized, "unauthorized")
	}
	var req createVehicleReq
	if ok, err := bindValid(c, &req); !ok {
		return err
	}
	v := &model.Vehicle{
		OwnerID:          uid,
		Make:             strings.TrimSpace(req.Make),
		Model:            strings.TrimSpace(req.Model),
		Year:             req.Year,
		Location:         strings.TrimSpace(req.Location),
		PricePerDayCents: req.PricePerDayCents,
		DepositCents:     req.DepositCents,
		Features:         req.Features,
		IsAvailable:      req.IsAvailable == nil || *req.IsAvailable,
	}
	ctx, cancel := reqCtx(c, h.Timeout)
	defer cancel()

	if err := h.Vehicles.Create(ctx, v); err != nil {
		return serviceError(c, h.Log, err)
	}
	h.Log.Info("vehicle listed", "vehicle_id", v.ID, "owner_id", uid)
	return c.JSON(http.StatusCreated, v)
}

// ListMine handles GET /v1/owner/vehicles.
func (h *VehicleHandler) ListMine(c echo.Context) error {
	uid, err := getUserID(c)
	if err != nil {
		return errJSON(c, http.StatusUnauthorized, "unauthorized")
	}
	ctx, cancel := reqCtx(c, h.Timeout)
	defer cancel()

	items, err := h.Vehicles.ListByOwner(ctx, uid)
	if err != nil {
		return serviceError(c, h.Log, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"items": items})
}

// UpdateMine handles PATCH /v1/owner/vehicles/:id.
func (h *VehicleHandler) UpdateMine(c echo.Context) error {
	uid, err := getUserID(c)
	if err != nil {
		return errJSON(c, http.StatusUnauthorized, "unauthorized")
	}
	id, ok := parseID(c, "id")
	if !ok {
		return errJSON(c, http.StatusBadRequest, "invalid id")
	}
	var req updateVehicleReq
	if ok, err := bindValid(c, &req); !ok {
		return err
	}
	if req.Location != nil {
		loc := strings.TrimSpace(*req.Location)
		if loc == "" {
			return errJSON(c, http.StatusBadRequest, "location must not be blank")
		}
		req.Location = &loc
	}
	ctx, cancel := reqCtx(c, h.Timeout)
	defer cancel()

	v, err := h.Vehicles.UpdateByOwner(ctx, uid, id, repository.VehiclePatch{
		Location:         req.Location,
		PricePerDayCents: req.PricePerDayCents,
		DepositCents:     req.DepositCents,
		Features:         req.Features,
		IsAvailable:      req.IsAvailable,
	})
	if err != nil {
		return serviceError(c, h.Log, err)
	}
	h.purge(ctx)
	return c.JSON(http.StatusOK, v)
}

// Approve handles POST /v1/admin/vehicles/:id/approve.
func (h *VehicleHandler) Approve(c echo.Context) error {
	id, ok := parseID(c, "id")
	if !ok {
		return errJSON(c, http.StatusBadRequest, "invalid id")
	}
	ctx, cancel := reqCtx(c, h.Timeout)
	defer cancel()

	v, err := h.Vehicles.Approve(ctx, id)
	if err != nil {
		return serviceError(c, h.Log, err)
	}
	h.purge(ctx)
	adminID, _ := getUserID(c)
	h.Log.Info("vehicle approved", "vehicle_id", v.ID, "admin_id", adminID)
	return c.JSON(http.StatusOK, v)
}

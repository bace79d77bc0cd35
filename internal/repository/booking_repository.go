package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/iliyamo/vehicle-rental-booking/internal/model"
)

// BookingRepo persists bookings.  Dates are written as YYYY-MM-DD strings
// into DATE columns so the driver's time zone handling never shifts a day.
type BookingRepo struct {
	db *sql.DB
}

// NewBookingRepo returns a new BookingRepo bound to the given database.
func NewBookingRepo(db *sql.DB) *BookingRepo { return &BookingRepo{db: db} }

// StatusUpdate describes a conditional status change: it applies only
// while the row still holds From.
type StatusUpdate struct {
	ID              uint64
	From            model.Status
	To              model.Status
	RejectionReason *string
	CancelledBy     *uint64
	At              time.Time
}

const bookingColumns = `b.id, b.vehicle_id, b.renter_id, b.owner_id, b.start_date, b.end_date,
	b.base_price_cents, b.service_fee_cents, b.insurance_fee_cents, b.total_price_cents,
	b.deposit_amount_cents, b.pickup_location, b.return_location, b.status, b.payment_status,
	b.rejection_reason, b.cancelled_by, b.created_at, b.updated_at`

const vehicleSnapshotColumns = `v.make, v.model, v.year, v.location, v.price_per_day_cents`

// rowScanner is satisfied by *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

// queryRower is satisfied by *sql.DB and *sql.Tx.
type queryRower interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func scanBooking(s rowScanner, extra ...any) (*model.Booking, error) {
	var (
		b         model.Booking
		reason    sql.NullString
		cancelled sql.NullInt64
	)
	dest := []any{
		&b.ID, &b.VehicleID, &b.RenterID, &b.OwnerID, &b.StartDate, &b.EndDate,
		&b.BasePriceCents, &b.ServiceFeeCents, &b.InsuranceFeeCents, &b.TotalCents,
		&b.DepositCents, &b.PickupLocation, &b.ReturnLocation, &b.Status, &b.PaymentStatus,
		&reason, &cancelled, &b.CreatedAt, &b.UpdatedAt,
	}
	if err := s.Scan(append(dest, extra...)...); err != nil {
		return nil, err
	}
	b.StartDate = model.TruncateDate(b.StartDate)
	b.EndDate = model.TruncateDate(b.EndDate)
	if reason.Valid {
		r := reason.String
		b.RejectionReason = &r
	}
	if cancelled.Valid {
		c := uint64(cancelled.Int64)
		b.CancelledBy = &c
	}
	return &b, nil
}

// scanBookingWithVehicle reads a booking row followed by the vehicle
// snapshot columns.
func scanBookingWithVehicle(s rowScanner) (*model.Booking, error) {
	var vs model.VehicleSummary
	b, err := scanBooking(s, &vs.Make, &vs.Model, &vs.Year, &vs.Location, &vs.PricePerDayCents)
	if err != nil {
		return nil, err
	}
	vs.ID = b.VehicleID
	vs.OwnerID = b.OwnerID
	b.Vehicle = &vs
	return b, nil
}

func activeStatusArgs() []any {
	args := make([]any, 0, len(model.ActiveStatuses))
	for _, s := range model.ActiveStatuses {
		args = append(args, string(s))
	}
	return args
}

const overlapSQL = `SELECT EXISTS (
	SELECT 1 FROM bookings
	WHERE vehicle_id = ? AND status IN (?, ?, ?)
	  AND start_date <= ? AND end_date >= ?)`

func hasOverlap(ctx context.Context, q queryRower, vehicleID uint64, start, end time.Time) (bool, error) {
	args := append([]any{vehicleID}, activeStatusArgs()...)
	args = append(args, end.Format(model.DateLayout), start.Format(model.DateLayout))
	var exists bool
	if err := q.QueryRowContext(ctx, overlapSQL, args...).Scan(&exists); err != nil {
		return false, err
	}
	return exists, nil
}

// HasOverlap reports whether an active booking of the vehicle touches
// [start, end] (both bounds inclusive).
func (r *BookingRepo) HasOverlap(ctx context.Context, vehicleID uint64, start, end time.Time) (bool, error) {
	return hasOverlap(ctx, r.db, vehicleID, start, end)
}

// CreateIfAvailable inserts b unless an active booking of the same vehicle
// overlaps its dates, in which case ErrConflict is returned.  The vehicle
// row is locked FOR UPDATE for the duration of the transaction, so two
// requests for one vehicle run one after the other.  On success b is
// refreshed with the generated id and timestamps.
func (r *BookingRepo) CreateIfAvailable(ctx context.Context, b *model.Booking) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()

	var locked uint64
	err = tx.QueryRowContext(ctx, `SELECT id FROM vehicles WHERE id = ? FOR UPDATE`, b.VehicleID).Scan(&locked)
	if errors.Is(err, sql.ErrNoRows) {
		return ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("lock vehicle: %w", err)
	}

	taken, err := hasOverlap(ctx, tx, b.VehicleID, b.StartDate, b.EndDate)
	if err != nil {
		return fmt.Errorf("overlap check: %w", err)
	}
	if taken {
		return ErrConflict
	}

	const ins = `INSERT INTO bookings
		(vehicle_id, renter_id, owner_id, start_date, end_date,
		 base_price_cents, service_fee_cents, insurance_fee_cents, total_price_cents,
		 deposit_amount_cents, pickup_location, return_location, status, payment_status)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`
	res, err := tx.ExecContext(ctx, ins,
		b.VehicleID, b.RenterID, b.OwnerID,
		b.StartDate.Format(model.DateLayout), b.EndDate.Format(model.DateLayout),
		b.BasePriceCents, b.ServiceFeeCents, b.InsuranceFeeCents, b.TotalCents,
		b.DepositCents, b.PickupLocation, b.ReturnLocation,
		string(b.Status), string(b.PaymentStatus),
	)
	if err != nil {
		return fmt.Errorf("insert booking: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}

	// Query back the full row to populate timestamps and defaults
	stored, err := scanBooking(tx.QueryRowContext(ctx,
		`SELECT `+bookingColumns+` FROM bookings b WHERE b.id = ?`, id))
	if err != nil {
		return fmt.Errorf("reload booking: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return err
	}
	committed = true

	stored.Vehicle = b.Vehicle
	*b = *stored
	return nil
}

// GetByID returns a booking with its vehicle snapshot.
func (r *BookingRepo) GetByID(ctx context.Context, id uint64) (*model.Booking, error) {
	q := `SELECT ` + bookingColumns + `, ` + vehicleSnapshotColumns + `
		FROM bookings b
		JOIN vehicles v ON v.id = b.vehicle_id
		WHERE b.id = ?`
	b, err := scanBookingWithVehicle(r.db.QueryRowContext(ctx, q, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	return b, err
}

// UpdateStatus applies u when the booking still holds u.From.  A nil
// reason or canceller leaves the stored value untouched.  ErrStaleStatus
// means another writer got there first; ErrNotFound means there is no
// such booking.
func (r *BookingRepo) UpdateStatus(ctx context.Context, u StatusUpdate) error {
	const q = `UPDATE bookings
		SET status = ?,
		    rejection_reason = COALESCE(?, rejection_reason),
		    cancelled_by = COALESCE(?, cancelled_by),
		    updated_at = ?
		WHERE id = ? AND status = ?`
	var reason, canceller any
	if u.RejectionReason != nil {
		reason = *u.RejectionReason
	}
	if u.CancelledBy != nil {
		canceller = *u.CancelledBy
	}
	res, err := r.db.ExecContext(ctx, q, string(u.To), reason, canceller, u.At.UTC(), u.ID, string(u.From))
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 1 {
		return nil
	}

	var exists bool
	if err := r.db.QueryRowContext(ctx, `SELECT EXISTS (SELECT 1 FROM bookings WHERE id = ?)`, u.ID).Scan(&exists); err != nil {
		return err
	}
	if !exists {
		return ErrNotFound
	}
	return ErrStaleStatus
}

func (r *BookingRepo) list(ctx context.Context, where string, args ...any) ([]model.Booking, error) {
	q := `SELECT ` + bookingColumns + `, ` + vehicleSnapshotColumns + `
		FROM bookings b
		JOIN vehicles v ON v.id = b.vehicle_id
		WHERE ` + where + `
		ORDER BY b.created_at DESC, b.id DESC`
	rows, err := r.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []model.Booking{}
	for rows.Next() {
		b, err := scanBookingWithVehicle(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *b)
	}
	return out, rows.Err()
}

// ListByRenter returns the renter's bookings, newest first.
func (r *BookingRepo) ListByRenter(ctx context.Context, renterID uint64) ([]model.Booking, error) {
	return r.list(ctx, `b.renter_id = ?`, renterID)
}

// ListByOwner returns bookings of the owner's vehicles, newest first.
func (r *BookingRepo) ListByOwner(ctx context.Context, ownerID uint64) ([]model.Booking, error) {
	return r.list(ctx, `b.owner_id = ?`, ownerID)
}

// ListStalePending returns pending bookings that should have started
// before startBefore, oldest start first.
func (r *BookingRepo) ListStalePending(ctx context.Context, startBefore time.Time, limit int) ([]model.Booking, error) {
	q := `SELECT ` + bookingColumns + `, ` + vehicleSnapshotColumns + `
		FROM bookings b
		JOIN vehicles v ON v.id = b.vehicle_id
		WHERE b.status = ? AND b.start_date < ?
		ORDER BY b.start_date ASC, b.id ASC
		LIMIT ?`
	rows, err := r.db.QueryContext(ctx, q, string(model.StatusPending), startBefore.Format(model.DateLayout), limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.Booking
	for rows.Next() {
		b, err := scanBookingWithVehicle(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *b)
	}
	return out, rows.Err()
}

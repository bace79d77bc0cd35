package repository

import (
	"context"
	"database/sql"
	"errors"
	"strings"

	"github.com/iliyamo/vehicle-rental-booking/internal/model"
)

// VehicleRepo provides CRUD operations for vehicle listings.  Features are
// stored as a comma separated list in vehicles.features.
type VehicleRepo struct {
	db *sql.DB
}

// NewVehicleRepo returns a new VehicleRepo bound to the given database.
func NewVehicleRepo(db *sql.DB) *VehicleRepo { return &VehicleRepo{db: db} }

const vehicleColumns = `id, owner_id, make, model, year, location, price_per_day_cents,
	deposit_cents, features, is_available, is_approved, created_at, updated_at`

func scanVehicle(s rowScanner) (*model.Vehicle, error) {
	var (
		v        model.Vehicle
		features sql.NullString
	)
	err := s.Scan(&v.ID, &v.OwnerID, &v.Make, &v.Model, &v.Year, &v.Location,
		&v.PricePerDayCents, &v.DepositCents, &features, &v.IsAvailable, &v.IsApproved,
		&v.CreatedAt, &v.UpdatedAt)
	if err != nil {
		return nil, err
	}
	v.Features = splitFeatures(features.String)
	return &v, nil
}

func splitFeatures(raw string) []string {
	out := []string{}
	for _, f := range strings.Split(raw, ",") {
		if f = strings.TrimSpace(f); f != "" {
			out = append(out, f)
		}
	}
	return out
}

func joinFeatures(fs []string) string {
	clean := make([]string, 0, len(fs))
	for _, f := range fs {
		f = strings.TrimSpace(strings.ReplaceAll(f, ",", " "))
		if f != "" {
			clean = append(clean, f)
		}
	}
	return strings.Join(clean, ",")
}

// Create inserts a new listing.  New listings start unapproved; the
// stored row is read back into v.
func (r *VehicleRepo) Create(ctx context.Context, v *model.Vehicle) error {
	const q = `INSERT INTO vehicles
		(owner_id, make, model, year, location, price_per_day_cents, deposit_cents, features, is_available, is_approved)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, FALSE)`
	res, err := r.db.ExecContext(ctx, q, v.OwnerID, v.Make, v.Model, v.Year, v.Location,
		v.PricePerDayCents, v.DepositCents, joinFeatures(v.Features), v.IsAvailable)
	if err != nil {
		return err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	stored, err := r.GetByID(ctx, uint64(id))
	if err != nil {
		return err
	}
	*v = *stored
	return nil
}

// GetByID loads a vehicle or returns ErrNotFound.
func (r *VehicleRepo) GetByID(ctx context.Context, id uint64) (*model.Vehicle, error) {
	v, err := scanVehicle(r.db.QueryRowContext(ctx,
		`SELECT `+vehicleColumns+` FROM vehicles WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	return v, err
}

// ListByOwner returns an owner's listings, newest first.
func (r *VehicleRepo) ListByOwner(ctx context.Context, ownerID uint64) ([]model.Vehicle, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+vehicleColumns+` FROM vehicles WHERE owner_id = ? ORDER BY created_at DESC, id DESC`, ownerID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []model.Vehicle{}
	for rows.Next() {
		v, err := scanVehicle(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *v)
	}
	return out, rows.Err()
}

// VehiclePatch lists the owner-editable fields.  Nil fields are left
// unchanged.
type VehiclePatch struct {
	Location         *string
	PricePerDayCents *int64
	DepositCents     *int64
	Features         []string
	IsAvailable      *bool
}

// UpdateByOwner applies p to the vehicle when ownerID owns it.  It returns
// ErrNotFound for unknown ids and ErrForbidden for someone else's vehicle.
func (r *VehicleRepo) UpdateByOwner(ctx context.Context, ownerID, id uint64, p VehiclePatch) (*model.Vehicle, error) {
	var owner uint64
	err := r.db.QueryRowContext(ctx, `SELECT owner_id FROM vehicles WHERE id = ?`, id).Scan(&owner)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	if owner != ownerID {
		return nil, ErrForbidden
	}

	sets := []string{}
	args := []any{}
	if p.Location != nil {
		sets = append(sets, "location = ?")
		args = append(args, *p.Location)
	}
	if p.PricePerDayCents != nil {
		sets = append(sets, "price_per_day_cents = ?")
		args = append(args, *p.PricePerDayCents)
	}
	if p.DepositCents != nil {
		sets = append(sets, "deposit_cents = ?")
		args = append(args, *p.DepositCents)
	}
	if p.Features != nil {
		sets = append(sets, "features = ?")
		args = append(args, joinFeatures(p.Features))
	}
	if p.IsAvailable != nil {
		sets = append(sets, "is_available = ?")
		args = append(args, *p.IsAvailable)
	}
	if len(sets) > 0 {
		args = append(args, id)
		q := `UPDATE vehicles SET ` + strings.Join(sets, ", ") + `, updated_at = UTC_TIMESTAMP() WHERE id = ?`
		if _, err := r.db.ExecContext(ctx, q, args...); err != nil {
			return nil, err
		}
	}
	return r.GetByID(ctx, id)
}

// Approve marks a listing as reviewed so renters can book it.
func (r *VehicleRepo) Approve(ctx context.Context, id uint64) (*model.Vehicle, error) {
	_, err := r.db.ExecContext(ctx,
		`UPDATE vehicles SET is_approved = TRUE, updated_at = UTC_TIMESTAMP() WHERE id = ? AND is_approved = FALSE`, id)
	if err != nil {
		return nil, err
	}
	return r.GetByID(ctx, id)
}

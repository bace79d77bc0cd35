package repository

import (
	"context"
	"strings"

	"github.com/iliyamo/vehicle-rental-booking/internal/model"
)

// VehicleSearchQuery defines filters & pagination for browsing listings.
type VehicleSearchQuery struct {
	Make          string
	Model         string
	Location      string
	MaxPriceCents int64
	Page          int
	PageSize      int
}

// Search returns bookable listings matching q, cheapest first, and the
// total number of matches.
func (r *VehicleRepo) Search(ctx context.Context, q VehicleSearchQuery) ([]model.Vehicle, int64, error) {
	where := []string{"is_available = TRUE", "is_approved = TRUE"}
	args := []any{}

	if q.Make != "" {
		where = append(where, "LOWER(make) LIKE ?")
		args = append(args, "%"+strings.ToLower(q.Make)+"%")
	}
	if q.Model != "" {
		where = append(where, "LOWER(model) LIKE ?")
		args = append(args, "%"+strings.ToLower(q.Model)+"%")
	}
	if q.Location != "" {
		where = append(where, "LOWER(location) LIKE ?")
		args = append(args, "%"+strings.ToLower(q.Location)+"%")
	}
	if q.MaxPriceCents > 0 {
		where = append(where, "price_per_day_cents <= ?")
		args = append(args, q.MaxPriceCents)
	}
	cond := strings.Join(where, " AND ")

	var total int64
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM vehicles WHERE `+cond, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	if q.Page < 1 {
		q.Page = 1
	}
	if q.PageSize < 1 {
		q.PageSize = 20
	}
	limit := q.PageSize
	offset := (q.Page - 1) * q.PageSize

	dataSQL := `SELECT ` + vehicleColumns + `
		FROM vehicles
		WHERE ` + cond + `
		ORDER BY price_per_day_cents ASC, id ASC
		LIMIT ? OFFSET ?`
	argsData := append(append([]any{}, args...), limit, offset)

	rows, err := r.db.QueryContext(ctx, dataSQL, argsData...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	out := make([]model.Vehicle, 0, limit)
	for rows.Next() {
		v, err := scanVehicle(rows)
		if err != nil {
			return nil, 0, err
		}
		out = append(out, *v)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, err
	}
	return out, total, nil
}

package model

import "time"

// Vehicle is a car listed by an owner.  It corresponds to a row in the
// `vehicles` table.
//
// Fields:
//  ID               – primary key identifier.
//  OwnerID          – user ID of the listing owner.
//  Make, Model      – descriptive attributes.
//  Year             – model year.
//  Location         – free-text pickup area.
//  PricePerDayCents – daily rental price in cents.
//  DepositCents     – refundable deposit held per booking.
//  Features         – optional list of equipment labels.
//  IsAvailable      – owner-controlled availability switch.
//  IsApproved       – set by an admin once the listing is reviewed.
type Vehicle struct {
	ID               uint64    `json:"id"`
	OwnerID          uint64    `json:"owner_id"`
	Make             string    `json:"make"`
	Model            string    `json:"model"`
	Year             uint16    `json:"year"`
	Location         string    `json:"location"`
	PricePerDayCents int64     `json:"price_per_day_cents"`
	DepositCents     int64     `json:"deposit_cents"`
	Features         []string  `json:"features"`
	IsAvailable      bool      `json:"is_available"`
	IsApproved       bool      `json:"is_approved"`
	CreatedAt        time.Time `json:"created_at"`
	UpdatedAt        time.Time `json:"updated_at"`
}

// Bookable reports whether renters may request the vehicle.
func (v *Vehicle) Bookable() bool {
	return v.IsAvailable && v.IsApproved
}

// Summary returns the snapshot embedded in hydrated bookings.
func (v *Vehicle) Summary() *VehicleSummary {
	return &VehicleSummary{
		ID:               v.ID,
		OwnerID:          v.OwnerID,
		Make:             v.Make,
		Model:            v.Model,
		Year:             v.Year,
		Location:         v.Location,
		PricePerDayCents: v.PricePerDayCents,
	}
}

// VehicleSummary is the subset of vehicle data shown next to a booking.
type VehicleSummary struct {
	ID               uint64 `json:"id"`
	OwnerID          uint64 `json:"owner_id"`
	Make             string `json:"make"`
	Model            string `json:"model"`
	Year             uint16 `json:"year"`
	Location         string `json:"location"`
	PricePerDayCents int64  `json:"price_per_day_cents"`
}

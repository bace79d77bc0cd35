package service

import (
	"time"

	"github.com/iliyamo/vehicle-rental-booking/internal/model"
)

// Fees is the fee schedule applied on top of a vehicle's daily price.
// ServiceBps is expressed in basis points of the base price (1000 = 10%).
type Fees struct {
	ServiceBps           int64
	InsurancePerDayCents int64
}

// DefaultFees charges a 10% service fee and no insurance.
var DefaultFees = Fees{ServiceBps: 1000}

// Quote is the server-side price breakdown for a date range.
type Quote struct {
	Days              int   `json:"days"`
	BasePriceCents    int64 `json:"base_price_cents"`
	ServiceFeeCents   int64 `json:"service_fee_cents"`
	InsuranceFeeCents int64 `json:"insurance_fee_cents"`
	TotalCents        int64 `json:"total_price_cents"`
	DepositCents      int64 `json:"deposit_amount_cents"`
}

// Quote prices v for [start, end).  All arithmetic is integer cents so the
// total is exactly the sum of its parts.
func (f Fees) Quote(v *model.Vehicle, start, end time.Time) (Quote, error) {
	days := model.DaysBetween(start, end)
	if days <= 0 {
		return Quote{}, validationErr("end_date must be after start_date")
	}
	if v.PricePerDayCents < 0 || f.ServiceBps < 0 || f.InsurancePerDayCents < 0 {
		return Quote{}, validationErr("negative price component")
	}
	base := int64(days) * v.PricePerDayCents
	// round half up
	service := (base*f.ServiceBps + 5000) / 10000
	insurance := int64(days) * f.InsurancePerDayCents
	return Quote{
		Days:              days,
		BasePriceCents:    base,
		ServiceFeeCents:   service,
		InsuranceFeeCents: insurance,
		TotalCents:        base + service + insurance,
		DepositCents:      v.DepositCents,
	}, nil
}

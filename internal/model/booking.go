package model

import (
	"encoding/json"
	"time"
)

// DateLayout is the wire and storage format of booking dates.
const DateLayout = "2006-01-02"

// Booking is a renter's reservation of a vehicle for a date range.  It
// corresponds to a row in the `bookings` table.  Vehicle, renter and owner
// references never change after creation and rows are never deleted;
// rejection and cancellation are statuses.
//
// Money fields are in cents.  TotalCents always equals
// BasePriceCents + ServiceFeeCents + InsuranceFeeCents; the deposit is
// held separately.
type Booking struct {
	ID                uint64        `json:"id"`
	VehicleID         uint64        `json:"vehicle_id"`
	RenterID          uint64        `json:"renter_id"`
	OwnerID           uint64        `json:"owner_id"`
	StartDate         time.Time     `json:"-"`
	EndDate           time.Time     `json:"-"`
	BasePriceCents    int64         `json:"base_price_cents"`
	ServiceFeeCents   int64         `json:"service_fee_cents"`
	InsuranceFeeCents int64         `json:"insurance_fee_cents"`
	TotalCents        int64         `json:"total_price_cents"`
	DepositCents      int64         `json:"deposit_amount_cents"`
	PickupLocation    string        `json:"pickup_location"`
	ReturnLocation    string        `json:"return_location"`
	Status            Status        `json:"status"`
	PaymentStatus     PaymentStatus `json:"payment_status"`
	RejectionReason   *string       `json:"rejection_reason,omitempty"`
	CancelledBy       *uint64       `json:"cancelled_by,omitempty"`
	CreatedAt         time.Time     `json:"created_at"`
	UpdatedAt         time.Time     `json:"updated_at"`

	// Vehicle is a read-side snapshot filled when the booking is hydrated.
	Vehicle *VehicleSummary `json:"vehicle,omitempty"`
}

// DurationDays is the number of rental days between the two dates.
func (b *Booking) DurationDays() int {
	return DaysBetween(b.StartDate, b.EndDate)
}

// OtherParty returns the participant that is not actorID.  When the actor
// is neither party the owner is returned.
func (b *Booking) OtherParty(actorID uint64) uint64 {
	if actorID == b.OwnerID {
		return b.RenterID
	}
	return b.OwnerID
}

// IsParty reports whether userID is the renter or the owner.
func (b *Booking) IsParty(userID uint64) bool {
	return userID != 0 && (userID == b.RenterID || userID == b.OwnerID)
}

// Overlaps applies the inclusive conflict test used for availability:
// existing.start <= end AND existing.end >= start.
func (b *Booking) Overlaps(start, end time.Time) bool {
	return !b.StartDate.After(end) && !b.EndDate.Before(start)
}

// MarshalJSON renders the date range as YYYY-MM-DD strings together with
// the derived duration.
func (b Booking) MarshalJSON() ([]byte, error) {
	type plain Booking
	return json.Marshal(struct {
		plain
		StartDate    string `json:"start_date"`
		EndDate      string `json:"end_date"`
		DurationDays int    `json:"duration_days"`
	}{
		plain:        plain(b),
		StartDate:    b.StartDate.Format(DateLayout),
		EndDate:      b.EndDate.Format(DateLayout),
		DurationDays: b.DurationDays(),
	})
}

// TruncateDate drops the clock part of t and normalises it to UTC.
func TruncateDate(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// ParseDate parses a YYYY-MM-DD value into a UTC midnight time.
func ParseDate(s string) (time.Time, error) {
	return time.ParseInLocation(DateLayout, s, time.UTC)
}

// DaysBetween counts whole calendar days from start to end.
func DaysBetween(start, end time.Time) int {
	return int(TruncateDate(end).Sub(TruncateDate(start)).Hours() / 24)
}

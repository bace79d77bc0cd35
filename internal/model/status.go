package model

import "fmt"

// Status is the lifecycle position of a booking.  It is stored verbatim in
// bookings.status.
type Status string

const (
	StatusPending    Status = "pending"
	StatusConfirmed  Status = "confirmed"
	StatusInProgress Status = "in_progress"
	StatusCompleted  Status = "completed"
	StatusRejected   Status = "rejected"
	StatusCancelled  Status = "cancelled"
	StatusDisputed   Status = "disputed"
)

// transitions is the adjacency list of the booking state machine.
// completed keeps a single edge to disputed; every other terminal status
// has none.
var transitions = map[Status][]Status{
	StatusPending:    {StatusConfirmed, StatusRejected, StatusCancelled},
	StatusConfirmed:  {StatusInProgress, StatusCancelled},
	StatusInProgress: {StatusCompleted, StatusDisputed},
	StatusCompleted:  {StatusDisputed},
	StatusRejected:   {},
	StatusCancelled:  {},
	StatusDisputed:   {},
}

// ActiveStatuses are the statuses that occupy a vehicle's calendar.
var ActiveStatuses = []Status{StatusPending, StatusConfirmed, StatusInProgress}

// IsValid reports whether s is a known status.
func (s Status) IsValid() bool {
	_, ok := transitions[s]
	return ok
}

// CanTransitionTo reports whether the edge s -> target exists.
func (s Status) CanTransitionTo(target Status) bool {
	for _, t := range transitions[s] {
		if t == target {
			return true
		}
	}
	return false
}

// IsTerminal reports whether the booking has left the active lifecycle.
func (s Status) IsTerminal() bool {
	switch s {
	case StatusRejected, StatusCancelled, StatusCompleted, StatusDisputed:
		return true
	}
	return false
}

// IsActive reports whether a booking in this status blocks its dates.
func (s Status) IsActive() bool {
	for _, a := range ActiveStatuses {
		if a == s {
			return true
		}
	}
	return false
}

func (s Status) String() string { return string(s) }

// ParseStatus converts a raw string into a Status.
func ParseStatus(raw string) (Status, error) {
	s := Status(raw)
	if !s.IsValid() {
		return "", fmt.Errorf("invalid booking status: %q", raw)
	}
	return s, nil
}

// PaymentStatus tracks the payment provider's view of a booking.  It moves
// independently of Status.
type PaymentStatus string

const (
	PaymentPending       PaymentStatus = "pending"
	PaymentPreauthorized PaymentStatus = "preauthorized"
	PaymentPaid          PaymentStatus = "paid"
	PaymentRefunded      PaymentStatus = "refunded"
	PaymentFailed        PaymentStatus = "failed"
)

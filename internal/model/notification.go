package model

import "time"

// Notification types written by the booking side effects.
const (
	NotificationBookingRequest       = "booking_request"
	NotificationBookingStatusChanged = "booking_status_changed"
)

// Notification is an in-app message addressed to one user.  Rows are
// created by side-effect handlers and afterwards only IsRead changes.
type Notification struct {
	ID        uint64    `json:"id"`
	UserID    uint64    `json:"user_id"`
	Type      string    `json:"type"`
	Title     string    `json:"title"`
	Message   string    `json:"message"`
	RelatedID *uint64   `json:"related_id,omitempty"`
	IsRead    bool      `json:"is_read"`
	CreatedAt time.Time `json:"created_at"`
}

// MessageThread is the conversation between a renter and an owner about a
// single booking.  There is at most one thread per booking.
type MessageThread struct {
	ID        uint64    `json:"id"`
	BookingID uint64    `json:"booking_id"`
	RenterID  uint64    `json:"renter_id"`
	OwnerID   uint64    `json:"owner_id"`
	CreatedAt time.Time `json:"created_at"`
}

// Message is one entry in a MessageThread.
type Message struct {
	ID        uint64    `json:"id"`
	ThreadID  uint64    `json:"thread_id"`
	SenderID  uint64    `json:"sender_id"`
	Body      string    `json:"body"`
	CreatedAt time.Time `json:"created_at"`
}

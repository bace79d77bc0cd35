package repository

import (
	"context"
	"database/sql"
	"errors"

	"github.com/iliyamo/vehicle-rental-booking/internal/model"
)

// ThreadRepo stores the renter/owner conversation attached to a booking.
type ThreadRepo struct{ DB *sql.DB }

func NewThreadRepo(db *sql.DB) *ThreadRepo { return &ThreadRepo{DB: db} }

// GetOrCreate returns the thread of bookingID, creating it on first use.
// message_threads.booking_id is unique, so concurrent callers end up with
// the same row.
func (r *ThreadRepo) GetOrCreate(ctx context.Context, bookingID, renterID, ownerID uint64) (*model.MessageThread, error) {
	// LAST_INSERT_ID(id) makes the duplicate path report the existing id.
	res, err := r.DB.ExecContext(ctx,
		"INSERT INTO message_threads (booking_id, renter_id, owner_id) VALUES (?,?,?) ON DUPLICATE KEY UPDATE id=LAST_INSERT_ID(id)",
		bookingID, renterID, ownerID)
	if err != nil {
		return nil, err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, err
	}
	var t model.MessageThread
	err = r.DB.QueryRowContext(ctx,
		"SELECT id,booking_id,renter_id,owner_id,created_at FROM message_threads WHERE id=?", id).
		Scan(&t.ID, &t.BookingID, &t.RenterID, &t.OwnerID, &t.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &t, nil
}

// PostMessage appends a message to a thread.
func (r *ThreadRepo) PostMessage(ctx context.Context, threadID, senderID uint64, body string) (*model.Message, error) {
	res, err := r.DB.ExecContext(ctx,
		"INSERT INTO messages (thread_id, sender_id, body) VALUES (?,?,?)",
		threadID, senderID, body)
	if err != nil {
		return nil, err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, err
	}
	return &model.Message{ID: uint64(id), ThreadID: threadID, SenderID: senderID, Body: body}, nil
}

// ListMessages returns a booking's conversation, oldest first.  A booking
// without a thread yields an empty list.
func (r *ThreadRepo) ListMessages(ctx context.Context, bookingID uint64) ([]model.Message, error) {
	rows, err := r.DB.QueryContext(ctx,
		`SELECT m.id, m.thread_id, m.sender_id, m.body, m.created_at
		 FROM messages m
		 JOIN message_threads t ON t.id = m.thread_id
		 WHERE t.booking_id = ?
		 ORDER BY m.created_at ASC, m.id ASC`, bookingID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []model.Message{}
	for rows.Next() {
		var m model.Message
		if err := rows.Scan(&m.ID, &m.ThreadID, &m.SenderID, &m.Body, &m.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

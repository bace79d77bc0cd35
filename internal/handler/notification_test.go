package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/vehicle-rental-booking/internal/model"
	"github.com/iliyamo/vehicle-rental-booking/internal/repository"
)

type fakeNotifications struct {
	rows      []model.Notification
	lastLimit int
}

func (f *fakeNotifications) ListByUser(_ context.Context, userID uint64, limit int) ([]model.Notification, error) {
	f.lastLimit = limit
	out := []model.Notification{}
	for _, n := range f.rows {
		if n.UserID == userID {
			out = append(out, n)
		}
	}
	return out, nil
}

func (f *fakeNotifications) MarkRead(_ context.Context, id, userID uint64) error {
	for i := range f.rows {
		if f.rows[i].ID == id && f.rows[i].UserID == userID {
			f.rows[i].IsRead = true
			return nil
		}
	}
	return repository.ErrNotFound
}

func TestNotificationsListAndMarkRead(t *testing.T) {
	store := &fakeNotifications{rows: []model.Notification{
		{ID: 1, UserID: ownerID, Type: model.NotificationBookingRequest, Title: "New booking request"},
		{ID: 2, UserID: renterID, Type: model.NotificationBookingStatusChanged, Title: "Booking status updated"},
	}}
	h := &NotificationHandler{Store: store, Log: quietLog(), Timeout: time.Second}
	e := newEcho()
	e.GET("/v1/notifications", h.List, authed())
	e.POST("/v1/notifications/:id/read", h.MarkRead, authed())
	owner := token(t, ownerID, model.RoleOwner)

	rec := do(e, http.MethodGet, "/v1/notifications?limit=5", owner, "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 5, store.lastLimit)
	var body struct {
		Items []model.Notification `json:"items"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Len(t, body.Items, 1)
	assert.Equal(t, "New booking request", body.Items[0].Title)

	assert.Equal(t, http.StatusNoContent, do(e, http.MethodPost, "/v1/notifications/1/read", owner, "").Code)
	assert.True(t, store.rows[0].IsRead)

	assert.Equal(t, http.StatusNotFound, do(e, http.MethodPost, "/v1/notifications/2/read", owner, "").Code)
	assert.False(t, store.rows[1].IsRead)
}

type fakePinger struct{ err error }

func (p fakePinger) PingContext(context.Context) error { return p.err }

func TestHealthAndReady(t *testing.T) {
	e := newEcho()
	e.GET("/healthz", Health)
	e.GET("/readyz", Ready(fakePinger{}))
	e.GET("/readyz-down", Ready(fakePinger{err: errors.New("dial tcp: refused")}))

	rec := do(e, http.MethodGet, "/healthz", "", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ok", rec.Body.String())

	assert.Equal(t, http.StatusOK, do(e, http.MethodGet, "/readyz", "", "").Code)

	rec = do(e, http.MethodGet, "/readyz-down", "", "")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Equal(t, "database unavailable", errorBody(t, rec.Body.Bytes()))
}

package handler

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/vehicle-rental-booking/internal/model"
)

// NotificationStore reads a user's notifications.
type NotificationStore interface {
	ListByUser(ctx context.Context, userID uint64, limit int) ([]model.Notification, error)
	MarkRead(ctx context.Context, id, userID uint64) error
}

// NotificationHandler serves /v1/notifications.
type NotificationHandler struct {
	Store   NotificationStore
	Log     *slog.Logger
	Timeout time.Duration
}

// List handles GET /v1/notifications?limit=.
func (h *NotificationHandler) List(c echo.Context) error {
	uid, err := getUserID(c)
	if err != nil {
		return errJSON(c, http.StatusUnauthorized, "unauthorized")
	}
	ctx, cancel := reqCtx(c, h.Timeout)
	defer cancel()

	items, err := h.Store.ListByUser(ctx, uid, queryInt(c, "limit"))
	if err != nil {
		return serviceError(c, h.Log, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"items": items})
}

// MarkRead handles POST /v1/notifications/:id/read.
func (h *NotificationHandler) MarkRead(c echo.Context) error {
	uid, err := getUserID(c)
	if err != nil {
		return errJSON(c, http.StatusUnauthorized, "unauthorized")
	}
	id, ok := parseID(c, "id")
	if !ok {
		return errJSON(c, http.StatusBadRequest, "invalid id")
	}
	ctx, cancel := reqCtx(c, h.Timeout)
	defer cancel()

	if err := h.Store.MarkRead(ctx, id, uid); err != nil {
		return serviceError(c, h.Log, err)
	}
	return c.NoContent(http.StatusNoContent)
}

// Package handler exposes the HTTP API.  Handlers bind and validate the
// request, call the service or a repository under a bounded context and
// map failures onto status codes.  Error bodies are {"error": "..."}.
package handler

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/vehicle-rental-booking/internal/middleware"
	"github.com/iliyamo/vehicle-rental-booking/internal/model"
	"github.com/iliyamo/vehicle-rental-booking/internal/repository"
	"github.com/iliyamo/vehicle-rental-booking/internal/service"
	"github.com/iliyamo/vehicle-rental-booking/internal/validation"
)

// defaultTimeout bounds the work of a single request.
const defaultTimeout = 5 * time.Second

func getUserID(c echo.Context) (uint64, error) {
	if id, ok := middleware.UserID(c); ok {
		return id, nil
	}
	return 0, errors.New("invalid user_id in context")
}

func isAdmin(c echo.Context) bool { return middleware.Role(c) == model.RoleAdmin }

func parseID(c echo.Context, name string) (uint64, bool) {
	id, err := strconv.ParseUint(c.Param(name), 10, 64)
	return id, err == nil && id > 0
}

func reqCtx(c echo.Context, d time.Duration) (context.Context, context.CancelFunc) {
	if d <= 0 {
		d = defaultTimeout
	}
	return context.WithTimeout(c.Request().Context(), d)
}

func errJSON(c echo.Context, code int, msg string) error {
	return c.JSON(code, echo.Map{"error": msg})
}

// normalizer is implemented by requests that clean their fields before
// validation.
type normalizer interface{ normalize() }

// bindValid binds the body into req, normalizes it and runs the registered
// validator.  On failure it writes the 400 response and returns ok=false.
func bindValid(c echo.Context, req any) (bool, error) {
	if err := c.Bind(req); err != nil {
		return false, errJSON(c, http.StatusBadRequest, "invalid body")
	}
	if n, ok := req.(normalizer); ok {
		n.normalize()
	}
	if err := c.Validate(req); err != nil {
		return false, errJSON(c, http.StatusBadRequest, validation.Message(err))
	}
	return true, nil
}

func parseDate(raw, field string) (time.Time, error) {
	t, err := model.ParseDate(raw)
	if err != nil {
		return time.Time{}, errors.New(field + " must be YYYY-MM-DD")
	}
	return t, nil
}

// serviceError maps a service or repository failure onto an HTTP
// response.  Unclassified errors are logged and reported as 500.
func serviceError(c echo.Context, log *slog.Logger, err error) error {
	switch {
	case errors.Is(err, service.ErrValidation):
		return errJSON(c, http.StatusBadRequest, err.Error())
	case errors.Is(err, service.ErrNotFound), errors.Is(err, repository.ErrNotFound):
		return errJSON(c, http.StatusNotFound, "not found")
	case errors.Is(err, service.ErrUnauthorized), errors.Is(err, repository.ErrForbidden):
		return errJSON(c, http.StatusForbidden, "forbidden")
	case errors.Is(err, service.ErrUnavailable):
		return errJSON(c, http.StatusConflict, err.Error())
	case errors.Is(err, service.ErrInvalidTransition), errors.Is(err, service.ErrNotPending):
		return errJSON(c, http.StatusConflict, err.Error())
	case errors.Is(err, context.DeadlineExceeded):
		return errJSON(c, http.StatusGatewayTimeout, "request timed out")
	}
	if log == nil {
		log = slog.Default()
	}
	log.Error("request failed",
		"method", c.Request().Method,
		"path", c.Path(),
		"err", err,
	)
	return errJSON(c, http.StatusInternalServerError, "internal error")
}

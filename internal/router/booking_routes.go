package router

import (
	"github.com/labstack/echo/v4"

	"github.com/iliyamo/vehicle-rental-booking/internal/handler"
	"github.com/iliyamo/vehicle-rental-booking/internal/middleware"
	"github.com/iliyamo/vehicle-rental-booking/internal/model"
)

// RegisterBookings registers /v1/bookings.  Every route requires a valid
// JWT; role checks here are coarse and the lifecycle service decides
// party-level authorization.  limit is applied to every booking write.
func RegisterBookings(e *echo.Echo, h *handler.BookingHandler, jwtSecret string, limit echo.MiddlewareFunc) {
	g := e.Group("/v1/bookings", middleware.JWTAuth(jwtSecret), middleware.RequireRole(allRoles...))

	renter := middleware.RequireRole(model.RoleRenter)
	owner := middleware.RequireRole(model.RoleOwner)
	party := middleware.RequireRole(model.RoleRenter, model.RoleOwner)

	g.POST("", h.Create, renter, limit)
	g.GET("", h.List)
	g.GET("/:id", h.Get)

	g.POST("/:id/confirm", h.Confirm, owner, limit)
	g.POST("/:id/reject", h.Reject, owner, limit)
	g.POST("/:id/check-in", h.CheckIn, owner, limit)
	g.POST("/:id/check-out", h.CheckOut, owner, limit)
	g.POST("/:id/cancel", h.Cancel, party, limit)
	g.POST("/:id/dispute", h.Dispute, party, limit)

	g.GET("/:id/messages", h.Messages)
	g.POST("/:id/messages", h.PostMessage, party, limit)
}

// RegisterNotifications registers the caller's notification inbox.
func RegisterNotifications(e *echo.Echo, h *handler.NotificationHandler, jwtSecret string) {
	g := e.Group("/v1/notifications", middleware.JWTAuth(jwtSecret), middleware.RequireRole(allRoles...))
	g.GET("", h.List)
	g.POST("/:id/read", h.MarkRead)
}

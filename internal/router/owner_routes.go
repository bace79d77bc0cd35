package router

import (
	"github.com/labstack/echo/v4"

	"github.com/iliyamo/vehicle-rental-booking/internal/handler"
	"github.com/iliyamo/vehicle-rental-booking/internal/middleware"
	"github.com/iliyamo/vehicle-rental-booking/internal/model"
)

// RegisterOwner registers listing management for owners under
// /v1/owner.
func RegisterOwner(e *echo.Echo, h *handler.VehicleHandler, jwtSecret string) {
	g := e.Group("/v1/owner", middleware.JWTAuth(jwtSecret), middleware.RequireRole(model.RoleOwner))
	g.POST("/vehicles", h.CreateMine)
	g.GET("/vehicles", h.ListMine)
	g.PATCH("/vehicles/:id", h.UpdateMine)
}

// RegisterAdmin registers moderation endpoints under /v1/admin.
func RegisterAdmin(e *echo.Echo, h *handler.VehicleHandler, jwtSecret string) {
	g := e.Group("/v1/admin", middleware.JWTAuth(jwtSecret), middleware.RequireRole(model.RoleAdmin))
	g.POST("/vehicles/:id/approve", h.Approve)
}

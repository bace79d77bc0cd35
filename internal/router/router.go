// Package router registers the HTTP routes and their middleware chains.
package router

import (
	"github.com/labstack/echo/v4"

	"github.com/iliyamo/vehicle-rental-booking/internal/handler"
	"github.com/iliyamo/vehicle-rental-booking/internal/middleware"
	"github.com/iliyamo/vehicle-rental-booking/internal/model"
)

// allRoles is accepted on endpoints open to any signed-in user.
var allRoles = []string{model.RoleRenter, model.RoleOwner, model.RoleAdmin}

// RegisterRoutes registers the probes.  db may be nil, in which case only
// liveness is exposed.
func RegisterRoutes(e *echo.Echo, db handler.Pinger) {
	e.GET("/healthz", handler.Health)
	if db != nil {
		e.GET("/readyz", handler.Ready(db))
	}
}

// RegisterAuth registers token issuance under /v1/auth and the protected
// /v1/me endpoint.
func RegisterAuth(e *echo.Echo, a *handler.AuthHandler, jwtSecret string) {
	g := e.Group("/v1/auth")
	g.POST("/register", a.Register)
	g.POST("/login", a.Login)
	g.POST("/refresh", a.Refresh) // rotates the refresh token
	// Logout accepts either a refresh token in the body or a bearer token,
	// so it sits outside the JWT group.
	g.POST("/logout", a.Logout)

	auth := e.Group("/v1", middleware.JWTAuth(jwtSecret), middleware.RequireRole(allRoles...))
	auth.GET("/me", a.Me)
}

// RegisterPublic registers anonymous vehicle browsing.  cache wraps the
// listing reads only; availability and quotes are always computed live.
func RegisterPublic(e *echo.Echo, v *handler.VehicleHandler, cache echo.MiddlewareFunc) {
	g := e.Group("/v1/vehicles")
	g.GET("", v.Search, cache)
	g.GET("/:id", v.Get, cache)
	g.GET("/:id/availability", v.Availability)
	g.GET("/:id/quote", v.Quote)
}

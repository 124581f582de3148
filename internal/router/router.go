package router // package router defines how HTTP routes are registered for the API

import (
	"github.com/labstack/echo/v4"

	"github.com/iliyamo/charge-slot-reservation/internal/handler"
	"github.com/iliyamo/charge-slot-reservation/internal/middleware"
	"github.com/iliyamo/charge-slot-reservation/internal/utils"
)

// RegisterRoutes registers routes that do not require authentication on
// the provided Echo instance.  Currently it exposes only a health check.
func RegisterRoutes(e *echo.Echo) {
	e.GET("/healthz", handler.Health)
}

// RegisterPublic registers unauthenticated catalog, pricing and
// availability endpoints.  The station listing goes through the response
// cache; the rest reflect live reservation state and are never cached.
func RegisterPublic(e *echo.Echo, p *handler.PublicHandler, cache echo.MiddlewareFunc) {
	e.GET("/v1/stations", p.ListStations, cache)
	e.GET("/v1/stations/:id", p.GetStation)
	e.POST("/v1/pricing/quote", p.Quote)
	e.GET("/v1/connectors/:id/availability", p.ConnectorAvailability)
}

// RegisterCustomer registers the reservation lifecycle under /v1 for
// authenticated customers.
func RegisterCustomer(e *echo.Echo, h *handler.ReservationHandler, jwtSecret string) {
	g := e.Group("/v1")
	g.Use(middleware.JWTAuth(jwtSecret))
	g.Use(middleware.RequireRole(utils.RoleCustomer))

	g.POST("/reservations", h.Create)
	g.GET("/reservations/:id", h.Get)
	g.POST("/reservations/:id/verify", h.Verify)
	g.POST("/reservations/:id/cancel-pending", h.CancelPending)
	g.POST("/reservations/:id/cancel", h.Cancel)
	g.GET("/my-reservations", h.ListMine)
	g.GET("/me/usage", h.Usage)
}

// RegisterOperator registers station-wide reporting for operators.
func RegisterOperator(e *echo.Echo, h *handler.OperatorHandler, jwtSecret string) {
	g := e.Group("/v1/stations")
	g.Use(middleware.JWTAuth(jwtSecret))
	g.Use(middleware.RequireRole(utils.RoleOperator))

	g.GET("/:id/reservations", h.ListStationReservations)
}

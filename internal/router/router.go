// Package router wires the HTTP surface: which paths exist, which
// middleware guards them and which handler serves them.
package router

import (
	"github.com/labstack/echo/v4"

	"github.com/iliyamo/concert-booking/internal/handler"
	"github.com/iliyamo/concert-booking/internal/middleware"
	"github.com/iliyamo/concert-booking/internal/model"
)

// RegisterRoutes registers routes that require no authentication and no
// handler state. Currently that is only the health check.
func RegisterRoutes(e *echo.Echo) {
	e.GET("/healthz", handler.Health)
}

// RegisterAuth registers the session endpoints. Register, login,
// refresh and logout live under /v1/auth without a JWT; /v1/me and
// /v1/logout-all require a valid access token.
func RegisterAuth(e *echo.Echo, a *handler.AuthHandler, jwtSecret string) {
	g := e.Group("/v1/auth")
	g.POST("/register", a.Register)
	g.POST("/login", a.Login)
	g.POST("/refresh", a.Refresh)
	g.POST("/logout", a.Logout)

	auth := e.Group("/v1")
	auth.Use(middleware.JWTAuth(jwtSecret))
	auth.GET("/me", a.Me)
	auth.POST("/logout-all", a.LogoutAll)
}

// RegisterCatalog registers the guest-visible concert catalog. The
// cache middleware may be a pass-through when Redis is unavailable.
func RegisterCatalog(e *echo.Echo, h *handler.ConcertHandler, cache echo.MiddlewareFunc) {
	e.GET("/v1/concerts", h.List, cache)
	e.GET("/v1/concerts/:id", h.Get, cache)
}

// RegisterBooking registers the customer booking endpoints behind JWT
// auth and the token-bucket rate limiter. The default limiter key
// includes the route, so each endpoint gets its own bucket.
func RegisterBooking(e *echo.Echo, b *handler.BookingHandler, jwtSecret string, limit echo.MiddlewareFunc) {
	g := e.Group("/v1")
	g.Use(middleware.JWTAuth(jwtSecret))
	g.Use(middleware.RequireRole(model.RoleCustomer, model.RoleAdmin))
	g.Use(limit)

	g.POST("/concerts/:id/book", b.Book)
	g.DELETE("/bookings/:id", b.Cancel)
	g.GET("/bookings/:id/ticket", b.Ticket)
	g.GET("/my-bookings", b.MyBookings)
}

// RegisterAdmin registers the catalog management endpoints, restricted
// to the ADMIN role.
func RegisterAdmin(e *echo.Echo, h *handler.ConcertHandler, jwtSecret string) {
	g := e.Group("/v1")
	g.Use(middleware.JWTAuth(jwtSecret))
	g.Use(middleware.RequireRole(model.RoleAdmin))

	g.POST("/concerts", h.Create)
	g.PUT("/concerts/:id", h.Update)
	g.DELETE("/concerts/:id", h.Delete)
	g.GET("/concerts/:id/bookings", h.ListBookings)
}

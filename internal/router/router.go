// Package router wires handlers and middleware onto the echo instance.
package router

import (
	"github.com/labstack/echo/v4"

	"github.com/iliyamo/cinema-booking-saga/internal/handler"
)

const (
	roleCustomer = "CUSTOMER"
	roleAdmin    = "ADMIN"
)

// RegisterRoutes registers routes that need no authentication.
func RegisterRoutes(e *echo.Echo, health *handler.HealthHandler) {
	e.GET("/healthz", health.Health)
}

// RegisterPublic registers unauthenticated browse endpoints.
func RegisterPublic(e *echo.Echo, seats *handler.SeatHandler) {
	e.GET("/v1/showtimes/:id/seats", seats.ListSeats)
}

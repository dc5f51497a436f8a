package router

import (
	"github.com/labstack/echo/v4"

	"github.com/iliyamo/cinema-booking-saga/internal/handler"
	"github.com/iliyamo/cinema-booking-saga/internal/middleware"
)

// RegisterCustomer registers checkout and self-service booking endpoints
// under /v1.  Operators may call them too.  limiter guards payment
// verification, the one endpoint that reaches the gateway secret.
func RegisterCustomer(e *echo.Echo, seats *handler.SeatHandler, bookings *handler.BookingHandler, payments *handler.PaymentHandler, jwtSecret string, limiter echo.MiddlewareFunc) {
	g := e.Group("/v1",
		middleware.JWTAuth(jwtSecret),
		middleware.RequireRole(roleCustomer, roleAdmin),
	)
	g.POST("/payments/orders", payments.CreateOrder)
	g.POST("/payments/verify", payments.Verify, limiter)
	g.POST("/payments/failure", payments.Failure)

	g.GET("/bookings/my", bookings.MyBookings)
	g.GET("/bookings/:id", bookings.GetBooking)
	g.POST("/bookings/:id/cancellation-request", bookings.RequestCancellation)

	g.POST("/showtimes/:id/holds", seats.HoldSeats)
	g.DELETE("/showtimes/:id/holds", seats.ReleaseHolds)
}

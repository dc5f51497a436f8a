package router

import (
	"github.com/labstack/echo/v4"

	"github.com/iliyamo/cinema-booking-saga/internal/handler"
	"github.com/iliyamo/cinema-booking-saga/internal/middleware"
)

// RegisterAdmin registers operator endpoints under /v1/admin.  cache sits in
// front of the stats endpoints.
func RegisterAdmin(e *echo.Echo, seats *handler.SeatHandler, bookings *handler.BookingHandler, payments *handler.PaymentHandler, jwtSecret string, cache echo.MiddlewareFunc) {
	g := e.Group("/v1/admin",
		middleware.JWTAuth(jwtSecret),
		middleware.RequireRole(roleAdmin),
	)
	g.POST("/showtimes/:id/seats", seats.InitializeSeats)

	g.POST("/bookings", bookings.CreateBooking)
	g.GET("/bookings", bookings.ListBookings)
	g.GET("/bookings/cancellation-requests", bookings.ListCancellationRequests)
	g.GET("/bookings/stats", bookings.Stats, cache)
	g.POST("/bookings/:id/cancel", bookings.Cancel)
	g.PUT("/bookings/:id/seats", bookings.ReassignSeats)
	g.POST("/bookings/:id/confirm-payment", bookings.ConfirmPayment)
	g.POST("/bookings/:id/scan", bookings.Scan)
	g.DELETE("/bookings/:id", bookings.Delete)

	g.POST("/payments", payments.ProcessPayment)
	g.GET("/payments/stats", payments.Stats, cache)
	g.GET("/payments/:txn", payments.Status)
}

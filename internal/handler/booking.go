package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/sirupsen/logrus"

	"github.com/iliyamo/cinema-booking-saga/internal/model"
	"github.com/iliyamo/cinema-booking-saga/internal/service"
)

// BookingHandler serves customer and operator booking endpoints.
type BookingHandler struct {
	Ledger *service.BookingLedger
	Saga   *service.BookingSaga
	Log    *logrus.Logger
}

func NewBookingHandler(ledger *service.BookingLedger, saga *service.BookingSaga, log *logrus.Logger) *BookingHandler {
	if ledger == nil || saga == nil {
		panic("nil dependency passed to NewBookingHandler")
	}
	return &BookingHandler{Ledger: ledger, Saga: saga, Log: log}
}

// MyBookings handles GET /v1/bookings/my.
func (h *BookingHandler) MyBookings(c echo.Context) error {
	userID, err := getUserID(c)
	if err != nil {
		return unauthorized(c)
	}
	list, err := h.Ledger.ListByUser(c.Request().Context(), userID)
	if err != nil {
		return respondError(c, h.Log, err)
	}
	return c.JSON(http.StatusOK, list)
}

// GetBooking handles GET /v1/bookings/:id.  Customers only see their own
// bookings; someone else's booking is reported as missing.
func (h *BookingHandler) GetBooking(c echo.Context) error {
	b, err := h.owned(c)
	if err != nil {
		return respondError(c, h.Log, err)
	}
	return c.JSON(http.StatusOK, b)
}

// RequestCancellation handles POST /v1/bookings/:id/cancellation-request
// with an optional {"reason": "..."}.
func (h *BookingHandler) RequestCancellation(c echo.Context) error {
	var body struct {
		Reason string `json:"reason"`
	}
	if err := c.Bind(&body); err != nil {
		return badRequest(c, "invalid request body")
	}
	if _, err := h.owned(c); err != nil {
		return respondError(c, h.Log, err)
	}
	b, err := h.Ledger.RequestCancellation(c.Request().Context(), c.Param("id"), body.Reason)
	if err != nil {
		return respondError(c, h.Log, err)
	}
	return c.JSON(http.StatusOK, b)
}

// CreateBooking handles POST /v1/admin/bookings: a box office booking made
// by an operator on behalf of user_id (defaults to the operator).
func (h *BookingHandler) CreateBooking(c echo.Context) error {
	operator, err := getUserID(c)
	if err != nil {
		return unauthorized(c)
	}
	var body struct {
		model.BookingRequest
		UserID string `json:"user_id"`
	}
	if err := c.Bind(&body); err != nil {
		return badRequest(c, "invalid request body")
	}
	userID := body.UserID
	if userID == "" {
		userID = operator
	}
	req := body.BookingRequest
	req.Seats = seatRefs(req.Seats)
	b, err := h.Saga.CreateBooking(c.Request().Context(), userID, req)
	if err != nil {
		return respondError(c, h.Log, err)
	}
	return c.JSON(http.StatusCreated, b)
}

// ListBookings handles GET /v1/admin/bookings.
func (h *BookingHandler) ListBookings(c echo.Context) error {
	list, err := h.Ledger.ListAll(c.Request().Context())
	if err != nil {
		return respondError(c, h.Log, err)
	}
	return c.JSON(http.StatusOK, list)
}

// ListCancellationRequests handles GET /v1/admin/bookings/cancellation-requests.
func (h *BookingHandler) ListCancellationRequests(c echo.Context) error {
	list, err := h.Ledger.ListCancellationRequests(c.Request().Context())
	if err != nil {
		return respondError(c, h.Log, err)
	}
	return c.JSON(http.StatusOK, list)
}

// Stats handles GET /v1/admin/bookings/stats.
func (h *BookingHandler) Stats(c echo.Context) error {
	st, err := h.Ledger.GetStats(c.Request().Context())
	if err != nil {
		return respondError(c, h.Log, err)
	}
	return c.JSON(http.StatusOK, st)
}

// Cancel handles POST /v1/admin/bookings/:id/cancel.
func (h *BookingHandler) Cancel(c echo.Context) error {
	var body struct {
		Reason string `json:"reason"`
	}
	if err := c.Bind(&body); err != nil {
		return badRequest(c, "invalid request body")
	}
	b, err := h.Ledger.Cancel(c.Request().Context(), c.Param("id"), body.Reason)
	if err != nil {
		return respondError(c, h.Log, err)
	}
	return c.JSON(http.StatusOK, b)
}

// ReassignSeats handles PUT /v1/admin/bookings/:id/seats with {"seats": [...]}.
func (h *BookingHandler) ReassignSeats(c echo.Context) error {
	var body struct {
		Seats []string `json:"seats"`
	}
	if err := c.Bind(&body); err != nil {
		return badRequest(c, "invalid request body")
	}
	b, err := h.Ledger.ReassignSeats(c.Request().Context(), c.Param("id"), seatRefs(body.Seats))
	if err != nil {
		return respondError(c, h.Log, err)
	}
	return c.JSON(http.StatusOK, b)
}

// ConfirmPayment handles POST /v1/admin/bookings/:id/confirm-payment with
// {"transaction_id": "..."}.
func (h *BookingHandler) ConfirmPayment(c echo.Context) error {
	var body struct {
		TransactionID string `json:"transaction_id"`
	}
	if err := c.Bind(&body); err != nil || body.TransactionID == "" {
		return badRequest(c, "transaction_id is required")
	}
	b, err := h.Ledger.ConfirmPayment(c.Request().Context(), c.Param("id"), body.TransactionID)
	if err != nil {
		return respondError(c, h.Log, err)
	}
	return c.JSON(http.StatusOK, b)
}

// Scan handles POST /v1/admin/bookings/:id/scan.
func (h *BookingHandler) Scan(c echo.Context) error {
	b, err := h.Ledger.Scan(c.Request().Context(), c.Param("id"))
	if err != nil {
		return respondError(c, h.Log, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"booking_id": b.ID, "ticket_number": b.TicketNumber, "status": b.Status, "valid": true})
}

// Delete handles DELETE /v1/admin/bookings/:id.
func (h *BookingHandler) Delete(c echo.Context) error {
	if err := h.Ledger.Delete(c.Request().Context(), c.Param("id")); err != nil {
		return respondError(c, h.Log, err)
	}
	return c.NoContent(http.StatusNoContent)
}

// owned loads the path booking and checks that the caller may see it.
func (h *BookingHandler) owned(c echo.Context) (*model.Booking, error) {
	userID, err := getUserID(c)
	if err != nil {
		return nil, &service.ValidationError{Reason: service.ReasonUnauthorized, Msg: "unauthorized"}
	}
	b, err := h.Ledger.Get(c.Request().Context(), c.Param("id"))
	if err != nil {
		return nil, err
	}
	if b.UserID != userID && !isAdmin(c) {
		return nil, &service.NotFoundError{Reason: service.ReasonBookingNotFound, Resource: "booking", ID: c.Param("id")}
	}
	return b, nil
}

package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/sirupsen/logrus"

	"github.com/iliyamo/cinema-booking-saga/internal/model"
	"github.com/iliyamo/cinema-booking-saga/internal/service"
)

// PaymentHandler serves gateway checkout and the payment audit endpoints.
type PaymentHandler struct {
	Verifier *service.PaymentVerifier
	Saga     *service.BookingSaga
	Log      *logrus.Logger
}

func NewPaymentHandler(verifier *service.PaymentVerifier, saga *service.BookingSaga, log *logrus.Logger) *PaymentHandler {
	if verifier == nil || saga == nil {
		panic("nil dependency passed to NewPaymentHandler")
	}
	return &PaymentHandler{Verifier: verifier, Saga: saga, Log: log}
}

// CreateOrder handles POST /v1/payments/orders with {"amount": 499.5,
// "currency": "INR"}.
func (h *PaymentHandler) CreateOrder(c echo.Context) error {
	var body struct {
		Amount   float64 `json:"amount"`
		Currency string  `json:"currency"`
	}
	if err := c.Bind(&body); err != nil {
		return badRequest(c, "invalid request body")
	}
	order, err := h.Verifier.CreateOrder(c.Request().Context(), body.Amount, body.Currency)
	if err != nil {
		return respondError(c, h.Log, err)
	}
	return c.JSON(http.StatusCreated, order)
}

// Verify handles POST /v1/payments/verify.  The body is the gateway's
// payment confirmation plus the booking it paid for; on success the
// booking is created and its ticket returned.
func (h *PaymentHandler) Verify(c echo.Context) error {
	userID, err := getUserID(c)
	if err != nil {
		return unauthorized(c)
	}
	var proof model.PaymentProof
	if err := c.Bind(&proof); err != nil {
		return badRequest(c, "invalid request body")
	}
	proof.Seats = seatRefs(proof.Seats)
	conf, err := h.Saga.VerifyAndBook(c.Request().Context(), userID, proof)
	if err != nil {
		return respondError(c, h.Log, err)
	}
	return c.JSON(http.StatusCreated, echo.Map{
		"success":      true,
		"bookingId":    conf.BookingID,
		"ticketNumber": conf.TicketNumber,
		"message":      "Payment verified and booking confirmed",
	})
}

// Failure handles POST /v1/payments/failure: the client reports a payment
// the gateway declined so the attempt is kept for audit.
func (h *PaymentHandler) Failure(c echo.Context) error {
	userID, err := getUserID(c)
	if err != nil {
		return unauthorized(c)
	}
	var proof model.PaymentProof
	if err := c.Bind(&proof); err != nil {
		return badRequest(c, "invalid request body")
	}
	rec, err := h.Verifier.RecordFailure(c.Request().Context(), userID, proof, proof.TotalAmount)
	if err != nil {
		return respondError(c, h.Log, err)
	}
	return c.JSON(http.StatusCreated, rec)
}

// ProcessPayment handles POST /v1/admin/payments with {"booking_id": "...",
// "amount": 0, "method": "CASH"}.  A zero amount charges the booking total.
func (h *PaymentHandler) ProcessPayment(c echo.Context) error {
	var body struct {
		BookingID string  `json:"booking_id"`
		Amount    float64 `json:"amount"`
		Method    string  `json:"method"`
	}
	if err := c.Bind(&body); err != nil || body.BookingID == "" {
		return badRequest(c, "booking_id is required")
	}
	rec, err := h.Saga.ProcessPayment(c.Request().Context(), body.BookingID, body.Amount, body.Method)
	if err != nil {
		return respondError(c, h.Log, err)
	}
	return c.JSON(http.StatusCreated, rec)
}

// Status handles GET /v1/admin/payments/:txn.
func (h *PaymentHandler) Status(c echo.Context) error {
	rec, err := h.Verifier.Status(c.Request().Context(), c.Param("txn"))
	if err != nil {
		return respondError(c, h.Log, err)
	}
	return c.JSON(http.StatusOK, rec)
}

// Stats handles GET /v1/admin/payments/stats.
func (h *PaymentHandler) Stats(c echo.Context) error {
	st, err := h.Verifier.Stats(c.Request().Context())
	if err != nil {
		return respondError(c, h.Log, err)
	}
	return c.JSON(http.StatusOK, st)
}

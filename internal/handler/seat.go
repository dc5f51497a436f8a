package handler

import (
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/sirupsen/logrus"

	"github.com/iliyamo/cinema-booking-saga/internal/model"
	"github.com/iliyamo/cinema-booking-saga/internal/service"
)

// SeatHandler exposes the seat map of a showtime: public availability,
// customer holds and operator initialization.
type SeatHandler struct {
	Seats   *service.SeatInventory
	HoldTTL time.Duration
	Log     *logrus.Logger
}

func NewSeatHandler(seats *service.SeatInventory, holdTTL time.Duration, log *logrus.Logger) *SeatHandler {
	if seats == nil {
		panic("nil seat inventory passed to NewSeatHandler")
	}
	if holdTTL <= 0 {
		holdTTL = 5 * time.Minute
	}
	return &SeatHandler{Seats: seats, HoldTTL: holdTTL, Log: log}
}

// seatView is the public face of a seat; hold owners are not exposed.
type seatView struct {
	ID     string `json:"id"`
	Label  string `json:"label"`
	Row    string `json:"row"`
	Number int    `json:"number"`
	Status string `json:"status"`
}

func viewSeats(seats []model.Seat, now time.Time) []seatView {
	out := make([]seatView, 0, len(seats))
	for _, s := range seats {
		status := "FREE"
		switch {
		case s.Booked:
			status = "BOOKED"
		case s.HoldActive(now):
			status = "HELD"
		}
		out = append(out, seatView{ID: s.ID, Label: s.Label(), Row: s.RowLabel, Number: s.Number, Status: status})
	}
	return out
}

// ListSeats handles GET /v1/showtimes/:id/seats.
func (h *SeatHandler) ListSeats(c echo.Context) error {
	showtimeID := strings.TrimSpace(c.Param("id"))
	seats, err := h.Seats.ListSeats(c.Request().Context(), showtimeID)
	if err != nil {
		return respondError(c, h.Log, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"showtime_id": showtimeID, "seats": viewSeats(seats, time.Now().UTC())})
}

// InitializeSeats handles POST /v1/admin/showtimes/:id/seats with
// {"rows": 10, "seats_per_row": 12}.
func (h *SeatHandler) InitializeSeats(c echo.Context) error {
	var body struct {
		Rows        int `json:"rows"`
		SeatsPerRow int `json:"seats_per_row"`
	}
	if err := c.Bind(&body); err != nil {
		return badRequest(c, "invalid request body")
	}
	seats, err := h.Seats.Initialize(c.Request().Context(), strings.TrimSpace(c.Param("id")), body.Rows, body.SeatsPerRow)
	if err != nil {
		return respondError(c, h.Log, err)
	}
	return c.JSON(http.StatusCreated, echo.Map{"showtime_id": c.Param("id"), "seats": viewSeats(seats, time.Now().UTC())})
}

// HoldSeats handles POST /v1/showtimes/:id/holds with {"seats": ["A1", ...]}.
// The hold belongs to the caller and does not block the caller's own booking.
func (h *SeatHandler) HoldSeats(c echo.Context) error {
	userID, err := getUserID(c)
	if err != nil {
		return unauthorized(c)
	}
	var body struct {
		Seats []string `json:"seats"`
	}
	if err := c.Bind(&body); err != nil {
		return badRequest(c, "invalid request body")
	}
	refs := seatRefs(body.Seats)
	expires, err := h.Seats.Hold(c.Request().Context(), c.Param("id"), refs, userID, h.HoldTTL)
	if err != nil {
		return respondError(c, h.Log, err)
	}
	return c.JSON(http.StatusCreated, echo.Map{"seats": refs, "expires_at": expires.Format(time.RFC3339)})
}

// ReleaseHolds handles DELETE /v1/showtimes/:id/holds.
func (h *SeatHandler) ReleaseHolds(c echo.Context) error {
	userID, err := getUserID(c)
	if err != nil {
		return unauthorized(c)
	}
	n, err := h.Seats.ReleaseHolds(c.Request().Context(), c.Param("id"), userID)
	if err != nil {
		return respondError(c, h.Log, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"released": n})
}

package model

import "time"

// BookingStatus is the lifecycle state of a booking.
type BookingStatus string

const (
	BookingConfirmed           BookingStatus = "CONFIRMED"
	BookingCancellationPending BookingStatus = "CANCELLATION_PENDING"
	BookingCancelled           BookingStatus = "CANCELLED"
)

// PaymentMethodOnline is recorded on every booking created through checkout.
const PaymentMethodOnline = "ONLINE"

// Booking is a confirmed purchase of one or more seats for a showtime.
//
// Seats holds the canonical seat ids in request order and SeatLabels the
// matching human labels.  A CANCELLED booking holds no claim on any seat.
// The descriptive movie/theater fields are a best-effort snapshot taken at
// booking time and may carry placeholder values.
type Booking struct {
	ID                      string        `json:"id"`
	UserID                  string        `json:"user_id"`
	ShowtimeID              string        `json:"showtime_id"`
	MovieID                 string        `json:"movie_id,omitempty"`
	TheaterID               string        `json:"theater_id,omitempty"`
	MovieTitle              string        `json:"movie_title"`
	TheaterName             string        `json:"theater_name"`
	ScreenName              string        `json:"screen_name"`
	ShowDateTime            *time.Time    `json:"show_date_time,omitempty"`
	Seats                   []string      `json:"seats"`
	SeatLabels              []string      `json:"seat_labels,omitempty"`
	TotalAmount             float64       `json:"total_amount"`
	Status                  BookingStatus `json:"status"`
	CustomerName            string        `json:"customer_name"`
	CustomerEmail           string        `json:"customer_email"`
	CustomerPhone           string        `json:"customer_phone,omitempty"`
	PaymentMethod           string        `json:"payment_method"`
	PaymentID               string        `json:"payment_id,omitempty"`
	TicketNumber            string        `json:"ticket_number"`
	QRCode                  string        `json:"qr_code"`
	RefundAmount            *float64      `json:"refund_amount,omitempty"`
	RefundDate              *time.Time    `json:"refund_date,omitempty"`
	CancellationReason      string        `json:"cancellation_reason,omitempty"`
	CancellationRequestedAt *time.Time    `json:"cancellation_requested_at,omitempty"`
	BookingDate             time.Time     `json:"booking_date"`
}

// BookingRequest carries everything needed to create a booking.  Seats may
// name seats by id or by label; SeatLabels is optional and derived from the
// seat map when empty.
type BookingRequest struct {
	ShowtimeID    string     `json:"showtime_id"`
	MovieID       string     `json:"movie_id"`
	TheaterID     string     `json:"theater_id"`
	MovieTitle    string     `json:"movie_title"`
	TheaterName   string     `json:"theater_name"`
	ScreenName    string     `json:"screen_name"`
	ShowDateTime  *time.Time `json:"show_date_time"`
	Seats         []string   `json:"seats"`
	SeatLabels    []string   `json:"seat_labels"`
	TotalAmount   float64    `json:"total_amount"`
	CustomerName  string     `json:"customer_name"`
	CustomerEmail string     `json:"customer_email"`
	CustomerPhone string     `json:"customer_phone"`
}

// BookingStats aggregates booking counts.  TotalSeatsSold only counts seats
// of bookings that are not cancelled.
type BookingStats struct {
	TotalBookings     int `json:"total_bookings"`
	CancelledBookings int `json:"cancelled_bookings"`
	LastSevenDays     int `json:"last_7_days"`
	LastThirtyDays    int `json:"last_30_days"`
	TotalSeatsSold    int `json:"total_seats_sold"`
}

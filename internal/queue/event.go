// Package queue defines the messages exchanged over RabbitMQ, the publisher
// used by the booking service and the consumer run by the notification
// worker.
package queue

// Kind identifies a notification type.  Each kind has its own durable queue.
type Kind string

const (
	KindBookingConfirmed      Kind = "BookingConfirmed"
	KindCancellationRequested Kind = "CancellationRequested"
	KindBookingCancelled      Kind = "BookingCancelled"
	KindAdminNewBooking       Kind = "AdminNewBooking"
)

// InconsistencyQueue receives InconsistencyWarning messages.
const InconsistencyQueue = "booking.inconsistency"

var kindQueues = map[Kind]string{
	KindBookingConfirmed:      "booking.confirmed",
	KindCancellationRequested: "booking.cancellation_requested",
	KindBookingCancelled:      "booking.cancelled",
	KindAdminNewBooking:       "booking.admin_new",
}

// Queue returns the queue name for k, or "" for an unknown kind.
func (k Kind) Queue() string { return kindQueues[k] }

// Kinds lists every notification kind.
func Kinds() []Kind {
	return []Kind{KindBookingConfirmed, KindCancellationRequested, KindBookingCancelled, KindAdminNewBooking}
}

// Notification is the payload of every notification kind.  Fields that do
// not apply to a kind are left empty.
type Notification struct {
	Kind          Kind     `json:"kind"`
	BookingID     string   `json:"booking_id"`
	TicketNumber  string   `json:"ticket_number"`
	CustomerName  string   `json:"customer_name"`
	CustomerEmail string   `json:"customer_email"`
	TotalAmount   float64  `json:"total_amount,omitempty"`
	RefundAmount  float64  `json:"refund_amount,omitempty"`
	Seats         []string `json:"seats,omitempty"`
	ShowDateTime  string   `json:"show_date_time,omitempty"`
	MovieTitle    string   `json:"movie_title,omitempty"`
	TheaterName   string   `json:"theater_name,omitempty"`
	ScreenName    string   `json:"screen_name,omitempty"`
	Reason        string   `json:"reason,omitempty"`
	OccurredAt    string   `json:"occurred_at"`
}

// Inconsistency kinds.
const (
	PaymentWithoutBooking       = "PAYMENT_WITHOUT_BOOKING"
	BookingWithoutSeats         = "BOOKING_WITHOUT_SEATS"
	BookingWithoutPaymentRecord = "BOOKING_WITHOUT_PAYMENT_RECORD"
	SeatsReleasedNotCancelled   = "SEATS_RELEASED_NOT_CANCELLED"
)

// InconsistencyWarning records a state the booking service could not keep
// consistent, e.g. money captured by the gateway without a booking.  It
// carries enough identifiers for manual reconciliation.
type InconsistencyWarning struct {
	Kind       string   `json:"kind"`
	BookingID  string   `json:"booking_id,omitempty"`
	ShowtimeID string   `json:"showtime_id,omitempty"`
	UserID     string   `json:"user_id,omitempty"`
	OrderID    string   `json:"order_id,omitempty"`
	PaymentID  string   `json:"payment_id,omitempty"`
	Amount     float64  `json:"amount,omitempty"`
	Seats      []string `json:"seats,omitempty"`
	Cause      string   `json:"cause"`
	DetectedAt string   `json:"detected_at"`
}

package model

import "time"

// PaymentStatus is the outcome recorded for a payment attempt.
type PaymentStatus string

const (
	PaymentSuccess PaymentStatus = "SUCCESS"
	PaymentFailed  PaymentStatus = "FAILED"
)

// PaymentMethodGateway is recorded for payments confirmed by the external gateway.
const PaymentMethodGateway = "UPI"

// PaymentRecord is the audit entry of one payment attempt.  TransactionID is
// either the gateway payment id or an internal TXN token.  Records are never
// updated after they are written.
type PaymentRecord struct {
	TransactionID    string        `json:"transaction_id"`
	BookingID        string        `json:"booking_id"`
	UserID           string        `json:"user_id"`
	Amount           float64       `json:"amount"`
	Method           string        `json:"method"`
	Status           PaymentStatus `json:"status"`
	GatewayOrderID   string        `json:"gateway_order_id,omitempty"`
	GatewayPaymentID string        `json:"gateway_payment_id,omitempty"`
	GatewaySignature string        `json:"gateway_signature,omitempty"`
	CreatedAt        time.Time     `json:"created_at"`
}

// PaymentProof is what a client submits after the gateway confirmed a
// payment: the gateway identifiers plus the booking details it paid for.
type PaymentProof struct {
	OrderID       string   `json:"razorpay_order_id"`
	PaymentID     string   `json:"razorpay_payment_id"`
	Signature     string   `json:"razorpay_signature"`
	ShowtimeID    string   `json:"showtime_id"`
	MovieID       string   `json:"movie_id"`
	TheaterID     string   `json:"theater_id"`
	Seats         []string `json:"seats"`
	SeatLabels    []string `json:"seat_labels"`
	TotalAmount   float64  `json:"total_amount"`
	CustomerName  string   `json:"customer_name"`
	CustomerEmail string   `json:"customer_email"`
	CustomerPhone string   `json:"customer_phone"`
}

// OrderHandle is returned to the client so it can open the gateway checkout.
// Amount is in the currency's minor unit.
type OrderHandle struct {
	OrderID  string `json:"order_id"`
	Amount   int64  `json:"amount"`
	Currency string `json:"currency"`
	Receipt  string `json:"receipt"`
	KeyID    string `json:"key_id"`
}

// PaymentStats aggregates successful revenue and attempt counts.
type PaymentStats struct {
	TotalRevenue       float64 `json:"total_revenue"`
	SuccessfulPayments int     `json:"successful_payments"`
	FailedPayments     int     `json:"failed_payments"`
	RevenueLast7Days   float64 `json:"revenue_last_7_days"`
	RevenueLast30Days  float64 `json:"revenue_last_30_days"`
}

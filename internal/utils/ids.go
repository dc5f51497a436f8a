package utils

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// NewID returns a random identifier used for bookings and seats.
func NewID() string { return uuid.NewString() }

// compactUUID returns n uppercase alphanumeric characters taken from a fresh
// UUID with the dashes removed.
func compactUUID(n int) string {
	s := strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", ""))
	return s[:n]
}

// TicketNumber returns a displayable ticket number: "TKT" followed by eight
// uppercase alphanumeric characters.  Collisions are not re-checked.
func TicketNumber() string { return "TKT" + compactUUID(8) }

// QRCode returns the opaque token encoded into the ticket QR code.
func QRCode() string { return "QR_" + uuid.NewString() }

// TransactionID returns an internal payment transaction id: "TXN" followed
// by twelve uppercase alphanumeric characters.
func TransactionID() string { return "TXN" + compactUUID(12) }

// FailedBookingID is the placeholder booking id recorded on failed payments.
func FailedBookingID(now time.Time) string {
	return fmt.Sprintf("BKG_FAILED_%d", now.UnixMilli())
}

// OrderReceipt is the receipt reference sent along with a gateway order.
func OrderReceipt(now time.Time) string {
	return fmt.Sprintf("order_%d", now.UnixMilli())
}

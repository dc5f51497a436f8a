package queue

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHandleAppendsNotificationLine(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logs", "notifications.log")
	c := &Consumer{LogFile: path, Retries: 3}

	body, err := json.Marshal(Notification{
		Kind: KindBookingConfirmed, BookingID: "b1", TicketNumber: "TKTAAAA1111",
		CustomerEmail: "ann@example.com", MovieTitle: "Heat", TotalAmount: 450,
		Seats: []string{"A1", "A2"}, OccurredAt: "2025-03-01T18:00:00Z",
	})
	require.NoError(t, err)
	require.NoError(t, c.Handle(context.Background(), KindBookingConfirmed.Queue(), body))

	out, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(out), "Booking confirmed | booking_id=b1 | ticket=TKTAAAA1111")
	assert.Contains(t, string(out), "total=450.00 | seats=[A1,A2]")
}

func TestHandleInconsistencyQueue(t *testing.T) {
	path := filepath.Join(t.TempDir(), "n.log")
	c := &Consumer{LogFile: path}

	body, _ := json.Marshal(InconsistencyWarning{Kind: PaymentWithoutBooking, PaymentID: "pay_1", Amount: 300, Cause: "seat taken"})
	require.NoError(t, c.Handle(context.Background(), InconsistencyQueue, body))

	out, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(out), "INCONSISTENCY PAYMENT_WITHOUT_BOOKING")
	assert.Contains(t, string(out), "payment_id=pay_1")
}

func TestHandleRejectsMalformedBody(t *testing.T) {
	c := &Consumer{LogFile: filepath.Join(t.TempDir(), "n.log")}
	assert.Error(t, c.Handle(context.Background(), KindBookingCancelled.Queue(), []byte("{")))
}

func TestHandleGivesUpWhenLogFileUnset(t *testing.T) {
	c := &Consumer{Retries: 2}
	body, _ := json.Marshal(Notification{Kind: KindBookingCancelled})
	assert.Error(t, c.Handle(context.Background(), KindBookingCancelled.Queue(), body))
}

func TestQueuesCoverEveryKind(t *testing.T) {
	qs := Queues()
	for _, k := range Kinds() {
		assert.Contains(t, qs, k.Queue())
	}
	assert.Contains(t, qs, InconsistencyQueue)
	assert.Equal(t, "", Kind("Unknown").Queue())
}

package service

import (
	"context"
	"errors"
	"testing"
	"time"

	logtest "github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/cinema-booking-saga/internal/model"
	"github.com/iliyamo/cinema-booking-saga/internal/queue"
)

type slowNotifier struct{}

func (slowNotifier) Send(ctx context.Context, _ queue.Notification) error {
	<-ctx.Done()
	return ctx.Err()
}

func TestDispatchDelivers(t *testing.T) {
	live := &recordingNotifier{}
	d := NewNotificationDispatcher(live, nil, 0, nil)
	b := &model.Booking{ID: "b1", TicketNumber: "TKT1", SeatLabels: []string{"A1"}, TotalAmount: 500}

	res := d.Dispatch(context.Background(), queue.KindBookingConfirmed, confirmationPayload(b))
	assert.True(t, res.Delivered)
	assert.False(t, res.Fallback)
	assert.NoError(t, res.Err)
	require.Len(t, live.sent, 1)
	assert.Equal(t, queue.KindBookingConfirmed, live.sent[0].Kind)
	assert.Equal(t, []string{"A1"}, live.sent[0].Seats)
	assert.NotEmpty(t, live.sent[0].OccurredAt)
}

func TestDispatchFallsBackAndOpensBreaker(t *testing.T) {
	log, hook := logtest.NewNullLogger()
	live := &recordingNotifier{err: errors.New("connection refused")}
	breaker := NewCircuitBreaker(2, time.Hour)
	d := NewNotificationDispatcher(live, breaker, 0, log)

	for i := 0; i < 2; i++ {
		res := d.Dispatch(context.Background(), queue.KindBookingCancelled, queue.Notification{BookingID: "b1"})
		assert.True(t, res.Fallback)
		assert.Equal(t, ReasonNotifierUnavailable, reasonOf(t, res.Err))
		res.Log(log)
	}
	assert.Equal(t, BreakerOpen, d.BreakerState())

	live.err = nil
	res := d.Dispatch(context.Background(), queue.KindBookingCancelled, queue.Notification{BookingID: "b1"})
	assert.True(t, res.Fallback)
	assert.NoError(t, res.Err)
	assert.Empty(t, live.sent, "open breaker must skip the live notifier")
	assert.NotEmpty(t, hook.AllEntries())
}

func TestDispatchIsBoundedByTimeout(t *testing.T) {
	d := NewNotificationDispatcher(slowNotifier{}, nil, 20*time.Millisecond, nil)
	start := time.Now()
	res := d.Dispatch(context.Background(), queue.KindAdminNewBooking, queue.Notification{BookingID: "b1"})
	assert.Less(t, time.Since(start), time.Second)
	assert.True(t, res.Fallback)
	assert.Error(t, res.Err)
}

func TestDispatchWithoutLiveNotifier(t *testing.T) {
	d := NewNotificationDispatcher(nil, nil, 0, nil)
	res := d.Dispatch(context.Background(), queue.KindBookingConfirmed, queue.Notification{BookingID: "b1"})
	assert.True(t, res.Fallback)
	assert.False(t, res.Delivered)
	assert.NoError(t, res.Err)
}

func TestCircuitBreakerHalfOpen(t *testing.T) {
	now := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	b := NewCircuitBreaker(1, time.Minute)
	b.now = func() time.Time { return now }

	require.True(t, b.Allow())
	b.Record(false)
	assert.Equal(t, BreakerOpen, b.State())
	assert.False(t, b.Allow())

	now = now.Add(time.Minute)
	assert.True(t, b.Allow())
	assert.Equal(t, BreakerHalfOpen, b.State())
	assert.False(t, b.Allow(), "only one probe at a time")

	b.Record(true)
	assert.Equal(t, BreakerClosed, b.State())
	assert.True(t, b.Allow())
}

type failingPublisher struct{ calls int }

func (p *failingPublisher) PublishInconsistency(context.Context, queue.InconsistencyWarning) error {
	p.calls++
	return errors.New("channel closed")
}

func TestAlertSinkLogsEvenWhenPublishFails(t *testing.T) {
	log, hook := logtest.NewNullLogger()
	pub := &failingPublisher{}
	sink := NewAlertSink(pub, time.Second, log)

	sink.Warn(context.Background(), queue.InconsistencyWarning{Kind: queue.PaymentWithoutBooking, PaymentID: "pay_1", Cause: "booking failed"})
	assert.Equal(t, 1, pub.calls)
	entries := hook.AllEntries()
	require.Len(t, entries, 2)
	assert.Equal(t, "inconsistency", entries[0].Data["alert"])
	assert.Equal(t, "booking failed", entries[0].Message)
}

func TestKeyedMutexSerializesPerKey(t *testing.T) {
	k := newKeyedMutex()
	unlockA := k.Lock("a")
	done := make(chan struct{})
	go func() {
		unlockB := k.Lock("b")
		unlockB()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("lock on another key blocked")
	}
	unlockA()
	k.Lock("a")()
	assert.Empty(t, k.locks)
}

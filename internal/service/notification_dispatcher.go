package service

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/iliyamo/cinema-booking-saga/internal/model"
	"github.com/iliyamo/cinema-booking-saga/internal/queue"
)

// Notifier delivers one notification to the notification service.
type Notifier interface {
	Send(ctx context.Context, n queue.Notification) error
}

// NoopNotifier is the degraded notifier used while the live one is down.
// It only records that a notification was skipped.
type NoopNotifier struct {
	Log *logrus.Logger
}

func (n NoopNotifier) Send(_ context.Context, msg queue.Notification) error {
	log := n.Log
	if log == nil {
		log = logrus.StandardLogger()
	}
	log.WithFields(logrus.Fields{"kind": msg.Kind, "booking_id": msg.BookingID}).
		Info("notification skipped, notifier unavailable")
	return nil
}

// DispatchResult describes what happened to one notification.  Callers log
// it and move on; a failed dispatch never fails the operation that
// triggered it.
type DispatchResult struct {
	Kind      queue.Kind
	BookingID string
	Delivered bool
	Fallback  bool
	Err       error
}

// Log writes the result at a level matching its outcome.
func (r DispatchResult) Log(log *logrus.Logger) {
	entry := log.WithFields(logrus.Fields{
		"kind":       r.Kind,
		"booking_id": r.BookingID,
		"delivered":  r.Delivered,
		"fallback":   r.Fallback,
	})
	if r.Err != nil {
		entry.WithError(r.Err).Warn("notification not delivered")
		return
	}
	entry.Debug("notification dispatched")
}

// NotificationDispatcher sends notifications through the live notifier
// while its circuit breaker is closed and through the fallback otherwise.
// Each call makes at most one attempt on the live notifier, bounded by
// timeout.
type NotificationDispatcher struct {
	live     Notifier
	fallback Notifier
	breaker  *CircuitBreaker
	timeout  time.Duration
	log      *logrus.Logger
	now      func() time.Time
}

// NewNotificationDispatcher wires a dispatcher.  A nil live notifier means
// every notification goes to the fallback.
func NewNotificationDispatcher(live Notifier, breaker *CircuitBreaker, timeout time.Duration, log *logrus.Logger) *NotificationDispatcher {
	if log == nil {
		log = logrus.StandardLogger()
	}
	if breaker == nil {
		breaker = NewCircuitBreaker(3, 30*time.Second)
	}
	if timeout <= 0 {
		timeout = 3 * time.Second
	}
	return &NotificationDispatcher{
		live:     live,
		fallback: NoopNotifier{Log: log},
		breaker:  breaker,
		timeout:  timeout,
		log:      log,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// Dispatch sends payload as a notification of kind.  It never blocks past
// the dispatcher timeout and never panics on notifier failure.
func (d *NotificationDispatcher) Dispatch(ctx context.Context, kind queue.Kind, payload queue.Notification) DispatchResult {
	payload.Kind = kind
	if payload.OccurredAt == "" {
		payload.OccurredAt = d.now().Format(time.RFC3339)
	}
	res := DispatchResult{Kind: kind, BookingID: payload.BookingID}

	if d.live != nil && d.breaker.Allow() {
		// the triggering request may finish before the send does
		sendCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), d.timeout)
		err := d.live.Send(sendCtx, payload)
		cancel()
		d.breaker.Record(err == nil)
		if err == nil {
			res.Delivered = true
			return res
		}
		res.Err = &UpstreamError{Reason: ReasonNotifierUnavailable, Service: "notifier", Msg: "send failed", Err: err}
	}

	res.Fallback = true
	if err := d.fallback.Send(ctx, payload); err != nil && res.Err == nil {
		res.Err = err
	}
	return res
}

// BreakerState exposes the live notifier's breaker state for health checks.
func (d *NotificationDispatcher) BreakerState() string { return d.breaker.State() }

func confirmationPayload(b *model.Booking) queue.Notification {
	seats := b.SeatLabels
	if len(seats) == 0 {
		seats = b.Seats
	}
	n := queue.Notification{
		BookingID:     b.ID,
		TicketNumber:  b.TicketNumber,
		CustomerName:  b.CustomerName,
		CustomerEmail: b.CustomerEmail,
		TotalAmount:   b.TotalAmount,
		Seats:         seats,
		MovieTitle:    b.MovieTitle,
		TheaterName:   b.TheaterName,
		ScreenName:    b.ScreenName,
	}
	if b.ShowDateTime != nil {
		n.ShowDateTime = b.ShowDateTime.Format(time.RFC3339)
	}
	return n
}

func adminNewBookingPayload(b *model.Booking) queue.Notification {
	return queue.Notification{
		BookingID:     b.ID,
		TicketNumber:  b.TicketNumber,
		CustomerName:  b.CustomerName,
		CustomerEmail: b.CustomerEmail,
		TotalAmount:   b.TotalAmount,
	}
}

func cancellationRequestPayload(b *model.Booking) queue.Notification {
	return queue.Notification{
		BookingID:     b.ID,
		TicketNumber:  b.TicketNumber,
		CustomerName:  b.CustomerName,
		CustomerEmail: b.CustomerEmail,
		Reason:        b.CancellationReason,
	}
}

func cancelledPayload(b *model.Booking) queue.Notification {
	n := queue.Notification{
		BookingID:     b.ID,
		TicketNumber:  b.TicketNumber,
		CustomerName:  b.CustomerName,
		CustomerEmail: b.CustomerEmail,
	}
	if b.RefundAmount != nil {
		n.RefundAmount = *b.RefundAmount
	}
	return n
}

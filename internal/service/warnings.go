package service

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/iliyamo/cinema-booking-saga/internal/queue"
)

// WarningSink records InconsistencyWarnings for manual reconciliation.
type WarningSink interface {
	Warn(ctx context.Context, w queue.InconsistencyWarning)
}

// InconsistencyPublisher durably stores warnings, e.g. on a broker queue.
type InconsistencyPublisher interface {
	PublishInconsistency(ctx context.Context, w queue.InconsistencyWarning) error
}

// AlertSink logs every warning at error level with alert=inconsistency and,
// when a publisher is configured, also publishes it durably.  A failed
// publish is logged too; the warning is never dropped silently.
type AlertSink struct {
	pub     InconsistencyPublisher
	timeout time.Duration
	log     *logrus.Logger
}

func NewAlertSink(pub InconsistencyPublisher, timeout time.Duration, log *logrus.Logger) *AlertSink {
	if log == nil {
		log = logrus.StandardLogger()
	}
	if timeout <= 0 {
		timeout = 3 * time.Second
	}
	return &AlertSink{pub: pub, timeout: timeout, log: log}
}

func (s *AlertSink) Warn(ctx context.Context, w queue.InconsistencyWarning) {
	if w.DetectedAt == "" {
		w.DetectedAt = time.Now().UTC().Format(time.RFC3339)
	}
	entry := s.log.WithFields(logrus.Fields{
		"alert":       "inconsistency",
		"kind":        w.Kind,
		"booking_id":  w.BookingID,
		"showtime_id": w.ShowtimeID,
		"user_id":     w.UserID,
		"order_id":    w.OrderID,
		"payment_id":  w.PaymentID,
		"amount":      w.Amount,
		"seats":       w.Seats,
	})
	entry.Error(w.Cause)

	if s.pub == nil {
		return
	}
	pubCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.timeout)
	defer cancel()
	if err := s.pub.PublishInconsistency(pubCtx, w); err != nil {
		entry.WithError(err).Error("inconsistency warning not published, reconcile from logs")
	}
}

package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/sirupsen/logrus"
)

// Consumer drains every notification queue plus the inconsistency queue and
// appends one line per message to LogFile.  It is the delivery leaf of the
// notification pipeline: a failed write is retried a few times with a
// linear backoff, then the message is rejected without requeueing.
type Consumer struct {
	URL        string
	LogFile    string
	Retries    int
	RetryDelay time.Duration
	Log        *logrus.Logger

	writeMu sync.Mutex
}

// Queues returns every queue the consumer reads.
func Queues() []string {
	qs := make([]string, 0, len(kindQueues)+1)
	for _, k := range Kinds() {
		qs = append(qs, k.Queue())
	}
	return append(qs, InconsistencyQueue)
}

// Run connects to RabbitMQ and consumes until ctx is cancelled.  Broken
// connections are re-established with exponential backoff capped at 30s.
func (c *Consumer) Run(ctx context.Context) error {
	log := c.logger()
	backoff := time.Second
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		conn, err := amqp.Dial(c.URL)
		if err != nil {
			log.WithError(err).WithField("retry_in", backoff.String()).Warn("notify-consumer: failed to dial broker")
			if !sleepCtx(ctx, backoff) {
				return ctx.Err()
			}
			if backoff < 30*time.Second {
				backoff *= 2
			}
			continue
		}
		backoff = time.Second

		err = c.consumeLoop(ctx, conn)
		_ = conn.Close()
		if ctx.Err() != nil {
			return ctx.Err()
		}
		log.WithError(err).Warn("notify-consumer: consume loop ended, reconnecting")
		if !sleepCtx(ctx, 2*time.Second) {
			return ctx.Err()
		}
	}
}

func (c *Consumer) consumeLoop(ctx context.Context, conn *amqp.Connection) error {
	ch, err := conn.Channel()
	if err != nil {
		return fmt.Errorf("channel open: %w", err)
	}
	defer func() { _ = ch.Close() }()

	if err := ch.Qos(50, 0, false); err != nil {
		c.logger().WithError(err).Warn("notify-consumer: set QoS failed")
	}

	queues := Queues()
	ended := make(chan error, len(queues))
	for _, q := range queues {
		if _, err := ch.QueueDeclare(q, true, false, false, false, nil); err != nil {
			return fmt.Errorf("queue declare %s: %w", q, err)
		}
		msgs, err := ch.Consume(q, "", false, false, false, false, nil)
		if err != nil {
			return fmt.Errorf("queue consume %s: %w", q, err)
		}
		go func(queueName string, msgs <-chan amqp.Delivery) {
			for d := range msgs {
				if err := c.Handle(ctx, queueName, d.Body); err != nil {
					c.logger().WithError(err).WithField("queue", queueName).Error("notify-consumer: handle message failed")
					_ = d.Nack(false, false)
					continue
				}
				_ = d.Ack(false)
			}
			ended <- fmt.Errorf("deliveries for %s closed", queueName)
		}(q, msgs)
	}

	select {
	case <-ctx.Done():
		return ctx.Err()
	case err := <-ended:
		return err
	}
}

// Handle decodes one message from queueName and appends it to the log file.
func (c *Consumer) Handle(ctx context.Context, queueName string, body []byte) error {
	var line string
	if queueName == InconsistencyQueue {
		var w InconsistencyWarning
		if err := json.Unmarshal(body, &w); err != nil {
			return fmt.Errorf("unmarshal: %w", err)
		}
		line = FormatInconsistency(w)
	} else {
		var n Notification
		if err := json.Unmarshal(body, &n); err != nil {
			return fmt.Errorf("unmarshal: %w", err)
		}
		line = FormatNotification(n)
	}

	retries := c.Retries
	if retries < 1 {
		retries = 1
	}
	var err error
	for attempt := 1; attempt <= retries; attempt++ {
		if err = c.appendLine(line); err == nil {
			return nil
		}
		c.logger().WithError(err).WithField("attempt", attempt).Warn("notify-consumer: write failed")
		if attempt < retries && !sleepCtx(ctx, time.Duration(attempt)*c.RetryDelay) {
			return ctx.Err()
		}
	}
	return err
}

// FormatNotification renders n as one log line.
func FormatNotification(n Notification) string {
	seats := "[]"
	if len(n.Seats) > 0 {
		seats = fmt.Sprintf("[%s]", strings.Join(n.Seats, ","))
	}
	switch n.Kind {
	case KindBookingConfirmed:
		return fmt.Sprintf("[%s] Booking confirmed | booking_id=%s | ticket=%s | to=%s | movie=%q | theater=%q | screen=%q | show=%s | total=%.2f | seats=%s\n",
			n.OccurredAt, n.BookingID, n.TicketNumber, n.CustomerEmail, n.MovieTitle, n.TheaterName, n.ScreenName, n.ShowDateTime, n.TotalAmount, seats)
	case KindAdminNewBooking:
		return fmt.Sprintf("[%s] New booking (admin) | booking_id=%s | ticket=%s | customer=%q <%s> | total=%.2f\n",
			n.OccurredAt, n.BookingID, n.TicketNumber, n.CustomerName, n.CustomerEmail, n.TotalAmount)
	case KindCancellationRequested:
		return fmt.Sprintf("[%s] Cancellation requested (admin) | booking_id=%s | ticket=%s | customer=%q <%s> | reason=%q\n",
			n.OccurredAt, n.BookingID, n.TicketNumber, n.CustomerName, n.CustomerEmail, n.Reason)
	case KindBookingCancelled:
		return fmt.Sprintf("[%s] Booking cancelled | booking_id=%s | ticket=%s | to=%s | refund=%.2f\n",
			n.OccurredAt, n.BookingID, n.TicketNumber, n.CustomerEmail, n.RefundAmount)
	}
	return fmt.Sprintf("[%s] %s | booking_id=%s\n", n.OccurredAt, n.Kind, n.BookingID)
}

// FormatInconsistency renders w as one log line.
func FormatInconsistency(w InconsistencyWarning) string {
	return fmt.Sprintf("[%s] INCONSISTENCY %s | booking_id=%s | showtime_id=%s | user_id=%s | order_id=%s | payment_id=%s | amount=%.2f | seats=[%s] | cause=%q\n",
		w.DetectedAt, w.Kind, w.BookingID, w.ShowtimeID, w.UserID, w.OrderID, w.PaymentID, w.Amount, strings.Join(w.Seats, ","), w.Cause)
}

func (c *Consumer) appendLine(line string) error {
	if c.LogFile == "" {
		return errors.New("no log file configured")
	}
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	if err := os.MkdirAll(filepath.Dir(c.LogFile), 0o755); err != nil {
		return fmt.Errorf("mkdir logs: %w", err)
	}
	f, err := os.OpenFile(c.LogFile, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("open log file: %w", err)
	}
	defer f.Close()
	if _, err := f.WriteString(line); err != nil {
		return fmt.Errorf("write log: %w", err)
	}
	return nil
}

func (c *Consumer) logger() *logrus.Logger {
	if c.Log != nil {
		return c.Log
	}
	return logrus.StandardLogger()
}

func sleepCtx(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}

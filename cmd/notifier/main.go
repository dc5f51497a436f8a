package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/iliyamo/cinema-booking-saga/internal/config"
	"github.com/iliyamo/cinema-booking-saga/internal/queue"
)

// The notification worker drains the booking notification queues into a
// log file.  Delivery to real channels (email, SMS) plugs in behind it.
func main() {
	_ = godotenv.Load()
	log := config.NewLogger(os.Getenv("APP_ENV"))
	cfg := config.LoadNotifyConfig()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	c := &queue.Consumer{
		URL:        cfg.AMQPURL,
		LogFile:    cfg.LogFile,
		Retries:    cfg.WriteRetries,
		RetryDelay: cfg.RetryDelay,
		Log:        log,
	}
	log.WithField("queues", queue.Queues()).Info("notification worker starting")
	if err := c.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		log.WithError(err).Fatal("notification worker stopped")
	}
	log.Info("notification worker stopped")
}

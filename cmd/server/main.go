package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"github.com/sirupsen/logrus"

	"github.com/iliyamo/cinema-booking-saga/internal/config"
	"github.com/iliyamo/cinema-booking-saga/internal/database"
	"github.com/iliyamo/cinema-booking-saga/internal/gateway"
	"github.com/iliyamo/cinema-booking-saga/internal/handler"
	"github.com/iliyamo/cinema-booking-saga/internal/middleware"
	"github.com/iliyamo/cinema-booking-saga/internal/queue"
	"github.com/iliyamo/cinema-booking-saga/internal/repository"
	"github.com/iliyamo/cinema-booking-saga/internal/router"
	"github.com/iliyamo/cinema-booking-saga/internal/service"
	"github.com/iliyamo/cinema-booking-saga/internal/showtime"
)

type stores struct {
	seats    service.SeatStore
	bookings service.BookingStore
	payments service.PaymentStore
	close    func()
}

func openStores(cfg config.Config, log *logrus.Logger) stores {
	if cfg.StoreDriver == config.StoreMemory {
		log.Warn("using in-memory stores, data is lost on restart")
		return stores{
			seats:    repository.NewMemorySeatStore(),
			bookings: repository.NewMemoryBookingStore(),
			payments: repository.NewMemoryPaymentStore(),
			close:    func() {},
		}
	}
	db, err := database.Open(context.Background(), cfg.DB)
	if err != nil {
		log.WithError(err).Fatal("mysql unavailable")
	}
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := database.Migrate(ctx, db); err != nil {
		log.WithError(err).Fatal("schema migration failed")
	}
	return stores{
		seats:    repository.NewSeatRepo(db),
		bookings: repository.NewBookingRepo(db),
		payments: repository.NewPaymentRepo(db),
		close:    func() { _ = db.Close() },
	}
}

func main() {
	cfg := config.Load()
	log := config.NewLogger(cfg.Env)

	st := openStores(cfg, log)
	defer st.close()

	rdb := config.NewRedisClient()
	if rdb == nil {
		log.Warn("redis unavailable, rate limiting and caches disabled")
	} else {
		defer rdb.Close()
	}

	notifyCfg := config.LoadNotifyConfig()
	pub := queue.NewPublisher(notifyCfg.AMQPURL, notifyCfg.Timeout)
	defer pub.Close()
	dispatcher := service.NewNotificationDispatcher(pub,
		service.NewCircuitBreaker(notifyCfg.BreakerFailures, notifyCfg.BreakerCooldown),
		notifyCfg.Timeout, log)
	alerts := service.NewAlertSink(pub, notifyCfg.Timeout, log)

	gwCfg := config.LoadGatewayConfig()
	if gwCfg.KeySecret == "" {
		log.Warn("GATEWAY_KEY_SECRET is empty, every payment signature will be rejected")
	}
	cacheCfg := config.LoadCacheConfig()
	catalog := showtime.New(config.LoadShowtimeConfig(), rdb, cacheCfg)

	seats := service.NewSeatInventory(st.seats, log)
	ledger := service.NewBookingLedger(st.bookings, seats, dispatcher, alerts, service.LedgerConfig{
		CancellationFeePercent: cfg.Booking.CancellationFeePercent,
		ReassignValidateFirst:  cfg.Booking.ReassignValidateFirst,
	}, log)
	verifier := service.NewPaymentVerifier(gateway.NewClient(gwCfg), gwCfg.KeySecret, st.payments, gwCfg.Timeout, log)
	saga := service.NewBookingSaga(verifier, ledger, catalog, dispatcher, alerts, config.LoadShowtimeConfig().Timeout, log)

	e := echo.New()
	e.HideBanner = true
	e.Use(echomw.RequestID())
	e.Use(echomw.Recover())
	e.Use(middleware.RequestLogger(log))

	seatH := handler.NewSeatHandler(seats, cfg.Booking.HoldTTL, log)
	bookingH := handler.NewBookingHandler(ledger, saga, log)
	paymentH := handler.NewPaymentHandler(verifier, saga, log)
	router.RegisterRoutes(e, &handler.HealthHandler{Notifier: dispatcher})
	router.RegisterPublic(e, seatH)
	router.RegisterCustomer(e, seatH, bookingH, paymentH, cfg.JWTSecret,
		middleware.NewTokenBucket(config.LoadRateLimitConfig(), rdb, log))
	router.RegisterAdmin(e, seatH, bookingH, paymentH, cfg.JWTSecret,
		middleware.NewRedisCache(cacheCfg, rdb, cacheCfg.StatsTTL))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	addr := ":" + cfg.Port
	go func() {
		log.WithFields(logrus.Fields{"addr": addr, "env": cfg.Env, "store": cfg.StoreDriver}).Info("listening")
		if err := e.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.WithError(err).Fatal("server stopped")
		}
	}()

	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		log.WithError(err).Error("graceful shutdown failed")
	}
	log.Info("server stopped")
}

package service

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/iliyamo/cinema-booking-saga/internal/model"
	"github.com/iliyamo/cinema-booking-saga/internal/queue"
)

// ShowtimeCatalog describes showtimes for enrichment.
type ShowtimeCatalog interface {
	Lookup(ctx context.Context, showtimeID string) (model.ShowtimeInfo, error)
}

// Confirmation is everything a caller learns about a successful checkout.
type Confirmation struct {
	BookingID    string `json:"bookingId"`
	TicketNumber string `json:"ticketNumber"`
}

// BookingSaga runs checkout across the payment verifier, the booking ledger
// and the notification dispatcher.  Its steps are ordered: verify the
// payment, describe the showtime, create the booking, record the payment,
// notify.  Only the first four decide the outcome.
type BookingSaga struct {
	verifier      *PaymentVerifier
	ledger        *BookingLedger
	catalog       ShowtimeCatalog
	notifier      *NotificationDispatcher
	warnings      WarningSink
	enrichTimeout time.Duration
	payments      *keyedMutex
	log           *logrus.Logger
}

func NewBookingSaga(verifier *PaymentVerifier, ledger *BookingLedger, catalog ShowtimeCatalog, notifier *NotificationDispatcher, warnings WarningSink, enrichTimeout time.Duration, log *logrus.Logger) *BookingSaga {
	if log == nil {
		log = logrus.StandardLogger()
	}
	if enrichTimeout <= 0 {
		enrichTimeout = 2 * time.Second
	}
	if warnings == nil {
		warnings = NewAlertSink(nil, 0, log)
	}
	if notifier == nil {
		notifier = NewNotificationDispatcher(nil, nil, 0, log)
	}
	return &BookingSaga{
		verifier:      verifier,
		ledger:        ledger,
		catalog:       catalog,
		notifier:      notifier,
		warnings:      warnings,
		enrichTimeout: enrichTimeout,
		payments:      newKeyedMutex(),
		log:           log,
	}
}

// VerifyAndBook turns a gateway payment proof into a booking.
//
// An invalid signature fails with INVALID_PAYMENT before anything is
// written.  When the booking cannot be created the saga fails with
// BOOKING_CREATION_FAILED and writes no payment record; since the gateway
// has already captured the money, an InconsistencyWarning is raised for
// reconciliation.  Refunds are not issued automatically.
//
// Checkouts for one gateway payment id run one at a time, and a payment
// that already has a SUCCESS record is refused with DUPLICATE_PAYMENT.
func (s *BookingSaga) VerifyAndBook(ctx context.Context, userID string, proof model.PaymentProof) (Confirmation, error) {
	log := s.log.WithFields(logrus.Fields{
		"user_id":     userID,
		"order_id":    proof.OrderID,
		"payment_id":  proof.PaymentID,
		"showtime_id": proof.ShowtimeID,
	})

	ok, err := s.verifier.VerifySignature(proof.OrderID, proof.PaymentID, proof.Signature)
	if err != nil {
		return Confirmation{}, err
	}
	if !ok {
		log.Warn("payment signature rejected")
		return Confirmation{}, &SagaError{Reason: ReasonInvalidPayment, Msg: "Invalid payment signature"}
	}

	unlock := s.payments.Lock(proof.PaymentID)
	defer unlock()
	if err := s.alreadyProcessed(ctx, proof.PaymentID); err != nil {
		return Confirmation{}, err
	}

	info := s.enrich(ctx, proof.ShowtimeID)
	req := model.BookingRequest{
		ShowtimeID:    proof.ShowtimeID,
		MovieID:       firstNonEmpty(proof.MovieID, info.MovieID),
		TheaterID:     firstNonEmpty(proof.TheaterID, info.TheaterID),
		MovieTitle:    info.MovieTitle,
		TheaterName:   info.TheaterName,
		ScreenName:    info.ScreenName,
		ShowDateTime:  info.ShowDateTime,
		Seats:         proof.Seats,
		SeatLabels:    proof.SeatLabels,
		TotalAmount:   proof.TotalAmount,
		CustomerName:  proof.CustomerName,
		CustomerEmail: proof.CustomerEmail,
		CustomerPhone: proof.CustomerPhone,
	}

	b, err := s.ledger.CreateBooking(ctx, userID, req)
	if err != nil {
		// another instance may have booked this payment in the meantime
		if derr := s.alreadyProcessed(ctx, proof.PaymentID); derr != nil {
			return Confirmation{}, derr
		}
		s.warnings.Warn(ctx, queue.InconsistencyWarning{
			Kind:       queue.PaymentWithoutBooking,
			ShowtimeID: proof.ShowtimeID,
			UserID:     userID,
			OrderID:    proof.OrderID,
			PaymentID:  proof.PaymentID,
			Amount:     proof.TotalAmount,
			Seats:      proof.Seats,
			Cause:      "payment verified but booking failed: " + err.Error(),
		})
		return Confirmation{}, &SagaError{Reason: ReasonBookingCreationFailed, Msg: "Booking creation failed", Err: err}
	}

	if _, err := s.verifier.RecordSuccess(ctx, userID, b.ID, proof); err != nil {
		s.warnings.Warn(ctx, queue.InconsistencyWarning{
			Kind:       queue.BookingWithoutPaymentRecord,
			BookingID:  b.ID,
			ShowtimeID: b.ShowtimeID,
			UserID:     userID,
			OrderID:    proof.OrderID,
			PaymentID:  proof.PaymentID,
			Amount:     proof.TotalAmount,
			Seats:      b.Seats,
			Cause:      "booking created but payment record not saved: " + err.Error(),
		})
	} else if _, err := s.ledger.ConfirmPayment(ctx, b.ID, proof.PaymentID); err != nil {
		log.WithError(err).WithField("booking_id", b.ID).Warn("payment id not attached to booking")
	}

	s.notifyBooked(ctx, b)
	log.WithFields(logrus.Fields{"booking_id": b.ID, "ticket": b.TicketNumber}).Info("checkout completed")
	return Confirmation{BookingID: b.ID, TicketNumber: b.TicketNumber}, nil
}

// CreateBooking books seats without a gateway payment (box office and
// operator bookings) and sends the usual notifications.
func (s *BookingSaga) CreateBooking(ctx context.Context, userID string, req model.BookingRequest) (*model.Booking, error) {
	if req.MovieTitle == "" && req.ShowtimeID != "" {
		info := s.enrich(ctx, req.ShowtimeID)
		req.MovieID = firstNonEmpty(req.MovieID, info.MovieID)
		req.TheaterID = firstNonEmpty(req.TheaterID, info.TheaterID)
		req.MovieTitle, req.TheaterName, req.ScreenName = info.MovieTitle, info.TheaterName, info.ScreenName
		if req.ShowDateTime == nil {
			req.ShowDateTime = info.ShowDateTime
		}
	}
	b, err := s.ledger.CreateBooking(ctx, userID, req)
	if err != nil {
		return nil, err
	}
	s.notifyBooked(ctx, b)
	return b, nil
}

// ProcessPayment records a payment taken outside the gateway for an
// existing booking and attaches it to the booking on a best-effort basis.
// A zero amount charges the booking total.
func (s *BookingSaga) ProcessPayment(ctx context.Context, bookingID string, amount float64, method string) (*model.PaymentRecord, error) {
	b, err := s.ledger.Get(ctx, bookingID)
	if err != nil {
		return nil, err
	}
	if b.Status == model.BookingCancelled {
		return nil, alreadyCancelled(bookingID)
	}
	if amount <= 0 {
		amount = b.TotalAmount
	}
	rec, err := s.verifier.RecordInternal(ctx, b.UserID, b.ID, amount, method)
	if err != nil {
		return nil, err
	}
	if _, err := s.ledger.ConfirmPayment(ctx, b.ID, rec.TransactionID); err != nil {
		s.log.WithError(err).WithFields(logrus.Fields{"booking_id": b.ID, "transaction_id": rec.TransactionID}).
			Warn("payment recorded but booking not confirmed")
	}
	return rec, nil
}

// alreadyProcessed reports DUPLICATE_PAYMENT when the gateway payment has
// a SUCCESS record.  FAILED attempts do not count.
func (s *BookingSaga) alreadyProcessed(ctx context.Context, paymentID string) error {
	rec, err := s.verifier.Status(ctx, paymentID)
	if err != nil || rec.Status != model.PaymentSuccess {
		return nil
	}
	return &ConflictError{Reason: ReasonDuplicatePayment, Resource: "payment", ID: paymentID,
		Msg: "Payment already processed for booking " + rec.BookingID}
}

// enrich describes the showtime, falling back to placeholders when the
// catalog is missing, slow or failing.
func (s *BookingSaga) enrich(ctx context.Context, showtimeID string) model.ShowtimeInfo {
	fallback := model.UnknownShowtime(showtimeID)
	if s.catalog == nil {
		return fallback
	}
	ctx, cancel := context.WithTimeout(ctx, s.enrichTimeout)
	defer cancel()
	info, err := s.catalog.Lookup(ctx, showtimeID)
	if err != nil {
		uerr := &UpstreamError{Reason: ReasonEnrichmentUnavailable, Service: "showtime", Msg: "lookup failed", Err: err}
		s.log.WithError(uerr).WithField("showtime_id", showtimeID).Warn("showtime enrichment skipped")
		return fallback
	}
	info.MovieTitle = firstNonEmpty(info.MovieTitle, fallback.MovieTitle)
	info.TheaterName = firstNonEmpty(info.TheaterName, fallback.TheaterName)
	info.ScreenName = firstNonEmpty(info.ScreenName, fallback.ScreenName)
	return info
}

func (s *BookingSaga) notifyBooked(ctx context.Context, b *model.Booking) {
	s.notifier.Dispatch(ctx, queue.KindBookingConfirmed, confirmationPayload(b)).Log(s.log)
	s.notifier.Dispatch(ctx, queue.KindAdminNewBooking, adminNewBookingPayload(b)).Log(s.log)
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}

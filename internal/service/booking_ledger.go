package service

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/iliyamo/cinema-booking-saga/internal/model"
	"github.com/iliyamo/cinema-booking-saga/internal/queue"
	"github.com/iliyamo/cinema-booking-saga/internal/repository"
	"github.com/iliyamo/cinema-booking-saga/internal/utils"
)

// LedgerConfig tunes booking rules.
type LedgerConfig struct {
	// CancellationFeePercent is withheld from refunds.  Zero means 10.
	CancellationFeePercent float64
	// ReassignValidateFirst makes seat reassignment all-or-nothing.  When
	// false, the old seats are released before the new ones are checked
	// and stay released if the new seats are rejected; the booking is then
	// left without seats.
	ReassignValidateFirst bool
}

// BookingLedger owns booking records and drives their state machine:
//
//	CONFIRMED --RequestCancellation--> CANCELLATION_PENDING --Cancel--> CANCELLED
//	CONFIRMED --Cancel--> CANCELLED
//
// CANCELLED is terminal.  Operations on one booking id are serialized so a
// cancel never races a reassignment.
type BookingLedger struct {
	store    BookingStore
	seats    *SeatInventory
	notifier *NotificationDispatcher
	warnings WarningSink
	locks    *keyedMutex
	cfg      LedgerConfig
	log      *logrus.Logger
	now      func() time.Time
}

func NewBookingLedger(store BookingStore, seats *SeatInventory, notifier *NotificationDispatcher, warnings WarningSink, cfg LedgerConfig, log *logrus.Logger) *BookingLedger {
	if log == nil {
		log = logrus.StandardLogger()
	}
	if cfg.CancellationFeePercent <= 0 || cfg.CancellationFeePercent > 100 {
		cfg.CancellationFeePercent = 10
	}
	if warnings == nil {
		warnings = NewAlertSink(nil, 0, log)
	}
	if notifier == nil {
		notifier = NewNotificationDispatcher(nil, nil, 0, log)
	}
	return &BookingLedger{
		store:    store,
		seats:    seats,
		notifier: notifier,
		warnings: warnings,
		locks:    newKeyedMutex(),
		cfg:      cfg,
		log:      log,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// CreateBooking validates the requested seats against one snapshot of the
// showtime, writes a CONFIRMED booking and then claims the seats.
//
// If the claim loses a race to another booker after the snapshot, the
// booking row is removed again and the seat conflict is returned.  Any
// other claim failure leaves the booking in place and raises an
// InconsistencyWarning.
func (l *BookingLedger) CreateBooking(ctx context.Context, userID string, req model.BookingRequest) (*model.Booking, error) {
	if len(req.Seats) == 0 {
		return nil, noSeatsSelected()
	}
	if req.ShowtimeID == "" {
		return nil, &ValidationError{Reason: ReasonMalformedInput, Field: "showtime_id", Msg: "is required"}
	}
	if userID == "" {
		return nil, &ValidationError{Reason: ReasonMalformedInput, Field: "user_id", Msg: "is required"}
	}

	snapshot, err := l.seats.ListSeats(ctx, req.ShowtimeID)
	if err != nil {
		return nil, err
	}
	chosen, err := l.seats.Check(snapshot, req.Seats, userID)
	if err != nil {
		return nil, err
	}
	ids, labels := seatIDsAndLabels(chosen)
	if len(req.SeatLabels) == len(chosen) {
		labels = append([]string(nil), req.SeatLabels...)
	}

	b := &model.Booking{
		ID:            utils.NewID(),
		UserID:        userID,
		ShowtimeID:    req.ShowtimeID,
		MovieID:       req.MovieID,
		TheaterID:     req.TheaterID,
		MovieTitle:    req.MovieTitle,
		TheaterName:   req.TheaterName,
		ScreenName:    req.ScreenName,
		ShowDateTime:  req.ShowDateTime,
		Seats:         ids,
		SeatLabels:    labels,
		TotalAmount:   req.TotalAmount,
		Status:        model.BookingConfirmed,
		CustomerName:  req.CustomerName,
		CustomerEmail: req.CustomerEmail,
		CustomerPhone: req.CustomerPhone,
		PaymentMethod: model.PaymentMethodOnline,
		TicketNumber:  utils.TicketNumber(),
		QRCode:        utils.QRCode(),
		BookingDate:   l.now(),
	}
	if err := l.store.Create(ctx, b); err != nil {
		return nil, fmt.Errorf("save booking: %w", err)
	}

	if _, err := l.seats.ValidateAndClaim(ctx, b.ShowtimeID, ids, userID); err != nil {
		if IsSeatConflict(err) || IsNotFound(err) || IsValidation(err) {
			if derr := l.store.Delete(context.WithoutCancel(ctx), b.ID); derr != nil && !errors.Is(derr, repository.ErrNotFound) {
				l.warnings.Warn(ctx, l.warning(queue.BookingWithoutSeats, b,
					fmt.Sprintf("seat claim rejected (%v) and booking could not be removed: %v", err, derr)))
			}
			return nil, err
		}
		l.warnings.Warn(ctx, l.warning(queue.BookingWithoutSeats, b, "seat claim failed after booking was saved: "+err.Error()))
		return b, nil
	}

	l.log.WithFields(logrus.Fields{
		"booking_id":  b.ID,
		"ticket":      b.TicketNumber,
		"showtime_id": b.ShowtimeID,
		"seats":       b.SeatLabels,
	}).Info("booking created")
	return b, nil
}

// RequestCancellation moves a CONFIRMED booking to CANCELLATION_PENDING and
// alerts the operator.  Any other state fails with INVALID_STATE and leaves
// the booking untouched.
func (l *BookingLedger) RequestCancellation(ctx context.Context, id, reason string) (*model.Booking, error) {
	unlock := l.locks.Lock(id)
	defer unlock()

	b, err := l.store.Update(ctx, id, func(b *model.Booking) error {
		if b.Status != model.BookingConfirmed {
			return invalidState(id, fmt.Sprintf("Only confirmed bookings can request cancellation, booking is %s", b.Status))
		}
		now := l.now()
		b.Status = model.BookingCancellationPending
		b.CancellationReason = reason
		b.CancellationRequestedAt = &now
		return nil
	})
	if err != nil {
		return nil, storeErr(err, id)
	}
	l.notifier.Dispatch(ctx, queue.KindCancellationRequested, cancellationRequestPayload(b)).Log(l.log)
	return b, nil
}

// Cancel releases the booking's seats, refunds the amount minus the
// cancellation fee and marks the booking CANCELLED.  It works from any
// non-terminal state.
func (l *BookingLedger) Cancel(ctx context.Context, id, reason string) (*model.Booking, error) {
	unlock := l.locks.Lock(id)
	defer unlock()

	cur, err := l.store.Get(ctx, id)
	if err != nil {
		return nil, storeErr(err, id)
	}
	if cur.Status == model.BookingCancelled {
		return nil, alreadyCancelled(id)
	}
	if err := l.seats.Release(ctx, cur.ShowtimeID, cur.Seats); err != nil {
		return nil, fmt.Errorf("release seats: %w", err)
	}

	b, err := l.store.Update(ctx, id, func(b *model.Booking) error {
		if b.Status == model.BookingCancelled {
			return alreadyCancelled(id)
		}
		refund := l.refundFor(b.TotalAmount)
		now := l.now()
		b.Status = model.BookingCancelled
		b.RefundAmount = &refund
		b.RefundDate = &now
		if reason != "" {
			b.CancellationReason = reason
		}
		return nil
	})
	if err != nil {
		l.warnings.Warn(ctx, l.warning(queue.SeatsReleasedNotCancelled, cur, "seats released but booking not cancelled: "+err.Error()))
		return nil, storeErr(err, id)
	}

	l.log.WithFields(logrus.Fields{"booking_id": id, "refund": *b.RefundAmount}).Info("booking cancelled")
	l.notifier.Dispatch(ctx, queue.KindBookingCancelled, cancelledPayload(b)).Log(l.log)
	return b, nil
}

// ReassignSeats moves a booking to newRefs.  See LedgerConfig for the two
// failure behaviours.
func (l *BookingLedger) ReassignSeats(ctx context.Context, id string, newRefs []string) (*model.Booking, error) {
	if len(newRefs) == 0 {
		return nil, noSeatsSelected()
	}
	unlock := l.locks.Lock(id)
	defer unlock()

	cur, err := l.store.Get(ctx, id)
	if err != nil {
		return nil, storeErr(err, id)
	}
	if cur.Status == model.BookingCancelled {
		return nil, invalidState(id, "Cannot reassign seats of a cancelled booking")
	}

	var claimed []model.Seat
	if l.cfg.ReassignValidateFirst {
		claimed, err = l.seats.Swap(ctx, cur.ShowtimeID, cur.Seats, newRefs, cur.UserID)
		if err != nil {
			return nil, err
		}
	} else {
		if err := l.seats.Release(ctx, cur.ShowtimeID, cur.Seats); err != nil {
			return nil, fmt.Errorf("release seats: %w", err)
		}
		claimed, err = l.seats.ValidateAndClaim(ctx, cur.ShowtimeID, newRefs, cur.UserID)
		if err != nil {
			cause := "old seats released but new seats rejected: " + err.Error()
			// the released seats may be sold again; the booking must not
			// release them a second time on cancel or delete
			if _, uerr := l.store.Update(context.WithoutCancel(ctx), id, func(b *model.Booking) error {
				b.Seats = []string{}
				b.SeatLabels = []string{}
				return nil
			}); uerr != nil {
				cause += "; seat list not cleared: " + uerr.Error()
			}
			l.warnings.Warn(ctx, l.warning(queue.BookingWithoutSeats, cur, cause))
			return nil, err
		}
	}

	ids, labels := seatIDsAndLabels(claimed)
	b, err := l.store.Update(ctx, id, func(b *model.Booking) error {
		b.Seats = ids
		b.SeatLabels = labels
		return nil
	})
	if err != nil {
		w := l.warning(queue.BookingWithoutSeats, cur, "new seats claimed but booking not updated: "+err.Error())
		w.Seats = ids
		l.warnings.Warn(ctx, w)
		return nil, storeErr(err, id)
	}
	l.log.WithFields(logrus.Fields{"booking_id": id, "seats": labels}).Info("booking seats reassigned")
	return b, nil
}

// ConfirmPayment attaches a payment transaction to the booking and sets it
// CONFIRMED, also from CANCELLATION_PENDING.  A CANCELLED booking is never
// revived.
func (l *BookingLedger) ConfirmPayment(ctx context.Context, id, transactionID string) (*model.Booking, error) {
	unlock := l.locks.Lock(id)
	defer unlock()

	b, err := l.store.Update(ctx, id, func(b *model.Booking) error {
		if b.Status == model.BookingCancelled {
			return alreadyCancelled(id)
		}
		b.PaymentID = transactionID
		b.Status = model.BookingConfirmed
		return nil
	})
	return b, storeErr(err, id)
}

// Scan checks a ticket in at the gate.  Scanning again is harmless; a
// cancelled booking cannot be scanned.
func (l *BookingLedger) Scan(ctx context.Context, id string) (*model.Booking, error) {
	unlock := l.locks.Lock(id)
	defer unlock()

	b, err := l.store.Update(ctx, id, func(b *model.Booking) error {
		if b.Status == model.BookingCancelled {
			return &ConflictError{Reason: ReasonAlreadyCancelled, Resource: "booking", ID: id, Msg: "Cannot scan cancelled booking"}
		}
		b.Status = model.BookingConfirmed
		return nil
	})
	return b, storeErr(err, id)
}

// Delete removes a booking after releasing any seats it still holds.
func (l *BookingLedger) Delete(ctx context.Context, id string) error {
	unlock := l.locks.Lock(id)
	defer unlock()

	cur, err := l.store.Get(ctx, id)
	if err != nil {
		return storeErr(err, id)
	}
	if cur.Status != model.BookingCancelled {
		if err := l.seats.Release(ctx, cur.ShowtimeID, cur.Seats); err != nil {
			return fmt.Errorf("release seats: %w", err)
		}
	}
	return storeErr(l.store.Delete(ctx, id), id)
}

func (l *BookingLedger) Get(ctx context.Context, id string) (*model.Booking, error) {
	b, err := l.store.Get(ctx, id)
	return b, storeErr(err, id)
}

// ListByUser returns the user's bookings, newest first.
func (l *BookingLedger) ListByUser(ctx context.Context, userID string) ([]model.Booking, error) {
	return l.store.ListByUser(ctx, userID)
}

func (l *BookingLedger) ListAll(ctx context.Context) ([]model.Booking, error) {
	return l.store.ListAll(ctx)
}

// ListCancellationRequests returns bookings waiting for an operator decision.
func (l *BookingLedger) ListCancellationRequests(ctx context.Context) ([]model.Booking, error) {
	return l.store.ListByStatus(ctx, model.BookingCancellationPending)
}

// GetStats returns aggregate booking counts.  Figures may lag concurrent writes.
func (l *BookingLedger) GetStats(ctx context.Context) (model.BookingStats, error) {
	return l.store.Stats(ctx, l.now())
}

func (l *BookingLedger) refundFor(total float64) float64 {
	refund := total * (100 - l.cfg.CancellationFeePercent) / 100
	return math.Round(refund*100) / 100
}

func (l *BookingLedger) warning(kind string, b *model.Booking, cause string) queue.InconsistencyWarning {
	return queue.InconsistencyWarning{
		Kind:       kind,
		BookingID:  b.ID,
		ShowtimeID: b.ShowtimeID,
		UserID:     b.UserID,
		Amount:     b.TotalAmount,
		Seats:      append([]string(nil), b.Seats...),
		Cause:      cause,
		DetectedAt: l.now().Format(time.RFC3339),
	}
}

func seatIDsAndLabels(seats []model.Seat) ([]string, []string) {
	ids := make([]string, 0, len(seats))
	labels := make([]string, 0, len(seats))
	for _, s := range seats {
		ids = append(ids, s.ID)
		labels = append(labels, s.Label())
	}
	return ids, labels
}

// storeErr maps repository sentinels onto the service error taxonomy.
func storeErr(err error, id string) error {
	if errors.Is(err, repository.ErrNotFound) {
		return bookingNotFound(id)
	}
	return err
}

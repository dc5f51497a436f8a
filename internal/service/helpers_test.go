package service

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/sirupsen/logrus"
	logtest "github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/cinema-booking-saga/internal/model"
	"github.com/iliyamo/cinema-booking-saga/internal/queue"
	"github.com/iliyamo/cinema-booking-saga/internal/repository"
)

type recordingSink struct {
	mu       sync.Mutex
	warnings []queue.InconsistencyWarning
}

func (s *recordingSink) Warn(_ context.Context, w queue.InconsistencyWarning) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.warnings = append(s.warnings, w)
}

func (s *recordingSink) kinds() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, 0, len(s.warnings))
	for _, w := range s.warnings {
		out = append(out, w.Kind)
	}
	return out
}

type recordingNotifier struct {
	mu   sync.Mutex
	sent []queue.Notification
	err  error
}

func (n *recordingNotifier) Send(_ context.Context, msg queue.Notification) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.err != nil {
		return n.err
	}
	n.sent = append(n.sent, msg)
	return nil
}

func (n *recordingNotifier) kinds() []queue.Kind {
	n.mu.Lock()
	defer n.mu.Unlock()
	out := make([]queue.Kind, 0, len(n.sent))
	for _, m := range n.sent {
		out = append(out, m.Kind)
	}
	return out
}

// failingBookingStore wraps a store and fails selected operations.
type failingBookingStore struct {
	*repository.MemoryBookingStore
	failUpdate bool
	failDelete bool
}

func (s *failingBookingStore) Update(ctx context.Context, id string, fn func(b *model.Booking) error) (*model.Booking, error) {
	if s.failUpdate {
		return nil, errors.New("db unavailable")
	}
	return s.MemoryBookingStore.Update(ctx, id, fn)
}

func (s *failingBookingStore) Delete(ctx context.Context, id string) error {
	if s.failDelete {
		return errors.New("db unavailable")
	}
	return s.MemoryBookingStore.Delete(ctx, id)
}

type fixture struct {
	log      *logrus.Logger
	hook     *logtest.Hook
	seats    *repository.MemorySeatStore
	bookings *repository.MemoryBookingStore
	inv      *SeatInventory
	ledger   *BookingLedger
	sink     *recordingSink
	notifier *recordingNotifier
}

func newFixture(t *testing.T, cfg LedgerConfig) *fixture {
	t.Helper()
	log, hook := logtest.NewNullLogger()
	f := &fixture{
		log:      log,
		hook:     hook,
		seats:    repository.NewMemorySeatStore(),
		bookings: repository.NewMemoryBookingStore(),
		sink:     &recordingSink{},
		notifier: &recordingNotifier{},
	}
	f.inv = NewSeatInventory(f.seats, log)
	dispatcher := NewNotificationDispatcher(f.notifier, NewCircuitBreaker(3, 0), 0, log)
	f.ledger = NewBookingLedger(f.bookings, f.inv, dispatcher, f.sink, cfg, log)
	_, err := f.inv.Initialize(context.Background(), "show-1", 2, 5)
	require.NoError(t, err)
	return f
}

func (f *fixture) book(t *testing.T, userID string, seats ...string) *model.Booking {
	t.Helper()
	b, err := f.ledger.CreateBooking(context.Background(), userID, model.BookingRequest{
		ShowtimeID:    "show-1",
		Seats:         seats,
		TotalAmount:   float64(500 * len(seats)),
		CustomerName:  "Asha",
		CustomerEmail: "asha@example.com",
	})
	require.NoError(t, err)
	return b
}

func (f *fixture) seatMap(t *testing.T) map[string]model.Seat {
	t.Helper()
	seats, err := f.inv.ListSeats(context.Background(), "show-1")
	require.NoError(t, err)
	out := make(map[string]model.Seat, len(seats))
	for _, s := range seats {
		out[s.Label()] = s
	}
	return out
}

func reasonOf(t *testing.T, err error) Reason {
	t.Helper()
	r, ok := ReasonOf(err)
	require.True(t, ok, "error %v carries no reason", err)
	return r
}

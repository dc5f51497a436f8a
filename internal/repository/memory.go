package repository

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/iliyamo/cinema-booking-saga/internal/model"
)

// MemorySeatStore keeps seat maps in process.  Each showtime has its own
// mutex so concurrent claims on one showtime serialize while other
// showtimes are unaffected.
type MemorySeatStore struct {
	mu        sync.Mutex
	showtimes map[string]*showtimeSeats
}

type showtimeSeats struct {
	mu    sync.Mutex
	seats []model.Seat
}

func NewMemorySeatStore() *MemorySeatStore {
	return &MemorySeatStore{showtimes: map[string]*showtimeSeats{}}
}

func (s *MemorySeatStore) entry(showtimeID string) *showtimeSeats {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.showtimes[showtimeID]
	if !ok {
		e = &showtimeSeats{}
		s.showtimes[showtimeID] = e
	}
	return e
}

// lookup never creates an entry; unknown showtimes yield nil.
func (s *MemorySeatStore) lookup(showtimeID string) *showtimeSeats {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.showtimes[showtimeID]
}

func (s *MemorySeatStore) ListByShowtime(_ context.Context, showtimeID string) ([]model.Seat, error) {
	e := s.lookup(showtimeID)
	if e == nil {
		return []model.Seat{}, nil
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]model.Seat, len(e.seats))
	copy(out, e.seats)
	return out, nil
}

// MutateShowtime runs fn on a copy of the showtime's seats while holding
// the showtime lock and publishes the copy only when fn succeeds.
func (s *MemorySeatStore) MutateShowtime(ctx context.Context, showtimeID string, fn func(seats []model.Seat) error) error {
	e := s.lookup(showtimeID)
	if e == nil {
		if err := ctx.Err(); err != nil {
			return err
		}
		return fn([]model.Seat{})
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if err := ctx.Err(); err != nil {
		return err
	}
	work := make([]model.Seat, len(e.seats))
	copy(work, e.seats)
	if err := fn(work); err != nil {
		return err
	}
	e.seats = work
	return nil
}

func (s *MemorySeatStore) CreateSeats(_ context.Context, showtimeID string, seats []model.Seat) error {
	e := s.entry(showtimeID)
	e.mu.Lock()
	defer e.mu.Unlock()
	if len(e.seats) > 0 {
		return ErrConflict
	}
	e.seats = make([]model.Seat, len(seats))
	copy(e.seats, seats)
	return nil
}

// MemoryBookingStore keeps bookings in process.
type MemoryBookingStore struct {
	mu       sync.RWMutex
	bookings map[string]*model.Booking
}

func NewMemoryBookingStore() *MemoryBookingStore {
	return &MemoryBookingStore{bookings: map[string]*model.Booking{}}
}

func (s *MemoryBookingStore) Create(_ context.Context, b *model.Booking) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.bookings[b.ID]; ok {
		return ErrConflict
	}
	for _, other := range s.bookings {
		if other.TicketNumber == b.TicketNumber {
			return ErrConflict
		}
	}
	s.bookings[b.ID] = cloneBooking(b)
	return nil
}

func (s *MemoryBookingStore) Get(_ context.Context, id string) (*model.Booking, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	b, ok := s.bookings[id]
	if !ok {
		return nil, ErrNotFound
	}
	return cloneBooking(b), nil
}

func (s *MemoryBookingStore) Update(_ context.Context, id string, fn func(b *model.Booking) error) (*model.Booking, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cur, ok := s.bookings[id]
	if !ok {
		return nil, ErrNotFound
	}
	work := cloneBooking(cur)
	if err := fn(work); err != nil {
		return nil, err
	}
	s.bookings[id] = cloneBooking(work)
	return work, nil
}

func (s *MemoryBookingStore) Delete(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.bookings[id]; !ok {
		return ErrNotFound
	}
	delete(s.bookings, id)
	return nil
}

func (s *MemoryBookingStore) ListByUser(_ context.Context, userID string) ([]model.Booking, error) {
	return s.filter(func(b *model.Booking) bool { return b.UserID == userID }), nil
}

func (s *MemoryBookingStore) ListByStatus(_ context.Context, status model.BookingStatus) ([]model.Booking, error) {
	return s.filter(func(b *model.Booking) bool { return b.Status == status }), nil
}

func (s *MemoryBookingStore) ListAll(_ context.Context) ([]model.Booking, error) {
	return s.filter(func(*model.Booking) bool { return true }), nil
}

func (s *MemoryBookingStore) Stats(_ context.Context, now time.Time) (model.BookingStats, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var st model.BookingStats
	week, month := now.AddDate(0, 0, -7), now.AddDate(0, 0, -30)
	for _, b := range s.bookings {
		st.TotalBookings++
		if b.Status == model.BookingCancelled {
			st.CancelledBookings++
		} else {
			st.TotalSeatsSold += len(b.Seats)
		}
		if !b.BookingDate.Before(week) {
			st.LastSevenDays++
		}
		if !b.BookingDate.Before(month) {
			st.LastThirtyDays++
		}
	}
	return st, nil
}

// filter returns matching bookings newest first.
func (s *MemoryBookingStore) filter(keep func(b *model.Booking) bool) []model.Booking {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := []model.Booking{}
	for _, b := range s.bookings {
		if keep(b) {
			out = append(out, *cloneBooking(b))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].BookingDate.After(out[j].BookingDate) })
	return out
}

func cloneBooking(b *model.Booking) *model.Booking {
	c := *b
	c.Seats = append([]string(nil), b.Seats...)
	c.SeatLabels = append([]string(nil), b.SeatLabels...)
	if b.RefundAmount != nil {
		v := *b.RefundAmount
		c.RefundAmount = &v
	}
	c.ShowDateTime = cloneTime(b.ShowDateTime)
	c.RefundDate = cloneTime(b.RefundDate)
	c.CancellationRequestedAt = cloneTime(b.CancellationRequestedAt)
	return &c
}

func cloneTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	v := *t
	return &v
}

// MemoryPaymentStore keeps payment records in process.
type MemoryPaymentStore struct {
	mu       sync.RWMutex
	payments map[string]model.PaymentRecord
}

func NewMemoryPaymentStore() *MemoryPaymentStore {
	return &MemoryPaymentStore{payments: map[string]model.PaymentRecord{}}
}

func (s *MemoryPaymentStore) Create(_ context.Context, p *model.PaymentRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.payments[p.TransactionID]; ok {
		return ErrConflict
	}
	s.payments[p.TransactionID] = *p
	return nil
}

func (s *MemoryPaymentStore) Get(_ context.Context, transactionID string) (*model.PaymentRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.payments[transactionID]
	if !ok {
		return nil, ErrNotFound
	}
	return &p, nil
}

func (s *MemoryPaymentStore) Stats(_ context.Context, now time.Time) (model.PaymentStats, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var st model.PaymentStats
	week, month := now.AddDate(0, 0, -7), now.AddDate(0, 0, -30)
	for _, p := range s.payments {
		switch p.Status {
		case model.PaymentFailed:
			st.FailedPayments++
		case model.PaymentSuccess:
			st.SuccessfulPayments++
			st.TotalRevenue += p.Amount
			if !p.CreatedAt.Before(week) {
				st.RevenueLast7Days += p.Amount
			}
			if !p.CreatedAt.Before(month) {
				st.RevenueLast30Days += p.Amount
			}
		}
	}
	return st, nil
}

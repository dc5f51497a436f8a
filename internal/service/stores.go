package service

import (
	"context"
	"time"

	"github.com/iliyamo/cinema-booking-saga/internal/model"
)

// SeatStore persists seat maps.  MutateShowtime must give fn exclusive
// access to the showtime's seats and persist fn's changes atomically; this
// is the only place seat claims are serialized.
type SeatStore interface {
	ListByShowtime(ctx context.Context, showtimeID string) ([]model.Seat, error)
	MutateShowtime(ctx context.Context, showtimeID string, fn func(seats []model.Seat) error) error
	CreateSeats(ctx context.Context, showtimeID string, seats []model.Seat) error
}

// BookingStore persists bookings.  Update applies fn to the stored booking
// atomically with respect to other updates of the same booking.
type BookingStore interface {
	Create(ctx context.Context, b *model.Booking) error
	Get(ctx context.Context, id string) (*model.Booking, error)
	Update(ctx context.Context, id string, fn func(b *model.Booking) error) (*model.Booking, error)
	Delete(ctx context.Context, id string) error
	ListByUser(ctx context.Context, userID string) ([]model.Booking, error)
	ListByStatus(ctx context.Context, status model.BookingStatus) ([]model.Booking, error)
	ListAll(ctx context.Context) ([]model.Booking, error)
	Stats(ctx context.Context, now time.Time) (model.BookingStats, error)
}

// PaymentStore persists payment records.
type PaymentStore interface {
	Create(ctx context.Context, p *model.PaymentRecord) error
	Get(ctx context.Context, transactionID string) (*model.PaymentRecord, error)
	Stats(ctx context.Context, now time.Time) (model.PaymentStats, error)
}

package repository

import (
	"context"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/go-sql-driver/mysql"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/cinema-booking-saga/internal/model"
)

var bookingCols = []string{
	"id", "user_id", "showtime_id", "movie_id", "theater_id", "movie_title", "theater_name", "screen_name",
	"show_date_time", "seat_ids", "seat_labels", "total_amount", "status", "customer_name", "customer_email",
	"customer_phone", "payment_method", "payment_id", "ticket_number", "qr_code", "refund_amount", "refund_date",
	"cancellation_reason", "cancellation_requested_at", "booking_date",
}

var bookedAt = time.Date(2025, 3, 1, 18, 0, 0, 0, time.UTC)

func confirmedRow() *sqlmock.Rows {
	return sqlmock.NewRows(bookingCols).AddRow(
		"b1", "u1", "show-1", "m1", "t1", "Heat", "Odeon", "Screen 2",
		nil, `["s1","s2"]`, `["A1","A2"]`, 1000.0, "CONFIRMED", "Ann", "ann@example.com",
		"", "ONLINE", "", "TKTAB12CD34", "QR_x", nil, nil,
		"", nil, bookedAt,
	)
}

func newBookingMock(t *testing.T) (*BookingRepo, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return NewBookingRepo(db), mock
}

func TestBookingRepoGetDecodesRow(t *testing.T) {
	repo, mock := newBookingMock(t)
	mock.ExpectQuery(regexp.QuoteMeta("FROM bookings WHERE id = ?")).WithArgs("b1").WillReturnRows(confirmedRow())

	b, err := repo.Get(context.Background(), "b1")
	require.NoError(t, err)
	assert.Equal(t, []string{"s1", "s2"}, b.Seats)
	assert.Equal(t, []string{"A1", "A2"}, b.SeatLabels)
	assert.Equal(t, model.BookingConfirmed, b.Status)
	assert.Equal(t, 1000.0, b.TotalAmount)
	assert.Nil(t, b.RefundAmount)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestBookingRepoGetNotFound(t *testing.T) {
	repo, mock := newBookingMock(t)
	mock.ExpectQuery(regexp.QuoteMeta("FROM bookings WHERE id = ?")).WithArgs("missing").WillReturnRows(sqlmock.NewRows(bookingCols))

	_, err := repo.Get(context.Background(), "missing")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestBookingRepoCreateDuplicateTicket(t *testing.T) {
	repo, mock := newBookingMock(t)
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO bookings")).WillReturnError(&mysql.MySQLError{Number: 1062, Message: "Duplicate entry"})

	err := repo.Create(context.Background(), &model.Booking{ID: "b1", Seats: []string{"s1"}, BookingDate: bookedAt})
	assert.ErrorIs(t, err, ErrConflict)
}

func TestBookingRepoUpdateLocksAndWrites(t *testing.T) {
	repo, mock := newBookingMock(t)
	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta("FROM bookings WHERE id = ? FOR UPDATE")).WithArgs("b1").WillReturnRows(confirmedRow())
	mock.ExpectExec(regexp.QuoteMeta("UPDATE bookings SET seat_ids = ?")).
		WithArgs(`["s1","s2"]`, `["A1","A2"]`, "CANCELLATION_PENDING", "", nil, nil, "changed plans", sqlmock.AnyArg(), "b1").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	b, err := repo.Update(context.Background(), "b1", func(b *model.Booking) error {
		now := time.Now().UTC()
		b.Status = model.BookingCancellationPending
		b.CancellationReason = "changed plans"
		b.CancellationRequestedAt = &now
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, model.BookingCancellationPending, b.Status)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestBookingRepoStats(t *testing.T) {
	repo, mock := newBookingMock(t)
	now := time.Date(2025, 3, 31, 0, 0, 0, 0, time.UTC)
	mock.ExpectQuery(regexp.QuoteMeta("JSON_LENGTH(seat_ids)")).
		WithArgs(now.AddDate(0, 0, -7), now.AddDate(0, 0, -30)).
		WillReturnRows(sqlmock.NewRows([]string{"a", "b", "c", "d", "e"}).AddRow(10, 2, 3, 8, 17))

	st, err := repo.Stats(context.Background(), now)
	require.NoError(t, err)
	assert.Equal(t, model.BookingStats{TotalBookings: 10, CancelledBookings: 2, LastSevenDays: 3, LastThirtyDays: 8, TotalSeatsSold: 17}, st)
}

package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/iliyamo/cinema-booking-saga/internal/model"
)

const bookingColumns = `id, user_id, showtime_id, movie_id, theater_id, movie_title, theater_name, screen_name,
	show_date_time, seat_ids, seat_labels, total_amount, status, customer_name, customer_email, customer_phone,
	payment_method, payment_id, ticket_number, qr_code, refund_amount, refund_date, cancellation_reason,
	cancellation_requested_at, booking_date`

// BookingRepo provides data access to the bookings table.  Seat ids and
// labels are stored as JSON arrays so a booking is always read and written
// as one row.
type BookingRepo struct {
	db *sql.DB
}

// NewBookingRepo returns a new BookingRepo bound to the provided database.
func NewBookingRepo(db *sql.DB) *BookingRepo { return &BookingRepo{db: db} }

// Create inserts a new booking.  A duplicate id or ticket number yields
// ErrConflict.
func (r *BookingRepo) Create(ctx context.Context, b *model.Booking) error {
	seatIDs, seatLabels, err := encodeSeats(b)
	if err != nil {
		return err
	}
	_, err = r.db.ExecContext(ctx,
		`INSERT INTO bookings (`+bookingColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		b.ID, b.UserID, b.ShowtimeID, b.MovieID, b.TheaterID, b.MovieTitle, b.TheaterName, b.ScreenName,
		nullableTime(b.ShowDateTime), seatIDs, seatLabels, b.TotalAmount, string(b.Status),
		b.CustomerName, b.CustomerEmail, b.CustomerPhone, b.PaymentMethod, b.PaymentID,
		b.TicketNumber, b.QRCode, nullableFloat(b.RefundAmount), nullableTime(b.RefundDate),
		b.CancellationReason, nullableTime(b.CancellationRequestedAt), b.BookingDate.UTC(),
	)
	if isDuplicateKey(err) {
		return ErrConflict
	}
	return err
}

// Get returns a booking by id or ErrNotFound.
func (r *BookingRepo) Get(ctx context.Context, id string) (*model.Booking, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+bookingColumns+` FROM bookings WHERE id = ?`, id)
	b, err := scanBooking(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	return b, err
}

// Update locks the booking row, applies fn and writes back the mutable
// columns.  Returning an error from fn aborts without writing.
func (r *BookingRepo) Update(ctx context.Context, id string, fn func(b *model.Booking) error) (*model.Booking, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()

	b, err := scanBooking(tx.QueryRowContext(ctx, `SELECT `+bookingColumns+` FROM bookings WHERE id = ? FOR UPDATE`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	if err := fn(b); err != nil {
		return nil, err
	}
	seatIDs, seatLabels, err := encodeSeats(b)
	if err != nil {
		return nil, err
	}
	if _, err := tx.ExecContext(ctx,
		`UPDATE bookings SET seat_ids = ?, seat_labels = ?, status = ?, payment_id = ?, refund_amount = ?,
			refund_date = ?, cancellation_reason = ?, cancellation_requested_at = ? WHERE id = ?`,
		seatIDs, seatLabels, string(b.Status), b.PaymentID, nullableFloat(b.RefundAmount),
		nullableTime(b.RefundDate), b.CancellationReason, nullableTime(b.CancellationRequestedAt), b.ID,
	); err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, err
	}
	committed = true
	return b, nil
}

// Delete removes a booking.  Deleting a missing booking yields ErrNotFound.
func (r *BookingRepo) Delete(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM bookings WHERE id = ?`, id)
	if err != nil {
		return err
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return ErrNotFound
	}
	return nil
}

// ListByUser returns the user's bookings, newest first.
func (r *BookingRepo) ListByUser(ctx context.Context, userID string) ([]model.Booking, error) {
	return r.list(ctx, `SELECT `+bookingColumns+` FROM bookings WHERE user_id = ? ORDER BY booking_date DESC`, userID)
}

// ListByStatus returns bookings in the given status, newest first.
func (r *BookingRepo) ListByStatus(ctx context.Context, status model.BookingStatus) ([]model.Booking, error) {
	return r.list(ctx, `SELECT `+bookingColumns+` FROM bookings WHERE status = ? ORDER BY booking_date DESC`, string(status))
}

// ListAll returns every booking, newest first.
func (r *BookingRepo) ListAll(ctx context.Context) ([]model.Booking, error) {
	return r.list(ctx, `SELECT `+bookingColumns+` FROM bookings ORDER BY booking_date DESC`)
}

// Stats aggregates booking counts relative to now in a single scan.
func (r *BookingRepo) Stats(ctx context.Context, now time.Time) (model.BookingStats, error) {
	var st model.BookingStats
	err := r.db.QueryRowContext(ctx,
		`SELECT COUNT(*),
			COALESCE(SUM(status = 'CANCELLED'), 0),
			COALESCE(SUM(booking_date >= ?), 0),
			COALESCE(SUM(booking_date >= ?), 0),
			COALESCE(SUM(CASE WHEN status <> 'CANCELLED' THEN JSON_LENGTH(seat_ids) ELSE 0 END), 0)
		FROM bookings`,
		now.UTC().AddDate(0, 0, -7), now.UTC().AddDate(0, 0, -30),
	).Scan(&st.TotalBookings, &st.CancelledBookings, &st.LastSevenDays, &st.LastThirtyDays, &st.TotalSeatsSold)
	return st, err
}

func (r *BookingRepo) list(ctx context.Context, query string, args ...interface{}) ([]model.Booking, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []model.Booking{}
	for rows.Next() {
		b, err := scanBooking(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *b)
	}
	return out, rows.Err()
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanBooking(sc rowScanner) (*model.Booking, error) {
	var (
		b                           model.Booking
		status                      string
		seatIDs, seatLabels         []byte
		showAt, refundAt, requestAt sql.NullTime
		refund                      sql.NullFloat64
	)
	if err := sc.Scan(&b.ID, &b.UserID, &b.ShowtimeID, &b.MovieID, &b.TheaterID, &b.MovieTitle, &b.TheaterName,
		&b.ScreenName, &showAt, &seatIDs, &seatLabels, &b.TotalAmount, &status, &b.CustomerName,
		&b.CustomerEmail, &b.CustomerPhone, &b.PaymentMethod, &b.PaymentID, &b.TicketNumber, &b.QRCode,
		&refund, &refundAt, &b.CancellationReason, &requestAt, &b.BookingDate); err != nil {
		return nil, err
	}
	b.Status = model.BookingStatus(status)
	if err := json.Unmarshal(seatIDs, &b.Seats); err != nil {
		return nil, fmt.Errorf("decode seat_ids: %w", err)
	}
	if len(seatLabels) > 0 {
		if err := json.Unmarshal(seatLabels, &b.SeatLabels); err != nil {
			return nil, fmt.Errorf("decode seat_labels: %w", err)
		}
	}
	b.ShowDateTime = timePtr(showAt)
	b.RefundDate = timePtr(refundAt)
	b.CancellationRequestedAt = timePtr(requestAt)
	if refund.Valid {
		v := refund.Float64
		b.RefundAmount = &v
	}
	b.BookingDate = b.BookingDate.UTC()
	return &b, nil
}

func encodeSeats(b *model.Booking) (string, string, error) {
	seats := b.Seats
	if seats == nil {
		seats = []string{}
	}
	labels := b.SeatLabels
	if labels == nil {
		labels = []string{}
	}
	ids, err := json.Marshal(seats)
	if err != nil {
		return "", "", err
	}
	lbl, err := json.Marshal(labels)
	if err != nil {
		return "", "", err
	}
	return string(ids), string(lbl), nil
}

func timePtr(t sql.NullTime) *time.Time {
	if !t.Valid {
		return nil
	}
	v := t.Time.UTC()
	return &v
}

func nullableFloat(f *float64) interface{} {
	if f == nil {
		return nil
	}
	return *f
}

package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/iliyamo/cinema-booking-saga/internal/model"
)

const seatColumns = `id, showtime_id, row_label, seat_number, is_booked, is_held, hold_expiry, hold_owner`

// queryer is satisfied by both *sql.DB and *sql.Tx.
type queryer interface {
	QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error)
}

// SeatRepo stores seat maps in the seats table.  Every read-modify-write of
// a showtime's seats runs in one transaction that locks all of the
// showtime's rows, so writers for the same showtime are serialized while
// different showtimes proceed independently.
type SeatRepo struct {
	db *sql.DB
}

// NewSeatRepo returns a new SeatRepo bound to the provided database.
func NewSeatRepo(db *sql.DB) *SeatRepo { return &SeatRepo{db: db} }

// ListByShowtime returns the showtime's seats ordered by row then number.
// An uninitialized showtime yields an empty slice.
func (r *SeatRepo) ListByShowtime(ctx context.Context, showtimeID string) ([]model.Seat, error) {
	return querySeats(ctx, r.db,
		`SELECT `+seatColumns+` FROM seats WHERE showtime_id = ? ORDER BY CHAR_LENGTH(row_label), row_label, seat_number`,
		showtimeID)
}

// MutateShowtime locks every seat row of the showtime with SELECT ... FOR
// UPDATE, hands the seats to fn and writes back the seats fn changed.  When
// fn returns an error the transaction is rolled back and nothing is
// written.
func (r *SeatRepo) MutateShowtime(ctx context.Context, showtimeID string, fn func(seats []model.Seat) error) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()

	seats, err := querySeats(ctx, tx,
		`SELECT `+seatColumns+` FROM seats WHERE showtime_id = ? ORDER BY CHAR_LENGTH(row_label), row_label, seat_number FOR UPDATE`,
		showtimeID)
	if err != nil {
		return err
	}
	before := make([]model.Seat, len(seats))
	copy(before, seats)

	if err := fn(seats); err != nil {
		return err
	}

	for i := range seats {
		s := seats[i]
		if sameSeatState(before[i], s) {
			continue
		}
		if _, err := tx.ExecContext(ctx,
			`UPDATE seats SET is_booked = ?, is_held = ?, hold_expiry = ?, hold_owner = ? WHERE id = ?`,
			s.Booked, s.Held, nullableTime(s.HoldExpiry), nullableString(s.HoldOwner), s.ID,
		); err != nil {
			return err
		}
	}
	if err := tx.Commit(); err != nil {
		return err
	}
	committed = true
	return nil
}

// CreateSeats inserts a complete seat map for a showtime.  It fails with
// ErrConflict when the showtime already has seats.
func (r *SeatRepo) CreateSeats(ctx context.Context, showtimeID string, seats []model.Seat) error {
	if len(seats) == 0 {
		return nil
	}
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()

	var existing int
	if err := tx.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM seats WHERE showtime_id = ? FOR UPDATE`, showtimeID,
	).Scan(&existing); err != nil {
		return err
	}
	if existing > 0 {
		return ErrConflict
	}

	query := `INSERT INTO seats (id, showtime_id, row_label, seat_number, is_booked, is_held) VALUES `
	args := make([]interface{}, 0, len(seats)*6)
	for i, s := range seats {
		if i > 0 {
			query += ","
		}
		query += "(?, ?, ?, ?, ?, ?)"
		args = append(args, s.ID, showtimeID, s.RowLabel, s.Number, s.Booked, s.Held)
	}
	if _, err := tx.ExecContext(ctx, query, args...); err != nil {
		if isDuplicateKey(err) {
			return ErrConflict
		}
		return err
	}
	if err := tx.Commit(); err != nil {
		return err
	}
	committed = true
	return nil
}

func querySeats(ctx context.Context, q queryer, query string, args ...interface{}) ([]model.Seat, error) {
	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	seats := []model.Seat{}
	for rows.Next() {
		var (
			s      model.Seat
			expiry sql.NullTime
			owner  sql.NullString
		)
		if err := rows.Scan(&s.ID, &s.ShowtimeID, &s.RowLabel, &s.Number, &s.Booked, &s.Held, &expiry, &owner); err != nil {
			return nil, fmt.Errorf("scan seat: %w", err)
		}
		if expiry.Valid {
			t := expiry.Time.UTC()
			s.HoldExpiry = &t
		}
		if owner.Valid {
			o := owner.String
			s.HoldOwner = &o
		}
		seats = append(seats, s)
	}
	return seats, rows.Err()
}

func sameSeatState(a, b model.Seat) bool {
	if a.Booked != b.Booked || a.Held != b.Held {
		return false
	}
	if (a.HoldExpiry == nil) != (b.HoldExpiry == nil) || (a.HoldExpiry != nil && !a.HoldExpiry.Equal(*b.HoldExpiry)) {
		return false
	}
	if (a.HoldOwner == nil) != (b.HoldOwner == nil) || (a.HoldOwner != nil && *a.HoldOwner != *b.HoldOwner) {
		return false
	}
	return true
}

func nullableTime(t *time.Time) interface{} {
	if t == nil {
		return nil
	}
	return t.UTC()
}

func nullableString(s *string) interface{} {
	if s == nil {
		return nil
	}
	return *s
}

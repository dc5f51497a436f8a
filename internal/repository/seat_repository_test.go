package repository

import (
	"context"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/cinema-booking-saga/internal/model"
)

var seatCols = []string{"id", "showtime_id", "row_label", "seat_number", "is_booked", "is_held", "hold_expiry", "hold_owner"}

func newMock(t *testing.T) (*SeatRepo, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return NewSeatRepo(db), mock
}

func TestSeatRepoListByShowtimeDecodesHolds(t *testing.T) {
	repo, mock := newMock(t)
	expiry := time.Date(2030, 1, 1, 10, 0, 0, 0, time.UTC)
	mock.ExpectQuery(regexp.QuoteMeta("FROM seats WHERE showtime_id = ?")).
		WithArgs("show-1").
		WillReturnRows(sqlmock.NewRows(seatCols).
			AddRow("s1", "show-1", "A", 1, false, true, expiry, "sess-1").
			AddRow("s2", "show-1", "A", 2, true, false, nil, nil))

	seats, err := repo.ListByShowtime(context.Background(), "show-1")
	require.NoError(t, err)
	require.Len(t, seats, 2)
	assert.Equal(t, "A1", seats[0].Label())
	require.NotNil(t, seats[0].HoldOwner)
	assert.Equal(t, "sess-1", *seats[0].HoldOwner)
	assert.True(t, seats[0].HoldExpiry.Equal(expiry))
	assert.Nil(t, seats[1].HoldExpiry)
	assert.True(t, seats[1].Booked)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSeatRepoMutateShowtimeWritesOnlyChangedSeats(t *testing.T) {
	repo, mock := newMock(t)
	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta("FROM seats WHERE showtime_id = ?") + ".*FOR UPDATE").
		WithArgs("show-1").
		WillReturnRows(sqlmock.NewRows(seatCols).
			AddRow("s1", "show-1", "A", 1, false, false, nil, nil).
			AddRow("s2", "show-1", "A", 2, false, false, nil, nil))
	mock.ExpectExec(regexp.QuoteMeta("UPDATE seats SET is_booked = ?, is_held = ?, hold_expiry = ?, hold_owner = ? WHERE id = ?")).
		WithArgs(true, false, nil, nil, "s1").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	err := repo.MutateShowtime(context.Background(), "show-1", func(seats []model.Seat) error {
		seats[0].Booked = true
		return nil
	})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSeatRepoMutateShowtimeRollsBackOnError(t *testing.T) {
	repo, mock := newMock(t)
	mock.ExpectBegin()
	mock.ExpectQuery("FOR UPDATE").
		WithArgs("show-1").
		WillReturnRows(sqlmock.NewRows(seatCols).AddRow("s1", "show-1", "A", 1, true, false, nil, nil))
	mock.ExpectRollback()

	boom := errors.New("seat taken")
	err := repo.MutateShowtime(context.Background(), "show-1", func(seats []model.Seat) error {
		seats[0].Booked = false
		return boom
	})
	assert.ErrorIs(t, err, boom)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSeatRepoCreateSeatsRejectsExistingMap(t *testing.T) {
	repo, mock := newMock(t)
	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*) FROM seats WHERE showtime_id = ?")).
		WithArgs("show-1").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(4))
	mock.ExpectRollback()

	err := repo.CreateSeats(context.Background(), "show-1", []model.Seat{{ID: "s1", RowLabel: "A", Number: 1}})
	assert.ErrorIs(t, err, ErrConflict)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSeatRepoCreateSeatsBulkInsert(t *testing.T) {
	repo, mock := newMock(t)
	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*) FROM seats")).
		WithArgs("show-1").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(0))
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO seats (id, showtime_id, row_label, seat_number, is_booked, is_held) VALUES (?, ?, ?, ?, ?, ?),(?, ?, ?, ?, ?, ?)")).
		WithArgs("s1", "show-1", "A", 1, false, false, "s2", "show-1", "A", 2, false, false).
		WillReturnResult(sqlmock.NewResult(0, 2))
	mock.ExpectCommit()

	err := repo.CreateSeats(context.Background(), "show-1", []model.Seat{
		{ID: "s1", RowLabel: "A", Number: 1},
		{ID: "s2", RowLabel: "A", Number: 2},
	})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

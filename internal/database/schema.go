package database

import (
	"context"
	"database/sql"
	"fmt"
)

// schema creates the three tables owned by the booking service.  Seat rows
// are locked per showtime with SELECT ... FOR UPDATE, so the
// (showtime_id, row_label, seat_number) index doubles as the lock range.
var schema = []string{
	`CREATE TABLE IF NOT EXISTS seats (
		id           VARCHAR(64)  NOT NULL PRIMARY KEY,
		showtime_id  VARCHAR(64)  NOT NULL,
		row_label    VARCHAR(8)   NOT NULL,
		seat_number  INT          NOT NULL,
		is_booked    BOOLEAN      NOT NULL DEFAULT FALSE,
		is_held      BOOLEAN      NOT NULL DEFAULT FALSE,
		hold_expiry  DATETIME     NULL,
		hold_owner   VARCHAR(128) NULL,
		UNIQUE KEY uq_seats_position (showtime_id, row_label, seat_number)
	) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,
	`CREATE TABLE IF NOT EXISTS bookings (
		id                        VARCHAR(64)   NOT NULL PRIMARY KEY,
		user_id                   VARCHAR(64)   NOT NULL,
		showtime_id               VARCHAR(64)   NOT NULL,
		movie_id                  VARCHAR(64)   NOT NULL DEFAULT '',
		theater_id                VARCHAR(64)   NOT NULL DEFAULT '',
		movie_title               VARCHAR(255)  NOT NULL DEFAULT '',
		theater_name              VARCHAR(255)  NOT NULL DEFAULT '',
		screen_name               VARCHAR(255)  NOT NULL DEFAULT '',
		show_date_time            DATETIME      NULL,
		seat_ids                  JSON          NOT NULL,
		seat_labels               JSON          NOT NULL,
		total_amount              DECIMAL(12,2) NOT NULL,
		status                    VARCHAR(32)   NOT NULL,
		customer_name             VARCHAR(255)  NOT NULL DEFAULT '',
		customer_email            VARCHAR(255)  NOT NULL DEFAULT '',
		customer_phone            VARCHAR(64)   NOT NULL DEFAULT '',
		payment_method            VARCHAR(32)   NOT NULL DEFAULT '',
		payment_id                VARCHAR(128)  NOT NULL DEFAULT '',
		ticket_number             VARCHAR(32)   NOT NULL,
		qr_code                   VARCHAR(128)  NOT NULL,
		refund_amount             DECIMAL(12,2) NULL,
		refund_date               DATETIME      NULL,
		cancellation_reason       VARCHAR(512)  NOT NULL DEFAULT '',
		cancellation_requested_at DATETIME      NULL,
		booking_date              DATETIME      NOT NULL,
		UNIQUE KEY uq_bookings_ticket (ticket_number),
		KEY idx_bookings_user (user_id, booking_date),
		KEY idx_bookings_status (status)
	) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,
	`CREATE TABLE IF NOT EXISTS payments (
		transaction_id     VARCHAR(128)  NOT NULL PRIMARY KEY,
		booking_id         VARCHAR(64)   NOT NULL,
		user_id            VARCHAR(64)   NOT NULL DEFAULT '',
		amount             DECIMAL(12,2) NOT NULL,
		method             VARCHAR(32)   NOT NULL,
		status             VARCHAR(16)   NOT NULL,
		gateway_order_id   VARCHAR(128)  NOT NULL DEFAULT '',
		gateway_payment_id VARCHAR(128)  NOT NULL DEFAULT '',
		gateway_signature  VARCHAR(256)  NOT NULL DEFAULT '',
		created_at         DATETIME      NOT NULL,
		KEY idx_payments_booking (booking_id),
		KEY idx_payments_status (status, created_at)
	) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,
}

// Migrate creates any missing tables.  It is safe to run on every start.
func Migrate(ctx context.Context, db *sql.DB) error {
	for i, stmt := range schema {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("migrate step %d: %w", i+1, err)
		}
	}
	return nil
}

package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/iliyamo/cinema-booking-saga/internal/model"
)

const paymentColumns = `transaction_id, booking_id, user_id, amount, method, status,
	gateway_order_id, gateway_payment_id, gateway_signature, created_at`

// PaymentRepo provides append-only access to the payments table.
type PaymentRepo struct {
	db *sql.DB
}

// NewPaymentRepo returns a new PaymentRepo bound to the provided database.
func NewPaymentRepo(db *sql.DB) *PaymentRepo { return &PaymentRepo{db: db} }

// Create writes a payment record.  Reusing a transaction id yields ErrConflict.
func (r *PaymentRepo) Create(ctx context.Context, p *model.PaymentRecord) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO payments (`+paymentColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		p.TransactionID, p.BookingID, p.UserID, p.Amount, p.Method, string(p.Status),
		p.GatewayOrderID, p.GatewayPaymentID, p.GatewaySignature, p.CreatedAt.UTC(),
	)
	if isDuplicateKey(err) {
		return ErrConflict
	}
	return err
}

// Get returns a payment record by transaction id or ErrNotFound.
func (r *PaymentRepo) Get(ctx context.Context, transactionID string) (*model.PaymentRecord, error) {
	var (
		p      model.PaymentRecord
		status string
	)
	err := r.db.QueryRowContext(ctx,
		`SELECT `+paymentColumns+` FROM payments WHERE transaction_id = ?`, transactionID,
	).Scan(&p.TransactionID, &p.BookingID, &p.UserID, &p.Amount, &p.Method, &status,
		&p.GatewayOrderID, &p.GatewayPaymentID, &p.GatewaySignature, &p.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	p.Status = model.PaymentStatus(status)
	p.CreatedAt = p.CreatedAt.UTC()
	return &p, nil
}

// Stats aggregates revenue over successful payments and attempt counts.
func (r *PaymentRepo) Stats(ctx context.Context, now time.Time) (model.PaymentStats, error) {
	var st model.PaymentStats
	err := r.db.QueryRowContext(ctx,
		`SELECT
			COALESCE(SUM(CASE WHEN status = 'SUCCESS' THEN amount END), 0),
			COALESCE(SUM(status = 'SUCCESS'), 0),
			COALESCE(SUM(status = 'FAILED'), 0),
			COALESCE(SUM(CASE WHEN status = 'SUCCESS' AND created_at >= ? THEN amount END), 0),
			COALESCE(SUM(CASE WHEN status = 'SUCCESS' AND created_at >= ? THEN amount END), 0)
		FROM payments`,
		now.UTC().AddDate(0, 0, -7), now.UTC().AddDate(0, 0, -30),
	).Scan(&st.TotalRevenue, &st.SuccessfulPayments, &st.FailedPayments, &st.RevenueLast7Days, &st.RevenueLast30Days)
	return st, err
}

package service

import (
	"context"
	"errors"
	"math"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/iliyamo/cinema-booking-saga/internal/gateway"
	"github.com/iliyamo/cinema-booking-saga/internal/model"
	"github.com/iliyamo/cinema-booking-saga/internal/repository"
	"github.com/iliyamo/cinema-booking-saga/internal/utils"
)

// Gateway is the order API of the external payment gateway.
type Gateway interface {
	CreateOrder(ctx context.Context, req gateway.OrderRequest) (gateway.Order, error)
	KeyID() string
}

// PaymentVerifier creates gateway orders, checks payment signatures and
// keeps the payment audit trail.  It never touches bookings.
type PaymentVerifier struct {
	gw      Gateway
	secret  string
	store   PaymentStore
	timeout time.Duration
	log     *logrus.Logger
	now     func() time.Time
}

// NewPaymentVerifier wires a verifier.  secret is the key shared with the
// gateway for signatures; timeout bounds every gateway call.
func NewPaymentVerifier(gw Gateway, secret string, store PaymentStore, timeout time.Duration, log *logrus.Logger) *PaymentVerifier {
	if log == nil {
		log = logrus.StandardLogger()
	}
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &PaymentVerifier{gw: gw, secret: secret, store: store, timeout: timeout, log: log,
		now: func() time.Time { return time.Now().UTC() }}
}

// CreateOrder opens a gateway order for amount.  The amount is sent in
// minor units, truncated (499.999 -> 49999).  Gateway failures are not
// retried.
func (v *PaymentVerifier) CreateOrder(ctx context.Context, amount float64, currency string) (model.OrderHandle, error) {
	if amount <= 0 || math.IsNaN(amount) || math.IsInf(amount, 0) {
		return model.OrderHandle{}, &ValidationError{Reason: ReasonMalformedInput, Field: "amount", Msg: "must be positive"}
	}
	if currency == "" {
		currency = "INR"
	}
	req := gateway.OrderRequest{
		Amount:   int64(amount * 100),
		Currency: strings.ToUpper(currency),
		Receipt:  utils.OrderReceipt(v.now()),
	}

	ctx, cancel := context.WithTimeout(ctx, v.timeout)
	defer cancel()
	order, err := v.gw.CreateOrder(ctx, req)
	if err != nil {
		return model.OrderHandle{}, &UpstreamError{Reason: ReasonGatewayError, Service: "payment-gateway", Msg: "order creation failed", Err: err}
	}
	v.log.WithFields(logrus.Fields{"order_id": order.ID, "amount": req.Amount, "currency": req.Currency}).Info("gateway order created")
	return model.OrderHandle{
		OrderID:  order.ID,
		Amount:   req.Amount,
		Currency: req.Currency,
		Receipt:  req.Receipt,
		KeyID:    v.gw.KeyID(),
	}, nil
}

// VerifySignature checks a payment confirmation against the shared secret.
// A forged or mismatched signature yields false; only missing fields are
// reported as an error.
func (v *PaymentVerifier) VerifySignature(orderID, paymentID, signature string) (bool, error) {
	switch {
	case orderID == "":
		return false, &ValidationError{Reason: ReasonMalformedInput, Field: "order_id", Msg: "is required"}
	case paymentID == "":
		return false, &ValidationError{Reason: ReasonMalformedInput, Field: "payment_id", Msg: "is required"}
	case signature == "":
		return false, &ValidationError{Reason: ReasonMalformedInput, Field: "signature", Msg: "is required"}
	}
	return gateway.VerifySignature(v.secret, orderID, paymentID, signature), nil
}

// RecordFailure stores a FAILED payment under a placeholder booking id so
// the attempt stays auditable without a booking.  Failure reports are not
// signed, so the record gets its own transaction id and the gateway payment
// id is kept only as a reference; a later signed success for the same
// payment is never blocked by it.
func (v *PaymentVerifier) RecordFailure(ctx context.Context, userID string, proof model.PaymentProof, amount float64) (*model.PaymentRecord, error) {
	now := v.now()
	txn := utils.TransactionID()
	rec := &model.PaymentRecord{
		TransactionID:    txn,
		BookingID:        utils.FailedBookingID(now),
		UserID:           userID,
		Amount:           amount,
		Method:           model.PaymentMethodGateway,
		Status:           model.PaymentFailed,
		GatewayOrderID:   proof.OrderID,
		GatewayPaymentID: proof.PaymentID,
		GatewaySignature: proof.Signature,
		CreatedAt:        now,
	}
	if err := v.save(ctx, rec); err != nil {
		return nil, err
	}
	v.log.WithFields(logrus.Fields{"transaction_id": txn, "order_id": proof.OrderID, "user_id": userID}).Warn("payment failure recorded")
	return rec, nil
}

// RecordSuccess stores the SUCCESS record of a verified gateway payment,
// keyed by the gateway payment id.
func (v *PaymentVerifier) RecordSuccess(ctx context.Context, userID, bookingID string, proof model.PaymentProof) (*model.PaymentRecord, error) {
	rec := &model.PaymentRecord{
		TransactionID:    proof.PaymentID,
		BookingID:        bookingID,
		UserID:           userID,
		Amount:           proof.TotalAmount,
		Method:           model.PaymentMethodGateway,
		Status:           model.PaymentSuccess,
		GatewayOrderID:   proof.OrderID,
		GatewayPaymentID: proof.PaymentID,
		GatewaySignature: proof.Signature,
		CreatedAt:        v.now(),
	}
	if err := v.save(ctx, rec); err != nil {
		return nil, err
	}
	return rec, nil
}

// RecordInternal stores a SUCCESS record for a payment taken outside the
// gateway under a fresh TXN id.
func (v *PaymentVerifier) RecordInternal(ctx context.Context, userID, bookingID string, amount float64, method string) (*model.PaymentRecord, error) {
	if amount <= 0 {
		return nil, &ValidationError{Reason: ReasonMalformedInput, Field: "amount", Msg: "must be positive"}
	}
	if method == "" {
		method = "CASH"
	}
	rec := &model.PaymentRecord{
		TransactionID: utils.TransactionID(),
		BookingID:     bookingID,
		UserID:        userID,
		Amount:        amount,
		Method:        strings.ToUpper(method),
		Status:        model.PaymentSuccess,
		CreatedAt:     v.now(),
	}
	if err := v.save(ctx, rec); err != nil {
		return nil, err
	}
	return rec, nil
}

// Status returns the payment record for a transaction id.
func (v *PaymentVerifier) Status(ctx context.Context, transactionID string) (*model.PaymentRecord, error) {
	rec, err := v.store.Get(ctx, transactionID)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, &NotFoundError{Reason: ReasonPaymentNotFound, Resource: "payment", ID: transactionID}
	}
	return rec, err
}

func (v *PaymentVerifier) Stats(ctx context.Context) (model.PaymentStats, error) {
	return v.store.Stats(ctx, v.now())
}

func (v *PaymentVerifier) save(ctx context.Context, rec *model.PaymentRecord) error {
	err := v.store.Create(ctx, rec)
	if errors.Is(err, repository.ErrConflict) {
		return &ConflictError{Reason: ReasonDuplicatePayment, Resource: "payment", ID: rec.TransactionID,
			Msg: "Payment " + rec.TransactionID + " is already recorded"}
	}
	return err
}

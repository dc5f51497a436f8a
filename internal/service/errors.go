package service

import (
	"errors"
	"fmt"
)

// Reason is a stable, machine readable failure code returned to callers.
type Reason string

const (
	ReasonNoSeatsSelected       Reason = "NO_SEATS_SELECTED"
	ReasonNotInitialized        Reason = "NOT_INITIALIZED"
	ReasonMalformedInput        Reason = "MALFORMED_INPUT"
	ReasonSeatNotFound          Reason = "SEAT_NOT_FOUND"
	ReasonSeatAlreadyBooked     Reason = "SEAT_ALREADY_BOOKED"
	ReasonSeatHeldByOther       Reason = "SEAT_HELD_BY_OTHER"
	ReasonAlreadyInitialized    Reason = "ALREADY_INITIALIZED"
	ReasonInvalidState          Reason = "INVALID_STATE"
	ReasonAlreadyCancelled      Reason = "ALREADY_CANCELLED"
	ReasonBookingNotFound       Reason = "BOOKING_NOT_FOUND"
	ReasonPaymentNotFound       Reason = "PAYMENT_NOT_FOUND"
	ReasonDuplicatePayment      Reason = "DUPLICATE_PAYMENT"
	ReasonInvalidPayment        Reason = "INVALID_PAYMENT"
	ReasonBookingCreationFailed Reason = "BOOKING_CREATION_FAILED"
	ReasonGatewayError          Reason = "GATEWAY_ERROR"
	ReasonNotifierUnavailable   Reason = "NOTIFIER_UNAVAILABLE"
	ReasonEnrichmentUnavailable Reason = "ENRICHMENT_UNAVAILABLE"
	ReasonUnauthorized          Reason = "UNAUTHORIZED"
)

// ValidationError reports bad or missing input.  Nothing was changed.
type ValidationError struct {
	Reason Reason
	Field  string
	Msg    string
}

func (e *ValidationError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("%s: %s", e.Field, e.Msg)
	}
	return e.Msg
}

// ConflictError reports a request that collides with current state: a seat
// that is already taken, or a booking in the wrong state for a transition.
// Nothing was changed.
type ConflictError struct {
	Reason   Reason
	Resource string
	ID       string
	Msg      string
}

func (e *ConflictError) Error() string { return e.Msg }

// NotFoundError reports a missing seat, booking or payment.
type NotFoundError struct {
	Reason   Reason
	Resource string
	ID       string
}

func (e *NotFoundError) Error() string { return fmt.Sprintf("%s not found: %s", e.Resource, e.ID) }

// UpstreamError reports a failed or timed out call to an external service.
type UpstreamError struct {
	Reason  Reason
	Service string
	Msg     string
	Err     error
}

func (e *UpstreamError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Service, e.Msg, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Service, e.Msg)
}

func (e *UpstreamError) Unwrap() error { return e.Err }

// SagaError wraps a failure of one saga step.  The step's own error stays
// reachable through Unwrap.
type SagaError struct {
	Reason Reason
	Msg    string
	Err    error
}

func (e *SagaError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Msg, e.Err)
	}
	return e.Msg
}

func (e *SagaError) Unwrap() error { return e.Err }

func IsValidation(err error) bool {
	var v *ValidationError
	return errors.As(err, &v)
}

func IsConflict(err error) bool {
	var c *ConflictError
	return errors.As(err, &c)
}

func IsNotFound(err error) bool {
	var n *NotFoundError
	return errors.As(err, &n)
}

func IsUpstream(err error) bool {
	var u *UpstreamError
	return errors.As(err, &u)
}

// IsSeatConflict reports whether err means a requested seat could not be
// claimed because of another claim on it.
func IsSeatConflict(err error) bool {
	var c *ConflictError
	return errors.As(err, &c) && (c.Reason == ReasonSeatAlreadyBooked || c.Reason == ReasonSeatHeldByOther)
}

// ReasonOf returns the outermost reason code carried by err.
func ReasonOf(err error) (Reason, bool) {
	for err != nil {
		switch e := err.(type) {
		case *ValidationError:
			return e.Reason, true
		case *ConflictError:
			return e.Reason, true
		case *NotFoundError:
			return e.Reason, true
		case *UpstreamError:
			return e.Reason, true
		case *SagaError:
			return e.Reason, true
		}
		err = errors.Unwrap(err)
	}
	return "", false
}

func invalidState(id string, msg string) error {
	return &ConflictError{Reason: ReasonInvalidState, Resource: "booking", ID: id, Msg: msg}
}

func alreadyCancelled(id string) error {
	return &ConflictError{Reason: ReasonAlreadyCancelled, Resource: "booking", ID: id, Msg: "Booking is already cancelled"}
}

func bookingNotFound(id string) error {
	return &NotFoundError{Reason: ReasonBookingNotFound, Resource: "booking", ID: id}
}

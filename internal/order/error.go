package order

import (
	"errors"
	"fmt"
)

var (
	ErrOrderNotFound   = errors.New("order not found")
	ErrForbidden       = errors.New("forbidden: order belongs to another user")
	ErrUnauthorized    = errors.New("unauthorized")
	ErrEmptyCart       = errors.New("cart is empty")
	ErrInvalidQuantity = errors.New("quantity must be positive")
	ErrProductNotFound = errors.New("product not found")
	ErrOutOfStock      = errors.New("insufficient stock")
	ErrMissingDelivery = errors.New("carrier and tracking number are required to ship")

	ErrInvalidTransition = errors.New("invalid order transition")
	// ErrStaleStatus is returned by the store when a conditional update finds
	// the order already moved by a concurrent writer.
	ErrStaleStatus = errors.New("order status changed concurrently")

	ErrPaymentDeclined = errors.New("payment declined")
	// ErrPaymentPending is a replay of an idempotency key whose attempt is
	// still awaiting reconciliation.
	ErrPaymentPending = errors.New("payment attempt is still pending")

	// Data-integrity failures. These are logged at error level and need an
	// operator; they must never be defaulted away.
	ErrMissingChargeID = errors.New("no successful payment with a charge id for this order")
	ErrChargeOrphaned  = errors.New("charge succeeded but the order could not be marked paid")

	ErrInvalidRefundAmount = errors.New("refund amount must be positive")
)

// TransitionError is an event rejected by the state table.
type TransitionError struct {
	From  OrderStatus
	Event Event
}

func (e *TransitionError) Error() string {
	return fmt.Sprintf("cannot %s an order in status %s", e.Event, e.From)
}

func (e *TransitionError) Is(target error) bool {
	return target == ErrInvalidTransition
}

// PaymentDeclinedError carries the gateway's reason for a decline.
type PaymentDeclinedError struct {
	Reason string
}

func (e *PaymentDeclinedError) Error() string {
	return fmt.Sprintf("payment declined: %s", e.Reason)
}

func (e *PaymentDeclinedError) Is(target error) bool {
	return target == ErrPaymentDeclined
}

// RefundFailedError is a definitive refund failure reported by the gateway.
// Order and payment are left as they were.
type RefundFailedError struct {
	Reason string
	Err    error
}

func (e *RefundFailedError) Error() string {
	return fmt.Sprintf("refund failed: %s", e.Reason)
}

func (e *RefundFailedError) Unwrap() error { return e.Err }

type CheckoutErrorKind string

const (
	KindMissingKey          CheckoutErrorKind = "missing_key"
	KindInvalidOrder        CheckoutErrorKind = "invalid_order"
	KindInvalidSession      CheckoutErrorKind = "invalid_session"
	KindGatewayAPIError     CheckoutErrorKind = "gateway_api_error"
	KindSessionFailed       CheckoutErrorKind = "session_failed"
	KindPaymentNotCompleted CheckoutErrorKind = "payment_not_completed"
)

// CheckoutError is a hosted-checkout failure named by kind.
type CheckoutError struct {
	Kind CheckoutErrorKind
	Err  error
}

func (e *CheckoutError) Error() string {
	if e.Err == nil {
		return string(e.Kind)
	}
	return fmt.Sprintf("%s: %v", e.Kind, e.Err)
}

func (e *CheckoutError) Unwrap() error { return e.Err }

func checkoutErr(kind CheckoutErrorKind, err error) error {
	return &CheckoutError{Kind: kind, Err: err}
}

package payment

import (
	"errors"
	"fmt"
)

var (
	ErrPaymentNotFound = errors.New("payment not found")
	ErrRefundNotFound  = errors.New("refund not found")

	// ErrPaymentInFlight means another attempt for the order is still PENDING.
	ErrPaymentInFlight = errors.New("a payment attempt for this order is still pending")
	// ErrRefundInFlight means another refund of the payment is still PENDING.
	ErrRefundInFlight = errors.New("a refund for this payment is still pending")
	// ErrRefundExceedsCharge guards the cumulative refund cap.
	ErrRefundExceedsCharge = errors.New("refund exceeds the refundable amount of the charge")
	ErrStalePayment        = errors.New("payment was modified concurrently")
	// ErrOrderNotPayable means the order left CREATED before the attempt
	// could be recorded.
	ErrOrderNotPayable = errors.New("order is no longer awaiting payment")
)

// Gateway failure kinds.
var (
	ErrGatewayTimeout          = errors.New("payment gateway timed out")
	ErrGatewayUnavailable      = errors.New("payment gateway unavailable")
	ErrMissingKey              = errors.New("payment gateway secret key is not configured")
	ErrRawCardDataNotPermitted = errors.New("raw card data is not enabled for this gateway account")
	ErrUnexpectedResponse      = errors.New("unexpected payment gateway response")
	ErrChargeProcessing        = errors.New("charge is still processing at the gateway")
	ErrRefundProcessing        = errors.New("refund is still pending at the gateway")
	ErrSessionNotFound         = errors.New("checkout session not found")
)

// IsAmbiguous reports whether err leaves the outcome of a gateway call unknown:
// the request may have been applied, so the attempt must stay pending until it
// is reconciled by hand. A success answer that cannot be parsed counts too.
func IsAmbiguous(err error) bool {
	return errors.Is(err, ErrGatewayTimeout) ||
		errors.Is(err, ErrGatewayUnavailable) ||
		errors.Is(err, ErrChargeProcessing) ||
		errors.Is(err, ErrRefundProcessing) ||
		errors.Is(err, ErrUnexpectedResponse)
}

// APIError is a definitive error answer from the gateway.
type APIError struct {
	StatusCode int
	Type       string
	Code       string
	Message    string
}

func (e *APIError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("gateway error %d (%s/%s): %s", e.StatusCode, e.Type, e.Code, e.Message)
	}
	return fmt.Sprintf("gateway error %d (%s): %s", e.StatusCode, e.Type, e.Message)
}

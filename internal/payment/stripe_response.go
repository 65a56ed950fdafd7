package payment

import (
	"fmt"
	"strings"

	"github.com/stripe/stripe-go/v81"
)

// ExtractChargeID returns the charge behind a payment intent. LatestCharge is
// either the expanded charge or, when not expanded, a reference carrying only
// the id. Anything that is not a charge id is ErrUnexpectedResponse.
func ExtractChargeID(intent *stripe.PaymentIntent) (string, error) {
	if intent == nil {
		return "", fmt.Errorf("%w: no payment intent", ErrUnexpectedResponse)
	}
	if intent.LatestCharge == nil || intent.LatestCharge.ID == "" {
		return "", fmt.Errorf("%w: payment intent %s has no charge", ErrUnexpectedResponse, intent.ID)
	}
	if !isChargeID(intent.LatestCharge.ID) {
		return "", fmt.Errorf("%w: %q is not a charge id", ErrUnexpectedResponse, intent.LatestCharge.ID)
	}
	return intent.LatestCharge.ID, nil
}

// sessionChargeID requires the session's payment intent to be expanded; a bare
// intent id carries no charge.
func sessionChargeID(session *stripe.CheckoutSession) (string, error) {
	if session.PaymentIntent == nil {
		return "", fmt.Errorf("%w: session %s has no payment intent", ErrUnexpectedResponse, session.ID)
	}
	return ExtractChargeID(session.PaymentIntent)
}

func toAPIError(e *stripe.Error) *APIError {
	apiErr := &APIError{
		StatusCode: e.HTTPStatusCode,
		Type:       string(e.Type),
		Code:       string(e.Code),
		Message:    e.Msg,
	}
	if e.DeclineCode != "" {
		apiErr.Code = string(e.DeclineCode)
	}
	if apiErr.Type == "" {
		apiErr.Type = string(stripe.ErrorTypeAPI)
	}
	return apiErr
}

// declineReason prefers the issuer's decline code over the error code.
func declineReason(e *stripe.Error) string {
	switch {
	case e.DeclineCode != "":
		return string(e.DeclineCode)
	case e.Code != "":
		return string(e.Code)
	case e.Msg != "":
		return e.Msg
	}
	return "declined"
}

func isChargeID(id string) bool {
	return strings.HasPrefix(id, "ch_") || strings.HasPrefix(id, "py_")
}

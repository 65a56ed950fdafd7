package transport

import (
	"errors"
	"net/http"

	"storefront-be/internal/logger"
	"storefront-be/internal/order"
	"storefront-be/internal/payment"
	"storefront-be/internal/product"
	"storefront-be/internal/utils"
	"storefront-be/internal/validation"

	"go.uber.org/zap"
)

type errorMapping struct {
	err    error
	status int
	kind   string
}

// Checked in order; the first match wins.
var sentinelErrors = []errorMapping{
	{order.ErrUnauthorized, http.StatusUnauthorized, "unauthorized"},
	{order.ErrForbidden, http.StatusForbidden, "forbidden"},
	{order.ErrOrderNotFound, http.StatusNotFound, "order_not_found"},
	{product.ErrProductNotFound, http.StatusNotFound, "product_not_found"},

	{order.ErrEmptyCart, http.StatusBadRequest, "empty_cart"},
	{order.ErrInvalidQuantity, http.StatusBadRequest, "invalid_quantity"},
	{order.ErrProductNotFound, http.StatusBadRequest, "product_not_found"},
	{order.ErrMissingDelivery, http.StatusBadRequest, "missing_delivery"},
	{order.ErrInvalidRefundAmount, http.StatusBadRequest, "invalid_refund_amount"},
	{product.ErrInvalidName, http.StatusBadRequest, "invalid_product"},
	{product.ErrInvalidPrice, http.StatusBadRequest, "invalid_product"},
	{product.ErrNegativeStock, http.StatusBadRequest, "invalid_product"},

	{order.ErrOutOfStock, http.StatusConflict, "out_of_stock"},
	{product.ErrInvalidStock, http.StatusConflict, "insufficient_stock"},
	{order.ErrInvalidTransition, http.StatusConflict, "invalid_transition"},
	{order.ErrStaleStatus, http.StatusConflict, "invalid_transition"},
	{payment.ErrOrderNotPayable, http.StatusConflict, "invalid_transition"},
	{order.ErrPaymentPending, http.StatusConflict, "payment_pending"},
	{payment.ErrPaymentInFlight, http.StatusConflict, "payment_in_flight"},
	{payment.ErrRefundInFlight, http.StatusConflict, "refund_in_flight"},
	{payment.ErrRefundExceedsCharge, http.StatusConflict, "refund_exceeds_charge"},

	{order.ErrMissingChargeID, http.StatusInternalServerError, "integrity_error"},
	{order.ErrChargeOrphaned, http.StatusInternalServerError, "integrity_error"},

	{payment.ErrGatewayTimeout, http.StatusGatewayTimeout, "gateway_timeout"},
	{payment.ErrGatewayUnavailable, http.StatusServiceUnavailable, "gateway_unavailable"},
	{payment.ErrMissingKey, http.StatusServiceUnavailable, "gateway_not_configured"},
	{payment.ErrChargeProcessing, http.StatusBadGateway, "gateway_unconfirmed"},
	{payment.ErrRefundProcessing, http.StatusBadGateway, "gateway_unconfirmed"},
	{payment.ErrUnexpectedResponse, http.StatusBadGateway, "gateway_unconfirmed"},
	{payment.ErrRawCardDataNotPermitted, http.StatusBadGateway, "raw_card_data_not_permitted"},
}

var checkoutStatus = map[order.CheckoutErrorKind]int{
	order.KindMissingKey:          http.StatusServiceUnavailable,
	order.KindInvalidOrder:        http.StatusBadRequest,
	order.KindInvalidSession:      http.StatusBadRequest,
	order.KindGatewayAPIError:     http.StatusBadGateway,
	order.KindSessionFailed:       http.StatusBadGateway,
	order.KindPaymentNotCompleted: http.StatusPaymentRequired,
}

// classify maps a service error to its HTTP status and error body.
func classify(err error) (int, utils.ErrorBody) {
	var (
		formErr     *validation.FormError
		checkoutErr *order.CheckoutError
		refundErr   *order.RefundFailedError
		declined    *order.PaymentDeclinedError
		apiErr      *payment.APIError
	)

	switch {
	case errors.As(err, &formErr):
		return http.StatusUnprocessableEntity, utils.ErrorBody{
			Error:   "validation_failed",
			Message: "payment form has invalid fields",
			Fields:  formErr.Fields,
		}
	case errors.As(err, &checkoutErr):
		status, ok := checkoutStatus[checkoutErr.Kind]
		if !ok {
			status = http.StatusInternalServerError
		}
		return status, utils.ErrorBody{Error: string(checkoutErr.Kind), Message: err.Error()}
	case errors.As(err, &refundErr):
		return http.StatusBadGateway, utils.ErrorBody{Error: "refund_failed", Message: refundErr.Error()}
	case errors.As(err, &declined):
		return http.StatusPaymentRequired, utils.ErrorBody{Error: "payment_declined", Message: declined.Error()}
	}

	for _, m := range sentinelErrors {
		if errors.Is(err, m.err) {
			return m.status, utils.ErrorBody{Error: m.kind, Message: err.Error()}
		}
	}

	if errors.As(err, &apiErr) {
		return http.StatusBadGateway, utils.ErrorBody{Error: "gateway_error", Message: apiErr.Error()}
	}

	return http.StatusInternalServerError, utils.ErrorBody{Error: "internal_error", Message: "internal server error"}
}

func writeError(w http.ResponseWriter, r *http.Request, err error) {
	status, body := classify(err)

	log := logger.FromCtx(r.Context())
	if status >= http.StatusInternalServerError {
		log.Error("request failed", zap.String("kind", body.Error), zap.Error(err))
	} else {
		log.Debug("request rejected", zap.String("kind", body.Error), zap.Error(err))
	}

	utils.WriteJSON(w, status, body)
}

func writeBadRequest(w http.ResponseWriter, message string) {
	utils.WriteJSONError(w, "invalid_request", message, http.StatusBadRequest)
}

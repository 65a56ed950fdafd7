package payment

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"
	"time"

	"storefront-be/internal/logger"
	"storefront-be/internal/validation"

	"github.com/stripe/stripe-go/v81"
	"github.com/stripe/stripe-go/v81/client"
	"go.uber.org/zap"
)

const defaultStripeTimeout = 15 * time.Second

type StripeOptions struct {
	SecretKey        string
	BaseURL          string
	AllowRawCardData bool
	Timeout          time.Duration
}

// StripeGateway charges cards through PaymentIntents, refunds charges and runs
// hosted Checkout Sessions. The SDK never retries; a retry is a new attempt
// decided by the order service.
type StripeGateway struct {
	secretKey        string
	allowRawCardData bool
	httpClient       *http.Client
	api              *client.API
}

func NewStripeGateway(opts StripeOptions) *StripeGateway {
	if opts.SecretKey == "" {
		logger.L().Warn("stripe secret key is empty; every gateway call will fail with missing_key")
	}

	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = defaultStripeTimeout
	}
	httpClient := &http.Client{Timeout: timeout}

	cfg := &stripe.BackendConfig{
		HTTPClient:        httpClient,
		MaxNetworkRetries: stripe.Int64(0),
		LeveledLogger:     logger.L().Named("stripe").Sugar(),
	}
	if opts.BaseURL != "" {
		cfg.URL = stripe.String(strings.TrimRight(opts.BaseURL, "/"))
	}
	backend := stripe.GetBackendWithConfig(stripe.APIBackend, cfg)

	return &StripeGateway{
		secretKey:        opts.SecretKey,
		allowRawCardData: opts.AllowRawCardData,
		httpClient:       httpClient,
		api:              client.New(opts.SecretKey, &stripe.Backends{API: backend, Connect: backend, Uploads: backend}),
	}
}

func (g *StripeGateway) Mode() Mode { return ModeStripe }

func (g *StripeGateway) Charge(ctx context.Context, req ChargeRequest) (*ChargeResult, error) {
	log := logger.FromCtx(ctx).With(
		zap.String("gateway", string(ModeStripe)),
		zap.String("payment_id", req.PaymentID.String()),
		zap.String("order_id", req.OrderID.String()),
		zap.Int64("amount_cents", req.AmountCents),
	)

	if g.secretKey == "" {
		return nil, ErrMissingKey
	}
	if !g.allowRawCardData {
		log.Warn("refusing to forward raw card data: capability not granted")
		return nil, ErrRawCardDataNotPermitted
	}

	log.Info("sending charge to stripe")

	pmParams := &stripe.PaymentMethodParams{
		Type: stripe.String(string(stripe.PaymentMethodTypeCard)),
		Card: &stripe.PaymentMethodCardParams{
			Number:   stripe.String(validation.NormalizeCardNumber(req.Card.Number)),
			ExpMonth: stripe.Int64(int64(req.Card.ExpMonth)),
			ExpYear:  stripe.Int64(int64(req.Card.ExpYear)),
			CVC:      stripe.String(req.Card.CVC),
		},
	}
	pmParams.Context = ctx
	pmParams.IdempotencyKey = stripe.String(req.PaymentID.String() + "-pm")

	pm, err := g.api.PaymentMethods.New(pmParams)
	if err != nil {
		return g.chargeError(log, err)
	}

	params := &stripe.PaymentIntentParams{
		Amount:             stripe.Int64(req.AmountCents),
		Currency:           stripe.String(req.Currency),
		Confirm:            stripe.Bool(true),
		PaymentMethod:      stripe.String(pm.ID),
		PaymentMethodTypes: stripe.StringSlice([]string{"card"}),
	}
	params.Context = ctx
	params.IdempotencyKey = stripe.String(req.PaymentID.String())
	params.AddMetadata("order_id", req.OrderID.String())
	params.AddMetadata("payment_id", req.PaymentID.String())
	params.AddExpand("latest_charge")

	intent, err := g.api.PaymentIntents.New(params)
	if err != nil {
		return g.chargeError(log, err)
	}

	switch intent.Status {
	case stripe.PaymentIntentStatusSucceeded:
		chargeID, err := ExtractChargeID(intent)
		if err != nil {
			log.Error("stripe charge succeeded without a usable charge id", zap.String("intent_id", intent.ID), zap.Error(err))
			return nil, err
		}
		log.Info("stripe charge succeeded", zap.String("charge_id", chargeID))
		return &ChargeResult{Success: true, ChargeID: chargeID}, nil
	case stripe.PaymentIntentStatusProcessing:
		log.Warn("stripe charge still processing", zap.String("intent_id", intent.ID))
		return nil, fmt.Errorf("%w: intent %s", ErrChargeProcessing, intent.ID)
	case stripe.PaymentIntentStatusRequiresAction:
		return &ChargeResult{FailureReason: "authentication_required"}, nil
	default:
		reason := "payment_intent_" + string(intent.Status)
		if e := intent.LastPaymentError; e != nil {
			reason = declineReason(e)
		}
		log.Info("stripe charge not completed", zap.String("status", string(intent.Status)), zap.String("reason", reason))
		return &ChargeResult{FailureReason: reason}, nil
	}
}

// chargeError turns a failed PaymentMethod or PaymentIntent call into a decline
// or a classified error.
func (g *StripeGateway) chargeError(log *zap.Logger, err error) (*ChargeResult, error) {
	var stripeErr *stripe.Error
	if !errors.As(err, &stripeErr) {
		log.Error("stripe charge request failed", zap.Error(err))
		return nil, classifyTransportError(err)
	}

	switch {
	case stripeErr.HTTPStatusCode >= http.StatusInternalServerError:
		log.Error("stripe returned server error", zap.Int("status", stripeErr.HTTPStatusCode), zap.String("message", stripeErr.Msg))
		return nil, fmt.Errorf("%w: %v", ErrGatewayUnavailable, toAPIError(stripeErr))
	case stripeErr.Type == stripe.ErrorTypeCard:
		log.Info("stripe declined charge", zap.String("code", string(stripeErr.Code)))
		return &ChargeResult{FailureReason: declineReason(stripeErr)}, nil
	case isRawCardDataError(stripeErr):
		log.Error("stripe account cannot accept raw card data", zap.String("message", stripeErr.Msg))
		return nil, fmt.Errorf("%w: %s", ErrRawCardDataNotPermitted, stripeErr.Msg)
	default:
		log.Error("stripe rejected charge request", zap.Int("status", stripeErr.HTTPStatusCode), zap.String("message", stripeErr.Msg))
		return nil, toAPIError(stripeErr)
	}
}

// Refund reports success only for a settled refund. A refund Stripe still
// holds as pending is ErrRefundProcessing, so the local refund stays PENDING.
func (g *StripeGateway) Refund(ctx context.Context, req RefundRequest) (*RefundResult, error) {
	log := logger.FromCtx(ctx).With(
		zap.String("gateway", string(ModeStripe)),
		zap.String("charge_id", req.ChargeID),
		zap.Int64("amount_cents", req.AmountCents),
	)

	if g.secretKey == "" {
		return nil, ErrMissingKey
	}

	params := &stripe.RefundParams{
		Charge: stripe.String(req.ChargeID),
		Amount: stripe.Int64(req.AmountCents),
	}
	params.Context = ctx
	params.IdempotencyKey = stripe.String(req.RefundID.String())
	params.AddMetadata("refund_id", req.RefundID.String())

	refund, err := g.api.Refunds.New(params)
	if err != nil {
		var stripeErr *stripe.Error
		if !errors.As(err, &stripeErr) {
			log.Error("stripe refund request failed", zap.Error(err))
			return nil, classifyTransportError(err)
		}
		if stripeErr.HTTPStatusCode >= http.StatusInternalServerError {
			log.Error("stripe returned server error on refund", zap.Int("status", stripeErr.HTTPStatusCode))
			return nil, fmt.Errorf("%w: %v", ErrGatewayUnavailable, toAPIError(stripeErr))
		}
		log.Warn("stripe rejected refund", zap.String("code", string(stripeErr.Code)), zap.String("message", stripeErr.Msg))
		return &RefundResult{FailureReason: declineReason(stripeErr)}, nil
	}

	if refund.ID == "" {
		log.Error("stripe refund response without an id")
		return nil, fmt.Errorf("%w: refund response", ErrUnexpectedResponse)
	}

	switch refund.Status {
	case stripe.RefundStatusSucceeded:
		log.Info("stripe refund succeeded", zap.String("refund_id", refund.ID))
		return &RefundResult{Success: true, RefundID: refund.ID}, nil
	case stripe.RefundStatusPending:
		log.Warn("stripe refund not settled yet", zap.String("refund_id", refund.ID), zap.String("status", string(refund.Status)))
		return nil, fmt.Errorf("%w: refund %s is %s", ErrRefundProcessing, refund.ID, refund.Status)
	default:
		reason := string(refund.FailureReason)
		if reason == "" {
			reason = "refund_" + string(refund.Status)
		}
		log.Warn("stripe refund failed", zap.String("refund_id", refund.ID), zap.String("reason", reason))
		return &RefundResult{RefundID: refund.ID, FailureReason: reason}, nil
	}
}

func (g *StripeGateway) CreateCheckoutSession(ctx context.Context, req CheckoutSessionRequest) (*CheckoutSession, error) {
	log := logger.FromCtx(ctx).With(
		zap.String("gateway", string(ModeStripe)),
		zap.String("order_id", req.OrderID.String()),
		zap.Int64("amount_cents", req.AmountCents),
	)

	if g.secretKey == "" {
		return nil, ErrMissingKey
	}

	successURL := req.SuccessURL
	if !strings.Contains(successURL, sessionIDPlaceholder) {
		sep := "?"
		if strings.Contains(successURL, "?") {
			sep = "&"
		}
		successURL += sep + "session_id=" + sessionIDPlaceholder
	}

	description := req.Description
	if description == "" {
		description = "Order " + req.OrderID.String()
	}

	params := &stripe.CheckoutSessionParams{
		Mode:              stripe.String(string(stripe.CheckoutSessionModePayment)),
		ClientReferenceID: stripe.String(req.OrderID.String()),
		SuccessURL:        stripe.String(successURL),
		CancelURL:         stripe.String(req.CancelURL),
		LineItems: []*stripe.CheckoutSessionLineItemParams{{
			Quantity: stripe.Int64(1),
			PriceData: &stripe.CheckoutSessionLineItemPriceDataParams{
				Currency:   stripe.String(req.Currency),
				UnitAmount: stripe.Int64(req.AmountCents),
				ProductData: &stripe.CheckoutSessionLineItemPriceDataProductDataParams{
					Name: stripe.String(description),
				},
			},
		}},
	}
	params.Context = ctx
	params.AddMetadata("order_id", req.OrderID.String())

	session, err := g.api.CheckoutSessions.New(params)
	if err != nil {
		log.Error("stripe checkout session request failed", zap.Error(err))
		return nil, classifyError(err)
	}
	if session.ID == "" || session.URL == "" {
		log.Error("stripe checkout session response without id or url")
		return nil, fmt.Errorf("%w: checkout session response", ErrUnexpectedResponse)
	}

	log.Info("stripe checkout session created", zap.String("session_id", session.ID))
	return &CheckoutSession{ID: session.ID, URL: session.URL}, nil
}

func (g *StripeGateway) GetCheckoutSession(ctx context.Context, sessionID string) (*CheckoutSessionResult, error) {
	log := logger.FromCtx(ctx).With(
		zap.String("gateway", string(ModeStripe)),
		zap.String("session_id", sessionID),
	)

	if g.secretKey == "" {
		return nil, ErrMissingKey
	}

	params := &stripe.CheckoutSessionParams{}
	params.Context = ctx
	params.AddExpand("payment_intent.latest_charge")

	session, err := g.api.CheckoutSessions.Get(sessionID, params)
	if err != nil {
		var stripeErr *stripe.Error
		if errors.As(err, &stripeErr) &&
			(stripeErr.HTTPStatusCode == http.StatusNotFound || stripeErr.Code == stripe.ErrorCodeResourceMissing) {
			return nil, ErrSessionNotFound
		}
		log.Error("stripe session lookup failed", zap.Error(err))
		return nil, classifyError(err)
	}
	if session.ID == "" {
		return nil, fmt.Errorf("%w: checkout session response", ErrUnexpectedResponse)
	}

	orderID := session.ClientReferenceID
	if orderID == "" {
		orderID = session.Metadata["order_id"]
	}

	res := &CheckoutSessionResult{
		ID:          session.ID,
		OrderID:     orderID,
		Paid:        session.PaymentStatus == stripe.CheckoutSessionPaymentStatusPaid,
		AmountCents: session.AmountTotal,
	}

	if res.Paid {
		chargeID, err := sessionChargeID(session)
		if err != nil {
			log.Error("paid session without a usable charge id", zap.Error(err))
			return nil, err
		}
		res.ChargeID = chargeID
	}

	return res, nil
}

// classifyError maps an SDK error: server errors to ErrGatewayUnavailable,
// other *stripe.Error answers to *APIError, the rest by transport failure.
func classifyError(err error) error {
	var stripeErr *stripe.Error
	if errors.As(err, &stripeErr) {
		if stripeErr.HTTPStatusCode >= http.StatusInternalServerError {
			return fmt.Errorf("%w: %v", ErrGatewayUnavailable, toAPIError(stripeErr))
		}
		return toAPIError(stripeErr)
	}
	return classifyTransportError(err)
}

// classifyTransportError covers errors without a Stripe answer. A response
// body the SDK could not decode is ErrUnexpectedResponse.
func classifyTransportError(err error) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%w: %v", ErrGatewayTimeout, err)
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		if netErr.Timeout() {
			return fmt.Errorf("%w: %v", ErrGatewayTimeout, err)
		}
		return fmt.Errorf("%w: %v", ErrGatewayUnavailable, err)
	}
	if errors.Is(err, context.Canceled) {
		return fmt.Errorf("%w: %v", ErrGatewayUnavailable, err)
	}
	return fmt.Errorf("%w: %v", ErrUnexpectedResponse, err)
}

func isRawCardDataError(e *stripe.Error) bool {
	return e.Type == stripe.ErrorTypeInvalidRequest &&
		strings.Contains(strings.ToLower(e.Msg), "raw card data")
}

package order

import (
	"context"
	"errors"
	"fmt"

	"storefront-be/internal/logger"
	"storefront-be/internal/payment"
	"storefront-be/internal/utils"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

const sessionKeyPrefix = "checkout_session:"

// CreateCheckoutSession starts a hosted checkout for a CREATED order owned by
// userID.
func (s *service) CreateCheckoutSession(ctx context.Context, userID uint, orderID uuid.UUID) (*payment.CheckoutSession, error) {
	log := logger.FromCtx(ctx).With(zap.String("order_id", orderID.String()))

	o, err := s.repo.GetOrder(ctx, orderID)
	if errors.Is(err, ErrOrderNotFound) {
		return nil, checkoutErr(KindInvalidOrder, err)
	}
	if err != nil {
		return nil, err
	}
	if o.UserID != userID {
		return nil, ErrForbidden
	}
	if _, err := Transition(o.Status, EventPay); err != nil {
		return nil, checkoutErr(KindInvalidOrder, err)
	}

	gctx, cancel := s.gatewayContext(ctx)
	defer cancel()

	session, err := s.paymentGate.CreateCheckoutSession(gctx, payment.CheckoutSessionRequest{
		OrderID:     o.ID,
		AmountCents: o.TotalCents,
		Currency:    s.currency,
		Description: fmt.Sprintf("Order %s", o.ID),
		SuccessURL:  s.successURL,
		CancelURL:   s.cancelURL,
	})
	switch {
	case errors.Is(err, payment.ErrMissingKey):
		log.Error("checkout session requested without a gateway key")
		return nil, checkoutErr(KindMissingKey, err)
	case err != nil:
		log.Error("failed creating checkout session", zap.Error(err))
		return nil, checkoutErr(KindSessionFailed, err)
	}

	log.Info("checkout session created", zap.String("session_id", session.ID))
	return session, nil
}

// VerifyCheckoutSession confirms a completed hosted checkout and records its
// charge. Verifying an order that this session already paid is a no-op.
func (s *service) VerifyCheckoutSession(ctx context.Context, userID uint, isAdmin bool, sessionID string) (*Order, error) {
	if sessionID == "" {
		return nil, checkoutErr(KindInvalidSession, errors.New("session id is required"))
	}
	log := logger.FromCtx(ctx).With(zap.String("session_id", sessionID))

	gctx, cancel := s.gatewayContext(ctx)
	res, err := s.paymentGate.GetCheckoutSession(gctx, sessionID)
	cancel()

	switch {
	case errors.Is(err, payment.ErrSessionNotFound):
		return nil, checkoutErr(KindInvalidSession, err)
	case errors.Is(err, payment.ErrMissingKey):
		return nil, checkoutErr(KindMissingKey, err)
	case err != nil:
		log.Error("failed retrieving checkout session", zap.Error(err))
		return nil, checkoutErr(KindGatewayAPIError, err)
	}

	if !res.Paid {
		return nil, checkoutErr(KindPaymentNotCompleted, nil)
	}

	orderID, err := uuid.Parse(res.OrderID)
	if err != nil {
		log.Error("paid session carries no usable order reference", zap.String("order_ref", res.OrderID))
		return nil, checkoutErr(KindInvalidOrder, err)
	}
	log = log.With(zap.String("order_id", orderID.String()))

	o, err := s.repo.GetOrder(ctx, orderID)
	if errors.Is(err, ErrOrderNotFound) {
		return nil, checkoutErr(KindInvalidOrder, err)
	}
	if err != nil {
		return nil, err
	}
	if !isAdmin && o.UserID != userID {
		return nil, ErrForbidden
	}

	if o.Status != StatusCreated {
		if s.paidBy(ctx, o.ID, res.ChargeID) {
			return o, nil
		}
		return nil, checkoutErr(KindInvalidOrder, &TransitionError{From: o.Status, Event: EventPay})
	}

	if res.AmountCents != o.TotalCents {
		log.Error("checkout session amount does not match order total",
			zap.Int64("session_amount_cents", res.AmountCents),
			zap.Int64("total_cents", o.TotalCents),
		)
		return nil, checkoutErr(KindInvalidOrder, fmt.Errorf("session amount %d does not match order total %d", res.AmountCents, o.TotalCents))
	}
	if res.ChargeID == "" {
		return nil, checkoutErr(KindGatewayAPIError, payment.ErrUnexpectedResponse)
	}

	p := &payment.Payment{
		OrderID:        o.ID,
		AmountCents:    o.TotalCents,
		Mode:           s.paymentGate.Mode(),
		IdempotencyKey: utils.StrPtr(sessionKeyPrefix + sessionID),
	}
	if err := s.paymentRepo.CreatePayment(ctx, p); err != nil {
		if errors.Is(err, payment.ErrPaymentInFlight) || errors.Is(err, payment.ErrOrderNotPayable) {
			// A concurrent verification of the same session may just have won.
			if current, gerr := s.repo.GetOrder(ctx, o.ID); gerr == nil && s.paidBy(ctx, o.ID, res.ChargeID) {
				return current, nil
			}
		}
		if errors.Is(err, payment.ErrOrderNotPayable) {
			return nil, checkoutErr(KindInvalidOrder, s.guardFailure(ctx, o.ID, EventPay, err))
		}
		return nil, err
	}

	invoice := utils.GenerateInvoiceNumber(s.now())
	if err := s.repo.MarkPaid(ctx, MarkPaidInput{
		OrderID:       o.ID,
		PaymentID:     p.ID,
		ChargeID:      res.ChargeID,
		InvoiceNumber: invoice,
	}); err != nil {
		log.Error("hosted charge succeeded but order was not marked paid",
			zap.String("charge_id", res.ChargeID),
			zap.Error(err),
		)
		return nil, fmt.Errorf("%w: charge %s: %v", ErrChargeOrphaned, res.ChargeID, err)
	}

	o.InvoiceNumber = utils.StrPtr(invoice)
	s.committed(ctx, o, StatusPaid)

	log.Info("hosted checkout verified", zap.String("charge_id", res.ChargeID))
	return o, nil
}

// paidBy reports whether chargeID is the order's successful payment.
func (s *service) paidBy(ctx context.Context, orderID uuid.UUID, chargeID string) bool {
	p, err := s.paymentRepo.GetSucceededPayment(ctx, orderID)
	if err != nil || p.ChargeID == nil {
		return false
	}
	return *p.ChargeID == chargeID
}

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

type RefundOutcome struct {
	Order         *Order
	Payment       *payment.Payment
	Refund        *payment.Refund
	FullyRefunded bool
}

// Refund refunds amountCents of the order's charge, or whatever is left of
// it when amountCents is nil. The order becomes REFUNDED once the charge is
// fully refunded. Failures are never retried here.
func (s *service) Refund(ctx context.Context, orderID uuid.UUID, amountCents *int64) (*RefundOutcome, error) {
	o, err := s.repo.GetOrder(ctx, orderID)
	if err != nil {
		return nil, err
	}

	to, err := Transition(o.Status, EventRefund)
	if err != nil {
		return nil, err
	}

	out, err := s.refundPayment(ctx, o, amountCents, true)
	if err != nil {
		return nil, err
	}

	if out.FullyRefunded {
		s.committed(ctx, o, to)
	}
	out.Order = o
	return out, nil
}

// Cancel cancels the order and restocks its items. A successful charge is
// refunded first; if that refund fails the order is left untouched.
func (s *service) Cancel(ctx context.Context, orderID uuid.UUID) (*Order, error) {
	log := logger.FromCtx(ctx).With(zap.String("order_id", orderID.String()))

	o, err := s.repo.GetOrder(ctx, orderID)
	if err != nil {
		return nil, err
	}

	to, err := Transition(o.Status, EventCancel)
	if err != nil {
		return nil, err
	}

	payments, err := s.paymentRepo.ListByOrder(ctx, o.ID)
	if err != nil {
		return nil, fmt.Errorf("list payments: %w", err)
	}

	charged := false
	for _, p := range payments {
		switch p.Status {
		case payment.StatusPending:
			return nil, payment.ErrPaymentInFlight
		case payment.StatusSucceeded:
			charged = true
		}
	}

	if charged {
		if _, err := s.refundPayment(ctx, o, nil, false); err != nil {
			log.Warn("cancel aborted: refund did not complete", zap.Error(err))
			return nil, err
		}
	}

	if err := s.repo.CancelOrder(ctx, o.ID, o.Status); err != nil {
		if charged {
			log.Error("charge refunded but order could not be cancelled", zap.Error(err))
		}
		return nil, s.guardFailure(ctx, o.ID, EventCancel, err)
	}

	s.committed(ctx, o, to)
	return o, nil
}

func (s *service) refundPayment(ctx context.Context, o *Order, amountCents *int64, updateOrder bool) (*RefundOutcome, error) {
	log := logger.FromCtx(ctx).With(zap.String("order_id", o.ID.String()))

	p, err := s.paymentRepo.GetSucceededPayment(ctx, o.ID)
	if errors.Is(err, payment.ErrPaymentNotFound) {
		log.Error("refund requested for an order without a successful payment",
			zap.String("status", string(o.Status)),
		)
		return nil, fmt.Errorf("%w: order %s", ErrMissingChargeID, o.ID)
	}
	if err != nil {
		return nil, err
	}
	log = log.With(zap.String("payment_id", p.ID.String()))

	if p.ChargeID == nil || *p.ChargeID == "" {
		log.Error("successful payment has no charge id; refusing to call the gateway")
		return nil, fmt.Errorf("%w: payment %s", ErrMissingChargeID, p.ID)
	}

	amount := p.RefundableCents()
	if amountCents != nil {
		if *amountCents <= 0 {
			return nil, ErrInvalidRefundAmount
		}
		if *amountCents > amount {
			return nil, payment.ErrRefundExceedsCharge
		}
		amount = *amountCents
	}
	if amount <= 0 {
		return nil, payment.ErrRefundExceedsCharge
	}

	ref := &payment.Refund{PaymentID: p.ID, OrderID: o.ID, AmountCents: amount}
	if err := s.paymentRepo.BeginRefund(ctx, ref); err != nil {
		return nil, err
	}
	log = log.With(zap.String("refund_id", ref.ID.String()), zap.Int64("amount_cents", amount))

	gctx, cancel := s.gatewayContext(ctx)
	res, err := s.paymentGate.Refund(gctx, payment.RefundRequest{
		RefundID:    ref.ID,
		ChargeID:    *p.ChargeID,
		AmountCents: amount,
	})
	cancel()

	if err != nil {
		if payment.IsAmbiguous(err) {
			log.Warn("refund outcome unknown; refund left pending", zap.Error(err))
			return nil, fmt.Errorf("refund %s: %w", ref.ID, err)
		}
		return nil, s.refundFailed(ctx, log, o, ref, err.Error(), err)
	}
	if !res.Success {
		return nil, s.refundFailed(ctx, log, o, ref, res.FailureReason, nil)
	}

	fully, err := s.repo.CompleteRefund(ctx, RefundCompletion{
		RefundID:        ref.ID,
		PaymentID:       p.ID,
		OrderID:         o.ID,
		AmountCents:     amount,
		GatewayRefundID: res.RefundID,
		OrderFrom:       o.Status,
		UpdateOrder:     updateOrder,
	})
	if err != nil {
		log.Error("gateway refunded but the refund was not fully recorded",
			zap.String("gateway_refund_id", res.RefundID),
			zap.Error(err),
		)
		return nil, s.guardFailure(ctx, o.ID, EventRefund, err)
	}

	ref.Status = payment.RefundSucceeded
	ref.GatewayRefundID = utils.StrPtr(res.RefundID)
	p.RefundedCents += amount
	if fully {
		p.Status = payment.StatusRefunded
	}

	log.Info("refund succeeded", zap.String("gateway_refund_id", res.RefundID), zap.Bool("fully_refunded", fully))
	s.notifier.OrderEvent(ctx, Notification{
		Kind:        NotifyRefundIssued,
		OrderID:     o.ID,
		UserID:      o.UserID,
		Status:      o.Status,
		AmountCents: amount,
	})

	return &RefundOutcome{Payment: p, Refund: ref, FullyRefunded: fully}, nil
}

func (s *service) refundFailed(ctx context.Context, log *zap.Logger, o *Order, ref *payment.Refund, reason string, cause error) error {
	log.Warn("refund failed", zap.String("reason", reason))

	if err := s.paymentRepo.FailRefund(ctx, ref.ID, reason); err != nil {
		log.Error("failed recording refund failure", zap.Error(err))
	}

	s.notifier.OrderEvent(ctx, Notification{
		Kind:        NotifyRefundFailed,
		OrderID:     o.ID,
		UserID:      o.UserID,
		Status:      o.Status,
		AmountCents: ref.AmountCents,
		Reason:      reason,
	})
	return &RefundFailedError{Reason: reason, Err: cause}
}

package order

import (
	"context"
	"errors"
	"fmt"

	"storefront-be/internal/logger"
	"storefront-be/internal/payment"
	"storefront-be/internal/utils"
	"storefront-be/internal/validation"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// PayInput is a card payment request. IdempotencyKey is optional; a repeated
// key returns the first attempt's outcome instead of charging again.
type PayInput struct {
	Form           validation.PaymentForm
	IdempotencyKey string
}

type PayResult struct {
	Order    *Order
	Payment  *payment.Payment
	Replayed bool
}

func (s *service) Pay(ctx context.Context, userID uint, orderID uuid.UUID, in PayInput) (*PayResult, error) {
	log := logger.FromCtx(ctx).With(zap.String("order_id", orderID.String()))

	o, err := s.repo.GetOrder(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if o.UserID != userID {
		return nil, ErrForbidden
	}

	// Nothing reaches the gateway before the whole form is valid.
	if err := validation.ValidatePaymentForm(in.Form, s.now()); err != nil {
		log.Info("payment form rejected", zap.Error(err))
		return nil, err
	}

	if in.IdempotencyKey != "" {
		prev, err := s.paymentRepo.GetByIdempotencyKey(ctx, orderID, in.IdempotencyKey)
		switch {
		case err == nil:
			log.Info("idempotent payment replay", zap.String("payment_id", prev.ID.String()))
			return replay(o, prev)
		case !errors.Is(err, payment.ErrPaymentNotFound):
			return nil, fmt.Errorf("lookup idempotency key: %w", err)
		}
	}

	if _, err := Transition(o.Status, EventPay); err != nil {
		return nil, err
	}

	p := &payment.Payment{
		OrderID:     o.ID,
		AmountCents: o.TotalCents,
		Mode:        s.paymentGate.Mode(),
	}
	if in.IdempotencyKey != "" {
		p.IdempotencyKey = utils.StrPtr(in.IdempotencyKey)
	}
	if err := s.paymentRepo.CreatePayment(ctx, p); err != nil {
		return nil, s.guardFailure(ctx, o.ID, EventPay, err)
	}
	log = log.With(zap.String("payment_id", p.ID.String()))

	gctx, cancel := s.gatewayContext(ctx)
	res, err := s.paymentGate.Charge(gctx, payment.ChargeRequest{
		PaymentID:   p.ID,
		OrderID:     o.ID,
		AmountCents: p.AmountCents,
		Currency:    s.currency,
		Card:        cardFromForm(in.Form),
	})
	cancel()

	if err != nil {
		return nil, s.chargeFailed(ctx, log, p, err)
	}

	if !res.Success {
		if err := s.paymentRepo.MarkFailed(ctx, p.ID, res.FailureReason); err != nil {
			log.Error("failed recording declined payment", zap.Error(err))
			return nil, err
		}
		p.Status = payment.StatusFailed
		p.FailureReason = utils.StrPtr(res.FailureReason)

		log.Info("payment declined", zap.String("reason", res.FailureReason))
		s.notifier.OrderEvent(ctx, Notification{
			Kind:        NotifyPaymentFailed,
			OrderID:     o.ID,
			UserID:      o.UserID,
			Status:      o.Status,
			AmountCents: p.AmountCents,
			Reason:      res.FailureReason,
		})
		return &PayResult{Order: o, Payment: p}, &PaymentDeclinedError{Reason: res.FailureReason}
	}

	if res.ChargeID == "" {
		log.Error("gateway reported success without a charge id; payment left pending")
		return nil, fmt.Errorf("charge %s: %w", p.ID, payment.ErrUnexpectedResponse)
	}

	invoice := utils.GenerateInvoiceNumber(s.now())
	err = s.repo.MarkPaid(ctx, MarkPaidInput{
		OrderID:       o.ID,
		PaymentID:     p.ID,
		ChargeID:      res.ChargeID,
		InvoiceNumber: invoice,
	})
	if err != nil {
		log.Error("charge succeeded but order was not marked paid",
			zap.String("charge_id", res.ChargeID),
			zap.Error(err),
		)
		return nil, fmt.Errorf("%w: charge %s: %v", ErrChargeOrphaned, res.ChargeID, err)
	}

	p.Status = payment.StatusSucceeded
	p.ChargeID = utils.StrPtr(res.ChargeID)
	o.InvoiceNumber = utils.StrPtr(invoice)
	s.committed(ctx, o, StatusPaid)

	log.Info("payment succeeded", zap.String("charge_id", res.ChargeID))
	return &PayResult{Order: o, Payment: p}, nil
}

// chargeFailed handles a gateway error. Ambiguous errors leave the attempt
// PENDING for reconciliation; definitive ones mark it FAILED.
func (s *service) chargeFailed(ctx context.Context, log *zap.Logger, p *payment.Payment, err error) error {
	if payment.IsAmbiguous(err) {
		log.Warn("charge outcome unknown; payment left pending", zap.Error(err))
		return fmt.Errorf("charge %s: %w", p.ID, err)
	}

	log.Error("charge failed", zap.Error(err))
	if markErr := s.paymentRepo.MarkFailed(ctx, p.ID, err.Error()); markErr != nil {
		log.Error("failed recording failed payment", zap.Error(markErr))
	}
	return fmt.Errorf("charge %s: %w", p.ID, err)
}

func replay(o *Order, prev *payment.Payment) (*PayResult, error) {
	res := &PayResult{Order: o, Payment: prev, Replayed: true}

	switch prev.Status {
	case payment.StatusPending:
		return nil, ErrPaymentPending
	case payment.StatusFailed:
		return res, &PaymentDeclinedError{Reason: utils.PtrString(prev.FailureReason)}
	default:
		return res, nil
	}
}

func cardFromForm(f validation.PaymentForm) payment.Card {
	year := f.ExpYear
	if year < 100 {
		year += 2000
	}
	return payment.Card{
		Number:   validation.NormalizeCardNumber(f.CardNumber),
		ExpMonth: f.ExpMonth,
		ExpYear:  year,
		CVC:      f.CVC,
	}
}

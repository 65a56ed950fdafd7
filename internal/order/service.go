package order

import (
	"context"
	"errors"
	"fmt"
	"time"

	"storefront-be/internal/logger"
	"storefront-be/internal/payment"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

type Service interface {
	Checkout(ctx context.Context, userID uint, items []CheckoutItem) (*Order, error)
	GetOrder(ctx context.Context, userID uint, isAdmin bool, orderID uuid.UUID) (*Order, error)
	ListOrders(ctx context.Context, userID uint, isAdmin bool, filter ListFilter) ([]Order, error)
	ListPayments(ctx context.Context, orderID uuid.UUID) ([]payment.Payment, []payment.Refund, error)

	Pay(ctx context.Context, userID uint, orderID uuid.UUID, in PayInput) (*PayResult, error)
	CreateCheckoutSession(ctx context.Context, userID uint, orderID uuid.UUID) (*payment.CheckoutSession, error)
	VerifyCheckoutSession(ctx context.Context, userID uint, isAdmin bool, sessionID string) (*Order, error)

	Validate(ctx context.Context, orderID uuid.UUID) (*Order, error)
	Ship(ctx context.Context, orderID uuid.UUID, delivery Delivery) (*Order, error)
	MarkDelivered(ctx context.Context, orderID uuid.UUID) (*Order, error)
	Cancel(ctx context.Context, orderID uuid.UUID) (*Order, error)
	Refund(ctx context.Context, orderID uuid.UUID, amountCents *int64) (*RefundOutcome, error)
}

// TransitionRecorder observes committed status changes.
type TransitionRecorder interface {
	ObserveTransition(from, to string)
}

// Options carries the payment settings and collaborators of the service.
type Options struct {
	Currency       string
	GatewayTimeout time.Duration
	SuccessURL     string
	CancelURL      string
	Notifier       Notifier
	Recorder       TransitionRecorder
	Now            func() time.Time
}

type service struct {
	repo        Repository
	paymentRepo payment.Repository
	paymentGate payment.Gateway

	currency       string
	gatewayTimeout time.Duration
	successURL     string
	cancelURL      string
	notifier       Notifier
	recorder       TransitionRecorder
	now            func() time.Time
}

func NewService(repo Repository, payRepo payment.Repository, payGate payment.Gateway, opts Options) Service {
	s := &service{
		repo:           repo,
		paymentRepo:    payRepo,
		paymentGate:    payGate,
		currency:       opts.Currency,
		gatewayTimeout: opts.GatewayTimeout,
		successURL:     opts.SuccessURL,
		cancelURL:      opts.CancelURL,
		notifier:       opts.Notifier,
		recorder:       opts.Recorder,
		now:            opts.Now,
	}
	if s.currency == "" {
		s.currency = "usd"
	}
	if s.gatewayTimeout <= 0 {
		s.gatewayTimeout = 15 * time.Second
	}
	if s.notifier == nil {
		s.notifier = LogNotifier{}
	}
	if s.now == nil {
		s.now = time.Now
	}
	return s
}

func (s *service) Checkout(ctx context.Context, userID uint, items []CheckoutItem) (*Order, error) {
	if userID == 0 {
		return nil, ErrUnauthorized
	}
	if len(items) == 0 {
		return nil, ErrEmptyCart
	}

	// Merge repeated lines so each product row is locked and decremented once.
	merged := make([]CheckoutItem, 0, len(items))
	index := make(map[uuid.UUID]int, len(items))
	for _, it := range items {
		if it.Quantity <= 0 {
			return nil, ErrInvalidQuantity
		}
		if i, ok := index[it.ProductID]; ok {
			merged[i].Quantity += it.Quantity
			continue
		}
		index[it.ProductID] = len(merged)
		merged = append(merged, it)
	}

	o, err := s.repo.CreateOrder(ctx, userID, merged)
	if err != nil {
		return nil, err
	}

	s.notifier.OrderEvent(ctx, Notification{
		Kind:        NotifyOrderCreated,
		OrderID:     o.ID,
		UserID:      o.UserID,
		Status:      o.Status,
		AmountCents: o.TotalCents,
	})
	return o, nil
}

func (s *service) GetOrder(ctx context.Context, userID uint, isAdmin bool, orderID uuid.UUID) (*Order, error) {
	o, err := s.repo.GetOrder(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if !isAdmin && o.UserID != userID {
		return nil, ErrForbidden
	}
	return o, nil
}

func (s *service) ListOrders(ctx context.Context, userID uint, isAdmin bool, filter ListFilter) ([]Order, error) {
	if !isAdmin {
		filter.UserID = &userID
	}
	return s.repo.ListOrders(ctx, filter)
}

func (s *service) ListPayments(ctx context.Context, orderID uuid.UUID) ([]payment.Payment, []payment.Refund, error) {
	if _, err := s.repo.GetOrder(ctx, orderID); err != nil {
		return nil, nil, err
	}

	payments, err := s.paymentRepo.ListByOrder(ctx, orderID)
	if err != nil {
		return nil, nil, fmt.Errorf("list payments: %w", err)
	}
	refunds, err := s.paymentRepo.ListRefunds(ctx, orderID)
	if err != nil {
		return nil, nil, fmt.Errorf("list refunds: %w", err)
	}
	return payments, refunds, nil
}

func (s *service) Validate(ctx context.Context, orderID uuid.UUID) (*Order, error) {
	return s.advance(ctx, orderID, EventValidate, func(o *Order, to OrderStatus) error {
		return s.repo.TransitionStatus(ctx, o.ID, o.Status, to)
	})
}

func (s *service) Ship(ctx context.Context, orderID uuid.UUID, delivery Delivery) (*Order, error) {
	return s.advance(ctx, orderID, EventShip, func(o *Order, _ OrderStatus) error {
		if delivery.Carrier == "" || delivery.TrackingNumber == "" {
			return ErrMissingDelivery
		}
		if err := s.repo.Ship(ctx, o.ID, delivery); err != nil {
			return err
		}
		delivery.Status = DeliveryInTransit
		o.Delivery = &delivery
		return nil
	})
}

func (s *service) MarkDelivered(ctx context.Context, orderID uuid.UUID) (*Order, error) {
	return s.advance(ctx, orderID, EventMarkDelivered, func(o *Order, _ OrderStatus) error {
		if err := s.repo.MarkDelivered(ctx, o.ID); err != nil {
			return err
		}
		if o.Delivery != nil {
			o.Delivery.Status = DeliveryDelivered
		}
		return nil
	})
}

// advance loads the order, checks event against the state table and runs
// apply. A conditional update lost to a concurrent writer is reported as the
// guard failure seen from the order's new status.
func (s *service) advance(
	ctx context.Context,
	orderID uuid.UUID,
	event Event,
	apply func(o *Order, to OrderStatus) error,
) (*Order, error) {
	o, err := s.repo.GetOrder(ctx, orderID)
	if err != nil {
		return nil, err
	}

	to, err := Transition(o.Status, event)
	if err != nil {
		return nil, err
	}

	if err := apply(o, to); err != nil {
		return nil, s.guardFailure(ctx, orderID, event, err)
	}

	s.committed(ctx, o, to)
	return o, nil
}

// guardFailure turns ErrStaleStatus and payment.ErrOrderNotPayable into the
// TransitionError of the status the order holds now.
func (s *service) guardFailure(ctx context.Context, orderID uuid.UUID, event Event, err error) error {
	if !errors.Is(err, ErrStaleStatus) && !errors.Is(err, payment.ErrOrderNotPayable) {
		return err
	}

	current, rerr := s.repo.GetOrder(ctx, orderID)
	if rerr != nil {
		return err
	}

	logger.FromCtx(ctx).Info("lost concurrent transition",
		zap.String("order_id", orderID.String()),
		zap.String("event", string(event)),
		zap.String("status", string(current.Status)),
	)
	return &TransitionError{From: current.Status, Event: event}
}

// committed updates o in place after a transition was persisted and emits the
// metric and notification.
func (s *service) committed(ctx context.Context, o *Order, to OrderStatus) {
	from := o.Status
	o.Status = to
	o.UpdatedAt = s.now()

	if s.recorder != nil {
		s.recorder.ObserveTransition(string(from), string(to))
	}

	logger.FromCtx(ctx).Info("order status changed",
		zap.String("order_id", o.ID.String()),
		zap.String("from", string(from)),
		zap.String("to", string(to)),
	)

	kind := NotifyStatusChanged
	switch to {
	case StatusPaid:
		kind = NotifyOrderPaid
	case StatusCancelled:
		kind = NotifyOrderCancelled
	}
	s.notifier.OrderEvent(ctx, Notification{Kind: kind, OrderID: o.ID, UserID: o.UserID, Status: to})
}

func (s *service) gatewayContext(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, s.gatewayTimeout)
}

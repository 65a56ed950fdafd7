package transport

import (
	"context"

	"storefront-be/internal/order"
	"storefront-be/internal/payment"

	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"
)

type MockService struct {
	mock.Mock
}

func orderOrNil(v any) *order.Order {
	o, _ := v.(*order.Order)
	return o
}

func (m *MockService) Checkout(ctx context.Context, userID uint, items []order.CheckoutItem) (*order.Order, error) {
	args := m.Called(ctx, userID, items)
	return orderOrNil(args.Get(0)), args.Error(1)
}

func (m *MockService) GetOrder(ctx context.Context, userID uint, isAdmin bool, orderID uuid.UUID) (*order.Order, error) {
	args := m.Called(ctx, userID, isAdmin, orderID)
	return orderOrNil(args.Get(0)), args.Error(1)
}

func (m *MockService) ListOrders(ctx context.Context, userID uint, isAdmin bool, filter order.ListFilter) ([]order.Order, error) {
	args := m.Called(ctx, userID, isAdmin, filter)
	orders, _ := args.Get(0).([]order.Order)
	return orders, args.Error(1)
}

func (m *MockService) ListPayments(ctx context.Context, orderID uuid.UUID) ([]payment.Payment, []payment.Refund, error) {
	args := m.Called(ctx, orderID)
	payments, _ := args.Get(0).([]payment.Payment)
	refunds, _ := args.Get(1).([]payment.Refund)
	return payments, refunds, args.Error(2)
}

func (m *MockService) Pay(ctx context.Context, userID uint, orderID uuid.UUID, in order.PayInput) (*order.PayResult, error) {
	args := m.Called(ctx, userID, orderID, in)
	res, _ := args.Get(0).(*order.PayResult)
	return res, args.Error(1)
}

func (m *MockService) CreateCheckoutSession(ctx context.Context, userID uint, orderID uuid.UUID) (*payment.CheckoutSession, error) {
	args := m.Called(ctx, userID, orderID)
	s, _ := args.Get(0).(*payment.CheckoutSession)
	return s, args.Error(1)
}

func (m *MockService) VerifyCheckoutSession(ctx context.Context, userID uint, isAdmin bool, sessionID string) (*order.Order, error) {
	args := m.Called(ctx, userID, isAdmin, sessionID)
	return orderOrNil(args.Get(0)), args.Error(1)
}

func (m *MockService) Validate(ctx context.Context, orderID uuid.UUID) (*order.Order, error) {
	args := m.Called(ctx, orderID)
	return orderOrNil(args.Get(0)), args.Error(1)
}

func (m *MockService) Ship(ctx context.Context, orderID uuid.UUID, delivery order.Delivery) (*order.Order, error) {
	args := m.Called(ctx, orderID, delivery)
	return orderOrNil(args.Get(0)), args.Error(1)
}

func (m *MockService) MarkDelivered(ctx context.Context, orderID uuid.UUID) (*order.Order, error) {
	args := m.Called(ctx, orderID)
	return orderOrNil(args.Get(0)), args.Error(1)
}

func (m *MockService) Cancel(ctx context.Context, orderID uuid.UUID) (*order.Order, error) {
	args := m.Called(ctx, orderID)
	return orderOrNil(args.Get(0)), args.Error(1)
}

func (m *MockService) Refund(ctx context.Context, orderID uuid.UUID, amountCents *int64) (*order.RefundOutcome, error) {
	args := m.Called(ctx, orderID, amountCents)
	out, _ := args.Get(0).(*order.RefundOutcome)
	return out, args.Error(1)
}

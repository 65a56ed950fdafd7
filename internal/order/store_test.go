package order

import (
	"context"
	"sort"
	"sync"
	"time"

	"storefront-be/internal/payment"

	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"
)

// memStore implements Repository and payment.Repository in memory with the
// same conditional-update rules as the SQL stores.
type memStore struct {
	mu       sync.Mutex
	products map[uuid.UUID]*memProduct
	orders   map[uuid.UUID]*Order
	payments []*payment.Payment
	refunds  []*payment.Refund
}

type memProduct struct {
	price int64
	stock int
}

func newMemStore() *memStore {
	return &memStore{
		products: map[uuid.UUID]*memProduct{},
		orders:   map[uuid.UUID]*Order{},
	}
}

func (m *memStore) addProduct(price int64, stock int) uuid.UUID {
	id := uuid.New()
	m.products[id] = &memProduct{price: price, stock: stock}
	return id
}

func (m *memStore) stock(id uuid.UUID) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.products[id].stock
}

func (m *memStore) status(id uuid.UUID) OrderStatus {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.orders[id].Status
}

func (m *memStore) CreateOrder(ctx context.Context, userID uint, items []CheckoutItem) (*Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	o := &Order{ID: uuid.New(), UserID: userID, Status: StatusCreated, CreatedAt: time.Now()}
	for _, it := range items {
		p, ok := m.products[it.ProductID]
		if !ok {
			return nil, ErrProductNotFound
		}
		if p.stock < it.Quantity {
			return nil, ErrOutOfStock
		}
		o.Items = append(o.Items, OrderItem{ProductID: it.ProductID, Quantity: it.Quantity, UnitPriceCents: p.price})
	}
	for _, it := range items {
		m.products[it.ProductID].stock -= it.Quantity
	}
	o.TotalCents = totalOf(o.Items)
	o.UpdatedAt = o.CreatedAt

	m.orders[o.ID] = o
	cp := *o
	return &cp, nil
}

func (m *memStore) GetOrder(ctx context.Context, id uuid.UUID) (*Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	o, ok := m.orders[id]
	if !ok {
		return nil, ErrOrderNotFound
	}
	cp := *o
	cp.Items = append([]OrderItem(nil), o.Items...)
	if o.Delivery != nil {
		d := *o.Delivery
		cp.Delivery = &d
	}
	return &cp, nil
}

func (m *memStore) ListOrders(ctx context.Context, filter ListFilter) ([]Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := []Order{}
	for _, o := range m.orders {
		if filter.UserID != nil && o.UserID != *filter.UserID {
			continue
		}
		if filter.Status != nil && o.Status != *filter.Status {
			continue
		}
		out = append(out, *o)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (m *memStore) setStatus(id uuid.UUID, from, to OrderStatus) error {
	o, ok := m.orders[id]
	if !ok || o.Status != from {
		return ErrStaleStatus
	}
	o.Status = to
	o.UpdatedAt = time.Now()
	return nil
}

func (m *memStore) TransitionStatus(ctx context.Context, id uuid.UUID, from, to OrderStatus) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.setStatus(id, from, to)
}

func (m *memStore) Ship(ctx context.Context, id uuid.UUID, d Delivery) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.setStatus(id, StatusValidated, StatusShipped); err != nil {
		return err
	}
	d.Status = DeliveryInTransit
	m.orders[id].Delivery = &d
	return nil
}

func (m *memStore) MarkDelivered(ctx context.Context, id uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.setStatus(id, StatusShipped, StatusDelivered); err != nil {
		return err
	}
	if d := m.orders[id].Delivery; d != nil {
		d.Status = DeliveryDelivered
	}
	return nil
}

func (m *memStore) MarkPaid(ctx context.Context, in MarkPaidInput) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	p := m.payment(in.PaymentID)
	if p == nil || p.Status != payment.StatusPending {
		return payment.ErrStalePayment
	}
	p.Status = payment.StatusSucceeded
	chargeID := in.ChargeID
	p.ChargeID = &chargeID

	if err := m.setStatus(in.OrderID, StatusCreated, StatusPaid); err != nil {
		return err
	}
	invoice := in.InvoiceNumber
	m.orders[in.OrderID].InvoiceNumber = &invoice
	return nil
}

func (m *memStore) CompleteRefund(ctx context.Context, in RefundCompletion) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var ref *payment.Refund
	for _, r := range m.refunds {
		if r.ID == in.RefundID && r.Status == payment.RefundPending {
			ref = r
		}
	}
	if ref == nil {
		return false, payment.ErrRefundNotFound
	}

	p := m.payment(in.PaymentID)
	if p == nil || p.Status != payment.StatusSucceeded || p.RefundedCents+in.AmountCents > p.AmountCents {
		return false, payment.ErrRefundExceedsCharge
	}

	ref.Status = payment.RefundSucceeded
	gatewayID := in.GatewayRefundID
	ref.GatewayRefundID = &gatewayID
	p.RefundedCents += in.AmountCents

	fully := p.RefundedCents == p.AmountCents
	if fully {
		p.Status = payment.StatusRefunded
	}
	if fully && in.UpdateOrder {
		return true, m.setStatus(in.OrderID, in.OrderFrom, StatusRefunded)
	}
	return fully, nil
}

func (m *memStore) CancelOrder(ctx context.Context, id uuid.UUID, from OrderStatus) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.setStatus(id, from, StatusCancelled); err != nil {
		return err
	}
	for _, it := range m.orders[id].Items {
		m.products[it.ProductID].stock += it.Quantity
	}
	return nil
}

func (m *memStore) payment(id uuid.UUID) *payment.Payment {
	for _, p := range m.payments {
		if p.ID == id {
			return p
		}
	}
	return nil
}

func (m *memStore) CreatePayment(ctx context.Context, p *payment.Payment) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if o, ok := m.orders[p.OrderID]; !ok || o.Status != StatusCreated {
		return payment.ErrOrderNotPayable
	}
	for _, existing := range m.payments {
		if existing.OrderID != p.OrderID {
			continue
		}
		if existing.Status == payment.StatusPending {
			return payment.ErrPaymentInFlight
		}
		if p.IdempotencyKey != nil && existing.IdempotencyKey != nil && *existing.IdempotencyKey == *p.IdempotencyKey {
			return payment.ErrPaymentInFlight
		}
	}

	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	p.Status = payment.StatusPending
	p.CreatedAt = time.Now()
	cp := *p
	m.payments = append(m.payments, &cp)
	return nil
}

func (m *memStore) GetPayment(ctx context.Context, id uuid.UUID) (*payment.Payment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	p := m.payment(id)
	if p == nil {
		return nil, payment.ErrPaymentNotFound
	}
	cp := *p
	return &cp, nil
}

func (m *memStore) GetByIdempotencyKey(ctx context.Context, orderID uuid.UUID, key string) (*payment.Payment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, p := range m.payments {
		if p.OrderID == orderID && p.IdempotencyKey != nil && *p.IdempotencyKey == key {
			cp := *p
			return &cp, nil
		}
	}
	return nil, payment.ErrPaymentNotFound
}

func (m *memStore) GetSucceededPayment(ctx context.Context, orderID uuid.UUID) (*payment.Payment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for i := len(m.payments) - 1; i >= 0; i-- {
		p := m.payments[i]
		if p.OrderID == orderID && p.Status == payment.StatusSucceeded {
			cp := *p
			return &cp, nil
		}
	}
	return nil, payment.ErrPaymentNotFound
}

func (m *memStore) ListByOrder(ctx context.Context, orderID uuid.UUID) ([]payment.Payment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := []payment.Payment{}
	for _, p := range m.payments {
		if p.OrderID == orderID {
			out = append(out, *p)
		}
	}
	return out, nil
}

func (m *memStore) MarkFailed(ctx context.Context, id uuid.UUID, reason string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	p := m.payment(id)
	if p == nil || p.Status != payment.StatusPending {
		return payment.ErrStalePayment
	}
	p.Status = payment.StatusFailed
	p.FailureReason = &reason
	return nil
}

func (m *memStore) BeginRefund(ctx context.Context, r *payment.Refund) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	p := m.payment(r.PaymentID)
	if p == nil || p.Status != payment.StatusSucceeded || p.RefundedCents+r.AmountCents > p.AmountCents {
		return payment.ErrRefundExceedsCharge
	}
	for _, existing := range m.refunds {
		if existing.PaymentID == r.PaymentID && existing.Status == payment.RefundPending {
			return payment.ErrRefundInFlight
		}
	}

	if r.ID == uuid.Nil {
		r.ID = uuid.New()
	}
	r.Status = payment.RefundPending
	r.OrderID = p.OrderID
	cp := *r
	m.refunds = append(m.refunds, &cp)
	return nil
}

func (m *memStore) FailRefund(ctx context.Context, id uuid.UUID, reason string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, r := range m.refunds {
		if r.ID == id && r.Status == payment.RefundPending {
			r.Status = payment.RefundFailed
			r.FailureReason = &reason
			return nil
		}
	}
	return payment.ErrRefundNotFound
}

func (m *memStore) ListRefunds(ctx context.Context, orderID uuid.UUID) ([]payment.Refund, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := []payment.Refund{}
	for _, r := range m.refunds {
		if r.OrderID == orderID {
			out = append(out, *r)
		}
	}
	return out, nil
}

// MockGateway is a testify mock of payment.Gateway.
type MockGateway struct {
	mock.Mock
}

func (m *MockGateway) Mode() payment.Mode { return payment.ModeStripe }

func (m *MockGateway) Charge(ctx context.Context, req payment.ChargeRequest) (*payment.ChargeResult, error) {
	args := m.Called(ctx, req)
	res, _ := args.Get(0).(*payment.ChargeResult)
	return res, args.Error(1)
}

func (m *MockGateway) Refund(ctx context.Context, req payment.RefundRequest) (*payment.RefundResult, error) {
	args := m.Called(ctx, req)
	res, _ := args.Get(0).(*payment.RefundResult)
	return res, args.Error(1)
}

func (m *MockGateway) CreateCheckoutSession(ctx context.Context, req payment.CheckoutSessionRequest) (*payment.CheckoutSession, error) {
	args := m.Called(ctx, req)
	res, _ := args.Get(0).(*payment.CheckoutSession)
	return res, args.Error(1)
}

func (m *MockGateway) GetCheckoutSession(ctx context.Context, sessionID string) (*payment.CheckoutSessionResult, error) {
	args := m.Called(ctx, sessionID)
	res, _ := args.Get(0).(*payment.CheckoutSessionResult)
	return res, args.Error(1)
}

// recordingNotifier keeps every notification it receives.
type recordingNotifier struct {
	mu    sync.Mutex
	kinds []NotificationKind
}

func (n *recordingNotifier) OrderEvent(ctx context.Context, note Notification) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.kinds = append(n.kinds, note.Kind)
}

func (n *recordingNotifier) has(kind NotificationKind) bool {
	n.mu.Lock()
	defer n.mu.Unlock()
	for _, k := range n.kinds {
		if k == kind {
			return true
		}
	}
	return false
}

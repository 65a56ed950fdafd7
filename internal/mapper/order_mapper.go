package mapper

import (
	"time"

	"storefront-be/internal/order"
	"storefront-be/internal/payment"
)

func MapOrderItem(it order.OrderItem) OrderItem {
	return OrderItem{
		ProductID:      it.ProductID.String(),
		Quantity:       it.Quantity,
		UnitPriceCents: it.UnitPriceCents,
		SubtotalCents:  it.SubtotalCents(),
	}
}

func MapOrder(o *order.Order) Order {
	res := Order{
		ID:            o.ID.String(),
		UserID:        o.UserID,
		Status:        string(o.Status),
		TotalCents:    o.TotalCents,
		InvoiceNumber: o.InvoiceNumber,
		CreatedAt:     formatTime(o.CreatedAt),
		UpdatedAt:     formatTime(o.UpdatedAt),
	}
	if o.Delivery != nil {
		res.Delivery = &Delivery{
			Carrier:        o.Delivery.Carrier,
			TrackingNumber: o.Delivery.TrackingNumber,
			Status:         string(o.Delivery.Status),
		}
	}
	if len(o.Items) > 0 {
		res.Items = make([]OrderItem, 0, len(o.Items))
		for _, it := range o.Items {
			res.Items = append(res.Items, MapOrderItem(it))
		}
	}
	return res
}

func MapOrders(orders []order.Order) []Order {
	res := make([]Order, 0, len(orders))
	for i := range orders {
		res = append(res, MapOrder(&orders[i]))
	}
	return res
}

func MapCheckout(o *order.Order) CheckoutResponse {
	return CheckoutResponse{
		OrderID:    o.ID.String(),
		TotalCents: o.TotalCents,
		Status:     string(o.Status),
	}
}

// MapPayResult reports a charge attempt; a declined attempt carries status
// FAILED and the gateway reason.
func MapPayResult(res *order.PayResult) PayResponse {
	return PayResponse{
		Status:        string(res.Payment.Status),
		PaymentID:     res.Payment.ID.String(),
		ChargeID:      res.Payment.ChargeID,
		Reason:        res.Payment.FailureReason,
		OrderStatus:   string(res.Order.Status),
		InvoiceNumber: res.Order.InvoiceNumber,
		Replayed:      res.Replayed,
	}
}

func MapPayment(p payment.Payment) Payment {
	return Payment{
		ID:             p.ID.String(),
		AmountCents:    p.AmountCents,
		RefundedCents:  p.RefundedCents,
		Status:         string(p.Status),
		Mode:           string(p.Mode),
		ChargeID:       p.ChargeID,
		IdempotencyKey: p.IdempotencyKey,
		FailureReason:  p.FailureReason,
		CreatedAt:      formatTime(p.CreatedAt),
	}
}

func MapRefund(r payment.Refund) Refund {
	return Refund{
		ID:              r.ID.String(),
		PaymentID:       r.PaymentID.String(),
		AmountCents:     r.AmountCents,
		Status:          string(r.Status),
		GatewayRefundID: r.GatewayRefundID,
		FailureReason:   r.FailureReason,
		CreatedAt:       formatTime(r.CreatedAt),
	}
}

func MapPayments(payments []payment.Payment, refunds []payment.Refund) PaymentsResponse {
	res := PaymentsResponse{
		Payments: make([]Payment, 0, len(payments)),
		Refunds:  make([]Refund, 0, len(refunds)),
	}
	for _, p := range payments {
		res.Payments = append(res.Payments, MapPayment(p))
	}
	for _, r := range refunds {
		res.Refunds = append(res.Refunds, MapRefund(r))
	}
	return res
}

func MapRefundOutcome(out *order.RefundOutcome) RefundResponse {
	return RefundResponse{
		Order:         MapOrder(out.Order),
		Refund:        MapRefund(*out.Refund),
		FullyRefunded: out.FullyRefunded,
	}
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339)
}

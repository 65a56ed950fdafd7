package order

import (
	"context"

	"storefront-be/internal/logger"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

type NotificationKind string

const (
	NotifyOrderCreated   NotificationKind = "order_created"
	NotifyOrderPaid      NotificationKind = "order_paid"
	NotifyPaymentFailed  NotificationKind = "payment_failed"
	NotifyStatusChanged  NotificationKind = "status_changed"
	NotifyRefundIssued   NotificationKind = "refund_issued"
	NotifyRefundFailed   NotificationKind = "refund_failed"
	NotifyOrderCancelled NotificationKind = "order_cancelled"
)

type Notification struct {
	Kind        NotificationKind
	OrderID     uuid.UUID
	UserID      uint
	Status      OrderStatus
	AmountCents int64
	Reason      string
}

// Notifier tells the customer-facing side about order events. Delivery is
// best effort and never fails the operation that triggered it.
type Notifier interface {
	OrderEvent(ctx context.Context, n Notification)
}

// LogNotifier writes notifications as structured log entries.
type LogNotifier struct{}

func (LogNotifier) OrderEvent(ctx context.Context, n Notification) {
	fields := []zap.Field{
		zap.String("kind", string(n.Kind)),
		zap.String("order_id", n.OrderID.String()),
		zap.Uint("user_id", n.UserID),
		zap.String("status", string(n.Status)),
	}
	if n.AmountCents != 0 {
		fields = append(fields, zap.Int64("amount_cents", n.AmountCents))
	}
	if n.Reason != "" {
		fields = append(fields, zap.String("reason", n.Reason))
	}
	logger.FromCtx(ctx).Info("order notification", fields...)
}

package payment

import (
	"time"

	"github.com/google/uuid"
)

type Status string

const (
	StatusPending   Status = "PENDING"
	StatusSucceeded Status = "SUCCEEDED"
	StatusFailed    Status = "FAILED"
	StatusRefunded  Status = "REFUNDED"
)

// Mode identifies which gateway variant produced a record.
type Mode string

const (
	ModeSimulated Mode = "simulated"
	ModeStripe    Mode = "stripe"
)

// Payment is one charge attempt against an order. ChargeID stays nil until the
// gateway confirms the charge.
type Payment struct {
	ID             uuid.UUID
	OrderID        uuid.UUID
	AmountCents    int64
	RefundedCents  int64
	Status         Status
	Mode           Mode
	ChargeID       *string
	IdempotencyKey *string
	FailureReason  *string
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// RefundableCents is what is left of the charge after succeeded refunds.
func (p *Payment) RefundableCents() int64 {
	return p.AmountCents - p.RefundedCents
}

type RefundStatus string

const (
	RefundPending   RefundStatus = "PENDING"
	RefundSucceeded RefundStatus = "SUCCEEDED"
	RefundFailed    RefundStatus = "FAILED"
)

type Refund struct {
	ID              uuid.UUID
	PaymentID       uuid.UUID
	OrderID         uuid.UUID
	AmountCents     int64
	Status          RefundStatus
	GatewayRefundID *string
	FailureReason   *string
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

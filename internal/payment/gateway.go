package payment

import (
	"context"

	"storefront-be/internal/config"

	"github.com/google/uuid"
)

// Card is the raw card data of a charge. It is never persisted.
type Card struct {
	Number   string
	ExpMonth int
	ExpYear  int
	CVC      string
}

type ChargeRequest struct {
	PaymentID   uuid.UUID
	OrderID     uuid.UUID
	AmountCents int64
	Currency    string
	Card        Card
}

// ChargeResult is a definitive gateway answer. A decline is Success=false with
// a nil error.
type ChargeResult struct {
	Success       bool
	ChargeID      string
	FailureReason string
}

type RefundRequest struct {
	RefundID    uuid.UUID
	ChargeID    string
	AmountCents int64
}

type RefundResult struct {
	Success       bool
	RefundID      string
	FailureReason string
}

type CheckoutSessionRequest struct {
	OrderID     uuid.UUID
	AmountCents int64
	Currency    string
	Description string
	SuccessURL  string
	CancelURL   string
}

type CheckoutSession struct {
	ID  string
	URL string
}

// CheckoutSessionResult is a hosted checkout session as reported back by the
// gateway, normalized to the fields the order flow needs.
type CheckoutSessionResult struct {
	ID          string
	OrderID     string
	Paid        bool
	AmountCents int64
	ChargeID    string
}

// Gateway is the charge/refund capability shared by the simulated and the real
// payment provider.
type Gateway interface {
	Mode() Mode
	Charge(ctx context.Context, req ChargeRequest) (*ChargeResult, error)
	Refund(ctx context.Context, req RefundRequest) (*RefundResult, error)
	CreateCheckoutSession(ctx context.Context, req CheckoutSessionRequest) (*CheckoutSession, error)
	GetCheckoutSession(ctx context.Context, sessionID string) (*CheckoutSessionResult, error)
}

// NewGateway selects the gateway variant once, from configuration.
func NewGateway(cfg config.PaymentConfig) Gateway {
	if cfg.Simulation {
		return NewSimulatedGateway()
	}
	return NewStripeGateway(StripeOptions{
		SecretKey:        cfg.StripeSecretKey,
		BaseURL:          cfg.StripeBaseURL,
		AllowRawCardData: cfg.AllowRawCardData,
		Timeout:          cfg.GatewayTimeout,
	})
}

package payment

import (
	"context"
	"encoding/hex"
	"net/url"
	"strings"
	"sync"

	"storefront-be/internal/logger"
	"storefront-be/internal/validation"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Simulated references carry a fixed prefix so records produced in simulation
// can never be mistaken for real gateway ids.
const (
	SimulatedChargePrefix  = "sim_ch_"
	SimulatedRefundPrefix  = "sim_re_"
	SimulatedSessionPrefix = "sim_cs_"

	// DeclineCardNumber is always declined; so is any number ending in DeclineSuffix.
	DeclineCardNumber = "4000000000000002"
	DeclineSuffix     = "0002"

	sessionIDPlaceholder = "{CHECKOUT_SESSION_ID}"
)

type simulatedSession struct {
	orderID     string
	amountCents int64
	chargeID    string
}

// SimulatedGateway is a deterministic, rule-based stand-in for the real provider.
type SimulatedGateway struct {
	mu       sync.Mutex
	sessions map[string]simulatedSession
}

func NewSimulatedGateway() *SimulatedGateway {
	return &SimulatedGateway{sessions: make(map[string]simulatedSession)}
}

func (g *SimulatedGateway) Mode() Mode { return ModeSimulated }

func (g *SimulatedGateway) Charge(ctx context.Context, req ChargeRequest) (*ChargeResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, ErrGatewayTimeout
	}

	log := logger.FromCtx(ctx).With(
		zap.String("gateway", string(ModeSimulated)),
		zap.String("payment_id", req.PaymentID.String()),
		zap.Int64("amount_cents", req.AmountCents),
	)

	number := validation.NormalizeCardNumber(req.Card.Number)

	switch {
	case req.AmountCents <= 0:
		log.Warn("simulated charge rejected: non-positive amount")
		return &ChargeResult{FailureReason: "invalid_amount"}, nil
	case !validation.ValidateCardNumber(number).Valid:
		log.Info("simulated charge declined: invalid number")
		return &ChargeResult{FailureReason: "invalid_number"}, nil
	case number == DeclineCardNumber || strings.HasSuffix(number, DeclineSuffix):
		log.Info("simulated charge declined")
		return &ChargeResult{FailureReason: "card_declined"}, nil
	}

	chargeID := newSimulatedID(SimulatedChargePrefix)
	log.Info("simulated charge accepted", zap.String("charge_id", chargeID))

	return &ChargeResult{Success: true, ChargeID: chargeID}, nil
}

func (g *SimulatedGateway) Refund(ctx context.Context, req RefundRequest) (*RefundResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, ErrGatewayTimeout
	}

	log := logger.FromCtx(ctx).With(
		zap.String("gateway", string(ModeSimulated)),
		zap.String("charge_id", req.ChargeID),
		zap.Int64("amount_cents", req.AmountCents),
	)

	if !IsSimulatedChargeID(req.ChargeID) {
		log.Warn("simulated refund rejected: unknown charge reference")
		return &RefundResult{FailureReason: "invalid_charge_id"}, nil
	}
	if req.AmountCents <= 0 {
		return &RefundResult{FailureReason: "invalid_amount"}, nil
	}

	refundID := newSimulatedID(SimulatedRefundPrefix)
	log.Info("simulated refund accepted", zap.String("refund_id", refundID))

	return &RefundResult{Success: true, RefundID: refundID}, nil
}

func (g *SimulatedGateway) CreateCheckoutSession(ctx context.Context, req CheckoutSessionRequest) (*CheckoutSession, error) {
	if req.AmountCents <= 0 {
		return nil, &APIError{StatusCode: 400, Type: "invalid_request_error", Message: "amount must be positive"}
	}

	id := newSimulatedID(SimulatedSessionPrefix)

	g.mu.Lock()
	g.sessions[id] = simulatedSession{
		orderID:     req.OrderID.String(),
		amountCents: req.AmountCents,
		chargeID:    newSimulatedID(SimulatedChargePrefix),
	}
	g.mu.Unlock()

	logger.FromCtx(ctx).Info("simulated checkout session created",
		zap.String("session_id", id),
		zap.String("order_id", req.OrderID.String()),
	)

	return &CheckoutSession{ID: id, URL: sessionURL(req.SuccessURL, id)}, nil
}

func (g *SimulatedGateway) GetCheckoutSession(ctx context.Context, sessionID string) (*CheckoutSessionResult, error) {
	g.mu.Lock()
	s, ok := g.sessions[sessionID]
	g.mu.Unlock()

	if !ok {
		return nil, ErrSessionNotFound
	}

	return &CheckoutSessionResult{
		ID:          sessionID,
		OrderID:     s.orderID,
		Paid:        true,
		AmountCents: s.amountCents,
		ChargeID:    s.chargeID,
	}, nil
}

// IsSimulatedChargeID reports whether id is a well-formed simulated charge id.
func IsSimulatedChargeID(id string) bool {
	return isSimulatedID(id, SimulatedChargePrefix)
}

func isSimulatedID(id, prefix string) bool {
	rest, found := strings.CutPrefix(id, prefix)
	if !found || len(rest) != 32 {
		return false
	}
	_, err := hex.DecodeString(rest)
	return err == nil
}

func newSimulatedID(prefix string) string {
	u := uuid.New()
	return prefix + hex.EncodeToString(u[:])
}

func sessionURL(successURL, sessionID string) string {
	if successURL == "" {
		return "/checkout/simulated?session_id=" + url.QueryEscape(sessionID)
	}
	if strings.Contains(successURL, sessionIDPlaceholder) {
		return strings.ReplaceAll(successURL, sessionIDPlaceholder, sessionID)
	}
	sep := "?"
	if strings.Contains(successURL, "?") {
		sep = "&"
	}
	return successURL + sep + "session_id=" + url.QueryEscape(sessionID)
}

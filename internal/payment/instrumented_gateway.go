package payment

import (
	"context"
	"errors"
	"time"
)

// Recorder receives one observation per gateway call.
type Recorder interface {
	ObserveGatewayCall(operation, mode, outcome string, elapsed time.Duration)
}

// Instrument wraps g so that every call is reported to rec.
func Instrument(g Gateway, rec Recorder) Gateway {
	if rec == nil {
		return g
	}
	return &instrumentedGateway{next: g, rec: rec}
}

type instrumentedGateway struct {
	next Gateway
	rec  Recorder
}

func (g *instrumentedGateway) Mode() Mode { return g.next.Mode() }

func (g *instrumentedGateway) Charge(ctx context.Context, req ChargeRequest) (*ChargeResult, error) {
	start := time.Now()
	res, err := g.next.Charge(ctx, req)
	g.observe("charge", start, res != nil && res.Success, err)
	return res, err
}

func (g *instrumentedGateway) Refund(ctx context.Context, req RefundRequest) (*RefundResult, error) {
	start := time.Now()
	res, err := g.next.Refund(ctx, req)
	g.observe("refund", start, res != nil && res.Success, err)
	return res, err
}

func (g *instrumentedGateway) CreateCheckoutSession(ctx context.Context, req CheckoutSessionRequest) (*CheckoutSession, error) {
	start := time.Now()
	res, err := g.next.CreateCheckoutSession(ctx, req)
	g.observe("create_session", start, err == nil, err)
	return res, err
}

func (g *instrumentedGateway) GetCheckoutSession(ctx context.Context, sessionID string) (*CheckoutSessionResult, error) {
	start := time.Now()
	res, err := g.next.GetCheckoutSession(ctx, sessionID)
	g.observe("get_session", start, err == nil, err)
	return res, err
}

func (g *instrumentedGateway) observe(operation string, start time.Time, ok bool, err error) {
	g.rec.ObserveGatewayCall(operation, string(g.next.Mode()), outcome(ok, err), time.Since(start))
}

func outcome(ok bool, err error) string {
	switch {
	case errors.Is(err, ErrGatewayTimeout):
		return "timeout"
	case IsAmbiguous(err):
		return "ambiguous"
	case err != nil:
		return "error"
	case ok:
		return "success"
	default:
		return "declined"
	}
}

package payment

import (
	"context"
	"strings"
	"testing"

	"storefront-be/internal/config"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func chargeReq(number string, amount int64) ChargeRequest {
	return ChargeRequest{
		PaymentID:   uuid.New(),
		OrderID:     uuid.New(),
		AmountCents: amount,
		Currency:    "usd",
		Card:        Card{Number: number, ExpMonth: 12, ExpYear: 2030, CVC: "123"},
	}
}

func TestSimulatedGateway_Charge(t *testing.T) {
	gw := NewSimulatedGateway()

	tests := []struct {
		name    string
		number  string
		amount  int64
		success bool
		reason  string
	}{
		{"valid card", "4242424242424242", 4200, true, ""},
		{"valid card with spaces", "4242 4242 4242 4242", 4200, true, ""},
		{"decline card", DeclineCardNumber, 4200, false, "card_declined"},
		{"decline suffix", "55555555555030002", 4200, false, "card_declined"},
		{"luhn failure", "4242424242424241", 4200, false, "invalid_number"},
		{"zero amount", "4242424242424242", 0, false, "invalid_amount"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, err := gw.Charge(context.Background(), chargeReq(tt.number, tt.amount))
			require.NoError(t, err)
			assert.Equal(t, tt.success, res.Success)
			assert.Equal(t, tt.reason, res.FailureReason)
			if tt.success {
				assert.True(t, strings.HasPrefix(res.ChargeID, SimulatedChargePrefix))
				assert.True(t, IsSimulatedChargeID(res.ChargeID))
			} else {
				assert.Empty(t, res.ChargeID)
			}
		})
	}
}

func TestSimulatedGateway_Charge_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := NewSimulatedGateway().Charge(ctx, chargeReq("4242424242424242", 100))
	assert.ErrorIs(t, err, ErrGatewayTimeout)
	assert.True(t, IsAmbiguous(err))
}

func TestSimulatedGateway_Refund(t *testing.T) {
	gw := NewSimulatedGateway()

	charge, err := gw.Charge(context.Background(), chargeReq("4242424242424242", 4200))
	require.NoError(t, err)

	t.Run("Success", func(t *testing.T) {
		res, err := gw.Refund(context.Background(), RefundRequest{RefundID: uuid.New(), ChargeID: charge.ChargeID, AmountCents: 4200})
		require.NoError(t, err)
		assert.True(t, res.Success)
		assert.True(t, strings.HasPrefix(res.RefundID, SimulatedRefundPrefix))
	})

	t.Run("UnknownCharge", func(t *testing.T) {
		res, err := gw.Refund(context.Background(), RefundRequest{RefundID: uuid.New(), ChargeID: "ch_real", AmountCents: 4200})
		require.NoError(t, err)
		assert.False(t, res.Success)
		assert.Equal(t, "invalid_charge_id", res.FailureReason)
	})

	t.Run("ZeroAmount", func(t *testing.T) {
		res, err := gw.Refund(context.Background(), RefundRequest{RefundID: uuid.New(), ChargeID: charge.ChargeID})
		require.NoError(t, err)
		assert.Equal(t, "invalid_amount", res.FailureReason)
	})
}

func TestSimulatedGateway_CheckoutSession(t *testing.T) {
	gw := NewSimulatedGateway()
	orderID := uuid.New()

	session, err := gw.CreateCheckoutSession(context.Background(), CheckoutSessionRequest{
		OrderID:     orderID,
		AmountCents: 4200,
		Currency:    "usd",
		SuccessURL:  "https://shop.test/done?session_id={CHECKOUT_SESSION_ID}",
	})
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(session.ID, SimulatedSessionPrefix))
	assert.Equal(t, "https://shop.test/done?session_id="+session.ID, session.URL)

	res, err := gw.GetCheckoutSession(context.Background(), session.ID)
	require.NoError(t, err)
	assert.True(t, res.Paid)
	assert.Equal(t, orderID.String(), res.OrderID)
	assert.Equal(t, int64(4200), res.AmountCents)
	assert.True(t, IsSimulatedChargeID(res.ChargeID))

	_, err = gw.GetCheckoutSession(context.Background(), "sim_cs_missing")
	assert.ErrorIs(t, err, ErrSessionNotFound)

	_, err = gw.CreateCheckoutSession(context.Background(), CheckoutSessionRequest{OrderID: orderID})
	var apiErr *APIError
	assert.ErrorAs(t, err, &apiErr)
}

func TestSessionURL(t *testing.T) {
	assert.Equal(t, "/checkout/simulated?session_id=cs_1", sessionURL("", "cs_1"))
	assert.Equal(t, "https://a.test/ok?session_id=cs_1", sessionURL("https://a.test/ok", "cs_1"))
	assert.Equal(t, "https://a.test/ok?x=1&session_id=cs_1", sessionURL("https://a.test/ok?x=1", "cs_1"))
}

func TestIsSimulatedChargeID(t *testing.T) {
	assert.False(t, IsSimulatedChargeID("sim_ch_"))
	assert.False(t, IsSimulatedChargeID("sim_ch_zz"+strings.Repeat("0", 30)))
	assert.False(t, IsSimulatedChargeID("ch_"+strings.Repeat("0", 32)))
	assert.True(t, IsSimulatedChargeID("sim_ch_"+strings.Repeat("a", 32)))
}

func TestNewGateway(t *testing.T) {
	assert.Equal(t, ModeSimulated, NewGateway(config.PaymentConfig{Simulation: true}).Mode())

	gw := NewGateway(config.PaymentConfig{StripeSecretKey: "sk_test", StripeBaseURL: "https://api.stripe.com/"})
	require.Equal(t, ModeStripe, gw.Mode())
	assert.Equal(t, "https://api.stripe.com", gw.(*StripeGateway).baseURL)
}

package gateway

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"testing"
	"time"

	"restaurant_order/model"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stripe/stripe-go/v80"
)

type fakeIntents struct {
	created *stripe.PaymentIntentParams
	intent  *stripe.PaymentIntent
	err     error
}

func (f *fakeIntents) New(params *stripe.PaymentIntentParams) (*stripe.PaymentIntent, error) {
	f.created = params
	if f.err != nil {
		return nil, f.err
	}
	return &stripe.PaymentIntent{ID: "pi_123", ClientSecret: "pi_123_secret"}, nil
}

func (f *fakeIntents) Get(id string, _ *stripe.PaymentIntentParams) (*stripe.PaymentIntent, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.intent, nil
}

type fakeRefunds struct {
	params *stripe.RefundParams
}

func (f *fakeRefunds) New(params *stripe.RefundParams) (*stripe.Refund, error) {
	f.params = params
	return &stripe.Refund{ID: "re_1"}, nil
}

func TestStripeCreatePaymentSendsMinorUnits(t *testing.T) {
	intents := &fakeIntents{}
	s := &Stripe{intents: intents}

	intent, err := s.CreatePayment(context.Background(), PaymentRequest{
		OrderId:  "o1",
		Amount:   decimal.RequireFromString("23.50"),
		Currency: "USD",
	})

	require.NoError(t, err)
	assert.Equal(t, "pi_123", intent.ID)
	assert.Equal(t, "pi_123_secret", *intent.ClientSecret)
	assert.Equal(t, int64(2350), *intents.created.Amount)
	assert.Equal(t, "usd", *intents.created.Currency)
	assert.Equal(t, "o1", intents.created.Metadata["order_id"])
}

func TestStripeStatusMapping(t *testing.T) {
	cases := []struct {
		pi   *stripe.PaymentIntent
		want model.PaymentStatus
	}{
		{&stripe.PaymentIntent{Status: stripe.PaymentIntentStatusSucceeded}, model.PaymentPaid},
		{&stripe.PaymentIntent{Status: stripe.PaymentIntentStatusCanceled}, model.PaymentFailed},
		{&stripe.PaymentIntent{Status: stripe.PaymentIntentStatusProcessing}, model.PaymentPending},
		{&stripe.PaymentIntent{Status: stripe.PaymentIntentStatusRequiresPaymentMethod}, model.PaymentPending},
		{&stripe.PaymentIntent{Status: stripe.PaymentIntentStatusRequiresPaymentMethod, LastPaymentError: &stripe.Error{Msg: "card declined"}}, model.PaymentPending},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, stripeStatus(tc.pi), string(tc.pi.Status))
	}
}

func TestStripeGetPaymentStatusUnknownIntent(t *testing.T) {
	s := &Stripe{intents: &fakeIntents{err: &stripe.Error{Code: stripe.ErrorCodeResourceMissing}}}

	_, err := s.GetPaymentStatus(context.Background(), "pi_missing")

	assert.ErrorIs(t, err, ErrUnknownPayment)
}

func TestStripeDeclinedCardCanStillSucceed(t *testing.T) {
	intents := &fakeIntents{intent: &stripe.PaymentIntent{
		ID:               "pi_123",
		Status:           stripe.PaymentIntentStatusRequiresPaymentMethod,
		LastPaymentError: &stripe.Error{Msg: "card declined"},
	}}
	s := &Stripe{intents: intents}

	status, err := s.GetPaymentStatus(context.Background(), "pi_123")
	require.NoError(t, err)
	assert.Equal(t, model.PaymentPending, status, "a decline is not final")

	intents.intent = &stripe.PaymentIntent{ID: "pi_123", Status: stripe.PaymentIntentStatusSucceeded}
	status, err = s.GetPaymentStatus(context.Background(), "pi_123")
	require.NoError(t, err)
	assert.Equal(t, model.PaymentPaid, status)
}

func TestStripeRefundFullAmountOmitsAmount(t *testing.T) {
	refunds := &fakeRefunds{}
	s := &Stripe{refunds: refunds}

	id, err := s.Refund(context.Background(), RefundRequest{GatewayPaymentId: "pi_123"})

	require.NoError(t, err)
	assert.Equal(t, "re_1", id)
	assert.Nil(t, refunds.params.Amount)
	assert.Equal(t, "pi_123", *refunds.params.PaymentIntent)
}

func signStripePayload(secret string, payload []byte) string {
	ts := time.Now().Unix()
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(fmt.Sprintf("%d.%s", ts, payload)))
	return fmt.Sprintf("t=%d,v1=%s", ts, hex.EncodeToString(mac.Sum(nil)))
}

func TestStripeParseWebhook(t *testing.T) {
	s := &Stripe{webhookKey: "whsec_test"}
	payload := []byte(`{"id":"evt_1","object":"event","type":"payment_intent.succeeded","api_version":"2024-09-30.acacia",` +
		`"data":{"object":{"id":"pi_123","object":"payment_intent","status":"succeeded"}}}`)

	id, handled, err := s.ParseWebhook(payload, signStripePayload("whsec_test", payload))
	require.NoError(t, err)
	assert.True(t, handled)
	assert.Equal(t, "pi_123", id)

	_, _, err = s.ParseWebhook(payload, signStripePayload("whsec_other", payload))
	assert.Error(t, err)
}

func TestStripeParseWebhookIgnoresOtherEvents(t *testing.T) {
	s := &Stripe{webhookKey: "whsec_test"}
	payload := []byte(`{"id":"evt_2","object":"event","type":"customer.created","api_version":"2024-09-30.acacia",` +
		`"data":{"object":{"id":"cus_1","object":"customer"}}}`)

	_, handled, err := s.ParseWebhook(payload, signStripePayload("whsec_test", payload))

	require.NoError(t, err)
	assert.False(t, handled)
}

package gateway

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"restaurant_order/model"

	"github.com/stripe/stripe-go/v80"
	"github.com/stripe/stripe-go/v80/client"
	"github.com/stripe/stripe-go/v80/webhook"
)

type stripePaymentIntents interface {
	New(params *stripe.PaymentIntentParams) (*stripe.PaymentIntent, error)
	Get(id string, params *stripe.PaymentIntentParams) (*stripe.PaymentIntent, error)
}

type stripeRefunds interface {
	New(params *stripe.RefundParams) (*stripe.Refund, error)
}

type Stripe struct {
	intents    stripePaymentIntents
	refunds    stripeRefunds
	webhookKey string
}

// NewStripe builds a gateway on its own API client instead of the package-level stripe.Key.
func NewStripe(secretKey, webhookKey string) *Stripe {
	sc := client.New(secretKey, nil)
	return &Stripe{intents: sc.PaymentIntents, refunds: sc.Refunds, webhookKey: webhookKey}
}

func (s *Stripe) Name() string { return "stripe" }

func (s *Stripe) CreatePayment(ctx context.Context, req PaymentRequest) (*PaymentIntent, error) {
	params := &stripe.PaymentIntentParams{
		Amount:      stripe.Int64(req.Amount.Shift(2).IntPart()),
		Currency:    stripe.String(strings.ToLower(req.Currency)),
		Description: stripe.String(req.Description),
		AutomaticPaymentMethods: &stripe.PaymentIntentAutomaticPaymentMethodsParams{
			Enabled: stripe.Bool(true),
		},
	}
	params.Context = ctx
	params.AddMetadata("order_id", req.OrderId)

	pi, err := s.intents.New(params)
	if err != nil {
		return nil, fmt.Errorf("stripe create payment intent: %w", err)
	}
	return &PaymentIntent{ID: pi.ID, ClientSecret: stripe.String(pi.ClientSecret)}, nil
}

func (s *Stripe) GetPaymentStatus(ctx context.Context, gatewayPaymentID string) (model.PaymentStatus, error) {
	params := &stripe.PaymentIntentParams{}
	params.Context = ctx
	pi, err := s.intents.Get(gatewayPaymentID, params)
	if err != nil {
		if stripeErr, ok := err.(*stripe.Error); ok && stripeErr.Code == stripe.ErrorCodeResourceMissing {
			return "", ErrUnknownPayment
		}
		return "", fmt.Errorf("stripe get payment intent: %w", err)
	}
	return stripeStatus(pi), nil
}

func stripeStatus(pi *stripe.PaymentIntent) model.PaymentStatus {
	switch pi.Status {
	case stripe.PaymentIntentStatusSucceeded:
		return model.PaymentPaid
	case stripe.PaymentIntentStatusCanceled:
		return model.PaymentFailed
	default:
		// a declined card leaves the intent in requires_payment_method, and the
		// customer may still retry on the same intent
		return model.PaymentPending
	}
}

func (s *Stripe) Refund(ctx context.Context, req RefundRequest) (string, error) {
	params := &stripe.RefundParams{
		PaymentIntent: stripe.String(req.GatewayPaymentId),
		Reason:        stripe.String(string(stripe.RefundReasonRequestedByCustomer)),
	}
	if req.Amount.IsPositive() {
		params.Amount = stripe.Int64(req.Amount.Shift(2).IntPart())
	}
	params.Context = ctx
	if req.Description != "" {
		params.AddMetadata("description", req.Description)
	}

	refund, err := s.refunds.New(params)
	if err != nil {
		return "", fmt.Errorf("stripe refund: %w", err)
	}
	return refund.ID, nil
}

// ParseWebhook verifies the signature and returns the payment intent the event
// is about. handled is false for event types that carry no payment outcome.
func (s *Stripe) ParseWebhook(payload []byte, signature string) (string, bool, error) {
	event, err := webhook.ConstructEventWithOptions(payload, signature, s.webhookKey, webhook.ConstructEventOptions{
		IgnoreAPIVersionMismatch: true,
	})
	if err != nil {
		return "", false, err
	}

	switch event.Type {
	case "payment_intent.succeeded",
		"payment_intent.payment_failed",
		"payment_intent.canceled",
		"payment_intent.processing":
	default:
		return "", false, nil
	}

	var pi stripe.PaymentIntent
	if err := json.Unmarshal(event.Data.Raw, &pi); err != nil {
		return "", false, fmt.Errorf("decode payment intent: %w", err)
	}
	return pi.ID, true, nil
}

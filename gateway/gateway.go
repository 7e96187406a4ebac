package gateway

import (
	"context"
	"errors"
	"time"

	"restaurant_order/model"

	"github.com/shopspring/decimal"
)

var ErrUnknownPayment = errors.New("gateway does not know this payment")

type PaymentRequest struct {
	OrderId     string
	Amount      decimal.Decimal
	Currency    string
	Description string
	ClientIP    string
}

type PaymentIntent struct {
	ID           string
	RedirectUrl  *string
	ClientSecret *string
}

type RefundRequest struct {
	GatewayPaymentId string
	Amount           decimal.Decimal
	Currency         string
	Description      string
	// PaidAt is when the original payment was created, some gateways need it.
	PaidAt time.Time
}

// Gateway is the external payment processor.
type Gateway interface {
	Name() string
	CreatePayment(ctx context.Context, req PaymentRequest) (*PaymentIntent, error)
	GetPaymentStatus(ctx context.Context, gatewayPaymentID string) (model.PaymentStatus, error)
	Refund(ctx context.Context, req RefundRequest) (string, error)
}

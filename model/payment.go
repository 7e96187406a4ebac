package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// Payment maps a gateway payment id back to the order it was created for.
type Payment struct {
	GatewayPaymentId string          `gorm:"primaryKey;size:100" json:"gatewayPaymentId"`
	OrderId          string          `gorm:"size:36;index;not null" json:"orderId"`
	Gateway          string          `gorm:"size:20;not null" json:"gateway"`
	Amount           decimal.Decimal `gorm:"type:numeric(12,2);not null" json:"amount"`
	Currency         string          `gorm:"size:3;not null" json:"currency"`
	Status           PaymentStatus   `gorm:"size:10;index;not null" json:"status"`
	CheckoutUrl      *string         `gorm:"size:1024" json:"checkoutUrl,omitempty"`
	RefundId         *string         `gorm:"size:100" json:"refundId,omitempty"`
	Timestamps
}

// PaymentEvent is the append-only dedup record of a processed gateway callback.
type PaymentEvent struct {
	GatewayPaymentId string        `gorm:"primaryKey;size:100" json:"gatewayPaymentId"`
	OrderId          string        `gorm:"size:36;index;not null" json:"orderId"`
	PaymentStatus    PaymentStatus `gorm:"size:10;not null" json:"paymentStatus"`
	ProcessedAt      time.Time     `gorm:"not null" json:"processedAt"`
}

type PaymentOutcome struct {
	GatewayPaymentId string        `json:"gatewayPaymentId"`
	OrderId          string        `json:"orderId"`
	PaymentStatus    PaymentStatus `json:"paymentStatus"`
	ProcessedAt      time.Time     `json:"processedAt"`
	Replayed         bool          `json:"replayed"`
}

type PaymentHandle struct {
	GatewayPaymentId string  `json:"gatewayPaymentId"`
	Gateway          string  `json:"gateway"`
	RedirectUrl      *string `json:"redirectUrl,omitempty"`
	ClientSecret     *string `json:"clientSecret,omitempty"`
}

type CreatePaymentInput struct {
	OrderId     string          `json:"orderId" validate:"required,uuid"`
	Amount      decimal.Decimal `json:"amount"`
	Description string          `json:"description" validate:"omitempty,max=255"`
}

type CreateRefundInput struct {
	Amount      decimal.Decimal `json:"amount"`
	Description string          `json:"description" validate:"omitempty,max=255"`
}

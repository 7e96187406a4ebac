package model

import (
	"time"

	"github.com/shopspring/decimal"
)

type OrderStatus string

const (
	OrderConfirmed OrderStatus = "CONFIRMED"
	OrderPreparing OrderStatus = "PREPARING"
	OrderReady     OrderStatus = "READY"
	OrderCompleted OrderStatus = "COMPLETED"
	OrderCancelled OrderStatus = "CANCELLED"
)

var orderTransitions = map[OrderStatus][]OrderStatus{
	OrderConfirmed: {OrderPreparing, OrderCancelled},
	OrderPreparing: {OrderReady, OrderCancelled},
	OrderReady:     {OrderCompleted},
}

func (s OrderStatus) Valid() bool {
	switch s {
	case OrderConfirmed, OrderPreparing, OrderReady, OrderCompleted, OrderCancelled:
		return true
	}
	return false
}

func (s OrderStatus) IsTerminal() bool {
	return s == OrderCompleted || s == OrderCancelled
}

// CanTransitionTo reports whether the kitchen workflow allows moving from s to next.
func (s OrderStatus) CanTransitionTo(next OrderStatus) bool {
	for _, allowed := range orderTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

type PaymentStatus string

const (
	PaymentUnpaid   PaymentStatus = "UNPAID"
	PaymentPending  PaymentStatus = "PENDING"
	PaymentPaid     PaymentStatus = "PAID"
	PaymentRefunded PaymentStatus = "REFUNDED"
	PaymentFailed   PaymentStatus = "FAILED"
)

func (s PaymentStatus) IsTerminal() bool {
	return s == PaymentPaid || s == PaymentFailed || s == PaymentRefunded
}

type ItemModifier struct {
	Name       string          `json:"name" validate:"required,max=100"`
	PriceDelta decimal.Decimal `json:"priceDelta"`
}

type OrderItem struct {
	MenuItemId string          `json:"menuItemId" validate:"required"`
	Name       string          `json:"name" validate:"omitempty,max=200"`
	Quantity   int             `json:"quantity" validate:"gte=1"`
	UnitPrice  decimal.Decimal `json:"unitPrice"`
	Modifiers  []ItemModifier  `json:"modifiers,omitempty" validate:"omitempty,dive"`
	Note       string          `json:"note,omitempty" validate:"omitempty,max=255"`
}

// LineTotal is quantity x (unit price + modifier deltas).
func (i OrderItem) LineTotal() decimal.Decimal {
	unit := i.UnitPrice
	for _, m := range i.Modifiers {
		unit = unit.Add(m.PriceDelta)
	}
	return unit.Mul(decimal.NewFromInt(int64(i.Quantity)))
}

type Order struct {
	ID               string          `gorm:"primaryKey;size:36" json:"id"`
	OrderNumber      string          `gorm:"size:20;not null;uniqueIndex:ux_restaurant_order_number,priority:2" json:"orderNumber"`
	Sequence         int64           `gorm:"not null" json:"-"`
	RestaurantId     string          `gorm:"size:36;not null;index;uniqueIndex:ux_restaurant_order_number,priority:1" json:"restaurantId"`
	TableId          string          `gorm:"size:36;not null;index" json:"tableId"`
	SessionToken     *string         `gorm:"size:64;index" json:"-"`
	Items            []OrderItem     `gorm:"serializer:json;type:jsonb;not null" json:"items"`
	TotalAmount      decimal.Decimal `gorm:"type:numeric(12,2);not null" json:"totalAmount"`
	Status           OrderStatus     `gorm:"size:12;index;not null" json:"status"`
	PaymentStatus    PaymentStatus   `gorm:"size:10;index;not null" json:"paymentStatus"`
	PaymentReference *string         `gorm:"size:100" json:"paymentReference,omitempty"`
	CancelReason     *string         `gorm:"size:500" json:"cancelReason,omitempty"`
	CreatedByStaff   *uint           `json:"createdByStaff,omitempty"`
	Version          int64           `gorm:"not null;default:1" json:"version"`
	CreatedAt        time.Time       `gorm:"index" json:"createdAt"`
	UpdatedAt        time.Time       `json:"updatedAt"`
}

// OrderCounter hands out per-restaurant order numbers.
type OrderCounter struct {
	RestaurantId string `gorm:"primaryKey;size:36"`
	Value        int64  `gorm:"not null"`
}

type OrderFilter struct {
	Pagination
	Statuses               []OrderStatus   `json:"statuses" query:"status" validate:"omitempty,dive,oneof=CONFIRMED PREPARING READY COMPLETED CANCELLED"`
	ExcludePaymentStatuses []PaymentStatus `json:"-"`
	From                   *time.Time      `json:"from" query:"from"`
	To                     *time.Time      `json:"to" query:"to"`
	ExcludeIds             []string        `json:"excludeIds" query:"exclude"`
	Ascending              bool            `json:"ascending" query:"asc"`
}

type CreateOrderInput struct {
	RestaurantId string
	TableId      string
	SessionToken *string
	Items        []OrderItem
	StaffId      *uint
	PaidUpfront  bool
}

type CreateOrderRequest struct {
	TableId     string      `json:"tableId" validate:"required"`
	Items       []OrderItem `json:"items" validate:"required,min=1,dive"`
	PaidUpfront bool        `json:"paidUpfront"`
}

type TransitionStatusRequest struct {
	Status          OrderStatus `json:"status" validate:"required,oneof=PREPARING READY COMPLETED CANCELLED"`
	ExpectedVersion *int64      `json:"expectedVersion" validate:"omitempty,gte=1"`
	Reason          string      `json:"reason" validate:"required_if=Status CANCELLED,max=500"`
}

package model

import "time"

type EventKind string

const (
	EventOrderNew       EventKind = "order:new"
	EventOrderStatus    EventKind = "order:status"
	EventOrderCancelled EventKind = "order:cancelled"
	EventOrderPayment   EventKind = "order:payment"
	EventTableStatus    EventKind = "table:status"
)

// Envelope is a transient event routed to the staff connections of one restaurant.
type Envelope struct {
	RestaurantId string    `json:"restaurantId"`
	Kind         EventKind `json:"kind"`
	Payload      any       `json:"payload"`
	OccurredAt   time.Time `json:"occurredAt"`
	Origin       string    `json:"origin,omitempty"`
}

type OrderStatusPayload struct {
	OrderId string      `json:"orderId"`
	Status  OrderStatus `json:"status"`
	Version int64       `json:"version"`
}

type OrderCancelledPayload struct {
	OrderId string `json:"orderId"`
	Reason  string `json:"reason"`
}

type OrderPaymentPayload struct {
	OrderId          string        `json:"orderId"`
	PaymentStatus    PaymentStatus `json:"paymentStatus"`
	GatewayPaymentId string        `json:"gatewayPaymentId,omitempty"`
}

type TableStatusPayload struct {
	TableId string      `json:"tableId"`
	Status  TableStatus `json:"status"`
}

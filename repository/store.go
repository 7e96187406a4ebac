package repository

import (
	"context"
	"fmt"
	"time"

	"restaurant_order/model"
)

type TableStore interface {
	Create(ctx context.Context, table *model.Table) error
	Get(ctx context.Context, id string) (*model.Table, error)
	GetByCode(ctx context.Context, code string) (*model.Table, error)
	UpdateStatus(ctx context.Context, id string, status model.TableStatus, at time.Time) error
}

// SessionStore writes are conditional on the stored status so an ENDED
// session is never brought back by a late validation.
type SessionStore interface {
	Create(ctx context.Context, session *model.CustomerSession) error
	Get(ctx context.Context, token string) (*model.CustomerSession, error)
	// Touch bumps LastActivityAt of an ACTIVE session.
	Touch(ctx context.Context, token string, at time.Time) error
	// Extend moves ExpiresAt of an ACTIVE session and reports whether it did.
	Extend(ctx context.Context, token string, expiresAt, at time.Time) (bool, error)
	// MarkStatus moves an ACTIVE session to status and reports whether it did.
	MarkStatus(ctx context.Context, token string, status model.SessionStatus) (bool, error)
	// ExpireBefore marks every unswept session that expired before now and returns how many.
	ExpireBefore(ctx context.Context, now time.Time) (int64, error)
}

type OrderStore interface {
	// Create assigns Sequence, OrderNumber and Version 1.
	Create(ctx context.Context, order *model.Order) error
	Get(ctx context.Context, id string) (*model.Order, error)
	// UpdateWithVersion persists the mutable fields of order only if the stored
	// version still equals expected, then sets order.Version to expected+1.
	UpdateWithVersion(ctx context.Context, order *model.Order, expected int64) error
	List(ctx context.Context, restaurantID string, filter model.OrderFilter) ([]model.Order, int64, error)
}

type PaymentStore interface {
	CreatePayment(ctx context.Context, payment *model.Payment) error
	GetPayment(ctx context.Context, gatewayPaymentID string) (*model.Payment, error)
	UpdatePaymentStatus(ctx context.Context, gatewayPaymentID string, status model.PaymentStatus, refundID *string, at time.Time) error
	ListPending(ctx context.Context, createdBefore time.Time, limit int) ([]model.Payment, error)
	// GetEvent returns nil without error when no event was recorded.
	GetEvent(ctx context.Context, gatewayPaymentID string) (*model.PaymentEvent, error)
	// InsertEvent reports false when an event for the same gateway id already exists.
	InsertEvent(ctx context.Context, event *model.PaymentEvent) (bool, error)
}

type Store interface {
	Tables() TableStore
	Sessions() SessionStore
	Orders() OrderStore
	Payments() PaymentStore
	// WithinTx runs fn against a store bound to one transaction. A non-nil
	// error from fn rolls every write back.
	WithinTx(ctx context.Context, fn func(tx Store) error) error
}

func FormatOrderNumber(seq int64) string {
	return fmt.Sprintf("#%04d", seq)
}

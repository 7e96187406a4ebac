package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"restaurant_order/apperror"
	"restaurant_order/logger"
	"restaurant_order/metrics"
	"restaurant_order/model"
	"restaurant_order/repository"
	"restaurant_order/utils"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

type SessionValidator interface {
	ValidateSession(ctx context.Context, token string) (*model.CustomerSession, error)
}

type OrderEngine struct {
	store    repository.Store
	sessions SessionValidator
	bus      Publisher
	clock    Clock
	log      *zap.Logger
}

func NewOrderEngine(store repository.Store, sessions SessionValidator, bus Publisher, clock Clock, log *zap.Logger) *OrderEngine {
	if bus == nil {
		bus = noopPublisher{}
	}
	return &OrderEngine{store: store, sessions: sessions, bus: bus, clock: clock, log: log}
}

// CreateOrder persists a CONFIRMED order and announces it to the restaurant's staff.
func (e *OrderEngine) CreateOrder(ctx context.Context, in model.CreateOrderInput) (*model.Order, error) {
	if err := validateItems(in.Items); err != nil {
		return nil, err
	}

	restaurantID := in.RestaurantId
	if in.SessionToken != nil {
		session, err := e.sessions.ValidateSession(ctx, *in.SessionToken)
		if err != nil {
			var appErr *apperror.Error
			if errors.As(err, &appErr) && appErr.Kind == apperror.KindInternal {
				return nil, err
			}
			return nil, apperror.New(apperror.KindSessionInvalid, apperror.CodeSessionInvalid, "Session is not active", err)
		}
		if session.TableId != in.TableId {
			return nil, apperror.SessionInvalid("Session is bound to another table")
		}
		restaurantID = session.RestaurantId
	} else {
		table, err := e.store.Tables().Get(ctx, in.TableId)
		if err != nil {
			return nil, err
		}
		if table.RestaurantId != restaurantID {
			return nil, apperror.TableNotFound()
		}
	}

	items := append([]model.OrderItem(nil), in.Items...)

	total := decimal.Zero
	for _, item := range items {
		total = total.Add(item.LineTotal())
	}

	paymentStatus := model.PaymentUnpaid
	if in.SessionToken == nil && in.StaffId != nil && in.PaidUpfront {
		paymentStatus = model.PaymentPaid
	}

	now := e.clock.Now()
	order := &model.Order{
		ID:             uuid.NewString(),
		RestaurantId:   restaurantID,
		TableId:        in.TableId,
		SessionToken:   in.SessionToken,
		Items:          items,
		TotalAmount:    total,
		Status:         model.OrderConfirmed,
		PaymentStatus:  paymentStatus,
		CreatedByStaff: in.StaffId,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	if err := e.store.Orders().Create(ctx, order); err != nil {
		return nil, fmt.Errorf("create order: %w", err)
	}

	metrics.OrdersCreatedTotal.Inc()
	logger.FromContext(ctx, e.log).Info("order created",
		zap.String("order_id", order.ID),
		zap.String("order_number", order.OrderNumber),
		zap.String("restaurant_id", restaurantID),
		zap.String("total", total.StringFixed(2)),
	)
	e.bus.Publish(restaurantID, model.EventOrderNew, *order)
	return order, nil
}

func validateItems(items []model.OrderItem) error {
	if len(items) == 0 {
		return apperror.Validation("Order must contain at least one item")
	}
	for i, item := range items {
		if item.Quantity < 1 {
			return apperror.Validation(fmt.Sprintf("Item %d: quantity must be at least 1", i+1))
		}
		if item.UnitPrice.IsNegative() {
			return apperror.Validation(fmt.Sprintf("Item %d: unit price must not be negative", i+1))
		}
	}
	return nil
}

// TransitionStatus moves an order along the kitchen workflow. The write is
// compare-and-swap on the version read here even when expectedVersion is nil.
func (e *OrderEngine) TransitionStatus(ctx context.Context, orderID string, target model.OrderStatus, expectedVersion *int64, reason string) (*model.Order, error) {
	if !target.Valid() {
		return nil, apperror.Validation(fmt.Sprintf("Unknown order status %q", target))
	}

	order, err := e.store.Orders().Get(ctx, orderID)
	if err != nil {
		return nil, err
	}
	// a stale caller learns about the concurrent write before anything else
	if expectedVersion != nil && *expectedVersion != order.Version {
		metrics.VersionConflictsTotal.Inc()
		return nil, apperror.VersionConflict(orderID)
	}
	if !order.Status.CanTransitionTo(target) {
		return nil, apperror.InvalidTransition(string(order.Status), string(target))
	}
	reason = strings.TrimSpace(reason)
	if target == model.OrderCancelled {
		if reason == "" {
			return nil, apperror.Validation("A reason is required to cancel an order")
		}
		order.CancelReason = utils.Ptr(reason)
	}

	from := order.Status
	order.Status = target
	order.UpdatedAt = e.clock.Now()
	if err := e.store.Orders().UpdateWithVersion(ctx, order, order.Version); err != nil {
		if errors.Is(err, apperror.ErrVersionConflict) {
			metrics.VersionConflictsTotal.Inc()
		}
		return nil, err
	}

	metrics.OrderTransitionsTotal.WithLabelValues(string(target)).Inc()
	logger.FromContext(ctx, e.log).Info("order status changed",
		zap.String("order_id", order.ID),
		zap.String("from", string(from)),
		zap.String("to", string(target)),
		zap.Int64("version", order.Version),
	)
	e.bus.Publish(order.RestaurantId, model.EventOrderStatus, model.OrderStatusPayload{
		OrderId: order.ID,
		Status:  order.Status,
		Version: order.Version,
	})
	if target == model.OrderCancelled {
		e.bus.Publish(order.RestaurantId, model.EventOrderCancelled, model.OrderCancelledPayload{
			OrderId: order.ID,
			Reason:  reason,
		})
	}
	return order, nil
}

// SetPaymentStatus records a payment outcome on the order without touching its
// kitchen status. It runs against store so callers can include it in a
// transaction, and publishes nothing.
func (e *OrderEngine) SetPaymentStatus(ctx context.Context, store repository.Store, orderID string, status model.PaymentStatus, reference *string) (*model.Order, bool, error) {
	if store == nil {
		store = e.store
	}
	order, err := store.Orders().Get(ctx, orderID)
	if err != nil {
		return nil, false, err
	}
	if order.PaymentStatus == model.PaymentRefunded && status != model.PaymentRefunded {
		// a late gateway report never undoes a refund
		return order, false, nil
	}
	sameRef := reference == nil ||
		(order.PaymentReference != nil && *reference == *order.PaymentReference)
	if order.PaymentStatus == status && sameRef {
		return order, false, nil
	}

	order.PaymentStatus = status
	if reference != nil {
		order.PaymentReference = reference
	}
	order.UpdatedAt = e.clock.Now()
	if err := store.Orders().UpdateWithVersion(ctx, order, order.Version); err != nil {
		return nil, false, err
	}
	return order, true, nil
}

func (e *OrderEngine) GetOrder(ctx context.Context, orderID string) (*model.Order, error) {
	return e.store.Orders().Get(ctx, orderID)
}

func (e *OrderEngine) ListOrders(ctx context.Context, restaurantID string, filter model.OrderFilter) ([]model.Order, int64, error) {
	return e.store.Orders().List(ctx, restaurantID, filter)
}

// GetKitchenQueue lists orders the kitchen still has to work on, oldest first.
func (e *OrderEngine) GetKitchenQueue(ctx context.Context, restaurantID string) ([]model.Order, error) {
	orders, _, err := e.store.Orders().List(ctx, restaurantID, model.OrderFilter{
		Statuses:               []model.OrderStatus{model.OrderConfirmed, model.OrderPreparing},
		ExcludePaymentStatuses: []model.PaymentStatus{model.PaymentFailed},
		Ascending:              true,
	})
	if err != nil {
		return nil, err
	}
	return orders, nil
}

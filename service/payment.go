package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"restaurant_order/apperror"
	"restaurant_order/gateway"
	"restaurant_order/logger"
	"restaurant_order/metrics"
	"restaurant_order/model"
	"restaurant_order/repository"

	"go.uber.org/zap"
)

const (
	casAttempts         = 3
	reconcileBatchSize  = 100
	paymentFailedReason = "payment failed"
)

type PaymentOptions struct {
	Currency            string
	AutoCancelOnFailure bool
}

type PaymentReconciler struct {
	store   repository.Store
	orders  *OrderEngine
	gateway gateway.Gateway
	bus     Publisher
	clock   Clock
	log     *zap.Logger
	opts    PaymentOptions
}

func NewPaymentReconciler(store repository.Store, orders *OrderEngine, gw gateway.Gateway, bus Publisher, clock Clock, log *zap.Logger, opts PaymentOptions) *PaymentReconciler {
	if bus == nil {
		bus = noopPublisher{}
	}
	if opts.Currency == "" {
		opts.Currency = "usd"
	}
	return &PaymentReconciler{store: store, orders: orders, gateway: gw, bus: bus, clock: clock, log: log, opts: opts}
}

// CreatePayment opens a gateway payment for the full order total.
func (r *PaymentReconciler) CreatePayment(ctx context.Context, in model.CreatePaymentInput, clientIP string) (*model.PaymentHandle, error) {
	order, err := r.store.Orders().Get(ctx, in.OrderId)
	if err != nil {
		return nil, err
	}
	if !in.Amount.Equal(order.TotalAmount) {
		logger.FromContext(ctx, r.log).Warn("payment amount does not match order total",
			zap.String("order_id", order.ID),
			zap.String("requested", in.Amount.String()),
			zap.String("total", order.TotalAmount.String()),
		)
		return nil, apperror.AmountMismatch()
	}
	if order.Status == model.OrderCancelled {
		return nil, apperror.Validation("Order is cancelled")
	}
	if order.PaymentStatus == model.PaymentPaid || order.PaymentStatus == model.PaymentRefunded {
		return nil, apperror.Validation("Order is already paid")
	}

	description := in.Description
	if description == "" {
		description = "Order " + order.OrderNumber
	}
	intent, err := r.gateway.CreatePayment(ctx, gateway.PaymentRequest{
		OrderId:     order.ID,
		Amount:      order.TotalAmount,
		Currency:    r.opts.Currency,
		Description: description,
		ClientIP:    clientIP,
	})
	if err != nil {
		return nil, apperror.GatewayUnavailable(err)
	}

	now := r.clock.Now()
	payment := &model.Payment{
		GatewayPaymentId: intent.ID,
		OrderId:          order.ID,
		Gateway:          r.gateway.Name(),
		Amount:           order.TotalAmount,
		Currency:         r.opts.Currency,
		Status:           model.PaymentPending,
		CheckoutUrl:      intent.RedirectUrl,
		Timestamps:       model.Timestamps{CreatedAt: now, UpdatedAt: now},
	}
	err = retryOnConflict(func() error {
		return r.store.WithinTx(ctx, func(tx repository.Store) error {
			if err := tx.Payments().CreatePayment(ctx, payment); err != nil {
				return err
			}
			_, _, err := r.orders.SetPaymentStatus(ctx, tx, order.ID, model.PaymentPending, &intent.ID)
			return err
		})
	})
	if err != nil {
		return nil, fmt.Errorf("record payment %s: %w", intent.ID, err)
	}

	logger.FromContext(ctx, r.log).Info("payment created",
		zap.String("order_id", order.ID),
		zap.String("gateway", payment.Gateway),
		zap.String("gateway_payment_id", intent.ID),
	)
	r.bus.Publish(order.RestaurantId, model.EventOrderPayment, model.OrderPaymentPayload{
		OrderId:          order.ID,
		PaymentStatus:    model.PaymentPending,
		GatewayPaymentId: intent.ID,
	})
	return &model.PaymentHandle{
		GatewayPaymentId: intent.ID,
		Gateway:          payment.Gateway,
		RedirectUrl:      intent.RedirectUrl,
		ClientSecret:     intent.ClientSecret,
	}, nil
}

// ProcessWebhook reconciles one gateway callback. A terminal outcome is applied
// once; every later delivery for the same gateway id returns the stored outcome.
func (r *PaymentReconciler) ProcessWebhook(ctx context.Context, gatewayPaymentID string) (*model.PaymentOutcome, error) {
	event, err := r.store.Payments().GetEvent(ctx, gatewayPaymentID)
	if err != nil {
		return nil, err
	}
	if event != nil {
		metrics.WebhooksProcessedTotal.WithLabelValues("replayed").Inc()
		return replayedOutcome(event), nil
	}

	payment, err := r.store.Payments().GetPayment(ctx, gatewayPaymentID)
	if err != nil {
		return nil, err
	}

	status, err := r.gatewayStatus(ctx, gatewayPaymentID)
	if err != nil {
		metrics.WebhooksProcessedTotal.WithLabelValues("gateway_error").Inc()
		return nil, err
	}

	now := r.clock.Now()
	if !status.IsTerminal() {
		metrics.WebhooksProcessedTotal.WithLabelValues("pending").Inc()
		return &model.PaymentOutcome{
			GatewayPaymentId: gatewayPaymentID,
			OrderId:          payment.OrderId,
			PaymentStatus:    status,
			ProcessedAt:      now,
		}, nil
	}

	var (
		outcome *model.PaymentOutcome
		order   *model.Order
		applied bool
	)
	err = retryOnConflict(func() error {
		return r.store.WithinTx(ctx, func(tx repository.Store) error {
			inserted, err := tx.Payments().InsertEvent(ctx, &model.PaymentEvent{
				GatewayPaymentId: gatewayPaymentID,
				OrderId:          payment.OrderId,
				PaymentStatus:    status,
				ProcessedAt:      now,
			})
			if err != nil {
				return err
			}
			if !inserted {
				// a concurrent delivery got there first
				winner, err := tx.Payments().GetEvent(ctx, gatewayPaymentID)
				if err != nil {
					return err
				}
				if winner == nil {
					return fmt.Errorf("payment event %s vanished", gatewayPaymentID)
				}
				outcome = replayedOutcome(winner)
				return nil
			}

			order, err = tx.Orders().Get(ctx, payment.OrderId)
			if err != nil {
				return err
			}
			applied = false
			if !staleReport(order, gatewayPaymentID, status) {
				order, applied, err = r.orders.SetPaymentStatus(ctx, tx, payment.OrderId, status, &gatewayPaymentID)
				if err != nil {
					return err
				}
			}
			if err := tx.Payments().UpdatePaymentStatus(ctx, gatewayPaymentID, status, nil, now); err != nil {
				return err
			}
			outcome = &model.PaymentOutcome{
				GatewayPaymentId: gatewayPaymentID,
				OrderId:          payment.OrderId,
				PaymentStatus:    status,
				ProcessedAt:      now,
			}
			return nil
		})
	})
	if err != nil {
		metrics.WebhooksProcessedTotal.WithLabelValues("error").Inc()
		return nil, fmt.Errorf("apply payment %s: %w", gatewayPaymentID, err)
	}
	if outcome.Replayed {
		metrics.WebhooksProcessedTotal.WithLabelValues("replayed").Inc()
		return outcome, nil
	}

	metrics.WebhooksProcessedTotal.WithLabelValues(string(status)).Inc()
	if !applied {
		logger.FromContext(ctx, r.log).Warn("payment outcome recorded without changing the order",
			zap.String("order_id", order.ID),
			zap.String("gateway_payment_id", gatewayPaymentID),
			zap.String("payment_status", string(status)),
			zap.String("order_payment_status", string(order.PaymentStatus)),
		)
		return outcome, nil
	}
	logger.FromContext(ctx, r.log).Info("payment reconciled",
		zap.String("order_id", order.ID),
		zap.String("gateway_payment_id", gatewayPaymentID),
		zap.String("payment_status", string(status)),
	)
	r.bus.Publish(order.RestaurantId, model.EventOrderPayment, model.OrderPaymentPayload{
		OrderId:          order.ID,
		PaymentStatus:    status,
		GatewayPaymentId: gatewayPaymentID,
	})

	if status == model.PaymentFailed && r.opts.AutoCancelOnFailure && order.Status == model.OrderConfirmed {
		if _, err := r.orders.TransitionStatus(ctx, order.ID, model.OrderCancelled, nil, paymentFailedReason); err != nil {
			logger.FromContext(ctx, r.log).Warn("auto-cancel after failed payment did not apply",
				zap.String("order_id", order.ID),
				zap.Error(err),
			)
		}
	}
	return outcome, nil
}

// GetPaymentStatus answers from local records when they are final and asks the gateway otherwise.
func (r *PaymentReconciler) GetPaymentStatus(ctx context.Context, gatewayPaymentID string) (*model.PaymentOutcome, error) {
	payment, err := r.store.Payments().GetPayment(ctx, gatewayPaymentID)
	if err != nil {
		return nil, err
	}
	if payment.Status == model.PaymentRefunded {
		return &model.PaymentOutcome{
			GatewayPaymentId: gatewayPaymentID,
			OrderId:          payment.OrderId,
			PaymentStatus:    payment.Status,
			ProcessedAt:      payment.UpdatedAt,
		}, nil
	}

	event, err := r.store.Payments().GetEvent(ctx, gatewayPaymentID)
	if err != nil {
		return nil, err
	}
	if event != nil {
		return &model.PaymentOutcome{
			GatewayPaymentId: event.GatewayPaymentId,
			OrderId:          event.OrderId,
			PaymentStatus:    event.PaymentStatus,
			ProcessedAt:      event.ProcessedAt,
		}, nil
	}

	status, err := r.gatewayStatus(ctx, gatewayPaymentID)
	if err != nil {
		return nil, err
	}
	return &model.PaymentOutcome{
		GatewayPaymentId: gatewayPaymentID,
		OrderId:          payment.OrderId,
		PaymentStatus:    status,
		ProcessedAt:      r.clock.Now(),
	}, nil
}

// CreateRefund refunds a PAID payment through the gateway. It never touches
// the order's kitchen status.
func (r *PaymentReconciler) CreateRefund(ctx context.Context, gatewayPaymentID string, in model.CreateRefundInput) (string, error) {
	payment, err := r.store.Payments().GetPayment(ctx, gatewayPaymentID)
	if err != nil {
		return "", err
	}
	if payment.Status != model.PaymentPaid {
		return "", apperror.RefundNotAllowed(string(payment.Status))
	}
	if in.Amount.IsNegative() || in.Amount.GreaterThan(payment.Amount) {
		return "", apperror.Validation("Refund amount must be between 0 and the paid amount")
	}

	refundID, err := r.gateway.Refund(ctx, gateway.RefundRequest{
		GatewayPaymentId: gatewayPaymentID,
		Amount:           in.Amount,
		Currency:         payment.Currency,
		Description:      in.Description,
		PaidAt:           payment.CreatedAt,
	})
	if err != nil {
		return "", apperror.GatewayUnavailable(err)
	}

	now := r.clock.Now()
	var order *model.Order
	err = retryOnConflict(func() error {
		return r.store.WithinTx(ctx, func(tx repository.Store) error {
			if err := tx.Payments().UpdatePaymentStatus(ctx, gatewayPaymentID, model.PaymentRefunded, &refundID, now); err != nil {
				return err
			}
			var err error
			order, _, err = r.orders.SetPaymentStatus(ctx, tx, payment.OrderId, model.PaymentRefunded, nil)
			return err
		})
	})
	if err != nil {
		// the gateway already refunded; keep the id in the logs for manual repair
		logger.FromContext(ctx, r.log).Error("refund issued but not recorded",
			zap.String("gateway_payment_id", gatewayPaymentID),
			zap.String("refund_id", refundID),
			zap.Error(err),
		)
		return "", fmt.Errorf("record refund %s: %w", refundID, err)
	}

	logger.FromContext(ctx, r.log).Info("payment refunded",
		zap.String("order_id", order.ID),
		zap.String("gateway_payment_id", gatewayPaymentID),
		zap.String("refund_id", refundID),
	)
	r.bus.Publish(order.RestaurantId, model.EventOrderPayment, model.OrderPaymentPayload{
		OrderId:          order.ID,
		PaymentStatus:    model.PaymentRefunded,
		GatewayPaymentId: gatewayPaymentID,
	})
	return refundID, nil
}

// ReconcilePending re-checks payments left PENDING for longer than olderThan
// and returns how many reached a final status.
func (r *PaymentReconciler) ReconcilePending(ctx context.Context, olderThan time.Duration) (int, error) {
	payments, err := r.store.Payments().ListPending(ctx, r.clock.Now().Add(-olderThan), reconcileBatchSize)
	if err != nil {
		return 0, fmt.Errorf("list pending payments: %w", err)
	}

	resolved := 0
	for _, p := range payments {
		if ctx.Err() != nil {
			return resolved, ctx.Err()
		}
		outcome, err := r.ProcessWebhook(ctx, p.GatewayPaymentId)
		if err != nil {
			r.log.Warn("pending payment not reconciled",
				zap.String("gateway_payment_id", p.GatewayPaymentId),
				zap.Error(err),
			)
			continue
		}
		if outcome.PaymentStatus.IsTerminal() {
			resolved++
		}
	}
	return resolved, nil
}

func (r *PaymentReconciler) gatewayStatus(ctx context.Context, gatewayPaymentID string) (model.PaymentStatus, error) {
	status, err := r.gateway.GetPaymentStatus(ctx, gatewayPaymentID)
	if errors.Is(err, gateway.ErrUnknownPayment) {
		// not visible at the gateway yet
		return model.PaymentPending, nil
	}
	if err != nil {
		return "", apperror.GatewayUnavailable(err)
	}
	return status, nil
}

// staleReport is true when gatewayPaymentID is not the order's current payment
// and its outcome must not replace the current one. A superseded payment that
// succeeded still settles an order nobody has paid yet.
func staleReport(order *model.Order, gatewayPaymentID string, status model.PaymentStatus) bool {
	if order.PaymentReference == nil || *order.PaymentReference == gatewayPaymentID {
		return false
	}
	return status != model.PaymentPaid || order.PaymentStatus == model.PaymentPaid
}

func replayedOutcome(event *model.PaymentEvent) *model.PaymentOutcome {
	return &model.PaymentOutcome{
		GatewayPaymentId: event.GatewayPaymentId,
		OrderId:          event.OrderId,
		PaymentStatus:    event.PaymentStatus,
		ProcessedAt:      event.ProcessedAt,
		Replayed:         true,
	}
}

func retryOnConflict(fn func() error) error {
	var err error
	for attempt := 0; attempt < casAttempts; attempt++ {
		if err = fn(); !errors.Is(err, apperror.ErrVersionConflict) {
			return err
		}
	}
	return err
}

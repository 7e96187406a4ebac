package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"restaurant_order/apperror"
	"restaurant_order/model"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCreateOrderComputesTotalAndPublishes(t *testing.T) {
	f := newFixture(t)

	order := f.staffOrder(t)

	assert.True(t, price("23.50").Equal(order.TotalAmount), order.TotalAmount.String())
	assert.Equal(t, model.OrderConfirmed, order.Status)
	assert.Equal(t, model.PaymentUnpaid, order.PaymentStatus)
	assert.Equal(t, "#0001", order.OrderNumber)
	assert.Equal(t, int64(1), order.Version)
	assert.Equal(t, []model.EventKind{model.EventOrderNew}, f.bus.kinds())

	snapshot, ok := f.bus.events[0].Payload.(model.Order)
	require.True(t, ok)
	assert.Equal(t, order.ID, snapshot.ID)
	assert.Equal(t, restaurantID, f.bus.events[0].RestaurantId)
}

func TestCreateOrderRejectsBadItems(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.orders.CreateOrder(ctx, model.CreateOrderInput{RestaurantId: restaurantID, TableId: "table-7", StaffId: staffID()})
	assert.True(t, errors.Is(err, apperror.ErrValidationFailed))

	_, err = f.orders.CreateOrder(ctx, model.CreateOrderInput{
		RestaurantId: restaurantID,
		TableId:      "table-7",
		Items:        []model.OrderItem{{MenuItemId: "pho-bo", Quantity: 0, UnitPrice: price("8.00")}},
		StaffId:      staffID(),
	})
	assert.True(t, errors.Is(err, apperror.ErrValidationFailed))
	assert.Empty(t, f.bus.kinds())
}

func TestCreateOrderSessionMustMatchTable(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	session, err := f.sessions.CreateSession(ctx, "A7F2", model.CustomerInfo{})
	require.NoError(t, err)

	_, err = f.orders.CreateOrder(ctx, model.CreateOrderInput{TableId: "table-9", SessionToken: &session.Token, Items: dinnerItems()})
	assert.True(t, errors.Is(err, apperror.ErrSessionInvalid))

	unknown := "not-a-token"
	_, err = f.orders.CreateOrder(ctx, model.CreateOrderInput{TableId: "table-7", SessionToken: &unknown, Items: dinnerItems()})
	assert.True(t, errors.Is(err, apperror.ErrSessionInvalid))

	order, err := f.orders.CreateOrder(ctx, model.CreateOrderInput{TableId: "table-7", SessionToken: &session.Token, Items: dinnerItems(), PaidUpfront: true})
	require.NoError(t, err)
	assert.Equal(t, restaurantID, order.RestaurantId)
	assert.Equal(t, model.PaymentUnpaid, order.PaymentStatus, "customers cannot mark their own order paid")
}

func TestCreateOrderStaffPaidUpfront(t *testing.T) {
	f := newFixture(t)

	order, err := f.orders.CreateOrder(context.Background(), model.CreateOrderInput{
		RestaurantId: restaurantID,
		TableId:      "table-9",
		Items:        dinnerItems(),
		StaffId:      staffID(),
		PaidUpfront:  true,
	})

	require.NoError(t, err)
	assert.Equal(t, model.PaymentPaid, order.PaymentStatus)
	assert.Equal(t, uint(42), *order.CreatedByStaff)
}

func TestCreateOrderStaffCannotUseAnotherRestaurantsTable(t *testing.T) {
	f := newFixture(t)

	_, err := f.orders.CreateOrder(context.Background(), model.CreateOrderInput{
		RestaurantId: restaurantID,
		TableId:      "other-1",
		Items:        dinnerItems(),
		StaffId:      staffID(),
	})

	assert.True(t, errors.Is(err, apperror.ErrTableNotFound))
}

func TestCreateOrderNumbersAreSequential(t *testing.T) {
	f := newFixture(t)

	first := f.staffOrder(t)
	second := f.staffOrder(t)

	assert.Equal(t, "#0001", first.OrderNumber)
	assert.Equal(t, "#0002", second.OrderNumber)
}

func TestValidTransitionsIncrementVersionByOne(t *testing.T) {
	paths := [][]model.OrderStatus{
		{model.OrderPreparing, model.OrderReady, model.OrderCompleted},
		{model.OrderCancelled},
		{model.OrderPreparing, model.OrderCancelled},
	}
	for _, path := range paths {
		f := newFixture(t)
		ctx := context.Background()
		order := f.staffOrder(t)

		for _, target := range path {
			before := order.Version
			var err error
			order, err = f.orders.TransitionStatus(ctx, order.ID, target, &before, "customer left")
			require.NoError(t, err, "to %s", target)
			assert.Equal(t, target, order.Status)
			assert.Equal(t, before+1, order.Version)

			stored, err := f.orders.GetOrder(ctx, order.ID)
			require.NoError(t, err)
			assert.Equal(t, target, stored.Status)
			assert.Equal(t, before+1, stored.Version)
		}
	}
}

func TestInvalidTransitionsLeaveOrderUnchanged(t *testing.T) {
	cases := []struct {
		name   string
		path   []model.OrderStatus
		target model.OrderStatus
	}{
		{"ready to cancelled", []model.OrderStatus{model.OrderPreparing, model.OrderReady}, model.OrderCancelled},
		{"completed to preparing", []model.OrderStatus{model.OrderPreparing, model.OrderReady, model.OrderCompleted}, model.OrderPreparing},
		{"cancelled to preparing", []model.OrderStatus{model.OrderCancelled}, model.OrderPreparing},
		{"confirmed to ready", nil, model.OrderReady},
		{"confirmed to confirmed", nil, model.OrderConfirmed},
		{"completed to cancelled", []model.OrderStatus{model.OrderPreparing, model.OrderReady, model.OrderCompleted}, model.OrderCancelled},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			f := newFixture(t)
			ctx := context.Background()
			order := f.staffOrder(t)
			for _, step := range tc.path {
				var err error
				order, err = f.orders.TransitionStatus(ctx, order.ID, step, nil, "kitchen closed")
				require.NoError(t, err)
			}
			published := len(f.bus.kinds())

			_, err := f.orders.TransitionStatus(ctx, order.ID, tc.target, nil, "kitchen closed")

			assert.True(t, errors.Is(err, apperror.ErrInvalidTransition), "got %v", err)
			stored, err := f.orders.GetOrder(ctx, order.ID)
			require.NoError(t, err)
			assert.Equal(t, order.Status, stored.Status)
			assert.Equal(t, order.Version, stored.Version)
			assert.Len(t, f.bus.kinds(), published)
		})
	}
}

func TestTransitionUnknownOrder(t *testing.T) {
	f := newFixture(t)

	_, err := f.orders.TransitionStatus(context.Background(), "missing", model.OrderPreparing, nil, "")

	assert.True(t, errors.Is(err, apperror.ErrOrderNotFound))
}

func TestTransitionStaleExpectedVersion(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	order := f.staffOrder(t)
	_, err := f.orders.TransitionStatus(ctx, order.ID, model.OrderPreparing, nil, "")
	require.NoError(t, err)

	stale := int64(1)
	_, err = f.orders.TransitionStatus(ctx, order.ID, model.OrderReady, &stale, "")

	assert.True(t, errors.Is(err, apperror.ErrVersionConflict))
	stored, err := f.orders.GetOrder(ctx, order.ID)
	require.NoError(t, err)
	assert.Equal(t, model.OrderPreparing, stored.Status)
}

func TestCancelRequiresReasonAndPublishes(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	order := f.staffOrder(t)

	_, err := f.orders.TransitionStatus(ctx, order.ID, model.OrderCancelled, nil, "  ")
	assert.True(t, errors.Is(err, apperror.ErrValidationFailed))

	cancelled, err := f.orders.TransitionStatus(ctx, order.ID, model.OrderCancelled, nil, "wrong table")
	require.NoError(t, err)
	assert.Equal(t, "wrong table", *cancelled.CancelReason)
	assert.Equal(t, []model.EventKind{model.EventOrderNew, model.EventOrderStatus, model.EventOrderCancelled}, f.bus.kinds())
	assert.Equal(t, model.OrderCancelledPayload{OrderId: order.ID, Reason: "wrong table"}, f.bus.events[2].Payload)
}

func TestCancelPaidOrderDoesNotRefund(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	order, err := f.orders.CreateOrder(ctx, model.CreateOrderInput{
		RestaurantId: restaurantID, TableId: "table-7", Items: dinnerItems(), StaffId: staffID(), PaidUpfront: true,
	})
	require.NoError(t, err)

	cancelled, err := f.orders.TransitionStatus(ctx, order.ID, model.OrderCancelled, nil, "allergy")

	require.NoError(t, err)
	assert.Equal(t, model.PaymentPaid, cancelled.PaymentStatus)
	assert.Empty(t, f.gw.refunds)
}

func TestConcurrentTransitionsExactlyOneWins(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	order := f.staffOrder(t)
	version := order.Version

	targets := []model.OrderStatus{model.OrderPreparing, model.OrderCancelled}
	errs := make([]error, len(targets))
	var wg sync.WaitGroup
	for i, target := range targets {
		wg.Add(1)
		go func(i int, target model.OrderStatus) {
			defer wg.Done()
			_, errs[i] = f.orders.TransitionStatus(ctx, order.ID, target, &version, "changed mind")
		}(i, target)
	}
	wg.Wait()

	succeeded, conflicted := 0, 0
	for _, err := range errs {
		switch {
		case err == nil:
			succeeded++
		case errors.Is(err, apperror.ErrVersionConflict):
			conflicted++
		}
	}
	assert.Equal(t, 1, succeeded)
	assert.Equal(t, 1, conflicted)

	stored, err := f.orders.GetOrder(ctx, order.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(2), stored.Version)
}

func TestKitchenQueue(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	oldest := f.staffOrder(t)
	f.clock.Advance(time.Minute)
	cooking := f.staffOrder(t)
	f.clock.Advance(time.Minute)
	failed := f.staffOrder(t)
	f.clock.Advance(time.Minute)
	ready := f.staffOrder(t)

	_, err := f.orders.TransitionStatus(ctx, cooking.ID, model.OrderPreparing, nil, "")
	require.NoError(t, err)
	_, _, err = f.orders.SetPaymentStatus(ctx, nil, failed.ID, model.PaymentFailed, nil)
	require.NoError(t, err)
	for _, s := range []model.OrderStatus{model.OrderPreparing, model.OrderReady} {
		_, err = f.orders.TransitionStatus(ctx, ready.ID, s, nil, "")
		require.NoError(t, err)
	}

	queue, err := f.orders.GetKitchenQueue(ctx, restaurantID)
	require.NoError(t, err)

	require.Len(t, queue, 2)
	assert.Equal(t, oldest.ID, queue[0].ID)
	assert.Equal(t, cooking.ID, queue[1].ID)
}

func TestListOrdersNewestFirst(t *testing.T) {
	f := newFixture(t)
	first := f.staffOrder(t)
	f.clock.Advance(time.Second)
	second := f.staffOrder(t)

	orders, total, err := f.orders.ListOrders(context.Background(), restaurantID, model.OrderFilter{})

	require.NoError(t, err)
	assert.Equal(t, int64(2), total)
	assert.Equal(t, second.ID, orders[0].ID)
	assert.Equal(t, first.ID, orders[1].ID)
}

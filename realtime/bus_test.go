package realtime

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"restaurant_order/metrics"
	"restaurant_order/model"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type chanConn struct {
	got     chan model.Envelope
	sendErr error
	gate    chan struct{} // when set, Send waits on it
	entered chan struct{}

	mu     sync.Mutex
	closed bool
}

func newChanConn() *chanConn {
	return &chanConn{got: make(chan model.Envelope, 16), entered: make(chan struct{}, 16)}
}

func (c *chanConn) Send(env model.Envelope) error {
	c.entered <- struct{}{}
	if c.gate != nil {
		<-c.gate
	}
	if c.sendErr != nil {
		return c.sendErr
	}
	c.got <- env
	return nil
}

func (c *chanConn) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
	return nil
}

func (c *chanConn) isClosed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

func receive(t *testing.T, c *chanConn) model.Envelope {
	t.Helper()
	select {
	case env := <-c.got:
		return env
	case <-time.After(2 * time.Second):
		t.Fatal("no envelope delivered")
		return model.Envelope{}
	}
}

func assertQuiet(t *testing.T, c *chanConn) {
	t.Helper()
	select {
	case env := <-c.got:
		t.Fatalf("unexpected envelope %s", env.Kind)
	case <-time.After(50 * time.Millisecond):
	}
}

type recordingSink struct {
	mu  sync.Mutex
	got []model.Envelope
	err error
}

func (s *recordingSink) Forward(_ context.Context, env model.Envelope) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.got = append(s.got, env)
	return s.err
}

func (s *recordingSink) envelopes() []model.Envelope {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]model.Envelope(nil), s.got...)
}

func TestBusRoutesByRestaurant(t *testing.T) {
	bus := NewBus(8, zap.NewNop())
	defer bus.Close()
	kitchen, floor, elsewhere := newChanConn(), newChanConn(), newChanConn()

	for _, sub := range []struct {
		restaurant string
		conn       *chanConn
	}{{"rest-1", kitchen}, {"rest-1", floor}, {"rest-2", elsewhere}} {
		_, err := bus.Subscribe(sub.restaurant, sub.conn)
		require.NoError(t, err)
	}

	bus.Publish("rest-1", model.EventOrderNew, model.OrderStatusPayload{OrderId: "o-1", Status: model.OrderConfirmed, Version: 1})

	for _, c := range []*chanConn{kitchen, floor} {
		env := receive(t, c)
		assert.Equal(t, model.EventOrderNew, env.Kind)
		assert.Equal(t, "rest-1", env.RestaurantId)
		assert.Equal(t, bus.Origin(), env.Origin)
		assert.False(t, env.OccurredAt.IsZero())
	}
	assertQuiet(t, elsewhere)
	assert.Equal(t, 2, bus.SubscriberCount("rest-1"))
}

func TestBusPreservesOrderPerSubscriber(t *testing.T) {
	bus := NewBus(16, zap.NewNop())
	defer bus.Close()
	conn := newChanConn()
	_, err := bus.Subscribe("rest-1", conn)
	require.NoError(t, err)

	kinds := []model.EventKind{model.EventOrderNew, model.EventOrderStatus, model.EventOrderPayment, model.EventOrderCancelled}
	for _, k := range kinds {
		bus.Publish("rest-1", k, nil)
	}
	for _, k := range kinds {
		assert.Equal(t, k, receive(t, conn).Kind)
	}
}

func TestUnsubscribeIsIdempotent(t *testing.T) {
	bus := NewBus(8, zap.NewNop())
	defer bus.Close()
	conn := newChanConn()
	before := testutil.ToFloat64(metrics.ActiveSubscribers)

	unsubscribe, err := bus.Subscribe("rest-1", conn)
	require.NoError(t, err)
	assert.Equal(t, before+1, testutil.ToFloat64(metrics.ActiveSubscribers))

	unsubscribe()
	unsubscribe()

	assert.Zero(t, bus.SubscriberCount("rest-1"))
	assert.Equal(t, before, testutil.ToFloat64(metrics.ActiveSubscribers))
	bus.Publish("rest-1", model.EventOrderNew, nil)
	assertQuiet(t, conn)
	assert.False(t, conn.isClosed(), "the owner closes the connection")
}

func TestBusDropsWhenQueueIsFull(t *testing.T) {
	bus := NewBus(1, zap.NewNop())
	defer bus.Close()
	slow := newChanConn()
	slow.gate = make(chan struct{})
	_, err := bus.Subscribe("rest-1", slow)
	require.NoError(t, err)
	dropped := testutil.ToFloat64(metrics.NotificationsDroppedTotal)

	bus.Publish("rest-1", model.EventOrderNew, "first")
	<-slow.entered // pump is now blocked sending the first envelope
	bus.Publish("rest-1", model.EventOrderStatus, "second")
	bus.Publish("rest-1", model.EventOrderPayment, "third")

	assert.Equal(t, dropped+1, testutil.ToFloat64(metrics.NotificationsDroppedTotal))

	close(slow.gate)
	assert.Equal(t, "first", receive(t, slow).Payload)
	assert.Equal(t, "second", receive(t, slow).Payload)
	assertQuiet(t, slow)
}

func TestSlowSubscriberDoesNotBlockOthers(t *testing.T) {
	bus := NewBus(1, zap.NewNop())
	defer bus.Close()
	slow, fast := newChanConn(), newChanConn()
	slow.gate = make(chan struct{})
	defer close(slow.gate)
	_, err := bus.Subscribe("rest-1", slow)
	require.NoError(t, err)
	_, err = bus.Subscribe("rest-1", fast)
	require.NoError(t, err)

	for i := 0; i < 5; i++ {
		bus.Publish("rest-1", model.EventOrderStatus, i)
		assert.Equal(t, i, receive(t, fast).Payload)
	}
}

func TestFailedSendDetachesSubscriber(t *testing.T) {
	bus := NewBus(4, zap.NewNop())
	defer bus.Close()
	broken := newChanConn()
	broken.sendErr = errors.New("broken pipe")
	_, err := bus.Subscribe("rest-1", broken)
	require.NoError(t, err)

	bus.Publish("rest-1", model.EventOrderNew, nil)

	assert.Eventually(t, func() bool { return bus.SubscriberCount("rest-1") == 0 }, 2*time.Second, 10*time.Millisecond)
}

func TestPublishForwardsToSinksButDeliverDoesNot(t *testing.T) {
	bus := NewBus(4, zap.NewNop())
	sink := &recordingSink{}
	failing := &recordingSink{err: errors.New("redis down")}
	bus.AddSink(sink)
	bus.AddSink(failing)
	conn := newChanConn()
	_, err := bus.Subscribe("rest-1", conn)
	require.NoError(t, err)

	bus.Publish("rest-1", model.EventTableStatus, model.TableStatusPayload{TableId: "table-7", Status: model.TableOccupied})
	bus.Deliver(model.Envelope{RestaurantId: "rest-1", Kind: model.EventOrderNew, Origin: "other-instance"})
	receive(t, conn)
	receive(t, conn)
	bus.Close()

	forwarded := sink.envelopes()
	require.Len(t, forwarded, 1)
	assert.Equal(t, model.EventTableStatus, forwarded[0].Kind)
	assert.Len(t, failing.envelopes(), 1)
}

func TestCloseDetachesEveryone(t *testing.T) {
	bus := NewBus(4, zap.NewNop())
	a, b := newChanConn(), newChanConn()
	_, err := bus.Subscribe("rest-1", a)
	require.NoError(t, err)
	_, err = bus.Subscribe("rest-2", b)
	require.NoError(t, err)

	bus.Close()
	bus.Close()

	assert.True(t, a.isClosed())
	assert.True(t, b.isClosed())
	assert.Zero(t, bus.SubscriberCount("rest-1"))
	_, err = bus.Subscribe("rest-1", newChanConn())
	assert.ErrorIs(t, err, ErrBusClosed)
}

func TestSubscribeRequiresRestaurant(t *testing.T) {
	bus := NewBus(4, zap.NewNop())
	defer bus.Close()

	_, err := bus.Subscribe("", newChanConn())
	assert.Error(t, err)
}

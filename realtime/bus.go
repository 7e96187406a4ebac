package realtime

import (
	"context"
	"errors"
	"sync"
	"time"

	"restaurant_order/metrics"
	"restaurant_order/model"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

const (
	defaultQueueSize = 64
	sinkTimeout      = 5 * time.Second
)

var ErrBusClosed = errors.New("notification bus closed")

// Connection is one staff dashboard attached to a restaurant room.
type Connection interface {
	Send(env model.Envelope) error
	Close() error
}

// Sink receives every envelope published on this instance.
type Sink interface {
	Forward(ctx context.Context, env model.Envelope) error
}

// Unsubscribe detaches a connection. Calling it more than once is a no-op.
type Unsubscribe func()

type subscriber struct {
	restaurantID string
	conn         Connection
	queue        chan model.Envelope
	done         chan struct{}
	once         sync.Once
}

// Bus routes envelopes to the connections subscribed to a restaurant.
// Delivery is at-most-once: a subscriber whose queue is full misses the envelope.
type Bus struct {
	mu        sync.Mutex
	rooms     map[string]map[*subscriber]struct{}
	closed    bool
	sinks     []Sink
	sinkWG    sync.WaitGroup
	queueSize int
	origin    string
	now       func() time.Time
	log       *zap.Logger
}

func NewBus(queueSize int, log *zap.Logger) *Bus {
	if queueSize <= 0 {
		queueSize = defaultQueueSize
	}
	return &Bus{
		rooms:     make(map[string]map[*subscriber]struct{}),
		queueSize: queueSize,
		origin:    uuid.NewString(),
		now:       func() time.Time { return time.Now().UTC() },
		log:       log,
	}
}

// Origin identifies envelopes published by this process.
func (b *Bus) Origin() string { return b.origin }

// AddSink must be called before the bus starts publishing.
func (b *Bus) AddSink(s Sink) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.sinks = append(b.sinks, s)
}

// Publish never blocks the caller.
func (b *Bus) Publish(restaurantID string, kind model.EventKind, payload any) {
	env := model.Envelope{
		RestaurantId: restaurantID,
		Kind:         kind,
		Payload:      payload,
		OccurredAt:   b.now(),
		Origin:       b.origin,
	}
	b.Deliver(env)

	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return
	}
	sinks := b.sinks
	b.sinkWG.Add(len(sinks))
	b.mu.Unlock()

	for _, s := range sinks {
		go func(s Sink) {
			defer b.sinkWG.Done()
			ctx, cancel := context.WithTimeout(context.Background(), sinkTimeout)
			defer cancel()
			if err := s.Forward(ctx, env); err != nil {
				b.log.Warn("forward envelope failed",
					zap.String("restaurant_id", env.RestaurantId),
					zap.String("kind", string(env.Kind)),
					zap.Error(err),
				)
			}
		}(s)
	}
}

// Deliver hands an envelope to local subscribers only. Relayed envelopes
// from other instances enter here so they are not forwarded again.
func (b *Bus) Deliver(env model.Envelope) {
	b.mu.Lock()
	room := b.rooms[env.RestaurantId]
	targets := make([]*subscriber, 0, len(room))
	for s := range room {
		targets = append(targets, s)
	}
	b.mu.Unlock()

	for _, s := range targets {
		select {
		case s.queue <- env:
		default:
			metrics.NotificationsDroppedTotal.Inc()
			b.log.Warn("subscriber queue full, envelope dropped",
				zap.String("restaurant_id", env.RestaurantId),
				zap.String("kind", string(env.Kind)),
			)
		}
	}
}

func (b *Bus) Subscribe(restaurantID string, conn Connection) (Unsubscribe, error) {
	if restaurantID == "" {
		return nil, errors.New("restaurant id is required")
	}
	s := &subscriber{
		restaurantID: restaurantID,
		conn:         conn,
		queue:        make(chan model.Envelope, b.queueSize),
		done:         make(chan struct{}),
	}

	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return nil, ErrBusClosed
	}
	room, ok := b.rooms[restaurantID]
	if !ok {
		room = make(map[*subscriber]struct{})
		b.rooms[restaurantID] = room
	}
	room[s] = struct{}{}
	b.mu.Unlock()

	metrics.ActiveSubscribers.Inc()
	go b.pump(s)
	return func() { b.remove(s) }, nil
}

func (b *Bus) SubscriberCount(restaurantID string) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.rooms[restaurantID])
}

// Close detaches and closes every connection, then waits for in-flight sink forwards.
func (b *Bus) Close() {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return
	}
	b.closed = true
	var all []*subscriber
	for _, room := range b.rooms {
		for s := range room {
			all = append(all, s)
		}
	}
	b.mu.Unlock()

	for _, s := range all {
		b.remove(s)
		if err := s.conn.Close(); err != nil {
			b.log.Debug("close subscriber connection", zap.Error(err))
		}
	}
	b.sinkWG.Wait()
}

func (b *Bus) pump(s *subscriber) {
	for {
		select {
		case <-s.done:
			return
		case env := <-s.queue:
			if err := s.conn.Send(env); err != nil {
				b.log.Info("subscriber send failed, detaching",
					zap.String("restaurant_id", s.restaurantID),
					zap.Error(err),
				)
				b.remove(s)
				return
			}
		}
	}
}

func (b *Bus) remove(s *subscriber) {
	s.once.Do(func() {
		b.mu.Lock()
		if room, ok := b.rooms[s.restaurantID]; ok {
			delete(room, s)
			if len(room) == 0 {
				delete(b.rooms, s.restaurantID)
			}
		}
		b.mu.Unlock()
		close(s.done)
		metrics.ActiveSubscribers.Dec()
	})
}

package realtime

import (
	"context"
	"encoding/json"
	"fmt"

	"restaurant_order/model"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const channelPrefix = "restaurant:"

func channelFor(restaurantID string) string {
	return channelPrefix + restaurantID
}

// RedisBridge fans envelopes out to the other API instances over redis pub/sub
// and relays theirs into the local bus.
type RedisBridge struct {
	client *redis.Client
	bus    *Bus
	log    *zap.Logger
}

func NewRedisBridge(client *redis.Client, bus *Bus, log *zap.Logger) *RedisBridge {
	return &RedisBridge{client: client, bus: bus, log: log}
}

func (r *RedisBridge) Forward(ctx context.Context, env model.Envelope) error {
	body, err := json.Marshal(env)
	if err != nil {
		return fmt.Errorf("marshal envelope: %w", err)
	}
	return r.client.Publish(ctx, channelFor(env.RestaurantId), body).Err()
}

// Run relays envelopes from every restaurant channel until ctx is done.
func (r *RedisBridge) Run(ctx context.Context) error {
	pubsub := r.client.PSubscribe(ctx, channelPrefix+"*")
	defer pubsub.Close()

	if _, err := pubsub.Receive(ctx); err != nil {
		return fmt.Errorf("subscribe %s*: %w", channelPrefix, err)
	}
	r.log.Info("redis bridge subscribed", zap.String("pattern", channelPrefix+"*"))

	ch := pubsub.Channel()
	for {
		select {
		case <-ctx.Done():
			return nil
		case msg, ok := <-ch:
			if !ok {
				return nil
			}
			r.relay(msg.Payload)
		}
	}
}

func (r *RedisBridge) relay(payload string) {
	var env model.Envelope
	if err := json.Unmarshal([]byte(payload), &env); err != nil {
		r.log.Warn("discarding malformed envelope", zap.Error(err))
		return
	}
	if env.Origin == r.bus.Origin() {
		return
	}
	r.bus.Deliver(env)
}

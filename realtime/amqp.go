package realtime

import (
	"context"
	"encoding/json"
	"fmt"

	"restaurant_order/model"

	amqp "github.com/rabbitmq/amqp091-go"
)

const eventsExchange = "restaurant_events"

type amqpChannel interface {
	ExchangeDeclare(name, kind string, durable, autoDelete, internal, noWait bool, args amqp.Table) error
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
}

// AMQPSink copies envelopes onto a fanout exchange for downstream consumers
// such as reporting or printers.
type AMQPSink struct {
	ch amqpChannel
}

func NewAMQPSink(ch amqpChannel) (*AMQPSink, error) {
	err := ch.ExchangeDeclare(
		eventsExchange, // name
		"fanout",       // type
		true,           // durable
		false,          // auto-deleted
		false,          // internal
		false,          // no-wait
		nil,            // arguments
	)
	if err != nil {
		return nil, fmt.Errorf("declare exchange %s: %w", eventsExchange, err)
	}
	return &AMQPSink{ch: ch}, nil
}

func (s *AMQPSink) Forward(ctx context.Context, env model.Envelope) error {
	body, err := json.Marshal(env)
	if err != nil {
		return fmt.Errorf("marshal envelope: %w", err)
	}
	return s.ch.PublishWithContext(ctx,
		eventsExchange,   // exchange
		env.RestaurantId, // routing key
		false,            // mandatory
		false,            // immediate
		amqp.Publishing{
			ContentType: "application/json",
			Type:        string(env.Kind),
			Timestamp:   env.OccurredAt,
			Body:        body,
		})
}

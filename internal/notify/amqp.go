package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rabbitmq/amqp091-go"
	"github.com/rs/zerolog"
)

const publishTimeout = 5 * time.Second

// AMQPBroadcaster mirrors broadcasts onto a durable topic exchange so other
// service instances (and external consumers) see the same ticket events the
// websocket hub delivers locally.
type AMQPBroadcaster struct {
	conn     *amqp091.Connection
	exchange string
	log      zerolog.Logger
}

// NewAMQP connects to the broker and declares the topic exchange.
func NewAMQP(url, exchange string, log zerolog.Logger) (*AMQPBroadcaster, error) {
	conn, err := amqp091.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("notify: dial amqp: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("notify: open channel: %w", err)
	}
	defer ch.Close()

	if err := ch.ExchangeDeclare(exchange, "topic", true, false, false, false, nil); err != nil {
		conn.Close()
		return nil, fmt.Errorf("notify: declare exchange %s: %w", exchange, err)
	}

	return &AMQPBroadcaster{
		conn:     conn,
		exchange: exchange,
		log:      log,
	}, nil
}

// Broadcast implements Broadcaster. The event name doubles as the routing
// key; rooms travel inside the envelope.
func (b *AMQPBroadcaster) Broadcast(rooms []string, event string, payload any) error {
	ch, err := b.conn.Channel()
	if err != nil {
		return fmt.Errorf("notify: open channel: %w", err)
	}
	defer ch.Close()

	body, err := json.Marshal(Envelope{
		Event:   event,
		Rooms:   rooms,
		Payload: payload,
		SentAt:  time.Now(),
	})
	if err != nil {
		return fmt.Errorf("notify: marshal event %s: %w", event, err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), publishTimeout)
	defer cancel()

	err = ch.PublishWithContext(ctx, b.exchange, event, false, false, amqp091.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp091.Persistent,
		MessageId:    uuid.NewString(),
		Timestamp:    time.Now(),
		Body:         body,
	})
	if err != nil {
		return fmt.Errorf("notify: publish %s: %w", event, err)
	}
	b.log.Debug().Str("event", event).Str("exchange", b.exchange).Msg("event mirrored")
	return nil
}

// Close closes the broker connection.
func (b *AMQPBroadcaster) Close() error {
	return b.conn.Close()
}

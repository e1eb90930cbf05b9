package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/rs/zerolog/log"
)

// RabbitPublisher publishes events to a durable topic exchange using the
// event kind as routing key.
type RabbitPublisher struct {
	conn     *amqp.Connection
	channel  *amqp.Channel
	exchange string
	origin   string
}

// NewRabbitPublisher dials url and declares exchange. Events published
// through it are stamped with origin so a Relay on the same instance can
// skip them.
func NewRabbitPublisher(url, exchange, origin string) (*RabbitPublisher, error) {
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to RabbitMQ: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to open a channel: %w", err)
	}
	if err := declareExchange(ch, exchange); err != nil {
		ch.Close()
		conn.Close()
		return nil, err
	}
	return &RabbitPublisher{conn: conn, channel: ch, exchange: exchange, origin: origin}, nil
}

func declareExchange(ch *amqp.Channel, exchange string) error {
	err := ch.ExchangeDeclare(
		exchange, // name
		"topic",  // kind
		true,     // durable
		false,    // auto-deleted
		false,    // internal
		false,    // no-wait
		nil,      // arguments
	)
	if err != nil {
		return fmt.Errorf("failed to declare exchange: %w", err)
	}
	return nil
}

// Publish implements Publisher.
func (p *RabbitPublisher) Publish(ctx context.Context, e Event) error {
	if e.Origin == "" {
		e.Origin = p.origin
	}
	body, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	err = p.channel.PublishWithContext(ctx,
		p.exchange,     // exchange
		string(e.Kind), // routing key
		false,          // mandatory
		false,          // immediate
		amqp.Publishing{
			ContentType: "application/json",
			MessageId:   e.ID,
			Body:        body,
			Timestamp:   e.At,
		})
	if err != nil {
		return fmt.Errorf("failed to publish event: %w", err)
	}
	return nil
}

// Close releases the channel and connection.
func (p *RabbitPublisher) Close() {
	if p.channel != nil {
		p.channel.Close()
	}
	if p.conn != nil {
		p.conn.Close()
	}
}

// Relay consumes every event of the exchange through an exclusive queue and
// republishes those from other instances into a local Publisher, so SSE
// clients connected to any replica see every change.
type Relay struct {
	conn    *amqp.Connection
	channel *amqp.Channel
	queue   string
	origin  string
}

// NewRelay dials url and binds an exclusive, auto-deleted queue to exchange.
func NewRelay(url, exchange, origin string) (*Relay, error) {
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to RabbitMQ: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to open a channel: %w", err)
	}
	if err := declareExchange(ch, exchange); err != nil {
		ch.Close()
		conn.Close()
		return nil, err
	}
	q, err := ch.QueueDeclare(
		"",    // name: server-generated
		false, // durable
		true,  // delete when unused
		true,  // exclusive
		false, // no-wait
		nil,   // arguments
	)
	if err == nil {
		err = ch.QueueBind(q.Name, "#", exchange, false, nil)
	}
	if err != nil {
		ch.Close()
		conn.Close()
		return nil, fmt.Errorf("failed to declare relay queue: %w", err)
	}
	return &Relay{conn: conn, channel: ch, queue: q.Name, origin: origin}, nil
}

// Run forwards events to dst until ctx is done or the delivery channel
// closes.
func (r *Relay) Run(ctx context.Context, dst Publisher) error {
	msgs, err := r.channel.Consume(
		r.queue,
		"",    // consumer
		true,  // auto-ack: notifications are best effort
		true,  // exclusive
		false, // no-local
		false, // no-wait
		nil,   // args
	)
	if err != nil {
		return fmt.Errorf("failed to register a consumer: %w", err)
	}
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case d, ok := <-msgs:
			if !ok {
				return nil
			}
			var e Event
			if err := json.Unmarshal(d.Body, &e); err != nil {
				log.Warn().Err(err).Msg("events: dropping malformed message")
				continue
			}
			if e.Origin == r.origin {
				continue
			}
			_ = dst.Publish(ctx, e)
		}
	}
}

// Close releases the channel and connection.
func (r *Relay) Close() {
	if r.channel != nil {
		r.channel.Close()
	}
	if r.conn != nil {
		r.conn.Close()
	}
}

// Package publish republishes persisted chat events onto the broker
// for consumers outside this subsystem.
package publish

import (
	"context"
	"encoding/json"
	"fmt"
	"log"

	amqp "github.com/rabbitmq/amqp091-go"
)

// Broker topology for chat events
const (
	Exchange             = "chat_exchange"
	RoutingKeyNewMessage = "chat.newMessage"
)

// Publisher hands events to a durable broker exchange. Best-effort:
// the caller never fails a send because publication failed.
type Publisher interface {
	Publish(ctx context.Context, exchange, routingKey string, payload any) error
	Close() error
}

// AMQPPublisher holds a RabbitMQ connection and channel established
// once at process start and reused for every publish
type AMQPPublisher struct {
	conn    *amqp.Connection
	channel *amqp.Channel
}

// Connect dials the broker and declares the durable chat exchange
func Connect(uri string) (*AMQPPublisher, error) {
	conn, err := amqp.Dial(uri)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to RabbitMQ: %w", err)
	}

	channel, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to open RabbitMQ channel: %w", err)
	}

	if err := channel.ExchangeDeclare(Exchange, "direct", true, false, false, false, nil); err != nil {
		channel.Close()
		conn.Close()
		return nil, fmt.Errorf("failed to declare exchange: %w", err)
	}

	log.Println("✅ Connected to RabbitMQ")
	return &AMQPPublisher{conn: conn, channel: channel}, nil
}

// Publish serializes payload and hands it to the exchange with
// persistent delivery mode
func (p *AMQPPublisher) Publish(ctx context.Context, exchange, routingKey string, payload any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to serialize payload: %w", err)
	}

	err = p.channel.PublishWithContext(ctx, exchange, routingKey, false, false, amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		Body:         body,
	})
	if err != nil {
		return fmt.Errorf("failed to publish to exchange %q: %w", exchange, err)
	}

	return nil
}

// Close tears down the channel and connection
func (p *AMQPPublisher) Close() error {
	if p.channel != nil {
		p.channel.Close()
	}
	if p.conn != nil {
		return p.conn.Close()
	}
	return nil
}

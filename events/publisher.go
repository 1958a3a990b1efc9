// Package events publishes verification outcomes to downstream consumers.
package events

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/zentity/zk-attest/models"
)

// DefaultRoutingKey is used when none is configured.
const DefaultRoutingKey = "verification.completed"

var ErrPublisherClosed = errors.New("event publisher closed")

type Publisher interface {
	Publish(ctx context.Context, event models.VerificationEvent) error
	Close() error
}

// Channel is the part of *amqp.Channel the publisher uses.
type Channel interface {
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
	Close() error
}

// RabbitmqPublisher sends events as persistent JSON messages.
type RabbitmqPublisher struct {
	mu         sync.Mutex
	conn       *amqp.Connection
	channel    Channel
	exchange   string
	routingKey string
	closed     bool
}

// NewPublisher wraps an open channel.
func NewPublisher(ch Channel, exchange, routingKey string) *RabbitmqPublisher {
	if routingKey == "" {
		routingKey = DefaultRoutingKey
	}
	return &RabbitmqPublisher{
		channel:    ch,
		exchange:   exchange,
		routingKey: routingKey,
	}
}

// Dial connects to url, declares a durable topic exchange and returns a
// publisher that owns the connection.
func Dial(url, exchange, routingKey string) (*RabbitmqPublisher, error) {
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("amqp dial: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("amqp channel: %w", err)
	}
	if exchange != "" {
		if err := ch.ExchangeDeclare(exchange, amqp.ExchangeTopic, true, false, false, false, nil); err != nil {
			conn.Close()
			return nil, fmt.Errorf("declare exchange %s: %w", exchange, err)
		}
	}

	p := NewPublisher(ch, exchange, routingKey)
	p.conn = conn
	return p, nil
}

func (p *RabbitmqPublisher) Publish(ctx context.Context, event models.VerificationEvent) error {
	body, err := event.Serialize()
	if err != nil {
		return err
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return ErrPublisherClosed
	}

	return p.channel.PublishWithContext(ctx,
		p.exchange,
		p.routingKey,
		false, false,
		amqp.Publishing{
			ContentType:  "application/json",
			Body:         body,
			MessageId:    event.ID,
			Type:         "verification." + event.CircuitType,
			Timestamp:    time.Now(),
			DeliveryMode: amqp.Persistent,
		},
	)
}

func (p *RabbitmqPublisher) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return nil
	}
	p.closed = true

	err := p.channel.Close()
	if p.conn != nil {
		if cerr := p.conn.Close(); err == nil {
			err = cerr
		}
	}
	return err
}

type nopPublisher struct{}

func (nopPublisher) Publish(context.Context, models.VerificationEvent) error { return nil }
func (nopPublisher) Close() error                                            { return nil }

// Nop drops every event. Used when no broker is configured.
func Nop() Publisher { return nopPublisher{} }

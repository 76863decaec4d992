// Package events publishes committed invoice changes to other systems.
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/rabbitmq/amqp091-go"

	"github.com/ledgerlane/invoicer/internal/invoice"
)

const publishTimeout = 5 * time.Second

// Publisher is satisfied by every sink in this package.
type Publisher interface {
	invoice.Publisher
	Close() error
}

// Nop drops every event. It is used when no broker is configured.
type Nop struct{}

// Publish discards event.
func (Nop) Publish(context.Context, invoice.Event) error { return nil }

// Close does nothing.
func (Nop) Close() error { return nil }

// AMQPPublisher sends events to a durable topic exchange, routed by event type.
type AMQPPublisher struct {
	conn     *amqp091.Connection
	exchange string
	logger   *slog.Logger

	mu      sync.Mutex
	channel *amqp091.Channel
}

// New dials url and declares exchange. An empty url yields Nop.
func New(url, exchange string, logger *slog.Logger) (Publisher, error) {
	if url == "" {
		return Nop{}, nil
	}
	pub, err := DialAMQP(url, exchange, logger)
	if err != nil {
		return nil, err
	}
	return pub, nil
}

// DialAMQP connects and declares the exchange.
func DialAMQP(url, exchange string, logger *slog.Logger) (*AMQPPublisher, error) {
	if logger == nil {
		logger = slog.Default()
	}
	conn, err := amqp091.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("dial AMQP: %w", err)
	}
	channel, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("open channel: %w", err)
	}
	if err := channel.ExchangeDeclare(exchange, amqp091.ExchangeTopic, true, false, false, false, nil); err != nil {
		_ = channel.Close()
		_ = conn.Close()
		return nil, fmt.Errorf("declare exchange %s: %w", exchange, err)
	}
	return &AMQPPublisher{conn: conn, channel: channel, exchange: exchange, logger: logger}, nil
}

// Publish sends event as a persistent JSON message.
func (p *AMQPPublisher) Publish(ctx context.Context, event invoice.Event) error {
	msg, err := Message(event)
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(ctx, publishTimeout)
	defer cancel()

	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.channel.PublishWithContext(ctx, p.exchange, event.Type, false, false, msg); err != nil {
		return fmt.Errorf("publish %s: %w", event.Type, err)
	}
	p.logger.Debug("published invoice event",
		slog.String("type", event.Type),
		slog.String("invoice_id", event.Invoice.ID),
		slog.String("exchange", p.exchange))
	return nil
}

// Close releases the channel and connection.
func (p *AMQPPublisher) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.channel != nil {
		_ = p.channel.Close()
	}
	if p.conn != nil {
		return p.conn.Close()
	}
	return nil
}

// Message encodes event for the broker.
func Message(event invoice.Event) (amqp091.Publishing, error) {
	body, err := json.Marshal(event)
	if err != nil {
		return amqp091.Publishing{}, fmt.Errorf("marshal %s event: %w", event.Type, err)
	}
	ts := event.OccurredAt
	if ts.IsZero() {
		ts = time.Now().UTC()
	}
	return amqp091.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp091.Persistent,
		Timestamp:    ts,
		Type:         event.Type,
		MessageId:    event.Invoice.ID + ":" + ts.Format(time.RFC3339Nano),
		Body:         body,
	}, nil
}

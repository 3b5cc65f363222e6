// Package events publishes transfer events to RabbitMQ.
package events

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"

	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"

	"github.com/spbu-ds-practicum-2025/dinarflow-transfer-engine/internal/domain"
)

// ErrPublishNacked is returned when the broker refuses a message.
var ErrPublishNacked = errors.New("message was nacked by the broker")

// Config holds the broker settings of the publisher.
type Config struct {
	URL      string
	Exchange string // topic exchange, declared durable
}

// RabbitMQPublisher implements domain.Notifier.
// Every message is published persistent and waits for a publisher confirm.
type RabbitMQPublisher struct {
	mu       sync.Mutex
	conn     *amqp.Connection
	channel  *amqp.Channel
	exchange string
	logger   *zap.Logger
}

// NewRabbitMQPublisher connects to the broker and declares the exchange.
func NewRabbitMQPublisher(cfg Config, logger *zap.Logger) (*RabbitMQPublisher, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	conn, err := amqp.Dial(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to RabbitMQ: %w", err)
	}

	channel, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to open channel: %w", err)
	}

	err = channel.ExchangeDeclare(
		cfg.Exchange, // name
		"topic",      // type
		true,         // durable
		false,        // auto-deleted
		false,        // internal
		false,        // no-wait
		nil,          // arguments
	)
	if err != nil {
		channel.Close()
		conn.Close()
		return nil, fmt.Errorf("failed to declare exchange: %w", err)
	}

	if err := channel.Confirm(false); err != nil {
		channel.Close()
		conn.Close()
		return nil, fmt.Errorf("failed to enable publisher confirms: %w", err)
	}

	logger.Info("connected to RabbitMQ", zap.String("exchange", cfg.Exchange))

	return &RabbitMQPublisher{
		conn:     conn,
		channel:  channel,
		exchange: cfg.Exchange,
		logger:   logger,
	}, nil
}

// RoutingKey returns the routing key of an event type under exchange,
// e.g. "wallet.transfers.completed" for transfer.completed.
func RoutingKey(exchange string, t domain.EventType) string {
	return exchange + "." + strings.TrimPrefix(string(t), "transfer.")
}

// Notify publishes event and waits until the broker confirms it or ctx ends.
func (p *RabbitMQPublisher) Notify(ctx context.Context, event domain.Event) error {
	body, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	msg := amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		MessageId:    event.EventID.String(),
		Timestamp:    event.EventTimestamp,
		Type:         string(event.EventType),
		Body:         body,
	}
	key := RoutingKey(p.exchange, event.EventType)

	p.mu.Lock()
	confirm, err := p.channel.PublishWithDeferredConfirmWithContext(ctx, p.exchange, key, false, false, msg)
	p.mu.Unlock()
	if err != nil {
		return fmt.Errorf("failed to publish event: %w", err)
	}

	acked, err := confirm.WaitContext(ctx)
	if err != nil {
		return fmt.Errorf("failed to confirm event: %w", err)
	}
	if !acked {
		return fmt.Errorf("%w: event %s", ErrPublishNacked, event.EventID)
	}

	p.logger.Debug("event published",
		zap.String("routing_key", key),
		zap.String("event_id", event.EventID.String()),
	)
	return nil
}

// Close closes the channel and the connection.
func (p *RabbitMQPublisher) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	var errs []error
	if p.channel != nil {
		if err := p.channel.Close(); err != nil && !errors.Is(err, amqp.ErrClosed) {
			errs = append(errs, fmt.Errorf("failed to close channel: %w", err))
		}
	}
	if p.conn != nil {
		if err := p.conn.Close(); err != nil && !errors.Is(err, amqp.ErrClosed) {
			errs = append(errs, fmt.Errorf("failed to close connection: %w", err))
		}
	}
	return errors.Join(errs...)
}

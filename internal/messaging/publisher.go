package messaging

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rabbitmq/amqp091-go"

	"restaurant-pos/internal/logger"
	"restaurant-pos/internal/models"
)

// ErrDisconnected is returned when no RabbitMQ channel is available
var ErrDisconnected = errors.New("rabbitmq connection is closed")

// EventPublisher delivers branch-scoped events. Delivery is best effort.
type EventPublisher interface {
	Publish(ctx context.Context, branch string, ev models.Event) error
}

// Publisher handles event publishing to RabbitMQ
type Publisher struct {
	conn   *Connection
	logger *logger.Logger
}

// NewPublisher creates a new event publisher
func NewPublisher(conn *Connection, log *logger.Logger) *Publisher {
	return &Publisher{
		conn:   conn,
		logger: log,
	}
}

// RoutingKey builds the topic key for an event of a branch
func RoutingKey(branch string, t models.EventType) string {
	return fmt.Sprintf("branch.%s.%s", branch, strings.ToLower(string(t)))
}

// Publish stamps the event with its branch and sends it to the events exchange
func (p *Publisher) Publish(ctx context.Context, branch string, ev models.Event) error {
	if p.conn.IsClosed() {
		if err := p.conn.Reconnect(); err != nil {
			return fmt.Errorf("failed to reconnect: %w", err)
		}
	}

	ev = stamp(branch, ev)
	body, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	publishing := amqp091.Publishing{
		ContentType:  "application/json",
		Body:         body,
		DeliveryMode: amqp091.Transient,
		Timestamp:    ev.Timestamp,
		Type:         string(ev.Type),
	}

	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	ch := p.conn.Channel()
	if ch == nil {
		return fmt.Errorf("failed to publish event: %w", ErrDisconnected)
	}

	routingKey := RoutingKey(branch, ev.Type)
	err = ch.PublishWithContext(
		ctx,
		EventsExchange, // exchange
		routingKey,     // routing key
		false,          // mandatory
		false,          // immediate
		publishing,
	)
	if err != nil {
		p.logger.Error("event_publish_failed",
			fmt.Sprintf("Failed to publish %s", ev.Type),
			logger.RequestID(ctx), err, map[string]interface{}{
				"routing_key": routingKey,
			})
		return fmt.Errorf("failed to publish event: %w", err)
	}

	p.logger.Debug("event_published",
		fmt.Sprintf("Published %s", ev.Type),
		logger.RequestID(ctx), map[string]interface{}{
			"routing_key":  routingKey,
			"message_size": len(body),
		})

	return nil
}

// Close closes the publisher
func (p *Publisher) Close() error {
	return p.conn.Close()
}

func stamp(branch string, ev models.Event) models.Event {
	ev.Branch = branch
	if ev.Timestamp.IsZero() {
		ev.Timestamp = time.Now().UTC()
	}
	return ev
}

// Fanout publishes to every wrapped publisher and returns the first failure
type Fanout []EventPublisher

func (f Fanout) Publish(ctx context.Context, branch string, ev models.Event) error {
	var first error
	for _, p := range f {
		if err := p.Publish(ctx, branch, ev); err != nil && first == nil {
			first = err
		}
	}
	return first
}

// Discard drops every event
type Discard struct{}

func (Discard) Publish(context.Context, string, models.Event) error { return nil }

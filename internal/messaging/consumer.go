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

// ErrMalformedEvent marks deliveries that do not decode to a branch event
var ErrMalformedEvent = errors.New("malformed event")

// EventHandler processes one decoded branch event
type EventHandler func(ctx context.Context, ev models.Event) error

// Consumer reads branch events from a RabbitMQ queue
type Consumer struct {
	conn     *Connection
	logger   *logger.Logger
	queue    string
	tag      string
	prefetch int
	timeout  time.Duration
}

// NewConsumer creates a consumer of queue registered under tag
func NewConsumer(conn *Connection, log *logger.Logger, queue, tag string, prefetch int) *Consumer {
	return &Consumer{
		conn:     conn,
		logger:   log,
		queue:    queue,
		tag:      tag,
		prefetch: prefetch,
		timeout:  30 * time.Second,
	}
}

// DecodeEvent turns a delivery into an event. The AMQP type header and the
// routing key fill in what the body omits and must agree with what it carries.
func DecodeEvent(d amqp091.Delivery) (models.Event, error) {
	var ev models.Event
	if err := json.Unmarshal(d.Body, &ev); err != nil {
		return models.Event{}, fmt.Errorf("%w: %v", ErrMalformedEvent, err)
	}

	header := models.EventType(d.Type)
	switch {
	case ev.Type == "" && header == "":
		return models.Event{}, fmt.Errorf("%w: no event type", ErrMalformedEvent)
	case ev.Type == "":
		ev.Type = header
	case header != "" && header != ev.Type:
		return models.Event{}, fmt.Errorf("%w: body type %s, header type %s", ErrMalformedEvent, ev.Type, header)
	}

	if ev.Branch == "" {
		ev.Branch = branchFromKey(d.RoutingKey)
	}
	if ev.Timestamp.IsZero() {
		ev.Timestamp = d.Timestamp
	}
	return ev, nil
}

// branchFromKey extracts <id> from branch.<id>.<event>
func branchFromKey(key string) string {
	parts := strings.Split(key, ".")
	if len(parts) != 3 || parts[0] != "branch" {
		return ""
	}
	return parts[1]
}

// Consume delivers events to handler until ctx ends. A closed delivery
// channel triggers one reconnect before the queue is consumed again.
func (c *Consumer) Consume(ctx context.Context, handler EventHandler) error {
	for {
		deliveries, err := c.subscribe()
		if err != nil {
			return err
		}

		c.logger.Info("consumer_started",
			fmt.Sprintf("Started consuming from queue %s", c.queue),
			"", map[string]interface{}{
				"queue":    c.queue,
				"consumer": c.tag,
				"prefetch": c.prefetch,
			})

		if !c.drain(ctx, deliveries, handler) {
			c.logger.Info("consumer_stopped", "Consumer stopped by context", "", nil)
			return ctx.Err()
		}

		c.logger.Warn("consumer_channel_closed", "Delivery channel closed, reconnecting", "", nil)
		if err := c.conn.Reconnect(); err != nil {
			return fmt.Errorf("failed to reconnect after channel closed: %w", err)
		}
	}
}

// drain handles deliveries until the channel closes (true) or ctx ends (false)
func (c *Consumer) drain(ctx context.Context, deliveries <-chan amqp091.Delivery, handler EventHandler) bool {
	for {
		select {
		case <-ctx.Done():
			return false
		case d, ok := <-deliveries:
			if !ok {
				return true
			}
			c.handle(ctx, d, handler)
		}
	}
}

func (c *Consumer) subscribe() (<-chan amqp091.Delivery, error) {
	if c.conn.IsClosed() {
		if err := c.conn.Reconnect(); err != nil {
			return nil, fmt.Errorf("failed to reconnect: %w", err)
		}
	}
	ch := c.conn.Channel()
	if ch == nil {
		return nil, ErrDisconnected
	}

	if err := ch.Qos(c.prefetch, 0, false); err != nil {
		return nil, fmt.Errorf("failed to set QoS: %w", err)
	}
	deliveries, err := ch.Consume(
		c.queue, // queue
		c.tag,   // consumer
		false,   // auto-ack
		false,   // exclusive
		false,   // no-local
		false,   // no-wait
		nil,     // args
	)
	if err != nil {
		return nil, fmt.Errorf("failed to register consumer: %w", err)
	}
	return deliveries, nil
}

// handle decodes and dispatches one delivery. Events that cannot be decoded
// or handled are dropped without requeue; listeners have no replay.
func (c *Consumer) handle(ctx context.Context, d amqp091.Delivery, handler EventHandler) {
	start := time.Now()
	fields := map[string]interface{}{
		"queue":        c.queue,
		"routing_key":  d.RoutingKey,
		"delivery_tag": d.DeliveryTag,
	}

	ev, err := DecodeEvent(d)
	if err == nil {
		fields["event"] = string(ev.Type)
		handlerCtx, cancel := context.WithTimeout(ctx, c.timeout)
		err = handler(handlerCtx, ev)
		cancel()
	}
	fields["duration_ms"] = time.Since(start).Milliseconds()

	if err != nil {
		c.logger.Error("message_processing_failed", "Failed to process event", "", err, fields)
		if nackErr := d.Nack(false, false); nackErr != nil {
			c.logger.Error("message_nack_failed", "Failed to nack message", "", nackErr, nil)
		}
		return
	}

	c.logger.Debug("message_processed", fmt.Sprintf("Processed %s", ev.Type), "", fields)
	if ackErr := d.Ack(false); ackErr != nil {
		c.logger.Error("message_ack_failed", "Failed to ack message", "", ackErr, nil)
	}
}

// Close cancels the consumer and closes its connection
func (c *Consumer) Close() error {
	if c.conn == nil || c.conn.IsClosed() {
		return nil
	}
	if ch := c.conn.Channel(); ch != nil {
		if err := ch.Cancel(c.tag, false); err != nil {
			c.logger.Error("consumer_cancel_failed", "Failed to cancel consumer", "", err, nil)
		}
	}
	return c.conn.Close()
}

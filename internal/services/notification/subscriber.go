package notification

import (
	"context"
	"fmt"
	"io"
	"os"

	"restaurant-pos/internal/logger"
	"restaurant-pos/internal/messaging"
	"restaurant-pos/internal/models"
)

// Source delivers decoded events, e.g. a RabbitMQ consumer
type Source interface {
	Consume(ctx context.Context, handler messaging.EventHandler) error
	Close() error
}

// Subscriber prints branch events as human-readable notices
type Subscriber struct {
	source Source
	out    io.Writer
	logger *logger.Logger
}

// NewSubscriber creates a subscriber writing to stdout
func NewSubscriber(source Source, log *logger.Logger) *Subscriber {
	return &Subscriber{source: source, out: os.Stdout, logger: log}
}

// NewSubscriberWithWriter creates a subscriber writing notices to out
func NewSubscriberWithWriter(source Source, out io.Writer, log *logger.Logger) *Subscriber {
	return &Subscriber{source: source, out: out, logger: log}
}

// Start consumes events until ctx is cancelled or the source fails
func (s *Subscriber) Start(ctx context.Context) error {
	requestID := logger.GenerateRequestID()
	s.logger.Info("service_started", "Notification subscriber started", requestID, nil)

	err := s.source.Consume(ctx, s.Handle)
	if ctx.Err() != nil {
		return s.gracefulShutdown(requestID)
	}
	if err != nil {
		s.logger.Error("consumer_failed", "Notification consumer failed", requestID, err, nil)
		return err
	}
	return nil
}

// Follow prints events of an in-process subscription until it closes or ctx ends
func (s *Subscriber) Follow(ctx context.Context, events <-chan models.Event) {
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-events:
			if !ok {
				return
			}
			s.display(ev)
		}
	}
}

// Handle prints one event received from a Source. Events without a branch
// cannot be attributed and are refused.
func (s *Subscriber) Handle(_ context.Context, ev models.Event) error {
	if ev.Branch == "" {
		return fmt.Errorf("%s event without branch", ev.Type)
	}
	s.display(ev)
	return nil
}

func (s *Subscriber) display(ev models.Event) {
	fmt.Fprintln(s.out, Format(ev))
	s.logger.Debug("notification_displayed", "Notification displayed", "", map[string]interface{}{
		"branch": ev.Branch,
		"event":  string(ev.Type),
	})
}

// Format renders an event as one line
func Format(ev models.Event) string {
	prefix := fmt.Sprintf("[%s] [%s]", ev.Timestamp.Format("2006-01-02 15:04:05"), ev.Branch)

	switch ev.Type {
	case models.EventNewOrder:
		if ev.Order == nil {
			break
		}
		o := ev.Order
		return fmt.Sprintf("🆕 %s Table %d: new order %s by %s, %d items, total %s",
			prefix, o.TableNumber, o.ID, o.WaiterName, len(o.Items), o.TotalAmount.StringFixed(2))
	case models.EventOrderUpdated:
		if ev.Order == nil {
			break
		}
		o := ev.Order
		return fmt.Sprintf("📋 %s Table %d: order %s updated (%s)", prefix, o.TableNumber, o.ID, statusSummary(o.Items))
	case models.EventOrdersMoved:
		return fmt.Sprintf("✅ %s %d orders moved to completed", prefix, ev.Count)
	case models.EventPaymentCompleted:
		msg := fmt.Sprintf("💳 %s Table %d settled, %d orders", prefix, ev.TableNumber, len(ev.Orders))
		if len(ev.Orders) > 0 && ev.Orders[0].Payment != nil {
			p := ev.Orders[0].Payment
			msg += fmt.Sprintf(", %s paid by %s", p.FinalAmount.StringFixed(2), p.Method)
		}
		return msg
	case models.EventDayReset:
		return fmt.Sprintf("🌅 %s New day started, completed orders cleared", prefix)
	case models.EventMenuUpdated:
		return fmt.Sprintf("🍽 %s Menu updated, %d items", prefix, len(ev.Menu))
	case models.EventUserCreated:
		if ev.User == nil {
			break
		}
		return fmt.Sprintf("👤 %s Staff member %s (%s) added", prefix, ev.User.Username, ev.User.Role)
	case models.EventUserDeleted:
		return fmt.Sprintf("👤 %s Staff member %s removed", prefix, ev.UserID)
	}
	return fmt.Sprintf("📨 %s %s", prefix, ev.Type)
}

func statusSummary(items []models.OrderItem) string {
	counts := map[models.ItemStatus]int{}
	for _, it := range items {
		counts[it.Status]++
	}
	summary := ""
	for _, st := range []models.ItemStatus{models.StatusPending, models.StatusInProgress, models.StatusReady, models.StatusServed, models.StatusCancelled} {
		if counts[st] == 0 {
			continue
		}
		if summary != "" {
			summary += ", "
		}
		summary += fmt.Sprintf("%d %s", counts[st], st)
	}
	return summary
}

func (s *Subscriber) gracefulShutdown(requestID string) error {
	s.logger.Info("graceful_shutdown", "Starting graceful shutdown", requestID, nil)
	if s.source != nil {
		if err := s.source.Close(); err != nil {
			s.logger.Error("consumer_close_failed", "Failed to close consumer", requestID, err, nil)
		}
	}
	s.logger.Info("graceful_shutdown", "Graceful shutdown completed", requestID, nil)
	return nil
}

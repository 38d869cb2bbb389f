// Package order implements the order lifecycle of a branch: creation with
// bundle expansion, the item state machine, archive migration, the table
// ledger and settlement.
//
// Every mutation is a read-modify-write of whole collections performed under
// the branch lock. State is persisted before any event is published, and a
// failed write never publishes.
package order

import (
	"context"
	"time"

	"github.com/google/uuid"

	"restaurant-pos/internal/logger"
	"restaurant-pos/internal/menu"
	"restaurant-pos/internal/messaging"
	"restaurant-pos/internal/metrics"
	"restaurant-pos/internal/models"
	"restaurant-pos/internal/storage"
)

// Service is the order lifecycle engine
type Service struct {
	store     storage.Store
	menu      menu.Resolver
	publisher messaging.EventPublisher
	locker    *storage.Locker
	metrics   *metrics.Recorder
	logger    *logger.Logger
	now       func() time.Time
	newID     func() string
}

// Option customizes a Service
type Option func(*Service)

// WithClock replaces time.Now
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// WithIDGenerator replaces uuid generation for orders, items and receipts
func WithIDGenerator(newID func() string) Option {
	return func(s *Service) { s.newID = newID }
}

// WithMetrics attaches an OpenTelemetry recorder
func WithMetrics(r *metrics.Recorder) Option {
	return func(s *Service) { s.metrics = r }
}

// NewService creates an order service. The locker must be shared with every
// other component that rewrites the same collections.
func NewService(store storage.Store, resolver menu.Resolver, publisher messaging.EventPublisher, locker *storage.Locker, log *logger.Logger, opts ...Option) *Service {
	s := &Service{
		store:     store,
		menu:      resolver,
		publisher: publisher,
		locker:    locker,
		metrics:   metrics.Noop(),
		logger:    log,
		now:       time.Now,
		newID:     uuid.NewString,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Service) load(ctx context.Context, branch string, coll storage.Collection) ([]models.Order, error) {
	orders, err := s.store.List(ctx, branch, coll)
	if err != nil {
		s.metrics.PersistenceFailed(ctx, "read")
		s.logger.Error("persistence_failed", "Failed to read orders", logger.RequestID(ctx), err, map[string]interface{}{
			"branch":     branch,
			"collection": string(coll),
		})
		return nil, &models.PersistenceError{Op: "read " + string(coll), Err: err}
	}
	return orders, nil
}

func (s *Service) save(ctx context.Context, branch string, writes ...storage.Write) error {
	if err := s.store.Replace(ctx, branch, writes...); err != nil {
		s.metrics.PersistenceFailed(ctx, "write")
		s.logger.Error("persistence_failed", "Failed to write orders", logger.RequestID(ctx), err, map[string]interface{}{
			"branch": branch,
		})
		return &models.PersistenceError{Op: "write orders", Err: err}
	}
	return nil
}

// publish is fire-and-forget: state is already persisted
func (s *Service) publish(ctx context.Context, branch string, ev models.Event) {
	if err := s.publisher.Publish(ctx, branch, ev); err != nil {
		s.logger.Error("event_publish_failed", "Failed to publish event", logger.RequestID(ctx), err, map[string]interface{}{
			"branch": branch,
			"event":  string(ev.Type),
		})
	}
}

func findOrder(orders []models.Order, id string) int {
	for i := range orders {
		if orders[i].ID == id {
			return i
		}
	}
	return -1
}

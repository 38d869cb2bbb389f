package storage

import (
	"context"
	"sync"

	"github.com/pkg/errors"

	"restaurant-pos/internal/models"
)

// MemoryStore keeps collections in process memory
type MemoryStore struct {
	mu   sync.RWMutex
	data map[string]map[Collection][]models.Order
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{data: make(map[string]map[Collection][]models.Order)}
}

func (s *MemoryStore) List(_ context.Context, branch string, coll Collection) ([]models.Order, error) {
	if !validCollection(coll) {
		return nil, errors.Errorf("unknown collection %q", coll)
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return cloneOrders(s.data[branch][coll]), nil
}

func (s *MemoryStore) Replace(_ context.Context, branch string, writes ...Write) error {
	for _, w := range writes {
		if !validCollection(w.Collection) {
			return errors.Errorf("unknown collection %q", w.Collection)
		}
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.data[branch] == nil {
		s.data[branch] = make(map[Collection][]models.Order)
	}
	for _, w := range writes {
		s.data[branch][w.Collection] = cloneOrders(w.Orders)
	}
	return nil
}

func (s *MemoryStore) Close() error { return nil }

// Package storage persists the live and archived order collections of each branch.
//
// Every backend offers whole-collection reads and replaces. A Replace call that
// carries several collections is applied atomically by the transactional backends
// and by the file backend as far as a rename allows.
package storage

import (
	"context"
	"sync"

	"restaurant-pos/internal/models"
)

// Collection names a branch-scoped order set
type Collection string

const (
	Live    Collection = "orders"
	Archive Collection = "completed_orders"
)

// Write replaces one collection with the given orders
type Write struct {
	Collection Collection
	Orders     []models.Order
}

// Store is the persistence contract consumed by the order and report services
type Store interface {
	List(ctx context.Context, branch string, coll Collection) ([]models.Order, error)
	Replace(ctx context.Context, branch string, writes ...Write) error
	Close() error
}

// Locker serializes read-modify-write cycles per branch
type Locker struct {
	mu       sync.Mutex
	branches map[string]*sync.Mutex
}

// NewLocker creates an empty per-branch lock table
func NewLocker() *Locker {
	return &Locker{branches: make(map[string]*sync.Mutex)}
}

// Lock acquires the branch mutex and returns its release func
func (l *Locker) Lock(branch string) func() {
	l.mu.Lock()
	m, ok := l.branches[branch]
	if !ok {
		m = &sync.Mutex{}
		l.branches[branch] = m
	}
	l.mu.Unlock()

	m.Lock()
	return m.Unlock
}

func cloneOrders(orders []models.Order) []models.Order {
	if orders == nil {
		return []models.Order{}
	}
	out := make([]models.Order, len(orders))
	for i := range orders {
		out[i] = orders[i].Clone()
	}
	return out
}

func validCollection(c Collection) bool {
	return c == Live || c == Archive
}

package messaging

import (
	"context"
	"sync"

	"restaurant-pos/internal/models"
)

// Hub delivers events in-process to subscribers of a branch.
// Slow subscribers miss events instead of blocking the publisher.
type Hub struct {
	mu     sync.RWMutex
	subs   map[string]map[int]chan models.Event
	nextID int
	buffer int
}

// NewHub creates a hub whose subscriber channels hold buffer events
func NewHub(buffer int) *Hub {
	if buffer < 1 {
		buffer = 1
	}
	return &Hub{subs: make(map[string]map[int]chan models.Event), buffer: buffer}
}

// Subscribe registers a listener for branch. The returned func unsubscribes
// and closes the channel.
func (h *Hub) Subscribe(branch string) (<-chan models.Event, func()) {
	h.mu.Lock()
	defer h.mu.Unlock()

	id := h.nextID
	h.nextID++
	ch := make(chan models.Event, h.buffer)
	if h.subs[branch] == nil {
		h.subs[branch] = make(map[int]chan models.Event)
	}
	h.subs[branch][id] = ch

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			h.mu.Lock()
			delete(h.subs[branch], id)
			h.mu.Unlock()
			close(ch)
		})
	}
}

func (h *Hub) Publish(_ context.Context, branch string, ev models.Event) error {
	ev = stamp(branch, ev)

	h.mu.RLock()
	defer h.mu.RUnlock()
	for _, ch := range h.subs[branch] {
		select {
		case ch <- ev:
		default:
		}
	}
	return nil
}

// Subscribers reports how many listeners a branch has
func (h *Hub) Subscribers(branch string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs[branch])
}

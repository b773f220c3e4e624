package app

import (
	"sync"

	"github.com/bft-labs/ambient/internal/domain"
)

// DefaultSubscriberBuffer is the channel capacity used when Subscribe is
// called with a non-positive buffer.
const DefaultSubscriberBuffer = 16

// Hub fans module updates out to renderer subscribers. Publish never
// blocks: a subscriber whose channel is full loses its oldest pending
// update so that the latest state always gets through.
type Hub struct {
	mu     sync.Mutex
	subs   map[int]chan domain.Update
	nextID int
	closed bool
}

// NewHub creates a hub with no subscribers.
func NewHub() *Hub {
	return &Hub{subs: make(map[int]chan domain.Update)}
}

// Subscribe registers a subscriber. The returned cancel function removes
// it and closes the channel.
func (h *Hub) Subscribe(buffer int) (<-chan domain.Update, func()) {
	if buffer <= 0 {
		buffer = DefaultSubscriberBuffer
	}
	ch := make(chan domain.Update, buffer)

	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		close(ch)
		return ch, func() {}
	}
	id := h.nextID
	h.nextID++
	h.subs[id] = ch

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			h.mu.Lock()
			defer h.mu.Unlock()
			if c, ok := h.subs[id]; ok {
				delete(h.subs, id)
				close(c)
			}
		})
	}
}

// Publish delivers u to every subscriber.
func (h *Hub) Publish(u domain.Update) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for _, ch := range h.subs {
		select {
		case ch <- u:
			continue
		default:
		}
		// Full: drop the oldest pending update. Only Publish sends and it
		// holds h.mu, so the second send always has room.
		select {
		case <-ch:
		default:
		}
		select {
		case ch <- u:
		default:
		}
	}
}

// Subscribers returns the number of active subscribers.
func (h *Hub) Subscribers() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.subs)
}

// Close closes every subscriber channel. Later Publish calls are no-ops.
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return
	}
	h.closed = true
	for id, ch := range h.subs {
		delete(h.subs, id)
		close(ch)
	}
}

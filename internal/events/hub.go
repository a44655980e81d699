// Package events fans processed signal outcomes out to live subscribers.
package events

import (
	"sync"
	"time"
)

// Event types.
const (
	TypeOrder = "order"
	TypeClose = "close"
)

// Event is one processed signal as seen by stream clients.
type Event struct {
	Type       string            `json:"type"`
	Signal     string            `json:"signal"`
	Symbol     string            `json:"symbol,omitempty"`
	Success    bool              `json:"success"`
	Ticket     uint64            `json:"ticket,omitempty"`
	Price      float64           `json:"price,omitempty"`
	Volume     float64           `json:"volume,omitempty"`
	Closed     []uint64          `json:"closed_tickets,omitempty"`
	Failures   map[uint64]string `json:"failures,omitempty"`
	Error      string            `json:"error,omitempty"`
	RequestID  string            `json:"request_id,omitempty"`
	OccurredAt time.Time         `json:"occurred_at"`
}

// Hub is a broadcast point with per-subscriber buffers.
type Hub struct {
	mu     sync.Mutex
	subs   map[int]chan Event
	nextID int
}

func NewHub() *Hub {
	return &Hub{subs: make(map[int]chan Event)}
}

// Subscribe returns a channel that receives events. Slow consumers have
// events dropped once bufSize is reached.
func (h *Hub) Subscribe(bufSize int) (int, <-chan Event) {
	ch := make(chan Event, bufSize)

	h.mu.Lock()
	id := h.nextID
	h.nextID++
	h.subs[id] = ch
	h.mu.Unlock()

	return id, ch
}

// Unsubscribe removes a subscriber and closes its channel.
func (h *Hub) Unsubscribe(id int) {
	h.mu.Lock()
	if ch, ok := h.subs[id]; ok {
		delete(h.subs, id)
		close(ch)
	}
	h.mu.Unlock()
}

// Publish sends e to every subscriber without blocking.
func (h *Hub) Publish(e Event) {
	if e.OccurredAt.IsZero() {
		e.OccurredAt = time.Now().UTC()
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	for _, ch := range h.subs {
		select {
		case ch <- e:
		default:
		}
	}
}

// Subscribers returns the current subscriber count.
func (h *Hub) Subscribers() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.subs)
}

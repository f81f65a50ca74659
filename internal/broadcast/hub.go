package broadcast

import (
	"sync"
	"sync/atomic"

	"memedex/internal/catalog"
)

// Kind distinguishes the two observable facets of an item.
type Kind string

const (
	KindStatus      Kind = "status"
	KindDescription Kind = "description"
)

// Event is one observable change. Status carries the wire code for status
// events; Text carries the result for description events.
type Event struct {
	ItemID int64  `json:"item_id"`
	Kind   Kind   `json:"kind"`
	Status *int   `json:"status,omitempty"`
	Text   string `json:"text,omitempty"`
}

// StatusEvent builds an event for a status transition.
func StatusEvent(itemID int64, status catalog.Status) Event {
	code := int(status)
	return Event{ItemID: itemID, Kind: KindStatus, Status: &code}
}

// DescriptionEvent builds an event for a delivered text result.
func DescriptionEvent(itemID int64, text string) Event {
	return Event{ItemID: itemID, Kind: KindDescription, Text: text}
}

// Subscriber receives events on C until Unsubscribe closes it.
type Subscriber struct {
	C       chan Event
	dropped atomic.Int64
}

// Dropped reports how many events this subscriber lost to a full buffer.
func (s *Subscriber) Dropped() int64 {
	return s.dropped.Load()
}

// Hub fans events out to all current subscribers.
type Hub struct {
	mu          sync.RWMutex
	subscribers map[*Subscriber]struct{}
}

// NewHub constructs an empty hub.
func NewHub() *Hub {
	return &Hub{subscribers: make(map[*Subscriber]struct{})}
}

// Subscribe attaches an observer with the given channel buffer. A buffer of
// zero or less gets a small default so publishers never block.
func (h *Hub) Subscribe(buffer int) *Subscriber {
	if buffer <= 0 {
		buffer = 16
	}
	sub := &Subscriber{C: make(chan Event, buffer)}
	h.mu.Lock()
	h.subscribers[sub] = struct{}{}
	h.mu.Unlock()
	return sub
}

// Unsubscribe detaches the observer and closes its channel.
func (h *Hub) Unsubscribe(sub *Subscriber) {
	if sub == nil {
		return
	}
	h.mu.Lock()
	_, present := h.subscribers[sub]
	delete(h.subscribers, sub)
	h.mu.Unlock()
	if present {
		close(sub.C)
	}
}

// Publish delivers the event to every current subscriber without blocking.
// Subscribers with a full buffer miss the event; they reconcile by fetching
// the item's persisted state.
func (h *Hub) Publish(event Event) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for sub := range h.subscribers {
		select {
		case sub.C <- event:
		default:
			sub.dropped.Add(1)
		}
	}
}

// Close detaches every subscriber and closes their channels.
func (h *Hub) Close() {
	h.mu.Lock()
	subs := h.subscribers
	h.subscribers = make(map[*Subscriber]struct{})
	h.mu.Unlock()
	for sub := range subs {
		close(sub.C)
	}
}

// SubscriberCount reports the number of attached observers.
func (h *Hub) SubscriberCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subscribers)
}

package events

import (
	"sync"
	"time"
)

type Kind string

const (
	// StatusChanged carries the manager's new status as its Value.
	StatusChanged Kind = "status"
	// StreamError carries the failing stream's error message as its Value.
	StreamError Kind = "stream-error"
)

type Event struct {
	Kind      Kind
	StreamID  string
	Timestamp time.Time
	Value     any
}

// EventHub fans events out to subscribers. Slow subscribers miss events rather than block the broadcaster.
type EventHub struct {
	mu   sync.Mutex
	subs map[int]chan *Event
	next int
	last *Event
}

func NewHub() *EventHub {
	return &EventHub{subs: map[int]chan *Event{}}
}

// Subscribe returns a channel of events, primed with the most recent one if there was any.
// Call cancel to unsubscribe, it closes the channel.
func (h *EventHub) Subscribe() (int, <-chan *Event, func()) {
	h.mu.Lock()
	defer h.mu.Unlock()
	id := h.next
	h.next++
	ch := make(chan *Event, 16)
	if h.last != nil {
		ch <- h.copy(h.last)
	}
	h.subs[id] = ch
	cancel := func() {
		h.mu.Lock()
		defer h.mu.Unlock()
		if c, ok := h.subs[id]; ok {
			close(c)
			delete(h.subs, id)
		}
	}
	return id, ch, cancel
}

func (h *EventHub) Broadcast(event *Event) {
	h.mu.Lock()
	h.last = event
	for _, ch := range h.subs {
		select {
		case ch <- h.copy(event):
		default:
		}
	}
	h.mu.Unlock()
}

func (h *EventHub) Subscribers() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.subs)
}

func (h *EventHub) copy(e *Event) *Event {
	return &Event{e.Kind, e.StreamID, e.Timestamp, e.Value}
}

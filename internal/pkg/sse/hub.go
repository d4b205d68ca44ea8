package sse

import (
	"sync"
)

// Event is one server-sent event addressed to a member
type Event struct {
	MemberID string
	Event    string
	Data     interface{}
}

// Hub fans tracking events out to the member's open SSE streams. It remembers
// the latest event per member so a new stream starts with the current state.
type Hub struct {
	mu          sync.RWMutex
	subscribers map[string]map[chan Event]struct{}
	last        map[string]Event
}

func NewHub() *Hub {
	return &Hub{
		subscribers: make(map[string]map[chan Event]struct{}),
		last:        make(map[string]Event),
	}
}

// Subscribe registers a stream for a member and returns its channel and cleanup function.
// The latest published event, if any, is queued immediately.
func (h *Hub) Subscribe(memberID string) (<-chan Event, func()) {
	h.mu.Lock()
	defer h.mu.Unlock()

	ch := make(chan Event, 10)
	if h.subscribers[memberID] == nil {
		h.subscribers[memberID] = make(map[chan Event]struct{})
	}
	h.subscribers[memberID][ch] = struct{}{}

	if ev, ok := h.last[memberID]; ok {
		ch <- ev
	}

	var once sync.Once
	cleanup := func() {
		once.Do(func() {
			h.mu.Lock()
			defer h.mu.Unlock()
			delete(h.subscribers[memberID], ch)
			close(ch)
			if len(h.subscribers[memberID]) == 0 {
				delete(h.subscribers, memberID)
			}
		})
	}

	return ch, cleanup
}

// Publish sends an event to every stream of the member. Full streams skip the event.
func (h *Hub) Publish(memberID string, event Event) {
	h.mu.Lock()
	defer h.mu.Unlock()

	event.MemberID = memberID
	h.last[memberID] = event

	for ch := range h.subscribers[memberID] {
		select {
		case ch <- event:
		default:
		}
	}
}

// Forget drops the remembered event of a member that is no longer tracked.
func (h *Hub) Forget(memberID string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.last, memberID)
}

// SubscriberCount returns the number of open streams for a member
func (h *Hub) SubscriberCount(memberID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subscribers[memberID])
}

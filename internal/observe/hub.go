// Package observe lets the store announce committed writes so that derived
// views can be recomputed.  Notifications carry no payload: a subscriber
// learns that a topic changed and re-reads whatever it derives from it.
package observe

import (
	"strconv"
	"sync"
)

// ProductsTopic is published after any write to the products table.
const ProductsTopic = "products"

// CartTopic is published after any write to a user's cart lines.
func CartTopic(userID uint64) string { return "cart:" + strconv.FormatUint(userID, 10) }

// Hub fans out change notifications to subscribers.  A nil *Hub is valid and
// drops every notification, which lets repositories run without observers.
type Hub struct {
	mu   sync.Mutex
	subs map[string]map[*Subscription]struct{}
}

// NewHub returns an empty hub.
func NewHub() *Hub {
	return &Hub{subs: make(map[string]map[*Subscription]struct{})}
}

// Subscription receives a signal on C after a write to any of its topics.
// Signals coalesce: C has room for one pending signal, so a burst of writes
// is seen as a single change.
type Subscription struct {
	C <-chan struct{}

	c      chan struct{}
	hub    *Hub
	topics []string
	once   sync.Once
}

// Subscribe registers interest in the given topics.
func (h *Hub) Subscribe(topics ...string) *Subscription {
	c := make(chan struct{}, 1)
	s := &Subscription{C: c, c: c, hub: h, topics: topics}
	if h == nil {
		return s
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	for _, t := range topics {
		set, ok := h.subs[t]
		if !ok {
			set = make(map[*Subscription]struct{})
			h.subs[t] = set
		}
		set[s] = struct{}{}
	}
	return s
}

// Publish signals every subscriber of topic.  It never blocks.
func (h *Hub) Publish(topic string) {
	if h == nil {
		return
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	for s := range h.subs[topic] {
		select {
		case s.c <- struct{}{}:
		default:
		}
	}
}

// Close detaches the subscription and closes C.  Once Close returns no
// further signal is delivered.  Safe to call more than once.
func (s *Subscription) Close() {
	s.once.Do(func() {
		if s.hub != nil {
			s.hub.mu.Lock()
			for _, t := range s.topics {
				delete(s.hub.subs[t], s)
				if len(s.hub.subs[t]) == 0 {
					delete(s.hub.subs, t)
				}
			}
			s.hub.mu.Unlock()
		}
		close(s.c)
	})
}

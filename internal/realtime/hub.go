package realtime

import (
	"log/slog"
	"sync"

	"github.com/google/uuid"
)

const defaultBuffer = 32

// Subscription is one live client connection.
type Subscription struct {
	ID     string
	UserID string
	types  []string
	ch     chan Event
}

// Events returns the channel the subscriber reads from.
// It is closed when the subscription is removed.
func (s *Subscription) Events() <-chan Event {
	return s.ch
}

// Hub fans events out to the subscriptions of the addressed user.
// It only knows about connections held by this process.
type Hub struct {
	mu     sync.RWMutex
	subs   map[string]map[string]*Subscription
	buffer int

	// OnChange is called with the total subscriber count after every change.
	OnChange func(total int)
	// OnDrop is called when an event is dropped for a slow subscriber.
	OnDrop func(ev Event)
}

func NewHub() *Hub {
	return &Hub{
		subs:   make(map[string]map[string]*Subscription),
		buffer: defaultBuffer,
	}
}

// Subscribe registers a new subscription for userID restricted to types.
func (h *Hub) Subscribe(userID string, types ...string) *Subscription {
	sub := &Subscription{
		ID:     uuid.NewString(),
		UserID: userID,
		types:  types,
		ch:     make(chan Event, h.buffer),
	}

	h.mu.Lock()
	userSubs, ok := h.subs[userID]
	if !ok {
		userSubs = make(map[string]*Subscription)
		h.subs[userID] = userSubs
	}
	userSubs[sub.ID] = sub
	total := h.countLocked()
	h.mu.Unlock()

	h.changed(total)
	return sub
}

// Unsubscribe removes the subscription and closes its channel. Safe to call twice.
func (h *Hub) Unsubscribe(sub *Subscription) {
	h.mu.Lock()
	userSubs, ok := h.subs[sub.UserID]
	if !ok {
		h.mu.Unlock()
		return
	}
	if _, ok := userSubs[sub.ID]; !ok {
		h.mu.Unlock()
		return
	}
	delete(userSubs, sub.ID)
	if len(userSubs) == 0 {
		delete(h.subs, sub.UserID)
	}
	close(sub.ch)
	total := h.countLocked()
	h.mu.Unlock()

	h.changed(total)
}

// Deliver pushes ev to every matching subscription of ev.UserID and
// returns the number of subscriptions that received it.
// A full subscriber buffer drops the event rather than blocking the publisher.
func (h *Hub) Deliver(ev Event) int {
	h.mu.RLock()
	defer h.mu.RUnlock()

	delivered := 0
	for _, sub := range h.subs[ev.UserID] {
		if !matchType(sub.types, ev.Type) {
			continue
		}
		select {
		case sub.ch <- ev:
			delivered++
		default:
			slog.Warn("realtime subscriber buffer full, dropping event",
				"user_id", ev.UserID, "subscription_id", sub.ID, "type", ev.Type)
			if h.OnDrop != nil {
				h.OnDrop(ev)
			}
		}
	}
	return delivered
}

// Count returns the number of live subscriptions.
func (h *Hub) Count() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.countLocked()
}

// Close drops every subscription.
func (h *Hub) Close() {
	h.mu.Lock()
	for userID, userSubs := range h.subs {
		for _, sub := range userSubs {
			close(sub.ch)
		}
		delete(h.subs, userID)
	}
	h.mu.Unlock()
	h.changed(0)
}

func (h *Hub) countLocked() int {
	n := 0
	for _, userSubs := range h.subs {
		n += len(userSubs)
	}
	return n
}

func (h *Hub) changed(total int) {
	if h.OnChange != nil {
		h.OnChange(total)
	}
}

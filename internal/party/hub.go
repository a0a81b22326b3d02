package party

import (
	"sync"
	"sync/atomic"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/amply/internal/shared"
	"github.com/desertthunder/amply/internal/stats"
)

const DefaultSubscriberBuffer = 64

// Subscription is one realtime listener on a party, usually a WebSocket connection.
type Subscription struct {
	ID      string
	PartyID string
	UserID  string

	events chan Event
	stale  atomic.Bool
}

// Events is closed when the subscription is removed or the party is closed.
func (s *Subscription) Events() <-chan Event { return s.events }

// NeedsResync reports, and clears, whether an event was dropped since the last call.
func (s *Subscription) NeedsResync() bool { return s.stale.Swap(false) }

// Hub fans party events out to subscriptions.
//
// Sends never block: a subscriber whose buffer is full misses the event and is flagged
// so it can request a fresh snapshot.
type Hub struct {
	mu      sync.RWMutex
	parties map[string]map[string]*Subscription
	buffer  int
	stats   stats.Recorder
	logger  *log.Logger
}

func NewHub(buffer int, rec stats.Recorder, logger *log.Logger) *Hub {
	if buffer <= 0 {
		buffer = DefaultSubscriberBuffer
	}
	if rec == nil {
		rec = stats.Discard{}
	}
	return &Hub{
		parties: make(map[string]map[string]*Subscription),
		buffer:  buffer,
		stats:   rec,
		logger:  logger,
	}
}

// Subscribe registers a subscription for userID on partyID.
func (h *Hub) Subscribe(partyID, userID string) *Subscription {
	sub := &Subscription{
		ID:      shared.GenerateID(),
		PartyID: partyID,
		UserID:  userID,
		events:  make(chan Event, h.buffer),
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	subs, ok := h.parties[partyID]
	if !ok {
		subs = make(map[string]*Subscription)
		h.parties[partyID] = subs
	}
	subs[sub.ID] = sub
	return sub
}

// Unsubscribe removes sub and closes its channel. Removing twice is a no-op.
func (h *Hub) Unsubscribe(sub *Subscription) {
	h.mu.Lock()
	defer h.mu.Unlock()

	subs, ok := h.parties[sub.PartyID]
	if !ok {
		return
	}
	if _, ok := subs[sub.ID]; !ok {
		return
	}
	delete(subs, sub.ID)
	close(sub.events)
	if len(subs) == 0 {
		delete(h.parties, sub.PartyID)
	}
}

// Publish delivers ev to every subscription of its party and returns how many received it.
func (h *Hub) Publish(ev Event) int {
	h.mu.RLock()
	defer h.mu.RUnlock()

	delivered := 0
	for _, sub := range h.parties[ev.PartyID] {
		if h.deliver(sub, ev) {
			delivered++
		}
	}
	return delivered
}

// SendTo delivers ev only to userID's subscriptions on the event's party.
func (h *Hub) SendTo(userID string, ev Event) int {
	h.mu.RLock()
	defer h.mu.RUnlock()

	delivered := 0
	for _, sub := range h.parties[ev.PartyID] {
		if sub.UserID != userID {
			continue
		}
		if h.deliver(sub, ev) {
			delivered++
		}
	}
	return delivered
}

func (h *Hub) deliver(sub *Subscription, ev Event) bool {
	select {
	case sub.events <- ev:
		h.stats.Incr(stats.EventsSent)
		return true
	default:
		sub.stale.Store(true)
		h.stats.Incr(stats.EventsDropped)
		if h.logger != nil {
			h.logger.Warn("subscriber buffer full, event dropped", "party", ev.PartyID, "user", sub.UserID, "type", ev.Type)
		}
		return false
	}
}

// Close ends every subscription of partyID.
func (h *Hub) Close(partyID string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	for _, sub := range h.parties[partyID] {
		close(sub.events)
	}
	delete(h.parties, partyID)
}

// CloseAll ends every subscription, used on shutdown.
func (h *Hub) CloseAll() {
	h.mu.Lock()
	defer h.mu.Unlock()

	for id, subs := range h.parties {
		for _, sub := range subs {
			close(sub.events)
		}
		delete(h.parties, id)
	}
}

// Subscribers returns the number of subscriptions on partyID.
func (h *Hub) Subscribers(partyID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.parties[partyID])
}

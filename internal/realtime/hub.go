package realtime

import (
	"sync"
	"time"

	"github.com/Moori-Sense/Backend/internal/observability/metrics"
)

const (
	// EventDashboardUpdate signals that line/alert/weather state changed.
	EventDashboardUpdate = "dashboard_update"
	// EventSensorDataUpdate carries the per-line values of one batch.
	EventSensorDataUpdate = "sensor_data_update"
)

// Event is one outbound message for live subscribers.
type Event struct {
	Type      string    `json:"type"`
	Timestamp time.Time `json:"timestamp"`
	Payload   any       `json:"payload,omitempty"`
}

const subscriberBuffer = 16

// Subscriber is one connected viewer. Events arrive on C; the channel
// is closed when the subscriber is removed from the hub.
type Subscriber struct {
	C chan Event

	hub    *Hub
	mu     sync.Mutex
	closed bool
}

// Close detaches the subscriber from the hub. Safe to call repeatedly
// and concurrently with an in-flight broadcast.
func (s *Subscriber) Close() {
	if s == nil || s.hub == nil {
		return
	}
	s.hub.unsubscribe(s)
}

// trySend queues an event without blocking. It reports false only when
// the subscriber is live but its queue is full.
func (s *Subscriber) trySend(event Event) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return true
	}
	select {
	case s.C <- event:
		return true
	default:
		return false
	}
}

func (s *Subscriber) markClosed() {
	s.mu.Lock()
	if !s.closed {
		s.closed = true
		close(s.C)
	}
	s.mu.Unlock()
}

// Hub fans change events out to connected subscribers. Delivery is
// best-effort: a subscriber whose queue is full is dropped instead of
// backpressuring the ingest path.
type Hub struct {
	mu          sync.Mutex
	subscribers map[*Subscriber]struct{}
}

// NewHub constructs an empty hub.
func NewHub() *Hub {
	return &Hub{subscribers: make(map[*Subscriber]struct{})}
}

// Subscribe registers a new subscriber.
func (h *Hub) Subscribe() *Subscriber {
	if h == nil {
		return nil
	}
	sub := &Subscriber{C: make(chan Event, subscriberBuffer), hub: h}
	h.mu.Lock()
	h.subscribers[sub] = struct{}{}
	count := len(h.subscribers)
	h.mu.Unlock()
	metrics.SetSubscriberCount(count)
	return sub
}

// SubscriberCount returns the number of connected subscribers.
func (h *Hub) SubscriberCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.subscribers)
}

// Broadcast delivers an event to every current subscriber. The
// subscriber list is copied under the lock; delivery happens outside
// it, so a stalled consumer cannot stall ingestion or its peers.
func (h *Hub) Broadcast(event Event) {
	if h == nil {
		return
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now().UTC()
	}

	h.mu.Lock()
	targets := make([]*Subscriber, 0, len(h.subscribers))
	for sub := range h.subscribers {
		targets = append(targets, sub)
	}
	h.mu.Unlock()

	metrics.IncBroadcast()
	for _, sub := range targets {
		if !sub.trySend(event) {
			// Queue full: this viewer fell behind, detach it.
			metrics.IncDroppedSubscriber()
			h.unsubscribe(sub)
		}
	}
}

func (h *Hub) unsubscribe(sub *Subscriber) {
	h.mu.Lock()
	_, present := h.subscribers[sub]
	delete(h.subscribers, sub)
	count := len(h.subscribers)
	h.mu.Unlock()
	if present {
		metrics.SetSubscriberCount(count)
	}
	sub.markClosed()
}

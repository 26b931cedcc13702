package realtime

import (
	"sync"
	"testing"
	"time"
)

func TestBroadcastReachesAllSubscribers(t *testing.T) {
	hub := NewHub()
	first := hub.Subscribe()
	second := hub.Subscribe()
	defer first.Close()
	defer second.Close()

	hub.Broadcast(Event{Type: EventDashboardUpdate})

	for _, sub := range []*Subscriber{first, second} {
		select {
		case event := <-sub.C:
			if event.Type != EventDashboardUpdate {
				t.Fatalf("unexpected event type %q", event.Type)
			}
			if event.Timestamp.IsZero() {
				t.Fatal("timestamp not stamped")
			}
		case <-time.After(time.Second):
			t.Fatal("subscriber did not receive event")
		}
	}
}

func TestSlowSubscriberIsDropped(t *testing.T) {
	hub := NewHub()
	slow := hub.Subscribe()
	fast := hub.Subscribe()
	defer fast.Close()

	// Drain fast after every broadcast so only the unread slow queue
	// overflows.
	for i := 0; i < subscriberBuffer+1; i++ {
		hub.Broadcast(Event{Type: EventSensorDataUpdate})
		select {
		case <-fast.C:
		case <-time.After(time.Second):
			t.Fatal("fast subscriber starved")
		}
	}

	if got := hub.SubscriberCount(); got != 1 {
		t.Fatalf("expected slow subscriber dropped, count=%d", got)
	}

	// The dropped subscriber's channel drains and then closes.
	deadline := time.After(time.Second)
	for {
		select {
		case _, ok := <-slow.C:
			if !ok {
				return
			}
		case <-deadline:
			t.Fatal("dropped subscriber channel never closed")
		}
	}
}

func TestCloseIsIdempotent(t *testing.T) {
	hub := NewHub()
	sub := hub.Subscribe()
	sub.Close()
	sub.Close()
	if got := hub.SubscriberCount(); got != 0 {
		t.Fatalf("expected 0 subscribers, got %d", got)
	}
}

func TestCloseDuringBroadcast(t *testing.T) {
	hub := NewHub()

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		sub := hub.Subscribe()
		wg.Add(1)
		go func(sub *Subscriber) {
			defer wg.Done()
			for range sub.C {
			}
		}(sub)
		wg.Add(1)
		go func(sub *Subscriber) {
			defer wg.Done()
			sub.Close()
		}(sub)
	}

	for i := 0; i < 100; i++ {
		hub.Broadcast(Event{Type: EventSensorDataUpdate})
	}
	wg.Wait()

	if got := hub.SubscriberCount(); got != 0 {
		t.Fatalf("expected all subscribers closed, got %d", got)
	}
}

package notify

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	alertapp "github.com/Moori-Sense/Backend/internal/alerts/application"
	alerts "github.com/Moori-Sense/Backend/internal/alerts/domain"
)

type captureChannel struct {
	mu   sync.Mutex
	sent []string
	fail bool
}

func (c *captureChannel) Send(_ context.Context, content string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.fail {
		return context.DeadlineExceeded
	}
	c.sent = append(c.sent, content)
	return nil
}

func (c *captureChannel) count() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.sent)
}

type stubClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *stubClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *stubClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

func warningEvent() Event {
	return Event{
		Kind: alertapp.EventCreated,
		Alert: alerts.Alert{
			ID:        "a1",
			LineID:    "L0",
			Type:      alerts.TypeTensionWarning,
			Severity:  alerts.SeverityHigh,
			LastValue: 1.31,
			Message:   "Mooring line 'L0-PORT-BREAST' tension (1.3 kN) exceeded warning threshold (1.2 kN)",
			CreatedAt: time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC),
		},
	}
}

func TestNotifyRendersAndSends(t *testing.T) {
	channel := &captureChannel{}
	notifier, err := NewAlertNotifier(channel, nil, nil)
	if err != nil {
		t.Fatalf("notifier: %v", err)
	}

	notifier.Notify(context.Background(), warningEvent())

	if channel.count() != 1 {
		t.Fatalf("expected 1 send, got %d", channel.count())
	}
	content := channel.sent[0]
	for _, want := range []string{"Triggered", "L0", "TENSION_WARNING", "HIGH", "1.31 kN", "2025-06-01T12:00:00Z"} {
		if !strings.Contains(content, want) {
			t.Errorf("notification missing %q:\n%s", want, content)
		}
	}
}

func TestNotifyCooldownSuppressesRepeats(t *testing.T) {
	channel := &captureChannel{}
	clock := &stubClock{now: time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)}
	notifier, err := NewAlertNotifier(channel, nil, nil,
		WithCooldown(time.Minute), WithNotifierClock(clock))
	if err != nil {
		t.Fatalf("notifier: %v", err)
	}
	ctx := context.Background()

	notifier.Notify(ctx, warningEvent())
	notifier.Notify(ctx, warningEvent())
	if channel.count() != 1 {
		t.Fatalf("identical notification not suppressed: %d sends", channel.count())
	}

	clock.Advance(2 * time.Minute)
	notifier.Notify(ctx, warningEvent())
	if channel.count() != 2 {
		t.Fatalf("notification suppressed past the cooldown: %d sends", channel.count())
	}
}

func TestNotifyDistinctEventsBypassCooldown(t *testing.T) {
	channel := &captureChannel{}
	clock := &stubClock{now: time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)}
	notifier, err := NewAlertNotifier(channel, nil, nil,
		WithCooldown(time.Minute), WithNotifierClock(clock))
	if err != nil {
		t.Fatalf("notifier: %v", err)
	}
	ctx := context.Background()

	notifier.Notify(ctx, warningEvent())

	escalated := warningEvent()
	escalated.Kind = alertapp.EventEscalated
	escalated.Alert.Type = alerts.TypeTensionCritical
	escalated.Alert.Severity = alerts.SeverityCritical
	notifier.Notify(ctx, escalated)

	if channel.count() != 2 {
		t.Fatalf("distinct events must both send, got %d", channel.count())
	}
}

func TestNotifySendFailureIsNotFatal(t *testing.T) {
	channel := &captureChannel{fail: true}
	notifier, err := NewAlertNotifier(channel, nil, nil, WithCooldown(time.Minute))
	if err != nil {
		t.Fatalf("notifier: %v", err)
	}

	notifier.Notify(context.Background(), warningEvent())

	// A failed send must not poison the dedupe cache.
	channel.mu.Lock()
	channel.fail = false
	channel.mu.Unlock()
	notifier.Notify(context.Background(), warningEvent())
	if channel.count() != 1 {
		t.Fatalf("retry after failure did not send: %d", channel.count())
	}
}

func TestMultiFansOut(t *testing.T) {
	first := &captureChannel{}
	second := &captureChannel{}
	one, err := NewAlertNotifier(first, nil, nil)
	if err != nil {
		t.Fatalf("notifier: %v", err)
	}
	two, err := NewAlertNotifier(second, nil, nil)
	if err != nil {
		t.Fatalf("notifier: %v", err)
	}

	NewMulti(one, nil, two).Notify(context.Background(), warningEvent())
	if first.count() != 1 || second.count() != 1 {
		t.Fatalf("fan-out incomplete: %d/%d", first.count(), second.count())
	}
}

func TestTemplateOverride(t *testing.T) {
	template, err := NewTemplate("{{.LineID}}:{{.Event}}")
	if err != nil {
		t.Fatalf("template: %v", err)
	}
	channel := &captureChannel{}
	notifier, err := NewAlertNotifier(channel, template, nil)
	if err != nil {
		t.Fatalf("notifier: %v", err)
	}

	notifier.Notify(context.Background(), warningEvent())
	if channel.count() != 1 || channel.sent[0] != "L0:created" {
		t.Fatalf("unexpected rendering: %v", channel.sent)
	}
}

func TestTemplateRejectsBadSyntax(t *testing.T) {
	if _, err := NewTemplate("{{.Unclosed"); err == nil {
		t.Fatal("expected parse error")
	}
}

package application

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	alerts "github.com/Moori-Sense/Backend/internal/alerts/domain"
	"github.com/Moori-Sense/Backend/internal/alerts/infrastructure/memory"
	"github.com/Moori-Sense/Backend/internal/lines"
	tension "github.com/Moori-Sense/Backend/internal/tension/domain"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

func newTestManager(t *testing.T, opts ...ManagerOption) (*Manager, *fakeClock) {
	t.Helper()
	classifier, err := tension.NewClassifier(120, 0.9)
	if err != nil {
		t.Fatalf("classifier: %v", err)
	}
	clock := &fakeClock{now: time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)}
	opts = append([]ManagerOption{WithClock(clock)}, opts...)
	manager, err := NewManager(memory.NewRepository(), classifier, opts...)
	if err != nil {
		t.Fatalf("manager: %v", err)
	}
	return manager, clock
}

func testLine() lines.Line {
	return lines.Line{
		LineID:           "L0",
		Name:             "L0-PORT-BREAST",
		ReferenceTension: 1.0,
		MaxTension:       2.0,
	}
}

func TestEvaluateCreatesWarningAlert(t *testing.T) {
	manager, clock := newTestManager(t)
	ctx := context.Background()

	alert, event, err := manager.Evaluate(ctx, testLine(), tension.StatusWarning, 1.3, clock.Now())
	if err != nil {
		t.Fatalf("evaluate: %v", err)
	}
	if event != EventCreated {
		t.Fatalf("expected created event, got %q", event)
	}
	if alert.Type != alerts.TypeTensionWarning || alert.Severity != alerts.SeverityHigh {
		t.Fatalf("unexpected alert: %+v", alert)
	}
	if !strings.Contains(alert.Message, "exceeded warning threshold (1.2 kN)") {
		t.Fatalf("unexpected message: %q", alert.Message)
	}

	active, err := manager.Active(ctx)
	if err != nil {
		t.Fatalf("active: %v", err)
	}
	if len(active) != 1 {
		t.Fatalf("expected one active alert, got %d", len(active))
	}
}

func TestEvaluateDedupesContinuedWarning(t *testing.T) {
	manager, clock := newTestManager(t)
	ctx := context.Background()
	line := testLine()

	first, _, err := manager.Evaluate(ctx, line, tension.StatusWarning, 1.3, clock.Now())
	if err != nil {
		t.Fatalf("evaluate: %v", err)
	}

	clock.Advance(time.Minute)
	alert, event, err := manager.Evaluate(ctx, line, tension.StatusWarning, 1.4, clock.Now())
	if err != nil {
		t.Fatalf("evaluate: %v", err)
	}
	if alert != nil || event != "" {
		t.Fatalf("expected no new event for continued warning, got %q", event)
	}

	active, err := manager.Active(ctx)
	if err != nil {
		t.Fatalf("active: %v", err)
	}
	if len(active) != 1 {
		t.Fatalf("expected one active alert, got %d", len(active))
	}
	if active[0].ID != first.ID {
		t.Fatal("episode identity changed")
	}
	if active[0].LastValue != 1.4 {
		t.Fatalf("expected last value tracked, got %v", active[0].LastValue)
	}
}

func TestEvaluateEscalatesToCritical(t *testing.T) {
	manager, clock := newTestManager(t)
	ctx := context.Background()
	line := testLine()

	first, _, err := manager.Evaluate(ctx, line, tension.StatusWarning, 1.3, clock.Now())
	if err != nil {
		t.Fatalf("evaluate: %v", err)
	}

	clock.Advance(time.Minute)
	alert, event, err := manager.Evaluate(ctx, line, tension.StatusCritical, 1.85, clock.Now())
	if err != nil {
		t.Fatalf("evaluate: %v", err)
	}
	if event != EventEscalated {
		t.Fatalf("expected escalated event, got %q", event)
	}
	if alert.ID != first.ID {
		t.Fatal("escalation opened a second episode")
	}
	if alert.Type != alerts.TypeTensionCritical || alert.Severity != alerts.SeverityCritical {
		t.Fatalf("unexpected escalated alert: %+v", alert)
	}
	if !strings.Contains(alert.Message, "critical threshold (1.8 kN)") {
		t.Fatalf("unexpected message: %q", alert.Message)
	}

	active, err := manager.Active(ctx)
	if err != nil {
		t.Fatalf("active: %v", err)
	}
	if len(active) != 1 {
		t.Fatalf("expected one active alert after escalation, got %d", len(active))
	}
}

func TestEvaluateKeepsSeverityOnDeescalation(t *testing.T) {
	manager, clock := newTestManager(t)
	ctx := context.Background()
	line := testLine()

	if _, _, err := manager.Evaluate(ctx, line, tension.StatusCritical, 1.9, clock.Now()); err != nil {
		t.Fatalf("evaluate: %v", err)
	}

	// A dip back into WARNING keeps the CRITICAL episode open.
	clock.Advance(time.Minute)
	alert, event, err := manager.Evaluate(ctx, line, tension.StatusWarning, 1.3, clock.Now())
	if err != nil {
		t.Fatalf("evaluate: %v", err)
	}
	if alert != nil || event != "" {
		t.Fatalf("expected no event on de-escalation, got %q", event)
	}

	active, err := manager.Active(ctx)
	if err != nil {
		t.Fatalf("active: %v", err)
	}
	if len(active) != 1 || active[0].Severity != alerts.SeverityCritical {
		t.Fatalf("expected open CRITICAL episode, got %+v", active)
	}
	if active[0].LastValue != 1.3 {
		t.Fatalf("expected tracked last value, got %v", active[0].LastValue)
	}
}

func TestEvaluateResolvesOnNormal(t *testing.T) {
	manager, clock := newTestManager(t)
	ctx := context.Background()
	line := testLine()

	if _, _, err := manager.Evaluate(ctx, line, tension.StatusWarning, 1.3, clock.Now()); err != nil {
		t.Fatalf("evaluate: %v", err)
	}

	clock.Advance(time.Minute)
	alert, event, err := manager.Evaluate(ctx, line, tension.StatusNormal, 0.9, clock.Now())
	if err != nil {
		t.Fatalf("evaluate: %v", err)
	}
	if event != EventResolved {
		t.Fatalf("expected resolved event, got %q", event)
	}
	if !alert.Resolved || alert.ResolvedAt.IsZero() {
		t.Fatalf("alert not marked resolved: %+v", alert)
	}

	active, err := manager.Active(ctx)
	if err != nil {
		t.Fatalf("active: %v", err)
	}
	if len(active) != 0 {
		t.Fatalf("expected no active alerts, got %d", len(active))
	}

	// Resolved episode stays in history.
	history, err := manager.History(ctx, clock.Now().Add(-time.Hour), clock.Now())
	if err != nil {
		t.Fatalf("history: %v", err)
	}
	if len(history) != 1 {
		t.Fatalf("expected one historical alert, got %d", len(history))
	}
}

func TestEvaluateNormalWithoutEpisodeIsQuiet(t *testing.T) {
	manager, clock := newTestManager(t)
	alert, event, err := manager.Evaluate(context.Background(), testLine(), tension.StatusNormal, 0.9, clock.Now())
	if err != nil {
		t.Fatalf("evaluate: %v", err)
	}
	if alert != nil || event != "" {
		t.Fatal("expected nothing for NORMAL with no open episode")
	}
}

func TestNewEpisodeAfterResolution(t *testing.T) {
	manager, clock := newTestManager(t)
	ctx := context.Background()
	line := testLine()

	first, _, err := manager.Evaluate(ctx, line, tension.StatusWarning, 1.3, clock.Now())
	if err != nil {
		t.Fatalf("evaluate: %v", err)
	}
	clock.Advance(time.Minute)
	if _, _, err := manager.Evaluate(ctx, line, tension.StatusNormal, 0.9, clock.Now()); err != nil {
		t.Fatalf("evaluate: %v", err)
	}
	clock.Advance(time.Minute)
	second, event, err := manager.Evaluate(ctx, line, tension.StatusWarning, 1.25, clock.Now())
	if err != nil {
		t.Fatalf("evaluate: %v", err)
	}
	if event != EventCreated {
		t.Fatalf("expected new episode, got %q", event)
	}
	if second.ID == first.ID {
		t.Fatal("expected a fresh alert id for the new episode")
	}
}

func TestResolveIsIdempotent(t *testing.T) {
	manager, clock := newTestManager(t)
	ctx := context.Background()

	alert, _, err := manager.Evaluate(ctx, testLine(), tension.StatusWarning, 1.3, clock.Now())
	if err != nil {
		t.Fatalf("evaluate: %v", err)
	}

	resolved, err := manager.Resolve(ctx, alert.ID)
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	firstResolvedAt := resolved.ResolvedAt

	clock.Advance(time.Hour)
	again, err := manager.Resolve(ctx, alert.ID)
	if err != nil {
		t.Fatalf("second resolve: %v", err)
	}
	if !again.ResolvedAt.Equal(firstResolvedAt) {
		t.Fatal("second resolve changed resolution time")
	}
}

func TestResolveUnknownAlert(t *testing.T) {
	manager, _ := newTestManager(t)
	if _, err := manager.Resolve(context.Background(), "missing"); !errors.Is(err, alerts.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestCheckLifespanRaisesOnce(t *testing.T) {
	manager, clock := newTestManager(t, WithLifespanWarningPct(20))
	ctx := context.Background()
	line := testLine()
	line.RemainingLifespanPct = 15

	alert, event, err := manager.CheckLifespan(ctx, line, clock.Now())
	if err != nil {
		t.Fatalf("check lifespan: %v", err)
	}
	if event != EventCreated {
		t.Fatalf("expected created event, got %q", event)
	}
	if alert.Type != alerts.TypeLifespanWarning || alert.Severity != alerts.SeverityMedium {
		t.Fatalf("unexpected alert: %+v", alert)
	}

	// Still low on the next reading; no duplicate.
	clock.Advance(time.Minute)
	again, event, err := manager.CheckLifespan(ctx, line, clock.Now())
	if err != nil {
		t.Fatalf("check lifespan: %v", err)
	}
	if again != nil || event != "" {
		t.Fatal("expected no duplicate lifespan warning")
	}
}

func TestCheckLifespanDisabledByDefault(t *testing.T) {
	manager, clock := newTestManager(t)
	line := testLine()
	line.RemainingLifespanPct = 1
	alert, event, err := manager.CheckLifespan(context.Background(), line, clock.Now())
	if err != nil {
		t.Fatalf("check lifespan: %v", err)
	}
	if alert != nil || event != "" {
		t.Fatal("expected lifespan alerts disabled with zero threshold")
	}
}

func TestLifespanAndTensionEpisodesAreIndependent(t *testing.T) {
	manager, clock := newTestManager(t, WithLifespanWarningPct(20))
	ctx := context.Background()
	line := testLine()
	line.RemainingLifespanPct = 10

	if _, _, err := manager.Evaluate(ctx, line, tension.StatusWarning, 1.3, clock.Now()); err != nil {
		t.Fatalf("evaluate: %v", err)
	}
	if _, _, err := manager.CheckLifespan(ctx, line, clock.Now()); err != nil {
		t.Fatalf("check lifespan: %v", err)
	}

	active, err := manager.Active(ctx)
	if err != nil {
		t.Fatalf("active: %v", err)
	}
	if len(active) != 2 {
		t.Fatalf("expected two independent episodes, got %d", len(active))
	}
}

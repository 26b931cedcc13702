package application

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	alerts "github.com/Moori-Sense/Backend/internal/alerts/domain"
	"github.com/Moori-Sense/Backend/internal/lines"
	"github.com/Moori-Sense/Backend/internal/observability/metrics"
	tension "github.com/Moori-Sense/Backend/internal/tension/domain"
)

// Repository is the alert persistence contract.
type Repository interface {
	Create(ctx context.Context, alert *alerts.Alert) error
	Update(ctx context.Context, alert *alerts.Alert) error
	FindOpen(ctx context.Context, lineID, alertType string) (*alerts.Alert, error)
	GetByID(ctx context.Context, id string) (*alerts.Alert, error)
	MarkResolved(ctx context.Context, id string, at time.Time) (*alerts.Alert, error)
	ListActive(ctx context.Context) ([]alerts.Alert, error)
	ListByTime(ctx context.Context, from, to time.Time) ([]alerts.Alert, error)
	CountInWindow(ctx context.Context, lineID string, from, to time.Time) (int, error)
}

// Clock provides time.
type Clock interface {
	Now() time.Time
}

// Event names reported for alert lifecycle transitions.
const (
	EventCreated   = "created"
	EventEscalated = "escalated"
	EventResolved  = "resolved"
)

// Manager runs the per-line alert state machine: CLEAR -> ACTIVE ->
// CLEAR, with at most one open episode per (line, alert family).
type Manager struct {
	repo        Repository
	clock       Clock
	classifier  tension.Classifier
	lifespanPct float64
}

// ManagerOption customizes the manager.
type ManagerOption func(*Manager)

// WithClock assigns a clock.
func WithClock(clock Clock) ManagerOption {
	return func(m *Manager) {
		m.clock = clock
	}
}

// WithLifespanWarningPct sets the remaining-lifespan floor below which
// a LIFESPAN_WARNING is raised. Zero disables lifespan alerts.
func WithLifespanWarningPct(pct float64) ManagerOption {
	return func(m *Manager) {
		m.lifespanPct = pct
	}
}

// NewManager constructs an alert manager.
func NewManager(repo Repository, classifier tension.Classifier, opts ...ManagerOption) (*Manager, error) {
	if repo == nil {
		return nil, errors.New("alerts: nil repository")
	}
	manager := &Manager{
		repo:       repo,
		clock:      systemClock{},
		classifier: classifier,
	}
	for _, opt := range opts {
		opt(manager)
	}
	return manager, nil
}

// Evaluate drives the tension state machine for one classified reading
// and returns the changed alert plus the lifecycle event name, or
// (nil, "") when nothing changed.
func (m *Manager) Evaluate(ctx context.Context, line lines.Line, status string, value float64, at time.Time) (*alerts.Alert, string, error) {
	if m == nil {
		return nil, "", errors.New("alerts: nil manager")
	}
	open, err := m.repo.FindOpen(ctx, line.LineID, alerts.TypeTensionWarning)
	if err != nil {
		return nil, "", err
	}

	if status == tension.StatusNormal {
		if open == nil {
			return nil, "", nil
		}
		resolved, err := m.repo.MarkResolved(ctx, open.ID, at)
		if err != nil {
			return nil, "", err
		}
		m.record(EventResolved)
		return resolved, EventResolved, nil
	}

	alertType := alerts.TypeTensionWarning
	severity := alerts.SeverityHigh
	if status == tension.StatusCritical {
		alertType = alerts.TypeTensionCritical
		severity = alerts.SeverityCritical
	}
	message := m.tensionMessage(line, alertType, value)

	if open == nil {
		alert := &alerts.Alert{
			ID:        uuid.NewString(),
			LineID:    line.LineID,
			Type:      alertType,
			Severity:  severity,
			Message:   message,
			LastValue: value,
			CreatedAt: at,
			UpdatedAt: at,
		}
		if err := m.repo.Create(ctx, alert); err != nil {
			return nil, "", err
		}
		m.record(EventCreated)
		return alert, EventCreated, nil
	}

	if alerts.SeverityWorse(severity, open.Severity) {
		open.Type = alertType
		open.Severity = severity
		open.Message = message
		open.LastValue = value
		open.UpdatedAt = at
		if err := m.repo.Update(ctx, open); err != nil {
			return nil, "", err
		}
		m.record(EventEscalated)
		return open, EventEscalated, nil
	}

	// Episode continues at the same or lesser severity; track the value
	// without opening a duplicate.
	open.LastValue = value
	open.UpdatedAt = at
	if err := m.repo.Update(ctx, open); err != nil {
		return nil, "", err
	}
	return nil, "", nil
}

// CheckLifespan raises a LIFESPAN_WARNING once the line's remaining
// lifespan drops below the configured floor.
func (m *Manager) CheckLifespan(ctx context.Context, line lines.Line, at time.Time) (*alerts.Alert, string, error) {
	if m == nil || m.lifespanPct <= 0 || line.RemainingLifespanPct >= m.lifespanPct {
		return nil, "", nil
	}
	open, err := m.repo.FindOpen(ctx, line.LineID, alerts.TypeLifespanWarning)
	if err != nil {
		return nil, "", err
	}
	if open != nil {
		return nil, "", nil
	}
	alert := &alerts.Alert{
		ID:       uuid.NewString(),
		LineID:   line.LineID,
		Type:     alerts.TypeLifespanWarning,
		Severity: alerts.SeverityMedium,
		Message: fmt.Sprintf("Mooring line '%s' remaining lifespan (%.1f%%) dropped below %.1f%%",
			line.Name, line.RemainingLifespanPct, m.lifespanPct),
		LastValue: line.RemainingLifespanPct,
		CreatedAt: at,
		UpdatedAt: at,
	}
	if err := m.repo.Create(ctx, alert); err != nil {
		return nil, "", err
	}
	m.record(EventCreated)
	return alert, EventCreated, nil
}

// Resolve marks an alert resolved by external request. Resolving an
// already-resolved alert has no further effect.
func (m *Manager) Resolve(ctx context.Context, id string) (*alerts.Alert, error) {
	if m == nil {
		return nil, errors.New("alerts: nil manager")
	}
	if id == "" {
		return nil, errors.New("alerts: alert id required")
	}
	alert, err := m.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if alert.Resolved {
		return alert, nil
	}
	resolved, err := m.repo.MarkResolved(ctx, id, m.clock.Now().UTC())
	if err != nil {
		return nil, err
	}
	m.record(EventResolved)
	return resolved, nil
}

// Active returns all unresolved alerts, newest first.
func (m *Manager) Active(ctx context.Context) ([]alerts.Alert, error) {
	if m == nil {
		return nil, errors.New("alerts: nil manager")
	}
	return m.repo.ListActive(ctx)
}

// History returns all alerts created within [from, to], newest first.
func (m *Manager) History(ctx context.Context, from, to time.Time) ([]alerts.Alert, error) {
	if m == nil {
		return nil, errors.New("alerts: nil manager")
	}
	return m.repo.ListByTime(ctx, from, to)
}

// CountInWindow counts alerts raised for one line within [from, to].
func (m *Manager) CountInWindow(ctx context.Context, lineID string, from, to time.Time) (int, error) {
	if m == nil {
		return 0, errors.New("alerts: nil manager")
	}
	return m.repo.CountInWindow(ctx, lineID, from, to)
}

func (m *Manager) tensionMessage(line lines.Line, alertType string, value float64) string {
	if alertType == alerts.TypeTensionCritical {
		return fmt.Sprintf("Mooring line '%s' tension (%.1f kN) exceeded critical threshold (%.1f kN)",
			line.Name, value, line.MaxTension*m.classifier.CriticalMaxRatio)
	}
	return fmt.Sprintf("Mooring line '%s' tension (%.1f kN) exceeded warning threshold (%.1f kN)",
		line.Name, value, line.ReferenceTension*m.classifier.WarningPct/100)
}

func (m *Manager) record(event string) {
	metrics.IncAlertEvent(event)
}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now().UTC() }

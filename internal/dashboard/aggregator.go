package dashboard

import (
	"context"
	"errors"
	"time"

	alertapp "github.com/Moori-Sense/Backend/internal/alerts/application"
	alerts "github.com/Moori-Sense/Backend/internal/alerts/domain"
	"github.com/Moori-Sense/Backend/internal/lines"
	"github.com/Moori-Sense/Backend/internal/weather"
)

// System health labels, derived from the active alert set.
const (
	HealthNormal   = "NORMAL"
	HealthWarning  = "WARNING"
	HealthCritical = "CRITICAL"
)

// Weather is the snapshot enriched with the compass-rose direction.
type Weather struct {
	weather.Snapshot
	WindDirectionText string `json:"wind_direction_text"`
}

// Snapshot is everything the overview screen renders in one request.
type Snapshot struct {
	Lines        []lines.Line   `json:"lines"`
	Weather      Weather        `json:"current_weather"`
	ActiveAlerts []alerts.Alert `json:"active_alerts"`
	SystemStatus string         `json:"system_status"`
	GeneratedAt  time.Time      `json:"generated_at"`
}

// Clock provides time.
type Clock interface {
	Now() time.Time
}

// Aggregator assembles the overview snapshot from the live registry,
// the alert manager and the latest weather.
type Aggregator struct {
	registry *lines.Registry
	alerts   *alertapp.Manager
	weather  *weather.Holder
	clock    Clock
}

// AggregatorOption customizes the aggregator.
type AggregatorOption func(*Aggregator)

// WithClock assigns a clock.
func WithClock(clock Clock) AggregatorOption {
	return func(a *Aggregator) {
		a.clock = clock
	}
}

// NewAggregator constructs the dashboard aggregator.
func NewAggregator(registry *lines.Registry, alertManager *alertapp.Manager, holder *weather.Holder, opts ...AggregatorOption) (*Aggregator, error) {
	if registry == nil {
		return nil, errors.New("dashboard: nil line registry")
	}
	if alertManager == nil {
		return nil, errors.New("dashboard: nil alert manager")
	}
	if holder == nil {
		return nil, errors.New("dashboard: nil weather holder")
	}
	aggregator := &Aggregator{
		registry: registry,
		alerts:   alertManager,
		weather:  holder,
		clock:    systemClock{},
	}
	for _, opt := range opts {
		opt(aggregator)
	}
	return aggregator, nil
}

// Snapshot builds one consistent overview of the current state.
func (a *Aggregator) Snapshot(ctx context.Context) (Snapshot, error) {
	if a == nil {
		return Snapshot{}, errors.New("dashboard: nil aggregator")
	}
	now := a.clock.Now().UTC()

	active, err := a.alerts.Active(ctx)
	if err != nil {
		return Snapshot{}, err
	}

	current, set := a.weather.Current()
	if !set {
		current = weather.DefaultSnapshot(now)
	}

	return Snapshot{
		Lines: a.registry.List(),
		Weather: Weather{
			Snapshot:          current,
			WindDirectionText: weather.WindDirectionText(current.WindDirection),
		},
		ActiveAlerts: active,
		SystemStatus: healthOf(active),
		GeneratedAt:  now,
	}, nil
}

// healthOf summarizes the active alert set: any critical alert makes
// the system CRITICAL, any alert at all makes it WARNING.
func healthOf(active []alerts.Alert) string {
	status := HealthNormal
	for _, alert := range active {
		if alert.Severity == alerts.SeverityCritical {
			return HealthCritical
		}
		status = HealthWarning
	}
	return status
}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now().UTC() }

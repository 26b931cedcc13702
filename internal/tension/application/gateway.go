package application

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	alertapp "github.com/Moori-Sense/Backend/internal/alerts/application"
	"github.com/Moori-Sense/Backend/internal/eventing"
	"github.com/Moori-Sense/Backend/internal/lines"
	"github.com/Moori-Sense/Backend/internal/observability/metrics"
	"github.com/Moori-Sense/Backend/internal/tension/application/events"
	tension "github.com/Moori-Sense/Backend/internal/tension/domain"
	"github.com/Moori-Sense/Backend/internal/weather"
)

// Store is the reading history contract consumed by the gateway and
// the chart query service.
type Store interface {
	Append(ctx context.Context, reading tension.Reading) error
	Query(ctx context.Context, lineID string, from, to time.Time) ([]tension.Reading, error)
}

// Clock provides time.
type Clock interface {
	Now() time.Time
}

// Batch is one logical unit of ingestion: readings sharing an arrival,
// optionally with the weather observed at the same moment. A batch is
// applied atomically; a single invalid reading rejects all of it.
type Batch struct {
	Readings []tension.Reading
	Weather  *weather.Snapshot
}

// Gateway is the single entry point for readings and the only writer
// of line snapshots, alerts, weather and the reading store. Its mutex
// covers the whole ingest-and-update critical section, including the
// publish; subscribers only enqueue onto buffered channels, so a slow
// viewer cannot stall ingestion.
type Gateway struct {
	mu       sync.Mutex
	registry *lines.Registry
	store    Store
	alerts   *alertapp.Manager
	weather  *weather.Holder
	bus      eventing.Publisher

	classifier tension.Classifier
	decay      tension.LifespanDecay

	clock  Clock
	logger *log.Logger

	lastSeen map[string]time.Time
}

// GatewayOption customizes the gateway.
type GatewayOption func(*Gateway)

// WithClock assigns a clock.
func WithClock(clock Clock) GatewayOption {
	return func(g *Gateway) {
		g.clock = clock
	}
}

// WithLifespanDecay assigns the wear model.
func WithLifespanDecay(decay tension.LifespanDecay) GatewayOption {
	return func(g *Gateway) {
		g.decay = decay
	}
}

// NewGateway constructs the ingestion gateway.
func NewGateway(
	registry *lines.Registry,
	store Store,
	alertManager *alertapp.Manager,
	weatherHolder *weather.Holder,
	bus eventing.Publisher,
	classifier tension.Classifier,
	logger *log.Logger,
	opts ...GatewayOption,
) (*Gateway, error) {
	if registry == nil {
		return nil, errors.New("ingest: nil line registry")
	}
	if store == nil {
		return nil, errors.New("ingest: nil store")
	}
	if alertManager == nil {
		return nil, errors.New("ingest: nil alert manager")
	}
	if weatherHolder == nil {
		return nil, errors.New("ingest: nil weather holder")
	}
	if logger == nil {
		logger = log.Default()
	}
	gateway := &Gateway{
		registry:   registry,
		store:      store,
		alerts:     alertManager,
		weather:    weatherHolder,
		bus:        bus,
		classifier: classifier,
		clock:      systemClock{},
		logger:     logger,
		lastSeen:   make(map[string]time.Time),
	}
	for _, opt := range opts {
		opt(gateway)
	}
	return gateway, nil
}

// Ingest validates, classifies and applies one batch. Either every
// reading in the batch lands (store, line snapshot, alert evaluation,
// weather) followed by exactly one published event, or none do.
func (g *Gateway) Ingest(ctx context.Context, batch Batch) error {
	if g == nil {
		return errors.New("ingest: nil gateway")
	}
	start := g.clock.Now()
	if err := g.ingest(ctx, batch); err != nil {
		metrics.ObserveIngest(metrics.ResultError, g.clock.Now().Sub(start))
		return err
	}
	metrics.ObserveIngest(metrics.ResultSuccess, g.clock.Now().Sub(start))
	return nil
}

func (g *Gateway) ingest(ctx context.Context, batch Batch) error {
	if len(batch.Readings) == 0 && batch.Weather == nil {
		metrics.IncIngestError("empty_batch")
		return fmt.Errorf("%w: empty batch", tension.ErrInvalidReading)
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	// Phase one: validate and classify every reading before touching
	// any state, so a bad reading cannot leave a half-applied batch.
	type staged struct {
		reading tension.Reading
		line    lines.Line
		status  string
		elapsed time.Duration
	}
	plan := make([]staged, 0, len(batch.Readings))
	batchLast := make(map[string]time.Time, len(batch.Readings))

	for _, reading := range batch.Readings {
		if reading.LineID == "" {
			metrics.IncIngestError("missing_line_id")
			return fmt.Errorf("%w: missing line id", tension.ErrInvalidReading)
		}
		line, err := g.registry.Get(reading.LineID)
		if err != nil {
			metrics.IncIngestError("unknown_line")
			return fmt.Errorf("%w: unknown line %s", tension.ErrInvalidReading, reading.LineID)
		}
		if reading.Timestamp.IsZero() {
			metrics.IncIngestError("missing_timestamp")
			return fmt.Errorf("%w: missing timestamp for %s", tension.ErrInvalidReading, reading.LineID)
		}
		last := g.lastSeen[reading.LineID]
		if staggered, ok := batchLast[reading.LineID]; ok && staggered.After(last) {
			last = staggered
		}
		if reading.Timestamp.Before(last) {
			metrics.IncIngestError("timestamp_regression")
			return fmt.Errorf("%w: timestamp regression for %s", tension.ErrInvalidReading, reading.LineID)
		}

		status, err := g.classifier.Classify(reading.TensionValue, line.ReferenceTension, line.MaxTension)
		if err != nil {
			metrics.IncIngestError("classification")
			return err
		}

		var elapsed time.Duration
		if !last.IsZero() {
			elapsed = reading.Timestamp.Sub(last)
		}
		plan = append(plan, staged{reading: reading, line: line, status: status, elapsed: elapsed})
		batchLast[reading.LineID] = reading.Timestamp
	}

	// Phase two: append every reading to the store before mutating any
	// line snapshot or alert, so a failed append cannot leave the batch
	// half applied.
	for idx := range plan {
		reading := plan[idx].reading
		reading.Status = plan[idx].status
		if batch.Weather != nil {
			attachWeather(&reading, *batch.Weather)
		}
		if err := g.store.Append(ctx, reading); err != nil {
			metrics.IncIngestError("append")
			return fmt.Errorf("ingest: append %s: %w", reading.LineID, err)
		}
		plan[idx].reading = reading
	}

	// Phase three: apply snapshots, alerts and weather.
	updates := make([]events.LineUpdate, 0, len(plan))
	var alertEvents []events.AlertTransition
	var occurredAt time.Time

	for _, item := range plan {
		reading := item.reading
		decrement := g.decay.Decrement(item.status, reading.TensionValue, item.line.ReferenceTension, item.elapsed)
		var updated lines.Line
		err := g.registry.Update(reading.LineID, func(line *lines.Line) {
			line.CurrentTension = reading.TensionValue
			line.TensionPct = reading.TensionValue / line.ReferenceTension * 100
			line.Status = item.status
			line.RemainingLifespanPct = tension.ApplyDecay(line.RemainingLifespanPct, decrement)
			if reading.DistanceToPort != nil {
				line.DistanceToPort = *reading.DistanceToPort
			}
			line.UpdatedAt = reading.Timestamp
			updated = *line
		})
		if err != nil {
			return err
		}
		g.lastSeen[reading.LineID] = reading.Timestamp

		// Alert failures are logged, never allowed to block the line's
		// classification or storage.
		if alert, event, err := g.alerts.Evaluate(ctx, updated, item.status, reading.TensionValue, reading.Timestamp); err != nil {
			g.logger.Printf("ingest: alert evaluation failed: line=%s err=%v", reading.LineID, err)
		} else if event != "" && alert != nil {
			alertEvents = append(alertEvents, events.AlertTransition{Event: event, Alert: *alert})
		}
		if alert, event, err := g.alerts.CheckLifespan(ctx, updated, reading.Timestamp); err != nil {
			g.logger.Printf("ingest: lifespan check failed: line=%s err=%v", reading.LineID, err)
		} else if event != "" && alert != nil {
			alertEvents = append(alertEvents, events.AlertTransition{Event: event, Alert: *alert})
		}

		updates = append(updates, events.LineUpdate{
			LineID:       reading.LineID,
			TensionValue: reading.TensionValue,
			Status:       item.status,
		})
		if reading.Timestamp.After(occurredAt) {
			occurredAt = reading.Timestamp
		}
	}

	weatherChanged := false
	if batch.Weather != nil {
		snapshot := *batch.Weather
		if snapshot.Timestamp.IsZero() {
			snapshot.Timestamp = g.clock.Now().UTC()
		}
		g.weather.Set(snapshot)
		weatherChanged = true
		if snapshot.Timestamp.After(occurredAt) {
			occurredAt = snapshot.Timestamp
		}
	}

	g.publish(ctx, events.BatchIngested{
		OccurredAt:     occurredAt,
		Updates:        updates,
		AlertsChanged:  len(alertEvents) > 0,
		AlertEvents:    alertEvents,
		WeatherChanged: weatherChanged,
	})
	return nil
}

// publish hands the event to the bus. Subscribers queue the event on
// buffered channels, so delivery to slow viewers never runs under the
// gateway mutex.
func (g *Gateway) publish(ctx context.Context, event events.BatchIngested) {
	if g.bus == nil {
		return
	}
	if err := g.bus.Publish(ctx, event); err != nil {
		g.logger.Printf("ingest: publish failed: err=%v", err)
	}
}

func attachWeather(reading *tension.Reading, snapshot weather.Snapshot) {
	if reading.Temperature == nil {
		temp := snapshot.Temperature
		reading.Temperature = &temp
	}
	if reading.Humidity == nil {
		humidity := snapshot.Humidity
		reading.Humidity = &humidity
	}
	if reading.WindSpeed == nil {
		wind := snapshot.WindSpeed
		reading.WindSpeed = &wind
	}
	if reading.WindDirection == nil {
		direction := snapshot.WindDirection
		reading.WindDirection = &direction
	}
}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now().UTC() }

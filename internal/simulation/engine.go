package simulation

import (
	"context"
	"errors"
	"log"
	"sync"
	"time"

	"github.com/Moori-Sense/Backend/internal/observability/metrics"
	"github.com/Moori-Sense/Backend/internal/tension/application"
)

// Source yields one ingestion batch per tick.
type Source interface {
	Next(now time.Time) application.Batch
}

// Ingestor is the slice of the gateway the engine needs.
type Ingestor interface {
	Ingest(ctx context.Context, batch application.Batch) error
}

// DefaultInterval matches the capture cadence of the deck sensors.
const DefaultInterval = 30 * time.Second

// Status reports the engine's run state.
type Status struct {
	Running   bool          `json:"is_running"`
	Interval  time.Duration `json:"interval"`
	TickCount int64         `json:"tick_count"`
}

// Engine drives a Source on a fixed interval and feeds its batches to
// the ingestion gateway. Start and Stop are idempotent.
type Engine struct {
	source   Source
	gateway  Ingestor
	interval time.Duration
	logger   *log.Logger

	mu        sync.Mutex
	running   bool
	cancel    context.CancelFunc
	done      chan struct{}
	tickCount int64
}

// EngineOption customizes the engine.
type EngineOption func(*Engine)

// WithInterval overrides the tick interval.
func WithInterval(interval time.Duration) EngineOption {
	return func(e *Engine) {
		if interval > 0 {
			e.interval = interval
		}
	}
}

// NewEngine constructs a stopped engine.
func NewEngine(source Source, gateway Ingestor, logger *log.Logger, opts ...EngineOption) (*Engine, error) {
	if source == nil {
		return nil, errors.New("simulation: nil source")
	}
	if gateway == nil {
		return nil, errors.New("simulation: nil gateway")
	}
	if logger == nil {
		logger = log.Default()
	}
	engine := &Engine{
		source:   source,
		gateway:  gateway,
		interval: DefaultInterval,
		logger:   logger,
	}
	for _, opt := range opts {
		opt(engine)
	}
	return engine, nil
}

// Start launches the tick loop. Starting a running engine is a no-op.
// The first batch is ingested immediately, then one per interval.
func (e *Engine) Start(ctx context.Context) {
	if e == nil {
		return
	}
	e.mu.Lock()
	if e.running {
		e.mu.Unlock()
		return
	}
	runCtx, cancel := context.WithCancel(ctx)
	e.running = true
	e.cancel = cancel
	e.done = make(chan struct{})
	done := e.done
	e.mu.Unlock()

	e.logger.Printf("simulation: started interval=%s", e.interval)
	go func() {
		defer close(done)
		e.tick(runCtx)
		ticker := time.NewTicker(e.interval)
		defer ticker.Stop()
		for {
			select {
			case <-runCtx.Done():
				return
			case <-ticker.C:
				e.tick(runCtx)
			}
		}
	}()
}

// Stop halts the loop and waits for the in-flight tick to finish.
// Stopping a stopped engine is a no-op.
func (e *Engine) Stop() {
	if e == nil {
		return
	}
	e.mu.Lock()
	if !e.running {
		e.mu.Unlock()
		return
	}
	e.running = false
	cancel := e.cancel
	done := e.done
	e.cancel = nil
	e.done = nil
	e.mu.Unlock()

	cancel()
	<-done
	e.logger.Printf("simulation: stopped")
}

// Status returns the current run state.
func (e *Engine) Status() Status {
	e.mu.Lock()
	defer e.mu.Unlock()
	return Status{
		Running:   e.running,
		Interval:  e.interval,
		TickCount: e.tickCount,
	}
}

func (e *Engine) tick(ctx context.Context) {
	batch := e.source.Next(time.Now().UTC())
	if err := e.gateway.Ingest(ctx, batch); err != nil {
		e.logger.Printf("simulation: tick rejected: err=%v", err)
		return
	}
	metrics.IncSimulationTick()
	e.mu.Lock()
	e.tickCount++
	e.mu.Unlock()
}

// SeedHistory backfills the reading store with one sample per line
// every step over the trailing window, ending just before now. Charts
// then have data to show before the first live tick arrives.
func SeedHistory(ctx context.Context, gateway Ingestor, source Source, window, step time.Duration, now time.Time) error {
	if gateway == nil || source == nil {
		return errors.New("simulation: nil gateway or source")
	}
	if window <= 0 || step <= 0 {
		return errors.New("simulation: non-positive window or step")
	}
	for at := now.Add(-window); at.Before(now); at = at.Add(step) {
		batch := source.Next(at)
		for i := range batch.Readings {
			batch.Readings[i].Timestamp = at
		}
		if batch.Weather != nil {
			batch.Weather.Timestamp = at
		}
		if err := gateway.Ingest(ctx, batch); err != nil {
			return err
		}
	}
	return nil
}

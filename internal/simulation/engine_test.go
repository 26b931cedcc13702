package simulation

import (
	"context"
	"io"
	"log"
	"sync"
	"testing"
	"time"

	"github.com/Moori-Sense/Backend/internal/tension/application"
	tension "github.com/Moori-Sense/Backend/internal/tension/domain"
)

type stubSource struct{}

func (stubSource) Next(now time.Time) application.Batch {
	return application.Batch{Readings: []tension.Reading{{
		LineID:       "L0",
		Timestamp:    now,
		TensionValue: 1.0,
	}}}
}

type recordingIngestor struct {
	mu      sync.Mutex
	batches []application.Batch
}

func (r *recordingIngestor) Ingest(_ context.Context, batch application.Batch) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.batches = append(r.batches, batch)
	return nil
}

func (r *recordingIngestor) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.batches)
}

func newTestEngine(t *testing.T, ingestor Ingestor) *Engine {
	t.Helper()
	engine, err := NewEngine(stubSource{}, ingestor, log.New(io.Discard, "", 0),
		WithInterval(5*time.Millisecond))
	if err != nil {
		t.Fatalf("engine: %v", err)
	}
	return engine
}

func TestEngineTicksUntilStopped(t *testing.T) {
	ingestor := &recordingIngestor{}
	engine := newTestEngine(t, ingestor)

	engine.Start(context.Background())
	defer engine.Stop()

	deadline := time.After(2 * time.Second)
	for ingestor.count() < 3 {
		select {
		case <-deadline:
			t.Fatalf("expected at least 3 ticks, got %d", ingestor.count())
		case <-time.After(time.Millisecond):
		}
	}

	status := engine.Status()
	if !status.Running {
		t.Fatal("engine reports stopped while ticking")
	}
	if status.TickCount < 3 {
		t.Fatalf("tick count %d lags deliveries", status.TickCount)
	}
}

func TestEngineStartIsIdempotent(t *testing.T) {
	ingestor := &recordingIngestor{}
	engine := newTestEngine(t, ingestor)

	engine.Start(context.Background())
	engine.Start(context.Background())
	defer engine.Stop()

	deadline := time.After(2 * time.Second)
	for ingestor.count() < 1 {
		select {
		case <-deadline:
			t.Fatal("immediate tick never ran")
		case <-time.After(time.Millisecond):
		}
	}
	if !engine.Status().Running {
		t.Fatal("engine not running after double Start")
	}
}

func TestEngineStopWaitsForLoop(t *testing.T) {
	ingestor := &recordingIngestor{}
	engine := newTestEngine(t, ingestor)

	engine.Start(context.Background())
	engine.Stop()
	engine.Stop()

	if engine.Status().Running {
		t.Fatal("engine still running after Stop")
	}
	settled := ingestor.count()
	time.Sleep(20 * time.Millisecond)
	if got := ingestor.count(); got != settled {
		t.Fatalf("ticks continued after Stop: %d -> %d", settled, got)
	}
}

func TestEngineRestart(t *testing.T) {
	ingestor := &recordingIngestor{}
	engine := newTestEngine(t, ingestor)

	engine.Start(context.Background())
	engine.Stop()
	before := ingestor.count()

	engine.Start(context.Background())
	defer engine.Stop()

	deadline := time.After(2 * time.Second)
	for ingestor.count() <= before {
		select {
		case <-deadline:
			t.Fatal("engine did not tick after restart")
		case <-time.After(time.Millisecond):
		}
	}
}

func TestSeedHistoryBackfillsWindow(t *testing.T) {
	ingestor := &recordingIngestor{}
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	err := SeedHistory(context.Background(), ingestor, stubSource{}, time.Hour, 10*time.Minute, now)
	if err != nil {
		t.Fatalf("seed: %v", err)
	}
	if got := ingestor.count(); got != 6 {
		t.Fatalf("expected 6 backfill batches, got %d", got)
	}

	ingestor.mu.Lock()
	defer ingestor.mu.Unlock()
	previous := time.Time{}
	for _, batch := range ingestor.batches {
		at := batch.Readings[0].Timestamp
		if !at.After(previous) {
			t.Fatalf("backfill timestamps not increasing: %v then %v", previous, at)
		}
		if !at.Before(now) {
			t.Fatalf("backfill timestamp %v not before now", at)
		}
		previous = at
	}
}

func TestSeedHistoryValidatesArguments(t *testing.T) {
	if err := SeedHistory(context.Background(), &recordingIngestor{}, stubSource{}, 0, time.Minute, time.Now()); err == nil {
		t.Fatal("expected error for zero window")
	}
	if err := SeedHistory(context.Background(), nil, stubSource{}, time.Hour, time.Minute, time.Now()); err == nil {
		t.Fatal("expected error for nil gateway")
	}
}

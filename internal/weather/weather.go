package weather

import (
	"math"
	"sync"
	"time"
)

// Snapshot is the latest known ambient conditions, shared by all lines.
type Snapshot struct {
	Temperature   float64   `json:"temperature"`
	Humidity      float64   `json:"humidity"`
	WindSpeed     float64   `json:"wind_speed"`
	WindDirection float64   `json:"wind_direction"`
	Pressure      float64   `json:"pressure"`
	WaveHeight    float64   `json:"wave_height"`
	Timestamp     time.Time `json:"timestamp"`
}

// WindDirectionText maps degrees onto the 8-point compass rose.
func WindDirectionText(degrees float64) string {
	directions := []string{"N", "NE", "E", "SE", "S", "SW", "W", "NW"}
	index := int(math.Round(degrees/45)) % 8
	if index < 0 {
		index += 8
	}
	return directions[index]
}

// DefaultSnapshot is served before the first reading batch arrives.
func DefaultSnapshot(at time.Time) Snapshot {
	return Snapshot{
		Temperature:   20.0,
		Humidity:      60.0,
		WindSpeed:     5.0,
		WindDirection: 0.0,
		Pressure:      1013.0,
		WaveHeight:    1.0,
		Timestamp:     at,
	}
}

// Holder keeps the process-wide latest snapshot. Written only by the
// ingestion gateway, read by the dashboard aggregator.
type Holder struct {
	mu      sync.RWMutex
	current Snapshot
	set     bool
}

// NewHolder constructs an empty holder.
func NewHolder() *Holder {
	return &Holder{}
}

// Set overwrites the current snapshot.
func (h *Holder) Set(snapshot Snapshot) {
	h.mu.Lock()
	h.current = snapshot
	h.set = true
	h.mu.Unlock()
}

// Current returns the latest snapshot and whether one has been set.
func (h *Holder) Current() (Snapshot, bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.current, h.set
}

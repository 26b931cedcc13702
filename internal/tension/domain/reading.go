package tension

import "time"

const (
	StatusNormal   = "NORMAL"
	StatusWarning  = "WARNING"
	StatusCritical = "CRITICAL"
)

// Reading is one immutable tension fact for one line. Weather fields are
// the ambient conditions correlated at ingestion time; the raw sensor
// fields are carried through unchanged when the feed supplies them.
type Reading struct {
	LineID       string    `json:"line_id"`
	Timestamp    time.Time `json:"timestamp"`
	TensionValue float64   `json:"tension_value"`
	Status       string    `json:"status,omitempty"`

	Temperature   *float64 `json:"temperature,omitempty"`
	Humidity      *float64 `json:"humidity,omitempty"`
	WindSpeed     *float64 `json:"wind_speed,omitempty"`
	WindDirection *float64 `json:"wind_direction,omitempty"`

	DistanceToPort *float64 `json:"distance_to_port,omitempty"`
	LineLength     *float64 `json:"line_length,omitempty"`
	RawTimestamp   string   `json:"raw_timestamp,omitempty"`
}

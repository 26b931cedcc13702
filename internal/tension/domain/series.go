package tension

import "time"

// Stats summarizes the raw, unsampled readings of a query window.
// Computing them before downsampling keeps chart statistics exact.
type Stats struct {
	Count       int     `json:"count"`
	MinTension  float64 `json:"min_tension"`
	MaxTension  float64 `json:"max_tension"`
	MeanTension float64 `json:"mean_tension"`
	AlertCount  int     `json:"alert_count"`
}

// ChartSeries is the query result handed to chart consumers: a possibly
// downsampled point list plus statistics over the full window.
type ChartSeries struct {
	LineID   string    `json:"line_id"`
	From     time.Time `json:"from"`
	To       time.Time `json:"to"`
	Points   []Reading `json:"points"`
	Stats    Stats     `json:"stats"`
	Sampled  bool      `json:"sampled"`
	RawCount int       `json:"raw_count"`
}

// ComputeStats derives min/max/mean over the full series.
func ComputeStats(readings []Reading) Stats {
	if len(readings) == 0 {
		return Stats{}
	}
	stats := Stats{
		Count:      len(readings),
		MinTension: readings[0].TensionValue,
		MaxTension: readings[0].TensionValue,
	}
	var sum float64
	for _, reading := range readings {
		value := reading.TensionValue
		sum += value
		if value < stats.MinTension {
			stats.MinTension = value
		}
		if value > stats.MaxTension {
			stats.MaxTension = value
		}
	}
	stats.MeanTension = sum / float64(len(readings))
	return stats
}

// Downsample reduces an ordered series to at most max points while
// preserving order and the exact first and last points. Intermediate
// points are picked by uniform stride for even time coverage.
func Downsample(readings []Reading, max int) []Reading {
	if max <= 0 || len(readings) <= max {
		return readings
	}
	if max == 1 {
		return readings[:1]
	}

	sampled := make([]Reading, 0, max)
	sampled = append(sampled, readings[0])

	// Spread max-2 interior picks across the interior of the series.
	interior := len(readings) - 2
	picks := max - 2
	for i := 0; i < picks; i++ {
		idx := 1 + (i*interior)/picks
		sampled = append(sampled, readings[idx])
	}

	sampled = append(sampled, readings[len(readings)-1])
	return sampled
}

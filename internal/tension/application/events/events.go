package events

import (
	"time"

	alerts "github.com/Moori-Sense/Backend/internal/alerts/domain"
)

// LineUpdate is one line's contribution to an ingested batch.
type LineUpdate struct {
	LineID       string  `json:"line_id"`
	TensionValue float64 `json:"tension_value"`
	Status       string  `json:"status"`
}

// AlertTransition is one alert episode change caused by a batch:
// created, escalated or resolved, with the alert as of the change.
type AlertTransition struct {
	Event string       `json:"event"`
	Alert alerts.Alert `json:"alert"`
}

// BatchIngested is published after a reading batch has been fully
// applied: every line updated, alerts evaluated, weather stored.
// Exactly one event per accepted batch.
type BatchIngested struct {
	OccurredAt     time.Time         `json:"occurred_at"`
	Updates        []LineUpdate      `json:"updates"`
	AlertsChanged  bool              `json:"alerts_changed"`
	AlertEvents    []AlertTransition `json:"alert_events,omitempty"`
	WeatherChanged bool              `json:"weather_changed"`
}

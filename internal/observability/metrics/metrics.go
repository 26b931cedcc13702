package metrics

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const (
	metricPrefix = "mooring_"

	resultSuccess = "success"
	resultError   = "error"
)

var (
	registerOnce sync.Once

	ingestBatches *prometheus.CounterVec
	ingestErrors  *prometheus.CounterVec
	ingestLatency *prometheus.HistogramVec

	alertEventsTotal *prometheus.CounterVec

	broadcastEvents  prometheus.Counter
	broadcastDropped prometheus.Counter
	subscriberCount  prometheus.Gauge

	simulationTicks prometheus.Counter
)

// Init registers engine metrics. Safe to call more than once.
func Init() {
	registerOnce.Do(func() {
		ingestBatches = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "ingest_batches_total",
				Help: "Total ingested reading batches by result",
			},
			[]string{"result"},
		)
		ingestErrors = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "ingest_errors_total",
				Help: "Total ingest errors by reason",
			},
			[]string{"reason"},
		)
		ingestLatency = prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    metricPrefix + "ingest_latency_seconds",
				Help:    "Ingest batch latency in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"result"},
		)

		alertEventsTotal = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "alert_events_total",
				Help: "Total alert lifecycle events by type",
			},
			[]string{"event"},
		)

		broadcastEvents = prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: metricPrefix + "broadcast_events_total",
				Help: "Total events fanned out to live subscribers",
			},
		)
		broadcastDropped = prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: metricPrefix + "broadcast_dropped_subscribers_total",
				Help: "Total subscribers dropped for falling behind",
			},
		)
		subscriberCount = prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: metricPrefix + "broadcast_subscribers",
				Help: "Currently connected live subscribers",
			},
		)

		simulationTicks = prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: metricPrefix + "simulation_ticks_total",
				Help: "Total simulation ticks executed",
			},
		)

		prometheus.MustRegister(
			ingestBatches,
			ingestErrors,
			ingestLatency,
			alertEventsTotal,
			broadcastEvents,
			broadcastDropped,
			subscriberCount,
			simulationTicks,
		)
	})
}

// ObserveIngest records batch duration and result.
func ObserveIngest(result string, duration time.Duration) {
	if result == "" {
		result = resultSuccess
	}
	if ingestBatches != nil {
		ingestBatches.WithLabelValues(result).Inc()
	}
	if ingestLatency != nil {
		ingestLatency.WithLabelValues(result).Observe(duration.Seconds())
	}
}

// IncIngestError increments ingest error counter.
func IncIngestError(reason string) {
	if reason == "" {
		reason = "unknown"
	}
	if ingestErrors != nil {
		ingestErrors.WithLabelValues(reason).Inc()
	}
}

// IncAlertEvent increments alert lifecycle counters.
func IncAlertEvent(event string) {
	if event == "" {
		event = "unknown"
	}
	if alertEventsTotal != nil {
		alertEventsTotal.WithLabelValues(event).Inc()
	}
}

// IncBroadcast increments the fanned-out event counter.
func IncBroadcast() {
	if broadcastEvents != nil {
		broadcastEvents.Inc()
	}
}

// IncDroppedSubscriber counts a subscriber dropped for backpressure.
func IncDroppedSubscriber() {
	if broadcastDropped != nil {
		broadcastDropped.Inc()
	}
}

// SetSubscriberCount updates the live subscriber gauge.
func SetSubscriberCount(count int) {
	if subscriberCount != nil {
		subscriberCount.Set(float64(count))
	}
}

// IncSimulationTick counts one executed simulation tick.
func IncSimulationTick() {
	if simulationTicks != nil {
		simulationTicks.Inc()
	}
}

// Exported constants for callers.
const (
	ResultSuccess = resultSuccess
	ResultError   = resultError
)

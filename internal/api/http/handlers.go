package apihttp

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	alertapp "github.com/Moori-Sense/Backend/internal/alerts/application"
	alerts "github.com/Moori-Sense/Backend/internal/alerts/domain"
	"github.com/Moori-Sense/Backend/internal/audit"
	"github.com/Moori-Sense/Backend/internal/auth"
	"github.com/Moori-Sense/Backend/internal/dashboard"
	"github.com/Moori-Sense/Backend/internal/lines"
	"github.com/Moori-Sense/Backend/internal/simulation"
	"github.com/Moori-Sense/Backend/internal/tension/application"
	tension "github.com/Moori-Sense/Backend/internal/tension/domain"
	"github.com/Moori-Sense/Backend/internal/weather"
)

const timeLayout = time.RFC3339

const defaultChartWindow = 24 * time.Hour

// DashboardHandler serves the overview snapshot.
type DashboardHandler struct {
	aggregator *dashboard.Aggregator
}

// NewDashboardHandler constructs a DashboardHandler.
func NewDashboardHandler(aggregator *dashboard.Aggregator) *DashboardHandler {
	return &DashboardHandler{aggregator: aggregator}
}

// ServeHTTP handles GET /api/v1/dashboard.
func (h *DashboardHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	if h == nil || h.aggregator == nil {
		http.Error(w, "server not ready", http.StatusServiceUnavailable)
		return
	}

	snapshot, err := h.aggregator.Snapshot(r.Context())
	if err != nil {
		http.Error(w, "dashboard error", http.StatusInternalServerError)
		return
	}
	writeJSON(w, snapshot)
}

// LinesHandler serves the line roster, line detail and chart queries.
type LinesHandler struct {
	registry *lines.Registry
	query    *application.QueryService
}

// NewLinesHandler constructs a LinesHandler.
func NewLinesHandler(registry *lines.Registry, query *application.QueryService) (*LinesHandler, error) {
	if registry == nil {
		return nil, errors.New("lines handler: nil registry")
	}
	if query == nil {
		return nil, errors.New("lines handler: nil query service")
	}
	return &LinesHandler{registry: registry, query: query}, nil
}

// ServeHTTP handles /api/v1/lines and subroutes.
func (h *LinesHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	switch {
	case r.URL.Path == "/api/v1/lines":
		writeJSON(w, h.registry.List())
	case strings.HasPrefix(r.URL.Path, "/api/v1/lines/"):
		h.handleLine(w, r)
	default:
		w.WriteHeader(http.StatusNotFound)
	}
}

func (h *LinesHandler) handleLine(w http.ResponseWriter, r *http.Request) {
	rest := strings.TrimPrefix(r.URL.Path, "/api/v1/lines/")
	parts := strings.Split(rest, "/")
	switch len(parts) {
	case 1:
		line, err := h.registry.Get(parts[0])
		if err != nil {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		writeJSON(w, line)
	case 2:
		if parts[1] != "chart" {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		h.handleChart(w, r, parts[0])
	default:
		w.WriteHeader(http.StatusNotFound)
	}
}

func (h *LinesHandler) handleChart(w http.ResponseWriter, r *http.Request, lineID string) {
	from, to, err := chartWindow(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	series, err := h.query.Series(r.Context(), lineID, from, to)
	if err != nil {
		switch {
		case errors.Is(err, lines.ErrNotFound):
			w.WriteHeader(http.StatusNotFound)
		case errors.Is(err, tension.ErrInvalidReading):
			http.Error(w, err.Error(), http.StatusBadRequest)
		default:
			http.Error(w, "chart query error", http.StatusInternalServerError)
		}
		return
	}
	writeJSON(w, series)
}

// chartWindow resolves the query window: explicit from/to wins, then
// the hours shorthand, then the trailing default window.
func chartWindow(r *http.Request) (time.Time, time.Time, error) {
	query := r.URL.Query()
	if query.Get("from") != "" || query.Get("to") != "" {
		from, err := parseTimeQuery(r, "from")
		if err != nil {
			return time.Time{}, time.Time{}, err
		}
		to, err := parseTimeQuery(r, "to")
		if err != nil {
			return time.Time{}, time.Time{}, err
		}
		if !to.After(from) {
			return time.Time{}, time.Time{}, errors.New("to must be after from")
		}
		return from, to, nil
	}

	window := defaultChartWindow
	if raw := query.Get("hours"); raw != "" {
		hours, err := strconv.Atoi(raw)
		if err != nil || hours <= 0 {
			return time.Time{}, time.Time{}, errors.New("hours must be a positive integer")
		}
		window = time.Duration(hours) * time.Hour
	}
	to := time.Now().UTC()
	return to.Add(-window), to, nil
}

// readingPayload is the wire form of one reading in an ingest request.
type readingPayload struct {
	LineID         string   `json:"line_id"`
	Timestamp      string   `json:"timestamp"`
	TensionValue   float64  `json:"tension_value"`
	DistanceToPort *float64 `json:"distance_to_port,omitempty"`
	LineLength     *float64 `json:"line_length,omitempty"`
	RawTimestamp   string   `json:"raw_timestamp,omitempty"`
}

type ingestPayload struct {
	Readings []readingPayload  `json:"readings"`
	Weather  *weather.Snapshot `json:"weather,omitempty"`
}

// ReadingsHandler accepts reading batches.
type ReadingsHandler struct {
	gateway *application.Gateway
}

// NewReadingsHandler constructs a ReadingsHandler.
func NewReadingsHandler(gateway *application.Gateway) (*ReadingsHandler, error) {
	if gateway == nil {
		return nil, errors.New("readings handler: nil gateway")
	}
	return &ReadingsHandler{gateway: gateway}, nil
}

// ServeHTTP handles POST /api/v1/readings.
func (h *ReadingsHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	var payload ingestPayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		http.Error(w, "invalid json body", http.StatusBadRequest)
		return
	}

	batch := application.Batch{Weather: payload.Weather}
	for _, item := range payload.Readings {
		reading := tension.Reading{
			LineID:         item.LineID,
			TensionValue:   item.TensionValue,
			DistanceToPort: item.DistanceToPort,
			LineLength:     item.LineLength,
			RawTimestamp:   item.RawTimestamp,
		}
		if item.Timestamp != "" {
			parsed, err := time.Parse(timeLayout, item.Timestamp)
			if err != nil {
				http.Error(w, "timestamp must be RFC3339", http.StatusBadRequest)
				return
			}
			reading.Timestamp = parsed.UTC()
		} else {
			reading.Timestamp = time.Now().UTC()
		}
		batch.Readings = append(batch.Readings, reading)
	}

	if err := h.gateway.Ingest(r.Context(), batch); err != nil {
		if errors.Is(err, tension.ErrInvalidReading) || errors.Is(err, tension.ErrConfiguration) {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		http.Error(w, "ingest error", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusAccepted)
	_ = json.NewEncoder(w).Encode(map[string]int{"accepted": len(batch.Readings)})
}

// AlertsHandler serves alert listings and the resolve action.
type AlertsHandler struct {
	manager *alertapp.Manager
	auditor audit.Logger
}

// AlertsOption customizes the alerts handler.
type AlertsOption func(*AlertsHandler)

// WithAlertsAudit records resolve actions in the audit trail.
func WithAlertsAudit(auditor audit.Logger) AlertsOption {
	return func(h *AlertsHandler) {
		h.auditor = auditor
	}
}

// NewAlertsHandler constructs an AlertsHandler.
func NewAlertsHandler(manager *alertapp.Manager, opts ...AlertsOption) (*AlertsHandler, error) {
	if manager == nil {
		return nil, errors.New("alerts handler: nil manager")
	}
	handler := &AlertsHandler{manager: manager}
	for _, opt := range opts {
		opt(handler)
	}
	return handler, nil
}

// ServeHTTP handles /api/v1/alerts and subroutes.
func (h *AlertsHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	switch {
	case r.URL.Path == "/api/v1/alerts":
		if r.Method != http.MethodGet {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		h.handleList(w, r)
	case strings.HasPrefix(r.URL.Path, "/api/v1/alerts/"):
		h.handleResolve(w, r)
	default:
		w.WriteHeader(http.StatusNotFound)
	}
}

func (h *AlertsHandler) handleList(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	if query.Get("from") != "" || query.Get("to") != "" {
		from, err := parseTimeQuery(r, "from")
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		to, err := parseTimeQuery(r, "to")
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		if !to.After(from) {
			http.Error(w, "to must be after from", http.StatusBadRequest)
			return
		}
		list, err := h.manager.History(r.Context(), from, to)
		if err != nil {
			http.Error(w, "alert query error", http.StatusInternalServerError)
			return
		}
		writeJSON(w, list)
		return
	}

	list, err := h.manager.Active(r.Context())
	if err != nil {
		http.Error(w, "alert query error", http.StatusInternalServerError)
		return
	}
	writeJSON(w, list)
}

func (h *AlertsHandler) handleResolve(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	path := strings.TrimPrefix(r.URL.Path, "/api/v1/alerts/")
	parts := strings.Split(path, "/")
	if len(parts) != 2 || parts[1] != "resolve" {
		w.WriteHeader(http.StatusNotFound)
		return
	}

	alert, err := h.manager.Resolve(r.Context(), parts[0])
	if err != nil {
		if errors.Is(err, alerts.ErrNotFound) {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	recordAudit(r, h.auditor, "alert.resolve", "alert", alert.ID)
	writeJSON(w, alert)
}

// WeatherHandler serves the latest weather snapshot.
type WeatherHandler struct {
	holder *weather.Holder
}

// NewWeatherHandler constructs a WeatherHandler.
func NewWeatherHandler(holder *weather.Holder) *WeatherHandler {
	return &WeatherHandler{holder: holder}
}

// ServeHTTP handles GET /api/v1/weather/current.
func (h *WeatherHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	if h == nil || h.holder == nil {
		http.Error(w, "server not ready", http.StatusServiceUnavailable)
		return
	}

	snapshot, set := h.holder.Current()
	if !set {
		snapshot = weather.DefaultSnapshot(time.Now().UTC())
	}
	writeJSON(w, struct {
		weather.Snapshot
		WindDirectionText string `json:"wind_direction_text"`
	}{
		Snapshot:          snapshot,
		WindDirectionText: weather.WindDirectionText(snapshot.WindDirection),
	})
}

// SimulationHandler controls the live simulation engine. The engine
// runs on the server's base context so it outlives the request that
// started it.
type SimulationHandler struct {
	engine  *simulation.Engine
	baseCtx context.Context
	auditor audit.Logger
}

// SimulationOption customizes the simulation handler.
type SimulationOption func(*SimulationHandler)

// WithSimulationAudit records start and stop actions in the audit trail.
func WithSimulationAudit(auditor audit.Logger) SimulationOption {
	return func(h *SimulationHandler) {
		h.auditor = auditor
	}
}

// NewSimulationHandler constructs a SimulationHandler.
func NewSimulationHandler(engine *simulation.Engine, baseCtx context.Context, opts ...SimulationOption) *SimulationHandler {
	if baseCtx == nil {
		baseCtx = context.Background()
	}
	handler := &SimulationHandler{engine: engine, baseCtx: baseCtx}
	for _, opt := range opts {
		opt(handler)
	}
	return handler
}

// ServeHTTP handles /api/v1/simulation/{start,stop,status}.
func (h *SimulationHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.engine == nil {
		http.Error(w, "simulation not configured", http.StatusServiceUnavailable)
		return
	}
	switch r.URL.Path {
	case "/api/v1/simulation/start":
		if r.Method != http.MethodPost {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		h.engine.Start(h.baseCtx)
		recordAudit(r, h.auditor, "simulation.start", "simulation", "engine")
		writeJSON(w, h.engine.Status())
	case "/api/v1/simulation/stop":
		if r.Method != http.MethodPost {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		h.engine.Stop()
		recordAudit(r, h.auditor, "simulation.stop", "simulation", "engine")
		writeJSON(w, h.engine.Status())
	case "/api/v1/simulation/status":
		if r.Method != http.MethodGet {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		writeJSON(w, h.engine.Status())
	default:
		w.WriteHeader(http.StatusNotFound)
	}
}

// recordAudit writes one operator action to the audit trail. Audit
// failures never surface to the caller.
func recordAudit(r *http.Request, auditor audit.Logger, action, resourceType, resourceID string) {
	if auditor == nil {
		return
	}
	ctx := r.Context()
	_ = auditor.Log(ctx, audit.Entry{
		Actor:        auth.SubjectFromContext(ctx),
		Role:         string(auth.RoleFromContext(ctx)),
		Action:       action,
		ResourceType: resourceType,
		ResourceID:   resourceID,
		IP:           r.RemoteAddr,
		UserAgent:    r.UserAgent(),
	})
}

func writeJSON(w http.ResponseWriter, value any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(value)
}

func parseTimeQuery(r *http.Request, key string) (time.Time, error) {
	value := r.URL.Query().Get(key)
	if value == "" {
		return time.Time{}, errors.New(key + " is required")
	}
	parsed, err := time.Parse(timeLayout, value)
	if err != nil {
		return time.Time{}, errors.New(key + " must be RFC3339")
	}
	return parsed.UTC(), nil
}

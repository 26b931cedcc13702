package application

import (
	"context"
	"errors"
	"fmt"
	"time"

	alertapp "github.com/Moori-Sense/Backend/internal/alerts/application"
	"github.com/Moori-Sense/Backend/internal/lines"
	tension "github.com/Moori-Sense/Backend/internal/tension/domain"
)

// DefaultDownsampleCap bounds the number of points a chart query returns.
const DefaultDownsampleCap = 500

// QueryService serves historical tension series for charts. Statistics
// are computed over the raw window before any downsampling.
type QueryService struct {
	registry *lines.Registry
	store    Store
	alerts   *alertapp.Manager
	cap      int
}

// QueryOption customizes the query service.
type QueryOption func(*QueryService)

// WithDownsampleCap overrides the chart point cap. Zero disables
// downsampling entirely.
func WithDownsampleCap(cap int) QueryOption {
	return func(q *QueryService) {
		q.cap = cap
	}
}

// NewQueryService constructs the chart query service.
func NewQueryService(registry *lines.Registry, store Store, alertManager *alertapp.Manager, opts ...QueryOption) (*QueryService, error) {
	if registry == nil {
		return nil, errors.New("query: nil line registry")
	}
	if store == nil {
		return nil, errors.New("query: nil store")
	}
	service := &QueryService{
		registry: registry,
		store:    store,
		alerts:   alertManager,
		cap:      DefaultDownsampleCap,
	}
	for _, opt := range opts {
		opt(service)
	}
	return service, nil
}

// Series returns the readings for one line within [from, to], downsampled
// to the configured cap, with exact statistics over the full window.
func (q *QueryService) Series(ctx context.Context, lineID string, from, to time.Time) (tension.ChartSeries, error) {
	if q == nil {
		return tension.ChartSeries{}, errors.New("query: nil service")
	}
	if !q.registry.Contains(lineID) {
		return tension.ChartSeries{}, fmt.Errorf("%w: %s", lines.ErrNotFound, lineID)
	}
	if to.Before(from) {
		return tension.ChartSeries{}, fmt.Errorf("%w: window end precedes start", tension.ErrInvalidReading)
	}

	readings, err := q.store.Query(ctx, lineID, from, to)
	if err != nil {
		return tension.ChartSeries{}, fmt.Errorf("query: %s: %w", lineID, err)
	}

	stats := tension.ComputeStats(readings)
	if q.alerts != nil {
		count, err := q.alerts.CountInWindow(ctx, lineID, from, to)
		if err != nil {
			return tension.ChartSeries{}, fmt.Errorf("query: alert count %s: %w", lineID, err)
		}
		stats.AlertCount = count
	}

	points := tension.Downsample(readings, q.cap)
	return tension.ChartSeries{
		LineID:   lineID,
		From:     from,
		To:       to,
		Points:   points,
		Stats:    stats,
		Sampled:  len(points) < len(readings),
		RawCount: len(readings),
	}, nil
}

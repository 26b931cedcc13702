package memory

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	alerts "github.com/Moori-Sense/Backend/internal/alerts/domain"
)

// Repository is the in-memory alert table. Alongside the id index it
// keeps a (line, family) index of open alerts so the one-open-episode
// invariant is enforced at the single mutation point, not by scanning.
type Repository struct {
	mu   sync.RWMutex
	byID map[string]*alerts.Alert
	open map[string]string // line|family -> open alert id
}

// NewRepository constructs an empty repository.
func NewRepository() *Repository {
	return &Repository{
		byID: make(map[string]*alerts.Alert),
		open: make(map[string]string),
	}
}

func openKey(lineID, alertType string) string {
	return lineID + "|" + alerts.Family(alertType)
}

// Create stores a new alert and registers it as the open episode for
// its (line, family).
func (r *Repository) Create(ctx context.Context, alert *alerts.Alert) error {
	_ = ctx
	if alert == nil || alert.ID == "" {
		return errors.New("alert repo: missing alert id")
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.byID[alert.ID]; exists {
		return errors.New("alert repo: duplicate alert id " + alert.ID)
	}
	key := openKey(alert.LineID, alert.Type)
	if existing, busy := r.open[key]; busy {
		return errors.New("alert repo: open alert already exists: " + existing)
	}
	copied := *alert
	r.byID[alert.ID] = &copied
	if !alert.Resolved {
		r.open[key] = alert.ID
	}
	return nil
}

// Update overwrites a stored alert in place.
func (r *Repository) Update(ctx context.Context, alert *alerts.Alert) error {
	_ = ctx
	if alert == nil || alert.ID == "" {
		return errors.New("alert repo: missing alert id")
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	stored, ok := r.byID[alert.ID]
	if !ok {
		return alerts.ErrNotFound
	}
	*stored = *alert
	return nil
}

// FindOpen returns the open alert for a (line, family), nil when the
// line is clear for that family.
func (r *Repository) FindOpen(ctx context.Context, lineID, alertType string) (*alerts.Alert, error) {
	_ = ctx
	r.mu.RLock()
	defer r.mu.RUnlock()
	id, ok := r.open[openKey(lineID, alertType)]
	if !ok {
		return nil, nil
	}
	alert := *r.byID[id]
	return &alert, nil
}

// GetByID returns one alert by id.
func (r *Repository) GetByID(ctx context.Context, id string) (*alerts.Alert, error) {
	_ = ctx
	r.mu.RLock()
	defer r.mu.RUnlock()
	stored, ok := r.byID[id]
	if !ok {
		return nil, alerts.ErrNotFound
	}
	alert := *stored
	return &alert, nil
}

// MarkResolved resolves an alert and clears the open index entry.
// Resolving an already-resolved alert is a no-op.
func (r *Repository) MarkResolved(ctx context.Context, id string, at time.Time) (*alerts.Alert, error) {
	_ = ctx
	r.mu.Lock()
	defer r.mu.Unlock()
	stored, ok := r.byID[id]
	if !ok {
		return nil, alerts.ErrNotFound
	}
	if !stored.Resolved {
		stored.Resolved = true
		stored.ResolvedAt = at
		stored.UpdatedAt = at
		delete(r.open, openKey(stored.LineID, stored.Type))
	}
	alert := *stored
	return &alert, nil
}

// ListActive returns unresolved alerts, newest first.
func (r *Repository) ListActive(ctx context.Context) ([]alerts.Alert, error) {
	_ = ctx
	r.mu.RLock()
	defer r.mu.RUnlock()
	var active []alerts.Alert
	for _, alert := range r.byID {
		if !alert.Resolved {
			active = append(active, *alert)
		}
	}
	sortNewestFirst(active)
	return active, nil
}

// ListByTime returns all alerts created within [from, to], newest first.
func (r *Repository) ListByTime(ctx context.Context, from, to time.Time) ([]alerts.Alert, error) {
	_ = ctx
	r.mu.RLock()
	defer r.mu.RUnlock()
	var result []alerts.Alert
	for _, alert := range r.byID {
		if alert.CreatedAt.Before(from) || alert.CreatedAt.After(to) {
			continue
		}
		result = append(result, *alert)
	}
	sortNewestFirst(result)
	return result, nil
}

// CountInWindow counts alerts created within [from, to] for one line.
func (r *Repository) CountInWindow(ctx context.Context, lineID string, from, to time.Time) (int, error) {
	_ = ctx
	r.mu.RLock()
	defer r.mu.RUnlock()
	count := 0
	for _, alert := range r.byID {
		if alert.LineID != lineID {
			continue
		}
		if alert.CreatedAt.Before(from) || alert.CreatedAt.After(to) {
			continue
		}
		count++
	}
	return count, nil
}

func sortNewestFirst(list []alerts.Alert) {
	sort.Slice(list, func(i, j int) bool {
		if list[i].CreatedAt.Equal(list[j].CreatedAt) {
			return list[i].ID < list[j].ID
		}
		return list[i].CreatedAt.After(list[j].CreatedAt)
	})
}

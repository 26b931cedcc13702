package lines

import (
	"errors"
	"sort"
	"sync"
)

// Registry holds the in-memory line table. Reads return copies; writes
// go through Update and are expected to come from a single writer.
type Registry struct {
	mu    sync.RWMutex
	byID  map[string]*Line
	order []string
}

// NewRegistry seeds a registry from a roster. Every line must carry a
// positive reference tension; anything else is a configuration error.
func NewRegistry(roster []Line) (*Registry, error) {
	if len(roster) == 0 {
		return nil, errors.New("lines: empty roster")
	}
	registry := &Registry{byID: make(map[string]*Line, len(roster))}
	for _, line := range roster {
		if line.LineID == "" {
			return nil, errors.New("lines: empty line id")
		}
		if line.ReferenceTension <= 0 {
			return nil, errors.New("lines: non-positive reference tension for " + line.LineID)
		}
		if line.MaxTension <= 0 {
			return nil, errors.New("lines: non-positive max tension for " + line.LineID)
		}
		if _, exists := registry.byID[line.LineID]; exists {
			return nil, errors.New("lines: duplicate line id " + line.LineID)
		}
		copied := line
		registry.byID[line.LineID] = &copied
		registry.order = append(registry.order, line.LineID)
	}
	sort.Strings(registry.order)
	return registry, nil
}

// Get returns a copy of one line.
func (r *Registry) Get(lineID string) (Line, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	line, ok := r.byID[lineID]
	if !ok {
		return Line{}, ErrNotFound
	}
	return *line, nil
}

// Contains reports whether a line id is part of the roster.
func (r *Registry) Contains(lineID string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.byID[lineID]
	return ok
}

// List returns copies of all lines in stable id order.
func (r *Registry) List() []Line {
	r.mu.RLock()
	defer r.mu.RUnlock()
	result := make([]Line, 0, len(r.order))
	for _, id := range r.order {
		result = append(result, *r.byID[id])
	}
	return result
}

// Update applies a mutation to one line under the registry lock.
func (r *Registry) Update(lineID string, apply func(*Line)) error {
	if apply == nil {
		return errors.New("lines: nil update")
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	line, ok := r.byID[lineID]
	if !ok {
		return ErrNotFound
	}
	apply(line)
	return nil
}

package memory

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	tension "github.com/Moori-Sense/Backend/internal/tension/domain"
)

// Store is the in-memory append-only time series, one ordered slice per
// line. Appends come from the single-writer gateway; queries copy.
type Store struct {
	mu     sync.RWMutex
	byLine map[string][]tension.Reading
}

// NewStore constructs an empty store.
func NewStore() *Store {
	return &Store{byLine: make(map[string][]tension.Reading)}
}

// Append adds a reading to its line's history. Timestamps must be
// non-decreasing per line; the gateway validates before calling.
func (s *Store) Append(ctx context.Context, reading tension.Reading) error {
	_ = ctx
	if reading.LineID == "" || reading.Timestamp.IsZero() {
		return errors.New("tension store: missing line id or timestamp")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	history := s.byLine[reading.LineID]
	if n := len(history); n > 0 && reading.Timestamp.Before(history[n-1].Timestamp) {
		return errors.New("tension store: timestamp regression for " + reading.LineID)
	}
	s.byLine[reading.LineID] = append(history, reading)
	return nil
}

// Query returns readings for one line within [from, to], ascending by
// timestamp. An empty window yields an empty slice, not an error.
func (s *Store) Query(ctx context.Context, lineID string, from, to time.Time) ([]tension.Reading, error) {
	_ = ctx
	s.mu.RLock()
	history := s.byLine[lineID]
	s.mu.RUnlock()
	if len(history) == 0 {
		return nil, nil
	}

	// History is sorted by construction; binary-search the bounds.
	lo := sort.Search(len(history), func(i int) bool {
		return !history[i].Timestamp.Before(from)
	})
	hi := sort.Search(len(history), func(i int) bool {
		return history[i].Timestamp.After(to)
	})
	if lo >= hi {
		return nil, nil
	}

	result := make([]tension.Reading, hi-lo)
	copy(result, history[lo:hi])
	return result, nil
}

// LastTimestamp returns the newest stored timestamp for a line, zero if
// the line has no history yet.
func (s *Store) LastTimestamp(lineID string) time.Time {
	s.mu.RLock()
	defer s.mu.RUnlock()
	history := s.byLine[lineID]
	if len(history) == 0 {
		return time.Time{}
	}
	return history[len(history)-1].Timestamp
}

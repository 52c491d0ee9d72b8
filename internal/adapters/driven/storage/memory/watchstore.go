package memory

import (
	"context"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/custodia-labs/chanscout/internal/core/domain"
	"github.com/custodia-labs/chanscout/internal/core/ports/driven"
)

// Ensure WatchStore implements the interfaces.
var (
	_ driven.WatchStore     = (*WatchStore)(nil)
	_ driven.WatermarkStore = (*WatchStore)(nil)
)

// WatchStore holds watches and their watermarks in memory.
type WatchStore struct {
	mu      sync.RWMutex
	watches map[string]domain.Watch
	marks   map[string]domain.Watermarks
}

// NewWatchStore creates an empty watch store.
func NewWatchStore() *WatchStore {
	return &WatchStore{
		watches: make(map[string]domain.Watch),
		marks:   make(map[string]domain.Watermarks),
	}
}

// GetWatch returns nil when the watch does not exist.
func (s *WatchStore) GetWatch(_ context.Context, id string) (*domain.Watch, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	w, ok := s.watches[id]
	if !ok {
		return nil, nil
	}
	return cloneWatch(w), nil
}

// ListWatches returns all watches ordered by name, then ID.
func (s *WatchStore) ListWatches(_ context.Context) ([]domain.Watch, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]domain.Watch, 0, len(s.watches))
	for _, w := range s.watches {
		out = append(out, *cloneWatch(w))
	}
	slices.SortFunc(out, func(a, b domain.Watch) int {
		if c := strings.Compare(a.Name, b.Name); c != 0 {
			return c
		}
		return strings.Compare(a.ID, b.ID)
	})
	return out, nil
}

// SaveWatch creates or replaces a watch.
func (s *WatchStore) SaveWatch(_ context.Context, w *domain.Watch) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.watches[w.ID] = *cloneWatch(*w)
	return nil
}

// UpdateSchedule changes the schedule of a watch that is still present.
func (s *WatchStore) UpdateSchedule(_ context.Context, id string, lastRun, nextRun time.Time, lastError string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	w, ok := s.watches[id]
	if !ok {
		return domain.ErrWatchNotFound
	}
	w.LastRun, w.NextRun, w.LastError = lastRun, nextRun, lastError
	s.watches[id] = w
	return nil
}

// DeleteWatch removes a watch and its watermarks.
func (s *WatchStore) DeleteWatch(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.watches[id]; !ok {
		return domain.ErrWatchNotFound
	}
	delete(s.watches, id)
	delete(s.marks, id)
	return nil
}

// Get returns a copy of the watermarks for a watch.
func (s *WatchStore) Get(_ context.Context, watchID string) (domain.Watermarks, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.marks[watchID].Clone(), nil
}

// Save replaces the watermarks for a watch.
func (s *WatchStore) Save(_ context.Context, watchID string, marks domain.Watermarks) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(marks) == 0 {
		delete(s.marks, watchID)
		return nil
	}
	s.marks[watchID] = marks.Clone()
	return nil
}

func cloneWatch(w domain.Watch) *domain.Watch {
	w.Keywords = slices.Clone(w.Keywords)
	w.Channels = slices.Clone(w.Channels)
	return &w
}

package memory

import (
	"context"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/custodia-labs/chanscout/internal/core/domain"
	"github.com/custodia-labs/chanscout/internal/core/ports/driven"
)

// Ensure RequestStore implements the interface.
var _ driven.RequestStore = (*RequestStore)(nil)

// RequestStore is an in-memory request log.
type RequestStore struct {
	mu      sync.RWMutex
	records []domain.RequestRecord
}

// NewRequestStore creates an empty request log.
func NewRequestStore() *RequestStore {
	return &RequestStore{}
}

// Record appends a copy of rec, assigning ID and RecordedAt when unset.
func (s *RequestStore) Record(_ context.Context, rec *domain.RequestRecord) error {
	if rec.ID == "" {
		rec.ID = uuid.NewString()
	}
	if rec.RecordedAt.IsZero() {
		rec.RecordedAt = time.Now().UTC()
	}

	stored := *rec
	stored.Result = rec.Result.Clone()

	s.mu.Lock()
	defer s.mu.Unlock()
	s.records = append(s.records, stored)
	return nil
}

// Get retrieves a record by ID.
func (s *RequestStore) Get(_ context.Context, id string) (*domain.RequestRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, rec := range s.records {
		if rec.ID == id {
			rec.Result = rec.Result.Clone()
			return &rec, nil
		}
	}
	return nil, domain.ErrNotFound
}

// List returns records most recent first.
func (s *RequestStore) List(_ context.Context, filter domain.HistoryFilter) ([]domain.RequestRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]domain.RequestRecord, 0, len(s.records))
	for i := len(s.records) - 1; i >= 0; i-- {
		rec := s.records[i]
		if filter.Requester != "" && rec.Request.Requester != filter.Requester {
			continue
		}
		rec.Result = rec.Result.Clone()
		out = append(out, rec)
	}
	slices.SortStableFunc(out, func(a, b domain.RequestRecord) int {
		return b.RecordedAt.Compare(a.RecordedAt)
	})
	if filter.Limit > 0 && len(out) > filter.Limit {
		out = out[:filter.Limit]
	}
	return out, nil
}

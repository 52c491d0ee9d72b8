package services

import (
	"context"
	"fmt"

	"github.com/custodia-labs/chanscout/internal/core/domain"
	"github.com/custodia-labs/chanscout/internal/core/ports/driven"
	"github.com/custodia-labs/chanscout/internal/core/ports/driving"
)

// Ensure HistoryService implements the interface.
var _ driving.HistoryService = (*HistoryService)(nil)

// uncachedSearcher re-runs a request without touching cache or log.
type uncachedSearcher interface {
	SearchUncached(ctx context.Context, req domain.SearchRequest) (*domain.ResultSet, error)
}

// HistoryService reads the request log and replays recorded requests.
type HistoryService struct {
	store  driven.RequestStore
	search uncachedSearcher
}

// NewHistoryService creates a new history service.
func NewHistoryService(store driven.RequestStore, search uncachedSearcher) *HistoryService {
	return &HistoryService{store: store, search: search}
}

// List returns recorded requests, most recent first.
func (s *HistoryService) List(ctx context.Context, filter domain.HistoryFilter) ([]domain.RequestRecord, error) {
	return s.store.List(ctx, filter)
}

// Get retrieves one record.
func (s *HistoryService) Get(ctx context.Context, id string) (*domain.RequestRecord, error) {
	return s.store.Get(ctx, id)
}

// Stats summarises the whole log.
func (s *HistoryService) Stats(ctx context.Context) (*domain.HistoryStats, error) {
	records, err := s.store.List(ctx, domain.HistoryFilter{})
	if err != nil {
		return nil, fmt.Errorf("list requests: %w", err)
	}

	keywords := make(map[string]struct{})
	channels := make(map[string]struct{})
	requesters := make(map[string]struct{})
	stats := &domain.HistoryStats{TotalRequests: len(records)}

	for i := range records {
		rec := &records[i]
		if rec.Cached {
			stats.CachedRequests++
		}
		for _, k := range rec.Request.Keywords {
			keywords[k] = struct{}{}
		}
		for _, c := range rec.Request.Channels {
			channels[c] = struct{}{}
		}
		if rec.Request.Requester != "" {
			requesters[rec.Request.Requester] = struct{}{}
		}
		if rec.RecordedAt.After(stats.LastRequest) {
			stats.LastRequest = rec.RecordedAt
		}
	}

	stats.UniqueKeywords = len(keywords)
	stats.UniqueChannels = len(channels)
	stats.UniqueRequesters = len(requesters)
	return stats, nil
}

// Replay re-runs a recorded request without the cache and reports which
// matches appeared or disappeared since it was recorded.
func (s *HistoryService) Replay(ctx context.Context, id string) (*domain.ReplayDiff, error) {
	if s.search == nil {
		return nil, domain.ErrSessionNotConfigured
	}
	rec, err := s.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	current, err := s.search.SearchUncached(ctx, rec.Request)
	if err != nil {
		return nil, fmt.Errorf("replay %s: %w", id, err)
	}

	diff := &domain.ReplayDiff{Record: rec, Current: current}
	var recorded []domain.MatchedMessage
	if rec.Result != nil {
		recorded = rec.Result.Matches
	}

	before := make(map[domain.MessageKey]struct{}, len(recorded))
	for _, m := range recorded {
		before[m.Key()] = struct{}{}
	}
	after := make(map[domain.MessageKey]struct{}, len(current.Matches))
	for _, m := range current.Matches {
		after[m.Key()] = struct{}{}
		if _, ok := before[m.Key()]; !ok {
			diff.Added = append(diff.Added, m)
		}
	}
	for _, m := range recorded {
		if _, ok := after[m.Key()]; !ok {
			diff.Removed = append(diff.Removed, m)
		}
	}
	return diff, nil
}

package mcp

import (
	"context"

	"github.com/custodia-labs/chanscout/internal/core/domain"
)

// mockSearchService is a mock implementation of driving.SearchService.
type mockSearchService struct {
	result  *domain.ResultSet
	err     error
	lastReq domain.SearchRequest
	stats   domain.CacheStats
}

func (m *mockSearchService) Search(_ context.Context, req domain.SearchRequest) (*domain.ResultSet, error) {
	m.lastReq = req
	if m.err != nil {
		return nil, m.err
	}
	if m.result == nil {
		return &domain.ResultSet{Matches: []domain.MatchedMessage{}}, nil
	}
	return m.result, nil
}

func (m *mockSearchService) SearchIncremental(
	_ context.Context,
	_ domain.SearchRequest,
	marks domain.Watermarks,
) (*domain.ResultSet, domain.Watermarks, error) {
	return &domain.ResultSet{}, marks, m.err
}

func (m *mockSearchService) CacheStats() domain.CacheStats {
	return m.stats
}

// mockHistoryService is a mock implementation of driving.HistoryService.
type mockHistoryService struct {
	records    []domain.RequestRecord
	record     *domain.RequestRecord
	diff       *domain.ReplayDiff
	err        error
	lastFilter domain.HistoryFilter
}

func (m *mockHistoryService) List(_ context.Context, filter domain.HistoryFilter) ([]domain.RequestRecord, error) {
	m.lastFilter = filter
	return m.records, m.err
}

func (m *mockHistoryService) Get(_ context.Context, _ string) (*domain.RequestRecord, error) {
	return m.record, m.err
}

func (m *mockHistoryService) Stats(_ context.Context) (*domain.HistoryStats, error) {
	return &domain.HistoryStats{TotalRequests: len(m.records)}, m.err
}

func (m *mockHistoryService) Replay(_ context.Context, _ string) (*domain.ReplayDiff, error) {
	return m.diff, m.err
}

// mockWatchService is a mock implementation of driving.WatchService.
type mockWatchService struct {
	watches []domain.Watch
	err     error
}

func (m *mockWatchService) Add(_ context.Context, _ *domain.Watch) error { return m.err }
func (m *mockWatchService) Remove(_ context.Context, _ string) error { return m.err }
func (m *mockWatchService) List(_ context.Context) ([]domain.Watch, error) {
	return m.watches, m.err
}
func (m *mockWatchService) Sync(_ context.Context, _ string, _ []domain.Watch) error { return m.err }
func (m *mockWatchService) RunOnce(_ context.Context, _ string) (*domain.WatchResult, error) {
	return nil, m.err
}
func (m *mockWatchService) Start(_ context.Context) error { return m.err }
func (m *mockWatchService) Stop() error { return m.err }

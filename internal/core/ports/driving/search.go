package driving

import (
	"context"

	"github.com/custodia-labs/chanscout/internal/core/domain"
)

// SearchService provides channel keyword search to external actors.
type SearchService interface {
	// Search returns matches for the request, served from cache when fresh.
	// Unreachable channels mark the result partial instead of failing it.
	Search(ctx context.Context, req domain.SearchRequest) (*domain.ResultSet, error)

	// SearchIncremental bypasses the cache and stops each channel at its
	// watermark. Returns the advanced watermarks; marks is not modified.
	SearchIncremental(ctx context.Context, req domain.SearchRequest, marks domain.Watermarks) (*domain.ResultSet, domain.Watermarks, error)

	// CacheStats returns result cache telemetry.
	CacheStats() domain.CacheStats
}

// HistoryService exposes the request log.
type HistoryService interface {
	// List returns recorded requests, most recent first.
	List(ctx context.Context, filter domain.HistoryFilter) ([]domain.RequestRecord, error)

	// Get retrieves one record.
	Get(ctx context.Context, id string) (*domain.RequestRecord, error)

	// Stats summarises the log.
	Stats(ctx context.Context) (*domain.HistoryStats, error)

	// Replay re-runs a recorded request without the cache and diffs it.
	Replay(ctx context.Context, id string) (*domain.ReplayDiff, error)
}

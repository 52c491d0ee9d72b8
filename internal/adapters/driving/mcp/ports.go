package mcp

import (
	"github.com/custodia-labs/chanscout/internal/core/domain"
	"github.com/custodia-labs/chanscout/internal/core/ports/driving"
)

// Ports aggregates all driving port interfaces required by the MCP server.
// This provides a single injection point for dependency injection.
type Ports struct {
	// Search runs channel keyword searches.
	Search driving.SearchService

	// History exposes the request log. Optional.
	History driving.HistoryService

	// Watch lists saved watches. Optional.
	Watch driving.WatchService

	// Limits caps keywords and channels per tool call.
	Limits domain.RequestLimits
}

// Validate ensures all required ports are set.
// Returns an error if any required port is nil.
func (p *Ports) Validate() error {
	if p.Search == nil {
		return ErrMissingSearchService
	}
	return nil
}

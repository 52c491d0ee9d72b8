package mcp

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/chanscout/internal/core/domain"
)

func TestExtractRequestID(t *testing.T) {
	tests := []struct {
		name     string
		uri      string
		expected string
	}{
		{"valid uri", "chanscout://requests/abc-123", "abc-123"},
		{"empty id", "chanscout://requests/", ""},
		{"nested path", "chanscout://requests/abc/extra", ""},
		{"wrong scheme", "other://requests/abc", ""},
		{"wrong resource", "chanscout://watches/abc", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, extractRequestID(tt.uri))
		})
	}
}

// Helper to create a ReadResourceRequest with the given URI.
func makeReadResourceRequest(uri string) *mcp.ReadResourceRequest {
	return &mcp.ReadResourceRequest{
		Params: &mcp.ReadResourceParams{
			URI: uri,
		},
	}
}

func TestServer_handleCacheResource(t *testing.T) {
	search := &mockSearchService{stats: domain.CacheStats{Hits: 3, Misses: 2, Entries: 1}}
	server := newTestServer(t, &Ports{Search: search})

	result, err := server.handleCacheResource(context.Background(), makeReadResourceRequest("chanscout://cache"))

	require.NoError(t, err)
	require.Len(t, result.Contents, 1)
	assert.Equal(t, "application/json", result.Contents[0].MIMEType)
	assert.Contains(t, result.Contents[0].Text, `"hits": 3`)
	assert.Contains(t, result.Contents[0].Text, `"misses": 2`)
}

func TestServer_handleWatchesResource(t *testing.T) {
	ctx := context.Background()

	t.Run("nil watch service returns empty list", func(t *testing.T) {
		server := newTestServer(t, &Ports{Search: &mockSearchService{}})

		result, err := server.handleWatchesResource(ctx, makeReadResourceRequest("chanscout://watches"))

		require.NoError(t, err)
		require.Len(t, result.Contents, 1)
		assert.Equal(t, "[]", result.Contents[0].Text)
	})

	t.Run("returns watches", func(t *testing.T) {
		watch := &mockWatchService{watches: []domain.Watch{
			{ID: "w1", Name: "phones", Keywords: []string{"iphone"}, Channels: []string{"deals"}, Interval: time.Minute, Enabled: true},
		}}
		server := newTestServer(t, &Ports{Search: &mockSearchService{}, Watch: watch})

		result, err := server.handleWatchesResource(ctx, makeReadResourceRequest("chanscout://watches"))

		require.NoError(t, err)
		assert.Contains(t, result.Contents[0].Text, `"name": "phones"`)
		assert.Contains(t, result.Contents[0].Text, "iphone")
	})

	t.Run("returns error on list failure", func(t *testing.T) {
		watch := &mockWatchService{err: errors.New("database error")}
		server := newTestServer(t, &Ports{Search: &mockSearchService{}, Watch: watch})

		_, err := server.handleWatchesResource(ctx, makeReadResourceRequest("chanscout://watches"))

		require.Error(t, err)
		assert.Contains(t, err.Error(), "listing watches")
	})
}

func TestServer_handleRequestResource(t *testing.T) {
	ctx := context.Background()

	t.Run("nil history service returns not found", func(t *testing.T) {
		server := newTestServer(t, &Ports{Search: &mockSearchService{}})

		_, err := server.handleRequestResource(ctx, makeReadResourceRequest("chanscout://requests/r1"))
		require.Error(t, err)
	})

	t.Run("invalid uri returns not found", func(t *testing.T) {
		server := newTestServer(t, &Ports{Search: &mockSearchService{}, History: &mockHistoryService{}})

		_, err := server.handleRequestResource(ctx, makeReadResourceRequest("chanscout://requests/"))
		require.Error(t, err)
	})

	t.Run("returns record", func(t *testing.T) {
		history := &mockHistoryService{record: &domain.RequestRecord{
			ID:      "r1",
			Request: domain.SearchRequest{Keywords: []string{"iphone"}, Channels: []string{"deals"}, MaxResults: 5},
			Cached:  true,
		}}
		server := newTestServer(t, &Ports{Search: &mockSearchService{}, History: history})

		result, err := server.handleRequestResource(ctx, makeReadResourceRequest("chanscout://requests/r1"))

		require.NoError(t, err)
		require.Len(t, result.Contents, 1)
		assert.Contains(t, result.Contents[0].Text, `"id": "r1"`)
		assert.Contains(t, result.Contents[0].Text, `"cached": true`)
	})

	t.Run("returns error on get failure", func(t *testing.T) {
		history := &mockHistoryService{err: domain.ErrNotFound}
		server := newTestServer(t, &Ports{Search: &mockSearchService{}, History: history})

		_, err := server.handleRequestResource(ctx, makeReadResourceRequest("chanscout://requests/r1"))

		require.Error(t, err)
		assert.ErrorIs(t, err, domain.ErrNotFound)
	})
}

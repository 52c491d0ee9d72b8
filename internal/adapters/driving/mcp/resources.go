package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/modelcontextprotocol/go-sdk/mcp"
)

const (
	// uriScheme is the custom URI scheme for chanscout resources.
	uriScheme = "chanscout://"
)

// registerResources registers all resource handlers with the MCP server.
func (s *Server) registerResources() {
	s.server.AddResource(&mcp.Resource{
		URI:         uriScheme + "cache",
		Name:        "cache",
		Description: "Result cache hits, misses and size",
		MIMEType:    "application/json",
	}, s.handleCacheResource)

	s.server.AddResource(&mcp.Resource{
		URI:         uriScheme + "watches",
		Name:        "watches",
		Description: "Saved watches and their schedule",
		MIMEType:    "application/json",
	}, s.handleWatchesResource)

	s.server.AddResourceTemplate(&mcp.ResourceTemplate{
		URITemplate: uriScheme + "requests/{requestId}",
		Name:        "request",
		Description: "A recorded search request and its result",
		MIMEType:    "application/json",
	}, s.handleRequestResource)
}

// handleCacheResource returns result cache telemetry.
func (s *Server) handleCacheResource(
	_ context.Context,
	req *mcp.ReadResourceRequest,
) (*mcp.ReadResourceResult, error) {
	return jsonResource(req.Params.URI, s.ports.Search.CacheStats())
}

// handleWatchesResource returns all saved watches.
func (s *Server) handleWatchesResource(
	ctx context.Context,
	req *mcp.ReadResourceRequest,
) (*mcp.ReadResourceResult, error) {
	if s.ports.Watch == nil {
		return &mcp.ReadResourceResult{
			Contents: []*mcp.ResourceContents{{
				URI:      req.Params.URI,
				MIMEType: "application/json",
				Text:     "[]",
			}},
		}, nil
	}

	watches, err := s.ports.Watch.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("listing watches: %w", err)
	}
	return jsonResource(req.Params.URI, watches)
}

// handleRequestResource returns one record of the request log.
func (s *Server) handleRequestResource(
	ctx context.Context,
	req *mcp.ReadResourceRequest,
) (*mcp.ReadResourceResult, error) {
	if s.ports.History == nil {
		return nil, mcp.ResourceNotFoundError(req.Params.URI)
	}

	id := extractRequestID(req.Params.URI)
	if id == "" {
		return nil, mcp.ResourceNotFoundError(req.Params.URI)
	}

	rec, err := s.ports.History.Get(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("getting request: %w", err)
	}
	return jsonResource(req.Params.URI, rec)
}

func jsonResource(uri string, v any) (*mcp.ReadResourceResult, error) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshalling %s: %w", uri, err)
	}
	return &mcp.ReadResourceResult{
		Contents: []*mcp.ResourceContents{{
			URI:      uri,
			MIMEType: "application/json",
			Text:     string(data),
		}},
	}, nil
}

// extractRequestID extracts the id from a URI like chanscout://requests/{requestId}.
func extractRequestID(uri string) string {
	const prefix = uriScheme + "requests/"

	if !strings.HasPrefix(uri, prefix) {
		return ""
	}

	id := strings.TrimPrefix(uri, prefix)
	if strings.Contains(id, "/") {
		return ""
	}
	return id
}

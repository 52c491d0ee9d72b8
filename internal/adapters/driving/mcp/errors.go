// Package mcp provides an MCP (Model Context Protocol) server adapter for chanscout.
// It lets AI assistants search Telegram channels and browse the request log.
package mcp

import "errors"

// ErrMissingSearchService is returned when the search service is not provided.
var ErrMissingSearchService = errors.New("mcp: search service is required")

// ErrHistoryUnavailable is returned by history tools when no request log is wired.
var ErrHistoryUnavailable = errors.New("mcp: request history is not available")

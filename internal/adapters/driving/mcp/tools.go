package mcp

import (
	"context"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/custodia-labs/chanscout/internal/core/domain"
)

// SearchChannelsInput is the input schema for the search_channels tool.
type SearchChannelsInput struct {
	Keywords []string `json:"keywords" jsonschema:"keywords to look for; a message matches if it contains any of them"`
	Channels []string `json:"channels" jsonschema:"channel usernames or t.me links to search"`
	Since    string   `json:"since,omitempty" jsonschema:"only messages newer than this span, e.g. 90m, 24h or 7d; the start is rounded down to the minute"`
	Limit    int      `json:"limit,omitempty" jsonschema:"maximum number of matches to return (default 50)"`
	Refresh  bool     `json:"refresh,omitempty" jsonschema:"ignore any cached result and search again"`
}

// SearchChannelsOutput is the output schema for the search_channels tool.
type SearchChannelsOutput struct {
	Matches   []MatchOutput   `json:"matches"`
	Count     int             `json:"count"`
	Partial   bool            `json:"partial"`
	FromCache bool            `json:"from_cache"`
	Channels  []ChannelOutput `json:"channels,omitempty"`
}

// MatchOutput represents a single matched message.
type MatchOutput struct {
	Channel   string   `json:"channel"`
	MessageID int64    `json:"message_id"`
	PostedAt  string   `json:"posted_at"`
	Keywords  []string `json:"keywords"`
	Snippet   string   `json:"snippet"`
	Link      string   `json:"link,omitempty"`
}

// ChannelOutput reports how one channel's walk ended.
type ChannelOutput struct {
	Channel  string `json:"channel"`
	Scanned  int    `json:"scanned"`
	Matched  int    `json:"matched"`
	Complete bool   `json:"complete"`
	Error    string `json:"error,omitempty"`
}

// SearchHistoryInput is the input schema for the search_history tool.
type SearchHistoryInput struct {
	Requester string `json:"requester,omitempty" jsonschema:"only requests made by this requester"`
	Limit     int    `json:"limit,omitempty" jsonschema:"maximum number of requests to return (default 20)"`
}

// SearchHistoryOutput is the output schema for the search_history tool.
type SearchHistoryOutput struct {
	Requests []RequestOutput `json:"requests"`
	Count    int             `json:"count"`
}

// RequestOutput summarises one recorded request.
type RequestOutput struct {
	ID         string   `json:"id"`
	Keywords   []string `json:"keywords"`
	Channels   []string `json:"channels"`
	Requester  string   `json:"requester,omitempty"`
	Matches    int      `json:"matches"`
	Partial    bool     `json:"partial"`
	Cached     bool     `json:"cached"`
	RecordedAt string   `json:"recorded_at"`
}

// ReplayRequestInput is the input schema for the replay_request tool.
type ReplayRequestInput struct {
	ID string `json:"id" jsonschema:"id of the recorded request to run again"`
}

// ReplayRequestOutput is the output schema for the replay_request tool.
type ReplayRequestOutput struct {
	ID        string        `json:"id"`
	Unchanged bool          `json:"unchanged"`
	Added     []MatchOutput `json:"added"`
	Removed   []MatchOutput `json:"removed"`
}

const defaultHistoryLimit = 20

// registerTools registers all tool handlers with the MCP server.
func (s *Server) registerTools() {
	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "search_channels",
		Description: "Search recent Telegram channel messages for keywords",
	}, s.handleSearchChannels)

	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "search_history",
		Description: "List previous channel searches, most recent first",
	}, s.handleSearchHistory)

	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "replay_request",
		Description: "Run a recorded search again and report matches that appeared or disappeared",
	}, s.handleReplayRequest)
}

// handleSearchChannels handles the search_channels tool invocation.
func (s *Server) handleSearchChannels(
	ctx context.Context,
	_ *mcp.CallToolRequest,
	input SearchChannelsInput,
) (*mcp.CallToolResult, SearchChannelsOutput, error) {
	lookback, err := domain.ParseLookback(input.Since)
	if err != nil {
		return nil, SearchChannelsOutput{}, err
	}
	var window domain.TimeWindow
	if lookback > 0 {
		window = domain.LastWindow(s.now(), lookback)
	}

	req, err := domain.NewSearchRequest(domain.RequestParams{
		Keywords:     input.Keywords,
		Channels:     input.Channels,
		Window:       window,
		MaxResults:   input.Limit,
		ForceRefresh: input.Refresh,
		Requester:    "mcp",
	}, s.ports.Limits)
	if err != nil {
		return nil, SearchChannelsOutput{}, err
	}

	rs, err := s.ports.Search.Search(ctx, req)
	if err != nil {
		return nil, SearchChannelsOutput{}, err
	}

	output := SearchChannelsOutput{
		Matches:   toMatchOutputs(rs.Matches),
		Count:     len(rs.Matches),
		Partial:   rs.Partial,
		FromCache: rs.FromCache,
	}
	for _, ch := range rs.Channels {
		output.Channels = append(output.Channels, ChannelOutput{
			Channel:  ch.Channel,
			Scanned:  ch.Scanned,
			Matched:  ch.Matched,
			Complete: ch.Complete,
			Error:    ch.Error,
		})
	}
	return nil, output, nil
}

// handleSearchHistory handles the search_history tool invocation.
func (s *Server) handleSearchHistory(
	ctx context.Context,
	_ *mcp.CallToolRequest,
	input SearchHistoryInput,
) (*mcp.CallToolResult, SearchHistoryOutput, error) {
	if s.ports.History == nil {
		return nil, SearchHistoryOutput{}, ErrHistoryUnavailable
	}

	limit := input.Limit
	if limit <= 0 {
		limit = defaultHistoryLimit
	}

	records, err := s.ports.History.List(ctx, domain.HistoryFilter{
		Requester: input.Requester,
		Limit:     limit,
	})
	if err != nil {
		return nil, SearchHistoryOutput{}, err
	}

	output := SearchHistoryOutput{
		Requests: make([]RequestOutput, len(records)),
		Count:    len(records),
	}
	for i := range records {
		rec := &records[i]
		out := RequestOutput{
			ID:         rec.ID,
			Keywords:   rec.Request.Keywords,
			Channels:   rec.Request.Channels,
			Requester:  rec.Request.Requester,
			Cached:     rec.Cached,
			RecordedAt: rec.RecordedAt.UTC().Format(time.RFC3339),
		}
		if rec.Result != nil {
			out.Matches = len(rec.Result.Matches)
			out.Partial = rec.Result.Partial
		}
		output.Requests[i] = out
	}
	return nil, output, nil
}

// handleReplayRequest handles the replay_request tool invocation.
func (s *Server) handleReplayRequest(
	ctx context.Context,
	_ *mcp.CallToolRequest,
	input ReplayRequestInput,
) (*mcp.CallToolResult, ReplayRequestOutput, error) {
	if s.ports.History == nil {
		return nil, ReplayRequestOutput{}, ErrHistoryUnavailable
	}

	diff, err := s.ports.History.Replay(ctx, input.ID)
	if err != nil {
		return nil, ReplayRequestOutput{}, err
	}

	return nil, ReplayRequestOutput{
		ID:        input.ID,
		Unchanged: diff.Unchanged(),
		Added:     toMatchOutputs(diff.Added),
		Removed:   toMatchOutputs(diff.Removed),
	}, nil
}

func toMatchOutputs(matches []domain.MatchedMessage) []MatchOutput {
	out := make([]MatchOutput, len(matches))
	for i := range matches {
		m := &matches[i]
		out[i] = MatchOutput{
			Channel:   m.Channel,
			MessageID: m.ID,
			PostedAt:  m.PostedAt.UTC().Format(time.RFC3339),
			Keywords:  m.Keywords,
			Snippet:   m.Snippet,
			Link:      m.Link,
		}
	}
	return out
}

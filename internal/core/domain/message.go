package domain

import (
	"slices"
	"time"
)

// RawMessage is one channel post as delivered by the session client.
// (Channel, ID) is unique; IDs grow monotonically within a channel.
type RawMessage struct {
	Channel  string    `json:"channel"`
	ID       int64     `json:"id"`
	Text     string    `json:"text"`
	PostedAt time.Time `json:"posted_at"`

	// Cursor is the page token the message was delivered under.
	Cursor string `json:"-"`
}

// Key identifies a message across channels.
func (m RawMessage) Key() MessageKey {
	return MessageKey{Channel: m.Channel, ID: m.ID}
}

// MessageKey is the (channel, message id) pair used for deduplication.
type MessageKey struct {
	Channel string
	ID      int64
}

// MatchedMessage is a RawMessage that matched at least one keyword.
type MatchedMessage struct {
	RawMessage

	// Keywords is the non-empty, sorted set of matched keywords.
	Keywords []string `json:"matched_keywords"`

	// Snippet holds the sentences around the match.
	Snippet string `json:"snippet"`

	// Link is the public permalink, empty for private channels.
	Link string `json:"link,omitempty"`
}

// NewMatchedMessage builds a MatchedMessage. Returns false when keywords is
// empty, since a message without matches must not be represented.
func NewMatchedMessage(msg RawMessage, keywords []string, snippet string) (MatchedMessage, bool) {
	if len(keywords) == 0 {
		return MatchedMessage{}, false
	}
	kws := slices.Clone(keywords)
	slices.Sort(kws)
	return MatchedMessage{
		RawMessage: msg,
		Keywords:   slices.Compact(kws),
		Snippet:    snippet,
		Link:       Permalink(msg.Channel, msg.ID),
	}, true
}

// ChannelStatus reports how one channel's walk ended.
type ChannelStatus struct {
	Channel string `json:"channel"`

	// Scanned is the number of messages read from history.
	Scanned int `json:"scanned"`

	// Matched is the number of messages that matched.
	Matched int `json:"matched"`

	// Complete is false when the walk ended early.
	Complete bool `json:"complete"`

	// Truncated is set when the walk stopped because max_results was exceeded.
	Truncated bool `json:"truncated,omitempty"`

	// Error describes why the walk ended early, if it did.
	Error string `json:"error,omitempty"`
}

// ResultSet is the merged outcome of one search.
type ResultSet struct {
	Fingerprint Fingerprint `json:"fingerprint"`

	// Matches are ordered most recent first, unique by (channel, id).
	Matches []MatchedMessage `json:"matches"`

	FetchedAt time.Time `json:"fetched_at"`

	// Partial is true if any channel did not finish or results were truncated.
	Partial bool `json:"is_partial"`

	// Channels holds per-channel telemetry in request order.
	Channels []ChannelStatus `json:"channels,omitempty"`

	// FromCache is set on the caller's copy when served from the cache.
	FromCache bool `json:"from_cache"`
}

// Clone returns a copy that shares no slices with r.
func (r *ResultSet) Clone() *ResultSet {
	if r == nil {
		return nil
	}
	out := *r
	out.Matches = slices.Clone(r.Matches)
	out.Channels = slices.Clone(r.Channels)
	return &out
}

// Page returns matches for a 1-based page of size perPage.
func (r *ResultSet) Page(page, perPage int) []MatchedMessage {
	if r == nil || perPage <= 0 || page <= 0 {
		return nil
	}
	start := (page - 1) * perPage
	if start >= len(r.Matches) {
		return nil
	}
	end := min(start+perPage, len(r.Matches))
	return r.Matches[start:end]
}

// Pages returns how many pages of size perPage the matches fill.
func (r *ResultSet) Pages(perPage int) int {
	if r == nil || perPage <= 0 || len(r.Matches) == 0 {
		return 0
	}
	return (len(r.Matches) + perPage - 1) / perPage
}

// SortMatches orders matches most recent first. Ties break on channel then
// descending id so the order is deterministic.
func SortMatches(matches []MatchedMessage) {
	slices.SortStableFunc(matches, func(a, b MatchedMessage) int {
		if c := b.PostedAt.Compare(a.PostedAt); c != 0 {
			return c
		}
		if a.Channel != b.Channel {
			if a.Channel < b.Channel {
				return -1
			}
			return 1
		}
		switch {
		case a.ID > b.ID:
			return -1
		case a.ID < b.ID:
			return 1
		}
		return 0
	})
}

// DedupeMatches removes repeated (channel, id) pairs keeping the first.
func DedupeMatches(matches []MatchedMessage) []MatchedMessage {
	seen := make(map[MessageKey]struct{}, len(matches))
	out := matches[:0]
	for _, m := range matches {
		if _, dup := seen[m.Key()]; dup {
			continue
		}
		seen[m.Key()] = struct{}{}
		out = append(out, m)
	}
	return out
}

// CacheEntry is a ResultSet held by the result cache until ExpiresAt.
type CacheEntry struct {
	Result    *ResultSet
	ExpiresAt time.Time
}

// Expired reports whether the entry must no longer be served at now.
func (e CacheEntry) Expired(now time.Time) bool {
	return !now.Before(e.ExpiresAt)
}

// CacheStats is result cache telemetry.
type CacheStats struct {
	Hits      int64 `json:"hits"`
	Misses    int64 `json:"misses"`
	Coalesced int64 `json:"coalesced"`
	Evictions int64 `json:"evictions"`
	Entries   int   `json:"entries"`
}

// Watermarks maps a channel to the highest message id already seen.
// Passed explicitly by callers of incremental search.
type Watermarks map[string]int64

// Clone returns an independent copy.
func (w Watermarks) Clone() Watermarks {
	out := make(Watermarks, len(w))
	for k, v := range w {
		out[k] = v
	}
	return out
}

// Advance raises the mark for channel to id if id is higher.
func (w Watermarks) Advance(channel string, id int64) {
	if id > w[channel] {
		w[channel] = id
	}
}

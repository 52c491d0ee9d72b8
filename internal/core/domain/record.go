package domain

import "time"

// RequestRecord is one entry of the append-only request log.
type RequestRecord struct {
	// ID is a unique identifier (UUID).
	ID string `json:"id"`

	Fingerprint Fingerprint   `json:"fingerprint"`
	Request     SearchRequest `json:"request"`

	// Result is the ResultSet returned to the caller.
	Result *ResultSet `json:"result"`

	// Cached is true when the result was served from the cache.
	Cached bool `json:"cached"`

	// RecordedAt is when the entry was appended.
	RecordedAt time.Time `json:"recorded_at"`
}

// HistoryFilter narrows a request log listing.
type HistoryFilter struct {
	// Requester restricts to one requester when non-empty.
	Requester string

	// Limit caps the number of records. Zero means no cap.
	Limit int
}

// HistoryStats summarises the request log.
type HistoryStats struct {
	TotalRequests    int       `json:"total_requests"`
	CachedRequests   int       `json:"cached_requests"`
	UniqueKeywords   int       `json:"unique_keywords"`
	UniqueChannels   int       `json:"unique_channels"`
	UniqueRequesters int       `json:"unique_requesters"`
	LastRequest      time.Time `json:"last_request"`
}

// ReplayDiff compares a recorded result with a fresh run of the same request.
type ReplayDiff struct {
	Record  *RequestRecord `json:"record"`
	Current *ResultSet     `json:"current"`

	// Added matches appear only in the fresh run; Removed only in the record.
	Added   []MatchedMessage `json:"added"`
	Removed []MatchedMessage `json:"removed"`
}

// Unchanged reports whether the fresh run found exactly the recorded matches.
func (d *ReplayDiff) Unchanged() bool {
	return len(d.Added) == 0 && len(d.Removed) == 0
}

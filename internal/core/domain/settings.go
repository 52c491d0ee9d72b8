package domain

import "time"

const unknownDescription = "Unknown"

// MatchMode defines how the keyword matcher compares keywords to text.
type MatchMode string

// Available match modes.
const (
	// MatchModeWord requires the keyword to appear as whole words.
	MatchModeWord MatchMode = "word"

	// MatchModeSubstring accepts the keyword anywhere in the text.
	MatchModeSubstring MatchMode = "substring"

	// MatchModeFuzzy accepts whole words, inflected forms and near misses.
	MatchModeFuzzy MatchMode = "fuzzy"
)

// IsValid returns true if the match mode is recognised.
func (m MatchMode) IsValid() bool {
	switch m {
	case MatchModeWord, MatchModeSubstring, MatchModeFuzzy:
		return true
	default:
		return false
	}
}

// String returns the string representation.
func (m MatchMode) String() string {
	return string(m)
}

// Description returns a human-readable description of the mode.
func (m MatchMode) Description() string {
	switch m {
	case MatchModeWord:
		return "Word (whole-word match)"
	case MatchModeSubstring:
		return "Substring (match anywhere)"
	case MatchModeFuzzy:
		return "Fuzzy (inflections and typos)"
	default:
		return unknownDescription
	}
}

// CacheSettings controls the result cache.
type CacheSettings struct {
	// TTL is how long a result set is served from cache.
	TTL time.Duration

	// MaxEntries caps the cache size. Zero means unbounded.
	MaxEntries int

	// CachePartial allows partial result sets to be cached.
	CachePartial bool
}

// RateSettings controls the rate controller budgets.
type RateSettings struct {
	// GlobalRPS and GlobalBurst size the connection-wide token bucket.
	GlobalRPS   float64
	GlobalBurst int

	// ChannelRPS and ChannelBurst size each per-channel token bucket.
	ChannelRPS   float64
	ChannelBurst int

	// MaxInFlight caps concurrent provider calls on the connection.
	MaxInFlight int
}

// FetchSettings controls channel history walks.
type FetchSettings struct {
	// PageSize is the number of messages requested per page.
	PageSize int

	// ScanLimit caps the messages read per channel per search.
	ScanLimit int

	// MaxChannels caps channels fetched simultaneously per search.
	MaxChannels int

	// ThrottleRetries caps rate-limited retries of one page.
	ThrottleRetries int

	// TransientRetries caps transient-failure retries of one page.
	TransientRetries int

	// BackoffBase and BackoffMax bound exponential backoff.
	BackoffBase time.Duration
	BackoffMax  time.Duration

	// TimeBudget bounds one search; expiry yields a partial result.
	TimeBudget time.Duration
}

// SessionSettings locates the chat-network gateway.
type SessionSettings struct {
	Endpoint string
	Token    string
}

// IsConfigured returns true if both endpoint and token are set.
func (s SessionSettings) IsConfigured() bool {
	return s.Endpoint != "" && s.Token != ""
}

// WatchSettings controls the polling watcher.
type WatchSettings struct {
	// Lookback bounds how far back every poll searches. It covers the
	// first poll of a watch, and after downtime longer than Lookback the
	// messages between the last poll and the window start are skipped.
	Lookback time.Duration

	// Tick is how often the watcher checks for due watches.
	Tick time.Duration

	// File optionally declares watches in TOML; reloaded on change.
	File string
}

// Settings holds every tunable of the search engine.
type Settings struct {
	Cache     CacheSettings
	Rate      RateSettings
	Fetch     FetchSettings
	MatchMode MatchMode
	Limits    RequestLimits
	Session   SessionSettings
	Watch     WatchSettings

	// DataDir holds the sqlite database.
	DataDir string
}

// DefaultSettings returns sensible defaults for all settings.
func DefaultSettings() Settings {
	return Settings{
		Cache: CacheSettings{
			TTL:        time.Hour,
			MaxEntries: 256,
		},
		Rate: RateSettings{
			GlobalRPS:    5,
			GlobalBurst:  10,
			ChannelRPS:   1,
			ChannelBurst: 3,
			MaxInFlight:  4,
		},
		Fetch: FetchSettings{
			PageSize:         100,
			ScanLimit:        500,
			MaxChannels:      3,
			ThrottleRetries:  3,
			TransientRetries: 3,
			BackoffBase:      500 * time.Millisecond,
			BackoffMax:       10 * time.Second,
			TimeBudget:       2 * time.Minute,
		},
		MatchMode: MatchModeWord,
		Limits: RequestLimits{
			MaxKeywords: DefaultMaxKeywords,
			MaxChannels: DefaultMaxChannels,
		},
		Watch: WatchSettings{
			Lookback: 24 * time.Hour,
			Tick:     time.Minute,
		},
	}
}

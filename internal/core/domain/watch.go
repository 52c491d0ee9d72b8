package domain

import "time"

// Watch is a saved search polled on an interval.
// Each poll searches only messages newer than the channel watermarks.
type Watch struct {
	// ID is the unique identifier for the watch.
	ID string `json:"id" toml:"id"`

	// Name is a human-readable label.
	Name string `json:"name" toml:"name"`

	// Keywords and Channels are raw caller input, normalised on each poll.
	Keywords []string `json:"keywords" toml:"keywords"`
	Channels []string `json:"channels" toml:"channels"`

	// Interval defines how often the watch should poll.
	Interval time.Duration `json:"interval" toml:"interval"`

	// LastRun is when the watch last polled.
	LastRun time.Time `json:"last_run" toml:"-"`

	// NextRun is when the watch should poll next.
	NextRun time.Time `json:"next_run" toml:"-"`

	// LastError contains the last error message, if any.
	LastError string `json:"last_error,omitempty" toml:"-"`

	// Enabled indicates whether the watch is active.
	Enabled bool `json:"enabled" toml:"enabled"`
}

// Due reports whether the watch should poll at now.
func (w *Watch) Due(now time.Time) bool {
	return w.Enabled && !now.Before(w.NextRun)
}

// WatchResult is the outcome of one poll.
type WatchResult struct {
	WatchID   string
	StartedAt time.Time
	EndedAt   time.Time

	// Matches are the messages newer than the previous watermarks.
	Matches []MatchedMessage

	// Partial mirrors ResultSet.Partial for the poll.
	Partial bool

	// Error contains the error message if the poll failed.
	Error string
}

// DefaultWatchInterval is used when a watch does not set one.
const DefaultWatchInterval = 5 * time.Minute

package domain

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"slices"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"
)

// Request limits inherited from the bot this engine serves.
const (
	// DefaultMaxResults is used when the caller does not set MaxResults.
	DefaultMaxResults = 50

	// DefaultMaxKeywords caps the number of keywords per request.
	DefaultMaxKeywords = 10

	// DefaultMaxChannels caps the number of channels per request.
	DefaultMaxChannels = 5

	// MinKeywordLength is the shortest keyword kept, in runes.
	MinKeywordLength = 2

	// MaxKeywordLength is the longest keyword kept, in runes.
	MaxKeywordLength = 50

	// WindowGranularity is the resolution of normalised time windows.
	// Bounds are widened to it so that repeated "last N hours" requests
	// within the same minute share a fingerprint.
	WindowGranularity = time.Minute

	fingerprintVersion = "v1"
)

// TimeWindow bounds a search by message time.
// A zero Start is unbounded below; a zero End is unbounded above.
type TimeWindow struct {
	Start time.Time `json:"start,omitempty"`
	End   time.Time `json:"end,omitempty"`
}

// LastWindow returns the window covering d up to now. Requests normalise
// it to whole minutes, and the widened bounds are the ones fetched, so a
// search may return messages up to a minute older than now-d.
func LastWindow(now time.Time, d time.Duration) TimeWindow {
	return TimeWindow{Start: now.Add(-d), End: now}
}

// IsZero reports whether the window is unbounded on both sides.
func (w TimeWindow) IsZero() bool {
	return w.Start.IsZero() && w.End.IsZero()
}

// Contains reports whether t falls inside the window (bounds inclusive).
func (w TimeWindow) Contains(t time.Time) bool {
	return !w.Older(t) && !w.Newer(t)
}

// Older reports whether t is before the window's lower bound.
// Histories arrive newest-first, so an older message ends the walk.
func (w TimeWindow) Older(t time.Time) bool {
	return !w.Start.IsZero() && t.Before(w.Start)
}

// Newer reports whether t is after the window's upper bound.
func (w TimeWindow) Newer(t time.Time) bool {
	return !w.End.IsZero() && t.After(w.End)
}

// Normalize converts the bounds to UTC and widens them to WindowGranularity.
// The widened window is used both for the fingerprint and for fetching.
func (w TimeWindow) Normalize() TimeWindow {
	var out TimeWindow
	if !w.Start.IsZero() {
		out.Start = w.Start.UTC().Truncate(WindowGranularity)
	}
	if !w.End.IsZero() {
		end := w.End.UTC()
		out.End = end.Truncate(WindowGranularity)
		if out.End.Before(end) {
			out.End = out.End.Add(WindowGranularity)
		}
	}
	return out
}

// String renders the window for logs and fingerprints.
func (w TimeWindow) String() string {
	format := func(t time.Time) string {
		if t.IsZero() {
			return "*"
		}
		return t.UTC().Format(time.RFC3339)
	}
	return format(w.Start) + ".." + format(w.End)
}

// ParseLookback parses a "last N" span such as "90m", "24h" or "7d".
// Empty input means no lower bound and returns 0.
func ParseLookback(s string) (time.Duration, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, nil
	}
	var d time.Duration
	if days, ok := strings.CutSuffix(s, "d"); ok {
		n, err := strconv.Atoi(days)
		if err != nil {
			return 0, invalid("since", "invalid day count %q", s)
		}
		d = time.Duration(n) * 24 * time.Hour
	} else {
		var err error
		if d, err = time.ParseDuration(s); err != nil {
			return 0, invalid("since", "invalid duration %q", s)
		}
	}
	if d <= 0 {
		return 0, invalid("since", "must be positive, got %q", s)
	}
	return d, nil
}

// SearchRequest is a normalised keyword search over a set of channels.
// Build it with NewSearchRequest and treat it as immutable afterwards.
type SearchRequest struct {
	// Keywords are lower-cased, whitespace-collapsed, unique and sorted.
	Keywords []string `json:"keywords"`

	// Channels are normalised channel usernames, unique and sorted.
	Channels []string `json:"channels"`

	// Window restricts matches by posting time.
	Window TimeWindow `json:"window"`

	// MaxResults caps the number of matches returned.
	MaxResults int `json:"max_results"`

	// ForceRefresh drops any cached result before searching.
	// Not part of the fingerprint.
	ForceRefresh bool `json:"force_refresh,omitempty"`

	// Requester labels who asked, for the request log only.
	// Not part of the fingerprint.
	Requester string `json:"requester,omitempty"`
}

// RequestParams is raw caller input for NewSearchRequest.
type RequestParams struct {
	Keywords     []string
	Channels     []string
	Window       TimeWindow
	MaxResults   int
	ForceRefresh bool
	Requester    string
}

// RequestLimits caps keyword and channel counts.
// Zero values fall back to the defaults.
type RequestLimits struct {
	MaxKeywords int
	MaxChannels int
}

// NewSearchRequest normalises caller input into a SearchRequest.
// Short keywords are dropped, long ones truncated, and both lists are capped
// in input order before sorting. Returns ErrInvalidRequest when nothing usable
// remains or a field is malformed.
func NewSearchRequest(p RequestParams, limits RequestLimits) (SearchRequest, error) {
	maxKeywords := limits.MaxKeywords
	if maxKeywords <= 0 {
		maxKeywords = DefaultMaxKeywords
	}
	maxChannels := limits.MaxChannels
	if maxChannels <= 0 {
		maxChannels = DefaultMaxChannels
	}

	keywords := make([]string, 0, len(p.Keywords))
	for _, raw := range p.Keywords {
		kw, ok := NormalizeKeyword(raw)
		if !ok || slices.Contains(keywords, kw) {
			continue
		}
		keywords = append(keywords, kw)
		if len(keywords) == maxKeywords {
			break
		}
	}

	channels := make([]string, 0, len(p.Channels))
	for _, raw := range p.Channels {
		if strings.TrimSpace(raw) == "" {
			continue
		}
		ch, err := NormalizeChannel(raw)
		if err != nil {
			return SearchRequest{}, err
		}
		if slices.Contains(channels, ch) {
			continue
		}
		channels = append(channels, ch)
		if len(channels) == maxChannels {
			break
		}
	}

	if p.MaxResults < 0 {
		return SearchRequest{}, invalid("max_results", "must be at least 1, got %d", p.MaxResults)
	}
	maxResults := p.MaxResults
	if maxResults == 0 {
		maxResults = DefaultMaxResults
	}

	slices.Sort(keywords)
	slices.Sort(channels)

	req := SearchRequest{
		Keywords:     keywords,
		Channels:     channels,
		Window:       p.Window.Normalize(),
		MaxResults:   maxResults,
		ForceRefresh: p.ForceRefresh,
		Requester:    strings.TrimSpace(p.Requester),
	}
	if err := req.Validate(); err != nil {
		return SearchRequest{}, err
	}
	return req, nil
}

// Validate checks the invariants the orchestrator relies on.
func (r SearchRequest) Validate() error {
	if len(r.Keywords) == 0 {
		return invalid("keywords", "at least one keyword of %d+ characters is required", MinKeywordLength)
	}
	if len(r.Channels) == 0 {
		return invalid("channels", "at least one channel is required")
	}
	if r.MaxResults < 1 {
		return invalid("max_results", "must be at least 1, got %d", r.MaxResults)
	}
	if !r.Window.Start.IsZero() && !r.Window.End.IsZero() && r.Window.Start.After(r.Window.End) {
		return invalid("window", "start %s is after end %s",
			r.Window.Start.Format(time.RFC3339), r.Window.End.Format(time.RFC3339))
	}
	return nil
}

// Normalize validates r and returns it in canonical form, so that values
// built by hand behave like ones from NewSearchRequest. Lists are not capped.
func (r SearchRequest) Normalize() (SearchRequest, error) {
	if err := r.Validate(); err != nil {
		return SearchRequest{}, err
	}
	return NewSearchRequest(RequestParams{
		Keywords:     r.Keywords,
		Channels:     r.Channels,
		Window:       r.Window,
		MaxResults:   r.MaxResults,
		ForceRefresh: r.ForceRefresh,
		Requester:    r.Requester,
	}, RequestLimits{MaxKeywords: len(r.Keywords), MaxChannels: len(r.Channels)})
}

// Fingerprint identifies the request for caching and coalescing.
// It depends only on the normalised keywords, channels, window and
// MaxResults, never on their order.
func (r SearchRequest) Fingerprint() Fingerprint {
	keywords := make([]string, 0, len(r.Keywords))
	for _, k := range r.Keywords {
		if kw, ok := NormalizeKeyword(k); ok {
			keywords = append(keywords, kw)
		}
	}
	slices.Sort(keywords)
	keywords = slices.Compact(keywords)

	channels := make([]string, 0, len(r.Channels))
	for _, c := range r.Channels {
		if ch, err := NormalizeChannel(c); err == nil {
			channels = append(channels, ch)
		}
	}
	slices.Sort(channels)
	channels = slices.Compact(channels)

	hasher := sha256.New()
	fmt.Fprintf(hasher, "%s;", fingerprintVersion)
	for _, k := range keywords {
		fmt.Fprintf(hasher, "k%d:%s;", len(k), k)
	}
	for _, c := range channels {
		fmt.Fprintf(hasher, "c%d:%s;", len(c), c)
	}
	fmt.Fprintf(hasher, "w:%s;n:%d;", r.Window.Normalize(), r.MaxResults)

	return Fingerprint(hex.EncodeToString(hasher.Sum(nil)))
}

// Fingerprint is the hex SHA-256 of a normalised SearchRequest.
type Fingerprint string

// Short returns an abbreviated form for logs.
func (f Fingerprint) Short() string {
	if len(f) <= 12 {
		return string(f)
	}
	return string(f[:12])
}

// String returns the full fingerprint.
func (f Fingerprint) String() string {
	return string(f)
}

// NormalizeKeyword lower-cases and collapses whitespace.
// Returns false if the keyword is shorter than MinKeywordLength.
func NormalizeKeyword(raw string) (string, bool) {
	kw := strings.ToLower(strings.Join(strings.Fields(raw), " "))
	if utf8.RuneCountInString(kw) < MinKeywordLength {
		return "", false
	}
	if utf8.RuneCountInString(kw) > MaxKeywordLength {
		kw = strings.TrimSpace(string([]rune(kw)[:MaxKeywordLength]))
	}
	return kw, true
}

// ParseList splits comma or newline separated input, dropping blanks.
func ParseList(payload string) []string {
	fields := strings.FieldsFunc(payload, func(r rune) bool {
		return r == ',' || r == '\n'
	})
	out := make([]string, 0, len(fields))
	for _, f := range fields {
		if f = strings.TrimSpace(f); f != "" {
			out = append(out, f)
		}
	}
	return out
}

package domain

import (
	"fmt"
	"strings"
)

// PermalinkBase is the public URL prefix for channel posts.
const PermalinkBase = "https://t.me/"

// linkHosts are the URL prefixes accepted in channel references.
var linkHosts = []string{"t.me/", "telegram.me/", "telegram.dog/"}

// NormalizeChannel turns a channel reference into its canonical username.
// Accepted forms: "@name", "name", "t.me/name", "https://t.me/name/123",
// "https://t.me/s/name" and numeric ids such as "-1001234567890".
func NormalizeChannel(raw string) (string, error) {
	ref := strings.TrimSpace(raw)
	ref = strings.TrimPrefix(ref, "https://")
	ref = strings.TrimPrefix(ref, "http://")
	ref = strings.TrimPrefix(ref, "www.")

	for _, host := range linkHosts {
		if rest, ok := strings.CutPrefix(strings.ToLower(ref), host); ok {
			ref = rest
			// Web preview links look like t.me/s/<name>.
			ref = strings.TrimPrefix(ref, "s/")
			ref, _, _ = strings.Cut(ref, "/")
			ref, _, _ = strings.Cut(ref, "?")
			break
		}
	}

	ref = strings.ToLower(strings.TrimPrefix(ref, "@"))
	if !validChannel(ref) {
		return "", invalid("channels", "unrecognised channel %q", raw)
	}
	return ref, nil
}

// validChannel accepts usernames ([a-z0-9_], 2-32 chars) and numeric ids.
func validChannel(ref string) bool {
	if ref == "" {
		return false
	}
	if isNumericID(ref) {
		return true
	}
	if len(ref) < 2 || len(ref) > 32 {
		return false
	}
	for _, r := range ref {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9', r == '_':
		default:
			return false
		}
	}
	return true
}

func isNumericID(ref string) bool {
	digits := strings.TrimPrefix(ref, "-")
	if digits == "" {
		return false
	}
	for _, r := range digits {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

// Permalink returns the public link to a channel post.
// Numeric channel ids have no public link and yield "".
func Permalink(channel string, messageID int64) string {
	if channel == "" || isNumericID(channel) {
		return ""
	}
	return fmt.Sprintf("%s%s/%d", PermalinkBase, channel, messageID)
}

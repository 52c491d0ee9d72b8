package telegram

import (
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/custodia-labs/chanscout/internal/core/domain"
)

// defaultFloodWait is used when a throttle response names no cooldown.
const defaultFloodWait = 5 * time.Second

// classify maps a failed gateway response onto the domain errors.
// status is the HTTP status; env may be nil when the body was not JSON.
func classify(channel string, status int, header http.Header, env *envelope) error {
	code := status
	var desc string
	var params parameters
	if env != nil {
		if env.ErrorCode != 0 {
			code = env.ErrorCode
		}
		desc = env.Description
		if env.Parameters != nil {
			params = *env.Parameters
		}
	}
	upper := strings.ToUpper(desc)

	if wait, ok := floodWait(upper); ok {
		return &domain.RateLimitError{RetryAfter: wait, Global: params.Global}
	}
	if code == 420 || code == http.StatusTooManyRequests {
		wait := time.Duration(params.RetryAfter) * time.Second
		if wait <= 0 {
			wait = retryAfterHeader(header)
		}
		if wait <= 0 {
			wait = defaultFloodWait
		}
		return &domain.RateLimitError{RetryAfter: wait, Global: params.Global}
	}

	switch {
	case code == http.StatusUnauthorized,
		strings.HasPrefix(upper, "AUTH_KEY_"),
		strings.Contains(upper, "SESSION_REVOKED"),
		strings.Contains(upper, "SESSION_EXPIRED"):
		return fmt.Errorf("telegram: %s: %w", describe(code, desc), domain.ErrUnauthorized)

	case code == http.StatusNotFound,
		strings.Contains(upper, "CHANNEL_INVALID"),
		strings.Contains(upper, "CHANNEL_PRIVATE"),
		strings.Contains(upper, "USERNAME_INVALID"),
		strings.Contains(upper, "USERNAME_NOT_OCCUPIED"):
		return fmt.Errorf("telegram: channel %s: %s: %w", channel, describe(code, desc), domain.ErrNotFound)

	case code >= 500:
		return fmt.Errorf("telegram: %s: %w", describe(code, desc), domain.ErrTransient)
	}
	return fmt.Errorf("telegram: %s", describe(code, desc))
}

// floodWait parses FLOOD_WAIT_X, where X is the cooldown in seconds.
func floodWait(desc string) (time.Duration, bool) {
	_, rest, ok := strings.Cut(desc, "FLOOD_WAIT_")
	if !ok {
		return 0, false
	}
	end := 0
	for end < len(rest) && rest[end] >= '0' && rest[end] <= '9' {
		end++
	}
	secs, err := strconv.Atoi(rest[:end])
	if err != nil || secs <= 0 {
		return defaultFloodWait, true
	}
	return time.Duration(secs) * time.Second, true
}

func retryAfterHeader(h http.Header) time.Duration {
	secs, err := strconv.Atoi(h.Get("Retry-After"))
	if err != nil || secs <= 0 {
		return 0
	}
	return time.Duration(secs) * time.Second
}

func describe(code int, desc string) string {
	if desc == "" {
		return strconv.Itoa(code) + " " + http.StatusText(code)
	}
	return strconv.Itoa(code) + " " + desc
}

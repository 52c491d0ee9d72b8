package domain

import (
	"errors"
	"fmt"
	"time"
)

// Domain errors represent search engine failures.
// Provider adapters wrap their own failures with one of these so that the
// core can decide retry and partiality without knowing the provider.
var (
	// ErrInvalidRequest indicates a malformed search request.
	// Surfaced to the caller immediately and never retried.
	ErrInvalidRequest = errors.New("invalid request")

	// ErrNotFound indicates a requested entity does not exist.
	// For channels this means deleted, private or otherwise inaccessible.
	ErrNotFound = errors.New("not found")

	// Session Errors.

	// ErrRateLimited indicates the provider asked us to slow down.
	// Use RateLimitError to carry the cooldown.
	ErrRateLimited = errors.New("rate limited")

	// ErrUnauthorized indicates the session handle is invalid or revoked.
	// The engine never re-authenticates on its own.
	ErrUnauthorized = errors.New("unauthorized")

	// ErrTransient indicates a network or provider-side failure worth retrying.
	ErrTransient = errors.New("transient failure")

	// ErrSessionNotConfigured indicates no session endpoint or token is set.
	ErrSessionNotConfigured = errors.New("session not configured")

	// Storage Errors.

	// ErrStoreClosed indicates the store has been closed.
	ErrStoreClosed = errors.New("store closed")

	// ErrWatchNotFound indicates the watch does not exist.
	ErrWatchNotFound = errors.New("watch not found")
)

// RateLimitError is returned by a session client when the provider imposes
// a cooldown (flood wait). Global reports a connection-wide cooldown.
type RateLimitError struct {
	RetryAfter time.Duration
	Global     bool
}

func (e *RateLimitError) Error() string {
	scope := "channel"
	if e.Global {
		scope = "connection"
	}
	return fmt.Sprintf("rate limited (%s), retry after %s", scope, e.RetryAfter)
}

// Is lets errors.Is(err, ErrRateLimited) match a RateLimitError.
func (e *RateLimitError) Is(target error) bool {
	return target == ErrRateLimited
}

// IsRateLimited reports whether err is a provider cooldown.
func IsRateLimited(err error) bool {
	return errors.Is(err, ErrRateLimited)
}

// RetryAfter extracts the cooldown from a rate limit error.
// Returns 0 and false if err does not carry one.
func RetryAfter(err error) (time.Duration, bool) {
	var rl *RateLimitError
	if errors.As(err, &rl) {
		return rl.RetryAfter, true
	}
	return 0, false
}

// IsRetryable reports whether a session error may succeed when repeated.
func IsRetryable(err error) bool {
	return errors.Is(err, ErrRateLimited) || errors.Is(err, ErrTransient)
}

// invalid builds an ErrInvalidRequest naming the offending field.
func invalid(field, format string, args ...any) error {
	return fmt.Errorf("%w: %s: %s", ErrInvalidRequest, field, fmt.Sprintf(format, args...))
}

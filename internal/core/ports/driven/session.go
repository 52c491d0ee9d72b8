package driven

import (
	"context"

	"github.com/custodia-labs/chanscout/internal/core/domain"
)

// Page is one slice of channel history, newest message first.
type Page struct {
	// Messages are ordered by descending message id.
	Messages []domain.RawMessage

	// NextCursor continues the walk towards older messages.
	// Opaque to callers; only meaningful to the client that issued it.
	NextCursor string

	// HasMore is false when the channel has no older messages.
	HasMore bool
}

// SessionClient owns one authenticated connection to the chat network.
// It performs no retries; failures are reported as domain errors:
//   - *domain.RateLimitError (errors.Is domain.ErrRateLimited) on throttling
//   - domain.ErrUnauthorized when the session is invalid or revoked
//   - domain.ErrNotFound for a deleted, private or unknown channel
//   - domain.ErrTransient for network and provider-side failures
type SessionClient interface {
	// FetchPage returns up to limit messages older than the cursor.
	// An empty cursor starts at the newest message.
	FetchPage(ctx context.Context, channel, cursor string, limit int) (*Page, error)

	// Close releases the connection.
	Close() error
}

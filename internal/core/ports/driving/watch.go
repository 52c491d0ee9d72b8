package driving

import (
	"context"

	"github.com/custodia-labs/chanscout/internal/core/domain"
)

// WatchService manages saved watches and the polling loop.
type WatchService interface {
	// Add validates and saves a watch. Assigns an ID when empty.
	Add(ctx context.Context, w *domain.Watch) error

	// Remove deletes a watch and forgets its watermarks.
	Remove(ctx context.Context, id string) error

	// List returns all watches.
	List(ctx context.Context) ([]domain.Watch, error)

	// Sync replaces the watches whose ID starts with prefix by declared.
	Sync(ctx context.Context, prefix string, declared []domain.Watch) error

	// RunOnce polls one watch immediately.
	RunOnce(ctx context.Context, id string) (*domain.WatchResult, error)

	// Start runs the polling loop. Blocks until Stop or ctx ends.
	Start(ctx context.Context) error

	// Stop ends the polling loop and waits for running polls.
	Stop() error
}

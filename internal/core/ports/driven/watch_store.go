package driven

import (
	"context"
	"time"

	"github.com/custodia-labs/chanscout/internal/core/domain"
)

// WatchStore persists saved watches and their schedule state.
type WatchStore interface {
	// GetWatch retrieves a watch by ID.
	// Returns nil and no error if the watch does not exist.
	GetWatch(ctx context.Context, id string) (*domain.Watch, error)

	// ListWatches returns all watches ordered by name.
	ListWatches(ctx context.Context) ([]domain.Watch, error)

	// SaveWatch creates or updates a watch based on ID.
	SaveWatch(ctx context.Context, w *domain.Watch) error

	// UpdateSchedule records the outcome of a poll on an existing watch.
	// Other fields are left alone. Returns domain.ErrWatchNotFound if the
	// watch was removed.
	UpdateSchedule(ctx context.Context, id string, lastRun, nextRun time.Time, lastError string) error

	// DeleteWatch removes a watch.
	// Returns domain.ErrWatchNotFound if it does not exist.
	DeleteWatch(ctx context.Context, id string) error
}

// WatermarkStore persists per-watch channel watermarks between polls.
type WatermarkStore interface {
	// Get returns the watermarks for a watch, empty if none were saved.
	Get(ctx context.Context, watchID string) (domain.Watermarks, error)

	// Save replaces the watermarks for a watch.
	Save(ctx context.Context, watchID string, marks domain.Watermarks) error
}

// MatchSink receives the outcome of each watch poll.
type MatchSink interface {
	Deliver(ctx context.Context, w *domain.Watch, result *domain.WatchResult) error
}

package driven

import (
	"context"

	"github.com/custodia-labs/chanscout/internal/core/domain"
)

// RequestStore is the append-only log of searches and their results.
type RequestStore interface {
	// Record appends a request and the result returned for it.
	// Assigns ID and RecordedAt when unset.
	Record(ctx context.Context, rec *domain.RequestRecord) error

	// Get retrieves a record by ID.
	// Returns domain.ErrNotFound if the record does not exist.
	Get(ctx context.Context, id string) (*domain.RequestRecord, error)

	// List returns records ordered most recent first.
	List(ctx context.Context, filter domain.HistoryFilter) ([]domain.RequestRecord, error)
}

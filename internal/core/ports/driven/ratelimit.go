package driven

import (
	"context"
	"time"
)

// Permit is a scoped budget slot returned by RateController.Acquire.
// Release must be called exactly once; extra calls are no-ops.
type Permit interface {
	Release()
}

// RateController tracks per-connection and per-channel request budgets.
// It never retries on the caller's behalf.
type RateController interface {
	// Acquire blocks until the channel and the connection both have budget
	// and no cooldown is open. Returns ctx.Err() if ctx ends first.
	Acquire(ctx context.Context, channel string) (Permit, error)

	// ReportThrottled opens a cooldown for the channel, or for the whole
	// connection when global is true. Overlapping reports extend, never shorten.
	ReportThrottled(channel string, retryAfter time.Duration, global bool)
}

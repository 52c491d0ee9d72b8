package services

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"time"

	"github.com/custodia-labs/chanscout/internal/core/domain"
	"github.com/custodia-labs/chanscout/internal/core/ports/driven"
	"github.com/custodia-labs/chanscout/internal/logger"
)

// FetchOptions bounds one channel walk.
type FetchOptions struct {
	// Window drops newer messages and ends the walk at the first older one.
	Window domain.TimeWindow

	// ScanLimit caps messages read. Zero means unbounded.
	ScanLimit int

	// AfterID ends the walk at the first message with ID <= AfterID.
	AfterID int64
}

// ChannelFetcher pages backward through one channel's history.
type ChannelFetcher struct {
	session driven.SessionClient
	rate    driven.RateController
	cfg     domain.FetchSettings
}

// NewChannelFetcher creates a fetcher.
func NewChannelFetcher(session driven.SessionClient, rate driven.RateController, cfg domain.FetchSettings) *ChannelFetcher {
	if cfg.PageSize <= 0 {
		cfg.PageSize = domain.DefaultSettings().Fetch.PageSize
	}
	return &ChannelFetcher{session: session, rate: rate, cfg: cfg}
}

// Fetch returns a lazy, newest-first sequence of channel messages.
// Each range over the sequence starts a fresh cursor walk. A walk that ends
// early yields a final (zero, err) pair: ctx errors, domain.ErrUnauthorized,
// domain.ErrNotFound, or retries exhausted on throttling or transient failures.
func (f *ChannelFetcher) Fetch(ctx context.Context, channel string, opts FetchOptions) iter.Seq2[domain.RawMessage, error] {
	return func(yield func(domain.RawMessage, error) bool) {
		var (
			cursor  string
			scanned int
			pages   int
			seen    = make(map[int64]struct{})
		)

		for {
			limit := f.cfg.PageSize
			if opts.ScanLimit > 0 {
				limit = min(limit, opts.ScanLimit-scanned)
			}

			page, err := f.fetchPage(ctx, channel, cursor, limit)
			if err != nil {
				yield(domain.RawMessage{}, err)
				return
			}
			pages++

			for _, msg := range page.Messages {
				if _, dup := seen[msg.ID]; dup {
					continue
				}
				seen[msg.ID] = struct{}{}

				if opts.AfterID > 0 && msg.ID <= opts.AfterID {
					logger.Debug("%s: reached watermark %d after %d pages", channel, opts.AfterID, pages)
					return
				}
				if opts.Window.Older(msg.PostedAt) {
					logger.Debug("%s: left window after %d pages", channel, pages)
					return
				}

				scanned++
				if !opts.Window.Newer(msg.PostedAt) {
					msg.Channel = channel
					if !yield(msg, nil) {
						return
					}
				}
				if opts.ScanLimit > 0 && scanned >= opts.ScanLimit {
					logger.Debug("%s: scan limit %d reached", channel, opts.ScanLimit)
					return
				}
			}

			if !page.HasMore || page.NextCursor == "" || page.NextCursor == cursor {
				return
			}
			cursor = page.NextCursor
		}
	}
}

// fetchPage fetches one page through a permit, retrying throttled and
// transient failures on the same cursor.
func (f *ChannelFetcher) fetchPage(ctx context.Context, channel, cursor string, limit int) (*driven.Page, error) {
	var throttled, transient int
	for {
		permit, err := f.rate.Acquire(ctx, channel)
		if err != nil {
			return nil, err
		}
		page, err := f.session.FetchPage(ctx, channel, cursor, limit)
		permit.Release()

		if err == nil {
			return page, nil
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}

		switch {
		case domain.IsRateLimited(err):
			if throttled >= f.cfg.ThrottleRetries {
				return nil, fmt.Errorf("fetch %s: throttled %d times: %w", channel, throttled+1, err)
			}
			throttled++
			retryAfter, _ := domain.RetryAfter(err)
			f.rate.ReportThrottled(channel, retryAfter, isGlobalThrottle(err))
			logger.Debug("%s: throttled (attempt %d), retry after %s", channel, throttled, retryAfter)

		case errors.Is(err, domain.ErrTransient):
			if transient >= f.cfg.TransientRetries {
				return nil, fmt.Errorf("fetch %s: failed %d times: %w", channel, transient+1, err)
			}
			delay := Backoff(f.cfg.BackoffBase, f.cfg.BackoffMax, transient)
			transient++
			logger.Debug("%s: transient failure (attempt %d), backing off %s: %v", channel, transient, delay, err)
			if err := sleepContext(ctx, delay); err != nil {
				return nil, err
			}

		default:
			return nil, fmt.Errorf("fetch %s: %w", channel, err)
		}
	}
}

// Backoff returns base * 2^attempt, capped at maxDelay.
func Backoff(base, maxDelay time.Duration, attempt int) time.Duration {
	if base <= 0 {
		return 0
	}
	d := base
	for range attempt {
		d *= 2
		if maxDelay > 0 && d >= maxDelay {
			return maxDelay
		}
	}
	if maxDelay > 0 && d > maxDelay {
		return maxDelay
	}
	return d
}

func isGlobalThrottle(err error) bool {
	var rl *domain.RateLimitError
	return errors.As(err, &rl) && rl.Global
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

package services

import (
	"context"
	"fmt"
	"slices"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/custodia-labs/chanscout/internal/core/domain"
	"github.com/custodia-labs/chanscout/internal/core/ports/driven"
)

// fakeSession serves canned channel histories with offset cursors.
// Scripted failures are returned, one per call, before any page is served.
type fakeSession struct {
	mu       sync.Mutex
	channels map[string][]domain.RawMessage
	failures map[string][]error
	served   map[string]int
	cursors  []string

	// gate, when set, blocks every call until closed or ctx ends.
	gate  chan struct{}
	calls atomic.Int64
}

func newFakeSession() *fakeSession {
	return &fakeSession{
		channels: make(map[string][]domain.RawMessage),
		failures: make(map[string][]error),
		served:   make(map[string]int),
	}
}

// add stores texts newest first: texts[0] gets the highest id and the
// latest time, one minute apart, ending at newest.
func (f *fakeSession) add(channel string, newest time.Time, texts ...string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i, text := range texts {
		f.channels[channel] = append(f.channels[channel], domain.RawMessage{
			Channel:  channel,
			ID:       int64(len(texts) - i),
			Text:     text,
			PostedAt: newest.Add(-time.Duration(i) * time.Minute),
		})
	}
}

func (f *fakeSession) fail(channel string, errs ...error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.failures[channel] = append(f.failures[channel], errs...)
}

func (f *fakeSession) servedCount(channel, cursor string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.served[channel+"|"+cursor]
}

func (f *fakeSession) FetchPage(ctx context.Context, channel, cursor string, limit int) (*driven.Page, error) {
	f.calls.Add(1)
	if f.gate != nil {
		select {
		case <-f.gate:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	f.cursors = append(f.cursors, channel+"|"+cursor)

	if errs := f.failures[channel]; len(errs) > 0 {
		f.failures[channel] = errs[1:]
		return nil, errs[0]
	}
	msgs, ok := f.channels[channel]
	if !ok {
		return nil, fmt.Errorf("channel %s: %w", channel, domain.ErrNotFound)
	}

	offset := 0
	if cursor != "" {
		offset, _ = strconv.Atoi(cursor)
	}
	end := min(offset+limit, len(msgs))
	page := &driven.Page{Messages: slices.Clone(msgs[offset:end])}
	if end < len(msgs) {
		page.HasMore = true
		page.NextCursor = strconv.Itoa(end)
	}
	f.served[channel+"|"+cursor]++
	return page, nil
}

func (f *fakeSession) Close() error { return nil }

// freeRate grants every permit immediately and records throttle reports.
type freeRate struct {
	mu        sync.Mutex
	throttled []time.Duration
	acquired  atomic.Int64
	released  atomic.Int64
}

type freePermit struct {
	once sync.Once
	r    *freeRate
}

func (p *freePermit) Release() {
	p.once.Do(func() { p.r.released.Add(1) })
}

func (r *freeRate) Acquire(ctx context.Context, _ string) (driven.Permit, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.acquired.Add(1)
	return &freePermit{r: r}, nil
}

func (r *freeRate) ReportThrottled(_ string, retryAfter time.Duration, _ bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.throttled = append(r.throttled, retryAfter)
}

// fakeClock is a settable clock for cache expiry.
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

// testFetchSettings keeps retries fast.
func testFetchSettings() domain.FetchSettings {
	cfg := domain.DefaultSettings().Fetch
	cfg.PageSize = 2
	cfg.BackoffBase = time.Millisecond
	cfg.BackoffMax = 5 * time.Millisecond
	return cfg
}

func collectAll(ctx context.Context, f *ChannelFetcher, channel string, opts FetchOptions) ([]domain.RawMessage, error) {
	var out []domain.RawMessage
	for msg, err := range f.Fetch(ctx, channel, opts) {
		if err != nil {
			return out, err
		}
		out = append(out, msg)
	}
	return out, nil
}

func ids(msgs []domain.RawMessage) []int64 {
	out := make([]int64, 0, len(msgs))
	for _, m := range msgs {
		out = append(out, m.ID)
	}
	return out
}

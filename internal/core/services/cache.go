package services

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/custodia-labs/chanscout/internal/core/domain"
	"github.com/custodia-labs/chanscout/internal/logger"
)

// FetchFunc computes the result set for a fingerprint on a cache miss.
type FetchFunc func(ctx context.Context) (*domain.ResultSet, error)

// CacheOption configures a ResultCache.
type CacheOption func(*ResultCache)

// WithClock replaces time.Now for expiry decisions.
func WithClock(now func() time.Time) CacheOption {
	return func(c *ResultCache) {
		c.now = now
	}
}

// ResultCache maps fingerprints to result sets with a TTL and runs at most
// one fetch per fingerprint at a time.
//
// Eviction is lazy on lookup. When MaxEntries is exceeded the entry with the
// earliest expiry goes first, ties broken by fingerprint.
type ResultCache struct {
	cfg domain.CacheSettings
	now func() time.Time

	mu       sync.Mutex
	entries  map[domain.Fingerprint]domain.CacheEntry
	inflight map[domain.Fingerprint]*inflightCall
	stats    domain.CacheStats
}

// inflightCall is one shared fetch. waiters counts callers still waiting;
// when it drops to zero before completion the fetch is cancelled.
type inflightCall struct {
	done    chan struct{}
	cancel  context.CancelFunc
	waiters int
	aborted bool

	result *domain.ResultSet
	err    error
}

// NewResultCache creates a cache.
func NewResultCache(cfg domain.CacheSettings, opts ...CacheOption) *ResultCache {
	if cfg.TTL <= 0 {
		cfg.TTL = domain.DefaultSettings().Cache.TTL
	}
	c := &ResultCache{
		cfg:      cfg,
		now:      time.Now,
		entries:  make(map[domain.Fingerprint]domain.CacheEntry),
		inflight: make(map[domain.Fingerprint]*inflightCall),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Get returns a live entry. Expired entries are dropped and reported as a miss.
func (c *ResultCache) Get(fp domain.Fingerprint) (domain.CacheEntry, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.lookup(fp)
	if !ok {
		c.stats.Misses++
		return domain.CacheEntry{}, false
	}
	c.stats.Hits++
	return domain.CacheEntry{Result: e.Result.Clone(), ExpiresAt: e.ExpiresAt}, true
}

// GetOrFetch returns the cached result for fp, or joins the in-flight fetch
// for fp, or starts fn as a new fetch. hit reports a cache hit.
//
// The fetch runs detached from the caller's context. A caller whose ctx ends
// stops waiting and gets ctx.Err(); if it was the last waiter the fetch is
// cancelled, its result discarded, and fp freed for the next caller.
// Errors from fn reach every waiter and are not cached.
func (c *ResultCache) GetOrFetch(ctx context.Context, fp domain.Fingerprint, fn FetchFunc) (rs *domain.ResultSet, hit bool, err error) {
	c.mu.Lock()
	if e, ok := c.lookup(fp); ok {
		c.stats.Hits++
		c.mu.Unlock()
		logger.Debug("cache hit %s", fp.Short())
		return e.Result.Clone(), true, nil
	}

	call, joined := c.inflight[fp]
	if joined {
		call.waiters++
		c.stats.Coalesced++
		logger.Debug("cache join %s (%d waiting)", fp.Short(), call.waiters)
	} else {
		c.stats.Misses++
		fetchCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
		call = &inflightCall{
			done:    make(chan struct{}),
			cancel:  cancel,
			waiters: 1,
		}
		c.inflight[fp] = call
		logger.Debug("cache miss %s", fp.Short())
		go c.run(fetchCtx, fp, call, fn)
	}
	c.mu.Unlock()

	select {
	case <-call.done:
		if call.err != nil {
			return nil, false, call.err
		}
		return call.result.Clone(), false, nil
	case <-ctx.Done():
		c.detach(fp, call)
		return nil, false, ctx.Err()
	}
}

// run executes fn and publishes its outcome.
func (c *ResultCache) run(ctx context.Context, fp domain.Fingerprint, call *inflightCall, fn FetchFunc) {
	var (
		result *domain.ResultSet
		err    error
	)
	func() {
		defer func() {
			if r := recover(); r != nil {
				err = fmt.Errorf("fetch %s panicked: %v", fp.Short(), r)
			}
		}()
		result, err = fn(ctx)
	}()
	if err == nil && result == nil {
		err = fmt.Errorf("fetch %s returned no result", fp.Short())
	}

	c.mu.Lock()
	call.result, call.err = result, err
	if c.inflight[fp] == call {
		delete(c.inflight, fp)
	}
	if err == nil && !call.aborted && (!result.Partial || c.cfg.CachePartial) {
		c.entries[fp] = domain.CacheEntry{Result: result, ExpiresAt: c.now().Add(c.cfg.TTL)}
		c.evict()
	}
	c.mu.Unlock()

	call.cancel()
	close(call.done)
}

// detach removes one waiter and aborts the fetch if none remain.
func (c *ResultCache) detach(fp domain.Fingerprint, call *inflightCall) {
	c.mu.Lock()
	defer c.mu.Unlock()

	call.waiters--
	if call.waiters > 0 {
		return
	}
	select {
	case <-call.done:
		return
	default:
	}
	call.aborted = true
	call.cancel()
	if c.inflight[fp] == call {
		delete(c.inflight, fp)
	}
	logger.Debug("cache abort %s: no waiters left", fp.Short())
}

// Invalidate removes the entry for fp. In-flight fetches are unaffected.
func (c *ResultCache) Invalidate(fp domain.Fingerprint) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, fp)
}

// Purge removes every entry and returns how many were removed.
func (c *ResultCache) Purge() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	n := len(c.entries)
	c.entries = make(map[domain.Fingerprint]domain.CacheEntry)
	return n
}

// Stats returns cache telemetry.
func (c *ResultCache) Stats() domain.CacheStats {
	c.mu.Lock()
	defer c.mu.Unlock()

	s := c.stats
	s.Entries = len(c.entries)
	return s
}

// lookup returns a live entry, dropping it if expired (caller holds mu).
func (c *ResultCache) lookup(fp domain.Fingerprint) (domain.CacheEntry, bool) {
	e, ok := c.entries[fp]
	if !ok {
		return domain.CacheEntry{}, false
	}
	if e.Expired(c.now()) {
		delete(c.entries, fp)
		c.stats.Evictions++
		return domain.CacheEntry{}, false
	}
	return e, true
}

// evict enforces MaxEntries (caller holds mu).
func (c *ResultCache) evict() {
	if c.cfg.MaxEntries <= 0 || len(c.entries) <= c.cfg.MaxEntries {
		return
	}

	now := c.now()
	for fp, e := range c.entries {
		if e.Expired(now) {
			delete(c.entries, fp)
			c.stats.Evictions++
		}
	}

	for len(c.entries) > c.cfg.MaxEntries {
		var victim domain.Fingerprint
		var victimExp time.Time
		first := true
		for fp, e := range c.entries {
			if first || e.ExpiresAt.Before(victimExp) || (e.ExpiresAt.Equal(victimExp) && fp < victim) {
				victim, victimExp, first = fp, e.ExpiresAt, false
			}
		}
		delete(c.entries, victim)
		c.stats.Evictions++
	}
}

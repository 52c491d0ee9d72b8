// Package ratelimit implements the rate controller shared by all fetches
// on one session: a connection-wide token bucket, a token bucket per channel,
// a cap on concurrent provider calls, and provider-imposed cooldowns.
package ratelimit

import (
	"context"
	"fmt"
	"sync"
	"time"

	"golang.org/x/sync/semaphore"
	"golang.org/x/time/rate"

	"github.com/custodia-labs/chanscout/internal/core/domain"
	"github.com/custodia-labs/chanscout/internal/core/ports/driven"
	"github.com/custodia-labs/chanscout/internal/logger"
)

// Ensure Controller implements the interface.
var _ driven.RateController = (*Controller)(nil)

// DefaultCooldown is used when the provider throttles without a retry hint.
const DefaultCooldown = 5 * time.Second

// Controller hands out permits for provider calls.
type Controller struct {
	cfg    domain.RateSettings
	global *rate.Limiter
	slots  *semaphore.Weighted

	mu             sync.Mutex
	channels       map[string]*rate.Limiter
	cooldowns      map[string]time.Time
	globalCooldown time.Time
}

// New creates a controller from rate settings. Zero values fall back to
// the defaults.
func New(cfg domain.RateSettings) *Controller {
	d := domain.DefaultSettings().Rate
	if cfg.GlobalRPS <= 0 {
		cfg.GlobalRPS = d.GlobalRPS
	}
	if cfg.GlobalBurst <= 0 {
		cfg.GlobalBurst = d.GlobalBurst
	}
	if cfg.ChannelRPS <= 0 {
		cfg.ChannelRPS = d.ChannelRPS
	}
	if cfg.ChannelBurst <= 0 {
		cfg.ChannelBurst = d.ChannelBurst
	}
	if cfg.MaxInFlight <= 0 {
		cfg.MaxInFlight = d.MaxInFlight
	}

	return &Controller{
		cfg:       cfg,
		global:    rate.NewLimiter(rate.Limit(cfg.GlobalRPS), cfg.GlobalBurst),
		slots:     semaphore.NewWeighted(int64(cfg.MaxInFlight)),
		channels:  make(map[string]*rate.Limiter),
		cooldowns: make(map[string]time.Time),
	}
}

// Acquire blocks until a call to channel is allowed.
// The wait order is cooldown, channel bucket, connection bucket, in-flight
// slot. A cooldown opened meanwhile sends the caller back to the start.
func (c *Controller) Acquire(ctx context.Context, channel string) (driven.Permit, error) {
	for {
		if err := c.waitCooldown(ctx, channel); err != nil {
			return nil, err
		}
		if err := waitReservation(ctx, c.reserveChannel(channel)); err != nil {
			return nil, err
		}
		if err := waitReservation(ctx, c.global.Reserve()); err != nil {
			return nil, err
		}
		if err := c.slots.Acquire(ctx, 1); err != nil {
			return nil, err
		}
		if c.Cooldown(channel) > 0 {
			c.slots.Release(1)
			continue
		}
		return &permit{release: func() { c.slots.Release(1) }}, nil
	}
}

// ReportThrottled opens or extends a cooldown.
func (c *Controller) ReportThrottled(channel string, retryAfter time.Duration, global bool) {
	if retryAfter <= 0 {
		retryAfter = DefaultCooldown
	}
	until := time.Now().Add(retryAfter)

	c.mu.Lock()
	defer c.mu.Unlock()

	if global {
		if until.After(c.globalCooldown) {
			c.globalCooldown = until
		}
		logger.Warn("connection throttled for %s", retryAfter)
		return
	}
	if until.After(c.cooldowns[channel]) {
		c.cooldowns[channel] = until
	}
	logger.Warn("channel %s throttled for %s", channel, retryAfter)
}

// Cooldown returns how long calls to channel are still deferred.
// An expired channel cooldown is forgotten.
func (c *Controller) Cooldown(channel string) time.Duration {
	now := time.Now()

	c.mu.Lock()
	until, ok := c.cooldowns[channel]
	if ok && !until.After(now) {
		delete(c.cooldowns, channel)
	}
	if c.globalCooldown.After(until) {
		until = c.globalCooldown
	}
	c.mu.Unlock()

	if d := until.Sub(now); d > 0 {
		return d
	}
	return 0
}

// waitCooldown sleeps until no cooldown covers channel.
func (c *Controller) waitCooldown(ctx context.Context, channel string) error {
	for {
		d := c.Cooldown(channel)
		if d <= 0 {
			return nil
		}
		logger.Debug("waiting %s for %s cooldown", d.Round(time.Millisecond), channel)
		timer := time.NewTimer(d)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}
}

// reserveChannel takes a token from channel's bucket, creating the bucket
// on first use. Reserving under mu means a bucket is never pruned between
// lookup and use.
func (c *Controller) reserveChannel(channel string) *rate.Reservation {
	c.mu.Lock()
	defer c.mu.Unlock()

	l, ok := c.channels[channel]
	if !ok {
		c.pruneLocked(time.Now())
		l = rate.NewLimiter(rate.Limit(c.cfg.ChannelRPS), c.cfg.ChannelBurst)
		c.channels[channel] = l
	}
	return l.Reserve()
}

// pruneLocked drops full buckets and expired cooldowns. A full bucket
// behaves like a new one, so dropping it changes nothing.
func (c *Controller) pruneLocked(now time.Time) {
	for ch, l := range c.channels {
		if l.TokensAt(now) >= float64(c.cfg.ChannelBurst) {
			delete(c.channels, ch)
		}
	}
	for ch, until := range c.cooldowns {
		if !until.After(now) {
			delete(c.cooldowns, ch)
		}
	}
}

// waitReservation sleeps until r is usable. When ctx ends first the token
// is returned and ctx.Err() reported, so a deadline surfaces as
// context.DeadlineExceeded once it has actually passed.
func waitReservation(ctx context.Context, r *rate.Reservation) error {
	if !r.OK() {
		return fmt.Errorf("rate limit burst is zero")
	}
	d := r.Delay()
	if d <= 0 {
		return nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		r.Cancel()
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

type permit struct {
	once    sync.Once
	release func()
}

// Release returns the in-flight slot. Safe to call more than once.
func (p *permit) Release() {
	p.once.Do(p.release)
}

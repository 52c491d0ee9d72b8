package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/custodia-labs/chanscout/internal/core/domain"
	"github.com/custodia-labs/chanscout/internal/core/ports/driven"
	"github.com/custodia-labs/chanscout/internal/core/ports/driving"
	"github.com/custodia-labs/chanscout/internal/logger"
)

// Ensure Watcher implements the interface.
var _ driving.WatchService = (*Watcher)(nil)

// pollMaxResults caps matches per poll. A truncated channel keeps its
// watermark, so the cap sits well above what one poll normally finds.
const pollMaxResults = 1000

// Watcher polls saved watches on their intervals. Each poll is an
// incremental search from the watermarks saved by the previous one.
type Watcher struct {
	cfg    domain.WatchSettings
	limits domain.RequestLimits
	store  driven.WatchStore
	marks  driven.WatermarkStore
	search driving.SearchService
	sink   driven.MatchSink
	now    func() time.Time

	mu      sync.Mutex
	running bool
	stopCh  chan struct{}
	polling map[string]bool
	wg      sync.WaitGroup
}

// NewWatcher creates a watcher. The sink parameter is optional (can be nil).
func NewWatcher(
	cfg domain.WatchSettings,
	limits domain.RequestLimits,
	store driven.WatchStore,
	marks driven.WatermarkStore,
	search driving.SearchService,
	sink driven.MatchSink,
) *Watcher {
	d := domain.DefaultSettings().Watch
	if cfg.Tick <= 0 {
		cfg.Tick = d.Tick
	}
	if cfg.Lookback <= 0 {
		cfg.Lookback = d.Lookback
	}
	return &Watcher{
		cfg:     cfg,
		limits:  limits,
		store:   store,
		marks:   marks,
		search:  search,
		sink:    sink,
		now:     time.Now,
		polling: make(map[string]bool),
	}
}

// Add validates and saves a watch. New watches are due immediately.
func (w *Watcher) Add(ctx context.Context, watch *domain.Watch) error {
	if _, err := w.request(watch); err != nil {
		return err
	}
	if watch.ID == "" {
		watch.ID = uuid.NewString()
	}
	if strings.TrimSpace(watch.Name) == "" {
		watch.Name = watch.ID
	}
	if watch.Interval <= 0 {
		watch.Interval = domain.DefaultWatchInterval
	}
	if watch.NextRun.IsZero() {
		watch.NextRun = w.now()
	}
	if err := w.store.SaveWatch(ctx, watch); err != nil {
		return fmt.Errorf("save watch %s: %w", watch.Name, err)
	}
	logger.Info("Watch %s saved (every %s)", watch.Name, watch.Interval)
	return nil
}

// Remove deletes a watch and forgets its watermarks.
func (w *Watcher) Remove(ctx context.Context, id string) error {
	if err := w.store.DeleteWatch(ctx, id); err != nil {
		return err
	}
	if err := w.marks.Save(ctx, id, domain.Watermarks{}); err != nil {
		return fmt.Errorf("clear watermarks for %s: %w", id, err)
	}
	return nil
}

// List returns all watches.
func (w *Watcher) List(ctx context.Context) ([]domain.Watch, error) {
	return w.store.ListWatches(ctx)
}

// Sync makes the watches whose ID starts with prefix match declared.
// Schedule state of unchanged watches is kept.
func (w *Watcher) Sync(ctx context.Context, prefix string, declared []domain.Watch) error {
	existing, err := w.store.ListWatches(ctx)
	if err != nil {
		return err
	}
	byID := make(map[string]domain.Watch, len(existing))
	for _, e := range existing {
		byID[e.ID] = e
	}

	keep := make(map[string]bool, len(declared))
	for i := range declared {
		d := declared[i]
		keep[d.ID] = true
		if old, ok := byID[d.ID]; ok {
			d.LastRun, d.NextRun, d.LastError = old.LastRun, old.NextRun, old.LastError
		}
		if err := w.Add(ctx, &d); err != nil {
			logger.Error("watch %s: %v", d.Name, err)
		}
	}
	for id := range byID {
		if strings.HasPrefix(id, prefix) && !keep[id] {
			if err := w.Remove(ctx, id); err != nil {
				logger.Error("remove watch %s: %v", id, err)
			}
		}
	}
	return nil
}

// RunOnce polls one watch immediately.
func (w *Watcher) RunOnce(ctx context.Context, id string) (*domain.WatchResult, error) {
	watch, err := w.store.GetWatch(ctx, id)
	if err != nil {
		return nil, err
	}
	if watch == nil {
		return nil, fmt.Errorf("%w: %s", domain.ErrWatchNotFound, id)
	}
	result := w.poll(ctx, watch)
	if result.Error != "" {
		return result, errors.New(result.Error)
	}
	return result, nil
}

// Start begins the polling loop. This method blocks until Stop is called
// or ctx ends.
func (w *Watcher) Start(ctx context.Context) error {
	w.mu.Lock()
	if w.running {
		w.mu.Unlock()
		return nil
	}
	w.running = true
	w.stopCh = make(chan struct{})
	stopCh := w.stopCh
	w.mu.Unlock()

	w.pollDue(ctx)

	ticker := time.NewTicker(w.cfg.Tick)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			w.wg.Wait()
			w.mu.Lock()
			w.running = false
			w.mu.Unlock()
			return ctx.Err()
		case <-stopCh:
			return nil
		case <-ticker.C:
			w.pollDue(ctx)
		}
	}
}

// Stop ends the polling loop and waits for running polls.
func (w *Watcher) Stop() error {
	w.mu.Lock()
	if !w.running {
		w.mu.Unlock()
		return nil
	}
	w.running = false
	close(w.stopCh)
	w.mu.Unlock()

	w.wg.Wait()
	return nil
}

// pollDue starts a poll for every due watch not already being polled.
func (w *Watcher) pollDue(ctx context.Context) {
	watches, err := w.store.ListWatches(ctx)
	if err != nil {
		logger.Error("watcher: list watches: %v", err)
		return
	}

	now := w.now()
	for i := range watches {
		watch := watches[i]
		if !watch.Due(now) {
			continue
		}
		w.mu.Lock()
		if w.polling[watch.ID] {
			w.mu.Unlock()
			continue
		}
		w.polling[watch.ID] = true
		w.mu.Unlock()

		w.wg.Add(1)
		go func() {
			defer w.wg.Done()
			defer func() {
				w.mu.Lock()
				delete(w.polling, watch.ID)
				w.mu.Unlock()
			}()
			w.poll(ctx, &watch)
		}()
	}
}

// poll runs one incremental search for watch, saves the advanced
// watermarks and schedule, and delivers the result.
func (w *Watcher) poll(ctx context.Context, watch *domain.Watch) *domain.WatchResult {
	result := &domain.WatchResult{WatchID: watch.ID, StartedAt: w.now()}

	err := w.pollSearch(ctx, watch, result)
	result.EndedAt = w.now()
	if err != nil {
		result.Error = err.Error()
		watch.LastError = err.Error()
		logger.Error("watch %s: %v", watch.Name, err)
	} else {
		watch.LastError = ""
		logger.Info("watch %s: %d new matches", watch.Name, len(result.Matches))
	}

	watch.LastRun = result.StartedAt
	watch.NextRun = result.EndedAt.Add(watch.Interval)
	err = w.store.UpdateSchedule(ctx, watch.ID, watch.LastRun, watch.NextRun, watch.LastError)
	switch {
	case errors.Is(err, domain.ErrWatchNotFound):
		// Removed while polling; drop the watermarks this poll may have saved.
		logger.Info("watch %s removed during poll", watch.Name)
		if err := w.marks.Save(ctx, watch.ID, domain.Watermarks{}); err != nil {
			logger.Error("watch %s: clear watermarks: %v", watch.Name, err)
		}
		return result
	case err != nil:
		logger.Error("watch %s: save schedule: %v", watch.Name, err)
	}

	if w.sink != nil {
		if err := w.sink.Deliver(ctx, watch, result); err != nil {
			logger.Error("watch %s: deliver: %v", watch.Name, err)
		}
	}
	return result
}

func (w *Watcher) pollSearch(ctx context.Context, watch *domain.Watch, result *domain.WatchResult) error {
	if w.search == nil {
		return domain.ErrSessionNotConfigured
	}
	req, err := w.request(watch)
	if err != nil {
		return err
	}
	// Every channel is searched back over the lookback at most, watermark or
	// not. Messages older than the window start are never seen.
	req.Window = domain.TimeWindow{Start: w.now().Add(-w.cfg.Lookback)}.Normalize()
	if !watch.LastRun.IsZero() && watch.LastRun.Before(req.Window.Start) {
		logger.Warn("watch %s: last run %s is before the lookback window, messages posted in between are skipped",
			watch.Name, watch.LastRun.Format(time.RFC3339))
	}

	marks, err := w.marks.Get(ctx, watch.ID)
	if err != nil {
		return fmt.Errorf("load watermarks: %w", err)
	}

	rs, next, err := w.search.SearchIncremental(ctx, req, marks)
	if err != nil {
		return err
	}
	if err := w.marks.Save(ctx, watch.ID, next); err != nil {
		return fmt.Errorf("save watermarks: %w", err)
	}

	result.Matches = rs.Matches
	result.Partial = rs.Partial
	return nil
}

// request builds the search request a watch polls with.
func (w *Watcher) request(watch *domain.Watch) (domain.SearchRequest, error) {
	return domain.NewSearchRequest(domain.RequestParams{
		Keywords:   watch.Keywords,
		Channels:   watch.Channels,
		MaxResults: pollMaxResults,
		Requester:  "watch:" + watch.ID,
	}, w.limits)
}

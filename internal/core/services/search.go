package services

import (
	"context"
	"errors"
	"sync"
	"time"

	"golang.org/x/sync/semaphore"

	"github.com/custodia-labs/chanscout/internal/core/domain"
	"github.com/custodia-labs/chanscout/internal/core/ports/driven"
	"github.com/custodia-labs/chanscout/internal/core/ports/driving"
	"github.com/custodia-labs/chanscout/internal/logger"
)

// Ensure SearchService implements the interface.
var _ driving.SearchService = (*SearchService)(nil)

// SearchService is the search orchestrator: it fans a request out across
// channels, matches messages, merges the results and caches them.
type SearchService struct {
	fetcher  *ChannelFetcher
	matcher  *KeywordMatcher
	cache    *ResultCache
	requests driven.RequestStore
	cfg      domain.FetchSettings
	now      func() time.Time
}

// NewSearchService creates a new search service.
// The requests parameter is optional (can be nil).
func NewSearchService(
	fetcher *ChannelFetcher,
	matcher *KeywordMatcher,
	cache *ResultCache,
	requests driven.RequestStore,
	cfg domain.FetchSettings,
) *SearchService {
	if cfg.MaxChannels <= 0 {
		cfg.MaxChannels = domain.DefaultSettings().Fetch.MaxChannels
	}
	return &SearchService{
		fetcher:  fetcher,
		matcher:  matcher,
		cache:    cache,
		requests: requests,
		cfg:      cfg,
		now:      time.Now,
	}
}

// Search returns matches for req. Cached results are served until they
// expire unless req.ForceRefresh is set. Concurrent identical searches share
// one fetch. Every completed search is appended to the request log.
func (s *SearchService) Search(ctx context.Context, req domain.SearchRequest) (*domain.ResultSet, error) {
	req, err := req.Normalize()
	if err != nil {
		return nil, err
	}
	fp := req.Fingerprint()

	logger.Section("Search")
	logger.Debug("Fingerprint: %s", fp.Short())
	logger.Debug("Keywords: %v", req.Keywords)
	logger.Debug("Channels: %v", req.Channels)
	logger.Debug("Window: %s, max results: %d", req.Window, req.MaxResults)

	if req.ForceRefresh {
		logger.Debug("Force refresh: dropping cached result")
		s.cache.Invalidate(fp)
	}

	rs, hit, err := s.cache.GetOrFetch(ctx, fp, func(ctx context.Context) (*domain.ResultSet, error) {
		rs, _ := s.collect(ctx, req, nil)
		return rs, nil
	})
	if err != nil {
		return nil, err
	}
	rs.FromCache = hit

	logger.Info("%d matches (partial=%t, cached=%t)", len(rs.Matches), rs.Partial, hit)
	s.record(ctx, req, rs)
	return rs, nil
}

// SearchIncremental searches only messages newer than marks, bypassing the
// cache. A channel's mark advances only when its walk completed.
func (s *SearchService) SearchIncremental(ctx context.Context, req domain.SearchRequest, marks domain.Watermarks) (*domain.ResultSet, domain.Watermarks, error) {
	req, err := req.Normalize()
	if err != nil {
		return nil, nil, err
	}

	logger.Section("Incremental Search")
	rs, next := s.collect(ctx, req, marks)
	if err := ctx.Err(); err != nil {
		return nil, nil, err
	}
	return rs, next, nil
}

// SearchUncached runs req without the cache or the request log.
func (s *SearchService) SearchUncached(ctx context.Context, req domain.SearchRequest) (*domain.ResultSet, error) {
	req, err := req.Normalize()
	if err != nil {
		return nil, err
	}
	rs, _ := s.collect(ctx, req, nil)
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return rs, nil
}

// CacheStats returns result cache telemetry.
func (s *SearchService) CacheStats() domain.CacheStats {
	return s.cache.Stats()
}

// channelResult is one channel's share of a search.
type channelResult struct {
	matches []domain.MatchedMessage
	status  domain.ChannelStatus
	highest int64
}

// collect fetches all channels with bounded concurrency and merges the
// matches. With marks, each channel stops at its mark and the returned
// marks are advanced.
func (s *SearchService) collect(ctx context.Context, req domain.SearchRequest, marks domain.Watermarks) (*domain.ResultSet, domain.Watermarks) {
	if s.cfg.TimeBudget > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.cfg.TimeBudget)
		defer cancel()
	}

	results := make([]channelResult, len(req.Channels))
	sem := semaphore.NewWeighted(int64(s.cfg.MaxChannels))
	var wg sync.WaitGroup

	for i, channel := range req.Channels {
		if err := sem.Acquire(ctx, 1); err != nil {
			results[i].status = domain.ChannelStatus{Channel: channel, Error: err.Error()}
			continue
		}
		wg.Add(1)
		go func() {
			defer wg.Done()
			defer sem.Release(1)

			opts := FetchOptions{Window: req.Window, ScanLimit: s.cfg.ScanLimit}
			if marks != nil {
				opts.AfterID = marks[channel]
			}
			results[i] = s.searchChannel(ctx, channel, req, opts)
		}()
	}
	wg.Wait()

	next := marks.Clone()
	rs := &domain.ResultSet{
		Fingerprint: req.Fingerprint(),
		Channels:    make([]domain.ChannelStatus, 0, len(results)),
	}
	for _, r := range results {
		rs.Matches = append(rs.Matches, r.matches...)
		rs.Channels = append(rs.Channels, r.status)
		if !r.status.Complete {
			rs.Partial = true
		} else {
			next.Advance(r.status.Channel, r.highest)
		}
	}

	rs.Matches = domain.DedupeMatches(rs.Matches)
	domain.SortMatches(rs.Matches)
	if len(rs.Matches) > req.MaxResults {
		rs.Matches = rs.Matches[:req.MaxResults]
		rs.Partial = true
	}
	if rs.Matches == nil {
		rs.Matches = []domain.MatchedMessage{}
	}
	rs.FetchedAt = s.now().UTC()

	return rs, next
}

// searchChannel walks one channel and collects up to MaxResults+1 matches;
// the extra one proves truncation.
func (s *SearchService) searchChannel(ctx context.Context, channel string, req domain.SearchRequest, opts FetchOptions) channelResult {
	res := channelResult{status: domain.ChannelStatus{Channel: channel, Complete: true}}

	for msg, err := range s.fetcher.Fetch(ctx, channel, opts) {
		if err != nil {
			res.status.Complete = false
			res.status.Error = describeFetchError(err)
			logger.Warn("%s: %v", channel, err)
			break
		}
		res.status.Scanned++
		res.highest = max(res.highest, msg.ID)

		keywords := s.matcher.Match(msg.Text, req.Keywords)
		if len(keywords) == 0 {
			continue
		}
		m, _ := domain.NewMatchedMessage(msg, keywords, s.matcher.Snippet(msg.Text, keywords))
		res.matches = append(res.matches, m)
		if len(res.matches) > req.MaxResults {
			res.status.Complete = false
			res.status.Truncated = true
			break
		}
	}

	res.status.Matched = len(res.matches)
	logger.Debug("%s: scanned %d, matched %d, complete %t", channel, res.status.Scanned, res.status.Matched, res.status.Complete)
	return res
}

// record appends the search to the request log. Failures are logged only.
func (s *SearchService) record(ctx context.Context, req domain.SearchRequest, rs *domain.ResultSet) {
	if s.requests == nil {
		return
	}
	rec := &domain.RequestRecord{
		Fingerprint: rs.Fingerprint,
		Request:     req,
		Result:      rs,
		Cached:      rs.FromCache,
	}
	if err := s.requests.Record(context.WithoutCancel(ctx), rec); err != nil {
		logger.Error("record request %s: %v", rs.Fingerprint.Short(), err)
	}
}

// describeFetchError renders a per-channel failure for ChannelStatus.
func describeFetchError(err error) string {
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return "time budget exceeded"
	case errors.Is(err, domain.ErrNotFound):
		return "channel not found or inaccessible"
	case errors.Is(err, domain.ErrUnauthorized):
		return "session unauthorized"
	default:
		return err.Error()
	}
}
